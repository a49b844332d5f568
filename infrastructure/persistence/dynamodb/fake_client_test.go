package dynamodb

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeClient is a single-table, in-memory stand-in for DynamoDB. It
// understands the expression shapes the store builds and nothing more.
type fakeClient struct {
	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	commits  int
	failNext error
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: make(map[string]map[string]types.AttributeValue)}
}

var (
	notExistsRe = regexp.MustCompile(`attribute_not_exists\s*\(\s*(#\w+)\s*\)`)
	existsRe    = regexp.MustCompile(`attribute_exists\s*\(\s*(#\w+)\s*\)`)
	equalsRe    = regexp.MustCompile(`(#\w+)\s*=\s*(:\w+)`)
)

func str(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	default:
		return fmt.Sprintf("%v", v)
	}
}

func keyOf(key map[string]types.AttributeValue) string {
	return str(key["PK"]) + "|" + str(key["SK"])
}

func (c *fakeClient) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: copyItem(c.items[keyOf(in.Key)])}, nil
}

// Query supports "PK = :v AND begins_with(SK, :p)"
func (c *fakeClient) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var pk, prefix string
	for placeholder, v := range in.ExpressionAttributeValues {
		s := str(v)
		if regexp.MustCompile(`begins_with\s*\(\s*#\w+\s*,\s*`+placeholder+`\s*\)`).MatchString(aws.ToString(in.KeyConditionExpression)) {
			prefix = s
		} else {
			pk = s
		}
	}

	var keys []string
	for k, item := range c.items {
		if str(item["PK"]) == pk && strings.HasPrefix(str(item["SK"]), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &dynamodb.QueryOutput{}
	for _, k := range keys {
		out.Items = append(out.Items, copyItem(c.items[k]))
	}
	return out, nil
}

func (c *fakeClient) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.failNext; err != nil {
		c.failNext = nil
		return nil, err
	}

	// Check every condition before applying anything
	for _, w := range in.TransactItems {
		switch {
		case w.Put != nil:
			if !c.holds(w.Put.Item, aws.ToString(w.Put.ConditionExpression), w.Put.ExpressionAttributeNames, w.Put.ExpressionAttributeValues) {
				return nil, &types.TransactionCanceledException{Message: aws.String("put condition failed")}
			}
		case w.Update != nil:
			if !c.holds(w.Update.Key, aws.ToString(w.Update.ConditionExpression), w.Update.ExpressionAttributeNames, w.Update.ExpressionAttributeValues) {
				return nil, &types.TransactionCanceledException{Message: aws.String("update condition failed")}
			}
		}
	}

	for _, w := range in.TransactItems {
		switch {
		case w.Put != nil:
			c.items[keyOf(w.Put.Item)] = copyItem(w.Put.Item)
		case w.Update != nil:
			item := c.items[keyOf(w.Update.Key)]
			for _, m := range equalsRe.FindAllStringSubmatch(aws.ToString(w.Update.UpdateExpression), -1) {
				item[w.Update.ExpressionAttributeNames[m[1]]] = w.Update.ExpressionAttributeValues[m[2]]
			}
		}
	}
	c.commits++
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

// holds evaluates the condition against the item stored under key
func (c *fakeClient) holds(key map[string]types.AttributeValue, cond string, names map[string]string, values map[string]types.AttributeValue) bool {
	if cond == "" {
		return true
	}
	current, exists := c.items[keyOf(key)]
	if m := notExistsRe.FindStringSubmatch(cond); m != nil {
		return !exists
	}
	if m := existsRe.FindStringSubmatch(cond); m != nil {
		return exists
	}
	if m := equalsRe.FindStringSubmatch(cond); m != nil {
		if !exists {
			return false
		}
		return str(current[names[m[1]]]) == str(values[m[2]])
	}
	return false
}

func (c *fakeClient) setItem(item map[string]types.AttributeValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[keyOf(item)] = copyItem(item)
}

func (c *fakeClient) item(pk, sk string) map[string]types.AttributeValue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyItem(c.items[pk+"|"+sk])
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
