package export

import (
	"fmt"
	"strings"

	"canvas-backend/domain/core/valueobjects"
)

// DiagramRenderer writes a session as a Mermaid flowchart. Each exchange,
// or each user/assistant pair in pair mode, becomes one node and the
// nodes are chained in message order.
type DiagramRenderer struct {
	LabelRunes int
}

func (DiagramRenderer) Format() Format      { return FormatDiagram }
func (DiagramRenderer) ContentType() string { return ContentTypeMermaid }

type diagramNode struct {
	labels  []string
	sources []string
}

// Render emits the flowchart
func (r DiagramRenderer) Render(doc *Document) (string, error) {
	direction := doc.Options.Direction
	if direction == "" {
		direction = DirectionTopDown
	}
	if direction != DirectionTopDown && direction != DirectionLeftRight {
		return "", fmt.Errorf("unsupported diagram direction %q", direction)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%%%% %s\n", singleLine(doc.Title))
	fmt.Fprintf(&b, "flowchart %s\n", direction)

	nodes := r.group(doc.Exchanges, doc.Options.PairMode)
	if len(nodes) == 0 {
		b.WriteString("    empty[\"No messages\"]\n")
		return b.String(), nil
	}

	for i, n := range nodes {
		fmt.Fprintf(&b, "    m%d[\"%s\"]\n", i, strings.Join(n.labels, "<br/>"))
	}

	// Source nodes get stable ids in order of first reference
	sourceIDs := make(map[string]int)
	var sourceOrder []string
	for _, n := range nodes {
		for _, s := range n.sources {
			if _, ok := sourceIDs[s]; !ok {
				sourceIDs[s] = len(sourceOrder)
				sourceOrder = append(sourceOrder, s)
			}
		}
	}
	for i, s := range sourceOrder {
		fmt.Fprintf(&b, "    s%d[(\"node %s\")]\n", i, escapeLabel(shortID(s)))
	}

	for i := 0; i+1 < len(nodes); i++ {
		fmt.Fprintf(&b, "    m%d --> m%d\n", i, i+1)
	}
	for i, n := range nodes {
		for _, s := range n.sources {
			fmt.Fprintf(&b, "    s%d -.-> m%d\n", sourceIDs[s], i)
		}
	}

	if doc.Summary != "" {
		fmt.Fprintf(&b, "    summary[\"%s\"]\n", r.label("Summary", doc.Summary))
		fmt.Fprintf(&b, "    m%d -.- summary\n", len(nodes)-1)
	}

	return b.String(), nil
}

func (r DiagramRenderer) group(exchanges []Exchange, pairMode bool) []diagramNode {
	nodes := make([]diagramNode, 0, len(exchanges))
	for i := 0; i < len(exchanges); i++ {
		ex := exchanges[i]
		node := diagramNode{
			labels:  []string{r.label(ex.Role.Label(), ex.Content)},
			sources: ex.SourceNodeIDs,
		}
		if pairMode && ex.Role == valueobjects.RoleUser && i+1 < len(exchanges) &&
			exchanges[i+1].Role == valueobjects.RoleAssistant {
			next := exchanges[i+1]
			node.labels = append(node.labels, r.label(next.Role.Label(), next.Content))
			node.sources = mergeSources(node.sources, next.SourceNodeIDs)
			i++
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func (r DiagramRenderer) label(role, content string) string {
	return escapeLabel(role + ": " + Truncate(singleLine(content), r.LabelRunes))
}

var labelEscaper = strings.NewReplacer(
	`"`, "#quot;",
	"<", "#lt;",
	">", "#gt;",
)

func escapeLabel(s string) string {
	return labelEscaper.Replace(s)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func mergeSources(a, b []string) []string {
	out := append([]string{}, a...)
	for _, s := range b {
		found := false
		for _, existing := range out {
			if existing == s {
				found = true
				break
			}
		}
		if !found {
			out = append(out, s)
		}
	}
	return out
}
