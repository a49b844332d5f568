package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	pkgerrors "canvas-backend/pkg/errors"
)

type echoQuery struct {
	Value string
}

func (q echoQuery) Validate() error {
	if q.Value == "" {
		return pkgerrors.NewValidationError("value is required")
	}
	return nil
}

type unregisteredQuery struct{}

func (unregisteredQuery) Validate() error { return nil }

func TestQueryBus_Ask(t *testing.T) {
	b := NewQueryBus()
	require.NoError(t, b.Register(echoQuery{}, QueryHandlerFunc(func(ctx context.Context, q Query) (interface{}, error) {
		return q.(echoQuery).Value, nil
	})))

	result, err := b.Ask(context.Background(), echoQuery{Value: "hello"})

	require.NoError(t, err)
	assert.Equal(t, "hello", result)
}

func TestQueryBus_Errors(t *testing.T) {
	b := NewQueryBus()
	handler := QueryHandlerFunc(func(ctx context.Context, q Query) (interface{}, error) { return nil, nil })
	require.NoError(t, b.Register(echoQuery{}, handler))

	assert.Error(t, b.Register(echoQuery{}, handler), "duplicate registration")

	_, err := b.Ask(context.Background(), echoQuery{})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = b.Ask(context.Background(), unregisteredQuery{})
	assert.True(t, pkgerrors.IsInternal(err))
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	b := NewQueryBus(LoggingMiddleware(zap.New(core), time.Nanosecond))
	require.NoError(t, b.Register(echoQuery{}, QueryHandlerFunc(func(ctx context.Context, q Query) (interface{}, error) {
		time.Sleep(time.Millisecond)
		switch q.(echoQuery).Value {
		case "missing":
			return nil, pkgerrors.NewNotFoundError("thing")
		case "broken":
			return nil, pkgerrors.NewInternalError("boom")
		}
		return "ok", nil
	})))

	_, _ = b.Ask(context.Background(), echoQuery{Value: "fine"})
	_, _ = b.Ask(context.Background(), echoQuery{Value: "missing"})
	_, _ = b.Ask(context.Background(), echoQuery{Value: "broken"})

	assert.Equal(t, 1, logs.FilterMessage("Query failed").Len())
	// Not-found answers are expected and only show up as slow
	assert.Equal(t, 2, logs.FilterMessage("Slow query").Len())
}
