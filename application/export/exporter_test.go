package export

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"canvas-backend/application/ports"
	"canvas-backend/application/ports/mocks"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
	"canvas-backend/pkg/observability"
)

func TestMarkdownExport_OrdersMessages(t *testing.T) {
	// Arrange
	h := newHistory(t, "Ordering")
	c := entities.NewChatMessage(h.session.ID(), valueobjects.RoleUser, "C")
	c.Timestamp = baseTime.Add(2 * time.Second)
	a := entities.NewChatMessage(h.session.ID(), valueobjects.RoleUser, "A")
	a.Timestamp = baseTime
	b := entities.NewChatMessage(h.session.ID(), valueobjects.RoleAssistant, "B")
	b.Timestamp = baseTime.Add(time.Second)
	for _, m := range []*entities.ChatMessage{c, a, b} {
		h.append(t, m)
	}
	exporter := NewMarkdownExporter(h.pipeline())

	// Act
	doc, err := exporter.Export(h.ctx, h.id(), ExportOptions{})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "# Ordering\n\n## User\n\nA\n\n## Assistant\n\nB\n\n## User\n\nC\n", doc.Body)
	assert.Equal(t, 3, doc.MessageCount)
	assert.Equal(t, FormatMarkdown, doc.Format)
	assert.Equal(t, ContentTypeMarkdown, doc.ContentType)
	assert.Equal(t, h.session.ID(), doc.SessionID)
	assert.False(t, doc.Cached)
}

func TestExport_IsDeterministic(t *testing.T) {
	h := newHistory(t, "Stable")
	h.addContext(t, valueobjects.NewNodeID(), "imported")
	h.add(t, "user", "question")
	h.add(t, "assistant", "answer")

	for _, exporter := range []*Exporter{NewMarkdownExporter(h.pipeline()), NewDiagramExporter(h.pipeline())} {
		first, err := exporter.Export(h.ctx, h.id(), ExportOptions{})
		require.NoError(t, err)
		second, err := exporter.Export(h.ctx, h.id(), ExportOptions{})
		require.NoError(t, err)

		assert.Equal(t, first.Body, second.Body, string(exporter.Format()))
	}
}

func TestExport_Errors(t *testing.T) {
	h := newHistory(t, "Errors")
	exporter := NewMarkdownExporter(h.pipeline())

	t.Run("malformed session id", func(t *testing.T) {
		doc, err := exporter.Export(h.ctx, "not-a-uuid", ExportOptions{})

		assert.Nil(t, doc)
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("unknown session", func(t *testing.T) {
		doc, err := exporter.Export(h.ctx, valueobjects.NewSessionID().String(), ExportOptions{})

		assert.Nil(t, doc)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeSessionNotFound))
	})

	t.Run("no messages", func(t *testing.T) {
		doc, err := exporter.Export(h.ctx, h.id(), ExportOptions{})

		assert.Nil(t, doc)
		assert.True(t, pkgerrors.IsNoMessages(err))
	})

	t.Run("invalid options", func(t *testing.T) {
		doc, err := NewDiagramExporter(h.pipeline()).Export(h.ctx, h.id(), ExportOptions{Direction: "XX"})

		assert.Nil(t, doc)
		assert.True(t, pkgerrors.IsValidation(err))
	})
}

func TestExport_AllowEmpty(t *testing.T) {
	h := newHistory(t, "")
	exporter := NewMarkdownExporter(h.pipeline())

	doc, err := exporter.Export(h.ctx, h.id(), ExportOptions{AllowEmpty: true})

	require.NoError(t, err)
	assert.Equal(t, 0, doc.MessageCount)
	assert.Contains(t, doc.Body, "_No messages._")
	assert.Equal(t, "Chat session "+h.id(), doc.Title)
}

func TestExport_OnlyBlankMessages(t *testing.T) {
	h := newHistory(t, "Blank")
	h.add(t, "user", "   ")
	h.add(t, "assistant", "<|endoftext|>")
	exporter := NewMarkdownExporter(h.pipeline())

	_, err := exporter.Export(h.ctx, h.id(), ExportOptions{})
	assert.True(t, pkgerrors.IsNoMessages(err))

	doc, err := exporter.Export(h.ctx, h.id(), ExportOptions{AllowEmpty: true})
	require.NoError(t, err)
	assert.Equal(t, 0, doc.MessageCount)
}

func TestExport_AssemblesStreamedReplies(t *testing.T) {
	h := newHistory(t, "Streamed")
	h.add(t, "user", "tell me a story")
	h.addChunk(t, "reply-1", 2, "happily ever after.<|im_end|>")
	h.addChunk(t, "reply-1", 0, "Once upon a time, ")
	h.addChunk(t, "reply-1", 1, "they lived ")
	h.add(t, "user", "thanks")

	doc, err := NewMarkdownExporter(h.pipeline()).Export(h.ctx, h.id(), ExportOptions{Title: "Story"})

	require.NoError(t, err)
	assert.Equal(t, "# Story\n\n## User\n\ntell me a story\n"+
		"\n## Assistant\n\nOnce upon a time, they lived happily ever after.\n"+
		"\n## User\n\nthanks\n", doc.Body)
	assert.Equal(t, 3, doc.MessageCount)
}

func TestDiagramExport_PairMode(t *testing.T) {
	h := newHistory(t, "Pairs")
	h.add(t, "user", "q1")
	h.add(t, "assistant", "a1")
	h.add(t, "user", "q2")
	h.add(t, "assistant", "a2")

	doc, err := NewDiagramExporter(h.pipeline()).Export(h.ctx, h.id(), ExportOptions{PairMode: true})

	require.NoError(t, err)
	assert.Equal(t, ContentTypeMermaid, doc.ContentType)
	assert.Equal(t, "%% Pairs\nflowchart TD\n"+
		"    m0[\"User: q1<br/>Assistant: a1\"]\n"+
		"    m1[\"User: q2<br/>Assistant: a2\"]\n"+
		"    m0 --> m1\n", doc.Body)
}

func TestExport_Limits(t *testing.T) {
	h := newHistory(t, "Limits")
	h.add(t, "user", "first message")
	h.add(t, "assistant", "second message")
	h.add(t, "user", "third message")

	doc, err := NewMarkdownExporter(h.pipeline()).Export(h.ctx, h.id(), ExportOptions{MaxMessages: 2, MaxMessageRunes: 7})

	require.NoError(t, err)
	assert.Equal(t, 2, doc.MessageCount)
	assert.NotContains(t, doc.Body, "first")
	assert.Contains(t, doc.Body, "second…")
	assert.Contains(t, doc.Body, "third…")
}

func TestExport_LimitCountsOnlyNonEmptyMessages(t *testing.T) {
	h := newHistory(t, "Budget")
	h.add(t, "user", "A")
	h.add(t, "assistant", "B")
	h.add(t, "assistant", "[DONE]")
	h.addChunk(t, "reply-9", 0, "<|im_end|>")

	doc, err := NewMarkdownExporter(h.pipeline()).Export(h.ctx, h.id(), ExportOptions{MaxMessages: 2})

	require.NoError(t, err)
	assert.Equal(t, 2, doc.MessageCount)
	assert.Equal(t, "# Budget\n\n## User\n\nA\n\n## Assistant\n\nB\n", doc.Body)
}

func TestExport_TruncationNeverLeaksControlTokens(t *testing.T) {
	h := newHistory(t, "Tokens")
	h.add(t, "assistant", "abcdefgh<|im_end|>")

	doc, err := NewMarkdownExporter(h.pipeline()).Export(h.ctx, h.id(), ExportOptions{MaxMessageRunes: 12})

	require.NoError(t, err)
	assert.Contains(t, doc.Body, "\nabcdefgh\n")
	assert.NotContains(t, doc.Body, "<|")
}

func TestExport_Cache(t *testing.T) {
	// Arrange
	h := newHistory(t, "Cached")
	h.add(t, "user", "hello")

	var stored []byte
	cache := new(mocks.MockCache)
	cache.On("Get", mock.Anything, mock.Anything).Return(nil, false).Once()
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything, 5*time.Minute).
		Run(func(args mock.Arguments) { stored = args.Get(2).([]byte) }).
		Return(nil).Once()

	metrics := observability.NewCollector("test")
	exporter := NewMarkdownExporter(h.pipeline(), WithCache(cache, 5*time.Minute), WithMetrics(metrics))

	// Act: miss
	first, err := exporter.Export(h.ctx, h.id(), ExportOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, stored)

	// Act: hit
	cache.On("Get", mock.Anything, mock.Anything).Return(stored, true).Once()
	second, err := exporter.Export(h.ctx, h.id(), ExportOptions{})

	// Assert
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Body, second.Body)
	cache.AssertExpectations(t)

	key := cache.Calls[0].Arguments.String(1)
	assert.Equal(t, key, cache.Calls[2].Arguments.String(1))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheMisses))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Exports.WithLabelValues("markdown", "ok")))
}

func TestExport_CorruptCacheEntryIsIgnored(t *testing.T) {
	h := newHistory(t, "Corrupt")
	h.add(t, "user", "hello")

	cache := new(mocks.MockCache)
	cache.On("Get", mock.Anything, mock.Anything).Return([]byte("{not json"), true)
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("full"))

	doc, err := NewMarkdownExporter(h.pipeline(), WithCache(cache, time.Minute)).Export(h.ctx, h.id(), ExportOptions{})

	require.NoError(t, err)
	assert.False(t, doc.Cached)
	assert.Contains(t, doc.Body, "hello")
}

func TestCacheKey(t *testing.T) {
	h := newHistory(t, "Keys")
	m1 := h.add(t, "user", "one")
	base := CacheKey(h.session.ID(), FormatMarkdown, ExportOptions{}, []*entities.ChatMessage{m1})

	assert.Equal(t, base, CacheKey(h.session.ID(), FormatMarkdown, ExportOptions{}, []*entities.ChatMessage{m1}))
	assert.Contains(t, base, "export:"+h.id()+":")

	m2 := h.add(t, "assistant", "two")
	assert.NotEqual(t, base, CacheKey(h.session.ID(), FormatMarkdown, ExportOptions{}, []*entities.ChatMessage{m1, m2}))
	assert.NotEqual(t, base, CacheKey(h.session.ID(), FormatDiagram, ExportOptions{}, []*entities.ChatMessage{m1}))
	assert.NotEqual(t, base, CacheKey(h.session.ID(), FormatMarkdown, ExportOptions{Title: "x"}, []*entities.ChatMessage{m1}))
}

func TestExport_Summary(t *testing.T) {
	// Arrange
	h := newHistory(t, "Summarized")
	h.add(t, "user", "What is Go?")
	h.add(t, "assistant", "A programming language.")

	reader := new(mocks.MockChunkReader)
	reader.On("Recv").Return("A short chat ", nil).Once()
	reader.On("Recv").Return("about Go.", nil).Once()
	reader.On("Recv").Return("", io.EOF).Once()
	reader.On("Close").Return(nil)

	completer := new(mocks.MockCompleter)
	completer.On("Stream", mock.Anything, mock.MatchedBy(func(p ports.Prompt) bool {
		return len(p.Messages) == 1 &&
			p.Messages[0].Content == "User: What is Go?\n\nAssistant: A programming language."
	})).Return(reader, nil)

	pipeline := h.pipeline()
	summarizer := NewSummarizer(completer, pipeline.Stream(), time.Second, nil)
	exporter := NewMarkdownExporter(pipeline, WithSummarizer(summarizer))

	// Act
	doc, err := exporter.Export(h.ctx, h.id(), ExportOptions{Summary: true})

	// Assert
	require.NoError(t, err)
	assert.Contains(t, doc.Body, "## Summary\n\nA short chat about Go.\n")
	completer.AssertExpectations(t)
	reader.AssertExpectations(t)
}

func TestExport_SummaryFailureStillExports(t *testing.T) {
	h := newHistory(t, "Unsummarized")
	h.add(t, "user", "hi")

	completer := new(mocks.MockCompleter)
	completer.On("Stream", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	pipeline := h.pipeline()
	exporter := NewMarkdownExporter(pipeline, WithSummarizer(NewSummarizer(completer, pipeline.Stream(), 0, nil)))

	doc, err := exporter.Export(h.ctx, h.id(), ExportOptions{Summary: true})

	require.NoError(t, err)
	assert.NotContains(t, doc.Body, "## Summary")

	// Summary stays off unless asked for
	_, err = exporter.Export(h.ctx, h.id(), ExportOptions{})
	require.NoError(t, err)
	completer.AssertNumberOfCalls(t, "Stream", 1)
}

func TestExport_SummaryFailureIsNotCached(t *testing.T) {
	// Arrange
	h := newHistory(t, "Retry Summary")
	h.add(t, "user", "hi")

	completer := new(mocks.MockCompleter)
	completer.On("Stream", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	cache := new(mocks.MockCache)
	cache.On("Get", mock.Anything, mock.Anything).Return(nil, false)

	pipeline := h.pipeline()
	exporter := NewMarkdownExporter(pipeline,
		WithCache(cache, time.Minute),
		WithSummarizer(NewSummarizer(completer, pipeline.Stream(), 0, nil)),
	)

	// Act
	first, err := exporter.Export(h.ctx, h.id(), ExportOptions{Summary: true})
	require.NoError(t, err)
	second, err := exporter.Export(h.ctx, h.id(), ExportOptions{Summary: true})
	require.NoError(t, err)

	// Assert
	assert.False(t, first.Cached)
	assert.False(t, second.Cached)
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	completer.AssertNumberOfCalls(t, "Stream", 2)
}

func TestSummarizer_NilCompleter(t *testing.T) {
	s := NewSummarizer(nil, NewStreamProcessor(), 0, nil)

	summary, err := s.Summarize(context.Background(), []Exchange{{Role: valueobjects.RoleUser, Content: "x"}})

	require.NoError(t, err)
	assert.Empty(t, summary)
}
