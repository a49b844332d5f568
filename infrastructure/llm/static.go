package llm

import (
	"context"
	"io"
	"strings"

	"canvas-backend/application/ports"
)

// StaticCompleter replays fixed chunks. It stands in for a model in local
// runs and tests.
type StaticCompleter struct {
	Chunks []string
	Err    error
}

var _ ports.Completer = (*StaticCompleter)(nil)

// NewStaticCompleter splits text on whitespace boundaries into chunks
func NewStaticCompleter(text string) *StaticCompleter {
	var chunks []string
	for _, word := range strings.SplitAfter(text, " ") {
		if word != "" {
			chunks = append(chunks, word)
		}
	}
	return &StaticCompleter{Chunks: chunks}
}

func (c *StaticCompleter) Stream(ctx context.Context, prompt ports.Prompt) (ports.ChunkReader, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return &sliceReader{ctx: ctx, chunks: append([]string(nil), c.Chunks...)}, nil
}

type sliceReader struct {
	ctx    context.Context
	chunks []string
}

func (r *sliceReader) Recv() (string, error) {
	if err := r.ctx.Err(); err != nil {
		return "", err
	}
	if len(r.chunks) == 0 {
		return "", io.EOF
	}
	chunk := r.chunks[0]
	r.chunks = r.chunks[1:]
	return chunk, nil
}

func (r *sliceReader) Close() error { return nil }
