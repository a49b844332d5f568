package export

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"canvas-backend/application/ports"
	pkgerrors "canvas-backend/pkg/errors"
)

// controlTokens are model markers that must never reach an export
var controlTokens = []string{
	"<|endoftext|>",
	"<|im_start|>",
	"<|im_end|>",
	"[DONE]",
	"<s>",
	"</s>",
}

var controlReplacer = newControlReplacer()

func newControlReplacer() *strings.Replacer {
	pairs := make([]string, 0, len(controlTokens)*2+4)
	// CRLF first so a lone CR left behind is handled below
	pairs = append(pairs, "\r\n", "\n")
	for _, t := range controlTokens {
		pairs = append(pairs, t, "")
	}
	pairs = append(pairs, "\r", "\n")
	return strings.NewReplacer(pairs...)
}

// cleanText strips control tokens, normalizes line endings and trims
func cleanText(text string) string {
	return strings.TrimSpace(controlReplacer.Replace(text))
}

// StreamProcessor assembles streamed output into finished text
type StreamProcessor struct{}

// NewStreamProcessor creates a new stream processor
func NewStreamProcessor() *StreamProcessor {
	return &StreamProcessor{}
}

// Clean strips control tokens and normalizes line endings
func (p *StreamProcessor) Clean(text string) string {
	return cleanText(text)
}

// Finalize assembles streamed exchanges in chunk-index order, cleans every
// exchange and drops those left empty. Order is preserved. maxRunes limits
// assembled replies the same way Prepare limits plain messages.
func (p *StreamProcessor) Finalize(ctx context.Context, exchanges []Exchange, maxRunes int) ([]Exchange, error) {
	out := make([]Exchange, 0, len(exchanges))
	for _, ex := range exchanges {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}

		if ex.Streamed() {
			parts := make([]Part, len(ex.Parts))
			copy(parts, ex.Parts)
			sort.SliceStable(parts, func(i, j int) bool { return parts[i].Index < parts[j].Index })

			var b strings.Builder
			for _, part := range parts {
				b.WriteString(part.Text)
			}
			ex.Content = Truncate(p.Clean(b.String()), maxRunes)
			ex.StreamID = ""
			ex.Parts = nil
		} else {
			ex.Content = p.Clean(ex.Content)
		}

		if ex.Content == "" {
			continue
		}
		out = append(out, ex)
	}
	return out, nil
}

// Assemble drains a live completion stream into cleaned text
func (p *StreamProcessor) Assemble(ctx context.Context, r ports.ChunkReader) (string, error) {
	defer r.Close()

	var b strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return "", cancelled(err)
		}
		chunk, err := r.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", pkgerrors.NewExternalError("completion stream", err)
		}
		b.WriteString(chunk)
	}
	return p.Clean(b.String()), nil
}

func cancelled(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.NewTimeoutError("export").WithCause(err)
	}
	return pkgerrors.NewUnavailableError("export").WithCause(err)
}
