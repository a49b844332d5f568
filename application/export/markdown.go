package export

import (
	"strings"
)

// MarkdownRenderer writes a session as a linear Markdown document
type MarkdownRenderer struct{}

func (MarkdownRenderer) Format() Format      { return FormatMarkdown }
func (MarkdownRenderer) ContentType() string { return ContentTypeMarkdown }

// Render emits a title, an optional summary and one section per exchange
func (MarkdownRenderer) Render(doc *Document) (string, error) {
	var b strings.Builder

	b.WriteString("# ")
	b.WriteString(singleLine(doc.Title))
	b.WriteString("\n")

	if doc.Summary != "" {
		b.WriteString("\n## Summary\n\n")
		b.WriteString(doc.Summary)
		b.WriteString("\n")
	}

	if len(doc.Exchanges) == 0 {
		b.WriteString("\n_No messages._\n")
		return b.String(), nil
	}

	for _, ex := range doc.Exchanges {
		b.WriteString("\n## ")
		b.WriteString(ex.Role.Label())
		b.WriteString("\n\n")
		if len(ex.SourceNodeIDs) > 0 {
			b.WriteString("_Context from node ")
			b.WriteString(strings.Join(ex.SourceNodeIDs, ", "))
			b.WriteString("_\n\n")
		}
		b.WriteString(ex.Content)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// singleLine collapses all whitespace runs to one space
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
