package export

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-backend/domain/core/valueobjects"
)

func sampleDocument() *Document {
	return &Document{
		Title: "Trip\nplanning",
		Exchanges: []Exchange{
			{Role: valueobjects.RoleContext, Content: "Lisbon guide", SourceNodeIDs: []string{"0f8fad5b-d9cb-469f-a165-70867728950e"}},
			{Role: valueobjects.RoleUser, Content: "Where should I eat?"},
			{Role: valueobjects.RoleAssistant, Content: "Try the \"Time Out\" market."},
		},
	}
}

func TestMarkdownRenderer(t *testing.T) {
	body, err := MarkdownRenderer{}.Render(sampleDocument())

	require.NoError(t, err)
	want := "# Trip planning\n" +
		"\n## Context\n\n_Context from node 0f8fad5b-d9cb-469f-a165-70867728950e_\n\nLisbon guide\n" +
		"\n## User\n\nWhere should I eat?\n" +
		"\n## Assistant\n\nTry the \"Time Out\" market.\n"
	assert.Equal(t, want, body)
}

func TestMarkdownRenderer_SummaryAndEmpty(t *testing.T) {
	body, err := MarkdownRenderer{}.Render(&Document{Title: "Empty", Summary: "Nothing yet."})

	require.NoError(t, err)
	assert.Equal(t, "# Empty\n\n## Summary\n\nNothing yet.\n\n_No messages._\n", body)
}

func TestDiagramRenderer(t *testing.T) {
	body, err := DiagramRenderer{LabelRunes: 60}.Render(sampleDocument())

	require.NoError(t, err)
	want := strings.Join([]string{
		"%% Trip planning",
		"flowchart TD",
		`    m0["Context: Lisbon guide"]`,
		`    m1["User: Where should I eat?"]`,
		`    m2["Assistant: Try the #quot;Time Out#quot; market."]`,
		`    s0[("node 0f8fad5b")]`,
		"    m0 --> m1",
		"    m1 --> m2",
		"    s0 -.-> m0",
	}, "\n") + "\n"
	assert.Equal(t, want, body)
}

func TestDiagramRenderer_PairMode(t *testing.T) {
	doc := sampleDocument()
	doc.Options = ExportOptions{PairMode: true, Direction: DirectionLeftRight}

	body, err := DiagramRenderer{LabelRunes: 10}.Render(doc)

	require.NoError(t, err)
	assert.Contains(t, body, "flowchart LR\n")
	assert.Contains(t, body, `    m1["User: Where sho…<br/>Assistant: Try the #quot;…"]`)
	assert.Contains(t, body, "    m0 --> m1\n")
	assert.NotContains(t, body, "m2")
}

func TestDiagramRenderer_EmptyAndInvalidDirection(t *testing.T) {
	body, err := DiagramRenderer{}.Render(&Document{Title: "T"})
	require.NoError(t, err)
	assert.Equal(t, "%% T\nflowchart TD\n    empty[\"No messages\"]\n", body)

	_, err = DiagramRenderer{}.Render(&Document{Title: "T", Options: ExportOptions{Direction: "BT"}})
	assert.Error(t, err)
}

func TestDiagramRenderer_Summary(t *testing.T) {
	doc := sampleDocument()
	doc.Summary = "Food <tips>"

	body, err := DiagramRenderer{}.Render(doc)

	require.NoError(t, err)
	assert.Contains(t, body, `    summary["Summary: Food #lt;tips#gt;"]`)
	assert.Contains(t, body, "    m2 -.- summary\n")
}

func TestRenderers_StoredRolesStayOnOneLine(t *testing.T) {
	doc := &Document{
		Title: "Roles",
		Exchanges: []Exchange{
			{Role: "élève", Content: "bonjour"},
			{Role: "x\n## injected", Content: "hi"},
		},
	}

	markdown, err := MarkdownRenderer{}.Render(doc)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(markdown))
	assert.Equal(t, "# Roles\n\n## Élève\n\nbonjour\n\n## X ## injected\n\nhi\n", markdown)

	diagram, err := DiagramRenderer{LabelRunes: 60}.Render(doc)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(diagram))
	assert.Contains(t, diagram, `    m0["Élève: bonjour"]`)
	assert.Contains(t, diagram, `    m1["X ## injected: hi"]`)
}
