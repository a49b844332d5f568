package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/domain/events"
)

func TestNewEdge(t *testing.T) {
	graphID := valueobjects.NewGraphID()
	source := valueobjects.NewNodeID()
	target := valueobjects.NewNodeID()
	colors := "  #ff0000  "

	edge, err := NewEdge(graphID, source, target, &colors)

	require.NoError(t, err)
	assert.NotEmpty(t, edge.ID())
	assert.Equal(t, graphID, edge.GraphID())
	assert.True(t, edge.SourceID().Equals(source))
	assert.True(t, edge.TargetID().Equals(target))
	assert.False(t, edge.IsSelfLoop())
	require.NotNil(t, edge.Colors())
	assert.Equal(t, "#ff0000", *edge.Colors())

	evts := edge.GetUncommittedEvents()
	require.Len(t, evts, 1)
	assert.Equal(t, events.TypeEdgeCreated, evts[0].GetEventType())
}

func TestNewEdge_BlankColorsAreUnset(t *testing.T) {
	blank := "   "

	edge, err := NewEdge(valueobjects.NewGraphID(), valueobjects.NewNodeID(), valueobjects.NewNodeID(), &blank)

	require.NoError(t, err)
	assert.Nil(t, edge.Colors())
}

func TestNewEdge_SelfLoopAllowed(t *testing.T) {
	node := valueobjects.NewNodeID()

	edge, err := NewEdge(valueobjects.NewGraphID(), node, node, nil)

	require.NoError(t, err)
	assert.True(t, edge.IsSelfLoop())
}

func TestNewEdge_RequiresEndpoints(t *testing.T) {
	_, err := NewEdge(valueobjects.NewGraphID(), valueobjects.NodeID(""), valueobjects.NewNodeID(), nil)
	assert.Error(t, err)

	_, err = NewEdge("", valueobjects.NewNodeID(), valueobjects.NewNodeID(), nil)
	assert.Error(t, err)
}

func TestEdge_ColorsReturnsCopy(t *testing.T) {
	c := "blue"
	edge, err := NewEdge(valueobjects.NewGraphID(), valueobjects.NewNodeID(), valueobjects.NewNodeID(), &c)
	require.NoError(t, err)

	*edge.Colors() = "red"

	assert.Equal(t, "blue", *edge.Colors())
}
