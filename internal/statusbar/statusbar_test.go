package statusbar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_MiddleStep(t *testing.T) {
	nodes := Render([]string{"A", "B", "C"}, "B")

	require.Len(t, nodes, 3)
	assert.True(t, nodes[0].Reached)
	assert.True(t, nodes[1].Reached)
	assert.False(t, nodes[2].Reached)

	assert.True(t, nodes[0].ConnectorActive)
	assert.True(t, nodes[1].ConnectorActive)
	assert.False(t, nodes[2].ConnectorActive)

	assert.Equal(t, []string{"A", "B", "C"}, []string{nodes[0].Label, nodes[1].Label, nodes[2].Label})
	assert.Equal(t, 1, nodes[0].Number)
	assert.True(t, nodes[2].Last)
	assert.False(t, nodes[1].Last)
}

func TestRender_UnknownCurrentStep(t *testing.T) {
	var nodes []Node
	assert.NotPanics(t, func() { nodes = Render([]string{"A", "B", "C"}, "Z") })

	for _, n := range nodes {
		assert.False(t, n.Reached, n.Label)
		assert.False(t, n.ConnectorActive, n.Label)
	}
}

func TestRender_SingleStep(t *testing.T) {
	nodes := Render([]string{"Only"}, "Only")

	require.Len(t, nodes, 1)
	assert.True(t, nodes[0].Reached)
	assert.True(t, nodes[0].Last)
}

func TestRender_LastStepReachesAll(t *testing.T) {
	for _, n := range Render([]string{"A", "B", "C"}, "C") {
		assert.True(t, n.Reached, n.Label)
	}
}

func TestRender_DuplicateLabelsUseFirstMatch(t *testing.T) {
	nodes := Render([]string{"A", "B", "A", "C"}, "A")

	assert.True(t, nodes[0].Reached)
	assert.False(t, nodes[1].Reached)
	assert.False(t, nodes[2].Reached)
	assert.False(t, nodes[3].Reached)
}

func TestRender_Empty(t *testing.T) {
	assert.Empty(t, Render(nil, "A"))
}

func TestIndexOf(t *testing.T) {
	assert.Equal(t, 1, IndexOf([]string{"A", "B"}, "B"))
	assert.Equal(t, -1, IndexOf([]string{"A", "B"}, "Z"))
}
