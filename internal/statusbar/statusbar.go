// Package statusbar computes the visual state of a multi-step progress indicator.
package statusbar

// Node is the render state of one step.
type Node struct {
	Number int
	Label  string
	// Reached marks the node as emphasized.
	Reached bool
	// ConnectorActive emphasizes the bar after the node. It is inert on the last node.
	ConnectorActive bool
	Last            bool
}

// IndexOf returns the first position of current in steps, or -1.
func IndexOf(steps []string, current string) int {
	for i, s := range steps {
		if s == current {
			return i
		}
	}
	return -1
}

// Render returns one node per step in the given order. A node at position i is
// reached iff the index of current is >= i, so an unknown current step
// reaches nothing.
func Render(steps []string, current string) []Node {
	currentIndex := IndexOf(steps, current)
	nodes := make([]Node, len(steps))
	for i, label := range steps {
		reached := currentIndex >= i
		nodes[i] = Node{
			Number:          i + 1,
			Label:           label,
			Reached:         reached,
			ConnectorActive: reached,
			Last:            i == len(steps)-1,
		}
	}
	return nodes
}
