package outside

// Node is a minimal Element implementation for headless hosts and tests.
//
// Each node has a logical parent. Nodes created with Portal are physically
// detached (for example mounted in a root overlay layer) but keep the
// creating node as their logical parent, so containment still holds.
type Node struct {
	name     string
	parent   *Node
	portaled bool
}

// NewNode creates a node under parent. A nil parent creates a root.
func NewNode(name string, parent *Node) *Node {
	return &Node{name: name, parent: parent}
}

// Child creates a regular child node.
func (n *Node) Child(name string) *Node {
	return NewNode(name, n)
}

// Portal creates a child rendered outside n's physical subtree.
func (n *Node) Portal(name string) *Node {
	return &Node{name: name, parent: n, portaled: true}
}

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// Portaled reports whether the node was created through Portal.
func (n *Node) Portaled() bool { return n.portaled }

// Contains reports whether other is n or a logical descendant of n.
func (n *Node) Contains(other Element) bool {
	o, ok := other.(*Node)
	if !ok || o == nil || n == nil {
		return false
	}
	for cur := o; cur != nil; cur = cur.parent {
		if cur == n {
			return true
		}
	}
	return false
}

func (n *Node) String() string { return n.name }
