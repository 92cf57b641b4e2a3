package model

import (
	"bytes"
	"fmt"
	"sort"
)

// NodeKind says what a TreeNode points at.
type NodeKind uint8

const (
	KindBlob NodeKind = 1
	KindTree NodeKind = 2
)

func (k NodeKind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindTree:
		return "tree"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid is true for the known kinds.
func (k NodeKind) Valid() bool {
	return k == KindBlob || k == KindTree
}

// A TreeNode is one named entry of a tree. Data optionally holds the content
// inline; it is nil when absent.
type TreeNode struct {
	Name string
	Kind NodeKind
	ID   Sha1
	Data []byte
}

// Equal compares every field, treating nil and empty Data alike.
func (n TreeNode) Equal(o TreeNode) bool {
	return n.Name == o.Name &&
		n.Kind == o.Kind &&
		n.ID == o.ID &&
		bytes.Equal(n.Data, o.Data)
}

// A TreeNodeMap is the content of a tree: nodes keyed by their name.
// The zero value is an empty map ready to use.
type TreeNodeMap struct {
	nodes map[string]TreeNode
}

// NewTreeNodeMap builds a map from the given nodes. It fails if a node is
// invalid or if two nodes share a name.
func NewTreeNodeMap(nodes ...TreeNode) (TreeNodeMap, error) {
	var m TreeNodeMap
	for _, n := range nodes {
		if err := m.Add(n); err != nil {
			return TreeNodeMap{}, err
		}
	}
	return m, nil
}

// Add inserts n. Adding a name that is already present is an error; use
// Remove first to replace an entry.
func (m *TreeNodeMap) Add(n TreeNode) error {
	if n.Name == "" {
		return &InvalidError{Field: "tree node name", Reason: "empty"}
	}
	if !n.Kind.Valid() {
		return &InvalidError{Field: "tree node kind", Reason: n.Kind.String()}
	}
	if _, ok := m.nodes[n.Name]; ok {
		return &InvalidError{Field: "tree node name", Reason: fmt.Sprintf("duplicate %q", n.Name)}
	}
	if len(n.Data) == 0 {
		n.Data = nil
	}
	if m.nodes == nil {
		m.nodes = make(map[string]TreeNode)
	}
	m.nodes[n.Name] = n
	return nil
}

// Remove deletes the node with the given name, if any.
func (m *TreeNodeMap) Remove(name string) {
	delete(m.nodes, name)
}

// Get returns the node with the given name.
func (m TreeNodeMap) Get(name string) (TreeNode, bool) {
	n, ok := m.nodes[name]
	return n, ok
}

// Len is the number of nodes.
func (m TreeNodeMap) Len() int { return len(m.nodes) }

// Nodes returns the nodes sorted by name. This is the canonical order
// used for serialization.
func (m TreeNodeMap) Nodes() []TreeNode {
	result := make([]TreeNode, 0, len(m.nodes))
	for _, n := range m.nodes {
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Equal is true if both maps hold the same nodes.
func (m TreeNodeMap) Equal(o TreeNodeMap) bool {
	if len(m.nodes) != len(o.nodes) {
		return false
	}
	for name, n := range m.nodes {
		other, ok := o.nodes[name]
		if !ok || !n.Equal(other) {
			return false
		}
	}
	return true
}
