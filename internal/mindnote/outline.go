// Package mindnote maintains the nested outline ("mind note") structure as
// an arena: an id-indexed node map with explicit parent links and sibling
// order indexes, instead of recursively owned subtrees.
package mindnote

import (
	"errors"
	"sort"

	"github.com/sumukeio/sumu-note-sync/internal/notes"
)

var (
	// ErrNodeNotFound indicates the referenced node id is absent.
	ErrNodeNotFound = errors.New("mindnote: node not found")
	// ErrCannotDeleteRoot indicates an attempt to delete the outline root.
	ErrCannotDeleteRoot = errors.New("mindnote: root node cannot be deleted")
	// ErrInvalidMove indicates a move that would detach the root or create
	// a cycle.
	ErrInvalidMove = errors.New("mindnote: invalid move target")
)

// Node is one outline entry. Callers receive value copies; all mutation
// goes through Outline methods.
type Node struct {
	ID         string
	ParentID   string
	Text       string
	OrderIndex int
}

// Outline is the id-indexed arena holding one mind note's node tree.
type Outline struct {
	nodes  map[string]*Node
	rootID string
	ids    notes.IDProvider
}

// NewOutline creates an outline with a single root node.
func NewOutline(rootText string, ids notes.IDProvider) (*Outline, error) {
	if ids == nil {
		ids = notes.NewUUIDProvider()
	}
	rootID, err := ids.NewID()
	if err != nil {
		return nil, err
	}
	outline := &Outline{
		nodes:  map[string]*Node{rootID: {ID: rootID, Text: rootText}},
		rootID: rootID,
		ids:    ids,
	}
	return outline, nil
}

// Root returns a copy of the root node.
func (o *Outline) Root() Node {
	return *o.nodes[o.rootID]
}

// Find returns a copy of the node with the given id.
func (o *Outline) Find(id string) (Node, bool) {
	node, ok := o.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *node, true
}

// Children returns copies of a node's children ordered by order index.
func (o *Outline) Children(parentID string) []Node {
	var children []Node
	for _, node := range o.nodes {
		if node.ID != o.rootID && node.ParentID == parentID {
			children = append(children, *node)
		}
	}
	sort.Slice(children, func(i, j int) bool {
		return children[i].OrderIndex < children[j].OrderIndex
	})
	return children
}

// AddChild appends a new node as the last child of parentID.
func (o *Outline) AddChild(parentID, text string) (Node, error) {
	if _, ok := o.nodes[parentID]; !ok {
		return Node{}, ErrNodeNotFound
	}
	id, err := o.ids.NewID()
	if err != nil {
		return Node{}, err
	}
	node := &Node{
		ID:         id,
		ParentID:   parentID,
		Text:       text,
		OrderIndex: len(o.Children(parentID)),
	}
	o.nodes[id] = node
	return *node, nil
}

// SetText replaces a node's text.
func (o *Outline) SetText(id, text string) error {
	node, ok := o.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	node.Text = text
	return nil
}

// Delete removes a node and its whole subtree, then renumbers the
// remaining siblings 0..n-1. The root cannot be deleted.
func (o *Outline) Delete(id string) error {
	node, ok := o.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	if id == o.rootID {
		return ErrCannotDeleteRoot
	}
	parentID := node.ParentID

	stack := []string{id}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range o.Children(current) {
			stack = append(stack, child.ID)
		}
		delete(o.nodes, current)
	}

	o.renumber(parentID)
	return nil
}

// CanMoveTo reports whether node id may become a child of newParentID. A
// node cannot move under itself or any of its descendants.
func (o *Outline) CanMoveTo(id, newParentID string) bool {
	if _, ok := o.nodes[id]; !ok {
		return false
	}
	if _, ok := o.nodes[newParentID]; !ok {
		return false
	}
	if id == o.rootID {
		return false
	}
	for current := newParentID; current != ""; {
		if current == id {
			return false
		}
		node, ok := o.nodes[current]
		if !ok || current == o.rootID {
			break
		}
		current = node.ParentID
	}
	return true
}

// Move reparents a node, appending it as the last child of the target and
// renumbering both affected sibling lists.
func (o *Outline) Move(id, newParentID string) error {
	if !o.CanMoveTo(id, newParentID) {
		return ErrInvalidMove
	}
	node := o.nodes[id]
	oldParentID := node.ParentID

	nextIndex := len(o.Children(newParentID))
	node.ParentID = newParentID
	node.OrderIndex = nextIndex

	o.renumber(oldParentID)
	o.renumber(newParentID)
	return nil
}

// Depth returns a node's distance from the root, zero-indexed.
func (o *Outline) Depth(id string) (int, error) {
	node, ok := o.nodes[id]
	if !ok {
		return 0, ErrNodeNotFound
	}
	depth := 0
	for node.ID != o.rootID {
		parent, ok := o.nodes[node.ParentID]
		if !ok {
			return 0, ErrNodeNotFound
		}
		node = parent
		depth++
	}
	return depth, nil
}

// Len reports the number of nodes, root included.
func (o *Outline) Len() int {
	return len(o.nodes)
}

func (o *Outline) renumber(parentID string) {
	for i, child := range o.Children(parentID) {
		o.nodes[child.ID].OrderIndex = i
	}
}
