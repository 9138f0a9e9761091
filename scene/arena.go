package scene

import (
	"fmt"
	"slices"
)

// Handle addresses a node in an Arena. The zero Handle is the root.
type Handle uint32

// Root is the handle of the root node.
const Root Handle = 0

// Node is an arena slot.
type Node struct {
	Key      string
	Attrs    Attrs
	Parent   Handle
	Children []Handle
}

// Arena owns the nodes of one tree.
type Arena struct {
	nodes map[Handle]*Node
	byKey map[string]Handle
	next  Handle
}

// NewArena returns an arena holding only the root.
func NewArena() *Arena {
	return &Arena{
		nodes: map[Handle]*Node{Root: {Attrs: Attrs{Opacity: 1, Visible: true}}},
		byKey: map[string]Handle{"": Root},
		next:  Root + 1,
	}
}

// Lookup returns the handle of the node with key.
func (a *Arena) Lookup(key string) (Handle, bool) {
	h, ok := a.byKey[key]
	return h, ok
}

// Node returns the node at h. The returned node must not be modified.
func (a *Arena) Node(h Handle) (*Node, bool) {
	n, ok := a.nodes[h]
	return n, ok
}

// Len returns the number of nodes, root excluded.
func (a *Arena) Len() int { return len(a.nodes) - 1 }

// ChildKeys returns the keys of the children of key, in order.
func (a *Arena) ChildKeys(key string) []string {
	h, ok := a.byKey[key]
	if !ok {
		return nil
	}
	children := a.nodes[h].Children
	keys := make([]string, len(children))
	for i, c := range children {
		keys[i] = a.nodes[c].Key
	}
	return keys
}

// Apply replays ops in order. An op naming an unknown node means the ops
// were not produced against this arena; Apply stops and returns an error.
func (a *Arena) Apply(ops []Op) error {
	for _, op := range ops {
		if err := a.apply(op); err != nil {
			return fmt.Errorf("scene: %s %q: %w", op.Kind, op.Key, err)
		}
	}
	return nil
}

func (a *Arena) apply(op Op) error {
	switch op.Kind {
	case OpAdd:
		if _, exists := a.byKey[op.Key]; exists {
			return fmt.Errorf("duplicate key")
		}
		parent, err := a.parent(op.Parent)
		if err != nil {
			return err
		}
		if op.Index < 0 || op.Index > len(parent.Children) {
			return fmt.Errorf("index %d out of range", op.Index)
		}
		h := a.next
		a.next++
		a.nodes[h] = &Node{Key: op.Key, Attrs: op.Attrs, Parent: a.byKey[op.Parent]}
		a.byKey[op.Key] = h
		parent.Children = slices.Insert(parent.Children, op.Index, h)

	case OpRemove:
		h, ok := a.byKey[op.Key]
		if !ok || h == Root {
			return fmt.Errorf("no such node")
		}
		parent := a.nodes[a.nodes[h].Parent]
		parent.Children = slices.DeleteFunc(parent.Children, func(c Handle) bool { return c == h })
		a.release(h)

	case OpUpdate:
		h, ok := a.byKey[op.Key]
		if !ok {
			return fmt.Errorf("no such node")
		}
		a.nodes[h].Attrs = op.Attrs

	case OpMove:
		h, ok := a.byKey[op.Key]
		if !ok || h == Root {
			return fmt.Errorf("no such node")
		}
		parent := a.nodes[a.nodes[h].Parent]
		i := slices.Index(parent.Children, h)
		parent.Children = slices.Delete(parent.Children, i, i+1)
		if op.Index < 0 || op.Index > len(parent.Children) {
			return fmt.Errorf("index %d out of range", op.Index)
		}
		parent.Children = slices.Insert(parent.Children, op.Index, h)

	default:
		return fmt.Errorf("unknown op")
	}
	return nil
}

func (a *Arena) parent(key string) (*Node, error) {
	h, ok := a.byKey[key]
	if !ok {
		return nil, fmt.Errorf("no parent %q", key)
	}
	return a.nodes[h], nil
}

// release frees h and its whole subtree.
func (a *Arena) release(h Handle) {
	n := a.nodes[h]
	for _, c := range n.Children {
		a.release(c)
	}
	delete(a.byKey, n.Key)
	delete(a.nodes, h)
}

// Walk visits every node below the root depth first, parents before
// children, in sibling order.
func (a *Arena) Walk(fn func(h Handle, n *Node, depth int)) {
	var walk func(h Handle, depth int)
	walk = func(h Handle, depth int) {
		for _, c := range a.nodes[h].Children {
			fn(c, a.nodes[c], depth)
			walk(c, depth+1)
		}
	}
	walk(Root, 0)
}
