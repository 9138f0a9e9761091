// Package scene keeps the retained node tree of the canvas as an arena.
//
// Nodes live in an Arena and are addressed by Handle; a parent owns its
// children through a handle list, so ownership is strictly tree shaped.
// The tree is never edited directly: callers describe the tree they want
// as a []Desc, Diff compares it with the previous description and emits an
// ordered list of Ops, and Arena.Apply replays them. The diff step needs no
// rendering backend and is tested on its own.
package scene

import (
	"slices"

	"github.com/gogpu/canvas/geom"
)

// Attrs are the visual attributes of a node.
type Attrs struct {
	Position geom.Coord
	Opacity  float64
	Visible  bool
}

// Desc declares one node and its children. Keys must be unique across the
// whole description.
type Desc struct {
	Key      string
	Attrs    Attrs
	Children []Desc
}

// OpKind identifies a tree edit.
type OpKind uint8

// Tree edits.
const (
	// OpRemove removes a node and its subtree.
	OpRemove OpKind = iota
	// OpAdd inserts a new node under Parent at Index.
	OpAdd
	// OpUpdate changes a node's attributes.
	OpUpdate
	// OpMove moves an existing node to Index among its siblings.
	OpMove
)

func (k OpKind) String() string {
	switch k {
	case OpRemove:
		return "remove"
	case OpAdd:
		return "add"
	case OpUpdate:
		return "update"
	case OpMove:
		return "move"
	default:
		return "unknown"
	}
}

// Op is one edit of the tree. Parent is "" for the root.
type Op struct {
	Kind   OpKind
	Key    string
	Parent string
	Index  int
	Attrs  Attrs
}

// Diff returns the edits turning the children old of parent into next.
// Removals come first, then additions, moves and updates in the order of
// next, then the edits of each subtree.
func Diff(parent string, old, next []Desc) []Op {
	var ops []Op

	oldByKey := make(map[string]*Desc, len(old))
	for i := range old {
		oldByKey[old[i].Key] = &old[i]
	}
	nextKeys := make(map[string]bool, len(next))
	for _, n := range next {
		nextKeys[n.Key] = true
	}

	// cur tracks the sibling order as the ops are applied.
	cur := make([]string, 0, len(old))
	for _, o := range old {
		if nextKeys[o.Key] {
			cur = append(cur, o.Key)
			continue
		}
		ops = append(ops, Op{Kind: OpRemove, Key: o.Key, Parent: parent})
	}

	for i, n := range next {
		o, existed := oldByKey[n.Key]
		switch {
		case !existed:
			ops = append(ops, Op{Kind: OpAdd, Key: n.Key, Parent: parent, Index: i, Attrs: n.Attrs})
			cur = slices.Insert(cur, i, n.Key)
		case cur[i] != n.Key:
			ops = append(ops, Op{Kind: OpMove, Key: n.Key, Parent: parent, Index: i})
			j := slices.Index(cur, n.Key)
			cur = slices.Delete(cur, j, j+1)
			cur = slices.Insert(cur, i, n.Key)
		}
		if existed && o.Attrs != n.Attrs {
			ops = append(ops, Op{Kind: OpUpdate, Key: n.Key, Parent: parent, Attrs: n.Attrs})
		}
	}

	for _, n := range next {
		var oldChildren []Desc
		if o, ok := oldByKey[n.Key]; ok {
			oldChildren = o.Children
		}
		ops = append(ops, Diff(n.Key, oldChildren, n.Children)...)
	}
	return ops
}
