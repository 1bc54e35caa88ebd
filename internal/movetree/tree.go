// Package movetree maintains the branching move history of a chess study:
// a mainline with nested variations, a cursor marking the position shown on
// the board, and a renderer that turns the tree back into annotated movetext.
//
// The tree stores only what the rules engine hands it (SAN text and resulting
// FEN strings); it never derives positions or checks legality itself.
package movetree

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownNode  = errors.New("movetree: unknown node")
	ErrNotVariation = errors.New("movetree: node is not a variation")
	ErrRootNode     = errors.New("movetree: operation not valid on root")
)

// Color is the side that played (or is to play) a half-move.
type Color int8

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// NodeID is an opaque key into the tree's node arena. The zero value means
// "no node"; ids are never reused within a tree.
type NodeID int

// NoNode is the absent-node sentinel.
const NoNode NodeID = 0

const rootID NodeID = 1

// Direction selects a cursor movement for Navigate.
type Direction int

const (
	Start Direction = iota
	End
	Prev
	Next
)

// Node is one half-move reached from its parent's position. The root node
// carries no move and represents the starting position.
//
// Parent is a traversal-only back reference; ownership flows strictly through
// Next and Variations. Variations are the insertion-ordered alternatives to
// this node's Next child, branching from this node's position.
type Node struct {
	ID         NodeID
	Move       string // SAN, empty on root
	Parent     NodeID
	FEN        string // position after Move (root: starting position)
	Next       NodeID // mainline continuation, NoNode at the tip
	Variations []NodeID
	Comment    string
}

// Tree is a single study's move tree with its cursor. Not safe for concurrent
// use; callers serialize access per session.
type Tree struct {
	nodes      []Node // index 0 unused so that NoNode stays invalid
	cursor     NodeID
	rootToMove Color
	rootNumber int // fullmove number at the root position
}

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// New creates a tree rooted at the given position. toMove and fullmove are
// the side-to-move and fullmove number of the root FEN; the caller obtains
// both from the rules engine rather than parsing FEN fields here.
func New(rootFEN string, toMove Color, fullmove int) *Tree {
	if fullmove < 1 {
		fullmove = 1
	}
	t := &Tree{
		nodes:      make([]Node, 2, 64),
		rootToMove: toMove,
		rootNumber: fullmove,
	}
	t.nodes[rootID] = Node{ID: rootID, FEN: rootFEN}
	t.cursor = rootID
	return t
}

// NewFromStart creates a tree rooted at the standard initial position.
func NewFromStart() *Tree {
	return New(StartFEN, White, 1)
}

func (t *Tree) node(id NodeID) *Node {
	return &t.nodes[id]
}

func (t *Tree) valid(id NodeID) bool {
	return id > NoNode && int(id) < len(t.nodes) && t.nodes[id].ID == id
}

// Root returns the root node id.
func (t *Tree) Root() NodeID { return rootID }

// Cursor returns the node currently displayed on the board.
func (t *Tree) Cursor() NodeID { return t.cursor }

// Lookup returns a copy of the node, or false when the id is unknown or the
// node has been detached by DeleteVariation.
func (t *Tree) Lookup(id NodeID) (Node, bool) {
	if !t.valid(id) {
		return Node{}, false
	}
	n := t.nodes[id]
	n.Variations = append([]NodeID(nil), n.Variations...)
	return n, true
}

// Len is the number of reachable nodes, root included.
func (t *Tree) Len() int {
	count := 0
	for id := rootID; int(id) < len(t.nodes); id++ {
		if t.nodes[id].ID == id {
			count++
		}
	}
	return count
}

// FEN returns the position string of the given node.
func (t *Tree) FEN(id NodeID) (string, error) {
	if !t.valid(id) {
		return "", ErrUnknownNode
	}
	return t.node(id).FEN, nil
}

// CursorFEN is the position currently displayed on the board.
func (t *Tree) CursorFEN() string {
	return t.node(t.cursor).FEN
}

// halfIndex aligns a node's depth to a white-to-move origin so that move
// numbers and colors fall out of simple parity, regardless of the root FEN.
func (t *Tree) halfIndex(id NodeID) int {
	ply := 0
	for cur := id; cur != rootID; cur = t.node(cur).Parent {
		ply++
	}
	if t.rootToMove == Black {
		return ply
	}
	return ply - 1
}

// ColorOf reports which side played the node's move.
func (t *Tree) ColorOf(id NodeID) Color {
	if t.halfIndex(id)%2 == 0 {
		return White
	}
	return Black
}

// MoveNumber is the fullmove number the node's move is written under.
func (t *Tree) MoveNumber(id NodeID) int {
	return t.rootNumber + t.halfIndex(id)/2
}

// IsVariation reports whether the node is an alternative line rather than its
// parent's mainline child. Derived from the Next/Variations partition; there
// is no stored flag to drift out of sync.
func (t *Tree) IsVariation(id NodeID) bool {
	if !t.valid(id) || id == rootID {
		return false
	}
	return t.node(t.node(id).Parent).Next != id
}

// ApplyMove records a move already validated and executed by the rules
// engine and advances the cursor to it.
//
// Replaying a move that is already recorded from the cursor (mainline child
// or any variation) advances to the existing node without allocating.
// Otherwise the new node extends the mainline when the cursor has no
// mainline child yet, and is appended as the last variation when it has one.
// The previous mainline child is never demoted automatically; use
// PromoteVariation for that. toMoveAfter is retained from the engine for
// callers that key behavior off whose turn it now is.
func (t *Tree) ApplyMove(san, fen string, toMoveAfter Color) NodeID {
	_ = toMoveAfter
	cur := t.node(t.cursor)
	if cur.Next != NoNode && t.node(cur.Next).Move == san {
		t.cursor = cur.Next
		return t.cursor
	}
	for _, vid := range cur.Variations {
		if t.node(vid).Move == san {
			t.cursor = vid
			return t.cursor
		}
	}

	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, Node{ID: id, Move: san, Parent: cur.ID, FEN: fen})
	cur = t.node(t.cursor) // reacquire: append may have moved the backing array
	if cur.Next == NoNode {
		cur.Next = id
	} else {
		cur.Variations = append(cur.Variations, id)
	}
	t.cursor = id
	return id
}

// Navigate moves the cursor and returns its new value. Prev at the root and
// Next at the mainline tip are silent no-ops. Next follows only the mainline;
// entering a variation is done via Goto.
func (t *Tree) Navigate(d Direction) NodeID {
	switch d {
	case Start:
		t.cursor = rootID
	case End:
		id := rootID
		for t.node(id).Next != NoNode {
			id = t.node(id).Next
		}
		t.cursor = id
	case Prev:
		if p := t.node(t.cursor).Parent; p != NoNode {
			t.cursor = p
		}
	case Next:
		if n := t.node(t.cursor).Next; n != NoNode {
			t.cursor = n
		}
	}
	return t.cursor
}

// Goto places the cursor on an arbitrary node, mainline or variation.
func (t *Tree) Goto(id NodeID) error {
	if !t.valid(id) {
		return ErrUnknownNode
	}
	t.cursor = id
	return nil
}

// MainlineTip returns the last node reached by following mainline links from
// the root; the root itself when no moves are recorded.
func (t *Tree) MainlineTip() NodeID {
	id := rootID
	for t.node(id).Next != NoNode {
		id = t.node(id).Next
	}
	return id
}

// NodeAtPly returns the mainline node at the given 1-based ply.
func (t *Tree) NodeAtPly(ply int) (NodeID, error) {
	if ply < 1 {
		return NoNode, fmt.Errorf("movetree: ply %d out of range", ply)
	}
	id := rootID
	for i := 0; i < ply; i++ {
		id = t.node(id).Next
		if id == NoNode {
			return NoNode, fmt.Errorf("movetree: ply %d out of range", ply)
		}
	}
	return id, nil
}

// PromoteVariation swaps a variation into the mainline: the node leaves its
// parent's variation list, the demoted mainline child becomes the first
// listed variation, and the cursor moves to the promoted node. The subtrees
// of both nodes are untouched.
func (t *Tree) PromoteVariation(id NodeID) error {
	if !t.valid(id) {
		return ErrUnknownNode
	}
	if !t.IsVariation(id) {
		return ErrNotVariation
	}
	parent := t.node(t.node(id).Parent)
	removeID(&parent.Variations, id)
	if prev := parent.Next; prev != NoNode {
		parent.Variations = append([]NodeID{prev}, parent.Variations...)
	}
	parent.Next = id
	t.cursor = id
	return nil
}

// DeleteVariation detaches a variation node and everything reachable from it.
// Ownership is exclusively via the parent's variation list, so dropping that
// one reference destroys the subtree. The cursor moves to the parent.
func (t *Tree) DeleteVariation(id NodeID) error {
	if !t.valid(id) {
		return ErrUnknownNode
	}
	if !t.IsVariation(id) {
		return ErrNotVariation
	}
	parent := t.node(t.node(id).Parent)
	removeID(&parent.Variations, id)
	t.cursor = parent.ID
	t.release(id)
	return nil
}

// release zeroes a detached subtree in the arena so stale ids stop resolving.
func (t *Tree) release(id NodeID) {
	n := t.node(id)
	if next := n.Next; next != NoNode {
		t.release(next)
	}
	for _, vid := range n.Variations {
		t.release(vid)
	}
	t.nodes[id] = Node{}
}

// SetComment replaces the node's annotation; an empty string clears it.
func (t *Tree) SetComment(id NodeID, text string) error {
	if !t.valid(id) {
		return ErrUnknownNode
	}
	if id == rootID {
		return ErrRootNode
	}
	t.node(id).Comment = text
	return nil
}

func removeID(ids *[]NodeID, id NodeID) {
	for i, v := range *ids {
		if v == id {
			*ids = append((*ids)[:i], (*ids)[i+1:]...)
			return
		}
	}
}
