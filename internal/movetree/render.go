package movetree

import (
	"fmt"
	"strings"
)

// TokenKind discriminates rendered tokens.
type TokenKind int

const (
	// MoveNumberToken is a "3." or "3..." prefix for the following move.
	MoveNumberToken TokenKind = iota
	// MoveToken is one SAN move, carrying its node id and cursor flag.
	MoveToken
	// CommentToken is the annotation attached to the preceding move.
	CommentToken
	// VariationToken is a parenthesized alternative line; its Children hold
	// the group's own token sequence.
	VariationToken
)

// Token is one element of the rendered move list.
type Token struct {
	Kind     TokenKind
	Text     string
	Node     NodeID // MoveToken only
	Cursor   bool   // MoveToken only: is this the board position
	Children []Token
}

// Render walks the tree and produces the display token sequence. It is pure:
// callers re-invoke it after every mutating operation, the tree never pushes
// updates.
//
// Numbering follows movetext convention: every White move carries "N.", a
// Black move carries "N..." only when it opens a line or follows a comment or
// variation group. The alternatives to a move are emitted directly after that
// move (and its comment), each as its own recursively rendered group.
func (t *Tree) Render() []Token {
	return t.renderLine(t.node(rootID).Next)
}

func (t *Tree) renderLine(head NodeID) []Token {
	var out []Token
	interrupted := true // a line opening numbers its first move even when Black's
	for id := head; id != NoNode; id = t.node(id).Next {
		n := t.node(id)
		if t.ColorOf(id) == White {
			out = append(out, Token{Kind: MoveNumberToken, Text: fmt.Sprintf("%d.", t.MoveNumber(id))})
		} else if interrupted {
			out = append(out, Token{Kind: MoveNumberToken, Text: fmt.Sprintf("%d...", t.MoveNumber(id))})
		}
		out = append(out, Token{Kind: MoveToken, Text: n.Move, Node: id, Cursor: id == t.cursor})
		interrupted = false

		if n.Comment != "" {
			out = append(out, Token{Kind: CommentToken, Text: n.Comment})
			interrupted = true
		}

		// Alternatives to this move live on its parent and are only emitted
		// when this node is the parent's mainline child; a variation head
		// must not re-render its own siblings inside its group.
		parent := t.node(n.Parent)
		if parent.Next == id {
			for _, vid := range parent.Variations {
				out = append(out, Token{Kind: VariationToken, Children: t.renderLine(vid)})
				interrupted = true
			}
		}
	}
	return out
}

// Movetext flattens a token sequence into annotated movetext, e.g.
// "1.e4 e5 (1...c5 2.Nf3) 2.Nf3 {sharp} Nc6". Trailing whitespace inside a
// group is trimmed before the closing parenthesis.
func Movetext(tokens []Token) string {
	var b strings.Builder
	writeTokens(&b, tokens)
	return strings.TrimRight(b.String(), " ")
}

// Movetext renders the whole tree as annotated movetext.
func (t *Tree) Movetext() string {
	return Movetext(t.Render())
}

func writeTokens(b *strings.Builder, tokens []Token) {
	for _, tk := range tokens {
		switch tk.Kind {
		case MoveNumberToken:
			b.WriteString(tk.Text) // the move follows without a space: "1.e4"
		case MoveToken:
			b.WriteString(tk.Text)
			b.WriteByte(' ')
		case CommentToken:
			b.WriteByte('{')
			b.WriteString(tk.Text)
			b.WriteString("} ")
		case VariationToken:
			var inner strings.Builder
			writeTokens(&inner, tk.Children)
			b.WriteByte('(')
			b.WriteString(strings.TrimRight(inner.String(), " "))
			b.WriteString(") ")
		}
	}
}
