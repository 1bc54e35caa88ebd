package movetree

import (
	"strings"
	"testing"
)

func TestRenderMainlineNumbers(t *testing.T) {
	tr := NewFromStart()
	tr.ApplyMove("e4", "fen:e4", Black)
	tr.ApplyMove("e5", "fen:e5", White)
	tr.ApplyMove("Nf3", "fen:Nf3", Black)

	text := tr.Movetext()
	if text != "1.e4 e5 2.Nf3" {
		t.Fatalf("movetext = %q", text)
	}

	// Scenario ordering: "1." precedes e4 which precedes e5.
	i1, ie4, ie5 := strings.Index(text, "1."), strings.Index(text, "e4"), strings.Index(text, "e5")
	if !(i1 < ie4 && ie4 < ie5) {
		t.Fatalf("token order wrong in %q", text)
	}
}

func TestRenderIsDeterministicAndPure(t *testing.T) {
	tr := NewFromStart()
	tr.ApplyMove("e4", "fen:e4", Black)
	tr.ApplyMove("e5", "fen:e5", White)
	tr.Navigate(Prev)
	tr.ApplyMove("c5", "fen:c5", White)
	tr.SetComment(tr.Cursor(), "Sicilian")

	first := tr.Movetext()
	second := tr.Movetext()
	if first != second {
		t.Fatalf("render not deterministic: %q vs %q", first, second)
	}
}

func TestRenderWhiteVariationGroup(t *testing.T) {
	tr := NewFromStart()
	tr.ApplyMove("e4", "fen:e4", Black)
	tr.Navigate(Prev)
	tr.ApplyMove("d4", "fen:d4", Black)
	tr.ApplyMove("d5", "fen:d5", White)

	if text := tr.Movetext(); text != "1.e4 (1.d4 d5)" {
		t.Fatalf("movetext = %q", text)
	}
}

func TestRenderBlackVariationGroup(t *testing.T) {
	tr := NewFromStart()
	tr.ApplyMove("e4", "fen:e4", Black)
	tr.ApplyMove("e5", "fen:e5", White)
	tr.Navigate(Prev)
	tr.ApplyMove("c5", "fen:c5", White)
	tr.ApplyMove("Nf3", "fen:nf3", Black)
	tr.Navigate(Start)
	tr.Navigate(End)
	tr.ApplyMove("Nf3", "fen:nf3m", Black)

	// Black move after the variation group regains its number with "...".
	if text := tr.Movetext(); text != "1.e4 e5 (1...c5 2.Nf3) 2.Nf3" {
		t.Fatalf("movetext = %q", text)
	}
}

func TestRenderCommentPlacement(t *testing.T) {
	tr := NewFromStart()
	e4 := tr.ApplyMove("e4", "fen:e4", Black)
	tr.ApplyMove("e5", "fen:e5", White)

	tr.SetComment(e4, "Good move!")
	text := tr.Movetext()
	if text != "1.e4 {Good move!} 1...e5" {
		t.Fatalf("movetext = %q", text)
	}

	tr.SetComment(e4, "")
	if text := tr.Movetext(); text != "1.e4 e5" {
		t.Fatalf("movetext after clearing = %q", text)
	}
}

func TestRenderNestedVariation(t *testing.T) {
	tr := NewFromStart()
	tr.ApplyMove("e4", "fen:e4", Black)
	tr.ApplyMove("e5", "fen:e5", White)
	tr.Navigate(Prev)
	tr.ApplyMove("c5", "fen:c5", White)
	tr.ApplyMove("Nf3", "fen:nf3", Black)
	tr.Navigate(Prev)
	tr.ApplyMove("Nc3", "fen:nc3", Black)

	if text := tr.Movetext(); text != "1.e4 e5 (1...c5 2.Nf3 (2.Nc3))" {
		t.Fatalf("movetext = %q", text)
	}
}

func TestRenderCursorFlag(t *testing.T) {
	tr := NewFromStart()
	tr.ApplyMove("e4", "fen:e4", Black)
	e5 := tr.ApplyMove("e5", "fen:e5", White)

	var flagged []NodeID
	var walk func([]Token)
	walk = func(tokens []Token) {
		for _, tk := range tokens {
			if tk.Kind == MoveToken && tk.Cursor {
				flagged = append(flagged, tk.Node)
			}
			if tk.Kind == VariationToken {
				walk(tk.Children)
			}
		}
	}
	walk(tr.Render())
	if len(flagged) != 1 || flagged[0] != e5 {
		t.Fatalf("cursor flags = %v, want [%d]", flagged, e5)
	}
}

func TestRenderEmptyTree(t *testing.T) {
	tr := NewFromStart()
	if text := tr.Movetext(); text != "" {
		t.Fatalf("empty tree movetext = %q", text)
	}
	if tokens := tr.Render(); len(tokens) != 0 {
		t.Fatalf("empty tree tokens = %v", tokens)
	}
}
