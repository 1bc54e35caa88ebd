package rules

import (
	"strings"
	"testing"

	"github.com/park285/chess-study-bot/internal/movetree"
)

func TestAttemptSANAndUCIFallback(t *testing.T) {
	e := New()

	res, err := e.AttemptSAN("e4")
	if err != nil {
		t.Fatalf("AttemptSAN(e4): %v", err)
	}
	if res.SAN != "e4" || res.UCI != "e2e4" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.ToMove != movetree.Black {
		t.Fatalf("side to move after e4 = %v, want black", res.ToMove)
	}
	if !strings.Contains(res.FEN, " b ") {
		t.Fatalf("fen does not show black to move: %q", res.FEN)
	}

	// UCI input is accepted where SAN decoding fails.
	res, err = e.AttemptSAN("e7e5")
	if err != nil {
		t.Fatalf("AttemptSAN(e7e5): %v", err)
	}
	if res.SAN != "e5" {
		t.Fatalf("SAN = %q, want e5", res.SAN)
	}
}

func TestAttemptSANIllegal(t *testing.T) {
	e := New()
	for _, input := range []string{"", "  ", "Ke2", "e5", "zz9"} {
		if _, err := e.AttemptSAN(input); err != ErrIllegalMove {
			t.Fatalf("AttemptSAN(%q) err = %v, want ErrIllegalMove", input, err)
		}
	}
	// Position unchanged after rejections.
	if e.FEN() != New().FEN() {
		t.Fatalf("position changed by rejected moves: %q", e.FEN())
	}
}

func TestAttemptMoveFromSquares(t *testing.T) {
	e := New()
	res, err := e.AttemptMove("g1", "f3", "")
	if err != nil {
		t.Fatalf("AttemptMove: %v", err)
	}
	if res.SAN != "Nf3" {
		t.Fatalf("SAN = %q, want Nf3", res.SAN)
	}
	if _, err := e.AttemptMove("a1", "h8", ""); err != ErrIllegalMove {
		t.Fatalf("err = %v, want ErrIllegalMove", err)
	}
}

func TestLoadReseatsPosition(t *testing.T) {
	e := New()
	first, err := e.AttemptSAN("e4")
	if err != nil {
		t.Fatalf("e4: %v", err)
	}
	if _, err := e.AttemptSAN("e5"); err != nil {
		t.Fatalf("e5: %v", err)
	}

	// Jump back to the position after 1.e4 and play a different reply.
	if err := e.Load(first.FEN); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if e.SideToMove() != movetree.Black {
		t.Fatalf("side to move = %v, want black", e.SideToMove())
	}
	res, err := e.AttemptSAN("c5")
	if err != nil {
		t.Fatalf("c5 after reload: %v", err)
	}
	if res.SAN != "c5" {
		t.Fatalf("SAN = %q", res.SAN)
	}
}

func TestNewFromFEN(t *testing.T) {
	const fen = "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 2"
	e, err := NewFromFEN(fen)
	if err != nil {
		t.Fatalf("NewFromFEN: %v", err)
	}
	if e.SideToMove() != movetree.White {
		t.Fatalf("side to move = %v, want white", e.SideToMove())
	}
	if e.FullMoveNumber() != 2 {
		t.Fatalf("fullmove = %d, want 2", e.FullMoveNumber())
	}
	if _, err := NewFromFEN("not a fen"); err == nil {
		t.Fatalf("expected error for malformed fen")
	}
}

func TestLastMoveSquares(t *testing.T) {
	e := New()
	if _, _, ok := e.LastMoveSquares(); ok {
		t.Fatalf("expected no last move at start")
	}
	if _, err := e.AttemptSAN("d4"); err != nil {
		t.Fatalf("d4: %v", err)
	}
	from, to, ok := e.LastMoveSquares()
	if !ok || from.String() != "d2" || to.String() != "d4" {
		t.Fatalf("last move = %s-%s ok=%v", from, to, ok)
	}
}
