package board

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/chess-study-bot/internal/movetree"
)

func TestLoadTheme(t *testing.T) {
	theme, err := LoadTheme("")
	if err != nil {
		t.Fatalf("LoadTheme default: %v", err)
	}
	if theme.Name != DefaultTheme {
		t.Fatalf("default theme = %q, want %q", theme.Name, DefaultTheme)
	}

	if _, err := LoadTheme("Forest"); err != nil {
		t.Fatalf("theme lookup should be case-insensitive: %v", err)
	}
	if _, err := LoadTheme("neon"); err == nil {
		t.Fatalf("expected error for unknown theme")
	}
}

func TestRenderPNGStartPosition(t *testing.T) {
	r, err := NewRenderer(DefaultTheme)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	game := nchess.NewGame()
	sq := nchess.NewSquare(nchess.FileE, nchess.Rank2)
	data, err := r.RenderPNG(context.Background(), game.Position().Board(), RenderOptions{
		Highlight: &MoveHighlight{
			From: nchess.NewSquare(nchess.FileE, nchess.Rank2),
			To:   nchess.NewSquare(nchess.FileE, nchess.Rank4),
		},
		Marker: &sq,
		Header: "Study: Italian Game",
		Footer: "1.e4",
	})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() < boardSize || bounds.Dy() < boardSize {
		t.Fatalf("image too small: %v", bounds)
	}
}

func TestRenderPNGNilBoard(t *testing.T) {
	r, err := NewRenderer(DefaultTheme)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	if _, err := r.RenderPNG(context.Background(), nil, RenderOptions{}); err == nil {
		t.Fatalf("expected error for nil board")
	}
}

func TestRenderPNGCanceledContext(t *testing.T) {
	r, err := NewRenderer(DefaultTheme)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.RenderPNG(ctx, nchess.NewGame().Position().Board(), RenderOptions{}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestSquareRectOrientation(t *testing.T) {
	origin := image.Point{X: 0, Y: 0}
	a1 := nchess.NewSquare(nchess.FileA, nchess.Rank1)

	white := squareRect(a1, origin, movetree.White)
	if white.Min.X != 0 || white.Min.Y != 7*squareSize {
		t.Fatalf("a1 with white at bottom = %v", white)
	}

	black := squareRect(a1, origin, movetree.Black)
	if black.Min.X != 7*squareSize || black.Min.Y != 0 {
		t.Fatalf("a1 with black at bottom = %v", black)
	}
}
