// Package rules adapts the corentings/chess engine to the narrow contract
// the study service needs: load a position, validate and apply a move, report
// side to move, serialize the position. All legality checking lives here (in
// the library); the move tree only stores what this package produces.
package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/chess-study-bot/internal/movetree"
)

var ErrIllegalMove = errors.New("rules: illegal move")

// MoveResult is the outcome of a validated, applied move.
type MoveResult struct {
	SAN    string
	UCI    string
	FEN    string // position after the move
	ToMove movetree.Color
}

// Engine wraps one game context. Not safe for concurrent use.
type Engine struct {
	game *nchess.Game
}

// New returns an engine at the standard starting position.
func New() *Engine {
	return &Engine{game: nchess.NewGame()}
}

// NewFromFEN returns an engine loaded with the given position.
func NewFromFEN(fen string) (*Engine, error) {
	opt, err := nchess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return &Engine{game: nchess.NewGame(opt)}, nil
}

// Load resets the engine to an arbitrary position. Used when the study
// cursor jumps around the tree: the engine is re-seated at the cursor's FEN
// before the next move attempt.
func (e *Engine) Load(fen string) error {
	opt, err := nchess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return fmt.Errorf("parse fen: %w", err)
	}
	e.game = nchess.NewGame(opt)
	return nil
}

// FEN serializes the current position.
func (e *Engine) FEN() string {
	return e.game.FEN()
}

// SideToMove reports whose turn it is in the current position.
func (e *Engine) SideToMove() movetree.Color {
	if e.game.Position().Turn() == nchess.White {
		return movetree.White
	}
	return movetree.Black
}

// FullMoveNumber reads the fullmove counter from the current position.
func (e *Engine) FullMoveNumber() int {
	fields := strings.Fields(e.game.FEN())
	if len(fields) < 6 {
		return 1
	}
	n, err := strconv.Atoi(fields[5])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Board exposes the current board for the snapshot renderer.
func (e *Engine) Board() *nchess.Board {
	return e.game.Position().Board()
}

// AttemptSAN validates and applies a move given in SAN, falling back to UCI
// for inputs like "e2e4". Illegal or unparseable input maps to
// ErrIllegalMove; the position is unchanged in that case.
func (e *Engine) AttemptSAN(text string) (MoveResult, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return MoveResult{}, ErrIllegalMove
	}

	pos := e.game.Position()
	move, err := nchess.AlgebraicNotation{}.Decode(pos, raw)
	if err != nil {
		move, err = nchess.UCINotation{}.Decode(pos, strings.ToLower(raw))
		if err != nil {
			return MoveResult{}, ErrIllegalMove
		}
	}
	return e.apply(pos, move)
}

// AttemptMove validates and applies a move given as origin/destination
// squares plus an optional promotion piece letter ("q", "n", ...), the shape
// a drag-and-drop board callback reports.
func (e *Engine) AttemptMove(from, to, promotion string) (MoveResult, error) {
	uci := strings.ToLower(strings.TrimSpace(from) + strings.TrimSpace(to) + strings.TrimSpace(promotion))
	pos := e.game.Position()
	move, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return MoveResult{}, ErrIllegalMove
	}
	return e.apply(pos, move)
}

func (e *Engine) apply(pos *nchess.Position, move *nchess.Move) (MoveResult, error) {
	san := nchess.AlgebraicNotation{}.Encode(pos, move)
	uci := strings.ToLower(nchess.UCINotation{}.Encode(pos, move))
	if err := e.game.Move(move, nil); err != nil {
		return MoveResult{}, ErrIllegalMove
	}
	return MoveResult{
		SAN:    san,
		UCI:    uci,
		FEN:    e.game.FEN(),
		ToMove: e.SideToMove(),
	}, nil
}

// LastMoveSquares returns the from/to squares of the most recent move, for
// board highlighting. ok is false when no move has been played.
func (e *Engine) LastMoveSquares() (from, to nchess.Square, ok bool) {
	moves := e.game.Moves()
	if len(moves) == 0 {
		return 0, 0, false
	}
	last := moves[len(moves)-1]
	return last.S1(), last.S2(), true
}

// Outcome reports "1-0", "0-1", "1/2-1/2" or "" while undecided.
func (e *Engine) Outcome() string {
	switch e.game.Outcome() {
	case nchess.WhiteWon:
		return "1-0"
	case nchess.BlackWon:
		return "0-1"
	case nchess.Draw:
		return "1/2-1/2"
	default:
		return ""
	}
}
