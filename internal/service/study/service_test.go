package study

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	nchess "github.com/corentings/chess/v2"
	"github.com/redis/go-redis/v9"

	"github.com/park285/chess-study-bot/internal/board"
	"github.com/park285/chess-study-bot/internal/movetree"
	"github.com/park285/chess-study-bot/internal/service/cache"
)

type stubRenderer struct {
	calls    int
	lastOpts board.RenderOptions
}

func (r *stubRenderer) RenderPNG(ctx context.Context, b *nchess.Board, opts board.RenderOptions) ([]byte, error) {
	r.calls++
	r.lastOpts = opts
	return []byte("png"), nil
}

func newTestService(t *testing.T) (*Service, *stubRenderer) {
	t.Helper()
	mr := miniredis.RunT(t)
	cacheSvc := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	renderer := &stubRenderer{}
	svc, err := NewService(cacheSvc, NewMemoryRepository(), renderer, Config{
		SessionTTL:   time.Hour,
		HistoryLimit: 10,
	}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, renderer
}

func testMeta() SessionMeta {
	return SessionMeta{SessionID: "room-1:alice", Room: "room-1", Sender: "alice"}
}

func TestStartAndPlayMainline(t *testing.T) {
	svc, renderer := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	state, err := svc.Start(ctx, meta, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state.MoveCount != 0 || !state.AtRoot || !state.Live {
		t.Fatalf("unexpected fresh state: %+v", state)
	}
	if len(state.BoardImage) == 0 {
		t.Fatalf("expected board image")
	}

	for _, mv := range []string{"e4", "e5", "Nf3"} {
		summary, err := svc.Play(ctx, meta, mv)
		if err != nil {
			t.Fatalf("Play(%s): %v", mv, err)
		}
		if summary.NewVariation {
			t.Fatalf("mainline move %s flagged as variation", mv)
		}
	}

	text, err := svc.Movetext(ctx, meta)
	if err != nil {
		t.Fatalf("Movetext: %v", err)
	}
	if text != "1.e4 e5 2.Nf3" {
		t.Fatalf("movetext = %q", text)
	}
	if renderer.calls == 0 {
		t.Fatalf("renderer never invoked")
	}
}

func TestStartTwiceReturnsInProgress(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	if _, err := svc.Start(ctx, meta, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	state, err := svc.Start(ctx, meta, "")
	if !errors.Is(err, ErrStudyInProgress) {
		t.Fatalf("err = %v, want ErrStudyInProgress", err)
	}
	if state == nil {
		t.Fatalf("expected existing state alongside ErrStudyInProgress")
	}
}

func TestPlayIllegalMoveRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	if _, err := svc.Start(ctx, meta, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Play(ctx, meta, "Ke2"); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("err = %v, want ErrInvalidMove", err)
	}
	// Session unchanged.
	text, err := svc.Movetext(ctx, meta)
	if err != nil || text != "" {
		t.Fatalf("movetext after rejection = %q (%v)", text, err)
	}
}

func TestDivergenceAndPromote(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	if _, err := svc.Start(ctx, meta, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, mv := range []string{"e4", "e5"} {
		if _, err := svc.Play(ctx, meta, mv); err != nil {
			t.Fatalf("Play(%s): %v", mv, err)
		}
	}

	// Back to the position after 1.e4 and diverge.
	if _, err := svc.Navigate(ctx, meta, movetree.Prev); err != nil {
		t.Fatalf("Navigate prev: %v", err)
	}
	summary, err := svc.Play(ctx, meta, "c5")
	if err != nil {
		t.Fatalf("Play(c5): %v", err)
	}
	if !summary.NewVariation {
		t.Fatalf("divergent move not flagged as variation")
	}

	text, _ := svc.Movetext(ctx, meta)
	if text != "1.e4 e5 (1...c5)" {
		t.Fatalf("movetext = %q", text)
	}

	// Promote the variation under the cursor.
	state, err := svc.Promote(ctx, meta)
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if state.AtVariation {
		t.Fatalf("cursor still on a variation after promote")
	}
	text, _ = svc.Movetext(ctx, meta)
	if text != "1.e4 c5 (1...e5)" {
		t.Fatalf("movetext after promote = %q", text)
	}
}

func TestPromoteOnMainlineRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	if _, err := svc.Start(ctx, meta, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Play(ctx, meta, "d4"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if _, err := svc.Promote(ctx, meta); !errors.Is(err, ErrNotVariation) {
		t.Fatalf("err = %v, want ErrNotVariation", err)
	}
}

func TestDeleteBranch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	if _, err := svc.Start(ctx, meta, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, mv := range []string{"e4", "e5"} {
		if _, err := svc.Play(ctx, meta, mv); err != nil {
			t.Fatalf("Play(%s): %v", mv, err)
		}
	}
	if _, err := svc.Navigate(ctx, meta, movetree.Prev); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if _, err := svc.Play(ctx, meta, "c5"); err != nil {
		t.Fatalf("Play(c5): %v", err)
	}

	state, err := svc.DeleteBranch(ctx, meta)
	if err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
	if state.AtRoot {
		t.Fatalf("cursor should land on the branch parent, not root")
	}
	text, _ := svc.Movetext(ctx, meta)
	if text != "1.e4 e5" {
		t.Fatalf("movetext after delete = %q", text)
	}
}

func TestBoardMarkerFollowsCursor(t *testing.T) {
	svc, renderer := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	if _, err := svc.Start(ctx, meta, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if renderer.lastOpts.Marker != nil {
		t.Fatalf("marker set at the root: %v", *renderer.lastOpts.Marker)
	}

	if _, err := svc.Play(ctx, meta, "e4"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if renderer.lastOpts.Marker == nil || renderer.lastOpts.Marker.String() != "e4" {
		t.Fatalf("marker after e4 = %v", renderer.lastOpts.Marker)
	}
	if renderer.lastOpts.Highlight == nil || renderer.lastOpts.Highlight.From.String() != "e2" {
		t.Fatalf("highlight after e4 = %+v", renderer.lastOpts.Highlight)
	}

	// Back at the root there is no cursor move to mark.
	if _, err := svc.Navigate(ctx, meta, movetree.Prev); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if renderer.lastOpts.Marker != nil || renderer.lastOpts.Highlight != nil {
		t.Fatalf("root render still marked: marker=%v highlight=%+v",
			renderer.lastOpts.Marker, renderer.lastOpts.Highlight)
	}
}

func TestFlipTogglesOrientation(t *testing.T) {
	svc, renderer := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	if _, err := svc.Start(ctx, meta, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if renderer.lastOpts.Orientation != movetree.White {
		t.Fatalf("fresh study orientation = %v", renderer.lastOpts.Orientation)
	}

	state, err := svc.Flip(ctx, meta)
	if err != nil {
		t.Fatalf("Flip: %v", err)
	}
	if state.Orientation != movetree.Black || renderer.lastOpts.Orientation != movetree.Black {
		t.Fatalf("flip did not reach the renderer: state=%v opts=%v",
			state.Orientation, renderer.lastOpts.Orientation)
	}

	// Orientation sticks across later operations.
	if _, err := svc.Play(ctx, meta, "e4"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if renderer.lastOpts.Orientation != movetree.Black {
		t.Fatalf("orientation reset by play: %v", renderer.lastOpts.Orientation)
	}

	state, err = svc.Flip(ctx, meta)
	if err != nil {
		t.Fatalf("Flip back: %v", err)
	}
	if state.Orientation != movetree.White {
		t.Fatalf("second flip orientation = %v", state.Orientation)
	}
}

func TestGotoPly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	if _, err := svc.Start(ctx, meta, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, mv := range []string{"e4", "e5"} {
		if _, err := svc.Play(ctx, meta, mv); err != nil {
			t.Fatalf("Play(%s): %v", mv, err)
		}
	}

	state, err := svc.GotoPly(ctx, meta, 1)
	if err != nil {
		t.Fatalf("GotoPly(1): %v", err)
	}
	if state.AtRoot || state.Turn != movetree.Black {
		t.Fatalf("state after goto 1: %+v", state)
	}

	// 0 is the starting position.
	state, err = svc.GotoPly(ctx, meta, 0)
	if err != nil {
		t.Fatalf("GotoPly(0): %v", err)
	}
	if !state.AtRoot {
		t.Fatalf("goto 0 did not land on the root: %+v", state)
	}

	for _, ply := range []int{-1, 3} {
		if _, err := svc.GotoPly(ctx, meta, ply); !errors.Is(err, ErrUnknownPly) {
			t.Fatalf("GotoPly(%d) err = %v, want ErrUnknownPly", ply, err)
		}
	}
}

func TestCommentRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	if _, err := svc.Start(ctx, meta, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Play(ctx, meta, "e4"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if _, err := svc.Comment(ctx, meta, "Good move!"); err != nil {
		t.Fatalf("Comment: %v", err)
	}
	text, _ := svc.Movetext(ctx, meta)
	if text != "1.e4 {Good move!}" {
		t.Fatalf("movetext = %q", text)
	}

	// Commenting the root is refused.
	if _, err := svc.Navigate(ctx, meta, movetree.Start); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if _, err := svc.Comment(ctx, meta, "nope"); !errors.Is(err, ErrAtRoot) {
		t.Fatalf("err = %v, want ErrAtRoot", err)
	}
}

func TestSaveAndList(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	if _, err := svc.Start(ctx, meta, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, mv := range []string{"e4", "c5"} {
		if _, err := svc.Play(ctx, meta, mv); err != nil {
			t.Fatalf("Play(%s): %v", mv, err)
		}
	}

	record, err := svc.Save(ctx, meta, "Sicilian sketch")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if record.ID == 0 || record.Movetext != "1.e4 c5" || record.Title != "Sicilian sketch" {
		t.Fatalf("unexpected record: %+v", record)
	}

	// Second save resolves to the same archive entry.
	again, err := svc.Save(ctx, meta, "")
	if err != nil {
		t.Fatalf("Save again: %v", err)
	}
	if again.ID != record.ID {
		t.Fatalf("duplicate save produced id %d, want %d", again.ID, record.ID)
	}

	records, err := svc.List(ctx, meta, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 || records[0].StudyUUID != record.StudyUUID {
		t.Fatalf("list = %+v", records)
	}

	got, err := svc.Get(ctx, meta, record.ID)
	if err != nil || got.ID != record.ID {
		t.Fatalf("Get = %+v (%v)", got, err)
	}
}

func TestStatusFallsBackToSnapshot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	if _, err := svc.Start(ctx, meta, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Play(ctx, meta, "e4"); err != nil {
		t.Fatalf("Play: %v", err)
	}

	// Simulate a restart: the live table is empty but Redis still has the
	// snapshot.
	svc.mu.Lock()
	svc.sessions = make(map[string]*liveStudy)
	svc.mu.Unlock()

	state, err := svc.Status(ctx, meta)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if state.Live {
		t.Fatalf("snapshot-only state flagged live")
	}
	if state.Movetext != "1.e4" || state.MoveCount != 1 {
		t.Fatalf("snapshot state = %+v", state)
	}

	// Mutating operations report the session as expired, not missing.
	if _, err := svc.Play(ctx, meta, "e5"); !errors.Is(err, ErrStudyExpired) {
		t.Fatalf("err = %v, want ErrStudyExpired", err)
	}
}

func TestDiscard(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	if err := svc.Discard(ctx, meta); !errors.Is(err, ErrStudyNotFound) {
		t.Fatalf("err = %v, want ErrStudyNotFound", err)
	}

	if _, err := svc.Start(ctx, meta, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := svc.Discard(ctx, meta); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if _, err := svc.Status(ctx, meta); !errors.Is(err, ErrStudyNotFound) {
		t.Fatalf("err = %v, want ErrStudyNotFound", err)
	}
}

func TestStartFromMoves(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	state, err := svc.StartFromMoves(ctx, meta, "Opera Game", []string{"e4", "e5", "Nf3", "d6"})
	if err != nil {
		t.Fatalf("StartFromMoves: %v", err)
	}
	if !state.AtRoot {
		t.Fatalf("cursor should start at the root for imported games")
	}
	if state.MoveCount != 4 || state.Title != "Opera Game" {
		t.Fatalf("state = %+v", state)
	}

	// Stepping forward follows the imported mainline.
	next, err := svc.Navigate(ctx, meta, movetree.Next)
	if err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if next.AtRoot {
		t.Fatalf("cursor did not advance")
	}
}

func TestStartFromFEN(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	meta := testMeta()

	const fen = "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 2"
	state, err := svc.Start(ctx, meta, fen)
	if err != nil {
		t.Fatalf("Start from FEN: %v", err)
	}
	if state.Turn != movetree.White {
		t.Fatalf("turn = %v", state.Turn)
	}

	summary, err := svc.Play(ctx, meta, "Nf3")
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if summary.SAN != "Nf3" {
		t.Fatalf("SAN = %q", summary.SAN)
	}
	// Move numbering starts at the root position's fullmove counter.
	text, _ := svc.Movetext(ctx, meta)
	if text != "2.Nf3" {
		t.Fatalf("movetext = %q", text)
	}

	if _, err := svc.Start(ctx, testMeta2(), "not a fen"); !errors.Is(err, ErrInvalidPosition) {
		t.Fatalf("err = %v, want ErrInvalidPosition", err)
	}
}

func testMeta2() SessionMeta {
	return SessionMeta{SessionID: "room-2:bob", Room: "room-2", Sender: "bob"}
}

func TestRoomAllowList(t *testing.T) {
	mr := miniredis.RunT(t)
	cacheSvc := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	svc, err := NewService(cacheSvc, NewMemoryRepository(), &stubRenderer{}, Config{
		SessionTTL:   time.Hour,
		AllowedRooms: []string{"study-club"},
	}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	meta := SessionMeta{SessionID: "x", Room: "random-room", Sender: "alice"}
	if _, err := svc.Start(context.Background(), meta, ""); !errors.Is(err, ErrRoomNotAllowed) {
		t.Fatalf("err = %v, want ErrRoomNotAllowed", err)
	}

	meta.Room = "Study-Club"
	if _, err := svc.Start(context.Background(), meta, ""); err != nil {
		t.Fatalf("allowed room rejected: %v", err)
	}
}
