// Package study owns live study sessions: one move tree and rules engine per
// (room, sender) identity. Trees live in process memory only; Redis holds a
// flat snapshot for status display and Postgres archives rendered movetext on
// save.
package study

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-study-bot/internal/board"
	"github.com/park285/chess-study-bot/internal/domain"
	"github.com/park285/chess-study-bot/internal/movetree"
	"github.com/park285/chess-study-bot/internal/rules"
	"github.com/park285/chess-study-bot/internal/service/cache"
)

var (
	ErrStudyNotFound   = errors.New("study session not found")
	ErrStudyInProgress = errors.New("study session already in progress")
	ErrStudyExpired    = errors.New("study session expired")
	ErrInvalidMove     = errors.New("invalid move")
	ErrInvalidPosition = errors.New("invalid position")
	ErrNotVariation    = errors.New("cursor is not on a variation")
	ErrAtRoot          = errors.New("cursor is at the starting position")
	ErrRoomNotAllowed  = errors.New("study room not allowed")
	ErrUnknownPly      = errors.New("no mainline move at that number")
)

const (
	maxHistoryLimit = 50
	maxCommentRunes = 500
	defaultTitle    = "Untitled study"
	titleRuneLimit  = 80
)

type Service struct {
	cache        *cache.CacheService
	repo         Repository
	renderer     board.Renderer
	cfg          Config
	allowedRooms map[string]struct{}
	logger       *zap.Logger

	mu       sync.Mutex
	sessions map[string]*liveStudy // session key -> live session
}

func NewService(cacheSvc *cache.CacheService, repo Repository, renderer board.Renderer, cfg Config, logger *zap.Logger) (*Service, error) {
	if cacheSvc == nil {
		return nil, fmt.Errorf("cache service is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("study repository is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("board renderer is required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session TTL must be greater than 0")
	}
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > maxHistoryLimit {
		cfg.HistoryLimit = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	allowedRooms := make(map[string]struct{})
	for _, room := range cfg.AllowedRooms {
		normalized := strings.ToLower(strings.TrimSpace(room))
		if normalized == "" {
			continue
		}
		allowedRooms[normalized] = struct{}{}
	}

	return &Service{
		cache:        cacheSvc,
		repo:         repo,
		renderer:     renderer,
		cfg:          cfg,
		allowedRooms: allowedRooms,
		logger:       logger,
		sessions:     make(map[string]*liveStudy),
	}, nil
}

// Start opens a new study session. An empty fen starts from the standard
// initial position. If the identity already has a live session its current
// state is returned together with ErrStudyInProgress.
func (s *Service) Start(ctx context.Context, meta SessionMeta, fen string) (*StudyState, error) {
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}
	identity := deriveIdentity(meta)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[identity.SessionID]; ok {
		state := s.stateFromLive(existing)
		s.attachBoardImage(ctx, existing, state, s.cursorHighlight(existing))
		return state, ErrStudyInProgress
	}

	engine, tree, err := buildPosition(fen)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	lv := &liveStudy{
		payload: &studyPayload{
			StudyUUID:  uuid.NewString(),
			PlayerHash: identity.PlayerHash,
			RoomHash:   identity.RoomHash,
			RootFEN:    engine.FEN(),
			StartedAt:  now,
			UpdatedAt:  now,
		},
		tree:   tree,
		engine: engine,
	}
	s.sessions[identity.SessionID] = lv
	s.snapshot(ctx, identity, lv)

	state := s.stateFromLive(lv)
	s.attachBoardImage(ctx, lv, state, nil)
	return state, nil
}

// StartFromMoves opens a session preloaded with a mainline, e.g. a game
// imported from a PGN pack. The cursor is left at the starting position so
// the user steps through the game.
func (s *Service) StartFromMoves(ctx context.Context, meta SessionMeta, title string, sans []string) (*StudyState, error) {
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}
	identity := deriveIdentity(meta)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[identity.SessionID]; ok {
		state := s.stateFromLive(existing)
		s.attachBoardImage(ctx, existing, state, s.cursorHighlight(existing))
		return state, ErrStudyInProgress
	}

	engine := rules.New()
	tree := movetree.NewFromStart()
	for _, san := range sans {
		res, err := engine.AttemptSAN(san)
		if err != nil {
			return nil, fmt.Errorf("import move %q: %w", san, ErrInvalidMove)
		}
		tree.ApplyMove(res.SAN, res.FEN, res.ToMove)
	}
	tree.Navigate(movetree.Start)
	if err := engine.Load(tree.CursorFEN()); err != nil {
		return nil, err
	}

	now := time.Now()
	lv := &liveStudy{
		payload: &studyPayload{
			StudyUUID:  uuid.NewString(),
			PlayerHash: identity.PlayerHash,
			RoomHash:   identity.RoomHash,
			Title:      normalizeTitle(title),
			RootFEN:    movetree.StartFEN,
			StartedAt:  now,
			UpdatedAt:  now,
		},
		tree:   tree,
		engine: engine,
	}
	s.sessions[identity.SessionID] = lv
	s.snapshot(ctx, identity, lv)

	state := s.stateFromLive(lv)
	s.attachBoardImage(ctx, lv, state, nil)
	return state, nil
}

// Play validates a move against the cursor position and records it in the
// tree. A move diverging from an existing mainline child becomes a variation;
// replaying a recorded move just advances the cursor.
func (s *Service) Play(ctx context.Context, meta SessionMeta, moveText string) (*MoveSummary, error) {
	identity, lv, err := s.lookup(meta)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := lv.engine.Load(lv.tree.CursorFEN()); err != nil {
		return nil, err
	}
	res, err := lv.engine.AttemptSAN(moveText)
	if err != nil {
		if errors.Is(err, rules.ErrIllegalMove) {
			return nil, ErrInvalidMove
		}
		return nil, err
	}

	before := lv.tree.Len()
	id := lv.tree.ApplyMove(res.SAN, res.FEN, res.ToMove)
	reused := lv.tree.Len() == before

	lv.payload.UpdatedAt = time.Now()
	s.snapshot(ctx, identity, lv)

	state := s.stateFromLive(lv)
	from, to, ok := lv.engine.LastMoveSquares()
	var highlight *board.MoveHighlight
	if ok {
		highlight = &board.MoveHighlight{From: from, To: to}
	}
	s.attachBoardImage(ctx, lv, state, highlight)

	return &MoveSummary{
		State:        state,
		SAN:          res.SAN,
		UCI:          res.UCI,
		NewVariation: lv.tree.IsVariation(id),
		Reused:       reused,
		Outcome:      lv.engine.Outcome(),
	}, nil
}

// Navigate moves the cursor. Prev at the root and next at the tip are silent
// no-ops, mirroring disabled arrows in a graphical UI.
func (s *Service) Navigate(ctx context.Context, meta SessionMeta, d movetree.Direction) (*StudyState, error) {
	identity, lv, err := s.lookup(meta)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lv.tree.Navigate(d)
	if err := lv.engine.Load(lv.tree.CursorFEN()); err != nil {
		return nil, err
	}
	lv.payload.UpdatedAt = time.Now()
	s.snapshot(ctx, identity, lv)

	state := s.stateFromLive(lv)
	s.attachBoardImage(ctx, lv, state, s.cursorHighlight(lv))
	return state, nil
}

// GotoPly jumps the cursor to the nth mainline half-move (0 = root).
func (s *Service) GotoPly(ctx context.Context, meta SessionMeta, ply int) (*StudyState, error) {
	identity, lv, err := s.lookup(meta)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := lv.tree.Root()
	if ply != 0 {
		id, err = lv.tree.NodeAtPly(ply)
		if err != nil {
			return nil, ErrUnknownPly
		}
	}
	if err := lv.tree.Goto(id); err != nil {
		return nil, err
	}
	if err := lv.engine.Load(lv.tree.CursorFEN()); err != nil {
		return nil, err
	}
	lv.payload.UpdatedAt = time.Now()
	s.snapshot(ctx, identity, lv)

	state := s.stateFromLive(lv)
	s.attachBoardImage(ctx, lv, state, s.cursorHighlight(lv))
	return state, nil
}

// Promote swaps the variation under the cursor with its parent's mainline
// child. The demoted line stays reachable as the first variation.
func (s *Service) Promote(ctx context.Context, meta SessionMeta) (*StudyState, error) {
	identity, lv, err := s.lookup(meta)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := lv.tree.PromoteVariation(lv.tree.Cursor()); err != nil {
		return nil, mapTreeError(err)
	}
	lv.payload.UpdatedAt = time.Now()
	s.snapshot(ctx, identity, lv)

	state := s.stateFromLive(lv)
	s.attachBoardImage(ctx, lv, state, s.cursorHighlight(lv))
	return state, nil
}

// DeleteBranch removes the variation under the cursor and its whole subtree.
// The cursor lands on the deleted branch's parent.
func (s *Service) DeleteBranch(ctx context.Context, meta SessionMeta) (*StudyState, error) {
	identity, lv, err := s.lookup(meta)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := lv.tree.DeleteVariation(lv.tree.Cursor()); err != nil {
		return nil, mapTreeError(err)
	}
	if err := lv.engine.Load(lv.tree.CursorFEN()); err != nil {
		return nil, err
	}
	lv.payload.UpdatedAt = time.Now()
	s.snapshot(ctx, identity, lv)

	state := s.stateFromLive(lv)
	s.attachBoardImage(ctx, lv, state, s.cursorHighlight(lv))
	return state, nil
}

// Flip turns the board image around so the other side is at the bottom.
func (s *Service) Flip(ctx context.Context, meta SessionMeta) (*StudyState, error) {
	_, lv, err := s.lookup(meta)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if lv.orientation == movetree.White {
		lv.orientation = movetree.Black
	} else {
		lv.orientation = movetree.White
	}

	state := s.stateFromLive(lv)
	s.attachBoardImage(ctx, lv, state, s.cursorHighlight(lv))
	return state, nil
}

// Comment annotates the move under the cursor. Empty text clears the
// annotation.
func (s *Service) Comment(ctx context.Context, meta SessionMeta, text string) (*StudyState, error) {
	identity, lv, err := s.lookup(meta)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A "}" would terminate the brace comment early in the movetext.
	text = strings.ReplaceAll(text, "}", "")
	text = truncateRunes(strings.TrimSpace(text), maxCommentRunes)
	if err := lv.tree.SetComment(lv.tree.Cursor(), text); err != nil {
		return nil, mapTreeError(err)
	}
	lv.payload.UpdatedAt = time.Now()
	s.snapshot(ctx, identity, lv)

	return s.stateFromLive(lv), nil
}

// Movetext renders the session's tree as annotated movetext.
func (s *Service) Movetext(ctx context.Context, meta SessionMeta) (string, error) {
	_, lv, err := s.lookup(meta)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return lv.tree.Movetext(), nil
}

// Status reports the current session. A Redis snapshot without a live tree
// (e.g. after a restart) is surfaced read-only with Live=false.
func (s *Service) Status(ctx context.Context, meta SessionMeta) (*StudyState, error) {
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}
	identity := deriveIdentity(meta)

	s.mu.Lock()
	defer s.mu.Unlock()

	if lv, ok := s.sessions[identity.SessionID]; ok {
		state := s.stateFromLive(lv)
		s.attachBoardImage(ctx, lv, state, s.cursorHighlight(lv))
		return state, nil
	}

	payload, err := s.loadSnapshot(ctx, identity)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, ErrStudyNotFound
	}
	return &StudyState{
		StudyUUID: payload.StudyUUID,
		Title:     payload.Title,
		RootFEN:   payload.RootFEN,
		CursorFEN: payload.CursorFEN,
		Movetext:  payload.Movetext,
		MoveCount: payload.MoveCount,
		Live:      false,
		StartedAt: payload.StartedAt,
		UpdatedAt: payload.UpdatedAt,
	}, nil
}

// Save archives the rendered movetext to the repository. Saving twice is
// answered with the already archived record.
func (s *Service) Save(ctx context.Context, meta SessionMeta, title string) (*domain.StudyRecord, error) {
	identity, lv, err := s.lookup(meta)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t := normalizeTitle(title); t != "" {
		lv.payload.Title = t
	}
	recordTitle := lv.payload.Title
	if recordTitle == "" {
		recordTitle = defaultTitle
	}

	record := &domain.StudyRecord{
		StudyUUID:  lv.payload.StudyUUID,
		PlayerHash: identity.PlayerHash,
		RoomHash:   identity.RoomHash,
		Title:      recordTitle,
		RootFEN:    lv.payload.RootFEN,
		Movetext:   lv.tree.Movetext(),
		MoveCount:  lv.tree.Len() - 1,
		CreatedAt:  time.Now(),
	}

	id, err := s.repo.InsertStudy(ctx, record)
	if err != nil {
		if errors.Is(err, ErrDuplicateStudy) {
			existing, fetchErr := s.repo.GetStudyByUUID(ctx, lv.payload.StudyUUID, identity.PlayerHash)
			if fetchErr != nil || existing == nil {
				return nil, err
			}
			return existing, nil
		}
		return nil, err
	}
	record.ID = id

	s.snapshot(ctx, identity, lv)
	return record, nil
}

// List returns the identity's archived studies, newest first.
func (s *Service) List(ctx context.Context, meta SessionMeta, limit int) ([]*domain.StudyRecord, error) {
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.cfg.HistoryLimit {
		limit = s.cfg.HistoryLimit
	}
	identity := deriveIdentity(meta)
	return s.repo.GetRecentStudies(ctx, identity.PlayerHash, limit)
}

// Get fetches one archived study by id.
func (s *Service) Get(ctx context.Context, meta SessionMeta, id int64) (*domain.StudyRecord, error) {
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}
	identity := deriveIdentity(meta)
	record, err := s.repo.GetStudy(ctx, id, identity.PlayerHash)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrStudyNotFound
	}
	return record, nil
}

// Discard drops the live session and its snapshot without archiving.
func (s *Service) Discard(ctx context.Context, meta SessionMeta) error {
	if err := s.ensureRoomAllowed(meta); err != nil {
		return err
	}
	identity := deriveIdentity(meta)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, live := s.sessions[identity.SessionID]
	delete(s.sessions, identity.SessionID)
	if err := s.cache.Del(ctx, s.sessionCacheKey(identity.SessionID)); err != nil {
		s.logger.Warn("failed to drop study snapshot", zap.Error(err))
	}
	if !live {
		return ErrStudyNotFound
	}
	return nil
}

// lookup resolves a live session for the identity. A Redis snapshot with no
// live tree means the process restarted since the study began.
func (s *Service) lookup(meta SessionMeta) (sessionIdentity, *liveStudy, error) {
	if err := s.ensureRoomAllowed(meta); err != nil {
		return sessionIdentity{}, nil, err
	}
	identity := deriveIdentity(meta)

	s.mu.Lock()
	lv, ok := s.sessions[identity.SessionID]
	s.mu.Unlock()
	if !ok {
		payload, err := s.loadSnapshot(context.Background(), identity)
		if err == nil && payload != nil {
			return identity, nil, ErrStudyExpired
		}
		return identity, nil, ErrStudyNotFound
	}
	return identity, lv, nil
}

func (s *Service) ensureRoomAllowed(meta SessionMeta) error {
	if len(s.allowedRooms) == 0 {
		return nil
	}
	room := strings.ToLower(strings.TrimSpace(meta.Room))
	if room == "" {
		room = "unknown-room"
	}
	if _, ok := s.allowedRooms[room]; ok {
		return nil
	}
	s.logger.Info("study room access denied",
		zap.String("room", room),
		zap.String("sender", strings.TrimSpace(meta.Sender)),
	)
	return ErrRoomNotAllowed
}

func (s *Service) stateFromLive(lv *liveStudy) *StudyState {
	cursor := lv.tree.Cursor()
	return &StudyState{
		StudyUUID:   lv.payload.StudyUUID,
		Title:       lv.payload.Title,
		RootFEN:     lv.payload.RootFEN,
		CursorFEN:   lv.tree.CursorFEN(),
		Movetext:    lv.tree.Movetext(),
		MoveCount:   lv.tree.Len() - 1,
		Turn:        lv.engine.SideToMove(),
		Orientation: lv.orientation,
		AtVariation: lv.tree.IsVariation(cursor),
		AtRoot:      cursor == lv.tree.Root(),
		Live:        true,
		StartedAt:   lv.payload.StartedAt,
		UpdatedAt:   lv.payload.UpdatedAt,
	}
}

// cursorHighlight recomputes the from/to squares of the cursor's move by
// replaying it from the parent position. Nil at the root.
func (s *Service) cursorHighlight(lv *liveStudy) *board.MoveHighlight {
	cursor := lv.tree.Cursor()
	node, ok := lv.tree.Lookup(cursor)
	if !ok || node.Move == "" {
		return nil
	}
	parentFEN, err := lv.tree.FEN(node.Parent)
	if err != nil {
		return nil
	}
	probe, err := rules.NewFromFEN(parentFEN)
	if err != nil {
		return nil
	}
	if _, err := probe.AttemptSAN(node.Move); err != nil {
		return nil
	}
	from, to, ok := probe.LastMoveSquares()
	if !ok {
		return nil
	}
	return &board.MoveHighlight{From: from, To: to}
}

func (s *Service) attachBoardImage(ctx context.Context, lv *liveStudy, state *StudyState, highlight *board.MoveHighlight) {
	if state == nil {
		return
	}
	header := state.Title
	if header == "" {
		header = defaultTitle
	}
	footer := "White to move"
	if state.Turn == movetree.Black {
		footer = "Black to move"
	}

	// The disc marks the square the cursor's move landed on.
	var marker *nchess.Square
	if highlight != nil {
		sq := highlight.To
		marker = &sq
	}

	data, err := s.renderer.RenderPNG(ctx, lv.engine.Board(), board.RenderOptions{
		Highlight:   highlight,
		Marker:      marker,
		Orientation: lv.orientation,
		Header:      header,
		Footer:      footer,
	})
	if err != nil {
		s.logger.Warn("failed to render board image", zap.Error(err))
		return
	}
	state.BoardImage = data
}

func (s *Service) sessionCacheKey(sessionID string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(sessionID)))
	return "study:sessions:" + hex.EncodeToString(hash[:])
}

func (s *Service) snapshot(ctx context.Context, identity sessionIdentity, lv *liveStudy) {
	lv.payload.CursorFEN = lv.tree.CursorFEN()
	lv.payload.Movetext = lv.tree.Movetext()
	lv.payload.MoveCount = lv.tree.Len() - 1
	if err := s.cache.Set(ctx, s.sessionCacheKey(identity.SessionID), lv.payload, s.cfg.SessionTTL); err != nil {
		s.logger.Warn("failed to cache study snapshot",
			zap.Error(err),
			zap.String("study_uuid", lv.payload.StudyUUID),
		)
	}
}

func (s *Service) loadSnapshot(ctx context.Context, identity sessionIdentity) (*studyPayload, error) {
	payload := &studyPayload{}
	if err := s.cache.Get(ctx, s.sessionCacheKey(identity.SessionID), payload); err != nil {
		return nil, err
	}
	if payload.StudyUUID == "" {
		return nil, nil
	}
	return payload, nil
}

func buildPosition(fen string) (*rules.Engine, *movetree.Tree, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return rules.New(), movetree.NewFromStart(), nil
	}
	engine, err := rules.NewFromFEN(fen)
	if err != nil {
		return nil, nil, ErrInvalidPosition
	}
	tree := movetree.New(engine.FEN(), engine.SideToMove(), engine.FullMoveNumber())
	return engine, tree, nil
}

func mapTreeError(err error) error {
	switch {
	case errors.Is(err, movetree.ErrNotVariation):
		return ErrNotVariation
	case errors.Is(err, movetree.ErrRootNode):
		return ErrAtRoot
	case errors.Is(err, movetree.ErrUnknownNode):
		return ErrStudyNotFound
	default:
		return err
	}
}

func deriveIdentity(meta SessionMeta) sessionIdentity {
	sessionID := strings.ToLower(strings.TrimSpace(meta.SessionID))
	if sessionID == "" {
		room := strings.ToLower(strings.TrimSpace(meta.Room))
		sender := strings.ToLower(strings.TrimSpace(meta.Sender))
		sessionID = room + ":" + sender
	}
	room := strings.ToLower(strings.TrimSpace(meta.Room))
	sender := strings.ToLower(strings.TrimSpace(meta.Sender))

	return sessionIdentity{
		SessionID:  sessionID,
		RoomHash:   hashString(room),
		PlayerHash: hashString(room + ":" + sender),
	}
}

func hashString(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func normalizeTitle(raw string) string {
	cleaned := strings.Join(strings.Fields(strings.TrimSpace(raw)), " ")
	return truncateRunes(cleaned, titleRuneLimit)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit]))
}
