package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-study-bot/internal/adapter/studypresenter"
	appcfg "github.com/park285/chess-study-bot/internal/config"
	"github.com/park285/chess-study-bot/internal/movetree"
	"github.com/park285/chess-study-bot/internal/msgcat"
	"github.com/park285/chess-study-bot/internal/obslog"
	"github.com/park285/chess-study-bot/internal/packs"
	"github.com/park285/chess-study-bot/internal/relay"
	svcstudy "github.com/park285/chess-study-bot/internal/service/study"
	"github.com/park285/chess-study-bot/internal/studybuilder"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	headers := func() map[string]string {
		h := map[string]string{}
		if cfg.RelayAuthToken != "" {
			h["Authorization"] = "Bearer " + cfg.RelayAuthToken
		}
		return h
	}

	client := relay.NewClient(cfg.RelayBaseURL, relay.WithHeaderProvider(headers))

	ws := relay.NewWebSocket(cfg.RelayWSURL, 5, time.Second)
	ws.SetHeaderProvider(headers)
	ws.OnStateChange(func(state relay.WebSocketState) {
		logger.Info("ws_state", zap.String("state", state.String()))
	})

	deps, err := studybuilder.New(cfg, logger)
	if err != nil {
		log.Fatalf("study init error: %v", err)
	}
	defer func() { _ = deps.Close() }()

	egress := relay.NewEgress(cfg.EgressMode, cfg.EgressDryRun, client, ws, logger)

	cat, err := msgcat.New(cfg.MsgTemplateDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	b := &bot{
		study: deps.Service,
		presenter: studypresenter.NewPresenter(
			func(room, message string) error { return egress.SendText(context.Background(), room, message) },
			func(room, imageBase64 string) error { return egress.SendImage(context.Background(), room, imageBase64) },
		),
		formatter: studypresenter.NewFormatter(cat),
		fetcher:   packs.NewFetcher(packs.WithTimeout(time.Duration(cfg.PackFetchTimeoutSec) * time.Second)),
		prefix:    cfg.BotPrefix,
		logger:    logger,
	}

	ws.OnMessage(func(msg *relay.Message) {
		if msg == nil || msg.Msg == "" {
			return
		}
		if !strings.HasPrefix(strings.TrimSpace(msg.Msg), cfg.BotPrefix) {
			return
		}
		// Keep the WS read loop free.
		go b.handle(msg)
	})

	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ws.Connect(cctx); err != nil {
		cancel()
		log.Fatalf("ws connect error: %v", err)
	}
	cancel()
	logger.Info("study_bot_started", zap.String("relay", cfg.RelayBaseURL), zap.String("egress", cfg.EgressMode))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	_ = ws.Close(context.Background())
}

type bot struct {
	study     *svcstudy.Service
	presenter *studypresenter.Presenter
	formatter *studypresenter.Formatter
	fetcher   *packs.Fetcher
	prefix    string
	logger    *zap.Logger
}

func (b *bot) handle(msg *relay.Message) {
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(msg.Msg), b.prefix))
	if raw == "" {
		_ = b.presenter.Text(msg.Room, b.formatter.Help())
		return
	}
	parts := strings.Fields(raw)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	meta := svcstudy.SessionMeta{
		SessionID: sessionIDFor(msg),
		Room:      msg.Room,
		Sender:    senderName(msg),
	}
	ctx := context.Background()

	switch cmd {
	case "help":
		_ = b.presenter.Text(msg.Room, b.formatter.Help())
	case "start":
		// A FEN contains spaces, so the whole tail is the position.
		fen := strings.TrimSpace(strings.Join(args, " "))
		state, err := b.study.Start(ctx, meta, fen)
		if errors.Is(err, svcstudy.ErrStudyInProgress) {
			dto := studypresenter.ToDTOState(state)
			_ = b.presenter.Board(msg.Room, b.formatter.InProgress(), dto)
			return
		}
		if err != nil {
			b.reportError(msg.Room, "start", err)
			return
		}
		dto := studypresenter.ToDTOState(state)
		_ = b.presenter.Board(msg.Room, b.formatter.Start(dto), dto)
	case "back", "next", "first", "last":
		state, err := b.study.Navigate(ctx, meta, directionFor(cmd))
		if err != nil {
			b.reportError(msg.Room, cmd, err)
			return
		}
		dto := studypresenter.ToDTOState(state)
		_ = b.presenter.Board(msg.Room, "", dto)
	case "goto":
		if len(args) < 1 {
			_ = b.presenter.Text(msg.Room, "Usage: "+b.prefix+"goto <half-move>")
			return
		}
		ply, perr := strconv.Atoi(args[0])
		if perr != nil {
			_ = b.presenter.Text(msg.Room, "Usage: "+b.prefix+"goto <half-move>")
			return
		}
		state, err := b.study.GotoPly(ctx, meta, ply)
		if errors.Is(err, svcstudy.ErrUnknownPly) {
			_ = b.presenter.Text(msg.Room, b.formatter.GotoInvalid(ply))
			return
		}
		if err != nil {
			b.reportError(msg.Room, cmd, err)
			return
		}
		dto := studypresenter.ToDTOState(state)
		_ = b.presenter.Board(msg.Room, "", dto)
	case "flip":
		state, err := b.study.Flip(ctx, meta)
		if err != nil {
			b.reportError(msg.Room, cmd, err)
			return
		}
		dto := studypresenter.ToDTOState(state)
		_ = b.presenter.Board(msg.Room, b.formatter.Flipped(dto), dto)
	case "promote":
		state, err := b.study.Promote(ctx, meta)
		if err != nil {
			b.reportError(msg.Room, cmd, err)
			return
		}
		dto := studypresenter.ToDTOState(state)
		_ = b.presenter.Board(msg.Room, b.formatter.Promoted(), dto)
	case "delete":
		state, err := b.study.DeleteBranch(ctx, meta)
		if err != nil {
			b.reportError(msg.Room, cmd, err)
			return
		}
		dto := studypresenter.ToDTOState(state)
		_ = b.presenter.Board(msg.Room, b.formatter.Deleted(), dto)
	case "comment":
		text := strings.TrimSpace(strings.Join(args, " "))
		if text == "" {
			_ = b.presenter.Text(msg.Room, "Usage: "+b.prefix+"comment <text>")
			return
		}
		if _, err := b.study.Comment(ctx, meta, text); err != nil {
			b.reportError(msg.Room, cmd, err)
			return
		}
		_ = b.presenter.Text(msg.Room, b.formatter.Commented())
	case "pgn":
		text, err := b.study.Movetext(ctx, meta)
		if err != nil {
			b.reportError(msg.Room, cmd, err)
			return
		}
		_ = b.presenter.Text(msg.Room, b.formatter.Movetext(text))
	case "status":
		state, err := b.study.Status(ctx, meta)
		if err != nil {
			b.reportError(msg.Room, cmd, err)
			return
		}
		dto := studypresenter.ToDTOState(state)
		_ = b.presenter.Board(msg.Room, b.formatter.Status(dto), dto)
	case "open":
		if len(args) < 1 {
			_ = b.presenter.Text(msg.Room, "Usage: "+b.prefix+"open <url>")
			return
		}
		b.handleOpen(ctx, meta, msg.Room, args[0])
	case "save":
		title := strings.TrimSpace(strings.Join(args, " "))
		rec, err := b.study.Save(ctx, meta, title)
		if err != nil {
			b.reportError(msg.Room, cmd, err)
			return
		}
		_ = b.presenter.Text(msg.Room, b.formatter.Saved(studypresenter.ToDTORecord(rec)))
	case "list":
		recs, err := b.study.List(ctx, meta, 0)
		if err != nil {
			b.reportError(msg.Room, cmd, err)
			return
		}
		_ = b.presenter.Text(msg.Room, b.formatter.List(studypresenter.ToDTORecords(recs)))
	case "show":
		if len(args) < 1 {
			_ = b.presenter.Text(msg.Room, "Usage: "+b.prefix+"show <id>")
			return
		}
		id, perr := strconv.ParseInt(args[0], 10, 64)
		if perr != nil {
			_ = b.presenter.Text(msg.Room, "Usage: "+b.prefix+"show <id>")
			return
		}
		rec, err := b.study.Get(ctx, meta, id)
		if err != nil {
			b.reportError(msg.Room, cmd, err)
			return
		}
		_ = b.presenter.Text(msg.Room, b.formatter.Record(studypresenter.ToDTORecord(rec)))
	case "discard":
		if err := b.study.Discard(ctx, meta); err != nil {
			b.reportError(msg.Room, cmd, err)
			return
		}
		_ = b.presenter.Text(msg.Room, b.formatter.Discarded())
	default:
		// Anything else is a move, case preserved: SAN is case-sensitive.
		b.handleMove(ctx, meta, msg.Room, parts[0])
	}
}

func (b *bot) handleMove(ctx context.Context, meta svcstudy.SessionMeta, room, moveText string) {
	summary, err := b.study.Play(ctx, meta, moveText)
	if err != nil {
		b.reportError(room, "move", err)
		return
	}
	dto := studypresenter.ToDTOMoveSummary(summary)
	_ = b.presenter.Board(room, b.formatter.Move(dto), dto.State)
}

func (b *bot) handleOpen(ctx context.Context, meta svcstudy.SessionMeta, room, url string) {
	raw, err := b.fetcher.Fetch(ctx, url)
	if err != nil {
		_ = b.presenter.Text(room, b.formatter.PackFetchFailed(err.Error()))
		return
	}
	games, err := packs.ParsePack(raw)
	if err != nil {
		if errors.Is(err, packs.ErrEmptyPack) {
			_ = b.presenter.Text(room, b.formatter.PackEmpty())
			return
		}
		_ = b.presenter.Text(room, b.formatter.PackFetchFailed(err.Error()))
		return
	}
	game := games[0]
	state, err := b.study.StartFromMoves(ctx, meta, game.Title, game.Moves)
	if errors.Is(err, svcstudy.ErrStudyInProgress) {
		dto := studypresenter.ToDTOState(state)
		_ = b.presenter.Board(room, b.formatter.InProgress(), dto)
		return
	}
	if err != nil {
		b.reportError(room, "open", err)
		return
	}
	dto := studypresenter.ToDTOState(state)
	_ = b.presenter.Board(room, b.formatter.Imported(dto), dto)
}

// reportError maps service errors onto catalog messages; anything unmapped
// gets the generic line and a log entry.
func (b *bot) reportError(room, op string, err error) {
	var text string
	switch {
	case errors.Is(err, svcstudy.ErrStudyNotFound):
		text = b.formatter.NoStudy()
	case errors.Is(err, svcstudy.ErrStudyExpired):
		text = b.formatter.Expired()
	case errors.Is(err, svcstudy.ErrInvalidMove):
		text = b.formatter.InvalidMove()
	case errors.Is(err, svcstudy.ErrInvalidPosition):
		text = "That FEN does not describe a legal position."
	case errors.Is(err, svcstudy.ErrNotVariation):
		text = b.formatter.NotVariation()
	case errors.Is(err, svcstudy.ErrAtRoot):
		text = b.formatter.AtRoot()
	case errors.Is(err, svcstudy.ErrRoomNotAllowed):
		text = b.formatter.RoomDenied()
	default:
		b.logger.Warn("command_failed", zap.String("op", op), zap.String("room", room), zap.Error(err))
		text = b.formatter.Generic()
	}
	_ = b.presenter.Text(room, text)
}

func directionFor(cmd string) movetree.Direction {
	switch cmd {
	case "first":
		return movetree.Start
	case "last":
		return movetree.End
	case "next":
		return movetree.Next
	default:
		return movetree.Prev
	}
}

func sessionIDFor(msg *relay.Message) string {
	uid := msg.UserID()
	if uid == "" {
		uid = "player"
	}
	return fmt.Sprintf("%s:%s", strings.TrimSpace(msg.Room), strings.TrimSpace(uid))
}

func senderName(msg *relay.Message) string {
	if uid := strings.TrimSpace(msg.UserID()); uid != "" {
		return uid
	}
	return "player"
}
