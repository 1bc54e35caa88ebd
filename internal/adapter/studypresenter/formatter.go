package studypresenter

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/chess-study-bot/internal/movetree"
	"github.com/park285/chess-study-bot/internal/msgcat"
	"github.com/park285/chess-study-bot/pkg/studydto"
)

const fallbackMessage = "Something went wrong; try again."

// Formatter renders study DTOs into chat-friendly text using the message catalog.
type Formatter struct {
	cat *msgcat.Catalog
}

func NewFormatter(cat *msgcat.Catalog) *Formatter {
	return &Formatter{cat: cat}
}

func (f *Formatter) render(key string, data any) string {
	if f == nil || f.cat == nil {
		return fallbackMessage
	}
	out, err := f.cat.Render(key, data)
	if err != nil {
		return f.Generic()
	}
	return out
}

func (f *Formatter) Start(state *studydto.StudyState) string {
	if state == nil {
		return f.Generic()
	}
	if state.RootFEN != "" && state.RootFEN != movetree.StartFEN {
		return f.render("study.started_fen", map[string]any{"Turn": state.Turn})
	}
	return f.render("study.started", nil)
}

func (f *Formatter) InProgress() string {
	return f.render("study.in_progress", nil)
}

func (f *Formatter) Imported(state *studydto.StudyState) string {
	if state == nil {
		return f.Generic()
	}
	return f.render("study.imported", map[string]any{
		"Title":     state.Title,
		"MoveCount": state.MoveCount,
	})
}

func (f *Formatter) Move(summary *studydto.MoveSummary) string {
	if summary == nil {
		return f.Generic()
	}
	data := map[string]any{"SAN": summary.SAN}
	var line string
	switch {
	case summary.Reused:
		line = f.render("move.reused", data)
	case summary.NewVariation:
		line = f.render("move.variation", data)
	default:
		line = f.render("move.played", data)
	}
	if summary.Outcome != "" {
		line += "\n" + f.render("move.finished", map[string]any{"Outcome": summary.Outcome})
	}
	return line
}

func (f *Formatter) InvalidMove() string {
	return f.render("move.invalid", nil)
}

func (f *Formatter) Status(state *studydto.StudyState) string {
	if state == nil {
		return f.NoStudy()
	}
	title := state.Title
	if title == "" {
		title = "Study"
	}
	var sb strings.Builder
	sb.WriteString(f.render("study.status", map[string]any{
		"Title":     title,
		"MoveCount": state.MoveCount,
		"Turn":      state.Turn,
	}))
	if state.Movetext != "" {
		sb.WriteString("\n")
		sb.WriteString(state.Movetext)
	}
	if !state.Live {
		sb.WriteString("\n")
		sb.WriteString(f.render("study.expired", nil))
	}
	return sb.String()
}

func (f *Formatter) Movetext(text string) string {
	if strings.TrimSpace(text) == "" {
		return f.render("study.status", map[string]any{"Title": "Study", "MoveCount": 0, "Turn": "white"})
	}
	return text
}

func (f *Formatter) Saved(rec *studydto.StudyRecord) string {
	if rec == nil {
		return f.Generic()
	}
	return f.render("study.saved", map[string]any{
		"ID":        rec.ID,
		"Title":     rec.Title,
		"MoveCount": rec.MoveCount,
	})
}

func (f *Formatter) List(records []*studydto.StudyRecord) string {
	if len(records) == 0 {
		return f.render("list.empty", nil)
	}
	var sb strings.Builder
	sb.WriteString(f.render("list.header", nil))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(f.render("list.row", map[string]any{
			"ID":        rec.ID,
			"Title":     rec.Title,
			"MoveCount": rec.MoveCount,
			"Date":      formatShortTime(rec.CreatedAt),
		}))
	}
	return sb.String()
}

func (f *Formatter) Record(rec *studydto.StudyRecord) string {
	if rec == nil {
		return f.Generic()
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("#%d %s (%d moves, %s)", rec.ID, rec.Title, rec.MoveCount, formatShortTime(rec.CreatedAt)))
	if rec.Movetext != "" {
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimSpace(rec.Movetext))
	}
	return sb.String()
}

func (f *Formatter) Promoted() string {
	return f.render("edit.promoted", nil)
}

func (f *Formatter) Deleted() string {
	return f.render("edit.deleted", nil)
}

func (f *Formatter) Commented() string {
	return f.render("edit.commented", nil)
}

func (f *Formatter) NotVariation() string {
	return f.render("edit.not_variation", nil)
}

func (f *Formatter) AtRoot() string {
	return f.render("edit.at_root", nil)
}

func (f *Formatter) Flipped(state *studydto.StudyState) string {
	if state == nil {
		return f.Generic()
	}
	return f.render("study.flipped", map[string]any{"Bottom": state.Orientation})
}

func (f *Formatter) GotoInvalid(ply int) string {
	return f.render("nav.goto_invalid", map[string]any{"Ply": ply})
}

func (f *Formatter) NoStudy() string {
	return f.render("study.not_found", nil)
}

func (f *Formatter) Expired() string {
	return f.render("study.expired", nil)
}

func (f *Formatter) Discarded() string {
	return f.render("study.discarded", nil)
}

func (f *Formatter) RoomDenied() string {
	return f.render("room.denied", nil)
}

func (f *Formatter) PackFetchFailed(reason string) string {
	return f.render("pack.fetch_failed", map[string]any{"Reason": reason})
}

func (f *Formatter) PackEmpty() string {
	return f.render("pack.empty", nil)
}

func (f *Formatter) Help() string {
	return f.render("help.text", nil)
}

func (f *Formatter) Generic() string {
	if f == nil || f.cat == nil {
		return fallbackMessage
	}
	out, err := f.cat.Render("error.generic", nil)
	if err != nil {
		return fallbackMessage
	}
	return out
}

func formatShortTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
