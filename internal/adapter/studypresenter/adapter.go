package studypresenter

import (
	"github.com/park285/chess-study-bot/internal/domain"
	svc "github.com/park285/chess-study-bot/internal/service/study"
	"github.com/park285/chess-study-bot/pkg/studydto"
)

func ToDTOState(s *svc.StudyState) *studydto.StudyState {
	if s == nil {
		return nil
	}
	return &studydto.StudyState{
		StudyUUID:   s.StudyUUID,
		Title:       s.Title,
		RootFEN:     s.RootFEN,
		CursorFEN:   s.CursorFEN,
		Movetext:    s.Movetext,
		MoveCount:   s.MoveCount,
		Turn:        s.Turn.String(),
		Orientation: s.Orientation.String(),
		AtVariation: s.AtVariation,
		AtRoot:      s.AtRoot,
		Live:        s.Live,
		BoardImage:  append([]byte(nil), s.BoardImage...),
		StartedAt:   s.StartedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func ToDTOMoveSummary(m *svc.MoveSummary) *studydto.MoveSummary {
	if m == nil {
		return nil
	}
	return &studydto.MoveSummary{
		State:        ToDTOState(m.State),
		SAN:          m.SAN,
		UCI:          m.UCI,
		NewVariation: m.NewVariation,
		Reused:       m.Reused,
		Outcome:      m.Outcome,
	}
}

func ToDTORecord(r *domain.StudyRecord) *studydto.StudyRecord {
	if r == nil {
		return nil
	}
	rr := *r
	return &studydto.StudyRecord{
		ID:        rr.ID,
		StudyUUID: rr.StudyUUID,
		Title:     rr.Title,
		RootFEN:   rr.RootFEN,
		Movetext:  rr.Movetext,
		MoveCount: rr.MoveCount,
		CreatedAt: rr.CreatedAt,
	}
}

func ToDTORecords(list []*domain.StudyRecord) []*studydto.StudyRecord {
	out := make([]*studydto.StudyRecord, 0, len(list))
	for _, r := range list {
		if r == nil {
			continue
		}
		out = append(out, ToDTORecord(r))
	}
	return out
}
