package studydto

import "time"

type StudyRecord struct {
	ID        int64
	StudyUUID string
	Title     string
	RootFEN   string
	Movetext  string
	MoveCount int
	CreatedAt time.Time
}
