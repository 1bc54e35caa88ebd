package studydto

import "time"

type StudyState struct {
	StudyUUID   string
	Title       string
	RootFEN     string
	CursorFEN   string
	Movetext    string
	MoveCount   int
	Turn        string
	Orientation string
	AtVariation bool
	AtRoot      bool
	Live        bool
	BoardImage  []byte
	StartedAt   time.Time
	UpdatedAt   time.Time
}
