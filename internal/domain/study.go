package domain

import "time"

// StudyRecord is the archived snapshot of a study: identity plus the rendered
// annotated movetext. The live move tree is never persisted.
type StudyRecord struct {
	ID         int64
	StudyUUID  string
	PlayerHash string
	RoomHash   string
	Title      string
	RootFEN    string
	Movetext   string
	MoveCount  int
	CreatedAt  time.Time
}
