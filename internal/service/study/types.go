package study

import (
	"time"

	"github.com/park285/chess-study-bot/internal/movetree"
	"github.com/park285/chess-study-bot/internal/rules"
)

// SessionMeta identifies the chat origin of a command.
type SessionMeta struct {
	SessionID string
	Room      string
	Sender    string
}

type sessionIdentity struct {
	SessionID  string
	RoomHash   string
	PlayerHash string
}

// Config controls session behavior.
type Config struct {
	SessionTTL   time.Duration
	HistoryLimit int
	AllowedRooms []string
	BoardTheme   string
}

// studyPayload is the flat snapshot cached in Redis. It carries no tree
// structure: just identity and the rendered movetext, enough for status
// display and liveness. The live tree exists only in process memory.
type studyPayload struct {
	StudyUUID  string    `json:"study_uuid"`
	PlayerHash string    `json:"player_hash"`
	RoomHash   string    `json:"room_hash"`
	Title      string    `json:"title,omitempty"`
	RootFEN    string    `json:"root_fen"`
	CursorFEN  string    `json:"cursor_fen"`
	Movetext   string    `json:"movetext"`
	MoveCount  int       `json:"move_count"`
	StartedAt  time.Time `json:"started_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// liveStudy is one in-process session: the tree, the rules engine it drives,
// and snapshot metadata. orientation is the side drawn at the bottom of board
// images; it is cosmetic and not part of the snapshot.
type liveStudy struct {
	payload     *studyPayload
	tree        *movetree.Tree
	engine      *rules.Engine
	orientation movetree.Color
}

// StudyState is the caller-facing view of a session after an operation.
type StudyState struct {
	StudyUUID   string
	Title       string
	RootFEN     string
	CursorFEN   string
	Movetext    string
	MoveCount   int
	Turn        movetree.Color
	Orientation movetree.Color // side at the bottom of the board image
	AtVariation bool
	AtRoot      bool
	Live        bool // false when reconstructed from a Redis snapshot only
	BoardImage  []byte
	StartedAt   time.Time
	UpdatedAt   time.Time
}

// MoveSummary is the result of playing a move into the tree.
type MoveSummary struct {
	State        *StudyState
	SAN          string
	UCI          string
	NewVariation bool   // the move diverged from the existing mainline
	Reused       bool   // the move matched an existing child, no node created
	Outcome      string // "1-0", "0-1", "1/2-1/2" or "" while undecided
}
