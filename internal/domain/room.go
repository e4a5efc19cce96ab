package domain

import (
	"fmt"
	"math/rand"
	"regexp"
)

// Role distinguishes the admin driving a quiz from regular players.
// It is an explicit tag on every participant and live connection;
// names carry no special meaning.
type Role string

const (
	RoleAdmin  Role = "admin"
	RolePlayer Role = "player"
)

// SessionState is the lifecycle stage of a room's quiz.
type SessionState string

const (
	SessionIdle    SessionState = "idle"
	SessionRunning SessionState = "running"
	SessionEnded   SessionState = "ended"
)

// Participant is a joined identity within a room, unique by
// (roomCode, name).
type Participant struct {
	Name      string  `json:"name"`
	Role      Role    `json:"role"`
	Score     int     `json:"score"`
	TimeTaken float64 `json:"timeTaken"`
}

// LeaderboardEntry is a derived row of the per-room leaderboard,
// sorted by score descending with ties in ledger-insertion order.
type LeaderboardEntry struct {
	Name      string  `json:"name"`
	Score     int     `json:"score"`
	TimeTaken float64 `json:"timeTaken"`
}

// ScoreEvent describes a recorded answer, emitted to write-behind
// sinks (Redis mirror, Postgres store, Kafka analytics).
type ScoreEvent struct {
	RoomCode   string  `json:"room_code"`
	PlayerName string  `json:"player_name"`
	Correct    bool    `json:"correct"`
	Points     int     `json:"points"`
	TimeTaken  float64 `json:"time_taken"`
	Score      int     `json:"score"`
	TotalTime  float64 `json:"total_time"`
}

var roomCodePattern = regexp.MustCompile(`^[0-9]{4}-[0-9]{4}$`)

// ValidRoomCode reports whether code matches the canonical
// DDDD-DDDD format.
func ValidRoomCode(code string) bool {
	return roomCodePattern.MatchString(code)
}

// NewRoomCode generates a room code in the canonical format. Codes are
// not guaranteed globally unique; uniqueness is only enforced by
// registry membership checks.
func NewRoomCode() string {
	return fmt.Sprintf("%04d-%04d", 1000+rand.Intn(9000), 1000+rand.Intn(9000))
}
