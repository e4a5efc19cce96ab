// Package session owns all per-room quiz state: registry membership,
// live connections, score ledgers, and the quiz lifecycle. A single
// Store instance is the one authority for every room; each operation
// runs its full read-modify-write-broadcast sequence under the store
// mutex so no two messages for the same room can interleave.
package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/quizroom/internal/domain"
	"github.com/quizroom/internal/protocol"
	"github.com/quizroom/internal/questions"
)

// Sender is a live transport endpoint bound to one open connection.
// Send must not block; Close must be safe to call more than once and
// after the peer has already gone away.
type Sender interface {
	Send(msg protocol.Message)
	Close()
}

// ScoreSink receives score state changes off the hot path. Sinks are
// write-behind: failures are logged and never affect room state.
type ScoreSink interface {
	Name() string
	RecordScore(ctx context.Context, ev domain.ScoreEvent) error
	ResetRoom(ctx context.Context, roomCode string) error
	DropRoom(ctx context.Context, roomCode string) error
}

type liveConn struct {
	sender   Sender
	name     string
	role     domain.Role
	openedAt time.Time
}

type ledgerEntry struct {
	score     int
	timeTaken float64
}

type room struct {
	registry map[string]domain.Role
	conns    []*liveConn

	// ledger insertion order is preserved so leaderboard ties keep
	// first-scored-first ordering.
	ledger      map[string]*ledgerEntry
	ledgerOrder []string

	state    domain.SessionState
	question int
}

func newRoom() *room {
	return &room{
		registry: make(map[string]domain.Role),
		ledger:   make(map[string]*ledgerEntry),
		state:    domain.SessionIdle,
	}
}

func (r *room) broadcast(msg protocol.Message) {
	for _, c := range r.conns {
		c.sender.Send(msg)
	}
}

func (r *room) playerNames() []string {
	players := make([]string, 0, len(r.conns))
	for _, c := range r.conns {
		if c.role != domain.RoleAdmin {
			players = append(players, c.name)
		}
	}
	return players
}

func (r *room) leaderboard() []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(r.ledgerOrder))
	for _, name := range r.ledgerOrder {
		e := r.ledger[name]
		entries = append(entries, domain.LeaderboardEntry{
			Name:      name,
			Score:     e.score,
			TimeTaken: e.timeTaken,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return entries
}

// Store is the authoritative in-memory coordinator state.
type Store struct {
	mu sync.Mutex

	rooms      map[string]*room
	questions  *questions.Source
	sinks      []ScoreSink
	resetGrace time.Duration
	logger     *slog.Logger
}

// New creates a Store serving questions from src. resetGrace is how
// long player connections stay open after an admin reset before being
// force-closed.
func New(src *questions.Source, resetGrace time.Duration, logger *slog.Logger) *Store {
	if resetGrace <= 0 {
		resetGrace = time.Second
	}
	return &Store{
		rooms:      make(map[string]*room),
		questions:  src,
		resetGrace: resetGrace,
		logger:     logger,
	}
}

// AddSink attaches a write-behind score sink. Not safe to call after
// the store is serving traffic.
func (s *Store) AddSink(sink ScoreSink) {
	s.sinks = append(s.sinks, sink)
}

// Register enters a name into a room's registry ahead of connecting.
// The room is implicitly created on first registration. Fails with
// domain.ErrNameTaken if the name is already registered in that room.
func (s *Store) Register(roomCode, name string, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomCode]
	if !ok {
		r = newRoom()
		s.rooms[roomCode] = r
	}
	if _, taken := r.registry[name]; taken {
		return domain.ErrNameTaken
	}
	r.registry[name] = role
	s.logger.Info("player registered", "room", roomCode, "player", name, "role", role)
	return nil
}

// RoomExists reports whether a room is currently alive.
func (s *Store) RoomExists(roomCode string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[roomCode]
	return ok
}

// Connect binds a live connection to (roomCode, name). A stale
// connection for the same name is replaced in place, keeping join
// order, and closed so it cannot receive duplicate broadcasts. Every
// connect broadcasts a full membership snapshot to the room.
func (s *Store) Connect(roomCode, name string, role domain.Role, sender Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomCode]
	if !ok {
		r = newRoom()
		s.rooms[roomCode] = r
	}

	conn := &liveConn{sender: sender, name: name, role: role, openedAt: time.Now()}
	replaced := false
	for i, c := range r.conns {
		if c.name == name {
			c.sender.Close()
			r.conns[i] = conn
			replaced = true
			break
		}
	}
	if !replaced {
		r.conns = append(r.conns, conn)
	}

	players := r.playerNames()
	r.broadcast(protocol.Message{
		Type: protocol.TypeUserJoined,
		Payload: protocol.MembershipPayload{
			PlayerName:   name,
			Players:      players,
			TotalPlayers: len(players),
		},
	})
	s.logger.Info("player connected", "room", roomCode, "player", name, "role", role, "replaced", replaced)
}

// Disconnect removes the connection bound to (roomCode, name) and
// returns the number of live connections left in the room. Non-admin
// registry entries are dropped with the connection. When the last
// connection goes, the room and all its state are deleted and sinks
// are told to drop the room. Unknown rooms and already-removed
// connections are a no-op.
func (s *Store) Disconnect(roomCode, name string, sender Sender) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomCode]
	if !ok {
		return 0
	}

	removed := false
	for i, c := range r.conns {
		// Match on the transport when we have it so that a replaced
		// connection closing late cannot evict its successor.
		if c.name != name || (sender != nil && c.sender != sender) {
			continue
		}
		r.conns = append(r.conns[:i], r.conns[i+1:]...)
		if c.role != domain.RoleAdmin {
			delete(r.registry, name)
		}
		removed = true
		break
	}
	if !removed {
		return len(r.conns)
	}

	if len(r.conns) == 0 {
		delete(s.rooms, roomCode)
		s.notifySinks(func(sink ScoreSink) error { return sink.DropRoom(context.Background(), roomCode) })
		s.logger.Info("room deleted, no connections remaining", "room", roomCode)
		return 0
	}

	players := r.playerNames()
	r.broadcast(protocol.Message{
		Type: protocol.TypeUserLeft,
		Payload: protocol.MembershipPayload{
			PlayerName:   name,
			Players:      players,
			TotalPlayers: len(players),
		},
	})
	s.logger.Info("player left", "room", roomCode, "player", name)
	return len(r.conns)
}

// ListPlayers returns the names of live non-admin connections in join
// order.
func (s *Store) ListPlayers(roomCode string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomCode]
	if !ok {
		return nil
	}
	return r.playerNames()
}

// RecordAnswer applies one answer result to the room's score ledger
// and broadcasts the recomputed leaderboard. Not idempotent: callers
// must invoke it at most once per participant and question.
func (s *Store) RecordAnswer(roomCode, name string, isCorrect bool, timeTaken float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomCode]
	if !ok {
		return domain.ErrRoomNotFound
	}

	e, ok := r.ledger[name]
	if !ok {
		e = &ledgerEntry{}
		r.ledger[name] = e
		r.ledgerOrder = append(r.ledgerOrder, name)
	}

	points := 0
	if isCorrect {
		points = domain.ScoreFor(timeTaken)
		e.score += points
	}
	e.timeTaken += timeTaken

	r.broadcast(protocol.LeaderboardMessage(r.leaderboard()))

	ev := domain.ScoreEvent{
		RoomCode:   roomCode,
		PlayerName: name,
		Correct:    isCorrect,
		Points:     points,
		TimeTaken:  timeTaken,
		Score:      e.score,
		TotalTime:  e.timeTaken,
	}
	s.notifySinks(func(sink ScoreSink) error { return sink.RecordScore(context.Background(), ev) })
	return nil
}

// Leaderboard returns the room's current standings, score descending,
// ties in ledger-insertion order.
func (s *Store) Leaderboard(roomCode string) []domain.LeaderboardEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomCode]
	if !ok {
		return nil
	}
	return r.leaderboard()
}

// Ledgers snapshots every room's standings, keyed by room code. Used
// by the persistence reconciler.
func (s *Store) Ledgers() map[string][]domain.LeaderboardEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]domain.LeaderboardEntry, len(s.rooms))
	for code, r := range s.rooms {
		if len(r.ledger) > 0 {
			out[code] = r.leaderboard()
		}
	}
	return out
}

// State returns a room's session state, or false if the room is not
// alive.
func (s *Store) State(roomCode string) (domain.SessionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomCode]
	if !ok {
		return "", false
	}
	return r.state, true
}

// Stats reports the number of live rooms and connections.
func (s *Store) Stats() (rooms, conns int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rooms {
		conns += len(r.conns)
	}
	return len(s.rooms), conns
}

// notifySinks fans a state change out to the write-behind sinks on a
// separate goroutine. Sink failures are logged, never surfaced.
func (s *Store) notifySinks(fn func(ScoreSink) error) {
	if len(s.sinks) == 0 {
		return
	}
	sinks := s.sinks
	go func() {
		for _, sink := range sinks {
			if err := fn(sink); err != nil {
				s.logger.Warn("score sink failed", "sink", sink.Name(), "error", err)
			}
		}
	}()
}
