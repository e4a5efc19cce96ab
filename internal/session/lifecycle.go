package session

import (
	"context"
	"time"

	"github.com/quizroom/internal/domain"
	"github.com/quizroom/internal/protocol"
	"github.com/quizroom/internal/questions"
)

// Start begins the quiz for a room: broadcasts quiz-started followed
// by the sanitized first question and moves the session to running.
// Valid only from the idle state.
func (s *Store) Start(roomCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomCode]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if r.state != domain.SessionIdle {
		return domain.ErrInvalidState
	}

	first, ok := s.questions.Find(questions.FirstQuestionID)
	if !ok {
		return domain.ErrQuestionNotFound
	}

	r.broadcast(protocol.Message{
		Type:    protocol.TypeQuizStarted,
		Payload: protocol.InfoPayload{Message: "Quiz has been started!"},
	})
	r.broadcast(protocol.QuestionMessage(protocol.TypeNewQuestion, first.Sanitized(), s.questions.Total()))

	r.state = domain.SessionRunning
	r.question = first.ID
	s.logger.Info("quiz started", "room", roomCode, "question", first.ID)
	return nil
}

// NextQuestion advances a running quiz to the question with the given
// id and broadcasts it sanitized. An unknown id refuses the transition
// without sending anything to the room; the caller decides how to
// surface that to the admin.
func (s *Store) NextQuestion(roomCode string, qid int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomCode]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if r.state != domain.SessionRunning {
		return domain.ErrInvalidState
	}

	q, ok := s.questions.Find(qid)
	if !ok {
		return domain.ErrQuestionNotFound
	}

	r.broadcast(protocol.QuestionMessage(protocol.TypeNewQuestion, q.Sanitized(), s.questions.Total()))
	r.question = q.ID
	s.logger.Info("question advanced", "room", roomCode, "question", q.ID)
	return nil
}

// End finishes the quiz and broadcasts quiz-ended. Valid from running
// or idle.
func (s *Store) End(roomCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomCode]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if r.state == domain.SessionEnded {
		return domain.ErrInvalidState
	}

	r.broadcast(protocol.Message{
		Type:    protocol.TypeQuizEnded,
		Payload: protocol.InfoPayload{Message: "The quiz has ended!"},
	})
	r.state = domain.SessionEnded
	r.question = 0
	s.logger.Info("quiz ended", "room", roomCode)
	return nil
}

// Reset returns a room to idle for another quiz: the score ledger and
// player registry are cleared, player connections are told to rejoin
// and force-closed after a grace delay, and only admin connections are
// retained. Valid from running or ended.
func (s *Store) Reset(roomCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomCode]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if r.state == domain.SessionIdle {
		return domain.ErrInvalidState
	}

	r.ledger = make(map[string]*ledgerEntry)
	r.ledgerOrder = nil
	for name, role := range r.registry {
		if role != domain.RoleAdmin {
			delete(r.registry, name)
		}
	}

	admins := r.conns[:0:0]
	var players []*liveConn
	for _, c := range r.conns {
		if c.role == domain.RoleAdmin {
			admins = append(admins, c)
		} else {
			players = append(players, c)
		}
	}

	for _, c := range players {
		c.sender.Send(protocol.Message{
			Type: protocol.TypeQuizReset,
			Payload: protocol.ResetPayload{
				Message:         "Quiz has been reset. Please rejoin the room.",
				ShouldReconnect: true,
			},
		})
		// Delayed close gives the reset notice a chance to flush. The
		// connection may already be gone by then; Close is idempotent.
		sender := c.sender
		time.AfterFunc(s.resetGrace, sender.Close)
	}

	r.conns = admins
	for _, c := range admins {
		c.sender.Send(protocol.Message{
			Type: protocol.TypeQuizReset,
			Payload: protocol.ResetPayload{
				Message:        "Quiz reset successfully.",
				PlayersCleared: len(players),
			},
		})
	}

	r.state = domain.SessionIdle
	r.question = 0
	s.notifySinks(func(sink ScoreSink) error { return sink.ResetRoom(context.Background(), roomCode) })
	s.logger.Info("quiz reset", "room", roomCode, "players_cleared", len(players))
	return nil
}
