package ws

import (
	"errors"
	"log/slog"

	"github.com/quizroom/internal/domain"
	"github.com/quizroom/internal/protocol"
	"github.com/quizroom/internal/questions"
	"github.com/quizroom/internal/session"
)

// conn is what the dispatcher needs from a connection: a way to send
// and close, plus the bound room identity. *Client satisfies it; tests
// use a fake.
type conn interface {
	session.Sender
	bind(roomCode, name string, role domain.Role)
	identity() (roomCode, name string, role domain.Role, ok bool)
}

// Dispatcher decodes inbound frames and routes them to the session
// store. A failure handling one message only ever affects the sending
// connection; room state is left consistent by the store.
type Dispatcher struct {
	store     *session.Store
	questions *questions.Source
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher over the given store and question
// source.
func NewDispatcher(store *session.Store, src *questions.Source, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		questions: src,
		logger:    logger,
	}
}

// Handle processes one inbound frame from a connection.
func (d *Dispatcher) Handle(c conn, raw []byte) {
	in, err := protocol.Decode(raw)
	if err != nil {
		d.logger.Warn("invalid message", "error", err)
		c.Send(protocol.ErrorMessage("invalid message format"))
		return
	}

	switch in.Type {
	case protocol.TypeJoin:
		d.handleJoin(c, in.Join)
	case protocol.TypeValidateRoom:
		d.handleValidate(c, in.Validate)
	case protocol.TypeFetchQuestion:
		d.handleFetchQuestion(c, in.FetchQuestion)
	case protocol.TypeSubmitAnswer:
		d.handleSubmitAnswer(c, in.SubmitAnswer)
	case protocol.TypeSetScores:
		d.handleSetScores(c, in.SetScores)
	case protocol.TypeAdminStart, protocol.TypeAdminNext, protocol.TypeAdminEnd, protocol.TypeAdminReset:
		d.handleAdmin(c, in.Type, in.Admin)
	case protocol.TypeLeave:
		d.handleLeave(c, in.Leave)
	case protocol.TypeUnknown:
		d.logger.Debug("ignoring unrecognized message type")
	}
}

func (d *Dispatcher) handleJoin(c conn, p *protocol.JoinPayload) {
	if p.RoomCode == "" || p.PlayerName == "" {
		c.Send(protocol.ErrorMessage("Room code or player name not found"))
		return
	}

	role := domain.RolePlayer
	if p.IsAdmin {
		role = domain.RoleAdmin
	}
	c.bind(p.RoomCode, p.PlayerName, role)
	d.store.Connect(p.RoomCode, p.PlayerName, role, c)
}

func (d *Dispatcher) handleValidate(c conn, p *protocol.ValidatePayload) {
	reply := func(valid bool, message string) {
		c.Send(protocol.Message{
			Type:    protocol.TypeValidationResponse,
			Payload: protocol.ValidationPayload{Valid: valid, Message: message},
		})
	}

	if !domain.ValidRoomCode(p.Code) {
		reply(false, "Invalid room code format. Use XXXX-XXXX.")
		return
	}

	err := d.store.Register(p.Code, p.Name, domain.RolePlayer)
	if errors.Is(err, domain.ErrNameTaken) {
		reply(false, "User with this name already exists in the room.")
		return
	}
	if err != nil {
		reply(false, "Unable to join room.")
		return
	}
	reply(true, "Room joined successfully.")
}

func (d *Dispatcher) handleFetchQuestion(c conn, p *protocol.FetchQuestionPayload) {
	q, ok := d.questions.Find(p.QID)
	if !ok {
		c.Send(protocol.ErrorMessage("quiz-ended"))
		return
	}
	c.Send(protocol.QuestionMessage(protocol.TypeFetchQuestionResponse, q.Sanitized(), d.questions.Total()))
}

func (d *Dispatcher) handleSubmitAnswer(c conn, p *protocol.SubmitAnswerPayload) {
	q, ok := d.questions.Find(p.QID)
	if !ok || p.Answer == "" {
		c.Send(protocol.ErrorMessage("Invalid question ID or answer"))
		return
	}

	isCorrect := p.Answer == q.CorrectAnswer
	message := "Wrong!"
	if isCorrect {
		message = "Correct!"
	}
	c.Send(protocol.Message{
		Type: protocol.TypeSubmitAnswerResponse,
		Payload: protocol.AnswerResultPayload{
			QuestionID:     q.ID,
			CorrectAnswer:  q.CorrectAnswer,
			SelectedAnswer: p.Answer,
			IsCorrect:      isCorrect,
			Message:        message,
		},
	})
}

func (d *Dispatcher) handleSetScores(c conn, p *protocol.SetScoresPayload) {
	if p.RoomCode == "" || p.PlayerName == "" {
		c.Send(protocol.ErrorMessage("Room code or player name not found"))
		return
	}

	if err := d.store.RecordAnswer(p.RoomCode, p.PlayerName, p.IsCorrect, p.TimeTaken); err != nil {
		c.Send(protocol.ErrorMessage("Room not found"))
		return
	}

	message := "Answer is Wrong."
	if p.IsCorrect {
		message = "Score updated successfully"
	}
	c.Send(protocol.Message{
		Type:    protocol.TypeScoreUpdate,
		Payload: protocol.InfoPayload{Message: message},
	})
}

func (d *Dispatcher) handleAdmin(c conn, msgType string, p *protocol.AdminPayload) {
	_, _, role, bound := c.identity()
	if !bound || role != domain.RoleAdmin {
		c.Send(protocol.ErrorMessage("not authorized"))
		return
	}
	if p.RoomCode == "" {
		c.Send(protocol.ErrorMessage("Room code not found"))
		return
	}

	var err error
	switch msgType {
	case protocol.TypeAdminStart:
		err = d.store.Start(p.RoomCode)
	case protocol.TypeAdminNext:
		err = d.store.NextQuestion(p.RoomCode, p.QID)
	case protocol.TypeAdminEnd:
		err = d.store.End(p.RoomCode)
	case protocol.TypeAdminReset:
		err = d.store.Reset(p.RoomCode)
	}

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrQuestionNotFound):
		// The room never hears about an exhausted question id; only
		// the requesting admin does.
		c.Send(protocol.ErrorMessage("quiz-ended"))
	case errors.Is(err, domain.ErrRoomNotFound):
		c.Send(protocol.ErrorMessage("Room not found"))
	case errors.Is(err, domain.ErrInvalidState):
		c.Send(protocol.ErrorMessage("Command not valid in current quiz state"))
	default:
		d.logger.Error("admin command failed", "type", msgType, "room", p.RoomCode, "error", err)
		c.Send(protocol.ErrorMessage("internal server error"))
	}
}

func (d *Dispatcher) handleLeave(c conn, p *protocol.LeavePayload) {
	roomCode, name := p.RoomCode, p.PlayerName
	if roomCode == "" || name == "" {
		if br, bn, _, ok := c.identity(); ok {
			if roomCode == "" {
				roomCode = br
			}
			if name == "" {
				name = bn
			}
		}
	}
	if roomCode == "" || name == "" {
		return
	}
	d.store.Disconnect(roomCode, name, c)
}

// connectionClosed synthesizes a leave for a transport that closed
// without one.
func (d *Dispatcher) connectionClosed(c conn) {
	roomCode, name, _, ok := c.identity()
	if !ok {
		return
	}
	d.store.Disconnect(roomCode, name, c)
}

// Stats reports live room and connection counts.
func (d *Dispatcher) Stats() (rooms, conns int) {
	return d.store.Stats()
}
