// Package protocol defines the JSON wire messages exchanged over a
// quiz room's websocket connections. Every message is a {type, payload}
// envelope; inbound types form a closed union with an explicit
// unrecognized variant, which the dispatcher ignores.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/quizroom/internal/domain"
)

// Inbound message types
const (
	TypeJoin          = "join"
	TypeValidateRoom  = "validate-room"
	TypeFetchQuestion = "fetch-question"
	TypeSubmitAnswer  = "submit-answer"
	TypeSetScores     = "set-scores"
	TypeAdminStart    = "admin-start"
	TypeAdminNext     = "admin-next-question"
	TypeAdminEnd      = "admin-end"
	TypeAdminReset    = "admin-reset"
	TypeLeave         = "leave"

	// TypeUnknown tags any inbound type not in the union above.
	TypeUnknown = "unknown"
)

// Outbound message types
const (
	TypeUserJoined            = "user-joined"
	TypeUserLeft              = "user-left"
	TypeValidationResponse    = "validation-response"
	TypeFetchQuestionResponse = "fetch-question-response"
	TypeNewQuestion           = "new-question"
	TypeQuizStarted           = "quiz-started"
	TypeQuizEnded             = "quiz-ended"
	TypeQuizReset             = "quiz-reset"
	TypeSubmitAnswerResponse  = "submit-answer-response"
	TypeScoreUpdate           = "score-update"
	TypeLeaderboardUpdate     = "leaderboard-update"
	TypeError                 = "error"
)

// Message is the wire envelope. TotalQuestions rides beside the
// payload on question-bearing messages so clients can detect
// end-of-quiz by exhausting ids.
type Message struct {
	Type           string `json:"type"`
	Payload        any    `json:"payload,omitempty"`
	TotalQuestions int    `json:"totalQuestions,omitempty"`
}

// Encode serializes a message for transmission.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Inbound payloads.

// JoinPayload binds a connection to a room under a name and role.
type JoinPayload struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
	IsAdmin    bool   `json:"isAdmin,omitempty"`
}

// ValidatePayload registers a name into a room ahead of joining.
type ValidatePayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// FetchQuestionPayload requests a sanitized question by id.
type FetchQuestionPayload struct {
	QID int `json:"qid"`
}

// SubmitAnswerPayload checks an answer against a question.
type SubmitAnswerPayload struct {
	QID    int    `json:"qid"`
	Answer string `json:"answer"`
}

// SetScoresPayload reports a participant's result for one question.
type SetScoresPayload struct {
	RoomCode   string  `json:"roomCode"`
	PlayerName string  `json:"playerName"`
	TimeTaken  float64 `json:"timeTaken"`
	IsCorrect  bool    `json:"isCorrect"`
}

// AdminPayload carries the room and, for next-question, the target id.
type AdminPayload struct {
	RoomCode string `json:"roomCode"`
	QID      int    `json:"qid,omitempty"`
}

// LeavePayload removes a participant from a room.
type LeavePayload struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

// Inbound is a decoded client message. Exactly one of the payload
// fields matching Type is set; for TypeUnknown none are.
type Inbound struct {
	Type          string
	Join          *JoinPayload
	Validate      *ValidatePayload
	FetchQuestion *FetchQuestionPayload
	SubmitAnswer  *SubmitAnswerPayload
	SetScores     *SetScoresPayload
	Admin         *AdminPayload
	Leave         *LeavePayload
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode parses a raw client frame into its typed variant. Unknown
// types decode to TypeUnknown rather than an error; malformed JSON is
// an error.
func Decode(raw []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Inbound{}, fmt.Errorf("decoding message envelope: %w", err)
	}

	in := Inbound{Type: env.Type}
	var dst any

	switch env.Type {
	case TypeJoin:
		in.Join = &JoinPayload{}
		dst = in.Join
	case TypeValidateRoom:
		in.Validate = &ValidatePayload{}
		dst = in.Validate
	case TypeFetchQuestion:
		in.FetchQuestion = &FetchQuestionPayload{}
		dst = in.FetchQuestion
	case TypeSubmitAnswer:
		in.SubmitAnswer = &SubmitAnswerPayload{}
		dst = in.SubmitAnswer
	case TypeSetScores:
		in.SetScores = &SetScoresPayload{}
		dst = in.SetScores
	case TypeAdminStart, TypeAdminNext, TypeAdminEnd, TypeAdminReset:
		in.Admin = &AdminPayload{}
		dst = in.Admin
	case TypeLeave:
		in.Leave = &LeavePayload{}
		dst = in.Leave
	default:
		in.Type = TypeUnknown
		return in, nil
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, dst); err != nil {
			return Inbound{}, fmt.Errorf("decoding %s payload: %w", env.Type, err)
		}
	}
	return in, nil
}

// Outbound payloads.

// MembershipPayload is the full-state membership snapshot broadcast on
// every join and leave, so clients can resynchronize from any single
// message.
type MembershipPayload struct {
	PlayerName   string   `json:"playerName"`
	Players      []string `json:"players"`
	TotalPlayers int      `json:"totalPlayers"`
}

// ValidationPayload is the reply to a validate-room request.
type ValidationPayload struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// AnswerResultPayload is the per-participant reply to submit-answer.
type AnswerResultPayload struct {
	QuestionID     int    `json:"questionId"`
	CorrectAnswer  string `json:"correctAnswer"`
	SelectedAnswer string `json:"selectedAnswer"`
	IsCorrect      bool   `json:"isCorrect"`
	Message        string `json:"message"`
}

// InfoPayload carries a human-readable status line.
type InfoPayload struct {
	Message string `json:"message"`
}

// ResetPayload tells players to reconnect after an admin reset and
// tells remaining admins how many players were cleared.
type ResetPayload struct {
	Message         string `json:"message"`
	ShouldReconnect bool   `json:"shouldReconnect,omitempty"`
	PlayersCleared  int    `json:"playersCleared,omitempty"`
}

// ErrorMessage builds an error reply.
func ErrorMessage(msg string) Message {
	return Message{Type: TypeError, Payload: InfoPayload{Message: msg}}
}

// QuestionMessage builds a sanitized question broadcast.
func QuestionMessage(msgType string, q domain.SanitizedQuestion, total int) Message {
	return Message{Type: msgType, Payload: q, TotalQuestions: total}
}

// LeaderboardMessage builds a leaderboard broadcast.
func LeaderboardMessage(entries []domain.LeaderboardEntry) Message {
	return Message{Type: TypeLeaderboardUpdate, Payload: entries}
}
