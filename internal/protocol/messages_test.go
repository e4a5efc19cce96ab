package protocol

import (
	"strings"
	"testing"

	"github.com/quizroom/internal/domain"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantType string
		check    func(t *testing.T, in Inbound)
	}{
		{
			name:     "join",
			raw:      `{"type":"join","payload":{"roomCode":"1234-5678","playerName":"Alice","isAdmin":true}}`,
			wantType: TypeJoin,
			check: func(t *testing.T, in Inbound) {
				if in.Join.RoomCode != "1234-5678" || in.Join.PlayerName != "Alice" || !in.Join.IsAdmin {
					t.Errorf("join payload = %+v", in.Join)
				}
			},
		},
		{
			name:     "validate-room",
			raw:      `{"type":"validate-room","payload":{"code":"1234-5678","name":"Bob"}}`,
			wantType: TypeValidateRoom,
			check: func(t *testing.T, in Inbound) {
				if in.Validate.Code != "1234-5678" || in.Validate.Name != "Bob" {
					t.Errorf("validate payload = %+v", in.Validate)
				}
			},
		},
		{
			name:     "fetch-question",
			raw:      `{"type":"fetch-question","payload":{"qid":3}}`,
			wantType: TypeFetchQuestion,
			check: func(t *testing.T, in Inbound) {
				if in.FetchQuestion.QID != 3 {
					t.Errorf("fetch payload = %+v", in.FetchQuestion)
				}
			},
		},
		{
			name:     "submit-answer",
			raw:      `{"type":"submit-answer","payload":{"qid":1,"answer":"c"}}`,
			wantType: TypeSubmitAnswer,
			check: func(t *testing.T, in Inbound) {
				if in.SubmitAnswer.QID != 1 || in.SubmitAnswer.Answer != "c" {
					t.Errorf("submit payload = %+v", in.SubmitAnswer)
				}
			},
		},
		{
			name:     "set-scores",
			raw:      `{"type":"set-scores","payload":{"roomCode":"1234-5678","playerName":"Alice","timeTaken":2.5,"isCorrect":true}}`,
			wantType: TypeSetScores,
			check: func(t *testing.T, in Inbound) {
				if in.SetScores.TimeTaken != 2.5 || !in.SetScores.IsCorrect {
					t.Errorf("set-scores payload = %+v", in.SetScores)
				}
			},
		},
		{
			name:     "admin-next-question",
			raw:      `{"type":"admin-next-question","payload":{"roomCode":"1234-5678","qid":2}}`,
			wantType: TypeAdminNext,
			check: func(t *testing.T, in Inbound) {
				if in.Admin.QID != 2 {
					t.Errorf("admin payload = %+v", in.Admin)
				}
			},
		},
		{
			name:     "admin-start without qid",
			raw:      `{"type":"admin-start","payload":{"roomCode":"1234-5678"}}`,
			wantType: TypeAdminStart,
			check: func(t *testing.T, in Inbound) {
				if in.Admin.RoomCode != "1234-5678" {
					t.Errorf("admin payload = %+v", in.Admin)
				}
			},
		},
		{
			name:     "leave",
			raw:      `{"type":"leave","payload":{"roomCode":"1234-5678","playerName":"Alice"}}`,
			wantType: TypeLeave,
		},
		{
			name:     "unrecognized type",
			raw:      `{"type":"dance","payload":{"moves":3}}`,
			wantType: TypeUnknown,
		},
		{
			name:     "missing payload",
			raw:      `{"type":"admin-end"}`,
			wantType: TypeAdminEnd,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if in.Type != tt.wantType {
				t.Fatalf("Decode() type = %q, want %q", in.Type, tt.wantType)
			}
			if tt.check != nil {
				tt.check(t, in)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("Decode of malformed JSON should fail")
	}
	if _, err := Decode([]byte(`{"type":"join","payload":"nope"}`)); err == nil {
		t.Error("Decode of mistyped payload should fail")
	}
}

func TestQuestionMessageOmitsCorrectAnswer(t *testing.T) {
	q := domain.Question{
		ID:            1,
		Text:          "What is the capital of France?",
		Options:       []domain.Option{{ID: "c", Text: "Paris"}},
		CorrectAnswer: "c",
	}

	for _, msgType := range []string{TypeNewQuestion, TypeFetchQuestionResponse} {
		data, err := QuestionMessage(msgType, q.Sanitized(), 5).Encode()
		if err != nil {
			t.Fatalf("Encode() error: %v", err)
		}
		if strings.Contains(string(data), "correctAnswer") {
			t.Errorf("%s message leaks correctAnswer: %s", msgType, data)
		}
		if !strings.Contains(string(data), `"totalQuestions":5`) {
			t.Errorf("%s message missing totalQuestions: %s", msgType, data)
		}
	}
}
