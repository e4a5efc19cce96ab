package questions

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/quizroom/internal/domain"
)

func TestDefault(t *testing.T) {
	src, err := Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}
	if src.Total() == 0 {
		t.Fatal("Default() returned empty source")
	}

	q, ok := src.Find(FirstQuestionID)
	if !ok {
		t.Fatalf("Find(%d) not found in default source", FirstQuestionID)
	}
	if q.CorrectAnswer == "" {
		t.Error("default question has no correct answer")
	}
	if len(q.Options) == 0 {
		t.Error("default question has no options")
	}
}

func TestFindMissing(t *testing.T) {
	src, err := Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}
	if _, ok := src.Find(src.Total() + 1); ok {
		t.Error("Find past the last question should report not found")
	}
	if _, ok := src.Find(0); ok {
		t.Error("Find(0) should report not found")
	}
}

func TestNewRejectsBadSets(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("New(nil) should fail")
	}

	dup := []domain.Question{
		{ID: 1, Text: "a", CorrectAnswer: "a"},
		{ID: 1, Text: "b", CorrectAnswer: "b"},
	}
	if _, err := New(dup); err == nil {
		t.Error("New with duplicate ids should fail")
	}
}

func TestSanitizedWireFormOmitsCorrectAnswer(t *testing.T) {
	src, err := Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}

	for id := 1; id <= src.Total(); id++ {
		q, ok := src.Find(id)
		if !ok {
			t.Fatalf("Find(%d) not found", id)
		}
		data, err := json.Marshal(q.Sanitized())
		if err != nil {
			t.Fatalf("marshal sanitized question %d: %v", id, err)
		}
		if strings.Contains(string(data), "correctAnswer") {
			t.Errorf("sanitized question %d leaks correctAnswer: %s", id, data)
		}
		if strings.Contains(string(data), q.CorrectAnswer) && len(q.CorrectAnswer) > 1 {
			t.Errorf("sanitized question %d leaks answer value: %s", id, data)
		}
	}
}
