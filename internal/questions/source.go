// Package questions provides the read-only ordered question list
// served during a quiz.
package questions

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/quizroom/internal/domain"
)

//go:embed questions.json
var defaultQuestions []byte

// FirstQuestionID is the identifier the session starts from.
const FirstQuestionID = 1

// Source is an immutable ordered collection of quiz questions.
type Source struct {
	questions []domain.Question
	byID      map[int]*domain.Question
}

// New creates a Source from an ordered question list.
func New(qs []domain.Question) (*Source, error) {
	if len(qs) == 0 {
		return nil, fmt.Errorf("question source is empty")
	}
	byID := make(map[int]*domain.Question, len(qs))
	for i := range qs {
		q := &qs[i]
		if _, dup := byID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %d", q.ID)
		}
		byID[q.ID] = q
	}
	return &Source{questions: qs, byID: byID}, nil
}

// Default returns the embedded built-in question set.
func Default() (*Source, error) {
	return parse(defaultQuestions)
}

// LoadFile reads a question set from a JSON file.
func LoadFile(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading questions file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Source, error) {
	var qs []domain.Question
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("parsing questions: %w", err)
	}
	return New(qs)
}

// Find returns the question with the given id, or false if the id is
// not in the source.
func (s *Source) Find(id int) (domain.Question, bool) {
	q, ok := s.byID[id]
	if !ok {
		return domain.Question{}, false
	}
	return *q, true
}

// Total returns the number of questions in the source.
func (s *Source) Total() int {
	return len(s.questions)
}
