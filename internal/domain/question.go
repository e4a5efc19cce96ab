package domain

// Option is a single answer choice of a question. IDs range over a
// small fixed alphabet ("a".."d").
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question is a quiz question record as stored in the question source.
// CorrectAnswer must never reach a non-admin client; use Sanitized
// before putting a question on the wire.
type Question struct {
	ID            int      `json:"id"`
	Text          string   `json:"text"`
	Options       []Option `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// SanitizedQuestion is the wire form of a question with the correct
// answer stripped.
type SanitizedQuestion struct {
	ID      int      `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// Sanitized returns the question with the correct-answer field removed.
func (q Question) Sanitized() SanitizedQuestion {
	return SanitizedQuestion{
		ID:      q.ID,
		Text:    q.Text,
		Options: q.Options,
	}
}
