package minutes

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// StatusCompleted is the status value the service sends when a meeting has ended.
const StatusCompleted = "completed"

// UnknownSpeaker is the placeholder rendered for entries missing a speaker name.
const UnknownSpeaker = "Unknown Speaker"

// TranscriptEntry represents a single transcribed utterance
type TranscriptEntry struct {
	ID         string  `json:"id"`
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Timestamp  float64 `json:"timestamp"` // unix seconds
	IsQuestion bool    `json:"is_question"`
}

// Question represents the question half of a Q&A pair
type Question struct {
	Text      string  `json:"text"`
	AskedBy   string  `json:"asked_by"`
	Timestamp float64 `json:"timestamp"`
}

// Answer represents a single answer linked to a question
type Answer struct {
	Speaker   string  `json:"speaker"`
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp"`
}

// QAPair represents a detected question with its ordered answers
type QAPair struct {
	Question Question `json:"question"`
	Answers  []Answer `json:"answers"`
	Resolved bool     `json:"resolved"`
}

// Update represents one inbound update payload. All fields are optional;
// absence means no change this tick.
type Update struct {
	Transcript    []TranscriptEntry `json:"transcript,omitempty"`
	QAPairs       []QAPair          `json:"qa_pairs,omitempty"`
	TotalSpeakers *int              `json:"total_speakers,omitempty"`
	Status        string            `json:"status,omitempty"`
	Error         string            `json:"error,omitempty"`

	qaPresent bool
}

// rawUpdate distinguishes an absent qa_pairs field ("no change") from an
// explicit empty list (replace canonical state with nothing).
type rawUpdate struct {
	Transcript    []TranscriptEntry `json:"transcript"`
	QAPairs       *[]QAPair         `json:"qa_pairs"`
	TotalSpeakers *int              `json:"total_speakers"`
	Status        string            `json:"status"`
	Error         string            `json:"error"`
}

// HasQAPairs reports whether the payload carried a qa_pairs field.
func (u *Update) HasQAPairs() bool {
	return u.qaPresent
}

// ParseUpdate decodes and normalizes an update payload from the transport
// boundary. Malformed sub-fields are defensively defaulted rather than
// rejecting the whole payload: a missing entry id gets a generated uuid and
// a missing speaker name becomes UnknownSpeaker. Only malformed JSON is an
// error.
func ParseUpdate(data []byte) (*Update, error) {
	var raw rawUpdate
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse update payload: %w", err)
	}

	u := &Update{
		Transcript:    raw.Transcript,
		TotalSpeakers: raw.TotalSpeakers,
		Status:        raw.Status,
		Error:         raw.Error,
	}

	if raw.QAPairs != nil {
		u.QAPairs = *raw.QAPairs
		u.qaPresent = true
	}

	for i := range u.Transcript {
		normalizeEntry(&u.Transcript[i])
	}

	for i := range u.QAPairs {
		normalizeQAPair(&u.QAPairs[i])
	}

	return u, nil
}

// normalizeEntry fills defensively defaulted fields on a transcript entry
func normalizeEntry(e *TranscriptEntry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Speaker == "" {
		e.Speaker = UnknownSpeaker
	}
}

// normalizeQAPair fills defensively defaulted fields on a Q&A pair
func normalizeQAPair(qa *QAPair) {
	if qa.Question.AskedBy == "" {
		qa.Question.AskedBy = UnknownSpeaker
	}
	if qa.Answers == nil {
		qa.Answers = []Answer{}
	}
	for i := range qa.Answers {
		if qa.Answers[i].Speaker == "" {
			qa.Answers[i].Speaker = UnknownSpeaker
		}
	}
}
