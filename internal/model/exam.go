package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxMinutes is the longest accepted time limit, one week. Longer limits are
// treated as absent.
const MaxMinutes = 7 * 24 * 60

// Minutes is an exam time limit. Malformed values decode as zero, which
// means "no explicit limit".
type Minutes float64

// UnmarshalJSON accepts a number, a numeric string or null. Anything else,
// including negative numbers, decodes to zero instead of failing the payload.
func (m *Minutes) UnmarshalJSON(b []byte) error {
	*m = 0

	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}

	var v float64
	switch t := raw.(type) {
	case float64:
		v = t
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		v = n
	default:
		return nil
	}

	if Minutes(v).Seconds() > 0 {
		*m = Minutes(v)
	}
	return nil
}

// Seconds converts the limit to whole seconds. Returns 0 when no usable limit is set.
func (m Minutes) Seconds() int {
	v := float64(m)
	if v <= 0 || v > MaxMinutes || math.IsNaN(v) {
		return 0
	}
	return int(math.Round(v * 60))
}

// Exam is a timed multiple-choice exam published to a classroom.
type Exam struct {
	ID             uuid.UUID  `json:"id"`
	ClassroomID    uuid.UUID  `json:"classroom_id"`
	AuthorID       int        `json:"author_id"`
	Topic          string     `json:"topic"`
	Description    string     `json:"description"`
	Marks          int        `json:"marks"`
	TimeoutMinutes Minutes    `json:"timeout_minutes,omitempty"`
	Questions      []Question `json:"questions"`
	CreatedAt      time.Time  `json:"created_at"`
}

// QuestionIndex returns the position of the question with the given id, or -1.
func (e *Exam) QuestionIndex(id uuid.UUID) int {
	for i := range e.Questions {
		if e.Questions[i].ID == id {
			return i
		}
	}
	return -1
}

// ExamSummary is an exam as listed to students, without its questions.
type ExamSummary struct {
	ID             uuid.UUID `json:"id"`
	Topic          string    `json:"topic"`
	Description    string    `json:"description"`
	Marks          int       `json:"marks"`
	TimeoutMinutes Minutes   `json:"timeout_minutes,omitempty"`
	QuestionCount  int       `json:"question_count"`
	Submitted      bool      `json:"submitted"`
	Score          *float64  `json:"score,omitempty"`
}

// CreateExamRequest is the payload a teacher sends to publish an exam.
type CreateExamRequest struct {
	Topic          string                  `json:"topic" binding:"required,min=3,max=255"`
	Description    string                  `json:"description" binding:"max=2000"`
	Marks          int                     `json:"marks" binding:"required,min=1,max=1000"`
	TimeoutMinutes Minutes                 `json:"timeout_minutes"`
	Questions      []CreateQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}
