package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerSet maps question ids to the selected option. A nil value means the
// question was left unanswered.
type AnswerSet map[uuid.UUID]*string

// Answered returns the number of non-nil answers.
func (a AnswerSet) Answered() int {
	n := 0
	for _, v := range a {
		if v != nil {
			n++
		}
	}
	return n
}

// Submission is the persisted record of one user's final answers for one exam.
type Submission struct {
	ID          uuid.UUID  `json:"id"`
	ExamID      uuid.UUID  `json:"exam_id"`
	UserID      int        `json:"user_id"`
	Answers     AnswerSet  `json:"answers"`
	SubmittedAt time.Time  `json:"submitted_at"`
	Score       *float64   `json:"score"`
	GradedAt    *time.Time `json:"graded_at,omitempty"`
}

// SubmissionResult is a submission joined with its author, as listed to teachers.
type SubmissionResult struct {
	Submission
	UserName string `json:"user_name"`
}
