package model

import "github.com/google/uuid"

// Question is a single multiple-choice exam question.
type Question struct {
	ID            uuid.UUID `json:"id"`
	ExamID        uuid.UUID `json:"exam_id"`
	Position      int       `json:"position"`
	Text          string    `json:"text"`
	Options       []string  `json:"options"`
	CorrectAnswer string    `json:"correct_answer"`
}

// HasOption reports whether v is one of the question's options.
func (q *Question) HasOption(v string) bool {
	for _, o := range q.Options {
		if o == v {
			return true
		}
	}
	return false
}

// CreateQuestionRequest is one question inside a CreateExamRequest.
type CreateQuestionRequest struct {
	Text          string   `json:"text" binding:"required,min=1,max=2000"`
	Options       []string `json:"options" binding:"required,min=2,max=10,dive,required,max=500"`
	CorrectAnswer string   `json:"correct_answer" binding:"required,max=500"`
}
