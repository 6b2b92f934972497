package model

// SelectAnswerRequest is the payload for answering the current question.
type SelectAnswerRequest struct {
	Option string `json:"option" binding:"required,max=500"`
}
