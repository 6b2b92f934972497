package model

import "errors"

// ErrAlreadySubmitted is returned by submission stores when the user already
// has a submission for the exam.
var ErrAlreadySubmitted = errors.New("exam already submitted")
