package catalog

import (
	"time"

	"github.com/google/uuid"
)

// NoticeLevel is the severity of a user-facing notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice codes.
const (
	CodeSubmissionsUnavailable = "submissions_unavailable"
	CodeAlreadySubmitted       = "already_submitted"
	CodeNoSubmission           = "no_submission"
	CodeInvalidExam            = "invalid_exam"
	CodeSessionInProgress      = "session_in_progress"
	CodeSubmissionSaved        = "submission_saved"
	CodeSubmissionFailed       = "submission_failed"
)

// Notice is a transient, non-fatal message for the catalog's user.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	ExamID  *uuid.UUID  `json:"exam_id,omitempty"`
	At      time.Time   `json:"at"`
}

// Notifier delivers notices to a user.
type Notifier interface {
	Notify(userID int, n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(userID int, n Notice)

func (f NotifierFunc) Notify(userID int, n Notice) { f(userID, n) }
