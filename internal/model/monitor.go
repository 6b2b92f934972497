package model

import (
	"time"

	"github.com/google/uuid"
)

// MonitorEventType names a live exam monitor event.
type MonitorEventType string

const (
	MonitorSubmitted MonitorEventType = "submitted"
	MonitorGraded    MonitorEventType = "graded"
)

// MonitorEvent is published on an exam's monitor channel whenever one of its
// submissions is saved or graded.
type MonitorEvent struct {
	Type         MonitorEventType `json:"type"`
	ExamID       uuid.UUID        `json:"exam_id"`
	SubmissionID uuid.UUID        `json:"submission_id"`
	UserID       int              `json:"user_id"`
	Score        *float64         `json:"score,omitempty"`
	At           time.Time        `json:"at"`
}
