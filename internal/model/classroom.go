package model

import (
	"time"

	"github.com/google/uuid"
)

// Classroom groups students and the exams published to them.
type Classroom struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int       `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateClassroomRequest is the payload for creating a classroom.
type CreateClassroomRequest struct {
	Name string `json:"name" binding:"required,min=2,max=255"`
}

// AddMemberRequest enrolls an existing user into a classroom.
type AddMemberRequest struct {
	UserID int `json:"user_id" binding:"required,min=1"`
}
