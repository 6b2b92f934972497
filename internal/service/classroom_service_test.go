package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/classroom-backend/internal/catalog"
	"github.com/stemsi/classroom-backend/internal/clock"
	"github.com/stemsi/classroom-backend/internal/model"
)

type oneExam struct{ exam model.Exam }

func (o oneExam) ListExamsForContext(context.Context, uuid.UUID) ([]model.Exam, error) {
	return []model.Exam{o.exam}, nil
}

type noSubmissions struct{}

func (noSubmissions) ListSubmissionsForContext(context.Context, uuid.UUID, int) ([]model.Submission, error) {
	return nil, nil
}

func (noSubmissions) CreateSubmission(_ context.Context, userID int, examID uuid.UUID, answers model.AnswerSet) (*model.Submission, error) {
	return &model.Submission{ID: uuid.New(), ExamID: examID, UserID: userID, Answers: answers}, nil
}

func TestEvictIdleKeepsBusyAndRecentCatalogs(t *testing.T) {
	exam := model.Exam{ID: uuid.New(), Marks: 10, Questions: []model.Question{
		{ID: uuid.New(), Options: []string{"A", "B"}, CorrectAnswer: "A"},
	}}
	clk := clock.NewManual(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	svc := NewClassroomService(nil, oneExam{exam}, noSubmissions{}, nil, nil, time.Second, zerolog.Nop())

	add := func(userID int) *catalog.Catalog {
		classroomID := uuid.New()
		cat := catalog.New(catalog.Config{
			UserID:      userID,
			ClassroomID: classroomID,
			Exams:       oneExam{exam},
			Submissions: noSubmissions{},
			Clock:       clk,
			Log:         zerolog.Nop(),
		})
		svc.catalogs[catalogKey{userID: userID, classroomID: classroomID}] = cat
		return cat
	}

	add(1) // idle since the start
	busy := add(2)
	_, err := busy.StartExam(context.Background(), exam.ID)
	require.NoError(t, err)
	t.Cleanup(svc.Shutdown)

	clk.Advance(time.Hour)
	add(3) // created after the cutoff

	assert.Equal(t, 1, svc.EvictIdle(clk.Now().Add(-30*time.Minute)))
	assert.Len(t, svc.catalogs, 2)
	assert.Equal(t, 1, svc.OpenSessions())

	require.True(t, busy.CloseActive())
	clk.Advance(time.Hour)
	assert.Equal(t, 2, svc.EvictIdle(clk.Now().Add(-30*time.Minute)))
	assert.Empty(t, svc.catalogs)
}
