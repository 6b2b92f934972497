package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classroom-backend/internal/config"
	"github.com/stemsi/classroom-backend/internal/model"
	"github.com/stemsi/classroom-backend/internal/repository"
)

// GradeJob is the payload queued for the grading worker.
type GradeJob struct {
	SubmissionID uuid.UUID `json:"submission_id"`
}

// SubmissionService persists submissions and queues them for grading.
type SubmissionService struct {
	subRepo *repository.SubmissionRepository
	rdb     *redis.Client
	log     zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(subRepo *repository.SubmissionRepository, rdb *redis.Client, log zerolog.Logger) *SubmissionService {
	return &SubmissionService{
		subRepo: subRepo,
		rdb:     rdb,
		log:     log.With().Str("component", "submission_service").Logger(),
	}
}

// ListSubmissionsForContext returns a user's submissions within a classroom.
func (s *SubmissionService) ListSubmissionsForContext(ctx context.Context, classroomID uuid.UUID, userID int) ([]model.Submission, error) {
	return s.subRepo.ListByUserInClassroom(ctx, classroomID, userID)
}

// CreateSubmission stores a final answer set. Duplicates fail with
// model.ErrAlreadySubmitted. A failed enqueue is logged; the submission is
// picked up by the startup sweep instead.
func (s *SubmissionService) CreateSubmission(ctx context.Context, userID int, examID uuid.UUID, answers model.AnswerSet) (*model.Submission, error) {
	sub := &model.Submission{
		ExamID:  examID,
		UserID:  userID,
		Answers: answers,
	}
	if err := s.subRepo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}

	if err := s.enqueue(ctx, sub.ID); err != nil {
		s.log.Warn().Err(err).Str("submission_id", sub.ID.String()).Msg("Failed to queue grading")
	}
	s.publish(ctx, sub)
	return sub, nil
}

// RequeueUngraded queues every submission still waiting for a score.
func (s *SubmissionService) RequeueUngraded(ctx context.Context) (int, error) {
	ids, err := s.subRepo.ListUngraded(ctx)
	if err != nil {
		return 0, fmt.Errorf("list ungraded: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.rdb.Pipeline()
	for _, id := range ids {
		raw, _ := json.Marshal(GradeJob{SubmissionID: id})
		pipe.RPush(ctx, config.WorkerKey.GradeSubmissionsQueue, raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("requeue ungraded: %w", err)
	}
	return len(ids), nil
}

func (s *SubmissionService) enqueue(ctx context.Context, id uuid.UUID) error {
	raw, err := json.Marshal(GradeJob{SubmissionID: id})
	if err != nil {
		return err
	}
	return s.rdb.RPush(ctx, config.WorkerKey.GradeSubmissionsQueue, raw).Err()
}

// publish announces a new submission on the exam's monitor channel. Best effort.
func (s *SubmissionService) publish(ctx context.Context, sub *model.Submission) {
	raw, err := json.Marshal(model.MonitorEvent{
		Type:         model.MonitorSubmitted,
		ExamID:       sub.ExamID,
		SubmissionID: sub.ID,
		UserID:       sub.UserID,
		At:           sub.SubmittedAt,
	})
	if err != nil {
		return
	}
	if err := s.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(sub.ExamID.String()), raw).Err(); err != nil {
		s.log.Warn().Err(err).Str("submission_id", sub.ID.String()).Msg("Failed to publish monitor event")
	}
}
