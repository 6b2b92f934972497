package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classroom-backend/internal/config"
	"github.com/stemsi/classroom-backend/internal/model"
	"github.com/stemsi/classroom-backend/internal/repository"
)

// Domain Errors
var (
	ErrExamNotFound = errors.New("exam not found")
)

// ExamService handles exam authoring and the cached per-classroom exam list.
type ExamService struct {
	examRepo *repository.ExamRepository
	subRepo  *repository.SubmissionRepository
	rdb      *redis.Client
	ttl      time.Duration
	log      zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	subRepo *repository.SubmissionRepository,
	rdb *redis.Client,
	ttl time.Duration,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo: examRepo,
		subRepo:  subRepo,
		rdb:      rdb,
		ttl:      ttl,
		log:      log.With().Str("component", "exam_service").Logger(),
	}
}

// ListExamsForContext returns the exams published to a classroom, served from
// Redis when cached. A Redis failure falls back to PostgreSQL.
func (s *ExamService) ListExamsForContext(ctx context.Context, classroomID uuid.UUID) ([]model.Exam, error) {
	key := config.CacheKey.ClassroomExamsKey(classroomID.String())

	data, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var exams []model.Exam
		if err := json.Unmarshal(data, &exams); err == nil {
			return exams, nil
		}
		s.log.Warn().Str("key", key).Msg("Corrupt exam cache entry, reloading")
	case !errors.Is(err, redis.Nil):
		s.log.Warn().Err(err).Str("key", key).Msg("Exam cache read failed")
	}

	exams, err := s.examRepo.ListByClassroom(ctx, classroomID)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}

	if raw, err := json.Marshal(exams); err == nil {
		if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Exam cache write failed")
		}
	}
	return exams, nil
}

// Create stores a new exam in a classroom and invalidates the classroom's cache.
func (s *ExamService) Create(ctx context.Context, classroomID uuid.UUID, authorID int, req *model.CreateExamRequest) (*model.Exam, error) {
	exam := &model.Exam{
		ClassroomID:    classroomID,
		AuthorID:       authorID,
		Topic:          req.Topic,
		Description:    req.Description,
		Marks:          req.Marks,
		TimeoutMinutes: req.TimeoutMinutes,
		Questions:      make([]model.Question, 0, len(req.Questions)),
	}
	for _, q := range req.Questions {
		exam.Questions = append(exam.Questions, model.Question{
			Text:          q.Text,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
		})
	}

	if err := s.examRepo.Create(ctx, exam); err != nil {
		return nil, err
	}

	s.InvalidateClassroom(ctx, classroomID)

	s.log.Info().
		Str("exam_id", exam.ID.String()).
		Str("classroom_id", classroomID.String()).
		Int("questions", len(exam.Questions)).
		Msg("Exam created")
	return exam, nil
}

// InvalidateClassroom drops the cached exam list of a classroom.
func (s *ExamService) InvalidateClassroom(ctx context.Context, classroomID uuid.UUID) {
	key := config.CacheKey.ClassroomExamsKey(classroomID.String())
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Exam cache invalidation failed")
	}
}

// ListSubmissions returns every submission for an exam of the given classroom.
func (s *ExamService) ListSubmissions(ctx context.Context, classroomID, examID uuid.UUID) ([]model.SubmissionResult, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	if exam.ClassroomID != classroomID {
		return nil, ErrExamNotFound
	}
	return s.subRepo.ListByExam(ctx, examID)
}
