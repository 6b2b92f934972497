package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/classroom-backend/internal/model"
)

// SubmissionRepository handles submission data access.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Create inserts a submission. A second submission for the same exam and user
// fails with model.ErrAlreadySubmitted.
func (r *SubmissionRepository) Create(ctx context.Context, s *model.Submission) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO submissions (exam_id, user_id, answers)
		 VALUES ($1, $2, $3)
		 RETURNING id, submitted_at`,
		s.ExamID, s.UserID, s.Answers,
	).Scan(&s.ID, &s.SubmittedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("exam %s user %d: %w", s.ExamID, s.UserID, model.ErrAlreadySubmitted)
		}
		return err
	}
	return nil
}

// ListByUserInClassroom returns a user's submissions for the exams of one classroom.
func (r *SubmissionRepository) ListByUserInClassroom(ctx context.Context, classroomID uuid.UUID, userID int) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.exam_id, s.user_id, s.answers, s.submitted_at, s.score, s.graded_at
		 FROM submissions s
		 JOIN exams e ON e.id = s.exam_id
		 WHERE e.classroom_id = $1 AND s.user_id = $2
		 ORDER BY s.submitted_at`, classroomID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.ID, &s.ExamID, &s.UserID, &s.Answers, &s.SubmittedAt, &s.Score, &s.GradedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// ListByExam returns every submission for an exam with the submitting user's name.
func (r *SubmissionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.SubmissionResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.exam_id, s.user_id, s.answers, s.submitted_at, s.score, s.graded_at, u.name
		 FROM submissions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.exam_id = $1
		 ORDER BY u.name`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.SubmissionResult{}
	for rows.Next() {
		var res model.SubmissionResult
		if err := rows.Scan(&res.ID, &res.ExamID, &res.UserID, &res.Answers, &res.SubmittedAt,
			&res.Score, &res.GradedAt, &res.UserName); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// GradingInput is what the grading worker needs to score one submission.
type GradingInput struct {
	SubmissionID uuid.UUID
	ExamID       uuid.UUID
	UserID       int
	Marks        int
	Answers      model.AnswerSet
	Key          map[uuid.UUID]string
}

// ListForGrading loads the answers and answer key for the given submissions.
// Already graded submissions are skipped.
func (r *SubmissionRepository) ListForGrading(ctx context.Context, ids []uuid.UUID) ([]GradingInput, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.exam_id, s.user_id, e.marks, s.answers,
		        COALESCE(jsonb_object_agg(q.id, q.correct_answer) FILTER (WHERE q.id IS NOT NULL), '{}'::jsonb)
		 FROM submissions s
		 JOIN exams e ON e.id = s.exam_id
		 LEFT JOIN questions q ON q.exam_id = e.id
		 WHERE s.id = ANY($1) AND s.score IS NULL
		 GROUP BY s.id, s.exam_id, s.user_id, e.marks, s.answers`, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GradingInput
	for rows.Next() {
		var in GradingInput
		if err := rows.Scan(&in.SubmissionID, &in.ExamID, &in.UserID, &in.Marks, &in.Answers, &in.Key); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// BulkUpdateScores writes scores using a single UNNEST update.
func (r *SubmissionRepository) BulkUpdateScores(ctx context.Context, ids []uuid.UUID, scores []float64) error {
	if len(ids) != len(scores) {
		return fmt.Errorf("bulk update scores: %d ids, %d scores", len(ids), len(scores))
	}

	gradedAts := make([]time.Time, len(ids))
	now := time.Now()
	for i := range gradedAts {
		gradedAts[i] = now
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE submissions AS s
		SET score = t.score,
		    graded_at = t.graded_at
		FROM (
			SELECT u.id, u.score, u.graded_at
			FROM UNNEST(
				$1::uuid[],
				$2::float8[],
				$3::timestamptz[]
			) AS u (id, score, graded_at)
		) AS t
		WHERE s.id = t.id
	`, ids, scores, gradedAts)
	return err
}

// ListUngraded returns the ids of submissions without a score, oldest first.
func (r *SubmissionRepository) ListUngraded(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM submissions WHERE score IS NULL ORDER BY submitted_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
