package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/classroom-backend/internal/model"
)

// ExamRepository handles exam and question data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves an exam and its questions.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, classroom_id, author_id, topic, description, marks, timeout_minutes, created_at
		 FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.ClassroomID, &e.AuthorID, &e.Topic, &e.Description, &e.Marks, &e.TimeoutMinutes, &e.CreatedAt)
	if err != nil {
		return nil, err
	}

	byExam, err := r.questionsFor(ctx, []uuid.UUID{e.ID})
	if err != nil {
		return nil, err
	}
	e.Questions = byExam[e.ID]
	return e, nil
}

// ListByClassroom returns a classroom's exams, oldest first, with questions
// in their authored order.
func (r *ExamRepository) ListByClassroom(ctx context.Context, classroomID uuid.UUID) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, classroom_id, author_id, topic, description, marks, timeout_minutes, created_at
		 FROM exams WHERE classroom_id = $1
		 ORDER BY created_at, id`, classroomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	var ids []uuid.UUID
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.ClassroomID, &e.AuthorID, &e.Topic, &e.Description,
			&e.Marks, &e.TimeoutMinutes, &e.CreatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(exams) == 0 {
		return exams, nil
	}

	byExam, err := r.questionsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range exams {
		exams[i].Questions = byExam[exams[i].ID]
	}
	return exams, nil
}

func (r *ExamRepository) questionsFor(ctx context.Context, examIDs []uuid.UUID) (map[uuid.UUID][]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, position, text, options, correct_answer
		 FROM questions WHERE exam_id = ANY($1)
		 ORDER BY exam_id, position`, examIDs)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]model.Question, len(examIDs))
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Position, &q.Text, &q.Options, &q.CorrectAnswer); err != nil {
			return nil, err
		}
		out[q.ExamID] = append(out[q.ExamID], q)
	}
	return out, rows.Err()
}

// Create inserts an exam with its questions in a single transaction.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO exams (classroom_id, author_id, topic, description, marks, timeout_minutes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		e.ClassroomID, e.AuthorID, e.Topic, e.Description, e.Marks, float64(e.TimeoutMinutes),
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range e.Questions {
		q := &e.Questions[i]
		q.ExamID = e.ID
		q.Position = i
		batch.Queue(
			`INSERT INTO questions (exam_id, position, text, options, correct_answer)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			q.ExamID, q.Position, q.Text, q.Options, q.CorrectAnswer,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&q.ID)
		})
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert questions: %w", err)
	}

	return tx.Commit(ctx)
}
