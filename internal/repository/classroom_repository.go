package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/classroom-backend/internal/model"
)

// ErrUnknownUser is returned when enrolling a user id that does not exist.
var ErrUnknownUser = errors.New("user does not exist")

// ClassroomRepository handles classroom and membership data access.
type ClassroomRepository struct {
	pool *pgxpool.Pool
}

// NewClassroomRepository creates a new ClassroomRepository.
func NewClassroomRepository(pool *pgxpool.Pool) *ClassroomRepository {
	return &ClassroomRepository{pool: pool}
}

// GetByID retrieves a classroom by its ID.
func (r *ClassroomRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Classroom, error) {
	c := &model.Classroom{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, owner_id, created_at FROM classrooms WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.OwnerID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts a new classroom.
func (r *ClassroomRepository) Create(ctx context.Context, c *model.Classroom) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO classrooms (name, owner_id)
		 VALUES ($1, $2)
		 RETURNING id, created_at`,
		c.Name, c.OwnerID,
	).Scan(&c.ID, &c.CreatedAt)
}

// AddMember enrolls a user. Enrolling twice is a no-op.
func (r *ClassroomRepository) AddMember(ctx context.Context, classroomID uuid.UUID, userID int) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO classroom_members (classroom_id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT (classroom_id, user_id) DO NOTHING`,
		classroomID, userID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrUnknownUser
		}
		return err
	}
	return nil
}

// IsMember reports whether a user belongs to a classroom. The owner counts as a member.
func (r *ClassroomRepository) IsMember(ctx context.Context, classroomID uuid.UUID, userID int) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM classroom_members WHERE classroom_id = $1 AND user_id = $2
		 ) OR EXISTS (
			SELECT 1 FROM classrooms WHERE id = $1 AND owner_id = $2
		 )`,
		classroomID, userID,
	).Scan(&ok)
	return ok, err
}
