package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classroom-backend/internal/catalog"
	"github.com/stemsi/classroom-backend/internal/config"
	"github.com/stemsi/classroom-backend/internal/model"
	"github.com/stemsi/classroom-backend/internal/repository"
)

// Domain Errors
var (
	ErrClassroomNotFound  = errors.New("classroom not found")
	ErrNotClassroomOwner  = errors.New("not the owner of this classroom")
	ErrNotClassroomMember = errors.New("not a member of this classroom")
)

// membershipTTL is how long a positive membership check is cached.
const membershipTTL = 10 * time.Minute

type catalogKey struct {
	userID      int
	classroomID uuid.UUID
}

// ClassroomService manages classrooms and owns one exam catalog per
// (user, classroom) pair for the lifetime of the process.
type ClassroomService struct {
	classroomRepo *repository.ClassroomRepository
	exams         catalog.ExamSource
	submissions   catalog.SubmissionStore
	notifier      catalog.Notifier
	rdb           *redis.Client
	submitTimeout time.Duration
	log           zerolog.Logger

	mu       sync.Mutex
	catalogs map[catalogKey]*catalog.Catalog
}

// NewClassroomService creates a new ClassroomService.
func NewClassroomService(
	classroomRepo *repository.ClassroomRepository,
	exams catalog.ExamSource,
	submissions catalog.SubmissionStore,
	notifier catalog.Notifier,
	rdb *redis.Client,
	submitTimeout time.Duration,
	log zerolog.Logger,
) *ClassroomService {
	return &ClassroomService{
		classroomRepo: classroomRepo,
		exams:         exams,
		submissions:   submissions,
		notifier:      notifier,
		rdb:           rdb,
		submitTimeout: submitTimeout,
		log:           log.With().Str("component", "classroom_service").Logger(),
		catalogs:      make(map[catalogKey]*catalog.Catalog),
	}
}

// Create creates a classroom owned by ownerID.
func (s *ClassroomService) Create(ctx context.Context, ownerID int, name string) (*model.Classroom, error) {
	c := &model.Classroom{Name: name, OwnerID: ownerID}
	if err := s.classroomRepo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create classroom: %w", err)
	}
	return c, nil
}

// RequireOwner fails unless userID owns the classroom.
func (s *ClassroomService) RequireOwner(ctx context.Context, classroomID uuid.UUID, userID int) error {
	c, err := s.classroomRepo.GetByID(ctx, classroomID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrClassroomNotFound
		}
		return err
	}
	if c.OwnerID != userID {
		return ErrNotClassroomOwner
	}
	return nil
}

// AddMember enrolls userID into a classroom owned by ownerID.
func (s *ClassroomService) AddMember(ctx context.Context, ownerID int, classroomID uuid.UUID, userID int) error {
	if err := s.RequireOwner(ctx, classroomID, ownerID); err != nil {
		return err
	}
	return s.classroomRepo.AddMember(ctx, classroomID, userID)
}

// IsMember checks membership, caching positive answers in Redis.
func (s *ClassroomService) IsMember(ctx context.Context, classroomID uuid.UUID, userID int) (bool, error) {
	key := config.CacheKey.ClassroomMemberKey(classroomID.String(), userID)
	if n, err := s.rdb.Exists(ctx, key).Result(); err == nil && n > 0 {
		return true, nil
	}

	ok, err := s.classroomRepo.IsMember(ctx, classroomID, userID)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	if ok {
		if err := s.rdb.Set(ctx, key, 1, membershipTTL).Err(); err != nil {
			s.log.Debug().Err(err).Msg("Membership cache write failed")
		}
	}
	return ok, nil
}

// Catalog returns the user's catalog for a classroom, creating it on first use.
func (s *ClassroomService) Catalog(ctx context.Context, userID int, classroomID uuid.UUID) (*catalog.Catalog, error) {
	k := catalogKey{userID: userID, classroomID: classroomID}

	s.mu.Lock()
	cat, ok := s.catalogs[k]
	s.mu.Unlock()
	if ok {
		return cat, nil
	}

	member, err := s.IsMember(ctx, classroomID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotClassroomMember
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cat, ok := s.catalogs[k]; ok {
		return cat, nil
	}

	cat = catalog.New(catalog.Config{
		UserID:        userID,
		ClassroomID:   classroomID,
		Exams:         s.exams,
		Submissions:   s.submissions,
		Notifier:      s.notifier,
		SubmitTimeout: s.submitTimeout,
		Log:           s.log,
	})
	s.catalogs[k] = cat
	return cat, nil
}

// EvictIdle drops catalogs with no open session that were last used before
// cutoff. A later request rebuilds them from storage. Returns the number evicted.
func (s *ClassroomService) EvictIdle(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, c := range s.catalogs {
		since, ok := c.IdleSince()
		if ok && since.Before(cutoff) {
			delete(s.catalogs, k)
			n++
		}
	}
	return n
}

// RunEviction sweeps idle catalogs every interval until ctx is cancelled.
func (s *ClassroomService) RunEviction(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(time.Now().Add(-idle)); n > 0 {
				s.log.Debug().Int("evicted", n).Msg("Idle catalogs evicted")
			}
		}
	}
}

// Shutdown closes every open exam session. Live attempts are discarded.
func (s *ClassroomService) Shutdown() {
	s.mu.Lock()
	cats := make([]*catalog.Catalog, 0, len(s.catalogs))
	for _, c := range s.catalogs {
		cats = append(cats, c)
	}
	s.mu.Unlock()

	for _, c := range cats {
		c.Shutdown()
	}
	s.log.Info().Int("catalogs", len(cats)).Msg("Open exam sessions closed")
}

// OpenSessions counts catalogs that currently hold an open exam session.
func (s *ClassroomService) OpenSessions() int {
	s.mu.Lock()
	cats := make([]*catalog.Catalog, 0, len(s.catalogs))
	for _, c := range s.catalogs {
		cats = append(cats, c)
	}
	s.mu.Unlock()

	n := 0
	for _, c := range cats {
		if _, idle := c.IdleSince(); !idle {
			n++
		}
	}
	return n
}
