// Package catalog lists a classroom's exams for one user, tracks which of
// them the user already submitted, and owns the user's single open exam session.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/classroom-backend/internal/clock"
	"github.com/stemsi/classroom-backend/internal/examsession"
	"github.com/stemsi/classroom-backend/internal/model"
)

// DefaultSubmitTimeout bounds a single CreateSubmission call.
const DefaultSubmitTimeout = 10 * time.Second

// Domain Errors
var (
	ErrExamNotFound      = errors.New("exam not found in classroom")
	ErrInvalidExam       = errors.New("exam has no questions")
	ErrNoSubmission      = errors.New("no submission for exam")
	ErrSessionInProgress = errors.New("another exam attempt is in progress")
	ErrNoActiveSession   = errors.New("no open exam session")
	ErrActionIgnored     = errors.New("action not allowed in current session state")
)

// ExamSource lists the exams published to a classroom.
type ExamSource interface {
	ListExamsForContext(ctx context.Context, classroomID uuid.UUID) ([]model.Exam, error)
}

// SubmissionStore persists and lists submissions. CreateSubmission must
// return an error matching model.ErrAlreadySubmitted for duplicates.
type SubmissionStore interface {
	ListSubmissionsForContext(ctx context.Context, classroomID uuid.UUID, userID int) ([]model.Submission, error)
	CreateSubmission(ctx context.Context, userID int, examID uuid.UUID, answers model.AnswerSet) (*model.Submission, error)
}

// Config wires a Catalog to its collaborators.
type Config struct {
	UserID        int
	ClassroomID   uuid.UUID
	Exams         ExamSource
	Submissions   SubmissionStore
	Notifier      Notifier
	Clock         clock.Clock
	SubmitTimeout time.Duration
	Log           zerolog.Logger
}

// Outcome is the persistence result of a finalized live session.
type Outcome struct {
	SessionID  uuid.UUID           `json:"session_id"`
	ExamID     uuid.UUID           `json:"exam_id"`
	Trigger    examsession.Trigger `json:"trigger"`
	Submission *model.Submission   `json:"submission,omitempty"`
	Err        error               `json:"-"`
}

// Catalog mediates between a user's exam list and at most one open session.
type Catalog struct {
	userID        int
	classroomID   uuid.UUID
	exams         ExamSource
	store         SubmissionStore
	notifier      Notifier
	clk           clock.Clock
	submitTimeout time.Duration
	log           zerolog.Logger

	mu          sync.Mutex
	loaded      bool
	submitted   map[uuid.UUID]struct{}
	submissions map[uuid.UUID]model.Submission
	active      *examsession.Session
	last        *Outcome
	touched     time.Time
}

// New creates a Catalog.
func New(cfg Config) *Catalog {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	timeout := cfg.SubmitTimeout
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NotifierFunc(func(int, Notice) {})
	}

	return &Catalog{
		userID:        cfg.UserID,
		classroomID:   cfg.ClassroomID,
		exams:         cfg.Exams,
		store:         cfg.Submissions,
		notifier:      notifier,
		clk:           clk,
		submitTimeout: timeout,
		log: cfg.Log.With().
			Str("component", "catalog").
			Int("user_id", cfg.UserID).
			Str("classroom_id", cfg.ClassroomID.String()).
			Logger(),
		submitted:   make(map[uuid.UUID]struct{}),
		submissions: make(map[uuid.UUID]model.Submission),
		touched:     clk.Now(),
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Submission status
// ────────────────────────────────────────────────────────────────────────────

// LoadSubmittedSet refreshes the set of exams the user already submitted.
// On failure the last known set is kept, a warning notice is sent and the
// error is returned for logging only; callers must not block on it.
func (c *Catalog) LoadSubmittedSet(ctx context.Context) error {
	subs, err := c.store.ListSubmissionsForContext(ctx, c.classroomID, c.userID)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to load submissions")
		c.notify(NoticeWarning, CodeSubmissionsUnavailable, "Status pengumpulan sedang tidak tersedia.", nil)
		return fmt.Errorf("list submissions: %w", err)
	}

	submitted := make(map[uuid.UUID]struct{}, len(subs))
	byExam := make(map[uuid.UUID]model.Submission, len(subs))
	for _, s := range subs {
		submitted[s.ExamID] = struct{}{}
		byExam[s.ExamID] = s
	}

	c.mu.Lock()
	c.submitted = submitted
	c.submissions = byExam
	c.loaded = true
	c.mu.Unlock()
	return nil
}

func (c *Catalog) ensureLoaded(ctx context.Context) {
	c.mu.Lock()
	loaded := c.loaded
	c.mu.Unlock()
	if !loaded {
		_ = c.LoadSubmittedSet(ctx)
	}
}

// IsSubmitted reports whether examID is in the submitted set.
func (c *Catalog) IsSubmitted(examID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.submitted[examID]
	return ok
}

// Submission returns the known submission for examID.
func (c *Catalog) Submission(examID uuid.UUID) (model.Submission, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.submissions[examID]
	return s, ok
}

// ListExams returns the classroom's exams with the user's submission badges.
func (c *Catalog) ListExams(ctx context.Context) ([]model.ExamSummary, error) {
	c.touch()
	exams, err := c.exams.ListExamsForContext(ctx, c.classroomID)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}

	// Refreshed on every listing so late grades show up. A failure keeps
	// the last known set.
	_ = c.LoadSubmittedSet(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.ExamSummary, 0, len(exams))
	for _, e := range exams {
		entry := model.ExamSummary{
			ID:             e.ID,
			Topic:          e.Topic,
			Description:    e.Description,
			Marks:          e.Marks,
			TimeoutMinutes: e.TimeoutMinutes,
			QuestionCount:  len(e.Questions),
		}
		if _, ok := c.submitted[e.ID]; ok {
			entry.Submitted = true
		}
		if s, ok := c.submissions[e.ID]; ok {
			entry.Score = s.Score
		}
		out = append(out, entry)
	}
	return out, nil
}

// ────────────────────────────────────────────────────────────────────────────
// Session routing
// ────────────────────────────────────────────────────────────────────────────

// StartExam opens a live session for examID unless the user already
// submitted it or another live attempt is running. An open review session
// is replaced.
func (c *Catalog) StartExam(ctx context.Context, examID uuid.UUID) (*examsession.Session, error) {
	c.touch()
	exam, err := c.findExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	c.ensureLoaded(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, done := c.submitted[examID]; done {
		c.notify(NoticeWarning, CodeAlreadySubmitted, "Anda sudah mengumpulkan ujian ini.", &examID)
		return nil, model.ErrAlreadySubmitted
	}
	if len(exam.Questions) == 0 {
		c.notify(NoticeError, CodeInvalidExam, "Ujian ini tidak memiliki pertanyaan.", &examID)
		return nil, ErrInvalidExam
	}
	if err := c.releaseSlotLocked(); err != nil {
		return nil, err
	}

	sess, err := examsession.OpenLive(exam, examsession.Options{
		Clock:    c.clk,
		OnSubmit: c.onSessionSubmitted,
		Log:      c.log,
	})
	if err != nil {
		return nil, fmt.Errorf("open live session: %w", err)
	}

	c.active = sess
	c.log.Info().
		Str("exam_id", examID.String()).
		Str("session_id", sess.ID().String()).
		Msg("Exam started")
	return sess, nil
}

// ViewAnswers opens a review session over the user's submission for examID.
func (c *Catalog) ViewAnswers(ctx context.Context, examID uuid.UUID) (*examsession.Session, error) {
	c.touch()
	exam, err := c.findExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	c.ensureLoaded(ctx)
	sub, ok := c.Submission(examID)
	if !ok {
		// The submission may have been made elsewhere since the last load.
		if err := c.LoadSubmittedSet(ctx); err == nil {
			sub, ok = c.Submission(examID)
		}
	}
	if !ok {
		c.notify(NoticeError, CodeNoSubmission, "Jawaban untuk ujian ini tidak ditemukan.", &examID)
		return nil, ErrNoSubmission
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.releaseSlotLocked(); err != nil {
		return nil, err
	}

	sess, err := examsession.OpenReview(exam, sub.Answers, examsession.Options{
		Clock: c.clk,
		Log:   c.log,
	})
	if err != nil {
		c.notify(NoticeError, CodeInvalidExam, "Ujian ini tidak memiliki pertanyaan.", &examID)
		return nil, fmt.Errorf("open review session: %w", err)
	}

	c.active = sess
	return sess, nil
}

// releaseSlotLocked closes the open session unless it is a running live
// attempt. Caller holds c.mu.
func (c *Catalog) releaseSlotLocked() error {
	if c.active == nil {
		return nil
	}
	if c.active.Phase() == examsession.PhaseActive && c.active.Mode() == examsession.ModeLive {
		c.notify(NoticeWarning, CodeSessionInProgress, "Selesaikan atau tutup ujian yang sedang berlangsung terlebih dahulu.", nil)
		return ErrSessionInProgress
	}
	c.active.Close()
	c.active = nil
	return nil
}

func (c *Catalog) findExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exams, err := c.exams.ListExamsForContext(ctx, c.classroomID)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	for i := range exams {
		if exams[i].ID == examID {
			return &exams[i], nil
		}
	}
	return nil, ErrExamNotFound
}

// ────────────────────────────────────────────────────────────────────────────
// Active session
// ────────────────────────────────────────────────────────────────────────────

// Active returns the open session, or nil.
func (c *Catalog) Active() *examsession.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touched = c.clk.Now()
	if c.active != nil && c.active.Phase() == examsession.PhaseClosed {
		c.active = nil
	}
	return c.active
}

// SubmitActive manually submits the open live session and returns the
// persistence outcome.
func (c *Catalog) SubmitActive() (*Outcome, error) {
	sess := c.Active()
	if sess == nil {
		return nil, ErrNoActiveSession
	}
	if !sess.Submit() {
		return nil, ErrActionIgnored
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last != nil && c.last.SessionID == sess.ID() {
		o := *c.last
		return &o, o.Err
	}
	return nil, ErrActionIgnored
}

// CloseActive closes the open session. A running live attempt is discarded.
func (c *Catalog) CloseActive() bool {
	c.mu.Lock()
	c.touched = c.clk.Now()
	sess := c.active
	c.active = nil
	c.mu.Unlock()

	if sess == nil {
		return false
	}
	return sess.Close()
}

// LastOutcome returns the most recent persistence outcome.
func (c *Catalog) LastOutcome() (*Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return nil, false
	}
	o := *c.last
	return &o, true
}

// IdleSince reports when the catalog was last used. ok is false while a
// session is open.
func (c *Catalog) IdleSince() (since time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil && c.active.Phase() != examsession.PhaseClosed {
		return time.Time{}, false
	}
	return c.touched, true
}

func (c *Catalog) touch() {
	c.mu.Lock()
	c.touched = c.clk.Now()
	c.mu.Unlock()
}

// Shutdown closes any open session.
func (c *Catalog) Shutdown() {
	c.CloseActive()
}

// onSessionSubmitted persists a finalized live session. The session is
// already closed; a failed write is reported and not retried.
func (c *Catalog) onSessionSubmitted(res examsession.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), c.submitTimeout)
	defer cancel()

	sub, err := c.store.CreateSubmission(ctx, c.userID, res.ExamID, res.Answers)

	c.mu.Lock()
	if c.active != nil && c.active.ID() == res.SessionID {
		c.active = nil
	}
	c.last = &Outcome{
		SessionID:  res.SessionID,
		ExamID:     res.ExamID,
		Trigger:    res.Trigger,
		Submission: sub,
		Err:        err,
	}
	switch {
	case err == nil:
		c.submitted[res.ExamID] = struct{}{}
		c.submissions[res.ExamID] = *sub
	case errors.Is(err, model.ErrAlreadySubmitted):
		c.submitted[res.ExamID] = struct{}{}
	}
	c.mu.Unlock()

	examID := res.ExamID
	switch {
	case err == nil:
		c.log.Info().
			Str("exam_id", examID.String()).
			Str("trigger", string(res.Trigger)).
			Msg("Submission saved")
		c.notify(NoticeInfo, CodeSubmissionSaved, "Jawaban Anda berhasil dikumpulkan.", &examID)
	case errors.Is(err, model.ErrAlreadySubmitted):
		c.log.Warn().Str("exam_id", examID.String()).Msg("Duplicate submission rejected")
		c.notify(NoticeWarning, CodeAlreadySubmitted, "Anda sudah mengumpulkan ujian ini.", &examID)
	default:
		c.log.Error().Err(err).Str("exam_id", examID.String()).Msg("Submission failed")
		c.notify(NoticeError, CodeSubmissionFailed, "Jawaban Anda gagal disimpan.", &examID)
	}
}

func (c *Catalog) notify(level NoticeLevel, code, msg string, examID *uuid.UUID) {
	c.notifier.Notify(c.userID, Notice{
		Level:   level,
		Code:    code,
		Message: msg,
		ExamID:  examID,
		At:      c.clk.Now(),
	})
}
