// Package examsession runs a single exam attempt: a timed, answerable live
// session or a read-only review of a previous submission.
package examsession

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/classroom-backend/internal/clock"
	"github.com/stemsi/classroom-backend/internal/model"
)

// DefaultDurationSeconds applies when an exam has no usable time limit.
const DefaultDurationSeconds = 600

// TickInterval is the countdown resolution of a live session.
const TickInterval = time.Second

// Domain errors
var (
	ErrNilExam     = errors.New("exam is nil")
	ErrNoQuestions = errors.New("exam has no questions")
)

// Result is the finalized answer set of a live session.
type Result struct {
	SessionID   uuid.UUID
	ExamID      uuid.UUID
	Answers     model.AnswerSet
	Trigger     Trigger
	FinalizedAt time.Time
}

// SubmitFunc receives the result of a finalized live session. It is called
// at most once per session, after the session has reached PhaseClosed.
type SubmitFunc func(Result)

// Options configures a session.
type Options struct {
	Clock    clock.Clock
	OnSubmit SubmitFunc
	Log      zerolog.Logger
}

// Session is one exam attempt interaction. It is safe for concurrent use.
type Session struct {
	id       uuid.UUID
	exam     model.Exam
	clk      clock.Clock
	onSubmit SubmitFunc
	log      zerolog.Logger

	mu     sync.Mutex
	phase  Phase
	cursor int
	state  modeState
	result *Result

	ticker   clock.Ticker
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// DurationSeconds returns the countdown length of a live attempt at exam.
func DurationSeconds(exam *model.Exam) int {
	if s := exam.TimeoutMinutes.Seconds(); s > 0 {
		return s
	}
	return DefaultDurationSeconds
}

// OpenLive starts a timed attempt at exam. The countdown starts immediately.
func OpenLive(exam *model.Exam, opts Options) (*Session, error) {
	s, err := newSession(exam, opts)
	if err != nil {
		return nil, err
	}

	s.state = &liveState{
		remaining: DurationSeconds(exam),
		answers:   make(map[int]*string),
	}
	s.phase = PhaseActive
	s.startTimer()

	s.log.Debug().Int("remaining_seconds", s.state.(*liveState).remaining).Msg("Live session opened")
	return s, nil
}

// OpenReview replays prior answers for exam. Entries of prior whose question
// id is not part of exam are ignored.
func OpenReview(exam *model.Exam, prior model.AnswerSet, opts Options) (*Session, error) {
	s, err := newSession(exam, opts)
	if err != nil {
		return nil, err
	}

	answers := make(map[int]*string, len(exam.Questions))
	for i, q := range exam.Questions {
		if v, ok := prior[q.ID]; ok && v != nil {
			answers[i] = copyString(v)
		} else {
			answers[i] = nil
		}
	}

	s.state = &reviewState{answers: answers}
	s.phase = PhaseActive

	s.log.Debug().Int("answered", countAnswered(answers)).Msg("Review session opened")
	return s, nil
}

func newSession(exam *model.Exam, opts Options) (*Session, error) {
	if exam == nil {
		return nil, ErrNilExam
	}
	if len(exam.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}

	id := uuid.New()
	return &Session{
		id:       id,
		exam:     *exam,
		clk:      clk,
		onSubmit: opts.OnSubmit,
		log: opts.Log.With().
			Str("session_id", id.String()).
			Str("exam_id", exam.ID.String()).
			Logger(),
		phase: PhaseInitializing,
		done:  make(chan struct{}),
	}, nil
}

// ────────────────────────────────────────────────────────────────────────────
// Accessors
// ────────────────────────────────────────────────────────────────────────────

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// ExamID returns the id of the exam being taken or reviewed.
func (s *Session) ExamID() uuid.UUID { return s.exam.ID }

// Mode returns ModeLive or ModeReview.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.mode()
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Done is closed once the session reaches PhaseClosed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Result returns the finalized result of a submitted live session.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// RemainingSeconds returns the live countdown, or 0 in review mode.
func (s *Session) RemainingSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if live, ok := s.state.(*liveState); ok {
		return live.remaining
	}
	return 0
}

// ────────────────────────────────────────────────────────────────────────────
// Transitions
// ────────────────────────────────────────────────────────────────────────────

// Tick advances the live countdown by one second. When it reaches zero the
// session auto-submits. Returns false once the session is no longer counting.
func (s *Session) Tick() bool {
	s.mu.Lock()
	live, ok := s.state.(*liveState)
	if !ok || s.phase != PhaseActive {
		s.mu.Unlock()
		return false
	}

	live.remaining--
	if live.remaining > 0 {
		s.mu.Unlock()
		return true
	}

	live.remaining = 0
	res := s.finalizeLocked(live, TriggerTimeout)
	s.mu.Unlock()

	s.deliver(res)
	return false
}

// SelectAnswer records option for the current question, replacing any prior
// choice. Ignored in review mode, after time is up, or when option is not one
// of the question's options.
func (s *Session) SelectAnswer(option string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	live, ok := s.state.(*liveState)
	if !ok || s.phase != PhaseActive || live.remaining <= 0 {
		return false
	}

	q := &s.exam.Questions[s.cursor]
	if !q.HasOption(option) {
		return false
	}

	live.answers[s.cursor] = &option
	return true
}

// Next moves to the following question. No-op on the last question.
func (s *Session) Next() bool {
	return s.move(1)
}

// Previous moves to the preceding question. No-op on the first question.
func (s *Session) Previous() bool {
	return s.move(-1)
}

func (s *Session) move(delta int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return false
	}

	next := s.cursor + delta
	if next < 0 || next >= len(s.exam.Questions) {
		return false
	}
	s.cursor = next
	return true
}

// Submit finalizes a live session on its last question while time remains.
// Returns false when the call is out of contract or the session already finalized.
func (s *Session) Submit() bool {
	s.mu.Lock()
	live, ok := s.state.(*liveState)
	if !ok || s.phase != PhaseActive || live.remaining <= 0 || s.cursor != len(s.exam.Questions)-1 {
		s.mu.Unlock()
		return false
	}

	res := s.finalizeLocked(live, TriggerManual)
	s.mu.Unlock()

	s.deliver(res)
	return true
}

// Close releases the session. Closing an active live session discards the
// attempt without producing a result. Returns false if already closed.
func (s *Session) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseClosed {
		return false
	}

	if live, ok := s.state.(*liveState); ok {
		s.log.Info().
			Int("answered", countAnswered(live.answers)).
			Int("remaining_seconds", live.remaining).
			Msg("Live attempt discarded")
	}

	s.stopTimer()
	s.phase = PhaseClosed
	close(s.done)
	return true
}

// finalizeLocked moves an active live session through Finalizing to Closed.
// Caller holds s.mu.
func (s *Session) finalizeLocked(live *liveState, trigger Trigger) Result {
	s.phase = PhaseFinalizing
	s.stopTimer()

	res := Result{
		SessionID:   s.id,
		ExamID:      s.exam.ID,
		Answers:     translate(&s.exam, live.answers),
		Trigger:     trigger,
		FinalizedAt: s.clk.Now(),
	}
	s.result = &res

	s.phase = PhaseClosed
	close(s.done)
	return res
}

func (s *Session) deliver(res Result) {
	s.log.Info().
		Str("trigger", string(res.Trigger)).
		Int("answered", res.Answers.Answered()).
		Msg("Session finalized")

	if s.onSubmit != nil {
		s.onSubmit(res)
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Timer
// ────────────────────────────────────────────────────────────────────────────

func (s *Session) startTimer() {
	s.ticker = s.clk.NewTicker(TickInterval)
	s.stop = make(chan struct{})
	go s.runTimer(s.ticker, s.stop)
}

func (s *Session) runTimer(t clock.Ticker, stop <-chan struct{}) {
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			if !s.Tick() {
				return
			}
		}
	}
}

// stopTimer is idempotent and safe in review mode, where no timer exists.
func (s *Session) stopTimer() {
	if s.ticker == nil {
		return
	}
	s.stopOnce.Do(func() {
		s.ticker.Stop()
		close(s.stop)
	})
}

// translate rekeys index-keyed answers by question id. Every question gets an
// entry; unanswered ones map to nil.
func translate(exam *model.Exam, answers map[int]*string) model.AnswerSet {
	out := make(model.AnswerSet, len(exam.Questions))
	for i, q := range exam.Questions {
		out[q.ID] = copyString(answers[i])
	}
	return out
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
