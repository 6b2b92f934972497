package examsession

// Mode selects between a timed attempt and a read-only replay.
type Mode string

const (
	ModeLive   Mode = "live"
	ModeReview Mode = "review"
)

// Phase is the lifecycle position of a session. Every terminal transition
// checks it, so a session finalizes at most once.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseActive       Phase = "active"
	PhaseFinalizing   Phase = "finalizing"
	PhaseClosed       Phase = "closed"
)

// Trigger records what finalized a live session.
type Trigger string

const (
	TriggerManual  Trigger = "manual"
	TriggerTimeout Trigger = "timeout"
)

// modeState is either *liveState or *reviewState.
type modeState interface {
	mode() Mode
	answerAt(i int) *string
	answered() int
}

type liveState struct {
	remaining int
	answers   map[int]*string
}

func (l *liveState) mode() Mode             { return ModeLive }
func (l *liveState) answerAt(i int) *string { return l.answers[i] }
func (l *liveState) answered() int          { return countAnswered(l.answers) }

type reviewState struct {
	answers map[int]*string
}

func (r *reviewState) mode() Mode             { return ModeReview }
func (r *reviewState) answerAt(i int) *string { return r.answers[i] }
func (r *reviewState) answered() int          { return countAnswered(r.answers) }

func countAnswered(m map[int]*string) int {
	n := 0
	for _, v := range m {
		if v != nil {
			n++
		}
	}
	return n
}
