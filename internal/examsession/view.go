package examsession

import (
	"github.com/google/uuid"
	"github.com/stemsi/classroom-backend/internal/model"
)

// OptionStatus is the review-mode classification of an option.
type OptionStatus string

const (
	OptionCorrect           OptionStatus = "correct"
	OptionIncorrectSelected OptionStatus = "incorrect_selected"
	OptionNeutral           OptionStatus = "neutral"
)

// OptionView is one selectable option as presented to the client.
type OptionView struct {
	Value    string       `json:"value"`
	Selected bool         `json:"selected"`
	Status   OptionStatus `json:"status,omitempty"`
}

// QuestionView is the current question as presented to the client. It never
// carries the correct answer directly.
type QuestionView struct {
	ID          uuid.UUID    `json:"id"`
	Number      int          `json:"number"`
	Text        string       `json:"text"`
	Options     []OptionView `json:"options"`
	NotAnswered bool         `json:"not_answered,omitempty"`
}

// View is a point-in-time snapshot of a session.
type View struct {
	SessionID        uuid.UUID    `json:"session_id"`
	ExamID           uuid.UUID    `json:"exam_id"`
	Topic            string       `json:"topic"`
	Mode             Mode         `json:"mode"`
	Phase            Phase        `json:"phase"`
	QuestionIndex    int          `json:"question_index"`
	QuestionCount    int          `json:"question_count"`
	IsLast           bool         `json:"is_last"`
	AnsweredCount    int          `json:"answered_count"`
	RemainingSeconds *int         `json:"remaining_seconds,omitempty"`
	CanSubmit        bool         `json:"can_submit"`
	Question         QuestionView `json:"question"`
}

// RenderQuestion builds the client view of q given the stored answer. With
// reveal set, options are classified against the correct answer and a nil
// answer is flagged as not answered.
func RenderQuestion(q *model.Question, number int, answer *string, reveal bool) QuestionView {
	qv := QuestionView{
		ID:      q.ID,
		Number:  number,
		Text:    q.Text,
		Options: make([]OptionView, 0, len(q.Options)),
	}

	for _, opt := range q.Options {
		ov := OptionView{
			Value:    opt,
			Selected: answer != nil && *answer == opt,
		}
		if reveal {
			switch {
			case opt == q.CorrectAnswer:
				ov.Status = OptionCorrect
			case ov.Selected:
				ov.Status = OptionIncorrectSelected
			default:
				ov.Status = OptionNeutral
			}
		}
		qv.Options = append(qv.Options, ov)
	}

	if reveal && answer == nil {
		qv.NotAnswered = true
	}
	return qv
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.exam.Questions)
	v := View{
		SessionID:     s.id,
		ExamID:        s.exam.ID,
		Topic:         s.exam.Topic,
		Mode:          s.state.mode(),
		Phase:         s.phase,
		QuestionIndex: s.cursor,
		QuestionCount: n,
		IsLast:        s.cursor == n-1,
		AnsweredCount: s.state.answered(),
	}

	reveal := false
	switch st := s.state.(type) {
	case *liveState:
		remaining := st.remaining
		v.RemainingSeconds = &remaining
		v.CanSubmit = s.phase == PhaseActive && v.IsLast && remaining > 0
	case *reviewState:
		reveal = true
	}

	v.Question = RenderQuestion(&s.exam.Questions[s.cursor], s.cursor+1, s.state.answerAt(s.cursor), reveal)
	return v
}
