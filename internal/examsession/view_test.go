package examsession

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stemsi/classroom-backend/internal/model"
)

func TestRenderQuestionLiveHidesCorrectness(t *testing.T) {
	q := &model.Question{Text: "2+2", Options: []string{"3", "4"}, CorrectAnswer: "4"}

	qv := RenderQuestion(q, 1, str("3"), false)
	assert.False(t, qv.NotAnswered)
	for _, o := range qv.Options {
		assert.Empty(t, o.Status)
	}
	assert.True(t, qv.Options[0].Selected)
	assert.False(t, qv.Options[1].Selected)

	qv = RenderQuestion(q, 1, nil, false)
	assert.False(t, qv.NotAnswered, "live mode never flags unanswered questions")
}

func TestRenderQuestionReviewCorrectPick(t *testing.T) {
	q := &model.Question{Options: []string{"3", "4"}, CorrectAnswer: "4"}

	qv := RenderQuestion(q, 2, str("4"), true)
	assert.Equal(t, 2, qv.Number)
	assert.Equal(t, OptionNeutral, qv.Options[0].Status)
	assert.Equal(t, OptionCorrect, qv.Options[1].Status)
	assert.True(t, qv.Options[1].Selected)
}
