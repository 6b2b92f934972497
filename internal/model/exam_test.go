package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinutesLenientDecoding(t *testing.T) {
	cases := []struct {
		raw     string
		seconds int
	}{
		{`30`, 1800},
		{`"15"`, 900},
		{`" 2 "`, 120},
		{`1.5`, 90},
		{`0`, 0},
		{`-3`, 0},
		{`"-3"`, 0},
		{`"ten"`, 0},
		{`null`, 0},
		{`true`, 0},
		{`[1]`, 0},
		{`10080`, 604800},
		{`10081`, 0},
		{`1e300`, 0},
		{`"1e300"`, 0},
	}

	for _, tc := range cases {
		var m Minutes
		require.NoError(t, json.Unmarshal([]byte(tc.raw), &m), tc.raw)
		assert.Equal(t, tc.seconds, m.Seconds(), tc.raw)
	}
}

func TestMinutesOutOfRangeIsAbsent(t *testing.T) {
	assert.Equal(t, 0, Minutes(1e300).Seconds())
	assert.Equal(t, 0, Minutes(math.Inf(1)).Seconds())
	assert.Equal(t, 0, Minutes(math.NaN()).Seconds())
	assert.Equal(t, MaxMinutes*60, Minutes(MaxMinutes).Seconds())
}

func TestQuestionIndex(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	e := &Exam{Questions: []Question{{ID: a}, {ID: b}}}

	assert.Equal(t, 1, e.QuestionIndex(b))
	assert.Equal(t, -1, e.QuestionIndex(uuid.New()))
	assert.False(t, e.Questions[0].HasOption(""))
}

func TestAnswerSetJSONUsesNullForUnanswered(t *testing.T) {
	id := uuid.MustParse("7f1c4c1e-0000-4000-8000-000000000001")
	v := "A"
	raw, err := json.Marshal(AnswerSet{id: &v})
	require.NoError(t, err)
	assert.JSONEq(t, `{"7f1c4c1e-0000-4000-8000-000000000001":"A"}`, string(raw))

	var back AnswerSet
	require.NoError(t, json.Unmarshal([]byte(`{"7f1c4c1e-0000-4000-8000-000000000001":null}`), &back))
	assert.Contains(t, back, id)
	assert.Nil(t, back[id])
	assert.Equal(t, 0, back.Answered())
}
