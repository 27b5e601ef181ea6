package session

import (
	"testing"

	"github.com/go-go-golems/clarinet/pkg/searchapi"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var twoQuestions = []searchapi.ClarificationQuestion{
	{QuestionID: "q1", Text: "Capital?", Choices: []string{"Paris", "Rome"}},
	{QuestionID: "q2", Text: "Season?", Choices: []string{"Spring", "Fall"}},
}

func TestSession_SkipSemantics(t *testing.T) {
	s := New()
	s.Start("s1", twoQuestions)
	require.NoError(t, s.Answer("q1", "Paris"))

	require.Equal(t, []searchapi.Answer{
		{QuestionID: "q1", Question: "Capital?", Choice: "Paris"},
		{QuestionID: "q2", Question: "Season?", Choice: searchapi.SkipChoice},
	}, s.SubmittedAnswers())

	answered, skipped := s.Counts()
	require.Equal(t, 1, answered)
	require.Equal(t, 1, skipped)
}

func TestSession_AnswerLastWriteWins(t *testing.T) {
	s := New()
	s.Start("s1", twoQuestions)
	require.NoError(t, s.Answer("q1", "Paris"))
	require.NoError(t, s.Answer("q1", "Paris"))
	require.Equal(t, map[string]string{"q1": "Paris"}, s.Answered())

	require.NoError(t, s.Answer("q1", "Rome"))
	require.Equal(t, map[string]string{"q1": "Rome"}, s.Answered())
}

func TestSession_AnswerKeepsSubsetInvariant(t *testing.T) {
	s := New()
	require.True(t, errors.Is(s.Answer("q1", "x"), ErrNoActiveSession))

	s.Start("s1", twoQuestions)
	require.True(t, errors.Is(s.Answer("q3", "x"), ErrUnknownQuestion))
	require.True(t, errors.Is(s.Answer("", ""), ErrUnknownQuestion))
	require.False(t, s.HasAnswers())
}

func TestSession_StartReplacesAndResetClears(t *testing.T) {
	s := New()
	s.Start("s1", twoQuestions)
	require.NoError(t, s.Answer("q2", searchapi.SkipChoice))
	require.True(t, s.HasAnswers())

	s.Start("s2", twoQuestions[:1])
	require.Equal(t, "s2", s.ID())
	require.False(t, s.HasAnswers())
	require.Len(t, s.Pending(), 1)

	s.Reset()
	require.False(t, s.Active())
	require.Empty(t, s.Pending())
	require.Empty(t, s.SubmittedAnswers())
}

func TestSession_PendingIsACopy(t *testing.T) {
	qs := []searchapi.ClarificationQuestion{{QuestionID: "q1", Choices: []string{"a"}}}
	s := New()
	s.Start("s1", qs)
	qs[0].Choices[0] = "mutated"

	p := s.Pending()
	require.Equal(t, []string{"a"}, p[0].Choices)
	p[0].QuestionID = "other"
	require.Equal(t, "q1", s.Pending()[0].QuestionID)
}
