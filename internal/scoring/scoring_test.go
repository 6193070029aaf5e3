package scoring

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestParseAcceptsValidDefinition(t *testing.T) {
	questions, err := Parse(`[{"q":"2+2=?","options":["3","4","5"],"ans":1},{"q":"Capital of France?","options":["Paris","Rome"],"ans":0}]`)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	require.Equal(t, "2+2=?", questions[0].Prompt)
	require.Equal(t, 1, *questions[0].Answer)
	require.Equal(t, []string{"Paris", "Rome"}, questions[1].Options)
}

func TestParseAcceptsEmptyArray(t *testing.T) {
	questions, err := Parse(" [] ")
	require.NoError(t, err)
	require.NotNil(t, questions)
	require.Empty(t, questions)
}

func TestParseRejectsInvalidDefinitions(t *testing.T) {
	cases := map[string]string{
		"not json":         `not json`,
		"object":           `{"q":"x","options":["a"],"ans":0}`,
		"null":             `null`,
		"empty input":      ``,
		"missing prompt":   `[{"options":["a"],"ans":0}]`,
		"empty prompt":     `[{"q":"","options":["a"],"ans":0}]`,
		"no options":       `[{"q":"x","options":[],"ans":0}]`,
		"missing answer":   `[{"q":"x","options":["a","b"]}]`,
		"answer too large": `[{"q":"x","options":["a","b"],"ans":2}]`,
		"negative answer":  `[{"q":"x","options":["a","b"],"ans":-1}]`,
		"fractional ans":   `[{"q":"x","options":["a","b"],"ans":0.5}]`,
		"string options":   `[{"q":"x","options":"a","ans":0}]`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(raw)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidDefinition), "expected ErrInvalidDefinition, got %v", err)
		})
	}
}

func TestGradeTwoQuestionScenario(t *testing.T) {
	questions := []Question{
		{Prompt: "a", Options: []string{"x", "y"}, Answer: intPtr(0)},
		{Prompt: "b", Options: []string{"x", "y"}, Answer: intPtr(0)},
	}

	half := Grade(questions, Answers{0: "0", 1: "1"}, 50)
	require.Equal(t, Result{Correct: 1, Total: 2, ScorePercent: 50, Passed: true}, half)

	none := Grade(questions, Answers{0: "1", 1: "1"}, 50)
	require.Equal(t, Result{Correct: 0, Total: 2, ScorePercent: 0, Passed: false}, none)
}

func TestGradeWithoutQuestions(t *testing.T) {
	require.Equal(t, Result{ScorePercent: 0, Passed: true}, Grade(nil, Answers{}, 0))
	require.Equal(t, Result{ScorePercent: 0, Passed: false}, Grade([]Question{}, Answers{}, 50))
}

func TestGradeTreatsMissingAndMalformedAnswersAsIncorrect(t *testing.T) {
	questions := []Question{
		{Prompt: "a", Options: []string{"x", "y"}, Answer: intPtr(1)},
		{Prompt: "b", Options: []string{"x", "y"}, Answer: intPtr(1)},
		{Prompt: "c", Options: []string{"x", "y"}, Answer: intPtr(1)},
	}

	result := Grade(questions, Answers{0: "1", 1: "one"}, 50)
	require.Equal(t, 1, result.Correct)
	require.Equal(t, 33, result.ScorePercent)
	require.False(t, result.Passed)
}

func TestPercentRoundsHalfAwayFromZero(t *testing.T) {
	require.Equal(t, 67, Percent(2, 3))
	require.Equal(t, 13, Percent(1, 8))
	require.Equal(t, 100, Percent(4, 4))
	require.Equal(t, 0, Percent(0, 0))
}

func TestAnswersFromForm(t *testing.T) {
	form := url.Values{}
	form.Set("q_0", "2")
	form.Set("q_2", "0")
	form.Set("q_9", "1")

	answers := AnswersFromForm(form, 3)
	require.Equal(t, Answers{0: "2", 2: "0"}, answers)
}

func TestRedactDropsAnswers(t *testing.T) {
	public := Redact(ExampleDefinition())
	require.Len(t, public, 2)
	require.Equal(t, "q_1", public[1].Field)
	require.Equal(t, "Which is a Java keyword?", public[1].Prompt)
	require.Equal(t, []string{"class", "function", "var", "let"}, public[1].Options)
}
