package scoring

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Answers maps a question index to the raw submitted option index.
type Answers map[int]string

// Result is the outcome of grading one submission.
type Result struct {
	Correct      int  `json:"correct"`
	Total        int  `json:"total"`
	ScorePercent int  `json:"score_percent"`
	Passed       bool `json:"passed"`
}

// FieldName returns the form field carrying the answer to question i.
func FieldName(i int) string {
	return "q_" + strconv.Itoa(i)
}

// AnswersFromForm collects q_<i> fields for the first n questions.
func AnswersFromForm(form url.Values, n int) Answers {
	answers := make(Answers, n)
	for i := 0; i < n; i++ {
		key := FieldName(i)
		if _, ok := form[key]; ok {
			answers[i] = form.Get(key)
		}
	}
	return answers
}

// Grade scores answers against the key. Missing or non-integer answers count
// as incorrect. With no questions the score is 0.
func Grade(questions []Question, answers Answers, cutoffPercent int) Result {
	result := Result{Total: len(questions)}
	for i, q := range questions {
		raw, ok := answers[i]
		if !ok || q.Answer == nil {
			continue
		}
		chosen, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		if chosen == *q.Answer {
			result.Correct++
		}
	}

	result.ScorePercent = Percent(result.Correct, result.Total)
	result.Passed = result.ScorePercent >= cutoffPercent
	return result
}

// Percent returns round(100*correct/total), rounding halves away from zero.
func Percent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}
