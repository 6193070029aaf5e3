// Package scoring parses screening test definitions and grades submissions.
package scoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charlesng35/internhub/pkg/validator"
)

// ErrInvalidDefinition reports a test definition that cannot be used.
var ErrInvalidDefinition = errors.New("invalid test definition")

// Question is a single multiple choice question with its answer key.
type Question struct {
	Prompt  string   `json:"q" validate:"required"`
	Options []string `json:"options" validate:"required,min=1"`
	Answer  *int     `json:"ans" validate:"required"`
}

// PublicQuestion is a question as shown to a student, without the answer key.
type PublicQuestion struct {
	Index   int      `json:"index"`
	Field   string   `json:"field"`
	Prompt  string   `json:"q"`
	Options []string `json:"options"`
}

// Parse decodes and validates a JSON test definition. An empty array is a
// valid definition with no questions.
func Parse(raw string) ([]Question, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: expected a JSON array of questions", ErrInvalidDefinition)
	}

	var questions []Question
	if err := json.Unmarshal(trimmed, &questions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	if err := Validate(questions); err != nil {
		return nil, err
	}
	if questions == nil {
		questions = []Question{}
	}
	return questions, nil
}

// Validate checks every question has a prompt, at least one option and an
// answer index within the options.
func Validate(questions []Question) error {
	for i, q := range questions {
		if err := validator.ValidateStruct(q); err != nil {
			return fmt.Errorf("%w: question %d: %v", ErrInvalidDefinition, i+1, err)
		}
		if *q.Answer < 0 || *q.Answer >= len(q.Options) {
			return fmt.Errorf("%w: question %d: answer index %d out of range", ErrInvalidDefinition, i+1, *q.Answer)
		}
	}
	return nil
}

// Redact strips answer keys for display.
func Redact(questions []Question) []PublicQuestion {
	out := make([]PublicQuestion, 0, len(questions))
	for i, q := range questions {
		options := make([]string, len(q.Options))
		copy(options, q.Options)
		out = append(out, PublicQuestion{
			Index:   i,
			Field:   FieldName(i),
			Prompt:  q.Prompt,
			Options: options,
		})
	}
	return out
}

// ExampleDefinition is offered as a starting point on the posting form.
func ExampleDefinition() []Question {
	first, second := 0, 0
	return []Question{
		{Prompt: "OOP stands for?", Options: []string{"Object Oriented Programming", "Order Of Process", "Other", "None"}, Answer: &first},
		{Prompt: "Which is a Java keyword?", Options: []string{"class", "function", "var", "let"}, Answer: &second},
	}
}
