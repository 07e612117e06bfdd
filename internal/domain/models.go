package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Mode is the answer shape of a step.
type Mode string

const (
	ModeInput        Mode = "input"
	ModeSingleChoice Mode = "single-choice"
	ModeMultiChoice  Mode = "multi-choice"
	ModeNumeric      Mode = "numeric"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeInput, ModeSingleChoice, ModeMultiChoice, ModeNumeric:
		return true
	}
	return false
}

// HasOptions reports whether steps of this mode carry an option list.
func (m Mode) HasOptions() bool {
	return m == ModeSingleChoice || m == ModeMultiChoice
}

// Step is an immutable question record. CorrectAnswers never leaves the
// service through JSON.
type Step struct {
	ID             string   `json:"_id" bson:"_id"`
	Question       string   `json:"question" bson:"question"`
	Mode           Mode     `json:"mode" bson:"mode"`
	Options        []string `json:"options,omitempty" bson:"options,omitempty"`
	CorrectAnswers []string `json:"-" bson:"correctAnswers"`
}

// View returns the client-facing copy of the step.
func (s Step) View() StepView {
	return StepView{ID: s.ID, Question: s.Question, Mode: s.Mode, Options: s.Options}
}

// StepView is a step without its correct answers.
type StepView struct {
	ID       string   `json:"_id"`
	Question string   `json:"question"`
	Mode     Mode     `json:"mode"`
	Options  []string `json:"options,omitempty"`
}

// Quiz is a named, ordered sequence of step ids.
type Quiz struct {
	ID        string    `json:"_id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Steps     []string  `json:"steps" bson:"steps"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Validate rejects empty sequences and repeated step ids; a repeated id could
// never be answered twice, so the quiz would be unfinishable.
func (q Quiz) Validate() error {
	if len(q.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidQuiz)
	}
	seen := make(map[string]struct{}, len(q.Steps))
	for _, id := range q.Steps {
		if id == "" {
			return fmt.Errorf("%w: empty step id", ErrInvalidQuiz)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: step %s listed twice", ErrInvalidQuiz, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func indexOf(ids []string, id string) int {
	for i, candidate := range ids {
		if candidate == id {
			return i
		}
	}
	return -1
}

// Answer is a submitted answer. Scalar answers hold exactly one value.
type Answer struct {
	Values []string
	List   bool
}

// Text returns a scalar answer from a string.
func Text(v string) Answer {
	return Answer{Values: []string{v}}
}

// Choices returns a list answer.
func Choices(v ...string) Answer {
	return Answer{Values: append([]string(nil), v...), List: true}
}

// Number returns a scalar answer holding the canonical form of d.
func Number(d decimal.Decimal) Answer {
	return Text(d.String())
}

// Scalar returns the single value of a scalar answer.
func (a Answer) Scalar() (string, bool) {
	if a.List || len(a.Values) != 1 {
		return "", false
	}
	return a.Values[0], true
}

// UnmarshalJSON accepts a string, a number or an array of strings.
func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Answer{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Text(s)
	case '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("answer list must contain strings: %w", err)
		}
		*a = Choices(list...)
	default:
		d, err := ParseNumber(string(data))
		if err != nil {
			return fmt.Errorf("answer must be a string, number or list: %w", err)
		}
		*a = Number(d)
	}
	return nil
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if v, ok := a.Scalar(); ok {
		return json.Marshal(v)
	}
	if a.Values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a.Values)
}

// maxNumberExponent bounds exponent notation so a short literal such as
// 1e999999999 cannot expand into a huge canonical string.
const maxNumberExponent = 1000

// ParseNumber parses a decimal literal without going through float64, so
// every distinct value keeps a distinct canonical form.
func ParseNumber(literal string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(literal)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if exp := d.Exponent(); exp > maxNumberExponent || exp < -maxNumberExponent {
		return decimal.Decimal{}, fmt.Errorf("number %q is out of range", literal)
	}
	return d, nil
}

// Identity is the resolved caller: a user, or an anonymous origin.
type Identity struct {
	UserID string
	Email  string
	Origin string
}

// Anonymous returns an identity keyed by the client origin.
func Anonymous(origin string) Identity {
	return Identity{Origin: origin}
}

// User returns an authenticated identity.
func User(id, email string) Identity {
	return Identity{UserID: id, Email: email}
}

// Authenticated reports whether a user is attached.
func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

// Label is the human readable name used in generated quiz names.
func (i Identity) Label() string {
	if i.Email != "" {
		return i.Email
	}
	return i.UserID
}
