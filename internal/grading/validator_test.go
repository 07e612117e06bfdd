package grading

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-session-service/internal/domain"
)

func TestValidateInput(t *testing.T) {
	correct := []string{"Paris", "Paris, France"}

	ok, err := Validate(domain.ModeInput, domain.ModeInput, correct, domain.Text("paris"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Validate(domain.ModeInput, domain.ModeInput, correct, domain.Text("PARIS, FRANCE"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Validate(domain.ModeInput, domain.ModeInput, correct, domain.Text("Paris is nice"))
	require.NoError(t, err)
	assert.False(t, ok, "substring must not match")

	ok, err = Validate(domain.ModeInput, domain.ModeInput, []string{"a.c"}, domain.Text("abc"))
	require.NoError(t, err)
	assert.False(t, ok, "correct answers are literals, not patterns")
}

func TestValidateMultiChoiceIsOrderIndependent(t *testing.T) {
	correct := []string{"Red", "Green", "Blue"}
	perms := [][]string{
		{"Red", "Green", "Blue"},
		{"Blue", "Red", "Green"},
		{"Green", "Blue", "Red"},
		{"Blue", "Green", "Red"},
	}
	for _, p := range perms {
		ok, err := Validate(domain.ModeMultiChoice, domain.ModeMultiChoice, correct, domain.Choices(p...))
		require.NoError(t, err)
		assert.True(t, ok, "permutation %v", p)
	}
	// input slice must not be reordered in place
	assert.Equal(t, []string{"Red", "Green", "Blue"}, correct)
}

func TestValidateMultiChoiceRequiresExactSet(t *testing.T) {
	correct := []string{"2", "5"}
	cases := [][]string{
		{"2"},
		{"2", "5", "9"},
		{"2", "2"},
		{},
	}
	for _, c := range cases {
		ok, err := Validate(domain.ModeMultiChoice, domain.ModeMultiChoice, correct, domain.Choices(c...))
		require.NoError(t, err)
		assert.False(t, ok, "submission %v", c)
	}
}

func TestValidateSingleChoiceAndNumeric(t *testing.T) {
	ok, err := Validate(domain.ModeSingleChoice, domain.ModeSingleChoice, []string{"100°C"}, domain.Text("100°C"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Validate(domain.ModeSingleChoice, domain.ModeSingleChoice, []string{"100°C"}, domain.Text("100°c"))
	require.NoError(t, err)
	assert.False(t, ok, "single-choice is case sensitive")

	ok, err = Validate(domain.ModeNumeric, domain.ModeNumeric, []string{"5"}, domain.Text("5"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Validate(domain.ModeNumeric, domain.ModeNumeric, []string{"5"}, domain.Text("5.0"))
	require.NoError(t, err)
	assert.True(t, ok, "numeric literals are canonicalized")

	ok, err = Validate(domain.ModeNumeric, domain.ModeNumeric, []string{"5"}, domain.Text("five"))
	require.NoError(t, err)
	assert.False(t, ok)

	a, b := 0.1, 0.2
	ok, err = Validate(domain.ModeNumeric, domain.ModeNumeric, []string{"0.3"}, domain.Text(strconv.FormatFloat(a+b, 'f', -1, 64)))
	require.NoError(t, err)
	assert.False(t, ok, "no tolerance is applied")
}

func TestValidateNumericIsExact(t *testing.T) {
	cases := []struct {
		correct   string
		submitted string
		want      bool
	}{
		{"0.1", "0.10000000000000001", false},
		{"12345678901234567890", "12345678901234567000", false},
		{"5", "5.0000000000000001", false},
		{"0.3", "0.30000000000000004", false},
		{"12345678901234567890", "1.234567890123456789e19", true},
		{"-2.50", "-2.5", true},
		{"0", "-0.0", true},
	}
	for _, c := range cases {
		ok, err := Validate(domain.ModeNumeric, domain.ModeNumeric, []string{c.correct}, domain.Text(c.submitted))
		require.NoError(t, err)
		assert.Equal(t, c.want, ok, "%s vs %s", c.correct, c.submitted)
	}
}

func TestValidateScalarModesRejectLists(t *testing.T) {
	ok, err := Validate(domain.ModeSingleChoice, domain.ModeSingleChoice, []string{"Paris"}, domain.Choices("Paris"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidateModeMismatch(t *testing.T) {
	_, err := Validate(domain.ModeMultiChoice, domain.ModeNumeric, []string{"1"}, domain.Text("1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrModeMismatch))

	var mm *domain.ModeMismatchError
	require.True(t, errors.As(err, &mm))
	assert.Equal(t, domain.ModeMultiChoice, mm.Expected)
	assert.Equal(t, domain.ModeNumeric, mm.Got)
}

func TestValidateUnsupportedMode(t *testing.T) {
	_, err := Validate("essay", "essay", []string{"x"}, domain.Text("x"))
	assert.True(t, errors.Is(err, domain.ErrUnsupportedMode))
}

func TestExactCorrectAnswerAlwaysPasses(t *testing.T) {
	steps := []domain.Step{
		{ID: "s1", Mode: domain.ModeInput, CorrectAnswers: []string{"O"}},
		{ID: "s2", Mode: domain.ModeSingleChoice, CorrectAnswers: []string{"Mars"}},
		{ID: "s3", Mode: domain.ModeMultiChoice, CorrectAnswers: []string{"JavaScript", "Python"}},
		{ID: "s4", Mode: domain.ModeNumeric, CorrectAnswers: []string{"12"}},
	}
	for _, step := range steps {
		var answer domain.Answer
		if step.Mode == domain.ModeMultiChoice {
			answer = domain.Choices(step.CorrectAnswers...)
		} else {
			answer = domain.Text(step.CorrectAnswers[0])
		}
		ok, err := ValidateStep(step, step.Mode, answer)
		require.NoError(t, err, step.ID)
		assert.True(t, ok, step.ID)
	}
}
