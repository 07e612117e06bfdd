// Package grading decides whether a submitted answer matches a step's
// correct answers. It holds no state.
package grading

import (
	"fmt"
	"sort"
	"strings"

	"quiz-session-service/internal/domain"
)

// Validate checks submitted against correct for a step stored with mode.
// claimed is the mode asserted by the client and must equal mode.
func Validate(mode, claimed domain.Mode, correct []string, submitted domain.Answer) (bool, error) {
	if claimed != mode {
		return false, &domain.ModeMismatchError{Expected: mode, Got: claimed}
	}

	switch mode {
	case domain.ModeInput:
		value, ok := submitted.Scalar()
		if !ok {
			return false, nil
		}
		for _, c := range correct {
			if strings.EqualFold(c, value) {
				return true, nil
			}
		}
		return false, nil

	case domain.ModeMultiChoice:
		return sameSet(correct, submitted.Values), nil

	case domain.ModeSingleChoice:
		value, ok := submitted.Scalar()
		if !ok {
			return false, nil
		}
		return contains(correct, value), nil

	case domain.ModeNumeric:
		value, ok := submitted.Scalar()
		if !ok {
			return false, nil
		}
		for _, c := range correct {
			if sameNumber(c, value) {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, fmt.Errorf("%w: %q", domain.ErrUnsupportedMode, mode)
	}
}

// ValidateStep is Validate applied to a stored step.
func ValidateStep(step domain.Step, claimed domain.Mode, submitted domain.Answer) (bool, error) {
	return Validate(step.Mode, claimed, step.CorrectAnswers, submitted)
}

// sameSet compares two string multisets regardless of order.
func sameSet(want, got []string) bool {
	if len(want) != len(got) {
		return false
	}
	a := append([]string(nil), want...)
	b := append([]string(nil), got...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// sameNumber compares two decimal literals exactly, so "5.0" equals "5" but
// "0.10000000000000001" does not equal "0.1". Literals that do not parse are
// compared as written.
func sameNumber(want, got string) bool {
	a, errA := domain.ParseNumber(strings.TrimSpace(want))
	b, errB := domain.ParseNumber(strings.TrimSpace(got))
	if errA != nil || errB != nil {
		return want == got
	}
	return a.Equal(b)
}
