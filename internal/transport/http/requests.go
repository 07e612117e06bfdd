package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"quiz-session-service/internal/domain"
)

const maxAnswerLength = 500

type createSessionRequest struct {
	Size int `json:"size" validate:"gte=0"`
}

type answerRequest struct {
	Mode   string          `json:"mode" validate:"required,oneof=input single-choice multi-choice numeric"`
	Answer json.RawMessage `json:"answer" validate:"required"`
}

// decodeBody decodes a JSON body into dst. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: malformed JSON body: %v", errBadRequest, err)
}

// submission checks the answer shape for the claimed mode and converts the
// request into a domain.AnswerSubmission.
func (req answerRequest) submission(v *validator.Validate, stepID string) (domain.AnswerSubmission, error) {
	if err := v.Struct(req); err != nil {
		return domain.AnswerSubmission{}, err
	}
	mode := domain.Mode(req.Mode)
	raw := bytes.TrimSpace(req.Answer)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return domain.AnswerSubmission{}, fmt.Errorf("%w: answer is required", errBadRequest)
	}

	var answer domain.Answer
	switch mode {
	case domain.ModeInput, domain.ModeSingleChoice:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return domain.AnswerSubmission{}, fmt.Errorf("%w: %s answer must be a string", errBadRequest, mode)
		}
		if err := checkText(v, s); err != nil {
			return domain.AnswerSubmission{}, err
		}
		answer = domain.Text(s)

	case domain.ModeMultiChoice:
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return domain.AnswerSubmission{}, fmt.Errorf("%w: multi-choice answer must be a list of strings", errBadRequest)
		}
		if err := v.Var(list, "min=1"); err != nil {
			return domain.AnswerSubmission{}, fmt.Errorf("%w: multi-choice answer must not be empty", errBadRequest)
		}
		for _, item := range list {
			if err := checkText(v, item); err != nil {
				return domain.AnswerSubmission{}, err
			}
		}
		answer = domain.Choices(list...)

	case domain.ModeNumeric:
		d, err := parseNumber(raw)
		if err != nil {
			return domain.AnswerSubmission{}, err
		}
		answer = domain.Number(d)
	}

	return domain.AnswerSubmission{StepID: stepID, Mode: mode, Answer: answer}, nil
}

func checkText(v *validator.Validate, s string) error {
	if err := v.Var(s, "min=1,max="+strconv.Itoa(maxAnswerLength)); err != nil {
		return fmt.Errorf("%w: answers must be 1 to %d characters", errBadRequest, maxAnswerLength)
	}
	return nil
}

// parseNumber accepts a JSON number or a numeric string. The literal is kept
// as written and parsed exactly.
func parseNumber(raw []byte) (decimal.Decimal, error) {
	var literal string
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err == nil {
		switch t := v.(type) {
		case json.Number:
			literal = t.String()
		case string:
			literal = strings.TrimSpace(t)
		}
	}
	if literal != "" && len(literal) <= maxAnswerLength {
		if d, err := domain.ParseNumber(literal); err == nil {
			return d, nil
		}
	}
	return decimal.Decimal{}, fmt.Errorf("%w: numeric answer must be a number", errBadRequest)
}
