package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"quiz-session-service/internal/domain"
)

var errBadRequest = errors.New("invalid request")

type errorBody struct {
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeDomainError(w http.ResponseWriter, err error) {
	body := errorBody{Message: err.Error()}
	var active *domain.SessionActiveError
	if errors.As(err, &active) {
		body.RetryAfter = active.Seconds()
		w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfter))
	}
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		// Adapter causes stay in the logs.
		body.Message = http.StatusText(status)
	}
	writeJSON(w, status, body)
}

func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, errBadRequest), errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrUnsupportedMode):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrInvalidStep),
		errors.Is(err, domain.ErrDuplicateAnswer),
		errors.Is(err, domain.ErrAlreadyStarted),
		errors.Is(err, domain.ErrSessionAlreadyActive),
		errors.Is(err, domain.ErrModeMismatch),
		errors.Is(err, domain.ErrInvalidQuiz):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
