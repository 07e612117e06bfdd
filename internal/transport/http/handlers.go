package http

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/app"
)

// Handler exposes the quiz use cases over REST.
type Handler struct {
	service  *app.QuizService
	validate *validator.Validate
	log      logrus.FieldLogger
}

func NewHandler(service *app.QuizService, log logrus.FieldLogger) *Handler {
	return &Handler{service: service, validate: validator.New(), log: log}
}

// CreateRandom handles POST /api/quiz/random.
func (h *Handler) CreateRandom(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := IdentityFrom(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	handle, err := h.service.CreateSession(r.Context(), id, req.Size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, handle)
}

// Start handles POST /api/quiz/{id}/start.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	id, err := IdentityFrom(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	handle, err := h.service.StartSession(r.Context(), id, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, handle)
}

// Answer handles POST /api/quiz/{quizId}/step/{stepId}/answer and its
// /random variant.
func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req answerRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	sub, err := req.submission(h.validate, vars["stepId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := IdentityFrom(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	result, err := h.service.SubmitAnswer(r.Context(), id, vars["quizId"], sub)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Step handles GET /api/quiz/step/{id}.
func (h *Handler) Step(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetStep(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// History handles GET /api/user/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, err := IdentityFrom(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sessions, err := h.service.History(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// HistoryForQuiz handles GET /api/user/history/{id}.
func (h *Handler) HistoryForQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := IdentityFrom(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	session, err := h.service.HistoryForQuiz(r.Context(), id, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	entry := h.log.WithFields(logrus.Fields{"path": r.URL.Path, "error": err.Error()})
	if statusFor(err) >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	writeDomainError(w, err)
}

