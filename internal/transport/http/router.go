package http

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/metrics"
)

// RouterDeps holds what NewRouter wires together. Metrics is optional.
type RouterDeps struct {
	Service  *app.QuizService
	Identity *IdentityResolver
	Metrics  *metrics.Metrics
	Logger   logrus.FieldLogger
}

// NewRouter builds the service router.
func NewRouter(d RouterDeps) http.Handler {
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	handler := NewHandler(d.Service, d.Logger)
	ws := NewWSHandler(d.Service, d.Logger)

	r := mux.NewRouter()
	r.Use(requestLogger(d.Logger), instrument(d.Metrics))

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(d.Identity.Middleware)
	api.HandleFunc("/quiz/random", handler.CreateRandom).Methods(http.MethodPost)
	api.HandleFunc("/quiz/random/{quizId}/step/{stepId}/answer", handler.Answer).Methods(http.MethodPost)
	api.HandleFunc("/quiz/step/{id}", handler.Step).Methods(http.MethodGet)
	api.HandleFunc("/quiz/{id}/start", handler.Start).Methods(http.MethodPost)
	api.HandleFunc("/quiz/{quizId}/step/{stepId}/answer", handler.Answer).Methods(http.MethodPost)
	api.HandleFunc("/user/history", handler.History).Methods(http.MethodGet)
	api.HandleFunc("/user/history/{id}", handler.HistoryForQuiz).Methods(http.MethodGet)

	wsRouter := r.PathPrefix("/ws").Subrouter()
	wsRouter.Use(d.Identity.Middleware)
	wsRouter.HandleFunc("/quiz/{quizId}", ws.ServeWS).Methods(http.MethodGet)
	return r
}

func requestLogger(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
			}).Info("http request")
		})
	}
}

func instrument(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			m.Observe(route, r.Method, rec.status, time.Since(start))
		})
	}
}

// statusRecorder captures the response status. It forwards Hijack so
// websocket upgrades keep working behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}
