package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// WSHandler streams answers for one quiz session over a websocket.
type WSHandler struct {
	service  *app.QuizService
	validate *validator.Validate
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, log logrus.FieldLogger) *WSHandler {
	return &WSHandler{
		service:  service,
		validate: validator.New(),
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type wsAnswerPayload struct {
	StepID string `json:"stepId"`
	answerRequest
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type wsError struct {
	Status int `json:"status"`
	errorBody
}

type joinedPayload struct {
	QuizID string `json:"quizId"`
	Kind   string `json:"kind"`
}

// ServeWS upgrades GET /ws/quiz/{quizId}. Each "answer" message is handled
// like a REST answer submission for that quiz and answered in order.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := mux.Vars(r)["quizId"]
	id, err := IdentityFrom(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	log := h.log.WithFields(logrus.Fields{"quiz_id": quizID, "user_id": id.UserID, "origin": id.Origin})

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	out := newOutbox(conn.WriteJSON, 16, func(err error) {
		log.WithError(err).Debug("ws write failed")
		_ = conn.Close()
	})
	defer out.close()

	kind := "ephemeral"
	if id.Authenticated() {
		kind = "durable"
	}
	if !out.push(outboundMessage[any]{Type: "joined", Payload: joinedPayload{QuizID: quizID, Kind: kind}}) {
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		var reply outboundMessage[any]
		switch inbound.Type {
		case "answer":
			reply = h.answer(r, id, quizID, inbound.Payload)
		default:
			reply = outboundMessage[any]{Type: "error", Payload: wsError{
				Status:    http.StatusBadRequest,
				errorBody: errorBody{Message: "unsupported message type"},
			}}
		}
		if !out.push(reply) {
			return
		}
	}
}

func (h *WSHandler) answer(r *http.Request, id domain.Identity, quizID string, raw json.RawMessage) outboundMessage[any] {
	var payload wsAnswerPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return errorMessage(errBadRequest)
	}
	sub, err := payload.submission(h.validate, payload.StepID)
	if err != nil {
		return errorMessage(err)
	}
	result, err := h.service.SubmitAnswer(r.Context(), id, quizID, sub)
	if err != nil {
		return errorMessage(err)
	}
	return outboundMessage[any]{Type: "answerResult", Payload: result}
}

// outbox owns the only goroutine that writes to a connection. After a write
// fails it stops accepting messages instead of blocking the reader.
type outbox struct {
	send chan outboundMessage[any]
	done chan struct{}
}

func newOutbox(write func(v interface{}) error, size int, onError func(error)) *outbox {
	o := &outbox{send: make(chan outboundMessage[any], size), done: make(chan struct{})}
	go func() {
		defer close(o.done)
		for msg := range o.send {
			if err := write(msg); err != nil {
				onError(err)
				return
			}
		}
	}()
	return o
}

// push queues msg and reports false once the writer has stopped.
func (o *outbox) push(msg outboundMessage[any]) bool {
	select {
	case <-o.done:
		return false
	default:
	}
	select {
	case o.send <- msg:
		return true
	case <-o.done:
		return false
	}
}

// close flushes queued messages and waits for the writer to exit.
func (o *outbox) close() {
	close(o.send)
	<-o.done
}

func errorMessage(err error) outboundMessage[any] {
	status := statusFor(err)
	body := errorBody{Message: err.Error()}
	if status >= http.StatusInternalServerError {
		body.Message = http.StatusText(status)
	}
	return outboundMessage[any]{Type: "error", Payload: wsError{Status: status, errorBody: body}}
}
