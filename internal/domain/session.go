package domain

import (
	"fmt"
	"time"
)

// ProgressEntry is one answered step of a durable session.
type ProgressEntry struct {
	StepID    string   `json:"step" bson:"step"`
	Answer    []string `json:"answer" bson:"answer"`
	Question  string   `json:"question" bson:"question"`
	IsCorrect bool     `json:"isCorrect" bson:"isCorrect"`
}

// Session is the durable progress record of one user through one quiz.
// Version increases by one on every accepted write and backs optimistic
// concurrency in the stores.
type Session struct {
	ID        string          `json:"_id" bson:"_id"`
	UserID    string          `json:"user" bson:"user"`
	QuizID    string          `json:"quiz" bson:"quiz"`
	QuizName  string          `json:"quizName" bson:"quizName"`
	Score     int             `json:"score" bson:"score"`
	Progress  []ProgressEntry `json:"progress" bson:"progress"`
	Completed bool            `json:"completed" bson:"completed"`
	LastStep  int             `json:"lastStep" bson:"lastStep"`
	Version   int             `json:"-" bson:"version"`
	CreatedAt time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// NewSession returns an empty durable session for (user, quiz).
func NewSession(userID string, quiz Quiz, now time.Time) Session {
	return Session{
		UserID:    userID,
		QuizID:    quiz.ID,
		QuizName:  quiz.Name,
		Progress:  []ProgressEntry{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Answered reports whether stepID already has a progress entry.
func (s *Session) Answered(stepID string) bool {
	for _, entry := range s.Progress {
		if entry.StepID == stepID {
			return true
		}
	}
	return false
}

// Record appends the verdict for step to the session. sequence is the quiz's
// ordered step list. Score, LastStep and Completed are updated together.
func (s *Session) Record(sequence []string, step Step, answer Answer, correct bool, now time.Time) error {
	pos := indexOf(sequence, step.ID)
	if pos < 0 {
		return ErrInvalidStep
	}
	if s.Answered(step.ID) {
		return ErrDuplicateAnswer
	}
	if len(s.Progress) >= len(sequence) {
		return fmt.Errorf("%w: session already holds %d answers", ErrInvalidStep, len(s.Progress))
	}

	values := append([]string(nil), answer.Values...)
	if values == nil {
		values = []string{}
	}
	s.Progress = append(s.Progress, ProgressEntry{
		StepID:    step.ID,
		Answer:    values,
		Question:  step.Question,
		IsCorrect: correct,
	})
	if correct {
		s.Score++
	}
	s.LastStep = pos
	if len(s.Progress) == len(sequence) {
		s.Completed = true
	}
	s.UpdatedAt = now
	return nil
}

// SessionKind tags which store backs a session handle.
type SessionKind string

const (
	SessionEphemeral SessionKind = "ephemeral"
	SessionDurable   SessionKind = "durable"
)

// SessionHandle is what CreateSession and StartSession hand back to callers.
// Ephemeral handles carry only the cache key and step list; durable handles
// also reference the quiz and the progress record.
type SessionHandle struct {
	Kind      SessionKind `json:"kind"`
	Key       string      `json:"_id"`
	QuizName  string      `json:"name"`
	Steps     []string    `json:"steps"`
	HistoryID string      `json:"history,omitempty"`
}

// AnswerResult is the verdict returned to the client. The correct answer is
// never part of it.
type AnswerResult struct {
	StepID    string `json:"stepId"`
	IsCorrect bool   `json:"isCorrect"`
	Score     *int   `json:"score,omitempty"`
	Completed bool   `json:"completed,omitempty"`
}

// AnswerSubmission is one client answer for a step.
type AnswerSubmission struct {
	StepID string
	Mode   Mode
	Answer Answer
}
