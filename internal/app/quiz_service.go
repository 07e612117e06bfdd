package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/grading"
)

const (
	// DefaultSessionTTL is how long an ephemeral session lives.
	DefaultSessionTTL = 30 * time.Minute
	// DefaultQuizSize is used when the caller asks for no particular size.
	DefaultQuizSize = 6
	// MaxQuizSize caps the number of steps drawn for a random quiz.
	MaxQuizSize = 16

	anonymousKeyPrefix = "temp-quiz-"
	ephemeralQuizName  = "Temp Quiz"
)

// AnonymousKey is the ephemeral session key of an anonymous origin.
func AnonymousKey(origin string) string {
	return anonymousKeyPrefix + origin
}

// QuizService is the session orchestrator: it creates ephemeral and durable
// sessions and validates and records answers.
type QuizService struct {
	steps    StepCatalog
	quizzes  QuizStore
	sessions EphemeralStore
	progress ProgressStore
	users    UserDirectory

	ttl         time.Duration
	defaultSize int
	maxSize     int
	now         func() time.Time
	log         logrus.FieldLogger
	recorder    Recorder
}

// Option customizes a QuizService.
type Option func(*QuizService)

// WithClock replaces time.Now, for deterministic timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *QuizService) { s.log = log }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *QuizService) { s.recorder = r }
}

// WithSessionTTL overrides the ephemeral session lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *QuizService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSizes overrides the default and maximum random quiz sizes.
func WithSizes(defaultSize, maxSize int) Option {
	return func(s *QuizService) {
		if maxSize > 0 {
			s.maxSize = maxSize
		}
		if defaultSize > 0 {
			s.defaultSize = defaultSize
		}
	}
}

func NewQuizService(steps StepCatalog, quizzes QuizStore, sessions EphemeralStore, progress ProgressStore, users UserDirectory, opts ...Option) *QuizService {
	s := &QuizService{
		steps:       steps,
		quizzes:     quizzes,
		sessions:    sessions,
		progress:    progress,
		users:       users,
		ttl:         DefaultSessionTTL,
		defaultSize: DefaultQuizSize,
		maxSize:     MaxQuizSize,
		now:         time.Now,
		log:         logrus.StandardLogger(),
		recorder:    nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession draws a random quiz. Anonymous callers get an ephemeral
// session keyed by origin; users get a persisted quiz plus a durable session
// whose step list is mirrored into the ephemeral store.
func (s *QuizService) CreateSession(ctx context.Context, id domain.Identity, requestedSize int) (domain.SessionHandle, error) {
	size := s.clampSize(requestedSize)
	if id.Authenticated() {
		return s.createDurable(ctx, id, size)
	}
	return s.createEphemeral(ctx, id, size)
}

func (s *QuizService) createEphemeral(ctx context.Context, id domain.Identity, size int) (domain.SessionHandle, error) {
	if id.Origin == "" {
		return domain.SessionHandle{}, fmt.Errorf("%w: anonymous caller without origin", domain.ErrUnauthenticated)
	}
	key := AnonymousKey(id.Origin)

	if _, err := s.sessions.Get(ctx, key); err == nil {
		return domain.SessionHandle{}, s.activeError(ctx, key)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.SessionHandle{}, storageErr("read session", err)
	}

	ids, err := s.sample(ctx, size)
	if err != nil {
		return domain.SessionHandle{}, err
	}

	stored, err := s.sessions.SetIfAbsent(ctx, key, ids, s.ttl)
	if err != nil {
		return domain.SessionHandle{}, storageErr("store session", err)
	}
	if !stored {
		return domain.SessionHandle{}, s.activeError(ctx, key)
	}

	s.log.WithFields(logrus.Fields{"origin": id.Origin, "steps": len(ids), "kind": domain.SessionEphemeral}).Info("anonymous session created")
	s.recorder.SessionCreated(domain.SessionEphemeral)
	return domain.SessionHandle{
		Kind:     domain.SessionEphemeral,
		Key:      key,
		QuizName: ephemeralQuizName,
		Steps:    ids,
	}, nil
}

func (s *QuizService) createDurable(ctx context.Context, id domain.Identity, size int) (domain.SessionHandle, error) {
	ids, err := s.sample(ctx, size)
	if err != nil {
		return domain.SessionHandle{}, err
	}

	now := s.now()
	quiz := domain.Quiz{
		Name:      fmt.Sprintf("Random Quiz %s: %d", id.Label(), now.UnixMilli()),
		Steps:     ids,
		CreatedAt: now,
	}
	if err := quiz.Validate(); err != nil {
		return domain.SessionHandle{}, err
	}
	quiz, err = s.quizzes.CreateQuiz(ctx, quiz)
	if err != nil {
		return domain.SessionHandle{}, storageErr("create quiz", err)
	}

	session, err := s.open(ctx, id, quiz)
	if err != nil {
		return domain.SessionHandle{}, err
	}

	// The mirror only speeds up answer lookups; SubmitAnswer falls back to
	// the stored quiz, so the saved session is still handed back.
	if err := s.sessions.Set(ctx, quiz.ID, quiz.Steps, s.ttl); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"user_id": id.UserID, "quiz_id": quiz.ID}).Warn("mirror session failed")
	}

	s.log.WithFields(logrus.Fields{"user_id": id.UserID, "quiz_id": quiz.ID, "steps": len(ids), "kind": domain.SessionDurable}).Info("random quiz created")
	s.recorder.SessionCreated(domain.SessionDurable)
	return domain.SessionHandle{
		Kind:      domain.SessionDurable,
		Key:       quiz.ID,
		QuizName:  quiz.Name,
		Steps:     quiz.Steps,
		HistoryID: session.ID,
	}, nil
}

// StartSession opens a durable session for an existing quiz.
func (s *QuizService) StartSession(ctx context.Context, id domain.Identity, quizID string) (domain.SessionHandle, error) {
	if !id.Authenticated() {
		return domain.SessionHandle{}, domain.ErrUnauthenticated
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.SessionHandle{}, storageErr("load quiz", err)
	}

	if _, err := s.progress.FindOne(ctx, id.UserID, quiz.ID); err == nil {
		return domain.SessionHandle{}, domain.ErrAlreadyStarted
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.SessionHandle{}, storageErr("load session", err)
	}

	session, err := s.open(ctx, id, quiz)
	if err != nil {
		return domain.SessionHandle{}, err
	}

	s.log.WithFields(logrus.Fields{"user_id": id.UserID, "quiz_id": quiz.ID}).Info("quiz started")
	s.recorder.SessionCreated(domain.SessionDurable)
	return domain.SessionHandle{
		Kind:      domain.SessionDurable,
		Key:       quiz.ID,
		QuizName:  quiz.Name,
		Steps:     quiz.Steps,
		HistoryID: session.ID,
	}, nil
}

// open creates the durable session and links it into the user's history.
// Once the session is stored it is returned even if the link fails: History
// reads the progress store, and a failed start must not turn into
// AlreadyStarted on retry without ever handing out the session.
func (s *QuizService) open(ctx context.Context, id domain.Identity, quiz domain.Quiz) (domain.Session, error) {
	session, err := s.progress.Create(ctx, domain.NewSession(id.UserID, quiz, s.now()))
	if err != nil {
		return domain.Session{}, storageErr("create session", err)
	}
	if err := s.users.AppendHistory(ctx, id.UserID, session.ID); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"user_id": id.UserID, "quiz_id": quiz.ID}).Warn("link history failed")
	}
	return session, nil
}

// SubmitAnswer validates an answer for a step of the session identified by
// sessionKey. Users get the answer recorded in their durable session;
// anonymous callers only get the verdict.
func (s *QuizService) SubmitAnswer(ctx context.Context, id domain.Identity, sessionKey string, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	sequence, err := s.resolveSequence(ctx, id, sessionKey)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if !contains(sequence, sub.StepID) {
		return domain.AnswerResult{}, domain.ErrInvalidStep
	}

	step, err := s.steps.GetStep(ctx, sub.StepID)
	if err != nil {
		return domain.AnswerResult{}, storageErr("load step", err)
	}

	if id.Authenticated() {
		return s.recordDurable(ctx, id, sessionKey, sequence, step, sub)
	}

	correct, err := grading.ValidateStep(step, sub.Mode, sub.Answer)
	if err != nil {
		return domain.AnswerResult{}, s.gradingErr(step, err)
	}
	s.recorder.AnswerRecorded(step.Mode, correct)
	return domain.AnswerResult{StepID: step.ID, IsCorrect: correct}, nil
}

func (s *QuizService) recordDurable(ctx context.Context, id domain.Identity, quizID string, sequence []string, step domain.Step, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	session, err := s.progress.FindOne(ctx, id.UserID, quizID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.AnswerResult{}, fmt.Errorf("%w: quiz not found in user's history", domain.ErrNotFound)
	}
	if err != nil {
		return domain.AnswerResult{}, storageErr("load session", err)
	}
	if session.Answered(step.ID) {
		return domain.AnswerResult{}, domain.ErrDuplicateAnswer
	}

	correct, err := grading.ValidateStep(step, sub.Mode, sub.Answer)
	if err != nil {
		return domain.AnswerResult{}, s.gradingErr(step, err)
	}
	if err := session.Record(sequence, step, sub.Answer, correct, s.now()); err != nil {
		return domain.AnswerResult{}, err
	}

	if err := s.progress.Save(ctx, session); err != nil {
		if errors.Is(err, domain.ErrConcurrentUpdate) {
			return domain.AnswerResult{}, s.classifyConflict(ctx, id.UserID, quizID, step.ID)
		}
		return domain.AnswerResult{}, storageErr("save session", err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id": id.UserID,
		"quiz_id": quizID,
		"step_id": step.ID,
		"correct": correct,
	}).Debug("answer recorded")
	s.recorder.AnswerRecorded(step.Mode, correct)

	score := session.Score
	return domain.AnswerResult{
		StepID:    step.ID,
		IsCorrect: correct,
		Score:     &score,
		Completed: session.Completed,
	}, nil
}

// classifyConflict tells a lost duplicate race apart from an unrelated
// concurrent write. The write itself is not retried.
func (s *QuizService) classifyConflict(ctx context.Context, userID, quizID, stepID string) error {
	current, err := s.progress.FindOne(ctx, userID, quizID)
	if err == nil && current.Answered(stepID) {
		return domain.ErrDuplicateAnswer
	}
	return domain.ErrConcurrentUpdate
}

// resolveSequence reads the step list from the ephemeral store. Users fall
// back to the quiz record once the mirror has expired.
func (s *QuizService) resolveSequence(ctx context.Context, id domain.Identity, key string) ([]string, error) {
	steps, err := s.sessions.Get(ctx, key)
	if err == nil {
		return steps, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, storageErr("read session", err)
	}
	if !id.Authenticated() {
		return nil, fmt.Errorf("%w: quiz not found or expired", domain.ErrNotFound)
	}

	quiz, err := s.quizzes.GetQuiz(ctx, key)
	if err != nil {
		return nil, storageErr("load quiz", err)
	}
	return quiz.Steps, nil
}

// GetStep returns the public view of a step.
func (s *QuizService) GetStep(ctx context.Context, stepID string) (domain.StepView, error) {
	step, err := s.steps.GetStep(ctx, stepID)
	if err != nil {
		return domain.StepView{}, storageErr("load step", err)
	}
	return step.View(), nil
}

// History lists every durable session of the user.
func (s *QuizService) History(ctx context.Context, id domain.Identity) ([]domain.Session, error) {
	if !id.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	sessions, err := s.progress.ListByUser(ctx, id.UserID)
	if err != nil {
		return nil, storageErr("list sessions", err)
	}
	return sessions, nil
}

// HistoryForQuiz returns the user's durable session for one quiz.
func (s *QuizService) HistoryForQuiz(ctx context.Context, id domain.Identity, quizID string) (domain.Session, error) {
	if !id.Authenticated() {
		return domain.Session{}, domain.ErrUnauthenticated
	}
	session, err := s.progress.FindOne(ctx, id.UserID, quizID)
	if err != nil {
		return domain.Session{}, storageErr("load session", err)
	}
	return session, nil
}

func (s *QuizService) sample(ctx context.Context, size int) ([]string, error) {
	steps, err := s.steps.SampleRandom(ctx, size)
	if err != nil {
		return nil, storageErr("sample steps", err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: step catalog is empty", domain.ErrNotFound)
	}
	ids := make([]string, 0, len(steps))
	for _, step := range steps {
		ids = append(ids, step.ID)
	}
	return ids, nil
}

func (s *QuizService) activeError(ctx context.Context, key string) error {
	remaining, err := s.sessions.TTL(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return storageErr("read session ttl", err)
	}
	return &domain.SessionActiveError{Remaining: remaining}
}

func (s *QuizService) clampSize(requested int) int {
	if requested <= 0 {
		requested = s.defaultSize
	}
	if requested > s.maxSize {
		requested = s.maxSize
	}
	return requested
}

func (s *QuizService) gradingErr(step domain.Step, err error) error {
	if errors.Is(err, domain.ErrUnsupportedMode) {
		s.log.WithFields(logrus.Fields{"step_id": step.ID, "mode": step.Mode}).Error("step stored with unsupported mode")
	}
	return err
}

// storageErr passes domain errors through and tags everything else as a
// storage failure.
func storageErr(op string, err error) error {
	if err == nil || domain.IsDomainError(err) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
