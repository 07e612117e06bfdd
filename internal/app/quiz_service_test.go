package app_test

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
)

type fixture struct {
	service  *app.QuizService
	quizzes  *memory.QuizStore
	sessions *memory.SessionStore
	progress *memory.ProgressStore
	users    *memory.UserDirectory
	now      *time.Time
}

func newFixture(steps ...domain.Step) *fixture {
	if steps == nil {
		steps = sampleSteps()
	}
	now := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	f := &fixture{
		quizzes:  memory.NewQuizStore(domain.Quiz{ID: "Q1", Name: "Basics", Steps: []string{"S1", "S2"}}),
		progress: memory.NewProgressStore(),
		users:    memory.NewUserDirectory(),
		now:      &now,
	}
	clock := func() time.Time { return *f.now }
	f.sessions = memory.NewSessionStoreWithClock(clock)
	catalog := memory.NewStepCatalogWithRand(rand.New(rand.NewSource(7)), steps...)
	f.service = app.NewQuizService(catalog, f.quizzes, f.sessions, f.progress, f.users, app.WithClock(clock))
	return f
}

func sampleSteps() []domain.Step {
	return []domain.Step{
		{ID: "S1", Question: "capital of France", Mode: domain.ModeInput, CorrectAnswers: []string{"Paris"}},
		{ID: "S2", Question: "What is 15 divided by 3?", Mode: domain.ModeNumeric, CorrectAnswers: []string{"5"}},
	}
}

var alice = domain.User("u1", "alice@example.com")

func TestStartAndAnswerDurableQuiz(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	handle, err := f.service.StartSession(ctx, alice, "Q1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if handle.Kind != domain.SessionDurable || handle.QuizName != "Basics" || len(handle.Steps) != 2 {
		t.Fatalf("unexpected handle %+v", handle)
	}
	if got := f.users.History("u1"); len(got) != 1 || got[0] != handle.HistoryID {
		t.Fatalf("expected history reference %s, got %v", handle.HistoryID, got)
	}

	res, err := f.service.SubmitAnswer(ctx, alice, "Q1", domain.AnswerSubmission{StepID: "S1", Mode: domain.ModeInput, Answer: domain.Text("paris")})
	if err != nil {
		t.Fatalf("submit S1: %v", err)
	}
	if !res.IsCorrect || res.Score == nil || *res.Score != 1 {
		t.Fatalf("expected correct answer with score 1, got %+v", res)
	}

	res, err = f.service.SubmitAnswer(ctx, alice, "Q1", domain.AnswerSubmission{StepID: "S2", Mode: domain.ModeNumeric, Answer: domain.Text("five")})
	if err != nil {
		t.Fatalf("submit S2: %v", err)
	}
	if res.IsCorrect || *res.Score != 1 || !res.Completed {
		t.Fatalf("expected wrong answer, score 1, completed, got %+v", res)
	}

	session, err := f.service.HistoryForQuiz(ctx, alice, "Q1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(session.Progress) != 2 || !session.Completed || session.Score != 1 || session.LastStep != 1 {
		t.Fatalf("unexpected session %+v", session)
	}
	if session.Progress[1].Answer[0] != "five" || session.Progress[0].Question != "capital of France" {
		t.Fatalf("unexpected progress %+v", session.Progress)
	}

	// resubmitting an answered step is rejected and changes nothing
	_, err = f.service.SubmitAnswer(ctx, alice, "Q1", domain.AnswerSubmission{StepID: "S1", Mode: domain.ModeInput, Answer: domain.Text("Paris")})
	if !errors.Is(err, domain.ErrDuplicateAnswer) {
		t.Fatalf("expected duplicate answer, got %v", err)
	}
	after, _ := f.service.HistoryForQuiz(ctx, alice, "Q1")
	if after.Score != 1 || len(after.Progress) != 2 {
		t.Fatalf("duplicate mutated session: %+v", after)
	}
}

func TestStartSessionTwiceFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	if _, err := f.service.StartSession(ctx, alice, "Q1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.service.StartSession(ctx, alice, "Q1"); !errors.Is(err, domain.ErrAlreadyStarted) {
		t.Fatalf("expected already started, got %v", err)
	}
	if _, err := f.service.StartSession(ctx, alice, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.service.StartSession(ctx, domain.Anonymous("1.2.3.4"), "Q1"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestSubmitRequiresStartedSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.service.SubmitAnswer(ctx, alice, "Q1", domain.AnswerSubmission{StepID: "S1", Mode: domain.ModeInput, Answer: domain.Text("Paris")})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found without a durable session, got %v", err)
	}
}

func TestSubmitRejectsForeignStepAndModeMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(append(sampleSteps(), domain.Step{ID: "S3", Question: "?", Mode: domain.ModeInput, CorrectAnswers: []string{"x"}})...)
	if _, err := f.service.StartSession(ctx, alice, "Q1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	_, err := f.service.SubmitAnswer(ctx, alice, "Q1", domain.AnswerSubmission{StepID: "S3", Mode: domain.ModeInput, Answer: domain.Text("x")})
	if !errors.Is(err, domain.ErrInvalidStep) {
		t.Fatalf("expected invalid step, got %v", err)
	}

	_, err = f.service.SubmitAnswer(ctx, alice, "Q1", domain.AnswerSubmission{StepID: "S2", Mode: domain.ModeInput, Answer: domain.Text("5")})
	if !errors.Is(err, domain.ErrModeMismatch) {
		t.Fatalf("expected mode mismatch, got %v", err)
	}
	session, _ := f.service.HistoryForQuiz(ctx, alice, "Q1")
	if len(session.Progress) != 0 {
		t.Fatalf("mode mismatch must not record progress: %+v", session.Progress)
	}
}

func TestAnonymousSessionIsExclusivePerOrigin(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	anon := domain.Anonymous("1.2.3.4")

	handle, err := f.service.CreateSession(ctx, anon, 6)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if handle.Kind != domain.SessionEphemeral || handle.Key != "temp-quiz-1.2.3.4" {
		t.Fatalf("unexpected handle %+v", handle)
	}
	if len(handle.Steps) != 2 {
		t.Fatalf("expected the whole 2-step catalog, got %v", handle.Steps)
	}

	*f.now = f.now.Add(2 * time.Second)
	_, err = f.service.CreateSession(ctx, anon, 6)
	var active *domain.SessionActiveError
	if !errors.As(err, &active) || !errors.Is(err, domain.ErrSessionAlreadyActive) {
		t.Fatalf("expected session already active, got %v", err)
	}
	if active.Seconds() != 1798 {
		t.Fatalf("expected 1798 seconds remaining, got %d", active.Seconds())
	}

	if _, err := f.service.CreateSession(ctx, domain.Anonymous("5.6.7.8"), 6); err != nil {
		t.Fatalf("other origin should not collide: %v", err)
	}

	*f.now = f.now.Add(app.DefaultSessionTTL)
	if _, err := f.service.CreateSession(ctx, anon, 1); err != nil {
		t.Fatalf("create after expiry: %v", err)
	}
}

func TestAnonymousAnswerIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	anon := domain.Anonymous("1.2.3.4")

	handle, err := f.service.CreateSession(ctx, anon, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 2; i++ {
		res, err := f.service.SubmitAnswer(ctx, anon, handle.Key, domain.AnswerSubmission{StepID: "S1", Mode: domain.ModeInput, Answer: domain.Text("PARIS")})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if !res.IsCorrect || res.Score != nil {
			t.Fatalf("expected bare verdict, got %+v", res)
		}
	}

	_, err = f.service.SubmitAnswer(ctx, anon, handle.Key, domain.AnswerSubmission{StepID: "S9", Mode: domain.ModeInput, Answer: domain.Text("x")})
	if !errors.Is(err, domain.ErrInvalidStep) {
		t.Fatalf("expected invalid step, got %v", err)
	}

	*f.now = f.now.Add(app.DefaultSessionTTL)
	_, err = f.service.SubmitAnswer(ctx, anon, handle.Key, domain.AnswerSubmission{StepID: "S1", Mode: domain.ModeInput, Answer: domain.Text("Paris")})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
}

func TestAuthenticatedRandomQuiz(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	handle, err := f.service.CreateSession(ctx, alice, 40)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if handle.Kind != domain.SessionDurable || handle.HistoryID == "" {
		t.Fatalf("unexpected handle %+v", handle)
	}
	if !strings.HasPrefix(handle.QuizName, "Random Quiz alice@example.com: ") {
		t.Fatalf("unexpected quiz name %q", handle.QuizName)
	}

	quiz, err := f.quizzes.GetQuiz(ctx, handle.Key)
	if err != nil {
		t.Fatalf("quiz not persisted: %v", err)
	}
	mirrored, err := f.sessions.Get(ctx, handle.Key)
	if err != nil || len(mirrored) != len(quiz.Steps) {
		t.Fatalf("expected mirrored step list, got %v (%v)", mirrored, err)
	}
	if ttl, _ := f.sessions.TTL(ctx, handle.Key); ttl != app.DefaultSessionTTL {
		t.Fatalf("expected full ttl, got %v", ttl)
	}

	// the durable record keeps the quiz answerable after the mirror expires
	*f.now = f.now.Add(app.DefaultSessionTTL + time.Minute)
	for _, id := range handle.Steps {
		var sub domain.AnswerSubmission
		if id == "S1" {
			sub = domain.AnswerSubmission{StepID: id, Mode: domain.ModeInput, Answer: domain.Text("Paris")}
		} else {
			sub = domain.AnswerSubmission{StepID: id, Mode: domain.ModeNumeric, Answer: domain.Text("5")}
		}
		if _, err := f.service.SubmitAnswer(ctx, alice, handle.Key, sub); err != nil {
			t.Fatalf("submit %s: %v", id, err)
		}
	}

	history, err := f.service.History(ctx, alice)
	if err != nil || len(history) != 1 {
		t.Fatalf("expected one history entry, got %v (%v)", history, err)
	}
	if history[0].Score != 2 || !history[0].Completed {
		t.Fatalf("unexpected final session %+v", history[0])
	}
}

func TestCreateSessionEmptyCatalog(t *testing.T) {
	f := newFixture([]domain.Step{}...)
	_, err := f.service.CreateSession(context.Background(), domain.Anonymous("1.2.3.4"), 6)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on empty catalog, got %v", err)
	}
}

func TestConcurrentDuplicateSubmissionsAcceptOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	if _, err := f.service.StartSession(ctx, alice, "Q1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.SubmitAnswer(ctx, alice, "Q1", domain.AnswerSubmission{StepID: "S1", Mode: domain.ModeInput, Answer: domain.Text("Paris")})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			if !errors.Is(err, domain.ErrDuplicateAnswer) {
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Fatalf("expected exactly one accepted answer, got %d", accepted)
	}
	session, _ := f.service.HistoryForQuiz(ctx, alice, "Q1")
	if session.Score != 1 || len(session.Progress) != 1 {
		t.Fatalf("unexpected session after race %+v", session)
	}
}

func TestStorageFailuresAreTagged(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")
	service := app.NewQuizService(failingCatalog{err: boom}, memory.NewQuizStore(), memory.NewSessionStore(), memory.NewProgressStore(), memory.NewUserDirectory())

	_, err := service.CreateSession(ctx, domain.Anonymous("1.2.3.4"), 3)
	if !errors.Is(err, domain.ErrStorageUnavailable) || !errors.Is(err, boom) {
		t.Fatalf("expected storage unavailable wrapping cause, got %v", err)
	}
}

func TestStartSucceedsWhenHistoryLinkFails(t *testing.T) {
	ctx := context.Background()
	progress := memory.NewProgressStore()
	service := app.NewQuizService(
		memory.NewStepCatalog(sampleSteps()...),
		memory.NewQuizStore(domain.Quiz{ID: "Q1", Name: "Basics", Steps: []string{"S1", "S2"}}),
		memory.NewSessionStore(),
		progress,
		failingDirectory{err: errors.New("down")},
	)

	handle, err := service.StartSession(ctx, alice, "Q1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	stored, err := progress.FindOne(ctx, alice.UserID, "Q1")
	if err != nil || stored.ID != handle.HistoryID {
		t.Fatalf("expected stored session %s, got %+v (%v)", handle.HistoryID, stored, err)
	}
	if _, err := service.SubmitAnswer(ctx, alice, "Q1", domain.AnswerSubmission{StepID: "S1", Mode: domain.ModeInput, Answer: domain.Text("Paris")}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	history, err := service.History(ctx, alice)
	if err != nil || len(history) != 1 || history[0].Score != 1 {
		t.Fatalf("expected the session in history, got %v (%v)", history, err)
	}
}

func TestRandomQuizSucceedsWhenMirrorFails(t *testing.T) {
	ctx := context.Background()
	quizzes := memory.NewQuizStore()
	service := app.NewQuizService(
		memory.NewStepCatalog(sampleSteps()...),
		quizzes,
		failingMirror{SessionStore: memory.NewSessionStore(), err: errors.New("down")},
		memory.NewProgressStore(),
		memory.NewUserDirectory(),
	)

	handle, err := service.CreateSession(ctx, alice, 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if handle.Kind != domain.SessionDurable || handle.HistoryID == "" || len(handle.Steps) != 2 {
		t.Fatalf("unexpected handle %+v", handle)
	}
	if _, err := quizzes.GetQuiz(ctx, handle.Key); err != nil {
		t.Fatalf("quiz not persisted: %v", err)
	}

	// answers resolve through the stored quiz when there is no mirror
	sub := domain.AnswerSubmission{StepID: "S2", Mode: domain.ModeNumeric, Answer: domain.Text("5")}
	if result, err := service.SubmitAnswer(ctx, alice, handle.Key, sub); err != nil || !result.IsCorrect {
		t.Fatalf("submit: %+v (%v)", result, err)
	}
}

func TestGetStepHidesAnswers(t *testing.T) {
	f := newFixture()
	view, err := f.service.GetStep(context.Background(), "S1")
	if err != nil {
		t.Fatalf("get step: %v", err)
	}
	if view.Question != "capital of France" || view.Mode != domain.ModeInput {
		t.Fatalf("unexpected view %+v", view)
	}
	if _, err := f.service.GetStep(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type failingCatalog struct{ err error }

func (c failingCatalog) GetStep(context.Context, string) (domain.Step, error) {
	return domain.Step{}, c.err
}

func (c failingCatalog) SampleRandom(context.Context, int) ([]domain.Step, error) {
	return nil, c.err
}

type failingDirectory struct{ err error }

func (d failingDirectory) AppendHistory(context.Context, string, string) error {
	return d.err
}

type failingMirror struct {
	*memory.SessionStore
	err error
}

func (m failingMirror) Set(context.Context, string, []string, time.Duration) error {
	return m.err
}
