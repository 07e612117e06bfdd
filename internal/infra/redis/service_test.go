package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/memory"
)

func TestAnonymousSessionLifecycleOnRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := newClient(mr)
	catalog := memory.NewStepCatalog(sampleStep())
	service := app.NewQuizService(
		NewStepCache(client, catalog, time.Minute),
		memory.NewQuizStore(),
		NewSessionStore(client),
		memory.NewProgressStore(),
		memory.NewUserDirectory(),
	)
	anon := domain.Anonymous("1.2.3.4")

	handle, err := service.CreateSession(ctx, anon, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if handle.Key != "temp-quiz-1.2.3.4" || len(handle.Steps) != 1 {
		t.Fatalf("unexpected handle %+v", handle)
	}

	_, err = service.CreateSession(ctx, anon, 0)
	var active *domain.SessionActiveError
	if !errors.As(err, &active) || active.Seconds() != 1800 {
		t.Fatalf("expected 1800 seconds remaining, got %v", err)
	}

	res, err := service.SubmitAnswer(ctx, anon, handle.Key, domain.AnswerSubmission{
		StepID: handle.Steps[0], Mode: sampleStep().Mode, Answer: domain.Text(sampleStep().CorrectAnswers[0]),
	})
	if err != nil || !res.IsCorrect {
		t.Fatalf("expected correct verdict, got %+v, %v", res, err)
	}

	mr.FastForward(1801 * time.Second)
	if _, err := service.SubmitAnswer(ctx, anon, handle.Key, domain.AnswerSubmission{
		StepID: handle.Steps[0], Mode: sampleStep().Mode, Answer: domain.Text("x"),
	}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after expiry, got %v", err)
	}
	if _, err := service.CreateSession(ctx, anon, 0); err != nil {
		t.Fatalf("create after expiry: %v", err)
	}
}
