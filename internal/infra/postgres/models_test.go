package postgres

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"quiz-session-service/internal/domain"
)

func TestHistoryRowRoundTrip(t *testing.T) {
	now := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	session := domain.NewSession("u1", domain.Quiz{ID: "q1", Name: "Basics", Steps: []string{"s1"}}, now)
	session.ID = "h1"
	session.Version = 3
	if err := session.Record([]string{"s1"}, domain.Step{ID: "s1", Question: "2+2?"}, domain.Text("4"), true, now); err != nil {
		t.Fatalf("record: %v", err)
	}

	got := newHistoryRow(session).toDomain()
	if !reflect.DeepEqual(got, session) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, session)
	}
}

func TestHistoryRowNeverStoresNullProgress(t *testing.T) {
	row := newHistoryRow(domain.Session{ID: "h1"})
	if row.Progress == nil {
		t.Fatalf("expected empty progress slice")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if isUniqueViolation(errors.New("boom")) {
		t.Fatalf("plain error is not a unique violation")
	}
	if isUniqueViolation(fmt.Errorf("wrapped: %w", errors.New("23505"))) {
		t.Fatalf("message text alone must not match")
	}
}
