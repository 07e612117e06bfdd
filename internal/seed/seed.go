// Package seed holds the demo step catalog and the quizzes built from it.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"quiz-session-service/internal/domain"
)

//go:embed steps.yaml
var stepsYAML []byte

const slicedQuizSize = 8

type stepRecord struct {
	ID       string   `yaml:"id"`
	Question string   `yaml:"question"`
	Mode     string   `yaml:"mode"`
	Options  []string `yaml:"options"`
	Correct  []string `yaml:"correct"`
}

// StepWriter upserts steps into a catalog backend.
type StepWriter interface {
	InsertSteps(ctx context.Context, steps []domain.Step) error
}

// QuizWriter creates quizzes.
type QuizWriter interface {
	CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
}

// Steps parses the embedded catalog.
func Steps() ([]domain.Step, error) {
	var records []stepRecord
	if err := yaml.Unmarshal(stepsYAML, &records); err != nil {
		return nil, fmt.Errorf("parse seed steps: %w", err)
	}
	steps := make([]domain.Step, 0, len(records))
	for _, r := range records {
		mode := domain.Mode(r.Mode)
		if !mode.Valid() {
			return nil, fmt.Errorf("seed step %s: %w: %q", r.ID, domain.ErrUnsupportedMode, r.Mode)
		}
		steps = append(steps, domain.Step{
			ID:             r.ID,
			Question:       r.Question,
			Mode:           mode,
			Options:        r.Options,
			CorrectAnswers: r.Correct,
		})
	}
	return steps, nil
}

// Quizzes returns a quiz over every step plus two random slices drawn with rnd.
func Quizzes(steps []domain.Step, rnd *rand.Rand, now time.Time) []domain.Quiz {
	ids := make([]string, 0, len(steps))
	for _, s := range steps {
		ids = append(ids, s.ID)
	}
	quizzes := []domain.Quiz{{ID: "quiz-full", Name: "Full General Knowledge Quiz", Steps: ids, CreatedAt: now}}
	for i := 1; i <= 2; i++ {
		quizzes = append(quizzes, domain.Quiz{
			ID:        fmt.Sprintf("quiz-slice-%d", i),
			Name:      fmt.Sprintf("Sliced Quiz %d", i),
			Steps:     randomSlice(ids, slicedQuizSize, rnd),
			CreatedAt: now,
		})
	}
	return quizzes
}

// Run writes the demo catalog and quizzes. Quizzes that already exist are
// left alone, so seeding twice is harmless.
func Run(ctx context.Context, steps StepWriter, quizzes QuizWriter, log logrus.FieldLogger) error {
	catalog, err := Steps()
	if err != nil {
		return err
	}
	if err := steps.InsertSteps(ctx, catalog); err != nil {
		return err
	}
	log.WithField("steps", len(catalog)).Info("seeded steps")

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	for _, quiz := range Quizzes(catalog, rnd, time.Now().UTC()) {
		if _, err := quizzes.CreateQuiz(ctx, quiz); err != nil {
			if errors.Is(err, domain.ErrInvalidQuiz) {
				log.WithField("quiz_id", quiz.ID).WithError(err).Warn("skipping quiz")
				continue
			}
			return err
		}
		log.WithFields(logrus.Fields{"quiz_id": quiz.ID, "steps": len(quiz.Steps)}).Info("seeded quiz")
	}
	return nil
}

func randomSlice(ids []string, n int, rnd *rand.Rand) []string {
	shuffled := append([]string(nil), ids...)
	rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}
