package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-session-service/internal/domain"
)

const stepColumns = `id, question, mode, options, correct_answers`

// StepCatalog reads steps from Postgres.
type StepCatalog struct {
	pool *pgxpool.Pool
}

func NewStepCatalog(pool *pgxpool.Pool) *StepCatalog {
	return &StepCatalog{pool: pool}
}

func (c *StepCatalog) GetStep(ctx context.Context, id string) (domain.Step, error) {
	row := c.pool.QueryRow(ctx, `SELECT `+stepColumns+` FROM steps WHERE id=$1`, id)
	step, err := scanStep(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Step{}, fmt.Errorf("%w: step %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Step{}, fmt.Errorf("load step: %w", err)
	}
	return step, nil
}

// SampleRandom lets Postgres pick n distinct rows.
func (c *StepCatalog) SampleRandom(ctx context.Context, n int) ([]domain.Step, error) {
	if n <= 0 {
		return []domain.Step{}, nil
	}
	rows, err := c.pool.Query(ctx, `SELECT `+stepColumns+` FROM steps ORDER BY random() LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("sample steps: %w", err)
	}
	defer rows.Close()

	steps := make([]domain.Step, 0, n)
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("sample steps: %w", err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sample steps: %w", err)
	}
	return steps, nil
}

// InsertSteps upserts steps by id.
func (c *StepCatalog) InsertSteps(ctx context.Context, steps []domain.Step) error {
	batch := &pgx.Batch{}
	for _, step := range steps {
		options, err := json.Marshal(nonNil(step.Options))
		if err != nil {
			return fmt.Errorf("marshal options: %w", err)
		}
		correct, err := json.Marshal(nonNil(step.CorrectAnswers))
		if err != nil {
			return fmt.Errorf("marshal answers: %w", err)
		}
		batch.Queue(`INSERT INTO steps (`+stepColumns+`) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET question = EXCLUDED.question, mode = EXCLUDED.mode,
options = EXCLUDED.options, correct_answers = EXCLUDED.correct_answers`,
			step.ID, step.Question, string(step.Mode), options, correct)
	}
	results := c.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range steps {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert step: %w", err)
		}
	}
	return nil
}

func scanStep(row pgx.Row) (domain.Step, error) {
	var (
		step             domain.Step
		mode             string
		options, correct []byte
	)
	if err := row.Scan(&step.ID, &step.Question, &mode, &options, &correct); err != nil {
		return domain.Step{}, err
	}
	step.Mode = domain.Mode(mode)
	if err := json.Unmarshal(options, &step.Options); err != nil {
		return domain.Step{}, fmt.Errorf("unmarshal options: %w", err)
	}
	if err := json.Unmarshal(correct, &step.CorrectAnswers); err != nil {
		return domain.Step{}, fmt.Errorf("unmarshal answers: %w", err)
	}
	if len(step.Options) == 0 {
		step.Options = nil
	}
	return step, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
