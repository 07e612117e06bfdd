package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"quiz-session-service/internal/domain"
)

// StepCatalog is a step catalog backed by an in-memory slice (useful for tests/demos).
type StepCatalog struct {
	mu    sync.RWMutex
	order []string
	steps map[string]domain.Step
	rnd   *rand.Rand
}

func NewStepCatalog(steps ...domain.Step) *StepCatalog {
	return NewStepCatalogWithRand(rand.New(rand.NewSource(time.Now().UnixNano())), steps...)
}

// NewStepCatalogWithRand allows deterministic sampling in tests.
func NewStepCatalogWithRand(rnd *rand.Rand, steps ...domain.Step) *StepCatalog {
	c := &StepCatalog{steps: make(map[string]domain.Step), rnd: rnd}
	for _, step := range steps {
		c.Add(step)
	}
	return c
}

// Add inserts or replaces a step.
func (c *StepCatalog) Add(step domain.Step) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.steps[step.ID]; !ok {
		c.order = append(c.order, step.ID)
	}
	c.steps[step.ID] = step
}

// InsertSteps adds or replaces every step.
func (c *StepCatalog) InsertSteps(_ context.Context, steps []domain.Step) error {
	for _, step := range steps {
		c.Add(step)
	}
	return nil
}

func (c *StepCatalog) GetStep(_ context.Context, id string) (domain.Step, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	step, ok := c.steps[id]
	if !ok {
		return domain.Step{}, fmt.Errorf("%w: step %s", domain.ErrNotFound, id)
	}
	return step, nil
}

// SampleRandom returns up to n distinct steps in random order.
func (c *StepCatalog) SampleRandom(_ context.Context, n int) ([]domain.Step, error) {
	// rand.Rand is not safe for concurrent use, so sampling takes the write lock.
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 || len(c.order) == 0 {
		return []domain.Step{}, nil
	}
	if n > len(c.order) {
		n = len(c.order)
	}
	ids := append([]string(nil), c.order...)
	c.rnd.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	out := make([]domain.Step, 0, n)
	for _, id := range ids[:n] {
		out = append(out, c.steps[id])
	}
	return out, nil
}
