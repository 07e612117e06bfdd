package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-session-service/internal/domain"
)

// StepSource is the backing catalog a StepCache reads through to.
type StepSource interface {
	GetStep(ctx context.Context, id string) (domain.Step, error)
	SampleRandom(ctx context.Context, n int) ([]domain.Step, error)
}

// StepCache caches steps with TTL to avoid repeated DB hits. Steps are
// immutable, so entries only expire to bound memory.
type StepCache struct {
	source StepSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedStep
}

type cachedStep struct {
	step      domain.Step
	expiresAt time.Time
}

func NewStepCache(source StepSource, ttl time.Duration) *StepCache {
	return &StepCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedStep),
	}
}

func (c *StepCache) GetStep(ctx context.Context, id string) (domain.Step, error) {
	if step, ok := c.lookup(id); ok {
		return step, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		if step, ok := c.lookup(id); ok {
			return step, nil
		}
		step, err := c.source.GetStep(ctx, id)
		if err != nil {
			return domain.Step{}, err
		}
		c.store(step)
		return step, nil
	})
	if err != nil {
		return domain.Step{}, err
	}
	return result.(domain.Step), nil
}

// SampleRandom always asks the source and warms the cache with the result.
func (c *StepCache) SampleRandom(ctx context.Context, n int) ([]domain.Step, error) {
	steps, err := c.source.SampleRandom(ctx, n)
	if err != nil {
		return nil, err
	}
	for _, step := range steps {
		c.store(step)
	}
	return steps, nil
}

func (c *StepCache) lookup(id string) (domain.Step, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[id]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Step{}, false
	}
	return entry.step, true
}

func (c *StepCache) store(step domain.Step) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[step.ID] = cachedStep{
		step:      step,
		expiresAt: c.clock().Add(c.ttlWithJitterLocked()),
	}
}

func (c *StepCache) ttlWithJitterLocked() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
