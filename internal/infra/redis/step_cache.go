package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"quiz-session-service/internal/domain"
)

// StepSource fetches steps from the backing store (e.g., document DB).
type StepSource interface {
	GetStep(ctx context.Context, id string) (domain.Step, error)
	SampleRandom(ctx context.Context, n int) ([]domain.Step, error)
}

// StepCache caches steps in Redis and falls back to the source on a miss.
// Steps are stored as: SET quiz:step:{stepID} {json} EX ttl
type StepCache struct {
	client *redis.Client
	source StepSource
	ttl    time.Duration
	sf     singleflight.Group
	log    logrus.FieldLogger

	mu  sync.Mutex
	rnd *rand.Rand
}

// StepCacheOption configures a StepCache.
type StepCacheOption func(*StepCache)

// WithCacheLogger sets where cache outages are reported.
func WithCacheLogger(log logrus.FieldLogger) StepCacheOption {
	return func(c *StepCache) {
		if log != nil {
			c.log = log
		}
	}
}

// cachedStep keeps the correct answers, which domain.Step hides from JSON.
type cachedStep struct {
	ID             string      `json:"id"`
	Question       string      `json:"question"`
	Mode           domain.Mode `json:"mode"`
	Options        []string    `json:"options,omitempty"`
	CorrectAnswers []string    `json:"correctAnswers"`
}

func NewStepCache(client *redis.Client, source StepSource, ttl time.Duration, opts ...StepCacheOption) *StepCache {
	c := &StepCache{
		client: client,
		source: source,
		ttl:    ttl,
		log:    logrus.StandardLogger(),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *StepCache) GetStep(ctx context.Context, id string) (domain.Step, error) {
	if step, ok := c.lookup(ctx, id); ok {
		return step, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if step, ok := c.lookup(ctx, id); ok {
			return step, nil
		}
		step, err := c.source.GetStep(ctx, id)
		if err != nil {
			return domain.Step{}, err
		}
		c.fill(ctx, step)
		return step, nil
	})
	if err != nil {
		return domain.Step{}, err
	}
	return result.(domain.Step), nil
}

// SampleRandom delegates to the source and warms the cache with the draw.
func (c *StepCache) SampleRandom(ctx context.Context, n int) ([]domain.Step, error) {
	steps, err := c.source.SampleRandom(ctx, n)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, steps...)
	return steps, nil
}

func (c *StepCache) lookup(ctx context.Context, id string) (domain.Step, bool) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		// a cache outage degrades to source reads
		if !errors.Is(err, redis.Nil) {
			c.log.WithError(err).WithField("step_id", id).Warn("step cache read failed")
		}
		return domain.Step{}, false
	}
	var cached cachedStep
	if err := json.Unmarshal(data, &cached); err != nil {
		return domain.Step{}, false
	}
	return domain.Step{
		ID:             cached.ID,
		Question:       cached.Question,
		Mode:           cached.Mode,
		Options:        cached.Options,
		CorrectAnswers: cached.CorrectAnswers,
	}, true
}

func (c *StepCache) fill(ctx context.Context, steps ...domain.Step) {
	if len(steps) == 0 {
		return
	}
	pipe := c.client.Pipeline()
	for _, step := range steps {
		data, err := json.Marshal(cachedStep{
			ID:             step.ID,
			Question:       step.Question,
			Mode:           step.Mode,
			Options:        step.Options,
			CorrectAnswers: step.CorrectAnswers,
		})
		if err != nil {
			continue
		}
		pipe.Set(ctx, c.key(step.ID), data, c.ttlWithJitter())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.WithError(err).WithField("steps", len(steps)).Warn("step cache fill failed")
	}
}

func (c *StepCache) key(id string) string {
	return "quiz:step:" + id
}

func (c *StepCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
