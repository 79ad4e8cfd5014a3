package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"assessment-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// AssessmentLoader fetches assessment content from a backing store.
type AssessmentLoader interface {
	LoadAssessment(ctx context.Context, assessmentID string) (domain.Assessment, error)
	LoadQuestion(ctx context.Context, questionID string) (domain.Question, error)
}

// AssessmentRepository caches assessments in Redis and falls back to a loader on cache miss.
// Assessments are stored as JSON under assessment:{id}; every question of a loaded
// assessment is also written under question:{id} so answer recording skips the loader.
type AssessmentRepository struct {
	client *redis.Client
	loader AssessmentLoader
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewAssessmentRepository(client *redis.Client, loader AssessmentLoader, ttl time.Duration) *AssessmentRepository {
	return &AssessmentRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *AssessmentRepository) GetAssessment(ctx context.Context, assessmentID string) (domain.Assessment, error) {
	key := assessmentKey(assessmentID)
	var a domain.Assessment
	if ok := r.readCache(ctx, key, &a); ok {
		return a, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		var cachedA domain.Assessment
		if ok := r.readCache(ctx, key, &cachedA); ok {
			return cachedA, nil
		}

		loaded, err := r.loader.LoadAssessment(ctx, assessmentID)
		if err != nil {
			return domain.Assessment{}, err
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.Pipeline()
		if raw, err := json.Marshal(loaded); err == nil {
			pipe.Set(ctx, key, raw, ttl)
		}
		for _, q := range loaded.Questions {
			if raw, err := json.Marshal(q); err == nil {
				pipe.Set(ctx, questionKey(q.ID), raw, ttl)
			}
		}
		// best-effort: a failed cache write only costs a reload later
		_, _ = pipe.Exec(ctx)
		return loaded, nil
	})
	if err != nil {
		return domain.Assessment{}, err
	}
	return result.(domain.Assessment), nil
}

func (r *AssessmentRepository) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	key := questionKey(questionID)
	var q domain.Question
	if ok := r.readCache(ctx, key, &q); ok {
		return q, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		loaded, err := r.loader.LoadQuestion(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}
		if raw, err := json.Marshal(loaded); err == nil {
			_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
		}
		return loaded, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

// readCache decodes key into dst. Any redis or decode failure counts as a miss.
func (r *AssessmentRepository) readCache(ctx context.Context, key string, dst any) bool {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func assessmentKey(id string) string {
	return "assessment:" + id
}

func questionKey(id string) string {
	return "question:" + id
}

func (r *AssessmentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
