package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"assessment-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// AssessmentLoader fetches assessment content from a backing store (SQL, fixtures).
type AssessmentLoader interface {
	LoadAssessment(ctx context.Context, assessmentID string) (domain.Assessment, error)
	LoadQuestion(ctx context.Context, questionID string) (domain.Question, error)
}

// AssessmentRepository caches assessments and questions with TTL to avoid repeated DB hits.
type AssessmentRepository struct {
	loader AssessmentLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand

	mu          sync.RWMutex
	assessments map[string]cached[domain.Assessment]
	questions   map[string]cached[domain.Question]
}

type cached[T any] struct {
	value     T
	expiresAt time.Time
}

func NewAssessmentRepository(loader AssessmentLoader, ttl time.Duration) *AssessmentRepository {
	return &AssessmentRepository{
		loader:      loader,
		ttl:         ttl,
		clock:       time.Now,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		assessments: make(map[string]cached[domain.Assessment]),
		questions:   make(map[string]cached[domain.Question]),
	}
}

func (r *AssessmentRepository) GetAssessment(ctx context.Context, assessmentID string) (domain.Assessment, error) {
	return cachedLoad(r, r.assessments, "a:"+assessmentID, assessmentID, func() (domain.Assessment, error) {
		return r.loader.LoadAssessment(ctx, assessmentID)
	})
}

func (r *AssessmentRepository) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	return cachedLoad(r, r.questions, "q:"+questionID, questionID, func() (domain.Question, error) {
		return r.loader.LoadQuestion(ctx, questionID)
	})
}

// cachedLoad serves id from cache or loads it once per key across concurrent callers.
func cachedLoad[T any](r *AssessmentRepository, cache map[string]cached[T], sfKey, id string, load func() (T, error)) (T, error) {
	if v, ok := lookup(r, cache, id); ok {
		return v, nil
	}

	result, err, _ := r.sf.Do(sfKey, func() (interface{}, error) {
		if v, ok := lookup(r, cache, id); ok {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return v, err
		}
		now := r.clock()
		r.mu.Lock()
		cache[id] = cached[T]{value: v, expiresAt: now.Add(r.ttlWithJitter())}
		r.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

func lookup[T any](r *AssessmentRepository, cache map[string]cached[T], id string) (T, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := cache[id]; ok && entry.expiresAt.After(now) {
		return entry.value, true
	}
	var zero T
	return zero, false
}

func (r *AssessmentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticAssessmentLoader is a loader backed by an in-memory slice (useful for tests/demos).
// It also serves as the assessment catalog in memory mode.
type StaticAssessmentLoader struct {
	assessments map[string]domain.Assessment
	questions   map[string]domain.Question
}

func NewStaticAssessmentLoader(assessments []domain.Assessment) *StaticAssessmentLoader {
	l := &StaticAssessmentLoader{
		assessments: make(map[string]domain.Assessment, len(assessments)),
		questions:   make(map[string]domain.Question),
	}
	for _, a := range assessments {
		a.Questions = append([]domain.Question(nil), a.Questions...)
		for i := range a.Questions {
			a.Questions[i].AssessmentID = a.ID
			l.questions[a.Questions[i].ID] = a.Questions[i]
		}
		l.assessments[a.ID] = a
	}
	return l
}

func (l *StaticAssessmentLoader) LoadAssessment(_ context.Context, assessmentID string) (domain.Assessment, error) {
	if a, ok := l.assessments[assessmentID]; ok {
		return a, nil
	}
	return domain.Assessment{}, domain.ErrAssessmentNotFound
}

func (l *StaticAssessmentLoader) LoadQuestion(_ context.Context, questionID string) (domain.Question, error) {
	if q, ok := l.questions[questionID]; ok {
		return q, nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

func (l *StaticAssessmentLoader) ListAssessments(_ context.Context, filter domain.AssessmentFilter) ([]domain.AssessmentSummary, error) {
	out := make([]domain.AssessmentSummary, 0)
	for _, a := range l.assessments {
		if filter.ChapterID != "" && a.ChapterID != filter.ChapterID {
			continue
		}
		if filter.TopicID != "" && a.TopicID != filter.TopicID {
			continue
		}
		out = append(out, a.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
