package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"trivia-session-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches the full question pool from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// CachedQuestionSource serves random samples from a TTL-cached question pool,
// so concurrent game starts don't hammer the backing store.
type CachedQuestionSource struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu        sync.RWMutex
	pool      []domain.Question
	expiresAt time.Time
}

func NewCachedQuestionSource(loader QuestionLoader, ttl time.Duration) *CachedQuestionSource {
	return &CachedQuestionSource{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Fetch returns up to count random questions from the cached pool, reloading
// it once the TTL lapses. Fewer questions than requested is not an error.
func (s *CachedQuestionSource) Fetch(ctx context.Context, count int) ([]domain.Question, error) {
	pool, err := s.getPool(ctx)
	if err != nil {
		return nil, err
	}
	if count > len(pool) {
		count = len(pool)
	}
	if count <= 0 {
		return nil, nil
	}

	s.rndMu.Lock()
	perm := s.rnd.Perm(len(pool))
	s.rndMu.Unlock()

	sample := make([]domain.Question, count)
	for i := 0; i < count; i++ {
		sample[i] = pool[perm[i]]
	}
	return sample, nil
}

func (s *CachedQuestionSource) getPool(ctx context.Context) ([]domain.Question, error) {
	now := s.clock()

	s.mu.RLock()
	if s.pool != nil && s.expiresAt.After(now) {
		pool := s.pool
		s.mu.RUnlock()
		return pool, nil
	}
	s.mu.RUnlock()

	result, err, _ := s.sf.Do("pool", func() (interface{}, error) {
		now := s.clock()
		s.mu.RLock()
		if s.pool != nil && s.expiresAt.After(now) {
			pool := s.pool
			s.mu.RUnlock()
			return pool, nil
		}
		s.mu.RUnlock()

		pool, err := s.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.pool = pool
		s.expiresAt = now.Add(s.ttlWithJitter())
		s.mu.Unlock()
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (s *CachedQuestionSource) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(s.ttl) / 10
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves a fixed pool (useful for tests and demos).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	return l.questions, nil
}
