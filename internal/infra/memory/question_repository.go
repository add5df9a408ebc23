package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/JT-427/LiveQuiz/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionBank is the backing store of questions (Postgres, in-memory, ...).
type QuestionBank interface {
	LoadQuestion(ctx context.Context, questionID string) (domain.Question, error)
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
	SaveQuestion(ctx context.Context, question domain.Question) error
	RemoveQuestion(ctx context.Context, questionID string) error
}

// QuestionRepository caches questions with TTL to avoid repeated bank hits
// while an activity is running.
type QuestionRepository struct {
	bank  QuestionBank
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuestion
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(bank QuestionBank, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		bank:  bank,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedQuestion),
	}
}

func (r *QuestionRepository) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	if q, ok := r.cached(questionID); ok {
		return q, nil
	}

	result, err, _ := r.sf.Do(questionID, func() (interface{}, error) {
		if q, ok := r.cached(questionID); ok {
			return q, nil
		}

		question, err := r.bank.LoadQuestion(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}

		r.mu.Lock()
		r.cache[questionID] = cachedQuestion{
			question:  question,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return question, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

// ListQuestions always reads the bank; the cache only serves single lookups.
func (r *QuestionRepository) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	return r.bank.LoadQuestions(ctx)
}

func (r *QuestionRepository) CreateQuestion(ctx context.Context, question domain.Question) error {
	return r.bank.SaveQuestion(ctx, question)
}

// UpdateQuestion overwrites an existing question and drops its cached copy.
func (r *QuestionRepository) UpdateQuestion(ctx context.Context, question domain.Question) error {
	if _, err := r.bank.LoadQuestion(ctx, question.ID); err != nil {
		return err
	}
	if err := r.bank.SaveQuestion(ctx, question); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.cache, question.ID)
	r.mu.Unlock()
	return nil
}

func (r *QuestionRepository) DeleteQuestion(ctx context.Context, questionID string) error {
	if err := r.bank.RemoveQuestion(ctx, questionID); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.cache, questionID)
	r.mu.Unlock()
	return nil
}

func (r *QuestionRepository) cached(questionID string) (domain.Question, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[questionID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.Question{}, false
	}
	return entry.question, true
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionBank is a question bank backed by an in-memory map (tests, demos,
// and deployments without Postgres).
type StaticQuestionBank struct {
	mu        sync.RWMutex
	questions map[string]domain.Question
}

func NewStaticQuestionBank(questions map[string]domain.Question) *StaticQuestionBank {
	copied := make(map[string]domain.Question, len(questions))
	for id, q := range questions {
		copied[id] = q
	}
	return &StaticQuestionBank{questions: copied}
}

func (b *StaticQuestionBank) LoadQuestion(_ context.Context, questionID string) (domain.Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if q, ok := b.questions[questionID]; ok {
		return q, nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

// LoadQuestions returns every question, oldest first.
func (b *StaticQuestionBank) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	b.mu.RLock()
	out := make([]domain.Question, 0, len(b.questions))
	for _, q := range b.questions {
		out = append(out, q)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (b *StaticQuestionBank) SaveQuestion(_ context.Context, question domain.Question) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.questions[question.ID] = question
	return nil
}

func (b *StaticQuestionBank) RemoveQuestion(_ context.Context, questionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.questions[questionID]; !ok {
		return domain.ErrQuestionNotFound
	}
	delete(b.questions, questionID)
	return nil
}
