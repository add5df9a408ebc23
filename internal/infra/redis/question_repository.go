package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/JT-427/LiveQuiz/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// QuestionBank is the backing store of questions (Postgres, in-memory, ...).
type QuestionBank interface {
	LoadQuestion(ctx context.Context, questionID string) (domain.Question, error)
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
	SaveQuestion(ctx context.Context, question domain.Question) error
	RemoveQuestion(ctx context.Context, questionID string) error
}

// QuestionRepository caches questions in Redis and falls back to the bank on a miss.
// Each question is stored as JSON: SET livequiz:question:{questionID} {json} EX ttl
type QuestionRepository struct {
	client *redis.Client
	bank   QuestionBank
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionRepository(client *redis.Client, bank QuestionBank, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		bank:   bank,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	if q, ok := r.cached(ctx, questionID); ok {
		return q, nil
	}

	result, err, _ := r.sf.Do(questionID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if q, ok := r.cached(ctx, questionID); ok {
			return q, nil
		}

		question, err := r.bank.LoadQuestion(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}
		r.store(ctx, question)
		return question, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (r *QuestionRepository) CreateQuestion(ctx context.Context, question domain.Question) error {
	if err := r.bank.SaveQuestion(ctx, question); err != nil {
		return err
	}
	r.store(ctx, question)
	return nil
}

// ListQuestions reads the bank directly; Redis only caches single questions.
func (r *QuestionRepository) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	return r.bank.LoadQuestions(ctx)
}

// UpdateQuestion overwrites an existing question and refreshes its cached copy.
func (r *QuestionRepository) UpdateQuestion(ctx context.Context, question domain.Question) error {
	if _, err := r.bank.LoadQuestion(ctx, question.ID); err != nil {
		return err
	}
	if err := r.bank.SaveQuestion(ctx, question); err != nil {
		return err
	}
	r.store(ctx, question)
	return nil
}

func (r *QuestionRepository) DeleteQuestion(ctx context.Context, questionID string) error {
	if err := r.bank.RemoveQuestion(ctx, questionID); err != nil {
		return err
	}
	if err := r.client.Del(ctx, questionKey(questionID)).Err(); err != nil {
		log.Warn().Err(err).Str("question_id", questionID).Msg("evict cached question")
	}
	return nil
}

func (r *QuestionRepository) cached(ctx context.Context, questionID string) (domain.Question, bool) {
	raw, err := r.client.Get(ctx, questionKey(questionID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("question_id", questionID).Msg("read cached question")
		}
		return domain.Question{}, false
	}
	var q domain.Question
	if err := json.Unmarshal(raw, &q); err != nil {
		log.Warn().Err(err).Str("question_id", questionID).Msg("decode cached question")
		return domain.Question{}, false
	}
	return q, true
}

// store is best effort; a failed write only costs a later bank hit.
func (r *QuestionRepository) store(ctx context.Context, question domain.Question) {
	raw, err := json.Marshal(question)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, questionKey(question.ID), raw, r.ttlWithJitter()).Err(); err != nil {
		log.Warn().Err(err).Str("question_id", question.ID).Msg("cache question")
	}
}

func questionKey(questionID string) string {
	return "livequiz:question:" + questionID
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
