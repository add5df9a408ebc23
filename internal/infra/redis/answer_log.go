package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JT-427/LiveQuiz/internal/domain"
	"github.com/redis/go-redis/v9"
)

// AnswerLog appends accepted answers to a Redis list per activity:
// RPUSH livequiz:activity:{activityID}:answers {json}
// A zero retention keeps the list forever; otherwise the list expires that
// long after its last append.
type AnswerLog struct {
	client    *redis.Client
	retention time.Duration
}

func NewAnswerLog(client *redis.Client, retention time.Duration) *AnswerLog {
	return &AnswerLog{client: client, retention: retention}
}

func (l *AnswerLog) AppendAnswer(ctx context.Context, answer domain.Answer) error {
	raw, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	key := answersKey(answer.ActivityID)
	pipe := l.client.TxPipeline()
	pipe.RPush(ctx, key, raw)
	if l.retention > 0 {
		pipe.Expire(ctx, key, l.retention)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append answer: %w", err)
	}
	return nil
}

// Answers reads back the logged answers of one activity in append order.
func (l *AnswerLog) Answers(ctx context.Context, activityID string) ([]domain.Answer, error) {
	raws, err := l.client.LRange(ctx, answersKey(activityID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}
	answers := make([]domain.Answer, 0, len(raws))
	for _, raw := range raws {
		var a domain.Answer
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, fmt.Errorf("decode answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, nil
}

func answersKey(activityID string) string {
	return "livequiz:activity:" + activityID + ":answers"
}
