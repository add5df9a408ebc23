package redis

import (
	"context"
	"testing"
	"time"

	"github.com/JT-427/LiveQuiz/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestAnswerLogAppendsInOrder(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	answers := NewAnswerLog(newClient(mr), time.Hour)
	ctx := context.Background()
	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	for i, pid := range []string{"p1", "p2"} {
		err := answers.AppendAnswer(ctx, domain.Answer{
			ActivityID:    "act-1",
			QuestionID:    "q1",
			ParticipantID: pid,
			Payload:       domain.AnswerPayload{Choices: []int{i}},
			SubmittedAt:   at.Add(time.Duration(i) * time.Second),
			Accepted:      true,
		})
		if err != nil {
			t.Fatalf("append %s: %v", pid, err)
		}
	}

	got, err := answers.Answers(ctx, "act-1")
	if err != nil {
		t.Fatalf("read answers: %v", err)
	}
	if len(got) != 2 || got[0].ParticipantID != "p1" || got[1].ParticipantID != "p2" {
		t.Fatalf("unexpected answers %+v", got)
	}
	if got[1].Payload.Choices[0] != 1 {
		t.Fatalf("unexpected payload %+v", got[1].Payload)
	}
	if mr.TTL("livequiz:activity:act-1:answers") != time.Hour {
		t.Fatalf("expected answer list ttl")
	}
}

func TestAnswerLogKeepsHistoryWithoutRetention(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	answers := NewAnswerLog(newClient(mr), 0)
	ctx := context.Background()
	if err := answers.AppendAnswer(ctx, domain.Answer{ActivityID: "act-1", QuestionID: "q1", ParticipantID: "p1"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if ttl := mr.TTL("livequiz:activity:act-1:answers"); ttl != 0 {
		t.Fatalf("expected no expiry on the answer list, got %v", ttl)
	}
	mr.FastForward(30 * 24 * time.Hour)
	got, err := answers.Answers(ctx, "act-1")
	if err != nil || len(got) != 1 {
		t.Fatalf("expected history to survive, got %+v %v", got, err)
	}
}
