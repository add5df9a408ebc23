package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JT-427/LiveQuiz/internal/domain"
)

func TestQuestionRepositoryCaches(t *testing.T) {
	bank := &countingBank{
		QuestionBank: NewStaticQuestionBank(map[string]domain.Question{
			"q1": sampleQuestion(),
		}),
	}
	repo := NewQuestionRepository(bank, time.Minute)

	if _, err := repo.GetQuestion(context.Background(), "q1"); err != nil {
		t.Fatalf("get question: %v", err)
	}
	if bank.loads != 1 {
		t.Fatalf("expected bank once, got %d", bank.loads)
	}

	if _, err := repo.GetQuestion(context.Background(), "q1"); err != nil {
		t.Fatalf("get question 2: %v", err)
	}
	if bank.loads != 1 {
		t.Fatalf("expected cache hit, bank loads %d", bank.loads)
	}
}

func TestQuestionRepositoryExpires(t *testing.T) {
	bank := &countingBank{
		QuestionBank: NewStaticQuestionBank(map[string]domain.Question{
			"q1": sampleQuestion(),
		}),
	}
	repo := NewQuestionRepository(bank, time.Minute)
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	if _, err := repo.GetQuestion(context.Background(), "q1"); err != nil {
		t.Fatalf("get question: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := repo.GetQuestion(context.Background(), "q1"); err != nil {
		t.Fatalf("get question after ttl: %v", err)
	}
	if bank.loads != 2 {
		t.Fatalf("expected reload after ttl, bank loads %d", bank.loads)
	}
}

func TestQuestionRepositoryDeleteInvalidates(t *testing.T) {
	repo := NewQuestionRepository(NewStaticQuestionBank(nil), time.Minute)
	ctx := context.Background()

	if err := repo.CreateQuestion(ctx, sampleQuestion()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.GetQuestion(ctx, "q1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := repo.DeleteQuestion(ctx, "q1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetQuestion(ctx, "q1"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := repo.DeleteQuestion(ctx, "q1"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestQuestionRepositoryUpdateInvalidates(t *testing.T) {
	repo := NewQuestionRepository(NewStaticQuestionBank(nil), time.Minute)
	ctx := context.Background()

	if err := repo.CreateQuestion(ctx, sampleQuestion()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.GetQuestion(ctx, "q1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	updated := sampleQuestion()
	updated.Prompt = "Which planet is farthest from the sun?"
	if err := repo.UpdateQuestion(ctx, updated); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.GetQuestion(ctx, "q1")
	if err != nil || got.Prompt != updated.Prompt {
		t.Fatalf("expected updated prompt, got %+v %v", got, err)
	}

	missing := sampleQuestion()
	missing.ID = "q404"
	if err := repo.UpdateQuestion(ctx, missing); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected not found for unknown question, got %v", err)
	}
}

func TestStaticQuestionBankListsOldestFirst(t *testing.T) {
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	first, second := sampleQuestion(), sampleQuestion()
	first.ID, first.CreatedAt = "b", base
	second.ID, second.CreatedAt = "a", base.Add(time.Minute)
	bank := NewStaticQuestionBank(map[string]domain.Question{"a": second, "b": first})

	list, err := bank.LoadQuestions(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "b" || list[1].ID != "a" {
		t.Fatalf("unexpected order %+v", list)
	}
}

type countingBank struct {
	QuestionBank
	loads int
}

func (b *countingBank) LoadQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	b.loads++
	return b.QuestionBank.LoadQuestion(ctx, questionID)
}

func sampleQuestion() domain.Question {
	return domain.Question{
		ID:        "q1",
		Prompt:    "Which planet is closest to the sun?",
		Kind:      domain.KindSingleChoice,
		Choices:   []string{"Mercury", "Venus"},
		TimeLimit: 30,
		Correct:   []int{0},
	}
}
