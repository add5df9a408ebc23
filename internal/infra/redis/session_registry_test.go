package redis

import (
	"testing"
	"time"

	"github.com/JT-427/LiveQuiz/internal/app"
	"github.com/JT-427/LiveQuiz/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
)

func TestSessionRegistrySetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	factory := app.NewOrchestratorFactory(app.NewHub(0), clockwork.NewFakeClock())
	registry := NewSessionRegistry(newClient(mr), factory)

	if _, err := registry.Create(domain.Activity{ID: "act-1", Name: "Friday quiz", QuestionIDs: []string{"q1"}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !mr.Exists("livequiz:activity:act-1") {
		t.Fatalf("expected redis key to be set")
	}
	// long activities must not look dead to other tooling
	mr.FastForward(24 * time.Hour)
	if !mr.Exists("livequiz:activity:act-1") {
		t.Fatalf("expected liveness key to outlast a long activity")
	}

	registry.Delete("act-1")
	if mr.Exists("livequiz:activity:act-1") {
		t.Fatalf("expected redis key to be removed")
	}
}
