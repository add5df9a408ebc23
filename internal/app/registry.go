package app

import "github.com/JT-427/LiveQuiz/internal/domain"

// SessionRegistry maps live activity ids to their orchestrators (in-memory,
// Redis-marked, etc). There is one per process.
type SessionRegistry interface {
	Create(activity domain.Activity) (*Orchestrator, error)
	Get(activityID string) (*Orchestrator, error)
	Delete(activityID string)
	List() []*Orchestrator
}
