package app

import (
	"fmt"
	"time"

	"github.com/JT-427/LiveQuiz/internal/domain"
)

// sessionState is the mutable state of one live activity. Only the owning
// Orchestrator touches it, always with Orchestrator.mu held.
type sessionState struct {
	activity domain.Activity
	position int
	phase    domain.Phase
	question *domain.Question
	instance uint64
	deadline time.Time
	ended    bool

	participants map[string]domain.Participant
	// answers holds accepted answers by question then participant. Entries are
	// kept for the life of the activity, so a reopened question still knows
	// who already answered it.
	answers map[string]map[string]domain.Answer

	display domain.DisplayState

	lastClosed *domain.QuestionClosed
}

func newSessionState(activity domain.Activity) sessionState {
	return sessionState{
		activity:     activity,
		phase:        domain.PhaseIdle,
		participants: make(map[string]domain.Participant),
		answers:      make(map[string]map[string]domain.Answer),
		display:      domain.DisplayState{Mode: domain.DisplayNone},
	}
}

// currentAnswers is the accepted answers of the question on screen, keyed by
// participant. Nil when no question is shown.
func (s *sessionState) currentAnswers() map[string]domain.Answer {
	if s.question == nil {
		return nil
	}
	return s.answers[s.question.ID]
}

func (s *sessionState) recordAnswer(answer domain.Answer) {
	byParticipant, ok := s.answers[answer.QuestionID]
	if !ok {
		byParticipant = make(map[string]domain.Answer)
		s.answers[answer.QuestionID] = byParticipant
	}
	if _, exists := byParticipant[answer.ParticipantID]; exists {
		invariant(false, fmt.Sprintf("answer of participant %s to %s would be overwritten", answer.ParticipantID, answer.QuestionID))
	}
	byParticipant[answer.ParticipantID] = answer
	invariant(len(byParticipant) <= len(s.participants), "more accepted answers than participants")
}

func (s *sessionState) questionIndex(questionID string) int {
	for i, id := range s.activity.QuestionIDs {
		if id == questionID {
			return i
		}
	}
	return -1
}

func (s *sessionState) currentQuestionID() string {
	if s.question != nil {
		return s.question.ID
	}
	return s.activity.QuestionIDs[s.position]
}

func (s *sessionState) snapshot(now time.Time) domain.Snapshot {
	snap := domain.Snapshot{
		Phase:     s.phase,
		Position:  s.position,
		Total:     len(s.activity.QuestionIDs),
		Stats:     computeStats(s),
		Groups:    append([]string(nil), s.activity.Groups...),
		Display:   s.display,
		Ended:     s.ended,
		Timestamp: now,
	}
	if s.question != nil {
		pub := s.question.Public()
		snap.Question = &pub
	}
	if s.phase == domain.PhaseOpen {
		deadline := s.deadline
		snap.Deadline = &deadline
	}
	return snap
}

// invariant panics when the core's own bookkeeping is broken. These are
// programming errors, never user input problems.
func invariant(ok bool, msg string) {
	if !ok {
		panic("livequiz invariant violated: " + msg)
	}
}
