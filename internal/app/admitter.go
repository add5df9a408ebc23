package app

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JT-427/LiveQuiz/internal/domain"
)

// MaxTextAnswerLength caps free text answers, in runes.
const MaxTextAnswerLength = 1000

// Admitter decides whether a single answer is accepted for a live activity.
type Admitter struct {
	registry SessionRegistry
}

func NewAdmitter(registry SessionRegistry) *Admitter {
	return &Admitter{registry: registry}
}

// Submit checks, in order: activity, participant, question, phase, deadline,
// uniqueness and payload shape. The deadline check uses submittedAt and wins
// over the phase flag, so an answer stamped after the deadline is rejected even
// if the timer has not closed the question yet.
func (a *Admitter) Submit(activityID, participantID, questionID string, payload domain.AnswerPayload, submittedAt time.Time) domain.SubmitResult {
	o, err := a.registry.Get(activityID)
	if err != nil {
		return domain.Rejected(domain.RejectUnknownActivity, submittedAt)
	}
	return o.admit(participantID, questionID, payload, submittedAt)
}

func (o *Orchestrator) admit(participantID, questionID string, payload domain.AnswerPayload, submittedAt time.Time) domain.SubmitResult {
	o.mu.Lock()
	s := &o.state
	if reason := s.rejectReason(participantID, questionID, payload, submittedAt); reason != "" {
		o.mu.Unlock()
		return domain.Rejected(reason, submittedAt)
	}

	s.recordAnswer(domain.Answer{
		ActivityID:    o.id,
		QuestionID:    questionID,
		ParticipantID: participantID,
		Payload:       normalizePayload(payload),
		SubmittedAt:   submittedAt,
		Accepted:      true,
	})
	o.emitStatsLocked()
	o.mu.Unlock()

	o.flush()
	return domain.SubmitResult{Accepted: true, SubmittedAt: submittedAt}
}

func (s *sessionState) rejectReason(participantID, questionID string, payload domain.AnswerPayload, submittedAt time.Time) domain.RejectReason {
	if s.ended {
		return domain.RejectUnknownActivity
	}
	if _, ok := s.participants[participantID]; !ok {
		return domain.RejectUnknownParticipant
	}
	if s.question == nil || s.question.ID != questionID {
		return domain.RejectQuestionMismatch
	}
	if s.phase != domain.PhaseOpen {
		return domain.RejectPhaseNotOpen
	}
	if submittedAt.After(s.deadline) {
		return domain.RejectDeadlinePassed
	}
	if _, dup := s.currentAnswers()[participantID]; dup {
		return domain.RejectDuplicateAnswer
	}
	if !validPayload(*s.question, payload) {
		return domain.RejectInvalidPayload
	}
	return ""
}

func validPayload(q domain.Question, p domain.AnswerPayload) bool {
	switch q.Kind {
	case domain.KindFreeText:
		text := strings.TrimSpace(p.Text)
		return len(p.Choices) == 0 && text != "" && utf8.RuneCountInString(text) <= MaxTextAnswerLength
	case domain.KindSingleChoice:
		return p.Text == "" && len(p.Choices) == 1 && inRange(p.Choices[0], len(q.Choices))
	case domain.KindMultiChoice:
		if p.Text != "" || len(p.Choices) == 0 || len(p.Choices) > len(q.Choices) {
			return false
		}
		seen := make(map[int]struct{}, len(p.Choices))
		for _, idx := range p.Choices {
			if !inRange(idx, len(q.Choices)) {
				return false
			}
			if _, dup := seen[idx]; dup {
				return false
			}
			seen[idx] = struct{}{}
		}
		return true
	}
	return false
}

func inRange(idx, n int) bool {
	return idx >= 0 && idx < n
}

func normalizePayload(p domain.AnswerPayload) domain.AnswerPayload {
	return domain.AnswerPayload{
		Text:    strings.TrimSpace(p.Text),
		Choices: append([]int(nil), p.Choices...),
	}
}
