package domain

import (
	"errors"
	"time"
)

var (
	// ErrActivityNotFound is returned when no live or stored activity has the given id.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrActivityExists is returned when registering an activity id twice.
	ErrActivityExists = errors.New("activity already registered")
	// ErrActivityEnded is returned for any operation on an ended activity.
	ErrActivityEnded = errors.New("activity has ended")
	// ErrParticipantNotFound is returned when a participant has not joined the activity.
	ErrParticipantNotFound = errors.New("participant not found in activity")
	// ErrQuestionNotFound indicates the question bank has no such question.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrQuestionNotInActivity is returned when opening a question outside the activity's sequence.
	ErrQuestionNotInActivity = errors.New("question is not part of this activity")
	// ErrQuestionInUse blocks deleting a question that a live activity is showing.
	ErrQuestionInUse = errors.New("question is in use by a live activity")
	// ErrAnswerNotFound is returned when projecting an answer that was never accepted.
	ErrAnswerNotFound = errors.New("answer not found")
	// ErrInvalidTransition is returned when an operator action is not allowed in the current phase.
	ErrInvalidTransition = errors.New("invalid phase transition")
	// ErrNoMoreQuestions is returned when advancing past the last question.
	ErrNoMoreQuestions = errors.New("no more questions")
	// ErrInvalidDuration is returned when a question would open with a non-positive window.
	ErrInvalidDuration = errors.New("answer window must be positive")
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSubscriptionClosed ends a subscription after the activity ended or the client left.
	ErrSubscriptionClosed = errors.New("subscription closed")
	// ErrSubscriberLagging drops a subscriber whose backlog grew past the limit.
	ErrSubscriberLagging = errors.New("subscriber fell too far behind")
)

// RejectReason is the stable, client-facing reason an answer was not accepted.
type RejectReason string

const (
	RejectUnknownActivity    RejectReason = "unknown_activity"
	RejectUnknownParticipant RejectReason = "unknown_participant"
	RejectQuestionMismatch   RejectReason = "question_mismatch"
	RejectPhaseNotOpen       RejectReason = "phase_not_open"
	RejectDeadlinePassed     RejectReason = "deadline_passed"
	RejectDuplicateAnswer    RejectReason = "duplicate_answer"
	RejectInvalidPayload     RejectReason = "invalid_payload"
)

// SubmitResult is the outcome of one answer submission.
type SubmitResult struct {
	Accepted    bool         `json:"accepted"`
	Reason      RejectReason `json:"reason,omitempty"`
	SubmittedAt time.Time    `json:"submittedAt"`
}

// Rejected builds a rejection result.
func Rejected(reason RejectReason, at time.Time) SubmitResult {
	return SubmitResult{Reason: reason, SubmittedAt: at}
}
