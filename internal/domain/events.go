package domain

import (
	"fmt"
	"time"
)

// EventType names a message on an activity's broadcast stream.
type EventType string

const (
	EventSnapshot         EventType = "snapshot"
	EventQuestionOpened   EventType = "question_opened"
	EventStatsUpdate      EventType = "stats_update"
	EventQuestionClosed   EventType = "question_closed"
	EventQuestionAdvanced EventType = "question_advanced"
	EventAnswerProjected  EventType = "answer_projected"
	EventDisplayChanged   EventType = "display_mode_changed"
	EventActivityEnded    EventType = "activity_ended"
)

// Event is one entry of an activity's stream. Seq increases by one per published
// event of the activity; snapshots carry the seq of the last event they include.
type Event struct {
	Type       EventType `json:"type"`
	ActivityID string    `json:"activityId"`
	Seq        uint64    `json:"seq"`
	At         time.Time `json:"at"`
	Payload    any       `json:"payload"`
}

// Snapshot is the synthesized state a new subscriber starts from.
type Snapshot struct {
	Phase     Phase           `json:"phase"`
	Position  int             `json:"position"`
	Total     int             `json:"total"`
	Question  *PublicQuestion `json:"question,omitempty"`
	Deadline  *time.Time      `json:"deadline,omitempty"`
	Stats     Stats           `json:"stats"`
	Groups    []string        `json:"groups,omitempty"`
	Display   DisplayState    `json:"display"`
	Ended     bool            `json:"ended"`
	Timestamp time.Time       `json:"timestamp"`
}

type QuestionOpened struct {
	Question PublicQuestion `json:"question"`
	Deadline time.Time      `json:"deadline"`
	Position int            `json:"position"`
}

type StatsUpdate struct {
	QuestionID string `json:"questionId,omitempty"`
	Stats      Stats  `json:"stats"`
}

// CloseReason tells clients whether the operator or the countdown closed a question.
type CloseReason string

const (
	CloseByOperator CloseReason = "operator"
	CloseByDeadline CloseReason = "deadline"
)

type QuestionClosed struct {
	QuestionID string      `json:"questionId"`
	FinalStats Stats       `json:"finalStats"`
	ClosedAt   time.Time   `json:"closedAt"`
	Reason     CloseReason `json:"reason"`
}

type QuestionAdvanced struct {
	Position   int    `json:"position"`
	QuestionID string `json:"questionId"`
	Phase      Phase  `json:"phase"`
}

type AnswerProjected struct {
	QuestionID      string        `json:"questionId"`
	ParticipantName string        `json:"participantName"`
	Group           string        `json:"group,omitempty"`
	Payload         AnswerPayload `json:"payload"`
}

// DisplayMode is what the projector screen shows.
type DisplayMode string

const (
	DisplayNone     DisplayMode = "none"
	DisplayQuestion DisplayMode = "question"
	DisplayStats    DisplayMode = "stats"
	DisplayAnswers  DisplayMode = "answers"
)

// DisplayState is the projector setting. StatsLimit caps how many entries the
// stats view lists; zero shows all.
type DisplayState struct {
	Mode       DisplayMode `json:"mode"`
	StatsLimit int         `json:"statsLimit,omitempty"`
}

func (d DisplayState) Validate() error {
	switch d.Mode {
	case DisplayNone, DisplayQuestion, DisplayStats, DisplayAnswers:
	default:
		return fmt.Errorf("%w: unknown display mode %q", ErrInvalidInput, d.Mode)
	}
	if d.StatsLimit < 0 {
		return fmt.Errorf("%w: stats limit must not be negative", ErrInvalidInput)
	}
	return nil
}

type ActivityEnded struct {
	EndedAt time.Time `json:"endedAt"`
}
