// Package model contains domain models passed between layers.
package model

import "time"

// Reason says why a poll was requested.
type Reason string

const (
	ReasonStartup  Reason = "startup"
	ReasonTick     Reason = "tick"
	ReasonMutation Reason = "mutation"
	ReasonRetry    Reason = "retry"
)

// Trigger asks the poll worker to fetch the ranking once.
type Trigger struct {
	Reason         Reason
	At             time.Time
	NotificationID string // set when Reason is ReasonMutation
}

// Kind names a score mutation.
type Kind string

const (
	KindAdded   Kind = "added"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
	KindCleared Kind = "cleared"
)

// Bus topics.
const (
	TopicChanged = "scores.changed"
	TopicAdded   = "score.added"
	TopicUpdated = "score.updated"
	TopicDeleted = "score.deleted"
	TopicCleared = "scores.cleared"
)

// Topic returns the specific topic for the kind.
func (k Kind) Topic() string {
	switch k {
	case KindAdded:
		return TopicAdded
	case KindUpdated:
		return TopicUpdated
	case KindDeleted:
		return TopicDeleted
	case KindCleared:
		return TopicCleared
	default:
		return TopicChanged
	}
}

// Notification announces that the score store changed.
type Notification struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	EntryID string    `json:"entryId,omitempty"`
	At      time.Time `json:"at"`
}
