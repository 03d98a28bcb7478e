package queue

import (
	"time"

	"github.com/unclebandit/outreach-engine/internal/model"
)

// Topics published by the sequencing engine.
const (
	TopicAdvanced  = "sequence.advanced"
	TopicCompleted = "sequence.completed"
	TopicSkipped   = "sequence.skipped"
	TopicReplied   = "sequence.replied"
	TopicEnrolled  = "sequence.enrolled"
	TopicFallback  = "sequence.fallback"
	TopicSent      = "outreach.sent"
	TopicOpened    = "outreach.opened"
)

// AllTopics lists every topic the worker subscribes to.
var AllTopics = []string{
	TopicAdvanced, TopicCompleted, TopicSkipped, TopicReplied, TopicEnrolled, TopicFallback, TopicSent, TopicOpened,
}

// TopicFor maps a transition to its event topic.
func TopicFor(kind model.TransitionKind) string {
	switch kind {
	case model.TransitionAdvance:
		return TopicAdvanced
	case model.TransitionComplete:
		return TopicCompleted
	case model.TransitionSkip:
		return TopicSkipped
	case model.TransitionReply:
		return TopicReplied
	case model.TransitionEnroll:
		return TopicEnrolled
	}
	return "sequence." + string(kind)
}

// SequenceEvent is the payload of every sequence.* topic.
type SequenceEvent struct {
	Kind       string          `json:"kind"`
	ProspectID string          `json:"prospect_id"`
	CampaignID string          `json:"campaign_id,omitempty"`
	StepIndex  int             `json:"step_index"`
	Status     string          `json:"status,omitempty"`
	ActorID    string          `json:"actor_id,omitempty"`
	Fallback   *model.Fallback `json:"fallback,omitempty"`
	At         time.Time       `json:"at"`
}

// SentEvent records a confirmed dispatch.
type SentEvent struct {
	ProspectID    string    `json:"prospect_id"`
	StepIndex     int       `json:"step_index"`
	Channel       string    `json:"channel"`
	CorrelationID string    `json:"correlation_id"`
	Simulated     bool      `json:"simulated"`
	IsTest        bool      `json:"is_test"`
	ActorID       string    `json:"actor_id"`
	At            time.Time `json:"at"`
}

// OpenedEvent records the first load of a tracking pixel within the dedup
// window.
type OpenedEvent struct {
	ProspectID string    `json:"prospect_id"`
	TrackingID string    `json:"tracking_id"`
	At         time.Time `json:"at"`
}
