// internal/model/transition.go
package model

import "time"

type TransitionKind string

const (
	TransitionAdvance  TransitionKind = "advanced"
	TransitionComplete TransitionKind = "completed"
	TransitionSkip     TransitionKind = "skipped"
	TransitionReply    TransitionKind = "replied"
	TransitionEnroll   TransitionKind = "enrolled"
)

// Transition is one planned change to a prospect's sequence state. The store
// applies it only while the prospect still has ExpectedStatus and
// ExpectedStepIndex.
type Transition struct {
	Kind              TransitionKind `json:"kind"`
	ProspectID        string         `json:"prospect_id"`
	ExpectedStatus    ProspectStatus `json:"expected_status"`
	ExpectedStepIndex int            `json:"expected_step_index"`

	NewStatus       ProspectStatus `json:"new_status"`
	NewStepIndex    int            `json:"new_step_index"`
	CampaignID      string         `json:"campaign_id"`
	NextActionAt    *time.Time     `json:"next_action_at,omitempty"`
	LastContactedAt *time.Time     `json:"last_contacted_at,omitempty"`
	EnrolledAt      *time.Time     `json:"enrolled_at,omitempty"`
	RepliedAt       *time.Time     `json:"replied_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`

	History []HistoryEntry `json:"history"`
}

// Apply mutates p to the post-transition state. Stores call it after the
// conditional write succeeds.
func (t *Transition) Apply(p *Prospect) {
	p.Status = t.NewStatus
	p.CurrentStepIndex = t.NewStepIndex
	p.CampaignID = t.CampaignID
	p.NextActionAt = t.NextActionAt
	if t.LastContactedAt != nil {
		p.LastContactedAt = t.LastContactedAt
	}
	if t.EnrolledAt != nil {
		p.EnrolledAt = t.EnrolledAt
	}
	if t.RepliedAt != nil {
		p.RepliedAt = t.RepliedAt
	}
	if t.CompletedAt != nil {
		p.CompletedAt = t.CompletedAt
	}
	p.History = append(p.History, t.History...)
}
