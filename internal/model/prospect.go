// internal/model/prospect.go
package model

import (
	"strings"
	"time"
)

type ProspectStatus string

const (
	StatusSequenceActive    ProspectStatus = "sequence_active"
	StatusReplied           ProspectStatus = "replied"
	StatusSequenceCompleted ProspectStatus = "sequence_completed"
)

type ContactChannels struct {
	Email    string `db:"email" json:"email,omitempty"`
	LinkedIn string `db:"linkedin" json:"linkedin,omitempty"`
	Phone    string `db:"phone" json:"phone,omitempty"`
}

// For returns the contact value used to reach a prospect on the given
// channel. Video steps are recorded links sent by email.
func (c ContactChannels) For(ch Channel) string {
	switch ch {
	case ChannelEmail, ChannelVideo:
		return strings.TrimSpace(c.Email)
	case ChannelLinkedIn:
		return strings.TrimSpace(c.LinkedIn)
	case ChannelCall:
		return strings.TrimSpace(c.Phone)
	}
	return ""
}

type HistoryEntry struct {
	ID      string    `db:"id" json:"id"`
	At      time.Time `db:"at" json:"at"`
	Action  string    `db:"action" json:"action"`
	ActorID string    `db:"actor_id" json:"actor_id,omitempty"`
}

type Prospect struct {
	ID                  string          `db:"id" json:"id"`
	FirstName           string          `db:"first_name" json:"first_name"`
	LastName            string          `db:"last_name" json:"last_name"`
	Company             string          `db:"company" json:"company"`
	Title               string          `db:"title" json:"title"`
	Industry            string          `db:"industry" json:"industry,omitempty"`
	Contact             ContactChannels `json:"contact"`
	CampaignID          string          `db:"campaign_id" json:"campaign_id"`
	CurrentStepIndex    int             `db:"current_step_index" json:"current_step_index"`
	NextActionAt        *time.Time      `db:"next_action_at" json:"next_action_at,omitempty"`
	Status              ProspectStatus  `db:"status" json:"status"`
	OwnerID             string          `db:"owner_id" json:"owner_id"`
	OwnerName           string          `db:"owner_name" json:"owner_name,omitempty"`
	AssignedSenderEmail string          `db:"assigned_sender_email" json:"assigned_sender_email,omitempty"`
	AssignedSenderName  string          `db:"assigned_sender_name" json:"assigned_sender_name,omitempty"`
	EnrolledAt          *time.Time      `db:"enrolled_at" json:"enrolled_at,omitempty"`
	LastContactedAt     *time.Time      `db:"last_contacted_at" json:"last_contacted_at,omitempty"`
	RepliedAt           *time.Time      `db:"replied_at" json:"replied_at,omitempty"`
	CompletedAt         *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	EmailOpens          int             `db:"email_opens" json:"email_opens"`
	LastEmailOpenedAt   *time.Time      `db:"last_email_opened_at" json:"last_email_opened_at,omitempty"`
	History             []HistoryEntry  `json:"history,omitempty"`
}

func (p *Prospect) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

// EmailOpen is one load of the tracking pixel embedded in a live email.
type EmailOpen struct {
	ProspectID string    `db:"prospect_id" json:"prospect_id"`
	TrackingID string    `db:"tracking_id" json:"tracking_id"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	At         time.Time `db:"opened_at" json:"opened_at"`
}

// Operator is the authenticated principal acting on the queue.
type Operator struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
