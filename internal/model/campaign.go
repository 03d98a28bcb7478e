// internal/model/campaign.go
package model

import "time"

// Channel is the outreach medium of a step.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelLinkedIn Channel = "linkedin"
	ChannelCall     Channel = "call"
	ChannelVideo    Channel = "video"
)

// Valid reports whether c is one of the known channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelLinkedIn, ChannelCall, ChannelVideo:
		return true
	}
	return false
}

// Rationale is UI copy explaining why a step is written the way it is.
// It never changes engine behavior.
type Rationale struct {
	Principle string `yaml:"principle" json:"principle"`
	Why       string `yaml:"why" json:"why"`
}

type Step struct {
	Day       int        `yaml:"day" json:"day"`
	Channel   Channel    `yaml:"type" json:"type"`
	Label     string     `yaml:"label,omitempty" json:"label,omitempty"`
	Name      string     `yaml:"name" json:"name"`
	Subject   string     `yaml:"subject,omitempty" json:"subject,omitempty"`
	Template  string     `yaml:"template,omitempty" json:"template,omitempty"`
	Rationale *Rationale `yaml:"psychology,omitempty" json:"psychology,omitempty"`
}

type Campaign struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Active      bool   `yaml:"active" json:"active"`
	Steps       []Step `yaml:"steps" json:"steps"`
}

// Catalog is the full set of campaigns, stored as a single settings document.
// Version is the compare-and-swap token; zero means it has never been saved.
type Catalog struct {
	Version   int                  `yaml:"-" json:"version"`
	Campaigns map[string]*Campaign `yaml:"campaigns" json:"campaigns"`
	UpdatedAt *time.Time           `yaml:"-" json:"updated_at,omitempty"`
	UpdatedBy string               `yaml:"-" json:"updated_by,omitempty"`
	BuiltIn   bool                 `yaml:"-" json:"built_in"`
}

// Clone returns a deep copy so edits never touch the loaded catalog.
func (c *Catalog) Clone() *Catalog {
	out := &Catalog{
		Version:   c.Version,
		Campaigns: make(map[string]*Campaign, len(c.Campaigns)),
		UpdatedBy: c.UpdatedBy,
		BuiltIn:   c.BuiltIn,
	}
	if c.UpdatedAt != nil {
		t := *c.UpdatedAt
		out.UpdatedAt = &t
	}
	for id, camp := range c.Campaigns {
		out.Campaigns[id] = camp.Clone()
	}
	return out
}

func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	out := *c
	out.Steps = make([]Step, len(c.Steps))
	for i, s := range c.Steps {
		if s.Rationale != nil {
			r := *s.Rationale
			s.Rationale = &r
		}
		out.Steps[i] = s
	}
	return &out
}

// FallbackReason explains why Lookup substituted a default.
type FallbackReason string

const (
	FallbackCampaignMissing FallbackReason = "campaign_missing"
	FallbackStepOutOfRange  FallbackReason = "step_out_of_range"
)

// Fallback records a degraded lookup so it can be reported instead of hidden.
type Fallback struct {
	ProspectID        string         `json:"prospect_id"`
	Reason            FallbackReason `json:"reason"`
	RequestedCampaign string         `json:"requested_campaign"`
	RequestedStep     int            `json:"requested_step"`
	UsedCampaign      string         `json:"used_campaign"`
	UsedStep          int            `json:"used_step"`
}

// Lookup resolves a prospect's campaign and step. A missing campaign falls
// back to defaultID, and an out-of-range index to step 0. A nil campaign is
// returned only when neither the campaign nor the default exist or the
// resolved campaign has no steps.
func (c *Catalog) Lookup(campaignID string, stepIndex int, defaultID string) (*Campaign, int, *Fallback) {
	var fb *Fallback
	camp := c.Campaigns[campaignID]
	if camp == nil {
		camp = c.Campaigns[defaultID]
		fb = &Fallback{
			Reason:            FallbackCampaignMissing,
			RequestedCampaign: campaignID,
			RequestedStep:     stepIndex,
		}
	}
	if camp == nil || len(camp.Steps) == 0 {
		return nil, 0, fb
	}

	idx := stepIndex
	if idx < 0 || idx >= len(camp.Steps) {
		idx = 0
		if fb == nil {
			fb = &Fallback{
				Reason:            FallbackStepOutOfRange,
				RequestedCampaign: campaignID,
				RequestedStep:     stepIndex,
			}
		}
	}
	if fb != nil {
		fb.UsedCampaign = camp.ID
		fb.UsedStep = idx
	}
	return camp, idx, fb
}
