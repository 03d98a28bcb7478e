// cmd/seeder/prospects.go
package main

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unclebandit/outreach-engine/internal/model"
)

type seedFile struct {
	Prospects []seedProspect `yaml:"prospects"`
}

type seedProspect struct {
	ID         string `yaml:"id"`
	FirstName  string `yaml:"first_name"`
	LastName   string `yaml:"last_name"`
	Company    string `yaml:"company"`
	Title      string `yaml:"title"`
	Industry   string `yaml:"industry"`
	Email      string `yaml:"email"`
	LinkedIn   string `yaml:"linkedin"`
	Phone      string `yaml:"phone"`
	CampaignID string `yaml:"campaign_id"`
	Step       int    `yaml:"step"`
	// DueInDays places the next action relative to the seeding time.
	DueInDays   *int   `yaml:"due_in_days"`
	Status      string `yaml:"status"`
	OwnerID     string `yaml:"owner_id"`
	OwnerName   string `yaml:"owner_name"`
	SenderEmail string `yaml:"sender_email"`
	SenderName  string `yaml:"sender_name"`
}

func parseProspects(data []byte, now time.Time) ([]*model.Prospect, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid seed file: %w", err)
	}

	out := make([]*model.Prospect, 0, len(f.Prospects))
	for i, s := range f.Prospects {
		if strings.TrimSpace(s.FirstName) == "" && strings.TrimSpace(s.Email) == "" {
			return nil, fmt.Errorf("prospect %d needs a first_name or email", i)
		}
		p := &model.Prospect{
			ID:                  s.ID,
			FirstName:           s.FirstName,
			LastName:            s.LastName,
			Company:             s.Company,
			Title:               s.Title,
			Industry:            s.Industry,
			Contact:             model.ContactChannels{Email: s.Email, LinkedIn: s.LinkedIn, Phone: s.Phone},
			CampaignID:          s.CampaignID,
			CurrentStepIndex:    s.Step,
			Status:              model.ProspectStatus(s.Status),
			OwnerID:             s.OwnerID,
			OwnerName:           s.OwnerName,
			AssignedSenderEmail: s.SenderEmail,
			AssignedSenderName:  s.SenderName,
		}
		if p.Status == "" {
			p.Status = model.StatusSequenceActive
		}
		if s.DueInDays != nil {
			due := now.Add(time.Duration(*s.DueInDays) * 24 * time.Hour)
			p.NextActionAt = &due
		}
		if p.Status == model.StatusSequenceActive {
			p.EnrolledAt = &now
		}
		out = append(out, p)
	}
	return out, nil
}
