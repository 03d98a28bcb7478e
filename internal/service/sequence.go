// internal/service/sequence.go
package service

import (
	"fmt"
	"time"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/model"
)

const day = 24 * time.Hour

func addDays(t time.Time, n int) *time.Time {
	out := t.Add(time.Duration(n) * day)
	return &out
}

func requireStatus(p *model.Prospect, allowed ...model.ProspectStatus) error {
	for _, s := range allowed {
		if p.Status == s {
			return nil
		}
	}
	return fmt.Errorf("prospect %s is %s: %w", p.ID, p.Status, appErrors.ErrInvalidTransition)
}

func baseTransition(kind model.TransitionKind, p *model.Prospect) *model.Transition {
	return &model.Transition{
		Kind:              kind,
		ProspectID:        p.ID,
		ExpectedStatus:    p.Status,
		ExpectedStepIndex: p.CurrentStepIndex,
		NewStatus:         p.Status,
		NewStepIndex:      p.CurrentStepIndex,
		CampaignID:        p.CampaignID,
		NextActionAt:      p.NextActionAt,
	}
}

// PlanAdvance moves an active prospect past step idx of camp. The last step
// completes the sequence.
func PlanAdvance(p *model.Prospect, camp *model.Campaign, idx int, now time.Time, actorID string) (*model.Transition, error) {
	if err := requireStatus(p, model.StatusSequenceActive); err != nil {
		return nil, err
	}
	if camp == nil || idx < 0 || idx >= len(camp.Steps) {
		return nil, fmt.Errorf("prospect %s has no step %d to advance: %w", p.ID, idx, appErrors.ErrInvalidTransition)
	}
	current := camp.Steps[idx]

	t := baseTransition(model.TransitionAdvance, p)
	t.CampaignID = camp.ID
	t.LastContactedAt = &now
	t.History = []model.HistoryEntry{{
		At:      now,
		Action:  fmt.Sprintf("Completed Step %d: %s", idx+1, current.Name),
		ActorID: actorID,
	}}

	if idx+1 >= len(camp.Steps) {
		t.Kind = model.TransitionComplete
		t.NewStatus = model.StatusSequenceCompleted
		t.NewStepIndex = idx
		t.CompletedAt = &now
		t.History = append(t.History, model.HistoryEntry{At: now, Action: "Sequence completed", ActorID: actorID})
		return t, nil
	}

	next := camp.Steps[idx+1]
	t.NewStepIndex = idx + 1
	t.NextActionAt = addDays(now, next.Day-current.Day)
	return t, nil
}

// PlanSkip delays the current step by one day.
func PlanSkip(p *model.Prospect, now time.Time, actorID string) (*model.Transition, error) {
	if err := requireStatus(p, model.StatusSequenceActive); err != nil {
		return nil, err
	}
	from := now
	if p.NextActionAt != nil {
		from = *p.NextActionAt
	}
	t := baseTransition(model.TransitionSkip, p)
	t.NextActionAt = addDays(from, 1)
	t.History = []model.HistoryEntry{{
		At:      now,
		Action:  fmt.Sprintf("Step %d delayed by 1 day", p.CurrentStepIndex+1),
		ActorID: actorID,
	}}
	return t, nil
}

// PlanReply pauses the sequence for good. The step index and due date are
// left as they were.
func PlanReply(p *model.Prospect, now time.Time, actorID string) (*model.Transition, error) {
	if err := requireStatus(p, model.StatusSequenceActive); err != nil {
		return nil, err
	}
	t := baseTransition(model.TransitionReply, p)
	t.NewStatus = model.StatusReplied
	t.RepliedAt = &now
	t.History = []model.HistoryEntry{{At: now, Action: "Prospect replied - sequence paused", ActorID: actorID}}
	return t, nil
}

// PlanEnroll starts camp from its first step. Active and replied prospects
// cannot be enrolled.
func PlanEnroll(p *model.Prospect, camp *model.Campaign, now time.Time, actorID string) (*model.Transition, error) {
	if p.Status == model.StatusSequenceActive || p.Status == model.StatusReplied {
		return nil, fmt.Errorf("prospect %s is %s: %w", p.ID, p.Status, appErrors.ErrInvalidTransition)
	}
	if camp == nil || len(camp.Steps) == 0 {
		id := ""
		if camp != nil {
			id = camp.ID
		}
		return nil, appErrors.NewCampaignNotFound(id)
	}
	t := baseTransition(model.TransitionEnroll, p)
	t.NewStatus = model.StatusSequenceActive
	t.NewStepIndex = 0
	t.CampaignID = camp.ID
	t.NextActionAt = addDays(now, camp.Steps[0].Day)
	t.EnrolledAt = &now
	t.History = []model.HistoryEntry{{At: now, Action: "Enrolled in " + camp.Name, ActorID: actorID}}
	return t, nil
}
