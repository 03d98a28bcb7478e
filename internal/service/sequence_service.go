// internal/service/sequence_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/queue"
	"github.com/unclebandit/outreach-engine/internal/repository"
)

// SequenceService persists sequence transitions and announces them on the
// event bus.
type SequenceService struct {
	ProspectRepo repository.ProspectRepositoryInterface
	Catalogs     *CatalogService
	Events       queue.Queue
	Logger       *zap.Logger
	Now          func() time.Time
}

// Advance moves the prospect past the step the operator was looking at.
// expectedStepIndex is the index shown in the queue entry.
func (s *SequenceService) Advance(ctx context.Context, prospectID string, expectedStepIndex int, op model.Operator) (*model.Prospect, error) {
	p, err := s.ProspectRepo.GetByID(ctx, prospectID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.Catalogs.Load(ctx)
	if err != nil {
		return nil, err
	}
	camp, idx, _ := s.Catalogs.ResolveStep(catalog, p)
	if camp == nil {
		return nil, appErrors.NewCampaignNotFound(p.CampaignID)
	}
	if idx != expectedStepIndex {
		return nil, appErrors.ErrStaleProspect
	}
	return s.AdvanceResolved(ctx, p, camp, idx, op.ID)
}

// AdvanceResolved advances p when the caller has already resolved its step.
func (s *SequenceService) AdvanceResolved(ctx context.Context, p *model.Prospect, camp *model.Campaign, idx int, actorID string) (*model.Prospect, error) {
	t, err := PlanAdvance(p, camp, idx, s.Now(), actorID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, p, t, actorID)
}

func (s *SequenceService) Skip(ctx context.Context, prospectID string, op model.Operator) (*model.Prospect, error) {
	p, err := s.ProspectRepo.GetByID(ctx, prospectID)
	if err != nil {
		return nil, err
	}
	t, err := PlanSkip(p, s.Now(), op.ID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, p, t, op.ID)
}

// MarkReplied stops the sequence after a prospect answered.
func (s *SequenceService) MarkReplied(ctx context.Context, prospectID string, op model.Operator) (*model.Prospect, error) {
	p, err := s.ProspectRepo.GetByID(ctx, prospectID)
	if err != nil {
		return nil, err
	}
	t, err := PlanReply(p, s.Now(), op.ID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, p, t, op.ID)
}

// Enroll starts a campaign for the prospect. An empty campaignID uses the
// default campaign.
func (s *SequenceService) Enroll(ctx context.Context, prospectID, campaignID string, op model.Operator) (*model.Prospect, error) {
	p, err := s.ProspectRepo.GetByID(ctx, prospectID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.Catalogs.Load(ctx)
	if err != nil {
		return nil, err
	}
	if campaignID == "" {
		campaignID = s.Catalogs.DefaultCampaignID
	}
	camp := catalog.Campaigns[campaignID]
	if camp == nil {
		return nil, appErrors.NewCampaignNotFound(campaignID)
	}
	t, err := PlanEnroll(p, camp, s.Now(), op.ID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, p, t, op.ID)
}

// History returns the prospect's newest history entries first.
func (s *SequenceService) History(ctx context.Context, prospectID string, limit int) ([]model.HistoryEntry, error) {
	if _, err := s.ProspectRepo.GetByID(ctx, prospectID); err != nil {
		return nil, err
	}
	return s.ProspectRepo.History(ctx, prospectID, limit)
}

func (s *SequenceService) apply(ctx context.Context, p *model.Prospect, t *model.Transition, actorID string) (*model.Prospect, error) {
	if err := s.ProspectRepo.ApplyTransition(ctx, t); err != nil {
		s.Logger.Warn("sequence transition not applied",
			zap.String("prospect_id", p.ID),
			zap.String("kind", string(t.Kind)),
			zap.Int("expected_step", t.ExpectedStepIndex),
			zap.Error(err))
		return nil, fmt.Errorf("%s prospect %s: %w", t.Kind, p.ID, err)
	}

	updated := *p
	updated.History = append([]model.HistoryEntry(nil), p.History...)
	t.Apply(&updated)

	s.Logger.Info("sequence transition applied",
		zap.String("prospect_id", p.ID),
		zap.String("kind", string(t.Kind)),
		zap.String("status", string(t.NewStatus)),
		zap.Int("step_index", t.NewStepIndex))

	if s.Events != nil {
		ev := queue.SequenceEvent{
			Kind:       string(t.Kind),
			ProspectID: p.ID,
			CampaignID: t.CampaignID,
			StepIndex:  t.NewStepIndex,
			Status:     string(t.NewStatus),
			ActorID:    actorID,
			At:         s.Now(),
		}
		if err := s.Events.Publish(queue.TopicFor(t.Kind), ev); err != nil {
			s.Logger.Warn("failed to publish sequence event", zap.String("prospect_id", p.ID), zap.Error(err))
		}
	}
	return &updated, nil
}
