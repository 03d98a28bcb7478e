// internal/service/queue_builder.go
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/queue"
	"github.com/unclebandit/outreach-engine/internal/repository"
)

// BuildOptions parameterises a queue build. Now is the reference time for
// due dates and the [Date] merge field.
type BuildOptions struct {
	Now         time.Time
	Channel     model.Channel
	ProgramName string
}

// BuildQueue projects active prospects onto their current step. It has no
// side effects: the same inputs always produce the same queue.
func BuildQueue(prospects []*model.Prospect, catalog *model.Catalog, catalogs *CatalogService, opts BuildOptions) *model.Queue {
	q := &model.Queue{
		GeneratedAt: opts.Now,
		Overdue:     []*model.QueueEntry{},
		Today:       []*model.QueueEntry{},
		Tomorrow:    []*model.QueueEntry{},
		Future:      []*model.QueueEntry{},
	}

	for _, p := range prospects {
		if p.Status != model.StatusSequenceActive {
			continue
		}
		entry, fb := buildEntry(p, catalog, catalogs, opts)
		if fb != nil {
			q.Diagnostics = append(q.Diagnostics, *fb)
		}
		if entry == nil {
			continue
		}
		if opts.Channel != "" && entry.Channel != opts.Channel {
			continue
		}
		switch entry.Bucket {
		case model.BucketOverdue:
			q.Overdue = append(q.Overdue, entry)
		case model.BucketToday:
			q.Today = append(q.Today, entry)
		case model.BucketTomorrow:
			q.Tomorrow = append(q.Tomorrow, entry)
		default:
			q.Future = append(q.Future, entry)
		}
	}

	for _, bucket := range [][]*model.QueueEntry{q.Overdue, q.Today, q.Tomorrow, q.Future} {
		sortEntries(bucket)
	}
	return q
}

func sortEntries(entries []*model.QueueEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.DueDiffDays != b.DueDiffDays {
			return a.DueDiffDays < b.DueDiffDays
		}
		if !a.DueAt.Equal(b.DueAt) {
			return a.DueAt.Before(b.DueAt)
		}
		return a.ProspectID < b.ProspectID
	})
}

func buildEntry(p *model.Prospect, catalog *model.Catalog, catalogs *CatalogService, opts BuildOptions) (*model.QueueEntry, *model.Fallback) {
	camp, idx, fb := catalogs.ResolveStep(catalog, p)
	if camp == nil {
		if fb == nil {
			fb = &model.Fallback{
				ProspectID:        p.ID,
				Reason:            model.FallbackCampaignMissing,
				RequestedCampaign: p.CampaignID,
				RequestedStep:     p.CurrentStepIndex,
			}
		}
		return nil, fb
	}
	step := camp.Steps[idx]

	diff, bucket := ClassifyDue(p.NextActionAt, opts.Now)
	dueAt := opts.Now
	if p.NextActionAt != nil {
		dueAt = *p.NextActionAt
	}

	res := ResolveTemplate(step.Subject, step.Template, AttributesFor(p, opts.ProgramName, opts.Now))
	channelPresent := p.Contact.For(step.Channel) != ""

	return &model.QueueEntry{
		ProspectID:      p.ID,
		ProspectName:    p.FullName(),
		Company:         p.Company,
		Title:           p.Title,
		OwnerID:         p.OwnerID,
		OwnerName:       p.OwnerName,
		CampaignID:      camp.ID,
		CampaignName:    camp.Name,
		StepIndex:       idx,
		Step:            step,
		Channel:         step.Channel,
		DueAt:           dueAt,
		DueDiffDays:     diff,
		Bucket:          bucket,
		Tokens:          res.Tokens,
		MissingFields:   res.MissingFields,
		ResolvedSubject: res.Subject,
		ResolvedBody:    res.Body,
		ChannelPresent:  channelPresent,
		IsReady:         IsSendReady(channelPresent, res.MissingFields),
		Fallback:        fb,
	}, fb
}

const defaultFallbackWindow = time.Hour

// QueueService loads the review queue for the operator.
type QueueService struct {
	ProspectRepo repository.ProspectRepositoryInterface
	Catalogs     *CatalogService
	Events       queue.Queue
	Logger       *zap.Logger
	ProgramName  string
	Now          func() time.Time
	// FallbackWindow is how long a published fallback is not re-published for
	// the same prospect and reason. Zero means one hour.
	FallbackWindow time.Duration

	mu       sync.Mutex
	reported map[string]time.Time
}

// Load rebuilds the whole queue and reports every fallback it had to take.
func (s *QueueService) Load(ctx context.Context, channel model.Channel) (*model.Queue, error) {
	catalog, err := s.Catalogs.Load(ctx)
	if err != nil {
		return nil, err
	}
	prospects, err := s.ProspectRepo.ListByStatus(ctx, model.StatusSequenceActive)
	if err != nil {
		return nil, err
	}

	q := BuildQueue(prospects, catalog, s.Catalogs, BuildOptions{
		Now:         s.Now(),
		Channel:     channel,
		ProgramName: s.ProgramName,
	})
	for i := range q.Diagnostics {
		s.reportFallback(&q.Diagnostics[i])
	}
	return q, nil
}

// Entry builds the queue entry for a single prospect.
func (s *QueueService) Entry(ctx context.Context, prospectID string) (*model.QueueEntry, *model.Prospect, error) {
	catalog, err := s.Catalogs.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.ProspectRepo.GetByID(ctx, prospectID)
	if err != nil {
		return nil, nil, err
	}
	if p.Status != model.StatusSequenceActive {
		return nil, p, fmt.Errorf("prospect %s is %s: %w", p.ID, p.Status, appErrors.ErrInvalidTransition)
	}
	entry, fb := buildEntry(p, catalog, s.Catalogs, BuildOptions{Now: s.Now(), ProgramName: s.ProgramName})
	if fb != nil {
		s.reportFallback(fb)
	}
	if entry == nil {
		return nil, p, appErrors.NewCampaignNotFound(p.CampaignID)
	}
	return entry, p, nil
}

// shouldPublish records fb and reports whether it is new within the window.
func (s *QueueService) shouldPublish(fb *model.Fallback, now time.Time) bool {
	window := s.FallbackWindow
	if window <= 0 {
		window = defaultFallbackWindow
	}
	key := fmt.Sprintf("%s|%s|%s|%d", fb.ProspectID, fb.Reason, fb.RequestedCampaign, fb.RequestedStep)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reported == nil {
		s.reported = map[string]time.Time{}
	}
	for k, at := range s.reported {
		if now.Sub(at) >= window {
			delete(s.reported, k)
		}
	}
	if _, ok := s.reported[key]; ok {
		return false
	}
	s.reported[key] = now
	return true
}

func (s *QueueService) reportFallback(fb *model.Fallback) {
	now := s.Now()
	if !s.shouldPublish(fb, now) {
		s.Logger.Debug("prospect sequence still on fallback",
			zap.String("prospect_id", fb.ProspectID),
			zap.String("reason", string(fb.Reason)))
		return
	}
	s.Logger.Warn("prospect sequence fell back to a default",
		zap.String("prospect_id", fb.ProspectID),
		zap.String("reason", string(fb.Reason)),
		zap.String("requested_campaign", fb.RequestedCampaign),
		zap.Int("requested_step", fb.RequestedStep),
		zap.String("used_campaign", fb.UsedCampaign),
		zap.Int("used_step", fb.UsedStep))
	if s.Events == nil {
		return
	}
	ev := queue.SequenceEvent{
		Kind:       string(fb.Reason),
		ProspectID: fb.ProspectID,
		CampaignID: fb.UsedCampaign,
		StepIndex:  fb.UsedStep,
		Fallback:   fb,
		At:         now,
	}
	if err := s.Events.Publish(queue.TopicFallback, ev); err != nil {
		s.Logger.Warn("failed to publish fallback event", zap.String("prospect_id", fb.ProspectID), zap.Error(err))
	}
}
