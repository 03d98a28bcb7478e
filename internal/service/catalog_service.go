// internal/service/catalog_service.go
package service

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/repository"
)

//go:embed default_campaigns.yaml
var defaultCampaignsYAML []byte

// DefaultCatalog returns a fresh copy of the built-in campaigns.
func DefaultCatalog() *model.Catalog {
	var c model.Catalog
	if err := yaml.Unmarshal(defaultCampaignsYAML, &c); err != nil {
		panic(fmt.Sprintf("invalid built-in campaigns: %v", err))
	}
	c.BuiltIn = true
	return &c
}

type CatalogService struct {
	Repo              repository.CatalogRepositoryInterface
	Logger            *zap.Logger
	DefaultCampaignID string
}

// Load returns the saved catalog, or the built-in one when nothing has been
// saved or the store cannot be read.
func (s *CatalogService) Load(ctx context.Context) (*model.Catalog, error) {
	c, err := s.Repo.Load(ctx)
	if err == nil {
		return c, nil
	}
	if errors.Is(err, repository.ErrCatalogNotFound) {
		return DefaultCatalog(), nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	s.Logger.Warn("could not load custom campaigns, using defaults", zap.Error(err))
	return DefaultCatalog(), nil
}

// ResolveStep finds the campaign and step a prospect is on. Missing
// campaigns fall back to the default campaign, first from c and then from
// the built-in catalog; out-of-range indices fall back to step 0.
func (s *CatalogService) ResolveStep(c *model.Catalog, p *model.Prospect) (*model.Campaign, int, *model.Fallback) {
	camp, idx, fb := c.Lookup(p.CampaignID, p.CurrentStepIndex, s.DefaultCampaignID)
	if camp == nil && !c.BuiltIn {
		camp, idx, _ = DefaultCatalog().Lookup(s.DefaultCampaignID, p.CurrentStepIndex, s.DefaultCampaignID)
		if camp != nil {
			fb = &model.Fallback{
				Reason:            model.FallbackCampaignMissing,
				RequestedCampaign: p.CampaignID,
				RequestedStep:     p.CurrentStepIndex,
				UsedCampaign:      camp.ID,
				UsedStep:          idx,
			}
		}
	}
	if fb != nil {
		fb.ProspectID = p.ID
	}
	return camp, idx, fb
}

// Edit starts an editing session on a private copy of c.
func (s *CatalogService) Edit(c *model.Catalog) *CatalogEditor {
	return &CatalogEditor{catalog: c.Clone()}
}

// Save validates the edited catalog and overwrites the stored document if
// nobody else saved since it was loaded.
func (s *CatalogService) Save(ctx context.Context, ed *CatalogEditor, op model.Operator) (*model.Catalog, error) {
	c := ed.Catalog()
	if err := ValidateCatalog(c); err != nil {
		return nil, err
	}
	if err := s.Repo.Save(ctx, c, op.ID); err != nil {
		return nil, err
	}
	s.Logger.Info("campaign catalog saved",
		zap.Int("version", c.Version),
		zap.String("operator_id", op.ID),
		zap.Int("campaigns", len(c.Campaigns)))
	return c, nil
}

// ValidateCatalog checks the invariants every saved catalog must hold.
func ValidateCatalog(c *model.Catalog) error {
	problems := []string{}
	ids := make([]string, 0, len(c.Campaigns))
	for id := range c.Campaigns {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		camp := c.Campaigns[id]
		if strings.TrimSpace(id) == "" {
			problems = append(problems, "campaign with empty id")
			continue
		}
		if camp == nil {
			problems = append(problems, fmt.Sprintf("campaign %s is empty", id))
			continue
		}
		if camp.ID != id {
			problems = append(problems, fmt.Sprintf("campaign %s has mismatched id %q", id, camp.ID))
		}
		if strings.TrimSpace(camp.Name) == "" {
			problems = append(problems, fmt.Sprintf("campaign %s has no name", id))
		}
		prevDay := 0
		for i, step := range camp.Steps {
			where := fmt.Sprintf("campaign %s step %d", id, i)
			if !step.Channel.Valid() {
				problems = append(problems, fmt.Sprintf("%s has unknown channel %q", where, step.Channel))
			}
			if step.Day < 0 {
				problems = append(problems, where+" has a negative day offset")
			}
			if i > 0 && step.Day < prevDay {
				problems = append(problems, fmt.Sprintf("%s is scheduled before the previous step (day %d < %d)", where, step.Day, prevDay))
			}
			prevDay = step.Day
			hasSubject := strings.TrimSpace(step.Subject) != ""
			if step.Channel == model.ChannelEmail && !hasSubject {
				problems = append(problems, where+" is an email without a subject")
			}
			if step.Channel != model.ChannelEmail && step.Channel != model.ChannelVideo && hasSubject {
				problems = append(problems, fmt.Sprintf("%s is a %s step and cannot have a subject", where, step.Channel))
			}
		}
	}

	if len(problems) > 0 {
		return &appErrors.CatalogValidationError{Problems: problems}
	}
	return nil
}

// CatalogEditor collects edits on a cloned catalog until Save.
type CatalogEditor struct {
	catalog *model.Catalog
}

func (e *CatalogEditor) Catalog() *model.Catalog {
	return e.catalog
}

func (e *CatalogEditor) campaign(id string) (*model.Campaign, error) {
	camp := e.catalog.Campaigns[id]
	if camp == nil {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return camp, nil
}

func (e *CatalogEditor) checkIndex(camp *model.Campaign, i int) error {
	if i < 0 || i >= len(camp.Steps) {
		return fmt.Errorf("campaign %s has no step %d", camp.ID, i)
	}
	return nil
}

// UpsertCampaign replaces or adds a whole campaign.
func (e *CatalogEditor) UpsertCampaign(c *model.Campaign) error {
	if c == nil || strings.TrimSpace(c.ID) == "" {
		return errors.New("campaign id is required")
	}
	if e.catalog.Campaigns == nil {
		e.catalog.Campaigns = map[string]*model.Campaign{}
	}
	e.catalog.Campaigns[c.ID] = c.Clone()
	return nil
}

func (e *CatalogEditor) RemoveCampaign(id string) error {
	if _, err := e.campaign(id); err != nil {
		return err
	}
	delete(e.catalog.Campaigns, id)
	return nil
}

// AddStep appends a step to the end of a campaign.
func (e *CatalogEditor) AddStep(campaignID string, step model.Step) error {
	camp, err := e.campaign(campaignID)
	if err != nil {
		return err
	}
	camp.Steps = append(camp.Steps, step)
	return nil
}

func (e *CatalogEditor) UpdateStep(campaignID string, i int, step model.Step) error {
	camp, err := e.campaign(campaignID)
	if err != nil {
		return err
	}
	if err := e.checkIndex(camp, i); err != nil {
		return err
	}
	camp.Steps[i] = step
	return nil
}

// RemoveStep deletes a step. Prospects pointing past the new end are not
// repaired here; the queue clamps them at read time.
func (e *CatalogEditor) RemoveStep(campaignID string, i int) error {
	camp, err := e.campaign(campaignID)
	if err != nil {
		return err
	}
	if err := e.checkIndex(camp, i); err != nil {
		return err
	}
	camp.Steps = append(camp.Steps[:i], camp.Steps[i+1:]...)
	return nil
}

// MoveStep moves the step at from to position to.
func (e *CatalogEditor) MoveStep(campaignID string, from, to int) error {
	camp, err := e.campaign(campaignID)
	if err != nil {
		return err
	}
	if err := e.checkIndex(camp, from); err != nil {
		return err
	}
	if err := e.checkIndex(camp, to); err != nil {
		return err
	}
	step := camp.Steps[from]
	camp.Steps = append(camp.Steps[:from], camp.Steps[from+1:]...)
	camp.Steps = append(camp.Steps[:to], append([]model.Step{step}, camp.Steps[to:]...)...)
	return nil
}

// SetChannel changes a step's channel. Switching away from email drops the
// subject.
func (e *CatalogEditor) SetChannel(campaignID string, i int, ch model.Channel) error {
	if !ch.Valid() {
		return fmt.Errorf("unknown channel %q", ch)
	}
	camp, err := e.campaign(campaignID)
	if err != nil {
		return err
	}
	if err := e.checkIndex(camp, i); err != nil {
		return err
	}
	camp.Steps[i].Channel = ch
	if ch != model.ChannelEmail && ch != model.ChannelVideo {
		camp.Steps[i].Subject = ""
	}
	return nil
}
