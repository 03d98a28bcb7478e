package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/service"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	c := service.DefaultCatalog()

	require.NoError(t, service.ValidateCatalog(c))
	assert.True(t, c.BuiltIn)
	assert.Len(t, c.Campaigns, 3)

	c1 := c.Campaigns["c1"]
	require.NotNil(t, c1)
	days := []int{}
	for _, s := range c1.Steps {
		days = append(days, s.Day)
	}
	assert.Equal(t, []int{0, 3, 7, 12}, days)
	assert.Equal(t, model.ChannelLinkedIn, c1.Steps[1].Channel)
	require.NotNil(t, c1.Steps[0].Rationale)
}

func TestCatalogLoadFallsBackToDefaults(t *testing.T) {
	svc := &service.CatalogService{Repo: &MockCatalogRepo{}, Logger: zap.NewNop(), DefaultCampaignID: "c1"}
	c, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, c.BuiltIn)

	svc.Repo = &MockCatalogRepo{loadErr: errors.New("connection refused")}
	c, err = svc.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, c.BuiltIn)
}

func TestResolveStepFallbacks(t *testing.T) {
	svc := &service.CatalogService{Repo: &MockCatalogRepo{}, Logger: zap.NewNop(), DefaultCampaignID: "c1"}
	catalog := service.DefaultCatalog()

	p := adaProspect()
	camp, idx, fb := svc.ResolveStep(catalog, p)
	assert.Equal(t, "c1", camp.ID)
	assert.Equal(t, 0, idx)
	assert.Nil(t, fb)

	p.CampaignID = "gone"
	p.CurrentStepIndex = 2
	camp, idx, fb = svc.ResolveStep(catalog, p)
	require.NotNil(t, fb)
	assert.Equal(t, "c1", camp.ID)
	assert.Equal(t, 2, idx)
	assert.Equal(t, model.FallbackCampaignMissing, fb.Reason)
	assert.Equal(t, "p-ada", fb.ProspectID)

	p.CampaignID = "c3"
	p.CurrentStepIndex = 9
	camp, idx, fb = svc.ResolveStep(catalog, p)
	require.NotNil(t, fb)
	assert.Equal(t, "c3", camp.ID)
	assert.Equal(t, 0, idx)
	assert.Equal(t, model.FallbackStepOutOfRange, fb.Reason)
	assert.Equal(t, 9, fb.RequestedStep)
}

func TestResolveStepUsesBuiltInDefaultWhenCustomCatalogLacksIt(t *testing.T) {
	svc := &service.CatalogService{Repo: &MockCatalogRepo{}, Logger: zap.NewNop(), DefaultCampaignID: "c1"}
	custom := &model.Catalog{Version: 3, Campaigns: map[string]*model.Campaign{
		"x": {ID: "x", Name: "X", Steps: []model.Step{{Day: 0, Channel: model.ChannelCall, Name: "Call"}}},
	}}

	p := adaProspect()
	p.CampaignID = "missing"
	camp, _, fb := svc.ResolveStep(custom, p)
	require.NotNil(t, camp)
	assert.Equal(t, "c1", camp.ID)
	require.NotNil(t, fb)
	assert.Equal(t, "missing", fb.RequestedCampaign)
	assert.Equal(t, "c1", fb.UsedCampaign)
}

func TestValidateCatalogReportsProblems(t *testing.T) {
	c := &model.Catalog{Campaigns: map[string]*model.Campaign{
		"a": {ID: "a", Name: "A", Steps: []model.Step{
			{Day: 2, Channel: model.ChannelEmail, Name: "no subject"},
			{Day: 1, Channel: model.ChannelLinkedIn, Name: "early", Subject: "nope"},
			{Day: 3, Channel: "fax", Name: "fax"},
		}},
		"b": {ID: "other", Name: ""},
	}}

	err := service.ValidateCatalog(c)
	var verr *appErrors.CatalogValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 6)
}

func TestCatalogEditorAndCompareAndSwap(t *testing.T) {
	repo := &MockCatalogRepo{}
	svc := &service.CatalogService{Repo: repo, Logger: zap.NewNop(), DefaultCampaignID: "c1"}
	ctx := context.Background()

	loaded, err := svc.Load(ctx)
	require.NoError(t, err)

	first := svc.Edit(loaded)
	second := svc.Edit(loaded)

	require.NoError(t, first.AddStep("c3", model.Step{Day: 9, Channel: model.ChannelCall, Name: "Follow-up call"}))
	require.NoError(t, first.SetChannel("c3", 0, model.ChannelLinkedIn))
	assert.Empty(t, first.Catalog().Campaigns["c3"].Steps[0].Subject)
	assert.Len(t, loaded.Campaigns["c3"].Steps, 2, "editing must not touch the loaded catalog")

	saved, err := svc.Save(ctx, first, operator)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Version)

	require.NoError(t, second.RemoveCampaign("c2"))
	_, err = svc.Save(ctx, second, operator)
	assert.ErrorIs(t, err, appErrors.ErrCatalogConflict)
	assert.Equal(t, 1, repo.saves)
}

func TestCatalogEditorMoveAndRemoveSteps(t *testing.T) {
	svc := &service.CatalogService{Repo: &MockCatalogRepo{}, Logger: zap.NewNop()}
	ed := svc.Edit(service.DefaultCatalog())

	require.NoError(t, ed.MoveStep("c1", 3, 1))
	names := []string{}
	for _, s := range ed.Catalog().Campaigns["c1"].Steps {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Private Invite: Leader Circle", "Brief 5-min intro", "Connect + Mention Invite", `Send "Culture Audit" PDF`}, names)

	require.NoError(t, ed.RemoveStep("c1", 1))
	assert.Len(t, ed.Catalog().Campaigns["c1"].Steps, 3)
	assert.Error(t, ed.RemoveStep("c1", 7))

	var nf *appErrors.ErrCampaignNotFound
	assert.ErrorAs(t, ed.AddStep("nope", model.Step{}), &nf)
}
