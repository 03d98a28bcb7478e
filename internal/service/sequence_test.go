package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/queue"
	"github.com/unclebandit/outreach-engine/internal/service"
)

func TestPlanAdvanceMovesByDayDelta(t *testing.T) {
	camp := service.DefaultCatalog().Campaigns["c1"]
	p := adaProspect()
	p.CurrentStepIndex = 1

	tr, err := service.PlanAdvance(p, camp, 1, testNow, "op-1")
	require.NoError(t, err)
	assert.Equal(t, model.TransitionAdvance, tr.Kind)
	assert.Equal(t, 1, tr.ExpectedStepIndex)
	assert.Equal(t, 2, tr.NewStepIndex)
	assert.Equal(t, *daysFromNow(4), *tr.NextActionAt)
	require.Len(t, tr.History, 1)
	assert.Equal(t, "Completed Step 2: Connect + Mention Invite", tr.History[0].Action)
}

func TestPlanAdvanceCompletesAfterLastStep(t *testing.T) {
	camp := service.DefaultCatalog().Campaigns["c1"]
	p := adaProspect()
	p.CurrentStepIndex = 3

	tr, err := service.PlanAdvance(p, camp, 3, testNow, "op-1")
	require.NoError(t, err)
	assert.Equal(t, model.TransitionComplete, tr.Kind)
	assert.Equal(t, model.StatusSequenceCompleted, tr.NewStatus)
	assert.Equal(t, 3, tr.NewStepIndex)
	require.NotNil(t, tr.CompletedAt)
	assert.Equal(t, "Sequence completed", tr.History[1].Action)
}

func TestPlanRejectsInactiveProspects(t *testing.T) {
	p := adaProspect()
	p.Status = model.StatusReplied

	_, err := service.PlanSkip(p, testNow, "op-1")
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	_, err = service.PlanReply(p, testNow, "op-1")
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	_, err = service.PlanEnroll(p, service.DefaultCatalog().Campaigns["c2"], testNow, "op-1")
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
}

func TestSkipDelaysByOneDay(t *testing.T) {
	h := newHarness(adaProspect())

	p, err := h.sequenceService.Skip(context.Background(), "p-ada", operator)
	require.NoError(t, err)
	assert.Equal(t, *daysFromNow(-1), *p.NextActionAt)
	assert.Equal(t, 0, p.CurrentStepIndex)

	history, err := h.sequenceService.History(context.Background(), "p-ada", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Step 1 delayed by 1 day", history[0].Action)
	assert.Equal(t, "op-1", history[0].ActorID)
	assert.Equal(t, []string{queue.TopicSkipped}, h.events.Topics())
}

func TestSkipWithoutDueDateStartsFromNow(t *testing.T) {
	p := adaProspect()
	p.NextActionAt = nil
	h := newHarness(p)

	updated, err := h.sequenceService.Skip(context.Background(), "p-ada", operator)
	require.NoError(t, err)
	assert.Equal(t, *daysFromNow(1), *updated.NextActionAt)
}

func TestMarkRepliedIsTerminal(t *testing.T) {
	h := newHarness(adaProspect())
	ctx := context.Background()

	p, err := h.sequenceService.MarkReplied(ctx, "p-ada", operator)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReplied, p.Status)
	assert.Equal(t, *daysFromNow(-2), *p.NextActionAt)
	require.NotNil(t, p.RepliedAt)

	_, err = h.sequenceService.Skip(ctx, "p-ada", operator)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	_, err = h.sequenceService.Enroll(ctx, "p-ada", "c2", operator)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	q, err := h.queueService.Load(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, q.Entries())
}

func TestEnrollStartsAtFirstStep(t *testing.T) {
	p := adaProspect()
	p.Status = "new"
	p.CampaignID = ""
	p.NextActionAt = nil
	h := newHarness(p)

	updated, err := h.sequenceService.Enroll(context.Background(), "p-ada", "c2", operator)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSequenceActive, updated.Status)
	assert.Equal(t, "c2", updated.CampaignID)
	assert.Equal(t, 0, updated.CurrentStepIndex)
	assert.Equal(t, testNow, *updated.NextActionAt)
	assert.Equal(t, []string{queue.TopicEnrolled}, h.events.Topics())

	_, err = h.sequenceService.Enroll(context.Background(), "p-ada", "nope", operator)
	var nf *appErrors.ErrCampaignNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestAdvanceRejectsStaleStep(t *testing.T) {
	h := newHarness(adaProspect())

	_, err := h.sequenceService.Advance(context.Background(), "p-ada", 1, operator)
	assert.ErrorIs(t, err, appErrors.ErrStaleProspect)
	assert.Empty(t, h.prospects.transitions)
}

func TestAdvanceLosesRaceWithConcurrentWrite(t *testing.T) {
	h := newHarness(adaProspect())
	ctx := context.Background()
	camp := service.DefaultCatalog().Campaigns["c1"]

	stale := h.prospects.Get("p-ada")
	_, err := h.sequenceService.AdvanceResolved(ctx, h.prospects.Get("p-ada"), camp, 0, "op-1")
	require.NoError(t, err)

	_, err = h.sequenceService.AdvanceResolved(ctx, stale, camp, 0, "op-2")
	assert.ErrorIs(t, err, appErrors.ErrStaleProspect)
	assert.Equal(t, 1, h.prospects.Get("p-ada").CurrentStepIndex)
	assert.Len(t, h.prospects.transitions, 1)
}

func TestTransitionErrorsAreWrapped(t *testing.T) {
	h := newHarness(adaProspect())
	h.prospects.applyErr = errors.New("db down")

	_, err := h.sequenceService.Skip(context.Background(), "p-ada", operator)
	assert.ErrorContains(t, err, "db down")
	assert.Empty(t, h.events.Topics())
}
