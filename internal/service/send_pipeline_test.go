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

func sendReq(step int) service.SendRequest {
	return service.SendRequest{ProspectID: "p-ada", ExpectedStepIndex: step, Operator: operator}
}

func TestSendAdvancesCampaignOneSequence(t *testing.T) {
	h := newHarness(adaProspect())
	ctx := context.Background()

	q, err := h.queueService.Load(ctx, "")
	require.NoError(t, err)
	require.Len(t, q.Overdue, 1)
	entry := q.Overdue[0]
	assert.Equal(t, 0, entry.StepIndex)
	assert.True(t, entry.IsReady)

	res, err := h.pipeline.Send(ctx, sendReq(entry.StepIndex))
	require.NoError(t, err)
	assert.True(t, res.Advanced)
	assert.Empty(t, res.AdvanceError)
	assert.Equal(t, "ada@example.com", res.To)

	require.Equal(t, 1, h.mailer.Calls())
	sent := h.mailer.requests[0]
	assert.Equal(t, "Invitation: Private Leader Circle for Analytical Engines", sent.Subject)
	assert.Contains(t, sent.HTML, "Hi Ada,<br><br>")
	assert.Equal(t, res.CorrelationID, sent.CorrelationID)
	assert.False(t, sent.IsTest)

	stored := h.prospects.Get("p-ada")
	assert.Equal(t, 1, stored.CurrentStepIndex)
	assert.Equal(t, *daysFromNow(3), *stored.NextActionAt)
	require.NotNil(t, stored.LastContactedAt)

	history, err := h.sequenceService.History(ctx, "p-ada", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Completed Step 1: Private Invite: Leader Circle", history[0].Action)

	_, err = h.pipeline.Send(ctx, sendReq(entry.StepIndex))
	assert.ErrorIs(t, err, appErrors.ErrStaleProspect)
	assert.Equal(t, 1, h.mailer.Calls())
	assert.Equal(t, []string{queue.TopicSent, queue.TopicAdvanced}, h.events.Topics())
}

func TestSendLastStepCompletesSequence(t *testing.T) {
	p := adaProspect()
	p.CurrentStepIndex = 3
	h := newHarness(p)
	ctx := context.Background()

	res, err := h.pipeline.Send(ctx, sendReq(3))
	require.NoError(t, err)
	assert.Equal(t, model.StatusSequenceCompleted, res.Prospect.Status)
	assert.Equal(t, 1, h.manual.Calls(), "calls are logged as manual touches")
	assert.Equal(t, 0, h.mailer.Calls())

	q, err := h.queueService.Load(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, q.Find("p-ada"))
}

func TestSendOwnershipMismatchHasNoSideEffects(t *testing.T) {
	unowned := adaProspect()
	unowned.OwnerID = ""

	for _, p := range []*model.Prospect{adaProspect(), unowned} {
		h := newHarness(p)
		req := sendReq(0)
		req.Operator = model.Operator{ID: "op-2", Email: "other@example.com"}

		_, err := h.pipeline.Send(context.Background(), req)
		var owner *appErrors.OwnershipError
		require.ErrorAs(t, err, &owner)
		assert.Equal(t, 0, h.mailer.Calls())
		assert.Empty(t, h.prospects.transitions)
		assert.Empty(t, h.events.Topics())
	}
}

func TestTestSendGoesToOperatorAndNeverAdvances(t *testing.T) {
	h := newHarness(adaProspect())
	req := sendReq(0)
	req.IsTest = true
	req.Operator = model.Operator{ID: "op-2", Name: "Tester", Email: "tester@example.com"}

	res, err := h.pipeline.Send(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.Equal(t, "tester@example.com", h.mailer.requests[0].To)
	assert.True(t, h.mailer.requests[0].IsTest)
	assert.Equal(t, 0, h.prospects.Get("p-ada").CurrentStepIndex)
	assert.Empty(t, h.prospects.transitions)

	res, err = h.pipeline.Send(context.Background(), req)
	require.NoError(t, err, "test sends take no claim")
	assert.NotEmpty(t, res.CorrelationID)
}

func TestSendMissingChannel(t *testing.T) {
	p := adaProspect()
	p.CurrentStepIndex = 1
	p.Contact.LinkedIn = ""
	h := newHarness(p)

	_, err := h.pipeline.Send(context.Background(), sendReq(1))
	var missing *appErrors.MissingChannelError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "linkedin", missing.Channel)
	assert.Equal(t, 0, h.manual.Calls())
}

func TestSendBlocksUnresolvedFieldsUnlessOverridden(t *testing.T) {
	p := adaProspect()
	p.Company = ""
	h := newHarness(p)

	_, err := h.pipeline.Send(context.Background(), sendReq(0))
	var unresolved *appErrors.UnresolvedFieldsError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, []string{"[Company]"}, unresolved.Fields)
	assert.Equal(t, 0, h.mailer.Calls())

	req := sendReq(0)
	req.Subject = "Invitation: Private Leader Circle"
	req.Body = "Hi Ada, would love your perspective."
	res, err := h.pipeline.Send(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Hi Ada, would love your perspective.", h.mailer.requests[0].Text)
	assert.True(t, res.Advanced)
}

func TestSendAllowsBracketsInProspectValues(t *testing.T) {
	p := adaProspect()
	p.Company = "Acme [EU]"
	h := newHarness(p)
	ctx := context.Background()

	q, err := h.queueService.Load(ctx, "")
	require.NoError(t, err)
	require.Len(t, q.Overdue, 1)
	assert.True(t, q.Overdue[0].IsReady)
	assert.Empty(t, q.Overdue[0].MissingFields)

	res, err := h.pipeline.Send(ctx, sendReq(0))
	require.NoError(t, err)
	assert.True(t, res.Advanced)
	assert.Equal(t, "Invitation: Private Leader Circle for Acme [EU]", h.mailer.requests[0].Subject)
}

func TestSendChecksOnlyEditedTextAndUneditedTemplate(t *testing.T) {
	p := adaProspect()
	p.Company = "Acme [EU]"
	h := newHarness(p)

	req := sendReq(0)
	req.Body = "Hi Ada, see you [Day]?"
	_, err := h.pipeline.Send(context.Background(), req)
	var unresolved *appErrors.UnresolvedFieldsError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, []string{"[Day]"}, unresolved.Fields)
	assert.Equal(t, 0, h.mailer.Calls())

	p2 := adaProspect()
	p2.Company = ""
	h2 := newHarness(p2)
	req = sendReq(0)
	req.Body = "Hi Ada, would love your perspective."
	_, err = h2.pipeline.Send(context.Background(), req)
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, []string{"[Company]"}, unresolved.Fields)
}

func TestSendTransportErrorReleasesClaim(t *testing.T) {
	h := newHarness(adaProspect())
	h.mailer.err = errors.New("smtp: 421 try later")

	_, err := h.pipeline.Send(context.Background(), sendReq(0))
	var transport *appErrors.TransportError
	require.ErrorAs(t, err, &transport)
	assert.ErrorContains(t, err, "421 try later")
	assert.Empty(t, h.prospects.transitions)

	h.mailer.err = nil
	res, err := h.pipeline.Send(context.Background(), sendReq(0))
	require.NoError(t, err)
	assert.True(t, res.Advanced)
}

func TestSendRejectedByTransport(t *testing.T) {
	h := newHarness(adaProspect())
	h.mailer.result = &model.DispatchResult{Success: false, Blocked: true, Message: "recipient has unsubscribed"}

	_, err := h.pipeline.Send(context.Background(), sendReq(0))
	var rejected *appErrors.DispatchRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.True(t, rejected.Blocked)
	assert.Equal(t, 0, h.prospects.Get("p-ada").CurrentStepIndex)
}

func TestSendInFlightClaimBlocksDuplicate(t *testing.T) {
	h := newHarness(adaProspect())
	ok, err := h.claims.Claim(context.Background(), "p-ada", 0, "op-other")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.pipeline.Send(context.Background(), sendReq(0))
	assert.ErrorIs(t, err, appErrors.ErrSendInFlight)
	assert.Equal(t, 0, h.mailer.Calls())
}

func TestSendReportsAdvanceFailureAfterDispatch(t *testing.T) {
	h := newHarness(adaProspect())
	h.prospects.applyErr = errors.New("connection reset")

	res, err := h.pipeline.Send(context.Background(), sendReq(0))
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.Contains(t, res.AdvanceError, "connection reset")
	assert.Equal(t, 1, h.mailer.Calls())
}

func TestSendWithPersonalization(t *testing.T) {
	h := newHarness(adaProspect())
	h.rewriter.response = "SUBJECT: Ada, a seat for you\n---\nBODY:\nHi Ada,\nSaved you a seat."
	req := sendReq(0)
	req.Personalize = true

	res, err := h.pipeline.Send(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Personalized)
	assert.Equal(t, "Ada, a seat for you", h.mailer.requests[0].Subject)
	assert.Equal(t, "Hi Ada,\nSaved you a seat.", h.mailer.requests[0].Text)
	require.Len(t, h.rewriter.prompts, 1)
	assert.Contains(t, h.rewriter.prompts[0], "The 'No Ask' Invitation")
}

func TestSendPersonalizationFailureKeepsOriginal(t *testing.T) {
	h := newHarness(adaProspect())
	h.rewriter.err = errors.New("quota exceeded")
	req := sendReq(0)
	req.Personalize = true

	res, err := h.pipeline.Send(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Personalized)
	assert.Contains(t, res.PersonalizationError, "quota exceeded")
	assert.Equal(t, "Invitation: Private Leader Circle for Analytical Engines", h.mailer.requests[0].Subject)

	h2 := newHarness(adaProspect())
	h2.rewriter.response = "SUBJECT: Hi [First Name]\nBODY: hello"
	res, err = h2.pipeline.Send(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Personalized)
	assert.Contains(t, res.PersonalizationError, "[First Name]")
}

func TestTextToHTMLEscapes(t *testing.T) {
	assert.Equal(t, "a &lt;b&gt;<br>c", service.TextToHTML("a <b>\r\nc"))
}
