// internal/service/send_pipeline.go
package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/queue"
	"github.com/unclebandit/outreach-engine/internal/repository"
)

// Dispatcher delivers one message on one channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, req model.DispatchRequest) (*model.DispatchResult, error)
}

// ManualDispatcher records touches the operator performs by hand (LinkedIn
// messages, calls). Nothing leaves the system.
type ManualDispatcher struct {
	Logger *zap.Logger
}

func (d *ManualDispatcher) Dispatch(_ context.Context, req model.DispatchRequest) (*model.DispatchResult, error) {
	d.Logger.Info("manual touch logged",
		zap.String("prospect_id", req.ProspectID),
		zap.String("channel", string(req.Channel)),
		zap.String("correlation_id", req.CorrelationID))
	return &model.DispatchResult{
		Success:   true,
		MessageID: req.CorrelationID,
		Message:   fmt.Sprintf("logged %s touch", req.Channel),
	}, nil
}

type SendRequest struct {
	ProspectID        string
	ExpectedStepIndex int
	// Subject and Body override the resolved template when non-empty.
	Subject     string
	Body        string
	IsTest      bool
	Personalize bool
	Operator    model.Operator
}

type SendResult struct {
	CorrelationID        string                `json:"correlation_id"`
	Channel              model.Channel         `json:"channel"`
	To                   string                `json:"to"`
	Subject              string                `json:"subject"`
	Body                 string                `json:"body"`
	Dispatch             *model.DispatchResult `json:"dispatch"`
	Personalized         bool                  `json:"personalized"`
	PersonalizationError string                `json:"personalization_error,omitempty"`
	Advanced             bool                  `json:"advanced"`
	AdvanceError         string                `json:"advance_error,omitempty"`
	Prospect             *model.Prospect       `json:"prospect,omitempty"`
}

// SendPipeline validates, dispatches and then advances one queue entry.
type SendPipeline struct {
	ProspectRepo repository.ProspectRepositoryInterface
	Catalogs     *CatalogService
	Sequence     *SequenceService
	Personalizer *Personalizer
	Claims       repository.SendClaims
	// Dispatchers maps a channel to its transport. Channels without an entry
	// use Manual.
	Dispatchers map[model.Channel]Dispatcher
	Manual      Dispatcher
	Events      queue.Queue
	Logger      *zap.Logger
	ProgramName string
	Now         func() time.Time
}

func (s *SendPipeline) dispatcherFor(ch model.Channel) Dispatcher {
	if d, ok := s.Dispatchers[ch]; ok && d != nil {
		return d
	}
	return s.Manual
}

// Send runs one send. Errors returned before dispatch leave no side effects.
// Once the transport confirms, the result is returned even if advancing the
// sequence fails; that failure is reported in AdvanceError.
func (s *SendPipeline) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	p, err := s.ProspectRepo.GetByID(ctx, req.ProspectID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.Catalogs.Load(ctx)
	if err != nil {
		return nil, err
	}

	op := req.Operator
	if !req.IsTest {
		if p.OwnerID == "" || p.OwnerID != op.ID {
			s.Logger.Warn("send blocked by ownership check",
				zap.String("prospect_id", p.ID),
				zap.String("owner_id", p.OwnerID),
				zap.String("operator_id", op.ID))
			return nil, &appErrors.OwnershipError{ProspectID: p.ID, OwnerName: p.OwnerName, OperatorID: op.ID}
		}
		if p.Status != model.StatusSequenceActive {
			return nil, fmt.Errorf("prospect %s is %s: %w", p.ID, p.Status, appErrors.ErrInvalidTransition)
		}
	}

	now := s.Now()
	camp, idx, _ := s.Catalogs.ResolveStep(catalog, p)
	entry, _ := buildEntry(p, catalog, s.Catalogs, BuildOptions{Now: now, ProgramName: s.ProgramName})
	if camp == nil || entry == nil {
		return nil, appErrors.NewCampaignNotFound(p.CampaignID)
	}
	if idx != req.ExpectedStepIndex {
		return nil, appErrors.ErrStaleProspect
	}

	to := p.Contact.For(entry.Channel)
	if req.IsTest {
		to = strings.TrimSpace(op.Email)
	}
	if to == "" {
		channel := string(entry.Channel)
		if req.IsTest {
			channel = "operator email"
		}
		return nil, &appErrors.MissingChannelError{ProspectID: p.ID, Channel: channel}
	}

	subjectEdited := strings.TrimSpace(req.Subject) != ""
	bodyEdited := strings.TrimSpace(req.Body) != ""
	subject := entry.ResolvedSubject
	if subjectEdited {
		subject = req.Subject
	}
	body := entry.ResolvedBody
	if bodyEdited {
		body = req.Body
	}
	if entry.Channel == model.ChannelVideo && strings.TrimSpace(subject) == "" {
		subject = entry.Step.Name
	}
	if left := s.unresolvedFields(entry, p, now, req, subjectEdited, bodyEdited); len(left) > 0 {
		return nil, &appErrors.UnresolvedFieldsError{Fields: left}
	}

	result := &SendResult{
		CorrelationID: uuid.NewString(),
		Channel:       entry.Channel,
		To:            to,
		Subject:       subject,
		Body:          body,
	}

	if req.Personalize {
		s.personalize(ctx, result, p, entry.Step)
	}

	if !req.IsTest {
		ok, err := s.Claims.Claim(ctx, p.ID, idx, op.ID)
		if err != nil {
			return nil, &appErrors.TransportError{Capability: "send claim", Err: err}
		}
		if !ok {
			return nil, appErrors.ErrSendInFlight
		}
	}

	dreq := model.DispatchRequest{
		ProspectID:    p.ID,
		Channel:       entry.Channel,
		To:            to,
		Subject:       result.Subject,
		Text:          result.Body,
		HTML:          TextToHTML(result.Body),
		IsTest:        req.IsTest,
		ReplyTo:       firstNonEmpty(p.AssignedSenderEmail, op.Email),
		SenderName:    firstNonEmpty(p.AssignedSenderName, op.Name),
		CorrelationID: result.CorrelationID,
	}
	dres, err := s.dispatcherFor(entry.Channel).Dispatch(ctx, dreq)
	if err != nil {
		s.release(p.ID, idx, req.IsTest)
		s.Logger.Error("dispatch failed",
			zap.String("prospect_id", p.ID),
			zap.String("correlation_id", result.CorrelationID),
			zap.Error(err))
		return nil, &appErrors.TransportError{Capability: string(entry.Channel) + " dispatch", Err: err}
	}
	if dres == nil || !dres.Success {
		s.release(p.ID, idx, req.IsTest)
		rejected := &appErrors.DispatchRejectedError{}
		if dres != nil {
			rejected.Blocked = dres.Blocked
			rejected.Message = dres.Message
		}
		s.Logger.Warn("dispatch rejected",
			zap.String("prospect_id", p.ID),
			zap.Bool("blocked", rejected.Blocked),
			zap.String("message", rejected.Message))
		return nil, rejected
	}
	result.Dispatch = dres

	s.Logger.Info("outreach sent",
		zap.String("prospect_id", p.ID),
		zap.Int("step_index", idx),
		zap.String("channel", string(entry.Channel)),
		zap.Bool("test", req.IsTest),
		zap.Bool("simulated", dres.Simulated),
		zap.String("correlation_id", result.CorrelationID))
	s.publishSent(p.ID, idx, entry.Channel, result.CorrelationID, dres.Simulated, req.IsTest, op.ID)

	if req.IsTest {
		return result, nil
	}

	updated, err := s.Sequence.AdvanceResolved(ctx, p, camp, idx, op.ID)
	if err != nil {
		result.AdvanceError = err.Error()
		s.Logger.Error("sent but could not advance sequence",
			zap.String("prospect_id", p.ID),
			zap.String("correlation_id", result.CorrelationID),
			zap.Error(err))
		return result, nil
	}
	result.Advanced = true
	result.Prospect = updated
	return result, nil
}

// unresolvedFields lists the tokens that would go out literally. Only
// template text and operator edits are scanned: prospect values substituted
// into the template may contain brackets of their own.
func (s *SendPipeline) unresolvedFields(entry *model.QueueEntry, p *model.Prospect, now time.Time, req SendRequest, subjectEdited, bodyEdited bool) []string {
	if !subjectEdited && !bodyEdited {
		return entry.MissingFields
	}
	subjectTpl, bodyTpl := entry.Step.Subject, entry.Step.Template
	edited := ""
	if subjectEdited {
		subjectTpl = ""
		edited = req.Subject
	}
	if bodyEdited {
		bodyTpl = ""
		edited += " " + req.Body
	}
	missing := ResolveTemplate(subjectTpl, bodyTpl, AttributesFor(p, s.ProgramName, now)).MissingFields
	return DetectMergeFields(strings.Join(missing, " ") + " " + edited)
}

// personalize swaps in the rewritten content when it is usable. Failures keep
// the original content.
func (s *SendPipeline) personalize(ctx context.Context, result *SendResult, p *model.Prospect, step model.Step) {
	content, err := s.Personalizer.Personalize(ctx, result.Subject, result.Body, p, step)
	if err != nil {
		result.PersonalizationError = err.Error()
		return
	}
	if left := introducedFields(result.Subject+" "+result.Body, content.Subject+" "+content.Body); len(left) > 0 {
		result.PersonalizationError = (&appErrors.UnresolvedFieldsError{Fields: left}).Error()
		return
	}
	if result.Subject != "" {
		result.Subject = content.Subject
	}
	result.Body = content.Body
	result.Personalized = true
}

func (s *SendPipeline) release(prospectID string, idx int, isTest bool) {
	if isTest {
		return
	}
	// The request context may already be cancelled.
	if err := s.Claims.Release(context.Background(), prospectID, idx); err != nil {
		s.Logger.Warn("failed to release send claim", zap.String("prospect_id", prospectID), zap.Error(err))
	}
}

func (s *SendPipeline) publishSent(prospectID string, idx int, ch model.Channel, correlationID string, simulated, isTest bool, actorID string) {
	if s.Events == nil {
		return
	}
	ev := queue.SentEvent{
		ProspectID:    prospectID,
		StepIndex:     idx,
		Channel:       string(ch),
		CorrelationID: correlationID,
		Simulated:     simulated,
		IsTest:        isTest,
		ActorID:       actorID,
		At:            s.Now(),
	}
	if err := s.Events.Publish(queue.TopicSent, ev); err != nil {
		s.Logger.Warn("failed to publish sent event", zap.String("prospect_id", prospectID), zap.Error(err))
	}
}

// TextToHTML escapes plain text and keeps its line breaks.
func TextToHTML(text string) string {
	escaped := html.EscapeString(text)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	return strings.ReplaceAll(escaped, "\n", "<br>")
}

// introducedFields returns the bracketed tokens in after that were not
// already present in before.
func introducedFields(before, after string) []string {
	existing := map[string]bool{}
	for _, f := range DetectMergeFields(before) {
		existing[f] = true
	}
	out := []string{}
	for _, f := range DetectMergeFields(after) {
		if !existing[f] {
			out = append(out, f)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
