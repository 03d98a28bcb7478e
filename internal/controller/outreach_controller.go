// internal/controller/outreach_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/outreach-engine/internal/handler"
	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/service"
)

type OutreachController struct {
	Queue        *service.QueueService
	Sequence     *service.SequenceService
	Pipeline     *service.SendPipeline
	Personalizer *service.Personalizer
	Logger       *zap.Logger
}

// decodeOptional decodes a JSON body that may be empty.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (c *OutreachController) GetQueue(w http.ResponseWriter, r *http.Request) {
	channel := model.Channel(r.URL.Query().Get("channel"))
	if channel != "" && !channel.Valid() {
		handler.BadRequest(w, "unknown channel "+strconv.Quote(string(channel)))
		return
	}

	q, err := c.Queue.Load(r.Context(), channel)
	if err != nil {
		c.Logger.Error("failed to load queue", zap.Error(err))
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, q)
}

func (c *OutreachController) Send(w http.ResponseWriter, r *http.Request) {
	var body struct {
		StepIndex   *int   `json:"step_index"`
		Subject     string `json:"subject"`
		Body        string `json:"body"`
		IsTest      bool   `json:"is_test"`
		Personalize bool   `json:"personalize"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		handler.BadRequest(w, "invalid body: "+err.Error())
		return
	}
	if body.StepIndex == nil {
		handler.BadRequest(w, "step_index is required")
		return
	}

	res, err := c.Pipeline.Send(r.Context(), service.SendRequest{
		ProspectID:        chi.URLParam(r, "id"),
		ExpectedStepIndex: *body.StepIndex,
		Subject:           body.Subject,
		Body:              body.Body,
		IsTest:            body.IsTest,
		Personalize:       body.Personalize,
		Operator:          handler.OperatorFrom(r.Context()),
	})
	if err != nil {
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, res)
}

func (c *OutreachController) Skip(w http.ResponseWriter, r *http.Request) {
	p, err := c.Sequence.Skip(r.Context(), chi.URLParam(r, "id"), handler.OperatorFrom(r.Context()))
	if err != nil {
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, p)
}

func (c *OutreachController) MarkReplied(w http.ResponseWriter, r *http.Request) {
	p, err := c.Sequence.MarkReplied(r.Context(), chi.URLParam(r, "id"), handler.OperatorFrom(r.Context()))
	if err != nil {
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, p)
}

func (c *OutreachController) Enroll(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CampaignID string `json:"campaign_id"`
	}
	if err := decodeOptional(r, &body); err != nil {
		handler.BadRequest(w, "invalid body: "+err.Error())
		return
	}
	p, err := c.Sequence.Enroll(r.Context(), chi.URLParam(r, "id"), body.CampaignID, handler.OperatorFrom(r.Context()))
	if err != nil {
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, p)
}

// Personalize previews an AI rewrite of the prospect's current step without
// sending anything.
func (c *OutreachController) Personalize(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := decodeOptional(r, &body); err != nil {
		handler.BadRequest(w, "invalid body: "+err.Error())
		return
	}

	entry, p, err := c.Queue.Entry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handler.WriteError(w, err)
		return
	}
	subject, text := entry.ResolvedSubject, entry.ResolvedBody
	if body.Subject != "" {
		subject = body.Subject
	}
	if body.Body != "" {
		text = body.Body
	}

	content, err := c.Personalizer.Personalize(r.Context(), subject, text, p, entry.Step)
	if err != nil {
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{
		"prospect_id":      p.ID,
		"step_index":       entry.StepIndex,
		"original_subject": subject,
		"original_body":    text,
		"personalized":     content,
		"remaining_fields": service.DetectMergeFields(content.Subject + " " + content.Body),
	})
}

func (c *OutreachController) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := c.Sequence.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		handler.WriteError(w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"data": entries})
}
