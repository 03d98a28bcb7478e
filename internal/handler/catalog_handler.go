// internal/handler/catalog_handler.go
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/service"
)

// CatalogHandler serves the campaign catalog editor.
type CatalogHandler struct {
	Catalogs *service.CatalogService
	Logger   *zap.Logger
}

// GetCatalogHandler returns the catalog in effect, built-in or saved.
func (h *CatalogHandler) GetCatalogHandler(w http.ResponseWriter, r *http.Request) {
	c, err := h.Catalogs.Load(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, c)
}

// PutCatalogHandler replaces the whole catalog. The body must carry the
// version it was loaded at.
func (h *CatalogHandler) PutCatalogHandler(w http.ResponseWriter, r *http.Request) {
	var payload model.Catalog
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		BadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if payload.Campaigns == nil {
		payload.Campaigns = map[string]*model.Campaign{}
	}

	saved, err := h.Catalogs.Save(r.Context(), h.Catalogs.Edit(&payload), OperatorFrom(r.Context()))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, saved)
}

// PutCampaignHandler adds or replaces one campaign. The version query
// parameter, when given, must match the stored catalog.
func (h *CatalogHandler) PutCampaignHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var payload struct {
		Version  *int           `json:"version"`
		Campaign model.Campaign `json:"campaign"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		BadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if payload.Campaign.ID == "" {
		payload.Campaign.ID = id
	}
	if payload.Campaign.ID != id {
		BadRequest(w, "campaign id does not match the URL")
		return
	}

	current, err := h.Catalogs.Load(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	if payload.Version != nil {
		current.Version = *payload.Version
	}

	ed := h.Catalogs.Edit(current)
	if err := ed.UpsertCampaign(&payload.Campaign); err != nil {
		BadRequest(w, err.Error())
		return
	}
	saved, err := h.Catalogs.Save(r.Context(), ed, OperatorFrom(r.Context()))
	if err != nil {
		WriteError(w, err)
		return
	}
	h.Logger.Info("campaign updated", zap.String("campaign_id", id), zap.Int("version", saved.Version))
	WriteJSON(w, http.StatusOK, saved)
}
