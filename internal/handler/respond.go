// internal/handler/respond.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
)

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Fields  []string `json:"fields,omitempty"`
	Blocked bool     `json:"blocked,omitempty"`
}

// StatusFor maps an engine error onto an HTTP status and a stable code.
func StatusFor(err error) (int, string) {
	var (
		prospectNF *appErrors.ErrProspectNotFound
		campaignNF *appErrors.ErrCampaignNotFound
		owner      *appErrors.OwnershipError
		channel    *appErrors.MissingChannelError
		unresolved *appErrors.UnresolvedFieldsError
		invalid    *appErrors.CatalogValidationError
		rejected   *appErrors.DispatchRejectedError
		transport  *appErrors.TransportError
		parse      *appErrors.ParseError
	)
	switch {
	case errors.As(err, &prospectNF):
		return http.StatusNotFound, "prospect_not_found"
	case errors.As(err, &campaignNF):
		return http.StatusNotFound, "campaign_not_found"
	case errors.As(err, &owner):
		return http.StatusForbidden, "not_owner"
	case errors.Is(err, appErrors.ErrStaleProspect):
		return http.StatusConflict, "stale_prospect"
	case errors.Is(err, appErrors.ErrCatalogConflict):
		return http.StatusConflict, "catalog_conflict"
	case errors.Is(err, appErrors.ErrSendInFlight):
		return http.StatusConflict, "send_in_flight"
	case errors.Is(err, appErrors.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.As(err, &channel):
		return http.StatusUnprocessableEntity, "missing_channel"
	case errors.As(err, &unresolved):
		return http.StatusUnprocessableEntity, "unresolved_fields"
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity, "invalid_catalog"
	case errors.As(err, &rejected):
		return http.StatusUnprocessableEntity, "dispatch_rejected"
	case errors.As(err, &transport):
		return http.StatusBadGateway, "transport_error"
	case errors.As(err, &parse):
		return http.StatusBadGateway, "parse_error"
	}
	return http.StatusInternalServerError, "internal"
}

// WriteError reports err as JSON.
func WriteError(w http.ResponseWriter, err error) {
	status, code := StatusFor(err)
	body := errorBody{Error: err.Error(), Code: code}

	var unresolved *appErrors.UnresolvedFieldsError
	if errors.As(err, &unresolved) {
		body.Fields = unresolved.Fields
	}
	var invalid *appErrors.CatalogValidationError
	if errors.As(err, &invalid) {
		body.Fields = invalid.Problems
	}
	var rejected *appErrors.DispatchRejectedError
	if errors.As(err, &rejected) {
		body.Blocked = rejected.Blocked
	}
	WriteJSON(w, status, body)
}

// BadRequest reports a malformed request.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: "bad_request"})
}
