// internal/handler/tracking_handler.go
package handler

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/unclebandit/outreach-engine/internal/service"
)

// Query parameters of the tracking pixel URL built by the mailer.
const (
	TrackingParamProspect = "pid"
	TrackingParamID       = "cid"
)

// transparentGIF is a 1x1 transparent GIF.
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x01, 0x44, 0x00, 0x3b,
}

// TrackingHandler serves the email open pixel. It is reached by mail clients,
// so it carries no operator identity.
type TrackingHandler struct {
	Tracking *service.TrackingService
	Logger   *zap.Logger
}

// OpenPixelHandler records the open and always answers with the pixel, even
// when recording fails.
func (h *TrackingHandler) OpenPixelHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prospectID := strings.TrimSpace(q.Get(TrackingParamProspect))
	if prospectID != "" {
		if _, err := h.Tracking.RecordOpen(r.Context(), prospectID, q.Get(TrackingParamID), r.UserAgent()); err != nil {
			h.Logger.Warn("failed to track email open", zap.String("prospect_id", prospectID), zap.Error(err))
		}
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(transparentGIF)
}
