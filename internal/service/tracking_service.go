// internal/service/tracking_service.go
package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/queue"
	"github.com/unclebandit/outreach-engine/internal/repository"
)

const defaultOpenWindow = time.Minute

// TrackingService records email opens reported by the tracking pixel.
type TrackingService struct {
	Opens  repository.EmailOpenRepositoryInterface
	Events queue.Queue
	Logger *zap.Logger
	Now    func() time.Time
	// Window drops repeat opens of the same prospect. Zero means one minute.
	Window time.Duration
}

// RecordOpen stores an open and reports whether it was new. Repeat opens
// inside the window are ignored.
func (s *TrackingService) RecordOpen(ctx context.Context, prospectID, trackingID, userAgent string) (bool, error) {
	if strings.TrimSpace(userAgent) == "" {
		userAgent = "unknown"
	}
	window := s.Window
	if window <= 0 {
		window = defaultOpenWindow
	}
	open := model.EmailOpen{
		ProspectID: prospectID,
		TrackingID: trackingID,
		UserAgent:  userAgent,
		At:         s.Now(),
	}
	stored, err := s.Opens.RecordEmailOpen(ctx, open, window)
	if err != nil {
		return false, err
	}
	if !stored {
		s.Logger.Debug("repeat email open ignored", zap.String("prospect_id", prospectID))
		return false, nil
	}

	s.Logger.Info("email open tracked",
		zap.String("prospect_id", prospectID),
		zap.String("tracking_id", trackingID))
	if s.Events != nil {
		ev := queue.OpenedEvent{ProspectID: prospectID, TrackingID: trackingID, At: open.At}
		if err := s.Events.Publish(queue.TopicOpened, ev); err != nil {
			s.Logger.Warn("failed to publish opened event", zap.String("prospect_id", prospectID), zap.Error(err))
		}
	}
	return true, nil
}
