package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/unclebandit/outreach-engine/internal/model"
)

func TestTrackingPixel(t *testing.T) {
	m := NewWithSender(Config{AppDomain: "leaderreps.example"}, nil, nil, zap.NewNop())
	req := model.DispatchRequest{ProspectID: "p-ada", CorrelationID: "corr-1"}

	assert.Equal(t,
		`<img src="https://leaderreps.example/track/open?cid=corr-1&amp;pid=p-ada" width="1" height="1" style="display:none;" alt="" />`,
		m.trackingPixel(req))

	req.IsTest = true
	assert.Empty(t, m.trackingPixel(req), "test sends are not tracked")

	assert.Empty(t, m.trackingPixel(model.DispatchRequest{CorrelationID: "corr-2"}), "no prospect to attribute the open to")
}

func TestTrackingPixelUsesConfiguredURL(t *testing.T) {
	m := NewWithSender(Config{AppDomain: "app.example", TrackingURL: "https://api.example/track/open"}, nil, nil, zap.NewNop())

	pixel := m.trackingPixel(model.DispatchRequest{ProspectID: "p 1", CorrelationID: "c"})
	assert.Contains(t, pixel, `src="https://api.example/track/open?cid=c&amp;pid=p+1"`)
}
