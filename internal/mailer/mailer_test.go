package mailer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/unclebandit/outreach-engine/internal/mailer"
	"github.com/unclebandit/outreach-engine/internal/model"
)

type MockUnsubscribes struct {
	emails map[string]bool
	err    error
}

func (m *MockUnsubscribes) IsUnsubscribed(_ context.Context, email string) (bool, error) {
	return m.emails[email], m.err
}

type MockSender struct {
	sent []*mail.Msg
	err  error
}

func (s *MockSender) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, messages...)
	return nil
}

var smtpConfig = mailer.Config{
	Host:      "smtp.example.com",
	Port:      587,
	User:      "outreach@leaderreps.example",
	Pass:      "secret",
	AppDomain: "leaderreps.example",
}

func request() model.DispatchRequest {
	return model.DispatchRequest{
		ProspectID:    "p-ada",
		Channel:       model.ChannelEmail,
		To:            "ada@example.com",
		Subject:       "Quick question",
		Text:          "Hi Ada",
		HTML:          "Hi Ada",
		ReplyTo:       "grace@leaderreps.example",
		SenderName:    "Grace",
		CorrelationID: "corr-1",
	}
}

func TestDispatchSimulatedWithoutCredentials(t *testing.T) {
	m, err := mailer.New(mailer.Config{Host: "smtp.example.com"}, nil, zap.NewNop())
	require.NoError(t, err)

	res, err := m.Dispatch(context.Background(), request())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Simulated)
	assert.Equal(t, "corr-1", res.MessageID)
}

func TestDispatchBlocksUnsubscribedRecipients(t *testing.T) {
	sender := &MockSender{}
	unsubs := &MockUnsubscribes{emails: map[string]bool{"ada@example.com": true}}
	m := mailer.NewWithSender(smtpConfig, sender, unsubs, zap.NewNop())

	res, err := m.Dispatch(context.Background(), request())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.Blocked)
	assert.Empty(t, sender.sent)

	req := request()
	req.IsTest = true
	res, err = m.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Success, "test sends skip the unsubscribe list")
}

func TestDispatchBuildsMessage(t *testing.T) {
	sender := &MockSender{}
	m := mailer.NewWithSender(smtpConfig, sender, &MockUnsubscribes{}, zap.NewNop())

	req := request()
	req.IsTest = true
	res, err := m.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Simulated)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, []string{"[TEST] Quick question"}, msg.GetGenHeader(mail.HeaderSubject))
	assert.Equal(t, []string{"<https://leaderreps.example/unsubscribe?email=ada%40example.com>"},
		msg.GetGenHeader(mail.Header("List-Unsubscribe")))
	assert.Equal(t, []string{"corr-1"}, msg.GetGenHeader(mail.Header("X-Correlation-ID")))

	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"ada@example.com"}, rcpts)
}

func TestDispatchTransportError(t *testing.T) {
	sender := &MockSender{err: errors.New("dial tcp: connection refused")}
	m := mailer.NewWithSender(smtpConfig, sender, &MockUnsubscribes{err: errors.New("db down")}, zap.NewNop())

	_, err := m.Dispatch(context.Background(), request())
	assert.ErrorContains(t, err, "connection refused")
}
