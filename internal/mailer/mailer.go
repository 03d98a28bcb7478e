// internal/mailer/mailer.go
package mailer

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/repository"
)

const defaultSenderName = "LeaderReps Corporate"

// Sender is the part of the SMTP client the mailer needs.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type Config struct {
	Host      string
	Port      int
	User      string
	Pass      string
	From      string
	AppDomain string
	// TrackingURL is the public address of the open pixel endpoint. Empty
	// means https://<AppDomain>/track/open.
	TrackingURL string
}

// Mailer sends outreach email over SMTP. Without credentials every send is
// simulated and reported as such.
type Mailer struct {
	cfg          Config
	sender       Sender
	unsubscribes repository.UnsubscribeRepositoryInterface
	logger       *zap.Logger
}

// New builds a Mailer. A nil Sender with credentials present dials cfg.Host.
func New(cfg Config, unsubscribes repository.UnsubscribeRepositoryInterface, logger *zap.Logger) (*Mailer, error) {
	m := &Mailer{cfg: cfg, unsubscribes: unsubscribes, logger: logger}
	if !m.configured() {
		logger.Warn("smtp credentials not set, email sends will be simulated")
		return m, nil
	}
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.User),
		mail.WithPassword(cfg.Pass),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	m.sender = client
	return m, nil
}

// NewWithSender is New with an explicit transport.
func NewWithSender(cfg Config, sender Sender, unsubscribes repository.UnsubscribeRepositoryInterface, logger *zap.Logger) *Mailer {
	return &Mailer{cfg: cfg, sender: sender, unsubscribes: unsubscribes, logger: logger}
}

func (m *Mailer) configured() bool {
	return m.cfg.User != "" && m.cfg.Pass != ""
}

func (m *Mailer) Dispatch(ctx context.Context, req model.DispatchRequest) (*model.DispatchResult, error) {
	if !req.IsTest && m.unsubscribes != nil {
		blocked, err := m.unsubscribes.IsUnsubscribed(ctx, req.To)
		if err != nil {
			m.logger.Error("unsubscribe check failed, sending anyway", zap.String("prospect_id", req.ProspectID), zap.Error(err))
		} else if blocked {
			m.logger.Warn("blocked email to unsubscribed recipient", zap.String("prospect_id", req.ProspectID))
			return &model.DispatchResult{Success: false, Blocked: true, Message: "Recipient has unsubscribed."}, nil
		}
	}

	if m.sender == nil || !m.configured() {
		m.logger.Info("email simulated",
			zap.String("prospect_id", req.ProspectID),
			zap.String("correlation_id", req.CorrelationID),
			zap.Bool("test", req.IsTest))
		return &model.DispatchResult{
			Success:   true,
			Simulated: true,
			MessageID: req.CorrelationID,
			Message:   "Email simulation: Credentials not set.",
		}, nil
	}

	msg, err := m.buildMessage(req)
	if err != nil {
		return nil, err
	}
	if err := m.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return nil, fmt.Errorf("send email: %w", err)
	}
	m.logger.Info("email sent",
		zap.String("prospect_id", req.ProspectID),
		zap.String("correlation_id", req.CorrelationID))
	return &model.DispatchResult{Success: true, MessageID: req.CorrelationID}, nil
}

func (m *Mailer) unsubscribeLink(to string) string {
	return fmt.Sprintf("https://%s/unsubscribe?email=%s", m.cfg.AppDomain, url.QueryEscape(to))
}

// trackingPixel returns the open tracking image for live sends to a known
// prospect, and nothing otherwise.
func (m *Mailer) trackingPixel(req model.DispatchRequest) string {
	if req.IsTest || req.ProspectID == "" {
		return ""
	}
	base := m.cfg.TrackingURL
	if base == "" {
		base = fmt.Sprintf("https://%s/track/open", m.cfg.AppDomain)
	}
	q := url.Values{}
	q.Set("pid", req.ProspectID)
	q.Set("cid", req.CorrelationID)
	src := base + "?" + q.Encode()
	return `<img src="` + html.EscapeString(src) + `" width="1" height="1" style="display:none;" alt="" />`
}

func (m *Mailer) buildMessage(req model.DispatchRequest) (*mail.Msg, error) {
	from := m.cfg.From
	if from == "" {
		from = m.cfg.User
	}
	name := req.SenderName
	if name == "" {
		name = defaultSenderName
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(name, from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(req.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", req.To, err)
	}
	if req.ReplyTo != "" {
		if err := msg.ReplyTo(req.ReplyTo); err != nil {
			return nil, fmt.Errorf("invalid reply-to %q: %w", req.ReplyTo, err)
		}
	}

	subject := req.Subject
	if req.IsTest {
		subject = "[TEST] " + subject
	}
	msg.Subject(subject)

	link := m.unsubscribeLink(req.To)
	msg.SetGenHeader(mail.Header("List-Unsubscribe"), "<"+link+">")
	msg.SetGenHeader(mail.Header("List-Unsubscribe-Post"), "List-Unsubscribe=One-Click")
	msg.SetGenHeader(mail.Header("X-Correlation-ID"), req.CorrelationID)
	msg.SetGenHeader(mail.Header("Precedence"), "bulk")

	text := req.Text
	if strings.TrimSpace(text) == "" {
		text = "Enable HTML to view this message."
	}
	msg.SetBodyString(mail.TypeTextPlain, text+"\n\nUnsubscribe: "+link)
	msg.AddAlternativeString(mail.TypeTextHTML, req.HTML+footerHTML(link)+m.trackingPixel(req))
	return msg, nil
}

func footerHTML(link string) string {
	return `<br/><br/><div style="font-size: 11px; color: #94a3b8; border-top: 1px solid #e2e8f0; padding-top: 10px; font-family: sans-serif;">` +
		`<p>Don't want these emails? <a href="` + html.EscapeString(link) + `">Unsubscribe here</a>.</p></div>`
}
