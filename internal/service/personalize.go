// internal/service/personalize.go
package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/model"
)

// Rewriter is an external text-generation capability.
type Rewriter interface {
	Rewrite(ctx context.Context, prompt string) (string, error)
}

// PersonalizedContent is a successful rewrite.
type PersonalizedContent struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

var (
	rewriteSubjectPattern = regexp.MustCompile(`SUBJECT:\s*(.+)`)
	rewriteBodyPattern    = regexp.MustCompile(`(?s)BODY:\s*(.+)`)
)

type Personalizer struct {
	Rewriter Rewriter
	Logger   *zap.Logger
}

// Enabled reports whether a rewrite capability is configured.
func (p *Personalizer) Enabled() bool {
	return p != nil && p.Rewriter != nil
}

// Personalize asks the rewriter for a version of subject/body tailored to the
// prospect. It is never retried.
func (p *Personalizer) Personalize(ctx context.Context, subject, body string, prospect *model.Prospect, step model.Step) (*PersonalizedContent, error) {
	if !p.Enabled() {
		return nil, &appErrors.TransportError{Capability: "ai rewrite", Err: fmt.Errorf("no rewrite provider configured")}
	}
	prompt := BuildPersonalizationPrompt(subject, body, prospect, step)
	raw, err := p.Rewriter.Rewrite(ctx, prompt)
	if err != nil {
		p.Logger.Warn("ai rewrite failed", zap.String("prospect_id", prospect.ID), zap.Error(err))
		return nil, &appErrors.TransportError{Capability: "ai rewrite", Err: err}
	}
	content, err := ParseRewrite(raw)
	if err != nil {
		p.Logger.Warn("ai rewrite returned an unexpected shape", zap.String("prospect_id", prospect.ID), zap.Error(err))
		return nil, err
	}
	return content, nil
}

// BuildPersonalizationPrompt renders the copywriter instructions for one
// prospect and step.
func BuildPersonalizationPrompt(subject, body string, prospect *model.Prospect, step model.Step) string {
	title := strings.TrimSpace(prospect.Title)
	if title == "" {
		title = "Business Leader"
	}
	company := strings.TrimSpace(prospect.Company)
	if company == "" {
		company = "their company"
	}

	var b strings.Builder
	b.WriteString("You are an expert B2B sales copywriter. Your task is to personalize an outreach email template for a specific prospect.\n\n")
	b.WriteString("PROSPECT INFORMATION:\n")
	fmt.Fprintf(&b, "- Name: %s\n- Title: %s\n- Company: %s\n\n", prospect.FullName(), title, company)
	b.WriteString("ORIGINAL EMAIL TEMPLATE:\n")
	fmt.Fprintf(&b, "Subject: %s\nBody:\n%s\n\n", subject, body)
	if step.Rationale != nil && step.Rationale.Principle != "" {
		fmt.Fprintf(&b, "PSYCHOLOGY PRINCIPLE TO MAINTAIN:\n%s: %s\n\n", step.Rationale.Principle, step.Rationale.Why)
	}
	b.WriteString(`INSTRUCTIONS:
1. Create a personalized version that speaks directly to this specific prospect
2. Keep the same core message and call-to-action
3. Make it feel genuine and human, not templated
4. Keep it concise (under 150 words for the body)
5. Maintain the psychological principle if one is provided
6. Use the prospect's first name naturally
7. Reference their title/role if relevant to the message

RESPOND IN THIS EXACT FORMAT:
SUBJECT: [Your personalized subject line]
---
BODY:
[Your personalized email body]
`)
	return b.String()
}

// ParseRewrite extracts the SUBJECT and BODY sections of a rewrite.
func ParseRewrite(raw string) (*PersonalizedContent, error) {
	sm := rewriteSubjectPattern.FindStringSubmatch(raw)
	bm := rewriteBodyPattern.FindStringSubmatch(raw)
	if sm == nil || bm == nil {
		return nil, &appErrors.ParseError{Reason: "missing SUBJECT or BODY section", Raw: raw}
	}
	subject := strings.TrimSpace(sm[1])
	body := strings.TrimSpace(bm[1])
	if subject == "" || body == "" {
		return nil, &appErrors.ParseError{Reason: "empty SUBJECT or BODY section", Raw: raw}
	}
	return &PersonalizedContent{Subject: subject, Body: body}, nil
}
