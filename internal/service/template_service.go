// internal/service/template_service.go
package service

import (
	"regexp"
	"strings"
	"time"

	"github.com/unclebandit/outreach-engine/internal/model"
)

const (
	defaultTopic    = "Leadership Development"
	defaultIndustry = "your industry"
)

var mergeFieldPattern = regexp.MustCompile(`\[[^\]]+\]`)

// Attributes maps a bracketed merge field (e.g. "[First Name]") to its value.
// An empty value means the field is missing.
type Attributes map[string]string

// Resolution is the outcome of filling a subject/body pair.
type Resolution struct {
	Subject       string
	Body          string
	Tokens        []string
	MissingFields []string
}

// DetectMergeFields returns the distinct bracketed tokens in text, in the
// order they first appear.
func DetectMergeFields(text string) []string {
	fields := []string{}
	seen := map[string]bool{}
	for _, m := range mergeFieldPattern.FindAllString(text, -1) {
		if seen[m] {
			continue
		}
		seen[m] = true
		fields = append(fields, m)
	}
	return fields
}

// ResolveTemplate fills every mapped token in subject and body. Unmapped
// tokens keep their literal text and are reported as missing.
func ResolveTemplate(subject, body string, attrs Attributes) Resolution {
	tokens := DetectMergeFields(subject + " " + body)

	missing := []string{}
	pairs := make([]string, 0, len(tokens)*2)
	for _, tok := range tokens {
		value := strings.TrimSpace(attrs[tok])
		if value == "" {
			missing = append(missing, tok)
			continue
		}
		pairs = append(pairs, tok, value)
	}

	r := strings.NewReplacer(pairs...)
	return Resolution{
		Subject:       r.Replace(subject),
		Body:          r.Replace(body),
		Tokens:        tokens,
		MissingFields: missing,
	}
}

// IsSendReady reports whether an entry can be sent as-is.
func IsSendReady(channelPresent bool, missingFields []string) bool {
	return channelPresent && len(missingFields) == 0
}

// NextBusinessDay returns the first weekday strictly after now.
func NextBusinessDay(now time.Time) time.Time {
	d := now.AddDate(0, 0, 1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// AttributesFor builds the merge-field values available for a prospect.
func AttributesFor(p *model.Prospect, programName string, now time.Time) Attributes {
	industry := strings.TrimSpace(p.Industry)
	if industry == "" {
		industry = defaultIndustry
	}
	return Attributes{
		"[First Name]":    p.FirstName,
		"[Last Name]":     p.LastName,
		"[Full Name]":     p.FullName(),
		"[Company]":       p.Company,
		"[Their Company]": p.Company,
		"[Title]":         p.Title,
		"[Email]":         p.Contact.Email,
		"[Date]":          NextBusinessDay(now).Format("Monday, Jan 2"),
		"[Topic]":         defaultTopic,
		"[Space]":         industry,
		"[Your Company]":  programName,
	}
}
