// Package safety screens inbound prompts for injection and exfiltration
// patterns before they reach an upstream provider.
package safety

import (
	"regexp"
	"strings"
)

// Severities attached to a finding.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// Finding describes why a prompt was rejected.
type Finding struct {
	Type        string
	Severity    string
	Description string
}

type rule struct {
	pattern     *regexp.Regexp
	incident    string
	severity    string
	description string
}

var rules = []rule{
	{
		pattern:     regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts|rules)`),
		incident:    "prompt_injection",
		severity:    SeverityHigh,
		description: "attempt to override system instructions",
	},
	{
		pattern:     regexp.MustCompile(`(?i)(reveal|print|show|repeat)\s+(your\s+)?(system\s+prompt|initial\s+instructions)`),
		incident:    "prompt_injection",
		severity:    SeverityHigh,
		description: "attempt to extract the system prompt",
	},
	{
		pattern:     regexp.MustCompile(`(?i)you\s+are\s+now\s+(dan|in\s+developer\s+mode|jailbroken)`),
		incident:    "jailbreak",
		severity:    SeverityHigh,
		description: "known jailbreak phrasing",
	},
	{
		pattern:     regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE\s+KEY-----`),
		incident:    "secret_leak",
		severity:    SeverityMedium,
		description: "private key material in prompt",
	},
	{
		pattern:     regexp.MustCompile(`\b(sk-[A-Za-z0-9]{20,}|AKIA[0-9A-Z]{16})\b`),
		incident:    "secret_leak",
		severity:    SeverityMedium,
		description: "api credential material in prompt",
	},
}

// Scan returns the first finding that blocks the prompt, or nil when the
// prompt is clean. Rules are ordered most severe first.
func Scan(prompt string) *Finding {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil
	}
	for _, r := range rules {
		if r.pattern.MatchString(prompt) {
			return &Finding{
				Type:        r.incident,
				Severity:    r.severity,
				Description: r.description,
			}
		}
	}
	return nil
}
