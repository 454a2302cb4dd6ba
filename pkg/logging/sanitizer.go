// Package logging contains helpers for keeping secrets out of log output.
package logging

import (
	"regexp"
)

// RedactedText is the replacement text for sensitive data.
const RedactedText = "[REDACTED]"

var (
	// Pattern to match potential passwords in connection strings
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Pattern to match bearer tokens in error bodies and headers
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_.~+/=]+`)

	// Pattern to match OAuth token and secret parameters in URLs or bodies
	tokenParamPattern = regexp.MustCompile(`(?i)(access_token|refresh_token|client_secret|code_verifier|code)=[^;&\s"]+`)

	// Pattern to match connection string credentials (user:pass@host format)
	connStringPattern = regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`)
)

// SanitizeConnectionString removes credentials from a connection string
// before it is logged.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return sanitized
}

// SanitizeError scrubs tokens, secrets, and credentials from an error message.
// Use this before logging any error from OAuth or provider calls - token
// endpoint failures echo request parameters back in their bodies.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeBody(err.Error())
}

// SanitizeBody scrubs tokens and secrets from a response body or URL.
func SanitizeBody(s string) string {
	if s == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(s, "${1}="+RedactedText)
	sanitized = bearerPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	sanitized = tokenParamPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return sanitized
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
