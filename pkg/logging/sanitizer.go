package logging

import (
	"regexp"
	"unicode/utf8"
)

const (
	// MaxTextLogLength is the maximum number of runes of user text to log.
	MaxTextLogLength = 100
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Authorization headers echoed back by OpenAI-compatible servers
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-_.]+`)

	// api_key=xxx query parameters and OpenAI-style secret keys
	apiKeyPattern    = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9\-_]{8,}`)
	secretKeyPattern = regexp.MustCompile(`\bsk-[A-Za-z0-9\-_]{16,}`)

	// user:pass@host format
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@`)
)

// SanitizeConnectionString removes credentials from a Postgres URL or DSN.
// Use this before logging any connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")
}

// SanitizeError returns the error message with credentials removed.
// Database and LLM client errors may carry the DSN or the API key.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = bearerPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = secretKeyPattern.ReplaceAllString(sanitized, RedactedText)
	return connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")
}

// TruncateText shortens user text for logging without splitting a rune.
func TruncateText(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxRunes]) + "..."
}

// TruncateNames returns at most maxNames names, each shortened to
// MaxTextLogLength runes.
func TruncateNames(names []string, maxNames int) []string {
	n := len(names)
	if maxNames > 0 && n > maxNames {
		n = maxNames
	}
	out := make([]string, n)
	for i := range n {
		out[i] = TruncateText(names[i], MaxTextLogLength)
	}
	return out
}
