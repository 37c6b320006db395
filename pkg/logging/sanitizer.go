package logging

import (
	"regexp"
)

const (
	// MaxSQLLogLength is the maximum length of a SQL statement to log.
	MaxSQLLogLength = 200
	// RedactedText is the replacement text for literal values.
	RedactedText = "[REDACTED]"
)

var (
	// Matches single-quoted SQL string literals, including '' escapes.
	stringLiteralPattern = regexp.MustCompile(`'(?:[^']|'')*'`)

	// Matches password values in connection strings.
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Matches user:pass@host credentials in URL-style connection strings.
	connStringPattern = regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`)
)

// SanitizeSQL redacts string literals and truncates a SQL statement before
// logging. Generated SQL can embed question values, which may be personal
// data, so literals never reach the log stream.
func SanitizeSQL(sql string) string {
	if sql == "" {
		return ""
	}
	sanitized := stringLiteralPattern.ReplaceAllString(sql, "'"+RedactedText+"'")
	if len(sanitized) > MaxSQLLogLength {
		sanitized = sanitized[:MaxSQLLogLength] + "..."
	}
	return sanitized
}

// SanitizeConnectionString removes credentials from connection strings.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	return sanitized
}
