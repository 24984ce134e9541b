// Package redact strips secret-shaped values out of strings, errors and
// HTTP headers before they reach logs, execution history snapshots, or
// rendered templates.
package redact

import (
	"regexp"
	"strings"
)

const maxRedactLen = 256

var (
	jwtPattern    = regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\b`)
	awsKeyPattern = regexp.MustCompile(`\b(AKIA|ASIA)[A-Z0-9]{16}\b`)
	ghTokenPattern = regexp.MustCompile(
		`\bgh[pousr]_[A-Za-z0-9]{20,}\b`,
	)
	slackTokenPattern = regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}\b`)
	connStringPattern = regexp.MustCompile(
		`(?i)\b([a-z][a-z0-9+.-]*://[^:/\s]+:)[^@\s]+(@)`,
	)
	envAssignPattern = regexp.MustCompile(
		`(?i)\b((?:DATABASE|DB|REDIS|AMQP|MONGO)_?URL\s*=\s*)\S+`,
	)
	bearerPattern = regexp.MustCompile(`(?i)\b(Bearer\s+)[A-Za-z0-9._~+/=-]{8,}`)
	kvSecretPattern = regexp.MustCompile(
		`(?i)\b(api[_-]?key|token|secret|password|passwd|client[_-]?secret|access[_-]?key)\s*[:=]\s*["']?([^\s"',}]{4,})["']?`,
	)
	prefixedKeyPattern = regexp.MustCompile(`\b(sk|pk|api|key)[_-][A-Za-z0-9]{12,}\b`)
	emailPattern        = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

// String truncates s and replaces secret-shaped substrings with labeled
// placeholders. It is applied to any free-form text before it is logged or
// persisted in execution history.
func String(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxRedactLen {
		s = s[:maxRedactLen]
	}
	s = jwtPattern.ReplaceAllString(s, "[JWT_REDACTED]")
	s = awsKeyPattern.ReplaceAllString(s, "[AWS_KEY_REDACTED]")
	s = ghTokenPattern.ReplaceAllString(s, "[GITHUB_TOKEN_REDACTED]")
	s = slackTokenPattern.ReplaceAllString(s, "[SLACK_TOKEN_REDACTED]")
	s = connStringPattern.ReplaceAllString(s, "${1}[REDACTED]${2}")
	s = envAssignPattern.ReplaceAllString(s, "${1}[REDACTED]")
	s = bearerPattern.ReplaceAllString(s, "${1}[REDACTED]")
	s = kvSecretPattern.ReplaceAllString(s, "${1}=[REDACTED]")
	s = prefixedKeyPattern.ReplaceAllString(s, "[REDACTED]")
	s = emailPattern.ReplaceAllString(s, "[EMAIL_REDACTED]")
	return s
}

// Error redacts the string form of err. Returns "" for a nil error.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

var sensitiveSuffixes = []string{
	"authorization", "token", "cookie", "auth", "key", "bearer", "jwt", "id",
}

var sensitiveSubstrings = []string{
	"password", "secret", "passwd", "pwd", "apikey", "api-key", "api_key",
	"private-key", "public-key", "secret-key", "access-key", "session",
	"credential", "cred",
}

func isSensitiveHeader(name string) bool {
	lower := strings.ToLower(name)
	for _, sub := range sensitiveSubstrings {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	segments := strings.FieldsFunc(lower, func(r rune) bool {
		return r == '-' || r == '_' || r == '.'
	})
	if len(segments) == 0 {
		return false
	}
	last := segments[len(segments)-1]
	for _, suf := range sensitiveSuffixes {
		if last == suf {
			return true
		}
	}
	return false
}

// Headers returns a copy of headers with sensitive values masked. Keys are
// preserved verbatim; Authorization/Proxy-Authorization keep their scheme
// prefix (e.g. "Bearer") while redacting the credential itself.
func Headers(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for name, value := range headers {
		lower := strings.ToLower(name)
		switch lower {
		case "authorization", "proxy-authorization":
			if idx := strings.IndexByte(value, ' '); idx > 0 {
				out[name] = value[:idx+1] + String(value[idx+1:])
			} else {
				out[name] = String(value)
			}
		case "set-cookie", "cookie":
			out[name] = "[REDACTED]"
		default:
			if isSensitiveHeader(name) {
				out[name] = "[REDACTED]"
			} else {
				out[name] = value
			}
		}
	}
	return out
}
