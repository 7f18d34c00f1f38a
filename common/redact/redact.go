// Package redact scrubs credentials out of strings before they are logged or
// shown to a user.
//
// Provider error bodies and transport errors can echo request headers, so the
// API key and the Matrix access token are passed through String or Error at
// every boundary that renders an error.
package redact

import (
	"strings"
)

const placeholder = "[REDACTED]"

// String replaces every occurrence of each sensitive value in s with
// [REDACTED]. Values shorter than 4 characters are ignored.
func String(s string, sensitiveValues ...string) string {
	for _, v := range sensitiveValues {
		if len(v) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// Error renders err with the sensitive values removed. A nil error renders
// as the empty string.
func Error(err error, sensitiveValues ...string) string {
	if err == nil {
		return ""
	}
	return String(err.Error(), sensitiveValues...)
}

// Map returns a shallow copy of m where string values under secret-looking
// keys (password, token, key, secret, credential, auth) are replaced.
func Map(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if isSensitiveKey(k) {
			if str, ok := v.(string); ok && str != "" {
				out[k] = placeholder
				continue
			}
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, word := range []string{"password", "passwd", "token", "secret", "key", "credential", "auth"} {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
