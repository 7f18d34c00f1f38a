// Package environment reads typed configuration values from environment
// variables.
//
// Every helper takes the value to fall back on, so callers can layer the
// environment over defaults or a config file by passing the current value:
//
//	cfg.ChatModel = environment.StringOr("CHAT_MODEL", cfg.ChatModel)
//
// Unparseable values fall back silently; validation of the final values is
// the caller's job.
package environment

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// String returns the trimmed value of the named variable and whether it was
// set to something non-blank.
func String(name string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	return v, v != ""
}

// StringOr returns the value of the named variable, or fallback when it is
// unset or blank.
func StringOr(name, fallback string) string {
	if v, ok := String(name); ok {
		return v
	}
	return fallback
}

// FirstOr returns the value of the first variable in names that is set,
// or fallback when none are.
func FirstOr(names []string, fallback string) string {
	for _, name := range names {
		if v, ok := String(name); ok {
			return v
		}
	}
	return fallback
}

// BoolOr parses the named variable with strconv.ParseBool.
func BoolOr(name string, fallback bool) bool {
	v, ok := String(name)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// IntOr parses the named variable as a base-10 integer.
func IntOr(name string, fallback int) int {
	v, ok := String(name)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// FloatOr parses the named variable as a 64-bit float.
func FloatOr(name string, fallback float64) float64 {
	v, ok := String(name)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// DurationOr parses the named variable with time.ParseDuration ("30s",
// "2m"). A bare integer is read as seconds.
func DurationOr(name string, fallback time.Duration) time.Duration {
	v, ok := String(name)
	if !ok {
		return fallback
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// StringSliceOr splits the named variable on commas, dropping blank items.
func StringSliceOr(name string, fallback []string) []string {
	v, ok := String(name)
	if !ok {
		return fallback
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
