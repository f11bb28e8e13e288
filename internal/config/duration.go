package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration parses the named config field as a Go duration string. An empty
// value means "not set" and yields zero; negative durations are rejected.
func Duration(field, value string) (time.Duration, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: bad duration %q: %w", field, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: %s: duration %q is negative", field, value)
	}
	return d, nil
}

// DurationOr is Duration with a fallback for unset fields.
func DurationOr(field, value string, fallback time.Duration) (time.Duration, error) {
	d, err := Duration(field, value)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return fallback, nil
	}
	return d, nil
}
