package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimeFlexible accepts an RFC3339 timestamp, a plain date or epoch
// milliseconds and returns the instant in UTC.
func ParseTimeFlexible(timeStr string) (time.Time, error) {
	timeStr = strings.TrimSpace(timeStr)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, timeStr); err == nil {
			return t.UTC(), nil
		}
	}

	ms, err := strconv.ParseInt(timeStr, 10, 64)
	if err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("invalid time format: %q", timeStr)
}

// MeasureTime returns the instant to stamp pushed measures with: the parsed
// value when given, now otherwise.
func MeasureTime(value string, now func() time.Time) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return now().UTC(), nil
	}
	return ParseTimeFlexible(value)
}
