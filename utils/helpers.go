package utils

import (
	"strings"
	"time"
)

// timestampLayouts are tried in order. Upstream exports are not consistent
// about the format, so date-only, time-only and full timestamps are accepted.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"02.01.2006 15:04:05",
	"02.01.2006",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"20060102",
	"15:04:05",
	"15:04:05.999999999",
	"15:04",
}

// ParseTimestamp parses s using the first layout that matches. Time-only
// values carry the zero date. ok is false when nothing matches.
func ParseTimestamp(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
