package parser

import (
	"net/mail"
	"strings"
	"time"
)

// dateLayouts enumerates, in try-order, the textual WHOIS date formats
// spec.md §4.8 requires: ISO 8601 with/without timezone, DD-MMM-YYYY,
// YYYY.MM.DD, DD/MM/YYYY, YYYY/MM/DD. RFC 2822 is tried separately via
// net/mail.ParseDate, which tolerates the format's optional day-of-week and
// comment variations better than a single time.Parse layout would.
var dateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"02-Jan-2006",
	"2006.01.02",
	"02/01/2006",
	"2006/01/02",
	"2006-01-02",
}

// ParseDate tries every recognized layout in order and falls back to RFC
// 2822. A missing timezone is assumed UTC. Returns ok=false (never an
// error) for an unparseable value, since a bad date is a non-fatal,
// recorded observation rather than a hard failure.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if t, err := mail.ParseDate(s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
