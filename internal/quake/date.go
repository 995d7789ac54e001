package quake

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// SourceLocation is the timezone the PHIVOLCS listing is published in.
// The Philippines has no daylight saving time, so a fixed zone is exact.
var SourceLocation = time.FixedZone("PHT", 8*60*60)

// dateLayouts are tried in order against the normalized date text
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2 January 2006 - 3:04 PM",
	"2 Jan 2006 - 3:04 PM",
	"2 January 2006 3:04 PM",
	"2 Jan 2006 3:04 PM",
	"2 January 2006, 3:04 PM",
	"2 Jan 2006, 3:04 PM",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
}

var (
	meridiemSuffix = regexp.MustCompile(`(?i)^(.*?\b(?:AM|PM)\b)`)
	meridiem       = regexp.MustCompile(`(?i)\b(am|pm)\b`)
)

// ParseOccurredAt parses a listing Date-Time into a time in SourceLocation.
// Supports formats: "2025-07-15 10:00:00", "2025-07-15 10:00",
// "15 July 2025 - 10:00 AM", "15 Jul 2025 - 10:00 AM" (also without the dash or
// with a comma instead), slash-separated dates
// and ISO-like timestamps. Anything after AM/PM (e.g. "PST") is ignored.
func ParseOccurredAt(text string) (time.Time, error) {
	s := Normalize(text)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date-time")
	}

	if m := meridiemSuffix.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	s = meridiem.ReplaceAllStringFunc(s, strings.ToUpper)

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, SourceLocation); err == nil {
			return t, nil
		}
	}

	// Last resort for ISO-like strings
	iso := strings.Replace(strings.ReplaceAll(s, "/", "-"), " ", "T", 1)
	if t, err := time.Parse(time.RFC3339, iso); err == nil {
		return t.In(SourceLocation), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, iso, SourceLocation); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date format %q", text)
}
