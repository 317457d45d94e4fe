package domain

import (
	"strings"
	"time"
)

// OutputLayout is the timestamp format expected downstream: UTC, millis zeroed, "+0000" offset.
const OutputLayout = "2006-01-02T15:04:05.000-0700"

var inputLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// FormatTimestamp normalises raw into OutputLayout. Input that does not parse is returned unchanged.
func FormatTimestamp(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return raw
	}
	for _, layout := range inputLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return t.UTC().Truncate(time.Second).Format(OutputLayout)
	}
	return raw
}
