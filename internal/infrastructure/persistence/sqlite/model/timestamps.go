package model

import "time"

// TimestampLayout is RFC 3339 with a fixed nine-digit fraction.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func ParseTime(raw string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}
