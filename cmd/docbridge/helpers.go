package main

import (
	"strconv"
	"time"
)

const displayTimeLayout = "2006-01-02 15:04:05"

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(displayTimeLayout)
}

func formatTimestampPtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTimestamp(*t)
}

func formatCount(value int) string {
	return strconv.Itoa(value)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

func truncate(value string, max int) string {
	if max <= 3 || len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
