package handlers

import "time"

// Naive UTC ISO-8601 layouts the frontend parses: no zone suffix, and a
// fixed six-digit fraction only when the sub-second part is non-zero.
const (
	isoLayout      = "2006-01-02T15:04:05"
	isoLayoutMicro = "2006-01-02T15:04:05.000000"
)

// nowFunc is replaced in tests.
var nowFunc = time.Now

// timestamp returns the current UTC time in isoLayout.
func timestamp() string {
	return FormatTimestamp(nowFunc())
}

// FormatTimestamp formats t in UTC. The zero time formats as the empty
// string.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.UTC()
	if t.Nanosecond()/int(time.Microsecond) == 0 {
		return t.Format(isoLayout)
	}
	return t.Format(isoLayoutMicro)
}
