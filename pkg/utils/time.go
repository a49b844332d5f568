package utils

import "time"

// FormatTimestamp renders t in UTC with nanosecond precision. The output
// sorts lexically in time order.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp parses a FormatTimestamp value. Unparseable input gives
// the zero time.
func ParseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
