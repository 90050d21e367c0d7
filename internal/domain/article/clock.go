package article

import "time"

// TimestampLayout is fixed width so stored timestamps sort correctly as text.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func ParseTime(raw string) (time.Time, error) {
	return time.Parse(TimestampLayout, raw)
}
