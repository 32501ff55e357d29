package core

import "time"

// TimeFormat is the canonical wire format for instants.
const TimeFormat = time.RFC3339

// FormatTime renders an instant in the canonical format, always in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseTime parses a canonical-format instant.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeFormat, s)
}

// Clock abstracts time.Now so scheduler sweeps are reproducible in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }
