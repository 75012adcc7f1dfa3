package util

import "time"

// Clock returns the current time; services accept one so tests can pin it.
type Clock func() time.Time

// NowUTC exposes time.Now for deterministic testing.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// Timestamp formats t the way exported artefacts name themselves (YYYYMMDD_HHMMSS).
func Timestamp(t time.Time) string {
	return t.UTC().Format("20060102_150405")
}
