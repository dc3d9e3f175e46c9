package utils

import "time"

// NowUTC is truncated to microseconds, the resolution postgres keeps.
func NowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// After returns t when it is later than floor, otherwise the first microsecond after floor.
func After(t, floor time.Time) time.Time {
	if t.After(floor) {
		return t
	}
	return floor.Add(time.Microsecond)
}
