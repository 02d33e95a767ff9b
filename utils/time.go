package utils

import "time"

// ToLocal converts t to the named zone, falling back to t unchanged when the
// zone is unknown
func ToLocal(t time.Time, tz string) time.Time {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return t
	}
	return t.In(loc)
}

// Tomorrow is the calendar date after now in the named zone, as YYYY-MM-DD
func Tomorrow(now time.Time, tz string) string {
	return ToLocal(now, tz).AddDate(0, 0, 1).Format("2006-01-02")
}
