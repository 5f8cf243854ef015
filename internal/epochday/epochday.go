// Package epochday converts between calendar dates and epoch days, the
// integer day counts since 1970-01-01 used for every stored date.
package epochday

import "time"

const day = 24 * time.Hour

// FromTime returns the epoch day of t's calendar date in t's location.
func FromTime(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / int64(day/time.Second)
}

// ToTime returns midnight of the epoch day in loc.
func ToTime(n int64, loc *time.Location) time.Time {
	y, m, d := time.Unix(n*int64(day/time.Second), 0).UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Today returns the current epoch day in loc.
func Today(loc *time.Location) int64 {
	return FromTime(time.Now().In(loc))
}

// Parse parses a "2006-01-02" date into an epoch day.
func Parse(s string) (int64, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return 0, err
	}
	return FromTime(t), nil
}

// Format renders an epoch day as "2006-01-02".
func Format(n int64) string {
	return ToTime(n, time.UTC).Format(time.DateOnly)
}
