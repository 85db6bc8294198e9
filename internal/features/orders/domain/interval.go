package domain

import "strconv"

// Interval is the optional drip-feed delay, in minutes, between deliveries.
// The zero value means no interval; Minutes(0) is an explicit zero.
type Interval struct {
	minutes int
	set     bool
}

// NoInterval leaves the interval out of the submission.
var NoInterval = Interval{}

// Minutes sets an explicit interval.
func Minutes(n int) Interval {
	return Interval{minutes: n, set: true}
}

// ParseInterval reads a query value. An empty string yields NoInterval.
func ParseInterval(raw string) (Interval, error) {
	if raw == "" {
		return NoInterval, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return NoInterval, err
	}
	return Minutes(n), nil
}

// Value returns the minutes and whether the interval was set.
func (i Interval) Value() (int, bool) {
	return i.minutes, i.set
}
