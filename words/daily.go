package words

import "time"

// dailyEpoch is the UTC midnight from which daily challenge numbers count.
var dailyEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// CurrentDaily returns the daily challenge number for the given instant:
// day one is the epoch day itself, incrementing at each UTC midnight.
func CurrentDaily(now time.Time) int {
	return int(now.UTC().Sub(dailyEpoch)/(24*time.Hour)) + 1
}
