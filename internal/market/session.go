package market

import (
	"sync"
	"time"
)

var (
	sessionLocOnce sync.Once
	sessionLoc     *time.Location
)

// SessionLocation returns the reference time zone for session boundaries
// (US market hours). Falls back to a fixed ET offset when the tz database
// is not available in the runtime image.
func SessionLocation() *time.Location {
	sessionLocOnce.Do(func() {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.FixedZone("ET", -5*60*60)
		}
		sessionLoc = loc
	})
	return sessionLoc
}

// SessionDate returns the calendar date of a millisecond timestamp in the
// session time zone. Bars sharing a SessionDate belong to the same trading
// session for VWAP accumulation.
func SessionDate(ms int64) string {
	return time.UnixMilli(ms).In(SessionLocation()).Format("2006-01-02")
}
