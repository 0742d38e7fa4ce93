package tracker

import "time"

// Session is the interval currently being tracked. Domain and StartedAt are
// either both set or both zero.
type Session struct {
	Domain    string
	StartedAt time.Time
}

// Tracking reports whether a domain is being tracked.
func (s Session) Tracking() bool {
	return s.Domain != ""
}

// interval is elapsed time that has ended but is not yet in the ledger.
type interval struct {
	domain     string
	start, end time.Time
}
