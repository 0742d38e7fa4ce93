package ledger

import "errors"

var (
	// ErrInvalidDelta is returned when a merge is attempted with a negative,
	// NaN or infinite number of seconds.
	ErrInvalidDelta = errors.New("invalid delta")

	// ErrInvalidKey is returned for an empty domain or a malformed day key.
	ErrInvalidKey = errors.New("invalid ledger key")
)

// Snapshot maps a day key (YYYY-MM-DD) to the accumulated seconds per domain
// recorded that day. Its JSON form is the ledger's persisted layout:
//
//	{"2024-01-01": {"example.com": 3661}}
type Snapshot map[string]map[string]float64

// Day returns the domain totals for key, or an empty map.
func (s Snapshot) Day(key string) map[string]float64 {
	if d, ok := s[key]; ok {
		return d
	}
	return map[string]float64{}
}

// Stats holds aggregate statistics about the ledger.
type Stats struct {
	Days         int64
	Domains      int64
	TotalSeconds float64
	FirstDay     string
	LastDay      string
	TopDomains   []DomainTotal
}

// DomainTotal pairs a domain with its accumulated seconds.
type DomainTotal struct {
	Domain  string
	Seconds float64
}
