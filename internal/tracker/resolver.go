package tracker

import (
	"net/url"
	"strings"
	"sync/atomic"
)

type rules struct {
	schemes  map[string]bool
	denylist []string
}

// Resolver maps a URL to the domain its time is attributed to. Its rules can
// be replaced at any time; Resolve always sees a consistent rule set.
type Resolver struct {
	rules atomic.Pointer[rules]
}

// NewResolver returns a Resolver that ignores the given URL schemes and the
// denylisted domains (and their subdomains).
func NewResolver(ignoredSchemes, denylist []string) *Resolver {
	r := &Resolver{}
	r.Update(ignoredSchemes, denylist)
	return r
}

// Update swaps in a new rule set.
func (r *Resolver) Update(ignoredSchemes, denylist []string) {
	next := &rules{schemes: make(map[string]bool, len(ignoredSchemes))}
	for _, s := range ignoredSchemes {
		s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ":")
		if s != "" {
			next.schemes[s] = true
		}
	}
	for _, d := range denylist {
		d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" {
			next.denylist = append(next.denylist, d)
		}
	}
	r.rules.Store(next)
}

// Resolve returns the lowercase hostname of rawURL. ok is false when nothing
// trackable is active: the URL is malformed, has no host, uses an ignored
// scheme or belongs to a denylisted domain.
func (r *Resolver) Resolve(rawURL string) (domain string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" {
		return "", false
	}

	rs := r.rules.Load()
	if rs.schemes[strings.ToLower(u.Scheme)] {
		return "", false
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", false
	}

	for _, d := range rs.denylist {
		if host == d || strings.HasSuffix(host, "."+d) {
			return "", false
		}
	}
	return host, true
}
