// Package report turns ledger snapshots into the summaries shown by the
// today and dashboard commands.
package report

import (
	"sort"
	"time"

	"github.com/runnerr0/dwell/internal/ledger"
)

const (
	// TodayTopSites is how many sites the today summary lists.
	TodayTopSites = 5
	// DashboardTopSites is how many sites the dashboard table lists.
	DashboardTopSites = 20
	// DefaultChartDays is the span of the dashboard's daily chart.
	DefaultChartDays = 7
)

// Site is one domain's accumulated time.
type Site struct {
	Domain  string  `json:"domain"`
	Seconds float64 `json:"seconds"`
}

// SiteShare is a Site with its share of the day's total.
type SiteShare struct {
	Site
	Percent float64 `json:"percent"`
}

// DayTotal is one bar of the daily chart.
type DayTotal struct {
	Day     string  `json:"day"`
	Label   string  `json:"label"`
	Seconds float64 `json:"seconds"`
	Hours   float64 `json:"hours"`
}

// Today is the quick summary of the current day.
type Today struct {
	Day      string  `json:"day"`
	Total    float64 `json:"total_seconds"`
	TopSites []Site  `json:"top_sites"`
}

// Dashboard is the detailed summary of the current day and the days before it.
type Dashboard struct {
	Day     string      `json:"day"`
	Total   float64     `json:"total_seconds"`
	TopSite string      `json:"top_site,omitempty"`
	Sites   []SiteShare `json:"sites"`
	Days    []DayTotal  `json:"days"`
}

// DailyTotal sums a day's domain totals.
func DailyTotal(day map[string]float64) float64 {
	var total float64
	for _, s := range day {
		total += s
	}
	return total
}

// Sites lists a day's domains by time spent, longest first. Ties are broken
// by domain name so the order is stable.
func Sites(day map[string]float64) []Site {
	sites := make([]Site, 0, len(day))
	for domain, s := range day {
		sites = append(sites, Site{Domain: domain, Seconds: s})
	}
	sort.Slice(sites, func(i, j int) bool {
		if sites[i].Seconds != sites[j].Seconds {
			return sites[i].Seconds > sites[j].Seconds
		}
		return sites[i].Domain < sites[j].Domain
	})
	return sites
}

// BuildToday summarizes day from snap.
func BuildToday(snap ledger.Snapshot, day string) Today {
	data := snap.Day(day)
	return Today{
		Day:      day,
		Total:    DailyTotal(data),
		TopSites: top(Sites(data), TodayTopSites),
	}
}

// BuildDashboard summarizes the last entry of days, oldest first, as today
// and charts every entry of days.
func BuildDashboard(snap ledger.Snapshot, days []string) Dashboard {
	var d Dashboard
	if len(days) == 0 {
		return d
	}

	d.Day = days[len(days)-1]
	data := snap.Day(d.Day)
	d.Total = DailyTotal(data)

	sites := Sites(data)
	if len(sites) > 0 {
		d.TopSite = sites[0].Domain
	}
	d.Sites = make([]SiteShare, 0, DashboardTopSites)
	for _, s := range top(sites, DashboardTopSites) {
		share := SiteShare{Site: s}
		if d.Total > 0 {
			share.Percent = s.Seconds / d.Total * 100
		}
		d.Sites = append(d.Sites, share)
	}

	d.Days = make([]DayTotal, 0, len(days))
	for _, key := range days {
		total := DailyTotal(snap.Day(key))
		d.Days = append(d.Days, DayTotal{
			Day:     key,
			Label:   weekday(key),
			Seconds: total,
			Hours:   Hours(total),
		})
	}
	return d
}

func top(sites []Site, n int) []Site {
	if len(sites) > n {
		return sites[:n]
	}
	return sites
}

// weekday labels a day key with its short weekday name. Day keys are
// calendar dates, so the location does not matter.
func weekday(key string) string {
	t, err := ledger.ParseDayKey(key, time.UTC)
	if err != nil {
		return key
	}
	return t.Weekday().String()[:3]
}
