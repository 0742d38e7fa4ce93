package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// NoActivity is shown when a day has no recorded time.
const NoActivity = "No activity today"

const (
	shareBarWidth = 10
	chartBarWidth = 30
)

// RenderToday renders the quick summary: total and top sites.
func RenderToday(t Today) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Today " + t.Day))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("Total  "))
	b.WriteString(valueStyle.Render(FormatDurationShort(t.Total)))
	b.WriteString("\n\n")

	if len(t.TopSites) == 0 {
		b.WriteString(emptyStyle.Render(NoActivity))
		b.WriteString("\n")
		return b.String()
	}

	width := domainWidth(t.TopSites)
	for _, s := range t.TopSites {
		fmt.Fprintf(&b, "%-*s  %s\n", width, s.Domain, FormatDurationShort(s.Seconds))
	}
	return b.String()
}

// RenderDashboard renders the detailed summary with the site table and the
// daily chart.
func RenderDashboard(d Dashboard) string {
	topSite := d.TopSite
	if topSite == "" {
		topSite = "-"
	}
	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Render(labelStyle.Render("Today")+"\n"+valueStyle.Render(FormatDuration(d.Total))),
		" ",
		boxStyle.Render(labelStyle.Render("Top site")+"\n"+valueStyle.Render(topSite)),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Dashboard "+d.Day),
		"",
		cards,
		"",
		renderSiteTable(d.Sites),
		"",
		renderChart(d.Days),
	)
}

func renderSiteTable(sites []SiteShare) string {
	if len(sites) == 0 {
		return emptyStyle.Render(NoActivity)
	}

	plain := make([]Site, len(sites))
	for i, s := range sites {
		plain[i] = s.Site
	}
	width := domainWidth(plain)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", labelStyle.Render(fmt.Sprintf("%-*s  %-8s  %s", width, "SITE", "TIME", "SHARE")))
	for _, s := range sites {
		fmt.Fprintf(&b, "%-*s  %-8s  %s %5.1f%%\n",
			width, s.Domain, FormatDuration(s.Seconds), bar(s.Percent/100, shareBarWidth), s.Percent)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderChart(days []DayTotal) string {
	if len(days) == 0 {
		return ""
	}

	peak := 0.0
	for _, d := range days {
		peak = math.Max(peak, d.Hours)
	}

	var b strings.Builder
	b.WriteString(labelStyle.Render("Daily usage (hours)"))
	b.WriteString("\n")
	for _, d := range days {
		frac := 0.0
		if peak > 0 {
			frac = d.Hours / peak
		}
		fmt.Fprintf(&b, "%s  %s %.1f\n", d.Label, bar(frac, chartBarWidth), d.Hours)
	}
	return strings.TrimRight(b.String(), "\n")
}

// bar draws frac (0..1) of width as filled cells.
func bar(frac float64, width int) string {
	frac = math.Max(0, math.Min(1, frac))
	filled := int(math.Round(frac * float64(width)))
	return barStyle.Render(strings.Repeat("█", filled)) +
		trackStyle.Render(strings.Repeat("░", width-filled))
}

func domainWidth(sites []Site) int {
	width := len("SITE")
	for _, s := range sites {
		width = max(width, len(s.Domain))
	}
	return width
}
