// Package report renders the weekly hygiene email as a standalone HTML
// document. All free-text spreadsheet fields are passed through a strict
// sanitizer before templating; excluded opportunity IDs never appear in any
// table.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/formicag/ACEReportHub/internal/models"
	"github.com/formicag/ACEReportHub/internal/policy"
	"github.com/formicag/ACEReportHub/internal/stats"
	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates/report.html
var templatesFS embed.FS

// LaunchedStage is the stage value that moves an opportunity into the
// launched section of the report.
const LaunchedStage = "Launched"

// ClosedLostValue matches either the status or the stage of a lost deal.
const ClosedLostValue = "Closed Lost"

// ReportData is everything the generator needs to render one weekly report.
type ReportData struct {
	GeneratedAt        time.Time
	ReportWeekDate     string
	Intro              string
	Current            models.Metrics
	Previous           *models.Metrics
	Comparison         models.ComparisonResult
	Records            []models.OpportunityRecord
	StaleThresholdDays int
}

// Generator renders report HTML with a fixed policy and sanitizer.
type Generator struct {
	pol       policy.Policy
	sanitizer *bluemonday.Policy
	tmpl      *template.Template
}

func NewGenerator(pol policy.Policy) (*Generator, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/report.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %w", err)
	}
	return &Generator{
		pol:       pol,
		sanitizer: bluemonday.StrictPolicy(),
		tmpl:      tmpl,
	}, nil
}

// view models consumed by the template

type summaryBox struct {
	Label string
	Value string
	Delta string
}

type newOpRow struct {
	OpportunityID string
	CustomerName  string
	Stage         string
	Status        string
	Revenue       string
	CreatedBy     string
}

type transitionRow struct {
	OpportunityID    string
	CustomerName     string
	Transition       string
	Revenue          string
	AWSAccountID     string
	MissingAccountID bool
	ClosedReason     string
}

type closedRow struct {
	OpportunityID  string
	CustomerName   string
	PreviousStage  string
	PreviousStatus string
	CurrentStage   string
	CurrentStatus  string
}

type staleRow struct {
	OpportunityID   string
	CustomerName    string
	Stage           string
	DaysSinceUpdate int
	LastUpdatedDate string
	NextStep        string
	CreatedBy       string
}

type insightRow struct {
	OpportunityID string
	CustomerName  string
	Title         string
	Revenue       string
}

type reportView struct {
	GeneratedAt    string
	ReportWeekDate string
	Intro          string

	StreakWeeks int
	StaleCount  int
	Threshold   int

	Summary []summaryBox

	NewOps       []newOpRow
	Launched     []transitionRow
	ClosedLost   []transitionRow
	NoLongerOpen []closedRow
	StaleOps     []staleRow

	TopSpend        []insightRow
	RapidPilot      []insightRow
	WellArchitected []insightRow
}

// Generate renders the full report document.
func (g *Generator) Generate(data ReportData) (string, error) {
	view := g.buildView(data)

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

func (g *Generator) buildView(data ReportData) reportView {
	view := reportView{
		GeneratedAt:    data.GeneratedAt.Format("Monday, 2 January 2006"),
		ReportWeekDate: data.ReportWeekDate,
		Intro:          g.clean(data.Intro),
		StreakWeeks:    data.Current.ConsecutiveWeeksNoStale,
		StaleCount:     data.Current.StaleOpsCount,
		Threshold:      data.StaleThresholdDays,
		Summary:        g.summaryBoxes(data.Current, data.Previous),
	}

	for _, rec := range data.Comparison.NewOps {
		if g.pol.IsExcludedID(rec.OpportunityID) {
			continue
		}
		view.NewOps = append(view.NewOps, newOpRow{
			OpportunityID: rec.OpportunityID,
			CustomerName:  g.clean(rec.CustomerName),
			Stage:         g.clean(rec.Stage),
			Status:        g.clean(rec.Status),
			Revenue:       money(rec.EstimatedRevenue),
			CreatedBy:     g.clean(rec.CreatedBy),
		})
	}

	// Launched and closed-lost sections come from the transition list so the
	// rows carry current-side context; whatever is left in the no-longer-open
	// list renders in its own table.
	covered := map[string]bool{}
	for _, change := range data.Comparison.StatusChanges {
		if g.pol.IsExcludedID(change.OpportunityID) {
			continue
		}
		row := transitionRow{
			OpportunityID:    change.OpportunityID,
			CustomerName:     g.clean(change.CustomerName),
			Transition:       fmt.Sprintf("%s / %s → %s / %s", g.clean(change.OldStatus), g.clean(change.OldStage), g.clean(change.NewStatus), g.clean(change.NewStage)),
			Revenue:          money(change.EstimatedRevenue),
			AWSAccountID:     g.clean(change.AWSAccountID),
			MissingAccountID: strings.TrimSpace(change.AWSAccountID) == "",
			ClosedReason:     g.clean(change.ClosedReason),
		}
		switch {
		case change.NewStage == LaunchedStage:
			view.Launched = append(view.Launched, row)
			covered[change.OpportunityID] = true
		case change.NewStage == ClosedLostValue || change.NewStatus == ClosedLostValue:
			view.ClosedLost = append(view.ClosedLost, row)
			covered[change.OpportunityID] = true
		}
	}

	for _, closed := range data.Comparison.NoLongerOpen {
		if g.pol.IsExcludedID(closed.OpportunityID) || covered[closed.OpportunityID] {
			continue
		}
		view.NoLongerOpen = append(view.NoLongerOpen, closedRow{
			OpportunityID:  closed.OpportunityID,
			CustomerName:   g.clean(closed.CustomerName),
			PreviousStage:  g.clean(closed.PreviousStage),
			PreviousStatus: g.clean(closed.PreviousStatus),
			CurrentStage:   g.clean(closed.CurrentStage),
			CurrentStatus:  g.clean(closed.CurrentStatus),
		})
	}

	for _, rec := range stats.StaleRecords(data.Records, data.StaleThresholdDays, g.pol) {
		days := 0
		if rec.DaysSinceUpdate != nil {
			days = *rec.DaysSinceUpdate
		}
		view.StaleOps = append(view.StaleOps, staleRow{
			OpportunityID:   rec.OpportunityID,
			CustomerName:    g.clean(rec.CustomerName),
			Stage:           g.clean(rec.Stage),
			DaysSinceUpdate: days,
			LastUpdatedDate: g.clean(rec.LastUpdatedDate),
			NextStep:        g.clean(rec.NextStep),
			CreatedBy:       g.clean(rec.CreatedBy),
		})
	}
	sort.Slice(view.StaleOps, func(i, j int) bool {
		return view.StaleOps[i].DaysSinceUpdate > view.StaleOps[j].DaysSinceUpdate
	})

	g.buildInsights(&view, data.Records)

	return view
}

func (g *Generator) buildInsights(view *reportView, records []models.OpportunityRecord) {
	var reportable []models.OpportunityRecord
	for _, rec := range records {
		if g.pol.IsOpen(rec) && !g.pol.IsExcluded(rec) {
			reportable = append(reportable, rec)
		}
	}

	bySpend := make([]models.OpportunityRecord, len(reportable))
	copy(bySpend, reportable)
	sort.SliceStable(bySpend, func(i, j int) bool {
		return bySpend[i].EstimatedRevenue > bySpend[j].EstimatedRevenue
	})
	for i, rec := range bySpend {
		if i >= 3 {
			break
		}
		view.TopSpend = append(view.TopSpend, g.toInsightRow(rec))
	}

	for _, rec := range reportable {
		if strings.Contains(strings.ToLower(rec.PartnerProjectTitle), strings.ToLower(stats.RapidPilotMarker)) {
			view.RapidPilot = append(view.RapidPilot, g.toInsightRow(rec))
		}
		if strings.Contains(strings.ToLower(rec.APNPrograms), strings.ToLower(stats.WellArchitectedMarker)) {
			view.WellArchitected = append(view.WellArchitected, g.toInsightRow(rec))
		}
	}
}

func (g *Generator) toInsightRow(rec models.OpportunityRecord) insightRow {
	return insightRow{
		OpportunityID: rec.OpportunityID,
		CustomerName:  g.clean(rec.CustomerName),
		Title:         g.clean(rec.PartnerProjectTitle),
		Revenue:       money(rec.EstimatedRevenue),
	}
}

func (g *Generator) summaryBoxes(cur models.Metrics, prev *models.Metrics) []summaryBox {
	boxes := []summaryBox{
		{Label: "Open opportunities", Value: fmt.Sprintf("%d", cur.TotalReportableOps)},
		{Label: "Stale (>30 days)", Value: fmt.Sprintf("%d", cur.StaleOpsCount)},
		{Label: "Avg days since update", Value: fmt.Sprintf("%.1f", cur.AvgDaysSinceUpdate)},
		{Label: "Pipeline ARR", Value: money(cur.TotalARR)},
		{Label: "Well-Architected", Value: fmt.Sprintf("%d", cur.WellArchitectedCount)},
		{Label: "RAPID pilots", Value: fmt.Sprintf("%d", cur.RapidPilotCount)},
	}
	if prev == nil {
		return boxes
	}

	boxes[0].Delta = deltaInt(cur.TotalReportableOps - prev.TotalReportableOps)
	boxes[1].Delta = deltaInt(cur.StaleOpsCount - prev.StaleOpsCount)
	boxes[2].Delta = deltaFloat(cur.AvgDaysSinceUpdate - prev.AvgDaysSinceUpdate)
	boxes[3].Delta = deltaFloat(cur.TotalARR - prev.TotalARR)
	boxes[4].Delta = deltaInt(cur.WellArchitectedCount - prev.WellArchitectedCount)
	boxes[5].Delta = deltaInt(cur.RapidPilotCount - prev.RapidPilotCount)
	return boxes
}

// clean strips all markup from a free-text spreadsheet field. bluemonday
// HTML-escapes what it keeps, so unescape before handing the plain text to
// html/template, which escapes exactly once on output.
func (g *Generator) clean(s string) string {
	return html.UnescapeString(g.sanitizer.Sanitize(s))
}

func money(v float64) string {
	return "$" + humanize(fmt.Sprintf("%.2f", v))
}

// humanize inserts thousands separators into a fixed-point decimal string.
func humanize(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

func deltaInt(d int) string {
	switch {
	case d > 0:
		return fmt.Sprintf("+%d", d)
	case d < 0:
		return fmt.Sprintf("%d", d)
	default:
		return "±0"
	}
}

func deltaFloat(d float64) string {
	switch {
	case d > 0:
		return fmt.Sprintf("+%.1f", d)
	case d < 0:
		return fmt.Sprintf("%.1f", d)
	default:
		return "±0.0"
	}
}
