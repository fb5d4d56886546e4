// Package stats derives the weekly summary metrics from a record set. The
// same function backs both the persisted metrics written by the snapshot
// store and the preview path, so the two can never drift apart numerically.
package stats

import (
	"strings"

	"github.com/formicag/ACEReportHub/internal/models"
	"github.com/formicag/ACEReportHub/internal/policy"
)

// Program markers matched case-insensitively against record fields.
const (
	WellArchitectedMarker = "Well-Architected"
	RapidPilotMarker      = "RAPID PILOT"
)

// PriorWeek is the prior-snapshot context needed for the clean-weeks streak.
// Nil means no prior snapshot exists.
type PriorWeek struct {
	StaleOpsCount           int
	ConsecutiveWeeksNoStale int
}

// Compute derives all aggregate metrics for one record set.
//
// The count metrics (reportable, stale, program counts) run over open,
// non-excluded records; TotalARR runs over all open records including
// excluded ones (see models.Metrics). Calling Compute twice with the same
// inputs yields identical output.
func Compute(records []models.OpportunityRecord, prior *PriorWeek, pol policy.Policy) models.Metrics {
	m := models.Metrics{TotalAllOps: len(records)}

	var ageSum, ageCount int
	for _, rec := range records {
		if !pol.IsOpen(rec) {
			continue
		}
		m.TotalOpenOps++
		m.TotalARR += rec.EstimatedRevenue

		if pol.IsExcluded(rec) {
			continue
		}
		m.TotalReportableOps++

		if rec.DaysSinceUpdate != nil {
			ageSum += *rec.DaysSinceUpdate
			ageCount++
		}
		if pol.IsStale(rec, policy.DefaultStaleThresholdDays) {
			m.StaleOpsCount++
		}
		if containsFold(rec.APNPrograms, WellArchitectedMarker) {
			m.WellArchitectedCount++
		}
		if containsFold(rec.PartnerProjectTitle, RapidPilotMarker) {
			m.RapidPilotCount++
		}
	}

	m.TotalExcludedOps = m.TotalOpenOps - m.TotalReportableOps
	if ageCount > 0 {
		m.AvgDaysSinceUpdate = float64(ageSum) / float64(ageCount)
	}
	m.ConsecutiveWeeksNoStale = streak(m.StaleOpsCount, prior)

	return m
}

// streak applies the clean-weeks recurrence: a clean week extends the prior
// streak when the prior week was also clean, starts a new streak of 1
// otherwise, and any stale week resets to 0.
func streak(staleCount int, prior *PriorWeek) int {
	if staleCount != 0 {
		return 0
	}
	if prior != nil && prior.StaleOpsCount == 0 {
		return prior.ConsecutiveWeeksNoStale + 1
	}
	return 1
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// StaleRecords returns the open, non-excluded records whose age exceeds the
// threshold, preserving input order.
func StaleRecords(records []models.OpportunityRecord, thresholdDays int, pol policy.Policy) []models.OpportunityRecord {
	var stale []models.OpportunityRecord
	for _, rec := range records {
		if pol.IsOpen(rec) && !pol.IsExcluded(rec) && pol.IsStale(rec, thresholdDays) {
			stale = append(stale, rec)
		}
	}
	return stale
}
