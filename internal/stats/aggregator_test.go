package stats

import (
	"reflect"
	"testing"

	"github.com/formicag/ACEReportHub/internal/models"
	"github.com/formicag/ACEReportHub/internal/policy"
)

func days(n int) *int { return &n }

func openRec(id string, age *int, revenue float64) models.OpportunityRecord {
	return models.OpportunityRecord{
		OpportunityID:    id,
		Status:           "Approved",
		Stage:            "Prospect",
		DaysSinceUpdate:  age,
		EstimatedRevenue: revenue,
	}
}

func TestCompute_CountsAndAverages(t *testing.T) {
	pol := policy.New([]string{"O999"})
	records := []models.OpportunityRecord{
		openRec("O1", days(10), 100),
		openRec("O2", days(40), 200), // stale
		openRec("O3", nil, 50),       // unknown age, excluded from the mean
		openRec("O999", days(90), 1000),
		{OpportunityID: "O4", Status: "Approved", Stage: "Launched", EstimatedRevenue: 9999},
	}

	m := Compute(records, nil, pol)

	if m.TotalAllOps != 5 {
		t.Fatalf("TotalAllOps = %d, want 5", m.TotalAllOps)
	}
	if m.TotalOpenOps != 4 {
		t.Fatalf("TotalOpenOps = %d, want 4", m.TotalOpenOps)
	}
	if m.TotalReportableOps != 3 {
		t.Fatalf("TotalReportableOps = %d, want 3", m.TotalReportableOps)
	}
	if m.TotalExcludedOps != 1 {
		t.Fatalf("TotalExcludedOps = %d, want 1", m.TotalExcludedOps)
	}
	if m.AvgDaysSinceUpdate != 25 {
		t.Fatalf("AvgDaysSinceUpdate = %f, want 25 (mean of 10 and 40)", m.AvgDaysSinceUpdate)
	}
	if m.StaleOpsCount != 1 {
		t.Fatalf("StaleOpsCount = %d, want 1 (O999 is excluded, O3 has no age)", m.StaleOpsCount)
	}
}

func TestCompute_ARRIncludesExcludedOpenOps(t *testing.T) {
	// The revenue sum intentionally keeps excluded open ops even though the
	// count metrics drop them.
	pol := policy.New([]string{"O999"})
	var records []models.OpportunityRecord
	for i := 0; i < 9; i++ {
		records = append(records, openRec(string(rune('A'+i)), days(1), 100))
	}
	records = append(records, openRec("O999", days(1), 500))

	m := Compute(records, nil, pol)

	if m.TotalReportableOps != 9 {
		t.Fatalf("TotalReportableOps = %d, want 9", m.TotalReportableOps)
	}
	if m.TotalExcludedOps != 1 {
		t.Fatalf("TotalExcludedOps = %d, want 1", m.TotalExcludedOps)
	}
	if m.TotalARR != 1400 {
		t.Fatalf("TotalARR = %f, want 1400 (excluded revenue included)", m.TotalARR)
	}
}

func TestCompute_ProgramCounts(t *testing.T) {
	pol := policy.New([]string{"O999"})
	wa := openRec("O1", days(1), 0)
	wa.APNPrograms = "well-architected; Migration Acceleration"
	rapid := openRec("O2", days(1), 0)
	rapid.PartnerProjectTitle = "Acme Rapid Pilot phase 2"
	excludedWA := openRec("O999", days(1), 0)
	excludedWA.APNPrograms = "Well-Architected"
	closedWA := models.OpportunityRecord{OpportunityID: "O3", Status: "Approved", Stage: "Launched", APNPrograms: "Well-Architected"}

	m := Compute([]models.OpportunityRecord{wa, rapid, excludedWA, closedWA}, nil, pol)

	if m.WellArchitectedCount != 1 {
		t.Fatalf("WellArchitectedCount = %d, want 1", m.WellArchitectedCount)
	}
	if m.RapidPilotCount != 1 {
		t.Fatalf("RapidPilotCount = %d, want 1", m.RapidPilotCount)
	}
}

func TestStreak(t *testing.T) {
	tests := []struct {
		name  string
		stale int
		prior *PriorWeek
		want  int
	}{
		{"stale week resets", 3, &PriorWeek{StaleOpsCount: 0, ConsecutiveWeeksNoStale: 5}, 0},
		{"clean week with no prior starts at 1", 0, nil, 1},
		{"clean week after stale prior starts at 1", 0, &PriorWeek{StaleOpsCount: 2, ConsecutiveWeeksNoStale: 0}, 1},
		{"clean week extends clean prior", 0, &PriorWeek{StaleOpsCount: 0, ConsecutiveWeeksNoStale: 4}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := streak(tt.stale, tt.prior); got != tt.want {
				t.Fatalf("streak = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCompute_Idempotent(t *testing.T) {
	pol := policy.Default()
	records := []models.OpportunityRecord{
		openRec("O1", days(10), 100),
		openRec("O2", days(45), 250),
	}
	prior := &PriorWeek{StaleOpsCount: 0, ConsecutiveWeeksNoStale: 2}

	first := Compute(records, prior, pol)
	second := Compute(records, prior, pol)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Compute not idempotent: %+v vs %+v", first, second)
	}
}

func TestCompute_EmptySet(t *testing.T) {
	m := Compute(nil, nil, policy.Default())
	if m.AvgDaysSinceUpdate != 0 {
		t.Fatalf("empty set average must be 0, got %f", m.AvgDaysSinceUpdate)
	}
	if m.ConsecutiveWeeksNoStale != 1 {
		t.Fatalf("empty set has zero stale ops, streak starts at 1, got %d", m.ConsecutiveWeeksNoStale)
	}
}

func TestStaleRecords(t *testing.T) {
	pol := policy.New([]string{"O999"})
	records := []models.OpportunityRecord{
		openRec("O1", days(45), 0),
		openRec("O2", days(5), 0),
		openRec("O999", days(60), 0),
		{OpportunityID: "O3", Status: "Approved", Stage: "Launched", DaysSinceUpdate: days(90)},
	}

	stale := StaleRecords(records, 30, pol)
	if len(stale) != 1 || stale[0].OpportunityID != "O1" {
		t.Fatalf("expected only O1 stale, got %+v", stale)
	}
}
