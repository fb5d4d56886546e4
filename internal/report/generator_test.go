package report

import (
	"strings"
	"testing"
	"time"

	"github.com/formicag/ACEReportHub/internal/models"
	"github.com/formicag/ACEReportHub/internal/policy"
)

func intPtr(v int) *int { return &v }

func baseData() ReportData {
	return ReportData{
		GeneratedAt:        time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC),
		ReportWeekDate:     "2024-03-15",
		StaleThresholdDays: policy.DefaultStaleThresholdDays,
		Current: models.Metrics{
			TotalReportableOps:      4,
			StaleOpsCount:           0,
			AvgDaysSinceUpdate:      12.5,
			TotalARR:                42000,
			ConsecutiveWeeksNoStale: 3,
		},
	}
}

func TestGenerate_CleanWeekBanner(t *testing.T) {
	gen, err := NewGenerator(policy.Default())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	html, err := gen.Generate(baseData())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(html, "No stale opportunities this week") {
		t.Error("expected clean-week banner")
	}
	if !strings.Contains(html, "3 clean weeks in a row") {
		t.Error("expected streak count in banner")
	}
}

func TestGenerate_StaleTableAndBanner(t *testing.T) {
	gen, err := NewGenerator(policy.Default())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	data := baseData()
	data.Current.StaleOpsCount = 1
	data.Current.ConsecutiveWeeksNoStale = 0
	data.Records = []models.OpportunityRecord{
		{
			OpportunityID:   "O555",
			CustomerName:    "Acme",
			Status:          "Approved",
			Stage:           "Prospect",
			DaysSinceUpdate: intPtr(45),
			NextStep:        "Chase the customer",
		},
	}

	html, err := gen.Generate(data)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(html, "1 opportunities have not been updated") {
		t.Error("expected stale banner")
	}
	if !strings.Contains(html, "O555") || !strings.Contains(html, "Chase the customer") {
		t.Error("expected stale row in output")
	}
}

func TestGenerate_ExcludedIDsNeverAppear(t *testing.T) {
	gen, err := NewGenerator(policy.Default())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	data := baseData()
	// O18244 is on the legacy exclusion list.
	data.Comparison.NewOps = []models.OpportunityRecord{
		{OpportunityID: "O18244", CustomerName: "Legacy Co", Status: "Approved", Stage: "Prospect"},
		{OpportunityID: "O999", CustomerName: "Fresh Co", Status: "Approved", Stage: "Prospect"},
	}
	data.Comparison.NoLongerOpen = []models.ClosedOp{
		{OpportunityID: "O18244", CustomerName: "Legacy Co", PreviousStage: "Prospect", PreviousStatus: "Approved",
			CurrentStage: models.NotInCurrentReport, CurrentStatus: models.NotInCurrentReport},
	}

	html, err := gen.Generate(data)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.Contains(html, "O18244") {
		t.Error("excluded opportunity ID leaked into the report")
	}
	if !strings.Contains(html, "O999") {
		t.Error("non-excluded new op missing from the report")
	}
}

func TestGenerate_LaunchedMissingAccountWarning(t *testing.T) {
	gen, err := NewGenerator(policy.Default())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	data := baseData()
	data.Comparison.StatusChanges = []models.StatusChange{
		{OpportunityID: "O700", CustomerName: "NoAccount Ltd", OldStatus: "Approved", NewStatus: "Approved",
			OldStage: "Committed", NewStage: "Launched", AWSAccountID: ""},
		{OpportunityID: "O701", CustomerName: "HasAccount Ltd", OldStatus: "Approved", NewStatus: "Approved",
			OldStage: "Committed", NewStage: "Launched", AWSAccountID: "123456789012"},
	}
	// Launched ops also land in the no-longer-open list; the launched table
	// must absorb them.
	data.Comparison.NoLongerOpen = []models.ClosedOp{
		{OpportunityID: "O700", CustomerName: "NoAccount Ltd", PreviousStage: "Committed", PreviousStatus: "Approved",
			CurrentStage: "Launched", CurrentStatus: "Approved"},
	}

	html, err := gen.Generate(data)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(html, "add the AWS account ID") {
		t.Error("expected missing account warning for O700")
	}
	if !strings.Contains(html, "123456789012") {
		t.Error("expected account ID for O701")
	}
	if strings.Count(html, "O700") != 1 {
		t.Error("launched op rendered in more than one table")
	}
}

func TestGenerate_SanitizesFreeText(t *testing.T) {
	gen, err := NewGenerator(policy.Default())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	data := baseData()
	data.Comparison.NewOps = []models.OpportunityRecord{
		{OpportunityID: "O800", CustomerName: `<script>alert("x")</script>Evil Corp`, Status: "Approved", Stage: "Prospect"},
	}

	html, err := gen.Generate(data)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("script tag survived sanitization")
	}
	if !strings.Contains(html, "Evil Corp") {
		t.Error("text content was lost during sanitization")
	}
}

func TestGenerate_TopSpendLimitedToThree(t *testing.T) {
	gen, err := NewGenerator(policy.Default())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	data := baseData()
	for _, rec := range []struct {
		id  string
		rev float64
	}{{"O1", 100}, {"O2", 500}, {"O3", 300}, {"O4", 900}, {"O5", 200}} {
		data.Records = append(data.Records, models.OpportunityRecord{
			OpportunityID:    rec.id,
			CustomerName:     "C " + rec.id,
			Status:           "Approved",
			Stage:            "Prospect",
			EstimatedRevenue: rec.rev,
		})
	}

	view := gen.buildView(data)
	if len(view.TopSpend) != 3 {
		t.Fatalf("expected 3 top-spend rows, got %d", len(view.TopSpend))
	}
	if view.TopSpend[0].OpportunityID != "O4" || view.TopSpend[1].OpportunityID != "O2" || view.TopSpend[2].OpportunityID != "O3" {
		t.Errorf("top spend not ordered by revenue: %+v", view.TopSpend)
	}
}

func TestMoney(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{999.5, "$999.50"},
		{1234.5, "$1,234.50"},
		{1234567.89, "$1,234,567.89"},
		{-2500, "$-2,500.00"},
	}
	for _, tc := range cases {
		if got := money(tc.in); got != tc.want {
			t.Errorf("money(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDeltaFormatting(t *testing.T) {
	if got := deltaInt(3); got != "+3" {
		t.Errorf("deltaInt(3) = %q", got)
	}
	if got := deltaInt(-2); got != "-2" {
		t.Errorf("deltaInt(-2) = %q", got)
	}
	if got := deltaInt(0); got != "±0" {
		t.Errorf("deltaInt(0) = %q", got)
	}
	if got := deltaFloat(-1.25); got != "-1.2" && got != "-1.3" {
		t.Errorf("deltaFloat(-1.25) = %q", got)
	}
}
