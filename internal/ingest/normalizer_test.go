package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/formicag/ACEReportHub/internal/policy"
)

var testNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func TestNormalizeRows_PreservesOrderAndNeverDrops(t *testing.T) {
	rows := []Row{
		{ColOpportunityID: "O2", ColStatus: "Approved", ColStage: "Prospect", ColLastUpdatedDate: "31/01/2024"},
		{ColOpportunityID: "O1"},
		{}, // entirely empty row still becomes a record
	}

	records := NormalizeRows(rows, policy.Default(), testNow)
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].OpportunityID != "O2" || records[1].OpportunityID != "O1" {
		t.Fatalf("row order not preserved: %q, %q", records[0].OpportunityID, records[1].OpportunityID)
	}
	if records[2].OpportunityID != "" {
		t.Fatalf("empty row should yield empty fields, got %q", records[2].OpportunityID)
	}
}

func TestNormalizeRows_DerivedFields(t *testing.T) {
	rows := []Row{
		{
			ColOpportunityID:    "O100",
			ColCustomerName:     "  Acme   Corp ",
			ColStatus:           "Approved",
			ColStage:            "Qualified",
			ColLastUpdatedDate:  "31/01/2024",
			ColEstimatedRevenue: "$12,500.50",
		},
		{
			ColOpportunityID:   "O18244", // legacy excluded ID
			ColStatus:          "Approved",
			ColStage:           "Prospect",
			ColLastUpdatedDate: "not a date",
		},
	}

	records := NormalizeRows(rows, policy.Default(), testNow)

	first := records[0]
	if first.CustomerName != "Acme Corp" {
		t.Fatalf("whitespace not collapsed: %q", first.CustomerName)
	}
	if first.DaysSinceUpdate == nil || *first.DaysSinceUpdate != 44 {
		t.Fatalf("expected 44 days since update, got %v", first.DaysSinceUpdate)
	}
	if first.EstimatedRevenue != 12500.50 {
		t.Fatalf("expected revenue 12500.50, got %f", first.EstimatedRevenue)
	}
	if first.IsExcluded {
		t.Fatal("O100 must not be excluded")
	}

	second := records[1]
	if second.DaysSinceUpdate != nil {
		t.Fatalf("unparsable date must yield nil age, got %d", *second.DaysSinceUpdate)
	}
	if !second.IsExcluded {
		t.Fatal("O18244 must be flagged excluded")
	}
}

func TestParseRevenue(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"1234.56", 1234.56},
		{"$1,234.56", 1234.56},
		{"£2,000", 2000},
		{"", 0},
		{"nan", 0},
		{"TBC", 0},
	}
	for _, tt := range tests {
		if got := parseRevenue(tt.input); got != tt.want {
			t.Fatalf("parseRevenue(%q) = %f, want %f", tt.input, got, tt.want)
		}
	}
}

func TestReadCSV(t *testing.T) {
	data := "Opportunity id,Customer Company Name,Status,Stage\n" +
		"O1,Acme,Approved,Prospect\n" +
		"O2,Globex,Launched,Launched\n" +
		"O3,Initech,Approved\n" // short row

	rows, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][ColOpportunityID] != "O1" || rows[1][ColOpportunityID] != "O2" {
		t.Fatal("rows out of order")
	}
	if rows[2][ColStage] != "" {
		t.Fatalf("short row must read missing cells as empty, got %q", rows[2][ColStage])
	}
}

func TestReadCSV_EmptyInput(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty export")
	}
}
