package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/formicag/ACEReportHub/internal/models"
	"github.com/formicag/ACEReportHub/internal/policy"
)

// NormalizeRows converts raw export rows into opportunity records. Rows are
// never dropped and field-level problems never fail the batch: an unparsable
// last-updated date leaves DaysSinceUpdate nil, an unparsable revenue cell
// reads as zero. Input order is preserved.
func NormalizeRows(rows []Row, pol policy.Policy, now time.Time) []models.OpportunityRecord {
	records := make([]models.OpportunityRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, normalizeRow(row, pol, now))
	}
	return records
}

func normalizeRow(row Row, pol policy.Policy, now time.Time) models.OpportunityRecord {
	rec := models.OpportunityRecord{
		OpportunityID:       cleanCell(row[ColOpportunityID]),
		CustomerName:        cleanCell(row[ColCustomerName]),
		Status:              cleanCell(row[ColStatus]),
		Stage:               cleanCell(row[ColStage]),
		PrimaryContactName:  cleanCell(row[ColPrimaryContactName]),
		DateCreated:         cleanCell(row[ColDateCreated]),
		LastUpdatedDate:     cleanCell(row[ColLastUpdatedDate]),
		NextStep:            cleanCell(row[ColNextStep]),
		TargetCloseDate:     cleanCell(row[ColTargetCloseDate]),
		EstimatedRevenue:    parseRevenue(row[ColEstimatedRevenue]),
		CreatedBy:           cleanCell(row[ColCreatedBy]),
		AWSAccountID:        cleanCell(row[ColAWSAccountID]),
		APNPrograms:         cleanCell(row[ColAPNPrograms]),
		PartnerProjectTitle: cleanCell(row[ColPartnerProjectTitle]),
		AWSSalesRepName:     cleanCell(row[ColAWSSalesRepName]),
		ClosedReason:        cleanCell(row[ColClosedReason]),
	}

	rec.DaysSinceUpdate = daysSinceUpdate(rec.LastUpdatedDate, now)
	rec.IsExcluded = pol.IsExcluded(rec)

	return rec
}

// cleanCell collapses whitespace and strips the literal "nan" that pandas
// exports leave in empty cells.
func cleanCell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if strings.EqualFold(s, "nan") {
		return ""
	}
	return s
}

var revenueNumberRegex = regexp.MustCompile(`-?[\d,]+(?:\.\d+)?`)

// parseRevenue reads the estimated-revenue cell, tolerating currency symbols
// and thousands separators ("$1,234.56"). Unparsable cells read as zero.
func parseRevenue(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, "nan") {
		return 0
	}

	if val, err := strconv.ParseFloat(text, 64); err == nil {
		return val
	}

	match := revenueNumberRegex.FindString(text)
	if match == "" {
		return 0
	}
	match = strings.ReplaceAll(match, ",", "")
	val, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return val
}
