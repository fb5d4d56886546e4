// Package validation lints normalized records for data-quality problems.
// Findings are informational only; they never block or alter a snapshot.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/formicag/ACEReportHub/internal/models"
	"github.com/formicag/ACEReportHub/internal/policy"
)

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Finding is one data-quality issue on one record.
type Finding struct {
	OpportunityID string   `json:"opportunity_id"`
	Field         string   `json:"field"`
	Severity      Severity `json:"severity"`
	Message       string   `json:"message"`
}

// Rule examines one record and returns zero or more findings.
type Rule func(rec models.OpportunityRecord) []Finding

type Engine struct {
	rules []Rule
}

func NewEngine(rules ...Rule) *Engine {
	return &Engine{rules: rules}
}

// NewDefaultEngine wires the standard rule set.
func NewDefaultEngine(pol policy.Policy) *Engine {
	return NewEngine(
		RuleOpportunityIDFormat,
		RuleCustomerNameRequired,
		RuleNonNegativeRevenue,
		RuleOpenNeedsNextStep(pol),
	)
}

// Validate runs every rule over every record, preserving record order.
func (e *Engine) Validate(records []models.OpportunityRecord) []Finding {
	findings := []Finding{}
	for _, rec := range records {
		for _, rule := range e.rules {
			findings = append(findings, rule(rec)...)
		}
	}
	return findings
}

var opportunityIDPattern = regexp.MustCompile(`^O\d+$`)

// RuleOpportunityIDFormat flags IDs that do not look like Partner Central
// opportunity IDs (letter O followed by digits).
func RuleOpportunityIDFormat(rec models.OpportunityRecord) []Finding {
	if opportunityIDPattern.MatchString(rec.OpportunityID) {
		return nil
	}
	return []Finding{{
		OpportunityID: rec.OpportunityID,
		Field:         "opportunity_id",
		Severity:      SeverityError,
		Message:       fmt.Sprintf("opportunity ID %q does not match the expected O<digits> format", rec.OpportunityID),
	}}
}

func RuleCustomerNameRequired(rec models.OpportunityRecord) []Finding {
	if strings.TrimSpace(rec.CustomerName) != "" {
		return nil
	}
	return []Finding{{
		OpportunityID: rec.OpportunityID,
		Field:         "customer_name",
		Severity:      SeverityError,
		Message:       "customer name is empty",
	}}
}

func RuleNonNegativeRevenue(rec models.OpportunityRecord) []Finding {
	if rec.EstimatedRevenue >= 0 {
		return nil
	}
	return []Finding{{
		OpportunityID: rec.OpportunityID,
		Field:         "estimated_revenue",
		Severity:      SeverityWarning,
		Message:       fmt.Sprintf("estimated revenue is negative (%.2f)", rec.EstimatedRevenue),
	}}
}

// RuleOpenNeedsNextStep flags open records with no next step recorded.
func RuleOpenNeedsNextStep(pol policy.Policy) Rule {
	return func(rec models.OpportunityRecord) []Finding {
		if !pol.IsOpen(rec) || strings.TrimSpace(rec.NextStep) != "" {
			return nil
		}
		return []Finding{{
			OpportunityID: rec.OpportunityID,
			Field:         "next_step",
			Severity:      SeverityWarning,
			Message:       "open opportunity has no next step",
		}}
	}
}
