// Package policy holds the classification predicates shared by the
// statistics aggregator, the comparison engine and the report generator.
// The thresholds and membership sets are fixed at construction time; nothing
// is read from configuration at evaluation time.
package policy

import "github.com/formicag/ACEReportHub/internal/models"

// Statuses and stages that together define an "open" opportunity. Any other
// combination (Launched, Closed Lost, unrecognized values) is not open.
var (
	openStatuses = map[string]struct{}{
		"Approved":  {},
		"In review": {},
		"Draft":     {},
		"Submitted": {},
	}
	openStages = map[string]struct{}{
		"Prospect":            {},
		"Qualified":           {},
		"Committed":           {},
		"Business Validation": {},
	}
)

// DefaultStaleThresholdDays is the age above which an open opportunity
// counts as stale.
const DefaultStaleThresholdDays = 30

// legacyExcludedIDs are tracked in every snapshot but dropped from all
// user-facing aggregates and diff output.
var legacyExcludedIDs = []string{
	"O18244",
	"O38038",
	"O38001",
	"O37309",
	"O7015",
	"O7013",
	"O42819",
	"O1158289",
	"O6626478",
	"O6626601",
	"O6626677",
	"O6626721",
	"O8212897",
}

// Policy evaluates open/excluded/stale membership for opportunity records.
type Policy struct {
	excluded map[string]struct{}
}

// New builds a Policy with the given exclusion set. The set is copied.
func New(excludedIDs []string) Policy {
	excluded := make(map[string]struct{}, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = struct{}{}
	}
	return Policy{excluded: excluded}
}

// Default returns the Policy with the legacy exclusion list.
func Default() Policy {
	return New(legacyExcludedIDs)
}

// ExcludedCount reports the size of the exclusion set.
func (p Policy) ExcludedCount() int {
	return len(p.excluded)
}

// IsOpen reports whether the record counts as an open opportunity. It
// depends only on the record's own status and stage fields.
func (p Policy) IsOpen(rec models.OpportunityRecord) bool {
	if _, ok := openStatuses[rec.Status]; !ok {
		return false
	}
	_, ok := openStages[rec.Stage]
	return ok
}

// IsExcluded reports whether the record's ID is on the exclusion list.
func (p Policy) IsExcluded(rec models.OpportunityRecord) bool {
	_, ok := p.excluded[rec.OpportunityID]
	return ok
}

// IsExcludedID is IsExcluded for a bare opportunity ID.
func (p Policy) IsExcludedID(id string) bool {
	_, ok := p.excluded[id]
	return ok
}

// IsStale reports whether the record's age strictly exceeds the threshold.
// Records with an unparsable last-updated date are never stale.
func (p Policy) IsStale(rec models.OpportunityRecord, thresholdDays int) bool {
	return rec.DaysSinceUpdate != nil && *rec.DaysSinceUpdate > thresholdDays
}
