// Package compare produces the three-way diff between a current record set
// and a baseline snapshot: newly appeared open opportunities, baseline-open
// opportunities that are no longer open, and status or stage transitions.
package compare

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/formicag/ACEReportHub/internal/db"
	"github.com/formicag/ACEReportHub/internal/models"
	"github.com/formicag/ACEReportHub/internal/policy"
)

// Diff computes the comparison between current and baseline record sets.
// Identity sets are built over ALL records on both sides, not just open ones,
// so an opportunity that existed closed at baseline and later opened is a
// transition, not a new arrival. Output slices are sorted by opportunity ID.
func Diff(current, baseline []models.OpportunityRecord, pol policy.Policy) models.ComparisonResult {
	curByID := indexByID(current)
	baseByID := indexByID(baseline)

	result := models.ComparisonResult{
		NewOps:        []models.OpportunityRecord{},
		NoLongerOpen:  []models.ClosedOp{},
		StatusChanges: []models.StatusChange{},
	}

	for id, cur := range curByID {
		if _, existed := baseByID[id]; !existed && pol.IsOpen(cur) {
			result.NewOps = append(result.NewOps, cur)
		}
	}

	for id, base := range baseByID {
		if !pol.IsOpen(base) {
			continue
		}
		cur, present := curByID[id]
		if present && pol.IsOpen(cur) {
			continue
		}

		closed := models.ClosedOp{
			OpportunityID:  id,
			CustomerName:   base.CustomerName,
			PreviousStage:  base.Stage,
			PreviousStatus: base.Status,
		}
		if present {
			closed.CurrentStage = cur.Stage
			closed.CurrentStatus = cur.Status
		} else {
			closed.CurrentStage = models.NotInCurrentReport
			closed.CurrentStatus = models.NotInCurrentReport
		}
		result.NoLongerOpen = append(result.NoLongerOpen, closed)
	}

	for id, cur := range curByID {
		base, present := baseByID[id]
		if !present {
			continue
		}
		if base.Status == cur.Status && base.Stage == cur.Stage {
			continue
		}
		result.StatusChanges = append(result.StatusChanges, models.StatusChange{
			OpportunityID:       id,
			CustomerName:        cur.CustomerName,
			OldStatus:           base.Status,
			NewStatus:           cur.Status,
			OldStage:            base.Stage,
			NewStage:            cur.Stage,
			CreatedBy:           cur.CreatedBy,
			EstimatedRevenue:    cur.EstimatedRevenue,
			ClosedReason:        cur.ClosedReason,
			LastUpdatedDate:     cur.LastUpdatedDate,
			DateCreated:         cur.DateCreated,
			PartnerProjectTitle: cur.PartnerProjectTitle,
			AWSAccountID:        cur.AWSAccountID,
			AWSSalesRepName:     cur.AWSSalesRepName,
		})
	}

	sort.Slice(result.NewOps, func(i, j int) bool {
		return result.NewOps[i].OpportunityID < result.NewOps[j].OpportunityID
	})
	sort.Slice(result.NoLongerOpen, func(i, j int) bool {
		return result.NoLongerOpen[i].OpportunityID < result.NoLongerOpen[j].OpportunityID
	})
	sort.Slice(result.StatusChanges, func(i, j int) bool {
		return result.StatusChanges[i].OpportunityID < result.StatusChanges[j].OpportunityID
	})

	return result
}

// indexByID keeps the last record when an export carries duplicate IDs.
func indexByID(records []models.OpportunityRecord) map[string]models.OpportunityRecord {
	byID := make(map[string]models.OpportunityRecord, len(records))
	for _, rec := range records {
		byID[rec.OpportunityID] = rec
	}
	return byID
}

// Engine resolves snapshot record sets from the store and diffs them.
type Engine struct {
	store *db.Store
	pol   policy.Policy
}

func NewEngine(store *db.Store, pol policy.Policy) *Engine {
	return &Engine{store: store, pol: pol}
}

// CompareWithSnapshot diffs the given current records against a stored
// snapshot's records.
func (e *Engine) CompareWithSnapshot(ctx context.Context, current []models.OpportunityRecord, snapshotID int64) (models.ComparisonResult, error) {
	baseline, err := e.store.GetRecords(ctx, snapshotID)
	if err != nil {
		return models.ComparisonResult{}, fmt.Errorf("failed to load comparison snapshot %d: %w", snapshotID, err)
	}

	result := Diff(current, baseline, e.pol)
	log.Printf("[COMPARE] Snapshot %d vs current: %d new, %d no longer open, %d changed",
		snapshotID, len(result.NewOps), len(result.NoLongerOpen), len(result.StatusChanges))
	return result, nil
}

// CompareWithBaseline diffs the given current records against the baseline
// snapshot (lowest snapshot ID). Returns an empty result when no baseline
// exists yet.
func (e *Engine) CompareWithBaseline(ctx context.Context, current []models.OpportunityRecord) (models.ComparisonResult, error) {
	baseline, err := e.store.GetBaseline(ctx)
	if err != nil {
		return models.ComparisonResult{}, err
	}
	if baseline == nil {
		return models.ComparisonResult{
			NewOps:        []models.OpportunityRecord{},
			NoLongerOpen:  []models.ClosedOp{},
			StatusChanges: []models.StatusChange{},
		}, nil
	}
	return e.CompareWithSnapshot(ctx, current, baseline.ID)
}
