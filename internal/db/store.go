package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/formicag/ACEReportHub/internal/models"
	"github.com/formicag/ACEReportHub/internal/policy"
	"github.com/formicag/ACEReportHub/internal/stats"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists immutable weekly snapshots and their opportunity records.
// Snapshot IDs are assigned explicitly from max(snapshot_id)+1 inside the
// create transaction; the baseline is always the snapshot with the lowest
// ID, never a stored flag.
type Store struct {
	pool *pgxpool.Pool
	pol  policy.Policy
}

func NewStore(pool *pgxpool.Pool, pol policy.Policy) *Store {
	return &Store{pool: pool, pol: pol}
}

// snapshotCols is the header column list shared by all snapshot queries.
const snapshotCols = `snapshot_id, snapshot_date, source_filename, source_file_date, report_week_date,
	total_all_ops, total_open_ops, total_reportable_ops, total_excluded_ops,
	avg_days_since_update, stale_ops_count, total_arr,
	well_architected_count, rapid_pilot_count, consecutive_weeks_no_stale,
	email_sent_to, notes`

const recordCols = `snapshot_id, opportunity_id, customer_name, status, stage,
	primary_contact_name, date_created, last_updated_date, next_step, target_close_date,
	days_since_update, estimated_revenue, is_excluded, created_by, aws_account_id,
	apn_programs, partner_project_title, aws_sales_rep_name, closed_reason`

func scanSnapshot(scan func(dest ...interface{}) error) (models.Snapshot, error) {
	var snap models.Snapshot
	var reportWeek, notes *string
	var recipientsRaw []byte

	err := scan(
		&snap.ID, &snap.SnapshotDate, &snap.SourceFilename, &snap.SourceFileDate, &reportWeek,
		&snap.Metrics.TotalAllOps, &snap.Metrics.TotalOpenOps, &snap.Metrics.TotalReportableOps, &snap.Metrics.TotalExcludedOps,
		&snap.Metrics.AvgDaysSinceUpdate, &snap.Metrics.StaleOpsCount, &snap.Metrics.TotalARR,
		&snap.Metrics.WellArchitectedCount, &snap.Metrics.RapidPilotCount, &snap.Metrics.ConsecutiveWeeksNoStale,
		&recipientsRaw, &notes,
	)
	if err != nil {
		return snap, err
	}

	if reportWeek != nil {
		snap.ReportWeekDate = *reportWeek
	}
	if notes != nil {
		snap.Notes = *notes
	}
	if len(recipientsRaw) > 0 {
		_ = json.Unmarshal(recipientsRaw, &snap.EmailSentTo)
	}

	return snap, nil
}

func scanRecord(scan func(dest ...interface{}) error) (models.OpportunityRecord, error) {
	var rec models.OpportunityRecord
	err := scan(
		&rec.SnapshotID, &rec.OpportunityID, &rec.CustomerName, &rec.Status, &rec.Stage,
		&rec.PrimaryContactName, &rec.DateCreated, &rec.LastUpdatedDate, &rec.NextStep, &rec.TargetCloseDate,
		&rec.DaysSinceUpdate, &rec.EstimatedRevenue, &rec.IsExcluded, &rec.CreatedBy, &rec.AWSAccountID,
		&rec.APNPrograms, &rec.PartnerProjectTitle, &rec.AWSSalesRepName, &rec.ClosedReason,
	)
	return rec, err
}

// CreateSnapshotParams describes one ingestion.
type CreateSnapshotParams struct {
	Records        []models.OpportunityRecord
	CaptureTime    time.Time
	SourceFilename string
	SourceFileDate *time.Time
	ReportWeekDate string
	Recipients     []string
	Notes          string
	// Baseline marks this import as the baseline-designated one. It is
	// rejected when any snapshot already exists.
	Baseline bool
	// ReplaceWeek deletes any existing snapshot for the same report week
	// inside the create transaction instead of rejecting the import.
	ReplaceWeek bool
}

// CreateSnapshot computes the aggregate metrics over params.Records and
// persists the header plus every record — open, closed and excluded alike —
// in a single transaction. Either the full snapshot commits or nothing does.
func (s *Store) CreateSnapshot(ctx context.Context, params CreateSnapshotParams) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var lastID *int64
	if err := tx.QueryRow(ctx, "SELECT MAX(snapshot_id) FROM weekly_snapshots").Scan(&lastID); err != nil {
		return 0, fmt.Errorf("failed to read last snapshot id: %w", err)
	}

	if params.Baseline && lastID != nil {
		return 0, ErrDuplicateBaseline
	}

	if params.ReportWeekDate != "" {
		var existingID *int64
		err := tx.QueryRow(ctx,
			"SELECT MAX(snapshot_id) FROM weekly_snapshots WHERE report_week_date = $1",
			params.ReportWeekDate).Scan(&existingID)
		if err != nil {
			return 0, fmt.Errorf("failed to check report week: %w", err)
		}
		if existingID != nil {
			if !params.ReplaceWeek {
				return 0, ErrDuplicateReportWeek
			}
			if _, err := tx.Exec(ctx, "DELETE FROM opportunities WHERE snapshot_id = $1", *existingID); err != nil {
				return 0, fmt.Errorf("failed to replace records for week %s: %w", params.ReportWeekDate, err)
			}
			if _, err := tx.Exec(ctx, "DELETE FROM weekly_snapshots WHERE snapshot_id = $1", *existingID); err != nil {
				return 0, fmt.Errorf("failed to replace snapshot for week %s: %w", params.ReportWeekDate, err)
			}
			log.Printf("[DB] Replacing snapshot %d for report week %s", *existingID, params.ReportWeekDate)
		}
	}

	snapshotID := int64(1)
	var prior *stats.PriorWeek
	if lastID != nil {
		snapshotID = *lastID + 1

		// Read after any week replacement so a replaced snapshot never
		// feeds its own streak context.
		var p stats.PriorWeek
		err := tx.QueryRow(ctx, `
			SELECT stale_ops_count, consecutive_weeks_no_stale
			FROM weekly_snapshots
			ORDER BY snapshot_id DESC
			LIMIT 1
		`).Scan(&p.StaleOpsCount, &p.ConsecutiveWeeksNoStale)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// The replaced snapshot was the only one.
		case err != nil:
			return 0, fmt.Errorf("failed to read prior snapshot: %w", err)
		default:
			prior = &p
		}
	}

	m := stats.Compute(params.Records, prior, s.pol)

	var recipientsRaw []byte
	if len(params.Recipients) > 0 {
		recipientsRaw, err = json.Marshal(params.Recipients)
		if err != nil {
			return 0, fmt.Errorf("failed to encode recipients: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO weekly_snapshots (`+snapshotCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		snapshotID, params.CaptureTime, params.SourceFilename, params.SourceFileDate, nullIfEmpty(params.ReportWeekDate),
		m.TotalAllOps, m.TotalOpenOps, m.TotalReportableOps, m.TotalExcludedOps,
		m.AvgDaysSinceUpdate, m.StaleOpsCount, m.TotalARR,
		m.WellArchitectedCount, m.RapidPilotCount, m.ConsecutiveWeeksNoStale,
		recipientsRaw, nullIfEmpty(params.Notes),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	for _, rec := range params.Records {
		_, err = tx.Exec(ctx, `
			INSERT INTO opportunities (`+recordCols+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		`,
			snapshotID, rec.OpportunityID, rec.CustomerName, rec.Status, rec.Stage,
			rec.PrimaryContactName, rec.DateCreated, rec.LastUpdatedDate, rec.NextStep, rec.TargetCloseDate,
			rec.DaysSinceUpdate, rec.EstimatedRevenue, s.pol.IsExcluded(rec), rec.CreatedBy, rec.AWSAccountID,
			rec.APNPrograms, rec.PartnerProjectTitle, rec.AWSSalesRepName, rec.ClosedReason,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert record %s: %w", rec.OpportunityID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit failed: %w", err)
	}

	log.Printf("[DB] Saved snapshot %d: %d total ops, %d open (%d reportable, %d excluded), ARR %.2f, streak %d",
		snapshotID, m.TotalAllOps, m.TotalOpenOps, m.TotalReportableOps, m.TotalExcludedOps, m.TotalARR, m.ConsecutiveWeeksNoStale)

	return snapshotID, nil
}

func (s *Store) GetSnapshot(ctx context.Context, id int64) (*models.Snapshot, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+snapshotCols+" FROM weekly_snapshots WHERE snapshot_id = $1", id)
	snap, err := scanSnapshot(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %d: %w", id, err)
	}
	return &snap, nil
}

// GetBaseline returns the chronologically first snapshot (lowest ID), or nil
// when the store is empty.
func (s *Store) GetBaseline(ctx context.Context) (*models.Snapshot, error) {
	return s.getByOrder(ctx, "ASC")
}

// GetLatest returns the most recently created snapshot (highest ID), or nil
// when the store is empty.
func (s *Store) GetLatest(ctx context.Context) (*models.Snapshot, error) {
	return s.getByOrder(ctx, "DESC")
}

// GetLatestExcluding returns the most recent snapshot whose ID is not
// excludeID, or nil when none remains. Used when previewing a replace-week
// import, so the snapshot about to be replaced never feeds its own streak
// context; CreateSnapshot applies the same rule by re-reading the prior
// after the in-transaction delete.
func (s *Store) GetLatestExcluding(ctx context.Context, excludeID int64) (*models.Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+snapshotCols+" FROM weekly_snapshots WHERE snapshot_id <> $1 ORDER BY snapshot_id DESC LIMIT 1",
		excludeID)
	snap, err := scanSnapshot(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return &snap, nil
}

func (s *Store) getByOrder(ctx context.Context, order string) (*models.Snapshot, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+snapshotCols+" FROM weekly_snapshots ORDER BY snapshot_id "+order+" LIMIT 1")
	snap, err := scanSnapshot(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return &snap, nil
}

// FindByReportWeek looks up the snapshot asserted for the given logical week
// (YYYY-MM-DD). Returns nil when no snapshot claims the week.
func (s *Store) FindByReportWeek(ctx context.Context, reportWeekDate string) (*models.Snapshot, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+snapshotCols+" FROM weekly_snapshots WHERE report_week_date = $1", reportWeekDate)
	snap, err := scanSnapshot(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find snapshot for week %s: %w", reportWeekDate, err)
	}
	return &snap, nil
}

// HasAnySnapshot reports whether at least one snapshot exists.
func (s *Store) HasAnySnapshot(ctx context.Context) (bool, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM weekly_snapshots").Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count > 0, nil
}

// ListSnapshots returns summaries of every snapshot, most recent first.
func (s *Store) ListSnapshots(ctx context.Context) ([]models.SnapshotSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT snapshot_id, snapshot_date, source_filename, COALESCE(report_week_date, ''),
		       total_open_ops, total_reportable_ops, stale_ops_count,
		       avg_days_since_update, total_arr,
		       well_architected_count, rapid_pilot_count, consecutive_weeks_no_stale
		FROM weekly_snapshots
		ORDER BY snapshot_id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	summaries := []models.SnapshotSummary{}
	for rows.Next() {
		var sum models.SnapshotSummary
		if err := rows.Scan(
			&sum.ID, &sum.SnapshotDate, &sum.SourceFilename, &sum.ReportWeekDate,
			&sum.TotalOpenOps, &sum.TotalReportableOps, &sum.StaleOpsCount,
			&sum.AvgDaysSinceUpdate, &sum.TotalARR,
			&sum.WellArchitectedCount, &sum.RapidPilotCount, &sum.ConsecutiveWeeksNoStale,
		); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return summaries, nil
}

// GetRecords returns every record owned by the snapshot in insertion order.
func (s *Store) GetRecords(ctx context.Context, snapshotID int64) ([]models.OpportunityRecord, error) {
	if _, err := s.GetSnapshot(ctx, snapshotID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, "SELECT "+recordCols+" FROM opportunities WHERE snapshot_id = $1 ORDER BY id", snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to load records for snapshot %d: %w", snapshotID, err)
	}
	defer rows.Close()

	records := []models.OpportunityRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	log.Printf("[DB] Retrieved %d opportunities from snapshot %d", len(records), snapshotID)
	return records, nil
}

// DeleteSnapshot removes the header and every owned record in one
// transaction. Used only to replace a mis-dated import; historical
// comparisons already rendered are not revisited.
func (s *Store) DeleteSnapshot(ctx context.Context, snapshotID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM opportunities WHERE snapshot_id = $1", snapshotID); err != nil {
		return fmt.Errorf("failed to delete records for snapshot %d: %w", snapshotID, err)
	}

	tag, err := tx.Exec(ctx, "DELETE FROM weekly_snapshots WHERE snapshot_id = $1", snapshotID)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot %d: %w", snapshotID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSnapshotNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	log.Printf("[DB] Deleted snapshot %d and all associated opportunity records", snapshotID)
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
