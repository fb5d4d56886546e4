package models

import "time"

// OpportunityRecord is one pipeline item as captured at a point in time.
// Records are constructed once by the normalizer or the store scan and never
// mutated afterwards; snapshot history stays immutable by construction.
type OpportunityRecord struct {
	SnapshotID          int64   `json:"snapshot_id"`
	OpportunityID       string  `json:"opportunity_id"`
	CustomerName        string  `json:"customer_name"`
	Status              string  `json:"status"`
	Stage               string  `json:"stage"`
	PrimaryContactName  string  `json:"primary_contact_name"`
	DateCreated         string  `json:"date_created"`
	LastUpdatedDate     string  `json:"last_updated_date"`
	NextStep            string  `json:"next_step"`
	TargetCloseDate     string  `json:"target_close_date"`
	DaysSinceUpdate     *int    `json:"days_since_update"`
	EstimatedRevenue    float64 `json:"estimated_revenue"`
	IsExcluded          bool    `json:"is_excluded"`
	CreatedBy           string  `json:"created_by"`
	AWSAccountID        string  `json:"aws_account_id"`
	APNPrograms         string  `json:"apn_programs"`
	PartnerProjectTitle string  `json:"partner_project_title"`
	AWSSalesRepName     string  `json:"aws_sales_rep_name"`
	ClosedReason        string  `json:"closed_reason"`
}

// Metrics are the aggregate hygiene statistics computed over one record set.
type Metrics struct {
	TotalAllOps        int     `json:"total_all_ops"`
	TotalOpenOps       int     `json:"total_open_ops"`
	TotalReportableOps int     `json:"total_reportable_ops"`
	TotalExcludedOps   int     `json:"total_excluded_ops"`
	AvgDaysSinceUpdate float64 `json:"avg_days_since_update"`
	StaleOpsCount      int     `json:"stale_ops_count"`
	// TotalARR sums estimated revenue over ALL open records, excluded IDs
	// included, while the count metrics drop excluded IDs. Kept as-is for
	// historical comparability.
	TotalARR                float64 `json:"total_arr"`
	WellArchitectedCount    int     `json:"well_architected_count"`
	RapidPilotCount         int     `json:"rapid_pilot_count"`
	ConsecutiveWeeksNoStale int     `json:"consecutive_weeks_no_stale"`
}

// Snapshot is the immutable header of one persisted weekly capture.
type Snapshot struct {
	ID             int64      `json:"snapshot_id"`
	SnapshotDate   time.Time  `json:"snapshot_date"`
	SourceFilename string     `json:"source_filename"`
	SourceFileDate *time.Time `json:"source_file_date"`
	// ReportWeekDate is the operator-asserted logical week (YYYY-MM-DD),
	// distinct from the capture timestamp.
	ReportWeekDate string   `json:"report_week_date"`
	Metrics        Metrics  `json:"metrics"`
	EmailSentTo    []string `json:"email_sent_to"`
	Notes          string   `json:"notes"`
}

// SnapshotSummary carries the history-list fields only, no record set.
type SnapshotSummary struct {
	ID                      int64     `json:"snapshot_id"`
	SnapshotDate            time.Time `json:"snapshot_date"`
	SourceFilename          string    `json:"source_filename"`
	ReportWeekDate          string    `json:"report_week_date"`
	TotalOpenOps            int       `json:"total_open_ops"`
	TotalReportableOps      int       `json:"total_reportable_ops"`
	StaleOpsCount           int       `json:"stale_ops_count"`
	AvgDaysSinceUpdate      float64   `json:"avg_days_since_update"`
	TotalARR                float64   `json:"total_arr"`
	WellArchitectedCount    int       `json:"well_architected_count"`
	RapidPilotCount         int       `json:"rapid_pilot_count"`
	ConsecutiveWeeksNoStale int       `json:"consecutive_weeks_no_stale"`
}

// NotInCurrentReport marks a no-longer-open entry whose ID vanished from the
// current export entirely.
const NotInCurrentReport = "Not in current report"

// ClosedOp is a record that was open at baseline and is no longer open.
type ClosedOp struct {
	OpportunityID  string `json:"opportunity_id"`
	CustomerName   string `json:"customer_name"`
	PreviousStage  string `json:"previous_stage"`
	PreviousStatus string `json:"previous_status"`
	CurrentStage   string `json:"current_stage"`
	CurrentStatus  string `json:"current_status"`
}

// StatusChange is a status or stage transition between two snapshots.
// Contextual fields are sourced from the current side.
type StatusChange struct {
	OpportunityID       string  `json:"opportunity_id"`
	CustomerName        string  `json:"customer_name"`
	OldStatus           string  `json:"old_status"`
	NewStatus           string  `json:"new_status"`
	OldStage            string  `json:"old_stage"`
	NewStage            string  `json:"new_stage"`
	CreatedBy           string  `json:"created_by"`
	EstimatedRevenue    float64 `json:"estimated_revenue"`
	ClosedReason        string  `json:"closed_reason"`
	LastUpdatedDate     string  `json:"last_updated_date"`
	DateCreated         string  `json:"date_created"`
	PartnerProjectTitle string  `json:"partner_project_title"`
	AWSAccountID        string  `json:"aws_account_id"`
	AWSSalesRepName     string  `json:"aws_sales_rep_name"`
}

// ComparisonResult is the three-way diff between two snapshots. It is never
// persisted; all slices are sorted by opportunity ID so repeated runs over
// the same inputs produce identical output.
type ComparisonResult struct {
	NewOps        []OpportunityRecord `json:"new_ops"`
	NoLongerOpen  []ClosedOp          `json:"no_longer_open"`
	StatusChanges []StatusChange      `json:"status_changes"`
}
