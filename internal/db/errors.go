package db

import "errors"

var (
	// ErrSnapshotNotFound is returned by lookups on an unknown snapshot ID.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrDuplicateBaseline is returned when a baseline-designated import is
	// attempted while the store already holds any snapshot. The check lives
	// in the store so no caller can bypass the invariant.
	ErrDuplicateBaseline = errors.New("baseline snapshot already exists")

	// ErrDuplicateReportWeek is returned when a snapshot already exists for
	// the asserted report week. The operator must delete the existing
	// snapshot (replace) or abort; the store never overwrites silently.
	ErrDuplicateReportWeek = errors.New("snapshot already exists for report week")
)
