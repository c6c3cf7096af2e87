package store

import "github.com/starford/prepcost/internal/session"

// Verify *DB satisfies the session ports at compile time.
var (
	_ session.ItemStore       = (*DB)(nil)
	_ session.LineStore       = (*DB)(nil)
	_ session.CostService     = (*DB)(nil)
	_ session.HistoryRecorder = (*DB)(nil)
)
