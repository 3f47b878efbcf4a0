package monitor

import (
	"sync/atomic"
)

// WorkloadStats counts index operations for the CLI stats command.
type WorkloadStats struct {
	InsertCount uint64
	SearchCount uint64
	HitCount    uint64
}

func NewWorkloadStats() *WorkloadStats {
	return &WorkloadStats{}
}

func (ws *WorkloadStats) RecordInsert() {
	atomic.AddUint64(&ws.InsertCount, 1)
}

func (ws *WorkloadStats) RecordSearch() {
	atomic.AddUint64(&ws.SearchCount, 1)
}

func (ws *WorkloadStats) RecordHit() {
	atomic.AddUint64(&ws.HitCount, 1)
}

func (ws *WorkloadStats) Snapshot() (inserts, searches, hits uint64) {
	return atomic.LoadUint64(&ws.InsertCount),
		atomic.LoadUint64(&ws.SearchCount),
		atomic.LoadUint64(&ws.HitCount)
}

// HitRate is the fraction of searches that found their key.
func (ws *WorkloadStats) HitRate() float64 {
	searches := atomic.LoadUint64(&ws.SearchCount)
	if searches == 0 {
		return 0.0
	}
	hits := atomic.LoadUint64(&ws.HitCount)
	return float64(hits) / float64(searches)
}
