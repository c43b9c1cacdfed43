package kgfx

import (
	"log/slog"
	"sync/atomic"
)

var (
	shmCreated      atomic.Int64
	shmUnlinked     atomic.Int64
	shmUnlinkErrors atomic.Int64
)

// auditThreshold is 1.5x HardLimit: if the estimated count of live (created
// but not yet unlinked) regions exceeds it, something downstream is failing
// to release leases.
func auditThreshold() int64 {
	return int64(HardLimit*3) / 2
}

func auditLiveShm(logger *slog.Logger) {
	created := shmCreated.Load()
	unlinked := shmUnlinked.Load()
	live := created - unlinked
	if live < 0 {
		live = 0
	}
	threshold := auditThreshold()

	if live > threshold {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("kgfx shm leak audit",
			"live_estimate", live,
			"threshold", threshold,
			"created", created,
			"unlinked", unlinked,
			"unlink_errors", shmUnlinkErrors.Load(),
		)
	}
}

func recordShmCreate(logger *slog.Logger) {
	shmCreated.Add(1)
	auditLiveShm(logger)
}

func recordShmUnlinkSuccess(logger *slog.Logger) {
	shmUnlinked.Add(1)
	auditLiveShm(logger)
}

func recordShmUnlinkError(logger *slog.Logger) {
	shmUnlinkErrors.Add(1)
	auditLiveShm(logger)
}

// MetricsSnapshot reports the current shm lifecycle counters, for wiring
// into an external metrics exporter.
type MetricsSnapshot struct {
	Created      int64
	Unlinked     int64
	UnlinkErrors int64
}

// Metrics returns a point-in-time snapshot of the package-level shm
// lifecycle counters.
func Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		Created:      shmCreated.Load(),
		Unlinked:     shmUnlinked.Load(),
		UnlinkErrors: shmUnlinkErrors.Load(),
	}
}
