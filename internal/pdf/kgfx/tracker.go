package kgfx

import (
	"log/slog"
	"sync"
	"time"
)

// SoftLimit is the queue size at which normal age-gated cleanup begins.
const SoftLimit = 20

// HardLimit is the queue size at which cleanup is forced regardless of
// position protection.
const HardLimit = 40

// MinAge is the minimum entry age before normal cleanup may remove it.
const MinAge = time.Second

// ForcedAge is the minimum entry age before hard-limit cleanup may remove
// it, bypassing position protection.
const ForcedAge = 5 * time.Second

// ProtectionRadius: entries within this distance of the tracker's current
// logical position are protected from normal cleanup.
const ProtectionRadius int64 = 2

// logInterval throttles periodic stats logging.
const logInterval = 10 * time.Second

type trackerEntry struct {
	path     string
	size     int
	position int64
	created  time.Time
}

// LifecycleTracker owns shared-memory regions handed off by ShmLease and
// unlinks them once they age out, protecting entries whose logical position
// (e.g. a page index) is near the tracker's current position, since the
// terminal may still be reading them (spec §4.9).
type LifecycleTracker struct {
	mu sync.Mutex

	queue           []trackerEntry
	totalSize       int
	lastLog         time.Time
	currentPosition int64
	logger          *slog.Logger
}

// NewLifecycleTracker returns an empty tracker.
func NewLifecycleTracker(logger *slog.Logger) *LifecycleTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &LifecycleTracker{lastLog: time.Now(), logger: logger}
}

// SetPosition updates the logical position used for protection decisions.
func (t *LifecycleTracker) SetPosition(position int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentPosition = position
}

// Position returns the tracker's current logical position.
func (t *LifecycleTracker) Position() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentPosition
}

func (t *LifecycleTracker) isProtected(position int64) bool {
	d := position - t.currentPosition
	if d < 0 {
		d = -d
	}
	return d <= ProtectionRadius
}

// Register records a region for eventual cleanup, then runs the cleanup
// pass and periodic stats logging.
func (t *LifecycleTracker) Register(path string, size int, position int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.logger.Debug("kgfx region registered", "path", path, "position", position, "size_mb", float64(size)/(1024*1024))

	t.queue = append(t.queue, trackerEntry{path: path, size: size, position: position, created: time.Now()})
	t.totalSize += size

	t.cleanupIfNeeded()
	t.maybeLogStats()
}

func (t *LifecycleTracker) cleanupIfNeeded() {
	now := time.Now()

	for len(t.queue) > SoftLimit {
		idx := -1
		for i, e := range t.queue {
			if !t.isProtected(e.position) {
				idx = i
				break
			}
		}
		if idx == -1 {
			break
		}
		if now.Sub(t.queue[idx].created) < MinAge {
			break
		}

		entry := t.queue[idx]
		t.queue = append(t.queue[:idx], t.queue[idx+1:]...)
		t.totalSize -= entry.size
		t.unlinkEntry(entry, false)
	}

	for len(t.queue) > HardLimit {
		entry := t.queue[0]
		if now.Sub(entry.created) < ForcedAge {
			break
		}
		t.queue = t.queue[1:]
		t.totalSize -= entry.size
		t.unlinkEntry(entry, true)
	}
}

func (t *LifecycleTracker) unlinkEntry(entry trackerEntry, forced bool) {
	if err := shmUnlink(entry.path); err != nil {
		recordShmUnlinkError(t.logger)
		t.logger.Debug("kgfx unlink failed", "path", entry.path, "err", err)
	} else {
		recordShmUnlinkSuccess(t.logger)
	}
	if forced {
		t.logger.Debug("kgfx region unlinked (forced)", "path", entry.path, "position", entry.position)
	} else {
		t.logger.Debug("kgfx region unlinked", "path", entry.path, "position", entry.position)
	}
}

func (t *LifecycleTracker) maybeLogStats() {
	now := time.Now()
	if now.Sub(t.lastLog) < logInterval {
		return
	}

	protected := t.protectedCountLocked()
	t.logger.Info("kgfx tracker stats",
		"regions", len(t.queue),
		"protected", protected,
		"size_mb", float64(t.totalSize)/(1024*1024),
		"position", t.currentPosition,
	)
	t.lastLog = now
}

// CleanupAll unlinks every tracked region regardless of age or protection.
func (t *LifecycleTracker) CleanupAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := len(t.queue)
	sizeMB := float64(t.totalSize) / (1024 * 1024)

	for _, entry := range t.queue {
		t.unlinkEntry(entry, false)
	}
	t.queue = nil
	t.totalSize = 0

	if count > 0 {
		t.logger.Info("kgfx tracker cleanup", "released", count, "size_mb", sizeMB)
	}
}

// DumpState logs the tracker's full internal state, for debugging.
func (t *LifecycleTracker) DumpState() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.logger.Info("kgfx tracker state",
		"position", t.currentPosition,
		"protected_min", t.currentPosition-ProtectionRadius,
		"protected_max", t.currentPosition+ProtectionRadius,
		"entries", len(t.queue),
		"size_mb", float64(t.totalSize)/(1024*1024),
	)
	for i, entry := range t.queue {
		t.logger.Info("kgfx tracker entry",
			"index", i,
			"protected", t.isProtected(entry.position),
			"position", entry.position,
			"path", entry.path,
			"size_mb", float64(entry.size)/(1024*1024),
		)
	}
}

// Len returns the number of tracked regions.
func (t *LifecycleTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// TotalSize returns the total size in bytes of all tracked regions.
func (t *LifecycleTracker) TotalSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalSize
}

// ProtectedCount returns the number of tracked regions currently protected.
func (t *LifecycleTracker) ProtectedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.protectedCountLocked()
}

func (t *LifecycleTracker) protectedCountLocked() int {
	n := 0
	for _, e := range t.queue {
		if t.isProtected(e.position) {
			n++
		}
	}
	return n
}
