package kgfx

import "log/slog"

// ShmLease owns a shared-memory payload's cleanup until it is either
// dropped (unlinking immediately) or handed off to a LifecycleTracker for
// deferred cleanup (spec §4.9).
type ShmLease struct {
	path          string
	size          int
	cleanupOnDrop bool
	logger        *slog.Logger
}

// NewShmLease wraps a just-written shm path, taking ownership of its
// cleanup.
func NewShmLease(path string, size int, logger *slog.Logger) *ShmLease {
	if logger == nil {
		logger = slog.Default()
	}
	recordShmCreate(logger)
	return &ShmLease{path: path, size: size, cleanupOnDrop: true, logger: logger}
}

// Path returns the shm path.
func (l *ShmLease) Path() string { return l.path }

// Size returns the payload size.
func (l *ShmLease) Size() int { return l.size }

// HandoffToTracker transfers cleanup responsibility to tracker, associating
// the region with the given logical position. After this call the lease no
// longer unlinks on Release.
func (l *ShmLease) HandoffToTracker(position int64, tracker *LifecycleTracker) {
	l.cleanupOnDrop = false
	path := l.path
	l.path = ""
	tracker.Register(path, l.size, position)
}

// Release unlinks the shm region immediately unless ownership was already
// handed off to a tracker. Safe to call more than once. Go has no
// destructors, so callers must call this explicitly (typically via defer)
// instead of relying on garbage collection, unlike the reference
// implementation's Drop impl.
func (l *ShmLease) Release() {
	if !l.cleanupOnDrop || l.path == "" {
		return
	}
	l.cleanupOnDrop = false

	if err := shmUnlink(l.path); err != nil {
		recordShmUnlinkError(l.logger)
	} else {
		recordShmUnlinkSuccess(l.logger)
	}
}
