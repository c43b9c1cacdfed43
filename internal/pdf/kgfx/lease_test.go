package kgfx

import "testing"

func TestLeaseReleaseIsIdempotent(t *testing.T) {
	l := NewShmLease("/kgfxv2-lease-release", 100, nil)
	l.Release()
	l.Release() // must not double-unlink or panic
}

func TestLeaseHandoffTransfersOwnership(t *testing.T) {
	tr := NewLifecycleTracker(nil)
	l := NewShmLease("/kgfxv2-lease-handoff", 100, nil)

	l.HandoffToTracker(7, tr)

	if tr.Len() != 1 {
		t.Fatalf("want 1 region registered with tracker, got %d", tr.Len())
	}

	// Release after handoff must be a no-op: the tracker now owns the
	// unlink, so a second unlink here would violate the exactly-once
	// semantics spec §4.9 describes.
	l.Release()
	tr.CleanupAll()
}

func TestLeasePathAndSize(t *testing.T) {
	l := NewShmLease("/kgfxv2-lease-fields", 42, nil)
	if l.Path() != "/kgfxv2-lease-fields" {
		t.Fatalf("want path preserved, got %q", l.Path())
	}
	if l.Size() != 42 {
		t.Fatalf("want size 42, got %d", l.Size())
	}
	l.Release()
}
