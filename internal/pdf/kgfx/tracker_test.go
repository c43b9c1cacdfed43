package kgfx

import (
	"fmt"
	"testing"
	"time"
)

func TestTrackerBasicCleanupAfterLimit(t *testing.T) {
	tr := NewLifecycleTracker(nil)
	tr.SetPosition(100)

	for i := 0; i < 25; i++ {
		tr.Register(fmt.Sprintf("/kgfxv2-track-%d", i), 100, int64(i))
	}

	time.Sleep(1100 * time.Millisecond)
	tr.Register("/kgfxv2-track-extra", 100, 50)

	if tr.Len() > SoftLimit+1 {
		t.Fatalf("queue length %d exceeds soft limit", tr.Len())
	}
	tr.CleanupAll()
}

func TestTrackerProtectionByPosition(t *testing.T) {
	tr := NewLifecycleTracker(nil)
	tr.SetPosition(10)

	protectedPositions := []int64{8, 9, 10, 11, 12}
	for _, pos := range protectedPositions {
		tr.Register(fmt.Sprintf("/kgfxv2-prot-%d", pos), 100, pos)
	}

	for i := int64(100); i < 120; i++ {
		tr.Register(fmt.Sprintf("/kgfxv2-prot-far-%d", i), 100, i)
	}

	time.Sleep(1100 * time.Millisecond)
	tr.Register("/kgfxv2-prot-trigger", 100, 200)

	if tr.ProtectedCount() < len(protectedPositions) {
		t.Fatalf("protected count %d is less than expected %d", tr.ProtectedCount(), len(protectedPositions))
	}
	tr.CleanupAll()
}

func TestTrackerAgeGatePreventsPrematureCleanup(t *testing.T) {
	tr := NewLifecycleTracker(nil)
	tr.SetPosition(1000)

	for i := 0; i < 30; i++ {
		tr.Register(fmt.Sprintf("/kgfxv2-age-%d", i), 100, int64(i))
	}

	if tr.Len() <= SoftLimit {
		t.Fatalf("queue length %d should exceed soft limit due to age gate", tr.Len())
	}
	tr.CleanupAll()
}

func TestTrackerPositionUpdate(t *testing.T) {
	tr := NewLifecycleTracker(nil)

	tr.SetPosition(5)
	if tr.Position() != 5 {
		t.Fatalf("want position 5, got %d", tr.Position())
	}

	tr.SetPosition(10)
	if tr.Position() != 10 {
		t.Fatalf("want position 10, got %d", tr.Position())
	}

	if !tr.isProtected(8) {
		t.Fatalf("expected position 8 to be protected")
	}
	if !tr.isProtected(12) {
		t.Fatalf("expected position 12 to be protected")
	}
	if tr.isProtected(7) {
		t.Fatalf("expected position 7 to be unprotected")
	}
	if tr.isProtected(13) {
		t.Fatalf("expected position 13 to be unprotected")
	}
}

func TestTrackerSaturatingSizeTracking(t *testing.T) {
	tr := NewLifecycleTracker(nil)

	tr.Register("/kgfxv2-sat-0", 1000, 0)
	if tr.TotalSize() != 1000 {
		t.Fatalf("want total size 1000, got %d", tr.TotalSize())
	}

	tr.CleanupAll()
	if tr.TotalSize() != 0 {
		t.Fatalf("want total size 0 after cleanup, got %d", tr.TotalSize())
	}
}
