package canvas

import "testing"

func TestRegistryRecordLookupInvalidate(t *testing.T) {
	r := NewFrameRegistry()
	r.Record(1, 10)
	r.Record(2, 20)

	if id, ok := r.Lookup(1); !ok || id != 10 {
		t.Fatalf("want (10,true), got (%d,%v)", id, ok)
	}
	if _, ok := r.Lookup(3); ok {
		t.Fatalf("expected no entry for page 3")
	}

	r.Invalidate(1)
	if _, ok := r.Lookup(1); ok {
		t.Fatalf("expected page 1 invalidated")
	}
	if id, ok := r.Lookup(2); !ok || id != 20 {
		t.Fatalf("want (20,true), got (%d,%v)", id, ok)
	}
}

func TestRegistryInvalidateRange(t *testing.T) {
	r := NewFrameRegistry()
	r.Record(1, 10)
	r.Record(2, 20)
	r.Record(3, 30)
	r.Record(4, 40)

	r.InvalidateRange(2, 3)

	if id, ok := r.Lookup(1); !ok || id != 10 {
		t.Fatalf("want page 1 kept, got (%d,%v)", id, ok)
	}
	if _, ok := r.Lookup(2); ok {
		t.Fatalf("expected page 2 invalidated")
	}
	if _, ok := r.Lookup(3); ok {
		t.Fatalf("expected page 3 invalidated")
	}
	if id, ok := r.Lookup(4); !ok || id != 40 {
		t.Fatalf("want page 4 kept, got (%d,%v)", id, ok)
	}
}

func TestRegistryFramesInRange(t *testing.T) {
	r := NewFrameRegistry()
	r.Record(1, 10)
	r.Record(5, 50)
	r.Record(10, 100)

	frames := r.FramesInRange(1, 5)
	if len(frames) != 2 {
		t.Fatalf("want 2 frames in [1,5], got %d: %+v", len(frames), frames)
	}
}

func TestRegistryInvalidateByImageID(t *testing.T) {
	r := NewFrameRegistry()
	r.Record(1, 10)
	r.Record(2, 20)

	page, ok := r.InvalidateByImageID(20)
	if !ok || page != 2 {
		t.Fatalf("want (2,true), got (%d,%v)", page, ok)
	}
	if _, ok := r.Lookup(2); ok {
		t.Fatalf("expected page 2 invalidated")
	}
	if _, ok := r.InvalidateByImageID(999); ok {
		t.Fatalf("expected no match for unknown image id")
	}
}

func TestRegistryClear(t *testing.T) {
	r := NewFrameRegistry()
	r.Record(1, 10)
	r.Clear()
	if _, ok := r.Lookup(1); ok {
		t.Fatalf("expected registry cleared")
	}
}
