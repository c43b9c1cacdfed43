package kgfx

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var testCounter int64

func testPrefix() string {
	id := atomic.AddInt64(&testCounter, 1)
	return fmt.Sprintf("kgfxv2_test%d_%d", os.Getpid(), id)
}

func newTestPool(poolSize, regionSize int) *RegionPool {
	return newRegionPoolWithPrefix(poolSize, regionSize, testPrefix(), 0, nil)
}

func TestPoolInitialization(t *testing.T) {
	pool := newTestPool(3, 1024)
	defer pool.Clear()

	if pool.IsInitialized() {
		t.Fatalf("expected pool to be uninitialized before first write")
	}

	path, err := pool.WriteAndGetPath([]byte("test data"))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !pool.IsInitialized() {
		t.Fatalf("expected pool to be initialized after write")
	}
	if !strings.Contains(path, "kgfxv2_test") {
		t.Fatalf("path %q should contain kgfxv2_test", path)
	}
}

func TestPoolRoundRobin(t *testing.T) {
	pool := newTestPool(3, 1024)
	defer pool.Clear()

	path1, err := pool.WriteAndGetPath([]byte("1"))
	if err != nil {
		t.Fatalf("write 1: %v", err)
	}
	path2, err := pool.WriteAndGetPath([]byte("2"))
	if err != nil {
		t.Fatalf("write 2: %v", err)
	}
	path3, err := pool.WriteAndGetPath([]byte("3"))
	if err != nil {
		t.Fatalf("write 3: %v", err)
	}
	path4, err := pool.WriteAndGetPath([]byte("4"))
	if err != nil {
		t.Fatalf("write 4: %v", err)
	}

	if path1 == path2 || path2 == path3 || path1 == path3 {
		t.Fatalf("expected three distinct slot paths, got %q %q %q", path1, path2, path3)
	}
	if path1 != path4 {
		t.Fatalf("expected path4 to wrap around to path1, got %q vs %q", path4, path1)
	}
}

func TestPoolSizeLimit(t *testing.T) {
	pool := newTestPool(2, 100)
	defer pool.Clear()

	large := make([]byte, 200)
	_, err := pool.WriteAndGetPath(large)
	if err == nil {
		t.Fatalf("expected error for oversized write")
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected err to wrap ErrInvalidInput, got %q", err)
	}
	if !strings.Contains(err.Error(), "200") || !strings.Contains(err.Error(), "100") {
		t.Fatalf("expected error to mention sizes, got %q", err)
	}
}

func TestPoolPathFormat(t *testing.T) {
	pool := newTestPool(2, 1024)
	defer pool.Clear()

	path, err := pool.WriteAndGetPath([]byte("test"))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !strings.HasPrefix(path, "/") {
		t.Fatalf("path %q should start with /", path)
	}
	if !strings.Contains(path, "kgfxv2_test") {
		t.Fatalf("path %q should contain kgfxv2_test", path)
	}
}

func TestPoolExplicitInitialization(t *testing.T) {
	pool := newTestPool(2, 1024)
	defer pool.Clear()

	if err := pool.Initialize(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if !pool.IsInitialized() {
		t.Fatalf("expected initialized")
	}
	if err := pool.Initialize(); err != nil {
		t.Fatalf("second init should be a no-op, got error: %v", err)
	}
}

func TestPoolExhaustedWithReuseAge(t *testing.T) {
	pool := newRegionPoolWithPrefix(2, 1024, testPrefix(), time.Hour, nil)
	defer pool.Clear()

	if _, err := pool.WriteAndGetPath([]byte("a")); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if _, err := pool.WriteAndGetPath([]byte("b")); err != nil {
		t.Fatalf("write b: %v", err)
	}
	if _, err := pool.WriteAndGetPath([]byte("c")); err != ErrPoolExhausted {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}
}

func TestPoolDefaultPathFormat(t *testing.T) {
	pool := NewRegionPoolWithConfig(1, 1024, nil)
	defer pool.Clear()

	path, err := pool.WriteAndGetPath([]byte("test"))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	expectedPrefix := fmt.Sprintf("/kgfxv2_pool_%d_", os.Getpid())
	if !strings.HasPrefix(path, expectedPrefix) {
		t.Fatalf("path %q should start with %q", path, expectedPrefix)
	}
}
