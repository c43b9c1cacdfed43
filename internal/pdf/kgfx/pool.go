// Package kgfx manages POSIX shared-memory regions used to hand frame
// payloads to the terminal without going through the PTY byte stream
// (spec §4.9/§4.10, Kitty SHM transmission path).
package kgfx

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultRegionSize is 32 MB per pool slot.
const DefaultRegionSize = 32 * 1024 * 1024

// DefaultPoolSize is the number of slots in a RegionPool.
const DefaultPoolSize = 10

// DefaultMinReuseAge is the minimum time before a slot may be reused.
const DefaultMinReuseAge = time.Second

// ErrPoolExhausted is returned when every slot is within its reuse age.
var ErrPoolExhausted = fmt.Errorf("kgfx: all pool slots are in use (min reuse age not elapsed)")

// ErrInvalidInput is returned when a write exceeds the pool's region size
// (spec §4.6).
var ErrInvalidInput = fmt.Errorf("kgfx: invalid input")

type poolSlot struct {
	path     string
	data     []byte
	fd       int
	lastUsed time.Time
	used     bool
}

// shmRealPath maps a POSIX shm name (e.g. "/kgfxv2_pool_123_0") to the
// backing file under the shm virtual filesystem, the same mapping glibc's
// shm_open uses on Linux.
func shmRealPath(name string) string {
	return "/dev/shm/" + strings.TrimPrefix(name, "/")
}

func shmUnlink(name string) error {
	return unix.Unlink(shmRealPath(name))
}

func createSlot(path string, size int) (*poolSlot, error) {
	_ = shmUnlink(path)

	fd, err := unix.Open(shmRealPath(path), unix.O_RDWR|unix.O_CREAT, 0o600)
	if err != nil {
		return nil, fmt.Errorf("kgfx: open %s: %w", path, err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		_ = shmUnlink(path)
		return nil, fmt.Errorf("kgfx: ftruncate %s: %w", path, err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		_ = shmUnlink(path)
		return nil, fmt.Errorf("kgfx: mmap %s: %w", path, err)
	}

	return &poolSlot{path: path, data: data, fd: fd}, nil
}

func (s *poolSlot) write(data []byte) error {
	if len(data) > len(s.data) {
		return fmt.Errorf("%w: %d bytes exceeds slot size of %d bytes", ErrInvalidInput, len(data), len(s.data))
	}
	copy(s.data, data)
	return nil
}

func (s *poolSlot) release() {
	if s.data != nil {
		_ = unix.Munmap(s.data)
		s.data = nil
	}
	if s.fd >= 0 {
		_ = unix.Close(s.fd)
		s.fd = -1
	}
	_ = shmUnlink(s.path)
}

// RegionPool is a fixed pool of pre-allocated POSIX shared-memory regions,
// cycled round-robin to avoid unbounded region creation (spec §4.9). Slot
// paths follow /kgfxv2_pool_<pid>_<index>.
type RegionPool struct {
	mu           sync.Mutex
	slots        []*poolSlot
	currentIndex int
	poolSize     int
	regionSize   int
	prefix       string
	initialized  bool
	minReuseAge  time.Duration
	logger       *slog.Logger
}

// NewRegionPool returns a pool with the default slot count and region size,
// lazily initialized on first write.
func NewRegionPool(logger *slog.Logger) *RegionPool {
	return NewRegionPoolWithConfig(DefaultPoolSize, DefaultRegionSize, logger)
}

// NewRegionPoolWithConfig returns a pool with custom slot count and region
// size.
func NewRegionPoolWithConfig(poolSize, regionSize int, logger *slog.Logger) *RegionPool {
	prefix := fmt.Sprintf("kgfxv2_pool_%d", os.Getpid())
	return newRegionPoolWithPrefix(poolSize, regionSize, prefix, DefaultMinReuseAge, logger)
}

// newRegionPoolWithPrefix exists primarily for tests, so parallel test runs
// don't collide on shm paths.
func newRegionPoolWithPrefix(poolSize, regionSize int, prefix string, minReuseAge time.Duration, logger *slog.Logger) *RegionPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegionPool{
		poolSize:    poolSize,
		regionSize:  regionSize,
		prefix:      prefix,
		minReuseAge: minReuseAge,
		logger:      logger,
	}
}

// Initialize creates all regions if not already done. Called automatically
// on first write, but may be called explicitly to surface allocation
// failures early.
func (p *RegionPool) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initializeLocked()
}

func (p *RegionPool) initializeLocked() error {
	if p.initialized {
		return nil
	}

	slots := make([]*poolSlot, 0, p.poolSize)
	for i := 0; i < p.poolSize; i++ {
		path := fmt.Sprintf("/%s_%d", p.prefix, i)
		slot, err := createSlot(path, p.regionSize)
		if err != nil {
			for _, s := range slots {
				s.release()
			}
			return fmt.Errorf("kgfx: failed to create pool slot %d: %w", i, err)
		}
		slots = append(slots, slot)
	}

	p.slots = slots
	p.initialized = true

	totalMB := float64(p.poolSize*p.regionSize) / (1024 * 1024)
	regionMB := float64(p.regionSize) / (1024 * 1024)
	p.logger.Info("kgfx pool initialized", "slots", p.poolSize, "region_mb", regionMB, "total_mb", totalMB)
	return nil
}

// WriteAndGetPath writes data into the next eligible slot (round robin,
// skipping slots within MinReuseAge of now) and returns its shm path. It
// returns ErrPoolExhausted if every slot is still within its reuse age.
func (p *RegionPool) WriteAndGetPath(data []byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.initializeLocked(); err != nil {
		return "", err
	}
	if len(p.slots) == 0 {
		return "", fmt.Errorf("kgfx: pool is empty")
	}

	now := time.Now()
	n := len(p.slots)

	for i := 0; i < n; i++ {
		slot := p.slots[p.currentIndex]
		eligible := !slot.used || now.Sub(slot.lastUsed) >= p.minReuseAge

		if eligible {
			if err := slot.write(data); err != nil {
				return "", err
			}
			slot.used = true
			slot.lastUsed = now
			path := slot.path
			p.currentIndex = (p.currentIndex + 1) % n
			return path, nil
		}

		p.currentIndex = (p.currentIndex + 1) % n
	}

	return "", ErrPoolExhausted
}

// RegionSize returns the configured region size in bytes.
func (p *RegionPool) RegionSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.regionSize
}

// PoolSize returns the configured number of slots.
func (p *RegionPool) PoolSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.poolSize
}

// IsInitialized reports whether the pool has created its slots.
func (p *RegionPool) IsInitialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}

// MinReuseAge returns the configured minimum reuse age.
func (p *RegionPool) MinReuseAge() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.minReuseAge
}

// Clear unlinks all regions; the pool reinitializes on next write.
func (p *RegionPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := len(p.slots)
	for _, s := range p.slots {
		s.release()
	}
	p.slots = nil
	p.currentIndex = 0
	p.initialized = false

	if count > 0 {
		p.logger.Info("kgfx pool cleared", "slots_released", count)
	}
}
