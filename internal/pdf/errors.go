package pdf

import (
	"errors"
	"strconv"
)

// Sentinel errors surfaced by the render core (spec §7).
var (
	ErrPoolExhausted    = errors.New("pdf: shm pool exhausted")
	ErrInvalidInput     = errors.New("pdf: invalid input")
	ErrPageOutOfRange   = errors.New("pdf: page out of range")
	ErrServiceShutdown  = errors.New("pdf: service is shut down")
	ErrRegistryMiss     = errors.New("pdf: registry has no entry for page")
)

// WorkerFault distinguishes an engine failure from an internal worker fault.
type WorkerFault struct {
	Page  int
	Cause error
}

func (f *WorkerFault) Error() string {
	return "pdf: worker fault on page " + strconv.Itoa(f.Page) + ": " + f.Cause.Error()
}

func (f *WorkerFault) Unwrap() error { return f.Cause }
