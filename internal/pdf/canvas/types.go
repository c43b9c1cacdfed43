// Package canvas renders decoded page frames to the terminal using
// whichever graphics protocol the terminal supports, falling back to
// Unicode half-blocks when none do (spec §6).
package canvas

import (
	"strings"

	"github.com/bugzmanov/bookokrat/internal/pdf/docmodel"
)

// TransferMode selects how a frame's pixels reach the terminal. It only
// matters within the Kitty protocol: every other Protocol always transfers
// inline, so TransferMode is meaningless for them.
type TransferMode int

const (
	TransferSharedMemory TransferMode = iota
	TransferChunked
)

// Protocol identifies which terminal graphics protocol a canvas targets
// (spec §4.10). Capability probing picks one of these; TransferMode then
// only refines how ProtocolKitty moves pixels.
type Protocol int

const (
	ProtocolKitty Protocol = iota
	ProtocolITerm2
	ProtocolSixel
	ProtocolHalfblocks
)

// ParseProtocol maps a BOOKOKRAT_PROTOCOL value to a Protocol, accepting
// the names spec §4.10 documents for the env override.
func ParseProtocol(v string) (Protocol, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "kitty":
		return ProtocolKitty, true
	case "iterm", "iterm2":
		return ProtocolITerm2, true
	case "sixel":
		return ProtocolSixel, true
	case "halfblocks":
		return ProtocolHalfblocks, true
	default:
		return ProtocolKitty, false
	}
}

// FrameSpec is a decoded page frame ready for transmission.
type FrameSpec struct {
	Pixels []byte
	Width  uint32
	Height uint32
	Page   int64
	Format docmodel.PixelFormat
}

// FrameHandle identifies a frame the terminal has been told to remember,
// by protocol-assigned image ID.
type FrameHandle struct {
	ImageID uint32
	Page    int64
}

// ScreenPlacement positions a frame (or a cropped source rectangle of one,
// used during scrolling) at a cell location.
type ScreenPlacement struct {
	Column     uint16
	Row        uint16
	CellWidth  uint16
	CellHeight uint16

	SourceX      uint32
	SourceY      uint32
	SourceWidth  uint32
	SourceHeight uint32
}

// HasSourceRect reports whether placement crops a sub-rectangle of the
// source frame rather than showing it in full.
func (p ScreenPlacement) HasSourceRect() bool {
	return p.SourceX > 0 || p.SourceY > 0 || p.SourceWidth > 0 || p.SourceHeight > 0
}

// RemovalTargetKind discriminates RemovalTarget variants.
type RemovalTargetKind int

const (
	RemoveEverything RemovalTargetKind = iota
	RemoveSingle
	RemovePageRange
)

// RemovalTarget selects which placed frames a Remove call deletes.
type RemovalTarget struct {
	Kind   RemovalTargetKind
	Handle FrameHandle
	Min    int64
	Max    int64
}

// SubmissionOutcome reports per-frame success/failure for a batch of frame
// submissions.
type SubmissionOutcome struct {
	Successful []FrameHandle
	Failed     []FailedSubmission
}

// FailedSubmission pairs a page index with why its frame submission failed.
type FailedSubmission struct {
	Page int64
	Err  error
}

// ResponseMode controls how much of the terminal's protocol response
// traffic the canvas surfaces to callers.
type ResponseMode int

const (
	ResponseSilent ResponseMode = iota
	ResponseErrorsOnly
	ResponseFull
)
