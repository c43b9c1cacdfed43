package canvas

import (
	"bufio"
	"fmt"
	"io"

	"github.com/bugzmanov/bookokrat/internal/pdf/kgfx"
	"github.com/bugzmanov/bookokrat/internal/pdf/termin"
)

// TerminalCanvas ties the frame registry, shm pool, lifecycle tracker, and
// protocol encoders together into the single graphics surface its callers
// talk to (spec §6, grounded on original_source's TerminalCanvas).
type TerminalCanvas struct {
	protocol     Protocol
	mode         TransferMode
	registry     *FrameRegistry
	responseMode ResponseMode
	nextImageID  uint32
	out          *bufio.Writer
	tmux         bool

	pool    *kgfx.RegionPool
	tracker *kgfx.LifecycleTracker

	fallback *FallbackRenderer
}

// NewTerminalCanvas constructs a canvas writing to out (typically
// os.Stdout), against pool/tracker for the shared-memory transfer path.
// protocol selects which graphics protocol SubmitFrame targets; mode only
// refines the transfer within ProtocolKitty.
func NewTerminalCanvas(out io.Writer, protocol Protocol, mode TransferMode, responseMode ResponseMode, pool *kgfx.RegionPool, tracker *kgfx.LifecycleTracker, tmux bool) *TerminalCanvas {
	return &TerminalCanvas{
		protocol:     protocol,
		mode:         mode,
		registry:     NewFrameRegistry(),
		responseMode: responseMode,
		nextImageID:  2, // 1 is reserved for probe_capabilities
		out:          bufio.NewWriter(out),
		tmux:         tmux,
		pool:         pool,
		tracker:      tracker,
		fallback:     NewFallbackRenderer(),
	}
}

func (c *TerminalCanvas) quiet() Quiet {
	switch c.responseMode {
	case ResponseSilent:
		return QuietSilent
	case ResponseErrorsOnly:
		return QuietErrorsOnly
	default:
		return QuietNormal
	}
}

func (c *TerminalCanvas) allocateImageID() uint32 {
	id := c.nextImageID
	c.nextImageID++
	if c.nextImageID < 2 {
		c.nextImageID = 2
	}
	return id
}

func (c *TerminalCanvas) writeCursorMove(p ScreenPlacement) error {
	_, err := fmt.Fprintf(c.out, "\x1b[%d;%dH", p.Row, p.Column)
	return err
}

// SubmitFrame transmits and displays frame at placement, dispatching to
// whichever protocol encoder c.protocol selects: Kitty (shared memory or
// chunked transfer depending on c.mode), iTerm2, Sixel, or half-blocks text
// when no graphics protocol is available.
func (c *TerminalCanvas) SubmitFrame(frame FrameSpec, placement ScreenPlacement) (FrameHandle, error) {
	imageID := c.allocateImageID()
	handle := FrameHandle{ImageID: imageID, Page: frame.Page}

	if err := c.writeCursorMove(placement); err != nil {
		return FrameHandle{}, err
	}

	switch c.protocol {
	case ProtocolKitty:
		if err := c.submitKitty(frame, placement, imageID); err != nil {
			return FrameHandle{}, err
		}

	case ProtocolITerm2:
		if err := EncodeITerm2Frame(c.out, frame); err != nil {
			return FrameHandle{}, fmt.Errorf("submit frame: iterm2 encode: %w", err)
		}
		if err := c.out.Flush(); err != nil {
			return FrameHandle{}, err
		}

	case ProtocolSixel:
		if err := EncodeSixelFrame(c.out, frame); err != nil {
			return FrameHandle{}, fmt.Errorf("submit frame: sixel encode: %w", err)
		}
		if err := c.out.Flush(); err != nil {
			return FrameHandle{}, err
		}

	default: // ProtocolHalfblocks, and any other unrecognized value
		rendered, err := c.fallback.Render(frame, int(placement.CellWidth), int(placement.CellHeight))
		if err != nil {
			return FrameHandle{}, err
		}
		if _, err := io.WriteString(c.out, rendered); err != nil {
			return FrameHandle{}, err
		}
		if err := c.out.Flush(); err != nil {
			return FrameHandle{}, err
		}
	}

	c.registry.Record(frame.Page, imageID)
	return handle, nil
}

// submitKitty handles the Kitty protocol's two transfer variants: shared
// memory (§4.6, registering the region with the lifecycle tracker) or
// direct zlib-compressed chunks.
func (c *TerminalCanvas) submitKitty(frame FrameSpec, placement ScreenPlacement, imageID uint32) error {
	switch c.mode {
	case TransferSharedMemory:
		path, err := c.pool.WriteAndGetPath(frame.Pixels)
		if err != nil {
			if err == kgfx.ErrPoolExhausted {
				return fmt.Errorf("submit frame: %w: pool exhausted", err)
			}
			return err
		}

		// The lease owns unlinking until the transmit command actually
		// reaches the terminal; only then is the region handed off to the
		// tracker for deferred, position-aware cleanup (spec §4.9).
		lease := kgfx.NewShmLease(path, len(frame.Pixels), nil)

		cmd := NewTransmitCommand(frame.Width, frame.Height, c.tmux).
			Format(frame.Format).
			ImageID(imageID).
			PlacementID(imageID).
			SetQuiet(c.quiet()).
			NoCursorMove(true).
			DestinationCells(placement.CellWidth, placement.CellHeight)
		if placement.HasSourceRect() {
			cmd.SourceRectangle(placement.SourceX, placement.SourceY, placement.SourceWidth, placement.SourceHeight)
		}
		if err := cmd.WriteTo(c.out, path); err != nil {
			lease.Release()
			return err
		}
		if err := c.out.Flush(); err != nil {
			lease.Release()
			return err
		}

		lease.HandoffToTracker(frame.Page, c.tracker)
		return nil

	default: // TransferChunked
		encoded, err := CompressAndEncode(frame.Pixels)
		if err != nil {
			return fmt.Errorf("submit frame: encoding failed: %w", err)
		}

		cmd := NewDirectTransmit(frame.Width, frame.Height, c.tmux).
			Format(frame.Format).
			ImageID(imageID).
			PlacementID(imageID).
			SetQuiet(c.quiet()).
			NoCursorMove(true).
			Compression(true).
			DestinationCells(placement.CellWidth, placement.CellHeight)
		if placement.HasSourceRect() {
			cmd.SourceRectangle(placement.SourceX, placement.SourceY, placement.SourceWidth, placement.SourceHeight)
		}
		if err := cmd.SendEncoded(c.out, encoded); err != nil {
			return err
		}
		return c.out.Flush()
	}
}

// ShowCached redisplays a previously submitted frame without re-sending
// pixels, failing if the registry no longer has an entry for handle. Only
// the Kitty protocol can reference a previously transmitted image by ID;
// callers targeting another protocol must call SubmitFrame again.
func (c *TerminalCanvas) ShowCached(handle FrameHandle, placement ScreenPlacement) error {
	if c.protocol != ProtocolKitty {
		return fmt.Errorf("canvas: show_cached requires the kitty protocol")
	}

	cached, ok := c.registry.Lookup(handle.Page)
	if !ok || cached != handle.ImageID {
		return fmt.Errorf("canvas: frame not found in cache")
	}

	if err := c.writeCursorMove(placement); err != nil {
		return err
	}

	cmd := NewDisplayCommand(handle.ImageID, c.tmux).
		PlacementID(handle.ImageID).
		SetQuiet(c.quiet()).
		DestinationCells(placement.CellWidth, placement.CellHeight).
		NoCursorMove(true)
	if placement.HasSourceRect() {
		cmd.SourceRectangle(placement.SourceX, placement.SourceY, placement.SourceWidth, placement.SourceHeight)
	}

	if err := cmd.WriteTo(c.out); err != nil {
		return err
	}
	return c.out.Flush()
}

// Remove deletes placed frames matching target and invalidates their
// registry entries.
func (c *TerminalCanvas) Remove(target RemovalTarget) error {
	return c.removeWithMode(target, DeleteModeDelete, true)
}

// Clear removes placed frames from the screen without invalidating the
// registry, so a later ShowCached can redisplay them without
// retransmission.
func (c *TerminalCanvas) Clear(target RemovalTarget) error {
	return c.removeWithMode(target, DeleteModeClear, false)
}

func (c *TerminalCanvas) removeWithMode(target RemovalTarget, mode DeleteMode, invalidate bool) error {
	if c.protocol != ProtocolKitty {
		// The other protocols have no addressable delete/clear command; the
		// screen contents are simply overwritten by whatever renders next.
		// Registry bookkeeping still needs to stay in sync for "delete".
		if invalidate {
			switch target.Kind {
			case RemoveEverything:
				c.registry.Clear()
			case RemoveSingle:
				c.registry.Invalidate(target.Handle.Page)
			case RemovePageRange:
				c.registry.InvalidateRange(target.Min, target.Max)
			}
		}
		return nil
	}

	apply := func(cmd *DeleteCommand) error {
		if mode == DeleteModeClear {
			cmd.Clear()
		} else {
			cmd.Delete()
		}
		cmd.SetQuiet(c.quiet())
		if err := cmd.WriteTo(c.out); err != nil {
			return err
		}
		return c.out.Flush()
	}

	switch target.Kind {
	case RemoveEverything:
		if err := apply(DeleteAll(c.tmux)); err != nil {
			return err
		}
		if invalidate {
			c.registry.Clear()
		}

	case RemoveSingle:
		if err := apply(DeleteByID(target.Handle.ImageID, c.tmux)); err != nil {
			return err
		}
		if invalidate {
			c.registry.Invalidate(target.Handle.Page)
		}

	case RemovePageRange:
		for _, frame := range c.registry.FramesInRange(target.Min, target.Max) {
			if err := apply(DeleteByID(frame.ImageID, c.tmux)); err != nil {
				return err
			}
			if invalidate {
				c.registry.Invalidate(frame.Page)
			}
		}
	}

	return nil
}

// HandleKittyResponse processes a protocol acknowledgement routed back
// from the input demultiplexer (spec §4.11): an evicted response means the
// terminal has forgotten the image, so the registry entry is dropped and
// the next paint retransmits rather than assuming the cache still holds.
func (c *TerminalCanvas) HandleKittyResponse(resp termin.KittyResponse) {
	if !resp.IsEvicted() || !resp.HasID {
		return
	}
	c.registry.InvalidateByImageID(resp.ImageID)
}

// SetViewportPosition tells the lifecycle tracker which logical position
// (typically the current page index) is now on screen, so nearby shm
// regions are protected from premature cleanup.
func (c *TerminalCanvas) SetViewportPosition(page int64) {
	c.tracker.SetPosition(page)
}

// Flush ensures any buffered writes reach the terminal.
func (c *TerminalCanvas) Flush() error {
	return c.out.Flush()
}

// Shutdown removes every placed frame and releases all tracked shm
// regions.
func (c *TerminalCanvas) Shutdown() {
	_ = c.Remove(RemovalTarget{Kind: RemoveEverything})
	c.tracker.CleanupAll()
}
