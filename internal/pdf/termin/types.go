// Package termin implements the input demultiplexer: a single-threaded
// stdin byte-stream parser that separates keyboard/mouse events from
// Kitty graphics protocol responses arriving over the same stream
// (spec §4.11), plus the raw-mode and adaptive-polling plumbing around it.
package termin

import "strings"

// KeyCode names a parsed key, mirroring the original's crossterm::KeyCode
// enum closely enough that event-handling logic ports without surprises.
type KeyCode int

const (
	KeyNull KeyCode = iota
	KeyChar
	KeyEnter
	KeyTab
	KeyBackTab
	KeyBackspace
	KeyEsc
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyInsert
	KeyDelete
	KeyF
)

// Modifiers is a bitset of held modifier keys.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModAlt
	ModCtrl
)

func (m Modifiers) Has(mod Modifiers) bool { return m&mod != 0 }

// KeyEvent is a single parsed key press.
type KeyEvent struct {
	Code      KeyCode
	Char      rune // valid when Code == KeyChar
	FuncNum   int  // valid when Code == KeyF (F1 = 1, F2 = 2, ...)
	Modifiers Modifiers
}

// MouseButton identifies which button a mouse event concerns.
type MouseButton int

const (
	MouseLeft MouseButton = iota
	MouseMiddle
	MouseRight
)

// MouseEventKind distinguishes button transitions from motion/scroll.
type MouseEventKind int

const (
	MouseDown MouseEventKind = iota
	MouseUp
	MouseDrag
	MouseMoved
	MouseScrollUp
	MouseScrollDown
	MouseScrollLeft
	MouseScrollRight
)

// MouseEvent is a single parsed SGR mouse report.
type MouseEvent struct {
	Kind      MouseEventKind
	Button    MouseButton // valid for Down/Up/Drag
	Column    uint16      // 0-based
	Row       uint16      // 0-based
	Modifiers Modifiers
}

// Event is either a KeyEvent or a MouseEvent; exactly one of Key/Mouse is
// meaningful, chosen by IsMouse.
type Event struct {
	IsMouse bool
	Key     KeyEvent
	Mouse   MouseEvent
}

// KittyResponse is a parsed Kitty graphics protocol acknowledgement
// (ESC _ G i=<id>[,p=<pid>];<message> ESC \), routed to the canvas rather
// than the UI event queue (spec §4.11).
type KittyResponse struct {
	ImageID uint32
	HasID   bool
	Message string
}

// IsOK reports whether the terminal accepted the command outright.
func (r KittyResponse) IsOK() bool { return r.Message == "OK" }

// IsEvicted reports whether the terminal has forgotten the referenced
// image (e.g. LRU-evicted internally), requiring retransmission.
func (r KittyResponse) IsEvicted() bool {
	return strings.Contains(r.Message, "ENOENT") ||
		strings.Contains(r.Message, "No such") ||
		strings.Contains(r.Message, "not found")
}
