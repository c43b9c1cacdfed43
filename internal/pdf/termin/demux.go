package termin

import (
	"strconv"
	"unicode/utf8"
)

// Demux is the pure, testable byte-stream parser at the core of the input
// demultiplexer (spec §4.11): feed it raw bytes as they arrive and it
// greedily slices out complete keyboard/mouse events and Kitty protocol
// responses, leaving incomplete trailing sequences buffered for the next
// feed. It has no knowledge of stdin, poll(2), or raw mode — Input wires
// those around it.
type Demux struct {
	buf    []byte
	events []Event
	kitty  []KittyResponse

	heldButton    MouseButton
	hasHeldButton bool

	// emptyReadSeen disambiguates a lone ESC from the leader of an
	// escape sequence that just hasn't fully arrived yet: it is set when
	// the caller reports a read attempt that yielded no new bytes, and
	// cleared on every successful parse.
	emptyReadSeen bool
}

// NewDemux returns an empty demultiplexer.
func NewDemux() *Demux {
	return &Demux{}
}

// Feed appends newly read bytes to the internal buffer and greedily
// extracts whatever complete events/responses it now contains.
func (d *Demux) Feed(b []byte) {
	if len(b) == 0 {
		return
	}
	d.buf = append(d.buf, b...)
	d.processBuffer()
}

// NoteEmptyRead records that a read was attempted and produced no bytes,
// which is what lets a lone trailing ESC be resolved as an Esc keypress
// rather than held indefinitely awaiting a CSI/SS3 continuation.
func (d *Demux) NoteEmptyRead() {
	d.emptyReadSeen = len(d.buf) > 0
	d.processBuffer()
}

// PopEvent removes and returns the oldest queued keyboard/mouse event.
func (d *Demux) PopEvent() (Event, bool) {
	if len(d.events) == 0 {
		return Event{}, false
	}
	ev := d.events[0]
	d.events = d.events[1:]
	return ev, true
}

// HasEvents reports whether a queued keyboard/mouse event is ready.
func (d *Demux) HasEvents() bool { return len(d.events) > 0 }

// TakeKittyResponses drains and returns all queued Kitty protocol
// responses.
func (d *Demux) TakeKittyResponses() []KittyResponse {
	out := d.kitty
	d.kitty = nil
	return out
}

// HasKittyResponses reports whether a Kitty protocol response is queued.
func (d *Demux) HasKittyResponses() bool { return len(d.kitty) > 0 }

func (d *Demux) processBuffer() {
	for len(d.buf) > 0 {
		if len(d.buf) >= 3 && d.buf[0] == 0x1b && d.buf[1] == '_' && d.buf[2] == 'G' {
			resp, ok := d.tryExtractKittyResponse()
			if !ok {
				break // incomplete, wait for more bytes
			}
			if parsed, ok := parseKittyResponse(resp); ok {
				d.kitty = append(d.kitty, parsed)
			}
			continue
		}

		ev, ok := d.tryParseEvent()
		if !ok {
			break
		}
		d.events = append(d.events, ev)
		d.emptyReadSeen = false
	}
}

// tryExtractKittyResponse slices out a complete ESC _ G ... ESC \ response,
// or reports false if the terminator hasn't arrived yet.
func (d *Demux) tryExtractKittyResponse() ([]byte, bool) {
	for i := 0; i+1 < len(d.buf); i++ {
		if d.buf[i] == 0x1b && d.buf[i+1] == '\\' {
			resp := d.buf[:i+2]
			out := make([]byte, len(resp))
			copy(out, resp)
			d.buf = d.buf[i+2:]
			return out, true
		}
	}
	return nil, false
}

// parseKittyResponse parses "i=<id>[,p=<pid>];<message>" out of a response
// that still carries its ESC _ G ... ESC \ envelope markers.
func parseKittyResponse(data []byte) (KittyResponse, bool) {
	if len(data) < 6 {
		return KittyResponse{}, false
	}

	start := -1
	for i := 0; i+2 < len(data); i++ {
		if data[i] == 0x1b && data[i+1] == '_' && data[i+2] == 'G' {
			start = i + 3
			break
		}
	}
	if start < 0 {
		return KittyResponse{}, false
	}
	rest := data[start:]

	semi := -1
	for i, b := range rest {
		if b == ';' {
			semi = i
			break
		}
	}
	if semi < 0 {
		return KittyResponse{}, false
	}
	params := string(rest[:semi])
	msgAndTerm := rest[semi+1:]

	end := -1
	for i := 0; i+1 < len(msgAndTerm); i++ {
		if msgAndTerm[i] == 0x1b && msgAndTerm[i+1] == '\\' {
			end = i
			break
		}
	}
	if end < 0 {
		return KittyResponse{}, false
	}
	message := string(msgAndTerm[:end])

	resp := KittyResponse{Message: message}
	for _, part := range splitComma(params) {
		if val, ok := stripPrefix(part, "i="); ok {
			if id, err := strconv.ParseUint(val, 10, 32); err == nil {
				resp.ImageID = uint32(id)
				resp.HasID = true
			}
		}
	}
	return resp, true
}

func splitComma(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func stripPrefix(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):], true
	}
	return "", false
}

func (d *Demux) tryParseEvent() (Event, bool) {
	if len(d.buf) == 0 {
		return Event{}, false
	}
	if d.buf[0] == 0x1b {
		return d.tryParseEscapeSequence()
	}
	return d.tryParseCharacter()
}

func (d *Demux) tryParseEscapeSequence() (Event, bool) {
	if len(d.buf) < 2 {
		if len(d.buf) == 1 && d.emptyReadSeen {
			d.buf = d.buf[1:]
			d.emptyReadSeen = false
			return keyEvent(KeyEsc, 0), true
		}
		return Event{}, false
	}

	switch d.buf[1] {
	case '[':
		return d.tryParseCSI()
	case 'O':
		return d.tryParseSS3()
	default:
		second := d.buf[1]
		if second < 0x80 {
			d.buf = d.buf[2:]
			ev := keyEvent(KeyChar, ModAlt)
			ev.Key.Char = rune(second)
			return ev, true
		}
		d.buf = d.buf[1:]
		return keyEvent(KeyEsc, 0), true
	}
}

func (d *Demux) tryParseCSI() (Event, bool) {
	if len(d.buf) < 3 {
		return Event{}, false
	}
	if d.buf[2] == '<' {
		return d.tryParseMouseSGR()
	}

	end := 2
	for end < len(d.buf) {
		b := d.buf[end]
		if isAlpha(b) || b == '~' {
			break
		}
		end++
	}
	if end >= len(d.buf) {
		return Event{}, false
	}

	final := d.buf[end]
	params := string(d.buf[2:end])
	d.buf = d.buf[end+1:]

	switch final {
	case 'A':
		return keyEvent(KeyUp, parseModifiersAfterSemi(params)), true
	case 'B':
		return keyEvent(KeyDown, parseModifiersAfterSemi(params)), true
	case 'C':
		return keyEvent(KeyRight, parseModifiersAfterSemi(params)), true
	case 'D':
		return keyEvent(KeyLeft, parseModifiersAfterSemi(params)), true
	case 'H':
		return keyEvent(KeyHome, parseModifiersAfterSemi(params)), true
	case 'F':
		return keyEvent(KeyEnd, parseModifiersAfterSemi(params)), true
	case 'Z':
		return keyEvent(KeyBackTab, ModShift), true
	case '~':
		return parseTildeSequence(params), true
	case 'u':
		return parseKittyKeyboard(params), true
	default:
		return Event{}, false
	}
}

func parseTildeSequence(params string) Event {
	parts := splitSemi(params)
	keyNum, _ := strconv.Atoi(firstOr(parts, "0"))
	mods := Modifiers(0)
	if len(parts) > 1 {
		mods = parseModifierNum(parts[1])
	}

	switch keyNum {
	case 1:
		return keyEvent(KeyHome, mods)
	case 2:
		return keyEvent(KeyInsert, mods)
	case 3:
		return keyEvent(KeyDelete, mods)
	case 4:
		return keyEvent(KeyEnd, mods)
	case 5:
		return keyEvent(KeyPageUp, mods)
	case 6:
		return keyEvent(KeyPageDown, mods)
	case 11, 12, 13, 14, 15, 17, 18, 19, 20, 21, 23, 24:
		ev := keyEvent(KeyF, mods)
		ev.Key.FuncNum = tildeFuncKeyNumber(keyNum)
		return ev
	default:
		return keyEvent(KeyNull, mods)
	}
}

func tildeFuncKeyNumber(code int) int {
	switch {
	case code <= 15:
		return code - 10 // 11..15 -> F1..F5
	case code <= 21:
		return code - 11 // 17..21 -> F6..F10
	default:
		return code - 12 // 23..24 -> F11..F12
	}
}

// parseKittyKeyboard handles the Kitty keyboard protocol's CSI ... u form.
func parseKittyKeyboard(params string) Event {
	parts := splitSemi(params)
	keyNum, _ := strconv.Atoi(firstOr(parts, "0"))
	mods := Modifiers(0)
	if len(parts) > 1 {
		mods = parseModifierNum(parts[1])
	}

	if keyNum < 128 {
		ev := keyEvent(KeyChar, mods)
		ev.Key.Char = rune(keyNum)
		return ev
	}
	return keyEvent(KeyNull, mods)
}

func (d *Demux) tryParseSS3() (Event, bool) {
	if len(d.buf) < 3 {
		return Event{}, false
	}
	third := d.buf[2]
	d.buf = d.buf[3:]

	switch third {
	case 'A':
		return keyEvent(KeyUp, 0), true
	case 'B':
		return keyEvent(KeyDown, 0), true
	case 'C':
		return keyEvent(KeyRight, 0), true
	case 'D':
		return keyEvent(KeyLeft, 0), true
	case 'H':
		return keyEvent(KeyHome, 0), true
	case 'F':
		return keyEvent(KeyEnd, 0), true
	case 'P':
		return fKeyEvent(1), true
	case 'Q':
		return fKeyEvent(2), true
	case 'R':
		return fKeyEvent(3), true
	case 'S':
		return fKeyEvent(4), true
	default:
		return Event{}, false
	}
}

func fKeyEvent(n int) Event {
	ev := keyEvent(KeyF, 0)
	ev.Key.FuncNum = n
	return ev
}

func (d *Demux) tryParseMouseSGR() (Event, bool) {
	end := 3
	for end < len(d.buf) {
		b := d.buf[end]
		if b == 'M' || b == 'm' {
			break
		}
		end++
	}
	if end >= len(d.buf) {
		return Event{}, false
	}

	isRelease := d.buf[end] == 'm'
	params := string(d.buf[3:end])
	d.buf = d.buf[end+1:]

	parts := splitSemi(params)
	if len(parts) < 3 {
		return Event{}, false
	}
	cb, err1 := strconv.ParseUint(parts[0], 10, 16)
	cx, err2 := strconv.ParseUint(parts[1], 10, 16)
	cy, err3 := strconv.ParseUint(parts[2], 10, 16)
	if err1 != nil || err2 != nil || err3 != nil {
		return Event{}, false
	}

	column := uint16(0)
	if cx > 0 {
		column = uint16(cx - 1)
	}
	row := uint16(0)
	if cy > 0 {
		row = uint16(cy - 1)
	}

	mods := Modifiers((cb >> 2) & 0x07)
	button := MouseLeft
	switch cb & 0x43 {
	case 1:
		button = MouseMiddle
	case 2:
		button = MouseRight
	}

	var kind MouseEventKind
	switch {
	case cb&64 != 0:
		switch cb & 3 {
		case 0:
			kind = MouseScrollUp
		case 1:
			kind = MouseScrollDown
		case 2:
			kind = MouseScrollLeft
		default:
			kind = MouseScrollRight
		}
	case cb&32 != 0:
		if d.hasHeldButton {
			kind = MouseDrag
			button = d.heldButton
		} else {
			kind = MouseMoved
		}
	case isRelease:
		d.hasHeldButton = false
		kind = MouseUp
	default:
		d.heldButton = button
		d.hasHeldButton = true
		kind = MouseDown
	}

	return Event{IsMouse: true, Mouse: MouseEvent{Kind: kind, Button: button, Column: column, Row: row, Modifiers: mods}}, true
}

func (d *Demux) tryParseCharacter() (Event, bool) {
	first := d.buf[0]

	if first < 32 || first == 127 {
		d.buf = d.buf[1:]
		switch first {
		case 0:
			ev := keyEvent(KeyChar, ModCtrl)
			ev.Key.Char = ' '
			return ev, true
		case 8, 127:
			return keyEvent(KeyBackspace, 0), true
		case 9:
			return keyEvent(KeyTab, 0), true
		case 10, 13:
			return keyEvent(KeyEnter, 0), true
		case 27:
			return keyEvent(KeyEsc, 0), true
		default:
			if first >= 1 && first <= 26 {
				ev := keyEvent(KeyChar, ModCtrl)
				ev.Key.Char = rune('a' + first - 1)
				return ev, true
			}
			return keyEvent(KeyNull, 0), true
		}
	}

	if first < 128 {
		d.buf = d.buf[1:]
		ev := keyEvent(KeyChar, 0)
		ev.Key.Char = rune(first)
		return ev, true
	}

	length := utf8SeqLen(first)
	if length == 0 {
		d.buf = d.buf[1:]
		return Event{}, false
	}
	if len(d.buf) < length {
		return Event{}, false
	}

	r, size := utf8.DecodeRune(d.buf[:length])
	d.buf = d.buf[length:]
	if r == utf8.RuneError && size <= 1 {
		return Event{}, false
	}
	ev := keyEvent(KeyChar, 0)
	ev.Key.Char = r
	return ev, true
}

func utf8SeqLen(first byte) int {
	switch {
	case first&0xE0 == 0xC0:
		return 2
	case first&0xF0 == 0xE0:
		return 3
	case first&0xF8 == 0xF0:
		return 4
	default:
		return 0
	}
}

func keyEvent(code KeyCode, mods Modifiers) Event {
	return Event{Key: KeyEvent{Code: code, Modifiers: mods}}
}

func isAlpha(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func splitSemi(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ';' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func firstOr(parts []string, fallback string) string {
	if len(parts) == 0 || parts[0] == "" {
		return fallback
	}
	return parts[0]
}

// parseModifiersAfterSemi parses the modifier field out of a CSI sequence
// of the form "<count>;<mods>" (e.g. arrow keys with a modifier suffix).
func parseModifiersAfterSemi(params string) Modifiers {
	parts := splitSemi(params)
	if len(parts) < 2 {
		return 0
	}
	return parseModifierNum(parts[1])
}

// parseModifierNum decodes the xterm modifier encoding: 1 = none, and the
// bits of (n-1) select shift/alt/ctrl.
func parseModifierNum(s string) Modifiers {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		n = 1
	}
	n--

	var mods Modifiers
	if n&1 != 0 {
		mods |= ModShift
	}
	if n&2 != 0 {
		mods |= ModAlt
	}
	if n&4 != 0 {
		mods |= ModCtrl
	}
	return mods
}
