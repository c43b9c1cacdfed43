package termin

import "testing"

func TestParseKittyResponseOK(t *testing.T) {
	resp, ok := parseKittyResponse([]byte("\x1b_Gi=42;OK\x1b\\"))
	if !ok {
		t.Fatal("expected a parsed response")
	}
	if !resp.HasID || resp.ImageID != 42 {
		t.Errorf("expected image id 42, got %+v", resp)
	}
	if !resp.IsOK() {
		t.Errorf("expected IsOK, got message %q", resp.Message)
	}
	if resp.IsEvicted() {
		t.Errorf("OK response should not be evicted")
	}
}

func TestParseKittyResponseEvicted(t *testing.T) {
	resp, ok := parseKittyResponse([]byte("\x1b_Gi=123;ENOENT:Image not found\x1b\\"))
	if !ok {
		t.Fatal("expected a parsed response")
	}
	if resp.ImageID != 123 {
		t.Errorf("expected image id 123, got %d", resp.ImageID)
	}
	if !resp.IsEvicted() {
		t.Error("expected response to be evicted")
	}
}

func TestModifierNumParsing(t *testing.T) {
	tests := []struct {
		in   string
		want Modifiers
	}{
		{"1", 0},
		{"2", ModShift},
		{"3", ModAlt},
		{"5", ModCtrl},
		{"6", ModShift | ModCtrl},
	}
	for _, tt := range tests {
		if got := parseModifierNum(tt.in); got != tt.want {
			t.Errorf("parseModifierNum(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDemuxKittyResponseNeverLeaksIntoEventQueue(t *testing.T) {
	d := NewDemux()
	d.Feed([]byte("a\x1b_Gi=1;OK\x1b\\b"))

	if !d.HasKittyResponses() {
		t.Fatal("expected a queued kitty response")
	}
	responses := d.TakeKittyResponses()
	if len(responses) != 1 || !responses[0].IsOK() {
		t.Fatalf("unexpected responses: %+v", responses)
	}

	var chars []rune
	for {
		ev, ok := d.PopEvent()
		if !ok {
			break
		}
		if ev.IsMouse {
			t.Fatalf("unexpected mouse event in keyboard stream")
		}
		chars = append(chars, ev.Key.Char)
	}
	if len(chars) != 2 || chars[0] != 'a' || chars[1] != 'b' {
		t.Fatalf("expected surrounding chars a, b got %v", chars)
	}
}

func TestDemuxIncompleteKittyResponseWaitsForMoreBytes(t *testing.T) {
	d := NewDemux()
	d.Feed([]byte("\x1b_Gi=1;OK"))
	if d.HasKittyResponses() {
		t.Fatal("response should still be incomplete")
	}
	d.Feed([]byte("\x1b\\"))
	if !d.HasKittyResponses() {
		t.Fatal("expected response to complete once the terminator arrives")
	}
}

func TestDemuxLoneEscapeAfterEmptyRead(t *testing.T) {
	d := NewDemux()
	d.Feed([]byte{0x1b})
	if d.HasEvents() {
		t.Fatal("a bare ESC with more data possibly pending should not resolve yet")
	}

	d.NoteEmptyRead()
	ev, ok := d.PopEvent()
	if !ok {
		t.Fatal("expected lone ESC to resolve into an Esc key event")
	}
	if ev.IsMouse || ev.Key.Code != KeyEsc {
		t.Errorf("expected Esc key event, got %+v", ev)
	}
}

func TestDemuxEscapeSequenceNotPrematurelyResolved(t *testing.T) {
	d := NewDemux()
	d.Feed([]byte{0x1b, '['})
	if d.HasEvents() {
		t.Fatal("an incomplete CSI sequence must not resolve to an event")
	}
	d.Feed([]byte{'A'})
	ev, ok := d.PopEvent()
	if !ok || ev.Key.Code != KeyUp {
		t.Fatalf("expected Up arrow once the sequence completes, got %+v ok=%v", ev, ok)
	}
}

func TestDemuxArrowKeys(t *testing.T) {
	tests := []struct {
		seq  string
		code KeyCode
	}{
		{"\x1b[A", KeyUp},
		{"\x1b[B", KeyDown},
		{"\x1b[C", KeyRight},
		{"\x1b[D", KeyLeft},
		{"\x1b[H", KeyHome},
		{"\x1b[F", KeyEnd},
		{"\x1bOA", KeyUp},
		{"\x1bOP", KeyF},
	}
	for _, tt := range tests {
		d := NewDemux()
		d.Feed([]byte(tt.seq))
		ev, ok := d.PopEvent()
		if !ok {
			t.Fatalf("%q: expected an event", tt.seq)
		}
		if ev.Key.Code != tt.code {
			t.Errorf("%q: got code %v, want %v", tt.seq, ev.Key.Code, tt.code)
		}
	}
}

func TestDemuxShiftTab(t *testing.T) {
	d := NewDemux()
	d.Feed([]byte("\x1b[Z"))
	ev, ok := d.PopEvent()
	if !ok || ev.Key.Code != KeyBackTab || !ev.Key.Modifiers.Has(ModShift) {
		t.Fatalf("expected shift+backtab, got %+v ok=%v", ev, ok)
	}
}

func TestDemuxFunctionKeyTilde(t *testing.T) {
	d := NewDemux()
	d.Feed([]byte("\x1b[15~")) // F5
	ev, ok := d.PopEvent()
	if !ok || ev.Key.Code != KeyF || ev.Key.FuncNum != 5 {
		t.Fatalf("expected F5, got %+v ok=%v", ev, ok)
	}
}

func TestDemuxAltChar(t *testing.T) {
	d := NewDemux()
	d.Feed([]byte("\x1bx"))
	ev, ok := d.PopEvent()
	if !ok || ev.Key.Code != KeyChar || ev.Key.Char != 'x' || !ev.Key.Modifiers.Has(ModAlt) {
		t.Fatalf("expected alt+x, got %+v ok=%v", ev, ok)
	}
}

func TestDemuxControlAndPrintableChars(t *testing.T) {
	d := NewDemux()
	d.Feed([]byte{1, 'x', 127})
	var codes []KeyCode
	for {
		ev, ok := d.PopEvent()
		if !ok {
			break
		}
		codes = append(codes, ev.Key.Code)
	}
	if len(codes) != 3 || codes[0] != KeyChar || codes[1] != KeyChar || codes[2] != KeyBackspace {
		t.Fatalf("unexpected codes: %v", codes)
	}
}

func TestDemuxUTF8Char(t *testing.T) {
	d := NewDemux()
	d.Feed([]byte("é")) // 2-byte UTF-8
	ev, ok := d.PopEvent()
	if !ok || ev.Key.Code != KeyChar || ev.Key.Char != 'é' {
		t.Fatalf("expected 'é', got %+v ok=%v", ev, ok)
	}
}

func TestDemuxIncompleteUTF8WaitsForMoreBytes(t *testing.T) {
	d := NewDemux()
	full := []byte("é")
	d.Feed(full[:1])
	if d.HasEvents() {
		t.Fatal("a truncated UTF-8 sequence must not resolve yet")
	}
	d.Feed(full[1:])
	ev, ok := d.PopEvent()
	if !ok || ev.Key.Char != 'é' {
		t.Fatalf("expected 'é' once the sequence completes, got %+v ok=%v", ev, ok)
	}
}

// TestDemuxMouseDragTracksHeldButton exercises the spec's example input
// ending in two "Down(Left)" mouse events with the held-button tracker
// advancing (spec §7's SGR mouse example).
func TestDemuxMouseDragTracksHeldButton(t *testing.T) {
	d := NewDemux()
	d.Feed([]byte("\x1b[<0;10;5M\x1b[<0;11;5M"))

	var events []MouseEvent
	for {
		ev, ok := d.PopEvent()
		if !ok {
			break
		}
		if !ev.IsMouse {
			t.Fatalf("expected mouse events only, got %+v", ev)
		}
		events = append(events, ev.Mouse)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 mouse events, got %d", len(events))
	}
	for i, ev := range events {
		if ev.Kind != MouseDown || ev.Button != MouseLeft {
			t.Errorf("event %d: expected Down(Left), got %+v", i, ev)
		}
	}
	if events[1].Column != 10 || events[1].Row != 4 {
		t.Errorf("unexpected coordinates: %+v", events[1])
	}
}

func TestDemuxMouseMotionBecomesDragAgainstHeldButton(t *testing.T) {
	d := NewDemux()
	d.Feed([]byte("\x1b[<0;1;1M"))  // left button down
	d.Feed([]byte("\x1b[<32;5;5M")) // motion while held

	var events []MouseEvent
	for {
		ev, ok := d.PopEvent()
		if !ok {
			break
		}
		events = append(events, ev.Mouse)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Kind != MouseDrag || events[1].Button != MouseLeft {
		t.Errorf("expected a drag against the held left button, got %+v", events[1])
	}
}

func TestDemuxMouseRelease(t *testing.T) {
	d := NewDemux()
	d.Feed([]byte("\x1b[<0;1;1m"))
	ev, ok := d.PopEvent()
	if !ok || ev.Mouse.Kind != MouseUp {
		t.Fatalf("expected a release event, got %+v ok=%v", ev, ok)
	}
}

func TestDemuxMouseScroll(t *testing.T) {
	d := NewDemux()
	d.Feed([]byte("\x1b[<64;1;1M"))
	ev, ok := d.PopEvent()
	if !ok || ev.Mouse.Kind != MouseScrollUp {
		t.Fatalf("expected scroll up, got %+v ok=%v", ev, ok)
	}
}

func TestDemuxIncompleteMouseSequenceWaits(t *testing.T) {
	d := NewDemux()
	d.Feed([]byte("\x1b[<0;1;1"))
	if d.HasEvents() {
		t.Fatal("a sequence missing its terminator must not resolve")
	}
	d.Feed([]byte("M"))
	if !d.HasEvents() {
		t.Fatal("expected the event once the terminator arrives")
	}
}
