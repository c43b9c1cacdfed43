package canvas

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/bugzmanov/bookokrat/internal/pdf/docmodel"
)

// Kitty graphics protocol escape sequence framing bytes.
const (
	esc      = 0x1b
	apcStart = "\x1b_G"
	apcEnd   = "\x1b\\"

	dcsStart     = "\x1bPtmux;"
	dcsEnd       = "\x1b\\"
	tmuxAPCStart = "\x1b\x1b_G"
	tmuxAPCEnd   = "\x1b\x1b\\"
)

// chunkLimit bounds a single chunked-transmission payload's encoded size;
// kept a multiple of 4 so base64 chunk boundaries never split a group.
const chunkLimit = 128 * 1024

// Quiet selects how much the terminal replies to a Kitty command.
type Quiet int

const (
	QuietNormal Quiet = iota
	QuietErrorsOnly
	QuietSilent
)

func (q Quiet) code() (int, bool) {
	switch q {
	case QuietErrorsOnly:
		return 1, true
	case QuietSilent:
		return 2, true
	default:
		return 0, false
	}
}

func formatCode(f docmodel.PixelFormat) int {
	if f == docmodel.FormatRGB {
		return 24
	}
	return 32
}

// SourceRect crops a sub-rectangle of a transmitted image (REQ-P5).
type SourceRect struct{ X, Y, Width, Height uint32 }

// DestCells scales a displayed image to fit a cell region (REQ-P6).
type DestCells struct{ Columns, Rows uint16 }

// kittyWriter is the shared option set and APC-framing logic for the Kitty
// command builders below.
type kittyWriter struct {
	tmux bool
}

func (w kittyWriter) writeStart(buf *bytes.Buffer) {
	if w.tmux {
		buf.WriteString(dcsStart)
		buf.WriteString(tmuxAPCStart)
	} else {
		buf.WriteString(apcStart)
	}
}

func (w kittyWriter) writeEnd(buf *bytes.Buffer) {
	if w.tmux {
		buf.WriteString(tmuxAPCEnd)
		buf.WriteString(dcsEnd)
	} else {
		buf.WriteString(apcEnd)
	}
}

// TransmitCommand builds a shared-memory transmit-and-display command
// (a=T,t=s), grounded on protocol.rs's TransmitCommand.
type TransmitCommand struct {
	kittyWriter
	width, height          uint32
	format                 docmodel.PixelFormat
	imageID, placementID   uint32
	hasImageID, hasPlaceID bool
	quiet                  Quiet
	noCursorMove           bool
	sourceRect             *SourceRect
	destCells              *DestCells
}

// NewTransmitCommand returns a transmit command for an RGBA image by
// default, with no_cursor_move set (matches the teacher's original
// default).
func NewTransmitCommand(width, height uint32, tmux bool) *TransmitCommand {
	return &TransmitCommand{
		kittyWriter:  kittyWriter{tmux: tmux},
		width:        width,
		height:       height,
		format:       docmodel.FormatRGBA,
		noCursorMove: true,
	}
}

func (c *TransmitCommand) Format(f docmodel.PixelFormat) *TransmitCommand { c.format = f; return c }
func (c *TransmitCommand) ImageID(id uint32) *TransmitCommand {
	c.imageID, c.hasImageID = id, true
	return c
}
func (c *TransmitCommand) PlacementID(id uint32) *TransmitCommand {
	c.placementID, c.hasPlaceID = id, true
	return c
}
func (c *TransmitCommand) SetQuiet(q Quiet) *TransmitCommand { c.quiet = q; return c }
func (c *TransmitCommand) NoCursorMove(v bool) *TransmitCommand {
	c.noCursorMove = v
	return c
}
func (c *TransmitCommand) SourceRectangle(x, y, w, h uint32) *TransmitCommand {
	c.sourceRect = &SourceRect{x, y, w, h}
	return c
}
func (c *TransmitCommand) DestinationCells(columns, rows uint16) *TransmitCommand {
	c.destCells = &DestCells{columns, rows}
	return c
}

func (c *TransmitCommand) params() string {
	params := fmt.Sprintf("a=T,t=s,f=%d,s=%d,v=%d", formatCode(c.format), c.width, c.height)
	if c.hasImageID {
		params += fmt.Sprintf(",i=%d", c.imageID)
	}
	if c.hasPlaceID {
		params += fmt.Sprintf(",p=%d", c.placementID)
	}
	if c.noCursorMove {
		params += ",C=1"
	}
	if code, ok := c.quiet.code(); ok {
		params += fmt.Sprintf(",q=%d", code)
	}
	if c.sourceRect != nil {
		r := c.sourceRect
		params += fmt.Sprintf(",x=%d,y=%d,w=%d,h=%d", r.X, r.Y, r.Width, r.Height)
	}
	if c.destCells != nil {
		params += fmt.Sprintf(",c=%d,r=%d", c.destCells.Columns, c.destCells.Rows)
	}
	return params
}

// WriteTo writes the escape sequence, base64-encoding shmPath as the
// payload (the shm path, not the pixels, is transmitted: the terminal
// reads the pixels directly out of shared memory).
func (c *TransmitCommand) WriteTo(w io.Writer, shmPath string) error {
	var buf bytes.Buffer
	c.writeStart(&buf)
	buf.WriteString(c.params())
	buf.WriteByte(';')
	buf.WriteString(base64.StdEncoding.EncodeToString([]byte(shmPath)))
	c.writeEnd(&buf)
	_, err := w.Write(buf.Bytes())
	return err
}

// DirectTransmit builds a chunked (no shared memory) transmit-and-display
// command (a=T,t=d), splitting the base64-encoded, optionally zlib
// compressed payload across multiple APC escapes per the protocol's 4096
// byte-per-escape practical limit (kept generous here at chunkLimit, the
// teacher's tests assert chunks stay under 128KiB and a multiple of 4).
type DirectTransmit struct {
	TransmitCommand
	compressed bool
}

// NewDirectTransmit returns a chunked transmit command.
func NewDirectTransmit(width, height uint32, tmux bool) *DirectTransmit {
	return &DirectTransmit{TransmitCommand: *NewTransmitCommand(width, height, tmux)}
}

func (c *DirectTransmit) Format(f docmodel.PixelFormat) *DirectTransmit {
	c.TransmitCommand.Format(f)
	return c
}
func (c *DirectTransmit) ImageID(id uint32) *DirectTransmit {
	c.TransmitCommand.ImageID(id)
	return c
}
func (c *DirectTransmit) PlacementID(id uint32) *DirectTransmit {
	c.TransmitCommand.PlacementID(id)
	return c
}
func (c *DirectTransmit) SetQuiet(q Quiet) *DirectTransmit {
	c.TransmitCommand.SetQuiet(q)
	return c
}
func (c *DirectTransmit) NoCursorMove(v bool) *DirectTransmit {
	c.TransmitCommand.NoCursorMove(v)
	return c
}
func (c *DirectTransmit) SourceRectangle(x, y, w, h uint32) *DirectTransmit {
	c.TransmitCommand.SourceRectangle(x, y, w, h)
	return c
}
func (c *DirectTransmit) DestinationCells(columns, rows uint16) *DirectTransmit {
	c.TransmitCommand.DestinationCells(columns, rows)
	return c
}
func (c *DirectTransmit) Compression(zlibCompress bool) *DirectTransmit {
	c.compressed = zlibCompress
	return c
}

// CompressAndEncode zlib-compresses pixels (fastest level) and base64
// encodes the result, mirroring PixelEncoder::compress_and_encode.
func CompressAndEncode(pixels []byte) ([]byte, error) {
	var compressed bytes.Buffer
	zw, err := zlib.NewWriterLevel(&compressed, zlib.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(pixels); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	encoded := make([]byte, base64.StdEncoding.EncodedLen(compressed.Len()))
	base64.StdEncoding.Encode(encoded, compressed.Bytes())
	return encoded, nil
}

// ChunkPayload splits an already-encoded payload into chunks no larger
// than chunkLimit, rounded down to a multiple of 4 so splits fall on
// base64 group boundaries.
func ChunkPayload(data []byte) [][]byte {
	chunkSize := chunkLimit - (chunkLimit % 4)
	var chunks [][]byte
	for offset := 0; offset < len(data); offset += chunkSize {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[offset:end])
	}
	return chunks
}

// SendEncoded writes encoded (pre-base64'd, optionally zlib-compressed)
// pixel data as one or more chunked APC escapes, the final chunk carrying
// m=0 and every preceding one m=1.
func (c *DirectTransmit) SendEncoded(w io.Writer, encoded []byte) error {
	chunks := ChunkPayload(encoded)
	if len(chunks) == 0 {
		chunks = [][]byte{{}}
	}

	for i, chunk := range chunks {
		var buf bytes.Buffer
		c.writeStart(&buf)

		if i == 0 {
			params := fmt.Sprintf("a=T,t=d,f=%d,s=%d,v=%d", formatCode(c.format), c.width, c.height)
			if c.compressed {
				params += ",o=z"
			}
			if c.hasImageID {
				params += fmt.Sprintf(",i=%d", c.imageID)
			}
			if c.hasPlaceID {
				params += fmt.Sprintf(",p=%d", c.placementID)
			}
			if c.noCursorMove {
				params += ",C=1"
			}
			if code, ok := c.quiet.code(); ok {
				params += fmt.Sprintf(",q=%d", code)
			}
			if c.sourceRect != nil {
				r := c.sourceRect
				params += fmt.Sprintf(",x=%d,y=%d,w=%d,h=%d", r.X, r.Y, r.Width, r.Height)
			}
			if c.destCells != nil {
				params += fmt.Sprintf(",c=%d,r=%d", c.destCells.Columns, c.destCells.Rows)
			}
			more := 0
			if len(chunks) > 1 {
				more = 1
			}
			params += fmt.Sprintf(",m=%d", more)
			buf.WriteString(params)
		} else {
			more := 0
			if i < len(chunks)-1 {
				more = 1
			}
			buf.WriteString(fmt.Sprintf("m=%d", more))
		}

		buf.WriteByte(';')
		buf.Write(chunk)
		c.writeEnd(&buf)

		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// DisplayCommand builds a display-already-transmitted-image command (a=p).
type DisplayCommand struct {
	kittyWriter
	imageID, placementID   uint32
	hasPlaceID             bool
	quiet                  Quiet
	noCursorMove           bool
	sourceRect             *SourceRect
	destCells              *DestCells
}

func NewDisplayCommand(imageID uint32, tmux bool) *DisplayCommand {
	return &DisplayCommand{kittyWriter: kittyWriter{tmux: tmux}, imageID: imageID}
}

func (c *DisplayCommand) PlacementID(id uint32) *DisplayCommand {
	c.placementID, c.hasPlaceID = id, true
	return c
}
func (c *DisplayCommand) SetQuiet(q Quiet) *DisplayCommand { c.quiet = q; return c }
func (c *DisplayCommand) NoCursorMove(v bool) *DisplayCommand {
	c.noCursorMove = v
	return c
}
func (c *DisplayCommand) DestinationCells(columns, rows uint16) *DisplayCommand {
	c.destCells = &DestCells{columns, rows}
	return c
}
func (c *DisplayCommand) SourceRectangle(x, y, w, h uint32) *DisplayCommand {
	c.sourceRect = &SourceRect{x, y, w, h}
	return c
}

func (c *DisplayCommand) WriteTo(w io.Writer) error {
	var buf bytes.Buffer
	c.writeStart(&buf)

	params := fmt.Sprintf("a=p,i=%d", c.imageID)
	if c.hasPlaceID {
		params += fmt.Sprintf(",p=%d", c.placementID)
	}
	if c.noCursorMove {
		params += ",C=1"
	}
	if code, ok := c.quiet.code(); ok {
		params += fmt.Sprintf(",q=%d", code)
	}
	if c.sourceRect != nil {
		r := c.sourceRect
		params += fmt.Sprintf(",x=%d,y=%d,w=%d,h=%d", r.X, r.Y, r.Width, r.Height)
	}
	if c.destCells != nil {
		params += fmt.Sprintf(",c=%d,r=%d", c.destCells.Columns, c.destCells.Rows)
	}

	buf.WriteString(params)
	buf.WriteByte(';')
	c.writeEnd(&buf)
	_, err := w.Write(buf.Bytes())
	return err
}

// DeleteMode selects whether a delete command only removes placements and
// keeps the image data (Clear, lowercase d= values) or also frees the
// terminal-side image data (Delete, uppercase d= values).
type DeleteMode int

const (
	DeleteModeClear DeleteMode = iota
	DeleteModeDelete
)

// DeleteCommand builds a delete/clear command (a=d).
type DeleteCommand struct {
	kittyWriter
	target string // "a", "i=<id>", "r=<min>-<max>"
	mode   DeleteMode
	quiet  Quiet
}

// DeleteAll targets every placed image.
func DeleteAll(tmux bool) *DeleteCommand {
	return &DeleteCommand{kittyWriter: kittyWriter{tmux: tmux}, target: "a"}
}

// DeleteByID targets a single image by ID.
func DeleteByID(id uint32, tmux bool) *DeleteCommand {
	return &DeleteCommand{kittyWriter: kittyWriter{tmux: tmux}, target: fmt.Sprintf("i=%d", id)}
}

// DeleteByRange targets a contiguous image ID range.
func DeleteByRange(min, max uint32, tmux bool) *DeleteCommand {
	return &DeleteCommand{kittyWriter: kittyWriter{tmux: tmux}, target: fmt.Sprintf("r=%d-%d", min, max)}
}

func (c *DeleteCommand) Clear() *DeleteCommand  { c.mode = DeleteModeClear; return c }
func (c *DeleteCommand) Delete() *DeleteCommand { c.mode = DeleteModeDelete; return c }
func (c *DeleteCommand) SetQuiet(q Quiet) *DeleteCommand {
	c.quiet = q
	return c
}

func (c *DeleteCommand) WriteTo(w io.Writer) error {
	var buf bytes.Buffer
	c.writeStart(&buf)

	d := strings.ToLower(c.target[:1])
	if c.mode == DeleteModeDelete {
		d = strings.ToUpper(d)
	}
	params := fmt.Sprintf("a=d,d=%s", d)
	if len(c.target) > 1 {
		params += "," + c.target
	}
	if code, ok := c.quiet.code(); ok {
		params += fmt.Sprintf(",q=%d", code)
	}

	buf.WriteString(params)
	buf.WriteByte(';')
	c.writeEnd(&buf)
	_, err := w.Write(buf.Bytes())
	return err
}

// QueryCommand builds a Kitty graphics capability query (a=q), used by the
// runtime probe to test whether the terminal understands shm transmission
// without actually displaying anything.
type QueryCommand struct {
	kittyWriter
	imageID uint32
}

func NewQueryCommand(tmux bool) *QueryCommand { return &QueryCommand{kittyWriter: kittyWriter{tmux: tmux}} }

func (c *QueryCommand) ImageID(id uint32) *QueryCommand { c.imageID = id; return c }

func (c *QueryCommand) WriteTo(w io.Writer, shmPath string) error {
	var buf bytes.Buffer
	c.writeStart(&buf)
	params := fmt.Sprintf("a=q,t=s,f=32,s=1,v=1,i=%d", c.imageID)
	buf.WriteString(params)
	buf.WriteByte(';')
	buf.WriteString(base64.StdEncoding.EncodeToString([]byte(shmPath)))
	c.writeEnd(&buf)
	_, err := w.Write(buf.Bytes())
	return err
}

// Response is a parsed Kitty graphics protocol APC response
// (ESC_G...ESC\), as sent by the terminal after a query or non-quiet
// command.
type Response struct {
	ImageID uint32
	OK      bool
	Message string
}

// ParseResponse scans buf for a complete Kitty APC response and parses it.
// Returns false if no complete response is present yet.
func ParseResponse(buf []byte) (Response, bool) {
	start := bytes.Index(buf, []byte(apcStart))
	if start == -1 {
		return Response{}, false
	}
	rest := buf[start+len(apcStart):]
	end := bytes.Index(rest, []byte(apcEnd))
	if end == -1 {
		return Response{}, false
	}
	body := rest[:end]

	semi := bytes.IndexByte(body, ';')
	var params, message []byte
	if semi == -1 {
		params = body
	} else {
		params, message = body[:semi], body[semi+1:]
	}

	var resp Response
	for _, field := range bytes.Split(params, []byte(",")) {
		kv := bytes.SplitN(field, []byte("="), 2)
		if len(kv) != 2 {
			continue
		}
		if string(kv[0]) == "i" {
			fmt.Sscanf(string(kv[1]), "%d", &resp.ImageID)
		}
	}
	resp.Message = string(message)
	resp.OK = string(message) == "OK"
	return resp, true
}
