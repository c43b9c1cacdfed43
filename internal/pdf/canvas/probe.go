package canvas

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"
	"time"

	"github.com/blacktop/go-termimg"
	"github.com/mattn/go-isatty"

	"github.com/bugzmanov/bookokrat/internal/pdf/kgfx"
)

// probeTimeout bounds how long the runtime probe waits for a terminal
// reply before assuming no shared-memory support (spec §6.1).
const probeTimeout = 800 * time.Millisecond

const probeImageID = 1

// DetectProtocol resolves which graphics protocol to target and, for the
// Kitty protocol, which transfer mode to use within it. Precedence order is
// env override, terminal-identity detection, generic heuristics, runtime
// probe (spec §4.10). stdin/stdout are taken as parameters so tests can
// substitute pipes.
func DetectProtocol(envOverride string, stdout io.Writer, stdin io.Reader, pool *kgfx.RegionPool) (Protocol, TransferMode) {
	if proto, ok := protocolFromEnv(envOverride); ok {
		return proto, transferModeFor(proto, stdout, stdin, pool)
	}
	if proto, ok := protocolFromTerminalIdentity(); ok {
		return proto, transferModeFor(proto, stdout, stdin, pool)
	}
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return ProtocolHalfblocks, TransferChunked
	}
	if proto, ok := protocolFromGenericHeuristic(); ok {
		return proto, transferModeFor(proto, stdout, stdin, pool)
	}
	return ProtocolHalfblocks, TransferChunked
}

// protocolFromEnv honors BOOKOKRAT_PROTOCOL ∈ {halfblocks, sixel, kitty,
// iterm, iterm2}, letting a user or CI environment force a protocol without
// any terminal-identity detection or probing.
func protocolFromEnv(override string) (Protocol, bool) {
	v := override
	if v == "" {
		v = os.Getenv("BOOKOKRAT_PROTOCOL")
	}
	if v == "" {
		return ProtocolKitty, false
	}
	return ParseProtocol(v)
}

// protocolFromTerminalIdentity asks go-termimg's own detector which
// protocol family the terminal claims, mirroring internal/image/image.go's
// termimg.DetectProtocol() call.
func protocolFromTerminalIdentity() (Protocol, bool) {
	switch termimg.DetectProtocol() {
	case termimg.Kitty:
		return ProtocolKitty, true
	case termimg.ITerm2:
		return ProtocolITerm2, true
	case termimg.Sixel:
		return ProtocolSixel, true
	case termimg.Halfblocks:
		return ProtocolHalfblocks, true
	default:
		return ProtocolKitty, false
	}
}

// protocolFromGenericHeuristic catches terminals go-termimg's identity
// detection doesn't recognize by name but that advertise Kitty support
// through TERM itself.
func protocolFromGenericHeuristic() (Protocol, bool) {
	term := strings.ToLower(os.Getenv("TERM"))
	if strings.Contains(term, "kitty") || strings.Contains(term, "ghostty") {
		return ProtocolKitty, true
	}
	return ProtocolHalfblocks, false
}

// transferModeFor picks SharedMemory vs Chunked within the Kitty protocol;
// every other protocol always transfers its payload inline, so it's always
// Chunked for them. BOOKOKRAT_DISABLE_KITTY_SHM lets a user or CI
// environment force chunked transfer without a terminal round trip, kept
// distinct from BOOKOKRAT_PROTOCOL which picks the protocol family itself.
func transferModeFor(proto Protocol, stdout io.Writer, stdin io.Reader, pool *kgfx.RegionPool) TransferMode {
	if proto != ProtocolKitty {
		return TransferChunked
	}
	if disableKittySHM() {
		return TransferChunked
	}
	if probeSharedMemory(stdout, stdin, pool) {
		return TransferSharedMemory
	}
	return TransferChunked
}

func disableKittySHM() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("BOOKOKRAT_DISABLE_KITTY_SHM"))) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

// probeSharedMemory writes a tiny test region, asks the terminal to query
// it over the Kitty protocol, and waits up to probeTimeout for an OK
// response.
func probeSharedMemory(stdout io.Writer, stdin io.Reader, pool *kgfx.RegionPool) bool {
	path, err := pool.WriteAndGetPath([]byte{0, 0, 0, 255})
	if err != nil {
		return false
	}

	if err := NewQueryCommand(false).ImageID(probeImageID).WriteTo(stdout, path); err != nil {
		return false
	}
	if f, ok := stdout.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}

	resp, ok := readResponseWithTimeout(stdin, probeTimeout)
	return ok && resp.OK
}

// readResponseWithTimeout polls stdin for a complete Kitty APC response,
// bailing out once timeout elapses. Callers are expected to have put the
// terminal in raw mode already so responses aren't line-buffered.
func readResponseWithTimeout(r io.Reader, timeout time.Duration) (Response, bool) {
	type readResult struct {
		n   int
		err error
		buf [1024]byte
	}

	results := make(chan readResult, 1)
	reader := bufio.NewReader(r)

	read := func() {
		go func() {
			var res readResult
			res.n, res.err = reader.Read(res.buf[:])
			results <- res
		}()
	}
	read()

	var accumulated bytes.Buffer
	deadline := time.After(timeout)

	for {
		select {
		case res := <-results:
			accumulated.Write(res.buf[:res.n])
			if resp, ok := ParseResponse(accumulated.Bytes()); ok {
				return resp, true
			}
			if res.err != nil {
				return Response{}, false
			}
			read()
		case <-deadline:
			return Response{}, false
		}
	}
}
