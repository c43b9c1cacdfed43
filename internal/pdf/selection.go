package pdf

import (
	"fmt"
	"time"

	"github.com/atotto/clipboard"
)

// CopySelection extracts text over bounds and writes it to the system
// clipboard (supplemented feature; see SPEC_FULL.md). It blocks until the
// extraction request completes or timeout elapses.
func CopySelection(svc *RenderService, bounds []PageSelectionBounds, timeout time.Duration) error {
	id := svc.ExtractText(bounds)

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, r := range svc.PollResponses() {
			if r.ID != id {
				continue
			}
			if r.Kind == RespError {
				return fmt.Errorf("extract selection: %w", r.Err)
			}
			return clipboard.WriteAll(r.Text)
		}
		time.Sleep(5 * time.Millisecond)
	}
	return fmt.Errorf("extract selection: timed out after %s", timeout)
}
