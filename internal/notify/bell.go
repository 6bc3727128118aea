// ABOUTME: Local audible alert for new calls
// ABOUTME: Writes a terminal bell and a timestamped line to an io.Writer

package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Bell rings on admission. Clears are silent.
type Bell struct {
	mu sync.Mutex
	w  io.Writer
}

// NewBell creates a Bell writing to w.
func NewBell(w io.Writer) *Bell {
	return &Bell{w: w}
}

func (b *Bell) Name() string { return "bell" }

func (b *Bell) Notify(_ context.Context, evt Event) error {
	if evt.Kind != KindAdmitted {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := fmt.Fprintf(b.w, "\a[%s] %s\n", evt.At.Format("15:04:05"), evt.Text())
	return err
}
