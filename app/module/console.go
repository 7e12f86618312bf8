package module

import (
	"fmt"
	"io"

	"tlbtrace/app/event"
)

const consoleHeader = "time-s   CPU  ID  REASON"

// Console prints one human-readable line per reported event, timed relative
// to the first one it sees.
type Console struct {
	w       io.Writer
	startNS uint64
	started bool
}

func NewConsole(w io.Writer) *Console {
	fmt.Fprintln(w, consoleHeader)
	return &Console{w: w}
}

func (this *Console) Print(r event.Reportable) {
	if !this.started {
		this.startNS = r.Timestamp
		this.started = true
	}
	// timestamps are only monotonic per CPU
	rel := (float64(r.Timestamp) - float64(this.startNS)) / 1e9
	fmt.Fprintf(this.w, "%8.3f  %-3d  %-2d  %s %s\n", rel, r.CPU, r.Reason, r.Label, r.Comm)
}
