// Package reporter publishes risk band changes to the console or the dashboard.
package reporter

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fd1az/synth-indexer/business/risk/domain"
)

// Console writes one line per alert.
type Console struct {
	out io.Writer
}

// NewConsole creates a Console writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Start prints the header.
func (r *Console) Start(ctx context.Context) error {
	fmt.Fprintln(r.out, "Risk monitor started")
	fmt.Fprintln(r.out, "====================")
	return nil
}

// Report prints the alert.
func (r *Console) Report(a domain.Alert) {
	marker := "  "
	if a.Worsened() {
		marker = "!!"
	}
	fmt.Fprintf(r.out, "%s [%s] %-20s %-12s -> %-12s ratio %s\n",
		marker,
		time.Unix(a.At, 0).UTC().Format(time.RFC3339),
		a.PositionID,
		a.From,
		a.To,
		a.Ratio.StringFixed(4),
	)
}

// Stop prints the footer.
func (r *Console) Stop() error {
	fmt.Fprintln(r.out, "Risk monitor stopped")
	return nil
}
