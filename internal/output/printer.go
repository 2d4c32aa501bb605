package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/August26/proxyscan/internal/model"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Printer writes one line per probed address. Safe for concurrent use.
type Printer struct {
	mu           sync.Mutex
	w            io.Writer
	format       string
	showFailures bool
	enc          *json.Encoder

	activeStyle lipgloss.Style
	deadStyle   lipgloss.Style
	failStyle   lipgloss.Style
}

// NewPrinter returns a printer for format "text" or "json". Colors are only
// emitted when w is a terminal that supports them.
func NewPrinter(w io.Writer, format string, showFailures bool) (*Printer, error) {
	switch format {
	case "", FormatText:
		format = FormatText
	case FormatJSON:
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}

	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:            w,
		format:       format,
		showFailures: showFailures,
		enc:          json.NewEncoder(w),
		activeStyle:  r.NewStyle().Foreground(lipgloss.Color("2")),
		deadStyle:    r.NewStyle().Foreground(lipgloss.Color("1")),
		failStyle:    r.NewStyle().Foreground(lipgloss.Color("3")),
	}, nil
}

// Print writes r. Failed probes are skipped unless showFailures is set.
func (p *Printer) Print(r model.ProbeResult) {
	if r.Failed() && !p.showFailures {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.format == FormatJSON {
		_ = p.enc.Encode(r)
		return
	}
	fmt.Fprintln(p.w, p.line(r))
}

func (p *Printer) line(r model.ProbeResult) string {
	switch {
	case r.Failed():
		return p.failStyle.Render("FAILED PROBE: " + r.IP + " (" + r.Error + ")")
	case r.Active():
		msg := fmt.Sprintf("ACTIVE PROXY: %s (%s) (%s) (%s)",
			r.IP,
			dashIfEmpty(r.ISP),
			dashIfEmpty(r.CountryCode),
			dashIfEmpty(r.Delay),
		)
		if r.Hosting {
			msg += " [hosting]"
		}
		return p.activeStyle.Render(msg)
	default:
		return p.deadStyle.Render("DEAD PROXY: " + r.IP)
	}
}

// PrintSummary prints the aggregated scan stats followed by a completion
// line.
func PrintSummary(w io.Writer, stats model.ScanStats) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  Probed addresses:         %d\n", stats.Probed)
	fmt.Fprintf(w, "  Unique addresses:         %d\n", stats.UniqueAddresses)
	fmt.Fprintf(w, "  Active proxies:           %d\n", stats.Active)
	fmt.Fprintf(w, "  Inactive:                 %d\n", stats.Inactive)
	fmt.Fprintf(w, "  Failed probes:            %d\n", stats.Failed)
	fmt.Fprintf(w, "  Active rate:              %.1f %%\n", stats.ActiveRatePct)
	fmt.Fprintf(w, "  Avg latency (active):     %.1f ms\n", stats.AvgLatencyMs)
	fmt.Fprintf(w, "  Scan time:                %.2f s\n", float64(stats.TotalProcessingMs)/1000.0)
	fmt.Fprintln(w, "done")
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
