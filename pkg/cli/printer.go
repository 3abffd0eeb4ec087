package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/gencommit/gencommit/pkg/usage"
)

var (
	bold   = color.New(color.Bold).SprintfFunc()
	faint  = color.New(color.Faint).SprintfFunc()
	green  = color.New(color.FgGreen).SprintfFunc()
	yellow = color.New(color.FgYellow).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
)

type Printer struct {
	out io.Writer
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{
		out: out,
	}
}

func (p *Printer) Println(a ...any) {
	fmt.Fprintln(p.out, a...)
}

func (p *Printer) Printf(format string, a ...any) {
	fmt.Fprintf(p.out, format, a...)
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) {
	p.Printf("%s %s\n", red("✗"), err)
}

// PrintWarning prints a non-fatal problem
func (p *Printer) PrintWarning(format string, a ...any) {
	p.Printf("%s %s\n", yellow("!"), fmt.Sprintf(format, a...))
}

// PrintSuccess prints a completed step
func (p *Printer) PrintSuccess(format string, a ...any) {
	p.Printf("%s %s\n", green("✓"), fmt.Sprintf(format, a...))
}

// PrintMessage prints a commit message framed by a rule
func (p *Printer) PrintMessage(model, message string) {
	rule := faint("%s", strings.Repeat("─", 60))
	p.Printf("\n%s %s\n%s\n", bold("Commit message"), faint("(%s)", model), rule)
	p.Println(message)
	p.Printf("%s\n\n", rule)
}

// PrintStatus prints the quota state for the usage command
func (p *Printer) PrintStatus(path string, status usage.Status, now time.Time) {
	p.Printf("%s %s\n", bold("Usage file:"), path)
	p.Printf("%s %s (resets in %s)\n",
		bold("Window:"),
		status.WindowStart.Local().Format(time.DateTime),
		formatDuration(status.WindowResetsAt.Sub(now)),
	)
	p.Printf("%s %d requests, %d tokens\n\n", bold("Today:"), status.Requests, status.Tokens)

	p.printQuota("Requests per day", status.RequestsPerDay)
	p.printQuota("Requests per minute", status.RequestsPerMin)
	p.printQuota("Tokens per minute", status.TokensPerMinute)

	p.Println()
	if status.Admission.Allowed {
		p.PrintSuccess("Next request allowed")
	} else {
		p.PrintWarning("Next request denied: %s", status.Admission.Reason)
	}
}

func (p *Printer) printQuota(label string, q usage.Quota) {
	if q.Remaining < 0 {
		p.Printf("  %-20s %d %s\n", label, q.Used, faint("(not enforced)"))
		return
	}

	remaining := fmt.Sprintf("%d left", q.Remaining)
	switch {
	case q.Remaining == 0:
		remaining = red("%s", remaining)
	case q.Remaining*10 < q.Limit:
		remaining = yellow("%s", remaining)
	default:
		remaining = green("%s", remaining)
	}
	p.Printf("  %-20s %d / %d  %s\n", label, q.Used, q.Limit, remaining)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "now"
	}
	d = d.Round(time.Minute)
	if d < time.Minute {
		return "less than a minute"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02dm", h, m)
}
