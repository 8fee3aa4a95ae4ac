package ui

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"github.com/satishbabariya/schemaver/migrate"
	"github.com/satishbabariya/schemaver/migrate/executor"
	"github.com/satishbabariya/schemaver/migrate/provider"
)

var (
	// Colors
	PrimaryColor   = lipgloss.Color("#00D9FF")
	SuccessColor   = lipgloss.Color("#00FF88")
	WarningColor   = lipgloss.Color("#FFB800")
	ErrorColor     = lipgloss.Color("#FF4444")
	InfoColor      = lipgloss.Color("#00D9FF")
	SecondaryColor = lipgloss.Color("#6C757D")

	// Styles
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(InfoColor)

	SecondaryStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)
)

// Printer writes user-facing output. Logging goes through slog instead.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// New returns a printer on out and errOut.
func New(out, errOut io.Writer) *Printer {
	return &Printer{Out: out, Err: errOut}
}

// Success prints a success message
func (p *Printer) Success(format string, args ...interface{}) {
	fmt.Fprintln(p.Out, SuccessStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func (p *Printer) Warning(format string, args ...interface{}) {
	fmt.Fprintln(p.Err, WarningStyle.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// Info prints an info message
func (p *Printer) Info(format string, args ...interface{}) {
	fmt.Fprintln(p.Out, InfoStyle.Render("ℹ "+fmt.Sprintf(format, args...)))
}

// Error prints err and any hints attached to it.
func (p *Printer) Error(err error) {
	fmt.Fprintln(p.Err, ErrorStyle.Render("✗ "+err.Error()))
	if hints := errors.FlattenHints(err); hints != "" {
		for _, h := range strings.Split(hints, "\n") {
			if h = strings.TrimSpace(h); h != "" && !strings.HasPrefix(h, "--") {
				fmt.Fprintln(p.Err, SecondaryStyle.Render("  hint: "+h))
			}
		}
	}
}

// Section prints a section header
func (p *Printer) Section(title string) {
	fmt.Fprintln(p.Out, TitleStyle.Render(title))
}

// Table prints a table using pterm
func (p *Printer) Table(headers []string, rows [][]string) error {
	data := pterm.TableData{headers}
	data = append(data, rows...)
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(p.Out, out)
	return nil
}

// Markdown renders markdown content
func (p *Printer) Markdown(content string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return err
	}
	out, err := r.Render(content)
	if err != nil {
		return err
	}
	fmt.Fprint(p.Out, out)
	return nil
}

var statusColors = map[executor.Status]*color.Color{
	executor.StatusApplied:  color.New(color.FgGreen, color.Bold),
	executor.StatusVerified: color.New(color.FgCyan, color.Bold),
	executor.StatusFailed:   color.New(color.FgRed, color.Bold),
	executor.StatusPartial:  color.New(color.FgYellow, color.Bold),
}

// Report prints the steps, warnings and outcome of a run.
func (p *Printer) Report(r *executor.Report) error {
	if r == nil {
		return nil
	}
	applied := "none"
	if r.Applied != nil {
		applied = r.Applied.String()
	}
	p.Info("%s: applied %s, target %s, %d pending", r.Platform, applied, r.Target, len(r.Pending))

	if len(r.Steps) > 0 {
		rows := make([][]string, 0, len(r.Steps))
		for _, s := range r.Steps {
			status := string(s.Status)
			if c, ok := statusColors[s.Status]; ok {
				status = c.Sprint(status)
			}
			rows = append(rows, []string{
				s.Name,
				status,
				strconv.Itoa(s.Scripts),
				strconv.Itoa(s.Batches),
				s.Duration.Round(time.Millisecond).String(),
			})
		}
		if err := p.Table([]string{"Step", "Status", "Scripts", "Batches", "Duration"}, rows); err != nil {
			return err
		}
	}

	for _, w := range r.Warnings {
		p.Warning("%s", w.Error())
	}

	switch {
	case r.State != executor.StateCompleted:
		return nil
	case len(r.Pending) == 0:
		p.Success("database is up to date at %s", r.Target)
	case r.VerifyOnly:
		p.Success("verified %d version(s), all changes rolled back", len(r.Pending))
	default:
		p.Success("applied %d version(s) in %s", len(r.AppliedVersions()), r.Duration().Round(time.Millisecond))
	}
	return nil
}

// Versions prints tracking records as tab-separated text or as a table.
func (p *Printer) Versions(records []migrate.TrackingRecord, format string) error {
	switch format {
	case "", "text":
		_, err := fmt.Fprint(p.Out, executor.FormatVersions(records))
		return err
	case "table":
		rows := make([][]string, 0, len(records))
		for _, r := range records {
			rows = append(rows, []string{
				r.Version,
				r.AppliedAtUTC.UTC().Format("2006-01-02 15:04:05"),
				r.AppliedBy,
				strings.TrimSpace(r.AppliedByTool + " " + r.AppliedByToolVersion),
			})
		}
		return p.Table([]string{"Version", "Created", "CreatedBy", "Tool"}, rows)
	default:
		return errors.Newf("unknown format %q, expected text or table", format)
	}
}

// Platforms prints the resolvable platforms.
func (p *Printer) Platforms(platforms []provider.PlatformInfo) error {
	rows := make([][]string, 0, len(platforms))
	for _, pl := range platforms {
		source := "built-in"
		if !pl.Builtin {
			source = pl.Path
		}
		rows = append(rows, []string{pl.Name, source, pl.Version})
	}
	return p.Table([]string{"Platform", "Source", "Version"}, rows)
}

// Confirm asks a yes/no question on the terminal.
func Confirm(message string) (bool, error) {
	ok := false
	if err := survey.AskOne(&survey.Confirm{Message: message}, &ok); err != nil {
		return false, err
	}
	return ok, nil
}
