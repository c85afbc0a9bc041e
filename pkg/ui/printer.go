package ui

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/songledger/songledger/pkg/record"
	"github.com/songledger/songledger/pkg/stringutil"
)

var (
	statusStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Printer writes tables, summaries and errors for the console.
type Printer struct {
	stdout io.Writer
	stderr io.Writer
	color  bool
	// MaxRows caps how many rows PrintView shows; 0 means no cap.
	MaxRows int
	// MaxCellWidth shortens longer cells; 0 means no limit.
	MaxCellWidth int
}

// NewPrinter creates a printer. With colour disabled the output is plain text.
func NewPrinter(stdout, stderr io.Writer, useColor bool) *Printer {
	return &Printer{stdout: stdout, stderr: stderr, color: useColor, MaxRows: 50, MaxCellWidth: 40}
}

// PrintTable outputs rows under headers as an aligned table.
func (p *Printer) PrintTable(headers []string, rows []record.Record) error {
	w := tabwriter.NewWriter(p.stdout, 0, 0, 2, ' ', 0)

	head := make([]string, len(headers))
	for i, h := range headers {
		head[i] = strings.ToUpper(h)
		if p.color {
			head[i] = color.New(color.Bold).Sprint(head[i])
		}
	}
	if _, err := fmt.Fprintln(w, strings.Join(head, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		cells := row
		if p.MaxCellWidth > 0 {
			cells = make([]string, len(row))
			for i, c := range row {
				cells[i] = stringutil.Ellipsis(c, p.MaxCellWidth)
			}
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return w.Flush()
}

// PrintView prints a view's rows followed by a status line.
func (p *Printer) PrintView(v *View) error {
	rows := v.Rows()
	shown := rows
	if p.MaxRows > 0 && len(shown) > p.MaxRows {
		shown = shown[:p.MaxRows]
	}
	if err := p.PrintTable(v.Columns(), shown); err != nil {
		return err
	}
	if hidden := len(rows) - len(shown); hidden > 0 {
		_ = p.line(p.stdout, dimStyle, fmt.Sprintf("... %d more", hidden))
	}

	scope := "all rows"
	if !v.IsFullDataset() {
		scope = "filtered"
	}
	return p.PrintSummary(fmt.Sprintf("%s: %d %s", v.Group(), len(rows), scope))
}

// PrintSummary outputs a status message.
func (p *Printer) PrintSummary(message string) error {
	return p.line(p.stdout, statusStyle, message)
}

// PrintProblems lists rejected fields, sorted by name.
func (p *Printer) PrintProblems(problems map[string]string) error {
	names := make([]string, 0, len(problems))
	for n := range problems {
		names = append(names, n)
	}
	slices.Sort(names)
	for _, n := range names {
		if err := p.PrintError(fmt.Errorf("%s %s", n, problems[n])); err != nil {
			return err
		}
	}
	return nil
}

// PrintError outputs an error to stderr.
func (p *Printer) PrintError(err error) error {
	if err == nil {
		return nil
	}
	if p.color {
		_, werr := color.New(color.FgRed).Fprintf(p.stderr, "Error: %v\n", err)
		return werr
	}
	_, werr := fmt.Fprintf(p.stderr, "Error: %v\n", err)
	return werr
}

// Prompt renders the console prompt for group.
func (p *Printer) Prompt(group string) string {
	s := group + "> "
	if p.color {
		return promptStyle.Render(s)
	}
	return s
}

func (p *Printer) line(w io.Writer, style lipgloss.Style, msg string) error {
	if p.color {
		msg = style.Render(msg)
	}
	_, err := fmt.Fprintln(w, msg)
	return err
}
