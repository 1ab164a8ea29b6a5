package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// printer writes human output. Colors are off unless the mode and terminal allow them.
type printer struct {
	out       io.Writer
	err       io.Writer
	useColors bool
}

func resolveColors(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return !color.NoColor
}

func newPrinter(out, errOut io.Writer, mode string) *printer {
	return &printer{out: out, err: errOut, useColors: resolveColors(mode)}
}

func (p *printer) paint(attrs []color.Attribute, s string) string {
	if !p.useColors {
		return s
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(s)
}

func (p *printer) Header(title string) {
	fmt.Fprintln(p.out, p.paint([]color.Attribute{color.Bold}, title))
}

func (p *printer) Success(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if p.useColors {
		fmt.Fprintln(p.out, p.paint([]color.Attribute{color.FgGreen}, "✓ "+msg))
		return
	}
	fmt.Fprintln(p.out, "[OK] "+msg)
}

func (p *printer) Warning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if p.useColors {
		fmt.Fprintln(p.err, p.paint([]color.Attribute{color.FgYellow}, "⚠ "+msg))
		return
	}
	fmt.Fprintln(p.err, "[WARN] "+msg)
}

func (p *printer) Dim(s string) string  { return p.paint([]color.Attribute{color.Faint}, s) }
func (p *printer) Red(s string) string  { return p.paint([]color.Attribute{color.FgRed}, s) }
func (p *printer) Cyan(s string) string { return p.paint([]color.Attribute{color.FgCyan}, s) }

// renderTable writes a borderless, left-aligned table.
func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
