package diagfmt

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"kernelfuzz/internal/diag"
	"kernelfuzz/internal/source"
)

type palette struct {
	err, warn, info, code, gutter, caret, note func(a ...any) string
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) func(a ...any) string {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return palette{
		err:    mk(color.FgRed, color.Bold),
		warn:   mk(color.FgYellow, color.Bold),
		info:   mk(color.FgCyan),
		code:   mk(color.Bold),
		gutter: mk(color.FgBlue),
		caret:  mk(color.FgGreen, color.Bold),
		note:   mk(color.FgCyan, color.Bold),
	}
}

func (p palette) severity(s diag.Severity) string {
	switch s {
	case diag.SevError:
		return p.err(s.String())
	case diag.SevWarning:
		return p.warn(s.String())
	default:
		return p.info(s.String())
	}
}

// Pretty форматирует диагностики в человекочитаемый вид:
//
//	<path>:<line>:<col>: <SEV> <CODE>: <Message>
//	  <line> | <source line>
//	         | ^~~~
//
// Диагностики без позиции печатаются одной строкой.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	p := newPalette(opts.Color)
	for _, d := range bag.Items() {
		writeHeader(w, p, fs, opts, d)
		writeSnippet(w, p, fs, opts, d.Primary)
		if !opts.ShowNotes {
			continue
		}
		for _, n := range d.Notes {
			loc := location(fs, opts, n.Span)
			if loc != "" {
				loc += ": "
			}
			fmt.Fprintf(w, "  %s %s%s\n", p.note("note:"), loc, n.Msg)
		}
	}
}

func writeHeader(w io.Writer, p palette, fs *source.FileSet, opts PrettyOpts, d diag.Diagnostic) {
	if loc := location(fs, opts, d.Primary); loc != "" {
		fmt.Fprintf(w, "%s: ", loc)
	}
	fmt.Fprintf(w, "%s %s: %s\n", p.severity(d.Severity), p.code(d.Code.ID()), d.Message)
}

func location(fs *source.FileSet, opts PrettyOpts, sp source.Span) string {
	if fs == nil {
		return ""
	}
	f := fs.Get(sp.File)
	if f == nil {
		return ""
	}
	start, _ := fs.Resolve(sp)
	return fmt.Sprintf("%s:%d:%d", formatPath(f, opts.PathMode, opts.BaseDir), start.Line, start.Col)
}

func writeSnippet(w io.Writer, p palette, fs *source.FileSet, opts PrettyOpts, sp source.Span) {
	if fs == nil {
		return
	}
	f := fs.Get(sp.File)
	if f == nil {
		return
	}
	start, end := fs.Resolve(sp)
	line := f.GetLine(start.Line)
	prefix := prefixBytes(line, start.Col)
	width := runewidth.StringWidth(line[len(prefix):min(len(line), len(prefix)+int(sp.Len()))])
	if end.Line != start.Line {
		width = runewidth.StringWidth(line[len(prefix):])
	}
	if opts.Width > 0 {
		line = runewidth.Truncate(line, opts.Width, "…")
	}
	num := strconv.FormatUint(uint64(start.Line), 10)
	pad := strings.Repeat(" ", len(num))
	fmt.Fprintf(w, "  %s %s %s\n", p.gutter(num), p.gutter("|"), line)
	marker := "^"
	if width > 1 {
		marker += strings.Repeat("~", width-1)
	}
	fmt.Fprintf(w, "  %s %s %s%s\n", pad, p.gutter("|"), strings.Repeat(" ", runewidth.StringWidth(prefix)), p.caret(marker))
}

// prefixBytes returns the part of line before 1-based byte column col.
func prefixBytes(line string, col uint32) string {
	if col == 0 {
		return ""
	}
	n := int(col - 1)
	if n > len(line) {
		n = len(line)
	}
	return line[:n]
}
