// Package output formats CLI output: JSON results on stdout, human
// diagnostics on stderr.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Writer separates machine-readable results from diagnostics so pipelines
// can consume stdout while progress goes to the terminal.
type Writer struct {
	out  io.Writer // results
	diag io.Writer // status lines, progress
}

// New creates a Writer. diag may be nil, in which case diagnostics are
// discarded.
func New(out, diag io.Writer) *Writer {
	if diag == nil {
		diag = io.Discard
	}
	return &Writer{out: out, diag: diag}
}

// Stdio returns a Writer over os.Stdout and os.Stderr.
func Stdio() *Writer {
	return New(os.Stdout, os.Stderr)
}

// JSON writes v as indented JSON to the result stream.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Raw writes s to the result stream followed by a newline.
func (w *Writer) Raw(s string) {
	_, _ = fmt.Fprintln(w.out, s)
}

// Status prints a status line with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.diag, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.diag, "   %s\n", msg)
	}
}

// Statusf prints a formatted status line with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success line.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success line.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning line.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning line.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error line.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error line.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Progress prints an in-place progress bar on the diagnostics stream.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}

	pct := float64(current) / float64(total) * 100
	bar := renderProgressBar(current, total, 30)

	_, _ = fmt.Fprintf(w.diag, "\r[%s] %.0f%% %s", bar, pct, msg)
	if current >= total {
		_, _ = fmt.Fprintln(w.diag)
	}
}

// DiagIsTerminal reports whether diagnostics go to an interactive terminal,
// so callers can skip progress bars under redirection.
func (w *Writer) DiagIsTerminal() bool {
	f, ok := w.diag.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}

	filled := int(float64(current) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
