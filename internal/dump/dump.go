// Package dump implements the concrete dump(stream) renderer spec.md
// section 6 requires of every state-level API, plus a live websocket
// variant for attached debugger UIs (SPEC_FULL.md's DOMAIN STACK table).
//
// The domain packages themselves only expose a plain String(); this
// package is deliberately the only place that reaches for
// presentation-layer third-party libraries, the same separation the
// teacher keeps between internal/debugger (presentation) and internal/vm
// (the thing being presented).
package dump

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kr/pretty"
	"github.com/kr/text"
	"github.com/mattn/go-isatty"
	"github.com/ncruces/go-strftime"
)

// Dumpable is anything with a plain-text Dump(). In this module only
// engine.State implements it; memdomain.State, summary.State and
// partition.Domain expose String() instead.
type Dumpable interface {
	Dump() string
}

const (
	colorDim   = "\x1b[2m"
	colorCyan  = "\x1b[36m"
	colorReset = "\x1b[0m"
)

// Writer renders Dumpable values to an io.Writer, timestamping every
// snapshot and colorizing only when the stream is attached to a terminal.
type Writer struct {
	out    io.Writer
	color  bool
	prefix string
}

// New builds a Writer over out. Colorization is auto-detected via
// mattn/go-isatty when out is an *os.File; callers writing to a pipe, a
// file, or a websocket connection get plain text.
func New(out io.Writer) *Writer {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Writer{out: out, color: color}
}

// WithPrefix returns a Writer that indents every dumped line under prefix
// (github.com/kr/text.Indent), used to nest a call's summary dump under
// its call site in a trace.
func (w *Writer) WithPrefix(prefix string) *Writer {
	return &Writer{out: w.out, color: w.color, prefix: prefix}
}

func (w *Writer) colorize(code, s string) string {
	if !w.color {
		return s
	}
	return code + s + colorReset
}

// Dump renders one labeled snapshot: a strftime-formatted timestamp, the
// label, and the plain-text dump, humanizing any big.Int-backed bound that
// printed as a long digit run.
func (w *Writer) Dump(label string, v Dumpable) {
	ts, err := strftime.Format("%Y-%m-%d %H:%M:%S", time.Now())
	if err != nil {
		ts = time.Now().Format(time.RFC3339)
	}
	header := fmt.Sprintf("[%s] %s", w.colorize(colorDim, ts), w.colorize(colorCyan, label))
	body := humanizeBigNumbers(v.Dump())
	if w.prefix != "" {
		body = strings.TrimRight(text.Indent(body, w.prefix), "\n")
	}
	fmt.Fprintf(w.out, "%s\n%s\n", header, body)
}

// humanizeBigNumbers inserts thousands separators into any run of 5+
// digits in s, so a dumped interval like [1000000, 2000000] reads as
// [1,000,000, 2,000,000]. This is purely cosmetic: a run longer than 18
// digits, which might not fit an int64, is left as plain digits.
func humanizeBigNumbers(s string) string {
	var out strings.Builder
	var digits strings.Builder
	flush := func() {
		if digits.Len() >= 5 {
			if n, err := parseInt64(digits.String()); err == nil {
				out.WriteString(humanize.Comma(n))
				digits.Reset()
				return
			}
		}
		out.WriteString(digits.String())
		digits.Reset()
	}
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
			continue
		}
		flush()
		out.WriteRune(r)
	}
	flush()
	return out.String()
}

func parseInt64(s string) (int64, error) {
	if len(s) > 18 {
		return 0, fmt.Errorf("digit run of length %d may not fit an int64", len(s))
	}
	var n int64
	for _, r := range s {
		n = n*10 + int64(r-'0')
	}
	return n, nil
}

// PrettyDiff renders a structural diff between two dumped values using
// kr/pretty, for test-failure output (§8's testable properties: when a
// lattice-law check fails, the two abstract values are worth seeing
// side-by-side rather than as opaque String()s).
func PrettyDiff(label string, got, want Dumpable) string {
	return fmt.Sprintf("%s:\n%s", label, strings.Join(pretty.Diff(got.Dump(), want.Dump()), "\n"))
}
