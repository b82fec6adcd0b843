package dump

import (
	"bytes"
	"strings"
	"testing"
)

type fakeDump string

func (f fakeDump) Dump() string { return string(f) }

func TestDumpWritesLabelAndBody(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Dump("my-state", fakeDump("cells{} interval[0,10]"))

	out := buf.String()
	if !strings.Contains(out, "my-state") {
		t.Errorf("want label in output, got %q", out)
	}
	if !strings.Contains(out, "cells{} interval[0,10]") {
		t.Errorf("want body in output, got %q", out)
	}
}

func TestDumpNeverColorizesNonTerminalWriters(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)
	w.Dump("x", fakeDump("plain"))
	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("want no ANSI escapes when writing to a bytes.Buffer, got %q", buf.String())
	}
}

func TestHumanizeBigNumbersInsertsThousandsSeparators(t *testing.T) {
	got := humanizeBigNumbers("interval[100000, 2000000]")
	want := "interval[100,000, 2,000,000]"
	if got != want {
		t.Errorf("humanizeBigNumbers() = %q, want %q", got, want)
	}
}

func TestHumanizeBigNumbersLeavesShortRunsAlone(t *testing.T) {
	got := humanizeBigNumbers("x=42, y=999")
	want := "x=42, y=999"
	if got != want {
		t.Errorf("humanizeBigNumbers() = %q, want %q", got, want)
	}
}

func TestWithPrefixIndentsBody(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf).WithPrefix("  ")
	w.Dump("nested", fakeDump("line one\nline two"))
	out := buf.String()
	if !strings.Contains(out, "  line one") || !strings.Contains(out, "  line two") {
		t.Errorf("want every body line indented, got %q", out)
	}
}

func TestPrettyDiffReportsDifference(t *testing.T) {
	diff := PrettyDiff("mismatch", fakeDump("got-state"), fakeDump("want-state"))
	if !strings.Contains(diff, "mismatch") {
		t.Errorf("want label in diff output, got %q", diff)
	}
}
