package main

import (
	"os"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"
)

// TestMain registers "absint" as an in-process command for testscript,
// the same golden-CLI-test setup testscript's own documentation and
// SPEC_FULL.md's AMBIENT STACK entry describe: each .txtar script runs
// absint as if it were a real subprocess, without paying fork/exec cost
// per assertion.
func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"absint": run,
	}))
}

func TestCLIScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata/script",
	})
}
