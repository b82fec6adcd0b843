// cmd/absint is the demo CLI SPEC_FULL.md's AMBIENT STACK calls for: a
// thin, concrete stand-in for the external CLI/checker client spec.md
// treats as out of scope, just enough to drive internal/engine end to end
// and show internal/dump's rendering.
//
// Grounded on cmd/sentra/main.go's hand-rolled os.Args[0] subcommand +
// alias-map dispatch (no CLI framework, matching the teacher's own
// choice); this command surface is deliberately much smaller than
// sentra's, since it exists to exercise the core, not to compete with it.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"absint/internal/dump"
)

const version = "0.1.0"

var commandAliases = map[string]string{
	"s": "scenario",
	"l": "scenarios",
	"v": "version",
}

func main() { os.Exit(run(os.Args[1:])) }

// run is main's body factored out so cmd/absint's testscript golden tests
// (internal/dump's sibling test tooling) can invoke it in-process via
// testscript.RunMain instead of spawning a subprocess per assertion.
func run(args []string) int {
	if len(args) == 0 {
		showUsage()
		return 0
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		fmt.Printf("absint %s\n", version)
	case "scenarios":
		listScenarios()
	case "scenario":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: absint scenario <name>")
			return 1
		}
		w := dump.New(os.Stdout)
		if err := runScenario(w, args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	case "serve":
		addr := ":8787"
		if len(args) > 1 {
			addr = args[1]
		}
		serveDebug(addr)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", args[0])
		showUsage()
		return 1
	}
	return 0
}

// serveDebug starts the live dump(stream) websocket variant
// (internal/dump.DebugServer) at /debug/stream and blocks serving it so a
// debugger UI can attach. It runs no scenario itself.
func serveDebug(addr string) {
	srv := dump.NewDebugServer()
	http.HandleFunc("/debug/stream", srv.Handler)
	fmt.Printf("absint debug server listening on %s (ws path /debug/stream)\n", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func showUsage() {
	fmt.Println("absint - whole-program abstract-interpretation engine (demo CLI)")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  absint scenario <name>   Run one built-in scenario and dump its final state (alias: s)")
	fmt.Println("  absint scenarios         List built-in scenarios                               (alias: l)")
	fmt.Println("  absint serve [addr]      Start a live debug-dump websocket server on addr")
	fmt.Println("  absint version           Show version                                          (alias: v)")
	fmt.Println("  absint help              Show this message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  absint scenario s3-cell-strong-update")
	fmt.Println("  absint scenarios")
}
