// Package replshell implements cosh's interactive read-eval-print loop
// (spec.md §6): compiling and executing each entered line against one
// long-lived VM instance so that globals and functions accumulate
// across lines, with line editing and persistent history when attached
// to a terminal. Out of core scope per spec.md §1 ("REPL line editor,
// completion, history" is an external collaborator), sketched at the
// interface the way _examples/ProbeChain-go-probe's own console tooling
// wraps github.com/peterh/liner, and gated by github.com/mattn/go-isatty
// the way funxy's CLI decides interactively-vs-piped behavior.
package replshell

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	"github.com/cosh-lang/cosh/internal/config"
	"github.com/cosh-lang/cosh/internal/vm"
)

// Run drives the REPL against v until EOF (Ctrl-D) or a fatal read
// error, returning the process exit code.
func Run(v *vm.VM) int {
	interactive := isatty.IsTerminal(os.Stdin.Fd())

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := filepath.Join(".", config.HistoryFileName)
	if interactive {
		if f, err := os.Open(historyPath); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}

	for {
		prompt := promptFor(interactive)
		input, err := line.Prompt(prompt)
		if err == liner.ErrPromptAborted {
			// Ctrl-C: request cooperative cancellation and return to the
			// prompt (spec.md §6 "Ctrl-C sets the running flag to request
			// cancellation"); v.Resume() happens inside exec() itself once
			// it observes the flag cleared.
			v.Stop()
			continue
		}
		if err != nil {
			break
		}
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		chunk, cerr := vm.Compile("<repl>", []byte(input))
		if cerr != nil {
			fmt.Fprintln(os.Stderr, cerr.Error())
			continue
		}
		// A prior Ctrl-C only needs to interrupt the line it arrived on;
		// clear it before the next one so the VM isn't left stopped forever.
		v.Resume()
		// Errors are reported by v.Run itself and swallowed here: spec.md
		// §7's propagation policy says "the REPL top level discards the
		// failure and returns to the prompt."
		v.Run(chunk)
	}

	if interactive {
		if f, err := os.Create(historyPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}
	return 0
}

func promptFor(interactive bool) string {
	if !interactive {
		return ""
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "?"
	}
	return cwd + "$ "
}
