// Command cosh is the cosh interpreter: file-execution mode, the
// -c/--compile and --bytecode bundle round trip, --disassemble, and the
// interactive REPL, per spec.md §6's CLI surface. Arg handling is
// hand-rolled (switch over os.Args) the way
// _examples/funvibe-funxy/cmd/funxy/main.go does it — no CLI-framework
// dependency appears anywhere in the retrieved pack for this class of
// tool (DESIGN.md).
package main

import (
	"fmt"
	"os"

	"github.com/cosh-lang/cosh/internal/config"
	"github.com/cosh-lang/cosh/internal/replshell"
	"github.com/cosh-lang/cosh/internal/vm"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: cosh [options] [file]

options:
  -h, --help          show this help text
  -c, --compile       compile the input file to bytecode (requires -o)
  -o NAME             output path for --compile
  --bytecode          execute a previously compiled bytecode file
  --disassemble       print a bytecode listing instead of executing
  --no-rt             skip loading the runtime library
  -d, --debug         trace opcode/stack at each dispatch step
`)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		compile      bool
		outPath      string
		bytecodeMode bool
		disassemble  bool
		noRT         bool
		debug        bool
		file         string
	)

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch a {
		case "-h", "--help":
			usage()
			return 0
		case "-c", "--compile":
			compile = true
		case "-o":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "cosh: -o requires an argument")
				return 1
			}
			outPath = args[i]
		case "--bytecode":
			bytecodeMode = true
		case "--disassemble":
			disassemble = true
		case "--no-rt":
			noRT = true
		case "-d", "--debug":
			debug = true
		default:
			if len(a) > 0 && a[0] == '-' {
				fmt.Fprintf(os.Stderr, "cosh: unknown option %s\n", a)
				usage()
				return 1
			}
			file = a
		}
	}

	if compile {
		if outPath == "" || file == "" {
			fmt.Fprintln(os.Stderr, "cosh: -c/--compile requires an input file and -o NAME")
			return 1
		}
		return doCompile(file, outPath)
	}

	if file == "" {
		return runREPL(noRT, debug)
	}

	if disassemble {
		return doDisassemble(file, bytecodeMode)
	}

	return runFile(file, bytecodeMode, noRT, debug)
}

func doCompile(inPath, outPath string) int {
	src, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cosh: %s\n", err)
		return 1
	}
	chunk, err := vm.Compile(inPath, src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cosh: %s\n", err)
		return 1
	}
	data, err := vm.SerializeChunk(chunk)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cosh: %s\n", err)
		return 1
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "cosh: %s\n", err)
		return 1
	}
	return 0
}

func loadChunk(path string, bytecodeMode bool) (*vm.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if bytecodeMode {
		return vm.DeserializeChunk(data)
	}
	return vm.Compile(path, data)
}

func doDisassemble(path string, bytecodeMode bool) int {
	chunk, err := loadChunk(path, bytecodeMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cosh: %s\n", err)
		return 1
	}
	vm.Disassemble(os.Stdout, chunk)
	return 0
}

func loadRuntime(v *vm.VM) {
	for _, p := range config.RuntimeLibPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		chunk, err := vm.DeserializeChunk(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cosh: failed to load runtime library %s: %s\n", p, err)
			os.Exit(1)
		}
		v.LoadRuntime(chunk)
		return
	}
	fmt.Fprintln(os.Stderr, "cosh: could not find runtime library (tried: "+joinPaths(config.RuntimeLibPaths)+")")
	os.Exit(1)
}

func joinPaths(paths []string) string {
	out := ""
	for i, p := range paths {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

func runFile(path string, bytecodeMode, noRT, debug bool) int {
	v := vm.NewVM()
	v.Debug = debug
	if !noRT {
		loadRuntime(v)
	}
	chunk, err := loadChunk(path, bytecodeMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cosh: %s\n", err)
		return 1
	}
	if err := v.Run(chunk); err != nil {
		return 1
	}
	return 0
}

func runREPL(noRT, debug bool) int {
	v := vm.NewVM()
	v.Debug = debug
	if !noRT {
		loadRuntime(v)
	}
	return replshell.Run(v)
}
