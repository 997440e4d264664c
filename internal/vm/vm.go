// Package vm implements the cosh bytecode compiler and stack machine:
// the scanner-fed single-pass compiler, the Chunk/opcode model, the
// Value/Object model, and the execution engine (generators, closures,
// pipelines, parallel map). Shape adapted throughout from
// _examples/funvibe-funxy's internal/vm package (CallFrame/operand-stack
// dispatch loop, gob-based Bundle, disassembler), generalized to cosh's
// untyped, closure-and-generator value model per SPEC_FULL.md.
package vm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// VM is a single cosh interpreter instance: one shared operand stack, a
// global scope chain, a loaded runtime library, and the cooperative
// cancellation flag (spec.md §4.4). Local-variable frames are not VM-wide
// state; they are threaded through exec() as explicit parameters so that
// a Generator can snapshot and later resume one without disturbing any
// other in-flight frame.
type VM struct {
	Stack []Value
	// stackMu guards every touch of Stack. The dispatch loop itself never
	// contends for it (one goroutine at a time in the common case), but
	// `|` and pmap both hand a second goroutine a live reference to this
	// VM so it can SHIFT an upstream generator while the main loop keeps
	// running; without this lock those two goroutines race on the slice
	// header and its backing array.
	stackMu sync.Mutex

	Globals []map[string]Value

	Out *bufio.Writer
	In  *bufio.Reader

	running int32

	// rtFunctions holds the runtime library's nested functions, published
	// as globals at startup unless --no-rt was given (spec.md §6).
	rtFunctions map[string]*Chunk

	Debug bool
}

// NewVM creates a VM with stdout/stdin attached and the running flag set.
func NewVM() *VM {
	vm := &VM{
		Globals: []map[string]Value{make(map[string]Value)},
		Out:     bufio.NewWriter(os.Stdout),
		In:      bufio.NewReader(os.Stdin),
	}
	atomic.StoreInt32(&vm.running, 1)
	return vm
}

// SetOutput redirects Out, used by tests to capture printed output.
func (vm *VM) SetOutput(w io.Writer) { vm.Out = bufio.NewWriter(w) }

// Stop requests cooperative cancellation (e.g. from a Ctrl-C handler).
func (vm *VM) Stop() { atomic.StoreInt32(&vm.running, 0) }

// Resume clears a prior Stop, e.g. before the REPL accepts the next line.
func (vm *VM) Resume() { atomic.StoreInt32(&vm.running, 1) }

func (vm *VM) isRunning() bool { return atomic.LoadInt32(&vm.running) != 0 }

// push/pop/peek operate on the single shared operand stack (spec.md
// §4.4: "single operand stack of Values").
func (vm *VM) push(v Value) {
	vm.stackMu.Lock()
	vm.Stack = append(vm.Stack, v)
	vm.stackMu.Unlock()
}

func (vm *VM) pop() (Value, error) {
	vm.stackMu.Lock()
	defer vm.stackMu.Unlock()
	if len(vm.Stack) == 0 {
		return Null, fmt.Errorf("stack underflow")
	}
	v := vm.Stack[len(vm.Stack)-1]
	vm.Stack = vm.Stack[:len(vm.Stack)-1]
	return v, nil
}

func (vm *VM) peek() (Value, error) {
	vm.stackMu.Lock()
	defer vm.stackMu.Unlock()
	if len(vm.Stack) == 0 {
		return Null, fmt.Errorf("stack underflow")
	}
	return vm.Stack[len(vm.Stack)-1], nil
}

func (vm *VM) peekAt(depth int) (Value, error) {
	vm.stackMu.Lock()
	defer vm.stackMu.Unlock()
	idx := len(vm.Stack) - 1 - depth
	if idx < 0 {
		return Null, fmt.Errorf("stack underflow")
	}
	return vm.Stack[idx], nil
}

// rotTop3 rotates the top three stack values (ROT); depth returns the
// current stack depth (DEPTH); clearStack empties it (CLEAR);
// stackSnapshotTopDown returns a copy of the stack top-to-bottom for
// PRINT_STACK. All four
// go through stackMu for the same reason push/pop/peek do.
func (vm *VM) rotTop3() error {
	vm.stackMu.Lock()
	defer vm.stackMu.Unlock()
	n := len(vm.Stack)
	if n < 3 {
		return fmt.Errorf("stack underflow")
	}
	vm.Stack[n-3], vm.Stack[n-2], vm.Stack[n-1] = vm.Stack[n-2], vm.Stack[n-1], vm.Stack[n-3]
	return nil
}

func (vm *VM) depth() int {
	vm.stackMu.Lock()
	defer vm.stackMu.Unlock()
	return len(vm.Stack)
}

func (vm *VM) clearStack() {
	vm.stackMu.Lock()
	vm.Stack = vm.Stack[:0]
	vm.stackMu.Unlock()
}

func (vm *VM) stackSnapshotTopDown() []Value {
	vm.stackMu.Lock()
	defer vm.stackMu.Unlock()
	out := make([]Value, len(vm.Stack))
	for i, v := range vm.Stack {
		out[len(vm.Stack)-1-i] = v
	}
	return out
}

func (vm *VM) pushScope() {
	vm.Globals = append(vm.Globals, make(map[string]Value))
}

func (vm *VM) popScope() {
	if len(vm.Globals) > 1 {
		vm.Globals = vm.Globals[:len(vm.Globals)-1]
	}
}

// lookupGlobal searches the scope chain innermost-first.
func (vm *VM) lookupGlobal(name string) (Value, bool) {
	for i := len(vm.Globals) - 1; i >= 0; i-- {
		if v, ok := vm.Globals[i][name]; ok {
			return v, true
		}
	}
	return Null, false
}

func (vm *VM) setGlobal(name string, v Value) {
	vm.Globals[len(vm.Globals)-1][name] = v
}

// runtimeError is a soft failure: reported once at its origin and
// propagated by returning an error, matching spec.md §7's "VM returns 0"
// propagation policy translated into Go's error-return idiom.
type runtimeError struct {
	Chunk   string
	Line    int
	Column  int
	Message string
}

func (e *runtimeError) Error() string {
	if e.Chunk == "" {
		return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.Chunk, e.Line, e.Column, e.Message)
}

// Run executes chunk as the top-level program (or a script file's main
// chunk), returning the first unrecovered runtime error, if any. Output
// is flushed before returning.
func (vm *VM) Run(chunk *Chunk) error {
	defer vm.Out.Flush()
	if vm.rtFunctions != nil {
		for name, fn := range vm.rtFunctions {
			if _, exists := chunk.Functions[name]; !exists {
				chunk.Functions[name] = fn
			}
		}
	}
	locals := make([]Value, 0, 8)
	handle := &frameHandle{live: true, locals: locals}
	res := vm.exec(chunk, 0, locals, handle, nil)
	if res.err != nil {
		vm.reportError(res.err)
		return res.err
	}
	return nil
}

func (vm *VM) reportError(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
}

// LoadRuntime installs the named functions of an already-compiled
// runtime library chunk as globals, per spec.md §6. The caller compiles
// the library; a failure there is a hard error at startup (not a soft
// runtime error).
func (vm *VM) LoadRuntime(chunk *Chunk) {
	vm.rtFunctions = chunk.Functions
	for name, fn := range chunk.Functions {
		vm.Globals[0][name] = FromObject(&ChunkRef{Chunk: fn})
	}
}
