package vm

// SimpleForm is a core function that only touches the operand stack
// (spec.md §4.5's "simple forms" — no access to the enclosing chunk or
// the ability to invoke a callee back into the VM).
type SimpleForm func(vm *VM) error

// ShiftForm is a core function that needs to call back into the VM (e.g.
// `map`/`each`/`grep` invoking a user callable per element) or needs the
// calling chunk's lexical context, mirroring spec.md §4.4's separate
// "shift forms" dispatch table.
type ShiftForm func(vm *VM, chunk *Chunk, enclosing []*Chunk, line, col int) error

// simpleForms and shiftForms are populated by each corefn_*.go file's
// init(), split by domain the way funxy splits builtins_io.go/
// builtins_http.go/builtins_csv.go (SPEC_FULL.md MODULE MAP #7).
var simpleForms = map[string]SimpleForm{}
var shiftForms = map[string]ShiftForm{}

func registerSimple(forms map[string]SimpleForm) {
	for name, fn := range forms {
		simpleForms[name] = fn
	}
}

func registerShift(forms map[string]ShiftForm) {
	for name, fn := range forms {
		shiftForms[name] = fn
	}
}
