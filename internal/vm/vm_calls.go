package vm

import "fmt"

// callNamed resolves a CALL_CONSTANT/CALL_IMPLICIT_CONSTANT callee by
// name, in the order spec.md §4.4 specifies: simple-forms table,
// shift-forms table, the nested-function chain (innermost to outermost),
// then the global-function map; on miss, an implicit call pushes the
// name as a string and an explicit call fails.
func (vm *VM) callNamed(name string, chunk *Chunk, enclosing []*Chunk, implicit bool, line, col int) error {
	if fn, ok := simpleForms[name]; ok {
		return fn(vm)
	}
	if fn, ok := shiftForms[name]; ok {
		return fn(vm, chunk, enclosing, line, col)
	}
	if fc, ok := chunk.Functions[name]; ok {
		return vm.invokeChunk(fc, chunk, enclosing)
	}
	for i := len(enclosing) - 1; i >= 0; i-- {
		if fc, ok := enclosing[i].Functions[name]; ok {
			return vm.invokeChunk(fc, enclosing[i], enclosing[:i])
		}
	}
	if v, ok := vm.lookupGlobal(name); ok {
		return vm.callValue(v, chunk, enclosing, implicit, line, col)
	}
	if implicit {
		vm.push(FromString(name))
		return nil
	}
	return fmt.Errorf("function not found: %s", name)
}

// callValue implements CALL/CALL_IMPLICIT's callee-variant dispatch
// (spec.md §4.4's "Dispatch by callee variant").
func (vm *VM) callValue(callee Value, chunk *Chunk, enclosing []*Chunk, implicit bool, line, col int) error {
	if callee.Type == TObj {
		switch obj := callee.Obj.(type) {
		case *StringObj:
			return vm.callNamed(obj.Text, chunk, enclosing, implicit, line, col)
		case *CommandObj:
			return vm.runCommand(obj)
		case *ChunkRef:
			return vm.invokeChunk(obj.Chunk, chunk, enclosing)
		case *AnonFunc:
			return vm.callAnonFunc(obj, chunk, enclosing)
		case *FuncRef:
			return vm.callNamed(obj.Name, chunk, enclosing, implicit, line, col)
		}
	}
	if implicit {
		vm.push(callee)
		return nil
	}
	return fmt.Errorf("value of type %s is not callable", callee.TypeName())
}

// invokeChunk runs (or, for a generator chunk, suspends) fc. definingChunk
// and definingEnclosing describe the lexical nesting fc was declared in,
// used to build fc's own enclosing-chunk chain for name resolution inside
// its body (spec.md §4.4).
func (vm *VM) invokeChunk(fc *Chunk, definingChunk *Chunk, definingEnclosing []*Chunk) error {
	newEnclosing := make([]*Chunk, 0, len(definingEnclosing)+1)
	newEnclosing = append(newEnclosing, definingEnclosing...)
	newEnclosing = append(newEnclosing, definingChunk)

	if fc.IsGenerator {
		if vm.depth() < fc.ArgCount {
			return fmt.Errorf("not enough arguments for generator %s", fc.Name)
		}
		args := make([]Value, fc.ArgCount)
		for i := fc.ArgCount - 1; i >= 0; i-- {
			v, err := vm.pop()
			if err != nil {
				return err
			}
			args[i] = v
		}
		locals := append([]Value{}, args...)
		gen := &Generator{
			Chunk:     fc,
			Pc:        0,
			Locals:    locals,
			Globals:   copyGlobalsStack(vm.Globals),
			Enclosing: newEnclosing,
			PendingArgs: args,
		}
		vm.push(FromObject(gen))
		return nil
	}

	pushedScope := false
	if fc.HasVars {
		vm.pushScope()
		pushedScope = true
	}
	locals := make([]Value, 0, fc.ArgCount)
	handle := &frameHandle{live: true, locals: locals}
	res := vm.exec(fc, 0, locals, handle, newEnclosing)
	if pushedScope {
		vm.popScope()
	}
	return res.err
}

// callAnonFunc implements spec.md §4.4's AnonymousFunction call: validate
// the owning frame is still live, run the body against that frame's
// locals, write the updated locals back.
func (vm *VM) callAnonFunc(af *AnonFunc, callerChunk *Chunk, enclosing []*Chunk) error {
	if !af.Handle.live {
		return fmt.Errorf("stack has gone away")
	}
	res := vm.exec(af.Chunk, 0, af.Handle.locals, af.Handle, enclosing)
	// exec's finish wrote the body's locals back into the handle and marked
	// it dead; the defining call is still running, so keep it live.
	af.Handle.live = true
	return res.err
}

func copyGlobalsStack(g []map[string]Value) []map[string]Value {
	out := make([]map[string]Value, len(g))
	copy(out, g)
	return out
}
