package vm

import (
	"fmt"
	"strings"
)

// corefn_seq.go is cosh-go's counterpart to
// _examples/original_source/src/vm/vm_list.rs's generator-processing
// core functions: the uniform map/grep/take/take-all/join/chomp family
// spec.md §2's "lazy sequences ... as the uniform iteration abstraction"
// and §8's end-to-end scenarios (4, 6) exercise directly. These are
// "shift-style" forms (spec.md §4.5) because map/grep must call back
// into the VM to invoke the user-supplied predicate/transform, and
// take/take-all/join/gnth must themselves repeatedly SHIFT the upstream
// value.
func init() {
	registerShift(map[string]ShiftForm{
		"map":       fnMap,
		"grep":      fnGrep,
		"take":      fnTake,
		"take-all":  fnTakeAll,
		"shift-all": fnShiftAll,
		"join":      fnJoin,
		"gnth":      fnGnth,
	})
	registerSimple(map[string]SimpleForm{
		"chomp":   fnChomp,
		"println": fnPrintln,
		"p":       fnP,
		"pn":      fnPn,
	})
}

// asShiftable returns v unchanged if SHIFT understands it (see
// isShiftable) and an error otherwise, so that map/grep/take can treat
// "the thing that was on the stack" uniformly, per spec.md §3's "uniform
// lazy-sequence abstraction over files, command output, hash views, user
// functions...". Nothing is wrapped.
func asShiftable(v Value) (Value, error) {
	if isShiftable(v) {
		return v, nil
	}
	return Null, fmt.Errorf("value of type %s is not shiftable", v.TypeName())
}

// fnMap: (shiftable callable -- list). Builds a ListObj
// eagerly by draining the upstream shiftable and calling callee on each
// element, matching spec.md §8 scenario 4's `(1 2 3) [2 +] map; take-all`
// (map itself returns a list here already, so take-all just echoes it;
// see fnTakeAll).
func fnMap(vm *VM, chunk *Chunk, enclosing []*Chunk, line, col int) error {
	callee, err := vm.pop()
	if err != nil {
		return err
	}
	src, err := vm.pop()
	if err != nil {
		return err
	}
	src, err = asShiftable(src)
	if err != nil {
		return fmt.Errorf("map: %w", err)
	}
	var out []Value
	for {
		elem, err := vm.shiftValue(src)
		if err != nil {
			return err
		}
		if elem.IsNull() {
			break
		}
		vm.push(elem)
		if err := vm.callValue(callee, chunk, enclosing, false, line, col); err != nil {
			return err
		}
		mapped, err := vm.pop()
		if err != nil {
			return err
		}
		out = append(out, mapped)
	}
	vm.push(FromObject(&ListObj{Items: out}))
	return nil
}

// fnGrep: (shiftable callable -- result-list). Keeps elements for which
// callee leaves a truthy value.
func fnGrep(vm *VM, chunk *Chunk, enclosing []*Chunk, line, col int) error {
	callee, err := vm.pop()
	if err != nil {
		return err
	}
	src, err := vm.pop()
	if err != nil {
		return err
	}
	src, err = asShiftable(src)
	if err != nil {
		return fmt.Errorf("grep: %w", err)
	}
	var out []Value
	for {
		elem, err := vm.shiftValue(src)
		if err != nil {
			return err
		}
		if elem.IsNull() {
			break
		}
		vm.push(elem)
		if err := vm.callValue(callee, chunk, enclosing, false, line, col); err != nil {
			return err
		}
		keep, err := vm.pop()
		if err != nil {
			return err
		}
		if keep.Truthy() {
			out = append(out, elem)
		}
	}
	vm.push(FromObject(&ListObj{Items: out}))
	return nil
}

// fnTake: (shiftable n -- list). Shifts at most n elements, matching
// spec.md §8's testable property "G -> take N -> len <= N; equality
// holds when G has at least N elements."
func fnTake(vm *VM, chunk *Chunk, enclosing []*Chunk, line, col int) error {
	nV, err := vm.pop()
	if err != nil {
		return err
	}
	src, err := vm.pop()
	if err != nil {
		return err
	}
	src, err = asShiftable(src)
	if err != nil {
		return fmt.Errorf("take: %w", err)
	}
	n := int(nV.AsInt())
	out := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		elem, err := vm.shiftValue(src)
		if err != nil {
			return err
		}
		if elem.IsNull() {
			break
		}
		out = append(out, elem)
	}
	vm.push(FromObject(&ListObj{Items: out}))
	return nil
}

// fnTakeAll: (shiftable -- list). A List value is already the "result",
// so take-all on a list just passes it through unchanged (spec.md §8
// scenario 4 applies take-all directly to map's list result); any other
// shiftable is drained fully.
func fnTakeAll(vm *VM, chunk *Chunk, enclosing []*Chunk, line, col int) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	if l, ok := v.Obj.(*ListObj); ok {
		vm.push(FromObject(&ListObj{Items: append([]Value{}, l.Items...)}))
		return nil
	}
	src, err := asShiftable(v)
	if err != nil {
		return fmt.Errorf("take-all: %w", err)
	}
	var out []Value
	for {
		elem, err := vm.shiftValue(src)
		if err != nil {
			return err
		}
		if elem.IsNull() {
			break
		}
		out = append(out, elem)
	}
	vm.push(FromObject(&ListObj{Items: out}))
	return nil
}

// fnShiftAll is take-all's alias used by the shift-style dispatch table
// in spec.md §4.5's representative list ("shift-all").
func fnShiftAll(vm *VM, chunk *Chunk, enclosing []*Chunk, line, col int) error {
	return fnTakeAll(vm, chunk, enclosing, line, col)
}

// fnJoin: (shiftable separator -- string). Drains the shiftable,
// stringifying each element, and joins with separator.
func fnJoin(vm *VM, chunk *Chunk, enclosing []*Chunk, line, col int) error {
	sepV, err := vm.pop()
	if err != nil {
		return err
	}
	src, err := vm.pop()
	if err != nil {
		return err
	}
	sep := valueAsWord(sepV)
	var parts []string
	if l, ok := src.Obj.(*ListObj); ok {
		for _, it := range l.Items {
			parts = append(parts, valueAsWord(it))
		}
	} else {
		sv, err := asShiftable(src)
		if err != nil {
			return fmt.Errorf("join: %w", err)
		}
		for {
			elem, err := vm.shiftValue(sv)
			if err != nil {
				return err
			}
			if elem.IsNull() {
				break
			}
			parts = append(parts, valueAsWord(elem))
		}
	}
	vm.push(FromString(strings.Join(parts, sep)))
	return nil
}

// fnGnth: (shiftable n -- value). Shifts and discards n elements, then
// returns the (n+1)th.
func fnGnth(vm *VM, chunk *Chunk, enclosing []*Chunk, line, col int) error {
	nV, err := vm.pop()
	if err != nil {
		return err
	}
	src, err := vm.pop()
	if err != nil {
		return err
	}
	src, err = asShiftable(src)
	if err != nil {
		return fmt.Errorf("gnth: %w", err)
	}
	n := int(nV.AsInt())
	var last Value = Null
	for i := 0; i <= n; i++ {
		last, err = vm.shiftValue(src)
		if err != nil {
			return err
		}
		if last.IsNull() {
			break
		}
	}
	vm.push(last)
	return nil
}

// fnChomp strips a single trailing newline (and preceding \r) from a
// string, the way cosh's runtime library trims CommandGenerator lines.
func fnChomp(vm *VM) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	s, ok := v.Obj.(*StringObj)
	if !ok {
		return fmt.Errorf("chomp: not a string")
	}
	t := strings.TrimSuffix(s.Text, "\n")
	t = strings.TrimSuffix(t, "\r")
	vm.push(FromString(t))
	return nil
}

func fnPrintln(vm *VM) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	fmt.Fprintln(vm.Out, v.Inspect())
	return nil
}

// p/pn: print a value followed by a space ('p') or newline ('pn'),
// matching the source's short-form print aliases.
func fnP(vm *VM) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	fmt.Fprint(vm.Out, v.Inspect()+" ")
	return nil
}

func fnPn(vm *VM) error {
	return fnPrintln(vm)
}
