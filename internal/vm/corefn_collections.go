package vm

import "fmt"

// corefn_collections.go is cosh-go's counterpart to
// _examples/original_source/src/vm/vm_hash.rs / vm_list.rs: list/hash/set
// manipulation exposed as named core functions. `push` and `pop` are not
// registered here: the compiler turns those bare words into the
// dedicated PUSH/POP opcodes.
func init() {
	registerSimple(map[string]SimpleForm{
		"unshift": fnUnshift,
		"len":     fnLen,
		"get":     fnGet,
		"nth":     fnGet,
		"set":     fnSet,
		"nth!":    fnSet,
	})
	registerShift(map[string]ShiftForm{
		"keys":   fnKeys,
		"values": fnValues,
		"each":   fnEach,
	})
}

// unshift pushes a value onto the front of a list.
func fnUnshift(vm *VM) error {
	item, err := vm.pop()
	if err != nil {
		return err
	}
	lv, err := vm.pop()
	if err != nil {
		return err
	}
	l, ok := lv.Obj.(*ListObj)
	if !ok {
		return fmt.Errorf("unshift: not a list")
	}
	l.Items = append([]Value{item}, l.Items...)
	vm.push(lv)
	return nil
}

func fnLen(vm *VM) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	if v.Type == TObj {
		switch o := v.Obj.(type) {
		case *ListObj:
			vm.push(Int(int32(len(o.Items))))
			return nil
		case *HashObj:
			vm.push(Int(int32(len(o.Keys))))
			return nil
		case *SetObj:
			vm.push(Int(int32(len(o.Keys))))
			return nil
		case *StringObj:
			vm.push(Int(int32(len(o.Text))))
			return nil
		}
	}
	return fmt.Errorf("len: unsupported type %s", v.TypeName())
}

// get/nth: (container index|key -- value). Lists index by Int, Hashes by
// String key (spec.md §9's documented nth/get and nth!/set synonyms).
func fnGet(vm *VM) error {
	key, err := vm.pop()
	if err != nil {
		return err
	}
	cv, err := vm.pop()
	if err != nil {
		return err
	}
	switch o := cv.Obj.(type) {
	case *ListObj:
		idx := int(key.AsInt())
		if idx < 0 || idx >= len(o.Items) {
			vm.push(Null)
			return nil
		}
		vm.push(o.Items[idx])
		return nil
	case *HashObj:
		k := valueAsWord(key)
		if val, ok := o.Get(k); ok {
			vm.push(val)
		} else {
			vm.push(Null)
		}
		return nil
	}
	return fmt.Errorf("get: unsupported container type %s", cv.TypeName())
}

func fnSet(vm *VM) error {
	val, err := vm.pop()
	if err != nil {
		return err
	}
	key, err := vm.pop()
	if err != nil {
		return err
	}
	cv, err := vm.pop()
	if err != nil {
		return err
	}
	switch o := cv.Obj.(type) {
	case *ListObj:
		idx := int(key.AsInt())
		for len(o.Items) <= idx {
			o.Items = append(o.Items, Null)
		}
		o.Items[idx] = val
	case *HashObj:
		o.Set(valueAsWord(key), val)
	default:
		return fmt.Errorf("set: unsupported container type %s", cv.TypeName())
	}
	vm.push(cv)
	return nil
}

func fnKeys(vm *VM, chunk *Chunk, enclosing []*Chunk, line, col int) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	h, ok := v.Obj.(*HashObj)
	if !ok {
		return fmt.Errorf("keys: not a hash")
	}
	vm.push(FromObject(&HashViewObj{Hash: h, Mode: hashViewKeys}))
	return nil
}

func fnValues(vm *VM, chunk *Chunk, enclosing []*Chunk, line, col int) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	h, ok := v.Obj.(*HashObj)
	if !ok {
		return fmt.Errorf("values: not a hash")
	}
	vm.push(FromObject(&HashViewObj{Hash: h, Mode: hashViewValues}))
	return nil
}

func fnEach(vm *VM, chunk *Chunk, enclosing []*Chunk, line, col int) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	h, ok := v.Obj.(*HashObj)
	if !ok {
		return fmt.Errorf("each: not a hash")
	}
	vm.push(FromObject(&HashViewObj{Hash: h, Mode: hashViewEach}))
	return nil
}
