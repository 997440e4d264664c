package vm

import (
	"fmt"
	"sort"
)

// corefn_sort.go ports _examples/original_source/src/vm/vm_sort.rs's
// sort/sort-cmp/rsort/nsort core functions onto Go's sort package.
func init() {
	registerSimple(map[string]SimpleForm{
		"sort":  fnSort,
		"rsort": fnRsort,
		"nsort": fnNsort,
	})
	registerShift(map[string]ShiftForm{
		"sort-cmp": fnSortCmp,
	})
}

func listOperand(vm *VM, who string) (*ListObj, error) {
	v, err := vm.pop()
	if err != nil {
		return nil, err
	}
	l, ok := v.Obj.(*ListObj)
	if !ok {
		return nil, fmt.Errorf("%s: not a list", who)
	}
	return l, nil
}

func fnSort(vm *VM) error {
	l, err := listOperand(vm, "sort")
	if err != nil {
		return err
	}
	items := append([]Value{}, l.Items...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Inspect() < items[j].Inspect() })
	vm.push(FromObject(&ListObj{Items: items}))
	return nil
}

func fnRsort(vm *VM) error {
	l, err := listOperand(vm, "rsort")
	if err != nil {
		return err
	}
	items := append([]Value{}, l.Items...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Inspect() > items[j].Inspect() })
	vm.push(FromObject(&ListObj{Items: items}))
	return nil
}

func fnNsort(vm *VM) error {
	l, err := listOperand(vm, "nsort")
	if err != nil {
		return err
	}
	items := append([]Value{}, l.Items...)
	sort.SliceStable(items, func(i, j int) bool {
		a, _ := toFloat(items[i])
		b, _ := toFloat(items[j])
		return a < b
	})
	vm.push(FromObject(&ListObj{Items: items}))
	return nil
}

// sort-cmp: (list callable -- sorted-list). The callable is invoked once
// per comparison with the two candidates pushed (a b), and must leave a
// truthy/falsy result on the stack for "a sorts before b" (spec.md §4.5
// "user-comparator form feeding a callable back into the VM via CALL").
func fnSortCmp(vm *VM, chunk *Chunk, enclosing []*Chunk, line, col int) error {
	callee, err := vm.pop()
	if err != nil {
		return err
	}
	l, err := listOperand(vm, "sort-cmp")
	if err != nil {
		return err
	}
	items := append([]Value{}, l.Items...)
	var cmpErr error
	sort.SliceStable(items, func(i, j int) bool {
		if cmpErr != nil {
			return false
		}
		vm.push(items[i])
		vm.push(items[j])
		if err := vm.callValue(callee, chunk, enclosing, false, line, col); err != nil {
			cmpErr = err
			return false
		}
		res, err := vm.pop()
		if err != nil {
			cmpErr = err
			return false
		}
		return res.Truthy()
	})
	if cmpErr != nil {
		return cmpErr
	}
	vm.push(FromObject(&ListObj{Items: items}))
	return nil
}
