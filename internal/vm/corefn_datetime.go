package vm

import (
	"fmt"
	"time"
)

// corefn_datetime.go ports _examples/original_source/src/vm/vm_datetime.rs
// onto stdlib time (no third-party date-time library is present in the
// retrieved pack; justified stdlib exception per SPEC_FULL.md).
func init() {
	registerSimple(map[string]SimpleForm{
		"now":      fnNow,
		"strftime": fnStrftime,
		"strptime": fnStrptime,
	})
}

func fnNow(vm *VM) error {
	vm.push(FromObject(&DateTimeObj{T: time.Now(), HasTZ: true}))
	return nil
}

// strftime: (datetime layout -- string). layout is a Go reference-time
// layout string rather than C strftime directives, matching how the
// rest of cosh-go's ambient stack stays on stdlib idiom.
func fnStrftime(vm *VM) error {
	layout, err := vm.pop()
	if err != nil {
		return err
	}
	dtV, err := vm.pop()
	if err != nil {
		return err
	}
	dt, ok := dtV.Obj.(*DateTimeObj)
	if !ok {
		return fmt.Errorf("strftime: not a datetime")
	}
	vm.push(FromString(dt.T.Format(valueAsWord(layout))))
	return nil
}

func fnStrptime(vm *VM) error {
	layout, err := vm.pop()
	if err != nil {
		return err
	}
	s, err := vm.pop()
	if err != nil {
		return err
	}
	t, err := time.Parse(valueAsWord(layout), valueAsWord(s))
	if err != nil {
		return fmt.Errorf("strptime: %w", err)
	}
	vm.push(FromObject(&DateTimeObj{T: t, HasTZ: true}))
	return nil
}
