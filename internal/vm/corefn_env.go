package vm

import "os"

// corefn_env.go ports _examples/original_source/src/vm/vm_env.rs.
func init() {
	registerSimple(map[string]SimpleForm{
		"getenv": fnGetenv,
		"setenv": fnSetenv,
		"exit":   fnExit,
	})
}

func fnGetenv(vm *VM) error {
	name, err := vm.pop()
	if err != nil {
		return err
	}
	v, ok := os.LookupEnv(valueAsWord(name))
	if !ok {
		vm.push(Null)
		return nil
	}
	vm.push(FromString(v))
	return nil
}

func fnSetenv(vm *VM) error {
	val, err := vm.pop()
	if err != nil {
		return err
	}
	name, err := vm.pop()
	if err != nil {
		return err
	}
	return os.Setenv(valueAsWord(name), valueAsWord(val))
}

func fnExit(vm *VM) error {
	code, err := vm.pop()
	if err != nil {
		return err
	}
	vm.Out.Flush()
	os.Exit(int(code.AsInt()))
	return nil
}
