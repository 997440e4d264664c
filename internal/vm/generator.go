package vm

import (
	"fmt"
	"time"
)

// isShiftable reports whether v responds to SHIFT (spec.md §4.4's
// "is-shiftable returns true for any of the above plus List and Set").
func isShiftable(v Value) bool {
	if v.Type != TObj || v.Obj == nil {
		return false
	}
	switch v.Obj.(type) {
	case *Generator, *CommandGeneratorObj, *HashViewObj, *MultiGeneratorObj, *ChannelGeneratorObj, *IpSetObj, *ListObj, *SetObj:
		return true
	}
	return false
}

// shiftValue implements SHIFT's per-variant dispatch (spec.md §4.4).
func (vm *VM) shiftValue(v Value) (Value, error) {
	if v.Type != TObj || v.Obj == nil {
		return Null, fmt.Errorf("value of type %s is not shiftable", v.TypeName())
	}
	switch o := v.Obj.(type) {
	case *Generator:
		return vm.resumeGenerator(o)

	case *ListObj:
		if len(o.Items) == 0 {
			return Null, nil
		}
		first := o.Items[0]
		o.Items = o.Items[1:]
		return first, nil

	case *SetObj:
		if len(o.Keys) == 0 {
			return Null, nil
		}
		k := o.Keys[0]
		val := o.Items[k]
		o.Keys = o.Keys[1:]
		delete(o.Items, k)
		return val, nil

	case *HashViewObj:
		if o.Index >= len(o.Hash.Keys) {
			return Null, nil
		}
		k := o.Hash.Keys[o.Index]
		o.Index++
		switch o.Mode {
		case hashViewKeys:
			return FromString(k), nil
		case hashViewValues:
			return o.Hash.Items[k], nil
		default:
			return FromObject(NewList(FromString(k), o.Hash.Items[k])), nil
		}

	case *MultiGeneratorObj:
		for len(o.Gens) > 0 {
			head := o.Gens[0]
			r, err := vm.shiftValue(head)
			if err != nil {
				return Null, err
			}
			if r.IsNull() {
				o.Gens = o.Gens[1:]
				continue
			}
			return r, nil
		}
		return Null, nil

	case *ChannelGeneratorObj:
		r, ok := <-o.Ch
		if !ok {
			return Null, nil
		}
		return r, nil

	case *CommandGeneratorObj:
		return vm.shiftCommandGenerator(o)

	case *IpSetObj:
		p, ok := o.ShiftFirst()
		if !ok {
			return Null, nil
		}
		if p.Addr().Is4() {
			return FromObject(&Ipv4RangeObj{Prefix: p}), nil
		}
		return FromObject(&Ipv6RangeObj{Prefix: p}), nil
	}
	return Null, fmt.Errorf("value of type %s is not shiftable", v.TypeName())
}

// resumeGenerator re-enters a paused user generator (spec.md §4.4): the
// pending arguments are pushed exactly once (on the first resume), the
// generator's own globals stack is temporarily swapped in, and exec()
// resumes at the stored Pc against the stored Locals.
func (vm *VM) resumeGenerator(g *Generator) (Value, error) {
	if g.Done {
		return Null, nil
	}
	if !g.argsSent {
		if len(g.PendingArgs) > 0 {
			vm.push(Int(int32(len(g.PendingArgs))))
			for _, a := range g.PendingArgs {
				vm.push(a)
			}
		}
		g.argsSent = true
	}

	savedGlobals := vm.Globals
	vm.Globals = g.Globals
	handle := &frameHandle{live: true, locals: g.Locals}
	res := vm.exec(g.Chunk, g.Pc, g.Locals, handle, g.Enclosing)
	g.Globals = vm.Globals
	vm.Globals = savedGlobals

	if res.err != nil {
		g.Done = true
		return Null, res.err
	}
	switch res.kind {
	case execYielded:
		g.Pc = res.pc
		g.Locals = res.locals
		return vm.pop()
	default:
		g.Done = true
		return Null, nil
	}
}

// shiftCommandGenerator reads one line (or, under GetBytes, the same
// line as a byte list) from the child's stdout, polling the cooperative
// running flag every ~50ms while the read is in flight (spec.md §4.4/§5).
// The blocking read itself runs on a helper goroutine whose result is
// handed back over a channel — the sanctioned "helper thread owns the
// blocking call, main loop polls" shape from spec.md §5, distinct from
// (and not a violation of) §9's ban on implementing generators
// themselves via goroutines/coroutines.
func (vm *VM) shiftCommandGenerator(g *CommandGeneratorObj) (Value, error) {
	if g.closed {
		return Null, nil
	}
	type lineResult struct {
		s   string
		err error
	}
	ch := make(chan lineResult, 1)
	go func() {
		s, err := g.R.ReadString('\n')
		ch <- lineResult{s: s, err: err}
	}()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case res := <-ch:
			if res.s == "" && res.err != nil {
				g.closed = true
				if g.Cmd != nil {
					g.Cmd.Wait()
				}
				return Null, nil
			}
			if g.GetBytes {
				items := make([]Value, len(res.s))
				for i := 0; i < len(res.s); i++ {
					items[i] = Byte(res.s[i])
				}
				return FromObject(NewList(items...)), nil
			}
			return FromString(res.s), nil
		case <-ticker.C:
			if !vm.isRunning() {
				g.closed = true
				return Null, nil
			}
		}
	}
}
