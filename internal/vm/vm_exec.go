package vm

import (
	"fmt"
	"math/big"
)

type execKind int

const (
	execReturned execKind = iota
	execYielded
	execHalted
)

// execResult is what one call to exec() produces: either the frame ran
// to its natural end (END_FN/RETURN/falling off the chunk), it hit a
// YIELD and is suspendable (pc points just past the YIELD), or the
// cooperative-cancellation flag was observed cleared.
type execResult struct {
	kind   execKind
	pc     int
	locals []Value
	err    error
}

// exec is the flat bytecode dispatch loop (spec.md §4.4). It is also the
// *resumption* mechanism for generators and frame-bound closures: calling
// exec again with a previously-returned yielded pc and locals continues
// exactly where execution left off, without OS threads or language-level
// coroutines (spec.md §9). Ordinary (non-generator) function calls
// recurse into exec synchronously and block until it returns, which
// plays the role the original design gives to its explicit
// prev_local_vars_stack push/pop around a call.
func (vm *VM) exec(chunk *Chunk, pc int, locals []Value, handle *frameHandle, enclosing []*Chunk) execResult {
	finish := func(r execResult) execResult {
		handle.locals = r.locals
		if r.kind != execYielded {
			handle.live = false
		}
		return r
	}
	for {
		if !vm.isRunning() {
			vm.clearStack()
			vm.Resume()
			return finish(execResult{kind: execHalted, locals: locals})
		}
		if pc >= len(chunk.Code) {
			return finish(execResult{kind: execReturned, locals: locals})
		}

		op := Opcode(chunk.Code[pc])
		line, col := 0, 0
		if pc < len(chunk.Lines) {
			line, col = chunk.Lines[pc], chunk.Columns[pc]
		}
		width := OperandWidth(op)
		operand := 0
		if width > 0 {
			operand = chunk.ReadOperand(pc)
		}
		next := pc + 1 + width

		fail := func(format string, args ...interface{}) execResult {
			return finish(execResult{kind: execReturned, locals: locals, err: &runtimeError{Chunk: chunk.Name, Line: line, Column: col, Message: fmt.Sprintf(format, args...)}})
		}

		switch op {
		case OpConst:
			vm.push(chunk.Constants[operand])

		case OpFunction:
			ref, ok := chunk.Constants[operand].Obj.(*ChunkRef)
			if !ok {
				return fail("FUNCTION operand is not a function template")
			}
			handle.locals = locals
			vm.push(FromObject(&AnonFunc{Chunk: ref.Chunk, Handle: handle}))

		case OpVar:
			v, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			name, ok := v.Obj.(*StringObj)
			if !ok {
				return fail("'var' target must be a name")
			}
			vm.setGlobal(name.Text, Int(0))

		case OpSetVar:
			name, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			val, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			n, ok := name.Obj.(*StringObj)
			if !ok {
				return fail("SET_VAR target must be a name")
			}
			vm.setGlobal(n.Text, val)

		case OpGetVar:
			name, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			n, ok := name.Obj.(*StringObj)
			if !ok {
				return fail("GET_VAR target must be a name")
			}
			v, ok := vm.lookupGlobal(n.Text)
			if !ok {
				return fail("variable not bound: %s", n.Text)
			}
			vm.push(v)

		case OpSetLocal:
			val, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			for len(locals) <= operand {
				locals = append(locals, Null)
			}
			locals[operand] = val

		case OpGetLocal:
			if operand >= len(locals) {
				vm.push(Null)
			} else {
				vm.push(locals[operand])
			}

		case OpPopLocal:
			if len(locals) > 0 {
				locals = locals[:len(locals)-1]
			}

		case OpAdd, OpSub, OpMul, OpDiv:
			b, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			a, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			res, err := arith(op, a, b)
			if err != nil {
				return fail("%s", err)
			}
			vm.push(res)

		case OpAddConst, OpSubConst, OpMulConst, OpDivConst:
			a, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			res, err := arith(constToPlain(op), a, chunk.Constants[operand])
			if err != nil {
				return fail("%s", err)
			}
			vm.push(res)

		case OpEq:
			b, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			a, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			vm.push(Bool(Equal(a, b)))

		case OpEqConst:
			a, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			vm.push(Bool(Equal(a, chunk.Constants[operand])))

		case OpGt, OpLt:
			b, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			a, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			cmp, err := compareNumeric(a, b)
			if err != nil {
				return fail("%s", err)
			}
			if op == OpGt {
				vm.push(Bool(cmp > 0))
			} else {
				vm.push(Bool(cmp < 0))
			}

		case OpDup:
			v, err := vm.peek()
			if err != nil {
				return fail("%s", err)
			}
			vm.push(v)

		case OpDupIsNull:
			v, err := vm.peek()
			if err != nil {
				return fail("%s", err)
			}
			vm.push(v)
			vm.push(Bool(v.IsNull()))

		case OpSwap:
			a, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			b, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			vm.push(a)
			vm.push(b)

		case OpDrop:
			if _, err := vm.pop(); err != nil {
				return fail("%s", err)
			}

		case OpRot:
			if err := vm.rotTop3(); err != nil {
				return fail("%s", err)
			}

		case OpOver:
			v, err := vm.peekAt(1)
			if err != nil {
				return fail("%s", err)
			}
			vm.push(v)

		case OpDepth:
			vm.push(Int(int32(vm.depth())))

		case OpClear:
			vm.clearStack()

		case OpPrint:
			v, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			fmt.Fprint(vm.Out, v.Inspect())

		case OpPrintStack:
			for _, v := range vm.stackSnapshotTopDown() {
				fmt.Fprintln(vm.Out, v.Inspect())
			}

		case OpJump:
			next = pc + operand

		case OpJumpNe:
			v, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			if !v.Truthy() {
				next = pc + operand
			}

		case OpJumpNeR:
			v, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			if !v.Truthy() {
				next = pc - operand
			}

		case OpJumpR:
			next = pc - operand

		case OpJumpNeREqC:
			k := operand >> 16
			off := operand & 0xffff
			v, err := vm.peek()
			if err != nil {
				return fail("%s", err)
			}
			if !Equal(v, chunk.Constants[k]) {
				next = pc - off
			}

		case OpStartList:
			vm.push(FromObject(&markerObj{opens: OList}))
		case OpStartHash:
			vm.push(FromObject(&markerObj{opens: OHash}))
		case OpStartSet:
			vm.push(FromObject(&markerObj{opens: OSet}))

		case OpEndList:
			res, err := vm.closeComposite()
			if err != nil {
				return fail("%s", err)
			}
			vm.push(res)

		case OpIsNull:
			v, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			vm.push(Bool(v.IsNull()))

		case OpIsList:
			v, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			k, ok := v.ObjKindOrZero()
			vm.push(Bool(ok && k == OList))

		case OpIsCallable:
			v, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			k, ok := v.ObjKindOrZero()
			// Open Question resolution (SPEC_FULL.md): stays over-permissive —
			// a String is reported callable without verifying the name
			// actually resolves to anything.
			vm.push(Bool((ok && (k == OAnonFunc || k == OFuncRef || k == OChunkRef)) || v.Type == TObj && k == OString))

		case OpIsShiftable:
			v, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			vm.push(Bool(isShiftable(v)))

		case OpPush:
			item, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			cv, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			switch c := cv.Obj.(type) {
			case *ListObj:
				c.Items = append(c.Items, item)
			case *SetObj:
				// Variant-mismatch (or IP-value) pushes are a silent no-op
				// leaving the set unchanged, per spec.md §3's invariant and
				// §8's testable property, not a hard failure.
				c.Push(item.Inspect(), item)
			default:
				return fail("push target is not a list or set")
			}
			vm.push(cv)

		case OpPop:
			lv, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			l, ok := lv.Obj.(*ListObj)
			if !ok {
				return fail("pop target is not a list")
			}
			if len(l.Items) == 0 {
				vm.push(Null)
				break
			}
			last := l.Items[len(l.Items)-1]
			l.Items = l.Items[:len(l.Items)-1]
			vm.push(last)

		case OpStr:
			v, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			vm.push(FromString(v.Inspect()))

		case OpInt:
			v, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			r, err := toInt(v)
			if err != nil {
				return fail("%s", err)
			}
			vm.push(r)

		case OpFlt:
			v, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			r, err := toFloat(v)
			if err != nil {
				return fail("%s", err)
			}
			vm.push(Float(r))

		case OpRand:
			vm.push(Float(pseudoRandom()))

		case OpError:
			v, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			return fail("%s", v.Inspect())

		case OpYield:
			v, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			vm.push(v)
			return finish(execResult{kind: execYielded, pc: next, locals: locals})

		case OpEndFn, OpReturn:
			return finish(execResult{kind: execReturned, locals: locals})

		case OpShift:
			v, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			r, err := vm.shiftValue(v)
			if err != nil {
				return fail("%s", err)
			}
			vm.push(r)

		case OpGlvShift:
			if operand >= len(locals) {
				return fail("local slot out of range")
			}
			r, err := vm.shiftValue(locals[operand])
			if err != nil {
				return fail("%s", err)
			}
			vm.push(r)

		case OpCall, OpCallImplicit:
			callee, err := vm.pop()
			if err != nil {
				return fail("%s", err)
			}
			implicit := op == OpCallImplicit
			handle.locals = locals
			if err := vm.callValue(callee, chunk, enclosing, implicit, line, col); err != nil {
				return fail("%s", err)
			}
			locals = handle.locals

		case OpGlvCall:
			if operand >= len(locals) {
				return fail("local slot out of range")
			}
			handle.locals = locals
			if err := vm.callValue(locals[operand], chunk, enclosing, false, line, col); err != nil {
				return fail("%s", err)
			}
			locals = handle.locals

		case OpCallConstant, OpCallImplicitConstant:
			nameV := chunk.Constants[operand]
			name, ok := nameV.Obj.(*StringObj)
			if !ok {
				return fail("bad call-constant operand")
			}
			implicit := op == OpCallImplicitConstant
			handle.locals = locals
			if err := vm.callNamed(name.Text, chunk, enclosing, implicit, line, col); err != nil {
				return fail("%s", err)
			}
			locals = handle.locals

		case OpOpen:
			if err := vm.opOpen(); err != nil {
				return fail("%s", err)
			}

		case OpReadline:
			if err := vm.opReadline(); err != nil {
				return fail("%s", err)
			}

		case OpPipe:
			if err := vm.opPipe(); err != nil {
				return fail("%s", err)
			}

		case OpImport:
			if err := vm.opImport(); err != nil {
				return fail("%s", err)
			}

		case OpToFunction, OpRead:
			// Sketched at the interface only (spec.md §1's explicit
			// out-of-core-scope domain collaborators); executing either
			// opcode fails with a runtime error.
			return fail("opcode %s not implemented in this build", op)

		case OpHalt:
			return finish(execResult{kind: execReturned, locals: locals})

		default:
			panic(fmt.Sprintf("unknown opcode %d at %s:%d:%d", op, chunk.Name, line, col))
		}

		pc = next
	}
}

func constToPlain(op Opcode) Opcode {
	switch op {
	case OpAddConst:
		return OpAdd
	case OpSubConst:
		return OpSub
	case OpMulConst:
		return OpMul
	case OpDivConst:
		return OpDiv
	}
	return op
}

// closeComposite pops values off the shared stack back to the nearest
// markerObj and builds the List/Hash/Set it denotes (spec.md §4.2's
// "closes the most recently opened list/hash/set per a type stack").
func (vm *VM) closeComposite() (Value, error) {
	var items []Value
	var kind ObjKind
	found := false
	for vm.depth() > 0 {
		v, _ := vm.pop()
		if m, ok := v.Obj.(*markerObj); ok {
			kind = m.opens
			found = true
			break
		}
		items = append(items, v)
	}
	if !found {
		return Null, fmt.Errorf("unmatched composite close")
	}
	// items were collected top-first; reverse to source order.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	switch kind {
	case OList:
		return FromObject(&ListObj{Items: items}), nil
	case OHash:
		h := NewHash()
		for i := 0; i+1 < len(items); i += 2 {
			h.Set(items[i].Inspect(), items[i+1])
		}
		return FromObject(h), nil
	case OSet:
		s := NewSet()
		for _, it := range items {
			if !s.Push(it.Inspect(), it) {
				return Null, fmt.Errorf("set element variant mismatch")
			}
		}
		return FromObject(s), nil
	}
	return Null, fmt.Errorf("unknown composite kind")
}

func toInt(v Value) (Value, error) {
	switch v.Type {
	case TInt:
		return v, nil
	case TFloat:
		return Int(int32(v.AsFloat())), nil
	case TObj:
		if s, ok := v.Obj.(*StringObj); ok {
			n, err := parseSmallInt(s.Text)
			if err != nil {
				if bi, ok := new(big.Int).SetString(s.Text, 10); ok {
					return FromBigInt(bi), nil
				}
				return Null, fmt.Errorf("cannot convert %q to int", s.Text)
			}
			return Int(n), nil
		}
		if bi, ok := v.Obj.(*BigIntObj); ok {
			return FromBigInt(bi.Value), nil
		}
	}
	return Null, fmt.Errorf("cannot convert to int")
}

func toFloat(v Value) (float64, error) {
	switch v.Type {
	case TFloat:
		return v.AsFloat(), nil
	case TInt:
		return float64(v.AsInt()), nil
	case TObj:
		if s, ok := v.Obj.(*StringObj); ok {
			return parseFloat(s.Text)
		}
	}
	return 0, fmt.Errorf("cannot convert to float")
}

// pseudoRandom is a process-local, non-cryptographic generator; cosh's
// `rand` has no documented seeding contract so a simple xorshift over a
// package-level state word is adequate here.
var randState uint64 = 0x9e3779b97f4a7c15

func pseudoRandom() float64 {
	randState ^= randState << 13
	randState ^= randState >> 7
	randState ^= randState << 17
	return float64(randState%1_000_000) / 1_000_000.0
}
