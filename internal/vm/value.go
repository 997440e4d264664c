package vm

import (
	"fmt"
	"math"
	"math/big"
)

// ValueType is the tag of a Value's immediate (non-Obj) payload.
type ValueType uint8

const (
	TNull ValueType = iota
	TBool
	TByte
	TInt
	TFloat
	TObj
)

// framePtr is not used by the VM: whether a closure's enclosing frame has
// gone away (spec.md §3/§9's "stack has gone away" error) is tracked by
// frameHandle instead (see AnonFunc).
type framePtr uint64

// Value is cosh's tagged-union stack cell, mirroring funxy's
// {Type; Data uint64; Obj interface} representation
// (_examples/funvibe-funxy/internal/vm/value.go), extended with the
// variants spec.md §3 requires. Null/Bool/Byte/Int/Float live directly in
// Data; everything else is boxed behind Obj.
type Value struct {
	Type ValueType
	Data uint64
	Obj  Object
}

var Null = Value{Type: TNull}

func Bool(b bool) Value {
	var d uint64
	if b {
		d = 1
	}
	return Value{Type: TBool, Data: d}
}

func Byte(b byte) Value { return Value{Type: TByte, Data: uint64(b)} }

func Int(n int32) Value { return Value{Type: TInt, Data: uint64(uint32(n))} }

func Float(f float64) Value { return Value{Type: TFloat, Data: math.Float64bits(f)} }

func FromBigInt(n *big.Int) Value {
	if n.IsInt64() {
		v := n.Int64()
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return Int(int32(v))
		}
	}
	return Value{Type: TObj, Obj: &BigIntObj{Value: n}}
}

func FromString(s string) Value { return Value{Type: TObj, Obj: NewString(s)} }

func FromObject(o Object) Value { return Value{Type: TObj, Obj: o} }

func (v Value) IsNull() bool { return v.Type == TNull }

func (v Value) AsBool() bool { return v.Type == TBool && v.Data != 0 }

func (v Value) AsByte() byte { return byte(v.Data) }

func (v Value) AsInt() int32 { return int32(uint32(v.Data)) }

func (v Value) AsFloat() float64 { return math.Float64frombits(v.Data) }

// ObjKindOrZero reports the Object kind for a TObj value and true; for
// everything else it returns 0 and false (0 is also OString, so check
// the bool).
func (v Value) ObjKindOrZero() (ObjKind, bool) {
	if v.Type != TObj || v.Obj == nil {
		return 0, false
	}
	return v.Obj.ObjKind(), true
}

// TypeName returns cosh's user-facing type name for v, as used in error
// messages.
func (v Value) TypeName() string {
	switch v.Type {
	case TNull:
		return "null"
	case TBool:
		return "bool"
	case TByte:
		return "byte"
	case TInt:
		return "int"
	case TFloat:
		return "float"
	case TObj:
		switch v.Obj.ObjKind() {
		case OString:
			return "string"
		case OBigInt:
			return "bigint"
		case OCommand:
			return "command"
		case OList:
			return "list"
		case OHash:
			return "hash"
		case OSet:
			return "set"
		case OAnonFunc, OFuncRef, OChunkRef:
			return "function"
		case OGenerator, OCommandGenerator, OHashView, OMultiGenerator, OChannelGenerator, OIpSet:
			return "generator"
		case OFileReader:
			return "file-reader"
		case OFileWriter:
			return "file-writer"
		case OTcpReader:
			return "tcp-reader"
		case OTcpWriter:
			return "tcp-writer"
		case ODirHandle:
			return "directory"
		case ODateTime:
			return "datetime"
		case OIpv4:
			return "ipv4"
		case OIpv6:
			return "ipv6"
		case OIpv4Range:
			return "ipv4-range"
		case OIpv6Range:
			return "ipv6-range"
		case ODBConn:
			return "db"
		case ODBStmt:
			return "db-stmt"
		}
	}
	return "unknown"
}

// Truthy implements JUMP_NE's falsy set (spec.md §4.3): Null, Bool(false),
// Int(0), Float(0.0) and the empty string are falsy; everything else,
// including empty lists/hashes/sets, is truthy.
func (v Value) Truthy() bool {
	switch v.Type {
	case TNull:
		return false
	case TBool:
		return v.AsBool()
	case TInt:
		return v.AsInt() != 0
	case TFloat:
		return v.AsFloat() != 0
	case TObj:
		if s, ok := v.Obj.(*StringObj); ok {
			return s.Text != ""
		}
		return true
	}
	return true
}

// Equal implements cosh's value equality: same variant, same content.
// BigInt and Int compare equal across variants when numerically equal,
// mirroring arithmetic's automatic promotion (spec.md §3).
func Equal(a, b Value) bool {
	an, aIsNum := numericBigForm(a)
	bn, bIsNum := numericBigForm(b)
	if aIsNum && bIsNum {
		return an.Cmp(bn) == 0
	}
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case TNull:
		return true
	case TBool:
		return a.AsBool() == b.AsBool()
	case TByte:
		return a.AsByte() == b.AsByte()
	case TFloat:
		return a.AsFloat() == b.AsFloat()
	case TObj:
		ak, aok := a.ObjKindOrZero()
		bk, bok := b.ObjKindOrZero()
		if !aok || !bok || ak != bk {
			return false
		}
		switch ak {
		case OString:
			return a.Obj.(*StringObj).Text == b.Obj.(*StringObj).Text
		case OList:
			al, bl := a.Obj.(*ListObj), b.Obj.(*ListObj)
			if len(al.Items) != len(bl.Items) {
				return false
			}
			for i := range al.Items {
				if !Equal(al.Items[i], bl.Items[i]) {
					return false
				}
			}
			return true
		case OHash:
			ah, bh := a.Obj.(*HashObj), b.Obj.(*HashObj)
			if len(ah.Keys) != len(bh.Keys) {
				return false
			}
			for k, v := range ah.Items {
				bv, ok := bh.Items[k]
				if !ok || !Equal(v, bv) {
					return false
				}
			}
			return true
		}
		return a.Obj == b.Obj
	}
	return false
}

func numericBigForm(v Value) (*big.Int, bool) {
	switch v.Type {
	case TInt:
		return big.NewInt(int64(v.AsInt())), true
	case TObj:
		if bi, ok := v.Obj.(*BigIntObj); ok {
			return bi.Value, true
		}
	}
	return nil, false
}

// Inspect renders v the way the REPL echoes results and `p`/`pn` print
// them (spec.md §3/§8 examples).
func (v Value) Inspect() string {
	switch v.Type {
	case TNull:
		return "nil"
	case TBool:
		if v.AsBool() {
			return "#t"
		}
		return "#f"
	case TByte:
		return fmt.Sprintf("%d", v.AsByte())
	case TInt:
		return fmt.Sprintf("%d", v.AsInt())
	case TFloat:
		return fmt.Sprintf("%g", v.AsFloat())
	case TObj:
		if v.Obj == nil {
			return "nil"
		}
		return v.Obj.Inspect()
	}
	return "?"
}
