package vm

import (
	"fmt"
	"math"
	"math/big"
)

// arith implements ADD/SUB/MUL/DIV (and their *_CONST fused forms) across
// Int/BigInt/Float/String, including the Int -> BigInt overflow promotion
// spec.md §3/§8 requires.
func arith(op Opcode, a, b Value) (Value, error) {
	if a.Type == TObj && b.Type == TObj {
		if as, ok := a.Obj.(*StringObj); ok {
			if bs, ok := b.Obj.(*StringObj); ok && op == OpAdd {
				return FromString(as.Text + bs.Text), nil
			}
		}
	}
	aBig, aIsBig := a.Obj.(*BigIntObj)
	bBig, bIsBig := b.Obj.(*BigIntObj)
	if aIsBig || bIsBig || (a.Type == TInt && b.Type == TInt) {
		if a.Type == TFloat || b.Type == TFloat {
			return arithFloat(op, a, b)
		}
		var x, y *big.Int
		if aIsBig {
			x = aBig.Value
		} else if a.Type == TInt {
			x = big.NewInt(int64(a.AsInt()))
		} else {
			return Null, fmt.Errorf("non-numeric operand")
		}
		if bIsBig {
			y = bBig.Value
		} else if b.Type == TInt {
			y = big.NewInt(int64(b.AsInt()))
		} else {
			return Null, fmt.Errorf("non-numeric operand")
		}
		res := new(big.Int)
		switch op {
		case OpAdd:
			res.Add(x, y)
		case OpSub:
			res.Sub(x, y)
		case OpMul:
			res.Mul(x, y)
		case OpDiv:
			if y.Sign() == 0 {
				return Null, fmt.Errorf("division by zero")
			}
			res.Quo(x, y)
		}
		return FromBigInt(res), nil
	}
	if a.Type == TFloat || b.Type == TFloat {
		return arithFloat(op, a, b)
	}
	return Null, fmt.Errorf("'%s'/'%s' are not numeric", a.TypeName(), b.TypeName())
}

func arithFloat(op Opcode, a, b Value) (Value, error) {
	af, err := toFloat(a)
	if err != nil {
		return Null, err
	}
	bf, err := toFloat(b)
	if err != nil {
		return Null, err
	}
	switch op {
	case OpAdd:
		return Float(af + bf), nil
	case OpSub:
		return Float(af - bf), nil
	case OpMul:
		return Float(af * bf), nil
	case OpDiv:
		if bf == 0 {
			return Null, fmt.Errorf("division by zero")
		}
		return Float(af / bf), nil
	}
	return Null, fmt.Errorf("bad arithmetic opcode")
}

// compareNumeric returns -1/0/1 for a<b, a==b, a>b across Int/BigInt/Float.
func compareNumeric(a, b Value) (int, error) {
	aBig, aIsBig := a.Obj.(*BigIntObj)
	bBig, bIsBig := b.Obj.(*BigIntObj)
	if (aIsBig || a.Type == TInt) && (bIsBig || b.Type == TInt) {
		var x, y *big.Int
		if aIsBig {
			x = aBig.Value
		} else {
			x = big.NewInt(int64(a.AsInt()))
		}
		if bIsBig {
			y = bBig.Value
		} else {
			y = big.NewInt(int64(b.AsInt()))
		}
		return x.Cmp(y), nil
	}
	af, err := toFloat(a)
	if err != nil {
		return 0, err
	}
	bf, err := toFloat(b)
	if err != nil {
		return 0, err
	}
	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	case math.IsNaN(af) || math.IsNaN(bf):
		return 0, fmt.Errorf("NaN comparison")
	default:
		return 0, nil
	}
}
