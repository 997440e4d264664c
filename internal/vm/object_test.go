package vm

import (
	"math/big"
	"testing"
)

func TestEqualCrossesIntBigIntVariants(t *testing.T) {
	if !Equal(Int(5), FromBigInt(big.NewInt(5))) {
		t.Errorf("Int(5) should equal BigInt(5)")
	}
	if Equal(Int(5), FromBigInt(big.NewInt(6))) {
		t.Errorf("Int(5) should not equal BigInt(6)")
	}
}

func TestFromBigIntDemotesWhenItFits(t *testing.T) {
	v := FromBigInt(big.NewInt(42))
	if v.Type != TInt {
		t.Fatalf("expected a BigInt that fits int32 to demote to TInt, got %v", v.Type)
	}
	if v.AsInt() != 42 {
		t.Errorf("got %d, want 42", v.AsInt())
	}
}

func TestFromBigIntStaysBigWhenItOverflows(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 40)
	v := FromBigInt(huge)
	if v.Type != TObj {
		t.Fatalf("expected overflow to stay boxed as BigInt, got %v", v.Type)
	}
	if _, ok := v.Obj.(*BigIntObj); !ok {
		t.Fatalf("expected *BigIntObj, got %T", v.Obj)
	}
}

func TestTruthyFalsySet(t *testing.T) {
	falsy := []Value{Null, Bool(false), Int(0), Float(0), FromString("")}
	for _, v := range falsy {
		if v.Truthy() {
			t.Errorf("%v should be falsy", v.Inspect())
		}
	}
	truthy := []Value{Bool(true), Int(1), Float(0.1), FromString("x"), FromObject(&ListObj{})}
	for _, v := range truthy {
		if !v.Truthy() {
			t.Errorf("%v should be truthy", v.Inspect())
		}
	}
}

func TestEmptyListIsTruthy(t *testing.T) {
	// spec.md §4.3's Truthy doc: "everything else, including empty
	// lists/hashes/sets, is truthy".
	if !FromObject(&ListObj{}).Truthy() {
		t.Errorf("an empty list must be truthy, only Null/false/0/\"\" are falsy")
	}
}

func TestSetPushFixesVariantOnFirstElement(t *testing.T) {
	s := NewSet()
	if !s.Push(Int(1).Inspect(), Int(1)) {
		t.Fatalf("first push should always succeed")
	}
	if s.Push(FromString("x").Inspect(), FromString("x")) {
		t.Errorf("pushing a different variant after the set's type is fixed should fail")
	}
	if !s.Push(Int(2).Inspect(), Int(2)) {
		t.Errorf("pushing the same variant should still succeed")
	}
	if len(s.Keys) != 2 {
		t.Errorf("want 2 keys after one rejected push, got %d", len(s.Keys))
	}
}

func TestSetRejectsIPValues(t *testing.T) {
	s := NewSet()
	ipVal := FromObject(&Ipv4Obj{})
	if s.Push(ipVal.Inspect(), ipVal) {
		t.Errorf("sets must reject IP values; they go through IpSet instead (spec.md §9)")
	}
}

func TestHashPreservesInsertionOrder(t *testing.T) {
	h := NewHash()
	h.Set("b", Int(2))
	h.Set("a", Int(1))
	h.Set("c", Int(3))
	want := []string{"b", "a", "c"}
	if len(h.Keys) != len(want) {
		t.Fatalf("got %d keys, want %d", len(h.Keys), len(want))
	}
	for i, k := range want {
		if h.Keys[i] != k {
			t.Errorf("key %d: got %s, want %s", i, h.Keys[i], k)
		}
	}
}

func TestHashDeleteRemovesFromKeysAndItems(t *testing.T) {
	h := NewHash()
	h.Set("a", Int(1))
	h.Set("b", Int(2))
	h.Delete("a")
	if _, ok := h.Get("a"); ok {
		t.Errorf("deleted key should not be retrievable")
	}
	if len(h.Keys) != 1 || h.Keys[0] != "b" {
		t.Errorf("expected only 'b' to remain, got %v", h.Keys)
	}
}

func TestListInspectFormat(t *testing.T) {
	l := NewList(Int(3), Int(4), Int(5))
	got := l.Inspect()
	want := "(\n    0: 3\n    1: 4\n    2: 5\n)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
