package vm

import (
	"fmt"

	"github.com/cosh-lang/cosh/internal/lexer"
	"github.com/cosh-lang/cosh/internal/token"
)

// CompileError is a compile-time failure with source position, mirroring
// spec.md §7's "Compile errors ... Reported with position; compilation
// aborts."
type CompileError struct {
	Line, Column int
	Msg          string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Msg)
}

type localVar struct {
	name  string
	slot  int
	depth int
}

// patchSite is a forward- or backward-jump instruction offset awaiting
// its target to be known.
type patchSite struct {
	offset int
	line   int
	col    int
}

// loopFrame tracks one begin/until (or leave) nesting level.
type loopFrame struct {
	startOffset int
	leaves      []patchSite
}

// Compiler translates a token stream into a Chunk, single-pass, with a
// small window of recently emitted opcodes inspected for peephole fusion
// (spec.md §4.2, §9 "Peephole fusion in a single-pass compiler"). Shape
// grounded on funxy's single-pass `internal/vm` compiler driver structure
// (parent-chaining for nested scopes), rewritten against cosh's token
// grammar; the fusion/backpatch bookkeeping itself is grounded on
// _examples/original_source/src/compiler.rs's patch-stack fields.
type Compiler struct {
	lex   *lexer.Lexer
	chunk *Chunk

	locals     []localVar
	scopeDepth int
	nextSlot   int

	ifPatches []patchSite // outstanding if/else forward-jump sites, most recent last
	loops     []*loopFrame

	parent *Compiler
	anonN  *int // shared counter for auto-generated anonymous-function names

	peeked  *token.Token
	lastTok token.Token
}

// simpleWords maps a bare word directly to a dedicated opcode with no
// operand, per spec.md §4.2's "Word return/yield/shift/...". Arithmetic
// (+/-/*//, =) and var/!/@ and control words are handled separately
// because they need fusion or operand lookup.
var simpleWords = map[string]Opcode{
	"return":       OpReturn,
	"yield":        OpYield,
	"drop":         OpDrop,
	"dup":          OpDup,
	"swap":         OpSwap,
	"rot":          OpRot,
	"over":         OpOver,
	"depth":        OpDepth,
	"clear":        OpClear,
	"print":        OpPrint,
	".s":           OpPrintStack,
	"is-null":      OpIsNull,
	"is-list":      OpIsList,
	"is-callable":  OpIsCallable,
	"is-shiftable": OpIsShiftable,
	"str":          OpStr,
	"int":          OpInt,
	"flt":          OpFlt,
	"rand":         OpRand,
	"error":        OpError,
	"open":         OpOpen,
	"readline":     OpReadline,
	"push":         OpPush,
	"pop":          OpPop,
	"import":       OpImport,
	">":            OpGt,
	"<":            OpLt,
	"|":            OpPipe,
}

// Compile compiles the top-level program in src into a Chunk named name.
func Compile(name string, src []byte) (*Chunk, error) {
	zero := 0
	c := &Compiler{
		lex:   lexer.New(src),
		chunk: NewChunk(name),
		anonN: &zero,
	}
	if err := c.compileBody(nil); err != nil {
		return nil, err
	}
	return c.chunk, nil
}

func (c *Compiler) next() token.Token {
	if c.peeked != nil {
		t := *c.peeked
		c.peeked = nil
		c.lastTok = t
		return t
	}
	t := c.lex.Scan()
	c.lastTok = t
	return t
}

func (c *Compiler) peek() token.Token {
	if c.peeked == nil {
		t := c.lex.Scan()
		c.peeked = &t
	}
	return *c.peeked
}

func (c *Compiler) fail(line, col int, format string, args ...interface{}) error {
	return &CompileError{Line: line, Column: col, Msg: fmt.Sprintf(format, args...)}
}

// compileBody compiles tokens until Eof (top level) or, when stopAt is
// non-nil, until that token kind is consumed (anonymous-function bodies
// stop at RightBracket, named-function bodies at EndFunction).
func (c *Compiler) compileBody(stopAt *token.Kind) error {
	for {
		t := c.next()
		if stopAt != nil && t.Kind == *stopAt {
			return nil
		}
		switch t.Kind {
		case token.Eof:
			if stopAt != nil {
				return c.fail(t.Line, t.Column, "unexpected end of input")
			}
			return nil
		case token.Error:
			return c.fail(t.Line, t.Column, "lex error")
		case token.Int:
			n, err := parseSmallInt(t.Text)
			if err != nil {
				return c.fail(t.Line, t.Column, "bad integer literal %q", t.Text)
			}
			c.emitConst(Int(n), t.Line, t.Column)
		case token.BigInt:
			bi, ok := lexer.ParseBigInt(t.Text)
			if !ok {
				return c.fail(t.Line, t.Column, "bad bigint literal %q", t.Text)
			}
			c.emitConst(FromBigInt(bi), t.Line, t.Column)
		case token.Float:
			f, err := parseFloat(t.Text)
			if err != nil {
				return c.fail(t.Line, t.Column, "bad float literal %q", t.Text)
			}
			c.emitConst(Float(f), t.Line, t.Column)
		case token.String:
			c.emitConst(FromString(t.Text), t.Line, t.Column)
		case token.CommandCaptured:
			c.emitConst(FromObject(&CommandObj{Template: t.Text}), t.Line, t.Column)
		case token.CommandCapturedExplicit:
			// A captured command immediately followed by ';' or newline is
			// spawned right away rather than left as an unspawned template
			// (spec.md §4.1's CommandExplicit token; spec.md §8 scenario 6's
			// `{ls};`). A bare `{cmd}` with no trailing terminator stays a
			// template, e.g. for use as the right-hand side of `|`.
			c.emitConst(FromObject(&CommandObj{Template: t.Text}), t.Line, t.Column)
			c.chunk.Emit(OpCall, 0, t.Line, t.Column)
		case token.CommandUncaptured:
			c.emitConst(FromObject(&CommandObj{Template: t.Text, Uncaptured: true}), t.Line, t.Column)
			c.chunk.Emit(OpCall, 0, t.Line, t.Column)
		case token.StartList:
			c.chunk.Emit(OpStartList, 0, t.Line, t.Column)
		case token.StartHash:
			c.chunk.Emit(OpStartHash, 0, t.Line, t.Column)
		case token.StartSet:
			c.chunk.Emit(OpStartSet, 0, t.Line, t.Column)
		case token.EndList:
			c.chunk.Emit(OpEndList, 0, t.Line, t.Column)
		case token.LeftBracket:
			if err := c.compileAnonFunction(t); err != nil {
				return err
			}
		case token.RightBracket:
			return c.fail(t.Line, t.Column, "unmatched ']'")
		case token.StartFunction, token.StartGenerator:
			if err := c.compileNamedFunction(t); err != nil {
				return err
			}
		case token.EndFunction:
			return c.fail(t.Line, t.Column, "unmatched '::'")
		case token.Word, token.WordImplicit:
			implicit := t.Kind == token.WordImplicit
			if err := c.compileWord(t, implicit); err != nil {
				return err
			}
		default:
			return c.fail(t.Line, t.Column, "unexpected token %s", t.Kind)
		}
	}
}

func (c *Compiler) emitConst(v Value, line, col int) int {
	idx := c.chunk.AddConstant(v)
	return c.chunk.Emit(OpConst, idx, line, col)
}

// compileWord handles every bare word that isn't a literal or a
// composite/function delimiter: arithmetic fusion, var/!/@ fusion,
// if/else/then, begin/until/leave, simple-form opcodes, and otherwise a
// named call (spec.md §4.2's table).
func (c *Compiler) compileWord(t token.Token, implicit bool) error {
	switch t.Text {
	case "+", "-", "*", "/":
		return c.compileArith(t)
	case "=":
		return c.compileEqFusion(t)
	case "var":
		return c.compileVar(t)
	case "!":
		return c.compileAssign(t, true)
	case "@":
		return c.compileAssign(t, false)
	case "if":
		site := c.chunk.Emit(OpJumpNe, 0, t.Line, t.Column)
		c.ifPatches = append(c.ifPatches, patchSite{offset: site, line: t.Line, col: t.Column})
		return nil
	case "else":
		if len(c.ifPatches) == 0 {
			return c.fail(t.Line, t.Column, "'else' without matching 'if'")
		}
		jmp := c.chunk.Emit(OpJump, 0, t.Line, t.Column)
		openIf := c.ifPatches[len(c.ifPatches)-1]
		c.chunk.PatchOperand(openIf.offset, c.chunk.Here()-openIf.offset)
		c.ifPatches[len(c.ifPatches)-1] = patchSite{offset: jmp, line: t.Line, col: t.Column}
		return nil
	case "then":
		if len(c.ifPatches) == 0 {
			return c.fail(t.Line, t.Column, "'then' without matching 'if'")
		}
		open := c.ifPatches[len(c.ifPatches)-1]
		c.ifPatches = c.ifPatches[:len(c.ifPatches)-1]
		c.chunk.PatchOperand(open.offset, c.chunk.Here()-open.offset)
		return nil
	case "begin":
		c.loops = append(c.loops, &loopFrame{startOffset: c.chunk.Here()})
		return nil
	case "leave":
		if len(c.loops) == 0 {
			return c.fail(t.Line, t.Column, "'leave' outside 'begin'/'until'")
		}
		site := c.chunk.Emit(OpJump, 0, t.Line, t.Column)
		top := c.loops[len(c.loops)-1]
		top.leaves = append(top.leaves, patchSite{offset: site, line: t.Line, col: t.Column})
		return nil
	case "until":
		return c.compileUntil(t)
	case "funcall":
		return c.compileFusableCall(t, OpCall, OpGlvCall)
	case "shift":
		return c.compileFusableCall(t, OpShift, OpGlvShift)
	default:
		if op, ok := simpleWords[t.Text]; ok {
			c.chunk.Emit(op, 0, t.Line, t.Column)
			return nil
		}
		idx := c.chunk.AddConstant(FromString(t.Text))
		// A name immediately followed by 'var'/'!'/'@' is that word's
		// operand, not a call: compileVar/compileAssign expect the
		// preceding instruction to be a bare CONST(name) they can pop and
		// re-read (spec.md §4.2's `x var; 10 x !; x @;` shape), so defer
		// to it here instead of emitting a call for the name itself.
		if nt := c.peek(); nt.Kind == token.Word || nt.Kind == token.WordImplicit {
			switch nt.Text {
			case "var", "!", "@":
				c.chunk.Emit(OpConst, idx, t.Line, t.Column)
				return nil
			}
		}
		if implicit {
			c.chunk.Emit(OpCallImplicitConstant, idx, t.Line, t.Column)
		} else {
			c.chunk.Emit(OpCallConstant, idx, t.Line, t.Column)
		}
		return nil
	}
}

// compileFusableCall handles `funcall`/`shift`: if the previous
// instruction was GET_LOCAL, fuse into GLV_CALL/GLV_SHIFT (spec.md §4.2).
func (c *Compiler) compileFusableCall(t token.Token, plain, fused Opcode) error {
	if op, ok := c.chunk.LastOpcode(); ok && op == OpGetLocal {
		offs := c.chunk.lastInstrOffsets(1)
		slot := c.chunk.ReadOperand(offs[0])
		c.chunk.TruncateLast(1)
		c.chunk.Emit(fused, slot, t.Line, t.Column)
		return nil
	}
	c.chunk.Emit(plain, 0, t.Line, t.Column)
	return nil
}

// compileArith fuses `CONST k` followed by +/-/*// into *_CONST k
// (spec.md §4.2).
func (c *Compiler) compileArith(t token.Token) error {
	constOp := map[string]Opcode{"+": OpAddConst, "-": OpSubConst, "*": OpMulConst, "/": OpDivConst}[t.Text]
	plainOp := map[string]Opcode{"+": OpAdd, "-": OpSub, "*": OpMul, "/": OpDiv}[t.Text]
	if op, ok := c.chunk.LastOpcode(); ok && op == OpConst {
		offs := c.chunk.lastInstrOffsets(1)
		idx := c.chunk.ReadOperand(offs[0])
		c.chunk.TruncateLast(1)
		c.chunk.Emit(constOp, idx, t.Line, t.Column)
		return nil
	}
	c.chunk.Emit(plainOp, 0, t.Line, t.Column)
	return nil
}

func (c *Compiler) compileEqFusion(t token.Token) error {
	if op, ok := c.chunk.LastOpcode(); ok && op == OpConst {
		offs := c.chunk.lastInstrOffsets(1)
		idx := c.chunk.ReadOperand(offs[0])
		c.chunk.TruncateLast(1)
		c.chunk.Emit(OpEqConst, idx, t.Line, t.Column)
		return nil
	}
	c.chunk.Emit(OpEq, 0, t.Line, t.Column)
	return nil
}

// compileVar handles `name var`: at global scope emits VAR; inside a
// function, pops the previously emitted `CONST name`, registers a local
// slot, and initializes it to Int(0) (spec.md §4.2).
func (c *Compiler) compileVar(t token.Token) error {
	op, ok := c.chunk.LastOpcode()
	if !ok || op != OpConst {
		return c.fail(t.Line, t.Column, "'var' must follow a name")
	}
	offs := c.chunk.lastInstrOffsets(1)
	idx := c.chunk.ReadOperand(offs[0])
	name, ok := c.chunk.Constants[idx].Obj.(*StringObj)
	if !ok {
		return c.fail(t.Line, t.Column, "'var' must follow a literal name")
	}

	if c.scopeDepth == 0 {
		// VAR pops the name at runtime (vm_exec.go), so the preceding
		// CONST(name) instruction must stay in place, unlike the local
		// case below where the slot is resolved purely at compile time.
		c.chunk.Emit(OpVar, 0, t.Line, t.Column)
		c.chunk.HasVars = true
		return nil
	}
	c.chunk.TruncateLast(1)
	slot := c.nextSlot
	c.nextSlot++
	c.locals = append(c.locals, localVar{name: name.Text, slot: slot, depth: c.scopeDepth})
	zeroIdx := c.chunk.AddConstant(Int(0))
	c.chunk.Emit(OpConst, zeroIdx, t.Line, t.Column)
	c.chunk.Emit(OpSetLocal, slot, t.Line, t.Column)
	return nil
}

// compileAssign handles `name !` (set) and `name @` (get): pops the
// previously emitted `CONST name`; if it matches a live local slot,
// emits SET_LOCAL/GET_LOCAL, else re-emits the CONST and emits
// SET_VAR/GET_VAR (spec.md §4.2).
func (c *Compiler) compileAssign(t token.Token, set bool) error {
	op, ok := c.chunk.LastOpcode()
	if !ok || op != OpConst {
		return c.fail(t.Line, t.Column, "'%s' must follow a name", t.Text)
	}
	offs := c.chunk.lastInstrOffsets(1)
	idx := c.chunk.ReadOperand(offs[0])
	name, ok := c.chunk.Constants[idx].Obj.(*StringObj)
	if !ok {
		return c.fail(t.Line, t.Column, "'%s' must follow a literal name", t.Text)
	}

	if slot, found := c.resolveLocal(name.Text); found {
		c.chunk.TruncateLast(1)
		c.chunk.UsesLocalVars = true
		if set {
			c.chunk.Emit(OpSetLocal, slot, t.Line, t.Column)
		} else {
			c.chunk.Emit(OpGetLocal, slot, t.Line, t.Column)
		}
		return nil
	}
	c.chunk.HasVars = true
	if set {
		c.chunk.Emit(OpSetVar, 0, t.Line, t.Column)
	} else {
		c.chunk.Emit(OpGetVar, 0, t.Line, t.Column)
	}
	return nil
}

// resolveLocal looks up name in this compiler's own locals, then climbs
// the parent chain (the enclosing function/anon-function bodies an
// anonymous function is nested in). An anonymous function's Chunk is
// executed against the *same* locals slice as its defining frame
// (spec.md §3/§9's AnonymousFunction-captures-a-live-frame design), so
// resolving "x" to the enclosing scope's slot number here, instead of
// falling back to a global, is what makes `x var; [x @]` actually read
// the captured local rather than a same-named global.
func (c *Compiler) resolveLocal(name string) (int, bool) {
	for cc := c; cc != nil; cc = cc.parent {
		for i := len(cc.locals) - 1; i >= 0; i-- {
			if cc.locals[i].name == name {
				return cc.locals[i].slot, true
			}
		}
	}
	return 0, false
}

// compileUntil closes a begin/until loop, applying the JUMP_R/
// JUMP_NE_R_EQ_C peephole fusions spec.md §4.2 describes.
func (c *Compiler) compileUntil(t token.Token) error {
	if len(c.loops) == 0 {
		return c.fail(t.Line, t.Column, "'until' without matching 'begin'")
	}
	top := c.loops[len(c.loops)-1]
	c.loops = c.loops[:len(c.loops)-1]

	back := c.chunk.Here() - top.startOffset

	if op, ok := c.chunk.LastOpcode(); ok && op == OpConst {
		offs := c.chunk.lastInstrOffsets(1)
		idx := c.chunk.ReadOperand(offs[0])
		if iv := c.chunk.Constants[idx]; iv.Type == TInt && iv.AsInt() == 0 {
			c.chunk.TruncateLast(1)
			back = c.chunk.Here() - top.startOffset
			c.chunk.Emit(OpJumpR, back, t.Line, t.Column)
			c.patchLeaves(top)
			return nil
		}
	}
	if op2, ok2 := c.chunk.SecondLastOpcode(); ok2 && op2 == OpDup {
		if op1, ok1 := c.chunk.LastOpcode(); ok1 && op1 == OpEqConst {
			offs := c.chunk.lastInstrOffsets(1)
			k := c.chunk.ReadOperand(offs[0])
			c.chunk.TruncateLast(2)
			back = c.chunk.Here() - top.startOffset
			c.chunk.Emit(OpJumpNeREqC, (k<<16)|(back&0xffff), t.Line, t.Column)
			c.patchLeaves(top)
			return nil
		}
	}
	c.chunk.Emit(OpJumpNeR, back, t.Line, t.Column)
	c.patchLeaves(top)
	return nil
}

func (c *Compiler) patchLeaves(top *loopFrame) {
	for _, site := range top.leaves {
		c.chunk.PatchOperand(site.offset, c.chunk.Here()-site.offset)
	}
}

// compileAnonFunction handles `[ ... ]`: compiles the body into a new
// Chunk, decides FUNCTION vs CONST by whether the body used any local
// slots, and applies the implicit-call-insertion rule at ']' (spec.md
// §4.2: "If the last two opcodes form CONST ; <non-call> and no
// explicit call follows, implicitly emit CALL_IMPLICIT").
func (c *Compiler) compileAnonFunction(t token.Token) error {
	*c.anonN++
	name := fmt.Sprintf("anon$%d", *c.anonN)
	sub := &Compiler{
		lex:        c.lex,
		chunk:      NewChunk(name),
		scopeDepth: c.scopeDepth + 1,
		nextSlot:   c.nextSlot,
		parent:     c,
		anonN:      c.anonN,
	}
	sub.chunk.Nested = true
	sub.chunk.ScopeDepth = sub.scopeDepth

	stop := token.RightBracket
	if err := sub.compileBody(&stop); err != nil {
		return err
	}
	// Slots the body allocated (via `var`) are real slots in the shared
	// locals frame; advance the enclosing counter so a sibling closure
	// compiled afterwards doesn't reuse one of them.
	c.nextSlot = sub.nextSlot

	if op2, ok2 := sub.chunk.SecondLastOpcode(); ok2 && op2 == OpConst {
		if op, _ := sub.chunk.LastOpcode(); op != OpCall && op != OpCallImplicit {
			sub.chunk.Emit(OpCallImplicit, 0, t.Line, t.Column)
		}
	}

	for _, slot := range sub.locals {
		sub.chunk.Emit(OpPopLocal, 0, t.Line, t.Column)
		_ = slot
	}

	c.chunk.Functions[name] = sub.chunk
	ref := FromObject(&ChunkRef{Chunk: sub.chunk})
	idx := c.chunk.AddConstant(ref)
	if sub.chunk.UsesLocalVars || len(sub.locals) > 0 {
		c.chunk.Emit(OpFunction, idx, t.Line, t.Column)
	} else {
		c.chunk.Emit(OpConst, idx, t.Line, t.Column)
	}
	return nil
}

// compileNamedFunction handles `: name ... ::` / `:~ name ... ::` (`,,`
// also closes either form): reads
// the name token, compiles the body into a new Chunk, installs it in the
// enclosing chunk's nested-function map (spec.md §4.2).
func (c *Compiler) compileNamedFunction(t token.Token) error {
	isGen := t.Kind == token.StartGenerator
	nameTok := c.next()
	if nameTok.Kind != token.Word && nameTok.Kind != token.WordImplicit {
		return c.fail(nameTok.Line, nameTok.Column, "expected function name")
	}
	sub := &Compiler{
		lex:        c.lex,
		chunk:      NewChunk(nameTok.Text),
		scopeDepth: c.scopeDepth + 1,
		parent:     c,
		anonN:      c.anonN,
	}
	sub.chunk.IsGenerator = isGen
	sub.chunk.Nested = c.scopeDepth > 0
	sub.chunk.ScopeDepth = sub.scopeDepth

	argCount, reqArgCount, err := readArgCounts(sub)
	if err != nil {
		return err
	}
	sub.chunk.ArgCount = argCount
	sub.chunk.ReqArgCount = reqArgCount
	for i := 0; i < argCount; i++ {
		slot := sub.nextSlot
		sub.nextSlot++
		sub.locals = append(sub.locals, localVar{name: fmt.Sprintf("$arg%d", i), slot: slot, depth: sub.scopeDepth})
	}

	stop := token.EndFunction
	if err := sub.compileBody(&stop); err != nil {
		return err
	}
	sub.chunk.Emit(OpEndFn, 0, t.Line, t.Column)

	c.chunk.Functions[nameTok.Text] = sub.chunk
	return nil
}

// readArgCounts consumes a leading "0 0 drop"-style arg-count prelude if
// present (spec.md §8 scenario 5's generator example: `:~ gen 0 0 drop;`)
// by peeking two Int literals followed by `drop`. If that shape isn't
// present, both counts default to 0 and nothing is consumed.
func readArgCounts(sub *Compiler) (int, int, error) {
	saved := *sub.lex
	first := sub.lex.Scan()
	second := sub.lex.Scan()
	third := sub.lex.Scan()
	if first.Kind != token.Int || second.Kind != token.Int ||
		(third.Kind != token.Word && third.Kind != token.WordImplicit) || third.Text != "drop" {
		*sub.lex = saved
		return 0, 0, nil
	}
	argN, _ := parseSmallInt(first.Text)
	reqN, _ := parseSmallInt(second.Text)
	return int(argN), int(reqN), nil
}
