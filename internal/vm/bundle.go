package vm

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"math/big"
)

// Bundle is cosh's on-disk bytecode container (spec.md §6): a magic
// header, a version byte, and a gob-encoded Chunk. Shape adapted from
// funxy's bundle.go (_examples/funvibe-funxy/internal/vm/bundle.go) —
// magic+version+gob, plus a package-level init() that gob.Registers
// every concrete Object variant that can hide behind the Object
// interface — narrowed to serialize a single Chunk per spec.md §6
// ("a round-trippable serialization of a compiled unit") rather than
// funxy's multi-chunk module bundle.
const (
	bundleMagic   = "COSH"
	bundleVersion = 1
)

func init() {
	gob.Register(&StringObj{})
	gob.Register(&BigIntObj{})
	gob.Register(&CommandObj{})
	gob.Register(&ListObj{})
	gob.Register(&HashObj{})
	gob.Register(&SetObj{})
	gob.Register(&ChunkRef{})
}

// gobChunk is the subset of Chunk that round-trips through gob: the
// constant pool is re-expressed as gobValue so big.Int and nested
// function chunks encode without requiring Value/Object themselves to
// implement GobEncoder (spec.md §6's required fields: name, bytecode,
// points table, constant pool, nested functions, flags).
type gobChunk struct {
	Name          string
	Code          []byte
	Lines         []int
	Columns       []int
	Constants     []gobValue
	Functions     map[string]*gobChunk
	IsGenerator   bool
	HasVars       bool
	UsesLocalVars bool
	ArgCount      int
	ReqArgCount   int
	Nested        bool
	ScopeDepth    int
}

// gobValue mirrors spec.md §6's fixed serializable constant-pool tag
// set: "Null, Int(i32), Float(f64), BigInt(decimal string), String,
// Command, CommandUncaptured". A constant-pool entry that is anything
// else (a nested ChunkRef standing in for a `[ ... ]` literal, which
// the constant pool also holds per the compiler's FUNCTION/CONST
// emission) is carried as a reference into the owning chunk's
// Functions map by name instead of being inlined twice.
type gobValue struct {
	Tag         byte // 0=null 1=int 2=float 3=bigint 4=string 5=command 6=command-uncaptured 7=chunk-ref
	Int         int32
	Float       float64
	BigIntText  string
	Text        string
	GetBytes    bool
	GetCombined bool
	ChunkRefKey string
}

func toGobValue(v Value, owner *Chunk, refIndex map[*Chunk]string) gobValue {
	switch v.Type {
	case TNull:
		return gobValue{Tag: 0}
	case TInt:
		return gobValue{Tag: 1, Int: v.AsInt()}
	case TFloat:
		return gobValue{Tag: 2, Float: v.AsFloat()}
	case TObj:
		switch o := v.Obj.(type) {
		case *BigIntObj:
			return gobValue{Tag: 3, BigIntText: o.Value.String()}
		case *StringObj:
			return gobValue{Tag: 4, Text: o.Text}
		case *CommandObj:
			tag := byte(5)
			if o.Uncaptured {
				tag = 6
			}
			return gobValue{Tag: tag, Text: o.Template, GetBytes: o.GetBytes, GetCombined: o.GetCombined}
		case *ChunkRef:
			return gobValue{Tag: 7, ChunkRefKey: refIndex[o.Chunk]}
		}
	}
	return gobValue{Tag: 0}
}

func fromGobValue(g gobValue, resolved map[string]*Chunk) Value {
	switch g.Tag {
	case 0:
		return Null
	case 1:
		return Int(g.Int)
	case 2:
		return Float(g.Float)
	case 3:
		bi, _ := new(big.Int).SetString(g.BigIntText, 10)
		return FromBigInt(bi)
	case 4:
		return FromString(g.Text)
	case 5:
		return FromObject(&CommandObj{Template: g.Text, GetBytes: g.GetBytes, GetCombined: g.GetCombined})
	case 6:
		return FromObject(&CommandObj{Template: g.Text, Uncaptured: true, GetBytes: g.GetBytes, GetCombined: g.GetCombined})
	case 7:
		return FromObject(&ChunkRef{Chunk: resolved[g.ChunkRefKey]})
	}
	return Null
}

// toGobChunk flattens c (and, recursively, its nested Functions) into
// the gob-friendly shape, building a stable per-chunk key so constant
// pool entries that reference a sibling/nested Chunk (via ChunkRef, the
// `[ ... ]`/named-function compile-time encoding) can point at it by
// name instead of duplicating the chunk body.
func toGobChunk(c *Chunk) *gobChunk {
	refIndex := map[*Chunk]string{}
	var index func(prefix string, ch *Chunk)
	index = func(prefix string, ch *Chunk) {
		for name, fn := range ch.Functions {
			key := prefix + "/" + name
			refIndex[fn] = key
			index(key, fn)
		}
	}
	index("", c)
	refIndex[c] = ""

	var convert func(ch *Chunk) *gobChunk
	convert = func(ch *Chunk) *gobChunk {
		g := &gobChunk{
			Name:          ch.Name,
			Code:          append([]byte{}, ch.Code...),
			Lines:         append([]int{}, ch.Lines...),
			Columns:       append([]int{}, ch.Columns...),
			Functions:     make(map[string]*gobChunk, len(ch.Functions)),
			IsGenerator:   ch.IsGenerator,
			HasVars:       ch.HasVars,
			UsesLocalVars: ch.UsesLocalVars,
			ArgCount:      ch.ArgCount,
			ReqArgCount:   ch.ReqArgCount,
			Nested:        ch.Nested,
			ScopeDepth:    ch.ScopeDepth,
		}
		for _, v := range ch.Constants {
			g.Constants = append(g.Constants, toGobValue(v, ch, refIndex))
		}
		for name, fn := range ch.Functions {
			g.Functions[name] = convert(fn)
		}
		return g
	}
	return convert(c)
}

// fromGobChunk is toGobChunk's inverse: it first reconstructs every
// nested Chunk (without constants, so each one exists to be pointed at)
// then fills in constant pools, resolving ChunkRef entries against the
// now-fully-populated name index.
func fromGobChunk(g *gobChunk) *Chunk {
	resolved := map[string]*Chunk{}

	var build func(prefix string, gc *gobChunk) *Chunk
	build = func(prefix string, gc *gobChunk) *Chunk {
		ch := &Chunk{
			Name:          gc.Name,
			Code:          gc.Code,
			Lines:         gc.Lines,
			Columns:       gc.Columns,
			Functions:     make(map[string]*Chunk, len(gc.Functions)),
			IsGenerator:   gc.IsGenerator,
			HasVars:       gc.HasVars,
			UsesLocalVars: gc.UsesLocalVars,
			ArgCount:      gc.ArgCount,
			ReqArgCount:   gc.ReqArgCount,
			Nested:        gc.Nested,
			ScopeDepth:    gc.ScopeDepth,
		}
		resolved[prefix] = ch
		for name, sub := range gc.Functions {
			ch.Functions[name] = build(prefix+"/"+name, sub)
		}
		return ch
	}
	root := build("", g)

	var fill func(prefix string, gc *gobChunk, ch *Chunk)
	fill = func(prefix string, gc *gobChunk, ch *Chunk) {
		for _, gv := range gc.Constants {
			ch.Constants = append(ch.Constants, fromGobValue(gv, resolved))
		}
		for name, sub := range gc.Functions {
			fill(prefix+"/"+name, sub, ch.Functions[name])
		}
	}
	fill("", g, root)

	return root
}

// SerializeChunk encodes chunk as a cosh bytecode bundle (spec.md §6).
func SerializeChunk(chunk *Chunk) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(bundleMagic)
	buf.WriteByte(bundleVersion)
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(toGobChunk(chunk)); err != nil {
		return nil, fmt.Errorf("serialize chunk: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeChunk decodes a bundle previously produced by
// SerializeChunk. The round trip preserves bytecode, constants, the
// points table and the nested function tree byte-for-byte (spec.md §8's
// serialize/deserialize law).
func DeserializeChunk(data []byte) (*Chunk, error) {
	if len(data) < len(bundleMagic)+1 {
		return nil, fmt.Errorf("bundle too short")
	}
	if string(data[:len(bundleMagic)]) != bundleMagic {
		return nil, fmt.Errorf("bad bundle magic")
	}
	version := data[len(bundleMagic)]
	if version != bundleVersion {
		return nil, fmt.Errorf("unsupported bundle version %d", version)
	}
	rest := data[len(bundleMagic)+1:]
	dec := gob.NewDecoder(bytes.NewReader(rest))
	var g gobChunk
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("deserialize chunk: %w", err)
	}
	return fromGobChunk(&g), nil
}

// WriteChunk serializes chunk and writes it to w.
func WriteChunk(w io.Writer, chunk *Chunk) error {
	data, err := SerializeChunk(chunk)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ReadChunk reads and deserializes a chunk previously written by
// WriteChunk/SerializeChunk.
func ReadChunk(r io.Reader) (*Chunk, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return DeserializeChunk(data)
}
