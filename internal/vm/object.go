package vm

import (
	"bufio"
	"database/sql"
	"fmt"
	"math/big"
	"net"
	"net/netip"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// ObjKind identifies the concrete type behind a Value whose Type is TObj.
// This is cosh's analogue of funxy's evaluator.ObjectType, grounded on
// the Value enum in _examples/original_source/src/chunk.rs.
type ObjKind uint8

const (
	OString ObjKind = iota
	OBigInt
	OCommand
	OList
	OHash
	OSet
	OAnonFunc
	OFuncRef
	OGenerator
	OCommandGenerator
	OHashView
	OMultiGenerator
	OChannelGenerator
	OFileReader
	OFileWriter
	OTcpReader
	OTcpWriter
	ODirHandle
	ODateTime
	OIpv4
	OIpv6
	OIpv4Range
	OIpv6Range
	OIpSet
	ODBConn
	ODBStmt
	OChunkRef
	oStartMarker
)

// markerObj is a runtime sentinel pushed by START_LIST/START_HASH/
// START_SET onto the shared operand stack so that END_LIST (a single
// opcode closing any of the three, per spec.md §4.2) knows, at runtime,
// which composite to build from the values collected above the marker.
type markerObj struct{ opens ObjKind }

func (m *markerObj) ObjKind() ObjKind { return oStartMarker }
func (m *markerObj) Inspect() string  { return "<marker>" }

// Object is implemented by every heap-allocated (composite) value payload.
type Object interface {
	ObjKind() ObjKind
	Inspect() string
}

// StringObj is cosh's "shared, mutable cell holding (text, optional
// compiled regex, optional global-match flag)" (spec.md §3). The regex
// slot is populated at most once per distinct text, the first time the
// string is used as a pattern.
type StringObj struct {
	Text        string
	regex       *regexp.Regexp
	regexSrc    string
	RegexGlobal bool
}

func NewString(s string) *StringObj { return &StringObj{Text: s} }

func (s *StringObj) ObjKind() ObjKind { return OString }
func (s *StringObj) Inspect() string  { return s.Text }

// Regex lazily compiles and caches s.Text as a pattern.
func (s *StringObj) Regex() (*regexp.Regexp, error) {
	if s.regex != nil && s.regexSrc == s.Text {
		return s.regex, nil
	}
	re, err := regexp.Compile(s.Text)
	if err != nil {
		return nil, err
	}
	s.regex = re
	s.regexSrc = s.Text
	return re, nil
}

// BigIntObj wraps an arbitrary-precision integer.
type BigIntObj struct{ Value *big.Int }

func (b *BigIntObj) ObjKind() ObjKind { return OBigInt }
func (b *BigIntObj) Inspect() string  { return b.Value.String() }

// CommandObj is an external command template, captured or uncaptured.
type CommandObj struct {
	Template    string
	Uncaptured  bool
	GetBytes    bool // trailing /b form
	GetCombined bool // trailing /c form
}

func (c *CommandObj) ObjKind() ObjKind { return OCommand }
func (c *CommandObj) Inspect() string {
	if c.Uncaptured {
		return "$" + c.Template
	}
	return "{" + c.Template + "}"
}

// ListObj is a shared, mutable ordered sequence.
type ListObj struct{ Items []Value }

func NewList(items ...Value) *ListObj { return &ListObj{Items: items} }

func (l *ListObj) ObjKind() ObjKind { return OList }
func (l *ListObj) Inspect() string {
	var sb strings.Builder
	sb.WriteString("(\n")
	for i, v := range l.Items {
		fmt.Fprintf(&sb, "    %d: %s\n", i, v.Inspect())
	}
	sb.WriteString(")")
	return sb.String()
}

// HashObj is a shared, insertion-ordered String->Value mapping.
type HashObj struct {
	Keys  []string
	Items map[string]Value
}

func NewHash() *HashObj { return &HashObj{Items: make(map[string]Value)} }

func (h *HashObj) ObjKind() ObjKind { return OHash }

func (h *HashObj) Get(key string) (Value, bool) {
	v, ok := h.Items[key]
	return v, ok
}

func (h *HashObj) Set(key string, v Value) {
	if _, exists := h.Items[key]; !exists {
		h.Keys = append(h.Keys, key)
	}
	h.Items[key] = v
}

func (h *HashObj) Delete(key string) {
	if _, ok := h.Items[key]; !ok {
		return
	}
	delete(h.Items, key)
	for i, k := range h.Keys {
		if k == key {
			h.Keys = append(h.Keys[:i], h.Keys[i+1:]...)
			break
		}
	}
}

func (h *HashObj) Inspect() string {
	var sb strings.Builder
	sb.WriteString("h(\n")
	for _, k := range h.Keys {
		fmt.Fprintf(&sb, "    %s: %s\n", k, h.Items[k].Inspect())
	}
	sb.WriteString(")")
	return sb.String()
}

// SetObj is a shared, insertion-ordered mapping whose values store the
// original key form. All members must share a single Value variant; the
// variant is fixed by the first push (spec.md §3 invariant).
type SetObj struct {
	Keys    []string
	Items   map[string]Value
	fixed   bool
	elemTy  ValueType
	elemObj ObjKind
}

func NewSet() *SetObj { return &SetObj{Items: make(map[string]Value)} }

func (s *SetObj) ObjKind() ObjKind { return OSet }

// Push adds v, keyed by its canonical string form. It fails (returns
// false) if v's variant differs from the variant already established by
// the set's first element, or if v is an IP value (spec.md §9: IPs must
// go through the dedicated IpSet type).
func (s *SetObj) Push(key string, v Value) bool {
	if v.Type == TObj {
		switch v.Obj.ObjKind() {
		case OIpv4, OIpv6, OIpv4Range, OIpv6Range:
			return false
		}
	}
	if !s.fixed {
		s.fixed = true
		s.elemTy = v.Type
		if v.Type == TObj {
			s.elemObj = v.Obj.ObjKind()
		}
	} else {
		if v.Type != s.elemTy {
			return false
		}
		if v.Type == TObj && v.Obj.ObjKind() != s.elemObj {
			return false
		}
	}
	if _, exists := s.Items[key]; !exists {
		s.Keys = append(s.Keys, key)
	}
	s.Items[key] = v
	return true
}

func (s *SetObj) Inspect() string {
	var sb strings.Builder
	sb.WriteString("s(\n")
	for _, k := range s.Keys {
		fmt.Fprintf(&sb, "    %s\n", s.Items[k].Inspect())
	}
	sb.WriteString(")")
	return sb.String()
}

// AnonFunc is a closure over a specific, still-live local-variable
// frame (spec.md §3/§9's "(name, owning-frame-id, owning-frame-pointer)").
// Rather than reproducing the original's raw (index-into-prev-frames,
// stable-pointer) pair — meaningful only in a language without a
// garbage collector — cosh-go uses a frameHandle: a liveness cell shared
// with the defining exec() call, flipped dead exactly when that call
// truly returns (not when it merely yields). This is a deliberate,
// documented adaptation (DESIGN.md) that preserves the exact observable
// contract (closures unusable once their defining call has returned,
// detected without dereferencing freed memory) using Go idiom instead of
// pointer-identity bookkeeping a GC makes unnecessary.
type AnonFunc struct {
	Chunk  *Chunk
	Handle *frameHandle
}

func (a *AnonFunc) ObjKind() ObjKind { return OAnonFunc }
func (a *AnonFunc) Inspect() string  { return "<function:" + a.Chunk.Name + ">" }

// FuncRef is a callable reference resolved purely by name at call time
// (spec.md §3's "NamedFunction / CoreFunction" row): the VM consults the
// core dispatch tables, then the nested-function chain, then the
// global-function table, in that order (callNamed). Folding both payloads
// into one Go type is a deliberate consolidation (documented in
// DESIGN.md) since both resolve through the exact same lookup chain.
type FuncRef struct{ Name string }

func (f *FuncRef) ObjKind() ObjKind { return OFuncRef }
func (f *FuncRef) Inspect() string  { return "<function:" + f.Name + ">" }

// FileReader/FileWriter wrap buffered file I/O handles.
type FileReaderObj struct {
	F  *os.File
	Br *bufio.Reader
}

func (o *FileReaderObj) ObjKind() ObjKind { return OFileReader }
func (o *FileReaderObj) Inspect() string  { return "<file-reader:" + o.F.Name() + ">" }

type FileWriterObj struct {
	F  *os.File
	Bw *bufio.Writer
}

func (o *FileWriterObj) ObjKind() ObjKind { return OFileWriter }
func (o *FileWriterObj) Inspect() string  { return "<file-writer:" + o.F.Name() + ">" }

// Flush flushes buffered output. Nothing calls it automatically: output
// written through the handle stays buffered until Flush is called, and
// it is not flushed when the function that opened the handle returns.
func (o *FileWriterObj) Flush() error { return o.Bw.Flush() }

// TcpReader/TcpWriter wrap a TCP connection's two halves.
type TcpReaderObj struct {
	Conn net.Conn
	Br   *bufio.Reader
}

func (o *TcpReaderObj) ObjKind() ObjKind { return OTcpReader }
func (o *TcpReaderObj) Inspect() string  { return "<tcp-reader>" }

type TcpWriterObj struct {
	Conn net.Conn
	Bw   *bufio.Writer
}

func (o *TcpWriterObj) ObjKind() ObjKind { return OTcpWriter }
func (o *TcpWriterObj) Inspect() string  { return "<tcp-writer>" }
func (o *TcpWriterObj) Flush() error     { return o.Bw.Flush() }

// DirHandleObj iterates over directory entries.
type DirHandleObj struct {
	Path    string
	Entries []os.DirEntry
	Index   int
}

func (o *DirHandleObj) ObjKind() ObjKind { return ODirHandle }
func (o *DirHandleObj) Inspect() string  { return "<directory:" + o.Path + ">" }

// DateTimeObj is a wall-clock value, naive or offset-aware.
type DateTimeObj struct {
	T      time.Time
	HasTZ  bool
}

func (o *DateTimeObj) ObjKind() ObjKind { return ODateTime }
func (o *DateTimeObj) Inspect() string {
	if o.HasTZ {
		return o.T.Format(time.RFC3339)
	}
	return o.T.Format("2006-01-02T15:04:05")
}

// Ipv4Obj / Ipv6Obj / range and set values, built on stdlib net/netip
// (spec.md §9 decision: sets of IPs always go through IpSetObj).
type Ipv4Obj struct{ Addr netip.Addr }

func (o *Ipv4Obj) ObjKind() ObjKind { return OIpv4 }
func (o *Ipv4Obj) Inspect() string  { return o.Addr.String() }

type Ipv6Obj struct{ Addr netip.Addr }

func (o *Ipv6Obj) ObjKind() ObjKind { return OIpv6 }
func (o *Ipv6Obj) Inspect() string  { return o.Addr.String() }

type Ipv4RangeObj struct{ Prefix netip.Prefix }

func (o *Ipv4RangeObj) ObjKind() ObjKind { return OIpv4Range }
func (o *Ipv4RangeObj) Inspect() string  { return o.Prefix.String() }

type Ipv6RangeObj struct{ Prefix netip.Prefix }

func (o *Ipv6RangeObj) ObjKind() ObjKind { return OIpv6Range }
func (o *Ipv6RangeObj) Inspect() string  { return o.Prefix.String() }

// IpSetObj holds an insertion-ordered collection of prefixes; SHIFT finds
// the lexicographically first remaining prefix, removes it and yields it
// (spec.md §4.4 Generators).
type IpSetObj struct{ Prefixes []netip.Prefix }

func (o *IpSetObj) ObjKind() ObjKind { return OIpSet }
func (o *IpSetObj) Inspect() string  { return "<ip-set>" }

func (o *IpSetObj) ShiftFirst() (netip.Prefix, bool) {
	if len(o.Prefixes) == 0 {
		return netip.Prefix{}, false
	}
	minIdx := 0
	for i, p := range o.Prefixes {
		if p.String() < o.Prefixes[minIdx].String() {
			minIdx = i
		}
	}
	p := o.Prefixes[minIdx]
	o.Prefixes = append(o.Prefixes[:minIdx], o.Prefixes[minIdx+1:]...)
	return p, true
}

// DBConnObj / DBStmtObj wrap a database/sql handle opened against the
// modernc.org/sqlite driver (spec.md §3 "DB connection / prepared
// statement (per engine)").
type DBConnObj struct {
	DB  *sql.DB
	DSN string
}

func (o *DBConnObj) ObjKind() ObjKind { return ODBConn }
func (o *DBConnObj) Inspect() string  { return "<db:" + o.DSN + ">" }

type DBStmtObj struct {
	Stmt  *sql.Stmt
	Query string
}

func (o *DBStmtObj) ObjKind() ObjKind { return ODBStmt }
func (o *DBStmtObj) Inspect() string  { return "<db-stmt:" + o.Query + ">" }

// Generator is a paused, reified VM frame (spec.md §3/§9): a call to a
// chunk marked IsGenerator does not run it, it captures the caller's
// globals, locals, enclosing-chunk chain and pending arguments here.
// SHIFT re-enters exec() at Pc against these exact fields and updates
// Pc/Locals/Globals from the result, without OS threads or goroutines
// (spec.md §9).
type Generator struct {
	Chunk       *Chunk
	Pc          int
	Locals      []Value
	Globals     []map[string]Value
	Enclosing   []*Chunk
	PendingArgs []Value
	argsSent    bool
	Done        bool
}

func (g *Generator) ObjKind() ObjKind { return OGenerator }
func (g *Generator) Inspect() string  { return "<generator:" + g.Chunk.Name + ">" }

// CommandGeneratorObj streams lines (or byte batches) from a spawned
// child process's stdout, optionally with stderr merged into the same
// stream; lines carry no tag saying which stream they came from
// (spec.md §3's "flags: get_bytes, get_combined").
type CommandGeneratorObj struct {
	Cmd         *exec.Cmd
	R           *bufio.Reader
	GetBytes    bool
	GetCombined bool
	closed      bool
}

func (g *CommandGeneratorObj) ObjKind() ObjKind { return OCommandGenerator }
func (g *CommandGeneratorObj) Inspect() string  { return "<command-generator>" }

// hashViewMode distinguishes the three live views spec.md §3 lists over
// a single Hash: KeysGenerator / ValuesGenerator / EachGenerator.
type hashViewMode int

const (
	hashViewKeys hashViewMode = iota
	hashViewValues
	hashViewEach
)

// HashViewObj implements keys/values/each as one live, index-tracking
// view over a shared Hash (spec.md §3).
type HashViewObj struct {
	Hash  *HashObj
	Index int
	Mode  hashViewMode
}

func (g *HashViewObj) ObjKind() ObjKind { return OHashView }
func (g *HashViewObj) Inspect() string  { return "<hash-view>" }

// MultiGeneratorObj concatenates a deque of shiftables (spec.md §3).
type MultiGeneratorObj struct {
	Gens []Value
}

func (g *MultiGeneratorObj) ObjKind() ObjKind { return OMultiGenerator }
func (g *MultiGeneratorObj) Inspect() string  { return "<multi-generator>" }

// ChannelGeneratorObj reads one serialized Value per SHIFT off a Go
// channel fed by pmap/pmapn workers (spec.md §3/§4.7); Null terminates.
type ChannelGeneratorObj struct {
	Ch <-chan Value
}

func (g *ChannelGeneratorObj) ObjKind() ObjKind { return OChannelGenerator }
func (g *ChannelGeneratorObj) Inspect() string  { return "<channel-generator>" }

// ChunkRef is a compiled function template awaiting binding: emitted by
// FUNCTION/CONST for a `[ ... ]` or named-function body (spec.md §4.2).
// A non-capturing body (no free locals) is called directly off this
// value; a capturing body is wrapped into an AnonFunc bound to the
// defining frame the moment OP_FUNCTION executes (spec.md §4.4 calling
// convention, "FUNCTION i16 (emit a closure over current frame)").
type ChunkRef struct {
	Chunk *Chunk
}

func (o *ChunkRef) ObjKind() ObjKind { return OChunkRef }
func (o *ChunkRef) Inspect() string  { return "<function:" + o.Chunk.Name + ">" }
