package lexer

import (
	"testing"

	"github.com/cosh-lang/cosh/internal/token"
)

func scanAll(t *testing.T, src string) []token.Token {
	t.Helper()
	l := New([]byte(src))
	var out []token.Token
	for {
		tok := l.Scan()
		out = append(out, tok)
		if tok.Kind == token.Eof || tok.Kind == token.Error {
			return out
		}
	}
}

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestScanLiterals(t *testing.T) {
	toks := scanAll(t, `1 -3 3.14 "hi" 'lo'`)
	want := []token.Kind{token.Int, token.Int, token.Float, token.String, token.String, token.Eof}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(got), len(want), got)
	}
	for i, k := range want {
		if got[i] != k {
			t.Errorf("token %d: got %s, want %s", i, got[i], k)
		}
	}
	if toks[3].Text != "hi" || toks[4].Text != "lo" {
		t.Errorf("string text mismatch: %q %q", toks[3].Text, toks[4].Text)
	}
}

func TestScanBigIntOverflowsInt32(t *testing.T) {
	toks := scanAll(t, "99999999999999999999")
	if toks[0].Kind != token.BigInt {
		t.Fatalf("expected BigInt, got %s", toks[0].Kind)
	}
}

func TestScanQuotedEscapesDelimiter(t *testing.T) {
	toks := scanAll(t, `"a\"b"`)
	if toks[0].Kind != token.String || toks[0].Text != `a"b` {
		t.Fatalf("got %+v", toks[0])
	}
}

func TestScanCapturedCommandPlain(t *testing.T) {
	toks := scanAll(t, `{ls -la}`)
	if toks[0].Kind != token.CommandCaptured {
		t.Fatalf("expected CommandCaptured, got %s", toks[0].Kind)
	}
	if toks[0].Text != "ls -la" {
		t.Fatalf("got text %q", toks[0].Text)
	}
}

func TestScanCapturedCommandExplicitSemicolon(t *testing.T) {
	toks := scanAll(t, `{ls};`)
	if toks[0].Kind != token.CommandCapturedExplicit {
		t.Fatalf("expected CommandCapturedExplicit, got %s", toks[0].Kind)
	}
}

func TestScanCapturedCommandNestedBraces(t *testing.T) {
	toks := scanAll(t, `{echo {nested}}`)
	if toks[0].Kind != token.CommandCaptured {
		t.Fatalf("expected CommandCaptured, got %s", toks[0].Kind)
	}
	if toks[0].Text != "echo {nested}" {
		t.Fatalf("got text %q", toks[0].Text)
	}
}

func TestScanUncapturedCommandStopsAtNewline(t *testing.T) {
	toks := scanAll(t, "$echo hi\nrest")
	if toks[0].Kind != token.CommandUncaptured {
		t.Fatalf("expected CommandUncaptured, got %s", toks[0].Kind)
	}
	if toks[0].Text != "echo hi" {
		t.Fatalf("got text %q", toks[0].Text)
	}
	if toks[1].Kind != token.WordImplicit && toks[1].Kind != token.Word {
		t.Fatalf("expected a word token after the command, got %s", toks[1].Kind)
	}
}

func TestScanFunctionDelimiters(t *testing.T) {
	toks := scanAll(t, `: foo :~ ::`)
	want := []token.Kind{token.StartFunction, token.Word, token.StartGenerator, token.EndFunction, token.Eof}
	got := kinds(toks)
	for i, k := range want {
		if got[i] != k {
			t.Errorf("token %d: got %s, want %s", i, got[i], k)
		}
	}
}

func TestScanHashAndSetDelimiters(t *testing.T) {
	toks := scanAll(t, `h( s( ( )`)
	want := []token.Kind{token.StartHash, token.StartSet, token.StartList, token.EndList, token.Eof}
	got := kinds(toks)
	for i, k := range want {
		if got[i] != k {
			t.Errorf("token %d: got %s, want %s", i, got[i], k)
		}
	}
}

func TestScanWordImplicitAtEOF(t *testing.T) {
	toks := scanAll(t, "foo")
	if toks[0].Kind != token.WordImplicit {
		t.Fatalf("expected WordImplicit for a lone word at EOF, got %s", toks[0].Kind)
	}
}

func TestScanWordExplicitWithSemicolon(t *testing.T) {
	toks := scanAll(t, "foo;")
	if toks[0].Kind != token.Word {
		t.Fatalf("expected explicit Word, got %s", toks[0].Kind)
	}
	if toks[0].Text != "foo" {
		t.Fatalf("got text %q", toks[0].Text)
	}
}

func TestScanWordFollowedByMoreInputIsExplicit(t *testing.T) {
	toks := scanAll(t, "foo bar")
	if toks[0].Kind != token.Word {
		t.Fatalf("expected explicit Word before a following token, got %s", toks[0].Kind)
	}
}
