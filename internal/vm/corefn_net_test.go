package vm

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPGetReturnsStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "hello from server")
	}))
	defer srv.Close()

	chunk, err := Compile("<test>", []byte(fmt.Sprintf(`%q http-get;`, srv.URL)))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	v := NewVM()
	var buf bytes.Buffer
	v.SetOutput(&buf)
	if err := v.Run(chunk); err != nil {
		t.Fatalf("run error: %v", err)
	}
	body, err := v.pop()
	if err != nil {
		t.Fatalf("pop body: %v", err)
	}
	status, err := v.pop()
	if err != nil {
		t.Fatalf("pop status: %v", err)
	}
	if status.AsInt() != 200 {
		t.Errorf("got status %d, want 200", status.AsInt())
	}
	if body.Inspect() != "hello from server" {
		t.Errorf("got body %q, want %q", body.Inspect(), "hello from server")
	}
}
