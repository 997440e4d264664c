package vm

import "testing"

func TestParseIPv4PushesIpv4Obj(t *testing.T) {
	got := run(t, `"192.168.1.1" parse-ip; print`)
	if got != "192.168.1.1" {
		t.Errorf("got %q, want %q", got, "192.168.1.1")
	}
}

func TestParseIPv6PushesIpv6Obj(t *testing.T) {
	got := run(t, `"::1" parse-ip; print`)
	if got != "::1" {
		t.Errorf("got %q, want %q", got, "::1")
	}
}

func TestIPContainsWithinCIDR(t *testing.T) {
	got := run(t, `"10.0.0.0/24" parse-cidr; "10.0.0.5" parse-ip; ip-contains; print`)
	if got != "#t" {
		t.Errorf("got %q, want %q", got, "#t")
	}
	got = run(t, `"10.0.0.0/24" parse-cidr; "10.0.1.5" parse-ip; ip-contains; print`)
	if got != "#f" {
		t.Errorf("got %q, want %q", got, "#f")
	}
}

func TestIPSetPushGrowsSet(t *testing.T) {
	chunk, err := Compile("<test>", []byte(`ipset; "10.0.0.0/24" parse-cidr; ipset-push;`))
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	v := NewVM()
	if err := v.Run(chunk); err != nil {
		t.Fatalf("run error: %v", err)
	}
	top, err := v.pop()
	if err != nil {
		t.Fatalf("pop error: %v", err)
	}
	s, ok := top.Obj.(*IpSetObj)
	if !ok {
		t.Fatalf("expected *IpSetObj on top of stack, got %T", top.Obj)
	}
	if len(s.Prefixes) != 1 {
		t.Errorf("got %d prefixes, want 1", len(s.Prefixes))
	}
}
