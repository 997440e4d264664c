package vm

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// corefn_net.go ports _examples/original_source/src/vm/vm_http.rs /
// vm_dns.rs as sketched interfaces only, per spec.md §1's explicit
// out-of-scope list: each fixes just the stack contract, not a full
// client (SPEC_FULL.md SUPPLEMENTED FEATURES).
func init() {
	registerSimple(map[string]SimpleForm{
		"http-get":   fnHTTPGet,
		"dns-lookup": fnDNSLookup,
	})
}

// http-get: (url -- status body). A single GET, no redirect policy, no
// header customization — the minimal contract spec.md §1 scopes in.
func fnHTTPGet(vm *VM) error {
	urlV, err := vm.pop()
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(valueAsWord(urlV))
	if err != nil {
		return fmt.Errorf("http-get: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("http-get: %w", err)
	}
	vm.push(Int(int32(resp.StatusCode)))
	vm.push(FromString(string(body)))
	return nil
}

// dns-lookup: (name -- list-of-addrs).
func fnDNSLookup(vm *VM) error {
	nameV, err := vm.pop()
	if err != nil {
		return err
	}
	addrs, err := net.LookupHost(valueAsWord(nameV))
	if err != nil {
		return fmt.Errorf("dns-lookup: %w", err)
	}
	items := make([]Value, len(addrs))
	for i, a := range addrs {
		items[i] = FromString(a)
	}
	vm.push(FromObject(&ListObj{Items: items}))
	return nil
}
