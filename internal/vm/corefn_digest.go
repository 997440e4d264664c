package vm

import (
	"crypto/md5"
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// corefn_digest.go ports _examples/original_source/src/vm/vm_digest.rs
// onto stdlib crypto/sha256+crypto/md5 plus golang.org/x/crypto/blake2b
// (SPEC_FULL.md's DOMAIN STACK entry), and adds `uuid` (google/uuid)
// as the common one-shot identifier utility cosh scripting reaches for.
func init() {
	registerSimple(map[string]SimpleForm{
		"md5":    fnDigest(func(b []byte) []byte { s := md5.Sum(b); return s[:] }),
		"sha256": fnDigest(func(b []byte) []byte { s := sha256.Sum256(b); return s[:] }),
		"blake2": fnDigest(func(b []byte) []byte { s := blake2b.Sum256(b); return s[:] }),
		"uuid":   fnUUID,
	})
}

func fnDigest(hash func([]byte) []byte) SimpleForm {
	return func(vm *VM) error {
		v, err := vm.pop()
		if err != nil {
			return err
		}
		sum := hash([]byte(valueAsWord(v)))
		vm.push(FromString(fmt.Sprintf("%x", sum)))
		return nil
	}
}

func fnUUID(vm *VM) error {
	vm.push(FromString(uuid.NewString()))
	return nil
}
