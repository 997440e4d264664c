package vm

import (
	"fmt"
	"regexp"
	"strings"
)

// corefn_regex.go ports _examples/original_source/src/vm/vm_regex.rs's
// core_m/core_s onto stdlib regexp, consuming the StringObj regex slot
// spec.md §3 describes ("a String's compiled-regex slot ... is only
// consulted by regex operations"). A pattern string may carry a
// trailing "/g" (spec.md §8's `asdf/g` pattern in the original test
// suite) to request substitute-all rather than substitute-first.
func init() {
	registerSimple(map[string]SimpleForm{
		"m": fnMatch,
		"s": fnSubstitute,
	})
}

// regexBackrefs rewrites the original's "\N" backreference syntax in a
// replacement template into Go's regexp "${N}" syntax.
var regexBackrefs = regexp.MustCompile(`\\(\d+)`)

// compiledPattern strips an optional trailing "/g" global-match marker
// from a pattern value's text and compiles (and caches, via
// StringObj.Regex) the remainder.
func compiledPattern(v Value) (re *regexp.Regexp, global bool, err error) {
	s, ok := v.Obj.(*StringObj)
	if !ok {
		s = NewString(valueAsWord(v))
	}
	text := s.Text
	if strings.HasSuffix(text, "/g") {
		global = true
		text = strings.TrimSuffix(text, "/g")
	}
	if s.Text != text {
		s = NewString(text)
	}
	re, err = s.Regex()
	return re, global, err
}

// m: (string pattern -- bool). Tests whether string matches pattern.
func fnMatch(vm *VM) error {
	patV, err := vm.pop()
	if err != nil {
		return err
	}
	strV, err := vm.pop()
	if err != nil {
		return err
	}
	re, _, err := compiledPattern(patV)
	if err != nil {
		return fmt.Errorf("m: invalid regex: %w", err)
	}
	vm.push(Bool(re.MatchString(valueAsWord(strV))))
	return nil
}

// s: (string pattern replacement -- string). Substitutes the first
// match, or every match when pattern carries a trailing "/g".
// Backreferences in replacement are written \1, \2, ... and rewritten
// to Go's $1, $2, ... before expansion.
func fnSubstitute(vm *VM) error {
	replV, err := vm.pop()
	if err != nil {
		return err
	}
	patV, err := vm.pop()
	if err != nil {
		return err
	}
	strV, err := vm.pop()
	if err != nil {
		return err
	}
	re, global, err := compiledPattern(patV)
	if err != nil {
		return fmt.Errorf("s: invalid regex: %w", err)
	}
	repl := regexBackrefs.ReplaceAllString(valueAsWord(replV), "$${$1}")
	subject := valueAsWord(strV)

	if global {
		vm.push(FromString(re.ReplaceAllString(subject, repl)))
		return nil
	}

	loc := re.FindStringSubmatchIndex(subject)
	if loc == nil {
		vm.push(FromString(subject))
		return nil
	}
	var out []byte
	out = append(out, subject[:loc[0]]...)
	out = re.ExpandString(out, repl, subject, loc)
	out = append(out, subject[loc[1]:]...)
	vm.push(FromString(string(out)))
	return nil
}
