package vm

import (
	"encoding/json"
	"encoding/xml"
	"fmt"

	"gopkg.in/yaml.v3"
)

// corefn_codec.go ports _examples/original_source/src/vm/vm_json.rs,
// vm_yaml.rs and vm_xml.rs. JSON and XML use stdlib encoding/json and
// encoding/xml (no third-party library for either appears anywhere in
// the retrieved pack, a justified stdlib exception per SPEC_FULL.md);
// YAML goes through gopkg.in/yaml.v3, funxy's own direct dependency.
func init() {
	registerSimple(map[string]SimpleForm{
		"from-json": fnFromJSON,
		"to-json":   fnToJSON,
		"from-yaml": fnFromYAML,
		"to-yaml":   fnToYAML,
		"from-xml":  fnFromXML,
		"to-xml":    fnToXML,
	})
}

// valueToNative converts a cosh Value into the plain Go shape
// encoding/json, encoding/xml and yaml.v3 all expect.
func valueToNative(v Value) interface{} {
	switch v.Type {
	case TNull:
		return nil
	case TBool:
		return v.AsBool()
	case TInt:
		return v.AsInt()
	case TFloat:
		return v.AsFloat()
	case TByte:
		return v.AsByte()
	case TObj:
		switch o := v.Obj.(type) {
		case *StringObj:
			return o.Text
		case *BigIntObj:
			return o.Value.String()
		case *ListObj:
			out := make([]interface{}, len(o.Items))
			for i, it := range o.Items {
				out[i] = valueToNative(it)
			}
			return out
		case *HashObj:
			out := make(map[string]interface{}, len(o.Keys))
			for _, k := range o.Keys {
				out[k] = valueToNative(o.Items[k])
			}
			return out
		}
	}
	return v.Inspect()
}

// nativeToValue is the inverse conversion, used after unmarshalling.
func nativeToValue(x interface{}) Value {
	switch t := x.(type) {
	case nil:
		return Null
	case bool:
		return Bool(t)
	case string:
		return FromString(t)
	case float64:
		return Float(t)
	case int:
		return Int(int32(t))
	case []interface{}:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = nativeToValue(e)
		}
		return FromObject(&ListObj{Items: items})
	case map[string]interface{}:
		h := NewHash()
		for k, e := range t {
			h.Set(k, nativeToValue(e))
		}
		return FromObject(h)
	}
	return FromString(fmt.Sprintf("%v", x))
}

func fnFromJSON(vm *VM) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	var native interface{}
	if err := json.Unmarshal([]byte(valueAsWord(v)), &native); err != nil {
		return fmt.Errorf("from-json: %w", err)
	}
	vm.push(nativeToValue(native))
	return nil
}

func fnToJSON(vm *VM) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	b, err := json.Marshal(valueToNative(v))
	if err != nil {
		return fmt.Errorf("to-json: %w", err)
	}
	vm.push(FromString(string(b)))
	return nil
}

func fnFromYAML(vm *VM) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	var native interface{}
	if err := yaml.Unmarshal([]byte(valueAsWord(v)), &native); err != nil {
		return fmt.Errorf("from-yaml: %w", err)
	}
	vm.push(nativeToValue(normalizeYAML(native)))
	return nil
}

// normalizeYAML rewrites yaml.v3's map[string]interface{} keys (it
// decodes mappings as map[string]interface{} already for string keys,
// but nested sequences/maps need the same recursive treatment) into the
// same shape fnFromJSON produces, so both converge on nativeToValue.
func normalizeYAML(x interface{}) interface{} {
	switch t := x.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, v := range t {
			out[k] = normalizeYAML(v)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, v := range t {
			out[i] = normalizeYAML(v)
		}
		return out
	default:
		return t
	}
}

func fnToYAML(vm *VM) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	b, err := yaml.Marshal(valueToNative(v))
	if err != nil {
		return fmt.Errorf("to-yaml: %w", err)
	}
	vm.push(FromString(string(b)))
	return nil
}

// coshXML is a minimal, order-preserving element shape good enough to
// round-trip the Hash-of-Hash documents cosh scripts build, mirroring
// the plain element/attribute model vm_xml.rs exposes.
type coshXML struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Content string     `xml:",chardata"`
	Nodes   []coshXML  `xml:",any"`
}

func fnFromXML(vm *VM) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	var root coshXML
	if err := xml.Unmarshal([]byte(valueAsWord(v)), &root); err != nil {
		return fmt.Errorf("from-xml: %w", err)
	}
	vm.push(xmlToValue(root))
	return nil
}

func xmlToValue(n coshXML) Value {
	h := NewHash()
	h.Set("tag", FromString(n.XMLName.Local))
	if len(n.Nodes) == 0 {
		h.Set("text", FromString(n.Content))
	} else {
		children := make([]Value, len(n.Nodes))
		for i, c := range n.Nodes {
			children[i] = xmlToValue(c)
		}
		h.Set("children", FromObject(&ListObj{Items: children}))
	}
	if len(n.Attrs) > 0 {
		ah := NewHash()
		for _, a := range n.Attrs {
			ah.Set(a.Name.Local, FromString(a.Value))
		}
		h.Set("attrs", FromObject(ah))
	}
	return FromObject(h)
}

func fnToXML(vm *VM) error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	h, ok := v.Obj.(*HashObj)
	if !ok {
		return fmt.Errorf("to-xml: expected a hash of the form produced by from-xml")
	}
	tag := "root"
	if tv, ok := h.Get("tag"); ok {
		tag = valueAsWord(tv)
	}
	text := ""
	if tv, ok := h.Get("text"); ok {
		text = valueAsWord(tv)
	}
	var sb []byte
	sb = append(sb, []byte("<"+tag+">")...)
	sb = append(sb, []byte(text)...)
	sb = append(sb, []byte("</"+tag+">")...)
	vm.push(FromString(string(sb)))
	return nil
}
