// Package value implements the decoded-value domain the property
// deserializer produces: a small tagged sum (spec's §3.1) with a JSON
// renderer that preserves key order, recursively replaces the sentinel
// string "None" with null, and prunes empty mappings.
package value

import (
	"bytes"
	"encoding/json"
)

// Value is any decoded node in the tree. It is exactly encoding/json's
// Marshaler interface so a Value can be passed straight to json.Marshal,
// but every concrete type below also composes with its own recursive
// rendering rules (None->null, empty-mapping pruning) rather than relying
// on the generic encoder.
type Value interface {
	MarshalJSON() ([]byte, error)
}

var (
	jsonNull  = []byte("null")
	jsonEmpty = []byte("{}")
)

// Null represents the absence of a value.
type Null struct{}

func (Null) MarshalJSON() ([]byte, error) { return jsonNull, nil }

// Bool is a decoded boolean.
type Bool bool

func (b Bool) MarshalJSON() ([]byte, error) { return json.Marshal(bool(b)) }

// Int holds any of the signed/unsigned 8/16/32/64-bit integer properties.
type Int int64

func (i Int) MarshalJSON() ([]byte, error) { return json.Marshal(int64(i)) }

// Float holds a 32- or 64-bit float property.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) { return json.Marshal(float64(f)) }

// Str is a decoded utf-8 string property.
type Str string

func (s Str) MarshalJSON() ([]byte, error) { return encodeName(string(s)) }

// Name is an interned name, already resolved against the name table.
type Name string

func (n Name) MarshalJSON() ([]byte, error) { return encodeName(string(n)) }

// encodeName implements spec's §6 rendering rule: the literal sentinel
// string "None" recursively becomes JSON null wherever it appears, not
// just at struct-body boundaries.
func encodeName(s string) ([]byte, error) {
	if s == "None" {
		return jsonNull, nil
	}
	return json.Marshal(s)
}

// Color is the #RRGGBBAA rendering of a decoded Color struct.
type Color string

func (c Color) MarshalJSON() ([]byte, error) { return json.Marshal(string(c)) }

// Timespan is a raw unsigned 64-bit tick count.
type Timespan uint64

func (t Timespan) MarshalJSON() ([]byte, error) { return json.Marshal(uint64(t)) }

// DateTime is the {date, time} pair decoded from a DateTime struct.
type DateTime struct {
	Date int32
	Time int32
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date int32 `json:"date"`
		Time int32 `json:"time"`
	}{d.Date, d.Time})
}

// LinearColor is the four-float sequence decoded from a LinearColor struct.
type LinearColor [4]float64

func (l LinearColor) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64(l))
}

// Enum carries up to two keys ("class", "value") resolved per spec's
// id-role table ({8: class, 0: value}).
type Enum struct {
	Class    string
	HasClass bool
	Val      string
	HasVal   bool
}

func (e Enum) MarshalJSON() ([]byte, error) {
	m := NewStruct()
	if e.HasClass {
		m.Set("class", Name(e.Class))
	}
	if e.HasVal {
		m.Set("value", Name(e.Val))
	}
	return m.MarshalJSON()
}

// ObjectRef is a structured object reference: sign, absolute index, and a
// best-effort resolved name (a placeholder when the index is out of range).
type ObjectRef struct {
	Negative bool
	Index    uint32
	Name     string
}

func (o ObjectRef) MarshalJSON() ([]byte, error) {
	m := NewStruct()
	m.Set("negative", Bool(o.Negative))
	m.Set("index", Int(int64(o.Index)))
	m.Set("name", Name(o.Name))
	return m.MarshalJSON()
}

// SoftObjectRef is a soft/lazy object reference: a name path plus a
// sub-path integer.
type SoftObjectRef struct {
	Path    string
	SubPath int32
}

func (s SoftObjectRef) MarshalJSON() ([]byte, error) {
	m := NewStruct()
	m.Set("path", Name(s.Path))
	m.Set("sub_path", Int(int64(s.SubPath)))
	return m.MarshalJSON()
}

// Text is the ordered sequence of strings a TextProperty decodes to: 0 or 3
// under the modern layout, 0 or 2 under the legacy layout.
type Text []string

func (t Text) MarshalJSON() ([]byte, error) {
	arr := NewArray()
	for _, s := range t {
		arr.Append(Str(s))
	}
	return arr.MarshalJSON()
}

// FieldPath is an ordered sequence of names plus an owner object reference.
type FieldPath struct {
	Names []string
	Owner ObjectRef
}

func (f FieldPath) MarshalJSON() ([]byte, error) {
	m := NewStruct()
	arr := NewArray()
	for _, n := range f.Names {
		arr.Append(Name(n))
	}
	m.Set("path", arr)
	m.Set("owner", f.Owner)
	return m.MarshalJSON()
}

// Array is an ordered sequence of values of one declared sub-type. It also
// backs the repeated-struct-key promotion (spec's §3.2): when a Struct key
// repeats, the existing value is wrapped in a promoted Array and further
// occurrences are appended to it.
type Array struct {
	Elements []Value
	promoted bool
}

// NewArray returns an empty Array.
func NewArray() *Array {
	return &Array{}
}

// Append adds v as the next element.
func (a *Array) Append(v Value) {
	a.Elements = append(a.Elements, v)
}

// Len reports the element count.
func (a *Array) Len() int {
	return len(a.Elements)
}

func (a *Array) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range a.Elements {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := e.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

type mapEntry struct {
	Key   string
	Value Value
}

// Map is an ordered mapping preserving insertion order, with keys unique
// within a single Map instance.
type Map struct {
	entries []mapEntry
	index   map[string]int
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{index: make(map[string]int)}
}

// Set inserts or overwrites key with v, preserving the position of the
// first insertion if key already exists.
func (m *Map) Set(key string, v Value) {
	if i, ok := m.index[key]; ok {
		m.entries[i].Value = v
		return
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, mapEntry{Key: key, Value: v})
}

// Len reports the number of keys.
func (m *Map) Len() int {
	return len(m.entries)
}

func (m *Map) MarshalJSON() ([]byte, error) {
	return marshalOrdered(m.entries)
}

type structEntry struct {
	Key   string
	Value Value
}

// Struct is an ordered mapping from property name to value. A repeated
// key promotes its value to a sequence (spec's §3.2); see Set.
type Struct struct {
	entries []structEntry
	index   map[string]int
}

// NewStruct returns an empty Struct.
func NewStruct() *Struct {
	return &Struct{index: make(map[string]int)}
}

// Set assigns v to key. If key already holds a value, that value is
// promoted into an internally-marked Array and v is appended to it; a
// third occurrence appends to the same promoted Array rather than
// re-promoting.
func (s *Struct) Set(key string, v Value) {
	if i, ok := s.index[key]; ok {
		existing := s.entries[i].Value
		if arr, ok := existing.(*Array); ok && arr.promoted {
			arr.Append(v)
			return
		}
		promoted := NewArray()
		promoted.promoted = true
		promoted.Append(existing)
		promoted.Append(v)
		s.entries[i].Value = promoted
		return
	}
	s.index[key] = len(s.entries)
	s.entries = append(s.entries, structEntry{Key: key, Value: v})
}

// Get returns the value at key, if any.
func (s *Struct) Get(key string) (Value, bool) {
	i, ok := s.index[key]
	if !ok {
		return nil, false
	}
	return s.entries[i].Value, true
}

// Len reports the number of keys.
func (s *Struct) Len() int {
	return len(s.entries)
}

// Keys returns the keys in insertion order.
func (s *Struct) Keys() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Key
	}
	return out
}

func (s *Struct) MarshalJSON() ([]byte, error) {
	return marshalOrdered(s.entries)
}

type orderedEntry interface {
	key() string
	value() Value
}

func (e mapEntry) key() string    { return e.Key }
func (e mapEntry) value() Value   { return e.Value }
func (e structEntry) key() string { return e.Key }
func (e structEntry) value() Value { return e.Value }

// marshalOrdered renders an ordered list of key/value entries as a JSON
// object, pruning any entry whose rendered value is an empty mapping
// ("{}") — spec's empty-map pruning rule. Pruning a child before writing
// the parent makes the rule trivially idempotent: a pruned tree contains
// no empty mappings left to prune on a second pass.
func marshalOrdered[E orderedEntry](entries []E) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, e := range entries {
		vb, err := e.value().MarshalJSON()
		if err != nil {
			return nil, err
		}
		if bytes.Equal(vb, jsonEmpty) {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		kb, err := json.Marshal(e.key())
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
