// Package nametable resolves the fname references scattered throughout a
// tagged-property stream — (index, suffix) pairs and signed indices —
// against the name table built once per container file.
package nametable

import (
	"fmt"

	"github.com/mtojek/uatree/pkg/uatree/primitive"
)

// None is the end-of-struct sentinel name.
const None = "None"

// Table is the ordered, read-only sequence of interned strings shared by
// every export decoded from one container file. Lookups never mutate it
// and never panic: an out-of-range index yields a diagnostic placeholder
// string instead (spec's NameOutOfRange policy).
type Table struct {
	names []string
}

// New builds a Table from an already-materialized ordered name sequence.
func New(names []string) *Table {
	return &Table{names: names}
}

// Len returns the number of interned names.
func (t *Table) Len() int {
	return len(t.names)
}

// At returns the name at index i, or a placeholder if i is out of range.
func (t *Table) At(i int) string {
	if i < 0 || i >= len(t.names) {
		return placeholder(i)
	}
	return t.names[i]
}

func placeholder(i int) string {
	return fmt.Sprintf("<name-out-of-range:%d>", i)
}

// Resolver reads fname-shaped references from a primitive.Reader against a
// Table.
type Resolver struct {
	names *Table
	prim  *primitive.Reader
}

// NewResolver pairs a name table with the primitive reader over the current
// export's bytes.
func NewResolver(names *Table, prim *primitive.Reader) *Resolver {
	return &Resolver{names: names, prim: prim}
}

// FName reads an (index, suffix) fname pair. The format stores suffix
// biased by one (0 means absent); suffix s>0 renders as "name_{s-1}".
func (r *Resolver) FName() (string, error) {
	idx, err := r.prim.Int(4, false)
	if err != nil {
		return "", err
	}
	suffix, err := r.prim.Int(4, false)
	if err != nil {
		return "", err
	}
	name := r.names.At(int(idx))
	if suffix > 0 {
		name = fmt.Sprintf("%s_%d", name, suffix-1)
	}
	return name, nil
}

// FNameSigned reads a single signed 32-bit fname index, used for
// class-style fnames. A negative index resolves as names[|i|]. Only the
// resolved name is returned: it carries no minus prefix, and the sign of
// the index is not reported to the caller.
func (r *Resolver) FNameSigned() (string, error) {
	idx, err := r.prim.Int(4, true)
	if err != nil {
		return "", err
	}
	i := idx
	if i < 0 {
		i = -i
	}
	return r.names.At(int(i)), nil
}

// ObjectRef is the structured result of reading an object reference: the
// sign of the encoded index, its absolute magnitude, and a best-effort
// resolved name.
type ObjectRef struct {
	Negative bool
	Index    uint32
	Name     string
}

// ObjectRef reads a signed 32-bit object reference. The resolved name
// attempt indexes names[|r|+1] per spec.md's ±1 bias on the reference
// table; out-of-range indices still produce a placeholder, never a panic.
func (r *Resolver) ObjectRef() (ObjectRef, error) {
	raw, err := r.prim.Int(4, true)
	if err != nil {
		return ObjectRef{}, err
	}
	abs := raw
	neg := raw < 0
	if neg {
		abs = -raw
	}
	name := r.names.At(int(abs) + 1)
	return ObjectRef{Negative: neg, Index: uint32(abs), Name: name}, nil
}
