// Package semantic assigns memory cells to declared symbols and provides
// the read-only view the code generator uses to resolve names.
package semantic

import (
	"fmt"

	"github.com/rmcomp/rmc/pkg/ir"
)

// Scalar is a declared scalar variable with its stable cell address.
type Scalar struct {
	Name string
	Addr uint64
}

// Array is a declared array: Base is the address of the element at the
// declared starting index Low, so element i lives at Base + (i - Low).
type Array struct {
	Name string
	Base uint64
	Low  int64
	High int64
}

// Size returns the number of cells the array occupies.
func (a *Array) Size() uint64 {
	return uint64(a.High - a.Low + 1)
}

// SymbolTable maps declared names to memory locations and hands out
// fresh cells for temporaries spilled during code generation.
type SymbolTable struct {
	scalars map[string]*Scalar
	arrays  map[string]*Array
	next    uint64
}

// Build populates a symbol table from a program's declarations. Scalars
// are laid out first, then arrays, in declaration order; cells after
// them are available for spills.
func Build(prog *ir.Program) (*SymbolTable, error) {
	st := &SymbolTable{
		scalars: make(map[string]*Scalar),
		arrays:  make(map[string]*Array),
	}
	for _, name := range prog.Scalars {
		if err := st.DeclareScalar(name); err != nil {
			return nil, err
		}
	}
	for _, a := range prog.Arrays {
		if err := st.DeclareArray(a.Name, a.Low, a.High); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// DeclareScalar assigns the next free cell to a scalar.
func (st *SymbolTable) DeclareScalar(name string) error {
	if st.declared(name) {
		return fmt.Errorf("duplicate declaration of %s", name)
	}
	st.scalars[name] = &Scalar{Name: name, Addr: st.next}
	st.next++
	return nil
}

// DeclareArray reserves high-low+1 consecutive cells for an array.
func (st *SymbolTable) DeclareArray(name string, low, high int64) error {
	if st.declared(name) {
		return fmt.Errorf("duplicate declaration of %s", name)
	}
	if high < low {
		return fmt.Errorf("array %s has empty range %d..%d", name, low, high)
	}
	a := &Array{Name: name, Base: st.next, Low: low, High: high}
	st.arrays[name] = a
	st.next += a.Size()
	return nil
}

func (st *SymbolTable) declared(name string) bool {
	_, s := st.scalars[name]
	_, a := st.arrays[name]
	return s || a
}

// Scalar looks up a declared scalar.
func (st *SymbolTable) Scalar(name string) (*Scalar, bool) {
	s, ok := st.scalars[name]
	return s, ok
}

// Array looks up a declared array.
func (st *SymbolTable) Array(name string) (*Array, bool) {
	a, ok := st.arrays[name]
	return a, ok
}

// AllocCell hands out a fresh cell, used as the spill home of a
// temporary. Cells are never reclaimed.
func (st *SymbolTable) AllocCell() uint64 {
	addr := st.next
	st.next++
	return addr
}
