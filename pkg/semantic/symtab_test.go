package semantic

import (
	"testing"

	"github.com/rmcomp/rmc/pkg/ir"
)

func TestLayout(t *testing.T) {
	prog := &ir.Program{
		Scalars: []string{"a", "b"},
		Arrays:  []ir.ArrayDecl{{Name: "T", Low: -3, High: 3}, {Name: "U", Low: 5, High: 5}},
	}
	st, err := Build(prog)
	if err != nil {
		t.Fatal(err)
	}

	a, ok := st.Scalar("a")
	if !ok || a.Addr != 0 {
		t.Errorf("a at %v", a)
	}
	b, _ := st.Scalar("b")
	if b.Addr != 1 {
		t.Errorf("b at %d, want 1", b.Addr)
	}

	tArr, ok := st.Array("T")
	if !ok || tArr.Base != 2 || tArr.Size() != 7 {
		t.Errorf("T = %+v", tArr)
	}
	u, _ := st.Array("U")
	if u.Base != 9 || u.Size() != 1 {
		t.Errorf("U = %+v", u)
	}

	// Spill cells come after all declarations.
	if cell := st.AllocCell(); cell != 10 {
		t.Errorf("first spill cell %d, want 10", cell)
	}
	if cell := st.AllocCell(); cell != 11 {
		t.Errorf("second spill cell %d, want 11", cell)
	}
}

func TestDuplicates(t *testing.T) {
	if _, err := Build(&ir.Program{Scalars: []string{"x", "x"}}); err == nil {
		t.Error("duplicate scalar accepted")
	}
	prog := &ir.Program{
		Scalars: []string{"x"},
		Arrays:  []ir.ArrayDecl{{Name: "x", Low: 0, High: 1}},
	}
	if _, err := Build(prog); err == nil {
		t.Error("scalar/array name clash accepted")
	}
}

func TestEmptyArrayRange(t *testing.T) {
	st := mustEmpty(t)
	if err := st.DeclareArray("T", 3, 2); err == nil {
		t.Error("empty array range accepted")
	}
}

func mustEmpty(t *testing.T) *SymbolTable {
	t.Helper()
	st, err := Build(&ir.Program{})
	if err != nil {
		t.Fatal(err)
	}
	return st
}
