package emulator

import (
	"math/big"
	"strings"
	"testing"

	"github.com/rmcomp/rmc/pkg/asm"
)

func mustParse(t *testing.T, text string) []asm.Line {
	t.Helper()
	lines, err := asm.Parse(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return lines
}

func TestArithmetic(t *testing.T) {
	lines := mustParse(t, `
	GET B
	GET C
	ADD B C
	PUT B
	SUB B C
	SUB B C
	SUB B C
	PUT B
	HALF C
	PUT C
	HALT
`)
	m, err := New(lines)
	if err != nil {
		t.Fatal(err)
	}
	m.SetInputInts(10, 4)
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	// 10+4=14; 14-4-4-4=2; HALF 4 = 2
	got := m.OutputInts()
	want := []int64{14, 2, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("outputs %v, want %v", got, want)
		}
	}
}

func TestSaturation(t *testing.T) {
	lines := mustParse(t, `
	GET B
	GET C
	SUB B C
	PUT B
	DEC B
	PUT B
	HALT
`)
	m, err := New(lines)
	if err != nil {
		t.Fatal(err)
	}
	m.SetInputInts(3, 10)
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	got := m.OutputInts()
	if got[0] != 0 || got[1] != 0 {
		t.Fatalf("saturating ops gave %v, want [0 0]", got)
	}
}

func TestMemory(t *testing.T) {
	lines := mustParse(t, `
	GET B
	SUB A A
	INC A
	INC A
	STORE B
	LOAD C
	PUT C
	HALT
`)
	m, err := New(lines)
	if err != nil {
		t.Fatal(err)
	}
	m.SetInputInts(99)
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	if got := m.OutputInts(); got[0] != 99 {
		t.Fatalf("memory round trip gave %v", got)
	}
	if got := m.Mem(big.NewInt(2)); got.Int64() != 99 {
		t.Fatalf("cell 2 holds %s, want 99", got)
	}
	if got := m.Mem(big.NewInt(5)); got.Sign() != 0 {
		t.Fatalf("untouched cell reads %s, want 0", got)
	}
}

func TestJumps(t *testing.T) {
	// Halves the input down to zero, printing and decrementing each odd
	// value on the way.
	lines := mustParse(t, `
	GET B
loop:
	JZERO B end
	JODD B odd
	HALF B
	JUMP loop
odd:
	PUT B
	DEC B
	JUMP loop
end:
	HALT
`)
	m, err := New(lines)
	if err != nil {
		t.Fatal(err)
	}
	m.SetInputInts(12)
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	// 12 -> 6 -> 3 (odd, put) -> 2 -> 1 (odd, put) -> 0
	got := m.OutputInts()
	want := []int64{3, 1}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("outputs %v, want %v", got, want)
	}
}

func TestStepLimit(t *testing.T) {
	lines := mustParse(t, `
loop:
	JUMP loop
`)
	m, err := New(lines)
	if err != nil {
		t.Fatal(err)
	}
	m.StepLimit = 1000
	err = m.Run()
	if err == nil || !strings.Contains(err.Error(), "step limit") {
		t.Fatalf("want step limit error, got %v", err)
	}
}

func TestUndefinedLabel(t *testing.T) {
	lines := mustParse(t, `
	JUMP nowhere
`)
	if _, err := New(lines); err == nil {
		t.Fatal("want error for undefined label")
	}
}

func TestInputExhausted(t *testing.T) {
	lines := mustParse(t, `
	GET B
	GET C
	HALT
`)
	m, err := New(lines)
	if err != nil {
		t.Fatal(err)
	}
	m.SetInputInts(1)
	if err := m.Run(); err == nil {
		t.Fatal("want error when input runs dry")
	}
}
