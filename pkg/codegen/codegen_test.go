package codegen

import (
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/rmcomp/rmc/pkg/asm"
	"github.com/rmcomp/rmc/pkg/emulator"
	"github.com/rmcomp/rmc/pkg/ir"
)

// compileAndRun compiles the textual IR and executes it on the
// reference machine with the given inputs.
func compileAndRun(t *testing.T, source string, inputs ...int64) []int64 {
	t.Helper()
	outs := compileAndRunBig(t, source, int64Inputs(inputs))
	res := make([]int64, len(outs))
	for i, v := range outs {
		res[i] = v.Int64()
	}
	return res
}

func compileAndRunBig(t *testing.T, source string, inputs []*big.Int) []*big.Int {
	t.Helper()
	prog, err := ir.Parse(source)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	lines, err := Compile(prog, Options{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	m, err := emulator.New(lines)
	if err != nil {
		t.Fatalf("listing: %v\n%s", err, asm.Format(lines))
	}
	m.SetInputValues(inputs)
	if err := m.Run(); err != nil {
		t.Fatalf("run: %v\n%s", err, asm.Format(lines))
	}
	return m.Outputs()
}

func int64Inputs(vals []int64) []*big.Int {
	res := make([]*big.Int, len(vals))
	for i, v := range vals {
		res[i] = big.NewInt(v)
	}
	return res
}

func checkOutputs(t *testing.T, got, want []int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestAdd(t *testing.T) {
	src := `
.scalar a
.scalar b
get a
get b
add a b r1
put r1
halt
`
	checkOutputs(t, compileAndRun(t, src, 6, 7), []int64{13})
}

func TestSubSaturates(t *testing.T) {
	src := `
.scalar a
.scalar b
get a
get b
sub a b r1
put r1
halt
`
	checkOutputs(t, compileAndRun(t, src, 3, 10), []int64{0})
	checkOutputs(t, compileAndRun(t, src, 10, 3), []int64{7})
}

func TestMul(t *testing.T) {
	src := `
.scalar a
.scalar b
get a
get b
mul a b r1
put r1
halt
`
	cases := []struct{ x, y, want int64 }{
		{12, 17, 204},
		{0, 9, 0},
		{9, 0, 0},
		{1, 1, 1},
		{255, 255, 65025},
	}
	for _, tc := range cases {
		checkOutputs(t, compileAndRun(t, src, tc.x, tc.y), []int64{tc.want})
	}
}

func TestMulBig(t *testing.T) {
	src := `
.scalar a
.scalar b
get a
get b
mul a b r1
put r1
halt
`
	x, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	y := big.NewInt(1000003)
	want := new(big.Int).Mul(x, y)
	outs := compileAndRunBig(t, src, []*big.Int{x, y})
	if len(outs) != 1 || outs[0].Cmp(want) != 0 {
		t.Fatalf("got %v, want %s", outs, want)
	}
}

func TestDivRem(t *testing.T) {
	src := `
.scalar a
.scalar b
get a
get b
div a b r1
rem a b r2
put r1
put r2
halt
`
	cases := []struct{ x, y, q, r int64 }{
		{100, 7, 14, 2},
		{7, 100, 0, 7},
		{64, 2, 32, 0},
		{0, 5, 0, 0},
		{1, 1, 1, 0},
	}
	for _, tc := range cases {
		checkOutputs(t, compileAndRun(t, src, tc.x, tc.y), []int64{tc.q, tc.r})
	}
}

func TestDivByZeroYieldsZero(t *testing.T) {
	src := `
.scalar a
get a
div a 0 r1
put r1
halt
`
	checkOutputs(t, compileAndRun(t, src, 42), []int64{0})

	src = `
.scalar a
get a
rem a 0 r1
put r1
halt
`
	checkOutputs(t, compileAndRun(t, src, 42), []int64{0})
}

func TestArrayNegativeStartIndex(t *testing.T) {
	src := `
.array T -3 3
astore 9 T -3
aload T -3 r1
put r1
halt
`
	checkOutputs(t, compileAndRun(t, src), []int64{9})
}

func TestArrayVariableIndex(t *testing.T) {
	src := `
.scalar i
.array T 5 10
get i
astore 77 T i
aload T i r1
put r1
halt
`
	checkOutputs(t, compileAndRun(t, src, 8), []int64{77})
}

func TestConditionalBranch(t *testing.T) {
	src := `
.scalar a
.scalar b
entry:
	get a
	get b
	jlt a b L1 L2
L1:
	put 1
	halt
L2:
	put 2
	halt
`
	checkOutputs(t, compileAndRun(t, src, 3, 5), []int64{1})
	checkOutputs(t, compileAndRun(t, src, 5, 3), []int64{2})
}

func TestComparisons(t *testing.T) {
	holds := map[string]func(l, r int64) bool{
		"jeq": func(l, r int64) bool { return l == r },
		"jne": func(l, r int64) bool { return l != r },
		"jlt": func(l, r int64) bool { return l < r },
		"jgt": func(l, r int64) bool { return l > r },
		"jle": func(l, r int64) bool { return l <= r },
		"jge": func(l, r int64) bool { return l >= r },
	}
	pairs := []struct{ l, r int64 }{
		{0, 0}, {0, 1}, {1, 0}, {5, 5}, {3, 7}, {7, 3}, {1000, 999},
	}
	for name, fn := range holds {
		src := fmt.Sprintf(`
.scalar a
.scalar b
entry:
	get a
	get b
	%s a b T F
T:
	put 1
	halt
F:
	put 0
	halt
`, name)
		for _, p := range pairs {
			want := int64(0)
			if fn(p.l, p.r) {
				want = 1
			}
			got := compileAndRun(t, src, p.l, p.r)
			if len(got) != 1 || got[0] != want {
				t.Errorf("%s(%d, %d): got %v, want [%d]", name, p.l, p.r, got, want)
			}
		}
	}
}

func TestLiveValuesSurviveBranches(t *testing.T) {
	src := `
.scalar a
.scalar b
entry:
	get a
	get b
	add a b r1
	jlt a b L1 L2
L1:
	put r1
	halt
L2:
	put a
	halt
`
	checkOutputs(t, compileAndRun(t, src, 3, 5), []int64{8})
	checkOutputs(t, compileAndRun(t, src, 5, 3), []int64{5})
}

func TestLoop(t *testing.T) {
	// Sums 1..n by looping.
	src := `
.scalar n
.scalar i
.scalar acc
entry:
	get n
	move 0 acc
	move 1 i
	jump head
head:
	jgt i n done body
body:
	add acc i r1
	move r1 acc
	add i 1 r2
	move r2 i
	jump head
done:
	put acc
	halt
`
	checkOutputs(t, compileAndRun(t, src, 10), []int64{55})
	checkOutputs(t, compileAndRun(t, src, 0), []int64{0})
	checkOutputs(t, compileAndRun(t, src, 1), []int64{1})
}

func TestSpillAndReload(t *testing.T) {
	// Nine live scalars overflow the seven-register pool, forcing
	// spills and reloads around the arithmetic.
	src := `
.scalar a
.scalar b
.scalar c
.scalar d
.scalar e
.scalar f
.scalar g
.scalar h
.scalar i
get a
get b
get c
get d
get e
get f
get g
get h
get i
add a b r1
add r1 c r2
add h i r3
add r2 r3 r4
put r4
halt
`
	// 1+2+3 + 8+9 = 23
	checkOutputs(t, compileAndRun(t, src, 1, 2, 3, 4, 5, 6, 7, 8, 9), []int64{23})
}

func TestDeterministicOutput(t *testing.T) {
	src := `
.scalar a
.scalar b
entry:
	get a
	get b
	mul a b r1
	div a b r2
	jne r1 r2 L1 L2
L1:
	put r1
	halt
L2:
	put r2
	halt
`
	prog1, err := ir.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	prog2, err := ir.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	lines1, err := Compile(prog1, Options{})
	if err != nil {
		t.Fatal(err)
	}
	lines2, err := Compile(prog2, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if asm.Format(lines1) != asm.Format(lines2) {
		t.Error("two compilations of the same program differ")
	}
}

func TestPoolExhaustion(t *testing.T) {
	src := `
.scalar a
.scalar b
get a
get b
mul a b r1
put r1
halt
`
	prog, err := ir.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Compile(prog, Options{PoolSize: 3})
	if err == nil || !strings.Contains(err.Error(), "register pool exhausted") {
		t.Fatalf("want pool exhaustion error, got %v", err)
	}
}

func TestMalformedIR(t *testing.T) {
	cases := []struct {
		name   string
		source string
		want   string
	}{
		{
			name: "undeclared symbol",
			source: `
put x
halt
`,
			want: "undeclared symbol x",
		},
		{
			name: "array used as value",
			source: `
.array T 0 5
put T
halt
`,
			want: "array T used as a value",
		},
		{
			name: "scalar indexed",
			source: `
.scalar x
aload x 0 r1
halt
`,
			want: "scalar x used as an array",
		},
		{
			name: "negative effective address",
			source: `
.array T 5 10
aload T 2 r1
halt
`,
			want: "negative effective address",
		},
		{
			name: "temp read before write",
			source: `
put r9
halt
`,
			want: "read before it is written",
		},
	}
	for _, tc := range cases {
		prog, err := ir.Parse(tc.source)
		if err != nil {
			t.Fatalf("%s: parse: %v", tc.name, err)
		}
		_, err = Compile(prog, Options{})
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: got %v, want error containing %q", tc.name, err, tc.want)
		}
	}
}

func TestAnnotatedListing(t *testing.T) {
	src := `
.scalar a
get a
put a
halt
`
	prog, err := ir.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	lines, err := Compile(prog, Options{Annotate: true})
	if err != nil {
		t.Fatal(err)
	}
	text := asm.Format(lines)
	if !strings.Contains(text, "; get a") {
		t.Errorf("annotated listing missing IR comment:\n%s", text)
	}
}
