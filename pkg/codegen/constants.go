package codegen

import (
	"math/big"

	"github.com/rmcomp/rmc/pkg/asm"
)

// materializeConst places a non-negative value into a register, choosing
// between unary construction (a run of INCs) and binary construction
// (one ADD r,r per bit, INC where the bit is set). Unary costs v
// instructions after the initial zeroing, binary costs bitlen-1
// doublings plus popcount increments; small values go unary.
func materializeConst(s *Sink, r asm.Reg, v *big.Int) {
	s.emit2(asm.OpSub, r, r)
	if v.Sign() == 0 {
		return
	}
	b := v.BitLen()
	p := popcount(v)
	threshold := big.NewInt(int64(5*b + p))
	if v.Cmp(threshold) <= 0 {
		// v <= 5b+p bounds v to a small word-sized count.
		for i := int64(0); i < v.Int64(); i++ {
			s.emit1(asm.OpInc, r)
		}
		return
	}
	for i := b - 1; i >= 0; i-- {
		if i < b-1 {
			s.emit2(asm.OpAdd, r, r)
		}
		if v.Bit(i) == 1 {
			s.emit1(asm.OpInc, r)
		}
	}
}

// materializeAddr materializes a memory address into register A.
func materializeAddr(s *Sink, addr uint64) {
	materializeConst(s, asm.RegA, new(big.Int).SetUint64(addr))
}

// constCost returns the number of instructions materializeConst emits
// for v, including the initial SUB.
func constCost(v *big.Int) int {
	if v.Sign() == 0 {
		return 1
	}
	b := v.BitLen()
	p := popcount(v)
	threshold := big.NewInt(int64(5*b + p))
	if v.Cmp(threshold) <= 0 {
		return int(v.Int64()) + 1
	}
	return (b - 1) + p + 1
}

func popcount(v *big.Int) int {
	n := 0
	for _, w := range v.Bits() {
		for ; w != 0; w &= w - 1 {
			n++
		}
	}
	return n
}
