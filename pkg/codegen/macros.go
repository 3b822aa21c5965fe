package codegen

import (
	"fmt"
	"math/big"

	"github.com/rmcomp/rmc/pkg/asm"
	"github.com/rmcomp/rmc/pkg/ir"
)

// The macro set. Each macro emits a self-contained sequence and leaves
// the descriptor engine describing the machine state after it. All
// registers come from the engine; all labels come from the sink.

// get reads one input value into a fresh register and binds it to dst.
func (c *Codegen) get(dst ir.Operand) error {
	e, err := c.eng.entryFor(dst)
	if err != nil {
		return err
	}
	r, err := c.eng.Select()
	if err != nil {
		return err
	}
	c.sink.emit1(asm.OpGet, r)
	c.eng.Seize(r, e)
	return nil
}

// put writes the operand's value to output.
func (c *Codegen) put(src ir.Operand) error {
	r, err := c.eng.Load(src)
	if err != nil {
		return err
	}
	c.sink.emit1(asm.OpPut, r)
	return nil
}

// move copies the source value into a fresh register bound to dst.
func (c *Codegen) move(src, dst ir.Operand) error {
	e, err := c.eng.entryFor(dst)
	if err != nil {
		return err
	}
	s, err := c.eng.Load(src)
	if err != nil {
		return err
	}
	d, err := c.eng.Select()
	if err != nil {
		return err
	}
	c.sink.emit2(asm.OpCopy, d, s)
	c.eng.Seize(d, e)
	return nil
}

// binary emits ADD or SUB into a fresh register bound to dst. The
// machine SUB saturates at zero, which the comparison macros rely on.
func (c *Codegen) binary(in *ir.Instruction) error {
	op := asm.OpAdd
	if in.Op == ir.OpSub {
		op = asm.OpSub
	}
	e, err := c.eng.entryFor(in.Dst)
	if err != nil {
		return err
	}
	l, err := c.eng.Load(in.Src1)
	if err != nil {
		return err
	}
	r, err := c.eng.Load(in.Src2)
	if err != nil {
		return err
	}
	d, err := c.eng.Select()
	if err != nil {
		return err
	}
	c.sink.emit2(asm.OpCopy, d, l)
	c.sink.emit2(op, d, r)
	c.eng.Seize(d, e)
	return nil
}

// lea leaves the effective address base + (offset - low) in register A.
// Constant offsets fold into a single materialization, which is also
// what makes offsets below zero reachable on a machine whose registers
// only hold non-negative values. Variable offsets go through the
// general form: materialize |base - low|, copy the offset into A, then
// adjust.
func (c *Codegen) lea(base, offset ir.Operand) error {
	arr, err := c.eng.ArrayAddress(base)
	if err != nil {
		return err
	}
	if cv, ok := offset.(ir.Const); ok {
		ea := new(big.Int).Sub(cv.Value, big.NewInt(arr.Low))
		ea.Add(ea, bigAddr(arr.Base))
		if ea.Sign() < 0 {
			return fmt.Errorf("index %s of array %s gives a negative effective address", cv.Value, arr.Name)
		}
		materializeConst(c.sink, asm.RegA, ea)
		return nil
	}

	offReg, err := c.eng.Load(offset)
	if err != nil {
		return err
	}
	diff := new(big.Int).Sub(bigAddr(arr.Base), big.NewInt(arr.Low))
	if diff.Sign() == 0 {
		c.sink.emit2(asm.OpCopy, asm.RegA, offReg)
		return nil
	}
	k, err := c.eng.Select()
	if err != nil {
		return err
	}
	c.eng.Reserve(k)
	adjust := asm.OpAdd
	if diff.Sign() < 0 {
		adjust = asm.OpSub
		diff.Neg(diff)
	}
	materializeConst(c.sink, k, diff)
	c.sink.emit2(asm.OpCopy, asm.RegA, offReg)
	c.sink.emit2(adjust, asm.RegA, k)
	return nil
}

// loadArray reads one array element into a fresh register bound to dst.
func (c *Codegen) loadArray(base, offset, dst ir.Operand) error {
	e, err := c.eng.entryFor(dst)
	if err != nil {
		return err
	}
	r, err := c.eng.Select()
	if err != nil {
		return err
	}
	c.eng.Reserve(r)
	if err := c.lea(base, offset); err != nil {
		return err
	}
	c.sink.emit1(asm.OpLoad, r)
	c.eng.Seize(r, e)
	return nil
}

// storeArray writes the source value into an array element.
func (c *Codegen) storeArray(src, base, offset ir.Operand) error {
	v, err := c.eng.Load(src)
	if err != nil {
		return err
	}
	if err := c.lea(base, offset); err != nil {
		return err
	}
	c.sink.emit1(asm.OpStore, v)
	return nil
}

// longMul multiplies by shift-and-add, exploiting HALF and JODD. The
// loop invariant is result + a*b == x*y:
//
//	loop: JZERO b, end
//	      JODD b, odd
//	rest: ADD a, a
//	      HALF b
//	      JUMP loop
//	odd:  ADD res, a
//	      JUMP rest
//	end:
func (c *Codegen) longMul(in *ir.Instruction) error {
	e, err := c.eng.entryFor(in.Dst)
	if err != nil {
		return err
	}
	a, err := c.loadCopy(in.Src1)
	if err != nil {
		return err
	}
	b, err := c.loadCopy(in.Src2)
	if err != nil {
		return err
	}
	res, err := c.eng.Select()
	if err != nil {
		return err
	}
	c.eng.Reserve(res)
	c.sink.emit2(asm.OpSub, res, res)

	loop := c.sink.FreshLabel("mul_loop")
	odd := c.sink.FreshLabel("mul_odd")
	rest := c.sink.FreshLabel("mul_rest")
	end := c.sink.FreshLabel("mul_end")

	c.sink.PlaceLabel(loop)
	c.sink.emitCond(asm.OpJzero, b, end)
	c.sink.emitCond(asm.OpJodd, b, odd)
	c.sink.PlaceLabel(rest)
	c.sink.emit2(asm.OpAdd, a, a)
	c.sink.emit1(asm.OpHalf, b)
	c.sink.emitJump(loop)
	c.sink.PlaceLabel(odd)
	c.sink.emit2(asm.OpAdd, res, a)
	c.sink.emitJump(rest)
	c.sink.PlaceLabel(end)

	c.eng.Seize(res, e)
	return nil
}

// longDiv divides by repeated doubling. The divisor is doubled until it
// exceeds the dividend (counting in k), then halved back down, building
// the quotient bit by bit; the dividend register ends up holding the
// remainder. A zero divisor yields zero for both quotient and
// remainder. The "divisor <= dividend" tests lean on saturation:
// (dividend+1) - divisor == 0 exactly when dividend < divisor.
func (c *Codegen) longDiv(in *ir.Instruction, wantRem bool) error {
	e, err := c.eng.entryFor(in.Dst)
	if err != nil {
		return err
	}
	dividend, err := c.loadCopy(in.Src1)
	if err != nil {
		return err
	}
	divisor, err := c.loadCopy(in.Src2)
	if err != nil {
		return err
	}
	quot, err := c.eng.Select()
	if err != nil {
		return err
	}
	c.eng.Reserve(quot)
	c.sink.emit2(asm.OpSub, quot, quot)
	k, err := c.eng.Select()
	if err != nil {
		return err
	}
	c.eng.Reserve(k)
	c.sink.emit2(asm.OpSub, k, k)
	t, err := c.eng.Select()
	if err != nil {
		return err
	}
	c.eng.Reserve(t)

	rangeL := c.sink.FreshLabel("div_range")
	shiftL := c.sink.FreshLabel("div_shift")
	zeroL := c.sink.FreshLabel("div_zero")
	endL := c.sink.FreshLabel("div_end")

	c.sink.emitCond(asm.OpJzero, divisor, zeroL)

	// Range phase: double the divisor past the dividend.
	c.sink.PlaceLabel(rangeL)
	c.sink.emit2(asm.OpCopy, t, dividend)
	c.sink.emit1(asm.OpInc, t)
	c.sink.emit2(asm.OpSub, t, divisor)
	c.sink.emitCond(asm.OpJzero, t, shiftL)
	c.sink.emit2(asm.OpAdd, divisor, divisor)
	c.sink.emit1(asm.OpInc, k)
	c.sink.emitJump(rangeL)

	// Division phase: halve back down k times, building the quotient.
	c.sink.PlaceLabel(shiftL)
	c.sink.emitCond(asm.OpJzero, k, endL)
	c.sink.emit1(asm.OpDec, k)
	c.sink.emit1(asm.OpHalf, divisor)
	c.sink.emit2(asm.OpAdd, quot, quot)
	c.sink.emit2(asm.OpCopy, t, dividend)
	c.sink.emit1(asm.OpInc, t)
	c.sink.emit2(asm.OpSub, t, divisor)
	c.sink.emitCond(asm.OpJzero, t, shiftL)
	c.sink.emit2(asm.OpSub, dividend, divisor)
	c.sink.emit1(asm.OpInc, quot)
	c.sink.emitJump(shiftL)

	c.sink.PlaceLabel(zeroL)
	c.sink.emit2(asm.OpSub, dividend, dividend)
	c.sink.PlaceLabel(endL)

	if wantRem {
		c.eng.Seize(dividend, e)
	} else {
		c.eng.Seize(quot, e)
	}
	return nil
}

// loadCopy loads an operand and copies it into a fresh reserved
// register the macro is free to mutate.
func (c *Codegen) loadCopy(op ir.Operand) (asm.Reg, error) {
	src, err := c.eng.Load(op)
	if err != nil {
		return 0, err
	}
	r, err := c.eng.Select()
	if err != nil {
		return 0, err
	}
	c.eng.Reserve(r)
	c.sink.emit2(asm.OpCopy, r, src)
	return r, nil
}

// Comparison jumps. Saturating subtraction carries the comparisons:
// l - r == 0 iff l <= r, and (l+1) - r == 0 iff l < r.

// jumpLe jumps to label when l <= r.
func (c *Codegen) jumpLe(l, r ir.Operand, label string) error {
	return c.compareJump(l, r, label, false)
}

// jumpGe jumps to label when l >= r.
func (c *Codegen) jumpGe(l, r ir.Operand, label string) error {
	return c.compareJump(r, l, label, false)
}

// jumpLt jumps to label when l < r.
func (c *Codegen) jumpLt(l, r ir.Operand, label string) error {
	return c.compareJump(l, r, label, true)
}

// jumpGt jumps to label when l > r.
func (c *Codegen) jumpGt(l, r ir.Operand, label string) error {
	return c.compareJump(r, l, label, true)
}

// jumpNe jumps to label when l != r, by testing l > r and l < r in
// turn. Equality is its fall-through.
func (c *Codegen) jumpNe(l, r ir.Operand, label string) error {
	if err := c.compareJump(r, l, label, true); err != nil {
		return err
	}
	return c.compareJump(l, r, label, true)
}

// compareJump emits cmp := l - r (strict: (l+1) - r) into a scratch
// register and a JZERO to the label. With strict unset the jump is
// taken when l <= r; with strict set, when l < r.
func (c *Codegen) compareJump(l, r ir.Operand, label string, strict bool) error {
	lr, err := c.eng.Load(l)
	if err != nil {
		return err
	}
	rr, err := c.eng.Load(r)
	if err != nil {
		return err
	}
	t, err := c.eng.Select()
	if err != nil {
		return err
	}
	c.eng.Reserve(t)
	c.sink.emit2(asm.OpCopy, t, lr)
	if strict {
		c.sink.emit1(asm.OpInc, t)
	}
	c.sink.emit2(asm.OpSub, t, rr)
	c.sink.emitCond(asm.OpJzero, t, label)
	return nil
}
