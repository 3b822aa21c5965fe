// Package analysis computes the block-level facts the code generator
// consumes as read-only maps: per-block live-out sets and per-block
// dominator sets.
package analysis

import "github.com/rmcomp/rmc/pkg/ir"

// OperandSet is a set of scalar and temporary operands. Constants and
// array bases never appear in it: constants are rematerialized on
// demand and array contents live in memory only.
type OperandSet map[ir.Operand]struct{}

func (s OperandSet) add(op ir.Operand) {
	if tracked(op) {
		s[op] = struct{}{}
	}
}

// Contains reports membership.
func (s OperandSet) Contains(op ir.Operand) bool {
	_, ok := s[op]
	return ok
}

func tracked(op ir.Operand) bool {
	switch op.(type) {
	case ir.Name, ir.Temp:
		return true
	}
	return false
}

// Liveness holds per-block live-in and live-out operand sets.
type Liveness struct {
	liveIn  map[string]OperandSet
	liveOut map[string]OperandSet
}

// LiveOut returns the set of operands that may be read by some
// successor of the named block.
func (l *Liveness) LiveOut(block string) OperandSet {
	return l.liveOut[block]
}

// LiveIn returns the set of operands live on entry to the named block.
func (l *Liveness) LiveIn(block string) OperandSet {
	return l.liveIn[block]
}

// ComputeLiveness runs the standard backward dataflow over basic
// blocks until the live-in/live-out sets reach a fixpoint.
func ComputeLiveness(prog *ir.Program) *Liveness {
	l := &Liveness{
		liveIn:  make(map[string]OperandSet),
		liveOut: make(map[string]OperandSet),
	}
	use := make(map[string]OperandSet)
	def := make(map[string]OperandSet)
	for _, b := range prog.Blocks {
		u, d := useDef(b)
		use[b.Name], def[b.Name] = u, d
		l.liveIn[b.Name] = OperandSet{}
		l.liveOut[b.Name] = OperandSet{}
	}

	for changed := true; changed; {
		changed = false
		for i := len(prog.Blocks) - 1; i >= 0; i-- {
			b := prog.Blocks[i]
			out := OperandSet{}
			for _, succ := range b.Successors() {
				for op := range l.liveIn[succ] {
					out[op] = struct{}{}
				}
			}
			in := OperandSet{}
			for op := range use[b.Name] {
				in[op] = struct{}{}
			}
			for op := range out {
				if !def[b.Name].Contains(op) {
					in[op] = struct{}{}
				}
			}
			if len(out) != len(l.liveOut[b.Name]) || len(in) != len(l.liveIn[b.Name]) {
				changed = true
			}
			l.liveOut[b.Name] = out
			l.liveIn[b.Name] = in
		}
	}
	return l
}

// useDef computes the operands a block reads before writing (use) and
// the operands it writes (def), in instruction order.
func useDef(b *ir.BasicBlock) (use, def OperandSet) {
	use, def = OperandSet{}, OperandSet{}
	read := func(op ir.Operand) {
		if op != nil && tracked(op) && !def.Contains(op) {
			use.add(op)
		}
	}
	write := func(op ir.Operand) {
		if op != nil {
			def.add(op)
		}
	}
	for i := range b.Instructions {
		in := &b.Instructions[i]
		switch in.Op {
		case ir.OpGet:
			write(in.Dst)
		case ir.OpPut:
			read(in.Src1)
		case ir.OpMove:
			read(in.Src1)
			write(in.Dst)
		case ir.OpLoadIndex:
			read(in.Src2)
			write(in.Dst)
		case ir.OpStoreIndex:
			read(in.Src1)
			read(in.Src2)
		case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpRem:
			read(in.Src1)
			read(in.Src2)
			write(in.Dst)
		case ir.OpJumpIf:
			read(in.Src1)
			read(in.Src2)
		}
	}
	return use, def
}
