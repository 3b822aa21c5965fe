// Package asm models the instruction set of the target register machine:
// a handful of named registers, a memory of unbounded non-negative integer
// cells addressed through register A, and conditional jumps that can only
// test a register for zero or oddness.
package asm

import "fmt"

// Reg is a physical machine register.
type Reg uint8

const (
	// RegA is the address register: LOAD and STORE use its value as the
	// effective memory address. It is never part of the working pool.
	RegA Reg = iota
	RegB
	RegC
	RegD
	RegE
	RegF
	RegG
	RegH

	// NumRegs is the total register count including A.
	NumRegs = 8
)

func (r Reg) String() string {
	if r >= NumRegs {
		return fmt.Sprintf("?%d", uint8(r))
	}
	return string(rune('A' + r))
}

// Op is a machine opcode.
type Op uint8

const (
	OpGet Op = iota // GET r: read a number from input into r
	OpPut           // PUT r: write r to output
	OpLoad          // LOAD r: r = mem[A]
	OpStore         // STORE r: mem[A] = r
	OpCopy          // COPY d, s: d = s
	OpAdd           // ADD d, s: d = d + s
	OpSub           // SUB d, s: d = max(0, d - s)
	OpHalf          // HALF r: r = floor(r / 2)
	OpInc           // INC r: r = r + 1
	OpDec           // DEC r: r = max(0, r - 1)
	OpJump          // JUMP L
	OpJzero         // JZERO r, L: jump to L when r == 0
	OpJodd          // JODD r, L: jump to L when r is odd
	OpHalt          // HALT
)

var opNames = [...]string{
	OpGet:   "GET",
	OpPut:   "PUT",
	OpLoad:  "LOAD",
	OpStore: "STORE",
	OpCopy:  "COPY",
	OpAdd:   "ADD",
	OpSub:   "SUB",
	OpHalf:  "HALF",
	OpInc:   "INC",
	OpDec:   "DEC",
	OpJump:  "JUMP",
	OpJzero: "JZERO",
	OpJodd:  "JODD",
	OpHalt:  "HALT",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("op?%d", uint8(op))
}

// Instruction is one machine instruction. Which fields are meaningful
// depends on the opcode: Dst is the register operand of one-register
// instructions, Dst/Src the pair of COPY, ADD and SUB, and Label the
// target of the jump family.
type Instruction struct {
	Op    Op
	Dst   Reg
	Src   Reg
	Label string
}

func (in Instruction) String() string {
	switch in.Op {
	case OpHalt:
		return "HALT"
	case OpJump:
		return fmt.Sprintf("JUMP %s", in.Label)
	case OpJzero, OpJodd:
		return fmt.Sprintf("%s %s %s", in.Op, in.Dst, in.Label)
	case OpCopy, OpAdd, OpSub:
		return fmt.Sprintf("%s %s %s", in.Op, in.Dst, in.Src)
	default:
		return fmt.Sprintf("%s %s", in.Op, in.Dst)
	}
}

// LineKind discriminates the rows of a listing.
type LineKind uint8

const (
	LineInstr LineKind = iota
	LineLabel
	LineComment
)

// Line is one row of an assembly listing: an instruction, a label
// placement, or an informational comment.
type Line struct {
	Kind LineKind
	Inst Instruction // valid when Kind == LineInstr
	Name string      // label name when Kind == LineLabel
	Text string      // comment text when Kind == LineComment
}

func (l Line) String() string {
	switch l.Kind {
	case LineLabel:
		return l.Name + ":"
	case LineComment:
		return "; " + l.Text
	default:
		return "\t" + l.Inst.String()
	}
}
