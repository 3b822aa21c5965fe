// Package emulator executes target-machine listings: a reference
// interpreter with arbitrary-precision cells used by `rmc run` and by
// the behavioral tests of the code generator.
package emulator

import (
	"fmt"
	"math/big"

	"github.com/rmcomp/rmc/pkg/asm"
)

// InputFunc supplies the next value for a GET instruction.
type InputFunc func() (*big.Int, error)

// Machine is one register machine: eight registers, a memory of
// unbounded non-negative integer cells addressed through register A,
// and an instruction stream with resolved jump targets.
type Machine struct {
	regs    [asm.NumRegs]*big.Int
	mem     map[string]*big.Int
	insts   []asm.Instruction
	targets []int

	input   InputFunc
	outputs []*big.Int

	// StepLimit aborts runaway programs. Zero means the default.
	StepLimit int
	steps     int
}

const defaultStepLimit = 50_000_000

// New resolves a listing's labels and builds a machine ready to run.
func New(lines []asm.Line) (*Machine, error) {
	m := &Machine{mem: make(map[string]*big.Int)}
	for i := range m.regs {
		m.regs[i] = new(big.Int)
	}

	labels := make(map[string]int)
	for _, l := range lines {
		switch l.Kind {
		case asm.LineLabel:
			if _, dup := labels[l.Name]; dup {
				return nil, fmt.Errorf("duplicate label %s", l.Name)
			}
			labels[l.Name] = len(m.insts)
		case asm.LineInstr:
			m.insts = append(m.insts, l.Inst)
		}
	}

	m.targets = make([]int, len(m.insts))
	for i, in := range m.insts {
		m.targets[i] = -1
		switch in.Op {
		case asm.OpJump, asm.OpJzero, asm.OpJodd:
			t, ok := labels[in.Label]
			if !ok {
				return nil, fmt.Errorf("jump to undefined label %s", in.Label)
			}
			m.targets[i] = t
		}
	}
	return m, nil
}

// SetInput installs the source of GET values.
func (m *Machine) SetInput(f InputFunc) {
	m.input = f
}

// SetInputValues feeds GET from a fixed sequence.
func (m *Machine) SetInputValues(values []*big.Int) {
	i := 0
	m.input = func() (*big.Int, error) {
		if i >= len(values) {
			return nil, fmt.Errorf("input exhausted after %d value(s)", len(values))
		}
		v := values[i]
		i++
		return v, nil
	}
}

// SetInputInts feeds GET from a fixed sequence of small integers.
func (m *Machine) SetInputInts(values ...int64) {
	bigs := make([]*big.Int, len(values))
	for i, v := range values {
		bigs[i] = big.NewInt(v)
	}
	m.SetInputValues(bigs)
}

// Outputs returns the values PUT has produced, in order.
func (m *Machine) Outputs() []*big.Int {
	return m.outputs
}

// OutputInts returns the outputs as int64s; values out of range surface
// as their low bits, so it is only for tests over small numbers.
func (m *Machine) OutputInts() []int64 {
	res := make([]int64, len(m.outputs))
	for i, v := range m.outputs {
		res[i] = v.Int64()
	}
	return res
}

// Steps returns the number of instructions executed by the last Run.
func (m *Machine) Steps() int {
	return m.steps
}

// Reg returns a copy of a register's current value.
func (m *Machine) Reg(r asm.Reg) *big.Int {
	return new(big.Int).Set(m.regs[r])
}

// Mem returns a copy of the cell at the given address; absent cells
// read as zero.
func (m *Machine) Mem(addr *big.Int) *big.Int {
	if v, ok := m.mem[addr.String()]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// Run executes from the first instruction until HALT.
func (m *Machine) Run() error {
	limit := m.StepLimit
	if limit <= 0 {
		limit = defaultStepLimit
	}
	m.steps = 0
	pc := 0
	for {
		if pc < 0 || pc >= len(m.insts) {
			return fmt.Errorf("control fell off the end of the program at pc=%d", pc)
		}
		if m.steps >= limit {
			return fmt.Errorf("step limit of %d exceeded", limit)
		}
		m.steps++

		in := &m.insts[pc]
		switch in.Op {
		case asm.OpGet:
			if m.input == nil {
				return fmt.Errorf("GET with no input source at pc=%d", pc)
			}
			v, err := m.input()
			if err != nil {
				return err
			}
			if v.Sign() < 0 {
				return fmt.Errorf("negative input value %s", v)
			}
			m.regs[in.Dst].Set(v)
		case asm.OpPut:
			m.outputs = append(m.outputs, new(big.Int).Set(m.regs[in.Dst]))
		case asm.OpLoad:
			m.regs[in.Dst].Set(m.cell())
		case asm.OpStore:
			m.mem[m.regs[asm.RegA].String()] = new(big.Int).Set(m.regs[in.Dst])
		case asm.OpCopy:
			m.regs[in.Dst].Set(m.regs[in.Src])
		case asm.OpAdd:
			m.regs[in.Dst].Add(m.regs[in.Dst], m.regs[in.Src])
		case asm.OpSub:
			d := m.regs[in.Dst]
			d.Sub(d, m.regs[in.Src])
			if d.Sign() < 0 {
				d.SetInt64(0)
			}
		case asm.OpHalf:
			m.regs[in.Dst].Rsh(m.regs[in.Dst], 1)
		case asm.OpInc:
			m.regs[in.Dst].Add(m.regs[in.Dst], bigOne)
		case asm.OpDec:
			d := m.regs[in.Dst]
			if d.Sign() > 0 {
				d.Sub(d, bigOne)
			}
		case asm.OpJump:
			pc = m.targets[pc]
			continue
		case asm.OpJzero:
			if m.regs[in.Dst].Sign() == 0 {
				pc = m.targets[pc]
				continue
			}
		case asm.OpJodd:
			if m.regs[in.Dst].Bit(0) == 1 {
				pc = m.targets[pc]
				continue
			}
		case asm.OpHalt:
			return nil
		default:
			return fmt.Errorf("illegal opcode %d at pc=%d", in.Op, pc)
		}
		pc++
	}
}

func (m *Machine) cell() *big.Int {
	if v, ok := m.mem[m.regs[asm.RegA].String()]; ok {
		return v
	}
	return bigZero
}

var (
	bigZero = new(big.Int)
	bigOne  = big.NewInt(1)
)
