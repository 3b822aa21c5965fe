package codegen

import (
	"fmt"
	"math/big"

	"github.com/rmcomp/rmc/pkg/analysis"
	"github.com/rmcomp/rmc/pkg/asm"
	"github.com/rmcomp/rmc/pkg/ir"
	"github.com/rmcomp/rmc/pkg/semantic"
)

// Entry identifies a value tracked by the descriptor engine: a declared
// scalar or a compiler temporary. Constants are never tracked; they are
// rematerialized on demand.
type Entry interface {
	isEntry()
	operand() ir.Operand
	String() string
}

// VarEntry is a descriptor bound to a named scalar.
type VarEntry struct {
	Sym *semantic.Scalar
}

// TempEntry is a descriptor bound to an IR temporary.
type TempEntry struct {
	ID int
}

func (VarEntry) isEntry()  {}
func (TempEntry) isEntry() {}

func (e VarEntry) operand() ir.Operand  { return ir.Name{Ident: e.Sym.Name} }
func (e TempEntry) operand() ir.Operand { return ir.Temp{ID: e.ID} }

func (e VarEntry) String() string  { return e.Sym.Name }
func (e TempEntry) String() string { return fmt.Sprintf("r%d", e.ID) }

// slot records where an entry's value currently lives. A value may be
// in a register, in its home memory cell, or both; hasAddr says whether
// a home cell has been assigned at all (scalars always have one,
// temporaries get one on first spill).
type slot struct {
	reg     asm.Reg
	hasReg  bool
	inMem   bool
	addr    uint64
	hasAddr bool
}

// DescriptorEngine tracks, per IR value, which register or memory cell
// currently holds it, and hands out registers from the working pool.
// Register A is not part of the pool: it is clobbered by every address
// materialization and never caches a value.
type DescriptorEngine struct {
	sink *Sink
	syms *semantic.SymbolTable
	pool []asm.Reg

	entries   map[Entry]*slot
	regs      map[asm.Reg]Entry
	tempHomes map[int]uint64
	selected  map[asm.Reg]bool
	liveOut   analysis.OperandSet
}

func newDescriptorEngine(sink *Sink, syms *semantic.SymbolTable, pool []asm.Reg) *DescriptorEngine {
	return &DescriptorEngine{
		sink:      sink,
		syms:      syms,
		pool:      pool,
		entries:   make(map[Entry]*slot),
		regs:      make(map[asm.Reg]Entry),
		tempHomes: make(map[int]uint64),
		selected:  make(map[asm.Reg]bool),
	}
}

// setLiveOut installs the live-out set of the block being emitted.
func (d *DescriptorEngine) setLiveOut(set analysis.OperandSet) {
	d.liveOut = set
}

// ClearSelection empties the selection set. Called at the start of
// every IR instruction.
func (d *DescriptorEngine) ClearSelection() {
	for r := range d.selected {
		delete(d.selected, r)
	}
}

// Reserve marks a register as part of the in-progress macro's selection
// set so Select will not pick it as a spill victim.
func (d *DescriptorEngine) Reserve(r asm.Reg) {
	d.selected[r] = true
}

// entryFor resolves an operand to its descriptor entry. Constants and
// array names have no entry.
func (d *DescriptorEngine) entryFor(op ir.Operand) (Entry, error) {
	switch v := op.(type) {
	case ir.Name:
		if sym, ok := d.syms.Scalar(v.Ident); ok {
			return VarEntry{Sym: sym}, nil
		}
		if _, ok := d.syms.Array(v.Ident); ok {
			return nil, fmt.Errorf("array %s used as a value", v.Ident)
		}
		return nil, fmt.Errorf("undeclared symbol %s", v.Ident)
	case ir.Temp:
		return TempEntry{ID: v.ID}, nil
	}
	return nil, fmt.Errorf("operand %s has no descriptor", op)
}

// home returns the entry's home cell address, allocating one for a
// temporary that has never been spilled.
func (d *DescriptorEngine) home(e Entry) uint64 {
	switch v := e.(type) {
	case VarEntry:
		return v.Sym.Addr
	case TempEntry:
		addr, ok := d.tempHomes[v.ID]
		if !ok {
			addr = d.syms.AllocCell()
			d.tempHomes[v.ID] = addr
		}
		return addr
	}
	panic("unreachable")
}

// Load returns a register holding the operand's current value.
//
// Constants are materialized into a fresh scratch register that stays
// unbound; scalars and temporaries are returned from their current
// register when they have one, and otherwise loaded from their home
// cell. Either way the returned register joins the selection set.
func (d *DescriptorEngine) Load(op ir.Operand) (asm.Reg, error) {
	if c, ok := op.(ir.Const); ok {
		if c.Value.Sign() < 0 {
			return 0, fmt.Errorf("negative constant %s used as a value", c.Value)
		}
		r, err := d.Select()
		if err != nil {
			return 0, err
		}
		d.selected[r] = true
		materializeConst(d.sink, r, c.Value)
		return r, nil
	}

	e, err := d.entryFor(op)
	if err != nil {
		return 0, err
	}
	if sl, ok := d.entries[e]; ok && sl.hasReg {
		d.selected[sl.reg] = true
		return sl.reg, nil
	}

	// Not in a register: fetch from the home cell. A temporary that has
	// never been written has no home to fetch from.
	if te, ok := e.(TempEntry); ok {
		if _, spilled := d.tempHomes[te.ID]; !spilled {
			return 0, fmt.Errorf("temporary r%d read before it is written", te.ID)
		}
	}
	addr := d.home(e)
	r, err := d.Select()
	if err != nil {
		return 0, err
	}
	d.selected[r] = true
	materializeAddr(d.sink, addr)
	d.sink.emit1(asm.OpLoad, r)
	d.bind(r, e, &slot{reg: r, hasReg: true, inMem: true, addr: addr, hasAddr: true})
	return r, nil
}

// Select picks a register from the working pool: a free one when
// available, otherwise a victim. Victims whose value is already backed
// by memory are preferred since freeing them emits nothing; a victim
// outside the selection set is spilled to its home as a last resort.
func (d *DescriptorEngine) Select() (asm.Reg, error) {
	for _, r := range d.pool {
		if d.regs[r] == nil && !d.selected[r] {
			return r, nil
		}
	}
	for _, r := range d.pool {
		e := d.regs[r]
		if e == nil || d.selected[r] {
			continue
		}
		if sl := d.entries[e]; sl.inMem {
			sl.hasReg = false
			delete(d.regs, r)
			return r, nil
		}
	}
	for _, r := range d.pool {
		e := d.regs[r]
		if e == nil || d.selected[r] {
			continue
		}
		d.spill(r, e)
		delete(d.regs, r)
		return r, nil
	}
	return 0, fmt.Errorf("register pool exhausted: all %d registers are reserved", len(d.pool))
}

// spill stores the register's value to the bound entry's home cell and
// drops the register location.
func (d *DescriptorEngine) spill(r asm.Reg, e Entry) {
	addr := d.home(e)
	materializeAddr(d.sink, addr)
	d.sink.emit1(asm.OpStore, r)
	sl := d.entries[e]
	sl.inMem = true
	sl.addr = addr
	sl.hasAddr = true
	sl.hasReg = false
}

// Seize binds a register to an entry, evicting both previous bindings:
// any other register holding the entry simply loses the binding (the
// seized register is now the live copy), and the register's previous
// entry falls back to its memory location, spilled first if it had none
// and is still live out of the current block.
func (d *DescriptorEngine) Seize(r asm.Reg, e Entry) {
	if old := d.regs[r]; old != nil && old != e {
		osl := d.entries[old]
		if !osl.inMem && d.liveOut.Contains(old.operand()) {
			d.spill(r, old)
		} else {
			osl.hasReg = false
		}
		delete(d.regs, r)
	}
	if sl, ok := d.entries[e]; ok && sl.hasReg && sl.reg != r {
		delete(d.regs, sl.reg)
	}

	sl := d.entries[e]
	if sl == nil {
		sl = &slot{}
		d.entries[e] = sl
	}
	sl.reg = r
	sl.hasReg = true
	// The register holds a fresh value; any memory copy is stale now.
	sl.inMem = false
	d.regs[r] = e
	d.selected[r] = true
}

// SaveVariables flushes every live-out value that resides only in a
// register to its home cell. Dead values are not stored; their register
// bindings stay in place until ResetRegisters, so a conditional branch
// can still read its own operands. Called at branch points, before the
// branch is emitted.
func (d *DescriptorEngine) SaveVariables() {
	for _, r := range d.pool {
		e := d.regs[r]
		if e == nil {
			continue
		}
		sl := d.entries[e]
		if d.liveOut.Contains(e.operand()) && !sl.inMem {
			addr := d.home(e)
			materializeAddr(d.sink, addr)
			d.sink.emit1(asm.OpStore, r)
			sl.inMem = true
			sl.addr = addr
			sl.hasAddr = true
		}
	}
}

// ResetRegisters clears all register bindings. Every surviving value is
// afterwards believed to reside only in memory. Called immediately
// after a branch is emitted.
func (d *DescriptorEngine) ResetRegisters() {
	d.regs = make(map[asm.Reg]Entry)
	d.entries = make(map[Entry]*slot)
	for r := range d.selected {
		delete(d.selected, r)
	}
}

// ArrayAddress resolves an array base for indexed access.
func (d *DescriptorEngine) ArrayAddress(base ir.Operand) (*semantic.Array, error) {
	name, ok := base.(ir.Name)
	if !ok {
		return nil, fmt.Errorf("indexed access needs an array name, got %s", base)
	}
	arr, ok := d.syms.Array(name.Ident)
	if !ok {
		if _, isScalar := d.syms.Scalar(name.Ident); isScalar {
			return nil, fmt.Errorf("scalar %s used as an array", name.Ident)
		}
		return nil, fmt.Errorf("undeclared array %s", name.Ident)
	}
	return arr, nil
}

func (d *DescriptorEngine) bind(r asm.Reg, e Entry, sl *slot) {
	if old := d.regs[r]; old != nil {
		d.entries[old].hasReg = false
	}
	if prev, ok := d.entries[e]; ok && prev.hasReg && prev.reg != r {
		delete(d.regs, prev.reg)
	}
	d.entries[e] = sl
	d.regs[r] = e
}

// checkConsistent validates the descriptor invariants: each pool
// register bound to at most one entry, and register locations mirrored
// by the inverse map. Used by tests after every emitted instruction.
func (d *DescriptorEngine) checkConsistent() error {
	seen := make(map[Entry]asm.Reg)
	for _, r := range d.pool {
		e := d.regs[r]
		if e == nil {
			continue
		}
		if prev, dup := seen[e]; dup {
			return fmt.Errorf("entry %s bound to both %s and %s", e, prev, r)
		}
		seen[e] = r
		sl := d.entries[e]
		if sl == nil || !sl.hasReg || sl.reg != r {
			return fmt.Errorf("register %s bound to %s but the slot disagrees", r, e)
		}
	}
	for e, sl := range d.entries {
		if sl.hasReg && d.regs[sl.reg] != e {
			return fmt.Errorf("slot of %s claims %s but the register map disagrees", e, sl.reg)
		}
	}
	return nil
}

// backed reports whether the operand currently has a valid memory
// location. Used by tests to check home-backing at branch points.
func (d *DescriptorEngine) backed(op ir.Operand) bool {
	e, err := d.entryFor(op)
	if err != nil {
		return false
	}
	if sl, ok := d.entries[e]; ok {
		return sl.inMem
	}
	// No slot at all: the value is at its home (a scalar's stable cell,
	// or a temporary's previously assigned spill cell).
	if te, ok := e.(TempEntry); ok {
		_, spilled := d.tempHomes[te.ID]
		return spilled
	}
	return true
}

// bigAddr converts a cell address for compile-time address arithmetic.
func bigAddr(addr uint64) *big.Int {
	return new(big.Int).SetUint64(addr)
}
