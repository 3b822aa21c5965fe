package codegen

import (
	"fmt"

	"github.com/rmcomp/rmc/pkg/analysis"
	"github.com/rmcomp/rmc/pkg/asm"
	"github.com/rmcomp/rmc/pkg/ir"
	"github.com/rmcomp/rmc/pkg/semantic"
)

// Options control code generation.
type Options struct {
	// PoolSize is the number of working registers to allocate from,
	// counted from B upward. Zero means the full pool. The complete
	// macro set needs MinPoolSize registers; smaller pools are only
	// useful for exercising the exhaustion path.
	PoolSize int

	// Annotate mirrors each IR instruction into the listing as a
	// comment.
	Annotate bool
}

// Codegen owns the three pieces of the back-end: the assembly sink, the
// descriptor engine, and the macro set (methods on Codegen itself). The
// analysis results are passed in at construction and read only.
type Codegen struct {
	sink *Sink
	eng  *DescriptorEngine
	syms *semantic.SymbolTable
	live *analysis.Liveness
	doms analysis.DomSets
	opts Options
}

// New builds a code generator over a populated symbol table and
// precomputed analyses. Only liveness is consulted today; dominator
// sets are carried for block-level refinements.
func New(syms *semantic.SymbolTable, live *analysis.Liveness, doms analysis.DomSets, opts Options) *Codegen {
	if opts.PoolSize <= 0 || opts.PoolSize > MaxPoolSize {
		opts.PoolSize = MaxPoolSize
	}
	sink := NewSink()
	return &Codegen{
		sink: sink,
		eng:  newDescriptorEngine(sink, syms, workingPool[:opts.PoolSize]),
		syms: syms,
		live: live,
		doms: doms,
		opts: opts,
	}
}

// Compile is the one-call form: it builds the symbol table, runs the
// analyses, and generates code for the whole program.
func Compile(prog *ir.Program, opts Options) ([]asm.Line, error) {
	syms, err := semantic.Build(prog)
	if err != nil {
		return nil, err
	}
	live := analysis.ComputeLiveness(prog)
	doms := analysis.ComputeDominators(prog)
	return New(syms, live, doms, opts).Generate(prog)
}

// Generate emits the whole program, block by block. Each block's name
// becomes a label; every branch first flushes live-out values, and
// register bookkeeping starts from scratch on the far side.
func (c *Codegen) Generate(prog *ir.Program) ([]asm.Line, error) {
	for _, b := range prog.Blocks {
		if b.Terminator() == nil {
			return nil, fmt.Errorf("block %s does not end in a branch", b.Name)
		}
		c.sink.PlaceLabel(b.Name)
		c.eng.setLiveOut(c.live.LiveOut(b.Name))
		for i := range b.Instructions {
			in := &b.Instructions[i]
			c.eng.ClearSelection()
			if c.opts.Annotate {
				c.sink.Comment(in.String())
			}
			if err := c.genInstruction(in); err != nil {
				return nil, fmt.Errorf("block %s: %s: %w", b.Name, in, err)
			}
		}
	}
	return c.sink.Lines(), nil
}

// Listing returns the sink's output accumulated so far.
func (c *Codegen) Listing() []asm.Line {
	return c.sink.Lines()
}

func (c *Codegen) genInstruction(in *ir.Instruction) error {
	switch in.Op {
	case ir.OpGet:
		return c.get(in.Dst)
	case ir.OpPut:
		return c.put(in.Src1)
	case ir.OpMove:
		return c.move(in.Src1, in.Dst)
	case ir.OpLoadIndex:
		return c.loadArray(in.Base, in.Src2, in.Dst)
	case ir.OpStoreIndex:
		return c.storeArray(in.Src1, in.Base, in.Src2)
	case ir.OpAdd, ir.OpSub:
		return c.binary(in)
	case ir.OpMul:
		return c.longMul(in)
	case ir.OpDiv:
		return c.longDiv(in, false)
	case ir.OpRem:
		return c.longDiv(in, true)
	case ir.OpJump:
		c.eng.SaveVariables()
		c.sink.emitJump(in.Target)
		c.eng.ResetRegisters()
		return nil
	case ir.OpJumpIf:
		c.eng.SaveVariables()
		if err := c.condBranch(in); err != nil {
			return err
		}
		c.eng.ResetRegisters()
		return nil
	case ir.OpHalt:
		c.eng.SaveVariables()
		c.sink.Emit(asm.Instruction{Op: asm.OpHalt})
		c.eng.ResetRegisters()
		return nil
	}
	return fmt.Errorf("unhandled IR opcode %d", in.Op)
}

// condBranch lowers a two-way conditional. The general shape jumps to
// the false target on the negated comparison and falls into an
// unconditional jump to the true target; != is the exception, jumping
// to the true target directly on either strict inequality.
func (c *Codegen) condBranch(in *ir.Instruction) error {
	if in.Cond == ir.CondNe {
		if err := c.jumpNe(in.Src1, in.Src2, in.Target); err != nil {
			return err
		}
		c.sink.emitJump(in.Else)
		return nil
	}
	var err error
	switch in.Cond.Negate() {
	case ir.CondNe:
		err = c.jumpNe(in.Src1, in.Src2, in.Else)
	case ir.CondLe:
		err = c.jumpLe(in.Src1, in.Src2, in.Else)
	case ir.CondGe:
		err = c.jumpGe(in.Src1, in.Src2, in.Else)
	case ir.CondLt:
		err = c.jumpLt(in.Src1, in.Src2, in.Else)
	case ir.CondGt:
		err = c.jumpGt(in.Src1, in.Src2, in.Else)
	default:
		err = fmt.Errorf("unhandled comparison %s", in.Cond)
	}
	if err != nil {
		return err
	}
	c.sink.emitJump(in.Target)
	return nil
}
