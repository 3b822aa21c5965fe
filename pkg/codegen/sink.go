// Package codegen lowers basic-block IR into instructions for the target
// register machine. One Codegen owns the assembly sink, the descriptor
// engine and the macro set; a single Generate call drives all three.
package codegen

import (
	"fmt"

	"github.com/rmcomp/rmc/pkg/asm"
)

// Sink is the append-only log of emitted instructions, labels and
// comments. It performs no semantic validation.
type Sink struct {
	lines    []asm.Line
	labelSeq map[string]int
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{labelSeq: make(map[string]int)}
}

// Emit appends a machine instruction.
func (s *Sink) Emit(in asm.Instruction) {
	s.lines = append(s.lines, asm.Line{Kind: asm.LineInstr, Inst: in})
}

// emit1 appends a one-register instruction.
func (s *Sink) emit1(op asm.Op, r asm.Reg) {
	s.Emit(asm.Instruction{Op: op, Dst: r})
}

// emit2 appends a two-register instruction.
func (s *Sink) emit2(op asm.Op, d, src asm.Reg) {
	s.Emit(asm.Instruction{Op: op, Dst: d, Src: src})
}

// emitJump appends an unconditional jump.
func (s *Sink) emitJump(label string) {
	s.Emit(asm.Instruction{Op: asm.OpJump, Label: label})
}

// emitCond appends a JZERO or JODD.
func (s *Sink) emitCond(op asm.Op, r asm.Reg, label string) {
	s.Emit(asm.Instruction{Op: op, Dst: r, Label: label})
}

// PlaceLabel records a label at the current position.
func (s *Sink) PlaceLabel(name string) {
	s.lines = append(s.lines, asm.Line{Kind: asm.LineLabel, Name: name})
}

// Comment records an informational comment at the current position.
func (s *Sink) Comment(text string) {
	s.lines = append(s.lines, asm.Line{Kind: asm.LineComment, Text: text})
}

// FreshLabel returns a globally unique label formed from the prefix and
// a per-prefix monotonically increasing counter.
func (s *Sink) FreshLabel(prefix string) string {
	n := s.labelSeq[prefix]
	s.labelSeq[prefix]++
	return fmt.Sprintf("%s_%d", prefix, n)
}

// Lines returns the listing accumulated so far.
func (s *Sink) Lines() []asm.Line {
	return s.lines
}
