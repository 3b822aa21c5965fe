package asm

import (
	"bufio"
	"fmt"
	"strings"
)

// Format renders a listing as text, one row per line.
func Format(lines []Line) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Parse reads a textual listing back into lines. Comments (";" or "#")
// and blank lines are kept out of the result; labels end with ":".
func Parse(input string) ([]Line, error) {
	var lines []Line
	scanner := bufio.NewScanner(strings.NewReader(input))
	lineno := 0
	for scanner.Scan() {
		lineno++
		text := strings.TrimSpace(scanner.Text())
		if i := strings.IndexAny(text, ";#"); i >= 0 {
			text = strings.TrimSpace(text[:i])
		}
		if text == "" {
			continue
		}
		if strings.HasSuffix(text, ":") {
			name := strings.TrimSpace(strings.TrimSuffix(text, ":"))
			if name == "" {
				return nil, fmt.Errorf("line %d: empty label", lineno)
			}
			lines = append(lines, Line{Kind: LineLabel, Name: name})
			continue
		}
		inst, err := parseInstruction(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %v", lineno, err)
		}
		lines = append(lines, Line{Kind: LineInstr, Inst: inst})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func parseInstruction(text string) (Instruction, error) {
	fields := strings.Fields(text)
	op, ok := opByName(fields[0])
	if !ok {
		return Instruction{}, fmt.Errorf("unknown instruction %q", fields[0])
	}
	inst := Instruction{Op: op}
	want := operandCount(op)
	if len(fields)-1 != want {
		return Instruction{}, fmt.Errorf("%s takes %d operand(s), got %d", op, want, len(fields)-1)
	}
	switch op {
	case OpHalt:
	case OpJump:
		inst.Label = fields[1]
	case OpJzero, OpJodd:
		r, err := parseReg(fields[1])
		if err != nil {
			return Instruction{}, err
		}
		inst.Dst = r
		inst.Label = fields[2]
	case OpCopy, OpAdd, OpSub:
		d, err := parseReg(fields[1])
		if err != nil {
			return Instruction{}, err
		}
		s, err := parseReg(fields[2])
		if err != nil {
			return Instruction{}, err
		}
		inst.Dst, inst.Src = d, s
	default:
		r, err := parseReg(fields[1])
		if err != nil {
			return Instruction{}, err
		}
		inst.Dst = r
	}
	return inst, nil
}

func opByName(name string) (Op, bool) {
	upper := strings.ToUpper(name)
	for op, s := range opNames {
		if s == upper {
			return Op(op), true
		}
	}
	return 0, false
}

func operandCount(op Op) int {
	switch op {
	case OpHalt:
		return 0
	case OpGet, OpPut, OpLoad, OpStore, OpHalf, OpInc, OpDec, OpJump:
		return 1
	default:
		return 2
	}
}

func parseReg(s string) (Reg, error) {
	if len(s) == 1 && s[0] >= 'A' && s[0] < 'A'+NumRegs {
		return Reg(s[0] - 'A'), nil
	}
	if len(s) == 1 && s[0] >= 'a' && s[0] < 'a'+NumRegs {
		return Reg(s[0] - 'a'), nil
	}
	return 0, fmt.Errorf("unknown register %q", s)
}
