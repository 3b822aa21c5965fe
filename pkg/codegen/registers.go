package codegen

import "github.com/rmcomp/rmc/pkg/asm"

// workingPool is the fixed set of registers the descriptor engine hands
// out, in the deterministic order Select uses to break ties. Register A
// stays out: it is the machine's implicit address register.
var workingPool = [...]asm.Reg{
	asm.RegB,
	asm.RegC,
	asm.RegD,
	asm.RegE,
	asm.RegF,
	asm.RegG,
	asm.RegH,
}

// MaxPoolSize is the working-pool cardinality of the target.
const MaxPoolSize = len(workingPool)

// MinPoolSize is the smallest pool the full macro set can run in: long
// division holds seven registers at once.
const MinPoolSize = 7
