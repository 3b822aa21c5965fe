package analysis

import "github.com/rmcomp/rmc/pkg/ir"

// DomSets maps each block name to the set of blocks that dominate it.
// Every block dominates itself.
type DomSets map[string]map[string]bool

// Dominates reports whether a dominates b.
func (d DomSets) Dominates(a, b string) bool {
	return d[b][a]
}

// ComputeDominators runs the iterative set-intersection dominator
// algorithm over the program's blocks. The first block is the entry.
func ComputeDominators(prog *ir.Program) DomSets {
	if len(prog.Blocks) == 0 {
		return DomSets{}
	}
	entry := prog.Blocks[0].Name

	preds := make(map[string][]string)
	for _, b := range prog.Blocks {
		for _, succ := range b.Successors() {
			preds[succ] = append(preds[succ], b.Name)
		}
	}

	dom := DomSets{}
	all := map[string]bool{}
	for _, b := range prog.Blocks {
		all[b.Name] = true
	}
	for _, b := range prog.Blocks {
		if b.Name == entry {
			dom[b.Name] = map[string]bool{entry: true}
		} else {
			copied := make(map[string]bool, len(all))
			for name := range all {
				copied[name] = true
			}
			dom[b.Name] = copied
		}
	}

	for changed := true; changed; {
		changed = false
		for _, b := range prog.Blocks {
			if b.Name == entry {
				continue
			}
			next := intersectPreds(dom, preds[b.Name])
			next[b.Name] = true
			if !sameSet(next, dom[b.Name]) {
				dom[b.Name] = next
				changed = true
			}
		}
	}
	return dom
}

func intersectPreds(dom DomSets, preds []string) map[string]bool {
	res := map[string]bool{}
	first := true
	for _, p := range preds {
		if first {
			for name := range dom[p] {
				res[name] = true
			}
			first = false
			continue
		}
		for name := range res {
			if !dom[p][name] {
				delete(res, name)
			}
		}
	}
	return res
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for name := range a {
		if !b[name] {
			return false
		}
	}
	return true
}
