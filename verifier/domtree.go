package verifier

import "github.com/wippyai/wasm2obj/ir"

// domTree holds the immediate dominators of the blocks reachable from the
// entry block, computed with the iterative algorithm of Cooper, Harvey and
// Kennedy over a reverse post-order.
type domTree struct {
	idom  map[ir.Block]ir.Block
	order map[ir.Block]int // reverse post-order number
	entry ir.Block
}

func successors(fn *ir.Function, blk ir.Block) []ir.Block {
	var succs []ir.Block
	for _, inst := range fn.Layout.BlockInsts(blk) {
		succs = append(succs, fn.BranchTargets(inst)...)
	}
	return succs
}

func computeDomTree(fn *ir.Function) *domTree {
	entry, _ := fn.Layout.EntryBlock()
	t := &domTree{
		idom:  make(map[ir.Block]ir.Block),
		order: make(map[ir.Block]int),
		entry: entry,
	}

	var post []ir.Block
	seen := map[ir.Block]bool{entry: true}
	preds := make(map[ir.Block][]ir.Block)

	type frame struct {
		blk   ir.Block
		succs []ir.Block
	}
	stack := []frame{{entry, successors(fn, entry)}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if len(top.succs) == 0 {
			post = append(post, top.blk)
			stack = stack[:len(stack)-1]
			continue
		}
		next := top.succs[0]
		top.succs = top.succs[1:]
		if !fn.Layout.IsBlockInserted(next) {
			continue
		}
		preds[next] = append(preds[next], top.blk)
		if !seen[next] {
			seen[next] = true
			stack = append(stack, frame{next, successors(fn, next)})
		}
	}

	rpo := make([]ir.Block, len(post))
	for i, blk := range post {
		rpo[len(post)-1-i] = blk
	}
	for i, blk := range rpo {
		t.order[blk] = i
	}

	t.idom[entry] = entry
	for changed := true; changed; {
		changed = false
		for _, blk := range rpo[1:] {
			var newIdom ir.Block
			found := false
			for _, p := range preds[blk] {
				if _, ok := t.idom[p]; !ok {
					continue
				}
				if !found {
					newIdom, found = p, true
					continue
				}
				newIdom = t.intersect(p, newIdom)
			}
			if !found {
				continue
			}
			if cur, ok := t.idom[blk]; !ok || cur != newIdom {
				t.idom[blk] = newIdom
				changed = true
			}
		}
	}
	return t
}

func (t *domTree) intersect(a, b ir.Block) ir.Block {
	for a != b {
		for t.order[a] > t.order[b] {
			a = t.idom[a]
		}
		for t.order[b] > t.order[a] {
			b = t.idom[b]
		}
	}
	return a
}

func (t *domTree) reachable(blk ir.Block) bool {
	_, ok := t.order[blk]
	return ok
}

// dominates reports whether every path from the entry to b passes through a.
func (t *domTree) dominates(a, b ir.Block) bool {
	if !t.reachable(b) {
		return false
	}
	for {
		if a == b {
			return true
		}
		if b == t.entry {
			return false
		}
		b = t.idom[b]
	}
}
