package ir

// DepthFirst returns the blocks of p reachable from its entry, in depth-first
// preorder. Successors are explored in terminator order.
func (u *Unit) DepthFirst(p ProcID) []BlockID {
	entry := u.Proc(p).Entry()
	if entry == 0 {
		return nil
	}

	type frame struct {
		block BlockID
		next  int
	}
	visited := map[BlockID]bool{entry: true}
	order := []BlockID{entry}
	stack := []frame{{block: entry}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		succs := u.Succs(top.block)
		if top.next >= len(succs) {
			stack = stack[:len(stack)-1]
			continue
		}
		s := succs[top.next]
		top.next++
		if visited[s] {
			continue
		}
		visited[s] = true
		order = append(order, s)
		stack = append(stack, frame{block: s})
	}
	return order
}

// LoopBlocks returns the blocks on a cycle through header: those reachable
// from header that can also reach it. The result is empty when header is not
// a loop header.
func (u *Unit) LoopBlocks(header BlockID) map[BlockID]bool {
	forward := u.reach(header, u.Succs)
	backward := u.reach(header, func(b BlockID) []BlockID { return u.Block(b).Preds })

	loop := make(map[BlockID]bool)
	for b := range forward {
		if backward[b] {
			loop[b] = true
		}
	}
	// header reaches itself trivially; keep it only when a real cycle exists
	if len(loop) == 1 {
		cyclic := false
		for _, s := range u.Succs(header) {
			if s == header {
				cyclic = true
			}
		}
		if !cyclic {
			return map[BlockID]bool{}
		}
	}
	return loop
}

func (u *Unit) reach(from BlockID, next func(BlockID) []BlockID) map[BlockID]bool {
	seen := map[BlockID]bool{from: true}
	work := []BlockID{from}
	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]
		for _, n := range next(b) {
			if !seen[n] {
				seen[n] = true
				work = append(work, n)
			}
		}
	}
	return seen
}

// StripPointerCasts follows bitcasts and all-zero GEPs back to the underlying
// pointer.
func (u *Unit) StripPointerCasts(id ValueID) ValueID {
	for id != NoValue {
		v := u.Value(id)
		switch {
		case v.Op == OpBitcast && u.Value(v.Operand(0)).Type.IsPtr():
			id = v.Operand(0)
		case v.Op == OpGEP && u.isZero(v.Operand(1)):
			id = v.Operand(0)
		default:
			return id
		}
	}
	return id
}

func (u *Unit) isZero(id ValueID) bool {
	if id == NoValue {
		return false
	}
	v := u.Value(id)
	return v.Op == OpConst && v.Const == 0
}
