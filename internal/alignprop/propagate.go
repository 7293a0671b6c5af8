package alignprop

import (
	"github.com/roach88/invprop/internal/ir"
	"github.com/roach88/invprop/internal/scev"
)

// propagate visits every transitive user of f.Ptr except the matched
// condition and assumption markers.
func (r *run) propagate(f Fact) {
	u := r.u
	ref := r.se.Of(f.Ptr)
	align := r.se.Constant(64, int64(f.Align))

	visited := make(map[ir.ValueID]bool)
	var work []ir.ValueID
	for _, user := range u.Value(f.Ptr).Uses {
		if user == f.Cond || u.Value(user).IsAssumption() {
			continue
		}
		work = append(work, user)
	}

	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		v := u.Value(id)
		if v.Proc != r.proc {
			continue
		}

		r.apply(id, ref, align, f.Offset)

		for _, user := range v.Uses {
			if !visited[user] {
				work = append(work, user)
			}
		}
	}
}

func (r *run) apply(id ir.ValueID, ref, align, off scev.Expr) {
	v := r.u.Value(id)
	switch {
	case v.Op == ir.OpLoad:
		if n := r.refine(ref, align, off, v.PointerOperand()); n > uint64(v.Align) {
			r.strengthen(id, "load", n)
			r.res.Stats.LoadsChanged++
		}

	case v.Op == ir.OpStore:
		if n := r.refine(ref, align, off, v.PointerOperand()); n > uint64(v.Align) {
			r.strengthen(id, "store", n)
			r.res.Stats.StoresChanged++
		}

	case v.IsMemTransfer():
		// Both addresses share one annotation. A fact about one side is kept
		// so a later fact about the other side can complete it.
		dest := r.refine(ref, align, off, v.Dest())
		src := r.refine(ref, align, off, v.Source())
		altDest, altSrc := r.altDest[id], r.altSrc[id]
		n := combine(dest, src, altDest, altSrc)
		r.logger.Debug("mem transfer",
			"dest", dest, "alt_dest", altDest,
			"src", src, "alt_src", altSrc,
			"align", n)

		if n > uint64(v.Align) {
			r.strengthen(id, v.Callee, n)
			r.res.Stats.MemIntrinsicsChanged++
		}
		r.altDest[id] = dest
		r.altSrc[id] = src

	case v.IsMemIntrinsic():
		if n := r.refine(ref, align, off, v.Dest()); n > uint64(v.Align) {
			r.strengthen(id, v.Callee, n)
			r.res.Stats.MemIntrinsicsChanged++
		}
	}
}

// combine picks the largest of the four candidates that does not exceed some
// candidate for the other address.
func combine(newDest, newSrc, altDest, altSrc uint64) uint64 {
	var n uint64
	if newDest <= newSrc || newDest <= altSrc {
		n = max(n, newDest)
	}
	if altDest <= newSrc || altDest <= altSrc {
		n = max(n, altDest)
	}
	if newSrc <= newDest || newSrc <= altDest {
		n = max(n, newSrc)
	}
	if altSrc <= newDest || altSrc <= altDest {
		n = max(n, altSrc)
	}
	return n
}

func (r *run) strengthen(id ir.ValueID, kind string, align uint64) {
	u := r.u
	v := u.Value(id)
	remark := Remark{
		Procedure: u.Proc(r.proc).Name,
		Block:     u.Block(v.Block).Name,
		Value:     u.ValueString(id),
		Kind:      kind,
		Old:       v.Align,
		New:       uint32(align),
	}
	u.SetAlign(id, uint32(align))
	r.res.Remarks = append(r.res.Remarks, remark)
	r.res.Changed = true
}
