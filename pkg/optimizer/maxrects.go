package optimizer

// Maximal-rectangles bin packing with the Best-Short-Side-Fit
// placement heuristic. Single bin; the caller handles retry with
// scaled-down inputs when insertion fails.

type rectangle struct {
	x, y, w, h int
}

func (r rectangle) contains(o rectangle) bool {
	return o.x >= r.x && o.y >= r.y &&
		o.x+o.w <= r.x+r.w && o.y+o.h <= r.y+r.h
}

func (r rectangle) intersects(o rectangle) bool {
	return r.x < o.x+o.w && o.x < r.x+r.w &&
		r.y < o.y+o.h && o.y < r.y+r.h
}

type maxRects struct {
	width       int
	height      int
	allowRotate bool
	free        []rectangle
}

func newMaxRects(width, height int, allowRotate bool) *maxRects {
	return &maxRects{
		width:       width,
		height:      height,
		allowRotate: allowRotate,
		free:        []rectangle{{0, 0, width, height}},
	}
}

// insert places a w*h rectangle at the position with the best (i.e.
// smallest) leftover short side among all free rectangles. Returns
// false when no free rectangle can hold it.
func (p *maxRects) insert(w, h int) (rectangle, bool) {
	best := rectangle{}
	bestShort := int(^uint(0) >> 1)
	bestLong := bestShort
	found := false

	consider := func(f rectangle, rw, rh int) {
		if f.w < rw || f.h < rh {
			return
		}
		leftoverH := f.w - rw
		leftoverV := f.h - rh
		short, long := leftoverH, leftoverV
		if short > long {
			short, long = long, short
		}
		if short < bestShort || (short == bestShort && long < bestLong) {
			best = rectangle{f.x, f.y, rw, rh}
			bestShort, bestLong = short, long
			found = true
		}
	}

	for _, f := range p.free {
		consider(f, w, h)
		if p.allowRotate && w != h {
			consider(f, h, w)
		}
	}
	if !found {
		return rectangle{}, false
	}
	p.place(best)
	return best, true
}

// place carves the used rectangle out of every overlapping free
// rectangle, keeping the maximal leftover pieces, then drops free
// rectangles contained in others.
func (p *maxRects) place(used rectangle) {
	var next []rectangle
	for _, f := range p.free {
		if !f.intersects(used) {
			next = append(next, f)
			continue
		}
		if used.x > f.x {
			next = append(next, rectangle{f.x, f.y, used.x - f.x, f.h})
		}
		if used.x+used.w < f.x+f.w {
			next = append(next, rectangle{used.x + used.w, f.y, f.x + f.w - (used.x + used.w), f.h})
		}
		if used.y > f.y {
			next = append(next, rectangle{f.x, f.y, f.w, used.y - f.y})
		}
		if used.y+used.h < f.y+f.h {
			next = append(next, rectangle{f.x, used.y + used.h, f.w, f.y + f.h - (used.y + used.h)})
		}
	}
	p.free = pruneContained(next)
}

func pruneContained(rects []rectangle) []rectangle {
	out := make([]rectangle, 0, len(rects))
	for i, r := range rects {
		kept := true
		for j, o := range rects {
			if i == j {
				continue
			}
			if o.contains(r) && !(r == o && i < j) {
				kept = false
				break
			}
		}
		if kept {
			out = append(out, r)
		}
	}
	return out
}
