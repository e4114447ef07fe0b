package optimizer

import "testing"

func TestMaxRectsFirstInsertAtOrigin(t *testing.T) {
	bin := newMaxRects(256, 256, false)
	cell, ok := bin.insert(64, 32)
	if !ok {
		t.Fatal("insert into empty bin failed")
	}
	if cell.x != 0 || cell.y != 0 || cell.w != 64 || cell.h != 32 {
		t.Errorf("got cell %+v, want {0 0 64 32}", cell)
	}
}

func TestMaxRectsNoOverlap(t *testing.T) {
	bin := newMaxRects(128, 128, false)
	sizes := [][2]int{{64, 64}, {64, 64}, {64, 64}, {64, 64}}

	var cells []rectangle
	for i, s := range sizes {
		cell, ok := bin.insert(s[0], s[1])
		if !ok {
			t.Fatalf("insert %d failed", i)
		}
		if cell.x < 0 || cell.y < 0 || cell.x+cell.w > 128 || cell.y+cell.h > 128 {
			t.Errorf("cell %d out of bounds: %+v", i, cell)
		}
		cells = append(cells, cell)
	}
	for i := range cells {
		for j := i + 1; j < len(cells); j++ {
			if cells[i].intersects(cells[j]) {
				t.Errorf("cells %d and %d overlap: %+v %+v", i, j, cells[i], cells[j])
			}
		}
	}

	// The bin is exactly full now.
	if _, ok := bin.insert(1, 1); ok {
		t.Error("insert into full bin succeeded")
	}
}

func TestMaxRectsTooLarge(t *testing.T) {
	bin := newMaxRects(100, 100, false)
	if _, ok := bin.insert(101, 10); ok {
		t.Error("oversized insert succeeded")
	}
}

func TestMaxRectsRotation(t *testing.T) {
	// A 20x80 piece only fits the 100x40 bin rotated.
	noRotate := newMaxRects(100, 40, false)
	if _, ok := noRotate.insert(20, 80); ok {
		t.Error("insert without rotation should fail")
	}

	rotate := newMaxRects(100, 40, true)
	cell, ok := rotate.insert(20, 80)
	if !ok {
		t.Fatal("insert with rotation failed")
	}
	if cell.w != 80 || cell.h != 20 {
		t.Errorf("got cell %dx%d, want rotated 80x20", cell.w, cell.h)
	}
}

func TestMaxRectsBestShortSideFit(t *testing.T) {
	bin := newMaxRects(100, 100, false)
	// Leave a 100x40 strip and a 30x60 pocket.
	if _, ok := bin.insert(70, 60); !ok {
		t.Fatal("setup insert failed")
	}
	// A 30x60 piece fits the pocket exactly; BSSF must pick it over
	// the wider strip.
	cell, ok := bin.insert(30, 60)
	if !ok {
		t.Fatal("insert failed")
	}
	if cell.x != 70 || cell.y != 0 {
		t.Errorf("got cell at (%d,%d), want exact pocket at (70,0)", cell.x, cell.y)
	}
}
