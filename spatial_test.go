package main

import (
	"math/rand"
	"testing"
)

// testBox is a bare Collider for index tests
type testBox struct {
	id  EntityID
	box AABB
}

func (b *testBox) ColliderID() EntityID { return b.id }
func (b *testBox) AABB() AABB           { return b.box }

func newTestBox(id EntityID, x, y, size float64, active bool) *testBox {
	half := size / 2
	return &testBox{id: id, box: AABB{
		Active: active,
		Min:    Vector{x - half, y - half},
		Max:    Vector{x + half, y + half},
	}}
}

func pairKey(a, b EntityID) [2]EntityID {
	if a > b {
		a, b = b, a
	}
	return [2]EntityID{a, b}
}

func pairSet(pairs []Pair) map[[2]EntityID]int {
	set := make(map[[2]EntityID]int)
	for _, p := range pairs {
		set[pairKey(p.A.ColliderID(), p.B.ColliderID())]++
	}
	return set
}

// checkPlacement verifies every handle points at the right cell and slots
func checkPlacement(t *testing.T, s *SpatialHash) {
	t.Helper()
	if len(s.handles) != len(s.objects) {
		t.Fatalf("expected %d handles, got %d", len(s.objects), len(s.handles))
	}
	for i, obj := range s.objects {
		h := s.handles[obj.ColliderID()]
		if h == nil {
			t.Fatalf("object %d has no handle", obj.ColliderID())
		}
		if h.globalIndex != i {
			t.Errorf("object %d: expected global index %d, got %d", obj.ColliderID(), i, h.globalIndex)
		}
		box := obj.AABB()
		if want := h.grid.toHash(box.Min.X, box.Min.Y); h.hash != want {
			t.Errorf("object %d: expected hash %d, got %d", obj.ColliderID(), want, h.hash)
		}
		cell := h.grid.cells[h.hash]
		if h.cellIndex >= len(cell.objects) || cell.objects[h.cellIndex] != obj {
			t.Errorf("object %d: cell slot %d does not hold it", obj.ColliderID(), h.cellIndex)
		}
		if h.grid.objects[h.gridIndex] != obj {
			t.Errorf("object %d: grid slot %d does not hold it", obj.ColliderID(), h.gridIndex)
		}
	}
}

func TestSpatialInsertRemoveRoundTrip(t *testing.T) {
	s := NewSpatialHash()
	a := newTestBox(1, 100, 100, 10, true)
	b := newTestBox(2, 105, 100, 10, true)
	s.Insert(a)

	before := s.Len()
	s.Insert(b)
	if !s.Contains(2) {
		t.Fatal("expected box 2 to be indexed")
	}
	s.Remove(b)

	if s.Len() != before {
		t.Errorf("expected %d objects after round trip, got %d", before, s.Len())
	}
	if s.Contains(2) {
		t.Error("removed box should have no handle")
	}
	checkPlacement(t, s)

	for _, p := range s.QueryPairs() {
		if p.A.ColliderID() == 2 || p.B.ColliderID() == 2 {
			t.Error("removed box should not appear in pairs")
		}
	}
}

func TestSpatialRemovePatchesMovedHandles(t *testing.T) {
	s := NewSpatialHash()
	boxes := make([]*testBox, 0, 10)
	for i := 1; i <= 10; i++ {
		b := newTestBox(EntityID(i), 50, 50, 10, true) // all in one cell
		boxes = append(boxes, b)
		s.Insert(b)
	}
	s.Remove(boxes[0])
	s.Remove(boxes[4])
	checkPlacement(t, s)
	if s.Len() != 8 {
		t.Errorf("expected 8 objects, got %d", s.Len())
	}
}

func TestSpatialRemoveUnknownPanics(t *testing.T) {
	s := NewSpatialHash()
	defer func() {
		if recover() == nil {
			t.Error("expected removing an unindexed object to panic")
		}
	}()
	s.Remove(newTestBox(7, 0, 0, 1, true))
}

func TestSpatialInsertTwicePanics(t *testing.T) {
	s := NewSpatialHash()
	b := newTestBox(1, 0, 0, 4, true)
	s.Insert(b)
	defer func() {
		if recover() == nil {
			t.Error("expected double insert to panic")
		}
	}()
	s.Insert(b)
}

func TestSpatialQueryMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewSpatialHash()

	var boxes []*testBox
	sizes := []float64{2, 5, 12, 30, 80}
	for i := 1; i <= 300; i++ {
		size := sizes[rng.Intn(len(sizes))]
		b := newTestBox(EntityID(i),
			rng.Float64()*600-100, rng.Float64()*600-100,
			size, rng.Intn(3) > 0)
		boxes = append(boxes, b)
		s.Insert(b)
	}
	checkPlacement(t, s)
	if len(s.grids) < 2 {
		t.Fatalf("expected several grids for mixed sizes, got %d", len(s.grids))
	}

	got := pairSet(s.QueryPairs())

	// soundness: every overlapping pair with an active side is reported
	for i, a := range boxes {
		for _, b := range boxes[i+1:] {
			if a.box.Overlaps(b.box) {
				if got[pairKey(a.id, b.id)] == 0 {
					t.Errorf("missing pair %d/%d", a.id, b.id)
				}
			}
		}
	}

	// containment: nothing reported that does not overlap
	byID := make(map[EntityID]*testBox, len(boxes))
	for _, b := range boxes {
		byID[b.id] = b
	}
	for key := range got {
		a, b := byID[key[0]], byID[key[1]]
		if !a.box.Active && !b.box.Active {
			t.Errorf("inert pair %d/%d reported", a.id, b.id)
		}
		if !a.box.Overlaps(b.box) {
			t.Errorf("pair %d/%d does not overlap", a.id, b.id)
		}
	}
}

func TestSpatialInactivePairNeverReported(t *testing.T) {
	s := NewSpatialHash()
	s.Insert(newTestBox(1, 10, 10, 10, false))
	s.Insert(newTestBox(2, 12, 10, 10, false))
	if pairs := s.QueryPairs(); len(pairs) != 0 {
		t.Errorf("expected no pairs for two inactive boxes, got %d", len(pairs))
	}

	s.Insert(newTestBox(3, 11, 11, 10, true))
	set := pairSet(s.QueryPairs())
	if set[pairKey(1, 3)] == 0 || set[pairKey(2, 3)] == 0 {
		t.Error("expected the active box to pair with both inactive ones")
	}
	if set[pairKey(1, 2)] != 0 {
		t.Error("inactive pair should still be skipped")
	}
}

func TestSpatialGrowthPreservesMembership(t *testing.T) {
	s := NewSpatialHash()
	const n = 40 // more than 256 cells * 1/8
	for i := 1; i <= n; i++ {
		s.Insert(newTestBox(EntityID(i), float64(i)*13, float64(i%7)*17, 4, true))
	}
	if len(s.grids) != 1 {
		t.Fatalf("expected one grid for equal sizes, got %d", len(s.grids))
	}
	g := s.grids[0]
	if g.rowColumnCount != 32 {
		t.Errorf("expected grid to double to 32 columns, got %d", g.rowColumnCount)
	}
	if len(g.objects) != n || s.Len() != n {
		t.Errorf("expected %d members after growth, got grid %d index %d", n, len(g.objects), s.Len())
	}
	checkPlacement(t, s)

	seen := make(map[EntityID]int)
	for _, ci := range g.occupied {
		for _, obj := range g.cells[ci].objects {
			seen[obj.ColliderID()]++
		}
	}
	for i := 1; i <= n; i++ {
		if seen[EntityID(i)] != 1 {
			t.Errorf("object %d present %d times after growth", i, seen[EntityID(i)])
		}
	}
}

func TestSpatialUpdateRehashesMovedObjects(t *testing.T) {
	s := NewSpatialHash()
	a := newTestBox(1, 10, 10, 4, true)
	b := newTestBox(2, 500, 500, 4, true)
	s.Insert(a)
	s.Insert(b)

	if len(s.QueryPairs()) != 0 {
		t.Fatal("expected no pairs while apart")
	}

	*b = *newTestBox(2, 12, 11, 4, true)
	s.Update()
	checkPlacement(t, s)

	set := pairSet(s.QueryPairs())
	if set[pairKey(1, 2)] == 0 {
		t.Error("expected moved boxes to pair after update")
	}
}

func TestSpatialNegativeCoordinatesMirror(t *testing.T) {
	s := NewSpatialHash()
	a := newTestBox(1, -1, -1, 4, true)
	b := newTestBox(2, 2.5, 2.5, 4, true)
	s.Insert(a)
	s.Insert(b)
	checkPlacement(t, s)

	g := s.grids[0]
	if h := g.toHash(-0.1, -0.1); h != (g.rowColumnCount-1)*(g.rowColumnCount+1) {
		t.Errorf("expected just-negative point in the last cell, got %d", h)
	}
	if set := pairSet(s.QueryPairs()); set[pairKey(1, 2)] == 0 {
		t.Error("expected boxes straddling the origin to pair")
	}
}

func TestSpatialReindexMovesToMatchingGrid(t *testing.T) {
	s := NewSpatialHash()
	small := newTestBox(1, 0, 0, 4, true)
	s.Insert(small)
	big := newTestBox(2, 100, 100, 4, true)
	s.Insert(big)

	*big = *newTestBox(2, 100, 100, 64, true)
	s.Reindex(big)
	checkPlacement(t, s)

	h := s.handles[2]
	if h.grid.cellSize <= 64 {
		t.Errorf("expected reindexed box in a grid coarser than 64, got %f", h.grid.cellSize)
	}
	if s.handles[1].grid == h.grid {
		t.Error("expected small and big boxes in different grids")
	}
}
