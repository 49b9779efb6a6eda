package main

import (
	"fmt"
	"math"
)

const (
	maxObjectCellDensity = 1.0 / 8 // objects per cell before a grid doubles
	initialGridLength    = 256     // 16x16 cells
	hierarchyFactor      = 2.0
	minObjectEdge        = 1.0 // keeps zero-sized boxes from producing a zero cell size
)

// AABB is an axis-aligned bounding box. Two inactive boxes never pair up.
type AABB struct {
	Active bool
	Min    Vector
	Max    Vector
}

// Overlaps reports whether a and b intersect and at least one of them is active
func (a AABB) Overlaps(b AABB) bool {
	if !a.Active && !b.Active {
		return false
	}
	return !(a.Min.X > b.Max.X || a.Min.Y > b.Max.Y || a.Max.X < b.Min.X || a.Max.Y < b.Min.Y)
}

func (a AABB) longestEdge() float64 {
	return math.Max(math.Abs(a.Max.X-a.Min.X), math.Abs(a.Max.Y-a.Min.Y))
}

// Collider is anything the spatial hash can index
type Collider interface {
	ColliderID() EntityID
	AABB() AABB
}

// Pair is one broad-phase collision candidate
type Pair struct {
	A, B Collider
}

// spatialHandle is the removal bookkeeping for one indexed object
type spatialHandle struct {
	grid        *spatialGrid
	hash        int // cell index inside grid
	cellIndex   int // position in the cell's object list
	gridIndex   int // position in grid.objects
	globalIndex int // position in SpatialHash.objects
}

type spatialCell struct {
	objects       []Collider
	neighbors     [9]int // offsets into grid.cells, wrapped at the borders
	occupiedIndex int
}

type spatialGrid struct {
	cellSize        float64
	inverseCellSize float64
	rowColumnCount  int
	xyHashMask      int
	cells           []spatialCell
	occupied        []int // indices of non-empty cells
	objects         []Collider
	index           *SpatialHash
}

// SpatialHash is a hierarchy of uniform hash grids, one per object size octave,
// ordered by increasing cell size
type SpatialHash struct {
	grids   []*spatialGrid
	objects []Collider
	handles map[EntityID]*spatialHandle
}

// NewSpatialHash creates an empty index
func NewSpatialHash() *SpatialHash {
	return &SpatialHash{handles: make(map[EntityID]*spatialHandle)}
}

// Len returns the number of indexed objects
func (s *SpatialHash) Len() int { return len(s.objects) }

// Contains reports whether the object with id is indexed
func (s *SpatialHash) Contains(id EntityID) bool {
	_, ok := s.handles[id]
	return ok
}

func (s *SpatialHash) handle(obj Collider) *spatialHandle {
	h, ok := s.handles[obj.ColliderID()]
	if !ok {
		panic(fmt.Sprintf("spatial: object %d is not indexed", obj.ColliderID()))
	}
	return h
}

// Insert places obj in the finest grid whose cells are larger than its box,
// creating grids as needed
func (s *SpatialHash) Insert(obj Collider) {
	id := obj.ColliderID()
	if _, ok := s.handles[id]; ok {
		panic(fmt.Sprintf("spatial: object %d is already indexed", id))
	}
	size := math.Max(obj.AABB().longestEdge(), minObjectEdge)

	s.handles[id] = &spatialHandle{globalIndex: len(s.objects)}
	s.objects = append(s.objects, obj)

	if len(s.grids) == 0 {
		g := newSpatialGrid(size*math.Sqrt2, initialGridLength, s)
		s.grids = append(s.grids, g)
		g.add(obj)
		return
	}

	x := 0.0
	for i, g := range s.grids {
		x = g.cellSize
		if size < x {
			x /= hierarchyFactor
			if size < x {
				for size < x {
					x /= hierarchyFactor
				}
				ng := newSpatialGrid(x*hierarchyFactor, initialGridLength, s)
				s.grids = append(s.grids, nil)
				copy(s.grids[i+1:], s.grids[i:])
				s.grids[i] = ng
				ng.add(obj)
			} else {
				g.add(obj)
			}
			return
		}
	}

	for size >= x {
		x *= hierarchyFactor
	}
	g := newSpatialGrid(x, initialGridLength, s)
	s.grids = append(s.grids, g)
	g.add(obj)
}

// Remove drops obj from the index. Removing an object that was never
// inserted is a programming error and panics.
func (s *SpatialHash) Remove(obj Collider) {
	h := s.handle(obj)

	last := len(s.objects) - 1
	if h.globalIndex != last {
		moved := s.objects[last]
		s.objects[h.globalIndex] = moved
		s.handles[moved.ColliderID()].globalIndex = h.globalIndex
	}
	s.objects[last] = nil
	s.objects = s.objects[:last]

	h.grid.remove(obj)
	delete(s.handles, obj.ColliderID())
}

// Reindex re-inserts obj, picking a grid for its current size
func (s *SpatialHash) Reindex(obj Collider) {
	s.Remove(obj)
	s.Insert(obj)
}

// Update moves every object whose box corner crossed into another cell.
// Objects stay in their grid.
func (s *SpatialHash) Update() {
	for _, obj := range s.objects {
		h := s.handles[obj.ColliderID()]
		box := obj.AABB()
		hash := h.grid.toHash(box.Min.X, box.Min.Y)
		if hash != h.hash {
			g := h.grid
			g.remove(obj)
			g.addHashed(obj, hash)
		}
	}
}

// QueryPairs returns every pair of overlapping boxes with at least one
// active side. Same-grid neighbours are scanned through the forward half of
// the neighbourhood; each object is also tested against the full
// neighbourhood of its position in every coarser grid.
func (s *SpatialHash) QueryPairs() []Pair {
	var pairs []Pair

	for gi, g := range s.grids {
		for _, ci := range g.occupied {
			cell := &g.cells[ci]

			for k, a := range cell.objects {
				boxA := a.AABB()
				for _, b := range cell.objects[k+1:] {
					if boxA.Overlaps(b.AABB()) {
						pairs = append(pairs, Pair{a, b})
					}
				}
			}

			for c := 0; c < 4; c++ {
				adjacent := &g.cells[ci+cell.neighbors[c]]
				if len(adjacent.objects) == 0 {
					continue
				}
				for _, a := range cell.objects {
					boxA := a.AABB()
					for _, b := range adjacent.objects {
						if boxA.Overlaps(b.AABB()) {
							pairs = append(pairs, Pair{a, b})
						}
					}
				}
			}
		}

		for _, a := range g.objects {
			boxA := a.AABB()
			for _, bigger := range s.grids[gi+1:] {
				hash := bigger.toHash(boxA.Min.X, boxA.Min.Y)
				cell := &bigger.cells[hash]
				for _, off := range cell.neighbors {
					for _, b := range bigger.cells[hash+off].objects {
						if boxA.Overlaps(b.AABB()) {
							pairs = append(pairs, Pair{a, b})
						}
					}
				}
			}
		}
	}
	return pairs
}

func newSpatialGrid(cellSize float64, cellCount int, index *SpatialHash) *spatialGrid {
	g := &spatialGrid{
		cellSize:        cellSize,
		inverseCellSize: 1 / cellSize,
		index:           index,
	}
	g.initCells(int(math.Sqrt(float64(cellCount))))
	return g
}

func (g *spatialGrid) initCells(rowColumnCount int) {
	g.rowColumnCount = rowColumnCount
	g.xyHashMask = rowColumnCount - 1
	g.cells = make([]spatialCell, rowColumnCount*rowColumnCount)
	g.occupied = g.occupied[:0]

	wh := rowColumnCount
	length := len(g.cells)
	inner := [9]int{wh - 1, wh, wh + 1, -1, 0, 1, -wh - 1, -wh, -wh + 1}

	for i := range g.cells {
		y := i / wh
		x := i - y*wh

		right, left, top, bottom := 1, -1, wh, -wh
		edge := false
		if (x+1)%wh == 0 {
			right, edge = -wh+1, true
		} else if x%wh == 0 {
			left, edge = wh-1, true
		}
		if (y+1)%wh == 0 {
			top, edge = -length+wh, true
		} else if y%wh == 0 {
			bottom, edge = length-wh, true
		}

		if edge {
			g.cells[i].neighbors = [9]int{
				left + top, top, right + top,
				left, 0, right,
				left + bottom, bottom, right + bottom,
			}
		} else {
			g.cells[i].neighbors = inner
		}
		g.cells[i].occupiedIndex = -1
	}
}

// toHash maps a point to a cell index. Negative coordinates are mirrored
// into the grid rather than clamped, so the grid behaves as if it wraps.
func (g *spatialGrid) toHash(x, y float64) int {
	var xHash, yHash int
	if x < 0 {
		xHash = g.rowColumnCount - 1 - (int(-x*g.inverseCellSize) & g.xyHashMask)
	} else {
		xHash = int(x*g.inverseCellSize) & g.xyHashMask
	}
	if y < 0 {
		yHash = g.rowColumnCount - 1 - (int(-y*g.inverseCellSize) & g.xyHashMask)
	} else {
		yHash = int(y*g.inverseCellSize) & g.xyHashMask
	}
	return xHash + yHash*g.rowColumnCount
}

func (g *spatialGrid) add(obj Collider) {
	box := obj.AABB()
	g.addHashed(obj, g.toHash(box.Min.X, box.Min.Y))
}

func (g *spatialGrid) addHashed(obj Collider, hash int) {
	cell := &g.cells[hash]
	if len(cell.objects) == 0 {
		cell.occupiedIndex = len(g.occupied)
		g.occupied = append(g.occupied, hash)
	}

	h := g.index.handles[obj.ColliderID()]
	h.grid = g
	h.hash = hash
	h.cellIndex = len(cell.objects)
	h.gridIndex = len(g.objects)

	cell.objects = append(cell.objects, obj)
	g.objects = append(g.objects, obj)

	if float64(len(g.objects))/float64(len(g.cells)) > maxObjectCellDensity {
		g.expand()
	}
}

func (g *spatialGrid) remove(obj Collider) {
	handles := g.index.handles
	h := handles[obj.ColliderID()]
	cell := &g.cells[h.hash]

	if len(cell.objects) == 1 {
		cell.objects[0] = nil
		cell.objects = cell.objects[:0]

		last := len(g.occupied) - 1
		if cell.occupiedIndex != last {
			moved := g.occupied[last]
			g.occupied[cell.occupiedIndex] = moved
			g.cells[moved].occupiedIndex = cell.occupiedIndex
		}
		g.occupied = g.occupied[:last]
		cell.occupiedIndex = -1
	} else {
		last := len(cell.objects) - 1
		if h.cellIndex != last {
			moved := cell.objects[last]
			cell.objects[h.cellIndex] = moved
			handles[moved.ColliderID()].cellIndex = h.cellIndex
		}
		cell.objects[last] = nil
		cell.objects = cell.objects[:last]
	}

	last := len(g.objects) - 1
	if h.gridIndex != last {
		moved := g.objects[last]
		g.objects[h.gridIndex] = moved
		handles[moved.ColliderID()].gridIndex = h.gridIndex
	}
	g.objects[last] = nil
	g.objects = g.objects[:last]
}

// expand doubles the row/column count and rehashes every member
func (g *spatialGrid) expand() {
	objects := make([]Collider, len(g.objects))
	copy(objects, g.objects)

	g.objects = g.objects[:0]
	g.initCells(int(math.Sqrt(float64(len(g.cells) * 4))))

	for _, obj := range objects {
		g.add(obj)
	}
}
