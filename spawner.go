package main

import (
	"log"
	"math"
	"math/rand"
)

const maxSpawnAttempts = 20

// WeightedArchetype is one entry of a spawn table
type WeightedArchetype struct {
	Name   string
	Weight float64
}

// SpawnRule describes what a region keeps alive
type SpawnRule struct {
	Table         []WeightedArchetype
	Cap           int // live entities the region keeps at most
	IntervalTicks int // ticks between spawns
}

type spawnRegion struct {
	rule     *SpawnRule
	min, max Vector
	count    int
}

type exclusionZone struct {
	pos    Vector
	radius float64
}

// Spawner keeps the arena's regions stocked with food and places team
// bases. It runs inside the world tick.
type Spawner struct {
	world      *World
	regions    []*spawnRegion
	regionSize Vector
	excluded   []exclusionZone
	bases      map[int][]*Entity
}

// NewSpawner divides the world into the layout's region grid and hooks the
// spawner into the world tick
func NewSpawner(w *World, layout [][]*SpawnRule) *Spawner {
	s := &Spawner{
		world: w,
		bases: make(map[int][]*Entity),
	}
	rows := len(layout)
	if rows > 0 && len(layout[0]) > 0 {
		cols := len(layout[0])
		s.regionSize = Vector{w.cfg.Width / float64(cols), w.cfg.Height / float64(rows)}
		for row, line := range layout {
			for col, rule := range line {
				if rule == nil || len(rule.Table) == 0 {
					continue
				}
				min := Vector{float64(col) * s.regionSize.X, float64(row) * s.regionSize.Y}
				s.regions = append(s.regions, &spawnRegion{
					rule: rule,
					min:  min,
					max:  min.Add(s.regionSize),
				})
			}
		}
	}
	w.OnTick(s.tick)
	return s
}

// Exclude keeps spawned food out of a circle
func (s *Spawner) Exclude(pos Vector, radius float64) {
	s.excluded = append(s.excluded, exclusionZone{pos: pos, radius: radius})
}

// PlaceBases inserts a base in the centre of each placement's region and
// keeps food away from it
func (s *Spawner) PlaceBases(bases []BasePlacement) error {
	for _, b := range bases {
		e, err := s.world.Create("Base")
		if err != nil {
			return err
		}
		e.Team = b.Team
		e.Name = teamName(b.Team)
		e.Pos = Vector{
			(float64(b.Col) + 0.5) * s.regionSize.X,
			(float64(b.Row) + 0.5) * s.regionSize.Y,
		}
		e.Size = math.Min(s.regionSize.X, s.regionSize.Y) * 0.5 * math.Sqrt2 / 2
		s.world.Insert(e)
		s.Exclude(e.Pos, e.Size*2)
		s.bases[b.Team] = append(s.bases[b.Team], e)
		log.Printf("placed %s base at (%.0f, %.0f)", teamName(b.Team), e.Pos.X, e.Pos.Y)
	}
	return nil
}

// SpawnPoint picks a position next to one of team's live bases
func (s *Spawner) SpawnPoint(team int) (Vector, bool) {
	var live []*Entity
	for _, b := range s.bases[team] {
		if !b.Die {
			live = append(live, b)
		}
	}
	if len(live) == 0 {
		return Vector{}, false
	}
	base := live[rand.Intn(len(live))]
	offset := FromAngle(rand.Float64() * 2 * math.Pi).Scale(base.Size*wallBoundaryMultiplier + wallBoundaryPadding + 20)
	return base.Pos.Add(offset), true
}

func (s *Spawner) tick(tick int) {
	for _, r := range s.regions {
		if r.count >= r.rule.Cap {
			continue
		}
		if r.rule.IntervalTicks > 0 && tick%r.rule.IntervalTicks != 0 {
			continue
		}
		s.spawnIn(r)
	}
}

func (s *Spawner) spawnIn(r *spawnRegion) {
	name := pickWeighted(r.rule.Table, rand.Float64())
	if name == "" {
		return
	}
	pos, ok := s.randomPos(r)
	if !ok {
		return
	}
	e, err := s.world.Create(name)
	if err != nil {
		log.Printf("spawner: %v", err)
		return
	}
	e.Pos = pos
	e.Angle = rand.Float64() * 2 * math.Pi
	s.world.Insert(e)

	r.count++
	e.OnRemove(func(*Entity) { r.count-- })
}

func (s *Spawner) randomPos(r *spawnRegion) (Vector, bool) {
	for i := 0; i < maxSpawnAttempts; i++ {
		p := Vector{
			r.min.X + rand.Float64()*(r.max.X-r.min.X),
			r.min.Y + rand.Float64()*(r.max.Y-r.min.Y),
		}
		if !s.isExcluded(p) {
			return p, true
		}
	}
	return Vector{}, false
}

func (s *Spawner) isExcluded(p Vector) bool {
	for _, z := range s.excluded {
		if p.Distance(z.pos) < z.radius {
			return true
		}
	}
	return false
}

// pickWeighted maps roll in [0, 1) onto table by weight
func pickWeighted(table []WeightedArchetype, roll float64) string {
	total := 0.0
	for _, w := range table {
		total += w.Weight
	}
	if total <= 0 {
		return ""
	}
	roll *= total
	for _, w := range table {
		if roll < w.Weight {
			return w.Name
		}
		roll -= w.Weight
	}
	return table[len(table)-1].Name
}
