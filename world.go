package main

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"runtime/debug"
	"sort"
)

// World owns the entity set and the spatial index and advances them one
// tick at a time. It is not safe for concurrent use; Game serialises access.
type World struct {
	cfg        *Config
	archetypes *ArchetypeRegistry
	index      *SpatialHash

	entities []*Entity // insertion order, removed entries are compacted after each tick
	byID     map[EntityID]*Entity
	miniMap  map[EntityID]*Entity
	nextID   EntityID
	tick     int

	onInsert []func(e *Entity)
	onRemove []func(e *Entity)
	onTick   []func(tick int)
	onKill   []func(killer, victim *Entity, score float64)
}

// NewWorld creates an empty world
func NewWorld(cfg *Config, archetypes *ArchetypeRegistry) *World {
	return &World{
		cfg:        cfg,
		archetypes: archetypes,
		index:      NewSpatialHash(),
		byID:       make(map[EntityID]*Entity),
		miniMap:    make(map[EntityID]*Entity),
	}
}

// Config returns the world's configuration
func (w *World) Config() *Config { return w.cfg }

// Tick returns the number of completed ticks
func (w *World) Tick() int { return w.tick }

// Len returns the number of live entities
func (w *World) Len() int { return len(w.byID) }

// OnInsert registers fn to run after an entity joins the world
func (w *World) OnInsert(fn func(e *Entity)) { w.onInsert = append(w.onInsert, fn) }

// OnRemove registers fn to run after an entity leaves the world
func (w *World) OnRemove(fn func(e *Entity)) { w.onRemove = append(w.onRemove, fn) }

// OnTick registers fn to run at the start of every tick
func (w *World) OnTick(fn func(tick int)) { w.onTick = append(w.onTick, fn) }

// OnKill registers fn to run when a kill transfers score
func (w *World) OnKill(fn func(killer, victim *Entity, score float64)) {
	w.onKill = append(w.onKill, fn)
}

// Get returns the live entity with id, or nil
func (w *World) Get(id EntityID) *Entity { return w.byID[id] }

// Entities returns the live entities in insertion order
func (w *World) Entities() []*Entity {
	out := make([]*Entity, 0, len(w.byID))
	for _, e := range w.entities {
		if !e.Die {
			out = append(out, e)
		}
	}
	return out
}

// Create builds an entity from a named archetype without inserting it
func (w *World) Create(archetype string) (*Entity, error) {
	a, ok := w.archetypes.Get(archetype)
	if !ok {
		return nil, fmt.Errorf("unknown archetype %q", archetype)
	}
	return NewEntity(a), nil
}

// Spawn creates a player body on a random team at a random position
func (w *World) Spawn(name string) (*Entity, error) {
	e, err := w.Create("Basic")
	if err != nil {
		return nil, err
	}
	e.Name = name
	if len(w.cfg.Teams) > 0 {
		e.Team = w.cfg.Teams[rand.Intn(len(w.cfg.Teams))]
	}
	e.Pos = Vector{rand.Float64() * w.cfg.Width, rand.Float64() * w.cfg.Height}
	return e, nil
}

// Insert assigns e an id, indexes it and spawns its archetype's children
func (w *World) Insert(e *Entity) {
	if e.world != nil {
		panic(fmt.Sprintf("world: entity %d inserted twice", e.ID))
	}
	w.nextID++
	e.ID = w.nextID
	e.world = w
	if e.LevelScore == 0 {
		e.LevelScore = w.cfg.LevelScore(e.Level + 1)
	}

	w.entities = append(w.entities, e)
	w.byID[e.ID] = e
	w.index.Insert(e)

	for _, fn := range w.onInsert {
		fn(e)
	}
	w.spawnChildren(e)
}

// Attach makes master the master of child
func (w *World) Attach(child, master *Entity) {
	if old := child.Master(); old != nil {
		delete(old.children, child.ID)
	}
	child.masterID = master.ID
	master.children[child.ID] = struct{}{}
}

func (w *World) spawnChildren(e *Entity) {
	for _, name := range e.Archetype.Children {
		child := NewEntity(w.archetypes.MustGet(name))
		child.Team = e.Team
		child.Team2 = e.Team2
		child.Name = e.Name
		child.Pos = e.Pos.Add(FromAngle(rand.Float64() * 2 * math.Pi).Scale(e.Size))
		w.Insert(child)
		w.Attach(child, e)
	}
}

// Remove drops e from the world. Removing an entity twice is a no-op.
func (w *World) Remove(e *Entity) {
	if e.world != w || w.byID[e.ID] != e {
		return
	}
	delete(w.byID, e.ID)
	w.index.Remove(e)
	delete(w.miniMap, e.ID)

	e.Die = true
	for _, fn := range e.onRemove {
		fn(e)
	}
	for _, fn := range w.onRemove {
		fn(e)
	}

	if m := w.byID[e.masterID]; m != nil {
		delete(m.children, e.ID)
	}
	e.destroy()
}

// Upgrade re-initialises e as its index-th unlocked upgrade. Score, level,
// team and position carry over; children of the old archetype are dropped.
func (w *World) Upgrade(e *Entity, index int) error {
	if index < 0 || index >= len(e.Upgrades) {
		return fmt.Errorf("upgrade %d out of range (%d available)", index, len(e.Upgrades))
	}
	next := e.Upgrades[index]

	for id := range e.children {
		if child := w.byID[id]; child != nil {
			w.Remove(child)
		}
	}

	score, level, levelScore := e.Score, e.Level, e.LevelScore
	e.Init(next)
	e.Score, e.Level, e.LevelScore = score, level, levelScore
	e.Upgrades = e.unlockedUpgrades()
	e.UpgradeAdded = true

	w.index.Reindex(e)
	w.spawnChildren(e)

	if e.Messenger != nil {
		e.Messenger.SendMessage(fmt.Sprintf("You have upgraded to %s.", next.Label))
	}
	return nil
}

// MiniMap returns the entities shown on the minimap, ordered by id
func (w *World) MiniMap() []*Entity {
	out := make([]*Entity, 0, len(w.miniMap))
	for _, e := range w.miniMap {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MiniMapVisibleTo applies e's minimap policy for one viewer
func (w *World) MiniMapVisibleTo(e, viewer *Entity) bool {
	policy := e.Archetype.MiniMap
	switch policy.Kind {
	case MiniMapAlways:
		return true
	case MiniMapTeam:
		return SameTeam(e, viewer)
	case MiniMapCustom:
		if policy.Fn == nil {
			return false
		}
		visible := false
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("minimap policy for %d panicked: %v", e.ID, r)
				}
			}()
			visible = policy.Fn(e, viewer)
		}()
		return visible
	}
	return false
}

// Update advances the world by one tick
func (w *World) Update() {
	w.tick++
	for _, fn := range w.onTick {
		fn(w.tick)
	}

	w.index.Update()
	pairs := w.index.QueryPairs()

	for _, p := range pairs {
		a, b := p.A.(*Entity), p.B.(*Entity)
		if a.Die || b.Die {
			continue
		}
		w.resolvePair(a, b)
	}

	// entities inserted during the loop are stepped in the same tick
	for i := 0; i < len(w.entities); i++ {
		e := w.entities[i]
		if e.Die {
			continue
		}
		w.step(e)
	}

	w.compact()
}

func (w *World) resolvePair(a, b *Entity) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("collision %d/%d panicked: %v\n%s", a.ID, b.ID, r, debug.Stack())
		}
	}()
	w.handleCollision(a, b)
}

func (w *World) step(e *Entity) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("entity %d (%s) panicked: %v\n%s", e.ID, e.Archetype.Key, r, debug.Stack())
		}
	}()

	e.update()
	if e.Die {
		return
	}
	if expired(e) {
		w.Remove(e)
		return
	}
	w.fire(e)
	w.applyBoundary(e)

	if e.Archetype.MiniMap.Kind == MiniMapNone {
		delete(w.miniMap, e.ID)
	} else {
		w.miniMap[e.ID] = e
	}
}

// applyBoundary pulls entities outside the arena back in proportionally to
// how far out they are
func (w *World) applyBoundary(e *Entity) {
	if e.Archetype.Airplane {
		return
	}
	k := w.cfg.BoundaryMultiplier
	if e.Archetype.Food {
		k = w.cfg.FoodBoundaryMultiplier
	}

	if e.Pos.X < 0 {
		e.Vel.X -= e.Pos.X * k
	} else if e.Pos.X > w.cfg.Width {
		e.Vel.X -= (e.Pos.X - w.cfg.Width) * k
	}
	if e.Pos.Y < 0 {
		e.Vel.Y -= e.Pos.Y * k
	} else if e.Pos.Y > w.cfg.Height {
		e.Vel.Y -= (e.Pos.Y - w.cfg.Height) * k
	}
}

func (w *World) compact() {
	n := 0
	for _, e := range w.entities {
		if !e.Die {
			w.entities[n] = e
			n++
		}
	}
	for i := n; i < len(w.entities); i++ {
		w.entities[i] = nil
	}
	w.entities = w.entities[:n]
}
