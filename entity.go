package main

import (
	"fmt"
	"math"
)

const (
	sizeMultiplier   = 1.4  // AABB half extent = size * 0.5 * sizeMultiplier
	activeThreshold  = 0.1  // speed below which an entity is idle
	damping          = 0.9  // per tick velocity decay
	bulletDamping    = 0.95 // bullets coast further
	scoreStatBonus   = 0.0004
	initialLastTouch = 60
)

// EntityID identifies an entity inside one world. Zero means "none".
type EntityID uint32

// MoveDirection is one of the four movement keys
type MoveDirection uint8

const (
	MoveUp MoveDirection = iota
	MoveDown
	MoveLeft
	MoveRight
)

// MoveSet is the set of held movement keys
type MoveSet uint8

func (m MoveSet) Has(d MoveDirection) bool { return m&(1<<d) != 0 }
func (m *MoveSet) Add(d MoveDirection)     { *m |= 1 << d }
func (m *MoveSet) Delete(d MoveDirection)  { *m &^= 1 << d }

// Control is the movement and targeting intent an entity acts on each tick
type Control struct {
	Target *Vector // relative to the entity
	Goal   *Vector
	Main   bool
	Fire   bool
	Alt    bool
	Angle  *float64
	Power  float64
}

// Messenger delivers text messages to whoever controls an entity
type Messenger interface {
	SendMessage(msg string)
}

// Entity is one simulated body
type Entity struct {
	ID    EntityID
	world *World

	Pos   Vector
	Vel   Vector
	Acc   Vector
	Angle float64

	Health float64
	Shield float64
	Score  float64

	Level      int
	LevelScore float64 // score needed for the next level

	Tick             int
	LastTickAttacked int

	Team  int
	Team2 int // sub-team, 0 = none
	Name  string

	Archetype *Archetype
	Skill     Skill
	Size      float64

	Controllers []*Controller
	Control     Control
	Move        MoveSet
	MoveAngle   *float64

	Active       bool
	Die          bool
	Changed      bool
	UpgradeAdded bool

	AllUpgrades []*Archetype
	Upgrades    []*Archetype

	Messenger Messenger

	masterID EntityID
	children map[EntityID]struct{}
	source   *Vector
	reload   int

	onTick    []func(e *Entity)
	onDamage  []func(e *Entity, amount float64)
	onDeath   []func(e *Entity, killer *Entity)
	onRemove  []func(e *Entity)
	onDestroy []func(e *Entity)
}

// NewEntity creates an entity initialised from a
func NewEntity(a *Archetype) *Entity {
	e := &Entity{
		Name:             "Entity",
		Health:           100,
		LastTickAttacked: initialLastTouch,
		Active:           true,
		Team:             TeamRoom,
		Control:          Control{Power: 1},
		children:         make(map[EntityID]struct{}),
	}
	e.Init(a)
	return e
}

// Init (re)applies an archetype. Used at creation and on upgrade.
func (e *Entity) Init(a *Archetype) {
	e.Archetype = a
	e.Size = a.Size
	e.Skill = a.Skill
	e.Score = a.Score
	e.Health = a.Skill.Health
	e.Shield = a.Skill.Shield

	e.Controllers = e.Controllers[:0]
	for _, kind := range a.Controllers {
		e.Controllers = append(e.Controllers, NewController(kind))
	}

	if a.Name != nil {
		e.Name = *a.Name
	}

	e.AllUpgrades = a.UpgradeOptions()
	e.Upgrades = e.unlockedUpgrades()
	if len(e.Upgrades) > 0 {
		e.UpgradeAdded = true
	}
	e.Changed = true
}

func (e *Entity) unlockedUpgrades() []*Archetype {
	var out []*Archetype
	for _, up := range e.AllUpgrades {
		if up.Tier <= e.Level {
			out = append(out, up)
		}
	}
	return out
}

// OnTick registers fn to run at the start of every update
func (e *Entity) OnTick(fn func(e *Entity)) { e.onTick = append(e.onTick, fn) }

// OnDamage registers fn to run whenever the entity is hit
func (e *Entity) OnDamage(fn func(e *Entity, amount float64)) { e.onDamage = append(e.onDamage, fn) }

// OnDeath registers fn to run when the entity dies. killer may be nil.
func (e *Entity) OnDeath(fn func(e *Entity, killer *Entity)) { e.onDeath = append(e.onDeath, fn) }

// OnRemove registers fn to run when the world drops the entity
func (e *Entity) OnRemove(fn func(e *Entity)) { e.onRemove = append(e.onRemove, fn) }

// OnDestroy registers fn to run when the entity stops simulating
func (e *Entity) OnDestroy(fn func(e *Entity)) { e.onDestroy = append(e.onDestroy, fn) }

func (e *Entity) emitDeath(killer *Entity) {
	for _, fn := range e.onDeath {
		fn(e, killer)
	}
}

// ColliderID implements Collider
func (e *Entity) ColliderID() EntityID { return e.ID }

// AABB implements Collider
func (e *Entity) AABB() AABB {
	half := e.Size * 0.5 * sizeMultiplier
	return AABB{
		Active: e.Active && !e.Die,
		Min:    Vector{e.Pos.X - half, e.Pos.Y - half},
		Max:    Vector{e.Pos.X + half, e.Pos.Y + half},
	}
}

func (e *Entity) Mass() float64      { return e.Size * e.Archetype.Mass }
func (e *Entity) MaxHealth() float64 { return e.Skill.Health + e.Score*scoreStatBonus }
func (e *Entity) MaxShield() float64 { return e.Skill.Shield + e.Score*scoreStatBonus }

// Master returns the entity's live master, or nil
func (e *Entity) Master() *Entity {
	if e.masterID == 0 || e.world == nil {
		return nil
	}
	return e.world.Get(e.masterID)
}

// IsMaster reports whether the entity is the root of its hierarchy
func (e *Entity) IsMaster() bool {
	return e.Archetype.Independent || e.Master() == nil
}

// TopMaster walks the master chain up to its root
func (e *Entity) TopMaster() *Entity {
	cur := e
	for !cur.Archetype.Independent {
		m := cur.Master()
		if m == nil {
			break
		}
		cur = m
	}
	return cur
}

// MasterPos is the position of the top master
func (e *Entity) MasterPos() Vector { return e.TopMaster().Pos }

// Source is the aim point of the hierarchy, relative to the top master
func (e *Entity) Source() *Vector {
	if e.IsMaster() {
		return e.source
	}
	return e.Master().Source()
}

// SetSource sets the aim point on the root of the hierarchy
func (e *Entity) SetSource(v *Vector) {
	if e.IsMaster() {
		e.source = v
		return
	}
	e.Master().SetSource(v)
}

// ChildCount returns the number of live children
func (e *Entity) ChildCount() int { return len(e.children) }

// Title is how the entity is named in kill messages
func (e *Entity) Title() string {
	switch {
	case e.Archetype.Food:
		return e.Archetype.Label
	case e.Archetype.Bullet:
		return fmt.Sprintf("%s's %s", e.TopMaster().Name, e.Archetype.Label)
	default:
		return fmt.Sprintf("%s's %s", e.Name, e.Archetype.Label)
	}
}

// SameTeam reports whether a and b never damage each other
func SameTeam(a, b *Entity) bool {
	return a.Team == b.Team && ((a.Team2 == 0 && b.Team2 == 0) || a.Team2 == b.Team2)
}

// CanSee reports whether other is inside e's field of view
func (e *Entity) CanSee(other *Entity) bool {
	return e.Pos.Distance(other.Pos) <= e.Skill.FOV
}

// update advances the entity by one tick
func (e *Entity) update() {
	w := e.world
	e.Tick++
	for _, fn := range e.onTick {
		fn(e)
	}

	if !e.Archetype.Independent && e.masterID != 0 {
		if m := e.Master(); m == nil || m.Die {
			w.Remove(e)
			return
		}
	}

	for e.Score > e.LevelScore {
		e.Level++
		e.LevelScore = w.cfg.LevelScore(e.Level + 1)
		unlocked := e.unlockedUpgrades()
		if len(unlocked) != len(e.Upgrades) {
			e.UpgradeAdded = true
		}
		e.Upgrades = unlocked
	}

	e.regenerate(w.cfg)

	for _, c := range e.Controllers {
		in := c.Think(e, w)
		if c.AcceptsFromTop {
			continue
		}
		if in.Target != nil {
			e.Control.Target = in.Target
		}
		if in.Goal != nil {
			e.Control.Goal = in.Goal
		}
		e.Control.Main = in.Main
		e.Control.Fire = in.Fire
		e.Control.Alt = in.Alt
		e.Control.Angle = in.Angle
		if in.Power != 0 {
			e.Control.Power = in.Power
		}
	}

	e.integrate()
}

func (e *Entity) regenerate(cfg *Config) {
	bonus := e.Tick-e.LastTickAttacked > cfg.RegenBonusDelay

	if limit := e.MaxHealth(); e.Health < limit {
		e.Health += e.Skill.Regen
		if bonus {
			e.Health += cfg.RegenBonus
		}
		e.Health = math.Min(e.Health, limit)
	}
	if limit := e.MaxShield(); e.Shield < limit {
		e.Shield += e.Skill.ShieldRegen
		if bonus {
			e.Shield += cfg.RegenBonus
		}
		e.Shield = math.Min(e.Shield, limit)
	}
}

func (e *Entity) integrate() {
	speed := e.Skill.Speed

	if e.Control.Main && e.Control.Target != nil {
		target := *e.Control.Target
		if e.Control.Angle != nil {
			e.Angle = *e.Control.Angle
		} else {
			e.Angle = target.Angle()
		}
		power := e.Control.Power
		if power == 0 {
			power = 1
		}
		e.Vel = e.Vel.Add(target.Normalize().Scale(speed * power))
	} else if e.Move != 0 {
		if e.Move.Has(MoveUp) {
			e.Vel.Y -= speed
		}
		if e.Move.Has(MoveDown) {
			e.Vel.Y += speed
		}
		if e.Move.Has(MoveLeft) {
			e.Vel.X -= speed
		}
		if e.Move.Has(MoveRight) {
			e.Vel.X += speed
		}
	} else if e.MoveAngle != nil {
		e.Vel = e.Vel.Add(FromAngle(*e.MoveAngle).Scale(speed))
	}

	e.Active = e.Vel.Mag() >= activeThreshold

	e.Pos = e.Pos.Add(e.Vel)
	if e.Archetype.Bullet {
		e.Vel = e.Vel.Scale(bulletDamping)
	} else {
		e.Vel = e.Vel.Scale(damping)
	}
	e.Vel = e.Vel.Add(e.Acc)
	e.Acc = Vector{}
}

// destroy stops the entity from simulating. The world has already dropped it.
func (e *Entity) destroy() {
	for _, fn := range e.onDestroy {
		fn(e)
	}
	e.masterID = 0
	e.Controllers = nil
}
