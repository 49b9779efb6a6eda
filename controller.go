package main

import (
	"math"
	"math/rand"
)

const (
	thinkPeriod       = 10.0 // ticks between decisions
	circleStep        = 0.01
	slowCircleStep    = 0.002
	circlePower       = 0.1
	masterOrbitRadius = 50.0
	masterOrbitPower  = 0.6
	minionRadius      = 50.0
	minionNearRadius  = 20.0
	minionPower       = 0.8
	minionPursuitPad  = 20.0
)

// ControllerKind selects a controller's strategy
type ControllerKind int

const (
	ControllerNearest          ControllerKind = iota // chase the closest visible enemy
	ControllerNearestPlayer                          // same, ignoring food
	ControllerCircle                                 // idle circling
	ControllerSlowCircle                             // idle circling, slower turn
	ControllerMasterCircle                           // orbit the master
	ControllerGoToMasterTarget                       // head for the hierarchy's aim point
	ControllerMinion                                 // pursue, then orbit, the master's aim point
	ControllerMinionNearest                          // orbit the closest enemy
)

var controllerNames = map[ControllerKind]string{
	ControllerNearest:          "nearest",
	ControllerNearestPlayer:    "nearest-player",
	ControllerCircle:           "circle",
	ControllerSlowCircle:       "slow-circle",
	ControllerMasterCircle:     "master-circle",
	ControllerGoToMasterTarget: "go-to-master-target",
	ControllerMinion:           "minion",
	ControllerMinionNearest:    "minion-nearest",
}

func (k ControllerKind) String() string {
	if name, ok := controllerNames[k]; ok {
		return name
	}
	return "unknown"
}

// Intent is one controller's opinion for the current tick.
// Power 0 means "no opinion on power".
type Intent struct {
	Target *Vector
	Goal   *Vector
	Main   bool
	Fire   bool
	Alt    bool
	Angle  *float64
	Power  float64
}

// Controller is a behaviour attached to an entity. AcceptsFromTop is set
// when the controller has no opinion this tick and its Intent must be ignored.
type Controller struct {
	Kind           ControllerKind
	AcceptsFromTop bool

	timer         float64
	angle         float64
	radius        float64
	rotationSpeed float64

	target      Vector
	targetID    EntityID
	hasTarget   bool
	targetAngle float64
	mode        bool // minion: true while pursuing, false while orbiting
}

// NewController creates a controller with a randomised think phase
func NewController(kind ControllerKind) *Controller {
	c := &Controller{
		Kind:  kind,
		timer: rand.Float64() * thinkPeriod,
		angle: rand.Float64() * math.Pi * 2,
	}
	switch kind {
	case ControllerNearest, ControllerNearestPlayer, ControllerGoToMasterTarget:
		c.AcceptsFromTop = true
	case ControllerMasterCircle:
		c.radius = masterOrbitRadius
		c.rotationSpeed = math.Pi / 10
	case ControllerMinion:
		c.radius = minionRadius
		c.rotationSpeed = math.Pi / 15
	case ControllerMinionNearest:
		c.radius = minionNearRadius
		c.rotationSpeed = math.Pi / 15
	}
	return c
}

// isThinkTime counts the timer down and reports when a new decision is due
func (c *Controller) isThinkTime() bool {
	t := c.timer
	c.timer--
	if t < 0 {
		c.timer = thinkPeriod
		return true
	}
	return false
}

// Think produces this tick's intent for e
func (c *Controller) Think(e *Entity, w *World) Intent {
	switch c.Kind {
	case ControllerNearest:
		return c.thinkNearest(e, w, false)
	case ControllerNearestPlayer:
		return c.thinkNearest(e, w, true)
	case ControllerCircle:
		return c.thinkCircle(circleStep)
	case ControllerSlowCircle:
		return c.thinkCircle(slowCircleStep)
	case ControllerMasterCircle:
		return c.thinkMasterCircle(e)
	case ControllerGoToMasterTarget:
		return c.thinkGoToMasterTarget(e)
	case ControllerMinion:
		return c.thinkMinion(e)
	case ControllerMinionNearest:
		return c.thinkMinionNearest(e, w)
	}
	c.AcceptsFromTop = true
	return Intent{}
}

func (c *Controller) thinkNearest(e *Entity, w *World, onlyPlayers bool) Intent {
	if c.isThinkTime() {
		c.hasTarget = false
		if t := findNearest(e, w, onlyPlayers); t != nil {
			c.targetID = t.ID
			c.hasTarget = true
		}
	}
	if !c.hasTarget {
		c.AcceptsFromTop = true
		return Intent{}
	}
	t := w.Get(c.targetID)
	if t == nil {
		c.hasTarget = false
		c.AcceptsFromTop = true
		return Intent{}
	}

	c.AcceptsFromTop = false
	rel := t.Pos.Sub(e.Pos)
	return Intent{Target: &rel, Main: true, Fire: true, Power: 1}
}

func (c *Controller) thinkCircle(step float64) Intent {
	if c.isThinkTime() {
		c.target = Vector{5, 5}.Rotate(c.angle)
		c.angle -= step
	}
	target := c.target
	return Intent{Target: &target, Main: true, Power: circlePower}
}

func (c *Controller) thinkMasterCircle(e *Entity) Intent {
	if c.isThinkTime() {
		center := e.Pos
		if m := e.Master(); m != nil {
			center = m.Pos
		}
		c.target = center.Add(FromAngle(c.angle).Scale(c.radius))
		c.angle -= c.rotationSpeed
	}
	rel := c.target.Sub(e.Pos)
	return Intent{Target: &rel, Main: true, Power: masterOrbitPower}
}

func (c *Controller) thinkGoToMasterTarget(e *Entity) Intent {
	if c.isThinkTime() {
		if src := e.Source(); src == nil {
			c.AcceptsFromTop = true
		} else {
			c.AcceptsFromTop = false
			c.target = *src
		}
	}
	rel := c.target.Add(e.MasterPos()).Sub(e.Pos)
	return Intent{Target: &rel, Main: true, Power: 0.7 + rand.Float64()}
}

func (c *Controller) thinkMinion(e *Entity) Intent {
	if c.isThinkTime() {
		m := e.Master()
		if m != nil && m.Source() != nil {
			c.AcceptsFromTop = false
			src := *m.Source()
			if e.Pos.Distance(src.Add(m.Pos)) > c.radius+minionPursuitPad {
				c.target = src
				c.mode = true
			} else {
				c.target = src.Add(FromAngle(c.angle).Scale(c.radius))
				c.angle -= c.rotationSpeed
				c.mode = false
			}
		} else {
			c.AcceptsFromTop = true
		}
	}

	rel := c.target.Add(e.MasterPos()).Sub(e.Pos)
	in := Intent{Target: &rel, Main: true, Fire: true, Power: minionPower}
	if !c.mode {
		facing := c.angle + math.Pi
		in.Angle = &facing
	}
	return in
}

func (c *Controller) thinkMinionNearest(e *Entity, w *World) Intent {
	if c.isThinkTime() {
		if t := findNearest(e, w, false); t != nil {
			c.target = t.Pos.Add(FromAngle(c.angle).Scale(c.radius))
			c.angle -= c.rotationSpeed
			c.targetAngle = e.Pos.AngleTo(t.Pos)
			c.hasTarget = true
		} else {
			c.hasTarget = false
		}
	}

	if !c.hasTarget {
		facing := c.angle
		return Intent{Angle: &facing, Main: true, Fire: true, Power: minionPower}
	}
	rel := c.target.Sub(e.Pos)
	facing := c.targetAngle
	return Intent{Target: &rel, Angle: &facing, Main: true, Fire: true, Power: minionPower}
}

// findNearest returns the closest hostile, visible, non-fixed root entity.
// Ties keep the first one in world insertion order.
func findNearest(e *Entity, w *World, onlyPlayers bool) *Entity {
	var best *Entity
	bestDist := math.Inf(1)
	for _, other := range w.Entities() {
		if other == e || other.Die {
			continue
		}
		if SameTeam(other, e) {
			continue
		}
		if other.masterID != 0 && !other.Archetype.Independent {
			continue
		}
		if onlyPlayers && other.Archetype.Food {
			continue
		}
		if other.Archetype.IsFixed {
			continue
		}
		if !e.CanSee(other) {
			continue
		}
		if d := e.Pos.Distance(other.Pos); d < bestDist {
			bestDist = d
			best = other
		}
	}
	return best
}
