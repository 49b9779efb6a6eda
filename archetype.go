package main

import (
	"fmt"
	"sort"
)

// HitKind selects how an archetype takes part in collision resolution
type HitKind int

const (
	HitAuto   HitKind = iota // built-in fixed/dynamic physics
	HitNone                  // never resolves collisions
	HitCustom                // Fn decides
)

// HitType is an archetype's collision policy
type HitType struct {
	Kind HitKind
	Fn   func(w *World, self, other *Entity)
}

// MiniMapKind selects which viewers see an entity on the minimap
type MiniMapKind int

const (
	MiniMapNone MiniMapKind = iota
	MiniMapAlways
	MiniMapTeam
	MiniMapCustom
)

// MiniMapPolicy is an archetype's minimap visibility rule
type MiniMapPolicy struct {
	Kind MiniMapKind
	Fn   func(self, viewer *Entity) bool
}

// Team identifiers. TeamRoom owns neutral entities such as food and walls.
const (
	TeamRoom   = -1
	TeamBlue   = -2
	TeamGreen  = -3
	TeamRed    = -4
	TeamPurple = -5
)

func teamName(team int) string {
	switch team {
	case TeamBlue:
		return "Blue"
	case TeamGreen:
		return "Green"
	case TeamRed:
		return "Red"
	case TeamPurple:
		return "Purple"
	case TeamRoom:
		return "Room"
	}
	return fmt.Sprintf("Team %d", team)
}

// Gun fires one archetype of bullet while the entity's fire intent is held
type Gun struct {
	Bullet string
	Reload int     // ticks between shots
	Speed  float64 // muzzle speed added to the shooter's velocity
	Recoil float64
}

// Skill holds the mutable per-entity stats copied from an archetype
type Skill struct {
	Speed       float64
	Health      float64
	Regen       float64
	Damage      float64
	Pen         float64
	Range       float64 // 0 means unlimited
	Pushability float64
	FOV         float64
	Shield      float64
	ShieldRegen float64
}

// Archetype is a resolved, immutable entity template
type Archetype struct {
	Key      string // registry name
	Parent   string
	Tier     int
	MockupID int

	Label       string
	Name        *string // fixed display name, nil keeps the entity's own
	ShowHealth  bool
	ShowName    bool
	ShowScore   bool
	GiveScore   bool
	KillMessage bool
	KillText    string // replaces "You killed <title>." when set

	HitType HitType
	MiniMap MiniMapPolicy

	Score       float64
	Size        float64
	Mass        float64
	Sides       int
	IsFixed     bool
	Airplane    bool
	Bullet      bool
	Food        bool
	Independent bool

	Controllers []ControllerKind
	Skill       Skill
	Gun         *Gun

	Color       string
	Border      string
	StrokeWidth float64
	Alpha       float64

	Upgrades []string
	Children []string // archetypes spawned as children when the entity enters the world

	OnCollision func(w *World, self, other *Entity)

	upgrades []*Archetype
}

// UpgradeOptions returns every archetype this one can upgrade into
func (a *Archetype) UpgradeOptions() []*Archetype { return a.upgrades }

func defaultArchetype() Archetype {
	return Archetype{
		Label:      "Entity",
		ShowHealth: true,
		ShowName:   true,
		ShowScore:  true,
		GiveScore:  true,
		HitType:    HitType{Kind: HitAuto},
		MiniMap:    MiniMapPolicy{Kind: MiniMapNone},
		Score:      25000,
		Size:       12,
		Mass:       1,
		Skill: Skill{
			Speed:       0.5,
			Health:      100,
			Regen:       0.1,
			Damage:      3,
			Pen:         10,
			Pushability: 1,
			FOV:         800,
			Shield:      20,
			ShieldRegen: 0.05,
		},
		Color:       "team",
		Border:      "auto",
		StrokeWidth: 4,
		Alpha:       1,
	}
}

func (a Archetype) clone() Archetype {
	a.Controllers = append([]ControllerKind(nil), a.Controllers...)
	a.Upgrades = append([]string(nil), a.Upgrades...)
	a.Children = append([]string(nil), a.Children...)
	a.upgrades = nil
	return a
}

type archetypeDef struct {
	parent string
	apply  func(a *Archetype)
}

// ArchetypeRegistry holds archetype definitions and resolves parent
// inheritance once, at Load
type ArchetypeRegistry struct {
	defs     map[string]archetypeDef
	order    []string
	resolved map[string]*Archetype
	mockups  []*Archetype
}

// NewArchetypeRegistry creates an empty registry
func NewArchetypeRegistry() *ArchetypeRegistry {
	return &ArchetypeRegistry{
		defs:     make(map[string]archetypeDef),
		resolved: make(map[string]*Archetype),
	}
}

// Define registers name. apply receives a copy of the resolved parent (or the
// base defaults when parent is empty) and overrides what it needs.
func (r *ArchetypeRegistry) Define(name, parent string, apply func(a *Archetype)) {
	if _, ok := r.defs[name]; !ok {
		r.order = append(r.order, name)
	}
	r.defs[name] = archetypeDef{parent: parent, apply: apply}
}

// Load resolves every definition. It fails on a missing parent, an
// inheritance cycle or an unknown upgrade/child reference.
func (r *ArchetypeRegistry) Load() error {
	r.resolved = make(map[string]*Archetype, len(r.defs))
	r.mockups = r.mockups[:0]
	visiting := make(map[string]bool)

	for _, name := range r.order {
		if _, err := r.resolve(name, visiting); err != nil {
			return err
		}
	}

	for _, name := range r.order {
		a := r.resolved[name]
		for _, up := range a.Upgrades {
			target, ok := r.resolved[up]
			if !ok {
				return fmt.Errorf("archetype %q: unknown upgrade %q", name, up)
			}
			a.upgrades = append(a.upgrades, target)
		}
		for _, child := range a.Children {
			if _, ok := r.resolved[child]; !ok {
				return fmt.Errorf("archetype %q: unknown child %q", name, child)
			}
		}
		if a.Gun != nil {
			if _, ok := r.resolved[a.Gun.Bullet]; !ok {
				return fmt.Errorf("archetype %q: unknown bullet %q", name, a.Gun.Bullet)
			}
		}
	}
	return nil
}

func (r *ArchetypeRegistry) resolve(name string, visiting map[string]bool) (*Archetype, error) {
	if a, ok := r.resolved[name]; ok {
		return a, nil
	}
	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("archetype %q not found", name)
	}
	if visiting[name] {
		return nil, fmt.Errorf("archetype %q: inheritance cycle", name)
	}
	visiting[name] = true
	defer delete(visiting, name)

	base := defaultArchetype()
	if def.parent != "" {
		parent, err := r.resolve(def.parent, visiting)
		if err != nil {
			return nil, fmt.Errorf("parent of %q: %w", name, err)
		}
		base = parent.clone()
		// tier and children belong to the definition that declares them
		base.Tier = 0
		base.Children = nil
		base.Upgrades = nil
	}
	if def.apply != nil {
		def.apply(&base)
	}
	base.Key = name
	base.Parent = def.parent
	base.MockupID = len(r.mockups) + 1

	a := &base
	r.resolved[name] = a
	r.mockups = append(r.mockups, a)
	return a, nil
}

// Get returns the resolved archetype, or false if it does not exist
func (r *ArchetypeRegistry) Get(name string) (*Archetype, bool) {
	a, ok := r.resolved[name]
	return a, ok
}

// MustGet panics on an unknown archetype
func (r *ArchetypeRegistry) MustGet(name string) *Archetype {
	a, ok := r.resolved[name]
	if !ok {
		panic(fmt.Sprintf("archetype %q not loaded", name))
	}
	return a
}

// Mockups returns every resolved archetype ordered by mockup id
func (r *ArchetypeRegistry) Mockups() []*Archetype {
	out := append([]*Archetype(nil), r.mockups...)
	sort.Slice(out, func(i, j int) bool { return out[i].MockupID < out[j].MockupID })
	return out
}

func strPtr(s string) *string { return &s }

// DefaultArchetypes registers the stock arena archetypes and loads them
func DefaultArchetypes() (*ArchetypeRegistry, error) {
	r := NewArchetypeRegistry()

	r.Define("Entity", "", nil)

	r.Define("Basic", "Entity", func(a *Archetype) {
		a.Label = "Basic"
		a.KillMessage = true
		a.Score = 0
		a.Size = 10
		a.MiniMap = MiniMapPolicy{Kind: MiniMapTeam}
		a.Skill.Health = 140
		a.Skill.Regen = 0.1
		a.Skill.ShieldRegen = 0.1
		a.Skill.Damage = 10
		a.Skill.Pushability = 0.1
		a.Skill.FOV = 500
		a.Gun = &Gun{Bullet: "Bullet", Reload: 20, Speed: 6, Recoil: 0.1}
		a.Upgrades = []string{"Hunter", "Overseer"}
	})
	r.Define("Hunter", "Basic", func(a *Archetype) {
		a.Label = "Hunter"
		a.Tier = 1
		a.Skill.Speed = 0.6
		a.Skill.FOV = 600
		a.Gun = &Gun{Bullet: "Bullet", Reload: 12, Speed: 8, Recoil: 0.2}
	})
	r.Define("Overseer", "Basic", func(a *Archetype) {
		a.Label = "Overseer"
		a.Tier = 2
		a.Size = 12
		a.Skill.Health = 180
		a.Gun = nil
		a.Children = []string{"Drone", "Drone"}
	})
	r.Define("Drone", "Entity", func(a *Archetype) {
		a.Label = "Drone"
		a.Score = 0
		a.Size = 6
		a.GiveScore = false
		a.Controllers = []ControllerKind{ControllerMinion}
		a.Skill.Health = 20
		a.Skill.Damage = 4
		a.Skill.Speed = 0.4
		a.Skill.Pushability = 0.5
		a.Skill.Shield = 0
	})

	r.Define("Food", "Entity", func(a *Archetype) {
		a.Label = "Food"
		a.Name = strPtr("")
		a.Food = true
		a.KillMessage = true
		a.Score = 30
		a.Size = 10
		a.MiniMap = MiniMapPolicy{Kind: MiniMapTeam}
		a.Controllers = []ControllerKind{ControllerSlowCircle}
		a.Skill.Health = 20
		a.Skill.Regen = 0.001
		a.Skill.Damage = 10
		a.Skill.Pushability = 0.1
		a.Skill.FOV = 500
	})
	r.Define("Chaser", "Food", func(a *Archetype) {
		a.Label = "Chaser"
		a.Color = "red"
		a.Score = 150
		a.Size = 17
		a.Controllers = []ControllerKind{ControllerNearestPlayer}
	})

	r.Define("Wall", "Entity", func(a *Archetype) {
		a.Label = "Wall"
		a.Name = strPtr("")
		a.IsFixed = true
		a.GiveScore = false
		a.ShowHealth = false
		a.ShowName = false
		a.ShowScore = false
		a.Size = 50
		a.Mass = 1000
		a.Color = "gray"
		a.MiniMap = MiniMapPolicy{Kind: MiniMapAlways}
		a.Skill.Health = 1e9
		a.Skill.Damage = 5
		a.Skill.Speed = 0
	})
	r.Define("Base", "Wall", func(a *Archetype) {
		a.Label = "Base"
		a.Color = "team"
		a.Skill.Damage = 50
		a.Children = []string{"Sentry", "Sentry", "Sentry"}
	})
	r.Define("Sentry", "Drone", func(a *Archetype) {
		a.Label = "Sentry"
		a.Size = 8
		a.Controllers = []ControllerKind{ControllerMasterCircle, ControllerNearest}
		a.Skill.FOV = 400
	})

	r.Define("Bullet", "Entity", func(a *Archetype) {
		a.Label = "Bullet"
		a.Bullet = true
		a.GiveScore = false
		a.Score = 0
		a.Size = 4
		a.Skill.Health = 10
		a.Skill.Shield = 0
		a.Skill.Damage = 8
		a.Skill.Range = 90
		a.MiniMap = MiniMapPolicy{Kind: MiniMapNone}
	})

	if err := r.Load(); err != nil {
		return nil, fmt.Errorf("load archetypes: %w", err)
	}
	return r, nil
}
