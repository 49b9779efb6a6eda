package main

import (
	"strings"
	"testing"
)

// recordingMessenger captures messages sent to an entity's controller
type recordingMessenger struct {
	messages []string
}

func (m *recordingMessenger) SendMessage(msg string) {
	m.messages = append(m.messages, msg)
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.SpawnLayout = nil
	cfg.Bases = nil
	return cfg
}

// testArchetypes is a small registry with predictable stats: no regen, no
// shield and no starting score unless a test sets them
func testArchetypes(t *testing.T) *ArchetypeRegistry {
	t.Helper()
	r := NewArchetypeRegistry()
	r.Define("Dummy", "", func(a *Archetype) {
		a.Label = "Dummy"
		a.Score = 0
		a.Size = 10
		a.Skill.Health = 100
		a.Skill.Regen = 0
		a.Skill.Shield = 0
		a.Skill.ShieldRegen = 0
		a.Skill.Damage = 10
		a.Skill.Pushability = 1
		a.Skill.FOV = 500
	})
	r.Define("Wall", "Dummy", func(a *Archetype) {
		a.Label = "Wall"
		a.IsFixed = true
		a.Size = 8
		a.Skill.Health = 1000
		a.Skill.Damage = 5
		a.MiniMap = MiniMapPolicy{Kind: MiniMapAlways}
	})
	r.Define("Bullet", "Dummy", func(a *Archetype) {
		a.Label = "Bullet"
		a.Bullet = true
		a.Size = 4
	})
	r.Define("Food", "Dummy", func(a *Archetype) {
		a.Label = "Food"
		a.Food = true
		a.Score = 30
	})
	r.Define("Plane", "Dummy", func(a *Archetype) {
		a.Label = "Plane"
		a.Airplane = true
	})
	r.Define("Parent", "Dummy", func(a *Archetype) {
		a.Label = "Parent"
		a.Children = []string{"Child", "Child"}
	})
	r.Define("Child", "Dummy", func(a *Archetype) {
		a.Label = "Child"
		a.Size = 4
	})
	r.Define("Free", "Child", func(a *Archetype) {
		a.Label = "Free"
		a.Independent = true
	})
	r.Define("Leveler", "Dummy", func(a *Archetype) {
		a.Label = "Leveler"
		a.Upgrades = []string{"TierOne", "TierTwo"}
		a.MiniMap = MiniMapPolicy{Kind: MiniMapTeam}
	})
	r.Define("TierOne", "Dummy", func(a *Archetype) {
		a.Label = "TierOne"
		a.Tier = 1
		a.Size = 20
		a.Children = []string{"Child"}
		a.Upgrades = []string{"TierTwo"}
	})
	r.Define("TierTwo", "Dummy", func(a *Archetype) {
		a.Label = "TierTwo"
		a.Tier = 2
	})
	r.Define("Shooter", "Dummy", func(a *Archetype) {
		a.Label = "Shooter"
		a.Gun = &Gun{Bullet: "Bullet", Reload: 5, Speed: 4}
	})
	if err := r.Load(); err != nil {
		t.Fatalf("load test archetypes: %v", err)
	}
	return r
}

func newTestWorld(t *testing.T) *World {
	t.Helper()
	return NewWorld(testConfig(), testArchetypes(t))
}

// spawnAt inserts a new entity of archetype name at (x, y) on team
func spawnAt(t *testing.T, w *World, name string, x, y float64, team int) *Entity {
	t.Helper()
	e, err := w.Create(name)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	e.Pos = Vector{x, y}
	e.Team = team
	w.Insert(e)
	return e
}

func TestWorldInsertAssignsIDs(t *testing.T) {
	w := newTestWorld(t)
	a := spawnAt(t, w, "Dummy", 100, 100, TeamBlue)
	b := spawnAt(t, w, "Dummy", 300, 300, TeamBlue)

	if a.ID != 1 || b.ID != 2 {
		t.Errorf("expected ids 1 and 2, got %d and %d", a.ID, b.ID)
	}
	if w.Len() != 2 {
		t.Errorf("expected 2 entities, got %d", w.Len())
	}
	if !w.index.Contains(a.ID) || !w.index.Contains(b.ID) {
		t.Error("inserted entities should be indexed")
	}
	if w.Get(b.ID) != b {
		t.Error("Get should return the inserted entity")
	}
	if a.LevelScore != 1 {
		t.Errorf("expected first level threshold 1, got %f", a.LevelScore)
	}
}

func TestWorldCreateUnknownArchetype(t *testing.T) {
	w := newTestWorld(t)
	if _, err := w.Create("Nope"); err == nil {
		t.Error("expected error for unknown archetype")
	}
}

func TestWorldInsertTwicePanics(t *testing.T) {
	w := newTestWorld(t)
	e := spawnAt(t, w, "Dummy", 0, 0, TeamBlue)
	defer func() {
		if recover() == nil {
			t.Error("expected second insert to panic")
		}
	}()
	w.Insert(e)
}

func TestWorldRemoveIsIdempotent(t *testing.T) {
	w := newTestWorld(t)
	e := spawnAt(t, w, "Dummy", 100, 100, TeamBlue)

	removed := 0
	w.OnRemove(func(*Entity) { removed++ })
	destroyed := 0
	e.OnDestroy(func(*Entity) { destroyed++ })

	w.Remove(e)
	w.Remove(e)

	if removed != 1 || destroyed != 1 {
		t.Errorf("expected one removal and one destroy, got %d and %d", removed, destroyed)
	}
	if !e.Die {
		t.Error("removed entity should be marked dying")
	}
	if w.index.Contains(e.ID) {
		t.Error("removed entity should leave the index")
	}
	if e.Controllers != nil {
		t.Error("destroy should clear controllers")
	}

	w.Update()
	if len(w.Entities()) != 0 || len(w.entities) != 0 {
		t.Error("removed entity should be compacted away")
	}
}

func TestWorldChildrenDieWithMaster(t *testing.T) {
	w := newTestWorld(t)
	parent := spawnAt(t, w, "Parent", 1000, 1000, TeamBlue)
	if parent.ChildCount() != 2 {
		t.Fatalf("expected 2 children, got %d", parent.ChildCount())
	}
	free := spawnAt(t, w, "Free", 1200, 1000, TeamBlue)
	w.Attach(free, parent)

	var children []*Entity
	for _, e := range w.Entities() {
		if e.Archetype.Key == "Child" {
			children = append(children, e)
			if e.Master() != parent {
				t.Errorf("child %d should report its master", e.ID)
			}
			if e.Team != TeamBlue {
				t.Errorf("child should inherit team, got %d", e.Team)
			}
			if e.IsMaster() {
				t.Error("child should not be a master")
			}
		}
	}
	if !free.IsMaster() || free.TopMaster() != free {
		t.Error("independent child should be its own top master")
	}

	w.Remove(parent)
	w.Update()

	for _, c := range children {
		if !c.Die {
			t.Errorf("child %d should die with its master", c.ID)
		}
	}
	if free.Die {
		t.Error("independent child should survive its master")
	}
}

func TestWorldLevelUpUnlocksUpgrades(t *testing.T) {
	w := newTestWorld(t)
	e := spawnAt(t, w, "Leveler", 100, 100, TeamBlue)
	if len(e.Upgrades) != 0 || e.UpgradeAdded {
		t.Fatal("expected no upgrades at level 0")
	}

	e.Score = 1
	w.Update()
	if e.Level != 0 {
		t.Errorf("score equal to the threshold should not level, got level %d", e.Level)
	}

	e.Score = 2
	w.Update()
	if e.Level != 1 {
		t.Fatalf("expected level 1, got %d", e.Level)
	}
	if e.LevelScore != 3 {
		t.Errorf("expected next threshold 3, got %f", e.LevelScore)
	}
	if len(e.Upgrades) != 1 || e.Upgrades[0].Key != "TierOne" {
		t.Errorf("expected TierOne unlocked, got %v", e.Upgrades)
	}
	if !e.UpgradeAdded {
		t.Error("expected UpgradeAdded after unlocking")
	}

	e.Score = 100
	w.Update()
	if e.Level != 6 {
		t.Errorf("expected several levels at once, got level %d", e.Level)
	}
	if len(e.Upgrades) != 2 {
		t.Errorf("expected both upgrades unlocked, got %d", len(e.Upgrades))
	}
}

func TestWorldUpgradeKeepsProgress(t *testing.T) {
	w := newTestWorld(t)
	e := spawnAt(t, w, "Leveler", 100, 100, TeamBlue)
	msgs := &recordingMessenger{}
	e.Messenger = msgs

	e.Score = 2
	w.Update()

	if err := w.Upgrade(e, 5); err == nil {
		t.Error("expected out of range upgrade to fail")
	}
	if err := w.Upgrade(e, 0); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if e.Archetype.Key != "TierOne" {
		t.Errorf("expected TierOne, got %s", e.Archetype.Key)
	}
	if e.Score != 2 || e.Level != 1 {
		t.Errorf("expected score and level kept, got %f / %d", e.Score, e.Level)
	}
	if e.Size != 20 {
		t.Errorf("expected new size 20, got %f", e.Size)
	}
	if e.ChildCount() != 1 {
		t.Errorf("expected the new archetype's child, got %d", e.ChildCount())
	}
	h := w.index.handles[e.ID]
	if h == nil || h.grid.cellSize <= e.AABB().longestEdge() {
		t.Error("upgraded entity should be reindexed into a grid that fits it")
	}
	if len(msgs.messages) != 1 || msgs.messages[0] != "You have upgraded to TierOne." {
		t.Errorf("unexpected messages %v", msgs.messages)
	}
}

func TestWorldUpgradeDropsOldChildren(t *testing.T) {
	w := newTestWorld(t)
	e := spawnAt(t, w, "Leveler", 100, 100, TeamBlue)
	e.Score = 2
	w.Update()
	if err := w.Upgrade(e, 0); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	var first EntityID
	for id := range e.children {
		first = id
	}

	e.Score = 100
	w.Update()
	if err := w.Upgrade(e, 0); err != nil {
		t.Fatalf("second upgrade: %v", err)
	}
	if e.Archetype.Key != "TierTwo" {
		t.Errorf("expected TierTwo, got %s", e.Archetype.Key)
	}
	if w.Get(first) != nil {
		t.Error("children of the previous archetype should be removed")
	}
}

func TestWorldBoundaryPullsBack(t *testing.T) {
	w := newTestWorld(t)
	e := spawnAt(t, w, "Dummy", -10, 50, TeamBlue)
	food := spawnAt(t, w, "Food", 50, w.cfg.Height+10, TeamRoom)
	plane := spawnAt(t, w, "Plane", -10, 200, TeamBlue)

	w.Update()

	if e.Vel.X <= 0 {
		t.Errorf("expected pull back to the right, got vel %v", e.Vel)
	}
	if want := 10 * w.cfg.BoundaryMultiplier; e.Vel.X != want {
		t.Errorf("expected vel.x %f, got %f", want, e.Vel.X)
	}
	if want := -10 * w.cfg.FoodBoundaryMultiplier; food.Vel.Y != want {
		t.Errorf("expected food vel.y %f, got %f", want, food.Vel.Y)
	}
	if plane.Vel.X != 0 {
		t.Error("airplanes ignore the boundary")
	}
}

func TestWorldRecoversFromPanickingCollision(t *testing.T) {
	cfg := testConfig()
	r := NewArchetypeRegistry()
	r.Define("Bomb", "", func(a *Archetype) {
		a.OnCollision = func(*World, *Entity, *Entity) { panic("boom") }
	})
	if err := r.Load(); err != nil {
		t.Fatal(err)
	}
	w := NewWorld(cfg, r)
	a := spawnAt(t, w, "Bomb", 100, 100, TeamBlue)
	b := spawnAt(t, w, "Bomb", 102, 100, TeamGreen)

	w.Update()

	if a.Tick != 1 || b.Tick != 1 {
		t.Error("entities should still be stepped after a collision panic")
	}
}

func TestWorldRecoversFromPanickingTick(t *testing.T) {
	w := newTestWorld(t)
	bad := spawnAt(t, w, "Dummy", 100, 100, TeamBlue)
	good := spawnAt(t, w, "Dummy", 900, 900, TeamBlue)
	bad.OnTick(func(*Entity) { panic("bad tick") })

	w.Update()

	if good.Tick != 1 {
		t.Error("a panicking entity should not stop the others")
	}
}

func TestWorldTickObserversRunFirst(t *testing.T) {
	w := newTestWorld(t)
	var seen []int
	w.OnTick(func(tick int) { seen = append(seen, tick) })
	w.Update()
	w.Update()
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("expected ticks [1 2], got %v", seen)
	}
	if w.Tick() != 2 {
		t.Errorf("expected tick 2, got %d", w.Tick())
	}
}

func TestWorldMiniMap(t *testing.T) {
	w := newTestWorld(t)
	wall := spawnAt(t, w, "Wall", 500, 500, TeamRoom)
	blue := spawnAt(t, w, "Leveler", 100, 100, TeamBlue)
	green := spawnAt(t, w, "Leveler", 2000, 2000, TeamGreen)
	spawnAt(t, w, "Dummy", 3000, 3000, TeamGreen)

	w.Update()

	mm := w.MiniMap()
	if len(mm) != 3 {
		t.Fatalf("expected 3 minimap entries, got %d", len(mm))
	}
	if mm[0] != wall {
		t.Error("minimap should be ordered by id")
	}
	if !w.MiniMapVisibleTo(wall, green) {
		t.Error("always-visible entity should show to everyone")
	}
	if w.MiniMapVisibleTo(blue, green) {
		t.Error("team entity should be hidden from the other team")
	}
	if !w.MiniMapVisibleTo(blue, blue) {
		t.Error("team entity should show to its own team")
	}

	w.Remove(wall)
	if len(w.MiniMap()) != 2 {
		t.Error("removed entity should leave the minimap")
	}
}

func TestWorldMiniMapCustomPolicyPanic(t *testing.T) {
	w := newTestWorld(t)
	a := spawnAt(t, w, "Dummy", 0, 0, TeamBlue)
	custom := *a.Archetype
	custom.MiniMap = MiniMapPolicy{Kind: MiniMapCustom, Fn: func(_, _ *Entity) bool { panic("nope") }}
	a.Archetype = &custom

	if w.MiniMapVisibleTo(a, a) {
		t.Error("a panicking policy should hide the entity")
	}
}

func TestWorldSpawnPicksConfiguredTeam(t *testing.T) {
	r, err := DefaultArchetypes()
	if err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.Teams = []int{TeamRed}
	w := NewWorld(cfg, r)

	e, err := w.Spawn("Ann")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if e.Team != TeamRed || e.Name != "Ann" {
		t.Errorf("expected Ann on red, got %s on %d", e.Name, e.Team)
	}
	if e.Pos.X < 0 || e.Pos.X > cfg.Width || e.Pos.Y < 0 || e.Pos.Y > cfg.Height {
		t.Errorf("spawn position %v outside the arena", e.Pos)
	}
	if !strings.HasPrefix(e.Title(), "Ann's") {
		t.Errorf("unexpected title %q", e.Title())
	}
}
