package main

import (
	"log"
	"math"
	"runtime/debug"
	"time"

	"github.com/sasha-s/go-deadlock"
	"github.com/vmihailenco/msgpack/v5"
)

const inboxSize = 1024

// Viewer receives per-viewer state frames
type Viewer interface {
	BodyID() EntityID
	SendBinary(data []byte)
}

type viewState struct {
	known map[EntityID]struct{}
}

// Game runs the world on a fixed tick and fans its state out to viewers.
// All world access happens under mu: the tick and the broadcast take it
// exclusively, the leaderboard refresh shares it.
type Game struct {
	mu deadlock.RWMutex

	cfg         *Config
	archetypes  *ArchetypeRegistry
	world       *World
	spawner     *Spawner
	leaderboard *Leaderboard
	analytics   *Analytics

	inbox chan func(w *World)

	viewers    map[Viewer]*viewState
	removed    []EntityID
	broadcasts int

	stopped bool
	stop    chan struct{}
}

// NewGame builds the world, places the team bases and wires the
// leaderboard, spawner and analytics into it. analytics may be nil.
func NewGame(cfg *Config, archetypes *ArchetypeRegistry, analytics *Analytics) (*Game, error) {
	w := NewWorld(cfg, archetypes)

	var recorder ScoreRecorder
	if analytics != nil {
		recorder = analytics
		analytics.Watch(w)
	}

	g := &Game{
		cfg:         cfg,
		archetypes:  archetypes,
		world:       w,
		spawner:     NewSpawner(w, cfg.SpawnLayout),
		leaderboard: NewLeaderboard(cfg.LeaderboardSize, recorder),
		analytics:   analytics,
		inbox:       make(chan func(w *World), inboxSize),
		viewers:     make(map[Viewer]*viewState),
		stop:        make(chan struct{}),
	}
	g.leaderboard.Watch(w)
	w.OnRemove(func(e *Entity) {
		g.removed = append(g.removed, e.ID)
	})

	if err := g.spawner.PlaceBases(cfg.Bases); err != nil {
		return nil, err
	}
	return g, nil
}

// Run starts the tick loop and the broadcast timers. It blocks until Stop.
func (g *Game) Run() {
	go g.broadcastLoop()
	go g.leaderboardLoop()

	ticker := time.NewTicker(g.cfg.TickRate)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.update()
		case <-g.stop:
			return
		}
	}
}

// Stop terminates the game loop. It is safe to call more than once.
func (g *Game) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.stopped {
		g.stopped = true
		close(g.stop)
	}
}

// Enqueue schedules fn to run against the world at the next tick boundary.
// It reports false when the mailbox is full.
func (g *Game) Enqueue(fn func(w *World)) bool {
	select {
	case g.inbox <- fn:
		return true
	default:
		log.Printf("game inbox full, dropping input")
		return false
	}
}

// AddViewer starts sending state frames to v
func (g *Game) AddViewer(v Viewer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.viewers[v] = &viewState{known: make(map[EntityID]struct{})}
}

// RemoveViewer stops sending state frames to v
func (g *Game) RemoveViewer(v Viewer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.viewers, v)
}

// EntityCount returns the number of live entities
func (g *Game) EntityCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.world.Len()
}

// Leaderboard returns the current ranking
func (g *Game) Leaderboard() []LeaderboardEntry { return g.leaderboard.Top() }

// Mockups describes every archetype for clients
func (g *Game) Mockups() []Mockup { return mockupsOf(g.archetypes) }

// spawnPlayer creates a player body next to its team's base. Only call it
// from a mailbox closure.
func (g *Game) spawnPlayer(w *World, name string) (*Entity, error) {
	e, err := w.Spawn(name)
	if err != nil {
		return nil, err
	}
	if pos, ok := g.spawner.SpawnPoint(e.Team); ok {
		e.Pos = pos
	}
	w.Insert(e)
	return e, nil
}

// update runs one game tick
func (g *Game) update() {
	start := time.Now()

	g.mu.Lock()
	g.drainInbox()
	g.world.Update()
	g.mu.Unlock()

	if elapsed := time.Since(start); elapsed > g.cfg.TickRate {
		log.Printf("tick %d overran: %v (budget %v)", g.world.Tick(), elapsed, g.cfg.TickRate)
	}
}

func (g *Game) drainInbox() {
	for {
		select {
		case fn := <-g.inbox:
			g.runInput(fn)
		default:
			return
		}
	}
}

func (g *Game) runInput(fn func(w *World)) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("input handler panicked: %v\n%s", r, debug.Stack())
		}
	}()
	fn(g.world)
}

func (g *Game) broadcastLoop() {
	rate := g.cfg.BroadcastRate
	if rate <= 0 {
		rate = 1
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.broadcast()
		case <-g.stop:
			return
		}
	}
}

func (g *Game) leaderboardLoop() {
	ticker := time.NewTicker(g.cfg.LeaderboardInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.refreshLeaderboard()
		case <-g.stop:
			return
		}
	}
}

type outgoing struct {
	viewer Viewer
	frame  []byte
}

// broadcast builds one state frame per viewer. It runs between ticks and
// clears the per-entity change flags once every viewer has seen them.
func (g *Game) broadcast() {
	g.mu.Lock()
	g.broadcasts++
	withScore := g.cfg.ScoreEvery > 0 && g.broadcasts%g.cfg.ScoreEvery == 0
	withMiniMap := g.cfg.MiniMapEvery > 0 && g.broadcasts%g.cfg.MiniMapEvery == 0

	entities := g.world.Entities()
	var miniMap []*Entity
	if withMiniMap {
		miniMap = g.world.MiniMap()
	}

	out := make([]outgoing, 0, len(g.viewers))
	for v, vs := range g.viewers {
		frame := g.buildFrame(v, vs, entities, miniMap, withScore)
		if frame == nil {
			continue
		}
		data, err := msgpack.Marshal(frame)
		if err != nil {
			log.Printf("encode state frame: %v", err)
			continue
		}
		out = append(out, outgoing{viewer: v, frame: data})
	}

	for _, e := range entities {
		e.Changed = false
		e.UpgradeAdded = false
	}
	g.removed = g.removed[:0]
	g.mu.Unlock()

	for _, o := range out {
		o.viewer.SendBinary(o.frame)
	}
}

// buildFrame returns nil when the viewer has nothing new to hear about
func (g *Game) buildFrame(v Viewer, vs *viewState, entities, miniMap []*Entity, withScore bool) *StateFrame {
	frame := &StateFrame{K: FrameState, Tick: g.world.Tick()}

	for _, id := range g.removed {
		if _, ok := vs.known[id]; ok {
			delete(vs.known, id)
			frame.Removed = append(frame.Removed, id)
		}
	}

	body := g.world.Get(v.BodyID())
	if body == nil {
		if len(frame.Removed) == 0 {
			return nil
		}
		return frame
	}
	frame.Self = body.ID

	frame.Entities = make([]EntityState, 0, 32)
	for _, e := range entities {
		if e != body && !body.CanSee(e) {
			continue
		}
		frame.Entities = append(frame.Entities, e.ToState())
		if _, ok := vs.known[e.ID]; !ok || e.Changed {
			vs.known[e.ID] = struct{}{}
			frame.Info = append(frame.Info, e.ToInfo())
		}
	}

	if body.UpgradeAdded {
		frame.Upgrades = upgradeOptions(body)
	}
	if withScore {
		frame.Score = &ScoreState{
			Score:      math.Round(body.Score),
			Level:      body.Level,
			LevelScore: body.LevelScore,
		}
	}
	for _, e := range miniMap {
		if e == body || !g.world.MiniMapVisibleTo(e, body) {
			continue
		}
		frame.MiniMap = append(frame.MiniMap, MiniMapEntry{
			ID:    e.ID,
			X:     math.Round(e.Pos.X),
			Y:     math.Round(e.Pos.Y),
			Team:  e.Team,
			Size:  e.Size,
			Fixed: e.Archetype.IsFixed,
		})
	}
	return frame
}

func (g *Game) refreshLeaderboard() {
	g.mu.RLock()
	g.leaderboard.Refresh(g.world)
	viewers := make([]Viewer, 0, len(g.viewers))
	for v := range g.viewers {
		viewers = append(viewers, v)
	}
	g.mu.RUnlock()

	data, err := msgpack.Marshal(LeaderboardFrame{K: FrameLeaderboard, Rows: g.leaderboard.Top()})
	if err != nil {
		log.Printf("encode leaderboard: %v", err)
		return
	}
	for _, v := range viewers {
		v.SendBinary(data)
	}
}
