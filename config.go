package main

import (
	"math"
	"time"
)

// Config is the arena configuration. The simulation only reads it.
type Config struct {
	Width  float64
	Height float64

	TickRate     time.Duration // duration of one simulation tick
	MaxGiveScore float64       // cap on score transferred for a non-food kill

	BoundaryMultiplier     float64 // pull-back strength outside the arena
	FoodBoundaryMultiplier float64

	RegenBonusDelay int     // ticks without damage before the regen bonus applies
	RegenBonus      float64 // flat health/shield bonus per tick once it applies

	LevelScore func(level int) float64 // score needed to reach level

	Teams []int // teams players are randomly assigned to

	WelcomeMessage string
	SocketTimeout  time.Duration // how long a disconnected body is kept for resume

	BroadcastRate       int // state frames per second
	ScoreEvery          int // broadcasts between score/level frames
	MiniMapEvery        int // broadcasts between minimap frames
	LeaderboardInterval time.Duration
	LeaderboardSize     int

	SpawnLayout [][]*SpawnRule // region grid; nil cells spawn nothing
	Bases       []BasePlacement
}

// BasePlacement puts a team base in the centre of a spawn region
type BasePlacement struct {
	Team int
	Col  int
	Row  int
}

// DefaultLevelScore is ceil(level^3 * 0.3)
func DefaultLevelScore(level int) float64 {
	return math.Ceil(math.Pow(float64(level), 3) * 0.3)
}

// DefaultConfig returns the stock 5000x5000 arena running at 60 Hz
func DefaultConfig() *Config {
	return &Config{
		Width:                  5000,
		Height:                 5000,
		TickRate:               time.Second / 60,
		MaxGiveScore:           99999999,
		BoundaryMultiplier:     0.05,
		FoodBoundaryMultiplier: 2,
		RegenBonusDelay:        60 * 70,
		RegenBonus:             5,
		LevelScore:             DefaultLevelScore,
		Teams:                  []int{TeamBlue, TeamGreen},
		WelcomeMessage:         "You have spawned! Welcome to the game.\nPlease report any bugs you encounter!",
		SocketTimeout:          60 * time.Second,
		BroadcastRate:          60,
		ScoreEvery:             20,
		MiniMapEvery:           10,
		LeaderboardInterval:    time.Second,
		LeaderboardSize:        10,
		SpawnLayout:            defaultSpawnLayout(),
		Bases: []BasePlacement{
			{Team: TeamBlue, Col: 0, Row: 0},
			{Team: TeamGreen, Col: 7, Row: 7},
		},
	}
}

// defaultSpawnLayout is an 8x8 region grid with an empty border ring and
// food everywhere inside it
func defaultSpawnLayout() [][]*SpawnRule {
	const n = 8
	food := &SpawnRule{
		Table: []WeightedArchetype{
			{Name: "Food", Weight: 1},
			{Name: "Chaser", Weight: 0.05},
		},
		Cap:           20,
		IntervalTicks: 60,
	}
	layout := make([][]*SpawnRule, n)
	for i := range layout {
		layout[i] = make([]*SpawnRule, n)
		for j := range layout[i] {
			if i > 0 && j > 0 && i < n-1 && j < n-1 {
				layout[i][j] = food
			}
		}
	}
	return layout
}
