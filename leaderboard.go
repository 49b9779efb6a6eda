package main

import (
	"fmt"
	"sort"
	"sync"
)

// LeaderboardEntry is one row of the live leaderboard
type LeaderboardEntry struct {
	ID    EntityID `msgpack:"id" json:"id"`
	Title string   `msgpack:"title" json:"title"`
	Score float64  `msgpack:"score" json:"score"`
	Team  int      `msgpack:"team" json:"team"`
}

// ScoreRecorder persists a finished run
type ScoreRecorder interface {
	RecordScore(name, label string, score float64, level int)
}

// Leaderboard ranks the top masters by score. Refresh runs between ticks;
// Top may be called from any goroutine.
type Leaderboard struct {
	size     int
	recorder ScoreRecorder

	mu  sync.RWMutex
	top []LeaderboardEntry
}

// NewLeaderboard creates a leaderboard keeping size rows. recorder may be nil.
func NewLeaderboard(size int, recorder ScoreRecorder) *Leaderboard {
	return &Leaderboard{size: size, recorder: recorder}
}

// Watch drops removed entities from the board and records their final
// score. Must be called before the world starts ticking.
func (l *Leaderboard) Watch(w *World) {
	w.OnRemove(func(e *Entity) {
		l.drop(e.ID)
		if l.recorder != nil && ranks(e) {
			l.recorder.RecordScore(e.Name, e.Archetype.Label, e.Score, e.Level)
		}
	})
}

// ranks reports whether e belongs on the leaderboard
func ranks(e *Entity) bool {
	return !e.Archetype.Food && e.IsMaster() && e.Score > e.Archetype.Score
}

// Refresh recomputes the ranking from the world
func (l *Leaderboard) Refresh(w *World) {
	var rows []LeaderboardEntry
	for _, e := range w.Entities() {
		if !ranks(e) {
			continue
		}
		rows = append(rows, LeaderboardEntry{
			ID:    e.ID,
			Title: fmt.Sprintf("%s - %s", e.Name, e.Archetype.Label),
			Score: e.Score,
			Team:  e.Team,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
	if len(rows) > l.size {
		rows = rows[:l.size]
	}

	l.mu.Lock()
	l.top = rows
	l.mu.Unlock()
}

func (l *Leaderboard) drop(id EntityID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, row := range l.top {
		if row.ID == id {
			l.top = append(l.top[:i:i], l.top[i+1:]...)
			return
		}
	}
}

// Top returns a copy of the current ranking
func (l *Leaderboard) Top() []LeaderboardEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]LeaderboardEntry, len(l.top))
	copy(out, l.top)
	return out
}
