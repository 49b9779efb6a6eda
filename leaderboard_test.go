package main

import "testing"

type recordedScore struct {
	name, label string
	score       float64
	level       int
}

type fakeRecorder struct {
	scores []recordedScore
}

func (f *fakeRecorder) RecordScore(name, label string, score float64, level int) {
	f.scores = append(f.scores, recordedScore{name, label, score, level})
}

func TestLeaderboardRanksMasters(t *testing.T) {
	w := newTestWorld(t)
	lb := NewLeaderboard(2, nil)
	lb.Watch(w)

	low := spawnAt(t, w, "Dummy", 100, 100, TeamBlue)
	low.Name, low.Score = "low", 10
	high := spawnAt(t, w, "Dummy", 300, 100, TeamGreen)
	high.Name, high.Score = "high", 500
	mid := spawnAt(t, w, "Dummy", 500, 100, TeamBlue)
	mid.Name, mid.Score = "mid", 100
	food := spawnAt(t, w, "Food", 700, 100, TeamRoom)
	food.Score = 9999
	child := spawnAt(t, w, "Child", 900, 100, TeamBlue)
	child.Score = 9999
	w.Attach(child, low)
	spawnAt(t, w, "Dummy", 1100, 100, TeamBlue) // no score yet

	lb.Refresh(w)
	top := lb.Top()

	if len(top) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(top))
	}
	if top[0].ID != high.ID || top[1].ID != mid.ID {
		t.Errorf("expected high then mid, got %v", top)
	}
	if top[0].Title != "high - Dummy" || top[0].Team != TeamGreen {
		t.Errorf("unexpected row %+v", top[0])
	}
}

func TestLeaderboardDropsRemoved(t *testing.T) {
	w := newTestWorld(t)
	rec := &fakeRecorder{}
	lb := NewLeaderboard(10, rec)
	lb.Watch(w)

	a := spawnAt(t, w, "Dummy", 100, 100, TeamBlue)
	a.Name, a.Score, a.Level = "ann", 300, 4
	b := spawnAt(t, w, "Dummy", 300, 100, TeamBlue)
	b.Score = 200
	lb.Refresh(w)

	snapshot := lb.Top()
	w.Remove(a)

	top := lb.Top()
	if len(top) != 1 || top[0].ID != b.ID {
		t.Errorf("expected only b left, got %v", top)
	}
	if len(snapshot) != 2 {
		t.Error("earlier snapshots should be unaffected")
	}

	if len(rec.scores) != 1 {
		t.Fatalf("expected one recorded score, got %d", len(rec.scores))
	}
	if got := rec.scores[0]; got != (recordedScore{"ann", "Dummy", 300, 4}) {
		t.Errorf("unexpected record %+v", got)
	}
}

func TestLeaderboardSkipsUnranked(t *testing.T) {
	w := newTestWorld(t)
	rec := &fakeRecorder{}
	lb := NewLeaderboard(10, rec)
	lb.Watch(w)

	food := spawnAt(t, w, "Food", 100, 100, TeamRoom)
	food.Score = 1000
	fresh := spawnAt(t, w, "Dummy", 300, 100, TeamBlue)

	w.Remove(food)
	w.Remove(fresh)

	if len(rec.scores) != 0 {
		t.Errorf("expected no records for food or scoreless entities, got %v", rec.scores)
	}
}
