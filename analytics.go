package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Event types for analytics tracking
const (
	EvtSpawn      = "spawn"
	EvtKill       = "kill"
	EvtDeath      = "death"
	EvtLevelUp    = "level_up"
	EvtUpgrade    = "upgrade"
	EvtSessionEnd = "session_end"
	EvtFinalScore = "final_score"
)

const (
	analyticsBuffer     = 1024
	analyticsBatchSize  = 50
	analyticsFlushEvery = 5 * time.Second
)

// AnalyticsEvent represents a single trackable event
type AnalyticsEvent struct {
	Type      string
	EntityID  EntityID
	SessionID string
	Data      string // JSON metadata (optional)
	Timestamp time.Time

	score *finalScore
}

type finalScore struct {
	name  string
	label string
	score float64
	level int
}

// Analytics handles event tracking with batched background writes
type Analytics struct {
	db     *DB
	events chan AnalyticsEvent
	stop   chan struct{}
	wg     sync.WaitGroup

	mu      sync.RWMutex
	dropped int
}

// NewAnalytics creates and starts the analytics background writer
func NewAnalytics(db *DB) *Analytics {
	a := &Analytics{
		db:     db,
		events: make(chan AnalyticsEvent, analyticsBuffer),
		stop:   make(chan struct{}),
	}
	a.wg.Add(1)
	go a.writer()
	return a
}

// Track enqueues an event for async persistence (non-blocking)
func (a *Analytics) Track(evtType string, id EntityID, sessionID string, data interface{}) {
	var encoded string
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			log.Printf("analytics: marshal %s: %v", evtType, err)
		} else {
			encoded = string(b)
		}
	}
	a.enqueue(AnalyticsEvent{
		Type:      evtType,
		EntityID:  id,
		SessionID: sessionID,
		Data:      encoded,
		Timestamp: time.Now().UTC(),
	})
}

// RecordScore queues a finished run for the high score table
func (a *Analytics) RecordScore(name, label string, score float64, level int) {
	a.enqueue(AnalyticsEvent{
		Type:      EvtFinalScore,
		Timestamp: time.Now().UTC(),
		score:     &finalScore{name: name, label: label, score: score, level: level},
	})
}

func (a *Analytics) enqueue(evt AnalyticsEvent) {
	select {
	case a.events <- evt:
	default:
		// Channel full, drop rather than stall the tick
		a.mu.Lock()
		a.dropped++
		a.mu.Unlock()
	}
}

// Dropped returns how many events were discarded because the queue was full
func (a *Analytics) Dropped() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dropped
}

// Watch subscribes the tracker to a world's lifecycle events. Must be
// called before the world starts ticking.
func (a *Analytics) Watch(w *World) {
	w.OnInsert(func(e *Entity) {
		if e.Archetype.Key == "Basic" {
			a.Track(EvtSpawn, e.ID, "", map[string]interface{}{"name": e.Name, "team": e.Team})
		}
		level := e.Level
		e.OnTick(func(e *Entity) {
			if e.Level > level {
				level = e.Level
				if e.IsMaster() && !e.Archetype.Food {
					a.Track(EvtLevelUp, e.ID, "", map[string]int{"level": level})
				}
			}
		})
	})
	w.OnKill(func(killer, victim *Entity, score float64) {
		if victim.Archetype.Food {
			return
		}
		a.Track(EvtKill, killer.ID, "", map[string]interface{}{
			"victim": victim.ID,
			"label":  victim.Archetype.Label,
			"score":  score,
		})
		a.Track(EvtDeath, victim.ID, "", map[string]interface{}{"killer": killer.ID})
	})
}

// Stop gracefully shuts down the analytics writer
func (a *Analytics) Stop() {
	close(a.stop)
	a.wg.Wait()
}

// writer is the background goroutine that batches and writes events to DB
func (a *Analytics) writer() {
	defer a.wg.Done()

	batch := make([]AnalyticsEvent, 0, 64)
	ticker := time.NewTicker(analyticsFlushEvery)
	defer ticker.Stop()

	for {
		select {
		case evt := <-a.events:
			batch = append(batch, evt)
			if len(batch) >= analyticsBatchSize {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-a.stop:
			// Drain remaining events
			for {
				select {
				case evt := <-a.events:
					batch = append(batch, evt)
					continue
				default:
				}
				break
			}
			if len(batch) > 0 {
				a.flush(batch)
			}
			return
		}
	}
}

// flush writes a batch of events to the database
func (a *Analytics) flush(events []AnalyticsEvent) {
	if a.db == nil || len(events) == 0 {
		return
	}
	tx, err := a.db.conn.Begin()
	if err != nil {
		log.Printf("analytics: begin tx error: %v", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO analytics_events (event_type, entity_id, session_id, data, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		log.Printf("analytics: prepare error: %v", err)
		return
	}
	defer stmt.Close()

	scoreStmt, err := tx.Prepare(`INSERT INTO high_scores (name, label, score, level) VALUES (?, ?, ?, ?)`)
	if err != nil {
		log.Printf("analytics: prepare error: %v", err)
		return
	}
	defer scoreStmt.Close()

	for _, evt := range events {
		if evt.score != nil {
			s := evt.score
			if _, err := scoreStmt.Exec(s.name, s.label, s.score, s.level); err != nil {
				log.Printf("analytics: score insert error: %v", err)
			}
			continue
		}
		id := sql.NullInt64{Int64: int64(evt.EntityID), Valid: evt.EntityID > 0}
		sid := sql.NullString{String: evt.SessionID, Valid: evt.SessionID != ""}
		data := sql.NullString{String: evt.Data, Valid: evt.Data != ""}
		if _, err := stmt.Exec(evt.Type, id, sid, data, evt.Timestamp.Format(time.RFC3339)); err != nil {
			log.Printf("analytics: insert error: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		log.Printf("analytics: commit error: %v", err)
	}
}

// EventCounts returns counts of each event type for the last N days
func (a *Analytics) EventCounts(days int) (map[string]int, error) {
	if a.db == nil {
		return nil, nil
	}
	rows, err := a.db.conn.Query(`
		SELECT event_type, COUNT(*) FROM analytics_events
		WHERE created_at >= date('now', '-' || ? || ' days')
		GROUP BY event_type ORDER BY COUNT(*) DESC
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var evtType string
		var count int
		if err := rows.Scan(&evtType, &count); err != nil {
			continue
		}
		result[evtType] = count
	}
	return result, rows.Err()
}
