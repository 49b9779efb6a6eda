package main

import (
	"fmt"
	"math"
)

const damageMultiplier = 1.0

// doDamage makes a and b hurt each other. With god set only b is hurt.
// Teammates never hurt each other.
func (w *World) doDamage(a, b *Entity, god bool) {
	if SameTeam(a, b) {
		return
	}
	w.applyDamage(b, a, a.Skill.Damage*damageMultiplier)
	if !god {
		w.applyDamage(a, b, b.Skill.Damage*damageMultiplier)
	}
}

// applyDamage hits victim's shield first and the remainder its health
func (w *World) applyDamage(victim, attacker *Entity, damage float64) {
	remaining := math.Max(0, damage-victim.Shield)
	victim.Shield = math.Max(0, victim.Shield-damage)
	if remaining > 0 {
		victim.Health -= remaining
	}

	victim.LastTickAttacked = victim.Tick
	for _, fn := range victim.onDamage {
		fn(victim, damage)
	}

	if victim.Health <= 0 {
		victim.emitDeath(attacker)
		if !victim.Die {
			w.giveScore(attacker, victim)
		}
		w.Remove(victim)
	}
}

// giveScore credits the victim's score to the killer's top master
func (w *World) giveScore(killer, victim *Entity) {
	if !victim.Archetype.GiveScore {
		return
	}
	score := victim.Score
	if !victim.Archetype.Food {
		score = math.Min(score, w.cfg.MaxGiveScore)
	}

	top := killer.TopMaster()
	top.Score += score

	for _, fn := range w.onKill {
		fn(top, victim, score)
	}

	if victim.Archetype.KillMessage && top.Messenger != nil {
		msg := victim.Archetype.KillText
		if msg == "" {
			msg = fmt.Sprintf("You killed %s.", victim.Title())
		}
		top.Messenger.SendMessage(msg)
	}
}
