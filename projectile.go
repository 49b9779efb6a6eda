package main

import "log"

// fire launches a bullet from e's gun when it is reloaded and the fire
// intent is held. The bullet is a child of e, so kills credit e's top
// master and the bullet dies with its shooter.
func (w *World) fire(e *Entity) {
	gun := e.Archetype.Gun
	if gun == nil {
		return
	}
	if e.reload > 0 {
		e.reload--
		return
	}
	if !e.Control.Fire {
		return
	}

	bullet, err := w.Create(gun.Bullet)
	if err != nil {
		log.Printf("entity %d gun: %v", e.ID, err)
		return
	}
	dir := FromAngle(e.Angle)
	bullet.Team = e.Team
	bullet.Team2 = e.Team2
	bullet.Name = e.Name
	bullet.Angle = e.Angle
	bullet.Pos = e.Pos.Add(dir.Scale(e.Size + bullet.Size))
	bullet.Vel = e.Vel.Add(dir.Scale(gun.Speed))
	w.Insert(bullet)
	w.Attach(bullet, e)

	e.Vel = e.Vel.Sub(dir.Scale(gun.Recoil))
	e.reload = gun.Reload
}

// expired reports whether a ranged entity has outlived its range in ticks
func expired(e *Entity) bool {
	return e.Skill.Range > 0 && float64(e.Tick) >= e.Skill.Range
}
