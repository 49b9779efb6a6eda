package main

import "math"

const (
	restitution            = 0.9
	wallBoundaryMultiplier = 0.7
	wallBoundaryPadding    = 10.0
)

// CheckCollision checks if two circles overlap (touching counts)
func CheckCollision(a Vector, ra float64, b Vector, rb float64) bool {
	d := b.Sub(a)
	radSum := ra + rb
	return d.Dot(d) <= radSum*radSum
}

// handleCollision resolves one broad-phase pair
func (w *World) handleCollision(a, b *Entity) {
	if fn := a.Archetype.OnCollision; fn != nil {
		fn(w, a, b)
	}
	if fn := b.Archetype.OnCollision; fn != nil {
		fn(w, b, a)
	}
	if a.Die || b.Die {
		return
	}

	switch {
	case a.Archetype.HitType.Kind != HitAuto || b.Archetype.HitType.Kind != HitAuto:
		w.handleCustomHit(a, b)
	case a.Archetype.IsFixed || b.Archetype.IsFixed:
		w.handleFixedCollision(a, b)
	default:
		w.handleDynamicCollision(a, b)
	}
}

func (w *World) handleCustomHit(a, b *Entity) {
	ha, hb := a.Archetype.HitType, b.Archetype.HitType
	if ha.Kind == HitNone || hb.Kind == HitNone {
		return
	}
	if ha.Kind == HitCustom && ha.Fn != nil {
		ha.Fn(w, a, b)
	}
	if hb.Kind == HitCustom && hb.Fn != nil && !a.Die && !b.Die {
		hb.Fn(w, b, a)
	}
}

// handleFixedCollision: the fixed side never moves or takes damage. Bullets
// are removed, everything else is hurt and pushed out of the wall.
func (w *World) handleFixedCollision(a, b *Entity) {
	wall, mover := a, b
	if b.Archetype.IsFixed {
		wall, mover = b, a
	}
	if mover.Archetype.IsFixed || mover.Archetype.Airplane {
		return
	}

	if mover.Archetype.Bullet {
		mover.emitDeath(nil)
		w.Remove(mover)
		return
	}

	w.doDamage(wall, mover, true)
	if mover.Die {
		return
	}

	pad := wall.Size*wallBoundaryMultiplier + wallBoundaryPadding
	dx := mover.Pos.X - wall.Pos.X
	dy := mover.Pos.Y - wall.Pos.Y
	if math.Abs(dx) < math.Abs(dy) {
		if dy < 0 {
			mover.Pos.Y = wall.Pos.Y - pad
		} else {
			mover.Pos.Y = wall.Pos.Y + pad
		}
	} else {
		if dx < 0 {
			mover.Pos.X = wall.Pos.X - pad
		} else {
			mover.Pos.X = wall.Pos.X + pad
		}
	}
}

func (w *World) handleDynamicCollision(a, b *Entity) {
	if !CheckCollision(a.Pos, a.Size, b.Pos, b.Size) {
		return
	}
	// The one exception to elastic resolution besides airplanes: a bullet
	// never touches its own hierarchy, so it cannot hit or shove the shooter
	// or a sibling bullet. Other teammates are pushed but not hurt.
	if (a.Archetype.Bullet || b.Archetype.Bullet) && a.TopMaster() == b.TopMaster() {
		return
	}

	w.doDamage(a, b, false)

	if a.Die || b.Die || a.Archetype.Airplane || b.Archetype.Airplane {
		return
	}
	resolveElasticCollision(a, b)
}

// resolveElasticCollision separates a and b along the contact normal and
// exchanges an impulse when they are closing
func resolveElasticCollision(a, b *Entity) {
	dist := a.Pos.Distance(b.Pos)
	normal := b.Pos.Sub(a.Pos).Normalize()
	overlap := a.Size + b.Size - dist

	correction := normal.Scale(overlap / 2)
	b.Pos = b.Pos.Add(correction)
	a.Pos = a.Pos.Sub(correction)

	velAlongNormal := b.Vel.Sub(a.Vel).Dot(normal)
	if velAlongNormal >= 0 {
		return
	}

	push := min(a.Skill.Pushability, b.Skill.Pushability)
	ma, mb := a.Mass(), b.Mass()
	j := -(1 + push*restitution) * velAlongNormal / (1/ma + 1/mb)

	impulse := normal.Scale(j)
	a.Vel = a.Vel.Sub(impulse.Scale(1 / ma))
	b.Vel = b.Vel.Add(impulse.Scale(1 / mb))
}
