package layout

import "math"

// Force passes run under the engine mutex, one tick at a time. Each pass
// accumulates into the bodies' force slots; integrate converts forces to
// velocity and velocity to position, then reasserts pins.

func (e *Engine) applyLinkForce() {
	for _, l := range e.links {
		src := &e.bodies[l.source]
		tgt := &e.bodies[l.target]

		dx := tgt.x - src.x
		dy := tgt.y - src.y
		dist := math.Hypot(dx, dy)
		if dist < 1e-6 {
			dist = 1e-6
			dx = 1e-6
		}

		// Positive when the pair is stretched past its target distance.
		pull := (dist - l.distance) / dist * e.cfg.LinkStrength * e.alpha
		fx := dx * pull / 2
		fy := dy * pull / 2

		src.fx += fx
		src.fy += fy
		tgt.fx -= fx
		tgt.fy -= fy
	}
}

func (e *Engine) applyRepulsion() {
	n := len(e.bodies)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a := &e.bodies[i]
			b := &e.bodies[j]

			dx := a.x - b.x
			dy := a.y - b.y
			dist := math.Hypot(dx, dy)
			if dist < 0.01 {
				dist = 0.01
				dx = 0.01
			}

			// strength inversely proportional to distance
			push := e.cfg.RepulsionStrength / dist * e.alpha
			fx := dx / dist * push
			fy := dy / dist * push

			a.fx += fx
			a.fy += fy
			b.fx -= fx
			b.fy -= fy
		}
	}
}

func (e *Engine) applyCentering() {
	cx := e.cfg.Width / 2
	cy := e.cfg.Height / 2
	for i := range e.bodies {
		b := &e.bodies[i]
		b.fx += (cx - b.x) * e.cfg.CenterStrength * e.alpha
		b.fy += (cy - b.y) * e.cfg.CenterStrength * e.alpha
	}
}

func (e *Engine) integrate() {
	for i := range e.bodies {
		b := &e.bodies[i]
		if b.pinned {
			b.x, b.y = b.px, b.py
			b.vx, b.vy = 0, 0
			b.fx, b.fy = 0, 0
			continue
		}

		b.vx = (b.vx + b.fx) * e.cfg.VelocityDecay
		b.vy = (b.vy + b.fy) * e.cfg.VelocityDecay
		b.x += b.vx
		b.y += b.vy
		b.fx, b.fy = 0, 0
	}
}

// applyCollision separates overlapping glyphs after integration: any pair
// closer than the sum of their rendered radii plus the margin is pushed
// apart along the connecting axis. Pinned bodies do not move; their
// partner absorbs the full displacement.
func (e *Engine) applyCollision() {
	n := len(e.bodies)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a := &e.bodies[i]
			b := &e.bodies[j]

			minDist := a.radius + b.radius + e.cfg.CollisionMargin
			dx := b.x - a.x
			dy := b.y - a.y
			dist := math.Hypot(dx, dy)
			if dist >= minDist {
				continue
			}
			if dist < 1e-6 {
				dist = 1e-6
				dx = 1e-6
			}

			overlap := minDist - dist
			ux := dx / dist
			uy := dy / dist

			switch {
			case a.pinned && b.pinned:
				// both held by the user, leave them
			case a.pinned:
				b.x += ux * overlap
				b.y += uy * overlap
			case b.pinned:
				a.x -= ux * overlap
				a.y -= uy * overlap
			default:
				a.x -= ux * overlap / 2
				a.y -= uy * overlap / 2
				b.x += ux * overlap / 2
				b.y += uy * overlap / 2
			}
		}
	}
}
