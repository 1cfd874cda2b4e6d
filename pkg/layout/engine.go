// Package layout positions fraud-network nodes with an iterative force
// simulation: link springs pull connected nodes together, many-body
// repulsion spreads them apart, a weak centering force keeps the layout
// on canvas, and a collision pass keeps glyphs from overlapping.
//
// The engine owns all positions in its own store keyed by node id; callers
// read copies via Positions and never hold references into simulation
// state.
package layout

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/sentinelhealth/fraudmap/pkg/graph"
)

// State describes the engine lifecycle. A fresh engine is Idle, ticks as
// Running, cools into Settled once its temperature drops below the
// configured minimum, and becomes Stopped when released. Reheating moves a
// Settled engine back to Running.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateSettled
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSettled:
		return "settled"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

var (
	ErrEmptySnapshot = errors.New("layout: snapshot has no nodes")
	ErrNotIdle       = errors.New("layout: engine already started")
)

// Position is a 2D coordinate in canvas space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Config tunes the simulation. Zero values are replaced with defaults.
type Config struct {
	Width  float64
	Height float64

	// Alpha is the simulation temperature: it starts at Alpha, decays by
	// AlphaDecay per tick, and the engine settles below AlphaMin.
	Alpha      float64
	AlphaMin   float64
	AlphaDecay float64

	// VelocityDecay is the per-tick velocity retention factor.
	VelocityDecay float64

	// Link target distance: LinkBase + LinkScale/(weight+LinkEpsilon).
	// Heavier edges pull their endpoints closer.
	LinkBase     float64
	LinkScale    float64
	LinkEpsilon  float64
	LinkStrength float64

	RepulsionStrength float64
	CenterStrength    float64
	CollisionMargin   float64

	TickInterval time.Duration

	// Seed fixes the initial placement for reproducible layouts. Zero
	// seeds from the clock.
	Seed int64

	// Radius reports a node's rendered radius, used by the collision
	// pass. Nil falls back to a flat radius.
	Radius func(graph.Node) float64
}

func (c Config) withDefaults() Config {
	if c.Width <= 0 {
		c.Width = 960
	}
	if c.Height <= 0 {
		c.Height = 600
	}
	if c.Alpha <= 0 {
		c.Alpha = 1.0
	}
	if c.AlphaMin <= 0 {
		c.AlphaMin = 0.005
	}
	if c.AlphaDecay <= 0 {
		c.AlphaDecay = 0.03
	}
	if c.VelocityDecay <= 0 {
		c.VelocityDecay = 0.6
	}
	if c.LinkBase <= 0 {
		c.LinkBase = 40
	}
	if c.LinkScale <= 0 {
		c.LinkScale = 60
	}
	if c.LinkEpsilon <= 0 {
		c.LinkEpsilon = 0.1
	}
	if c.LinkStrength <= 0 {
		c.LinkStrength = 0.7
	}
	if c.RepulsionStrength <= 0 {
		c.RepulsionStrength = 800
	}
	if c.CenterStrength <= 0 {
		c.CenterStrength = 0.05
	}
	if c.CollisionMargin <= 0 {
		c.CollisionMargin = 4
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 16 * time.Millisecond
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	if c.Radius == nil {
		c.Radius = func(graph.Node) float64 { return 8 }
	}
	return c
}

// LinkDistance returns the target separation for an edge of the given
// weight under cfg: heavier edges get shorter distances.
func LinkDistance(weight float64, cfg Config) float64 {
	cfg = cfg.withDefaults()
	if weight < 0 {
		weight = 0
	}
	return cfg.LinkBase + cfg.LinkScale/(weight+cfg.LinkEpsilon)
}

type body struct {
	x, y   float64
	vx, vy float64
	fx, fy float64

	pinned bool
	px, py float64

	radius float64
}

type link struct {
	source, target int
	distance       float64
}

// Engine runs the force simulation for one snapshot. Replacing the
// snapshot means stopping this engine and constructing a new one.
type Engine struct {
	cfg Config

	mu     sync.Mutex
	state  State
	alpha  float64
	ids    []string
	index  map[string]int
	bodies []body
	links  []link

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds an engine for the snapshot with randomized initial placement.
// A single node is centered immediately.
func New(snap graph.Snapshot, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewSource(cfg.Seed))

	e := &Engine{
		cfg:   cfg,
		state: StateIdle,
		alpha: cfg.Alpha,
		index: make(map[string]int, len(snap.Nodes)),
	}

	padX := cfg.Width * 0.1
	padY := cfg.Height * 0.1
	for _, n := range snap.Nodes {
		if _, ok := e.index[n.ID]; ok {
			continue
		}
		b := body{
			x:      padX + rng.Float64()*(cfg.Width-2*padX),
			y:      padY + rng.Float64()*(cfg.Height-2*padY),
			radius: cfg.Radius(n),
		}
		e.index[n.ID] = len(e.bodies)
		e.ids = append(e.ids, n.ID)
		e.bodies = append(e.bodies, b)
	}

	if len(e.bodies) == 1 {
		e.bodies[0].x = cfg.Width / 2
		e.bodies[0].y = cfg.Height / 2
	}

	for _, edge := range snap.Edges {
		si, ok := e.index[edge.SourceID]
		if !ok {
			continue
		}
		ti, ok := e.index[edge.TargetID]
		if !ok || si == ti {
			continue
		}
		e.links = append(e.links, link{
			source:   si,
			target:   ti,
			distance: LinkDistance(edge.Weight, cfg),
		})
	}

	return e
}

// Start launches the tick loop. It refuses to start for an empty snapshot
// and may only be called once per engine.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.bodies) == 0 {
		return ErrEmptySnapshot
	}
	if e.state != StateIdle {
		return ErrNotIdle
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.state = StateRunning

	go e.run(loopCtx)
	return nil
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			e.state = StateStopped
			e.mu.Unlock()
			return
		case <-ticker.C:
			e.Step()
		}
	}
}

// Stop halts the tick loop and waits for it to exit. After Stop returns,
// no further position updates occur. Stop is safe to call multiple times
// and on a never-started engine.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	done := e.done
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	e.mu.Lock()
	e.state = StateStopped
	e.mu.Unlock()
}

// Step advances the simulation by one tick: all forces applied in order,
// positions integrated, then the settle condition evaluated. A settled or
// stopped engine does not move.
func (e *Engine) Step() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning {
		return
	}

	e.applyLinkForce()
	e.applyRepulsion()
	e.applyCentering()
	e.integrate()
	e.applyCollision()

	e.alpha *= 1 - e.cfg.AlphaDecay
	if e.alpha < e.cfg.AlphaMin {
		e.state = StateSettled
	}
}

// State reports the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Alpha reports the current simulation temperature.
func (e *Engine) Alpha() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.alpha
}

// Positions returns a copy of the current positions keyed by node id.
func (e *Engine) Positions() map[string]Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	positions := make(map[string]Position, len(e.bodies))
	for i, id := range e.ids {
		positions[id] = Position{X: e.bodies[i].x, Y: e.bodies[i].y}
	}
	return positions
}

// Pin holds a node exactly at (x, y): forces stop moving it and its
// position is reasserted after every integration until Unpin.
func (e *Engine) Pin(id string, x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, ok := e.index[id]
	if !ok {
		return
	}
	b := &e.bodies[i]
	b.pinned = true
	b.px, b.py = x, y
	b.x, b.y = x, y
	b.vx, b.vy = 0, 0
}

// Unpin releases a pinned node back into free simulation.
func (e *Engine) Unpin(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, ok := e.index[id]
	if !ok {
		return
	}
	e.bodies[i].pinned = false
}

// Pinned reports whether the node is currently pinned.
func (e *Engine) Pinned(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, ok := e.index[id]
	if !ok {
		return false
	}
	return e.bodies[i].pinned
}

// Reheat restores the temperature to its starting value so the simulation
// resumes reacting, e.g. when a drag begins or the view is reset. It has
// no effect on a stopped engine.
func (e *Engine) Reheat() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateStopped {
		return
	}
	e.alpha = e.cfg.Alpha
	if e.state == StateSettled {
		e.state = StateRunning
	}
}
