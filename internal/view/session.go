// Package view mounts interactive graph views: one session per mounted
// view, holding the adapted snapshot, a running layout engine and the
// interaction state the renderer paints from.
package view

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sentinelhealth/fraudmap/internal/upstream"
	"github.com/sentinelhealth/fraudmap/pkg/graph"
	"github.com/sentinelhealth/fraudmap/pkg/layout"
	"github.com/sentinelhealth/fraudmap/pkg/logger"
	"github.com/sentinelhealth/fraudmap/pkg/render"
)

// Source selects where a session's snapshot comes from.
type Source string

const (
	// SourceStatic renders a snapshot supplied at open time.
	SourceStatic Source = "static"
	// SourceProvider renders the referral network around one provider.
	SourceProvider Source = "provider"
	// SourceRings renders the aggregate fraud-ring view.
	SourceRings Source = "rings"
	// SourceCDPAP renders the patient-caregiver network.
	SourceCDPAP Source = "cdpap"
)

const (
	minDepth = 1
	maxDepth = 4

	defaultDepth = 2
	defaultLimit = 200
)

func clampDepth(depth int) int {
	if depth < minDepth {
		return minDepth
	}
	if depth > maxDepth {
		return maxDepth
	}
	return depth
}

// NewSessionParams configures a session at open time.
type NewSessionParams struct {
	ID     string
	Client *upstream.Client

	Source     Source
	Snapshot   *graph.Snapshot
	ProviderID string
	Depth      int
	MinScore   float64
	Limit      int

	Width  int
	Height int
	Layout layout.Config
}

// Session is one mounted graph view. All state transitions go through
// the session mutex; the layout engine ticks on its own goroutine and
// is only ever swapped under that mutex, old engine stopped first.
type Session struct {
	id       string
	client   *upstream.Client
	renderer render.Renderer

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	source     Source
	providerID string
	depth      int
	minScore   float64
	limit      int

	snapshot graph.Snapshot
	engine   *layout.Engine
	view     render.Viewport

	hoverID    string
	selectedID string
	draggingID string
	flatColor  bool

	loading   bool
	firstLoad bool
	lastErr   string
	lastUsed  time.Time

	// fetchGen invalidates in-flight fetches: a fetch only applies its
	// result when the generation it was started with is still current.
	fetchGen uint64
	closed   bool

	layoutCfg layout.Config
}

// NewSession opens a session and kicks off the initial fetch. Static
// sessions mount their snapshot immediately.
func NewSession(params NewSessionParams) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	renderer := render.NewRenderer(params.Width, params.Height)
	cfg := params.Layout
	if cfg.Width == 0 {
		cfg.Width = float64(renderer.Width)
	}
	if cfg.Height == 0 {
		cfg.Height = float64(renderer.Height)
	}
	if cfg.Radius == nil {
		cfg.Radius = func(n graph.Node) float64 {
			return render.NodeRadius(n.RiskScore)
		}
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	depth := params.Depth
	if depth == 0 {
		depth = defaultDepth
	}

	s := &Session{
		id:         params.ID,
		client:     params.Client,
		renderer:   renderer,
		ctx:        ctx,
		cancel:     cancel,
		source:     params.Source,
		providerID: params.ProviderID,
		depth:      clampDepth(depth),
		minScore:   params.MinScore,
		limit:      limit,
		view:       render.NewViewport(),
		firstLoad:  true,
		lastUsed:   time.Now(),
		layoutCfg:  cfg,
	}

	if params.Source == SourceStatic {
		snap := graph.Snapshot{}
		if params.Snapshot != nil {
			snap = graph.Sanitize(*params.Snapshot)
		}
		s.mu.Lock()
		s.applySnapshotLocked(snap, s.fetchGen)
		s.firstLoad = false
		s.mu.Unlock()
		return s
	}

	go s.fetch(s.beginFetch())
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// IdleSince reports the last time the session was touched.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Touch marks the session as active.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// beginFetch flips the loading flag and returns the generation the
// caller's fetch belongs to.
func (s *Session) beginFetch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchGen++
	s.loading = true
	s.lastErr = ""
	return s.fetchGen
}

// fetch pulls the snapshot for the current source and applies it if the
// session has not moved on in the meantime. A fetch resolving after
// Close or a newer refresh is a no-op.
func (s *Session) fetch(gen uint64) {
	s.mu.Lock()
	source, providerID, depth := s.source, s.providerID, s.depth
	minScore, limit := s.minScore, s.limit
	s.mu.Unlock()

	var (
		snap graph.Snapshot
		err  error
	)
	switch source {
	case SourceProvider:
		snap, err = s.client.ProviderNetwork(s.ctx, providerID, depth)
	case SourceCDPAP:
		snap, err = s.client.CDPAPNetwork(s.ctx, limit)
	default:
		snap, err = s.client.FraudRings(s.ctx, minScore)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.fetchGen {
		return
	}
	s.loading = false
	if err != nil {
		// Keep whatever was on screen; the user refreshes manually.
		s.lastErr = err.Error()
		logger.Error("fetch failed", "session", s.id, "source", string(source), "error", err)
		return
	}
	s.firstLoad = false
	s.applySnapshotLocked(snap, gen)
}

// applySnapshotLocked swaps in a new snapshot. The old engine is always
// stopped before a new one starts so a session never runs two
// simulations. Empty snapshots leave the session without an engine.
func (s *Session) applySnapshotLocked(snap graph.Snapshot, gen uint64) {
	if s.closed || gen != s.fetchGen {
		return
	}
	if s.engine != nil {
		old := s.engine
		s.engine = nil
		// Stop joins the tick goroutine; do not hold the lock across it.
		s.mu.Unlock()
		old.Stop()
		s.mu.Lock()
		// Close or a newer fetch may have won the race while the old
		// engine was joining; nothing may be installed then.
		if s.closed || gen != s.fetchGen {
			return
		}
	}

	s.snapshot = snap
	s.hoverID = ""
	s.selectedID = ""
	s.draggingID = ""
	if snap.Empty() {
		return
	}

	engine := layout.New(snap, s.layoutCfg)
	if err := engine.Start(s.ctx); err != nil {
		logger.Error("layout start failed", "session", s.id, "error", err)
		return
	}
	s.engine = engine
}

// Refresh re-fetches the current source. Static sessions have nothing to
// refresh.
func (s *Session) Refresh() {
	s.mu.Lock()
	if s.closed || s.source == SourceStatic {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	go s.fetch(s.beginFetch())
}

// Close disposes the session: in-flight fetches become no-ops and the
// engine stops ticking.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.fetchGen++
	engine := s.engine
	s.engine = nil
	s.mu.Unlock()

	s.cancel()
	if engine != nil {
		engine.Stop()
	}
}

// Closed reports whether the session has been disposed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Selection is the detail block for the selected node.
type Selection struct {
	ID        string            `json:"id"`
	Label     string            `json:"label"`
	Kind      string            `json:"kind"`
	RiskScore float64           `json:"risk_score"`
	External  map[string]string `json:"external,omitempty"`
	Degree    int               `json:"degree"`
}

// State is the session summary returned to clients.
type State struct {
	ID          string          `json:"id"`
	Source      Source          `json:"source"`
	Loading     bool            `json:"loading"`
	Error       string          `json:"error,omitempty"`
	EngineState string          `json:"engine_state"`
	Stats       graph.Stats     `json:"stats"`
	Viewport    render.Viewport `json:"viewport"`
	FlatColor   bool            `json:"flat_color"`
	Depth       int             `json:"depth"`
	Selection   *Selection      `json:"selection,omitempty"`
}

// State reports the session's current summary.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	engineState := layout.StateIdle
	if s.engine != nil {
		engineState = s.engine.State()
	}

	st := State{
		ID:          s.id,
		Source:      s.source,
		Loading:     s.loading,
		Error:       s.lastErr,
		EngineState: engineState.String(),
		Stats:       s.snapshot.Stats(),
		Viewport:    s.view,
		FlatColor:   s.flatColor,
		Depth:       s.depth,
	}
	if s.selectedID != "" {
		if n, ok := s.snapshot.NodeByID(s.selectedID); ok {
			st.Selection = &Selection{
				ID:        n.ID,
				Label:     n.Label,
				Kind:      n.Kind,
				RiskScore: n.RiskScore,
				External:  n.External,
				Degree:    s.snapshot.Degree(n.ID),
			}
		}
	}
	return st
}

// Positions returns the layout engine's current position snapshot.
func (s *Session) Positions() map[string]layout.Position {
	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()

	if engine == nil {
		return map[string]layout.Position{}
	}
	return engine.Positions()
}

// Frame assembles the render input for the current tick.
func (s *Session) Frame() render.Frame {
	positions := s.Positions()

	s.mu.Lock()
	defer s.mu.Unlock()
	return render.Frame{
		Snapshot:   s.snapshot,
		Positions:  positions,
		View:       s.view,
		HoverID:    s.hoverID,
		SelectedID: s.selectedID,
		FlatColor:  s.flatColor,
		Loading:    s.loading && (s.firstLoad || !s.snapshot.Empty()),
	}
}

// RenderFrame writes the current frame to w. SVG is the default surface;
// PNG takes over on request or past the node-count threshold.
func (s *Session) RenderFrame(w io.Writer, format string) (string, error) {
	f := s.Frame()
	if format == "png" || (format == "" && len(f.Snapshot.Nodes) > render.RasterThreshold) {
		return "image/png", s.renderer.WritePNG(w, f)
	}
	return "image/svg+xml", s.renderer.WriteSVG(w, f)
}

// Command is the interaction envelope applied to a session.
type Command struct {
	Type   string  `json:"type" validate:"required"`
	NodeID string  `json:"node_id,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Depth  int     `json:"depth,omitempty"`
}

// Apply executes one command against the session.
func (s *Session) Apply(cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session %s is closed", s.id)
	}
	s.lastUsed = time.Now()

	switch cmd.Type {
	case "zoom_in":
		s.view.ZoomIn()
	case "zoom_out":
		s.view.ZoomOut()
	case "reset_view":
		s.view.Reset()
		if s.engine != nil {
			s.engine.Reheat()
		}
	case "hover":
		s.hoverID = cmd.NodeID
	case "hover_clear":
		s.hoverID = ""
	case "select":
		if _, ok := s.snapshot.NodeByID(cmd.NodeID); !ok {
			return fmt.Errorf("unknown node %q", cmd.NodeID)
		}
		s.selectedID = cmd.NodeID
	case "select_clear":
		s.selectedID = ""
	case "drag_start", "drag_move":
		if s.engine == nil {
			return nil
		}
		if cmd.Type == "drag_start" {
			s.draggingID = cmd.NodeID
			s.engine.Reheat()
		}
		if s.draggingID == "" {
			return nil
		}
		wx, wy := s.view.ToWorld(cmd.X, cmd.Y)
		s.engine.Pin(s.draggingID, wx, wy)
	case "drag_end":
		if s.engine != nil && s.draggingID != "" {
			s.engine.Unpin(s.draggingID)
			s.engine.Reheat()
		}
		s.draggingID = ""
	case "set_depth":
		if s.source != SourceProvider {
			return fmt.Errorf("depth only applies to provider sessions")
		}
		depth := clampDepth(cmd.Depth)
		if depth == s.depth {
			return nil
		}
		s.depth = depth
		s.refreshLocked()
	case "refresh":
		if s.source != SourceStatic {
			s.refreshLocked()
		}
	case "toggle_flat":
		s.flatColor = !s.flatColor
	default:
		return fmt.Errorf("unknown command %q", cmd.Type)
	}
	return nil
}

// refreshLocked starts an async fetch while the caller already holds the
// session mutex.
func (s *Session) refreshLocked() {
	s.fetchGen++
	s.loading = true
	s.lastErr = ""
	go s.fetch(s.fetchGen)
}
