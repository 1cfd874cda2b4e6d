package view

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sentinelhealth/fraudmap/internal/upstream"
	"github.com/sentinelhealth/fraudmap/pkg/graph"
	"github.com/sentinelhealth/fraudmap/pkg/layout"
)

const networkBody = `{
	"nodes": [
		{"id": "p1", "label": "Clinic A", "risk_score": 90},
		{"id": "p2", "label": "Clinic B", "risk_score": 20}
	],
	"edges": [{"source": "p1", "target": "p2", "weight": 4}]
}`

func testClient(t *testing.T, handler http.Handler) *upstream.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := upstream.NewClient(upstream.NewClientParams{
		BaseURL:        srv.URL,
		RequestTimeout: 2 * time.Second,
		MaxRetries:     1,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func staticSnapshot() *graph.Snapshot {
	return &graph.Snapshot{
		ID: "static1",
		Nodes: []graph.Node{
			{ID: "a", Label: "Alpha", RiskScore: 80},
			{ID: "b", Label: "Beta", RiskScore: 15},
		},
		Edges: []graph.Edge{{SourceID: "a", TargetID: "b", Weight: 2}},
	}
}

func staticSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession(NewSessionParams{
		ID:       "test",
		Source:   SourceStatic,
		Snapshot: staticSnapshot(),
		Layout:   layout.Config{Seed: 7},
	})
	t.Cleanup(s.Close)
	return s
}

func TestStaticSessionMountsImmediately(t *testing.T) {
	s := staticSession(t)

	st := s.State()
	if st.Loading {
		t.Error("static session should not be loading")
	}
	if st.Stats.NodeCount != 2 || st.Stats.EdgeCount != 1 {
		t.Errorf("stats = %+v", st.Stats)
	}
	if st.EngineState == layout.StateIdle.String() {
		t.Errorf("engine should be running, state = %s", st.EngineState)
	}
	if len(s.Positions()) != 2 {
		t.Errorf("positions has %d entries, want 2", len(s.Positions()))
	}
}

func TestProviderSessionFetches(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(networkBody))
	}))

	s := NewSession(NewSessionParams{
		ID:         "test",
		Client:     client,
		Source:     SourceProvider,
		ProviderID: "p1",
	})
	t.Cleanup(s.Close)

	waitUntil(t, time.Second, func() bool { return !s.State().Loading })

	st := s.State()
	if st.Error != "" {
		t.Fatalf("unexpected error %q", st.Error)
	}
	if st.Stats.NodeCount != 2 {
		t.Errorf("stats = %+v, want 2 nodes", st.Stats)
	}
}

func TestFetchErrorKeepsPreviousSnapshot(t *testing.T) {
	var fail atomic.Bool
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(networkBody))
	}))

	s := NewSession(NewSessionParams{ID: "test", Client: client, Source: SourceRings})
	t.Cleanup(s.Close)
	waitUntil(t, time.Second, func() bool { return !s.State().Loading })

	fail.Store(true)
	s.Refresh()
	waitUntil(t, time.Second, func() bool {
		st := s.State()
		return !st.Loading && st.Error != ""
	})

	st := s.State()
	if st.Stats.NodeCount != 2 {
		t.Errorf("failed refresh dropped the previous snapshot: %+v", st.Stats)
	}
	if st.Error == "" {
		t.Error("expected a recorded error")
	}
}

func TestEmptyFetchNeverStartsEngine(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"nodes": [], "edges": []}`))
	}))

	s := NewSession(NewSessionParams{ID: "test", Client: client, Source: SourceCDPAP})
	t.Cleanup(s.Close)
	waitUntil(t, time.Second, func() bool { return !s.State().Loading })

	if got := s.State().EngineState; got != layout.StateIdle.String() {
		t.Errorf("engine state = %s, want idle", got)
	}

	var buf bytes.Buffer
	if _, err := s.RenderFrame(&buf, ""); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if !strings.Contains(buf.String(), "No network data") {
		t.Error("empty session should render the empty-state frame")
	}
}

func TestCloseInvalidatesInFlightFetch(t *testing.T) {
	release := make(chan struct{})
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(networkBody))
	}))

	s := NewSession(NewSessionParams{ID: "test", Client: client, Source: SourceRings})
	s.Close()
	close(release)

	// The late resolution must not mount anything.
	time.Sleep(50 * time.Millisecond)
	st := s.State()
	if st.Stats.NodeCount != 0 {
		t.Errorf("closed session mounted a snapshot: %+v", st.Stats)
	}
	if st.EngineState != layout.StateIdle.String() {
		t.Errorf("engine state = %s, want idle", st.EngineState)
	}
}

func TestSetDepthRefetches(t *testing.T) {
	var calls atomic.Int32
	var lastDepth atomic.Value
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		lastDepth.Store(r.URL.Query().Get("depth"))
		w.Write([]byte(networkBody))
	}))

	s := NewSession(NewSessionParams{ID: "test", Client: client, Source: SourceProvider, ProviderID: "p1"})
	t.Cleanup(s.Close)
	waitUntil(t, time.Second, func() bool { return calls.Load() == 1 && !s.State().Loading })

	if err := s.Apply(Command{Type: "set_depth", Depth: 3}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	waitUntil(t, time.Second, func() bool { return calls.Load() == 2 && !s.State().Loading })

	if got := lastDepth.Load(); got != "3" {
		t.Errorf("depth query = %v, want 3", got)
	}

	// Out-of-range depths clamp instead of erroring.
	if err := s.Apply(Command{Type: "set_depth", Depth: 9}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := s.State().Depth; got != 4 {
		t.Errorf("depth = %d, want clamp to 4", got)
	}
}

func TestViewCommands(t *testing.T) {
	s := staticSession(t)

	for i := 0; i < 3; i++ {
		if err := s.Apply(Command{Type: "zoom_in"}); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}
	if got := s.State().Viewport.Scale; got <= 1 {
		t.Errorf("scale = %v after zooming in", got)
	}

	if err := s.Apply(Command{Type: "reset_view"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := s.State().Viewport.Scale; got != 1 {
		t.Errorf("scale = %v after reset, want 1", got)
	}

	if err := s.Apply(Command{Type: "toggle_flat"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !s.State().FlatColor {
		t.Error("flat color should be enabled after toggle")
	}

	if err := s.Apply(Command{Type: "warp"}); err == nil {
		t.Error("unknown command should error")
	}
}

func TestSelectionDetail(t *testing.T) {
	s := staticSession(t)

	if err := s.Apply(Command{Type: "select", NodeID: "a"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	sel := s.State().Selection
	if sel == nil {
		t.Fatal("no selection in state")
	}
	if sel.Label != "Alpha" || sel.RiskScore != 80 || sel.Degree != 1 {
		t.Errorf("selection = %+v", sel)
	}

	if err := s.Apply(Command{Type: "select", NodeID: "ghost"}); err == nil {
		t.Error("selecting an unknown node should error")
	}
	if err := s.Apply(Command{Type: "select_clear"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if s.State().Selection != nil {
		t.Error("selection should be cleared")
	}
}

func TestDragPinsNode(t *testing.T) {
	s := staticSession(t)

	if err := s.Apply(Command{Type: "drag_start", NodeID: "a", X: 111, Y: 222}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	waitUntil(t, time.Second, func() bool {
		p, ok := s.Positions()["a"]
		return ok && p.X == 111 && p.Y == 222
	})

	if err := s.Apply(Command{Type: "drag_move", NodeID: "a", X: 130, Y: 240}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	waitUntil(t, time.Second, func() bool {
		p := s.Positions()["a"]
		return p.X == 130 && p.Y == 240
	})

	if err := s.Apply(Command{Type: "drag_end"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if s.State().EngineState == layout.StateSettled.String() {
		t.Error("drag end should reheat the simulation")
	}
}

func TestCloseDuringSnapshotSwap(t *testing.T) {
	// A wide graph keeps each engine tick long enough that Close can land
	// while the swap is joining the old engine.
	wide := &graph.Snapshot{ID: "wide"}
	for i := 0; i < 200; i++ {
		wide.Nodes = append(wide.Nodes, graph.Node{ID: strconv.Itoa(i)})
	}
	for i := 0; i+1 < 200; i++ {
		wide.Edges = append(wide.Edges, graph.Edge{
			SourceID: strconv.Itoa(i),
			TargetID: strconv.Itoa(i + 1),
			Weight:   1,
		})
	}

	for i := 0; i < 50; i++ {
		s := NewSession(NewSessionParams{
			ID:       "test",
			Source:   SourceStatic,
			Snapshot: wide,
			Layout:   layout.Config{Seed: 1, TickInterval: time.Millisecond},
		})

		done := make(chan struct{})
		go func() {
			defer close(done)
			s.mu.Lock()
			s.applySnapshotLocked(*staticSnapshot(), s.fetchGen)
			s.mu.Unlock()
		}()
		s.Close()
		<-done

		s.mu.Lock()
		closed, engine := s.closed, s.engine
		s.mu.Unlock()
		if closed && engine != nil {
			t.Fatal("closed session left holding an engine")
		}
	}
}

func TestStaticSnapshotIsSanitized(t *testing.T) {
	snap := &graph.Snapshot{
		ID:    "dirty",
		Nodes: []graph.Node{{ID: "a", Label: "Alpha"}, {ID: "b", Label: "Beta"}},
		Edges: []graph.Edge{
			{SourceID: "a", TargetID: "b", Weight: 1},
			{SourceID: "a", TargetID: "ghost", Weight: 9},
		},
	}
	s := NewSession(NewSessionParams{ID: "test", Source: SourceStatic, Snapshot: snap})
	t.Cleanup(s.Close)

	st := s.State()
	if st.Stats.EdgeCount != 1 {
		t.Errorf("edge count = %d, want 1 after dropping the unresolved edge", st.Stats.EdgeCount)
	}
	if got := s.snapshot.Degree("a"); got != 1 {
		t.Errorf("degree(a) = %d, want 1", got)
	}
}

func TestApplyAfterClose(t *testing.T) {
	s := NewSession(NewSessionParams{ID: "test", Source: SourceStatic, Snapshot: staticSnapshot()})
	s.Close()
	if err := s.Apply(Command{Type: "zoom_in"}); err == nil {
		t.Error("commands against a closed session should error")
	}
}
