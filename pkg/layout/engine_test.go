package layout

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/sentinelhealth/fraudmap/pkg/graph"
)

func testSnapshot() graph.Snapshot {
	return graph.Snapshot{
		ID: "test",
		Nodes: []graph.Node{
			{ID: "a", Label: "A"},
			{ID: "b", Label: "B"},
			{ID: "c", Label: "C"},
			{ID: "d", Label: "D"},
		},
		Edges: []graph.Edge{
			{SourceID: "a", TargetID: "b", Weight: 5},
			{SourceID: "b", TargetID: "c", Weight: 2},
		},
	}
}

func TestLinkDistanceMonotonicity(t *testing.T) {
	cfg := Config{}
	weights := []float64{0, 0.5, 1, 2, 5, 10, 100}
	for i := 1; i < len(weights); i++ {
		lighter := LinkDistance(weights[i-1], cfg)
		heavier := LinkDistance(weights[i], cfg)
		if heavier >= lighter {
			t.Errorf("LinkDistance(%v) = %v, want less than LinkDistance(%v) = %v",
				weights[i], heavier, weights[i-1], lighter)
		}
	}
}

func TestStartEmptySnapshot(t *testing.T) {
	e := New(graph.Snapshot{}, Config{Seed: 1})
	err := e.Start(context.Background())
	if !errors.Is(err, ErrEmptySnapshot) {
		t.Fatalf("Start() error = %v, want ErrEmptySnapshot", err)
	}
	if e.State() != StateIdle {
		t.Errorf("State() = %v, want idle", e.State())
	}
}

func TestStartTwice(t *testing.T) {
	e := New(testSnapshot(), Config{Seed: 1, TickInterval: time.Millisecond})
	defer e.Stop()

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := e.Start(context.Background()); !errors.Is(err, ErrNotIdle) {
		t.Fatalf("second Start() error = %v, want ErrNotIdle", err)
	}
}

func TestSingleNodeCentered(t *testing.T) {
	snap := graph.Snapshot{Nodes: []graph.Node{{ID: "only"}}}
	e := New(snap, Config{Seed: 1, Width: 800, Height: 400})

	pos := e.Positions()["only"]
	if pos.X != 400 || pos.Y != 200 {
		t.Errorf("single node at (%v, %v), want canvas center (400, 200)", pos.X, pos.Y)
	}
}

func TestStepMovesNodes(t *testing.T) {
	e := New(testSnapshot(), Config{Seed: 42})
	e.state = StateRunning

	before := e.Positions()
	e.Step()
	after := e.Positions()

	if reflect.DeepEqual(before, after) {
		t.Error("Step() did not move any node")
	}
}

func TestSettleAfterCooling(t *testing.T) {
	e := New(testSnapshot(), Config{Seed: 42})
	e.state = StateRunning

	for i := 0; i < 1000 && e.State() != StateSettled; i++ {
		e.Step()
	}
	if e.State() != StateSettled {
		t.Fatalf("engine did not settle, state = %v alpha = %v", e.State(), e.Alpha())
	}

	// A settled engine must not move.
	before := e.Positions()
	e.Step()
	if !reflect.DeepEqual(before, e.Positions()) {
		t.Error("settled engine moved nodes")
	}
}

func TestReheatFromSettled(t *testing.T) {
	e := New(testSnapshot(), Config{Seed: 42})
	e.state = StateRunning

	for i := 0; i < 1000 && e.State() != StateSettled; i++ {
		e.Step()
	}
	if e.State() != StateSettled {
		t.Fatal("engine did not settle")
	}

	e.Reheat()
	if e.State() != StateRunning {
		t.Errorf("State() after Reheat = %v, want running", e.State())
	}
	if e.Alpha() < 1.0 {
		t.Errorf("Alpha() after Reheat = %v, want restored to 1.0", e.Alpha())
	}
}

func TestPinHoldsPosition(t *testing.T) {
	e := New(testSnapshot(), Config{Seed: 42})
	e.state = StateRunning

	e.Pin("a", 123, 456)
	for i := 0; i < 10; i++ {
		e.Step()
	}

	pos := e.Positions()["a"]
	if pos.X != 123 || pos.Y != 456 {
		t.Errorf("pinned node at (%v, %v), want exactly (123, 456)", pos.X, pos.Y)
	}
	if !e.Pinned("a") {
		t.Error("Pinned(a) = false, want true")
	}
}

func TestUnpinRoundTrip(t *testing.T) {
	e := New(testSnapshot(), Config{Seed: 42})
	e.state = StateRunning

	e.Pin("a", 123, 456)
	e.Step()
	e.Unpin("a")
	e.Reheat()

	if e.Pinned("a") {
		t.Fatal("Pinned(a) = true after Unpin")
	}

	for i := 0; i < 20; i++ {
		e.Step()
	}
	pos := e.Positions()["a"]
	if pos.X == 123 && pos.Y == 456 {
		t.Error("node stayed fixed at pin point after release; position should be simulation-determined")
	}
}

func TestConnectedNodesEndUpCloser(t *testing.T) {
	snap := graph.Snapshot{
		Nodes: []graph.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Edges: []graph.Edge{{SourceID: "a", TargetID: "b", Weight: 8}},
	}
	e := New(snap, Config{Seed: 7})
	e.state = StateRunning

	for i := 0; i < 1000 && e.State() != StateSettled; i++ {
		e.Step()
	}

	pos := e.Positions()
	linked := math.Hypot(pos["a"].X-pos["b"].X, pos["a"].Y-pos["b"].Y)
	free := math.Hypot(pos["a"].X-pos["c"].X, pos["a"].Y-pos["c"].Y)
	if linked >= free {
		t.Errorf("linked pair distance %v, unlinked %v; want linked pair closer", linked, free)
	}
}

func TestStopLeavesNoTicking(t *testing.T) {
	e := New(testSnapshot(), Config{Seed: 42, TickInterval: time.Millisecond})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	e.Stop()

	if e.State() != StateStopped {
		t.Fatalf("State() = %v, want stopped", e.State())
	}

	frozen := e.Positions()
	time.Sleep(10 * time.Millisecond)
	if !reflect.DeepEqual(frozen, e.Positions()) {
		t.Error("positions changed after Stop")
	}

	// Stop again must be a no-op, not a deadlock or panic.
	e.Stop()
}

func TestContextCancelStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := New(testSnapshot(), Config{Seed: 42, TickInterval: time.Millisecond})
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	cancel()
	time.Sleep(10 * time.Millisecond)

	frozen := e.Positions()
	time.Sleep(10 * time.Millisecond)
	if !reflect.DeepEqual(frozen, e.Positions()) {
		t.Error("positions changed after context cancellation")
	}
}

func TestDeterministicSeed(t *testing.T) {
	a := New(testSnapshot(), Config{Seed: 99})
	b := New(testSnapshot(), Config{Seed: 99})
	if !reflect.DeepEqual(a.Positions(), b.Positions()) {
		t.Error("same seed produced different initial placements")
	}

	c := New(testSnapshot(), Config{Seed: 100})
	if reflect.DeepEqual(a.Positions(), c.Positions()) {
		t.Error("different seeds produced identical initial placements")
	}
}
