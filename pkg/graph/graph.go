// Package graph defines the canonical fraud-network structures and the
// adapter that normalizes the analytics backend's payload shapes into them.
//
// A Snapshot is immutable once adapted: node positions live in the layout
// engine, never in these structures.
package graph

// Node represents a single entity in a fraud network: a provider, a
// caregiver, a transportation company, or any other billing entity the
// analytics backend surfaces.
type Node struct {
	ID        string            `json:"id"`
	Label     string            `json:"label"`
	Kind      string            `json:"kind"`
	RiskScore float64           `json:"risk_score"`
	External  map[string]string `json:"external,omitempty"`
}

// Node kinds recognized by the renderer. Anything else is treated as
// unspecified.
const (
	KindProvider       = "provider"
	KindTransportation = "transportation"
)

// Edge connects two nodes by id. Weight carries the connection strength
// (claim volume, ring density) and drives both stroke width and layout
// distance. Duplicate edges between the same pair are preserved.
type Edge struct {
	SourceID string  `json:"source"`
	TargetID string  `json:"target"`
	Weight   float64 `json:"weight"`
}

// Snapshot owns one adapted node set and edge set as a unit. Every edge's
// source and target ids resolve into the node set; the adapter enforces
// this at adaptation time.
type Snapshot struct {
	ID    string `json:"id"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Stats summarizes a snapshot for the session state endpoint.
type Stats struct {
	NodeCount int     `json:"node_count"`
	EdgeCount int     `json:"edge_count"`
	Density   float64 `json:"density"`
}

// Empty reports whether the snapshot holds no nodes.
func (s Snapshot) Empty() bool {
	return len(s.Nodes) == 0
}

// Degree returns the number of edges touching the node with the given id.
func (s Snapshot) Degree(id string) int {
	count := 0
	for _, e := range s.Edges {
		if e.SourceID == id || e.TargetID == id {
			count++
		}
	}
	return count
}

// NodeByID returns the node with the given id, if present.
func (s Snapshot) NodeByID(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Stats computes node/edge counts and graph density. Density is the edge
// count over the maximum possible undirected edge count; zero for graphs
// with fewer than two nodes.
func (s Snapshot) Stats() Stats {
	stats := Stats{
		NodeCount: len(s.Nodes),
		EdgeCount: len(s.Edges),
	}
	if stats.NodeCount > 1 {
		maxEdges := float64(stats.NodeCount) * float64(stats.NodeCount-1) / 2
		stats.Density = float64(stats.EdgeCount) / maxEdges
	}
	return stats
}

func clampRisk(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
