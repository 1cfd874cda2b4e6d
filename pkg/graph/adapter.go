package graph

import (
	"bytes"
	"encoding/json"

	"github.com/sentinelhealth/fraudmap/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// The analytics backend returns networks in three shapes: an already-shaped
// {nodes, edges} object, a list of fraud rings each carrying a providers
// array, and the CDPAP {nodes, links} variant. Adapt accepts all of them.

// ringWeightScale converts a ring's density (0..1) into an edge weight.
const ringWeightScale = 10

type rawNode struct {
	ID        any      `json:"id"`
	Label     string   `json:"label"`
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	Type      string   `json:"type"`
	RiskScore *float64 `json:"risk_score"`
	NPI       string   `json:"npi"`
}

type rawEdge struct {
	Source   any      `json:"source"`
	Target   any      `json:"target"`
	SourceID any      `json:"source_id"`
	TargetID any      `json:"target_id"`
	Weight   *float64 `json:"weight"`
}

type rawEnvelope struct {
	Nodes []rawNode `json:"nodes"`
	Edges []rawEdge `json:"edges"`
	Links []rawEdge `json:"links"`
}

type rawRing struct {
	Providers []rawNode `json:"providers"`
	Density   float64   `json:"density"`
}

// Adapt normalizes a backend payload into a Snapshot. It is total: any
// input, including empty, null, or malformed JSON, yields a snapshot with
// non-nil node and edge slices so the renderer never sees a nil graph.
// Edges whose endpoints do not resolve into the node set are dropped with
// a warning.
func Adapt(raw []byte) Snapshot {
	snap := Snapshot{
		ID:    gonanoid.Must(),
		Nodes: []Node{},
		Edges: []Edge{},
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return snap
	}

	if trimmed[0] == '[' {
		var rings []rawRing
		if err := decodeJSON(trimmed, &rings); err != nil {
			logger.Warn("Failed to decode ring payload", "err", err)
			return snap
		}
		adaptRings(&snap, rings)
		return snap
	}

	var envelope rawEnvelope
	if err := decodeJSON(trimmed, &envelope); err != nil {
		logger.Warn("Failed to decode network payload", "err", err)
		return snap
	}
	adaptEnvelope(&snap, envelope)
	return snap
}

// Sanitize applies the adapter's policies to a snapshot supplied directly
// by a caller instead of fetched from the backend: nil slices become
// empty, duplicate node ids collapse (first wins), risk scores are
// clamped, and edges with unresolved endpoints are dropped with a
// warning.
func Sanitize(in Snapshot) Snapshot {
	snap := Snapshot{
		ID:    in.ID,
		Nodes: []Node{},
		Edges: []Edge{},
	}
	if snap.ID == "" {
		snap.ID = gonanoid.Must()
	}

	seen := make(map[string]bool, len(in.Nodes))
	for _, n := range in.Nodes {
		if n.ID == "" || seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		n.RiskScore = clampRisk(n.RiskScore)
		snap.Nodes = append(snap.Nodes, n)
	}

	for _, e := range in.Edges {
		if !seen[e.SourceID] || !seen[e.TargetID] {
			logger.Warn("Dropping edge with unresolved endpoint",
				"source", e.SourceID, "target", e.TargetID)
			continue
		}
		snap.Edges = append(snap.Edges, e)
	}
	return snap
}

// decodeJSON decodes with UseNumber so numeric ids keep their literal form
// instead of going through float64.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func adaptEnvelope(snap *Snapshot, envelope rawEnvelope) {
	seen := make(map[string]bool, len(envelope.Nodes))
	for _, rn := range envelope.Nodes {
		node, ok := normalizeNode(rn)
		if !ok || seen[node.ID] {
			continue
		}
		seen[node.ID] = true
		snap.Nodes = append(snap.Nodes, node)
	}

	edges := envelope.Edges
	if edges == nil {
		edges = envelope.Links
	}
	for _, re := range edges {
		edge, ok := normalizeEdge(re)
		if !ok {
			continue
		}
		if !seen[edge.SourceID] || !seen[edge.TargetID] {
			logger.Warn("Dropping edge with unresolved endpoint",
				"source", edge.SourceID, "target", edge.TargetID)
			continue
		}
		snap.Edges = append(snap.Edges, edge)
	}
}

// adaptRings synthesizes a complete subgraph per ring: every provider pair
// gets one edge weighted by the ring's density. Providers appearing in
// multiple rings become a single node, first occurrence wins. Rings with a
// single provider produce no edges.
func adaptRings(snap *Snapshot, rings []rawRing) {
	seen := make(map[string]bool)
	for _, ring := range rings {
		ids := make([]string, 0, len(ring.Providers))
		for _, rp := range ring.Providers {
			node, ok := normalizeNode(rp)
			if !ok {
				continue
			}
			ids = append(ids, node.ID)
			if seen[node.ID] {
				continue
			}
			seen[node.ID] = true
			snap.Nodes = append(snap.Nodes, node)
		}

		weight := ring.Density * ringWeightScale
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				if ids[i] == ids[j] {
					continue
				}
				snap.Edges = append(snap.Edges, Edge{
					SourceID: ids[i],
					TargetID: ids[j],
					Weight:   weight,
				})
			}
		}
	}
}

func normalizeNode(rn rawNode) (Node, bool) {
	id := canonicalID(rn.ID)
	if id == "" {
		logger.Warn("Dropping node without id", "label", rn.Label, "name", rn.Name)
		return Node{}, false
	}

	label := rn.Label
	if label == "" {
		label = rn.Name
	}
	if label == "" {
		label = id
	}

	kind := rn.Kind
	if kind == "" {
		kind = rn.Type
	}

	risk := 0.0
	if rn.RiskScore != nil {
		risk = clampRisk(*rn.RiskScore)
	}

	node := Node{
		ID:        id,
		Label:     label,
		Kind:      kind,
		RiskScore: risk,
	}
	if rn.NPI != "" {
		node.External = map[string]string{"npi": rn.NPI}
	}
	return node, true
}

func normalizeEdge(re rawEdge) (Edge, bool) {
	source := canonicalID(re.Source)
	if source == "" {
		source = canonicalID(re.SourceID)
	}
	target := canonicalID(re.Target)
	if target == "" {
		target = canonicalID(re.TargetID)
	}
	if source == "" || target == "" {
		return Edge{}, false
	}

	weight := 1.0
	if re.Weight != nil {
		weight = *re.Weight
	}
	return Edge{SourceID: source, TargetID: target, Weight: weight}, true
}

// canonicalID renders string and numeric ids uniformly as strings so the
// backend's mixed id types reference the same node set.
func canonicalID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	default:
		return ""
	}
}
