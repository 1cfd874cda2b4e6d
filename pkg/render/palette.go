// Package render draws fraud-network frames from a snapshot plus the
// layout engine's current positions. Two surfaces are supported: SVG for
// typical graphs and a raster PNG fallback that stays cheap past a few
// hundred nodes.
package render

import (
	"math"

	"github.com/sentinelhealth/fraudmap/pkg/graph"
)

// Bucket is a risk-score color band.
type Bucket int

const (
	BucketLow Bucket = iota
	BucketLowMedium
	BucketMedium
	BucketHigh
	BucketCritical
)

// Bucket boundaries are inclusive on the upper side: a score of exactly
// 30 lands in the low-medium bucket, 85 in critical.
func RiskBucket(score float64) Bucket {
	switch {
	case score >= 85:
		return BucketCritical
	case score >= 70:
		return BucketHigh
	case score >= 50:
		return BucketMedium
	case score >= 30:
		return BucketLowMedium
	default:
		return BucketLow
	}
}

var bucketColors = [...]string{
	BucketLow:       "#22c55e",
	BucketLowMedium: "#eab308",
	BucketMedium:    "#f97316",
	BucketHigh:      "#ef4444",
	BucketCritical:  "#7f1d1d",
}

const (
	transportationColor = "#3b82f6"
	flatNodeColor       = "#64748b"
)

// Color returns the fill color for a bucket.
func (b Bucket) Color() string {
	if b < BucketLow || b > BucketCritical {
		return flatNodeColor
	}
	return bucketColors[b]
}

// NodeColor maps a node to its fill color. The flat toggle disables risk
// coloring entirely; otherwise transportation entities keep their fixed
// distinguishing color regardless of risk, and everything else is colored
// by risk bucket.
func NodeColor(n graph.Node, flat bool) string {
	if flat {
		return flatNodeColor
	}
	if n.Kind == graph.KindTransportation {
		return transportationColor
	}
	return RiskBucket(n.RiskScore).Color()
}

// NodeRadius scales a glyph with risk: scores 0..100 map linearly onto
// 6..20 canvas units.
func NodeRadius(score float64) float64 {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return 6 + score*0.14
}

// EdgeWidth grows with the square root of weight so extreme-weight edges
// do not dominate the canvas.
func EdgeWidth(weight float64) float64 {
	if weight < 0 {
		weight = 0
	}
	w := math.Sqrt(weight) * 1.2
	if w < 0.5 {
		return 0.5
	}
	return w
}
