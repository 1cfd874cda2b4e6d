package render

import (
	"fmt"
	"io"

	"github.com/sentinelhealth/fraudmap/pkg/graph"
	"github.com/sentinelhealth/fraudmap/pkg/layout"

	svg "github.com/ajstarks/svgo"
)

// RasterThreshold is the node count above which the raster surface is
// preferred over per-element SVG.
const RasterThreshold = 300

const (
	backgroundColor = "#0f172a"
	edgeColor       = "#94a3b8"
	labelColor      = "#e2e8f0"
	mutedColor      = "#64748b"
	highlightColor  = "#f8f8f2"
)

// Frame bundles everything needed to paint one tick: the snapshot, the
// latest positions read from the layout engine, the view transform, and
// the interaction state.
type Frame struct {
	Snapshot   graph.Snapshot
	Positions  map[string]layout.Position
	View       Viewport
	HoverID    string
	SelectedID string
	FlatColor  bool
	Loading    bool
}

// Renderer paints frames onto a fixed-size surface.
type Renderer struct {
	Width  int
	Height int
}

func NewRenderer(width, height int) Renderer {
	if width <= 0 {
		width = 960
	}
	if height <= 0 {
		height = 600
	}
	return Renderer{Width: width, Height: height}
}

type edgeStyle struct {
	width      float64
	srcOpacity float64
	tgtOpacity float64
}

// edgeStyles runs the highlight pass over the whole edge set. With a
// hovered node, its touching edges get full opacity and extra width
// while every other edge dims to near-transparent. Without a hover,
// all edges carry the baseline source-to-target fade.
func edgeStyles(snap graph.Snapshot, hoverID string) []edgeStyle {
	styles := make([]edgeStyle, len(snap.Edges))
	for i, e := range snap.Edges {
		s := edgeStyle{
			width:      EdgeWidth(e.Weight),
			srcOpacity: 0.7,
			tgtOpacity: 0.15,
		}
		if hoverID != "" {
			if e.SourceID == hoverID || e.TargetID == hoverID {
				s.width *= 1.5
				s.srcOpacity = 1.0
				s.tgtOpacity = 0.6
			} else {
				s.srcOpacity = 0.05
				s.tgtOpacity = 0.02
			}
		}
		styles[i] = s
	}
	return styles
}

// WriteSVG paints the frame as a vector document: one element per node
// and edge, gradient-faded edges, hover glow, selection ring.
func (r Renderer) WriteSVG(w io.Writer, f Frame) error {
	canvas := svg.New(w)
	canvas.Start(r.Width, r.Height)
	canvas.Rect(0, 0, r.Width, r.Height, "fill:"+backgroundColor)

	if f.Snapshot.Empty() {
		msg := "No network data"
		if f.Loading {
			msg = "Loading network..."
		}
		canvas.Text(r.Width/2, r.Height/2, msg,
			"fill:"+mutedColor+";font-size:16px;font-family:system-ui,sans-serif;text-anchor:middle")
		canvas.End()
		return nil
	}

	styles := edgeStyles(f.Snapshot, f.HoverID)

	canvas.Def()
	canvas.Filter("glow")
	canvas.FeGaussianBlur(svg.Filterspec{In: "SourceGraphic", Result: "blur"}, 4, 4)
	canvas.FeMerge([]string{"blur", "SourceGraphic"})
	canvas.Fend()
	// Per-edge source-to-target fades. The gradient helpers only cover
	// bounding-box percent coordinates, which degenerate for axis-aligned
	// lines, so these are emitted in user space directly.
	for i, e := range f.Snapshot.Edges {
		src, okS := f.Positions[e.SourceID]
		tgt, okT := f.Positions[e.TargetID]
		if !okS || !okT {
			continue
		}
		fmt.Fprintf(canvas.Writer,
			`<linearGradient id="edge%d" gradientUnits="userSpaceOnUse" x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f">`+"\n",
			i, src.X, src.Y, tgt.X, tgt.Y)
		fmt.Fprintf(canvas.Writer,
			`<stop offset="0%%" stop-color="%s" stop-opacity="%.3f"/><stop offset="100%%" stop-color="%s" stop-opacity="%.3f"/>`+"\n",
			edgeColor, styles[i].srcOpacity, edgeColor, styles[i].tgtOpacity)
		fmt.Fprintln(canvas.Writer, `</linearGradient>`)
	}
	canvas.DefEnd()

	canvas.Gtransform(fmt.Sprintf("translate(%.2f,%.2f) scale(%.4f)", f.View.TX, f.View.TY, f.View.Scale))

	for i, e := range f.Snapshot.Edges {
		src, okS := f.Positions[e.SourceID]
		tgt, okT := f.Positions[e.TargetID]
		if !okS || !okT {
			continue
		}
		canvas.Line(int(src.X), int(src.Y), int(tgt.X), int(tgt.Y),
			fmt.Sprintf("stroke:url(#edge%d);stroke-width:%.2f", i, styles[i].width))
	}

	for _, n := range f.Snapshot.Nodes {
		pos, ok := f.Positions[n.ID]
		if !ok {
			continue
		}
		x, y := int(pos.X), int(pos.Y)

		radius := NodeRadius(n.RiskScore)
		style := "fill:" + NodeColor(n, f.FlatColor)
		if n.ID == f.HoverID {
			radius *= 1.3
			style += ";filter:url(#glow);stroke:" + highlightColor + ";stroke-width:1.5"
		}
		if n.ID == f.SelectedID {
			canvas.Circle(x, y, int(radius)+4,
				"fill:none;stroke:"+highlightColor+";stroke-width:2;stroke-opacity:0.8")
		}
		canvas.Circle(x, y, int(radius), style)
		canvas.Text(x, y+int(radius)+12, n.Label,
			"fill:"+labelColor+";font-size:10px;font-family:system-ui,sans-serif;text-anchor:middle")
	}

	canvas.Gend()

	if f.Loading {
		canvas.Rect(0, 0, r.Width, r.Height,
			"fill:"+backgroundColor+";fill-opacity:0.35")
		canvas.Text(r.Width/2, 24, "Refreshing...",
			"fill:"+labelColor+";font-size:12px;font-family:system-ui,sans-serif;text-anchor:middle")
	}

	canvas.End()
	return nil
}
