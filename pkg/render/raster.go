package render

import (
	"fmt"
	"io"

	"git.sr.ht/~sbinet/gg"
)

func alphaHex(hex string, opacity float64) string {
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 1 {
		opacity = 1
	}
	return fmt.Sprintf("%s%02x", hex, int(opacity*255))
}

// WritePNG paints the frame onto a raster surface. Dense graphs render
// here instead of SVG: one flat pass, no per-element document overhead.
// Edge fades are approximated with a two-segment stroke.
func (r Renderer) WritePNG(w io.Writer, f Frame) error {
	dc := gg.NewContext(r.Width, r.Height)
	dc.SetHexColor(backgroundColor)
	dc.Clear()

	if f.Snapshot.Empty() {
		msg := "No network data"
		if f.Loading {
			msg = "Loading network..."
		}
		dc.SetHexColor(mutedColor)
		dc.DrawStringAnchored(msg, float64(r.Width)/2, float64(r.Height)/2, 0.5, 0.5)
		return dc.EncodePNG(w)
	}

	styles := edgeStyles(f.Snapshot, f.HoverID)

	dc.Push()
	dc.Translate(f.View.TX, f.View.TY)
	dc.Scale(f.View.Scale, f.View.Scale)

	for i, e := range f.Snapshot.Edges {
		src, okS := f.Positions[e.SourceID]
		tgt, okT := f.Positions[e.TargetID]
		if !okS || !okT {
			continue
		}
		mx := (src.X + tgt.X) / 2
		my := (src.Y + tgt.Y) / 2

		dc.SetLineWidth(styles[i].width)
		dc.SetHexColor(alphaHex(edgeColor, styles[i].srcOpacity))
		dc.DrawLine(src.X, src.Y, mx, my)
		dc.Stroke()
		dc.SetHexColor(alphaHex(edgeColor, styles[i].tgtOpacity))
		dc.DrawLine(mx, my, tgt.X, tgt.Y)
		dc.Stroke()
	}

	for _, n := range f.Snapshot.Nodes {
		pos, ok := f.Positions[n.ID]
		if !ok {
			continue
		}

		radius := NodeRadius(n.RiskScore)
		if n.ID == f.HoverID {
			radius *= 1.3
			dc.SetHexColor(alphaHex(highlightColor, 0.25))
			dc.DrawCircle(pos.X, pos.Y, radius+5)
			dc.Fill()
		}
		if n.ID == f.SelectedID {
			dc.SetLineWidth(2)
			dc.SetHexColor(alphaHex(highlightColor, 0.8))
			dc.DrawCircle(pos.X, pos.Y, radius+4)
			dc.Stroke()
		}

		dc.SetHexColor(NodeColor(n, f.FlatColor))
		dc.DrawCircle(pos.X, pos.Y, radius)
		dc.Fill()

		dc.SetHexColor(labelColor)
		dc.DrawStringAnchored(n.Label, pos.X, pos.Y+radius+10, 0.5, 0.5)
	}

	dc.Pop()

	if f.Loading {
		dc.SetHexColor(alphaHex(backgroundColor, 0.35))
		dc.DrawRectangle(0, 0, float64(r.Width), float64(r.Height))
		dc.Fill()
		dc.SetHexColor(labelColor)
		dc.DrawStringAnchored("Refreshing...", float64(r.Width)/2, 20, 0.5, 0.5)
	}

	return dc.EncodePNG(w)
}
