package render

// Zoom limits and the per-command zoom factor.
const (
	MinScale = 0.1
	MaxScale = 4.0
	zoomStep = 1.25
)

// Viewport is the view transform applied to the whole scene: world
// coordinates are scaled then translated into screen space.
type Viewport struct {
	Scale float64 `json:"scale"`
	TX    float64 `json:"tx"`
	TY    float64 `json:"ty"`
}

// NewViewport returns the identity view.
func NewViewport() Viewport {
	return Viewport{Scale: 1}
}

// ZoomIn multiplies the scale by the fixed zoom factor, clamped.
func (v *Viewport) ZoomIn() {
	v.Scale = clampScale(v.Scale * zoomStep)
}

// ZoomOut divides the scale by the fixed zoom factor, clamped.
func (v *Viewport) ZoomOut() {
	v.Scale = clampScale(v.Scale / zoomStep)
}

// Pan shifts the view by a screen-space delta.
func (v *Viewport) Pan(dx, dy float64) {
	v.TX += dx
	v.TY += dy
}

// Reset restores scale 1 and zero translation.
func (v *Viewport) Reset() {
	*v = NewViewport()
}

// ToWorld converts a screen coordinate into world space, e.g. to place a
// drag pin under the pointer.
func (v Viewport) ToWorld(sx, sy float64) (float64, float64) {
	return (sx - v.TX) / v.Scale, (sy - v.TY) / v.Scale
}

// ToScreen converts a world coordinate into screen space.
func (v Viewport) ToScreen(wx, wy float64) (float64, float64) {
	return wx*v.Scale + v.TX, wy*v.Scale + v.TY
}

func clampScale(s float64) float64 {
	if s < MinScale {
		return MinScale
	}
	if s > MaxScale {
		return MaxScale
	}
	return s
}
