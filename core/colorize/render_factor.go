package colorize

import "strconv"

// RenderRange is the slider range a page exposes for the render factor.
type RenderRange struct {
	Min     int
	Max     int
	Default int
}

var (
	// ImageRenderRange 图片页：7..40，默认 35
	ImageRenderRange = RenderRange{Min: 7, Max: 40, Default: 35}
	// VideoRenderRange 视频页和 YouTube 页：1..40，默认 10
	VideoRenderRange = RenderRange{Min: 1, Max: 40, Default: 10}
)

// Clamp pins v into [Min, Max].
func (r RenderRange) Clamp(v int) int {
	return ClampRenderFactor(v, r.Min, r.Max)
}

// Parse reads a form value. Empty or non-numeric input yields Default,
// anything out of range is clamped rather than rejected.
func (r RenderRange) Parse(raw string) int {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return r.Default
	}
	return r.Clamp(v)
}

// ClampRenderFactor pins v into [lo, hi].
func ClampRenderFactor(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
