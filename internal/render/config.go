// Package render rasterizes a segment list into a watermarked PNG using the
// standard library's image/draw/png packages plus golang.org/x/image/font
// for the bottom-left label. No vector rendering library in the retrieval
// pack both ships as a real fetchable module and supports plain
// stroked-polyline rendering without a PDF-coordinate-space dependency
// (seehuhn.de/go/raster is PDF-scoped and not a standalone module), so
// stdlib + x/image is the deliberate choice, not a fallback of convenience.
package render

// Options configures one Render call.
type Options struct {
	DPI                float64
	PaddingRatio       float64 // fraction of extents added as margin on each side, minimum enforced separately
	MinMarginPixels    int
	MaxDimensionPixels int

	DrawOrder []string // semantic types, in the order they are stroked

	SafeName string
	Score    float64
}

// DefaultDrawOrder is used when Options.DrawOrder is empty.
var DefaultDrawOrder = []string{"corte", "vinco", "serrilha", "serrilha_mista", "trespt", "outro"}

func (o Options) drawOrder() []string {
	if len(o.DrawOrder) > 0 {
		return o.DrawOrder
	}
	return DefaultDrawOrder
}
