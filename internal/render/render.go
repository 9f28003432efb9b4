package render

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/facasdxf/complexity-engine/internal/domain"
	"github.com/facasdxf/complexity-engine/internal/geometry"
)

var semanticColor = map[string]color.RGBA{
	"corte":          {0, 0, 0, 255},
	"vinco":          {0, 0, 200, 255},
	"serrilha":       {200, 0, 0, 255},
	"serrilha_mista": {200, 100, 0, 255},
	"trespt":         {0, 150, 0, 255},
	"outro":          {128, 128, 128, 255},
}

var defaultColor = color.RGBA{96, 96, 96, 255}

// Render rasterizes segments into a white-background PNG at the requested
// DPI, drawing semantic types in opts.DrawOrder, and stamps a bottom-left
// watermark of "{safeName} | score={score}". Render never returns an error
// for drawing-quality reasons; a non-nil error only signals encode failure,
// which callers treat as non-fatal per the worker's rendering contract.
func Render(segments []geometry.Segment, layerTypes map[string]string, opts Options) ([]byte, domain.ImageMetadata, error) {
	extents := extentsOf(segments)

	dpi := opts.DPI
	if dpi <= 0 {
		dpi = 96
	}
	mmToPx := dpi / 25.4

	marginRatio := opts.PaddingRatio
	if marginRatio <= 0 {
		marginRatio = 0.05
	}
	minMargin := opts.MinMarginPixels
	if minMargin <= 0 {
		minMargin = 48
	}
	maxDim := opts.MaxDimensionPixels
	if maxDim <= 0 {
		maxDim = 4096
	}

	width := extents.Width()
	height := extents.Height()
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}

	marginMM := math.Max(width, height) * marginRatio
	contentWidthPx := (width + 2*marginMM) * mmToPx
	contentHeightPx := (height + 2*marginMM) * mmToPx

	pxWidth := int(math.Ceil(contentWidthPx)) + 2*minMargin
	pxHeight := int(math.Ceil(contentHeightPx)) + 2*minMargin

	longest := math.Max(float64(pxWidth), float64(pxHeight))
	effectiveDPI := dpi
	if longest > float64(maxDim) {
		scale := float64(maxDim) / longest
		pxWidth = int(float64(pxWidth) * scale)
		pxHeight = int(float64(pxHeight) * scale)
		mmToPx *= scale
		effectiveDPI *= scale
	}
	if pxWidth < 1 {
		pxWidth = 1
	}
	if pxHeight < 1 {
		pxHeight = 1
	}

	img := image.NewRGBA(image.Rect(0, 0, pxWidth, pxHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	originX := float64(minMargin) + marginMM*mmToPx - extents.MinX*mmToPx
	originY := float64(pxHeight-minMargin) - marginMM*mmToPx + extents.MinY*mmToPx

	toPixel := func(x, y float64) (int, int) {
		px := originX + x*mmToPx
		py := originY - y*mmToPx
		return int(math.Round(px)), int(math.Round(py))
	}

	byType := make(map[string][]geometry.Segment)
	for _, s := range segments {
		t := layerTypes[s.Layer]
		byType[t] = append(byType[t], s)
	}

	strokeWidth := strokeWidthFor(mmToPx)

	for _, t := range opts.drawOrder() {
		segs, ok := byType[t]
		if !ok {
			continue
		}
		col, ok := semanticColor[t]
		if !ok {
			col = defaultColor
		}
		for _, s := range segs {
			x0, y0 := toPixel(s.StartX, s.StartY)
			x1, y1 := toPixel(s.EndX, s.EndY)
			drawThickLine(img, x0, y0, x1, y1, strokeWidth, col)
		}
	}

	label := fmt.Sprintf("%s | score=%.2f", opts.SafeName, opts.Score)
	drawWatermark(img, label, minMargin)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, domain.ImageMetadata{}, err
	}

	sum := sha256.Sum256(buf.Bytes())
	meta := domain.ImageMetadata{
		Width:       pxWidth,
		Height:      pxHeight,
		DPI:         int(math.Round(effectiveDPI)),
		ContentType: "image/png",
		SizeBytes:   int64(buf.Len()),
		Checksum:    "sha256:" + hex.EncodeToString(sum[:]),
	}
	return buf.Bytes(), meta, nil
}

func extentsOf(segments []geometry.Segment) domain.Extents {
	if len(segments) == 0 {
		return domain.Extents{}
	}
	e := domain.Extents{MinX: segments[0].StartX, MinY: segments[0].StartY, MaxX: segments[0].StartX, MaxY: segments[0].StartY}
	for _, s := range segments {
		for _, p := range [][2]float64{{s.StartX, s.StartY}, {s.EndX, s.EndY}} {
			e.MinX = math.Min(e.MinX, p[0])
			e.MinY = math.Min(e.MinY, p[1])
			e.MaxX = math.Max(e.MaxX, p[0])
			e.MaxY = math.Max(e.MaxY, p[1])
		}
	}
	return e
}

// strokeWidthFor picks a stroke width in [2, 6] pixels relative to the
// effective mm-to-pixel scale.
func strokeWidthFor(mmToPx float64) int {
	w := int(math.Round(mmToPx * 0.35))
	if w < 2 {
		w = 2
	}
	if w > 6 {
		w = 6
	}
	return w
}

func drawThickLine(img *image.RGBA, x0, y0, x1, y1, width int, col color.RGBA) {
	half := width / 2
	if half < 1 {
		half = 1
	}
	dx := x1 - x0
	dy := y1 - y0
	steps := maxInt(absInt(dx), absInt(dy))
	if steps == 0 {
		fillDot(img, x0, y0, half, col)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := x0 + int(math.Round(float64(dx)*t))
		y := y0 + int(math.Round(float64(dy)*t))
		fillDot(img, x, y, half, col)
	}
}

func fillDot(img *image.RGBA, cx, cy, radius int, col color.RGBA) {
	bounds := img.Bounds()
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			x, y := cx+dx, cy+dy
			if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
				continue
			}
			img.SetRGBA(x, y, col)
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func drawWatermark(img *image.RGBA, label string, margin int) {
	face := basicfont.Face7x13
	y := img.Bounds().Max.Y - margin/2
	if y < face.Height {
		y = face.Height
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.P(margin/2, y),
	}
	d.DrawString(label)
}
