package generation

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"github.com/popgraph/server/internal/model"
)

// WatermarkPosition names the corner a watermark is anchored to.
type WatermarkPosition string

const (
	PositionBottomRight WatermarkPosition = "bottom-right"
	PositionBottomLeft  WatermarkPosition = "bottom-left"
	PositionTopRight    WatermarkPosition = "top-right"
	PositionTopLeft     WatermarkPosition = "top-left"
)

const (
	defaultWatermarkText    = "PopGraph"
	defaultWatermarkOpacity = 0.5
	defaultWatermarkMargin  = 20
)

// WatermarkRule is the branding policy for one tier.
type WatermarkRule struct {
	Apply    bool
	Text     string
	Opacity  float64
	Position WatermarkPosition
	Margin   int
	// Scale multiplies the 13px base glyph height. Zero picks a scale from the image size.
	Scale int
}

// WatermarkStyle overrides the default rendering of applied watermarks.
// Zero fields keep the default.
type WatermarkStyle struct {
	Text    string
	Opacity float64
	Margin  int
	Scale   int
}

// DefaultWatermarkStyle returns the default watermark style.
func DefaultWatermarkStyle() WatermarkStyle {
	return WatermarkStyle{
		Text:    defaultWatermarkText,
		Opacity: defaultWatermarkOpacity,
		Margin:  defaultWatermarkMargin,
	}
}

// WatermarkRuleFor returns the watermark rule of a tier.
// Only the free tier is branded.
func WatermarkRuleFor(tier model.Tier) WatermarkRule {
	if model.ParseTier(string(tier)) != model.TierFree {
		return WatermarkRule{}
	}
	return WatermarkRule{
		Apply:    true,
		Text:     defaultWatermarkText,
		Opacity:  defaultWatermarkOpacity,
		Position: PositionBottomRight,
		Margin:   defaultWatermarkMargin,
	}
}

// WithStyle returns a copy of the rule with the non-zero style fields applied.
func (r WatermarkRule) WithStyle(s WatermarkStyle) WatermarkRule {
	if !r.Apply {
		return r
	}
	if s.Text != "" {
		r.Text = s.Text
	}
	if s.Opacity > 0 && s.Opacity <= 1 {
		r.Opacity = s.Opacity
	}
	if s.Margin > 0 {
		r.Margin = s.Margin
	}
	if s.Scale > 0 {
		r.Scale = s.Scale
	}
	return r
}

// ApplyWatermark draws the rule's text onto an encoded image and returns it re-encoded as PNG.
// PNG, JPEG and WebP inputs are accepted.
func ApplyWatermark(data []byte, rule WatermarkRule) ([]byte, error) {
	if !rule.Apply || rule.Text == "" {
		return data, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrWatermark, err)
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), src, bounds.Min, draw.Src)

	mask := renderText(rule.Text, watermarkScale(rule.Scale, canvas.Bounds()))
	at := anchor(canvas.Bounds(), mask.Bounds(), rule.Position, rule.Margin)

	alpha := uint8(clampOpacity(rule.Opacity) * 255)
	fill := image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: alpha})
	draw.DrawMask(canvas, mask.Bounds().Add(at), fill, image.Point{}, mask, image.Point{}, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrWatermark, err)
	}
	return buf.Bytes(), nil
}

// renderText rasterizes text with the built-in bitmap face and scales it up.
func renderText(text string, scale int) *image.Alpha {
	face := basicfont.Face7x13
	d := &font.Drawer{Src: image.Opaque, Face: face}
	width := d.MeasureString(text).Ceil()

	base := image.NewAlpha(image.Rect(0, 0, width, face.Height))
	d.Dst = base
	d.Dot = fixed.P(0, face.Ascent)
	d.DrawString(text)

	if scale <= 1 {
		return base
	}
	scaled := image.NewAlpha(image.Rect(0, 0, width*scale, face.Height*scale))
	xdraw.NearestNeighbor.Scale(scaled, scaled.Bounds(), base, base.Bounds(), xdraw.Src, nil)
	return scaled
}

func watermarkScale(scale int, canvas image.Rectangle) int {
	if scale > 0 {
		return scale
	}
	short := min(canvas.Dx(), canvas.Dy())
	return max(1, short/(20*basicfont.Face7x13.Height))
}

// anchor returns the top-left point of the text box, kept inside the canvas.
func anchor(canvas, text image.Rectangle, pos WatermarkPosition, margin int) image.Point {
	left := margin
	top := margin
	right := canvas.Dx() - margin - text.Dx()
	bottom := canvas.Dy() - margin - text.Dy()

	var p image.Point
	switch pos {
	case PositionTopLeft:
		p = image.Pt(left, top)
	case PositionTopRight:
		p = image.Pt(right, top)
	case PositionBottomLeft:
		p = image.Pt(left, bottom)
	default:
		p = image.Pt(right, bottom)
	}
	p.X = max(0, min(p.X, canvas.Dx()-text.Dx()))
	p.Y = max(0, min(p.Y, canvas.Dy()-text.Dy()))
	return p
}

func clampOpacity(o float64) float64 {
	switch {
	case o <= 0:
		return defaultWatermarkOpacity
	case o > 1:
		return 1
	}
	return o
}
