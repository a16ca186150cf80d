package generation

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popgraph/server/internal/model"
)

func TestWatermarkRuleFor(t *testing.T) {
	tests := []struct {
		tier  model.Tier
		apply bool
	}{
		{model.TierFree, true},
		{model.TierBasic, false},
		{model.TierProfessional, false},
		{model.Tier("legacy"), true},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			rule := WatermarkRuleFor(tt.tier)
			assert.Equal(t, tt.apply, rule.Apply)
		})
	}

	rule := WatermarkRuleFor(model.TierFree)
	assert.Equal(t, "PopGraph", rule.Text)
	assert.Equal(t, 0.5, rule.Opacity)
	assert.Equal(t, PositionBottomRight, rule.Position)
	assert.Equal(t, 20, rule.Margin)
}

func TestWatermarkRule_WithStyle(t *testing.T) {
	t.Run("overrides non-zero fields", func(t *testing.T) {
		rule := WatermarkRuleFor(model.TierFree).WithStyle(WatermarkStyle{Text: "Demo", Scale: 2})
		assert.Equal(t, "Demo", rule.Text)
		assert.Equal(t, 2, rule.Scale)
		assert.Equal(t, 0.5, rule.Opacity)
		assert.Equal(t, 20, rule.Margin)
	})

	t.Run("ignores out of range opacity", func(t *testing.T) {
		rule := WatermarkRuleFor(model.TierFree).WithStyle(WatermarkStyle{Opacity: 1.5})
		assert.Equal(t, 0.5, rule.Opacity)
	})

	t.Run("does not enable a disabled rule", func(t *testing.T) {
		rule := WatermarkRuleFor(model.TierBasic).WithStyle(DefaultWatermarkStyle())
		assert.False(t, rule.Apply)
	})
}

func TestApplyWatermark(t *testing.T) {
	t.Run("no-op when not applied", func(t *testing.T) {
		data := []byte("not even an image")
		out, err := ApplyWatermark(data, WatermarkRuleFor(model.TierBasic))
		require.NoError(t, err)
		assert.Equal(t, data, out)
	})

	t.Run("draws text in the bottom-right corner", func(t *testing.T) {
		data := testPNG(t, 200, 200, color.Black)

		out, err := ApplyWatermark(data, WatermarkRuleFor(model.TierFree))
		require.NoError(t, err)
		assert.Equal(t, "image/png", http.DetectContentType(out))

		img, _, err := image.Decode(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 200, 200), img.Bounds())

		// Text box at scale 1 is 56x13, anchored 20px from the bottom-right edge.
		assert.True(t, hasBrightPixel(img, image.Rect(124, 167, 180, 180)))
		assert.False(t, hasBrightPixel(img, image.Rect(0, 0, 120, 160)))
	})

	t.Run("opacity blends with the background", func(t *testing.T) {
		data := testPNG(t, 200, 200, color.Black)

		out, err := ApplyWatermark(data, WatermarkRuleFor(model.TierFree))
		require.NoError(t, err)
		img, _, err := image.Decode(bytes.NewReader(out))
		require.NoError(t, err)

		var brightest uint32
		for y := 167; y < 180; y++ {
			for x := 124; x < 180; x++ {
				r, _, _, _ := img.At(x, y).RGBA()
				brightest = max(brightest, r>>8)
			}
		}
		assert.InDelta(t, 127, brightest, 2)
	})

	t.Run("accepts jpeg input", func(t *testing.T) {
		var buf bytes.Buffer
		src := image.NewRGBA(image.Rect(0, 0, 128, 96))
		require.NoError(t, jpeg.Encode(&buf, src, nil))

		out, err := ApplyWatermark(buf.Bytes(), WatermarkRuleFor(model.TierFree))
		require.NoError(t, err)
		assert.Equal(t, "image/png", http.DetectContentType(out))
	})

	t.Run("undecodable bytes", func(t *testing.T) {
		_, err := ApplyWatermark([]byte("garbage"), WatermarkRuleFor(model.TierFree))
		assert.ErrorIs(t, err, ErrWatermark)
	})
}

func TestAnchor(t *testing.T) {
	canvas := image.Rect(0, 0, 300, 200)
	text := image.Rect(0, 0, 56, 13)

	tests := []struct {
		pos      WatermarkPosition
		expected image.Point
	}{
		{PositionBottomRight, image.Pt(224, 167)},
		{PositionBottomLeft, image.Pt(20, 167)},
		{PositionTopRight, image.Pt(224, 20)},
		{PositionTopLeft, image.Pt(20, 20)},
	}

	for _, tt := range tests {
		t.Run(string(tt.pos), func(t *testing.T) {
			assert.Equal(t, tt.expected, anchor(canvas, text, tt.pos, 20))
		})
	}

	t.Run("clamped inside small canvas", func(t *testing.T) {
		p := anchor(image.Rect(0, 0, 64, 64), text, PositionBottomRight, 20)
		assert.Equal(t, image.Pt(0, 31), p)
	})
}

func TestWatermarkScale(t *testing.T) {
	assert.Equal(t, 1, watermarkScale(0, image.Rect(0, 0, 200, 200)))
	assert.Equal(t, 3, watermarkScale(0, image.Rect(0, 0, 1024, 1024)))
	assert.Equal(t, 2, watermarkScale(0, image.Rect(0, 0, 1024, 576)))
	assert.Equal(t, 5, watermarkScale(5, image.Rect(0, 0, 64, 64)))
}

func hasBrightPixel(img image.Image, r image.Rectangle) bool {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if red, _, _, _ := img.At(x, y).RGBA(); red>>8 > 64 {
				return true
			}
		}
	}
	return false
}
