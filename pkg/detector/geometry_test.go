package detector

import (
	"HelmetVision/internal/entity"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnclosingBoxOfRotatedSquare(t *testing.T) {
	obb := OrientedFromXYWHR(50, 50, 20, 20, math.Pi/4)

	box := EnclosingBox(obb, 200, 200)

	half := 10 * math.Sqrt2
	assert.Equal(t, int(math.Floor(50-half)), box.X)
	assert.Equal(t, int(math.Floor(50-half)), box.Y)
	assert.Equal(t, int(math.Ceil(50+half))-box.X, box.Width)
	assert.Equal(t, int(math.Ceil(50+half))-box.Y, box.Height)
}

func TestEnclosingBoxAxisAligned(t *testing.T) {
	obb := OrientedFromXYWHR(30, 40, 20, 10, 0)

	assert.Equal(t, entity.Box{X: 20, Y: 35, Width: 20, Height: 10}, EnclosingBox(obb, 100, 100))
}

func TestClampBoxKeepsBoxInsideImage(t *testing.T) {
	tests := []struct {
		name           string
		x1, y1, x2, y2 float64
		want           entity.Box
	}{
		{"inside", 10, 10, 20, 30, entity.Box{X: 10, Y: 10, Width: 10, Height: 20}},
		{"overflow", -5, -5, 150, 150, entity.Box{X: 0, Y: 0, Width: 100, Height: 50}},
		{"swapped corners", 20, 30, 10, 10, entity.Box{X: 10, Y: 10, Width: 10, Height: 20}},
		{"degenerate", 40, 40, 40, 40, entity.Box{X: 40, Y: 40, Width: 1, Height: 1}},
		{"outside right", 120, 10, 130, 20, entity.Box{X: 99, Y: 10, Width: 1, Height: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClampBox(tt.x1, tt.y1, tt.x2, tt.y2, 100, 50)
			assert.Equal(t, tt.want, got)
			assert.Greater(t, got.Width, 0)
			assert.Greater(t, got.Height, 0)
			assert.LessOrEqual(t, got.X+got.Width, 100)
			assert.LessOrEqual(t, got.Y+got.Height, 50)
		})
	}
}

func TestOrientedFromCornersRecoversGeometry(t *testing.T) {
	want := OrientedFromXYWHR(80, 60, 40, 20, 0.3)

	got := OrientedFromCorners(want.Corners)

	assert.InDelta(t, want.CX, got.CX, 1e-9)
	assert.InDelta(t, want.CY, got.CY, 1e-9)
	assert.InDelta(t, want.Width, got.Width, 1e-9)
	assert.InDelta(t, want.Height, got.Height, 1e-9)
	assert.InDelta(t, want.Angle, got.Angle, 1e-9)
}

func TestScaleMapsCornersBack(t *testing.T) {
	obb := OrientedFromXYWHR(10, 10, 4, 2, 0)

	scaled := Scale(obb, 2, 3)

	assert.InDelta(t, 20, scaled.CX, 1e-9)
	assert.InDelta(t, 30, scaled.CY, 1e-9)
	assert.InDelta(t, 8, scaled.Width, 1e-9)
	assert.InDelta(t, 6, scaled.Height, 1e-9)
}

func TestParseGeometry(t *testing.T) {
	obb, xyxy, err := parseGeometry(nil, nil, []float64{0, 0, 10, 0, 10, 5, 0, 5})
	assert.NoError(t, err)
	assert.Nil(t, xyxy)
	assert.InDelta(t, 10, obb.Width, 1e-9)

	obb, xyxy, err = parseGeometry([]float64{1, 2, 3, 4}, nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, obb)
	assert.Equal(t, []float64{1, 2, 3, 4}, xyxy)

	_, _, err = parseGeometry([]float64{1, 2}, nil, nil)
	assert.ErrorIs(t, err, ErrInference)
}
