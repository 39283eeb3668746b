package detector

import (
	"HelmetVision/internal/entity"
	"fmt"
	"math"
)

// OrientedFromXYWHR builds the rotated box from center, size and rotation
// (radians). Corners are ordered top-left, top-right, bottom-right,
// bottom-left before rotation.
func OrientedFromXYWHR(cx, cy, w, h, angle float64) entity.OrientedBox {
	cos, sin := math.Cos(angle), math.Sin(angle)
	hw, hh := w/2, h/2

	offsets := [4][2]float64{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}}
	var corners [4]entity.Point
	for i, o := range offsets {
		corners[i] = entity.Point{
			X: cx + o[0]*cos - o[1]*sin,
			Y: cy + o[0]*sin + o[1]*cos,
		}
	}

	return entity.OrientedBox{CX: cx, CY: cy, Width: w, Height: h, Angle: angle, Corners: corners}
}

// OrientedFromCorners derives center, size and angle from four ordered corners.
func OrientedFromCorners(corners [4]entity.Point) entity.OrientedBox {
	var cx, cy float64
	for _, p := range corners {
		cx += p.X
		cy += p.Y
	}

	return entity.OrientedBox{
		CX:      cx / 4,
		CY:      cy / 4,
		Width:   math.Hypot(corners[1].X-corners[0].X, corners[1].Y-corners[0].Y),
		Height:  math.Hypot(corners[2].X-corners[1].X, corners[2].Y-corners[1].Y),
		Angle:   math.Atan2(corners[1].Y-corners[0].Y, corners[1].X-corners[0].X),
		Corners: corners,
	}
}

// Scale maps an oriented box from a resized frame back to source coordinates.
func Scale(obb entity.OrientedBox, sx, sy float64) entity.OrientedBox {
	var corners [4]entity.Point
	for i, p := range obb.Corners {
		corners[i] = entity.Point{X: p.X * sx, Y: p.Y * sy}
	}
	return OrientedFromCorners(corners)
}

// EnclosingBox reduces an oriented box to the smallest axis-aligned box that
// contains it, clamped to a width x height image. The result always has a
// positive size.
func EnclosingBox(obb entity.OrientedBox, width, height int) entity.Box {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range obb.Corners {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	return ClampBox(minX, minY, maxX, maxY, width, height)
}

func ClampBox(x1, y1, x2, y2 float64, width, height int) entity.Box {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}

	left := clampInt(int(math.Floor(x1)), 0, width-1)
	top := clampInt(int(math.Floor(y1)), 0, height-1)
	right := clampInt(int(math.Ceil(x2)), left+1, width)
	bottom := clampInt(int(math.Ceil(y2)), top+1, height)

	return entity.Box{X: left, Y: top, Width: right - left, Height: bottom - top}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// parseGeometry accepts xyxy, xywhr or eight corner coordinates.
func parseGeometry(xyxy, xywhr, corners []float64) (*entity.OrientedBox, []float64, error) {
	switch {
	case len(corners) == 8:
		var pts [4]entity.Point
		for i := 0; i < 4; i++ {
			pts[i] = entity.Point{X: corners[2*i], Y: corners[2*i+1]}
		}
		obb := OrientedFromCorners(pts)
		return &obb, nil, nil
	case len(xywhr) == 5:
		obb := OrientedFromXYWHR(xywhr[0], xywhr[1], xywhr[2], xywhr[3], xywhr[4])
		return &obb, nil, nil
	case len(xyxy) == 4:
		return nil, xyxy, nil
	default:
		return nil, nil, fmt.Errorf("%w: detection has no usable box geometry", ErrInference)
	}
}
