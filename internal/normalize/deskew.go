package normalize

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

// rotationGate is the minimum skew, in degrees, worth correcting. Rotating an
// already-aligned scan only introduces resampling artifacts.
const rotationGate = 0.5

type point struct {
	x, y float64
}

// deskew estimates the skew of the binarized raster from the minimum-area
// bounding rectangle of its ink pixels and rotates it back upright. The
// result keeps the input dimensions.
func deskew(bin *image.Gray) *image.Gray {
	pts := inkPoints(bin)
	if len(pts) < 3 {
		return bin
	}
	angle := foldAngle(rectAngle(convexHull(pts)))
	if math.Abs(angle) <= rotationGate {
		return bin
	}
	w := bin.Rect.Dx()
	h := bin.Rect.Dy()
	rotated := imaging.Rotate(bin, angle, color.White)
	return rebinarize(toGray(imaging.CropCenter(rotated, w, h)))
}

// foldAngle normalizes a minimum-area-rectangle angle (reported in [-90, 0)
// like the usual rotated-rect convention) into the correcting rotation in
// (-45, 45]: angles below -45 fold as -(90+angle), the rest negate.
func foldAngle(angle float64) float64 {
	if angle < -45 {
		return -(90 + angle)
	}
	return -angle
}

func inkPoints(bin *image.Gray) []point {
	var pts []point
	w := bin.Rect.Dx()
	h := bin.Rect.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if bin.Pix[y*bin.Stride+x] == 0 {
				pts = append(pts, point{float64(x), float64(y)})
			}
		}
	}
	return pts
}

// convexHull computes the hull with Andrew's monotone chain.
func convexHull(pts []point) []point {
	if len(pts) < 3 {
		return pts
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].x != pts[j].x {
			return pts[i].x < pts[j].x
		}
		return pts[i].y < pts[j].y
	})
	hull := make([]point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

func cross(o, a, b point) float64 {
	return (a.x-o.x)*(b.y-o.y) - (a.y-o.y)*(b.x-o.x)
}

// rectAngle fits the minimum-area bounding rectangle over the hull with
// rotating calipers and returns its orientation in degrees, normalized into
// [-90, 0).
func rectAngle(hull []point) float64 {
	if len(hull) < 3 {
		return 0
	}
	bestArea := math.MaxFloat64
	bestTheta := 0.0
	for i := range hull {
		a := hull[i]
		b := hull[(i+1)%len(hull)]
		dx := b.x - a.x
		dy := b.y - a.y
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		ux, uy := dx/length, dy/length
		minU, maxU := math.MaxFloat64, -math.MaxFloat64
		minV, maxV := math.MaxFloat64, -math.MaxFloat64
		for _, p := range hull {
			u := p.x*ux + p.y*uy
			v := -p.x*uy + p.y*ux
			minU = math.Min(minU, u)
			maxU = math.Max(maxU, u)
			minV = math.Min(minV, v)
			maxV = math.Max(maxV, v)
		}
		area := (maxU - minU) * (maxV - minV)
		if area < bestArea {
			bestArea = area
			bestTheta = math.Atan2(dy, dx)
		}
	}
	deg := bestTheta * 180 / math.Pi
	deg = math.Mod(deg, 90)
	if deg >= 0 {
		deg -= 90
	}
	return deg
}

// rebinarize snaps interpolated pixels from the rotation back to pure
// black/white.
func rebinarize(gray *image.Gray) *image.Gray {
	for i, v := range gray.Pix {
		if v > 127 {
			gray.Pix[i] = 255
		} else {
			gray.Pix[i] = 0
		}
	}
	return gray
}
