package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	"github.com/disintegration/imaging"
)

// ErrDecode is returned for malformed or unreadable image input. It is the
// only fatal error in the pipeline: everything downstream of decoding
// degrades instead of failing.
var ErrDecode = errors.New("could not decode image")

const (
	// blurSigma approximates a 5x5 Gaussian kernel
	blurSigma = 1.1
	// thresholdRadius gives an 11x11 adaptive threshold window
	thresholdRadius = 5
	// thresholdC is subtracted from the local mean before binarizing
	thresholdC = 2
	// closingRadius sets the structuring element for the closing pass
	closingRadius = 1
)

// Decode converts raw bytes into a pixel buffer. Undecodable input is
// rejected with ErrDecode.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// Clean turns a decoded image into a deskewed binary raster suitable for text
// recognition. Steps, in order: grayscale conversion, Gaussian smoothing,
// adaptive local thresholding, morphological closing, deskew. The output has
// the same dimensions as the input.
func Clean(img image.Image) *image.Gray {
	blurred := imaging.Blur(imaging.Grayscale(img), blurSigma)
	gray := toGray(blurred)
	bin := adaptiveThreshold(gray, thresholdRadius, thresholdC)
	closed := closing(bin, closingRadius)
	return deskew(closed)
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x-bounds.Min.X, y-bounds.Min.Y, img.At(x, y))
		}
	}
	return gray
}

// adaptiveThreshold binarizes against variable background illumination: a
// pixel becomes white (paper) when it exceeds the mean of its local window
// minus c, black (ink) otherwise. The window mean is computed from a summed
// area table so the pass stays linear in the pixel count.
func adaptiveThreshold(gray *image.Gray, radius, c int) *image.Gray {
	w := gray.Rect.Dx()
	h := gray.Rect.Dy()
	sums := integralImage(gray)

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-radius), min(h-1, y+radius)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-radius), min(w-1, x+radius)
			area := int64((x1 - x0 + 1) * (y1 - y0 + 1))
			sum := sums[(y1+1)*(w+1)+x1+1] - sums[y0*(w+1)+x1+1] -
				sums[(y1+1)*(w+1)+x0] + sums[y0*(w+1)+x0]
			mean := sum / area
			if int64(gray.GrayAt(x, y).Y) > mean-int64(c) {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// integralImage returns a (w+1)x(h+1) summed area table in row-major order.
func integralImage(gray *image.Gray) []int64 {
	w := gray.Rect.Dx()
	h := gray.Rect.Dy()
	sums := make([]int64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var rowSum int64
		for x := 0; x < w; x++ {
			rowSum += int64(gray.GrayAt(x, y).Y)
			sums[(y+1)*(w+1)+x+1] = sums[y*(w+1)+x+1] + rowSum
		}
	}
	return sums
}

// closing runs a dilation followed by an erosion, reconnecting strokes broken
// by thresholding without thickening text overall.
func closing(bin *image.Gray, radius int) *image.Gray {
	return erode(dilate(bin, radius), radius)
}

func dilate(bin *image.Gray, radius int) *image.Gray {
	return morph(bin, radius, func(a, b uint8) bool { return a > b })
}

func erode(bin *image.Gray, radius int) *image.Gray {
	return morph(bin, radius, func(a, b uint8) bool { return a < b })
}

func morph(bin *image.Gray, radius int, pick func(a, b uint8) bool) *image.Gray {
	w := bin.Rect.Dx()
	h := bin.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			best := bin.GrayAt(x, y).Y
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					if v := bin.GrayAt(nx, ny).Y; pick(v, best) {
						best = v
					}
				}
			}
			out.Pix[y*out.Stride+x] = best
		}
	}
	return out
}
