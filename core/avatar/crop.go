package avatar

import (
	"image"
	"math"
)

// CropRect returns the default crop of an imgW x imgH image for a fullW x fullH avatar.
// Each axis is handled on its own:
//   - smaller than full: the whole axis;
//   - smaller than twice full: a full-sized window, centered;
//   - otherwise: the middle half.
func CropRect(imgW, imgH, fullW, fullH int) image.Rectangle {
	left, right := cropAxis(imgW, fullW)
	top, bottom := cropAxis(imgH, fullH)
	return image.Rect(left, top, right, bottom)
}

func cropAxis(size, full int) (start, end int) {
	var margin int
	switch {
	case size < full:
		margin = 0
	case size < 2*full:
		margin = int(math.Round(float64(size-full) / 2))
	default:
		margin = int(math.Round(float64(size) / 4))
	}
	return margin, size - margin
}
