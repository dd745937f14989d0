package avatar

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCropRect(t *testing.T) {
	tests := []struct {
		name         string
		imgW, imgH   int
		fullW, fullH int
		want         image.Rectangle
	}{
		{name: "smaller than full", imgW: 100, imgH: 120, fullW: 150, fullH: 150, want: image.Rect(0, 0, 100, 120)},
		{name: "exactly full", imgW: 150, imgH: 150, fullW: 150, fullH: 150, want: image.Rect(0, 0, 150, 150)},
		{name: "less than twice full", imgW: 200, imgH: 250, fullW: 150, fullH: 150, want: image.Rect(25, 50, 175, 200)},
		{name: "odd margin rounds half up", imgW: 151, imgH: 153, fullW: 150, fullH: 150, want: image.Rect(1, 2, 150, 151)},
		{name: "twice full takes middle half", imgW: 300, imgH: 300, fullW: 150, fullH: 150, want: image.Rect(75, 75, 225, 225)},
		{name: "much larger", imgW: 1000, imgH: 402, fullW: 150, fullH: 150, want: image.Rect(250, 101, 750, 301)},
		{name: "quarter rounds half up", imgW: 302, imgH: 302, fullW: 150, fullH: 150, want: image.Rect(76, 76, 226, 226)},
		{name: "axes are independent", imgW: 100, imgH: 400, fullW: 150, fullH: 150, want: image.Rect(0, 100, 100, 300)},
		{name: "wide cover", imgW: 1300, imgH: 300, fullW: 1300, fullH: 225, want: image.Rect(0, 38, 1300, 262)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CropRect(tt.imgW, tt.imgH, tt.fullW, tt.fullH)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCropRect_CenteredWithinImage(t *testing.T) {
	for w := 1; w <= 400; w += 7 {
		for h := 1; h <= 400; h += 11 {
			r := CropRect(w, h, 150, 120)
			if !r.In(image.Rect(0, 0, w, h)) {
				t.Fatalf("CropRect(%d, %d) = %v; outside image", w, h, r)
			}
			if r.Min.X != w-r.Max.X || r.Min.Y != h-r.Max.Y {
				t.Fatalf("CropRect(%d, %d) = %v; not centered", w, h, r)
			}
		}
	}
}
