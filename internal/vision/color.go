package vision

import (
	"image"
)

// DefaultColorBins is the number of histogram bins per channel.
const DefaultColorBins = 32

// ColorHistogram computes independent R, G and B histograms with `bins`
// buckets over [0,256), concatenates them in R,G,B order and L2-normalizes
// the result. Length is 3*bins.
func ColorHistogram(img image.Image, bins int) []float64 {
	if bins <= 0 {
		bins = DefaultColorBins
	}

	hist := make([]float64, 3*bins)
	b := img.Bounds()

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()

			// RGBA returns 16-bit channels
			hist[binFor(r>>8, bins)]++
			hist[bins+binFor(g>>8, bins)]++
			hist[2*bins+binFor(bl>>8, bins)]++
		}
	}

	return L2Normalize(hist)
}

func binFor(v uint32, bins int) int {
	idx := int(v) * bins / 256
	if idx >= bins {
		idx = bins - 1
	}
	return idx
}
