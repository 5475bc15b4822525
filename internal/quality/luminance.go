package quality

import (
	"image"
	"math"
)

// toGrayscale converts an image to a column-major luminance matrix.
func toGrayscale(img image.Image) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make([][]float64, width)
	for x := range width {
		gray[x] = make([]float64, height)
		for y := range height {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// ITU-R BT.601 luma formula.
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			gray[x][y] = luma
		}
	}

	return gray
}

// laplacianVariance applies a 3x3 Laplacian kernel to the interior pixels and
// returns the variance of the response. Flat images score near zero, sharp
// edges drive the variance up.
func laplacianVariance(gray [][]float64) float64 {
	width := len(gray)
	if width < 3 {
		return 0
	}
	height := len(gray[0])
	if height < 3 {
		return 0
	}

	responses := make([]float64, 0, (width-2)*(height-2))
	for x := 1; x < width-1; x++ {
		for y := 1; y < height-1; y++ {
			v := 4*gray[x][y] - gray[x-1][y] - gray[x+1][y] - gray[x][y-1] - gray[x][y+1]
			responses = append(responses, v)
		}
	}

	var mean float64
	for _, v := range responses {
		mean += v
	}
	mean /= float64(len(responses))

	var variance float64
	for _, v := range responses {
		d := v - mean
		variance += d * d
	}
	return variance / float64(len(responses))
}

// luminanceStats returns the mean and standard deviation of the luminance matrix.
func luminanceStats(gray [][]float64) (float64, float64) {
	width := len(gray)
	if width == 0 {
		return 0, 0
	}
	height := len(gray[0])
	if height == 0 {
		return 0, 0
	}
	n := float64(width * height)

	var mean float64
	for x := range width {
		for y := range height {
			mean += gray[x][y]
		}
	}
	mean /= n

	var variance float64
	for x := range width {
		for y := range height {
			d := gray[x][y] - mean
			variance += d * d
		}
	}

	return mean, math.Sqrt(variance / n)
}
