package vision

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// SubjectDetector locates the visually salient part of an image
type SubjectDetector struct {
	config DetectionConfig
}

// DetectionConfig holds configuration for subject detection
type DetectionConfig struct {
	// AnalysisSize is the long side the image is reduced to before scoring
	AnalysisSize   int
	ContrastWeight float64
	ColorWeight    float64
	// CenterBias pulls ties toward the middle of the image, 0 disables it
	CenterBias float64
}

// New creates a new SubjectDetector with default configuration
func New() *SubjectDetector {
	return &SubjectDetector{
		config: DetectionConfig{
			AnalysisSize:   256,
			ContrastWeight: 0.8,
			ColorWeight:    0.2,
			CenterBias:     0.05,
		},
	}
}

// NewWithConfig creates a new SubjectDetector with custom configuration
func NewWithConfig(config DetectionConfig) *SubjectDetector {
	if config.AnalysisSize <= 0 {
		config.AnalysisSize = 256
	}
	return &SubjectDetector{config: config}
}

// Region represents a rectangular region of interest in source pixels
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Rect converts the region to an image.Rectangle
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

// FindBestCropRegion finds the largest crop of the given aspect ratio whose
// position captures the most saliency
func (d *SubjectDetector) FindBestCropRegion(img image.Image, targetAspectRatio float64) (Region, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return Region{}, fmt.Errorf("invalid image dimensions %dx%d", width, height)
	}
	if targetAspectRatio <= 0 {
		return Region{}, fmt.Errorf("invalid aspect ratio %f", targetAspectRatio)
	}

	// Score on a reduced copy; scale back afterwards
	small := img
	if width > d.config.AnalysisSize || height > d.config.AnalysisSize {
		small = imaging.Fit(img, d.config.AnalysisSize, d.config.AnalysisSize, imaging.Box)
	}
	sw, sh := small.Bounds().Dx(), small.Bounds().Dy()
	scaleX := float64(width) / float64(sw)
	scaleY := float64(height) / float64(sh)

	cropW, cropH := cropSize(sw, sh, targetAspectRatio)
	integral := d.integralSaliency(small)

	// Start from the centered crop so flat images stay centered
	best := Region{X: (sw - cropW) / 2, Y: (sh - cropH) / 2, Width: cropW, Height: cropH}
	best.Score = sumRegion(integral, sw, best.X, best.Y, cropW, cropH)
	for y := 0; y+cropH <= sh; y++ {
		for x := 0; x+cropW <= sw; x++ {
			score := sumRegion(integral, sw, x, y, cropW, cropH)
			score *= 1 - d.config.CenterBias*centerDistance(x, y, cropW, cropH, sw, sh)
			if score > best.Score {
				best = Region{X: x, Y: y, Width: cropW, Height: cropH, Score: score}
			}
		}
	}

	// Back to source pixels, clamped to bounds
	outW, outH := cropSize(width, height, targetAspectRatio)
	x := clampInt(int(math.Round(float64(best.X)*scaleX)), 0, width-outW)
	y := clampInt(int(math.Round(float64(best.Y)*scaleY)), 0, height-outH)

	total := sumRegion(integral, sw, 0, 0, sw, sh)
	score := 0.0
	if total > 0 {
		score = sumRegion(integral, sw, best.X, best.Y, cropW, cropH) / total
	}

	return Region{
		X:      bounds.Min.X + x,
		Y:      bounds.Min.Y + y,
		Width:  outW,
		Height: outH,
		Score:  score,
	}, nil
}

// integralSaliency builds a summed-area table of per-pixel saliency, where
// saliency combines local edge strength and brightness
func (d *SubjectDetector) integralSaliency(img image.Image) []float64 {
	gray := imaging.Grayscale(img)
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()

	lum := func(x, y int) float64 {
		return float64(gray.Pix[y*gray.Stride+x*4]) / 255
	}

	integral := make([]float64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		row := 0.0
		for x := 0; x < w; x++ {
			c := lum(x, y)
			var edge float64
			if x > 0 {
				edge += math.Abs(c - lum(x-1, y))
			}
			if x < w-1 {
				edge += math.Abs(c - lum(x+1, y))
			}
			if y > 0 {
				edge += math.Abs(c - lum(x, y-1))
			}
			if y < h-1 {
				edge += math.Abs(c - lum(x, y+1))
			}
			row += d.config.ContrastWeight*edge/4 + d.config.ColorWeight*c
			integral[(y+1)*(w+1)+x+1] = integral[y*(w+1)+x+1] + row
		}
	}
	return integral
}

func sumRegion(integral []float64, w, x, y, cw, ch int) float64 {
	stride := w + 1
	return integral[(y+ch)*stride+x+cw] - integral[y*stride+x+cw] - integral[(y+ch)*stride+x] + integral[y*stride+x]
}

// cropSize returns the largest width/height with the given ratio that fits
func cropSize(width, height int, ratio float64) (int, int) {
	if float64(width)/float64(height) > ratio {
		cw := int(math.Round(float64(height) * ratio))
		return clampInt(cw, 1, width), height
	}
	ch := int(math.Round(float64(width) / ratio))
	return width, clampInt(ch, 1, height)
}

// centerDistance is the normalized distance between crop and image centers
func centerDistance(x, y, cw, ch, w, h int) float64 {
	dx := float64(x+cw/2-w/2) / float64(w)
	dy := float64(y+ch/2-h/2) / float64(h)
	return math.Sqrt(dx*dx+dy*dy) / math.Sqrt2 * 2
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
