package cropper

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/menta2k/vision-analyzer/pkg/vision"
)

// SmartCropper produces thumbnails locally, cropping toward the salient region
type SmartCropper struct {
	detector *vision.SubjectDetector
	config   CropConfig
}

// CropConfig holds configuration for smart cropping
type CropConfig struct {
	AllowUpscaling bool
	Filter         imaging.ResampleFilter
}

// New creates a new SmartCropper with default configuration
func New() *SmartCropper {
	return &SmartCropper{
		detector: vision.New(),
		config: CropConfig{
			AllowUpscaling: true,
			Filter:         imaging.Lanczos,
		},
	}
}

// NewWithConfig creates a new SmartCropper with custom configuration
func NewWithConfig(config CropConfig) *SmartCropper {
	return &SmartCropper{
		detector: vision.New(),
		config:   config,
	}
}

// CropResult contains the result of a cropping operation
type CropResult struct {
	Image  image.Image
	Region vision.Region
}

// Thumbnail returns a width x height thumbnail. With smartCrop the crop window
// follows the salient region, otherwise the image is cropped around its center.
func (c *SmartCropper) Thumbnail(img image.Image, width, height int, smartCrop bool) (CropResult, error) {
	if width <= 0 || height <= 0 {
		return CropResult{}, fmt.Errorf("invalid thumbnail size %dx%d", width, height)
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return CropResult{}, fmt.Errorf("invalid image dimensions")
	}
	if !c.config.AllowUpscaling && (width > bounds.Dx() || height > bounds.Dy()) {
		return CropResult{}, fmt.Errorf("target size (%dx%d) is larger than original (%dx%d) and upscaling is disabled",
			width, height, bounds.Dx(), bounds.Dy())
	}

	if !smartCrop {
		return CropResult{
			Image:  imaging.Fill(img, width, height, imaging.Center, c.filter()),
			Region: vision.Region{X: bounds.Min.X, Y: bounds.Min.Y, Width: bounds.Dx(), Height: bounds.Dy()},
		}, nil
	}

	region, err := c.detector.FindBestCropRegion(img, float64(width)/float64(height))
	if err != nil {
		return CropResult{}, fmt.Errorf("failed to find optimal crop region: %w", err)
	}

	return c.CropRegion(img, region.Rect(), width, height), nil
}

// CropRegion crops rect out of img and resizes it to exactly width x height
func (c *SmartCropper) CropRegion(img image.Image, rect image.Rectangle, width, height int) CropResult {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		rect = img.Bounds()
	}
	cropped := imaging.Crop(img, rect)
	return CropResult{
		Image:  imaging.Fill(cropped, width, height, imaging.Center, c.filter()),
		Region: vision.Region{X: rect.Min.X, Y: rect.Min.Y, Width: rect.Dx(), Height: rect.Dy()},
	}
}

func (c *SmartCropper) filter() imaging.ResampleFilter {
	if c.config.Filter.Support == 0 && c.config.Filter.Kernel == nil {
		return imaging.Lanczos
	}
	return c.config.Filter
}
