package processing

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/vision-analyzer/internal/utils"
	"github.com/menta2k/vision-analyzer/pkg/types"
)

// Annotation style for detected objects
var (
	BoxColor   = color.NRGBA{0, 255, 255, 255} // cyan
	LabelColor = color.NRGBA{0, 0, 0, 255}
)

// BoxStroke is the outline width in pixels
const BoxStroke = 3

// Processor handles image processing operations
type Processor struct {
	quality int
	face    font.Face
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{
		quality: 90,
		face:    inconsolata.Regular8x16,
	}
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	// Try imaging.Open (registered decoders)
	img, err := imaging.Open(path)
	if err == nil {
		return img, nil
	}

	// Fallback: explicit WebP decode
	low := strings.ToLower(path)
	if strings.HasSuffix(low, ".webp") {
		f, ferr := os.Open(path)
		if ferr != nil {
			return nil, ferr
		}
		defer f.Close()
		if wimg, werr := webp.Decode(f); werr == nil {
			return wimg, nil
		}
	}
	return nil, fmt.Errorf("decode %s: %w", path, err)
}

// DecodeImage decodes an image from byte data with WebP support
func (p *Processor) DecodeImage(data []byte) (image.Image, error) {
	if img, err := imaging.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// SaveImage saves an image, choosing the encoder from the file extension
func (p *Processor) SaveImage(img image.Image, path string) error {
	switch utils.GetFileExtension(path) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := webp.Encode(f, img, &webp.Options{Quality: float32(p.quality)}); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg, other registered formats
		return imaging.Save(img, path, imaging.JPEGQuality(p.quality))
	}
}

// EncodePNG encodes img as PNG
func (p *Processor) EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DrawObjects returns a copy of img with a box and label drawn for every object
func (p *Processor) DrawObjects(img image.Image, objects []types.DetectedObject) *image.NRGBA {
	nrgba := imaging.Clone(img)
	for _, obj := range objects {
		drawRect(nrgba, obj.Rectangle, BoxColor, BoxStroke)
		p.drawLabel(nrgba, obj.Object, obj.Rectangle.X, obj.Rectangle.Y)
	}
	return nrgba
}

// drawLabel writes text with its top-left corner at x, y
func (p *Processor) drawLabel(img *image.NRGBA, text string, x, y int) {
	if text == "" {
		return
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(LabelColor),
		Face: p.face,
		Dot:  fixed.P(x, y+p.face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}

// drawRect strokes r inward so the outline stays within the rectangle
func drawRect(img *image.NRGBA, r types.Rectangle, c color.NRGBA, stroke int) {
	x0, y0 := r.X, r.Y
	x1, y1 := r.X+r.W, r.Y+r.H
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
