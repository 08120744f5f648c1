// Package thumbnail requests a smart-cropped thumbnail and saves it.
package thumbnail

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/menta2k/vision-analyzer/internal/utils"
	"github.com/menta2k/vision-analyzer/pkg/apperror"
	"github.com/menta2k/vision-analyzer/pkg/client"
)

// Default thumbnail size
const (
	DefaultWidth  = 100
	DefaultHeight = 100
)

// Generator produces thumbnails through a vision client
type Generator struct {
	client client.VisionClient
	width  int
	height int
	logger *log.Logger
}

// New creates a Generator for DefaultWidth x DefaultHeight thumbnails
func New(c client.VisionClient, logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Generator{client: c, width: DefaultWidth, height: DefaultHeight, logger: logger}
}

// Generate writes a smart-cropped thumbnail of imagePath to outputPath,
// overwriting any existing file.
func (g *Generator) Generate(ctx context.Context, imagePath, outputPath string) error {
	g.logger.Println("Generating thumbnail")

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return apperror.IO("read image", err)
	}

	thumb, err := g.client.Thumbnail(ctx, g.width, g.height, data, true)
	if err != nil {
		return err
	}

	if err := utils.WriteFile(outputPath, thumb); err != nil {
		return apperror.IO("write thumbnail", err)
	}

	g.logger.Printf("Thumbnail saved in %s", outputPath)
	return nil
}
