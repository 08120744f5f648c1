package client

import (
	"context"

	"github.com/menta2k/vision-analyzer/pkg/types"
)

// VisionClient is an authenticated handle to a remote vision-analysis service
type VisionClient interface {
	// Analyze runs one analysis of image for the requested features
	Analyze(ctx context.Context, image []byte, features []types.Feature) (*types.AnalysisResult, error)
	// Thumbnail returns a PNG thumbnail of the requested size
	Thumbnail(ctx context.Context, width, height int, image []byte, smartCrop bool) ([]byte, error)
}
