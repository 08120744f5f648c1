// Package visionanalyzer analyzes an image with a remote vision service.
//
// A run loads the settings, constructs one vision client and then, in order:
//
//   - writes a text report of captions, tags, categories, landmarks,
//     celebrities, brands, objects and moderation ratings
//   - copies the image into one folder per detected category
//   - saves a copy of the image with the detected objects outlined
//   - saves a 100x100 smart-cropped thumbnail
//
// Basic usage:
//
//	err := visionanalyzer.Run(ctx, visionanalyzer.Options{
//		SettingsPath: "appsettings.json",
//		ImagePath:    "image/building.jpg",
//		Logger:       log.New(os.Stdout, "", 0),
//	})
//
// The backend is chosen by the VisionBackend setting: azure (Computer Vision
// REST API, the default), google (Cloud Vision), or a local vision model
// prompted for JSON through ollama or llamacpp.
package visionanalyzer

import (
	"context"
	"io"
	"log"

	"github.com/menta2k/vision-analyzer/internal/config"
	"github.com/menta2k/vision-analyzer/internal/utils"
	"github.com/menta2k/vision-analyzer/pkg/analyzer"
	"github.com/menta2k/vision-analyzer/pkg/apperror"
	"github.com/menta2k/vision-analyzer/pkg/azure"
	"github.com/menta2k/vision-analyzer/pkg/client"
	"github.com/menta2k/vision-analyzer/pkg/googlevision"
	"github.com/menta2k/vision-analyzer/pkg/llamacpp"
	"github.com/menta2k/vision-analyzer/pkg/ollama"
	"github.com/menta2k/vision-analyzer/pkg/thumbnail"
)

// Version of the vision analyzer
const Version = "1.0.0"

// DefaultImage is analyzed when no image path is given
const DefaultImage = "image/building.jpg"

// ClientFactory builds the vision client for a validated configuration
type ClientFactory func(ctx context.Context, cfg *config.Config) (client.VisionClient, error)

// Options controls a single run
type Options struct {
	// SettingsPath defaults to appsettings.json in the working directory
	SettingsPath string
	// ImagePath defaults to DefaultImage
	ImagePath string
	Logger    *log.Logger
	// NewClient defaults to NewClient
	NewClient ClientFactory
}

// Run loads the settings, analyzes the image and generates its thumbnail.
// The thumbnail is not attempted when the analysis fails.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	imagePath := opts.ImagePath
	if imagePath == "" {
		imagePath = DefaultImage
	}
	newClient := opts.NewClient
	if newClient == nil {
		newClient = NewClient
	}

	cfg, err := config.Load(opts.SettingsPath)
	if err != nil {
		return err
	}

	c, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	if closer, ok := c.(io.Closer); ok {
		defer closer.Close()
	}

	if err := utils.EnsureDir(cfg.OutputDir); err != nil {
		return apperror.IO("create output directory", err)
	}

	a := analyzer.New(c, analyzer.Config{
		OutputDir:   cfg.OutputDir,
		ObjectsPath: cfg.ObjectsPath(),
	}, logger)
	if err := a.AnalyzeImage(ctx, imagePath, cfg.ReportPath()); err != nil {
		return err
	}

	return thumbnail.New(c, logger).Generate(ctx, imagePath, cfg.ThumbnailPath())
}

// NewClient creates the client for cfg.Backend
func NewClient(ctx context.Context, cfg *config.Config) (client.VisionClient, error) {
	switch cfg.Backend {
	case config.BackendGoogle:
		c, err := googlevision.NewClient(ctx, cfg.Endpoint, cfg.Key, cfg.RequestTimeout())
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendOllama:
		c, err := ollama.NewClient(cfg.Endpoint, cfg.Key, cfg.OllamaModel, cfg.RequestTimeout())
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendLlamaCpp:
		c, err := llamacpp.NewClient(cfg.Endpoint, cfg.Key, cfg.OllamaModel, cfg.RequestTimeout())
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		c, err := azure.NewClient(cfg.Endpoint, cfg.Key, azure.WithTimeout(cfg.RequestTimeout()))
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
