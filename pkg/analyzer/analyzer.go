// Package analyzer runs one image analysis and writes the text report.
//
// Besides the report, an analysis files a copy of the image into a folder
// per detected category and saves a copy annotated with the detected objects.
package analyzer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/menta2k/vision-analyzer/pkg/apperror"
	"github.com/menta2k/vision-analyzer/pkg/client"
	"github.com/menta2k/vision-analyzer/pkg/processing"
	"github.com/menta2k/vision-analyzer/pkg/sorter"
	"github.com/menta2k/vision-analyzer/pkg/types"
)

// Config holds configuration for the image analyzer
type Config struct {
	// OutputDir is where category folders are created
	OutputDir string
	// ObjectsPath is where the annotated image is saved
	ObjectsPath string
}

// ImageAnalyzer writes analysis reports for images
type ImageAnalyzer struct {
	client    client.VisionClient
	config    Config
	sorter    *sorter.Sorter
	processor *processing.Processor
	logger    *log.Logger
}

// New creates an ImageAnalyzer. A nil logger discards progress output.
func New(c client.VisionClient, config Config, logger *log.Logger) *ImageAnalyzer {
	if config.ObjectsPath == "" {
		config.ObjectsPath = "objects.jpg"
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &ImageAnalyzer{
		client:    c,
		config:    config,
		sorter:    sorter.New(config.OutputDir),
		processor: processing.NewProcessor(),
		logger:    logger,
	}
}

// AnalyzeImage analyzes imagePath and writes the report to reportPath,
// truncating any previous report.
func (a *ImageAnalyzer) AnalyzeImage(ctx context.Context, imagePath, reportPath string) error {
	a.logger.Printf("Analyzing %s", imagePath)

	f, err := os.Create(reportPath)
	if err != nil {
		return apperror.IO("create report", err)
	}
	defer f.Close()

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return apperror.IO("read image", err)
	}

	analysis, err := a.client.Analyze(ctx, data, types.AllFeatures())
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	if err := a.writeReport(w, imagePath, analysis); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return apperror.IO("write report", err)
	}
	if err := f.Close(); err != nil {
		return apperror.IO("close report", err)
	}
	return nil
}

// writeReport writes the report sections in their fixed order. Write errors
// are sticky in w and surface on Flush.
func (a *ImageAnalyzer) writeReport(w *bufio.Writer, imagePath string, analysis *types.AnalysisResult) error {
	for _, caption := range analysis.Description.Captions {
		fmt.Fprintf(w, "Description: %s (confidence: %s)\n", caption.Text, Percent(caption.Confidence))
	}

	if len(analysis.Tags) > 0 {
		fmt.Fprintln(w, "Tags:")
		for _, tag := range analysis.Tags {
			writeItem(w, tag.Name, tag.Confidence)
		}
	}

	landmarks := newNameSet()
	celebrities := newNameSet()
	fmt.Fprintln(w, "Categories:")
	for _, category := range analysis.Categories {
		writeItem(w, category.Name, category.Score)
		if err := a.sorter.AddImageToFolder(imagePath, category.Name); err != nil {
			return err
		}
		if category.Detail == nil {
			continue
		}
		for _, lm := range category.Detail.Landmarks {
			landmarks.add(lm.Name, lm.Confidence)
		}
		for _, c := range category.Detail.Celebrities {
			celebrities.add(c.Name, c.Confidence)
		}
	}
	landmarks.write(w, "Landmarks:")
	celebrities.write(w, "Celebrities:")

	if len(analysis.Brands) > 0 {
		fmt.Fprintln(w, "Brands:")
		for _, brand := range analysis.Brands {
			writeItem(w, brand.Name, brand.Confidence)
		}
	}

	if len(analysis.Objects) > 0 {
		fmt.Fprintln(w, "Objects in image:")
		for _, obj := range analysis.Objects {
			writeItem(w, obj.Object, obj.Confidence)
		}
		if err := a.saveObjects(imagePath, analysis.Objects); err != nil {
			return err
		}
		fmt.Fprintf(w, "  Results saved in %s\n", a.config.ObjectsPath)
	}

	fmt.Fprintln(w, "Ratings:")
	fmt.Fprintf(w, " -Adult: %s\n", FormatBool(analysis.Adult.IsAdultContent))
	fmt.Fprintf(w, " -Racy: %s\n", FormatBool(analysis.Adult.IsRacyContent))
	fmt.Fprintf(w, " -Gore: %s\n", FormatBool(analysis.Adult.IsGoryContent))
	return nil
}

func (a *ImageAnalyzer) saveObjects(imagePath string, objects []types.DetectedObject) error {
	img, err := a.processor.LoadImage(imagePath)
	if err != nil {
		return apperror.ImageProcessing("load image for annotation", err)
	}
	annotated := a.processor.DrawObjects(img, objects)
	if err := a.processor.SaveImage(annotated, a.config.ObjectsPath); err != nil {
		return apperror.ImageProcessing("save annotated image", err)
	}
	return nil
}

func writeItem(w io.Writer, name string, confidence float64) {
	fmt.Fprintf(w, " -%s (confidence: %s)\n", name, Percent(confidence))
}

// Percent formats a 0..1 confidence as "87.30 %"
func Percent(v float64) string {
	return fmt.Sprintf("%.2f %%", v*100)
}

// FormatBool renders a rating flag as True or False
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// nameSet keeps the first confidence seen for each name, in insertion order
type nameSet struct {
	seen  map[string]struct{}
	items []namedScore
}

type namedScore struct {
	name       string
	confidence float64
}

func newNameSet() *nameSet {
	return &nameSet{seen: make(map[string]struct{})}
}

func (s *nameSet) add(name string, confidence float64) {
	if _, ok := s.seen[name]; ok {
		return
	}
	s.seen[name] = struct{}{}
	s.items = append(s.items, namedScore{name: name, confidence: confidence})
}

func (s *nameSet) write(w io.Writer, header string) {
	if len(s.items) == 0 {
		return
	}
	fmt.Fprintln(w, header)
	for _, item := range s.items {
		writeItem(w, item.name, item.confidence)
	}
}
