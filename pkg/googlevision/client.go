// Package googlevision maps Google Cloud Vision annotations onto the analysis
// model used by the report.
//
// Cloud Vision has no caption or category taxonomy, so the mapping is
// approximate: web best-guess labels become captions, confident labels become
// categories and landmarks hang off a synthetic "landmark" category.
// Celebrities are never reported.
package googlevision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/status"

	"github.com/menta2k/vision-analyzer/pkg/apperror"
	"github.com/menta2k/vision-analyzer/pkg/cropper"
	"github.com/menta2k/vision-analyzer/pkg/processing"
	"github.com/menta2k/vision-analyzer/pkg/types"
)

// CategoryThreshold is the minimum label score for a label to count as a category
const CategoryThreshold = 0.8

// LandmarkCategory is the category landmarks are attached to
const LandmarkCategory = "landmark"

const maxResults = 50

// Annotator is the subset of vision.ImageAnnotatorClient used here
type Annotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// Client runs analyses against Cloud Vision
type Client struct {
	annotator Annotator
	timeout   time.Duration
	cropper   *cropper.SmartCropper
	processor *processing.Processor
}

// NewClient dials Cloud Vision with API-key authentication
func NewClient(ctx context.Context, endpoint, key string, timeout time.Duration, opts ...option.ClientOption) (*Client, error) {
	if key == "" {
		return nil, apperror.Configuration("google vision client", fmt.Errorf("API key is empty"))
	}
	clientOpts := []option.ClientOption{option.WithAPIKey(key)}
	if ep := grpcEndpoint(endpoint); ep != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(ep))
	}
	clientOpts = append(clientOpts, opts...)

	annotator, err := vision.NewImageAnnotatorClient(ctx, clientOpts...)
	if err != nil {
		return nil, apperror.Service("google vision client", 0, fmt.Errorf("failed to create vision client: %w", err))
	}
	return NewWithAnnotator(annotator, timeout), nil
}

// NewWithAnnotator wraps an existing annotator
func NewWithAnnotator(annotator Annotator, timeout time.Duration) *Client {
	return &Client{
		annotator: annotator,
		timeout:   timeout,
		cropper:   cropper.New(),
		processor: processing.NewProcessor(),
	}
}

// Close releases the underlying connection
func (c *Client) Close() error {
	return c.annotator.Close()
}

// grpcEndpoint turns "https://vision.googleapis.com/" into "vision.googleapis.com:443"
func grpcEndpoint(endpoint string) string {
	ep := strings.TrimSpace(endpoint)
	ep = strings.TrimPrefix(ep, "https://")
	ep = strings.TrimPrefix(ep, "http://")
	ep = strings.TrimSuffix(ep, "/")
	if ep == "" {
		return ""
	}
	if !strings.Contains(ep, ":") {
		ep += ":443"
	}
	return ep
}

// Analyze maps the requested features onto Cloud Vision detections
func (c *Client) Analyze(ctx context.Context, img []byte, features []types.Feature) (*types.AnalysisResult, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, apperror.ImageProcessing("analyze image", fmt.Errorf("read image size: %w", err))
	}

	req := &visionpb.AnnotateImageRequest{
		Image:    &visionpb.Image{Content: img},
		Features: visionFeatures(features),
	}
	resp, err := c.annotate(ctx, "analyze image", req)
	if err != nil {
		return nil, err
	}

	result := &types.AnalysisResult{
		Metadata: types.Metadata{Width: cfg.Width, Height: cfg.Height},
	}
	for _, l := range resp.GetWebDetection().GetBestGuessLabels() {
		// Cloud Vision gives no confidence for best-guess labels
		result.Description.Captions = append(result.Description.Captions, types.Caption{Text: l.GetLabel(), Confidence: 1})
	}
	for _, l := range resp.GetLabelAnnotations() {
		name := strings.ToLower(l.GetDescription())
		result.Tags = append(result.Tags, types.Tag{Name: name, Confidence: float64(l.GetScore())})
		if l.GetScore() >= CategoryThreshold {
			result.Categories = append(result.Categories, types.Category{Name: name, Score: float64(l.GetScore())})
		}
	}
	if landmarks := resp.GetLandmarkAnnotations(); len(landmarks) > 0 {
		cat := types.Category{Name: LandmarkCategory, Detail: &types.CategoryDetail{}}
		for _, lm := range landmarks {
			score := float64(lm.GetScore())
			if score > cat.Score {
				cat.Score = score
			}
			cat.Detail.Landmarks = append(cat.Detail.Landmarks, types.Landmark{Name: lm.GetDescription(), Confidence: score})
		}
		result.Categories = append(result.Categories, cat)
	}
	for _, logo := range resp.GetLogoAnnotations() {
		result.Brands = append(result.Brands, types.Brand{
			Name:       logo.GetDescription(),
			Confidence: float64(logo.GetScore()),
			Rectangle:  pixelRect(logo.GetBoundingPoly(), cfg.Width, cfg.Height),
		})
	}
	for _, obj := range resp.GetLocalizedObjectAnnotations() {
		result.Objects = append(result.Objects, types.DetectedObject{
			Object:     obj.GetName(),
			Confidence: float64(obj.GetScore()),
			Rectangle:  pixelRect(obj.GetBoundingPoly(), cfg.Width, cfg.Height),
		})
	}
	if ss := resp.GetSafeSearchAnnotation(); ss != nil {
		result.Adult = types.AdultInfo{
			IsAdultContent: likely(ss.GetAdult()),
			IsRacyContent:  likely(ss.GetRacy()),
			IsGoryContent:  likely(ss.GetViolence()),
		}
	}
	return result, nil
}

// Thumbnail crops to the Cloud Vision crop hint and resizes locally
func (c *Client) Thumbnail(ctx context.Context, width, height int, img []byte, smartCrop bool) ([]byte, error) {
	src, err := c.processor.DecodeImage(img)
	if err != nil {
		return nil, apperror.ImageProcessing("generate thumbnail", err)
	}

	var result cropper.CropResult
	hint, err := c.cropHint(ctx, img, width, height, smartCrop)
	if err != nil {
		return nil, err
	}
	if hint.Empty() {
		result, err = c.cropper.Thumbnail(src, width, height, smartCrop)
		if err != nil {
			return nil, apperror.ImageProcessing("generate thumbnail", err)
		}
	} else {
		result = c.cropper.CropRegion(src, hint.Add(src.Bounds().Min), width, height)
	}

	data, err := c.processor.EncodePNG(result.Image)
	if err != nil {
		return nil, apperror.ImageProcessing("encode thumbnail", err)
	}
	return data, nil
}

// cropHint asks for a crop hint of the target aspect ratio; an empty
// rectangle means no usable hint
func (c *Client) cropHint(ctx context.Context, img []byte, width, height int, smartCrop bool) (image.Rectangle, error) {
	if !smartCrop || width <= 0 || height <= 0 {
		return image.Rectangle{}, nil
	}
	req := &visionpb.AnnotateImageRequest{
		Image:    &visionpb.Image{Content: img},
		Features: []*visionpb.Feature{{Type: visionpb.Feature_CROP_HINTS}},
		ImageContext: &visionpb.ImageContext{
			CropHintsParams: &visionpb.CropHintsParams{AspectRatios: []float32{float32(width) / float32(height)}},
		},
	}
	resp, err := c.annotate(ctx, "generate thumbnail", req)
	if err != nil {
		return image.Rectangle{}, err
	}
	hints := resp.GetCropHintsAnnotation().GetCropHints()
	if len(hints) == 0 {
		return image.Rectangle{}, nil
	}
	return polyBounds(hints[0].GetBoundingPoly().GetVertices()), nil
}

func (c *Client) annotate(ctx context.Context, op string, req *visionpb.AnnotateImageRequest) (*visionpb.AnnotateImageResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	batch, err := c.annotator.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{req},
	})
	if err != nil {
		code := 0
		if s, ok := status.FromError(err); ok {
			code = int(s.Code())
		}
		return nil, apperror.Service(op, code, fmt.Errorf("cloud vision: %w", err))
	}
	if len(batch.GetResponses()) == 0 {
		return nil, apperror.Service(op, 0, fmt.Errorf("cloud vision returned no response"))
	}
	resp := batch.GetResponses()[0]
	if e := resp.GetError(); e != nil && e.GetCode() != 0 {
		return nil, apperror.Service(op, int(e.GetCode()), fmt.Errorf("cloud vision: %s", e.GetMessage()))
	}
	return resp, nil
}

func visionFeatures(features []types.Feature) []*visionpb.Feature {
	var out []*visionpb.Feature
	add := func(t visionpb.Feature_Type) {
		out = append(out, &visionpb.Feature{Type: t, MaxResults: maxResults})
	}
	for _, f := range features {
		switch f {
		case types.FeatureDescription:
			add(visionpb.Feature_WEB_DETECTION)
		case types.FeatureTags:
			add(visionpb.Feature_LABEL_DETECTION)
		case types.FeatureCategories:
			add(visionpb.Feature_LANDMARK_DETECTION)
		case types.FeatureBrands:
			add(visionpb.Feature_LOGO_DETECTION)
		case types.FeatureObjects:
			add(visionpb.Feature_OBJECT_LOCALIZATION)
		case types.FeatureAdult:
			add(visionpb.Feature_SAFE_SEARCH_DETECTION)
		}
	}
	return out
}

func likely(l visionpb.Likelihood) bool {
	return l >= visionpb.Likelihood_LIKELY
}

// pixelRect converts a bounding poly to a pixel rectangle, using the
// normalized vertices when the absolute ones are absent
func pixelRect(poly *visionpb.BoundingPoly, width, height int) types.Rectangle {
	r := polyBounds(poly.GetVertices())
	if r.Empty() {
		nv := poly.GetNormalizedVertices()
		if len(nv) == 0 {
			return types.Rectangle{}
		}
		minX, minY := float32(1), float32(1)
		maxX, maxY := float32(0), float32(0)
		for _, v := range nv {
			minX, maxX = min(minX, v.GetX()), max(maxX, v.GetX())
			minY, maxY = min(minY, v.GetY()), max(maxY, v.GetY())
		}
		r = image.Rect(
			int(minX*float32(width)+0.5), int(minY*float32(height)+0.5),
			int(maxX*float32(width)+0.5), int(maxY*float32(height)+0.5),
		)
	}
	return types.Rectangle{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

func polyBounds(vertices []*visionpb.Vertex) image.Rectangle {
	if len(vertices) == 0 {
		return image.Rectangle{}
	}
	minX, minY := vertices[0].GetX(), vertices[0].GetY()
	maxX, maxY := minX, minY
	for _, v := range vertices[1:] {
		minX, maxX = min(minX, v.GetX()), max(maxX, v.GetX())
		minY, maxY = min(minY, v.GetY()), max(maxY, v.GetY())
	}
	return image.Rect(int(minX), int(minY), int(maxX), int(maxY))
}
