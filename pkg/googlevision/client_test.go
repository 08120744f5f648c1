package googlevision

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/google/go-cmp/cmp"
	gax "github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/require"
	statuspb "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/menta2k/vision-analyzer/pkg/apperror"
	"github.com/menta2k/vision-analyzer/pkg/types"
)

type fakeAnnotator struct {
	reqs   []*visionpb.BatchAnnotateImagesRequest
	resp   *visionpb.AnnotateImageResponse
	err    error
	closed bool
}

func (f *fakeAnnotator) BatchAnnotateImages(_ context.Context, req *visionpb.BatchAnnotateImagesRequest, _ ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &visionpb.BatchAnnotateImagesResponse{Responses: []*visionpb.AnnotateImageResponse{f.resp}}, nil
}

func (f *fakeAnnotator) Close() error {
	f.closed = true
	return nil
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), 60, uint8(y), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAnalyzeMapping(t *testing.T) {
	fake := &fakeAnnotator{resp: &visionpb.AnnotateImageResponse{
		WebDetection: &visionpb.WebDetection{
			BestGuessLabels: []*visionpb.WebDetection_WebLabel{{Label: "eiffel tower"}},
		},
		LabelAnnotations: []*visionpb.EntityAnnotation{
			{Description: "Tower", Score: 0.95},
			{Description: "Sky", Score: 0.5},
		},
		LandmarkAnnotations: []*visionpb.EntityAnnotation{
			{Description: "Eiffel Tower", Score: 0.9},
		},
		LogoAnnotations: []*visionpb.EntityAnnotation{{
			Description: "Contoso",
			Score:       0.7,
			BoundingPoly: &visionpb.BoundingPoly{Vertices: []*visionpb.Vertex{
				{X: 5, Y: 6}, {X: 25, Y: 6}, {X: 25, Y: 16}, {X: 5, Y: 16},
			}},
		}},
		LocalizedObjectAnnotations: []*visionpb.LocalizedObjectAnnotation{{
			Name:  "Dog",
			Score: 0.8,
			BoundingPoly: &visionpb.BoundingPoly{NormalizedVertices: []*visionpb.NormalizedVertex{
				{X: 0.1, Y: 0.25}, {X: 0.6, Y: 0.25}, {X: 0.6, Y: 0.75}, {X: 0.1, Y: 0.75},
			}},
		}},
		SafeSearchAnnotation: &visionpb.SafeSearchAnnotation{
			Adult:    visionpb.Likelihood_VERY_UNLIKELY,
			Racy:     visionpb.Likelihood_LIKELY,
			Violence: visionpb.Likelihood_POSSIBLE,
		},
	}}

	c := NewWithAnnotator(fake, 0)
	result, err := c.Analyze(context.Background(), testPNG(t, 100, 40), types.AllFeatures())
	require.NoError(t, err)

	require.Len(t, fake.reqs, 1)
	var gotTypes []visionpb.Feature_Type
	for _, f := range fake.reqs[0].GetRequests()[0].GetFeatures() {
		gotTypes = append(gotTypes, f.GetType())
	}
	require.Equal(t, []visionpb.Feature_Type{
		visionpb.Feature_WEB_DETECTION,
		visionpb.Feature_LABEL_DETECTION,
		visionpb.Feature_LANDMARK_DETECTION,
		visionpb.Feature_LOGO_DETECTION,
		visionpb.Feature_OBJECT_LOCALIZATION,
		visionpb.Feature_SAFE_SEARCH_DETECTION,
	}, gotTypes)

	want := &types.AnalysisResult{
		Description: types.Description{Captions: []types.Caption{{Text: "eiffel tower", Confidence: 1}}},
		Tags: []types.Tag{
			{Name: "tower", Confidence: float64(float32(0.95))},
			{Name: "sky", Confidence: float64(float32(0.5))},
		},
		Categories: []types.Category{
			{Name: "tower", Score: float64(float32(0.95))},
			{Name: LandmarkCategory, Score: float64(float32(0.9)), Detail: &types.CategoryDetail{
				Landmarks: []types.Landmark{{Name: "Eiffel Tower", Confidence: float64(float32(0.9))}},
			}},
		},
		Brands:   []types.Brand{{Name: "Contoso", Confidence: float64(float32(0.7)), Rectangle: types.Rectangle{X: 5, Y: 6, W: 20, H: 10}}},
		Objects:  []types.DetectedObject{{Object: "Dog", Confidence: float64(float32(0.8)), Rectangle: types.Rectangle{X: 10, Y: 10, W: 50, H: 20}}},
		Adult:    types.AdultInfo{IsRacyContent: true},
		Metadata: types.Metadata{Width: 100, Height: 40},
	}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("Analyze mapping mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyzeRPCError(t *testing.T) {
	fake := &fakeAnnotator{err: status.Error(codes.PermissionDenied, "API key not valid")}
	c := NewWithAnnotator(fake, 0)

	_, err := c.Analyze(context.Background(), testPNG(t, 10, 10), types.AllFeatures())
	require.Error(t, err)
	require.True(t, apperror.Is(err, apperror.KindService))
	require.Equal(t, int(codes.PermissionDenied), apperror.StatusCode(err))
	require.Contains(t, err.Error(), "API key not valid")
}

func TestAnalyzeResponseError(t *testing.T) {
	fake := &fakeAnnotator{resp: &visionpb.AnnotateImageResponse{
		Error: &statuspb.Status{Code: int32(codes.InvalidArgument), Message: "Bad image data."},
	}}
	c := NewWithAnnotator(fake, 0)

	_, err := c.Analyze(context.Background(), testPNG(t, 10, 10), types.AllFeatures())
	require.True(t, apperror.Is(err, apperror.KindService))
	require.Contains(t, err.Error(), "Bad image data.")
}

func TestAnalyzeUndecodableImage(t *testing.T) {
	fake := &fakeAnnotator{}
	c := NewWithAnnotator(fake, 0)

	_, err := c.Analyze(context.Background(), []byte("nope"), types.AllFeatures())
	require.True(t, apperror.Is(err, apperror.KindImageProcessing))
	require.Empty(t, fake.reqs)
}

func TestThumbnailUsesCropHint(t *testing.T) {
	fake := &fakeAnnotator{resp: &visionpb.AnnotateImageResponse{
		CropHintsAnnotation: &visionpb.CropHintsAnnotation{CropHints: []*visionpb.CropHint{{
			BoundingPoly: &visionpb.BoundingPoly{Vertices: []*visionpb.Vertex{
				{X: 100, Y: 0}, {X: 199, Y: 0}, {X: 199, Y: 99}, {X: 100, Y: 99},
			}},
		}}},
	}}
	c := NewWithAnnotator(fake, 0)

	data, err := c.Thumbnail(context.Background(), 50, 50, testPNG(t, 200, 100), true)
	require.NoError(t, err)

	req := fake.reqs[0].GetRequests()[0]
	require.Equal(t, visionpb.Feature_CROP_HINTS, req.GetFeatures()[0].GetType())
	require.Equal(t, []float32{1}, req.GetImageContext().GetCropHintsParams().GetAspectRatios())

	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, "png", format)
	require.Equal(t, image.Pt(50, 50), img.Bounds().Size())
}

func TestThumbnailWithoutHintFallsBack(t *testing.T) {
	fake := &fakeAnnotator{resp: &visionpb.AnnotateImageResponse{}}
	c := NewWithAnnotator(fake, 0)

	data, err := c.Thumbnail(context.Background(), 30, 20, testPNG(t, 90, 90), true)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, image.Pt(30, 20), img.Bounds().Size())
}

func TestThumbnailNoSmartCropSkipsService(t *testing.T) {
	fake := &fakeAnnotator{}
	c := NewWithAnnotator(fake, 0)

	_, err := c.Thumbnail(context.Background(), 10, 10, testPNG(t, 40, 40), false)
	require.NoError(t, err)
	require.Empty(t, fake.reqs)
}

func TestClose(t *testing.T) {
	fake := &fakeAnnotator{}
	require.NoError(t, NewWithAnnotator(fake, 0).Close())
	require.True(t, fake.closed)
}

func TestGRPCEndpoint(t *testing.T) {
	require.Equal(t, "vision.googleapis.com:443", grpcEndpoint("https://vision.googleapis.com/"))
	require.Equal(t, "localhost:8080", grpcEndpoint("localhost:8080"))
	require.Equal(t, "", grpcEndpoint("  "))
}
