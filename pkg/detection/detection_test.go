package detection

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/vision-analyzer/pkg/types"
)

func TestSanitizeModelJSON(t *testing.T) {
	raw := "```json\n{\n  // comment\n  \"a\": [1, 2,],\n  /* block */ \"b\": {\"c\": 1,}\n}\n```"
	got := sanitizeModelJSON(raw)

	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &v), got)
	require.Len(t, v["a"], 2)
}

func TestParseResult(t *testing.T) {
	result, err := ParseResult("Sure! Here it is:\n" + `{"tags": [{"name": "Dog", "confidence": 0.9}], "adult": {"isGoryContent": true}}`)
	require.NoError(t, err)
	require.Equal(t, []types.Tag{{Name: "Dog", Confidence: 0.9}}, result.Tags)
	require.True(t, result.Adult.IsGoryContent)

	_, err = ParseResult("I cannot see any image.")
	require.Error(t, err)

	_, err = ParseResult(`{"tags": "not a list"}`)
	require.Error(t, err)
}

func TestNormalize(t *testing.T) {
	result := &types.AnalysisResult{
		Description: types.Description{Captions: []types.Caption{{Text: " a dog ", Confidence: 1.4}}},
		Tags: []types.Tag{
			{Name: " Dog", Confidence: 0.9},
			{Name: "dog", Confidence: 0.2},
			{Name: "", Confidence: 0.5},
			{Name: "Grass", Confidence: -1},
		},
		Categories: []types.Category{{Name: "animal_dog", Score: 2, Detail: &types.CategoryDetail{
			Landmarks: []types.Landmark{{Name: "Park", Confidence: 3}},
		}}},
		Brands: []types.Brand{{Name: "Acme", Confidence: 0.5, Rectangle: types.Rectangle{X: -5, Y: -5, W: 20, H: 20}}},
		Objects: []types.DetectedObject{
			{Object: "Dog", Confidence: 0.8, Rectangle: types.Rectangle{X: 90, Y: 40, W: 30, H: 30}},
			{Object: "Ghost", Confidence: 0.8, Rectangle: types.Rectangle{X: 200, Y: 200, W: 10, H: 10}},
			{Object: "Line", Confidence: 0.8, Rectangle: types.Rectangle{X: 5, Y: 5, W: 0, H: 10}},
		},
	}

	Normalize(result, 100, 60)

	want := &types.AnalysisResult{
		Description: types.Description{Captions: []types.Caption{{Text: "a dog", Confidence: 1}}},
		Tags: []types.Tag{
			{Name: "dog", Confidence: 0.9},
			{Name: "grass", Confidence: 0},
		},
		Categories: []types.Category{{Name: "animal_dog", Score: 1, Detail: &types.CategoryDetail{
			Landmarks: []types.Landmark{{Name: "Park", Confidence: 1}},
		}}},
		Brands: []types.Brand{{Name: "Acme", Confidence: 0.5, Rectangle: types.Rectangle{X: 0, Y: 0, W: 15, H: 15}}},
		Objects: []types.DetectedObject{
			{Object: "Dog", Confidence: 0.8, Rectangle: types.Rectangle{X: 90, Y: 40, W: 10, H: 20}},
		},
		Metadata: types.Metadata{Width: 100, Height: 60},
	}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeKeepsReportedMetadata(t *testing.T) {
	result := &types.AnalysisResult{Metadata: types.Metadata{Width: 10, Height: 20, Format: "Png"}}
	Normalize(result, 100, 60)
	require.Equal(t, types.Metadata{Width: 10, Height: 20, Format: "Png"}, result.Metadata)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt([]types.Feature{types.FeatureTags, types.FeatureObjects}, 640, 480)
	require.Contains(t, prompt, `"tags"`)
	require.Contains(t, prompt, `"objects"`)
	require.NotContains(t, prompt, `"brands"`)
	require.Contains(t, prompt, "640x480")
	require.False(t, strings.HasPrefix(prompt, "{"))
}
