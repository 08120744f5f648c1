// Package detection turns free-form vision model output into an analysis
// result. It is shared by the backends that prompt a local model.
package detection

import (
	"encoding/json"
	"fmt"
	"image"
	"regexp"
	"strings"

	"github.com/menta2k/vision-analyzer/pkg/types"
)

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseResult decodes a model reply into an AnalysisResult. Replies that are
// not JSON are an error; there is no fallback result.
func ParseResult(raw string) (*types.AnalysisResult, error) {
	raw = sanitizeModelJSON(raw)

	if !strings.HasPrefix(raw, "{") {
		return nil, fmt.Errorf("model returned non-JSON response")
	}

	var result types.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}

	return &result, nil
}

// sanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

// Normalize cleans up a model-produced result for a width x height image:
// confidences are clamped to [0,1], tags are lowercased and deduplicated,
// rectangles are clipped to the image and objects left without area are
// dropped. Missing metadata is filled from the image size.
func Normalize(result *types.AnalysisResult, width, height int) {
	bounds := image.Rect(0, 0, width, height)

	for i := range result.Description.Captions {
		c := &result.Description.Captions[i]
		c.Text = strings.TrimSpace(c.Text)
		c.Confidence = clamp(c.Confidence, 0, 1)
	}

	result.Tags = normalizeTags(result.Tags)

	for i := range result.Categories {
		cat := &result.Categories[i]
		cat.Score = clamp(cat.Score, 0, 1)
		if cat.Detail == nil {
			continue
		}
		for j := range cat.Detail.Landmarks {
			cat.Detail.Landmarks[j].Confidence = clamp(cat.Detail.Landmarks[j].Confidence, 0, 1)
		}
		for j := range cat.Detail.Celebrities {
			cat.Detail.Celebrities[j].Confidence = clamp(cat.Detail.Celebrities[j].Confidence, 0, 1)
		}
	}

	for i := range result.Brands {
		b := &result.Brands[i]
		b.Confidence = clamp(b.Confidence, 0, 1)
		b.Rectangle = clipRect(b.Rectangle, bounds)
	}

	objects := result.Objects[:0]
	for _, obj := range result.Objects {
		obj.Rectangle = clipRect(obj.Rectangle, bounds)
		if obj.Rectangle.W == 0 || obj.Rectangle.H == 0 {
			continue
		}
		obj.Confidence = clamp(obj.Confidence, 0, 1)
		objects = append(objects, obj)
	}
	result.Objects = objects

	if result.Metadata.Width == 0 || result.Metadata.Height == 0 {
		result.Metadata.Width, result.Metadata.Height = width, height
	}
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clipRect(r types.Rectangle, bounds image.Rectangle) types.Rectangle {
	c := image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H).Intersect(bounds)
	if c.Empty() {
		return types.Rectangle{}
	}
	return types.Rectangle{X: c.Min.X, Y: c.Min.Y, W: c.Dx(), H: c.Dy()}
}

// normalizeTags lowercases and trims tags, dropping empty and repeated names.
// The first confidence seen for a name wins.
func normalizeTags(tags []types.Tag) []types.Tag {
	seen := map[string]struct{}{}
	out := make([]types.Tag, 0, len(tags))
	for _, t := range tags {
		name := strings.ToLower(strings.TrimSpace(t.Name))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, types.Tag{Name: name, Confidence: clamp(t.Confidence, 0, 1)})
	}
	return out
}
