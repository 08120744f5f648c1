package detection

import (
	"fmt"
	"strings"

	"github.com/menta2k/vision-analyzer/pkg/types"
)

// featureSchema is the JSON fragment the model must fill for each feature
var featureSchema = map[types.Feature]string{
	types.FeatureDescription: `"description": {"captions": [{"text": "short neutral sentence", "confidence": 0.0}]}`,
	types.FeatureTags:        `"tags": [{"name": "lowercase word", "confidence": 0.0}]`,
	types.FeatureCategories: `"categories": [{"name": "category_", "score": 0.0,
    "detail": {"landmarks": [{"name": "string", "confidence": 0.0}], "celebrities": [{"name": "string", "confidence": 0.0}]}}]`,
	types.FeatureBrands:  `"brands": [{"name": "string", "confidence": 0.0, "rectangle": {"x": 0, "y": 0, "w": 0, "h": 0}}]`,
	types.FeatureObjects: `"objects": [{"object": "string", "confidence": 0.0, "rectangle": {"x": 0, "y": 0, "w": 0, "h": 0}}]`,
	types.FeatureAdult:   `"adult": {"isAdultContent": false, "isRacyContent": false, "isGoryContent": false}`,
}

// BuildPrompt returns the analysis prompt for the requested features
func BuildPrompt(features []types.Feature, width, height int) string {
	fields := make([]string, 0, len(features))
	for _, f := range features {
		if s, ok := featureSchema[f]; ok {
			fields = append(fields, "  "+s)
		}
	}

	var b strings.Builder
	b.WriteString("You are an image analysis service.\n\n")
	b.WriteString("Return JSON only, with exactly these fields:\n{\n")
	b.WriteString(strings.Join(fields, ",\n"))
	b.WriteString("\n}\n\nHARD RULES\n")
	b.WriteString("- Confidences and scores are probabilities in [0,1].\n")
	fmt.Fprintf(&b, "- Rectangles are in PIXELS of the %dx%d image: x,y is the top-left corner, w,h the size.\n", width, height)
	b.WriteString("- Use empty arrays when nothing is found. Omit \"detail\" when a category has no landmarks or celebrities.\n")
	b.WriteString("- Only name celebrities and landmarks you are confident about.\n")
	b.WriteString("- JSON only. No markdown, no code fences, no comments, no trailing commas.")
	return b.String()
}
