package types

// Feature names a category of analysis the vision service can return
type Feature string

const (
	FeatureDescription Feature = "Description"
	FeatureTags        Feature = "Tags"
	FeatureCategories  Feature = "Categories"
	FeatureBrands      Feature = "Brands"
	FeatureObjects     Feature = "Objects"
	FeatureAdult       Feature = "Adult"
)

// AllFeatures returns every feature the analyzer requests, in request order
func AllFeatures() []Feature {
	return []Feature{
		FeatureDescription,
		FeatureTags,
		FeatureCategories,
		FeatureBrands,
		FeatureObjects,
		FeatureAdult,
	}
}

// Rectangle is a pixel-space bounding box
type Rectangle struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Caption is one generated description of the whole image
type Caption struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Description holds the captions returned for the image
type Description struct {
	Tags     []string  `json:"tags,omitempty"`
	Captions []Caption `json:"captions"`
}

// Tag is a content label with its confidence
type Tag struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Landmark is a recognized landmark nested in a category
type Landmark struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Celebrity is a recognized celebrity nested in a category
type Celebrity struct {
	Name          string     `json:"name"`
	Confidence    float64    `json:"confidence"`
	FaceRectangle *Rectangle `json:"faceRectangle,omitempty"`
}

// CategoryDetail carries the category-specific extras
type CategoryDetail struct {
	Landmarks   []Landmark  `json:"landmarks,omitempty"`
	Celebrities []Celebrity `json:"celebrities,omitempty"`
}

// Category is a taxonomy category assigned to the image
type Category struct {
	Name   string          `json:"name"`
	Score  float64         `json:"score"`
	Detail *CategoryDetail `json:"detail,omitempty"`
}

// Brand is a detected commercial logo
type Brand struct {
	Name       string    `json:"name"`
	Confidence float64   `json:"confidence"`
	Rectangle  Rectangle `json:"rectangle"`
}

// DetectedObject is a located object with its label
type DetectedObject struct {
	Rectangle  Rectangle `json:"rectangle"`
	Object     string    `json:"object"`
	Confidence float64   `json:"confidence"`
}

// AdultInfo holds the content moderation ratings
type AdultInfo struct {
	IsAdultContent bool    `json:"isAdultContent"`
	IsRacyContent  bool    `json:"isRacyContent"`
	IsGoryContent  bool    `json:"isGoryContent"`
	AdultScore     float64 `json:"adultScore"`
	RacyScore      float64 `json:"racyScore"`
	GoreScore      float64 `json:"goreScore"`
}

// Metadata describes the image as seen by the service
type Metadata struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// AnalysisResult contains the complete analysis returned by the vision service
type AnalysisResult struct {
	Description Description      `json:"description"`
	Tags        []Tag            `json:"tags"`
	Categories  []Category       `json:"categories"`
	Brands      []Brand          `json:"brands"`
	Objects     []DetectedObject `json:"objects"`
	Adult       AdultInfo        `json:"adult"`
	Metadata    Metadata         `json:"metadata"`
	RequestID   string           `json:"requestId,omitempty"`
}
