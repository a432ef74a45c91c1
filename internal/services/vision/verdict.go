package vision

import (
	"encoding/json"
	"strings"
)

// Product categories the detection section may report. The vocabulary is
// fixed; anything else the model invents is kept verbatim but rolls up under
// its own label in statistics.
const (
	CategoryIQOS          = "IQOS"
	CategoryGlo           = "glo"
	CategoryPloom         = "Ploom"
	CategoryOtherHNB      = "Other_HNB"
	CategoryCigarette     = "Cigarette"
	CategoryVape          = "Vape"
	CategoryNicotinePouch = "Nicotine_Pouch"
	CategorySnus          = "Snus"
	CategoryOtherNicotine = "Other_Nicotine"
)

// Product is one detected nicotine product.
type Product struct {
	Category         string `json:"category"`
	SpecificBrand    string `json:"specific_brand,omitempty"`
	SpecificModel    string `json:"specific_model,omitempty"`
	ProductType      string `json:"product_type,omitempty"`
	QuantityVisible  string `json:"quantity_visible,omitempty"`
	VisualProminence string `json:"visual_prominence,omitempty"`
}

// Evidence cites what the model saw, by channel.
type Evidence struct {
	Visual   []string `json:"visual,omitempty"`
	Caption  []string `json:"caption,omitempty"`
	Comments []string `json:"comments,omitempty"`
	Hashtags []string `json:"hashtags,omitempty"`
}

// CoOccurrence flags what else shares the frame with a detection.
type CoOccurrence struct {
	FoodBeverage bool `json:"food_beverage"`
	Alcohol      bool `json:"alcohol"`
	OtherTobacco bool `json:"other_tobacco"`
}

// Detection is the verdict section the pipeline consumes directly. Detected
// is a pointer so a document that omits the field entirely is distinguishable
// from an explicit false; the decoder rejects the former.
type Detection struct {
	Detected     *bool        `json:"detected"`
	Confidence   string       `json:"confidence,omitempty"`
	Products     []Product    `json:"products,omitempty"`
	Evidence     Evidence     `json:"detection_evidence,omitzero"`
	UsageContext string       `json:"usage_context,omitempty"`
	UsageType    string       `json:"usage_type,omitempty"`
	CoOccurrence CoOccurrence `json:"co_occurrence,omitzero"`
}

// IsDetected reports the detection flag, false when absent.
func (d Detection) IsDetected() bool {
	return d.Detected != nil && *d.Detected
}

// Metadata is the verdict's self-assessment block.
type Metadata struct {
	PrimaryLanguage      string   `json:"primary_language,omitempty"`
	SecondaryLanguage    string   `json:"secondary_language,omitempty"`
	ImageCountAnalyzed   int      `json:"image_count_analyzed,omitempty"`
	CommentCountAnalyzed int      `json:"comment_count_analyzed,omitempty"`
	AnalysisConfidence   string   `json:"analysis_confidence,omitempty"`
	Ambiguities          []string `json:"ambiguities,omitempty"`
	AnalysisNotes        string   `json:"analysis_notes,omitempty"`
}

// Verdict is the structured document the endpoint returns for one post. The
// sections the pipeline reads are typed; the rest pass through untouched so
// the export keeps everything the model produced.
type Verdict struct {
	NicotineDetection Detection       `json:"nicotine_detection"`
	Sentiment         json.RawMessage `json:"sentiment,omitempty"`
	Competitive       json.RawMessage `json:"competitive_intelligence,omitempty"`
	ContentAnalysis   json.RawMessage `json:"content_analysis,omitempty"`
	AccountSignals    json.RawMessage `json:"account_signals,omitempty"`
	HashtagAnalysis   json.RawMessage `json:"hashtag_analysis,omitempty"`
	Metadata          Metadata        `json:"metadata,omitzero"`
}

// Categories returns the detected product categories, normalized and
// deduplicated, for statistics rollups.
func (v *Verdict) Categories() []string {
	if v == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(v.NicotineDetection.Products))
	categories := make([]string, 0, len(v.NicotineDetection.Products))
	for _, product := range v.NicotineDetection.Products {
		category := strings.TrimSpace(product.Category)
		if category == "" {
			continue
		}
		if _, ok := seen[category]; ok {
			continue
		}
		seen[category] = struct{}{}
		categories = append(categories, category)
	}
	return categories
}
