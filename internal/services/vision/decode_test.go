package vision

import (
	"encoding/json"
	"errors"
	"testing"

	"optic/internal/services"
)

const verdictDoc = `{
  "nicotine_detection": {
    "detected": true,
    "confidence": "high",
    "products": [{"category": "IQOS", "specific_brand": "Terea Turquoise", "product_type": "Consumable"}],
    "detection_evidence": {"visual": ["TEREA text visible on pack"]}
  },
  "sentiment": {"overall": "positive"},
  "metadata": {"primary_language": "georgian", "analysis_confidence": "high"}
}`

func TestDecodeVerdictWrappedVariantsMatchBare(t *testing.T) {
	bare, err := DecodeVerdict(verdictDoc)
	if err != nil {
		t.Fatalf("bare document must decode: %v", err)
	}

	wrapped := map[string]string{
		"fenced":       "```json\n" + verdictDoc + "\n```",
		"fencedNoTag":  "```\n" + verdictDoc + "\n```",
		"leadingProse": "Here is the analysis you asked for:\n\n" + verdictDoc,
		"surrounded":   "Sure!\n" + verdictDoc + "\nLet me know if you need anything else.",
		"whitespace":   "\n\n  " + verdictDoc + "  \n",
	}
	want, _ := json.Marshal(bare)
	for name, input := range wrapped {
		got, err := DecodeVerdict(input)
		if err != nil {
			t.Errorf("%s: decode failed: %v", name, err)
			continue
		}
		encoded, _ := json.Marshal(got)
		if string(encoded) != string(want) {
			t.Errorf("%s: wrapped decode differs from bare decode", name)
		}
	}
}

func TestDecodeVerdictDetectionFields(t *testing.T) {
	verdict, err := DecodeVerdict(verdictDoc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !verdict.NicotineDetection.IsDetected() {
		t.Fatal("detected flag lost")
	}
	if got := verdict.Categories(); len(got) != 1 || got[0] != "IQOS" {
		t.Fatalf("categories = %v", got)
	}
	if verdict.Metadata.PrimaryLanguage != "georgian" {
		t.Fatalf("metadata lost: %+v", verdict.Metadata)
	}
	if len(verdict.Sentiment) == 0 {
		t.Fatal("untyped sections must pass through")
	}
}

func TestDecodeVerdictExplicitFalse(t *testing.T) {
	verdict, err := DecodeVerdict(`{"nicotine_detection": {"detected": false}}`)
	if err != nil {
		t.Fatalf("explicit false must decode: %v", err)
	}
	if verdict.NicotineDetection.IsDetected() {
		t.Fatal("detected must be false")
	}
}

func TestDecodeVerdictRejectsHollowDocuments(t *testing.T) {
	cases := map[string]string{
		"empty":           "",
		"prose":           "I could not analyze this post.",
		"bareObject":      `{}`,
		"array":           `[1, 2]`,
		"missingDetected": `{"nicotine_detection": {"confidence": "high"}}`,
		"wrongType":       `{"nicotine_detection": "yes"}`,
		"truncated":       `{"nicotine_detection": {"detected": true`,
	}
	for name, input := range cases {
		if _, err := DecodeVerdict(input); err == nil {
			t.Errorf("%s: expected decode failure", name)
		} else if !errors.Is(err, services.ErrResponseDecode) {
			t.Errorf("%s: error not tagged as decode failure: %v", name, err)
		}
	}
}

func TestBalancedSpanSkipsNoise(t *testing.T) {
	input := `The result } follows: {"nicotine_detection": {"detected": false, "note": "brace } in string"}} trailing`
	verdict, err := DecodeVerdict(input)
	if err != nil {
		t.Fatalf("balanced span should recover the document: %v", err)
	}
	if verdict.NicotineDetection.Detected == nil {
		t.Fatal("detected flag missing after span extraction")
	}
}

func TestStripFencesKeepsInlineOpeningBrace(t *testing.T) {
	input := "```{\"nicotine_detection\": {\"detected\": true}}```"
	if _, err := DecodeVerdict(input); err != nil {
		t.Fatalf("fence with inline body should decode: %v", err)
	}
}
