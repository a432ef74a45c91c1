package vision

import (
	"fmt"
	"sort"
	"strings"

	"optic/internal/post"
	"optic/internal/textutil"
)

// systemPrompt is the fixed task specification sent with every request. The
// detection rules are deliberately strict: false negatives are acceptable,
// false positives are not.
const systemPrompt = `You are an expert brand intelligence analyst specializing in nicotine product detection and sentiment analysis in social media content from the Georgian market.

CRITICAL INSTRUCTIONS:
1. Analyze ALL provided content (images, caption, comments) together as a cohesive unit.
2. Process all languages and scripts equally: Georgian Mkhedruli, English, Russian, and transliterated text are all primary sources.
3. Cite specific evidence for every detection - describe exactly what you see.
4. Be conservative: only report what you can confidently identify.
5. Distinguish product presence from actual usage behavior.

EMOJI AND CONTEXT RULES:
- Generic emojis (fire, hearts, celebration, approval) are NOT evidence of nicotine use; in Georgian social media they signal excitement, love, or congratulations.
- "Congratulations" (gilocavt) plus emojis is celebration, not a nicotine reference.
- Detect nicotine only on VISUAL evidence (device, packaging, consumption) or an explicit text mention. Even the cigarette emoji alone is not sufficient.

DETECTION THRESHOLD:
- Never detect from thin sticks, cylindrical shapes, or a hand near a face alone. Do not confuse fingers, candles, chopsticks, pencils, or phone cases with products.
- Brand text/logo detection requires at least 3 contiguous legible characters on a physical object (product packaging, device body, booth signage), not inferred from color blocks or partial shapes.
- Textual brand mentions (Georgian or English, e.g. TEREA / terea, IQOS / aiqosi, glo, Neo, Ploom, ZYN, VELO) are supporting evidence; text alone without visual confirmation is at most low confidence.
- Definitive detections: legible brand text on a physical object, the TEREA/DELIA flower rosette emblem, the IQOS pebble charger shape with text or context, cigarette packs with brand names and health warnings, a nicotine pouch can with a clear brand logo, or a product clearly in the mouth.
- If you cannot clearly identify the specific product, answer "not detected". False negatives are acceptable; false positives are not.

PRODUCT CATEGORIES:
- IQOS (Philip Morris): ILUMA / 3 series devices, TEREA / HEETS / DELIA sticks, CuriousX event branding (chevron X logo, turquoise on black) counts as IQOS-related.
- glo (BAT): Hyper / Pro / Nano devices, Neo sticks.
- Ploom (JTI): Ploom X / TECH devices, Camel sticks.
- Other_HNB: unbranded or unidentifiable heated tobacco.
- Cigarette: combustible tobacco, lighter or flame visible.
- Vape: JUUL, VEEV, disposables, pod systems.
- Nicotine_Pouch: ZYN, VELO, Nordic Spirit, Siberia, Pablo and similar small flat cans.
- Snus: traditional Swedish tobacco pouches.
- Other_Nicotine: anything nicotine-related outside the above.

ANALYSIS DIMENSIONS:
- Sentiment: overall plus product quality, social acceptance, health perception, value/price, and convenience, each with evidence.
- Competitive intelligence: brand comparisons, switching behavior, price or availability mentions, sponsored events and activations.
- Content analysis: primary category, themes, setting, formality, people count, visual quality.
- Account signals: user type, content style, engagement pattern, brand affinity, partnership potential with any red flags.
- Hashtag analysis: branded and campaign hashtags, reach potential.
- Metadata: primary/secondary language, counts analyzed, analysis confidence, ambiguities.

OUTPUT REQUIREMENTS:
- Respond with VALID JSON only. No markdown fences, no prose outside the JSON document.
- Use the exact schema provided. Use null or "not_mentioned" for unavailable data.
- Confidence levels are "high", "medium", or "low".

This is pure data collection for brand intelligence: objective analysis, no recommendations.`

// schemaDescription pins the response structure. It rides along with the
// system prompt on every request because small local models drift without it.
const schemaDescription = `

EXPECTED JSON SCHEMA:
{
  "nicotine_detection": {
    "detected": true/false,
    "confidence": "high"/"medium"/"low",
    "products": [{"category": "IQOS"/"glo"/"Ploom"/"Other_HNB"/"Cigarette"/"Vape"/"Nicotine_Pouch"/"Snus"/"Other_Nicotine", "specific_brand": "..." or null, "specific_model": "..." or null, "product_type": "Device"/"Consumable"/"Both", "quantity_visible": "single"/"multiple"/"many", "visual_prominence": "primary_focus"/"secondary"/"background"}],
    "detection_evidence": {"visual": ["..."], "caption": ["..."], "comments": ["..."], "hashtags": ["..."]},
    "usage_context": "Dining_Casual"/"Nightlife_Bar"/"Event_Branded"/etc or null,
    "usage_type": "Active_Use"/"Product_Display"/"Unboxing"/"Mention_Only"/etc,
    "co_occurrence": {"food_beverage": true/false, "alcohol": true/false, "other_tobacco": true/false}
  },
  "sentiment": {"overall": "positive"/"neutral"/"negative"/"mixed"/"not_mentioned", "confidence": "...", "dimensions": {...}, "key_phrases": [...]},
  "competitive_intelligence": {"brand_comparison_present": true/false, "switching_behavior": {...}, "price_mentions": {...}, "availability_mentions": {...}},
  "content_analysis": {"primary_category": "...", "content_themes": [...], "setting": "...", "people_count": "..."},
  "account_signals": {"user_type_indicators": [...], "content_style": "...", "brand_affinity": {...}, "partnership_potential": {...}},
  "hashtag_analysis": {"hashtags_present": [...], "branded_hashtags": [...], "reach_potential": "..."},
  "metadata": {"primary_language": "georgian"/"english"/"russian"/"mixed", "secondary_language": "..." or null, "image_count_analyzed": N, "comment_count_analyzed": N, "analysis_confidence": "high"/"medium"/"low", "ambiguities": [...], "analysis_notes": "..."}
}

Ensure your response is VALID JSON matching this structure exactly.`

// SystemPrompt returns the full instruction text, task rules plus schema.
func SystemPrompt() string {
	return systemPrompt + schemaDescription
}

// PromptBudget bounds the user prompt's textual context.
type PromptBudget struct {
	// ContextChars caps the assembled user prompt length in runes.
	ContextChars int
	// MaxComments caps how many comments are considered at all.
	MaxComments int
}

// BuildUserPrompt assembles the per-item message under a deterministic
// budget. Priority order when space runs out: post metadata and caption are
// always kept (the caption truncated as a last resort), then hashtags and
// mentions, then comments - the pinned first comment ahead of the rest, the
// rest newest first, so the oldest chatter is dropped first.
func BuildUserPrompt(item post.Item, imageCount int, budget PromptBudget) string {
	contextChars := budget.ContextChars
	if contextChars <= 0 {
		contextChars = 6000
	}

	var b strings.Builder
	b.WriteString("Analyze this social media post for nicotine product detection and brand intelligence.\n\n")
	b.WriteString("POST METADATA:\n")
	fmt.Fprintf(&b, "- Account: @%s", item.Owner.Username)
	if name := strings.TrimSpace(item.Owner.FullName); name != "" {
		fmt.Fprintf(&b, " (%s)", name)
	}
	b.WriteByte('\n')
	if !item.Timestamp.IsZero() {
		fmt.Fprintf(&b, "- Post Date: %s\n", item.Timestamp.Format("2006-01-02"))
	}
	if item.Type != "" {
		fmt.Fprintf(&b, "- Post Type: %s\n", item.Type)
	}
	fmt.Fprintf(&b, "- Engagement: %s likes, %d comments\n", likesLabel(item.Engagement.Likes), item.Engagement.CommentsCount)
	if item.IsVideo && item.Engagement.VideoViews > 0 {
		fmt.Fprintf(&b, "- Video Views: %d\n", item.Engagement.VideoViews)
	}
	if location := strings.TrimSpace(item.Location); location != "" {
		fmt.Fprintf(&b, "- Location: %s\n", location)
	}
	if item.URL != "" {
		fmt.Fprintf(&b, "- Post URL: %s\n", item.URL)
	}

	caption := strings.TrimSpace(item.Caption)
	if caption == "" {
		caption = "[No caption]"
	}
	// The caption always survives; it only shrinks when it alone would blow
	// the whole budget.
	caption = textutil.Truncate(caption, contextChars/2)
	b.WriteString("\nCAPTION:\n")
	b.WriteString(caption)
	b.WriteByte('\n')

	used := len([]rune(b.String()))
	appendIfRoom := func(section string) {
		runes := len([]rune(section))
		if used+runes <= contextChars {
			b.WriteString(section)
			used += runes
		}
	}

	if len(item.Hashtags) > 0 {
		appendIfRoom("\nHASHTAGS:\n" + "#" + strings.Join(item.Hashtags, " #") + "\n")
	}
	if len(item.Mentions) > 0 {
		appendIfRoom("\nMENTIONS:\n" + "@" + strings.Join(item.Mentions, " @") + "\n")
	}

	comments := prioritizeComments(item.Comments, budget.MaxComments)
	if len(comments) > 0 {
		appendIfRoom(fmt.Sprintf("\nCOMMENTS (%d of %d):\n", len(comments), len(item.Comments)))
		for i, comment := range comments {
			appendIfRoom(formatComment(i+1, comment))
		}
	}

	b.WriteString("\nVISUAL CONTENT:\n")
	fmt.Fprintf(&b, "%d image(s) provided for analysis.\n", imageCount)
	b.WriteString("\nTASK:\nPerform the full analysis per the system instructions and respond with the structured JSON document only. Analyze all content together, cite specific evidence, and be conservative with detections.")
	return b.String()
}

// prioritizeComments ranks comments for budget survival: the pinned first
// comment leads, the rest follow newest first, capped at maxComments.
func prioritizeComments(comments []post.Comment, maxComments int) []post.Comment {
	if maxComments <= 0 {
		maxComments = 20
	}
	ranked := make([]post.Comment, len(comments))
	copy(ranked, comments)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].IsFirst != ranked[j].IsFirst {
			return ranked[i].IsFirst
		}
		return ranked[i].Timestamp.After(ranked[j].Timestamp)
	})
	if len(ranked) > maxComments {
		ranked = ranked[:maxComments]
	}
	return ranked
}

func formatComment(index int, comment post.Comment) string {
	text := textutil.CollapseWhitespace(comment.Text)
	if comment.IsFirst {
		return fmt.Sprintf("%d. [First Comment]: %s\n", index, text)
	}
	username := comment.Username
	if username == "" {
		username = "unknown"
	}
	line := fmt.Sprintf("%d. @%s: %s", index, username, text)
	if comment.Likes > 0 {
		line += fmt.Sprintf(" [%d likes]", comment.Likes)
	}
	return line + "\n"
}

func likesLabel(likes *int) string {
	if likes == nil {
		return "hidden"
	}
	return fmt.Sprintf("%d", *likes)
}
