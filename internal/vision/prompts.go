package vision

import "fmt"

// ============================================================================
// Prompt Templates
// ============================================================================
//
// The comparator weights and the bib-number certainty rule live in these
// templates. They steer the model; the engine contract remains the JSON
// shapes documented in types.go.
// ============================================================================

// describeFacePrompt produces the canonical gear description stored for a
// roster reference image. The model answers with a paragraph, not JSON.
const describeFacePrompt = `
Analyze this image and provide a detailed description of the clothing and gear worn by the most prominent person in the photo.

Focus on VISUAL DETAILS, in order of importance:

1. BIB NUMBER (ONLY IF CLEARLY READABLE):
   - Racing bib number (large number on chest/back)
   - ONLY record if the number is COMPLETELY CLEAR and UNAMBIGUOUS
   - Must be able to read ALL digits with certainty
   - If blurry, partially obscured, at a bad angle, or ANY doubt: omit it
   - Better to skip an unclear bib number than misidentify it

2. HELMET/HEADGEAR (MOST DETAILED):
   - Helmet BRAND: SMITH, Giro, POC, Uvex, Salomon, etc.
   - Helmet colors (be specific: metallic blue, matte black, fluorescent yellow, etc.)
   - Helmet patterns: stripes, graphics, logos, racing designs, solid color, color blocks
   - GOGGLE LENS COLOR: clear, tinted, mirrored, orange tint, blue tint, etc.
   - GOGGLE STRAP COLOR and pattern

3. SKI BOOTS (HIGHLY VISIBLE):
   - Boot brand and model if visible
   - Boot colors, primary and accent
   - Boot design and distinctive features

4. CLOTHING PATTERNS:
   - Pattern types: stripes, graphics, logos, geometric, racing designs, solid
   - Pattern placement, scale, and contrast

5. CLOTHING COLORS:
   - Primary colors (be specific: navy blue, burgundy, forest green, fluorescent orange, etc.)
   - Secondary and accent colors, color blocking

6. OTHER EQUIPMENT BRANDS:
   - Ski brand: HEAD, Rossignol, Atomic, Fischer, K2, etc.
   - Pole brands, sponsor logos, team names

Provide a detailed paragraph emphasizing the bib number (only if every digit is certain), helmet details, boot brand and colors, clothing patterns, and primary colors. DO NOT describe faces or facial features.
`

// detectSubjectsPrompt enumerates every person in an image as a JSON array.
const detectSubjectsPrompt = `
Identify all people visible in this image and describe their gear and clothing.

For each person you detect, provide:
1. Position/location in the image (e.g., "center", "left side", "background right")
2. A detailed GEAR description emphasizing:

   BIB NUMBER (HIGHEST PRIORITY, ONLY IF CRYSTAL CLEAR):
   - Racing bib number (large number on chest or back)
   - ONLY record if you can read ALL digits with 100% confidence
   - All digits must be clearly visible, in sharp focus, not obscured by arms, poles, or other objects, and not at an extreme angle
   - If there is ANY doubt about ANY digit: set it to null
   - A wrong bib number is worse than no bib number

   HELMET/HEADGEAR (MOST CRITICAL FOR MATCHING):
   - Helmet BRAND: SMITH, Giro, POC, Uvex, Salomon, etc.
   - Helmet base color(s), patterns, graphics, and accent colors
   - GOGGLE LENS COLOR: clear, tinted, mirrored, orange, blue, etc.
   - GOGGLE STRAP COLOR and pattern

   SKI BOOTS (HIGHLY VISIBLE AND DISTINCTIVE):
   - Boot brand if readable; boot colors, primary and accents; racing style and buckles

   CLOTHING:
   - Pattern types (stripes, graphics, racing designs, solid), placement and scale
   - Primary, secondary, and accent colors on the suit or jersey

   EQUIPMENT BRANDS:
   - Ski, pole, goggle, and clothing brands; sponsor logos or team names

Format your response as a JSON array with this structure:
[
  {
    "position": "description of location in image",
    "outfit_description": "detailed description with bib number (only if clearly visible), helmet brand, goggle details, boots, brands, patterns, and colors...",
    "bib_number": "123" or null if not clearly readable with 100% confidence,
    "equipment_brands": ["BRAND1", "BRAND2"],
    "helmet_brand": "BRAND" or null if not visible,
    "helmet_colors": ["color1", "color2"],
    "helmet_patterns": ["pattern description"],
    "goggle_lens_color": "clear/tinted/mirrored/orange/blue/etc" or null,
    "goggle_strap_color": "color or pattern" or null,
    "boot_brand": "BRAND" or null if not visible,
    "boot_colors": ["color1", "color2"],
    "patterns": ["clothing pattern1", "pattern2"],
    "primary_colors": ["color1", "color2"],
    "clothing_items": ["item1", "item2"]
  }
]

If no people are detected, return:
{"outfits": []}

Important: Return ONLY the JSON, no additional text or markdown formatting.
`

// comparePromptTemplate scores two gear descriptions. The evidence weights
// below are the tuning knobs for clustering quality; the engine only
// consumes the resulting similarity number.
const comparePromptTemplate = `
Compare these two gear descriptions and determine how similar they are.

Description 1:
%s

Description 2:
%s

NOTE: Do NOT use bib numbers for matching. Even if both descriptions have bib numbers, IGNORE them. Only use visual similarity based on gear appearance.

ANALYSIS PRIORITIES (in order of importance):

1. HELMET SIMILARITY (HIGHEST PRIORITY, 30%%):
   - Helmet BRAND, base colors, and patterns/graphics must match closely
   - GOGGLE LENS COLOR: clear vs tinted vs mirrored vs colored
   - GOGGLE STRAP COLOR and pattern
   Different helmet brand, colors, or goggle colors = significant score reduction.
   Same helmet brand + same goggle colors + same helmet colors = very strong match.

2. SKI BOOT SIMILARITY (VERY HIGH PRIORITY, 25%%):
   - Same boot colors or color combinations; same brand is a strong indicator
   - Different boot colors = significant score reduction

3. CLOTHING PATTERN SIMILARITY (HIGH PRIORITY, 25%%):
   - Same pattern type on suits/jerseys (stripes, graphics, racing designs, solid)
   - If both are solid with no pattern, that is a match for this category

4. CLOTHING COLOR SIMILARITY (MEDIUM PRIORITY, 15%%):
   - Similar primary colors, color combinations, and blocking

5. EQUIPMENT BRAND SIMILARITY (SUPPORTING EVIDENCE, 5%%):
   - Same helmet/ski/boot brands are bonus points, not primary identifiers

SCORING GUIDELINES (be generous with matching):
- 0.9-1.0: Nearly identical (same helmet colors/patterns, same suit colors/patterns)
- 0.7-0.9: Very similar (matching helmet colors with similar patterns OR same base helmet color)
- 0.5-0.7: Moderately similar (similar helmet colors even if patterns differ, OR similar overall color scheme)
- 0.3-0.5: Somewhat similar (some color overlap in helmet or suit)
- 0.0-0.3: Very different (completely different color schemes throughout)

MATCHING RULES (VISUAL APPEARANCE ONLY):
- Same helmet colors + same boot colors + same suit patterns = score at least 0.9
- Same helmet colors + same boot colors = score at least 0.8
- Same helmet colors + similar boot colors + similar patterns = score at least 0.75
- Same helmet colors OR same boot colors + similar suit patterns = score at least 0.7
- Similar helmet colors + similar boot colors = score at least 0.65
- Same helmet colors but different boot colors = score at least 0.6
- Same color family + similar patterns = score at least 0.5
- Same brands but different colors/patterns = score at least 0.4

Be LENIENT - err on the side of higher scores to enable clustering.
WEIGHT VISUAL APPEARANCE MORE THAN BRANDS.

Provide a similarity score between 0.0 (completely different) and 1.0 (nearly identical).

Return your analysis as JSON with this exact structure:
{
  "similarity": 0.0,
  "reasoning": "brief explanation focusing on helmet colors/patterns, then boot colors/brand, then suit patterns/colors"
}

Important: Return ONLY the JSON, no additional text or markdown formatting.
`

// buildComparePrompt injects the two descriptions into the comparison
// template.
func buildComparePrompt(description1, description2 string) string {
	return fmt.Sprintf(comparePromptTemplate, description1, description2)
}
