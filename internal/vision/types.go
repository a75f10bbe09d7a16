package vision

// ============================================================================
// Vision Service Types
// ============================================================================

// SubjectDetection is one person found in one photograph, as reported by the
// vision model. OutfitDescription is the canonical comparator input; the
// structured fields are hints extracted alongside it and may be empty.
type SubjectDetection struct {
	Position          string   `json:"position,omitempty"`
	OutfitDescription string   `json:"outfit_description"`
	BibNumber         *string  `json:"bib_number,omitempty"`
	EquipmentBrands   []string `json:"equipment_brands,omitempty"`
	HelmetBrand       string   `json:"helmet_brand,omitempty"`
	HelmetColors      []string `json:"helmet_colors,omitempty"`
	HelmetPatterns    []string `json:"helmet_patterns,omitempty"`
	GoggleLensColor   string   `json:"goggle_lens_color,omitempty"`
	GoggleStrapColor  string   `json:"goggle_strap_color,omitempty"`
	BootBrand         string   `json:"boot_brand,omitempty"`
	BootColors        []string `json:"boot_colors,omitempty"`
	ClothingPatterns  []string `json:"patterns,omitempty"`
	ClothingColors    []string `json:"primary_colors,omitempty"`
	ClothingItems     []string `json:"clothing_items,omitempty"`
}

// Comparison is the result of comparing two outfit descriptions. Score is
// the engine contract; Reason is logged for operators and otherwise ignored.
type Comparison struct {
	Score  float64 `json:"similarity"`
	Reason string  `json:"reasoning,omitempty"`
}

// Payload is an encoded image ready for submission to a backend.
type Payload struct {
	MIME   string // e.g. "image/jpeg"
	Data   []byte // encoded image bytes
	Base64 string // base64 of Data, for backends that take inline base64
}

// detectEnvelope tolerates the documented empty-result shape
// {"outfits": []} alongside a bare JSON array.
type detectEnvelope struct {
	Outfits []SubjectDetection `json:"outfits"`
}

// CallStats counts vision operations issued by a client. Cached results do
// not count; only calls that reached the backend do.
type CallStats struct {
	Describe int64
	Detect   int64
	Compare  int64
}

// Total returns the number of backend calls across all operations.
func (s CallStats) Total() int64 {
	return s.Describe + s.Detect + s.Compare
}
