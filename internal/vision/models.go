package vision

// ============================================================================
// Model Name Resolution
// ============================================================================

// geminiModels maps short names to Gemini model identifiers.
var geminiModels = map[string]string{
	"flash":     "gemini-2.0-flash-exp",
	"flash-1.5": "gemini-1.5-flash",
	"pro":       "gemini-1.5-pro",
	"pro-2":     "gemini-2.0-flash-exp",
}

// claudeModels maps short names to Anthropic API model identifiers.
var claudeModels = map[string]string{
	"sonnet-4.5": "claude-sonnet-4-5-20250929",
	"opus-4.5":   "claude-opus-4-5-20241101",
	"sonnet-3.7": "claude-3-7-sonnet-20250219",
	"sonnet-3.5": "claude-3-5-sonnet-20241022",
	"haiku-3.5":  "claude-3-5-haiku-20241022",
	"opus-3.5":   "claude-3-5-opus-20241022",
	"opus-3":     "claude-3-opus-20240229",
}

// ResolveModel turns a model short name into the provider-specific
// identifier. Unknown names pass through verbatim, which lets users pin a
// full model id that this table has never heard of.
func ResolveModel(name, provider string) string {
	var table map[string]string
	switch provider {
	case "claude":
		table = claudeModels
	default:
		table = geminiModels
	}
	if id, ok := table[name]; ok {
		return id
	}
	return name
}
