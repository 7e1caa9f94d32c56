package ai

// Model metadata and simple pricing helpers for dry-run warnings.
// Prices are illustrative and should be verified against provider docs.

type ModelInfo struct {
	Name          string
	Provider      string
	ContextTokens int     // approximate context window
	InputPerK     float64 // USD per 1K input tokens
	OutputPerK    float64 // USD per 1K output tokens
}

// DefaultModel is used when neither flags nor config name one.
const DefaultModel = "gemini-2.5-pro"

var models = map[string]ModelInfo{
	"gemini-2.5-pro": {
		Name:          "gemini-2.5-pro",
		Provider:      ProviderGemini,
		ContextTokens: 1048576,
		InputPerK:     0.00125,
		OutputPerK:    0.01,
	},
	"gemini-2.5-flash": {
		Name:          "gemini-2.5-flash",
		Provider:      ProviderGemini,
		ContextTokens: 1048576,
		InputPerK:     0.0003,
		OutputPerK:    0.0025,
	},
	"google/gemini-2.5-pro": {
		Name:          "google/gemini-2.5-pro",
		Provider:      ProviderOpenRouter,
		ContextTokens: 1048576,
		InputPerK:     0.00125,
		OutputPerK:    0.01,
	},
	"openai/gpt-4o-mini": {
		Name:          "openai/gpt-4o-mini",
		Provider:      ProviderOpenRouter,
		ContextTokens: 128000,
		InputPerK:     0.0006,
		OutputPerK:    0.0024,
	},
	"llama3.1:8b": {
		Name:          "llama3.1:8b",
		Provider:      ProviderOllama,
		ContextTokens: 128000,
	},
	"qwen2.5:7b-instruct": {
		Name:          "qwen2.5:7b-instruct",
		Provider:      ProviderOllama,
		ContextTokens: 32768,
	},
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// ExceedsContext reports whether promptTokens+maxTokens overflows the model
// window. Unknown models never exceed.
func ExceedsContext(model string, promptTokens, maxTokens int) bool {
	mi, ok := LookupModel(model)
	if !ok || mi.ContextTokens <= 0 {
		return false
	}
	return promptTokens+maxTokens > mi.ContextTokens
}
