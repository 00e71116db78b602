package provider

// Token estimation. Neither reference backend reports prompt token counts
// before a call, so adapters estimate locally: the OpenAI-compatible
// adapter uses the common four-characters-per-token heuristic and the
// Ollama adapter uses a per-model characters-per-token ratio table.

// estimateTokensByChars approximates the token count of text using the
// four-characters-per-token heuristic.
func estimateTokensByChars(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}

// estimateRequestTokens approximates the prompt token count of a request.
func estimateRequestTokens(req CompletionRequest, charsPerToken float64) int {
	if charsPerToken <= 0 {
		charsPerToken = 4
	}
	chars := len(req.System)
	for _, m := range req.Messages {
		chars += len(m.Content)
	}
	n := int(float64(chars) / charsPerToken)
	if n == 0 && chars > 0 {
		n = 1
	}
	return n
}

// modelTokenRatios maps local model families to their approximate
// characters-per-token ratio. Unknown models fall back to 4.
var modelTokenRatios = map[string]float64{
	"llama3":    3.8,
	"llama2":    3.6,
	"mistral":   3.9,
	"codellama": 3.2,
	"phi3":      3.7,
	"gemma":     4.1,
}

// ratioForModel returns the characters-per-token ratio for a model name,
// matching on the family prefix before any ':' tag.
func ratioForModel(model string) float64 {
	family := model
	for i := 0; i < len(model); i++ {
		if model[i] == ':' {
			family = model[:i]
			break
		}
	}
	if r, ok := modelTokenRatios[family]; ok {
		return r
	}
	return 4
}
