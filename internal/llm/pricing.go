// Package llm – cost and token estimation.
package llm

// Conservative fallback rates (USD per 1M tokens) applied when a model has
// no pricing in the catalog.
const (
	defaultInUSDPerMTok  = 5.00
	defaultOutUSDPerMTok = 15.00
)

// charsPerToken is the rough character-to-token ratio used when a provider
// or streaming mode does not report usage. It is an approximation and must
// not be treated as billing-grade precision.
const charsPerToken = 4

// estimateTokens approximates a token count from text length.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / charsPerToken
	if n == 0 {
		n = 1
	}
	return n
}

// estimateCost computes the USD estimate for a call from token counts and
// the model's list pricing, falling back to conservative default rates for
// unpriced models.
func estimateCost(info ModelInfo, promptTokens, completionTokens int) float64 {
	in, out := info.InUSDPerMTok, info.OutUSDPerMTok
	if in <= 0 {
		in = defaultInUSDPerMTok
	}
	if out <= 0 {
		out = defaultOutUSDPerMTok
	}
	return float64(promptTokens)*in/1e6 + float64(completionTokens)*out/1e6
}
