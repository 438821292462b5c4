package executor

// ModelRate is the USD cost per 1,000 tokens for one model, split by
// direction since input and output tokens are priced differently by every
// provider this runtime has wired so far.
type ModelRate struct {
	InputPer1K  float64
	OutputPer1K float64
}

// CostEstimator turns a token usage figure into a USD cost, feeding the
// cost ledger (internal/budget) after every completion.
type CostEstimator interface {
	Estimate(model string, usage TokenUsage) float64
}

// StaticRates is a CostEstimator backed by a fixed per-model rate table.
// Unknown models fall back to DefaultRate.
type StaticRates struct {
	Rates       map[string]ModelRate
	DefaultRate ModelRate
}

func (s StaticRates) Estimate(model string, usage TokenUsage) float64 {
	rate, ok := s.Rates[model]
	if !ok {
		rate = s.DefaultRate
	}
	return float64(usage.Input)/1000*rate.InputPer1K + float64(usage.Output)/1000*rate.OutputPer1K
}
