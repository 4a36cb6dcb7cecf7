// Package pricing estimates the dollar cost of an LLM call from prompt
// and response length. Estimates feed the cache's savings accounting;
// they are deliberately rough and must never fail the caching path, so
// unknown models fall back to a default rate instead of erroring.
package pricing

import "strings"

// charsPerToken is the rough character-to-token ratio used for
// estimation.
const charsPerToken = 4.0

// Rate is the price in USD per 1K tokens, split by direction.
type Rate struct {
	Prompt     float64 `mapstructure:"prompt"`
	Completion float64 `mapstructure:"completion"`
}

// DefaultRate applies to models with no table entry.
var DefaultRate = Rate{Prompt: 0.01, Completion: 0.03}

// Table maps a model-name fragment to its rate. Lookup matches by
// substring, so "gpt-4" covers "gpt-4-turbo" and friends.
type Table map[string]Rate

// DefaultTable returns approximate published rates for common model
// families. Configuration should override these as pricing changes.
func DefaultTable() Table {
	return Table{
		"gpt-4":   {Prompt: 0.03, Completion: 0.06},
		"gpt-3.5": {Prompt: 0.001, Completion: 0.002},
		"claude":  {Prompt: 0.008, Completion: 0.024},
	}
}

// Lookup returns the rate for model, falling back to DefaultRate when
// no table fragment matches. Longer fragments win over shorter ones so
// "gpt-4" and "gpt-4o-mini" can coexist.
func (t Table) Lookup(model string) Rate {
	lower := strings.ToLower(model)
	best := ""
	for fragment := range t {
		if strings.Contains(lower, strings.ToLower(fragment)) && len(fragment) > len(best) {
			best = fragment
		}
	}
	if best == "" {
		return DefaultRate
	}
	return t[best]
}

// Tokens approximates the token count of text.
func Tokens(text string) float64 {
	return float64(len(text)) / charsPerToken
}

// Estimate returns the approximate USD cost of a call with the given
// prompt and response under model's rate. Pure and total: any string
// inputs produce a non-negative estimate.
func Estimate(t Table, prompt, response, model string) float64 {
	if t == nil {
		t = DefaultTable()
	}
	rate := t.Lookup(model)
	return Tokens(prompt)/1000*rate.Prompt + Tokens(response)/1000*rate.Completion
}
