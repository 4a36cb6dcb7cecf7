package llmcache

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sort"
	"strconv"
)

// Params is the enumerated set of generation parameters that can change
// provider output. Two requests with the same prompt but any differing
// parameter must never share a cache entry.
type Params struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64

	// Extra holds additional generation parameters. Entries participate
	// in fingerprinting (in sorted key order) but are never interpreted.
	Extra map[string]string
}

// Fingerprint derives the deterministic cache key for a prompt and its
// parameter set. The prompt must be the fully rendered text sent to the
// provider. Canonicalization keeps field order fixed and formats floats
// minimally so 0.70 and 0.7 hash identically. Pure, side-effect free,
// and stable across processes.
func Fingerprint(prompt string, p Params) string {
	h := sha256.New()
	writeField(h, "prompt", prompt)
	writeField(h, "provider", p.Provider)
	writeField(h, "model", p.Model)
	writeField(h, "temperature", formatFloat(p.Temperature))
	writeField(h, "max_tokens", strconv.Itoa(p.MaxTokens))
	writeField(h, "top_p", formatFloat(p.TopP))

	if len(p.Extra) > 0 {
		keys := make([]string, 0, len(p.Extra))
		for k := range p.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			writeField(h, "x:"+k, p.Extra[k])
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

// ParamsFingerprint derives the key of the parameter set alone, with no
// prompt contribution. Semantic matching uses it to confine similarity
// hits to entries generated under identical parameters: a gpt-4 response
// is never served for a gpt-3.5 request however similar the prompts.
func ParamsFingerprint(p Params) string {
	return Fingerprint("", p)
}

// writeField hashes a length-prefixed name/value pair, so adjacent
// fields can never collide by concatenation.
func writeField(w io.Writer, name, value string) {
	_, _ = io.WriteString(w, strconv.Itoa(len(name)))
	_, _ = io.WriteString(w, ":")
	_, _ = io.WriteString(w, name)
	_, _ = io.WriteString(w, "=")
	_, _ = io.WriteString(w, strconv.Itoa(len(value)))
	_, _ = io.WriteString(w, ":")
	_, _ = io.WriteString(w, value)
}

// formatFloat renders a float in its shortest exact form.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
