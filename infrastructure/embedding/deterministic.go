package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DeterministicDimension is the fixed vector size of the hash-derived
// backends. It matches the default collection dimension so an index
// built offline stays compatible with small local models.
const DeterministicDimension = 384

// tokenPattern splits text into word and punctuation tokens.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+|[^\p{L}\p{N}_\s]`)

// DeterministicBackend derives reproducible vectors from token hashes.
// No model, no network; useful for building a shallow but usable index
// when no real backend is available. Identical text always yields an
// identical vector, so nearest-neighbour search still groups topics
// sharing vocabulary.
type DeterministicBackend struct{}

// NewDeterministicBackend creates a DeterministicBackend.
func NewDeterministicBackend() *DeterministicBackend {
	return &DeterministicBackend{}
}

// Name returns the backend name.
func (d *DeterministicBackend) Name() string { return BackendDeterministic }

// ProbeDimension returns the fixed dimension.
func (d *DeterministicBackend) ProbeDimension(context.Context) (int, error) {
	return DeterministicDimension, nil
}

// EmbedOne embeds a single text.
func (d *DeterministicBackend) EmbedOne(_ context.Context, text string) ([]float32, error) {
	return deterministicVector(text), nil
}

// EmbedMany embeds a batch of texts.
func (d *DeterministicBackend) EmbedMany(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = deterministicVector(t)
	}
	return out, nil
}

// deterministicVector hashes each token into a fixed slot and averages
// over the token count. Text is NFC-normalized and lowercased first so
// composed and decomposed spellings of the same word collide.
func deterministicVector(text string) []float32 {
	vec := make([]float32, DeterministicDimension)
	tokens := tokenPattern.FindAllString(strings.ToLower(norm.NFC.String(text)), -1)
	if len(tokens) == 0 {
		return vec
	}
	for i, token := range tokens {
		sum := sha256.Sum256([]byte(token))
		n, err := strconv.ParseUint(hex.EncodeToString(sum[:])[:8], 16, 64)
		if err != nil {
			continue
		}
		vec[i%DeterministicDimension] += float32(int(n%256)-128) / 128.0
	}
	count := float32(len(tokens))
	for i := range vec {
		vec[i] /= count
	}
	return vec
}
