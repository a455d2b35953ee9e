package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
)

// MockClient produces deterministic vectors and canned answers, so the full
// pipeline runs locally without an API key.
type MockClient struct {
	dim int
}

func NewMockClient(dim int) *MockClient {
	if dim <= 0 {
		dim = 1536
	}
	return &MockClient{dim: dim}
}

func (m *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	_ = ctx
	return deterministicVector(text, m.dim), nil
}

func (m *MockClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	_ = ctx
	var b strings.Builder
	b.WriteString("Deterministic mock answer.\n")
	b.WriteString("- prompt length: ")
	b.WriteString(lengthBucket(len(req.Prompt)))
	return b.String(), nil
}

func lengthBucket(n int) string {
	switch {
	case n < 500:
		return "short"
	case n < 5000:
		return "medium"
	default:
		return "long"
	}
}

// deterministicVector hashes the input into a stable unit vector, so equal
// texts always land at the same point.
func deterministicVector(input string, dim int) []float32 {
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	vec := make([]float32, dim)
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251)))
		u := binary.BigEndian.Uint32(h[:4])
		vec[i] = float32(u%2000)/1000.0 - 1.0
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
