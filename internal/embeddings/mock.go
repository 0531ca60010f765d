package embeddings

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"unicode"

	vec "github.com/formbricks/promptrank/pkg/embeddings"
)

// ErrMockEmptyInput is returned by MockClient for blank input.
var ErrMockEmptyInput = errors.New("mock: input text is empty")

const defaultMockDimensions = 1536

// MockClient implements the Client interface for tests and local runs.
// It hashes lowercase word tokens into signed buckets, so texts sharing words score a higher cosine.
// Output is deterministic and L2-normalized.
type MockClient struct {
	dimensions int
}

// NewMockClient creates a mock client. Non-positive dimensions use 1536.
func NewMockClient(dimensions int) *MockClient {
	if dimensions <= 0 {
		dimensions = defaultMockDimensions
	}

	return &MockClient{dimensions: dimensions}
}

// CreateEmbedding generates a deterministic embedding for input.
func (c *MockClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrMockEmptyInput
	}

	out := make([]float32, c.dimensions)

	tokens := strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		// punctuation-only input still gets a stable non-zero vector
		tokens = []string{input}
	}

	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()

		idx := int(sum % uint64(c.dimensions))
		if sum>>63 == 1 {
			out[idx]--
		} else {
			out[idx]++
		}
	}

	if vec.Magnitude(out) == 0 {
		// opposite-signed collisions cancelled out
		out[0] = 1
	}

	vec.NormalizeL2(out)

	return out, nil
}

// Dimensions returns the length of generated vectors.
func (c *MockClient) Dimensions() int {
	return c.dimensions
}

var _ Client = (*MockClient)(nil)
