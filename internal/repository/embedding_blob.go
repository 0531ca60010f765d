package repository

import (
	"encoding/binary"
	"fmt"
	"math"
)

// encodeEmbedding packs a vector as little-endian IEEE 754 float32 values without a length prefix.
func encodeEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}

	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}

	return b
}

// decodeEmbedding reverses encodeEmbedding. An empty blob decodes to nil (absent embedding).
func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}

	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding: invalid blob length %d (not multiple of 4)", len(b))
	}

	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}

	return vec, nil
}
