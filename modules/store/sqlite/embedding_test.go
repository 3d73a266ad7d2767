package sqlite

import (
	"reflect"
	"testing"
)

func TestEmbeddingRoundTrip(t *testing.T) {
	t.Parallel()

	vec := []float32{0.25, -1.5, 3.14159, 0}
	got, err := decodeEmbedding(encodeEmbedding(vec))
	if err != nil {
		t.Fatalf("decodeEmbedding() = %v", err)
	}
	if !reflect.DeepEqual(got, vec) {
		t.Errorf("round trip = %v, want %v", got, vec)
	}
}

func TestDecodeEmbeddingRejectsTruncatedBlob(t *testing.T) {
	t.Parallel()

	if _, err := decodeEmbedding([]byte{1, 2, 3}); err == nil {
		t.Error("truncated blob decoded without error")
	}
}

func TestEncodeEmbeddingEmpty(t *testing.T) {
	t.Parallel()

	got, err := decodeEmbedding(encodeEmbedding(nil))
	if err != nil {
		t.Fatalf("decodeEmbedding() = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}
