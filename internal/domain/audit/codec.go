package audit

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"
)

// CompressionAlgo specifies how Changes are stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the change-set size above which entries are compressed.
const DefaultCompressThreshold = 4 * 1024

// Codec compresses large change sets and computes entry digests.
// A Codec is safe for concurrent use.
type Codec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

// NewCodec creates a codec. threshold <= 0 selects DefaultCompressThreshold.
func NewCodec(threshold int) (*Codec, error) {
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &Codec{encoder: encoder, decoder: decoder, threshold: threshold}, nil
}

// Seal fills Digest and, above the threshold, moves Changes into ChangesCompressed.
func (c *Codec) Seal(e *Entry) {
	sum := blake2b.Sum256(e.Changes)
	e.Digest = sum[:]

	e.CompressionAlgo = CompressionNone
	if len(e.Changes) > c.threshold {
		e.ChangesCompressed = c.encoder.EncodeAll(e.Changes, nil)
		e.Changes = nil
		e.CompressionAlgo = CompressionZstd
	}
}

// Open restores Changes and verifies the digest.
func (c *Codec) Open(e *Entry) error {
	if e.CompressionAlgo == CompressionZstd && len(e.ChangesCompressed) > 0 {
		raw, err := c.decoder.DecodeAll(e.ChangesCompressed, nil)
		if err != nil {
			return fmt.Errorf("decompress changes: %w", err)
		}
		e.Changes = raw
		e.ChangesCompressed = nil
		e.CompressionAlgo = CompressionNone
	}

	if len(e.Digest) > 0 {
		sum := blake2b.Sum256(e.Changes)
		if !bytes.Equal(sum[:], e.Digest) {
			return fmt.Errorf("audit entry %s: digest mismatch", e.ID)
		}
	}
	return nil
}
