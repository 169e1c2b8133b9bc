package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// packBlob compresses raw and prefixes it with the xxhash64 of raw.
func packBlob(raw []byte) []byte {
	out := make([]byte, 8, 8+len(raw)/2)
	binary.BigEndian.PutUint64(out, xxhash.Sum64(raw))
	return zstdEncoder.EncodeAll(raw, out)
}

func unpackBlob(packed []byte) ([]byte, error) {
	if len(packed) < 8 {
		return nil, fmt.Errorf("%w: blob too short", ErrCorrupted)
	}
	raw, err := zstdDecoder.DecodeAll(packed[8:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if xxhash.Sum64(raw) != binary.BigEndian.Uint64(packed[:8]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupted)
	}
	return raw, nil
}
