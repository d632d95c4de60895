package transport

import (
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

const (
	// encodingZstd is the Content-Encoding value for compressed bodies.
	encodingZstd = "zstd"

	// maxBodySize caps request and response bodies, before and after
	// decompression.
	maxBodySize = 64 << 20

	// DefaultCompressAbove is the body size from which payloads are compressed.
	DefaultCompressAbove = 4 << 10
)

var (
	codecOnce sync.Once
	codecErr  error
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
)

// zstdCodecs returns the shared encoder and decoder. EncodeAll and
// DecodeAll are safe for concurrent use.
func zstdCodecs() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			codecErr = fmt.Errorf("create encoder: %w", codecErr)
			return
		}
		decoder, codecErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxBodySize))
		if codecErr != nil {
			codecErr = fmt.Errorf("create decoder: %w", codecErr)
		}
	})
	return encoder, decoder, codecErr
}

// compressBody compresses data when it reaches threshold. A threshold
// below zero disables compression.
func compressBody(data []byte, threshold int) ([]byte, bool, error) {
	if threshold < 0 || len(data) < threshold {
		return data, false, nil
	}

	enc, _, err := zstdCodecs()
	if err != nil {
		return nil, false, err
	}
	return enc.EncodeAll(data, nil), true, nil
}

// decompressBody undoes compressBody according to the Content-Encoding header.
func decompressBody(data []byte, contentEncoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "", "identity":
		return data, nil
	case encodingZstd:
		_, dec, err := zstdCodecs()
		if err != nil {
			return nil, err
		}
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", contentEncoding)
	}
}

// acceptsZstd reports whether an Accept-Encoding header lists zstd.
func acceptsZstd(acceptEncoding string) bool {
	for _, part := range strings.Split(acceptEncoding, ",") {
		name, _, _ := strings.Cut(part, ";")
		if strings.EqualFold(strings.TrimSpace(name), encodingZstd) {
			return true
		}
	}
	return false
}
