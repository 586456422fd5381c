package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// maxInflated caps decompressed uploads; inputs are expected to fit in memory.
const maxInflated = 256 << 20

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// decompress unwraps gzip or zstd content. It returns the inner file name
// (compression suffix removed), the payload, and whether anything was unwrapped.
func decompress(name string, content []byte) (string, []byte, bool, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".gz") || bytes.HasPrefix(content, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(content))
		if err != nil {
			return name, nil, false, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		out, err := readLimited(zr)
		if err != nil {
			return name, nil, false, fmt.Errorf("gzip: %w", err)
		}
		return trimSuffixFold(name, ".gz"), out, true, nil
	case strings.HasSuffix(lower, ".zst") || bytes.HasPrefix(content, zstdMagic):
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxInflated))
		if err != nil {
			return name, nil, false, fmt.Errorf("zstd: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(content, nil)
		if err != nil {
			return name, nil, false, fmt.Errorf("zstd: %w", err)
		}
		return trimSuffixFold(name, ".zst"), out, true, nil
	}
	return name, content, false, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, maxInflated+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxInflated {
		return nil, fmt.Errorf("inflated size exceeds %d bytes", maxInflated)
	}
	return out, nil
}

func trimSuffixFold(s, suffix string) string {
	if strings.HasSuffix(strings.ToLower(s), suffix) {
		return s[:len(s)-len(suffix)]
	}
	return s
}
