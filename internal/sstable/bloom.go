package sstable

import (
	"bytes"
	"fmt"

	"github.com/bits-and-blooms/bloom/v3"
)

// bloomFPRate is the target false-positive rate for the per-SSTable filter;
// it trades a small, fixed memory cost for avoiding most unnecessary data
// block reads on a Get for an absent key.
const bloomFPRate = 0.01

// buildBloomFilter constructs a filter sized for n keys and adds each of
// keys to it.
func buildBloomFilter(keys [][]byte) *bloom.BloomFilter {
	n := len(keys)
	if n == 0 {
		n = 1
	}
	f := bloom.NewWithEstimates(uint(n), bloomFPRate)
	for _, k := range keys {
		f.Add(k)
	}
	return f
}

// encodeBloomFilter serializes f to bytes via its binary WriteTo format.
func encodeBloomFilter(f *bloom.BloomFilter) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("sstable: encode bloom filter: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeBloomFilter parses a filter previously produced by
// encodeBloomFilter.
func decodeBloomFilter(data []byte) (*bloom.BloomFilter, error) {
	f := &bloom.BloomFilter{}
	if _, err := f.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("sstable: decode bloom filter: %w", err)
	}
	return f, nil
}
