// Package suppression removes client rows whose email address appears in a
// suppression list.
//
// The suppression list is held as a Set: a Bloom filter in front of a sorted
// array of 16-byte MD5 digests. Negative lookups, the common case, are
// answered by the filter; positives are verified by binary search, so the
// Set never reports a false match. Keeping digests rather than strings also
// lets hashed suppression exports (one MD5 per line) be matched directly.
package suppression

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/hbdrevv/email-filter-utility/internal/normalize"
	"github.com/hbdrevv/email-filter-utility/internal/table"
)

// ErrInvalidMD5 is returned when an MD5 hash is malformed
var ErrInvalidMD5 = errors.New("invalid MD5 hash format")

// MD5Hash represents a 16-byte MD5 hash in binary form.
type MD5Hash [16]byte

// MD5HashFromHex converts a hex-encoded MD5 string to binary form.
// Returns ErrInvalidMD5 if the input is not a valid 32-character hex string.
func MD5HashFromHex(hexStr string) (MD5Hash, error) {
	var h MD5Hash
	hexStr = strings.ToLower(strings.TrimSpace(hexStr))
	if len(hexStr) != 32 {
		return h, fmt.Errorf("%w: expected 32 characters, got %d", ErrInvalidMD5, len(hexStr))
	}
	if _, err := hex.Decode(h[:], []byte(hexStr)); err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidMD5, err)
	}
	return h, nil
}

// MD5HashFromEmail hashes an address that has already been normalized.
func MD5HashFromEmail(normalized string) MD5Hash {
	return md5.Sum([]byte(normalized))
}

// Compare returns -1, 0, or 1 if h is less than, equal to, or greater than other.
func (h MD5Hash) Compare(other MD5Hash) int {
	return bytes.Compare(h[:], other[:])
}

// BloomFilter is a space-efficient probabilistic set. False positives are
// possible, false negatives are not.
type BloomFilter struct {
	bits      []uint64
	size      uint64 // total number of bits
	hashCount uint
	count     uint64
}

// BloomFilterConfig contains parameters for bloom filter creation
type BloomFilterConfig struct {
	ExpectedElements  uint64
	FalsePositiveRate float64 // 0.001 = 0.1%
}

// DefaultBloomConfig returns the configuration used for suppression sets.
func DefaultBloomConfig(expectedElements uint64) BloomFilterConfig {
	return BloomFilterConfig{
		ExpectedElements:  expectedElements,
		FalsePositiveRate: 0.001,
	}
}

// NewBloomFilter creates a bloom filter sized for the given parameters.
//
//	bits   m = -n * ln(p) / ln(2)^2
//	hashes k = (m/n) * ln(2)
func NewBloomFilter(cfg BloomFilterConfig) *BloomFilter {
	if cfg.ExpectedElements == 0 {
		cfg.ExpectedElements = 1000
	}
	if cfg.FalsePositiveRate <= 0 || cfg.FalsePositiveRate >= 1 {
		cfg.FalsePositiveRate = 0.001
	}

	n := float64(cfg.ExpectedElements)
	m := uint64(-n * math.Log(cfg.FalsePositiveRate) / (math.Ln2 * math.Ln2))
	if m < 64 {
		m = 64
	}
	m = ((m + 63) / 64) * 64

	k := uint(float64(m) / n * math.Ln2)
	if k < 1 {
		k = 1
	}
	if k > 16 {
		k = 16
	}

	return &BloomFilter{
		bits:      make([]uint64, m/64),
		size:      m,
		hashCount: k,
	}
}

// Add inserts an MD5 hash into the bloom filter.
func (bf *BloomFilter) Add(h MD5Hash) {
	for i := uint(0); i < bf.hashCount; i++ {
		pos := bf.hash(h, i) % bf.size
		bf.bits[pos/64] |= 1 << (pos % 64)
	}
	bf.count++
}

// MayContain returns false if h is definitely not in the set.
func (bf *BloomFilter) MayContain(h MD5Hash) bool {
	for i := uint(0); i < bf.hashCount; i++ {
		pos := bf.hash(h, i) % bf.size
		if bf.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// MemoryBytes returns the memory used by the bit array in bytes.
func (bf *BloomFilter) MemoryBytes() uint64 {
	return uint64(len(bf.bits)) * 8
}

// EstimatedFalsePositiveRate returns (1 - e^(-kn/m))^k for the current fill.
func (bf *BloomFilter) EstimatedFalsePositiveRate() float64 {
	if bf.count == 0 {
		return 0
	}
	k := float64(bf.hashCount)
	n := float64(bf.count)
	m := float64(bf.size)
	return math.Pow(1-math.Exp(-k*n/m), k)
}

// hash derives the i-th probe by double hashing: h1 + i*h2, where h1 and h2
// are the two halves of the digest.
func (bf *BloomFilter) hash(h MD5Hash, i uint) uint64 {
	h1 := binary.LittleEndian.Uint64(h[:8])
	h2 := binary.LittleEndian.Uint64(h[8:])
	return h1 + uint64(i)*h2
}

// Set is an immutable suppression set. The zero value and a Set built from
// no entries contain nothing.
type Set struct {
	filter *BloomFilter
	hashes []MD5Hash
}

// NewSet builds a Set from digests. The slice is sorted in place and
// deduplicated.
func NewSet(hashes []MD5Hash) *Set {
	unique := deduplicateAndSort(hashes)
	filter := NewBloomFilter(DefaultBloomConfig(uint64(len(unique))))
	for _, h := range unique {
		filter.Add(h)
	}
	return &Set{filter: filter, hashes: unique}
}

// BuildSet collects the suppression entries of column in t. Cells that are
// 32-digit hex strings are taken as digests; every other cell contributes
// the normalized form of each address it contains. Cells with neither are
// ignored.
func BuildSet(t *table.Table, column string, opts normalize.Options) *Set {
	hashes := make([]MD5Hash, 0, t.Len())
	for _, row := range t.Rows() {
		cell, _ := row.Get(column)
		if normalize.IsMD5Hex(cell) {
			if h, err := MD5HashFromHex(cell); err == nil {
				hashes = append(hashes, h)
				continue
			}
		}
		for _, e := range normalize.Cell(cell, opts) {
			hashes = append(hashes, MD5HashFromEmail(e))
		}
	}
	return NewSet(hashes)
}

// Contains checks the Bloom filter first and verifies positives by binary
// search.
func (s *Set) Contains(h MD5Hash) bool {
	if s == nil || len(s.hashes) == 0 {
		return false
	}
	if !s.filter.MayContain(h) {
		return false
	}
	return binarySearch(s.hashes, h)
}

// ContainsEmail reports whether a normalized address is in the set.
func (s *Set) ContainsEmail(normalized string) bool {
	return s.Contains(MD5HashFromEmail(normalized))
}

// Len returns the number of distinct entries.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.hashes)
}

// MemoryBytes returns the approximate memory held by the set.
func (s *Set) MemoryBytes() uint64 {
	if s == nil || s.filter == nil {
		return 0
	}
	return s.filter.MemoryBytes() + uint64(len(s.hashes))*16
}

// FalsePositiveRate is the estimated rate at which the Bloom filter sends a
// miss on to binary search.
func (s *Set) FalsePositiveRate() float64 {
	if s == nil || s.filter == nil {
		return 0
	}
	return s.filter.EstimatedFalsePositiveRate()
}

func binarySearch(hashes []MD5Hash, target MD5Hash) bool {
	left, right := 0, len(hashes)-1
	for left <= right {
		mid := left + (right-left)/2
		cmp := target.Compare(hashes[mid])
		if cmp == 0 {
			return true
		} else if cmp < 0 {
			right = mid - 1
		} else {
			left = mid + 1
		}
	}
	return false
}

func deduplicateAndSort(hashes []MD5Hash) []MD5Hash {
	if len(hashes) == 0 {
		return hashes
	}

	sort.Slice(hashes, func(i, j int) bool {
		return hashes[i].Compare(hashes[j]) < 0
	})

	unique := hashes[:1]
	for i := 1; i < len(hashes); i++ {
		if hashes[i].Compare(unique[len(unique)-1]) != 0 {
			unique = append(unique, hashes[i])
		}
	}
	return unique
}
