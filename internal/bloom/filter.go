// Package bloom provides a probabilistic set used to estimate how many
// duplicate records pass through an import. It guarantees no false
// negatives: if a fingerprint was added, TestAndAdd reports it as seen.
package bloom

import (
	"math"

	"github.com/spaolacci/murmur3"
)

// Filter is a fixed-size bloom filter. It is not safe for concurrent
// use; the import pipeline is strictly sequential.
type Filter struct {
	bits      []uint64
	numBits   uint64
	numHashes uint64
	count     uint64 // number of items added
}

// New creates a Filter with the specified number of bits and hash functions.
func New(numBits, numHashes int) *Filter {
	if numBits <= 0 {
		numBits = 1024
	}
	if numHashes <= 0 {
		numHashes = 7
	}

	// Round up to whole 64-bit words.
	numWords := (numBits + 63) / 64
	actualBits := uint64(numWords * 64)

	return &Filter{
		bits:      make([]uint64, numWords),
		numBits:   actualBits,
		numHashes: uint64(numHashes),
	}
}

// NewWithEstimates creates a Filter sized for the expected number of items
// and target false positive rate.
func NewWithEstimates(expectedItems int, targetFPR float64) *Filter {
	if expectedItems <= 0 {
		expectedItems = 1000
	}
	if targetFPR <= 0 || targetFPR >= 1 {
		targetFPR = 0.01
	}

	numBits, numHashes := OptimalParameters(expectedItems, targetFPR)
	return New(numBits, numHashes)
}

// OptimalParameters calculates the optimal number of bits and hash
// functions for a given expected number of items and target false
// positive rate.
//
// The formulas are:
//   - m = -n * ln(p) / (ln(2)^2)  where m = bits, n = items, p = FPR
//   - k = (m/n) * ln(2)           where k = hash functions
func OptimalParameters(expectedItems int, targetFPR float64) (numBits, numHashes int) {
	if expectedItems <= 0 {
		expectedItems = 1000
	}
	if targetFPR <= 0 || targetFPR >= 1 {
		targetFPR = 0.01
	}

	n := float64(expectedItems)
	p := targetFPR
	ln2 := math.Ln2
	ln2Sq := ln2 * ln2

	m := -n * math.Log(p) / ln2Sq
	numBits = int(math.Ceil(m))

	k := (m / n) * ln2
	numHashes = int(math.Ceil(k))

	if numBits < 64 {
		numBits = 64
	}
	if numHashes < 1 {
		numHashes = 1
	}

	return numBits, numHashes
}

// Add adds a fingerprint to the filter.
func (f *Filter) Add(item []byte) {
	h1, h2 := hash128(item)

	for i := uint64(0); i < f.numHashes; i++ {
		// Double hashing: h(i) = h1 + i*h2
		pos := (h1 + i*h2) % f.numBits
		f.setBit(pos)
	}
	f.count++
}

// Contains tests if a fingerprint might be in the filter.
// Returns true if it might be present (could be a false positive).
// Returns false if it is definitely not present.
func (f *Filter) Contains(item []byte) bool {
	h1, h2 := hash128(item)

	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		if !f.getBit(pos) {
			return false
		}
	}
	return true
}

// TestAndAdd reports whether the fingerprint might already be present,
// then adds it. A true result is a probable duplicate.
func (f *Filter) TestAndAdd(item []byte) bool {
	h1, h2 := hash128(item)

	seen := true
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		if !f.getBit(pos) {
			seen = false
			f.setBit(pos)
		}
	}
	f.count++
	return seen
}

// hash128 computes the murmur3 128-bit hash as two 64-bit values.
func hash128(item []byte) (uint64, uint64) {
	h := murmur3.New128()
	h.Write(item)
	return h.Sum128()
}

func (f *Filter) setBit(pos uint64) {
	wordIdx := pos / 64
	bitIdx := pos % 64
	f.bits[wordIdx] |= (1 << bitIdx)
}

func (f *Filter) getBit(pos uint64) bool {
	wordIdx := pos / 64
	bitIdx := pos % 64
	return (f.bits[wordIdx] & (1 << bitIdx)) != 0
}

// NumBits returns the number of bits in the filter.
func (f *Filter) NumBits() int {
	return int(f.numBits)
}

// NumHashes returns the number of hash functions used.
func (f *Filter) NumHashes() int {
	return int(f.numHashes)
}

// Count returns the number of fingerprints added.
func (f *Filter) Count() uint64 {
	return f.count
}

// FalsePositiveRate returns the estimated false positive rate at the
// current fill level.
//
// Formula: (1 - e^(-k*n/m))^k
// where k = numHashes, n = count, m = numBits
func (f *Filter) FalsePositiveRate() float64 {
	if f.count == 0 {
		return 0
	}

	k := float64(f.numHashes)
	n := float64(f.count)
	m := float64(f.numBits)

	return math.Pow(1-math.Exp(-k*n/m), k)
}
