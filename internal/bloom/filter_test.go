package bloom

import (
	"fmt"
	"testing"
)

func TestFilterNoFalseNegatives(t *testing.T) {
	f := NewWithEstimates(1000, 0.01)

	items := make([][]byte, 500)
	for i := range items {
		items[i] = []byte(fmt.Sprintf("fingerprint-%d", i))
		f.Add(items[i])
	}

	for _, item := range items {
		if !f.Contains(item) {
			t.Fatalf("added item %q reported absent", item)
		}
	}
}

func TestFilterAbsentItems(t *testing.T) {
	f := NewWithEstimates(1000, 0.001)
	for i := 0; i < 100; i++ {
		f.Add([]byte(fmt.Sprintf("present-%d", i)))
	}

	falsePositives := 0
	for i := 0; i < 1000; i++ {
		if f.Contains([]byte(fmt.Sprintf("absent-%d", i))) {
			falsePositives++
		}
	}
	// Loose bound: target rate is 0.1% at full load, this filter is at 10%.
	if falsePositives > 20 {
		t.Errorf("false positive count %d too high for a nearly empty filter", falsePositives)
	}
}

func TestTestAndAdd(t *testing.T) {
	f := NewWithEstimates(100, 0.01)

	if f.TestAndAdd([]byte("abc")) {
		t.Error("first TestAndAdd should report unseen")
	}
	if !f.TestAndAdd([]byte("abc")) {
		t.Error("second TestAndAdd should report seen")
	}
	if f.Count() != 2 {
		t.Errorf("count = %d, want 2", f.Count())
	}
}

func TestOptimalParameters(t *testing.T) {
	numBits, numHashes := OptimalParameters(10000, 0.01)
	if numBits < 90000 || numBits > 100000 {
		t.Errorf("numBits = %d, expected roughly 95851", numBits)
	}
	if numHashes < 6 || numHashes > 8 {
		t.Errorf("numHashes = %d, expected roughly 7", numHashes)
	}
}

func TestOptimalParametersDefaults(t *testing.T) {
	numBits, numHashes := OptimalParameters(0, 2.0)
	if numBits <= 0 || numHashes <= 0 {
		t.Error("defaults should produce positive parameters")
	}
}

func TestNewRoundsToWords(t *testing.T) {
	f := New(100, 3)
	if f.NumBits() != 128 {
		t.Errorf("NumBits = %d, want 128", f.NumBits())
	}
	if f.NumHashes() != 3 {
		t.Errorf("NumHashes = %d, want 3", f.NumHashes())
	}
}

func TestFalsePositiveRate(t *testing.T) {
	f := NewWithEstimates(1000, 0.01)
	if f.FalsePositiveRate() != 0 {
		t.Error("empty filter should report zero rate")
	}
	for i := 0; i < 1000; i++ {
		f.Add([]byte(fmt.Sprintf("item-%d", i)))
	}
	rate := f.FalsePositiveRate()
	if rate <= 0 || rate > 0.05 {
		t.Errorf("rate at design load = %f, expected near 0.01", rate)
	}
}
