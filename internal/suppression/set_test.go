package suppression

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/hbdrevv/email-filter-utility/internal/normalize"
	"github.com/hbdrevv/email-filter-utility/internal/table"
)

func generateTestEmail(i int) string {
	return fmt.Sprintf("user%d@example.com", i)
}

func generateTestMD5(i int) MD5Hash {
	return MD5HashFromEmail(generateTestEmail(i))
}

func hexOf(h MD5Hash) string {
	return hex.EncodeToString(h[:])
}

func TestMD5HashFromHex_Valid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"lowercase", "5d41402abc4b2a76b9719d911017c592"},
		{"uppercase", "5D41402ABC4B2A76B9719D911017C592"},
		{"mixed case", "5d41402ABC4b2a76B9719d911017c592"},
		{"with spaces", "  5d41402abc4b2a76b9719d911017c592  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := MD5HashFromHex(tt.input)
			if err != nil {
				t.Fatalf("MD5HashFromHex() error = %v", err)
			}
			if hexOf(h) != strings.ToLower(strings.TrimSpace(tt.input)) {
				t.Errorf("MD5HashFromHex() roundtrip failed")
			}
		})
	}
}

func TestMD5HashFromHex_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"too short", "5d41402abc4b2a76"},
		{"too long", "5d41402abc4b2a76b9719d911017c5921234"},
		{"invalid chars", "5d41402abc4b2a76b9719d911017c59g"},
		{"empty", ""},
		{"spaces only", "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := MD5HashFromHex(tt.input); err == nil {
				t.Errorf("MD5HashFromHex() expected error for input %q", tt.input)
			}
		})
	}
}

func TestMD5HashFromEmail(t *testing.T) {
	sum := md5.Sum([]byte("test@example.com"))
	want := hex.EncodeToString(sum[:])
	if got := hexOf(MD5HashFromEmail("test@example.com")); got != want {
		t.Errorf("MD5HashFromEmail() = %s, want %s", got, want)
	}
}

func TestMD5Hash_Compare(t *testing.T) {
	h1, _ := MD5HashFromHex("00000000000000000000000000000001")
	h2, _ := MD5HashFromHex("00000000000000000000000000000002")
	h1Copy, _ := MD5HashFromHex("00000000000000000000000000000001")

	if h1.Compare(h2) >= 0 {
		t.Error("h1 should be less than h2")
	}
	if h2.Compare(h1) <= 0 {
		t.Error("h2 should be greater than h1")
	}
	if h1.Compare(h1Copy) != 0 {
		t.Error("h1 should equal h1Copy")
	}
}

func TestBloomFilter_Basic(t *testing.T) {
	bf := NewBloomFilter(DefaultBloomConfig(1000))

	h1 := MD5HashFromEmail("test1@example.com")
	h2 := MD5HashFromEmail("test2@example.com")
	bf.Add(h1)
	bf.Add(h2)

	if !bf.MayContain(h1) {
		t.Error("MayContain should return true for h1")
	}
	if !bf.MayContain(h2) {
		t.Error("MayContain should return true for h2")
	}
	if bf.count != 2 {
		t.Errorf("count = %d, want 2", bf.count)
	}
}

func TestBloomFilter_NoFalseNegatives(t *testing.T) {
	bf := NewBloomFilter(DefaultBloomConfig(10000))

	hashes := make([]MD5Hash, 10000)
	for i := range hashes {
		hashes[i] = generateTestMD5(i)
		bf.Add(hashes[i])
	}

	for i, h := range hashes {
		if !bf.MayContain(h) {
			t.Errorf("False negative detected at index %d", i)
		}
	}
}

func TestBloomFilter_FalsePositiveRate(t *testing.T) {
	expectedElements := uint64(100000)
	bf := NewBloomFilter(BloomFilterConfig{
		ExpectedElements:  expectedElements,
		FalsePositiveRate: 0.01,
	})

	for i := uint64(0); i < expectedElements; i++ {
		bf.Add(generateTestMD5(int(i)))
	}

	falsePositives := 0
	testCount := 100000
	for i := 0; i < testCount; i++ {
		if bf.MayContain(generateTestMD5(int(expectedElements) + i + 1000000)) {
			falsePositives++
		}
	}

	// Allow 2x the configured rate.
	if rate := float64(falsePositives) / float64(testCount); rate > 0.02 {
		t.Errorf("False positive rate too high: got %.4f, want < 0.02", rate)
	}
	if est := bf.EstimatedFalsePositiveRate(); est <= 0 || est > 0.02 {
		t.Errorf("EstimatedFalsePositiveRate() = %.4f, want (0, 0.02]", est)
	}
}

func TestBloomFilter_MemoryEfficiency(t *testing.T) {
	bf := NewBloomFilter(BloomFilterConfig{
		ExpectedElements:  1000000,
		FalsePositiveRate: 0.001,
	})

	// ~14.4 bits per element at 0.1%.
	if memMB := float64(bf.MemoryBytes()) / (1024 * 1024); memMB > 3 {
		t.Errorf("Memory usage too high: %.2f MB, want < 3 MB", memMB)
	}
}

func TestSet_Basic(t *testing.T) {
	hashes := []MD5Hash{
		MD5HashFromEmail("suppress1@example.com"),
		MD5HashFromEmail("suppress2@example.com"),
		MD5HashFromEmail("suppress3@example.com"),
	}
	first := hashes[0]

	set := NewSet(hashes)

	if !set.Contains(first) {
		t.Error("Contains should return true for added hash")
	}
	if !set.ContainsEmail("suppress1@example.com") {
		t.Error("ContainsEmail should return true for suppressed email")
	}
	if set.ContainsEmail("notsuppressed@example.com") {
		t.Error("ContainsEmail should return false for non-suppressed email")
	}
	if set.Len() != 3 {
		t.Errorf("Len() = %d, want 3", set.Len())
	}
	if set.MemoryBytes() == 0 {
		t.Error("MemoryBytes() should be non-zero")
	}
}

func TestSet_Deduplication(t *testing.T) {
	h := MD5HashFromEmail("duplicate@example.com")
	set := NewSet([]MD5Hash{h, h, h, h, h})

	if set.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after deduplication", set.Len())
	}
}

func TestSet_Empty(t *testing.T) {
	set := NewSet(nil)
	if set.Len() != 0 {
		t.Errorf("Len() = %d, want 0", set.Len())
	}
	if set.ContainsEmail("anyone@example.com") {
		t.Error("empty set should contain nothing")
	}

	var nilSet *Set
	if nilSet.ContainsEmail("anyone@example.com") || nilSet.Len() != 0 {
		t.Error("nil set should contain nothing")
	}
}

func TestSet_LargeList(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping large list test in short mode")
	}

	count := 100000
	hashes := make([]MD5Hash, count)
	for i := range hashes {
		hashes[i] = generateTestMD5(i)
	}
	set := NewSet(append([]MD5Hash(nil), hashes...))

	for i := 0; i < count; i++ {
		if !set.Contains(hashes[i]) {
			t.Fatalf("Entry %d not found", i)
		}
	}
	for i := count; i < count+1000; i++ {
		if set.Contains(generateTestMD5(i)) {
			t.Fatalf("Entry %d should not be found", i)
		}
	}
}

func TestBuildSet(t *testing.T) {
	supp := table.New("suppression.csv", []string{"Email", "note"})
	supp.Append([]string{" A@B.com ", ""})
	supp.Append([]string{"first.last+x@gmail.com; other@example.org", ""})
	supp.Append([]string{hexOf(generateTestMD5(7)), "hashed export"})
	supp.Append([]string{"", "blank"})
	supp.Append([]string{"n/a", "junk"})

	set := BuildSet(supp, "Email", normalize.Options{CollapseGmailPlus: true})

	for _, e := range []string{"a@b.com", "first.last@gmail.com", "other@example.org", "user7@example.com"} {
		if !set.ContainsEmail(e) {
			t.Errorf("BuildSet() missing %s", e)
		}
	}
	if set.Len() != 4 {
		t.Errorf("Len() = %d, want 4", set.Len())
	}
}

func TestSetFalsePositiveRate(t *testing.T) {
	var empty *Set
	if empty.FalsePositiveRate() != 0 {
		t.Error("nil Set should report a zero false-positive rate")
	}

	set := NewSet([]MD5Hash{generateTestMD5(1), generateTestMD5(2)})
	if r := set.FalsePositiveRate(); r <= 0 || r > 0.01 {
		t.Errorf("FalsePositiveRate() = %.6f, want (0, 0.01]", r)
	}
}

func TestBinarySearch(t *testing.T) {
	hashes := []MD5Hash{
		{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
		{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 3},
		{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 5},
		{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 7},
	}

	if !binarySearch(hashes, hashes[0]) {
		t.Error("Should find first element")
	}
	if !binarySearch(hashes, hashes[3]) {
		t.Error("Should find last element")
	}
	if !binarySearch(hashes, hashes[1]) {
		t.Error("Should find middle element")
	}

	notFound := MD5Hash{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2}
	if binarySearch(hashes, notFound) {
		t.Error("Should not find missing element")
	}
	if binarySearch([]MD5Hash{}, hashes[0]) {
		t.Error("Should not find in empty slice")
	}
}

func TestDeduplicateAndSort(t *testing.T) {
	hashes := []MD5Hash{
		{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 5},
		{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
		{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 5},
		{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 3},
		{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
	}

	result := deduplicateAndSort(hashes)

	if len(result) != 3 {
		t.Errorf("Length = %d, want 3", len(result))
	}
	for i := 1; i < len(result); i++ {
		if result[i].Compare(result[i-1]) <= 0 {
			t.Error("Result should be sorted")
		}
	}
}

func TestEdgeCase_VeryLongEmail(t *testing.T) {
	longEmail := strings.Repeat("a", 200) + "@" + strings.Repeat("b", 100) + ".com"
	set := NewSet([]MD5Hash{MD5HashFromEmail(longEmail)})

	if !set.ContainsEmail(longEmail) {
		t.Error("Should find very long email")
	}
}

func BenchmarkBloomFilter_Add(b *testing.B) {
	bf := NewBloomFilter(DefaultBloomConfig(uint64(b.N)))
	hashes := make([]MD5Hash, b.N)
	for i := 0; i < b.N; i++ {
		hashes[i] = generateTestMD5(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bf.Add(hashes[i])
	}
}
