// Package simhash fingerprints result pages so a paginating scraper can
// notice when a board keeps serving the same listings for every page
// number.
package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
	"unicode"
)

// Fingerprint computes a 64-bit SimHash over tokens using FNV-64a.
// Tokens are lowercased and stripped of punctuation first; empty tokens
// are ignored. No tokens yields 0.
func Fingerprint(tokens []string) uint64 {
	var vector [64]int
	n := 0
	for _, tok := range tokens {
		tok = normalize(tok)
		if tok == "" {
			continue
		}
		n++
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}
	if n == 0 {
		return 0
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether a and b are within threshold bits of each other.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}

func normalize(tok string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, tok)
}

// PageTracker remembers the previous page's fingerprint during one run.
// The zero value is ready to use.
type PageTracker struct {
	// Threshold is the largest Distance treated as a repeat. Zero means
	// only identical fingerprints repeat.
	Threshold int

	prev uint64
	seen bool
}

// Repeat records fp and reports whether it matches the previous page.
// Empty pages (fp == 0) never count as repeats.
func (t *PageTracker) Repeat(fp uint64) bool {
	if fp == 0 {
		return false
	}
	repeat := t.seen && Similar(t.prev, fp, t.Threshold)
	t.prev, t.seen = fp, true
	return repeat
}
