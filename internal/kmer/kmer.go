// Package kmer implements canonical k-mer iteration and hashing over DNA
// sequences. Hashing is murmur3 x64-128 (low word) with seed 42, which keeps
// sketches comparable with sourmash-produced signatures.
package kmer

import (
	"fmt"

	"github.com/spaolacci/murmur3"
)

// Seed is the murmur3 seed shared with sourmash.
const Seed uint32 = 42

// complement maps a DNA base to its complement. Anything outside ACGT
// (upper or lower case) maps to zero, which marks the k-mer invalid.
var complement [256]byte

func init() {
	pairs := map[byte]byte{
		'A': 'T', 'C': 'G', 'G': 'C', 'T': 'A',
		'a': 'T', 'c': 'G', 'g': 'C', 't': 'A',
	}
	for b, c := range pairs {
		complement[b] = c
	}
}

// upper maps a base to its uppercase form, zero if not a DNA base.
func upper(b byte) byte {
	switch b {
	case 'A', 'a':
		return 'A'
	case 'C', 'c':
		return 'C'
	case 'G', 'g':
		return 'G'
	case 'T', 't':
		return 'T'
	}
	return 0
}

// ReverseComplement returns the reverse complement of seq. It returns an
// error if seq contains a non-ACGT base.
func ReverseComplement(seq []byte) ([]byte, error) {
	rc := make([]byte, len(seq))
	for i, b := range seq {
		c := complement[b]
		if c == 0 {
			return nil, fmt.Errorf("invalid base %q at position %d", b, i)
		}
		rc[len(seq)-1-i] = c
	}
	return rc, nil
}

// Hash returns the sketch hash of a canonical k-mer.
func Hash(canonical []byte) uint64 {
	h1, _ := murmur3.Sum128WithSeed(canonical, Seed)
	return h1
}

// Canonical returns the lexicographically smaller of the k-mer and its
// reverse complement, matching sourmash's strand canonicalization. The
// returned ok is false when the window contains a non-ACGT base.
func Canonical(window []byte) (canonical []byte, ok bool) {
	fwd := make([]byte, len(window))
	rev := make([]byte, len(window))
	for i, b := range window {
		u := upper(b)
		if u == 0 {
			return nil, false
		}
		fwd[i] = u
		rev[len(window)-1-i] = complement[u]
	}
	if string(fwd) <= string(rev) {
		return fwd, true
	}
	return rev, true
}

// Iterate calls fn with the hash of every canonical k-mer of seq. Windows
// containing non-ACGT characters are skipped. Sequences shorter than k
// contribute nothing.
func Iterate(seq []byte, k int, fn func(hash uint64)) error {
	if k <= 0 {
		return fmt.Errorf("ksize must be positive, got %d", k)
	}
	for i := 0; i+k <= len(seq); i++ {
		canonical, ok := Canonical(seq[i : i+k])
		if !ok {
			continue
		}
		fn(Hash(canonical))
	}
	return nil
}
