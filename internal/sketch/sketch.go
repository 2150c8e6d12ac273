// Package sketch implements FracMinHash ("scaled") sketches of DNA
// sequences. A sketch keeps every k-mer hash below 2^64/scale, so two
// sketches built with the same ksize and scale are directly comparable for
// containment and ANI estimation.
package sketch

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kodh49/YACHT/internal/kmer"
)

// Common sketch errors.
var (
	ErrParamMismatch = errors.New("sketch parameters do not match")
	ErrEmptySketch   = errors.New("sketch is empty")
)

// Sketch is a FracMinHash sketch with per-hash abundance counts.
type Sketch struct {
	Ksize int
	Scale uint64
	Seed  uint32

	hashes map[uint64]uint64 // hash -> abundance
}

// New returns an empty sketch for the given ksize and scale factor.
func New(ksize int, scale uint64) *Sketch {
	return &Sketch{
		Ksize:  ksize,
		Scale:  scale,
		Seed:   kmer.Seed,
		hashes: make(map[uint64]uint64),
	}
}

// MaxHash returns the FracMinHash keep-threshold 2^64/scale.
func (s *Sketch) MaxHash() uint64 {
	if s.Scale == 0 {
		return math.MaxUint64
	}
	return math.MaxUint64 / s.Scale
}

// Add records a hash with abundance 1, subject to the scale threshold.
func (s *Sketch) Add(hash uint64) {
	s.AddWithAbundance(hash, 1)
}

// AddWithAbundance records a hash with the given abundance, subject to the
// scale threshold. Abundances of repeated hashes accumulate.
func (s *Sketch) AddWithAbundance(hash, abundance uint64) {
	if hash > s.MaxHash() {
		return
	}
	s.hashes[hash] += abundance
}

// AddSequence sketches every canonical k-mer of seq.
func (s *Sketch) AddSequence(seq []byte) error {
	return kmer.Iterate(seq, s.Ksize, s.Add)
}

// Len returns the number of distinct hashes in the sketch.
func (s *Sketch) Len() int { return len(s.hashes) }

// Hashes returns the sketch hashes in ascending order.
func (s *Sketch) Hashes() []uint64 {
	out := make([]uint64, 0, len(s.hashes))
	for h := range s.hashes {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Abundance returns the recorded abundance of a hash (zero if absent).
func (s *Sketch) Abundance(hash uint64) uint64 { return s.hashes[hash] }

// Contains reports whether the sketch holds the hash.
func (s *Sketch) Contains(hash uint64) bool {
	_, ok := s.hashes[hash]
	return ok
}

// MeanAbundance returns the average abundance over distinct hashes, or zero
// for an empty sketch.
func (s *Sketch) MeanAbundance() float64 {
	if len(s.hashes) == 0 {
		return 0
	}
	var total uint64
	for _, a := range s.hashes {
		total += a
	}
	return float64(total) / float64(len(s.hashes))
}

// compatible reports whether two sketches can be compared.
func (s *Sketch) compatible(o *Sketch) error {
	if s.Ksize != o.Ksize || s.Scale != o.Scale || s.Seed != o.Seed {
		return fmt.Errorf("%w: (ksize=%d scale=%d seed=%d) vs (ksize=%d scale=%d seed=%d)",
			ErrParamMismatch, s.Ksize, s.Scale, s.Seed, o.Ksize, o.Scale, o.Seed)
	}
	return nil
}

// Intersection returns the number of hashes shared with o.
func (s *Sketch) Intersection(o *Sketch) (int, error) {
	if err := s.compatible(o); err != nil {
		return 0, err
	}
	small, large := s, o
	if large.Len() < small.Len() {
		small, large = large, small
	}
	n := 0
	for h := range small.hashes {
		if large.Contains(h) {
			n++
		}
	}
	return n, nil
}

// Containment returns |s ∩ o| / |s|, the fraction of this sketch's hashes
// found in o. An empty sketch has containment zero.
func (s *Sketch) Containment(o *Sketch) (float64, error) {
	if err := s.compatible(o); err != nil {
		return 0, err
	}
	if s.Len() == 0 {
		return 0, nil
	}
	n, err := s.Intersection(o)
	if err != nil {
		return 0, err
	}
	return float64(n) / float64(s.Len()), nil
}

// ContainmentANI estimates average nucleotide identity from containment as
// containment^(1/k). Errors on an empty receiver.
func (s *Sketch) ContainmentANI(o *Sketch) (float64, error) {
	if s.Len() == 0 {
		return 0, fmt.Errorf("cannot estimate ANI: %w", ErrEmptySketch)
	}
	c, err := s.Containment(o)
	if err != nil {
		return 0, err
	}
	if c == 0 {
		return 0, nil
	}
	return math.Pow(c, 1/float64(s.Ksize)), nil
}

// Merge folds o into the receiver, accumulating abundances.
func (s *Sketch) Merge(o *Sketch) error {
	if err := s.compatible(o); err != nil {
		return err
	}
	for h, a := range o.hashes {
		s.hashes[h] += a
	}
	return nil
}

// Downsample returns a copy of the sketch at a coarser scale. The target
// scale must be >= the current scale.
func (s *Sketch) Downsample(scale uint64) (*Sketch, error) {
	if scale < s.Scale {
		return nil, fmt.Errorf("cannot downsample from scale %d to finer scale %d", s.Scale, scale)
	}
	out := New(s.Ksize, scale)
	for h, a := range s.hashes {
		out.AddWithAbundance(h, a)
	}
	return out, nil
}

// TotalKmers estimates the number of k-mers represented by the sketch.
// With applyScale, distinct sketch hashes are multiplied up by the scale
// factor; otherwise the estimate is abundance-weighted over the sketch only,
// matching the original tool's accounting for sample totals.
func TotalKmers(meanAbundance float64, numHashes int, scale uint64, applyScale bool) uint64 {
	est := meanAbundance * float64(numHashes)
	if applyScale {
		est *= float64(scale)
	}
	return uint64(math.Round(est))
}
