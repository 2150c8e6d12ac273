package sketch

import (
	"errors"
	"math"
	"testing"
)

func TestAddRespectsScaleThreshold(t *testing.T) {
	s := New(21, 1000)
	max := s.MaxHash()

	s.Add(max) // exactly at threshold: kept
	s.Add(max + 1)
	if s.Len() != 1 {
		t.Errorf("expected 1 hash, got %d", s.Len())
	}

	// scale=1 keeps everything
	s1 := New(21, 1)
	s1.Add(math.MaxUint64)
	if s1.Len() != 1 {
		t.Error("scale=1 sketch should keep any hash")
	}
}

func TestAbundanceAccumulates(t *testing.T) {
	s := New(21, 1)
	s.Add(10)
	s.Add(10)
	s.AddWithAbundance(10, 3)
	if got := s.Abundance(10); got != 5 {
		t.Errorf("expected abundance 5, got %d", got)
	}
	if got := s.MeanAbundance(); got != 5 {
		t.Errorf("expected mean abundance 5, got %v", got)
	}
}

func TestHashesSorted(t *testing.T) {
	s := New(21, 1)
	for _, h := range []uint64{30, 10, 20} {
		s.Add(h)
	}
	hs := s.Hashes()
	if len(hs) != 3 || hs[0] != 10 || hs[1] != 20 || hs[2] != 30 {
		t.Errorf("expected sorted hashes [10 20 30], got %v", hs)
	}
}

func TestContainmentAndANI(t *testing.T) {
	a := New(4, 1)
	b := New(4, 1)
	for _, h := range []uint64{1, 2, 3, 4} {
		a.Add(h)
	}
	for _, h := range []uint64{3, 4, 5, 6, 7, 8} {
		b.Add(h)
	}

	c, err := a.Containment(b)
	if err != nil {
		t.Fatal(err)
	}
	if c != 0.5 {
		t.Errorf("expected containment 0.5, got %v", c)
	}

	ani, err := a.ContainmentANI(b)
	if err != nil {
		t.Fatal(err)
	}
	want := math.Pow(0.5, 0.25)
	if math.Abs(ani-want) > 1e-12 {
		t.Errorf("expected ANI %v, got %v", want, ani)
	}
}

func TestEmptySketchEdgeCases(t *testing.T) {
	empty := New(4, 1)
	other := New(4, 1)
	other.Add(1)

	c, err := empty.Containment(other)
	if err != nil {
		t.Fatal(err)
	}
	if c != 0 {
		t.Errorf("empty sketch containment should be 0, got %v", c)
	}

	if _, err := empty.ContainmentANI(other); !errors.Is(err, ErrEmptySketch) {
		t.Errorf("expected ErrEmptySketch, got %v", err)
	}
}

func TestParamMismatch(t *testing.T) {
	a := New(21, 1000)
	b := New(31, 1000)
	if _, err := a.Containment(b); !errors.Is(err, ErrParamMismatch) {
		t.Errorf("expected ErrParamMismatch, got %v", err)
	}
	if err := a.Merge(b); !errors.Is(err, ErrParamMismatch) {
		t.Errorf("expected ErrParamMismatch on merge, got %v", err)
	}
}

func TestDownsample(t *testing.T) {
	s := New(21, 1)
	s.Add(1)
	s.Add(math.MaxUint64)

	coarse, err := s.Downsample(1000)
	if err != nil {
		t.Fatal(err)
	}
	if coarse.Len() != 1 {
		t.Errorf("expected 1 hash after downsampling, got %d", coarse.Len())
	}

	if _, err := coarse.Downsample(1); err == nil {
		t.Error("expected error upsampling to finer scale")
	}
}

func TestAddSequenceMatchesIterate(t *testing.T) {
	seq := []byte("ACGTACGTAGCTAGCTACGATCGATCGTAGCTAGCATCGATCGT")
	s := New(7, 1)
	if err := s.AddSequence(seq); err != nil {
		t.Fatal(err)
	}
	if s.Len() == 0 {
		t.Fatal("expected hashes from sequence")
	}

	// The same sequence sketched twice doubles abundance, not cardinality.
	before := s.Len()
	if err := s.AddSequence(seq); err != nil {
		t.Fatal(err)
	}
	if s.Len() != before {
		t.Errorf("re-sketching same sequence changed cardinality: %d -> %d", before, s.Len())
	}
}

func TestTotalKmers(t *testing.T) {
	if got := TotalKmers(2.0, 10, 1000, false); got != 20 {
		t.Errorf("expected 20, got %d", got)
	}
	if got := TotalKmers(1.0, 10, 1000, true); got != 10000 {
		t.Errorf("expected 10000, got %d", got)
	}
}
