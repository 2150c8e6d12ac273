// Package hypothesis implements the presence/absence test at the heart of
// the pipeline. For each reference genome with nu exclusive hashes, the
// number of those hashes observed in the sample is compared against a
// binomial acceptance threshold derived from the ANI threshold: a genome
// present at ANI a contributes each exclusive k-mer unmutated with
// probability a^k, so the observed matches at the decision boundary follow
// Binomial(nu, a^k).
package hypothesis

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// Params configure a recovery run.
type Params struct {
	Significance float64 // minimum probability of an individual true negative
	NumThreads   int     // worker pool size
}

// Result is one organism row of the recovery output. The coverage-scaled
// fields start at coverage 1 and are rescaled by ApplyCoverage.
type Result struct {
	OrganismName                     string
	NumUniqueKmersInGenomeSketch     uint64
	NumTotalKmersInGenomeSketch      uint64
	ScaleFactor                      uint64
	NumExclusiveKmers                uint64
	NumMatches                       int
	AcceptanceThresholdWithCoverage  float64
	ActualConfidenceWithCoverage     float64
	AltConfidenceMutRateWithCoverage float64
	NumExclusiveKmersInSampleSketch  uint64
	NumTotalKmersInSampleSketch      uint64
	MinCoverage                      float64
	InSampleEst                      bool
}

// ValidateCoverageList rejects coverage values outside [0, 1].
func ValidateCoverageList(list []float64) error {
	for _, c := range list {
		if c < 0 || c > 1 {
			return fmt.Errorf("one of the values in the min_coverage list you provided (%v) is not between 0 and 1", c)
		}
	}
	if len(list) == 0 {
		return fmt.Errorf("min_coverage list must not be empty")
	}
	return nil
}

// NormalizeCoverageList deduplicates and sorts the coverage list in
// descending order, matching the original run script.
func NormalizeCoverageList(list []float64) []float64 {
	seen := make(map[float64]bool, len(list))
	var out []float64
	for _, c := range list {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}

// NonMutationProb returns the probability that a single k-mer survives
// unmutated at the ANI boundary: aniThresh^k.
func NonMutationProb(aniThresh float64, ksize int) float64 {
	return math.Pow(aniThresh, float64(ksize))
}

// AcceptanceThreshold returns the smallest integer t in [0, nu] such that
// P(Binomial(nu, p) <= t) >= 1 - significance. A genome observed with at
// least t matches cannot be ruled out as present with the requested
// confidence.
func AcceptanceThreshold(nu int, p, significance float64) int {
	if nu <= 0 {
		return 0
	}
	q := 1 - significance
	b := distuv.Binomial{N: float64(nu), P: p}
	lo, hi := 0, nu
	for lo < hi {
		mid := (lo + hi) / 2
		if b.CDF(float64(mid)) >= q {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// ActualConfidence returns P(Binomial(nu, p) >= t): the probability that a
// genome genuinely present at the ANI boundary clears the threshold.
func ActualConfidence(nu, t int, p float64) float64 {
	if nu <= 0 || t <= 0 {
		return 1
	}
	b := distuv.Binomial{N: float64(nu), P: p}
	return 1 - b.CDF(float64(t-1))
}

// AltMutRate returns the alternative per-base mutation rate at which the
// expected match count equals the threshold: 1 - (t/nu)^(1/k).
func AltMutRate(nu, t, ksize int) float64 {
	if nu <= 0 || t <= 0 {
		return 1
	}
	return 1 - math.Pow(float64(t)/float64(nu), 1/float64(ksize))
}

// inSample applies the original decision predicate: declared present when
// the observed matches reach a nonzero threshold.
func inSample(matches int, threshold float64) bool {
	return float64(matches) >= threshold && matches != 0 && threshold != 0
}

// ApplyCoverage rescales results to a coverage level in the original's
// manner: threshold and confidence columns are multiplied by the coverage
// and the presence call re-evaluated.
func ApplyCoverage(results []Result, coverage float64) []Result {
	out := make([]Result, len(results))
	for i, r := range results {
		r.MinCoverage = coverage
		r.AcceptanceThresholdWithCoverage *= coverage
		r.ActualConfidenceWithCoverage *= coverage
		r.AltConfidenceMutRateWithCoverage *= coverage
		r.InSampleEst = inSample(r.NumMatches, r.AcceptanceThresholdWithCoverage)
		out[i] = r
	}
	return out
}
