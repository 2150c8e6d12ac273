package hypothesis

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kodh49/YACHT/internal/sig"
	"github.com/kodh49/YACHT/internal/sketch"
	"github.com/kodh49/YACHT/internal/store"
)

// CheckScaleFactors errors when the sample scale factor differs from any
// genome's, reproducing the original diagnostic.
func CheckScaleFactors(sampleScale uint64, genomes []store.GenomeRecord) error {
	var diffs []string
	for _, g := range genomes {
		if g.ScaleFactor != sampleScale {
			diffs = append(diffs, g.OrganismName)
		}
	}
	if len(diffs) > 0 {
		return fmt.Errorf("sample scale factor does not equal genome scale factor for organism %s and %d others",
			diffs[0], len(diffs)-1)
	}
	return nil
}

// Recover computes the baseline (coverage 1) recovery result for every
// genome in the reference database against the sample sketch. Per-genome
// statistics are computed on a bounded worker pool.
func Recover(ctx context.Context, db *store.ReferenceDB, sample *sig.NamedSketch, params Params, logger *zap.Logger) ([]Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if params.NumThreads <= 0 {
		params.NumThreads = 16
	}
	if params.Significance <= 0 || params.Significance >= 1 {
		return nil, fmt.Errorf("significance %v is not in (0, 1)", params.Significance)
	}

	refParams := db.Params()
	genomes, err := db.Genomes(ctx)
	if err != nil {
		return nil, err
	}
	if err := CheckScaleFactors(sample.Sketch.Scale, genomes); err != nil {
		return nil, err
	}

	sampleSet := make(map[uint64]bool, sample.Sketch.Len())
	for _, h := range sample.Sketch.Hashes() {
		sampleSet[h] = true
	}
	counts, err := db.MatchCounts(ctx, sampleSet)
	if err != nil {
		return nil, err
	}

	sampleHashes := uint64(sample.Sketch.Len())
	sampleTotal := sketch.TotalKmers(sample.Sketch.MeanAbundance(), sample.Sketch.Len(), sample.Sketch.Scale, false)
	p := NonMutationProb(refParams.AniThresh, refParams.Ksize)

	logger.Info("computing hypothesis recovery",
		zap.Int("genomes", len(genomes)),
		zap.Uint64("sample_hashes", sampleHashes),
		zap.Float64("non_mutation_prob", p),
		zap.Int("num_threads", params.NumThreads))

	results := make([]Result, len(genomes))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(params.NumThreads)
	for i, rec := range genomes {
		i, rec := i, rec
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			nu := int(rec.NumExclusiveKmers)
			matches := counts[rec.ID]
			t := AcceptanceThreshold(nu, p, params.Significance)
			r := Result{
				OrganismName:                     rec.OrganismName,
				NumUniqueKmersInGenomeSketch:     rec.NumUniqueKmers,
				NumTotalKmersInGenomeSketch:      rec.NumTotalKmers,
				ScaleFactor:                      rec.ScaleFactor,
				NumExclusiveKmers:                rec.NumExclusiveKmers,
				NumMatches:                       matches,
				AcceptanceThresholdWithCoverage:  float64(t),
				ActualConfidenceWithCoverage:     ActualConfidence(nu, t, p),
				AltConfidenceMutRateWithCoverage: AltMutRate(nu, t, refParams.Ksize),
				NumExclusiveKmersInSampleSketch:  sampleHashes,
				NumTotalKmersInSampleSketch:      sampleTotal,
				MinCoverage:                      1,
				InSampleEst:                      inSample(matches, float64(t)),
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
