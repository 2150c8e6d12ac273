// Package reference builds trained reference databases from sketch
// collections: it removes reference genomes that are mutually
// indistinguishable at the requested ANI threshold, computes each kept
// genome's exclusive hash set, and persists the result for the run and
// abundance stages.
package reference

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kodh49/YACHT/internal/report"
	"github.com/kodh49/YACHT/internal/sig"
	"github.com/kodh49/YACHT/internal/sketch"
	"github.com/kodh49/YACHT/internal/store"
)

// TrainParams control a training run.
type TrainParams struct {
	RefFile    string  // reference collection (.sig.zip, .sig.gz or .sig)
	Ksize      int     // k-mer size to select from the collection
	AniThresh  float64 // genomes above this mutual ANI are deduplicated
	OutPrefix  string  // prefix for all output artifacts
	OutDir     string  // output directory
	NumThreads int     // parallelism for pairwise comparisons
}

// Removed records one genome dropped during deduplication and the kept
// genome that made it redundant.
type Removed struct {
	OrganismName   string
	Representative string
	ANI            float64
}

// TrainResult summarizes a training run.
type TrainResult struct {
	Config       TrainingConfig
	ConfigPath   string
	ManifestPath string
	DatabasePath string
	Kept         []string
	Removed      []Removed
}

// Trainer runs the training pipeline.
type Trainer struct {
	Logger *zap.Logger
}

func (p TrainParams) validate() error {
	if p.RefFile == "" {
		return fmt.Errorf("reference file is required")
	}
	if p.Ksize <= 0 {
		return fmt.Errorf("ksize must be positive, got %d", p.Ksize)
	}
	if p.AniThresh <= 0 || p.AniThresh > 1 {
		return fmt.Errorf("ani_thresh %v is not in (0, 1]", p.AniThresh)
	}
	if p.OutPrefix == "" {
		return fmt.Errorf("output prefix is required")
	}
	return nil
}

// Train executes the full training pipeline and writes the database,
// manifest TSV and config JSON artifacts.
func (t *Trainer) Train(ctx context.Context, params TrainParams) (*TrainResult, error) {
	logger := t.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	if params.NumThreads <= 0 {
		params.NumThreads = 16
	}
	if params.OutDir == "" {
		params.OutDir = "."
	}
	if err := os.MkdirAll(params.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	logger.Info("loading reference sketches",
		zap.String("ref_file", params.RefFile),
		zap.Int("ksize", params.Ksize))
	sigs, err := sig.Load(params.RefFile)
	if err != nil {
		return nil, fmt.Errorf("loading reference collection: %w", err)
	}
	genomes, err := sig.SelectKsize(sigs, params.Ksize)
	if err != nil {
		return nil, err
	}
	if err := checkUniform(genomes); err != nil {
		return nil, err
	}
	scale := genomes[0].Sketch.Scale

	logger.Info("deduplicating reference genomes",
		zap.Int("genomes", len(genomes)),
		zap.Float64("ani_thresh", params.AniThresh))
	kept, removed, err := dedupe(ctx, genomes, params.AniThresh, params.NumThreads)
	if err != nil {
		return nil, err
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("no genomes remain after deduplication at ani_thresh %v", params.AniThresh)
	}
	logger.Info("deduplication complete",
		zap.Int("kept", len(kept)),
		zap.Int("removed", len(removed)))

	exclusive := exclusiveHashes(kept)

	dbPath := filepath.Join(params.OutDir, params.OutPrefix+"_ref.db")
	db, err := store.Create(dbPath, store.Params{
		Ksize:     params.Ksize,
		AniThresh: params.AniThresh,
		Scale:     scale,
	}, logger)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	for i, g := range kept {
		all := make(map[uint64]uint64, g.Sketch.Len())
		for _, h := range g.Sketch.Hashes() {
			all[h] = g.Sketch.Abundance(h)
		}
		rec := store.GenomeRecord{
			OrganismName:   g.Name,
			Md5sum:         g.Md5,
			NumUniqueKmers: uint64(g.Sketch.Len()),
			NumTotalKmers:  sketch.TotalKmers(g.Sketch.MeanAbundance(), g.Sketch.Len(), scale, true),
			ScaleFactor:    scale,
		}
		if _, err := db.AddGenome(ctx, rec, exclusive[i], all); err != nil {
			return nil, err
		}
	}

	manifestPath := filepath.Join(params.OutDir, params.OutPrefix+"_processed_manifest.tsv")
	manifest, err := db.Genomes(ctx)
	if err != nil {
		return nil, err
	}
	if err := report.WriteManifestTSV(manifestPath, manifest); err != nil {
		return nil, err
	}

	intermediateDir := filepath.Join(params.OutDir, params.OutPrefix+"_intermediate_files")
	if err := os.MkdirAll(intermediateDir, 0755); err != nil {
		return nil, fmt.Errorf("creating intermediate directory: %w", err)
	}
	if err := writeRemovedMapping(filepath.Join(intermediateDir, "removed_orgs_to_corr_orgs.tsv"), removed); err != nil {
		return nil, err
	}

	cfg := TrainingConfig{
		ManifestFilePath:     manifestPath,
		DatabasePath:         dbPath,
		IntermediateFilesDir: intermediateDir,
		Ksize:                params.Ksize,
		AniThresh:            params.AniThresh,
		Scale:                scale,
	}
	cfgPath := filepath.Join(params.OutDir, params.OutPrefix+"_config.json")
	if err := cfg.Save(cfgPath); err != nil {
		return nil, err
	}
	logger.Info("training complete", zap.String("config", cfgPath))

	keptNames := make([]string, len(kept))
	for i, g := range kept {
		keptNames[i] = g.Name
	}
	return &TrainResult{
		Config:       cfg,
		ConfigPath:   cfgPath,
		ManifestPath: manifestPath,
		DatabasePath: dbPath,
		Kept:         keptNames,
		Removed:      removed,
	}, nil
}

// checkUniform verifies that every genome sketch shares one scale factor and
// that organism names are unique.
func checkUniform(genomes []sig.NamedSketch) error {
	scale := genomes[0].Sketch.Scale
	seen := make(map[string]bool, len(genomes))
	for _, g := range genomes {
		if g.Sketch.Scale != scale {
			return fmt.Errorf("genome %q has scale factor %d, expected %d; reference sketches must share one scale",
				g.Name, g.Sketch.Scale, scale)
		}
		if seen[g.Name] {
			return fmt.Errorf("duplicate organism name %q in reference collection", g.Name)
		}
		seen[g.Name] = true
	}
	return nil
}

// dedupe greedily keeps genomes in descending sketch-size order, dropping
// any candidate whose ANI against an already-kept genome reaches the
// threshold. Comparisons against the kept set run in parallel.
func dedupe(ctx context.Context, genomes []sig.NamedSketch, aniThresh float64, numThreads int) ([]sig.NamedSketch, []Removed, error) {
	ordered := make([]sig.NamedSketch, len(genomes))
	copy(ordered, genomes)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Sketch.Len() != ordered[j].Sketch.Len() {
			return ordered[i].Sketch.Len() > ordered[j].Sketch.Len()
		}
		return ordered[i].Name < ordered[j].Name
	})

	var kept []sig.NamedSketch
	var removed []Removed
	for _, cand := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		rep, ani, err := closestKept(ctx, cand, kept, numThreads)
		if err != nil {
			return nil, nil, err
		}
		if rep != "" && ani >= aniThresh {
			removed = append(removed, Removed{OrganismName: cand.Name, Representative: rep, ANI: ani})
			continue
		}
		kept = append(kept, cand)
	}
	return kept, removed, nil
}

// closestKept returns the kept genome with the highest mutual ANI to cand.
func closestKept(ctx context.Context, cand sig.NamedSketch, kept []sig.NamedSketch, numThreads int) (string, float64, error) {
	if len(kept) == 0 {
		return "", 0, nil
	}

	var (
		mu      sync.Mutex
		bestANI float64
		bestRep string
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(numThreads)
	for _, k := range kept {
		k := k
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			// Containment is asymmetric; either direction above the
			// threshold makes the pair indistinguishable.
			a1, err := cand.Sketch.ContainmentANI(k.Sketch)
			if err != nil {
				return fmt.Errorf("comparing %q with %q: %w", cand.Name, k.Name, err)
			}
			a2, err := k.Sketch.ContainmentANI(cand.Sketch)
			if err != nil {
				return fmt.Errorf("comparing %q with %q: %w", k.Name, cand.Name, err)
			}
			ani := a1
			if a2 > ani {
				ani = a2
			}
			mu.Lock()
			if ani > bestANI || bestRep == "" {
				bestANI = ani
				bestRep = k.Name
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", 0, err
	}
	return bestRep, bestANI, nil
}

// exclusiveHashes returns, for each kept genome, the hashes appearing in no
// other kept genome.
func exclusiveHashes(kept []sig.NamedSketch) [][]uint64 {
	counts := make(map[uint64]int)
	for _, g := range kept {
		for _, h := range g.Sketch.Hashes() {
			counts[h]++
		}
	}
	out := make([][]uint64, len(kept))
	for i, g := range kept {
		for _, h := range g.Sketch.Hashes() {
			if counts[h] == 1 {
				out[i] = append(out[i], h)
			}
		}
	}
	return out
}

func writeRemovedMapping(path string, removed []Removed) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing removed-genome mapping: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "removed_organism\trepresentative\tani"); err != nil {
		return err
	}
	for _, r := range removed {
		if _, err := fmt.Fprintf(f, "%s\t%s\t%.6f\n", r.OrganismName, r.Representative, r.ANI); err != nil {
			return err
		}
	}
	return nil
}
