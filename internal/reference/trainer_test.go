package reference

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodh49/YACHT/internal/sig"
	"github.com/kodh49/YACHT/internal/sketch"
	"github.com/kodh49/YACHT/internal/store"
)

func writeCollection(t *testing.T, dir string) string {
	t.Helper()

	build := func(name string, abundance uint64, hashes []uint64) sig.Signature {
		s := sketch.New(31, 1000)
		for _, h := range hashes {
			s.AddWithAbundance(h, abundance)
		}
		return sig.FromSketch(s, name, name+".fa")
	}

	// big and near_dup are indistinguishable at high ANI (near_dup is a
	// subset of big); distinct shares nothing with either and carries an
	// abundance track.
	sigs := []sig.Signature{
		build("big", 1, []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}),
		build("near_dup", 1, []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9}),
		build("distinct", 2, []uint64{100, 101, 102, 103, 104}),
	}
	path := filepath.Join(dir, "refs.sig.zip")
	require.NoError(t, sig.SaveZip(path, sigs))
	return path
}

func TestTrain(t *testing.T) {
	dir := t.TempDir()
	refFile := writeCollection(t, dir)

	trainer := &Trainer{}
	res, err := trainer.Train(context.Background(), TrainParams{
		RefFile:    refFile,
		Ksize:      31,
		AniThresh:  0.95,
		OutPrefix:  "gtdb_test",
		OutDir:     dir,
		NumThreads: 2,
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"big", "distinct"}, res.Kept)
	require.Len(t, res.Removed, 1)
	assert.Equal(t, "near_dup", res.Removed[0].OrganismName)
	assert.Equal(t, "big", res.Removed[0].Representative)
	assert.InDelta(t, 1.0, res.Removed[0].ANI, 1e-12)

	// All artifacts on disk.
	for _, p := range []string{res.ConfigPath, res.ManifestPath, res.DatabasePath} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
	_, err = os.Stat(filepath.Join(res.Config.IntermediateFilesDir, "removed_orgs_to_corr_orgs.tsv"))
	assert.NoError(t, err)

	// Config round-trips and points at valid files.
	cfg, err := LoadTrainingConfig(res.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, 31, cfg.Ksize)
	assert.Equal(t, 0.95, cfg.AniThresh)
	assert.Equal(t, uint64(1000), cfg.Scale)

	// The database holds the kept genomes with fully exclusive hash sets
	// (big and distinct share nothing).
	db, err := store.Open(cfg.DatabasePath, nil)
	require.NoError(t, err)
	defer db.Close()

	genomes, err := db.Genomes(context.Background())
	require.NoError(t, err)
	require.Len(t, genomes, 2)
	byName := map[string]store.GenomeRecord{}
	for _, g := range genomes {
		byName[g.OrganismName] = g
	}
	assert.Equal(t, uint64(10), byName["big"].NumExclusiveKmers)
	assert.Equal(t, uint64(5), byName["distinct"].NumExclusiveKmers)
	assert.Equal(t, uint64(10), byName["big"].NumUniqueKmers)
	assert.Equal(t, uint64(10*1000), byName["big"].NumTotalKmers)
	// Mean abundance 2 doubles the total k-mer estimate.
	assert.Equal(t, uint64(2*5*1000), byName["distinct"].NumTotalKmers)
}

func TestTrainLowThresholdCollapsesNothingDisjoint(t *testing.T) {
	dir := t.TempDir()
	refFile := writeCollection(t, dir)

	// A very low ANI threshold removes near_dup and keeps the disjoint
	// genome: zero containment still gives ANI 0.
	trainer := &Trainer{}
	res, err := trainer.Train(context.Background(), TrainParams{
		RefFile:   refFile,
		Ksize:     31,
		AniThresh: 0.5,
		OutPrefix: "low",
		OutDir:    dir,
	})
	require.NoError(t, err)
	assert.Contains(t, res.Kept, "distinct")
}

func TestTrainValidation(t *testing.T) {
	trainer := &Trainer{}
	_, err := trainer.Train(context.Background(), TrainParams{
		RefFile: "refs.sig.zip", Ksize: 31, AniThresh: 1.5, OutPrefix: "x",
	})
	assert.Error(t, err)

	_, err = trainer.Train(context.Background(), TrainParams{
		Ksize: 31, AniThresh: 0.95, OutPrefix: "x",
	})
	assert.Error(t, err)
}

func TestTrainWrongKsize(t *testing.T) {
	dir := t.TempDir()
	refFile := writeCollection(t, dir)

	trainer := &Trainer{}
	_, err := trainer.Train(context.Background(), TrainParams{
		RefFile: refFile, Ksize: 21, AniThresh: 0.95, OutPrefix: "x", OutDir: dir,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sig.ErrKsizeNotFound)
}

func TestLoadTrainingConfigMissing(t *testing.T) {
	_, err := LoadTrainingConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run training first")
}
