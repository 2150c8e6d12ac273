package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/kodh49/YACHT/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("os/signal.signal_recv"))
}

// testSequence generates a deterministic pseudo-random DNA sequence.
func testSequence(seed uint64, n int) string {
	const bases = "ACGT"
	var sb strings.Builder
	state := seed
	for i := 0; i < n; i++ {
		state = state*6364136223846793005 + 1442695040888963407
		sb.WriteByte(bases[(state>>33)%4])
	}
	return sb.String()
}

func writeFASTA(t *testing.T, path, name, seq string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(">"+name+"\n"+seq+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestCommandWiring(t *testing.T) {
	want := map[string]bool{"sketch": false, "train": false, "run": false, "abundance": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

// Coverage lists take comma-separated or repeated flag form; stray
// positional values must error instead of being silently dropped.
func TestRunCoverageFlagParsing(t *testing.T) {
	defer func() { runMinCoverage = nil }()

	if err := runCmd.ParseFlags([]string{"--min-coverage", "1,0.5,0.1"}); err != nil {
		t.Fatalf("parsing comma-separated coverages: %v", err)
	}
	if want := []float64{1, 0.5, 0.1}; !reflect.DeepEqual(runMinCoverage, want) {
		t.Errorf("parsed coverages %v, want %v", runMinCoverage, want)
	}

	runMinCoverage = nil
	// Snake_case spelling normalizes onto the same flag.
	if err := runCmd.ParseFlags([]string{"--min_coverage", "0.5"}); err != nil {
		t.Fatalf("parsing snake_case flag: %v", err)
	}
	if want := []float64{0.5}; !reflect.DeepEqual(runMinCoverage, want) {
		t.Errorf("parsed coverages %v, want %v", runMinCoverage, want)
	}

	if err := runCmd.ValidateArgs([]string{"0.5", "0.1"}); err == nil {
		t.Error("space-separated coverage values were accepted as positional args")
	}
	if err := trainCmd.ValidateArgs([]string{"extra"}); err == nil {
		t.Error("train accepted a positional arg")
	}
	if err := abundanceCmd.ValidateArgs([]string{"extra"}); err == nil {
		t.Error("abundance accepted a positional arg")
	}
}

// TestPipeline drives sketch, train, run and abundance end to end through
// the command handlers.
func TestPipeline(t *testing.T) {
	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	dir := t.TempDir()

	genomeA := filepath.Join(dir, "genomeA.fa")
	genomeB := filepath.Join(dir, "genomeB.fa")
	sampleFa := filepath.Join(dir, "sample.fa")
	seqA := testSequence(1, 600)
	writeFASTA(t, genomeA, "genomeA", seqA)
	writeFASTA(t, genomeB, "genomeB", testSequence(2, 600))
	// The sample is genome A verbatim.
	writeFASTA(t, sampleFa, "sample", seqA)

	// Sketch references and sample. Scale 1 keeps every k-mer so the tiny
	// test sequences survive sketching.
	refsZip := filepath.Join(dir, "refs.sig.zip")
	sketchKsize, sketchScale, sketchName, sketchOutput = 31, 1, "", refsZip
	defer func() { sketchKsize, sketchScale, sketchName, sketchOutput = 0, 0, "", "" }()
	if err := runSketch(sketchCmd, []string{genomeA, genomeB}); err != nil {
		t.Fatalf("sketch references: %v", err)
	}

	sampleSig := filepath.Join(dir, "sample.sig")
	sketchName, sketchOutput = "sample", sampleSig
	if err := runSketch(sketchCmd, []string{sampleFa}); err != nil {
		t.Fatalf("sketch sample: %v", err)
	}

	// Train.
	trainRefFile, trainKsize, trainAniThresh = refsZip, 31, 0.95
	trainOutPrefix, trainOutDir, trainNumThreads = "test", dir, 2
	defer func() {
		trainRefFile, trainKsize, trainAniThresh = "", 0, 0
		trainOutPrefix, trainOutDir, trainNumThreads = "", ".", 0
	}()
	if err := runTrain(trainCmd, nil); err != nil {
		t.Fatalf("train: %v", err)
	}
	cfgPath := filepath.Join(dir, "test_config.json")
	if _, err := os.Stat(cfgPath); err != nil {
		t.Fatalf("training config missing: %v", err)
	}

	// Run.
	runJSON, runSampleFile = cfgPath, sampleSig
	runSignificance, runMinCoverage = 0.99, []float64{1, 0.5}
	runOutFilename, runOutDir = "result.xlsx", dir
	runKeepRaw, runShowAll, runNumThreads = true, true, 2
	defer func() {
		runJSON, runSampleFile = "", ""
		runSignificance, runMinCoverage = 0, nil
		runOutFilename, runOutDir = "", "."
		runKeepRaw, runShowAll, runNumThreads = false, false, 0
	}()
	if err := runRecovery(runCmd, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "result.xlsx")); err != nil {
		t.Fatalf("excel report missing: %v", err)
	}

	// Abundance.
	abundJSON, abundSampleFile = cfgPath, sampleSig
	abundW, abundOutFile, abundOutDir = 100, "abund.csv", dir
	defer func() {
		abundJSON, abundSampleFile = "", ""
		abundW, abundOutFile, abundOutDir = 100, "abundances.csv", "."
	}()
	if err := runAbundance(abundanceCmd, nil); err != nil {
		t.Fatalf("abundance: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "abund.csv")); err != nil {
		t.Fatalf("abundance csv missing: %v", err)
	}

	// Metadata files were written for both analysis commands.
	meta, err := filepath.Glob(filepath.Join(dir, "*_metadata_*.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(meta) != 2 {
		t.Errorf("expected 2 metadata files, found %d", len(meta))
	}
}
