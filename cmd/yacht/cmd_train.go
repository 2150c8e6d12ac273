package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kodh49/YACHT/internal/reference"
)

var (
	trainRefFile    string
	trainKsize      int
	trainAniThresh  float64
	trainOutPrefix  string
	trainOutDir     string
	trainNumThreads int
)

// trainCmd preprocesses a reference sketch collection into a database
var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Preprocess reference sketches into a trained database",
	Long: `Deduplicates reference genomes that are indistinguishable at the given
ANI threshold, computes each kept genome's exclusive k-mers, and writes
the reference database, a processed manifest, and a config JSON that the
run and abundance stages consume.

Example:
  yacht train --ref-file gtdb.sig.zip --ksize 31 --ani-thresh 0.95 --out-prefix gtdb_ani0.95`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringVar(&trainRefFile, "ref-file", "", "Reference sketch collection, .sig.zip or .sig (required)")
	trainCmd.Flags().IntVar(&trainKsize, "ksize", 0, "K-mer size to select from the collection (default from settings)")
	trainCmd.Flags().Float64Var(&trainAniThresh, "ani-thresh", 0, "Mutual ANI threshold for deduplication (default from settings)")
	trainCmd.Flags().StringVar(&trainOutPrefix, "out-prefix", "", "Prefix for output artifacts (required)")
	trainCmd.Flags().StringVar(&trainOutDir, "outdir", ".", "Output directory")
	trainCmd.Flags().IntVar(&trainNumThreads, "num-threads", 0, "Worker pool size (default from settings)")
	trainCmd.MarkFlagRequired("ref-file")
	trainCmd.MarkFlagRequired("out-prefix")
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	params := reference.TrainParams{
		RefFile:    trainRefFile,
		Ksize:      trainKsize,
		AniThresh:  trainAniThresh,
		OutPrefix:  trainOutPrefix,
		OutDir:     trainOutDir,
		NumThreads: trainNumThreads,
	}
	if params.Ksize == 0 {
		params.Ksize = cfg.Ksize
	}
	if params.AniThresh == 0 {
		params.AniThresh = cfg.AniThresh
	}
	if params.NumThreads == 0 {
		params.NumThreads = cfg.NumThreads
	}

	trainer := &reference.Trainer{Logger: logger}
	res, err := trainer.Train(ctx, params)
	if err != nil {
		return err
	}

	logger.Info("Training finished",
		zap.Int("kept", len(res.Kept)),
		zap.Int("removed", len(res.Removed)),
		zap.String("database", res.DatabasePath))
	fmt.Printf("Kept %d genomes (%d removed as indistinguishable)\n", len(res.Kept), len(res.Removed))
	fmt.Printf("Config: %s\n", res.ConfigPath)
	return nil
}
