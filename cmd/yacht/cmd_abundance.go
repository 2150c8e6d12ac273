package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kodh49/YACHT/internal/abundance"
	"github.com/kodh49/YACHT/internal/reference"
	"github.com/kodh49/YACHT/internal/report"
	"github.com/kodh49/YACHT/internal/sig"
	"github.com/kodh49/YACHT/internal/store"
)

var (
	abundJSON       string
	abundSampleFile string
	abundW          float64
	abundOutFile    string
	abundOutDir     string
)

// abundanceCmd estimates relative organism abundances
var abundanceCmd = &cobra.Command{
	Use:   "abundance",
	Short: "Estimate relative organism abundances by linear programming",
	Long: `Solves a weighted L1-regression linear program that explains the sample's
k-mer abundances as a nonnegative combination of reference genomes. The
weight w trades off unexplained sample k-mers against spurious genome
k-mers; larger w penalizes unexplained sample mass more.

Example:
  yacht abundance --json gtdb_ani0.95_config.json --sample-file sample.sig --w 100 --outfile abundances.csv`,
	Args: cobra.NoArgs,
	RunE: runAbundance,
}

func init() {
	abundanceCmd.Flags().StringVar(&abundJSON, "json", "", "Training config JSON produced by yacht train (required)")
	abundanceCmd.Flags().StringVar(&abundSampleFile, "sample-file", "", "Sample signature file, .sig or .sig.zip (required)")
	abundanceCmd.Flags().Float64Var(&abundW, "w", 100, "False-positive weight in the LP objective")
	abundanceCmd.Flags().StringVar(&abundOutFile, "outfile", "abundances.csv", "Output CSV filename")
	abundanceCmd.Flags().StringVar(&abundOutDir, "outdir", ".", "Output directory")
	abundanceCmd.MarkFlagRequired("json")
	abundanceCmd.MarkFlagRequired("sample-file")
}

func runAbundance(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	trainCfg, err := reference.LoadTrainingConfig(abundJSON)
	if err != nil {
		return err
	}
	db, err := store.Open(trainCfg.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	sample, err := sig.LoadSample(abundSampleFile, trainCfg.Ksize)
	if err != nil {
		return err
	}

	logger.Info("Recovering abundances",
		zap.String("sample_file", abundSampleFile),
		zap.Float64("w", abundW))
	estimates, err := abundance.RecoverFromStore(ctx, db, sample, abundW, logger)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(abundOutDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	outPath := filepath.Join(abundOutDir, abundOutFile)
	names := make([]string, len(estimates))
	values := make([]float64, len(estimates))
	for i, e := range estimates {
		names[i] = e.OrganismName
		values[i] = e.Abundance
	}
	if err := report.WriteAbundanceCSV(outPath, names, values); err != nil {
		return err
	}

	meta := runMetadata{
		Command:        "abundance",
		TrainingConfig: abundJSON,
		SampleFile:     abundSampleFile,
		W:              abundW,
		Output:         outPath,
	}
	if err := writeRunMetadata(abundOutDir, meta); err != nil {
		return err
	}

	logger.Info("Abundance recovery complete",
		zap.Int("organisms", len(estimates)),
		zap.String("output", outPath))
	fmt.Printf("Wrote abundance estimates for %d organisms to %s\n", len(estimates), outPath)
	return nil
}
