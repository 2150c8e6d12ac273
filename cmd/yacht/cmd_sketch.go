package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kodh49/YACHT/internal/sig"
	"github.com/kodh49/YACHT/internal/sketch"
)

var (
	sketchKsize  int
	sketchScale  uint64
	sketchName   string
	sketchOutput string
)

// sketchCmd builds FracMinHash sketches from FASTA files
var sketchCmd = &cobra.Command{
	Use:   "sketch [fasta-file...]",
	Short: "Build FracMinHash sketches from FASTA files",
	Long: `Reads one or more FASTA files (optionally gzip-compressed) and writes
their FracMinHash sketches.

With a single input and a .sig output the sketch is written as plain
JSON; a .sig.zip output produces a zip collection suitable as a
reference for training.

Examples:
  yacht sketch --name sample -o sample.sig sample.fa.gz
  yacht sketch -o refs.sig.zip genomes/*.fa`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSketch,
}

func init() {
	sketchCmd.Flags().IntVar(&sketchKsize, "ksize", 0, "K-mer size (default from settings)")
	sketchCmd.Flags().Uint64Var(&sketchScale, "scale", 0, "Sketch scale factor (default from settings)")
	sketchCmd.Flags().StringVar(&sketchName, "name", "", "Sketch name (default: input file basename)")
	sketchCmd.Flags().StringVarP(&sketchOutput, "output", "o", "", "Output path, .sig or .sig.zip (required)")
	sketchCmd.MarkFlagRequired("output")
}

func runSketch(cmd *cobra.Command, args []string) error {
	ksize := sketchKsize
	if ksize == 0 {
		ksize = cfg.Ksize
	}
	scale := sketchScale
	if scale == 0 {
		scale = cfg.Scale
	}
	if sketchName != "" && len(args) > 1 {
		return fmt.Errorf("--name applies to a single input, got %d", len(args))
	}

	sigs := make([]sig.Signature, 0, len(args))
	for _, path := range args {
		logger.Info("Sketching input",
			zap.String("file", path),
			zap.Int("ksize", ksize),
			zap.Uint64("scale", scale))
		s, err := sketch.FromFile(path, ksize, scale)
		if err != nil {
			return fmt.Errorf("sketching %s: %w", path, err)
		}
		name := sketchName
		if name == "" {
			name = sketchBasename(path)
		}
		sigs = append(sigs, sig.FromSketch(s, name, path))
		logger.Debug("Sketch built", zap.String("name", name), zap.Int("hashes", s.Len()))
	}

	write := sig.Save
	if strings.HasSuffix(sketchOutput, ".zip") {
		write = sig.SaveZip
	}
	if err := write(sketchOutput, sigs); err != nil {
		return fmt.Errorf("writing %s: %w", sketchOutput, err)
	}
	fmt.Printf("Wrote %d sketch(es) to %s\n", len(sigs), sketchOutput)
	return nil
}

// sketchBasename strips the extension chain (.fa.gz, .fasta, ...) from a path.
func sketchBasename(path string) string {
	base := filepath.Base(path)
	for {
		ext := filepath.Ext(base)
		switch strings.ToLower(ext) {
		case ".gz", ".fa", ".fasta", ".fna", ".sig":
			base = strings.TrimSuffix(base, ext)
		default:
			return base
		}
	}
}
