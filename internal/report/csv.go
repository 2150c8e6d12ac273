package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/kodh49/YACHT/internal/store"
)

// WriteAbundanceCSV writes per-organism abundance estimates with the
// original tool's header.
func WriteAbundanceCSV(path string, names []string, abundances []float64) error {
	if len(names) != len(abundances) {
		return fmt.Errorf("names (%d) and abundances (%d) differ in length", len(names), len(abundances))
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"organism name", "estimated abundance"}); err != nil {
		return err
	}
	for i, name := range names {
		if err := w.Write([]string{name, strconv.FormatFloat(abundances[i], 'g', -1, 64)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// manifestColumns is the training manifest TSV header.
var manifestColumns = []string{
	"organism_name",
	"md5sum",
	"num_unique_kmers_in_genome_sketch",
	"num_total_kmers_in_genome_sketch",
	"genome_scale_factor",
	"num_exclusive_kmers",
}

// WriteManifestTSV writes the processed-genome manifest produced by
// training.
func WriteManifestTSV(path string, genomes []store.GenomeRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'
	if err := w.Write(manifestColumns); err != nil {
		return err
	}
	for _, g := range genomes {
		row := []string{
			g.OrganismName,
			g.Md5sum,
			strconv.FormatUint(g.NumUniqueKmers, 10),
			strconv.FormatUint(g.NumTotalKmers, 10),
			strconv.FormatUint(g.ScaleFactor, 10),
			strconv.FormatUint(g.NumExclusiveKmers, 10),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
