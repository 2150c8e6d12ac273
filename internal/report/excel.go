// Package report renders pipeline outputs: the Excel workbook of recovery
// results, the abundance CSV, and the training manifest TSV.
package report

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/kodh49/YACHT/internal/hypothesis"
)

// resultHeader is the column order of every result sheet.
var resultHeader = []interface{}{
	"organism_name",
	"num_unique_kmers_in_genome_sketch",
	"num_total_kmers_in_genome_sketch",
	"scale_factor",
	"num_exclusive_kmers",
	"num_matches",
	"acceptance_threshold_with_coverage",
	"actual_confidence_with_coverage",
	"alt_confidence_mut_rate_with_coverage",
	"num_exclusive_kmers_in_sample_sketch",
	"num_total_kmers_in_sample_sketch",
	"min_coverage",
	"in_sample_est",
}

func resultRow(r hypothesis.Result) []interface{} {
	return []interface{}{
		r.OrganismName,
		r.NumUniqueKmersInGenomeSketch,
		r.NumTotalKmersInGenomeSketch,
		r.ScaleFactor,
		r.NumExclusiveKmers,
		r.NumMatches,
		r.AcceptanceThresholdWithCoverage,
		r.ActualConfidenceWithCoverage,
		r.AltConfidenceMutRateWithCoverage,
		r.NumExclusiveKmersInSampleSketch,
		r.NumTotalKmersInSampleSketch,
		r.MinCoverage,
		r.InSampleEst,
	}
}

// SheetName renders the per-coverage sheet name, e.g. "min_coverage0.5".
func SheetName(coverage float64) string {
	return "min_coverage" + strconv.FormatFloat(coverage, 'g', -1, 64)
}

// ExcelOptions control the workbook layout.
type ExcelOptions struct {
	KeepRaw bool // include a raw_result sheet with the unscaled baseline
	ShowAll bool // keep organisms not called present in the coverage sheets
}

// WriteExcel writes the recovery workbook: an optional raw sheet plus one
// sheet per coverage level, each holding the baseline results rescaled to
// that coverage.
func WriteExcel(path string, baseline []hypothesis.Result, coverages []float64, opts ExcelOptions) error {
	f := excelize.NewFile()
	defer f.Close()

	first := true
	addSheet := func(name string, rows []hypothesis.Result) error {
		if first {
			// Reuse the default sheet for the first table.
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return err
			}
			first = false
		} else if _, err := f.NewSheet(name); err != nil {
			return err
		}
		if err := f.SetSheetRow(name, "A1", &resultHeader); err != nil {
			return err
		}
		for i, r := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return err
			}
			row := resultRow(r)
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				return err
			}
		}
		return nil
	}

	if opts.KeepRaw {
		if err := addSheet("raw_result", baseline); err != nil {
			return fmt.Errorf("writing raw_result sheet: %w", err)
		}
	}
	for _, c := range coverages {
		rows := hypothesis.ApplyCoverage(baseline, c)
		if !opts.ShowAll {
			var kept []hypothesis.Result
			for _, r := range rows {
				if r.InSampleEst {
					kept = append(kept, r)
				}
			}
			rows = kept
		}
		if err := addSheet(SheetName(c), rows); err != nil {
			return fmt.Errorf("writing %s sheet: %w", SheetName(c), err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook %s: %w", path, err)
	}
	return nil
}
