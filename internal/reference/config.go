package reference

import (
	"encoding/json"
	"fmt"
	"os"
)

// TrainingConfig is the JSON artifact written by training and consumed by
// the run and abundance stages. The field names follow the contract of the
// original pipeline.
type TrainingConfig struct {
	ManifestFilePath     string  `json:"manifest_file_path"`
	DatabasePath         string  `json:"database_path"`
	IntermediateFilesDir string  `json:"pathogen_detection_intermediate_files_dir"`
	Ksize                int     `json:"ksize"`
	AniThresh            float64 `json:"ani_thresh"`
	Scale                uint64  `json:"scale"`
}

// Save writes the config as indented JSON.
func (c TrainingConfig) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding training config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadTrainingConfig reads a training config and verifies the files it
// points at still exist.
func LoadTrainingConfig(path string) (*TrainingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file %s does not exist; run training first: %w", path, err)
	}
	var c TrainingConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing training config %s: %w", path, err)
	}
	if _, err := os.Stat(c.DatabasePath); err != nil {
		return nil, fmt.Errorf("reference database %s does not exist; check that the config matches the training output: %w", c.DatabasePath, err)
	}
	if _, err := os.Stat(c.ManifestFilePath); err != nil {
		return nil, fmt.Errorf("manifest file %s does not exist; check that the config matches the training output: %w", c.ManifestFilePath, err)
	}
	return &c, nil
}
