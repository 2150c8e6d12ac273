package store

import "fmt"

// Schema versions:
// v1: meta, genomes, exclusive_hashes, ref_hashes
const currentSchemaVersion = 1

var schema = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS genomes (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		organism_name       TEXT NOT NULL UNIQUE,
		md5sum              TEXT NOT NULL,
		num_unique_kmers    INTEGER NOT NULL,
		num_total_kmers     INTEGER NOT NULL,
		scale_factor        INTEGER NOT NULL,
		num_exclusive_kmers INTEGER NOT NULL
	)`,
	// An exclusive hash belongs to exactly one genome.
	`CREATE TABLE IF NOT EXISTS exclusive_hashes (
		hash      INTEGER PRIMARY KEY,
		genome_id INTEGER NOT NULL REFERENCES genomes(id)
	)`,
	`CREATE TABLE IF NOT EXISTS ref_hashes (
		hash      INTEGER NOT NULL,
		genome_id INTEGER NOT NULL REFERENCES genomes(id),
		abundance INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (hash, genome_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_exclusive_genome ON exclusive_hashes(genome_id)`,
	`CREATE INDEX IF NOT EXISTS idx_ref_genome ON ref_hashes(genome_id)`,
}

// migrate applies the schema. Statements are idempotent, so re-running on an
// existing database is safe.
func (r *ReferenceDB) migrate() error {
	for _, stmt := range schema {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
