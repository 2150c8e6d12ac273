// Package store persists trained reference databases in SQLite. A database
// holds the deduplicated genome manifest, each genome's exclusive hash set
// (the basis of the presence test), and the full hash-to-genome incidence
// used for abundance estimation.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrSchemaVersion is returned when opening a database written by an
// incompatible version of the tool.
var ErrSchemaVersion = errors.New("unsupported reference database schema version")

// Params are the training parameters baked into a reference database.
type Params struct {
	Ksize     int
	AniThresh float64
	Scale     uint64
}

// GenomeRecord is one manifest row of the trained reference.
type GenomeRecord struct {
	ID                int64
	OrganismName      string
	Md5sum            string
	NumUniqueKmers    uint64
	NumTotalKmers     uint64
	ScaleFactor       uint64
	NumExclusiveKmers uint64
}

// ReferenceDB wraps the SQLite handle for a trained reference database.
type ReferenceDB struct {
	db     *sql.DB
	path   string
	params Params
	logger *zap.Logger
}

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Create initializes a new reference database at path, replacing any
// existing file.
func Create(path string, params Params, logger *zap.Logger) (*ReferenceDB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("replacing existing database: %w", err)
	}

	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	r := &ReferenceDB{db: db, path: path, params: params, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := r.writeMeta(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("created reference database",
		zap.String("path", path),
		zap.Int("ksize", params.Ksize),
		zap.Float64("ani_thresh", params.AniThresh),
		zap.Uint64("scale", params.Scale))
	return r, nil
}

// Open opens an existing reference database and loads its parameters.
func Open(path string, logger *zap.Logger) (*ReferenceDB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("reference database %s: %w", path, err)
	}
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	r := &ReferenceDB{db: db, path: path, logger: logger}
	if err := r.readMeta(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the underlying handle.
func (r *ReferenceDB) Close() error { return r.db.Close() }

// Path returns the database file path.
func (r *ReferenceDB) Path() string { return r.path }

// Params returns the training parameters stored in the database.
func (r *ReferenceDB) Params() Params { return r.params }

func (r *ReferenceDB) writeMeta() error {
	entries := map[string]string{
		"schema_version": strconv.Itoa(currentSchemaVersion),
		"ksize":          strconv.Itoa(r.params.Ksize),
		"ani_thresh":     strconv.FormatFloat(r.params.AniThresh, 'g', -1, 64),
		"scale":          strconv.FormatUint(r.params.Scale, 10),
	}
	for k, v := range entries {
		if _, err := r.db.Exec(
			"INSERT INTO meta(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			k, v); err != nil {
			return fmt.Errorf("writing meta %s: %w", k, err)
		}
	}
	return nil
}

func (r *ReferenceDB) readMeta() error {
	get := func(key string) (string, error) {
		var v string
		err := r.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&v)
		if err != nil {
			return "", fmt.Errorf("reading meta %s: %w", key, err)
		}
		return v, nil
	}

	version, err := get("schema_version")
	if err != nil {
		return err
	}
	if v, err := strconv.Atoi(version); err != nil || v != currentSchemaVersion {
		return fmt.Errorf("%w: have %s, want %d", ErrSchemaVersion, version, currentSchemaVersion)
	}

	ksize, err := get("ksize")
	if err != nil {
		return err
	}
	if r.params.Ksize, err = strconv.Atoi(ksize); err != nil {
		return fmt.Errorf("parsing meta ksize: %w", err)
	}
	ani, err := get("ani_thresh")
	if err != nil {
		return err
	}
	if r.params.AniThresh, err = strconv.ParseFloat(ani, 64); err != nil {
		return fmt.Errorf("parsing meta ani_thresh: %w", err)
	}
	scale, err := get("scale")
	if err != nil {
		return err
	}
	if r.params.Scale, err = strconv.ParseUint(scale, 10, 64); err != nil {
		return fmt.Errorf("parsing meta scale: %w", err)
	}
	return nil
}

// AddGenome inserts a manifest row together with the genome's exclusive
// hashes and its full (hash, abundance) set, in one transaction.
func (r *ReferenceDB) AddGenome(ctx context.Context, rec GenomeRecord, exclusive []uint64, all map[uint64]uint64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO genomes(organism_name, md5sum, num_unique_kmers, num_total_kmers, scale_factor, num_exclusive_kmers)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		rec.OrganismName, rec.Md5sum, int64(rec.NumUniqueKmers), int64(rec.NumTotalKmers),
		int64(rec.ScaleFactor), int64(len(exclusive)))
	if err != nil {
		return 0, fmt.Errorf("inserting genome %q: %w", rec.OrganismName, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	excStmt, err := tx.PrepareContext(ctx, "INSERT INTO exclusive_hashes(hash, genome_id) VALUES(?, ?)")
	if err != nil {
		return 0, err
	}
	defer excStmt.Close()
	for _, h := range exclusive {
		// Hashes are stored bit-cast to int64; SQLite integers are signed.
		if _, err := excStmt.ExecContext(ctx, int64(h), id); err != nil {
			return 0, fmt.Errorf("inserting exclusive hash for %q: %w", rec.OrganismName, err)
		}
	}

	refStmt, err := tx.PrepareContext(ctx, "INSERT INTO ref_hashes(hash, genome_id, abundance) VALUES(?, ?, ?)")
	if err != nil {
		return 0, err
	}
	defer refStmt.Close()
	for h, a := range all {
		if _, err := refStmt.ExecContext(ctx, int64(h), id, int64(a)); err != nil {
			return 0, fmt.Errorf("inserting reference hash for %q: %w", rec.OrganismName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing genome %q: %w", rec.OrganismName, err)
	}
	return id, nil
}

// Genomes returns the manifest ordered by organism name.
func (r *ReferenceDB) Genomes(ctx context.Context) ([]GenomeRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, organism_name, md5sum, num_unique_kmers, num_total_kmers, scale_factor, num_exclusive_kmers
		 FROM genomes ORDER BY organism_name`)
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}
	defer rows.Close()

	var out []GenomeRecord
	for rows.Next() {
		var rec GenomeRecord
		var unique, total, scale, exclusive int64
		if err := rows.Scan(&rec.ID, &rec.OrganismName, &rec.Md5sum, &unique, &total, &scale, &exclusive); err != nil {
			return nil, err
		}
		rec.NumUniqueKmers = uint64(unique)
		rec.NumTotalKmers = uint64(total)
		rec.ScaleFactor = uint64(scale)
		rec.NumExclusiveKmers = uint64(exclusive)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ExclusiveHashes returns the exclusive hash set of one genome.
func (r *ReferenceDB) ExclusiveHashes(ctx context.Context, genomeID int64) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT hash FROM exclusive_hashes WHERE genome_id = ? ORDER BY hash", genomeID)
	if err != nil {
		return nil, fmt.Errorf("loading exclusive hashes: %w", err)
	}
	defer rows.Close()

	var out []uint64
	for rows.Next() {
		var h int64
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		out = append(out, uint64(h))
	}
	return out, rows.Err()
}

// MatchCounts scans the exclusive hash table once and counts, per genome,
// how many exclusive hashes appear in the sample set.
func (r *ReferenceDB) MatchCounts(ctx context.Context, sample map[uint64]bool) (map[int64]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT hash, genome_id FROM exclusive_hashes")
	if err != nil {
		return nil, fmt.Errorf("scanning exclusive hashes: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var h, id int64
		if err := rows.Scan(&h, &id); err != nil {
			return nil, err
		}
		if sample[uint64(h)] {
			counts[id]++
		}
	}
	return counts, rows.Err()
}

// MatrixEntry marks a nonzero cell of the hash-by-genome incidence matrix.
type MatrixEntry struct {
	Row int // index into the hash list
	Col int // index into the genome list
}

// HashMatrix returns the full reference incidence: the sorted distinct hash
// list, the manifest order of genomes, and the nonzero cells.
func (r *ReferenceDB) HashMatrix(ctx context.Context) ([]uint64, []GenomeRecord, []MatrixEntry, error) {
	genomes, err := r.Genomes(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	colOf := make(map[int64]int, len(genomes))
	for i, g := range genomes {
		colOf[g.ID] = i
	}

	rows, err := r.db.QueryContext(ctx, "SELECT hash, genome_id FROM ref_hashes")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("scanning reference hashes: %w", err)
	}
	defer rows.Close()

	type cell struct {
		hash uint64
		col  int
	}
	var cells []cell
	hashSet := make(map[uint64]bool)
	for rows.Next() {
		var h, id int64
		if err := rows.Scan(&h, &id); err != nil {
			return nil, nil, nil, err
		}
		col, ok := colOf[id]
		if !ok {
			continue
		}
		cells = append(cells, cell{hash: uint64(h), col: col})
		hashSet[uint64(h)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, nil, nil, err
	}

	hashes := make([]uint64, 0, len(hashSet))
	for h := range hashSet {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	rowOf := make(map[uint64]int, len(hashes))
	for i, h := range hashes {
		rowOf[h] = i
	}

	entries := make([]MatrixEntry, len(cells))
	for i, c := range cells {
		entries[i] = MatrixEntry{Row: rowOf[c.hash], Col: c.col}
	}
	return hashes, genomes, entries, nil
}
