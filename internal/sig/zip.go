package sig

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
)

const manifestName = "SOURMASH-MANIFEST.csv"

// manifestHeader mirrors the sourmash collection manifest columns.
var manifestHeader = []string{
	"internal_location", "md5", "md5short", "ksize", "moltype",
	"num", "scaled", "n_hashes", "with_abundance", "name", "filename",
}

// Load reads signatures from a path, dispatching on extension:
// .sig.zip collections, .sig.gz gzipped JSON, and plain .sig JSON.
func Load(p string) ([]Signature, error) {
	switch {
	case strings.HasSuffix(p, ".zip"):
		return LoadZip(p)
	case strings.HasSuffix(p, ".gz"):
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", p, err)
		}
		defer gz.Close()
		data, err := io.ReadAll(gz)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		return decode(data)
	default:
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		return decode(data)
	}
}

// LoadZip reads a .sig.zip collection. Members listed in the manifest are
// loaded in manifest order; without a manifest, every .sig/.sig.gz member is
// scanned.
func LoadZip(p string) ([]Signature, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("opening collection %s: %w", p, err)
	}
	defer zr.Close()

	members := map[string]*zip.File{}
	var manifest *zip.File
	for _, f := range zr.File {
		if path.Base(f.Name) == manifestName {
			manifest = f
			continue
		}
		members[f.Name] = f
	}

	var order []string
	if manifest != nil {
		order, err = manifestLocations(manifest)
		if err != nil {
			return nil, fmt.Errorf("collection %s: %w", p, err)
		}
	} else {
		for name := range members {
			if strings.HasSuffix(name, ".sig") || strings.HasSuffix(name, ".sig.gz") {
				order = append(order, name)
			}
		}
	}

	var sigs []Signature
	for _, loc := range order {
		f, ok := members[loc]
		if !ok {
			return nil, fmt.Errorf("collection %s: manifest entry %q not found in archive", p, loc)
		}
		got, err := readZipMember(f)
		if err != nil {
			return nil, fmt.Errorf("collection %s member %s: %w", p, loc, err)
		}
		sigs = append(sigs, got...)
	}
	if len(sigs) == 0 {
		return nil, fmt.Errorf("collection %s: %w", p, ErrNoSignatures)
	}
	return sigs, nil
}

// manifestLocations returns the internal_location column of the manifest,
// de-duplicated but order-preserving (one signature can span manifest rows
// when it holds several ksizes).
func manifestLocations(f *zip.File) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	seen := map[string]bool{}
	var out []string
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		// Skip the sourmash version comment line and the header row.
		if strings.HasPrefix(row[0], "#") || row[0] == "internal_location" {
			continue
		}
		loc := row[0]
		if !seen[loc] {
			seen[loc] = true
			out = append(out, loc)
		}
	}
	return out, nil
}

func readZipMember(f *zip.File) ([]Signature, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(f.Name, ".gz") {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		if data, err = io.ReadAll(gz); err != nil {
			return nil, err
		}
	}
	return decode(data)
}

// Save writes signatures to a plain JSON .sig file.
func Save(p string, sigs []Signature) error {
	data, err := encode(sigs)
	if err != nil {
		return fmt.Errorf("encoding signatures: %w", err)
	}
	return os.WriteFile(p, data, 0644)
}

// SaveZip writes a .sig.zip collection with a manifest, one gzipped member
// per signature.
func SaveZip(p string, sigs []Signature) error {
	out, err := os.Create(p)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	var manifestRows [][]string
	for i, sg := range sigs {
		loc := fmt.Sprintf("signatures/%s.sig.gz", memberID(sg, i))
		data, err := encode([]Signature{sg})
		if err != nil {
			return fmt.Errorf("encoding signature %q: %w", sg.Name, err)
		}

		w, err := zw.CreateHeader(&zip.FileHeader{Name: loc, Method: zip.Store})
		if err != nil {
			return err
		}
		gz := gzip.NewWriter(w)
		if _, err := gz.Write(data); err != nil {
			return err
		}
		if err := gz.Close(); err != nil {
			return err
		}

		for _, rec := range sg.Signatures {
			withAbund := "0"
			if len(rec.Abundances) > 0 {
				withAbund = "1"
			}
			manifestRows = append(manifestRows, []string{
				loc,
				rec.Md5sum,
				shortMd5(rec.Md5sum),
				strconv.Itoa(rec.Ksize),
				"DNA",
				strconv.Itoa(rec.Num),
				strconv.FormatUint(scaleForMaxHash(rec.MaxHash), 10),
				strconv.Itoa(len(rec.Mins)),
				withAbund,
				sg.Name,
				sg.Filename,
			})
		}
	}

	mw, err := zw.Create(manifestName)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(mw)
	if err := cw.Write(manifestHeader); err != nil {
		return err
	}
	if err := cw.WriteAll(manifestRows); err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing %s: %w", p, err)
	}
	return nil
}

// memberID yields a unique archive member name. The index suffix keeps
// duplicate sketches (identical md5) from colliding on one member.
func memberID(sg Signature, idx int) string {
	if len(sg.Signatures) > 0 && sg.Signatures[0].Md5sum != "" {
		return fmt.Sprintf("%s.%d", sg.Signatures[0].Md5sum, idx)
	}
	return fmt.Sprintf("sig%04d", idx)
}

func shortMd5(md5 string) string {
	if len(md5) > 8 {
		return md5[:8]
	}
	return md5
}

// LoadSample loads one sketch at the given ksize from a sample signature
// file. Exactly one matching sketch is expected.
func LoadSample(p string, ksize int) (*NamedSketch, error) {
	sigs, err := Load(p)
	if err != nil {
		return nil, err
	}
	named, err := SelectKsize(sigs, ksize)
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", p, err)
	}
	if len(named) > 1 {
		return nil, fmt.Errorf("sample %s: expected a single sketch at ksize %d, found %d", p, ksize, len(named))
	}
	ns := named[0]
	if ns.Name == "" {
		ns.Name = path.Base(p)
	}
	return &ns, nil
}
