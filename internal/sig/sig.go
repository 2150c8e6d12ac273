// Package sig reads and writes sourmash-compatible signature files: plain
// JSON .sig files, gzipped .sig.gz files, and .sig.zip collections carrying a
// SOURMASH-MANIFEST.csv. Only DNA minhash sketches are supported.
package sig

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/kodh49/YACHT/internal/sketch"
)

// Errors callers branch on.
var (
	ErrKsizeNotFound = errors.New("no sketch with requested ksize")
	ErrNoSignatures  = errors.New("file contains no signatures")
)

// Record is one minhash sketch inside a signature, in sourmash's JSON shape.
type Record struct {
	Num        int      `json:"num"`
	Ksize      int      `json:"ksize"`
	Seed       uint32   `json:"seed"`
	MaxHash    uint64   `json:"max_hash"`
	Mins       []uint64 `json:"mins"`
	Abundances []uint64 `json:"abundances,omitempty"`
	Md5sum     string   `json:"md5sum"`
	Molecule   string   `json:"molecule"`
}

// Signature is a sourmash signature: metadata plus one or more sketches.
type Signature struct {
	Class        string   `json:"class"`
	Email        string   `json:"email"`
	HashFunction string   `json:"hash_function"`
	Filename     string   `json:"filename"`
	Name         string   `json:"name"`
	License      string   `json:"license"`
	Signatures   []Record `json:"signatures"`
	Version      float64  `json:"version"`
}

// NamedSketch pairs a decoded sketch with its signature identity.
type NamedSketch struct {
	Name     string
	Filename string
	Md5      string
	Sketch   *sketch.Sketch
}

// Md5sum computes the sourmash sketch digest: md5 over the decimal ksize
// followed by each min in order.
func Md5sum(ksize int, mins []uint64) string {
	h := md5.New()
	h.Write([]byte(strconv.Itoa(ksize)))
	for _, m := range mins {
		h.Write([]byte(strconv.FormatUint(m, 10)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// maxHashForScale returns floor(2^64 / scale).
func maxHashForScale(scale uint64) uint64 {
	if scale <= 1 {
		return math.MaxUint64
	}
	return math.MaxUint64 / scale
}

// scaleForMaxHash inverts maxHashForScale.
func scaleForMaxHash(maxHash uint64) uint64 {
	if maxHash == 0 || maxHash == math.MaxUint64 {
		return 1
	}
	return uint64(math.Round(math.Exp2(64) / float64(maxHash)))
}

// FromSketch wraps a sketch in a single-record signature.
func FromSketch(s *sketch.Sketch, name, filename string) Signature {
	mins := s.Hashes()
	abund := make([]uint64, len(mins))
	for i, m := range mins {
		abund[i] = s.Abundance(m)
	}
	rec := Record{
		Num:        0,
		Ksize:      s.Ksize,
		Seed:       s.Seed,
		MaxHash:    maxHashForScale(s.Scale),
		Mins:       mins,
		Abundances: abund,
		Md5sum:     Md5sum(s.Ksize, mins),
		Molecule:   "dna",
	}
	return Signature{
		Class:        "sourmash_signature",
		HashFunction: "0.murmur64",
		Filename:     filename,
		Name:         name,
		License:      "CC0",
		Signatures:   []Record{rec},
		Version:      0.4,
	}
}

// ToSketch decodes a record into a sketch.
func (r Record) ToSketch() (*sketch.Sketch, error) {
	if r.Num != 0 {
		return nil, fmt.Errorf("num-minhash sketches are not supported (num=%d); only scaled sketches", r.Num)
	}
	if len(r.Abundances) != 0 && len(r.Abundances) != len(r.Mins) {
		return nil, fmt.Errorf("abundance track length %d does not match %d mins", len(r.Abundances), len(r.Mins))
	}
	s := sketch.New(r.Ksize, scaleForMaxHash(r.MaxHash))
	for i, m := range r.Mins {
		a := uint64(1)
		if len(r.Abundances) > 0 {
			a = r.Abundances[i]
		}
		s.AddWithAbundance(m, a)
	}
	return s, nil
}

// SelectKsize extracts every sketch with the given ksize from sigs.
// Returns ErrKsizeNotFound if no signature carries one.
func SelectKsize(sigs []Signature, ksize int) ([]NamedSketch, error) {
	var out []NamedSketch
	for _, sg := range sigs {
		for _, rec := range sg.Signatures {
			if rec.Ksize != ksize {
				continue
			}
			sk, err := rec.ToSketch()
			if err != nil {
				return nil, fmt.Errorf("signature %q: %w", sg.Name, err)
			}
			out = append(out, NamedSketch{
				Name:     sg.Name,
				Filename: sg.Filename,
				Md5:      rec.Md5sum,
				Sketch:   sk,
			})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: ksize=%d", ErrKsizeNotFound, ksize)
	}
	return out, nil
}

// decode parses the JSON body of a .sig file.
func decode(data []byte) ([]Signature, error) {
	var sigs []Signature
	if err := json.Unmarshal(data, &sigs); err != nil {
		// Some emitters write a single object instead of an array.
		var one Signature
		if err2 := json.Unmarshal(data, &one); err2 != nil {
			return nil, fmt.Errorf("parsing signature JSON: %w", err)
		}
		sigs = []Signature{one}
	}
	if len(sigs) == 0 {
		return nil, ErrNoSignatures
	}
	return sigs, nil
}

// encode renders signatures as sourmash JSON.
func encode(sigs []Signature) ([]byte, error) {
	return json.Marshal(sigs)
}
