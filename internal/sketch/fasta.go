package sketch

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// Record is a single FASTA record.
type Record struct {
	Header string // text after '>' up to the first whitespace stripped of description
	Desc   string // full header line without '>'
	Seq    []byte
}

// ReadFASTA parses all records from r. Blank lines are ignored; sequence
// lines are concatenated verbatim.
func ReadFASTA(r io.Reader) ([]Record, error) {
	var (
		records []Record
		cur     *Record
		seq     bytes.Buffer
	)
	flush := func() {
		if cur != nil {
			cur.Seq = append([]byte(nil), seq.Bytes()...)
			records = append(records, *cur)
			seq.Reset()
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r\n")
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, ">") {
			flush()
			desc := strings.TrimPrefix(text, ">")
			name := desc
			if i := strings.IndexAny(desc, " \t"); i >= 0 {
				name = desc[:i]
			}
			cur = &Record{Header: name, Desc: desc}
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("line %d: sequence data before first header", line)
		}
		seq.WriteString(text)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading fasta: %w", err)
	}
	flush()
	return records, nil
}

// openMaybeGzip opens a file, transparently decompressing .gz inputs.
func openMaybeGzip(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening gzip %s: %w", path, err)
	}
	return &gzipReadCloser{gz: gz, f: f}, nil
}

type gzipReadCloser struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipReadCloser) Close() error {
	gzErr := g.gz.Close()
	if err := g.f.Close(); err != nil {
		return err
	}
	return gzErr
}

// FromFile sketches every record of a FASTA file (plain or gzipped) into a
// single sketch.
func FromFile(path string, ksize int, scale uint64) (*Sketch, error) {
	rc, err := openMaybeGzip(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer rc.Close()

	records, err := ReadFASTA(rc)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	s := New(ksize, scale)
	for _, rec := range records {
		if err := s.AddSequence(rec.Seq); err != nil {
			return nil, fmt.Errorf("sketching %s record %s: %w", path, rec.Header, err)
		}
	}
	return s, nil
}
