package sketch

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFASTA(t *testing.T) {
	input := ">seq1 first genome\nACGT\nACGT\n\n>seq2\nTTTT\n"
	records, err := ReadFASTA(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "seq1", records[0].Header)
	assert.Equal(t, "seq1 first genome", records[0].Desc)
	assert.Equal(t, "ACGTACGT", string(records[0].Seq))

	assert.Equal(t, "seq2", records[1].Header)
	assert.Equal(t, "TTTT", string(records[1].Seq))
}

func TestReadFASTASequenceBeforeHeader(t *testing.T) {
	_, err := ReadFASTA(strings.NewReader("ACGT\n>seq1\nACGT\n"))
	assert.Error(t, err)
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genome.fasta")
	require.NoError(t, os.WriteFile(path, []byte(">g\nACGTACGTACGTACGTACGT\n"), 0644))

	s, err := FromFile(path, 7, 1)
	require.NoError(t, err)
	assert.Greater(t, s.Len(), 0)
}

func TestFromFileGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genome.fasta.gz")

	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(">g\nACGTACGTACGTACGTACGT\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	s, err := FromFile(path, 7, 1)
	require.NoError(t, err)

	plain := New(7, uint64(1))
	require.NoError(t, plain.AddSequence([]byte("ACGTACGTACGTACGTACGT")))
	assert.Equal(t, plain.Len(), s.Len())
}

func TestFromFileMissing(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "absent.fasta"), 7, 1)
	assert.Error(t, err)
}
