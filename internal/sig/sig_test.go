package sig

import (
	"archive/zip"
	"compress/gzip"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodh49/YACHT/internal/sketch"
)

func buildSketch(t *testing.T, ksize int, scale uint64, hashes ...uint64) *sketch.Sketch {
	t.Helper()
	s := sketch.New(ksize, scale)
	for _, h := range hashes {
		s.Add(h)
	}
	return s
}

func TestScaleMaxHashRoundTrip(t *testing.T) {
	for _, scale := range []uint64{1, 100, 1000, 100000} {
		if got := scaleForMaxHash(maxHashForScale(scale)); got != scale {
			t.Errorf("scale %d round-tripped to %d", scale, got)
		}
	}
	if maxHashForScale(1) != math.MaxUint64 {
		t.Error("scale=1 should keep every hash")
	}
}

func TestFromSketchToSketchRoundTrip(t *testing.T) {
	s := buildSketch(t, 21, 1000, 5, 9, 2)
	sg := FromSketch(s, "org1", "org1.fa")

	require.Len(t, sg.Signatures, 1)
	rec := sg.Signatures[0]
	assert.Equal(t, []uint64{2, 5, 9}, rec.Mins)
	assert.Equal(t, "0.murmur64", sg.HashFunction)
	assert.Equal(t, Md5sum(21, rec.Mins), rec.Md5sum)

	back, err := rec.ToSketch()
	require.NoError(t, err)
	assert.Equal(t, s.Ksize, back.Ksize)
	assert.Equal(t, s.Scale, back.Scale)
	assert.Equal(t, s.Hashes(), back.Hashes())
}

func TestSelectKsize(t *testing.T) {
	sigA := FromSketch(buildSketch(t, 21, 1000, 1, 2), "a", "a.fa")
	sigB := FromSketch(buildSketch(t, 31, 1000, 3), "b", "b.fa")

	named, err := SelectKsize([]Signature{sigA, sigB}, 31)
	require.NoError(t, err)
	require.Len(t, named, 1)
	assert.Equal(t, "b", named[0].Name)

	_, err = SelectKsize([]Signature{sigA, sigB}, 51)
	assert.True(t, errors.Is(err, ErrKsizeNotFound))
}

func TestSaveLoadSig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "org.sig")
	sg := FromSketch(buildSketch(t, 21, 1000, 10, 20, 30), "org", "org.fa")
	require.NoError(t, Save(p, []Signature{sg}))

	loaded, err := Load(p)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "org", loaded[0].Name)
	assert.Equal(t, []uint64{10, 20, 30}, loaded[0].Signatures[0].Mins)
}

func TestSaveLoadZipCollection(t *testing.T) {
	p := filepath.Join(t.TempDir(), "refs.sig.zip")
	sigs := []Signature{
		FromSketch(buildSketch(t, 21, 1000, 1, 2, 3), "org1", "org1.fa"),
		FromSketch(buildSketch(t, 21, 1000, 4, 5), "org2", "org2.fa"),
	}
	require.NoError(t, SaveZip(p, sigs))

	loaded, err := LoadZip(p)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	names := []string{loaded[0].Name, loaded[1].Name}
	assert.ElementsMatch(t, []string{"org1", "org2"}, names)
}

func TestLoadSample(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "sample.sig")
	sg := FromSketch(buildSketch(t, 31, 1000, 7, 8, 9), "sample", "sample.fa")
	require.NoError(t, Save(p, []Signature{sg}))

	ns, err := LoadSample(p, 31)
	require.NoError(t, err)
	assert.Equal(t, "sample", ns.Name)
	assert.Equal(t, 3, ns.Sketch.Len())

	_, err = LoadSample(p, 21)
	assert.True(t, errors.Is(err, ErrKsizeNotFound))
}

func TestDecodeRejectsEmpty(t *testing.T) {
	_, err := decode([]byte("[]"))
	assert.True(t, errors.Is(err, ErrNoSignatures))
}

// A collection without a SOURMASH-MANIFEST.csv falls back to scanning the
// signatures/ members.
func TestLoadZipWithoutManifest(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bare.sig.zip")
	f, err := os.Create(p)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	writeMember := func(name string, sg Signature, gzipped bool) {
		data, err := encode([]Signature{sg})
		require.NoError(t, err)
		w, err := zw.Create(name)
		require.NoError(t, err)
		if gzipped {
			gz := gzip.NewWriter(w)
			_, err = gz.Write(data)
			require.NoError(t, err)
			require.NoError(t, gz.Close())
		} else {
			_, err = w.Write(data)
			require.NoError(t, err)
		}
	}
	writeMember("signatures/a.sig", FromSketch(buildSketch(t, 21, 1000, 1, 2), "org1", "org1.fa"), false)
	writeMember("signatures/b.sig.gz", FromSketch(buildSketch(t, 21, 1000, 3), "org2", "org2.fa"), true)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	loaded, err := LoadZip(p)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.ElementsMatch(t, []string{"org1", "org2"}, []string{loaded[0].Name, loaded[1].Name})
}

// Two signatures wrapping identical sketches share an md5; both must survive
// a zip round trip.
func TestSaveLoadZipDuplicateMd5(t *testing.T) {
	p := filepath.Join(t.TempDir(), "dup.sig.zip")
	sigs := []Signature{
		FromSketch(buildSketch(t, 21, 1000, 1, 2, 3), "copy1", "copy1.fa"),
		FromSketch(buildSketch(t, 21, 1000, 1, 2, 3), "copy2", "copy2.fa"),
	}
	require.NoError(t, SaveZip(p, sigs))

	loaded, err := LoadZip(p)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.ElementsMatch(t, []string{"copy1", "copy2"}, []string{loaded[0].Name, loaded[1].Name})
}
