package dataset

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

// distBuilder assembles a dataset distribution in memory: nested per-class
// archives, their checksum sidecars and the top-level container.
type distBuilder struct {
	t       *testing.T
	members map[string][]byte
}

func newDistBuilder(t *testing.T) *distBuilder {
	return &distBuilder{t: t, members: make(map[string][]byte)}
}

// addArchive adds a nested archive under classDir holding one CSV table,
// plus its matching checksum sidecar.
func (b *distBuilder) addArchive(classDir, class string, window int, csv string) {
	b.t.Helper()

	blob := tarXZBytes(b.t, map[string]string{TableName(class, window): csv})
	name := ArchiveName(class, window)
	b.members[classDir+"/"+name] = blob

	digest, err := DigestReader(bytes.NewReader(blob))
	require.NoError(b.t, err)
	b.members[classDir+"/"+ChecksumsDir+"/"+name+ChecksumExt] =
		[]byte(digest + "  " + name + "\n")
}

// addRaw adds an arbitrary member, bypassing checksum generation.
func (b *distBuilder) addRaw(name string, blob []byte) {
	b.members[name] = blob
}

// build writes the top-level archive into dir and returns the source dir.
func (b *distBuilder) build(dir string) string {
	b.t.Helper()

	names := make([]string, 0, len(b.members))
	for name := range b.members {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(b.t, err)
	tw := tar.NewWriter(xw)
	for _, name := range names {
		blob := b.members[name]
		require.NoError(b.t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(blob)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write(blob)
		require.NoError(b.t, err)
	}
	require.NoError(b.t, tw.Close())
	require.NoError(b.t, xw.Close())
	require.NoError(b.t, os.WriteFile(filepath.Join(dir, TopLevelArchive), buf.Bytes(), 0o644))
	return dir
}

func TestUnpack(t *testing.T) {
	b := newDistBuilder(t)
	b.addArchive(AttackDirName, "attack", 1, "pkts\n5\n")
	b.addArchive(AttackDirName, "scan", 1, "pkts\n6\n")
	b.addArchive(BenignDirName, ClassBenign, 1, "pkts\n1\n2\n")
	src := b.build(t.TempDir())

	dest := t.TempDir()
	sum, layout, err := Unpack(context.Background(), UnpackOptions{SourceDir: src, DestDir: dest}, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, sum.ArchivesSeen)
	assert.Equal(t, 3, sum.ArchivesVerified)
	assert.Equal(t, 4, sum.ArchivesExtracted)
	assert.Empty(t, sum.Failed)

	got, err := os.ReadFile(filepath.Join(layout.AttackTablesDir(), TableName("attack", 1)))
	require.NoError(t, err)
	assert.Equal(t, "pkts\n5\n", string(got))

	got, err = os.ReadFile(filepath.Join(layout.AttackTablesDir(), TableName("scan", 1)))
	require.NoError(t, err)
	assert.Equal(t, "pkts\n6\n", string(got))

	got, err = os.ReadFile(filepath.Join(layout.BenignTablesDir(), TableName(ClassBenign, 1)))
	require.NoError(t, err)
	assert.Equal(t, "pkts\n1\n2\n", string(got))
}

func TestUnpackChecksumMismatchHalts(t *testing.T) {
	b := newDistBuilder(t)
	b.addArchive(AttackDirName, "attack", 1, "pkts\n5\n")
	b.addArchive(BenignDirName, ClassBenign, 1, "pkts\n1\n")

	// Override the attack sidecar with a digest of different bytes.
	name := ArchiveName("attack", 1)
	wrong, err := DigestReader(bytes.NewReader([]byte("other bytes")))
	require.NoError(t, err)
	b.addRaw(AttackDirName+"/"+ChecksumsDir+"/"+name+ChecksumExt,
		[]byte(wrong+"  "+name+"\n"))
	src := b.build(t.TempDir())

	sum, layout, err := Unpack(context.Background(), UnpackOptions{SourceDir: src, DestDir: t.TempDir()}, nil)
	require.Error(t, err)
	assert.True(t, IsIntegrity(err), "want integrity failure, got %v", err)

	// The failed archive must never reach the extractor.
	_, statErr := os.Stat(filepath.Join(layout.AttackTablesDir(), TableName("attack", 1)))
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, sum.Failed)
}

func TestUnpackMissingChecksumHalts(t *testing.T) {
	b := newDistBuilder(t)
	b.addArchive(AttackDirName, "attack", 1, "pkts\n5\n")
	b.addArchive(BenignDirName, ClassBenign, 1, "pkts\n1\n")

	// An archive with no sidecar at all.
	blob := tarXZBytes(t, map[string]string{TableName("scan", 1): "pkts\n6\n"})
	b.addRaw(AttackDirName+"/"+ArchiveName("scan", 1), blob)
	src := b.build(t.TempDir())

	_, _, err := Unpack(context.Background(), UnpackOptions{SourceDir: src, DestDir: t.TempDir()}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChecksumMissing)
}

func TestUnpackCorruptArchiveContinues(t *testing.T) {
	b := newDistBuilder(t)
	b.addArchive(BenignDirName, ClassBenign, 1, "pkts\n1\n")

	// The sidecar digest matches the corrupt bytes, so verification passes
	// and only extraction fails.
	corrupt := []byte("not an xz stream at all")
	name := ArchiveName("attack", 1)
	digest, err := DigestReader(bytes.NewReader(corrupt))
	require.NoError(t, err)
	b.addRaw(AttackDirName+"/"+name, corrupt)
	b.addRaw(AttackDirName+"/"+ChecksumsDir+"/"+name+ChecksumExt,
		[]byte(digest+"  "+name+"\n"))
	src := b.build(t.TempDir())

	sum, layout, err := Unpack(context.Background(), UnpackOptions{SourceDir: src, DestDir: t.TempDir()}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{name}, sum.Failed)
	assert.Equal(t, 3, sum.ArchivesSeen)
	assert.Equal(t, 2, sum.ArchivesVerified)
	assert.Equal(t, 2, sum.ArchivesExtracted)

	// The benign archive after the corrupt one still extracted.
	_, statErr := os.Stat(filepath.Join(layout.BenignTablesDir(), TableName(ClassBenign, 1)))
	assert.NoError(t, statErr)
}

func TestUnpackIgnoresStrayArchives(t *testing.T) {
	b := newDistBuilder(t)
	b.addArchive(AttackDirName, "attack", 1, "pkts\n5\n")
	b.addArchive(BenignDirName, ClassBenign, 1, "pkts\n1\n")
	b.addRaw(AttackDirName+"/stray.tar.xz", []byte("whatever"))
	src := b.build(t.TempDir())

	sum, _, err := Unpack(context.Background(), UnpackOptions{SourceDir: src, DestDir: t.TempDir()}, nil)
	require.NoError(t, err)

	// Counted as seen, but neither verified nor extracted.
	assert.Equal(t, 4, sum.ArchivesSeen)
	assert.Equal(t, 2, sum.ArchivesVerified)
	assert.Equal(t, 3, sum.ArchivesExtracted)
	assert.Empty(t, sum.Failed)
}

func TestUnpackCanceled(t *testing.T) {
	b := newDistBuilder(t)
	b.addArchive(BenignDirName, ClassBenign, 1, "pkts\n1\n")
	src := b.build(t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Unpack(ctx, UnpackOptions{SourceDir: src, DestDir: t.TempDir()}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnpackMissingTopArchive(t *testing.T) {
	_, _, err := Unpack(context.Background(), UnpackOptions{
		SourceDir: t.TempDir(),
		DestDir:   t.TempDir(),
	}, nil)
	assert.Error(t, err)
}

// tarXZBytes builds a tar.xz archive in memory.
func tarXZBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	tw := tar.NewWriter(xw)
	for _, name := range names {
		body := files[name]
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := io.WriteString(tw, body)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, xw.Close())
	return buf.Bytes()
}
