package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/document"
	"github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/vectorindex"
)

func testBundle(t *testing.T, raw, name string) *document.Bundle {
	t.Helper()
	embeddings := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 0}}
	idx, err := vectorindex.Build(embeddings, 3, vectorindex.DefaultOptions())
	require.NoError(t, err)

	hash := document.Hash([]byte(raw))
	chunks := []document.Chunk{
		{Text: "alpha", Metadata: document.ChunkMetadata{Source: name, ChunkID: 0, ChunkSize: 5}},
		{Text: "beta", Metadata: document.ChunkMetadata{Source: name, ChunkID: 1, ChunkSize: 4}},
		{Text: "gamma", Metadata: document.ChunkMetadata{Source: name, ChunkID: 2, ChunkSize: 5, Degraded: true, FailureReason: "input rejected"}},
	}
	return &document.Bundle{
		Document:   document.Document{Name: name, Hash: hash},
		Chunks:     chunks,
		Embeddings: embeddings,
		Index:      idx,
		Model:      "static-3",
		Dimensions: 3,
		CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "embeddings"))
	require.NoError(t, err)
	return s
}

func TestStore_SaveLoad_RoundTrip(t *testing.T) {
	// Given: a saved bundle
	s := openStore(t)
	b := testBundle(t, "lease text", "Lease Agreement.pdf")
	dir, err := s.Save(b)
	require.NoError(t, err)

	// Then: the entry directory is <stem>_<hash> with all artifacts
	assert.Equal(t, "Lease_Agreement_"+b.Document.Hash, filepath.Base(dir))
	for _, f := range []string{IndexFile, DocumentsFile, ManifestFile} {
		assert.FileExists(t, filepath.Join(dir, f))
	}

	// When: it is loaded back
	got, ok := s.Load(b.Document.Hash, "Lease Agreement.pdf")

	// Then: chunks, numeric embeddings and metadata are restored
	require.True(t, ok)
	assert.Equal(t, b.Chunks, got.Chunks)
	assert.Equal(t, b.Embeddings, got.Embeddings)
	assert.Equal(t, b.Document, got.Document)
	assert.Equal(t, "static-3", got.Model)
	assert.Equal(t, 3, got.Index.Count())
	assert.True(t, b.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, 1, got.DegradedCount())
}

func TestStore_Load_HashIsIdentity(t *testing.T) {
	// Given: a bundle saved under one name
	s := openStore(t)
	b := testBundle(t, "same bytes", "a.pdf")
	_, err := s.Save(b)
	require.NoError(t, err)

	// When: the same bytes are looked up under another name
	got, ok := s.Load(b.Document.Hash, "renamed.pdf")

	// Then: the entry is still found
	require.True(t, ok)
	assert.Equal(t, "a.pdf", got.Document.Name)
}

func TestStore_Load_Miss(t *testing.T) {
	s := openStore(t)

	_, ok := s.Load(document.Hash([]byte("never saved")), "x.pdf")
	assert.False(t, ok)

	_, ok = s.Load("../../etc", "x.pdf")
	assert.False(t, ok, "malformed hashes never touch the filesystem")
}

func TestStore_Load_CorruptArtifactsAreMisses(t *testing.T) {
	for _, artifact := range []string{IndexFile, DocumentsFile, ManifestFile} {
		t.Run(artifact, func(t *testing.T) {
			// Given: a saved entry with one artifact damaged
			s := openStore(t)
			b := testBundle(t, "corrupt me", "doc.txt")
			dir, err := s.Save(b)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(filepath.Join(dir, artifact), []byte("{garbage"), 0644))

			// Then: loading is a miss, not an error
			_, ok := s.Load(b.Document.Hash, "doc.txt")
			assert.False(t, ok)
		})
	}
}

func TestStore_Load_MissingArtifactIsMiss(t *testing.T) {
	s := openStore(t)
	b := testBundle(t, "partial", "doc.txt")
	dir, err := s.Save(b)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, IndexFile)))

	_, ok := s.Load(b.Document.Hash, "doc.txt")
	assert.False(t, ok)
}

func TestStore_Load_SkipsCorruptPreferredEntry(t *testing.T) {
	// Given: a valid entry saved under one name
	s := openStore(t)
	b := testBundle(t, "two entries", "other.txt")
	valid, err := s.Save(b)
	require.NoError(t, err)

	// And: a damaged entry for the same hash under the requested name
	corrupt := s.EntryDir(b.Document.Hash, "doc.txt")
	require.NoError(t, os.MkdirAll(corrupt, 0o755))
	for _, f := range []string{DocumentsFile, ManifestFile} {
		data, err := os.ReadFile(filepath.Join(valid, f))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(corrupt, f), data, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(corrupt, IndexFile), []byte("{garbage"), 0o644))

	// When: loading under the requested name
	got, ok := s.Load(b.Document.Hash, "doc.txt")

	// Then: the valid sibling is served
	require.True(t, ok)
	assert.Equal(t, "other.txt", got.Document.Name)
	assert.Equal(t, b.Chunks, got.Chunks)
}

func TestStore_Save_ReplacesPreviousEntry(t *testing.T) {
	// Given: the same hash saved twice under different names
	s := openStore(t)
	first := testBundle(t, "bytes", "old-name.txt")
	_, err := s.Save(first)
	require.NoError(t, err)

	second := testBundle(t, "bytes", "new-name.txt")
	second.Model = "static-3-v2"
	dir, err := s.Save(second)
	require.NoError(t, err)

	// Then: only the new entry remains
	assert.Equal(t, []string{dir}, s.entriesFor(first.Document.Hash))
	got, ok := s.Load(first.Document.Hash, "old-name.txt")
	require.True(t, ok)
	assert.Equal(t, "static-3-v2", got.Model)
}

func TestStore_Save_RejectsInvalidBundle(t *testing.T) {
	s := openStore(t)
	b := testBundle(t, "x", "x.txt")
	b.Embeddings = b.Embeddings[:2]

	_, err := s.Save(b)
	require.Error(t, err)

	entries, _ := os.ReadDir(s.Dir())
	assert.Empty(t, entries, "nothing is written for an invalid bundle")
}

func TestOpen_SweepsLeftovers(t *testing.T) {
	// Given: a cache directory with an interrupted save
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".tmp-abc-123"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".old-abc-456"), 0755))

	// When: the store is opened
	_, err := Open(dir)
	require.NoError(t, err)

	// Then: the leftovers are gone
	assert.NoDirExists(t, filepath.Join(dir, ".tmp-abc-123"))
	assert.NoDirExists(t, filepath.Join(dir, ".old-abc-456"))
}

func TestStore_ListAndRemove(t *testing.T) {
	s := openStore(t)
	a := testBundle(t, "a", "a.txt")
	b := testBundle(t, "b", "b.txt")
	b.CreatedAt = a.CreatedAt.Add(time.Hour)
	_, err := s.Save(a)
	require.NoError(t, err)
	_, err = s.Save(b)
	require.NoError(t, err)

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b.txt", list[0].Name, "newest first")
	assert.Equal(t, 3, list[0].Chunks)
	assert.Equal(t, 1, list[0].Degraded)
	assert.Equal(t, vectorindex.KindFlat, list[0].IndexKind)

	n, err := s.Remove(a.Document.Hash)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, s.Exists(a.Document.Hash))
	assert.True(t, s.Exists(b.Document.Hash))

	_, err = s.Remove("nope")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
}

func TestStore_Lock_SerializesHolders(t *testing.T) {
	// Given: two goroutines locking the same hash
	s := openStore(t)
	hash := document.Hash([]byte("locked"))
	var inside, peak atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := s.Lock(context.Background(), hash)
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(20 * time.Millisecond)
			inside.Add(-1)
			assert.NoError(t, unlock())
		}()
	}
	wg.Wait()

	// Then: they never overlapped
	assert.Equal(t, int32(1), peak.Load())
}

func TestStore_Lock_RespectsContext(t *testing.T) {
	s := openStore(t)
	hash := document.Hash([]byte("busy"))
	unlock, err := s.Lock(context.Background(), hash)
	require.NoError(t, err)
	defer func() { _ = unlock() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = s.Lock(ctx, hash)
	assert.Error(t, err)
}
