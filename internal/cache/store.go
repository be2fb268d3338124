// Package cache persists indexed document bundles on disk, keyed by content hash.
//
// Each bundle lives in its own directory named <stem>_<hash>:
//
//	index.bin       gob-encoded vector index
//	documents.json  chunks with their embeddings and metadata
//	manifest.json   model, dimensions, counts and creation time
//
// Entries are written to a temporary directory and renamed into place, so a
// reader never sees a partial entry. Anything missing or unparsable is a miss.
package cache

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/Aman-CERP/docrag/internal/document"
	"github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/vectorindex"
)

// Artifact names inside an entry directory.
const (
	IndexFile     = "index.bin"
	DocumentsFile = "documents.json"
	ManifestFile  = "manifest.json"
)

// ManifestVersion is bumped when the on-disk layout changes.
const ManifestVersion = 1

const (
	locksDir  = ".locks"
	tmpPrefix = ".tmp-"
	oldPrefix = ".old-"
)

var hashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Manifest describes a cached entry.
type Manifest struct {
	Version    int       `json:"version"`
	Hash       string    `json:"hash"`
	Name       string    `json:"name"`
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
	IndexKind  string    `json:"index_kind"`
	Chunks     int       `json:"chunks"`
	Degraded   int       `json:"degraded"`
	CreatedAt  time.Time `json:"created_at"`

	// Dir is the entry directory; it is not persisted.
	Dir string `json:"-"`
}

// storedChunk is one documents.json element.
type storedChunk struct {
	Text      string                 `json:"text"`
	Embedding []float32              `json:"embedding"`
	Metadata  document.ChunkMetadata `json:"metadata"`
}

// Store is a directory of cached bundles.
type Store struct {
	dir string
}

// Open creates dir if needed and clears leftovers from interrupted saves.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.ConfigError("cache directory is required", nil)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.New(errors.ErrCodeCacheWrite, "failed to create cache directory", err).
			WithDetail("dir", dir)
	}

	s := &Store{dir: dir}
	s.sweep()
	return s, nil
}

// Dir returns the cache root.
func (s *Store) Dir() string { return s.dir }

// sweep removes temporary and superseded entry directories.
func (s *Store) sweep() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || (!strings.HasPrefix(name, tmpPrefix) && !strings.HasPrefix(name, oldPrefix)) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, name)); err != nil {
			slog.Warn("cache_sweep_failed", slog.String("dir", name), slog.String("error", err.Error()))
		}
	}
}

// EntryDir returns the directory a bundle for (hash, name) is saved under.
func (s *Store) EntryDir(hash, name string) string {
	return filepath.Join(s.dir, document.Stem(name)+"_"+hash)
}

// candidates lists the complete entries for hash in lookup order: the exact
// <stem>_<hash> first, then any other *_<hash>.
func (s *Store) candidates(hash, name string) []string {
	if !hashPattern.MatchString(hash) {
		return nil
	}
	var out []string
	exact := ""
	if name != "" {
		exact = s.EntryDir(hash, name)
		if fileExists(filepath.Join(exact, ManifestFile)) {
			out = append(out, exact)
		}
	}
	for _, dir := range s.entriesFor(hash) {
		if dir != exact && fileExists(filepath.Join(dir, ManifestFile)) {
			out = append(out, dir)
		}
	}
	return out
}

// entriesFor lists every entry directory for hash, sorted.
func (s *Store) entriesFor(hash string) []string {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*_"+hash))
	if err != nil {
		return nil
	}
	out := matches[:0]
	for _, m := range matches {
		base := filepath.Base(m)
		if strings.HasPrefix(base, ".") {
			continue
		}
		if info, err := os.Stat(m); err == nil && info.IsDir() {
			out = append(out, m)
		}
	}
	slices.Sort(out)
	return out
}

// Exists reports whether a complete entry for hash is present.
func (s *Store) Exists(hash string) bool {
	return len(s.candidates(hash, "")) > 0
}

// Load returns the cached bundle for hash. The name only selects the
// preferred directory; the hash alone decides identity.
// A corrupt entry is skipped in favour of the next one for the same hash.
func (s *Store) Load(hash, name string) (*document.Bundle, bool) {
	for _, dir := range s.candidates(hash, name) {
		b, err := s.loadDir(dir, hash)
		if err != nil {
			slog.Warn("cache_corrupt",
				append([]any{slog.String("dir", filepath.Base(dir))}, errors.LogAttrs(err)...)...)
			continue
		}
		return b, true
	}
	return nil, false
}

func (s *Store) loadDir(dir, hash string) (*document.Bundle, error) {
	m, err := readManifest(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	if m.Version != ManifestVersion {
		return nil, errors.CacheCorrupt(fmt.Sprintf("manifest version %d, want %d", m.Version, ManifestVersion), nil)
	}
	if m.Hash != hash {
		return nil, errors.CacheCorrupt("manifest hash does not match directory", nil)
	}

	raw, err := os.ReadFile(filepath.Join(dir, DocumentsFile))
	if err != nil {
		return nil, errors.CacheCorrupt("read documents", err)
	}
	var stored []storedChunk
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, errors.CacheCorrupt("parse documents", err)
	}

	f, err := os.Open(filepath.Join(dir, IndexFile))
	if err != nil {
		return nil, errors.CacheCorrupt("open index", err)
	}
	defer func() { _ = f.Close() }()
	idx, err := vectorindex.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}

	b := &document.Bundle{
		Document:   document.Document{Name: m.Name, Hash: m.Hash},
		Chunks:     make([]document.Chunk, len(stored)),
		Embeddings: make([][]float32, len(stored)),
		Index:      idx,
		Model:      m.Model,
		Dimensions: m.Dimensions,
		CreatedAt:  m.CreatedAt,
	}
	for i, sc := range stored {
		b.Chunks[i] = document.Chunk{Text: sc.Text, Metadata: sc.Metadata}
		b.Embeddings[i] = sc.Embedding
	}

	if m.Chunks != len(stored) {
		return nil, errors.CacheCorrupt(fmt.Sprintf("manifest lists %d chunks, found %d", m.Chunks, len(stored)), nil)
	}
	if err := b.Validate(); err != nil {
		return nil, errors.CacheCorrupt("bundle invariants violated", err)
	}
	return b, nil
}

// Save persists b and returns the entry directory. Existing entries for the
// same hash are replaced once the new entry is fully written.
func (s *Store) Save(b *document.Bundle) (string, error) {
	if err := b.Validate(); err != nil {
		return "", err
	}
	hash := b.Document.Hash
	if !hashPattern.MatchString(hash) {
		return "", errors.ValidationError(fmt.Sprintf("invalid document hash %q", hash), nil)
	}
	idx, ok := b.Index.(vectorindex.Index)
	if !ok {
		return "", errors.InternalError(fmt.Sprintf("bundle index %T is not persistable", b.Index), nil)
	}

	tmp, err := os.MkdirTemp(s.dir, tmpPrefix+document.ShortHash(hash)+"-")
	if err != nil {
		return "", writeError("create temp entry", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmp)
		}
	}()

	if err := writeAtomicFile(filepath.Join(tmp, IndexFile), func(w *bufio.Writer) error {
		return vectorindex.Encode(w, idx)
	}); err != nil {
		return "", writeError("write index", err)
	}

	stored := make([]storedChunk, len(b.Chunks))
	for i, c := range b.Chunks {
		stored[i] = storedChunk{Text: c.Text, Embedding: b.Embeddings[i], Metadata: c.Metadata}
	}
	if err := writeAtomicFile(filepath.Join(tmp, DocumentsFile), func(w *bufio.Writer) error {
		return json.NewEncoder(w).Encode(stored)
	}); err != nil {
		return "", writeError("write documents", err)
	}

	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	m := Manifest{
		Version:    ManifestVersion,
		Hash:       hash,
		Name:       b.Document.Name,
		Model:      b.Model,
		Dimensions: b.Dimensions,
		IndexKind:  idx.Kind(),
		Chunks:     b.Len(),
		Degraded:   b.DegradedCount(),
		CreatedAt:  createdAt,
	}
	if err := writeAtomicFile(filepath.Join(tmp, ManifestFile), func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}); err != nil {
		return "", writeError("write manifest", err)
	}
	// Directory fsync is unsupported on some platforms; file contents are already synced.
	_ = syncDir(tmp)

	final := s.EntryDir(hash, b.Document.Name)
	previous := s.entriesFor(hash)

	var parked string
	if dirExists(final) {
		parked = filepath.Join(s.dir, oldPrefix+filepath.Base(tmp)[len(tmpPrefix):])
		if err := os.Rename(final, parked); err != nil {
			return "", writeError("park previous entry", err)
		}
	}
	if err := os.Rename(tmp, final); err != nil {
		if parked != "" {
			_ = os.Rename(parked, final)
		}
		return "", writeError("commit entry", err)
	}
	committed = true
	_ = syncDir(s.dir)

	if parked != "" {
		_ = os.RemoveAll(parked)
	}
	for _, dir := range previous {
		if dir != final {
			_ = os.RemoveAll(dir)
		}
	}
	return final, nil
}

// Lock takes the cross-process lock for hash. The returned func releases it.
func (s *Store) Lock(ctx context.Context, hash string) (func() error, error) {
	if !hashPattern.MatchString(hash) {
		return nil, errors.ValidationError(fmt.Sprintf("invalid document hash %q", hash), nil)
	}
	l := NewFileLock(filepath.Join(s.dir, locksDir, hash+".lock"))
	if err := l.Lock(ctx); err != nil {
		return nil, err
	}
	return l.Unlock, nil
}

// List returns the manifests of all readable entries, newest first.
func (s *Store) List() ([]Manifest, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.IOError("failed to read cache directory", err)
	}

	var out []Manifest
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dir := filepath.Join(s.dir, e.Name())
		m, err := readManifest(filepath.Join(dir, ManifestFile))
		if err != nil {
			slog.Debug("cache_entry_skipped", slog.String("dir", e.Name()), slog.String("error", err.Error()))
			continue
		}
		m.Dir = dir
		out = append(out, m)
	}

	slices.SortFunc(out, func(a, b Manifest) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Hash, b.Hash)
	})
	return out, nil
}

// Remove deletes every entry for hash and returns how many were removed.
func (s *Store) Remove(hash string) (int, error) {
	if !hashPattern.MatchString(hash) {
		return 0, errors.ValidationError(fmt.Sprintf("invalid document hash %q", hash), nil)
	}
	removed := 0
	for _, dir := range s.entriesFor(hash) {
		if err := os.RemoveAll(dir); err != nil {
			return removed, writeError("remove entry", err)
		}
		removed++
	}
	_ = os.Remove(filepath.Join(s.dir, locksDir, hash+".lock"))
	return removed, nil
}

func readManifest(path string) (Manifest, error) {
	var m Manifest
	raw, err := os.ReadFile(path)
	if err != nil {
		return m, errors.CacheCorrupt("read manifest", err)
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, errors.CacheCorrupt("parse manifest", err)
	}
	return m, nil
}

func writeError(op string, err error) error {
	return errors.New(errors.ErrCodeCacheWrite, "cache "+op+" failed", err)
}
