package geosearch

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// snapshotFile is the cache file name inside the cache directory.
const snapshotFile = "geosearch.snapshot.gz"

// Snapshot is the gob-serializable form of everything an Engine is built
// from. Indexes are not persisted: they are derived data, cheap to
// rebuild relative to parsing the raw dump, and rebuilding keeps the
// on-disk format independent of index internals.
type Snapshot struct {
	Entities     []Entity
	Countries    map[string]string
	AdminNames   map[string]string
	FeatureCodes map[string]FeatureDescription
}

// NewSnapshot captures the inputs of a build.
func NewSnapshot(entities []Entity, resolver *Resolver, features *FeatureTable) *Snapshot {
	snap := &Snapshot{Entities: entities}
	if resolver != nil {
		snap.Countries = resolver.countries
		snap.AdminNames = resolver.admin
	}
	if features != nil {
		snap.FeatureCodes = features.codes
	}
	return snap
}

// Snapshot captures the engine's build inputs, with entities in id order
// so that snapshots of the same build are byte-identical.
func (e *Engine) Snapshot() *Snapshot {
	return NewSnapshot(entitiesOf(e), e.resolver, e.features)
}

// Build constructs an Engine from the snapshot contents.
func (s *Snapshot) Build(opts ...Option) *Engine {
	resolver := NewResolver()
	if s.Countries != nil {
		resolver.countries = s.Countries
	}
	if s.AdminNames != nil {
		resolver.admin = s.AdminNames
	}
	features := NewFeatureTable()
	if s.FeatureCodes != nil {
		features.codes = s.FeatureCodes
	}
	return Build(s.Entities, resolver, features, opts...)
}

// SaveSnapshot writes the snapshot to cacheDir, creating the directory if
// needed. The write goes through a temp file and rename so a crash never
// leaves a truncated snapshot behind.
func SaveSnapshot(cacheDir string, snap *Snapshot) error {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := gob.NewEncoder(zw).Encode(snap); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compressing snapshot: %w", err)
	}

	path := filepath.Join(cacheDir, snapshotFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publishing snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot previously written by SaveSnapshot.
func LoadSnapshot(cacheDir string) (*Snapshot, error) {
	fh, err := os.Open(filepath.Join(cacheDir, snapshotFile))
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer fh.Close()

	zr, err := gzip.NewReader(fh)
	if err != nil {
		return nil, fmt.Errorf("decompressing snapshot: %w", err)
	}
	defer zr.Close()

	snap := &Snapshot{}
	if err := gob.NewDecoder(zr).Decode(snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return snap, nil
}
