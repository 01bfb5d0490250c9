// Package geosearch is an offline gazetteer query engine over Geonames
// data. It parses the bulk dump into an in-memory entity store, builds a
// fuzzy text index and an S2-bucketed spatial index over it, and answers
// free-text name lookups and nearest-place coordinate lookups enriched
// with resolved administrative hierarchy names.
package geosearch

import (
	"archive/zip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDataURL is the full Geonames dump. Per-country archives such as
// .../dump/BR.zip work as well and make for much faster builds.
const DefaultDataURL = "https://download.geonames.org/export/dump/allCountries.zip"

// Auxiliary code tables consumed by the hierarchy resolver and the
// feature table.
const (
	countryInfoURL  = "https://download.geonames.org/export/dump/countryInfo.txt"
	admin1CodesURL  = "https://download.geonames.org/export/dump/admin1CodesASCII.txt"
	admin2CodesURL  = "https://download.geonames.org/export/dump/admin2Codes.txt"
	featureCodesURL = "https://download.geonames.org/export/dump/featureCodes_en.txt"
)

// DataSource is one remote file the engine is built from.
type DataSource struct {
	URL  string
	Name string // local file name inside the data directory
}

// dataSources returns the download set. dataURL overrides the dump
// archive; empty means DefaultDataURL.
func dataSources(dataURL string) []DataSource {
	if dataURL == "" {
		dataURL = DefaultDataURL
	}
	return []DataSource{
		{URL: dataURL, Name: filepath.Base(dataURL)},
		{URL: countryInfoURL, Name: "countryInfo.txt"},
		{URL: admin1CodesURL, Name: "admin1CodesASCII.txt"},
		{URL: admin2CodesURL, Name: "admin2Codes.txt"},
		{URL: featureCodesURL, Name: "featureCodes_en.txt"},
	}
}

// downloadMu serializes downloads so concurrent builds with a missing
// data directory cannot corrupt files.
var downloadMu sync.Mutex

// httpClient is shared across downloads. Downloading the full dump takes
// a while, hence the generous timeout.
var httpClient = &http.Client{
	Timeout: 10 * time.Minute,
}

// DownloadDataSets fetches the dump archive and the auxiliary code tables
// into dataDir, skipping files that already exist. It runs strictly
// before any index build and holds no engine state.
func DownloadDataSets(dataDir, dataURL string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	downloadMu.Lock()
	defer downloadMu.Unlock()

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	for _, src := range dataSources(dataURL) {
		path := filepath.Join(dataDir, src.Name)
		if _, err := os.Stat(path); err == nil {
			log.Debug("data file present, skipping download", zap.String("file", src.Name))
			continue
		}
		log.Info("downloading", zap.String("url", src.URL))
		if err := downloadFile(src.URL, path); err != nil {
			return fmt.Errorf("downloading %s: %w", src.Name, err)
		}
	}
	return nil
}

func downloadFile(url, path string) error {
	resp, err := httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP GET %s: status %d", url, resp.StatusCode)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}

	success := false
	defer func() {
		out.Close()
		if !success {
			os.Remove(path) // best-effort cleanup of partial file
		}
	}()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("writing file %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing file %s: %w", path, err)
	}
	success = true
	return nil
}

// BuildFromDataDir parses the raw data files in dataDir and builds a
// fresh Engine. dumpName selects the dump file (empty means the
// DefaultDataURL basename); .zip archives are read entry by entry without
// extraction. Missing auxiliary tables degrade enrichment to raw codes
// but do not fail the build; a missing dump does.
func BuildFromDataDir(dataDir, dumpName string, opts ...Option) (*Engine, *ParseStats, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	log := cfg.log

	resolver := NewResolver()
	features := NewFeatureTable()

	loadAux := func(name string, load func(io.Reader) error) {
		fh, err := os.Open(filepath.Join(dataDir, name))
		if err != nil {
			log.Warn("auxiliary table missing, enrichment will use raw codes",
				zap.String("file", name), zap.Error(err))
			return
		}
		defer fh.Close()
		if err := load(fh); err != nil {
			log.Warn("auxiliary table unreadable", zap.String("file", name), zap.Error(err))
		}
	}
	loadAux("countryInfo.txt", resolver.LoadCountryInfo)
	loadAux("admin1CodesASCII.txt", resolver.LoadAdminCodes)
	loadAux("admin2Codes.txt", resolver.LoadAdminCodes)
	loadAux("featureCodes_en.txt", features.Load)

	if dumpName == "" {
		dumpName = filepath.Base(DefaultDataURL)
	}
	entities, stats, err := parseDumpFile(filepath.Join(dataDir, dumpName))
	if err != nil {
		return nil, nil, err
	}
	log.Info("dataset parsed",
		zap.Int("parsed", stats.Parsed),
		zap.Int("skipped", stats.Skipped))

	return Build(entities, resolver, features, opts...), stats, nil
}

// parseDumpFile parses a dump file, streaming zip archive entries without
// extracting them to disk.
func parseDumpFile(path string) ([]Entity, *ParseStats, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		fh, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening dump: %w", err)
		}
		defer fh.Close()
		return ParseDataset(fh)
	}

	rz, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening dump archive: %w", err)
	}
	defer rz.Close()

	var entities []Entity
	stats := &ParseStats{}
	for _, zf := range rz.File {
		// The full dump archive ships a readme alongside the data.
		if !strings.HasSuffix(zf.Name, ".txt") || strings.HasPrefix(zf.Name, "readme") {
			continue
		}
		ents, st, err := parseZipEntry(zf)
		if err != nil {
			return nil, nil, err
		}
		entities = append(entities, ents...)
		stats.Parsed += st.Parsed
		stats.Skipped += st.Skipped
		if room := maxRecordedErrors - len(stats.Errors); room > 0 {
			if len(st.Errors) > room {
				st.Errors = st.Errors[:room]
			}
			stats.Errors = append(stats.Errors, st.Errors...)
		}
	}
	return entities, stats, nil
}

func parseZipEntry(zf *zip.File) ([]Entity, *ParseStats, error) {
	fh, err := zf.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s in archive: %w", zf.Name, err)
	}
	defer fh.Close()
	return ParseDataset(fh)
}

// LoadOrBuild restores the engine from the snapshot cache when possible
// and falls back to a full parse of dataDir, writing a fresh snapshot on
// the way out. This mirrors the usual lifecycle: download once, pay the
// parse cost once, start fast afterwards.
func LoadOrBuild(dataDir, cacheDir, dumpName string, opts ...Option) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	log := cfg.log

	if snap, err := LoadSnapshot(cacheDir); err == nil && len(snap.Entities) > 0 {
		log.Info("engine restored from snapshot", zap.Int("entities", len(snap.Entities)))
		return snap.Build(opts...), nil
	}

	engine, _, err := BuildFromDataDir(dataDir, dumpName, opts...)
	if err != nil {
		return nil, fmt.Errorf("building from %s: %w", dataDir, err)
	}

	if err := SaveSnapshot(cacheDir, engine.Snapshot()); err != nil {
		log.Warn("snapshot not written", zap.Error(err))
	}
	return engine, nil
}

// entitiesOf flattens the engine store for snapshotting, in id order so
// that snapshots of the same build are byte-identical.
func entitiesOf(e *Engine) []Entity {
	ids := make([]int, 0, len(e.store))
	for id := range e.store {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.store[id])
	}
	return out
}
