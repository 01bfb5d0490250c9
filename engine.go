package geosearch

import (
	"sync"
	"sync/atomic"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"go.uber.org/zap"
)

// defaultResultLimit bounds queries that pass no explicit limit.
const defaultResultLimit = 10

// geohashPrecision is the number of geohash characters attached to
// results, roughly a 5m x 5m box. Display convenience only.
const geohashPrecision = 9

// EnrichedResult is one query answer: the raw entity fields joined with
// the resolved hierarchy names and feature descriptions.
type EnrichedResult struct {
	ID                int      `json:"id"`
	Name              string   `json:"name"`
	Latitude          float64  `json:"latitude"`
	Longitude         float64  `json:"longitude"`
	FeatureClass      string   `json:"feature_class"`
	FeatureCode       string   `json:"feature_code"`
	FeatureClassDescr string   `json:"feature_class_descr,omitempty"`
	FeatureCodeShort  string   `json:"feature_code_short,omitempty"`
	FeatureCodeFull   string   `json:"feature_code_full,omitempty"`
	CountryCode       string   `json:"country_code,omitempty"`
	Country           string   `json:"country,omitempty"`
	AdminCodes        []string `json:"admin_codes,omitempty"`
	AdminNames        []string `json:"admin_names,omitempty"`
	Population        int64    `json:"population,omitempty"`
	Elevation         *int     `json:"elevation,omitempty"`
	Timezone          string   `json:"timezone,omitempty"`
	Geohash           string   `json:"geohash,omitempty"`
	Score             float64  `json:"score,omitempty"`
	DistanceKm        float64  `json:"distance_km,omitempty"`
}

// Engine is the read-only query facade over the entity store, the text
// index, the spatial index and the hierarchy resolver. An Engine is fully
// built by construction and never mutated afterwards, so any number of
// goroutines may query it concurrently without locking.
type Engine struct {
	store    map[int]Entity
	text     *TextIndex
	spatial  *SpatialIndex
	resolver *Resolver
	features *FeatureTable
	log      *zap.Logger
	limit    int
}

// engineConfig holds build-time options.
type engineConfig struct {
	log   *zap.Logger
	limit int
}

func defaultEngineConfig() *engineConfig {
	return &engineConfig{log: zap.NewNop(), limit: defaultResultLimit}
}

// Option is a functional option for configuring an Engine build.
type Option func(*engineConfig)

// WithLogger attaches a zap logger for build and query diagnostics.
// The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *engineConfig) { c.log = l }
}

// WithDefaultLimit sets the result count used when a query passes
// limit <= 0.
func WithDefaultLimit(n int) Option {
	return func(c *engineConfig) {
		if n > 0 {
			c.limit = n
		}
	}
}

// Build constructs an Engine from parsed entities in one pass: every
// entity is fed to both index builders and retained in the store, then
// the indexes are finalized. resolver and features may be nil, in which
// case enrichment degrades to raw codes.
func Build(entities []Entity, resolver *Resolver, features *FeatureTable, opts ...Option) *Engine {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	e := &Engine{
		store:    make(map[int]Entity, len(entities)),
		text:     NewTextIndex(),
		spatial:  NewSpatialIndex(),
		resolver: resolver,
		features: features,
		log:      cfg.log,
		limit:    cfg.limit,
	}
	if e.resolver == nil {
		e.resolver = NewResolver()
	}
	if e.features == nil {
		e.features = NewFeatureTable()
	}

	for _, ent := range entities {
		if _, dup := e.store[ent.ID]; dup {
			continue
		}
		e.store[ent.ID] = ent
		e.text.Add(ent)
		e.spatial.Add(ent)
	}
	e.text.Finalize()
	e.spatial.Finalize()

	e.log.Info("engine built",
		zap.Int("entities", len(e.store)),
		zap.Int("tokens", e.text.TokenCount()))
	return e
}

// EntityCount returns the number of entities in the store.
func (e *Engine) EntityCount() int {
	return len(e.store)
}

// Entity returns the stored entity for an id.
func (e *Engine) Entity(id int) (Entity, bool) {
	ent, ok := e.store[id]
	return ent, ok
}

// SearchByName looks up entities by free-text name and enriches each hit
// with its resolved hierarchy. Misspellings within the fuzzy tolerance
// still match; a query that matches nothing returns an empty slice, not
// an error. limit <= 0 applies the engine default.
func (e *Engine) SearchByName(text string, limit int) ([]EnrichedResult, error) {
	if limit <= 0 {
		limit = e.limit
	}
	hits := e.text.Search(text, limit)
	results := make([]EnrichedResult, 0, len(hits))
	for _, hit := range hits {
		ent, ok := e.store[hit.ID]
		if !ok {
			continue
		}
		r := e.enrich(ent)
		r.Score = hit.Score
		results = append(results, r)
	}
	e.log.Debug("name query", zap.String("query", text), zap.Int("results", len(results)))
	return results, nil
}

// Nearest returns the k entities closest to (lat, lon) within
// maxDistanceKm (<= 0 for unbounded), enriched like SearchByName and
// carrying the computed great-circle distance. An out-of-domain
// coordinate fails with ErrInvalidCoordinate before any index lookup.
func (e *Engine) Nearest(lat, lon float64, k int, maxDistanceKm float64) ([]EnrichedResult, error) {
	if k <= 0 {
		k = e.limit
	}
	hits, err := e.spatial.Nearest(lat, lon, k, maxDistanceKm)
	if err != nil {
		return nil, err
	}
	results := make([]EnrichedResult, 0, len(hits))
	for _, hit := range hits {
		ent, ok := e.store[hit.ID]
		if !ok {
			continue
		}
		r := e.enrich(ent)
		r.DistanceKm = hit.DistanceKm
		results = append(results, r)
	}
	e.log.Debug("coordinate query",
		zap.Float64("lat", lat), zap.Float64("lon", lon), zap.Int("results", len(results)))
	return results, nil
}

// enrich joins one entity with the resolver and feature table output.
func (e *Engine) enrich(ent Entity) EnrichedResult {
	r := EnrichedResult{
		ID:           ent.ID,
		Name:         ent.Name,
		Latitude:     ent.Latitude,
		Longitude:    ent.Longitude,
		FeatureClass: ent.FeatureClass,
		FeatureCode:  ent.FeatureCode,
		CountryCode:  ent.CountryCode,
		Population:   ent.Population,
		Timezone:     ent.Timezone,
		Geohash:      geohash.EncodeWithPrecision(ent.Latitude, ent.Longitude, geohashPrecision),
	}
	if ent.HasElevation {
		elev := ent.Elevation
		r.Elevation = &elev
	}
	r.AdminCodes = ent.adminCodePath()

	h := e.resolver.Resolve(ent.CountryCode, r.AdminCodes)
	if ent.CountryCode != "" {
		r.Country = h.Country
	}
	r.AdminNames = h.Admin

	classDescr, d := e.features.Describe(ent.FeatureClass, ent.FeatureCode)
	r.FeatureClassDescr = classDescr
	r.FeatureCodeShort = d.Short
	r.FeatureCodeFull = d.Full
	return r
}

// Searcher is a concurrency-safe handle to the active Engine. Rebuilds
// publish a fully-built engine in one atomic step: in-flight queries keep
// using the engine they loaded, and no caller ever observes a half-built
// index.
type Searcher struct {
	engine atomic.Pointer[Engine]
}

// Swap publishes e as the active engine and returns the previous one
// (nil on first build).
func (s *Searcher) Swap(e *Engine) *Engine {
	return s.engine.Swap(e)
}

// Engine returns the active engine, or nil when none was built yet.
func (s *Searcher) Engine() *Engine {
	return s.engine.Load()
}

// SearchByName delegates to the active engine, failing with
// ErrIndexNotBuilt when no build has been published yet.
func (s *Searcher) SearchByName(text string, limit int) ([]EnrichedResult, error) {
	e := s.engine.Load()
	if e == nil {
		return nil, ErrIndexNotBuilt
	}
	return e.SearchByName(text, limit)
}

// Nearest delegates to the active engine, failing with ErrIndexNotBuilt
// when no build has been published yet.
func (s *Searcher) Nearest(lat, lon float64, k int, maxDistanceKm float64) ([]EnrichedResult, error) {
	e := s.engine.Load()
	if e == nil {
		return nil, ErrIndexNotBuilt
	}
	return e.Nearest(lat, lon, k, maxDistanceKm)
}

var (
	defaultSearcher     *Searcher
	defaultSearcherOnce sync.Once
)

// DefaultSearcher returns the shared process-wide Searcher. It starts
// empty; callers publish an engine into it with Swap.
func DefaultSearcher() *Searcher {
	defaultSearcherOnce.Do(func() {
		defaultSearcher = &Searcher{}
	})
	return defaultSearcher
}
