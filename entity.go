package geosearch

import "math"

// Entity is one normalized gazetteer record parsed from a Geonames dump row.
// Entities are immutable once ingested; updating the dataset means a full
// rebuild of the engine.
type Entity struct {
	ID             int      // geonameid, unique across the store
	Name           string   // canonical display name (UTF-8)
	ASCIIName      string   // ASCII transliteration of Name
	AlternateNames []string // alternate spellings, may be empty
	Latitude       float64  // decimal degrees, [-90, 90]
	Longitude      float64  // decimal degrees, [-180, 180]
	FeatureClass   string   // e.g. "P" (populated place), "A" (admin division)
	FeatureCode    string   // e.g. "PPL", "ADM1"
	CountryCode    string   // ISO 3166-1 alpha-2, may be empty
	AdminCodes     [4]string
	Population     int64
	Elevation      int
	HasElevation   bool
	Timezone       string
}

// adminCodePath returns the leading non-empty admin codes. Levels are
// positional: a gap at admin2 makes admin3/admin4 meaningless, so the
// path stops at the first empty level.
func (e Entity) adminCodePath() []string {
	var path []string
	for _, code := range e.AdminCodes {
		if code == "" {
			break
		}
		path = append(path, code)
	}
	return path
}

// validCoordinate reports whether lat/lon form a real point on the globe.
// NaN and Inf are rejected explicitly: they would otherwise slip through
// range comparisons and cause undefined behavior in S2 calculations.
func validCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
