package geosearch

import (
	"math"
	"sort"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// spatialCellLevel determines the granularity of the S2 bucket index.
// Level 10 cells are roughly 10km x 10km at the equator: small enough to
// keep candidate sets tight around dense areas, coarse enough to keep the
// cell map compact for tens of millions of entities.
const spatialCellLevel = 10

const (
	earthRadiusKm = 6371.0
	// maxSearchRadiusKm is half the circumference: no two points on the
	// sphere are farther apart, so expanding past it is pointless.
	maxSearchRadiusKm = earthRadiusKm * math.Pi
	// initialSearchRadiusKm seeds the expanding ring search. Doubling
	// from 16km reaches the global cap in about ten rounds.
	initialSearchRadiusKm = 16.0
)

// spatialEntry is one indexed point.
type spatialEntry struct {
	id       int
	lat, lon float64
}

// SpatialHit is one nearest-neighbor result.
type SpatialHit struct {
	ID         int
	DistanceKm float64
}

// SpatialIndex buckets entity coordinates into fixed-level S2 cells.
// Because S2 cells tile the whole sphere there is no antimeridian seam or
// pole singularity to special-case, which a flat lat/lon grid would have.
// Build with Add calls followed by one Finalize; immutable afterwards and
// safe for concurrent queries.
type SpatialIndex struct {
	buckets map[s2.CellID][]spatialEntry
	cells   []s2.CellID // sorted bucket keys, for covering-range scans
	size    int
}

// NewSpatialIndex returns an empty index ready for Add calls.
func NewSpatialIndex() *SpatialIndex {
	return &SpatialIndex{buckets: make(map[s2.CellID][]spatialEntry)}
}

// Add indexes one entity position. Coordinates are assumed validated by
// the parser.
func (idx *SpatialIndex) Add(e Entity) {
	ll := s2.LatLngFromDegrees(e.Latitude, e.Longitude)
	cell := s2.CellIDFromLatLng(ll).Parent(spatialCellLevel)
	idx.buckets[cell] = append(idx.buckets[cell], spatialEntry{id: e.ID, lat: e.Latitude, lon: e.Longitude})
	idx.size++
}

// Finalize sorts the bucket keys and each bucket's entries. Must be
// called once after the last Add and before the first query.
func (idx *SpatialIndex) Finalize() {
	idx.cells = make([]s2.CellID, 0, len(idx.buckets))
	for cell := range idx.buckets {
		idx.cells = append(idx.cells, cell)
	}
	sort.Slice(idx.cells, func(i, j int) bool { return idx.cells[i] < idx.cells[j] })
	for _, entries := range idx.buckets {
		sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	}
}

// Size returns the number of indexed points.
func (idx *SpatialIndex) Size() int {
	return idx.size
}

// Nearest returns the k entities closest to (lat, lon) within
// maxDistanceKm, ordered by ascending great-circle distance with ties
// broken by id. maxDistanceKm <= 0 means unbounded. An empty result is
// not an error; an out-of-domain coordinate is.
func (idx *SpatialIndex) Nearest(lat, lon float64, k int, maxDistanceKm float64) ([]SpatialHit, error) {
	if !validCoordinate(lat, lon) {
		return nil, ErrInvalidCoordinate
	}
	if k <= 0 {
		return nil, nil
	}
	return idx.search(lat, lon, k, maxDistanceKm)
}

// Within returns every entity inside radiusKm of (lat, lon), ordered by
// ascending distance.
func (idx *SpatialIndex) Within(lat, lon, radiusKm float64) ([]SpatialHit, error) {
	if !validCoordinate(lat, lon) {
		return nil, ErrInvalidCoordinate
	}
	if radiusKm <= 0 {
		return nil, nil
	}
	return idx.search(lat, lon, 0, radiusKm)
}

// search runs the expanding-ring scan. k == 0 means no count target (pure
// radius query). The loop grows a spherical cap around the query point,
// covers it with cells, and stops once k results fit inside the scanned
// radius: at that point every indexed point within that radius has been
// seen, so the k nearest are final.
func (idx *SpatialIndex) search(lat, lon float64, k int, maxDistanceKm float64) ([]SpatialHit, error) {
	if idx.size == 0 {
		return nil, nil
	}

	limitKm := maxSearchRadiusKm
	if maxDistanceKm > 0 && maxDistanceKm < limitKm {
		limitKm = maxDistanceKm
	}

	center := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
	coverer := &s2.RegionCoverer{MaxLevel: spatialCellLevel, MaxCells: 64}

	seen := make(map[s2.CellID]bool)
	var candidates []SpatialHit

	radiusKm := initialSearchRadiusKm
	if radiusKm > limitKm {
		radiusKm = limitKm
	}

	for {
		region := s2.CapFromCenterAngle(center, s1.Angle(radiusKm/earthRadiusKm))
		for _, cover := range coverer.Covering(region) {
			for _, cell := range idx.cellsInRange(cover) {
				if seen[cell] {
					continue
				}
				seen[cell] = true
				for _, entry := range idx.buckets[cell] {
					d := haversineKm(lat, lon, entry.lat, entry.lon)
					if maxDistanceKm > 0 && d > maxDistanceKm {
						continue
					}
					candidates = append(candidates, SpatialHit{ID: entry.id, DistanceKm: d})
				}
			}
		}

		within := 0
		for _, c := range candidates {
			if c.DistanceKm <= radiusKm {
				within++
			}
		}
		if (k > 0 && within >= k) || radiusKm >= limitKm {
			break
		}
		radiusKm *= 2
		if radiusKm > limitKm {
			radiusKm = limitKm
		}
	}

	// Candidates beyond the scanned radius may have closer unseen
	// neighbors in uncovered cells; drop them for correctness.
	final := candidates[:0]
	for _, c := range candidates {
		if c.DistanceKm <= radiusKm {
			final = append(final, c)
		}
	}
	sort.Slice(final, func(i, j int) bool {
		if final[i].DistanceKm != final[j].DistanceKm {
			return final[i].DistanceKm < final[j].DistanceKm
		}
		return final[i].ID < final[j].ID
	})
	if k > 0 && len(final) > k {
		final = final[:k]
	}
	return final, nil
}

// cellsInRange returns the indexed bucket cells contained in the given
// covering cell, which may sit at a coarser level than the buckets.
func (idx *SpatialIndex) cellsInRange(cover s2.CellID) []s2.CellID {
	lo, hi := cover.RangeMin(), cover.RangeMax()
	start := sort.Search(len(idx.cells), func(i int) bool { return idx.cells[i] >= lo })
	var out []s2.CellID
	for i := start; i < len(idx.cells) && idx.cells[i] <= hi; i++ {
		out = append(out, idx.cells[i])
	}
	return out
}

// haversineKm computes the great-circle distance between two points in
// kilometers using the haversine formula on a mean earth radius sphere.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const degToRad = math.Pi / 180
	phi1 := lat1 * degToRad
	phi2 := lat2 * degToRad
	dPhi := (lat2 - lat1) * degToRad
	dLambda := (lon2 - lon1) * degToRad

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}
