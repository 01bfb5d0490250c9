package geosearch

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	. "gopkg.in/check.v1"
)

// Hook up gocheck into the "go test" runner.
func Test(t *testing.T) { TestingT(t) }

type GeoSearchSuite struct {
	dataDir string
	engine  *Engine
}

var _ = Suite(&GeoSearchSuite{})

func (s *GeoSearchSuite) SetUpSuite(c *C) {
	s.dataDir = c.MkDir()

	write := func(name, content string) {
		c.Assert(os.WriteFile(filepath.Join(s.dataDir, name), []byte(content), 0644), IsNil)
	}
	write("countryInfo.txt", testCountryInfo)
	write("admin1CodesASCII.txt", testAdmin1Codes)
	write("admin2Codes.txt", testAdmin2Codes)
	write("featureCodes_en.txt", testFeatureCodes)

	// The dump goes in as a zip archive, the same shape the Geonames
	// download has, with a readme entry that must be ignored.
	fh, err := os.Create(filepath.Join(s.dataDir, "allCountries.zip"))
	c.Assert(err, IsNil)
	zw := zip.NewWriter(fh)
	entry, err := zw.Create("allCountries.txt")
	c.Assert(err, IsNil)
	_, err = entry.Write([]byte(dataset(testRows...)))
	c.Assert(err, IsNil)
	readme, err := zw.Create("readme.txt")
	c.Assert(err, IsNil)
	_, err = readme.Write([]byte("not data"))
	c.Assert(err, IsNil)
	c.Assert(zw.Close(), IsNil)
	c.Assert(fh.Close(), IsNil)

	engine, stats, err := BuildFromDataDir(s.dataDir, "")
	c.Assert(err, IsNil)
	c.Assert(engine, Not(IsNil))
	c.Assert(stats.Parsed, Equals, len(testRows))
	c.Assert(stats.Skipped, Equals, 0)
	s.engine = engine
}

func (s *GeoSearchSuite) TestBuildCounts(c *C) {
	c.Assert(s.engine.EntityCount(), Equals, len(testRows))
	ent, ok := s.engine.Entity(3448439)
	c.Assert(ok, Equals, true)
	c.Assert(ent.Name, Equals, "São Paulo")
}

func (s *GeoSearchSuite) TestQueryByName(c *C) {
	for _, tc := range []struct {
		query   string
		wantID  int
		country string
	}{
		{"Austin", 4671654, "United States"},
		{"Paris", 2988507, "France"},
		{"Londres", 2643743, "United Kingdom"},
		{"Sao Paulo", 3448439, "Brazil"},
	} {
		results, err := s.engine.SearchByName(tc.query, 5)
		c.Assert(err, IsNil)
		c.Assert(len(results) > 0, Equals, true, Commentf("query %q", tc.query))
		c.Assert(results[0].ID, Equals, tc.wantID, Commentf("query %q", tc.query))
		c.Assert(results[0].Country, Equals, tc.country)
	}
}

func (s *GeoSearchSuite) TestQueryByCoordinate(c *C) {
	for _, tc := range []struct {
		lat, lon float64
		wantID   int
	}{
		{30.26715, -97.74306, 4671654},  // Austin
		{35.6895, 139.69171, 1850144},   // Tokyo
		{-23.1896, -45.8861, 3448636},   // São José dos Campos
	} {
		results, err := s.engine.Nearest(tc.lat, tc.lon, 1, 0)
		c.Assert(err, IsNil)
		c.Assert(len(results), Equals, 1)
		c.Assert(results[0].ID, Equals, tc.wantID)
	}
}

func (s *GeoSearchSuite) TestRebuildIsDeterministic(c *C) {
	again, _, err := BuildFromDataDir(s.dataDir, "")
	c.Assert(err, IsNil)

	for _, query := range []string{"Sao Paulo", "London", "the Line"} {
		first, err := s.engine.SearchByName(query, 10)
		c.Assert(err, IsNil)
		second, err := again.SearchByName(query, 10)
		c.Assert(err, IsNil)
		c.Assert(second, DeepEquals, first)
	}
}

func (s *GeoSearchSuite) TestLoadOrBuildUsesSnapshot(c *C) {
	cacheDir := c.MkDir()

	built, err := LoadOrBuild(s.dataDir, cacheDir, "")
	c.Assert(err, IsNil)
	c.Assert(built.EntityCount(), Equals, len(testRows))

	// Second call restores from the snapshot; data dir is not needed.
	restored, err := LoadOrBuild(c.MkDir(), cacheDir, "")
	c.Assert(err, IsNil)
	c.Assert(restored.EntityCount(), Equals, len(testRows))

	first, err := built.SearchByName("Tokyo", 5)
	c.Assert(err, IsNil)
	second, err := restored.SearchByName("Tokyo", 5)
	c.Assert(err, IsNil)
	c.Assert(second, DeepEquals, first)
}

func (s *GeoSearchSuite) TestMissingDumpFails(c *C) {
	_, _, err := BuildFromDataDir(c.MkDir(), "")
	c.Assert(err, Not(IsNil))
}
