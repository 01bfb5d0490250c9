package geosearch

import (
	"fmt"
	"strings"
)

// rowSpec builds one tab-delimited Geonames dump row for tests.
type rowSpec struct {
	id       int
	name     string
	ascii    string
	alts     string // comma-separated
	lat, lon float64
	class    string
	code     string
	cc       string
	a1, a2   string
	pop      int64
	elev     string
	tz       string
}

func (r rowSpec) line() string {
	class := r.class
	if class == "" {
		class = "P"
	}
	code := r.code
	if code == "" {
		code = "PPL"
	}
	fields := []string{
		fmt.Sprintf("%d", r.id),
		r.name,
		r.ascii,
		r.alts,
		fmt.Sprintf("%g", r.lat),
		fmt.Sprintf("%g", r.lon),
		class,
		code,
		r.cc,
		"", // cc2
		r.a1,
		r.a2,
		"", // admin3
		"", // admin4
		fmt.Sprintf("%d", r.pop),
		r.elev,
		"0", // dem
		r.tz,
		"2025-01-01",
	}
	return strings.Join(fields, "\t")
}

func dataset(rows ...rowSpec) string {
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, r.line())
	}
	return strings.Join(lines, "\n") + "\n"
}

// testRows is a small world fixture shared across tests.
var testRows = []rowSpec{
	{id: 3448439, name: "São Paulo", ascii: "Sao Paulo", alts: "Sampa,Sao Paolo",
		lat: -23.5475, lon: -46.63611, cc: "BR", a1: "27", pop: 10021295, tz: "America/Sao_Paulo"},
	{id: 3448636, name: "São José dos Campos", ascii: "Sao Jose dos Campos",
		lat: -23.1896, lon: -45.8861, cc: "BR", a1: "27", a2: "3549904", pop: 613764, tz: "America/Sao_Paulo"},
	{id: 2988507, name: "Paris", ascii: "Paris", alts: "Lutetia,Paname",
		lat: 48.85341, lon: 2.3488, cc: "FR", a1: "11", pop: 2138551, tz: "Europe/Paris"},
	{id: 2643743, name: "London", ascii: "London", alts: "Londres",
		lat: 51.50853, lon: -0.12574, cc: "GB", a1: "ENG", pop: 8961989, tz: "Europe/London"},
	{id: 4671654, name: "Austin", ascii: "Austin",
		lat: 30.26715, lon: -97.74306, cc: "US", a1: "TX", pop: 964254, elev: "149", tz: "America/Chicago"},
	{id: 1850144, name: "Tokyo", ascii: "Tokyo", alts: "Tokio,Edo",
		lat: 35.6895, lon: 139.69171, cc: "JP", a1: "40", pop: 8336599, tz: "Asia/Tokyo"},
	// Antimeridian pair around Fiji.
	{id: 900001, name: "East of the Line", ascii: "East of the Line",
		lat: 0, lon: 179.9, cc: "FJ", pop: 100, tz: "Pacific/Fiji"},
	{id: 900002, name: "West of the Line", ascii: "West of the Line",
		lat: 0, lon: -179.9, cc: "FJ", pop: 100, tz: "Pacific/Fiji"},
}

const testCountryInfo = "#ISO\tISO3\tISO-Numeric\tfips\tCountry\n" +
	"BR\tBRA\t076\tBR\tBrazil\tBrasilia\n" +
	"FR\tFRA\t250\tFR\tFrance\tParis\n" +
	"GB\tGBR\t826\tUK\tUnited Kingdom\tLondon\n" +
	"US\tUSA\t840\tUS\tUnited States\tWashington\n" +
	"JP\tJPN\t392\tJA\tJapan\tTokyo\n" +
	"FJ\tFJI\t242\tFJ\tFiji\tSuva\n"

const testAdmin1Codes = "BR.27\tSão Paulo\tSao Paulo\t3448433\n" +
	"FR.11\tÎle-de-France\tIle-de-France\t3012874\n" +
	"GB.ENG\tEngland\tEngland\t6269131\n" +
	"US.TX\tTexas\tTexas\t4736286\n" +
	"JP.40\tTokyo\tTokyo\t1850144\n"

const testAdmin2Codes = "BR.27.3549904\tSão José dos Campos\tSao Jose dos Campos\t6324222\n"

const testFeatureCodes = "A.ADM1\tfirst-order administrative division\ta primary administrative division of a country, such as a state in the United States\n" +
	"P.PPL\tpopulated place\ta city, town, village, or other agglomeration of buildings where people live and work\n"

// buildTestEngine parses the fixture and assembles a fully enriched engine.
func buildTestEngine(opts ...Option) (*Engine, *ParseStats, error) {
	entities, stats, err := ParseDataset(strings.NewReader(dataset(testRows...)))
	if err != nil {
		return nil, nil, err
	}

	resolver := NewResolver()
	if err := resolver.LoadCountryInfo(strings.NewReader(testCountryInfo)); err != nil {
		return nil, nil, err
	}
	if err := resolver.LoadAdminCodes(strings.NewReader(testAdmin1Codes)); err != nil {
		return nil, nil, err
	}
	if err := resolver.LoadAdminCodes(strings.NewReader(testAdmin2Codes)); err != nil {
		return nil, nil, err
	}

	features := NewFeatureTable()
	if err := features.Load(strings.NewReader(testFeatureCodes)); err != nil {
		return nil, nil, err
	}

	return Build(entities, resolver, features, opts...), stats, nil
}
