package geosearch

import (
	"bufio"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Geonames dump rows carry 19 tab-separated fields:
// geonameid, name, asciiname, alternatenames, latitude, longitude,
// feature class, feature code, country code, cc2, admin1..admin4,
// population, elevation, dem, timezone, modification date.
// cc2, dem and the modification date are ignored here.
const geonamesFieldCount = 19

// maxRecordedErrors caps the number of per-line errors kept in ParseStats.
// Skipped still counts every bad line; keeping millions of error values
// for a corrupt dump would just waste memory.
const maxRecordedErrors = 100

// parseBatchSize is the number of lines handed to one parse worker at a time.
const parseBatchSize = 2048

// ParseStats summarizes one ingestion run. Malformed rows are skipped and
// recorded, never fatal to the batch.
type ParseStats struct {
	Parsed  int          // entities accepted into the result set
	Skipped int          // malformed or duplicate rows dropped
	Errors  []ParseError // first maxRecordedErrors per-line errors
}

func (s *ParseStats) record(err ParseError) {
	s.Skipped++
	if len(s.Errors) < maxRecordedErrors {
		s.Errors = append(s.Errors, err)
	}
}

// ParseDataset reads tab-delimited Geonames rows from r and returns the
// valid entities plus ingestion statistics. Lines starting with '#' are
// comments. Parsing is sharded across GOMAXPROCS workers; the result is
// deterministic regardless of scheduling: entities come back in input
// order and on duplicate IDs the first occurrence wins.
//
// The returned error covers input I/O only. Bad rows land in stats.
func ParseDataset(r io.Reader) ([]Entity, *ParseStats, error) {
	type batchResult struct {
		idx      int
		entities []Entity
		lines    []int // source line per entity, for duplicate reporting
		errs     []ParseError
	}

	var (
		mu      sync.Mutex
		results []batchResult
	)

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))

	scanner := bufio.NewScanner(r)
	// Alternate-name lists can make rows very long; the default 64KB
	// token limit is not enough for some Geonames records.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	batchIdx := 0
	lineNo := 0
	batch := make([]string, 0, parseBatchSize)
	batchStart := 1

	flush := func() {
		if len(batch) == 0 {
			return
		}
		idx := batchIdx
		start := batchStart
		lines := batch
		batchIdx++
		batch = make([]string, 0, parseBatchSize)
		batchStart = lineNo + 1

		g.Go(func() error {
			res := batchResult{idx: idx}
			for i, line := range lines {
				e, perr := parseLine(line, start+i)
				if perr != nil {
					res.errs = append(res.errs, *perr)
					continue
				}
				res.entities = append(res.entities, e)
				res.lines = append(res.lines, start+i)
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			// Comment and blank lines are skipped silently, matching
			// the countryInfo.txt convention.
			if len(batch) == 0 {
				batchStart = lineNo + 1
			} else {
				flush()
			}
			continue
		}
		batch = append(batch, line)
		if len(batch) == parseBatchSize {
			flush()
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading dataset: %w", err)
	}
	_ = g.Wait() // workers only collect, they never fail

	sort.Slice(results, func(i, j int) bool { return results[i].idx < results[j].idx })

	stats := &ParseStats{}
	var entities []Entity
	seen := make(map[int]struct{})
	for _, res := range results {
		for _, perr := range res.errs {
			stats.record(perr)
		}
		for i, e := range res.entities {
			if _, dup := seen[e.ID]; dup {
				stats.record(ParseError{Line: res.lines[i], Reason: fmt.Sprintf("duplicate id %d", e.ID)})
				continue
			}
			seen[e.ID] = struct{}{}
			entities = append(entities, e)
		}
	}
	stats.Parsed = len(entities)
	return entities, stats, nil
}

// parseLine converts one dump row into an Entity, or reports why it can't.
func parseLine(line string, lineNo int) (Entity, *ParseError) {
	fields := strings.Split(line, "\t")
	if len(fields) != geonamesFieldCount {
		return Entity{}, &ParseError{Line: lineNo, Reason: fmt.Sprintf("expected %d fields, got %d", geonamesFieldCount, len(fields))}
	}

	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return Entity{}, &ParseError{Line: lineNo, Reason: fmt.Sprintf("bad geonameid %q", fields[0])}
	}

	name := strings.TrimSpace(fields[1])
	if name == "" {
		return Entity{}, &ParseError{Line: lineNo, Reason: "empty name"}
	}

	lat, errLat := strconv.ParseFloat(fields[4], 64)
	lon, errLon := strconv.ParseFloat(fields[5], 64)
	if errLat != nil || errLon != nil {
		return Entity{}, &ParseError{Line: lineNo, Reason: "unparseable coordinates"}
	}
	if !validCoordinate(lat, lon) {
		return Entity{}, &ParseError{Line: lineNo, Reason: fmt.Sprintf("coordinate out of range (%v, %v)", lat, lon)}
	}

	var pop int64
	if fields[14] != "" {
		pop, err = strconv.ParseInt(fields[14], 10, 64)
		if err != nil {
			return Entity{}, &ParseError{Line: lineNo, Reason: fmt.Sprintf("bad population %q", fields[14])}
		}
		if pop < 0 {
			pop = 0
		}
	}

	var elev int
	hasElev := false
	if fields[15] != "" {
		elev, err = strconv.Atoi(fields[15])
		if err != nil {
			return Entity{}, &ParseError{Line: lineNo, Reason: fmt.Sprintf("bad elevation %q", fields[15])}
		}
		hasElev = true
	}

	var alts []string
	if fields[3] != "" {
		for _, raw := range strings.Split(fields[3], ",") {
			alt := strings.TrimSpace(raw)
			if alt != "" {
				alts = append(alts, alt)
			}
		}
	}

	return Entity{
		ID:             id,
		Name:           name,
		ASCIIName:      strings.TrimSpace(fields[2]),
		AlternateNames: alts,
		Latitude:       lat,
		Longitude:      lon,
		FeatureClass:   fields[6],
		FeatureCode:    fields[7],
		CountryCode:    strings.ToUpper(fields[8]),
		AdminCodes:     [4]string{fields[10], fields[11], fields[12], fields[13]},
		Population:     pop,
		Elevation:      elev,
		HasElevation:   hasElev,
		Timezone:       fields[17],
	}, nil
}
