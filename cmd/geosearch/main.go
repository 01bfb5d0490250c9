// Command geosearch downloads the Geonames dataset and answers gazetteer
// queries from the command line.
//
// Usage:
//
//	geosearch -download                     # fetch the dataset (once)
//	geosearch -query "São Paulo"            # free-text name lookup
//	geosearch -coord "-23.2237,-45.9009"    # nearest places to a point
//	geosearch -coord "..." -radius 50       # bounded by distance in km
//
// Configuration comes from GEOSEARCH_* environment variables; see
// internal/config.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Klaifer/GeoSearch"
	"github.com/Klaifer/GeoSearch/internal/config"
	"github.com/Klaifer/GeoSearch/internal/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	download := flag.Bool("download", false, "download the Geonames dataset")
	rebuild := flag.Bool("rebuild", false, "ignore the snapshot cache and rebuild from raw data")
	query := flag.String("query", "", "free-text name query")
	coord := flag.String("coord", "", "coordinate query as \"lat,lon\"")
	limit := flag.Int("limit", 0, "maximum number of results (default from config)")
	radius := flag.Float64("radius", 0, "max distance in km for coordinate queries (0 = unbounded)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log, *download, *rebuild, *query, *coord, *limit, *radius); err != nil {
		log.Error("geosearch failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger, download, rebuild bool, query, coord string, limit int, radius float64) error {
	if download {
		if err := geosearch.DownloadDataSets(cfg.DataDir, cfg.DataURL, log); err != nil {
			return err
		}
		log.Info("download complete", zap.String("dir", cfg.DataDir))
	}

	if query == "" && coord == "" {
		if !download && !rebuild {
			flag.Usage()
		}
		if !rebuild {
			return nil
		}
	}

	dumpName := ""
	if cfg.DataURL != "" {
		dumpName = filepath.Base(cfg.DataURL)
	}

	opts := []geosearch.Option{
		geosearch.WithLogger(log),
		geosearch.WithDefaultLimit(cfg.Limit),
	}

	var engine *geosearch.Engine
	var err error
	if rebuild {
		engine, _, err = geosearch.BuildFromDataDir(cfg.DataDir, dumpName, opts...)
		if err == nil {
			err = geosearch.SaveSnapshot(cfg.CacheDir, engine.Snapshot())
		}
	} else {
		engine, err = geosearch.LoadOrBuild(cfg.DataDir, cfg.CacheDir, dumpName, opts...)
	}
	if err != nil {
		return err
	}

	searcher := geosearch.DefaultSearcher()
	searcher.Swap(engine)

	if query != "" {
		results, err := searcher.SearchByName(query, limit)
		if err != nil {
			return err
		}
		return printResults(results)
	}

	if coord != "" {
		lat, lon, err := parseCoord(coord)
		if err != nil {
			return err
		}
		results, err := searcher.Nearest(lat, lon, limit, radius)
		if err != nil {
			return err
		}
		return printResults(results)
	}
	return nil
}

func parseCoord(s string) (float64, float64, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("coordinate must be \"lat,lon\", got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad latitude %q: %w", parts[0], err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad longitude %q: %w", parts[1], err)
	}
	return lat, lon, nil
}

func printResults(results []geosearch.EnrichedResult) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
