package geosearch

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// featureClassNames describes the nine Geonames feature classes. These are
// fixed by the dataset and are not part of any downloadable code table.
var featureClassNames = map[string]string{
	"A": "country, state, region",
	"H": "stream, lake",
	"L": "parks, area",
	"P": "city, village",
	"R": "road, railroad",
	"S": "spot, building, farm",
	"T": "mountain, hill, rock",
	"U": "undersea",
	"V": "forest, heath",
}

// FeatureDescription is the short and full description of one feature code.
type FeatureDescription struct {
	Short string
	Full  string
}

// FeatureTable maps feature class/code pairs to descriptions, built from a
// featureCodes_en.txt style table. Read-only after load.
type FeatureTable struct {
	codes map[string]FeatureDescription // "P.PPL" -> description
}

// NewFeatureTable returns an empty table; Describe falls back to raw codes.
func NewFeatureTable() *FeatureTable {
	return &FeatureTable{codes: make(map[string]FeatureDescription)}
}

// Load reads rows of the form "CLASS.CODE<tab>short<tab>full". Rows
// without the class.code key (like the trailing "null" row in the
// Geonames export) are skipped.
func (ft *FeatureTable) Load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 || !strings.Contains(fields[0], ".") {
			continue
		}
		d := FeatureDescription{Short: fields[1]}
		if len(fields) > 2 {
			d.Full = fields[2]
		}
		ft.codes[strings.ToUpper(fields[0])] = d
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading feature codes: %w", err)
	}
	return nil
}

// Describe returns the class description and the short/full code
// descriptions for a feature class/code pair. Unknown codes degrade to
// the raw code text rather than failing.
func (ft *FeatureTable) Describe(class, code string) (classDescr string, d FeatureDescription) {
	classDescr = featureClassNames[strings.ToUpper(class)]
	if classDescr == "" {
		classDescr = class
	}
	key := strings.ToUpper(class) + "." + strings.ToUpper(code)
	if found, ok := ft.codes[key]; ok {
		return classDescr, found
	}
	return classDescr, FeatureDescription{Short: code}
}
