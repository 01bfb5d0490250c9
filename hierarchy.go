package geosearch

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Resolver maps country and admin-level codes to descriptive names. It is
// built once from the Geonames auxiliary code tables and is read-only
// afterwards, so concurrent Resolve calls need no locking.
//
// Admin codes are positional: "TX" means Texas only under country "US",
// and an admin2 code is keyed under its admin1 parent. Keys are therefore
// full code paths like "US.TX" or "BR.27.3550308".
type Resolver struct {
	countries map[string]string // ISO code -> country name
	admin     map[string]string // "CC.A1[.A2[...]]" -> division name
}

// NewResolver returns an empty resolver. Unloaded codes resolve to their
// raw value, so a resolver with no tables is usable, just uninformative.
func NewResolver() *Resolver {
	return &Resolver{
		countries: make(map[string]string),
		admin:     make(map[string]string),
	}
}

// LoadCountryInfo reads a countryInfo.txt style table: tab-delimited,
// '#' comments, ISO code in column 0 and country name in column 4.
func (rv *Resolver) LoadCountryInfo(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 5 || fields[0] == "" {
			continue
		}
		rv.countries[strings.ToUpper(fields[0])] = fields[4]
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading country info: %w", err)
	}
	return nil
}

// LoadAdminCodes reads an admin1CodesASCII.txt / admin2Codes.txt style
// table: "CC.CODE[.CODE]<tab>Name<tab>AsciiName<tab>GeonameID". Rows
// missing a name are skipped.
func (rv *Resolver) LoadAdminCodes(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 || fields[0] == "" || fields[1] == "" {
			continue
		}
		if !strings.Contains(fields[0], ".") {
			continue
		}
		rv.admin[fields[0]] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading admin codes: %w", err)
	}
	return nil
}

// Hierarchy is the resolved administrative context of one entity.
type Hierarchy struct {
	Country string   // country name, or the raw ISO code when unknown
	Admin   []string // one name per supplied admin level, raw code on a gap
}

// Resolve maps a country code plus admin1..k codes to descriptive names.
// A missing code table entry yields the raw code for that level and
// resolution continues for deeper levels, so hierarchy display degrades
// gracefully instead of failing the whole query. Resolve is idempotent
// and has no side effects.
func (rv *Resolver) Resolve(countryCode string, adminCodes []string) Hierarchy {
	h := Hierarchy{Country: countryCode}
	if name, ok := rv.countries[strings.ToUpper(countryCode)]; ok {
		h.Country = name
	}

	path := strings.ToUpper(countryCode)
	for _, code := range adminCodes {
		if code == "" {
			break
		}
		path += "." + code
		if name, ok := rv.admin[path]; ok {
			h.Admin = append(h.Admin, name)
		} else {
			h.Admin = append(h.Admin, code)
		}
	}
	return h
}

// CountryName returns the descriptive name for an ISO country code, or
// the code itself when the table has no entry.
func (rv *Resolver) CountryName(code string) string {
	if name, ok := rv.countries[strings.ToUpper(code)]; ok {
		return name
	}
	return code
}
