package geosearch

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Field weights: a token from the primary name matters more than the same
// token from an alternate spelling.
const (
	weightName  = 3
	weightASCII = 2
	weightAlt   = 1
)

// Match qualities, multiplied with the field weight when scoring.
const (
	qualityExact  = 3
	qualityPrefix = 2
	qualityFuzzy  = 1
)

// minFuzzyTokenLen is the shortest query token eligible for fuzzy
// matching. Below this, edit distance 1 already reaches unrelated words
// ("rio" vs "rib"), so short tokens fall back to exact/prefix only.
const minFuzzyTokenLen = 3

// fuzzyMaxDist returns the edit distance tolerance for a query token.
// Tolerance scales with token length to keep behavior reproducible:
// distance 1 for tokens up to 4 runes, 2 otherwise.
func fuzzyMaxDist(runeLen int) int {
	if runeLen <= 4 {
		return 1
	}
	return 2
}

// diacriticFolder strips combining marks so that "São Paulo" and
// "Sao Paulo" normalize to the same tokens.
var diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldString lowercases s and removes diacritics. Unicode-aware on
// purpose: the dataset contains names in many scripts and a byte-level
// ASCII fold would corrupt them.
func foldString(s string) string {
	folded, _, err := transform.String(diacriticFolder, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// tokenize splits a name or query into normalized tokens.
func tokenize(s string) []string {
	return strings.FieldsFunc(foldString(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// posting links one token occurrence to an entity with its field weight.
type posting struct {
	id     int
	weight uint8
}

// TextHit is one ranked text search result.
type TextHit struct {
	ID    int
	Score float64
}

// TextIndex is an inverted index over entity names and alternate names.
// Build with Add calls followed by one Finalize; after that the index is
// immutable and safe for concurrent Search calls.
type TextIndex struct {
	postings map[string][]posting
	tokens   []string      // sorted token vocabulary, for prefix/fuzzy scans
	pop      map[int]int64 // entity id -> population, ranking tie-break
}

// NewTextIndex returns an empty index ready for Add calls.
func NewTextIndex() *TextIndex {
	return &TextIndex{
		postings: make(map[string][]posting),
		pop:      make(map[int]int64),
	}
}

// Add indexes one entity. The primary name is weighted above the ASCII
// name, which is weighted above alternates; when the same token appears
// in several fields the highest weight wins.
func (idx *TextIndex) Add(e Entity) {
	weights := make(map[string]uint8)
	addField := func(text string, w uint8) {
		for _, tok := range tokenize(text) {
			if weights[tok] < w {
				weights[tok] = w
			}
		}
	}
	addField(e.Name, weightName)
	addField(e.ASCIIName, weightASCII)
	for _, alt := range e.AlternateNames {
		addField(alt, weightAlt)
	}

	for tok, w := range weights {
		idx.postings[tok] = append(idx.postings[tok], posting{id: e.ID, weight: w})
	}
	idx.pop[e.ID] = e.Population
}

// Finalize sorts the vocabulary and posting lists. Must be called once
// after the last Add and before the first Search.
func (idx *TextIndex) Finalize() {
	idx.tokens = make([]string, 0, len(idx.postings))
	for tok := range idx.postings {
		idx.tokens = append(idx.tokens, tok)
	}
	sort.Strings(idx.tokens)
	for _, list := range idx.postings {
		sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })
	}
}

// TokenCount returns the vocabulary size. Useful for diagnostics.
func (idx *TextIndex) TokenCount() int {
	return len(idx.postings)
}

// Search returns up to limit entities ranked against the query text.
// Ranking combines match quality (exact > prefix > fuzzy) with the field
// weight, summed over query tokens; ties break on population descending,
// then id ascending for determinism. An empty or whitespace-only query
// returns no results; no match is not an error.
func (idx *TextIndex) Search(text string, limit int) []TextHit {
	queryTokens := tokenize(text)
	if len(queryTokens) == 0 || limit == 0 {
		return nil
	}

	total := make(map[int]int)
	for _, qtok := range queryTokens {
		// Best quality per candidate token for this query token.
		cands := make(map[string]int)
		if _, ok := idx.postings[qtok]; ok {
			cands[qtok] = qualityExact
		}
		for _, tok := range idx.tokensWithPrefix(qtok) {
			if cands[tok] < qualityPrefix {
				cands[tok] = qualityPrefix
			}
		}
		if qlen := utf8.RuneCountInString(qtok); qlen >= minFuzzyTokenLen {
			maxDist := fuzzyMaxDist(qlen)
			for _, tok := range idx.tokens {
				if _, done := cands[tok]; done {
					continue
				}
				tlen := utf8.RuneCountInString(tok)
				if tlen < qlen-maxDist || tlen > qlen+maxDist {
					continue
				}
				if levenshtein.ComputeDistance(qtok, tok) <= maxDist {
					cands[tok] = qualityFuzzy
				}
			}
		}

		// An entity may match this query token through several
		// vocabulary tokens; only its best contribution counts.
		best := make(map[int]int)
		for tok, quality := range cands {
			for _, p := range idx.postings[tok] {
				if score := quality * int(p.weight); score > best[p.id] {
					best[p.id] = score
				}
			}
		}
		for id, score := range best {
			total[id] += score
		}
	}

	hits := make([]TextHit, 0, len(total))
	for id, score := range total {
		hits = append(hits, TextHit{ID: id, Score: float64(score)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if pi, pj := idx.pop[hits[i].ID], idx.pop[hits[j].ID]; pi != pj {
			return pi > pj
		}
		return hits[i].ID < hits[j].ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// tokensWithPrefix returns vocabulary tokens strictly extending the given
// prefix, via binary search on the sorted vocabulary.
func (idx *TextIndex) tokensWithPrefix(prefix string) []string {
	start := sort.SearchStrings(idx.tokens, prefix)
	var out []string
	for i := start; i < len(idx.tokens); i++ {
		if !strings.HasPrefix(idx.tokens[i], prefix) {
			break
		}
		if idx.tokens[i] != prefix {
			out = append(out, idx.tokens[i])
		}
	}
	return out
}
