// Package score applies a mapping config to a row's tokens.
package score

import (
	"math"
	"strings"

	"github.com/cognicore/textscore/pkg/textscore/mapping"
)

// Names of the two distinguished accumulators.
const (
	Psych = "psych"
	Music = "music"
)

// Score is the scoring outcome for one row.
type Score struct {
	Psych   float64 `json:"psych"`
	Music   float64 `json:"music"`
	Details Details `json:"details"`
}

// Detail returns the per-category result for name.
func (s Score) Detail(name string) (CategoryScore, bool) {
	for _, d := range s.Details {
		if d.Name == name {
			return d, true
		}
	}
	return CategoryScore{}, false
}

// CategoryScore is the weighted total and the keyword hit map of one category.
type CategoryScore struct {
	Name  string
	Score float64
	Hits  Hits
}

// Hit records how often a keyword occurred in a row.
type Hit struct {
	Keyword string
	Count   int
}

// Compute scores words against cfg.
//
// Keywords match whole tokens case-insensitively. A category whose name
// equals "psych" or "music" ignoring case sets that accumulator; when several
// do, the last one in document order wins. Crossmap rules then add a
// category's score to the accumulator named exactly "psych" or "music".
// Weights without a numeric reading count as zero. Scores are always finite:
// an infinite or NaN weight, a category total that overflows, and a psych or
// music sum that overflows after crossmap are all clamped to 0.
func Compute(words []string, cfg *mapping.Config) Score {
	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[strings.ToLower(w)]++
	}

	var psych, music float64
	details := make(Details, 0, len(cfg.Categories()))
	byName := make(map[string]float64, len(cfg.Categories()))

	for _, cat := range cfg.Categories() {
		total := 0.0
		hits := Hits{}
		for _, kw := range cat.Keywords {
			n := counts[strings.ToLower(kw.Term)]
			if n == 0 {
				continue
			}
			weight, _ := kw.Weight.Float()
			total += float64(n) * weight
			hits = append(hits, Hit{Keyword: kw.Term, Count: n})
		}
		total = finite(total)
		details = append(details, CategoryScore{Name: cat.Name, Score: total, Hits: hits})
		byName[cat.Name] = total

		switch strings.ToLower(cat.Name) {
		case Psych:
			psych = total
		case Music:
			music = total
		}
	}

	for _, rule := range cfg.Crossmap() {
		s, ok := byName[rule.Source]
		if !ok {
			continue
		}
		switch rule.Target {
		case Psych:
			psych += s
		case Music:
			music += s
		}
	}

	return Score{Psych: finite(psych), Music: finite(music), Details: details}
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
