// Package aggregate reduces per-row results into dataset statistics.
package aggregate

import (
	"github.com/cognicore/textscore/pkg/textscore/result"
)

// Summary is the dataset-level aggregate. With no rows only Count is set and
// the mean fields are omitted from JSON.
type Summary struct {
	Count     int      `json:"count"`
	MeanPsych *float64 `json:"mean_psych,omitempty"`
	MeanMusic *float64 `json:"mean_music,omitempty"`
}

// Empty reports whether the summary covers no rows.
func (s Summary) Empty() bool { return s.Count == 0 }

// Accumulator collects results one at a time.
type Accumulator struct {
	count int
	psych float64
	music float64
}

// Add consumes one result.
func (a *Accumulator) Add(r result.Result) {
	a.count++
	a.psych += r.Score.Psych
	a.music += r.Score.Music
}

// Summary returns the statistics of everything added so far.
func (a *Accumulator) Summary() Summary {
	if a.count == 0 {
		return Summary{}
	}
	n := float64(a.count)
	psych := a.psych / n
	music := a.music / n
	return Summary{
		Count:     a.count,
		MeanPsych: &psych,
		MeanMusic: &music,
	}
}

// Aggregate computes the summary of results.
func Aggregate(results []result.Result) Summary {
	var acc Accumulator
	for _, r := range results {
		acc.Add(r)
	}
	return acc.Summary()
}
