// Package result defines the per-row output record of the pipeline.
package result

import (
	"github.com/cognicore/textscore/pkg/textscore/features"
	"github.com/cognicore/textscore/pkg/textscore/score"
)

// Result is the fully computed output for one input row.
// ID is the row's zero-based position in the cleaned dataset.
type Result struct {
	ID       *int              `json:"id"`
	Text     string            `json:"text"`
	Features features.Features `json:"features"`
	Score    score.Score       `json:"score"`
}

// New builds a Result for the row at position id.
func New(id int, text string, f features.Features, s score.Score) Result {
	return Result{ID: &id, Text: text, Features: f, Score: s}
}

// RowID returns the row position, or -1 when the result carries none.
func (r Result) RowID() int {
	if r.ID == nil {
		return -1
	}
	return *r.ID
}
