// Package report writes pipeline results as JSONL, a JSON summary, and an
// HTML table.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cognicore/textscore/pkg/textscore/aggregate"
	"github.com/cognicore/textscore/pkg/textscore/result"
)

// WriteJSONL writes one compact JSON object per result, in order.
// HTML characters and non-ASCII text are written unescaped.
func WriteJSONL(w io.Writer, results []result.Result) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i, r := range results {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode result %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// WriteSummary writes the aggregate summary as an indented JSON object.
func WriteSummary(w io.Writer, s aggregate.Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	_, err = w.Write(data)
	return err
}
