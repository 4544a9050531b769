// Package csvload reads the text column of a CSV file into pipeline rows.
package csvload

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/cognicore/textscore/pkg/textscore/internalerr"
)

// TextColumns are the header names preferred for the text column, matched
// case-insensitively in column order.
var TextColumns = []string{"text", "content", "body", "lyrics"}

// missingMarkers are cell values read as missing, as pandas does by default.
var missingMarkers = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// Row is one surviving input row.
type Row struct {
	Text string
}

// Options controls how the file is decoded.
type Options struct {
	// Encoding is a WHATWG encoding label such as "latin1" or "utf-16".
	// Empty means UTF-8. A byte order mark always takes precedence.
	Encoding string
	Logger   *zap.Logger
}

// Load reads the text rows of the CSV file at path.
func Load(path string, opts Options) ([]Row, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no input path given", internalerr.ErrMissingInput)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: input path does not exist: %s", internalerr.ErrMissingInput, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := Read(f, opts)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

// Read parses CSV data from r. The text column is the first header matching
// TextColumns, else the first column. Rows whose text cell is missing are
// dropped; the rest keep their relative order.
func Read(r io.Reader, opts Options) ([]Row, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	decoded, err := decode(r, opts.Encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("no columns to parse from file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := TextColumn(header)
	log.Debug("csv text column selected", zap.Int("index", col), zap.String("name", strings.TrimSpace(header[col])))

	var (
		rows    = []Row{}
		dropped int
	)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if col >= len(record) {
			dropped++
			continue
		}
		if _, missing := missingMarkers[record[col]]; missing {
			dropped++
			continue
		}
		rows = append(rows, Row{Text: record[col]})
	}

	if dropped > 0 {
		log.Debug("dropped rows with missing text", zap.Int("dropped", dropped), zap.Int("kept", len(rows)))
	}
	return rows, nil
}

// TextColumn returns the index of the column holding row text.
func TextColumn(header []string) int {
	for i, name := range header {
		name = strings.TrimSpace(name)
		for _, want := range TextColumns {
			if strings.EqualFold(name, want) {
				return i
			}
		}
	}
	return 0
}

func decode(r io.Reader, encoding string) (io.Reader, error) {
	label := strings.TrimSpace(encoding)
	if label == "" {
		return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", encoding, err)
	}
	return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder())), nil
}
