// Package csvfeed streams schema-validated CSV rows into the inference
// engines. Rows are handed to a callback one at a time; nothing buffers
// the whole file.
package csvfeed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"goanytime/domain/core"
)

// ErrStop signals early termination from an Each callback. The stream
// closes cleanly and Each returns nil.
var ErrStop = errors.New("stop reading")

// Schema declares what a CSV file must provide. Required columns must
// appear in the header; Numeric columns parse as float64 through
// Reader.Numeric. Every required column must be either numeric or
// listed as a label column.
type Schema struct {
	Required []string
	Numeric  []string
	Labels   []string
}

// OneSampleSchema describes a file with a single numeric value column.
func OneSampleSchema(valueCol string) Schema {
	return Schema{
		Required: []string{valueCol},
		Numeric:  []string{valueCol},
	}
}

// ABTestSchema describes a file with an arm label and a numeric value.
func ABTestSchema(armCol, valueCol string) Schema {
	return Schema{
		Required: []string{armCol, valueCol},
		Numeric:  []string{valueCol},
		Labels:   []string{armCol},
	}
}

func (s Schema) validate() error {
	defined := make(map[string]bool)
	for _, c := range s.Numeric {
		defined[c] = true
	}
	for _, c := range s.Labels {
		defined[c] = true
	}
	for _, c := range s.Required {
		if !defined[c] {
			return core.NewConfigError("schema", fmt.Sprintf("required column %q is neither numeric nor a label", c))
		}
	}
	return nil
}

// Row is one CSV record keyed by column name.
type Row map[string]string

// Reader streams validated rows from one CSV file and counts what it
// had to skip.
type Reader struct {
	path    string
	schema  Schema
	rows    int
	missing int
	invalid int
}

// NewReader builds a reader after checking the file exists and the
// schema is coherent.
func NewReader(path string, schema Schema) (*Reader, error) {
	if err := schema.validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("csv file: %w", err)
	}
	return &Reader{path: path, schema: schema}, nil
}

// Each streams every row to fn with its 1-based data row number. The
// header is validated against the schema first. Returning ErrStop from
// fn ends the stream early without error.
func (r *Reader) Each(fn func(row Row, line int) error) error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1 // short rows count as missing values, not read errors

	header, err := cr.Read()
	if err != nil {
		return core.NewConfigError("csv", fmt.Sprintf("%s has no header row", r.path))
	}
	if err := r.checkHeader(header); err != nil {
		return err
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read csv row: %w", err)
		}
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		r.rows++
		if err := fn(row, r.rows); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
}

func (r *Reader) checkHeader(header []string) error {
	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[strings.TrimSpace(col)] = true
	}
	var missing []string
	for _, col := range r.schema.Required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return core.NewConfigError("csv", fmt.Sprintf(
			"%s is missing required columns %v (found %v)", r.path, missing, header))
	}
	return nil
}

// Numeric parses a numeric column from a row. ok=false means the cell
// was empty or unparseable; both are counted for Summary.
func (r *Reader) Numeric(row Row, column string) (float64, bool) {
	raw, present := row[column]
	raw = strings.TrimSpace(raw)
	if !present || raw == "" {
		r.missing++
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.invalid++
		return 0, false
	}
	return v, true
}

// Summary reports what one pass over the file saw.
type Summary struct {
	Rows    int `json:"row_count"`
	Missing int `json:"missing_values"`
	Invalid int `json:"invalid_values"`
}

// Summary returns the counters accumulated so far.
func (r *Reader) Summary() Summary {
	return Summary{Rows: r.rows, Missing: r.missing, Invalid: r.invalid}
}
