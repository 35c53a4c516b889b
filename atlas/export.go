package atlas

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// Table is a rectangular, already-formatted export of benchmark
// results.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Table flattens the comparison into one row per scenario x method
// pair with every metric as a column, the shape spreadsheet tooling
// expects.
func (c *Comparison) Table() Table {
	headers := []string{
		"scenario", "method", "coverage", "final_coverage", "type_i_error",
		"power", "avg_width", "median_stop_time", "avg_runtime",
		"evalue_decision_rate", "naive_peeking_error",
	}
	var rows [][]string
	for _, scenario := range c.scenarios {
		for _, method := range c.methods {
			m, ok := c.Get(method, scenario)
			if !ok {
				continue
			}
			rows = append(rows, []string{
				scenario,
				method,
				f4(m.Coverage),
				f4(m.FinalCoverage),
				f4(m.TypeIError),
				f4(m.Power),
				f4(m.AvgWidth),
				strconv.FormatFloat(m.MedianStopTime, 'f', 1, 64),
				strconv.FormatFloat(m.AvgRuntime, 'f', 6, 64),
				f4(m.EValueDecisionRate),
				f4(m.NaivePeekingError),
			})
		}
	}
	return Table{Headers: headers, Rows: rows}
}

func f4(x float64) string {
	return strconv.FormatFloat(x, 'f', 4, 64)
}

// WriteCSV writes the table with a header row.
func WriteCSV(path string, tb Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(tb.Headers); err != nil {
		return err
	}
	for _, row := range tb.Rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

// WriteXLSX writes the table to Sheet1 of a fresh workbook.
func WriteXLSX(path string, tb Table) error {
	f := excelize.NewFile()

	sheet := "Sheet1"
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx == -1 {
		idx, err := f.NewSheet(sheet)
		if err != nil {
			return err
		}
		f.SetActiveSheet(idx)
	}

	for i, h := range tb.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r := 0; r < len(tb.Rows); r++ {
		rowIdx := r + 2
		for col, v := range tb.Rows[r] {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return f.SaveAs(path)
}
