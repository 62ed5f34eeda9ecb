package excel

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"mipool/domain/pooling"
	apperrors "mipool/internal/errors"

	"github.com/xuri/excelize/v2"
)

// TableReader loads per-analysis coefficient tables produced by an external
// fitting tool. An xlsx workbook carries one analysis per sheet; a CSV file
// carries exactly one analysis.
type TableReader struct {
	filePath string
}

// NewTableReader creates a reader for an xlsx workbook
func NewTableReader(filePath string) *TableReader {
	return &TableReader{filePath: filePath}
}

// ReadTables reads every sheet of the workbook into a coefficient table,
// in sheet order. Sheet order is the analysis order presented to pooling.
func (r *TableReader) ReadTables() ([]pooling.Table, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, apperrors.New("FILE_NOT_FOUND", fmt.Sprintf("workbook not found: %s", r.filePath))
	}

	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to open workbook %s", r.filePath)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.New("EMPTY_WORKBOOK", "workbook has no sheets")
	}

	tables := make([]pooling.Table, 0, len(sheets))
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, apperrors.Wrapf(err, "failed to read sheet %s", sheet)
		}
		table, err := parseRows(rows)
		if err != nil {
			return nil, apperrors.Wrapf(err, "sheet %s", sheet)
		}
		tables = append(tables, table)
	}

	log.Printf("[TableReader] Read %d analyses from %s in %.2fms",
		len(tables), r.filePath, float64(time.Since(startTime).Nanoseconds())/1e6)
	return tables, nil
}

// ReadCSVTable reads one analysis's coefficient table from a CSV file
func ReadCSVTable(filePath string) (pooling.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to open CSV file %s", filePath)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to parse CSV file %s", filePath)
	}
	return parseRows(records)
}

// ReadCSVTables reads one table per file, in the given order
func ReadCSVTables(filePaths []string) ([]pooling.Table, error) {
	tables := make([]pooling.Table, 0, len(filePaths))
	for _, path := range filePaths {
		table, err := ReadCSVTable(path)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// column indices resolved from the header row
type columns struct {
	term       int
	estimate   int
	stdError   int
	residualDF int // -1 when absent
}

// parseRows turns a header row plus data rows into a coefficient table
func parseRows(rows [][]string) (pooling.Table, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("need a header row and at least one data row, got %d rows", len(rows))
	}

	cols, err := resolveColumns(rows[0])
	if err != nil {
		return nil, err
	}

	table := make(pooling.Table, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) == 0 {
			continue // trailing blank rows are common in exported workbooks
		}
		if len(row) <= cols.stdError || len(row) <= cols.term || len(row) <= cols.estimate {
			return nil, fmt.Errorf("row %d: too few columns", i+2)
		}

		estimate, err := strconv.ParseFloat(strings.TrimSpace(row[cols.estimate]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad estimate %q", i+2, row[cols.estimate])
		}
		stdError, err := strconv.ParseFloat(strings.TrimSpace(row[cols.stdError]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad std_error %q", i+2, row[cols.stdError])
		}

		residualDF := math.NaN()
		if cols.residualDF >= 0 && len(row) > cols.residualDF {
			raw := strings.TrimSpace(row[cols.residualDF])
			if raw != "" {
				residualDF, err = strconv.ParseFloat(raw, 64)
				if err != nil {
					return nil, fmt.Errorf("row %d: bad residual_df %q", i+2, raw)
				}
			}
		}

		table = append(table, pooling.Estimate{
			Term:       strings.TrimSpace(row[cols.term]),
			Estimate:   estimate,
			StdError:   stdError,
			ResidualDF: residualDF,
		})
	}

	if len(table) == 0 {
		return nil, fmt.Errorf("no data rows")
	}
	return table, nil
}

// resolveColumns locates the required headers, case-insensitively. Both
// "std_error" and the R-style "std.error" spelling are accepted.
func resolveColumns(header []string) (columns, error) {
	cols := columns{term: -1, estimate: -1, stdError: -1, residualDF: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "term":
			cols.term = i
		case "estimate":
			cols.estimate = i
		case "std_error", "std.error", "stderror":
			cols.stdError = i
		case "residual_df", "df.residual", "residualdf":
			cols.residualDF = i
		}
	}
	if cols.term < 0 || cols.estimate < 0 || cols.stdError < 0 {
		return cols, fmt.Errorf("header must contain term, estimate and std_error columns, got %v", header)
	}
	return cols, nil
}
