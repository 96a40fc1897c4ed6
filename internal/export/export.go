// Package export writes view tables and line series to downloadable files.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"

	"github.com/jengzang/dmarcviz/internal/models"
	"github.com/jengzang/dmarcviz/internal/series"
)

// Supported formats
const (
	FormatCSV     = "csv"
	FormatXLSX    = "xlsx"
	FormatParquet = "parquet"
)

// SheetName is the worksheet the XLSX export writes to
const SheetName = "Records"

// ContentTypes maps each format to its MIME type
var ContentTypes = map[string]string{
	FormatCSV:     "text/csv; charset=utf-8",
	FormatXLSX:    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatParquet: "application/vnd.apache.parquet",
}

// ErrUnsupportedFormat is returned for formats a writer cannot produce
var ErrUnsupportedFormat = errors.New("unsupported export format")

// WriteTable writes table rows with a header line in format csv or xlsx
func WriteTable(w io.Writer, format string, rows []models.TableRow) error {
	switch strings.ToLower(format) {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatXLSX:
		return WriteXLSX(w, rows)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// WriteCSV writes table rows as comma separated values
func WriteCSV(w io.Writer, rows []models.TableRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.TableHead); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row.Cells()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes table rows to a single worksheet. The message count stays numeric.
func WriteXLSX(w io.Writer, rows []models.TableRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	head := make([]interface{}, len(models.TableHead))
	for i, h := range models.TableHead {
		head[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &head); err != nil {
		return err
	}

	for i, row := range rows {
		cells := row.Cells()
		values := make([]interface{}, len(cells))
		for j, c := range cells {
			values[j] = c
		}
		values[countColumn] = row.Count

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	return f.Write(w)
}

// countColumn is the index of the message count in TableHead
var countColumn = func() int {
	for i, h := range models.TableHead {
		if h == "msg#" {
			return i
		}
	}
	panic("export: table head has no message count column")
}()

// LineRow is one day of one filter set in the parquet line export
type LineRow struct {
	Label string `parquet:"label"`
	Date  string `parquet:"date"` // YYYY-MM-DD
	Count int64  `parquet:"count"`
}

// LineRows flattens line series into rows, series by series in date order
func LineRows(dataSets []models.LineSeries) []LineRow {
	var rows []LineRow
	for _, ds := range dataSets {
		for _, p := range ds.Data {
			rows = append(rows, LineRow{
				Label: ds.Label,
				Date:  p.Date.Format(series.DayLayout),
				Count: int64(p.Count),
			})
		}
	}
	return rows
}

// WriteParquet writes the line series as parquet rows (label, date, count)
func WriteParquet(w io.Writer, dataSets []models.LineSeries) error {
	return parquet.Write(w, LineRows(dataSets))
}
