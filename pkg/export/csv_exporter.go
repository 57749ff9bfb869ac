package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

const utf8BOM = "\uFEFF"

// Dataset is a header-ordered table. Rows are keyed by header name.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter writes datasets as comma separated values.
type CSVExporter struct {
	// BOM makes spreadsheet tools detect UTF-8.
	BOM bool
}

// NewCSVExporter returns an exporter that emits a byte order mark.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{BOM: true}
}

// Render returns the encoded dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Write(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write streams the dataset to w. Cells missing from a row are left blank.
func (e *CSVExporter) Write(w io.Writer, data Dataset) error {
	if len(data.Headers) == 0 {
		return errors.New("export: csv needs at least one column")
	}
	if e.BOM {
		if _, err := io.WriteString(w, utf8BOM); err != nil {
			return fmt.Errorf("export: write bom: %w", err)
		}
	}

	cw := csv.NewWriter(w)
	records := make([][]string, 0, len(data.Rows)+1)
	records = append(records, data.Headers)
	for _, row := range data.Rows {
		cells := make([]string, len(data.Headers))
		for i, col := range data.Headers {
			cells[i] = row[col]
		}
		records = append(records, cells)
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("export: write csv: %w", err)
	}
	return nil
}
