package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// MetaEntry is a labeled value rendered above the table, such as the
// student name or the generation timestamp.
type MetaEntry struct {
	Label string
	Value string
}

// Dataset describes a renderable transcript: an optional title, a block
// of meta lines and the tabular body.
type Dataset struct {
	Title   string
	Meta    []MetaEntry
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders a Dataset as CSV. Meta lines become two-column
// records before the header row so spreadsheet imports keep them visible.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces the CSV payload for the dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	for _, meta := range data.Meta {
		if err := writer.Write([]string{meta.Label, meta.Value}); err != nil {
			return nil, fmt.Errorf("write csv meta: %w", err)
		}
	}
	if len(data.Meta) > 0 {
		if err := writer.Write([]string{}); err != nil {
			return nil, fmt.Errorf("write csv separator: %w", err)
		}
	}

	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
