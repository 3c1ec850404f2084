// Package sink writes finished tables to their destination. Each table is
// written once, as a whole, under its dataset name.
package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/table"
)

// Writer accepts an ordered column list and ordered rows and writes them once.
// Cells keep their decoded JSON values: nil, strings, json.Number, bools,
// and nested maps or slices.
type Writer interface {
	Write(ctx context.Context, name string, columns []string, rows [][]any) error
}

// Kind selects a Writer implementation.
type Kind string

const (
	KindCSV   Kind = "csv"
	KindJSONL Kind = "jsonl"
	KindS3    Kind = "s3"
)

// Config describes the destination.
type Config struct {
	Kind Kind

	// Dir is the output directory for csv and jsonl.
	Dir string

	// S3 settings.
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string

	// RunID namespaces S3 object keys.
	RunID string
}

// New builds the Writer for cfg.Kind.
func New(ctx context.Context, cfg Config) (Writer, error) {
	switch cfg.Kind {
	case KindCSV, "":
		return NewCSVWriter(cfg.Dir)
	case KindJSONL:
		return NewJSONLWriter(cfg.Dir)
	case KindS3:
		return NewS3Writer(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown sink kind %q", cfg.Kind)
	}
}

// validName rejects dataset names that would escape the destination.
func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid dataset name %q", name)
	}
	return nil
}

// encodeCSV renders a header line followed by rows. Nested values are
// written as compact JSON.
func encodeCSV(columns []string, rows [][]any) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(columns))
	for i, row := range rows {
		for j := range rec {
			rec[j] = ""
			if j < len(row) {
				rec[j] = table.FormatValue(row[j])
			}
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write rows: %w", err)
	}
	return buf.Bytes(), nil
}
