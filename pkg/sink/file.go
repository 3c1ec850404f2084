package sink

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// CSVWriter writes <dir>/<name>.csv.
type CSVWriter struct {
	dir string
}

// NewCSVWriter creates dir if needed.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &CSVWriter{dir: dir}, nil
}

// Write implements Writer.
func (w *CSVWriter) Write(_ context.Context, name string, columns []string, rows [][]any) error {
	if err := validName(name); err != nil {
		return err
	}
	data, err := encodeCSV(columns, rows)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(w.dir, name+".csv"), data)
}

// JSONLWriter writes <dir>/<name>.jsonl, one object per row. Cells keep
// their JSON types and absent cells are written as null.
type JSONLWriter struct {
	dir string
}

// NewJSONLWriter creates dir if needed.
func NewJSONLWriter(dir string) (*JSONLWriter, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	return &JSONLWriter{dir: dir}, nil
}

// Write implements Writer.
func (w *JSONLWriter) Write(_ context.Context, name string, columns []string, rows [][]any) error {
	if err := validName(name); err != nil {
		return err
	}

	path := filepath.Join(w.dir, name+".jsonl")
	tmp, err := os.CreateTemp(w.dir, "."+name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	buf := bufio.NewWriter(tmp)
	enc := json.NewEncoder(buf)
	for i, row := range rows {
		obj := make(map[string]any, len(columns))
		for j, col := range columns {
			obj[col] = nil
			if j < len(row) {
				obj[col] = row[j]
			}
		}
		if err := enc.Encode(obj); err != nil {
			tmp.Close()
			return fmt.Errorf("encode row %d: %w", i, err)
		}
	}
	if err := buf.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}

func ensureDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}

// writeFileAtomic replaces path with data via a temp file in the same dir.
func writeFileAtomic(path string, data []byte) error {
	dir, base := filepath.Split(path)
	tmp, err := os.CreateTemp(dir, "."+base+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}
