// Package table turns API responses into tables with a fixed column set per
// category.
package table

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/category"
	"github.com/dataiku/dss-plugin-linkedin-marketing/pkg/client"
)

// Row maps column names to cell values. Absent fields are nil.
type Row map[string]any

// Table is an ordered set of rows over the canonical columns of a category.
type Table struct {
	Category category.Category
	Columns  []string
	Rows     []Row
}

// New returns an empty table with the canonical columns of cat.
func New(cat category.Category, includeRaw bool) *Table {
	cols := category.Columns(cat, includeRaw)
	if cols == nil {
		cols = []string{category.ExceptionColumn}
		if includeRaw {
			cols = append(cols, category.RawResponseColumn)
		}
	}
	return &Table{Category: cat, Columns: cols}
}

// NewException returns a table holding a single exception row with message.
func NewException(cat category.Category, includeRaw bool, message string) *Table {
	t := New(cat, includeRaw)
	t.appendException(message, nil)
	return t
}

// Format converts resp into a table for cat.
//
// Each element becomes a row and each entry of "exceptions" adds an
// exception row. A present but empty elements array yields a table with
// headers and no rows. A response without elements yields one exception row
// holding the stringified response.
func Format(resp client.Response, cat category.Category, includeRaw bool) *Table {
	t := New(cat, includeRaw)
	if !cat.Valid() {
		t.appendException(fmt.Sprintf("invalid category %v", cat), resp)
		return t
	}

	elems, ok := resp.Elements()
	if !ok {
		t.appendException(client.Stringify(resp), resp)
		return t
	}

	fields := cat.Fields()
	for _, e := range elems {
		obj, _ := e.(map[string]any)
		row := make(Row, len(t.Columns))
		for _, f := range fields {
			row[f] = obj[f]
		}
		row[category.ExceptionColumn] = nil
		if t.hasRaw() {
			row[category.RawResponseColumn] = client.Stringify(e)
		}
		t.Rows = append(t.Rows, row)
	}

	for _, ex := range resp.Exceptions() {
		t.appendException(client.Stringify(ex), ex)
	}

	return t
}

func (t *Table) hasRaw() bool {
	return len(t.Columns) > 0 && t.Columns[len(t.Columns)-1] == category.RawResponseColumn
}

func (t *Table) appendException(message string, raw any) {
	row := make(Row, len(t.Columns))
	for _, c := range t.Columns {
		row[c] = nil
	}
	row[category.ExceptionColumn] = message
	if t.hasRaw() {
		if raw == nil {
			row[category.RawResponseColumn] = message
		} else {
			row[category.RawResponseColumn] = client.Stringify(raw)
		}
	}
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// IsEmpty reports whether the table has no rows.
func (t *Table) IsEmpty() bool {
	return len(t.Rows) == 0
}

// IsException reports whether the table has rows and all of them are
// exception rows.
func (t *Table) IsException() bool {
	if len(t.Rows) == 0 {
		return false
	}
	for _, r := range t.Rows {
		if !r.IsException() {
			return false
		}
	}
	return true
}

// IsException reports whether r carries an exception.
func (r Row) IsException() bool {
	return r[category.ExceptionColumn] != nil
}

// Column returns the cells of name in row order.
func (t *Table) Column(name string) []any {
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[name]
	}
	return out
}

// IDs returns the non-empty id cells of data rows, in row order.
func (t *Table) IDs() []string {
	var ids []string
	for _, r := range t.Rows {
		if r.IsException() {
			continue
		}
		if id := FormatValue(r[category.IDColumn]); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Cells returns every row's values in column order. Absent cells are nil.
func (t *Table) Cells() [][]any {
	out := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		rec := make([]any, len(t.Columns))
		for j, c := range t.Columns {
			rec[j] = r[c]
		}
		out[i] = rec
	}
	return out
}

// Values returns every row as strings in column order.
func (t *Table) Values() [][]string {
	out := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rec := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			rec[j] = FormatValue(r[c])
		}
		out[i] = rec
	}
	return out
}

// FormatValue renders a cell for text outputs: nil is empty, strings and
// numbers are written as-is and nested values as compact JSON.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool, int, int64, float64:
		return fmt.Sprint(x)
	default:
		return client.Stringify(x)
	}
}
