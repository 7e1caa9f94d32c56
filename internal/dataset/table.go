// Package dataset holds the immutable tabular model used by the analysis
// pipeline, plus loaders and the column-name normalizer.
package dataset

import (
	"math"
	"strconv"
	"strings"
)

// Kind is the inferred storage type of a column.
type Kind int

const (
	KindText Kind = iota
	KindNumeric
)

func (k Kind) String() string {
	if k == KindNumeric {
		return "numeric"
	}
	return "text"
}

// Column is a named, typed sequence of cells. Columns are never mutated after
// construction; tables share them freely.
type Column struct {
	Name string
	Kind Kind
	nums []float64
	strs []string
	null []bool
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.null) }

// Numeric reports whether every non-null cell parsed as a number.
func (c *Column) Numeric() bool { return c.Kind == KindNumeric }

// IsNull reports whether the i-th cell is missing.
func (c *Column) IsNull(i int) bool { return c.null[i] }

// Float returns the numeric value of the i-th cell. ok is false for nulls and
// for text columns.
func (c *Column) Float(i int) (float64, bool) {
	if c.Kind != KindNumeric || c.null[i] {
		return 0, false
	}
	return c.nums[i], true
}

// String returns the display form of the i-th cell, "" for nulls.
func (c *Column) String(i int) string {
	if c.null[i] {
		return ""
	}
	if c.Kind == KindNumeric {
		return FormatNumber(c.nums[i])
	}
	return c.strs[i]
}

// Floats returns the non-null numeric values in row order.
func (c *Column) Floats() []float64 {
	if c.Kind != KindNumeric {
		return nil
	}
	out := make([]float64, 0, len(c.nums))
	for i, v := range c.nums {
		if !c.null[i] {
			out = append(out, v)
		}
	}
	return out
}

// NonNull counts cells that are not missing.
func (c *Column) NonNull() int {
	n := 0
	for _, isNull := range c.null {
		if !isNull {
			n++
		}
	}
	return n
}

func (c *Column) pick(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind, null: make([]bool, len(rows))}
	if c.Kind == KindNumeric {
		out.nums = make([]float64, len(rows))
	} else {
		out.strs = make([]string, len(rows))
	}
	for k, i := range rows {
		out.null[k] = c.null[i]
		if c.Kind == KindNumeric {
			out.nums[k] = c.nums[i]
		} else {
			out.strs[k] = c.strs[i]
		}
	}
	return out
}

// NewTextColumn builds a text column. Empty strings are nulls.
func NewTextColumn(name string, values []string) *Column {
	c := &Column{Name: name, Kind: KindText, strs: make([]string, len(values)), null: make([]bool, len(values))}
	for i, v := range values {
		c.strs[i] = v
		c.null[i] = v == ""
	}
	return c
}

// NewNumericColumn builds a numeric column. NaN values are nulls.
func NewNumericColumn(name string, values []float64) *Column {
	c := &Column{Name: name, Kind: KindNumeric, nums: make([]float64, len(values)), null: make([]bool, len(values))}
	for i, v := range values {
		c.nums[i] = v
		c.null[i] = math.IsNaN(v)
	}
	return c
}

// Table is an immutable set of equally long columns. Every row remembers the
// index it had in the table it was loaded from.
type Table struct {
	cols   []*Column
	index  []int
	byName map[string]int
}

// New assembles a table from columns of equal length.
func New(cols ...*Column) *Table {
	n := 0
	if len(cols) > 0 {
		n = cols[0].Len()
	}
	index := make([]int, n)
	for i := range index {
		index[i] = i
	}
	return build(cols, index)
}

func build(cols []*Column, index []int) *Table {
	t := &Table{cols: cols, index: index, byName: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, dup := t.byName[c.Name]; !dup {
			t.byName[c.Name] = i
		}
	}
	return t
}

// FromRecords infers column kinds from raw string records.
func FromRecords(header []string, records [][]string, opt ParseOptions) *Table {
	cols := make([]*Column, len(header))
	for j, name := range header {
		raw := make([]string, len(records))
		for i, rec := range records {
			if j < len(rec) {
				raw[i] = strings.TrimSpace(rec[j])
			}
		}
		cols[j] = inferColumn(strings.TrimSpace(name), raw, opt)
	}
	index := make([]int, len(records))
	for i := range index {
		index[i] = i
	}
	return build(cols, index)
}

func inferColumn(name string, raw []string, opt ParseOptions) *Column {
	null := make([]bool, len(raw))
	nums := make([]float64, len(raw))
	numeric := true
	seen := 0
	for i, v := range raw {
		if isMissing(v) {
			null[i] = true
			continue
		}
		seen++
		if !numeric {
			continue
		}
		x, ok := parseNumeric(v, opt)
		if !ok {
			numeric = false
			continue
		}
		nums[i] = x
	}
	if numeric && seen > 0 {
		return &Column{Name: name, Kind: KindNumeric, nums: nums, null: null}
	}
	strs := make([]string, len(raw))
	for i, v := range raw {
		if !null[i] {
			strs[i] = v
		}
	}
	return &Column{Name: name, Kind: KindText, strs: strs, null: null}
}

var missingTokens = map[string]bool{
	"": true, "NA": true, "N/A": true, "NaN": true, "nan": true,
	"null": true, "NULL": true, "None": true, "#N/A": true,
}

func isMissing(v string) bool { return missingTokens[v] }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.index) }

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool { return t == nil || len(t.index) == 0 }

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Column looks a column up by exact name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// ColumnAt returns the i-th column.
func (t *Table) ColumnAt(i int) *Column { return t.cols[i] }

// NumColumns returns the column count.
func (t *Table) NumColumns() int { return len(t.cols) }

// Has reports whether a column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// RowIndex returns the source index of the i-th row.
func (t *Table) RowIndex(i int) int { return t.index[i] }

// Select returns a new table holding the given rows, in the given order.
func (t *Table) Select(rows []int) *Table {
	cols := make([]*Column, len(t.cols))
	for j, c := range t.cols {
		cols[j] = c.pick(rows)
	}
	index := make([]int, len(rows))
	for k, i := range rows {
		index[k] = t.index[i]
	}
	return build(cols, index)
}

// Where returns the rows for which keep returns true.
func (t *Table) Where(keep func(row int) bool) *Table {
	var rows []int
	for i := 0; i < t.Len(); i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return t.Select(rows)
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	if n > t.Len() {
		n = t.Len()
	}
	if n < 0 {
		n = 0
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return t.Select(rows)
}

// Rename returns a table whose columns are renamed per mapping. Columns not in
// the mapping keep their name.
func (t *Table) Rename(mapping map[string]string) *Table {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		if to, ok := mapping[c.Name]; ok {
			cp := *c
			cp.Name = to
			cols[i] = &cp
			continue
		}
		cols[i] = c
	}
	index := make([]int, len(t.index))
	copy(index, t.index)
	return build(cols, index)
}

// FormatNumber renders integral values without a fractional part.
func FormatNumber(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
