package filter

import (
	"strings"

	"github.com/KaramelBytes/edusight-cli/internal/dataset"
)

// Result is a narrowed table and the labels of the criteria that matched.
type Result struct {
	Table   *dataset.Table
	Applied []string
}

// Apply narrows t by each populated dimension in order (code, name, class,
// grade, gender). A criterion whose value does not occur in the current,
// already narrowed table is skipped. ok is false when nothing was applied or
// the result is empty; callers then fall back to the unfiltered data.
// The input table is never modified.
func Apply(t *dataset.Table, c Criteria) (Result, bool) {
	if t.Empty() || c.Empty() {
		return Result{}, false
	}
	cur := t
	var applied []string

	narrow := func(col string, match func(cell string) bool) bool {
		column, ok := cur.Column(col)
		if !ok {
			return false
		}
		next := cur.Where(func(i int) bool {
			return !column.IsNull(i) && match(column.String(i))
		})
		if next.Empty() {
			return false
		}
		cur = next
		return true
	}

	if v, ok := c.Value(dataset.ColSchoolCode); ok {
		if narrow(dataset.ColSchoolCode, func(cell string) bool { return cell == v }) {
			applied = append(applied, "Código da escola: "+v)
		}
	}
	if c.SchoolName != "" {
		needle := strings.ToLower(c.SchoolName)
		if narrow(dataset.ColSchoolName, func(cell string) bool {
			return strings.Contains(strings.ToLower(cell), needle)
		}) {
			col, _ := cur.Column(dataset.ColSchoolName)
			applied = append(applied, "Escola: "+col.String(0))
		}
	}
	if c.Class != "" {
		if narrow(dataset.ColClass, func(cell string) bool { return cell == c.Class }) {
			applied = append(applied, "Turma: "+c.Class)
		}
	}
	if c.Grade != "" {
		if narrow(dataset.ColGrade, func(cell string) bool { return strings.Contains(cell, c.Grade) }) {
			applied = append(applied, "Série/Ano: "+c.Grade)
		}
	}
	if c.Gender != "" {
		if narrow(dataset.ColGender, func(cell string) bool { return cell == c.Gender }) {
			applied = append(applied, "Gênero: "+GenderLabel(c.Gender))
		}
	}

	if len(applied) == 0 || cur.Empty() {
		return Result{}, false
	}
	return Result{Table: cur, Applied: applied}, true
}

// Match is the first dataset that the criteria narrowed.
type Match struct {
	Name string
	Result
}

// ApplyFirst tries each dataset in order and returns the first match.
func ApplyFirst(sets []*dataset.Loaded, c Criteria) (Match, bool) {
	if c.Empty() {
		return Match{}, false
	}
	for _, ds := range sets {
		if ds == nil {
			continue
		}
		if res, ok := Apply(ds.Table, c); ok {
			return Match{Name: ds.Name, Result: res}, true
		}
	}
	return Match{}, false
}

// Describe joins applied labels for display.
func Describe(applied []string) string {
	if len(applied) == 0 {
		return "nenhum"
	}
	return strings.Join(applied, ", ")
}
