// Package analysis computes the statistical summary of an assessment table.
package analysis

import (
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/edusight-cli/internal/dataset"
)

// Stage is the assessment segment a table belongs to, inferred from which
// metric columns are present.
type Stage int

const (
	StageGeneric Stage = iota
	StageEarly
	StageMiddle
	StageSecondary
	StageNone
)

// Label returns the display label of the stage.
func (s Stage) Label() string {
	switch s {
	case StageEarly:
		return "EFAI - Anos Iniciais"
	case StageMiddle:
		return "EFAF - Anos Finais"
	case StageSecondary:
		return "EM - Ensino Médio"
	case StageNone:
		return "Nenhum dado encontrado"
	}
	return "Genérico"
}

// Subjects lists the subjects assessed at this stage.
func (s Stage) Subjects() []string {
	switch s {
	case StageEarly:
		return []string{"Língua Portuguesa", "Matemática"}
	case StageMiddle:
		return []string{"LP", "Inglês", "Ciências", "Matemática", "História", "Geografia"}
	case StageSecondary:
		return []string{"LP", "Inglês", "Biologia", "Física", "Química", "Matemática", "Geografia", "História", "Filosofia"}
	}
	return []string{}
}

func (s Stage) String() string { return s.Label() }

// Classify picks the stage by trigger column, first match wins.
func Classify(t *dataset.Table) Stage {
	switch {
	case t.Has("profic_lp"):
		return StageEarly
	case t.Has("nota_ch"):
		return StageMiddle
	case t.Has("nota_fil"):
		return StageSecondary
	}
	return StageGeneric
}

var (
	metricPrefixes = []string{"nota_", "profic_", "porc_", "acertos_"}
	levelPrefixes  = []string{"nivel_profic_", "nivSaeb_", "classific_"}
)

// IsMetric reports whether a column name follows a score naming convention.
func IsMetric(name string) bool { return hasAnyPrefix(name, metricPrefixes) }

// IsLevel reports whether a column name holds categorical proficiency levels.
func IsLevel(name string) bool { return hasAnyPrefix(name, levelPrefixes) }

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// Stats are descriptive statistics rounded to two decimals.
type Stats struct {
	Mean   float64 `json:"media"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"mediana"`
	Count  int     `json:"n"`
}

// Metric pairs a numeric column with its statistics.
type Metric struct {
	Column string `json:"column"`
	Stats
}

// Share is one category of a distribution, in percent of non-null rows.
type Share struct {
	Value   string  `json:"value"`
	Percent float64 `json:"percent"`
}

// Distribution is the share of each level in one level column, ordered by
// descending share.
type Distribution struct {
	Column string  `json:"column"`
	Shares []Share `json:"shares"`
}

// Count is one value of a grouping column and its row count.
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// MaxSchoolExamples caps the school name and code enumerations.
const MaxSchoolExamples = 10

// Summary is the read-only analysis of a table or a filtered subset of it.
type Summary struct {
	Filename    string         `json:"filename"`
	Rows        int            `json:"total_alunos"`
	Columns     []string       `json:"colunas"`
	Stage       Stage          `json:"-"`
	Type        string         `json:"tipo"`
	Subjects    []string       `json:"disciplinas"`
	LP          *Stats         `json:"lp,omitempty"`
	MAT         *Stats         `json:"mat,omitempty"`
	Metrics     []Metric       `json:"numeric_stats,omitempty"`
	Levels      []Distribution `json:"level_distributions,omitempty"`
	Grades      []Count        `json:"series,omitempty"`
	Genders     []Count        `json:"genero,omitempty"`
	Classes     []Count        `json:"turmas,omitempty"`
	SchoolCount int            `json:"num_escolas,omitempty"`
	SchoolNames []string       `json:"nomes_escolas,omitempty"`
	CodeCount   int            `json:"num_cod_escolas,omitempty"`
	SchoolCodes []string       `json:"cods_escolas,omitempty"`
	Filters     []string       `json:"filters_applied,omitempty"`
}

// Metric returns the stats for a column, if it was summarized.
func (s *Summary) Metric(column string) (Stats, bool) {
	for _, m := range s.Metrics {
		if m.Column == column {
			return m.Stats, true
		}
	}
	return Stats{}, false
}

// Analyze summarizes t. filters only labels the provenance of a filtered
// subset and does not affect the computation.
func Analyze(t *dataset.Table, filename string, filters []string) *Summary {
	if t.Empty() {
		return &Summary{
			Filename: filename,
			Columns:  []string{},
			Stage:    StageNone,
			Type:     StageNone.Label(),
			Subjects: []string{},
			Filters:  filters,
		}
	}
	stage := Classify(t)
	s := &Summary{
		Filename: filename,
		Rows:     t.Len(),
		Columns:  t.Columns(),
		Stage:    stage,
		Type:     stage.Label(),
		Subjects: stage.Subjects(),
		Filters:  filters,
	}

	if c, ok := t.Column("nota_lp"); ok && c.Numeric() {
		s.LP = describe(c.Floats())
	}
	if c, ok := t.Column("nota_mat"); ok && c.Numeric() {
		s.MAT = describe(c.Floats())
	}

	for i := 0; i < t.NumColumns(); i++ {
		c := t.ColumnAt(i)
		switch {
		case IsMetric(c.Name) && c.Numeric():
			if st := describe(c.Floats()); st != nil {
				s.Metrics = append(s.Metrics, Metric{Column: c.Name, Stats: *st})
			}
		case IsLevel(c.Name):
			if d := distribution(c); len(d.Shares) > 0 {
				s.Levels = append(s.Levels, d)
			}
		}
	}

	if c, ok := t.Column(dataset.ColGrade); ok {
		s.Grades = ValueCounts(c)
	}
	if c, ok := t.Column(dataset.ColGender); ok {
		s.Genders = ValueCounts(c)
	}
	if c, ok := t.Column(dataset.ColClass); ok {
		s.Classes = ValueCounts(c)
	}
	if c, ok := t.Column(dataset.ColSchoolName); ok {
		names := distinct(c)
		s.SchoolCount = len(names)
		s.SchoolNames = capStrings(names, MaxSchoolExamples)
	}
	if c, ok := t.Column(dataset.ColSchoolCode); ok {
		codes := distinct(c)
		s.CodeCount = len(codes)
		s.SchoolCodes = capStrings(codes, MaxSchoolExamples)
	}
	return s
}

func describe(vals []float64) *Stats {
	if len(vals) == 0 {
		return nil
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	return &Stats{
		Mean:   Round2(sum / float64(len(sorted))),
		Min:    Round2(sorted[0]),
		Max:    Round2(sorted[len(sorted)-1]),
		Median: Round2(quantile(sorted, 0.5)),
		Count:  len(sorted),
	}
}

func distribution(c *dataset.Column) Distribution {
	counts := ValueCounts(c)
	total := 0
	for _, kv := range counts {
		total += kv.Count
	}
	d := Distribution{Column: c.Name}
	for _, kv := range counts {
		d.Shares = append(d.Shares, Share{
			Value:   kv.Value,
			Percent: Round2(float64(kv.Count) * 100 / float64(total)),
		})
	}
	return d
}

// ValueCounts counts non-null values, most frequent first; ties keep
// first-occurrence order.
func ValueCounts(c *dataset.Column) []Count {
	idx := map[string]int{}
	var out []Count
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			continue
		}
		v := c.String(i)
		if j, ok := idx[v]; ok {
			out[j].Count++
			continue
		}
		idx[v] = len(out)
		out = append(out, Count{Value: v, Count: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func distinct(c *dataset.Column) []string {
	seen := map[string]bool{}
	var out []string
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			continue
		}
		v := c.String(i)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func capStrings(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// Mean averages the non-null numeric cells of rows in c; ok is false when
// none are numeric.
func Mean(c *dataset.Column, rows []int) (float64, bool) {
	sum, n := 0.0, 0
	for _, i := range rows {
		if v, ok := c.Float(i); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
