// Package chart picks a chart archetype for a free-text request and emits it
// as a Plotly figure.
package chart

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/edusight-cli/internal/analysis"
	"github.com/KaramelBytes/edusight-cli/internal/dataset"
)

// Kind is the chart archetype.
type Kind int

const (
	None Kind = iota
	HistogramOverlay
	BarByGender
	BoxBySubject
	PieByLevel
	BarByClass
	BarByGrade
	BoxFallback
)

var kindNames = map[Kind]string{
	None:             "none",
	HistogramOverlay: "histogram-overlay",
	BarByGender:      "grouped-bar-by-gender",
	BoxBySubject:     "boxplot-by-subject",
	PieByLevel:       "pie-by-level",
	BarByClass:       "grouped-bar-by-class",
	BarByGrade:       "grouped-bar-by-grade",
	BoxFallback:      "fallback-boxplot",
}

func (k Kind) String() string { return kindNames[k] }

// Errors raised while building a chart whose rule already fired.
var (
	ErrMissingColumn = errors.New("missing column")
	ErrNotNumeric    = errors.New("column is not numeric")
)

// Layout constants shared by every figure.
const (
	Height   = 450
	Template = "plotly_white"
	Bins     = 20
	Opacity  = 0.7
	maxBoxes = 6
)

// Trace is one Plotly trace.
type Trace struct {
	Type    string   `json:"type"`
	Name    string   `json:"name,omitempty"`
	X       any      `json:"x,omitempty"`
	Y       any      `json:"y,omitempty"`
	Labels  []string `json:"labels,omitempty"`
	Values  []int    `json:"values,omitempty"`
	Opacity float64  `json:"opacity,omitempty"`
	NBinsX  int      `json:"nbinsx,omitempty"`
}

// Spec is a chosen chart: archetype, titles and traces bound to table data.
type Spec struct {
	Kind    Kind
	Title   string
	XTitle  string
	YTitle  string
	BarMode string
	Traces  []Trace
}

// Figure renders the spec as Plotly figure JSON.
func (s *Spec) Figure() ([]byte, error) {
	type axis struct {
		Title struct {
			Text string `json:"text"`
		} `json:"title"`
	}
	type layout struct {
		Title struct {
			Text string `json:"text"`
		} `json:"title"`
		XAxis    *axis  `json:"xaxis,omitempty"`
		YAxis    *axis  `json:"yaxis,omitempty"`
		BarMode  string `json:"barmode,omitempty"`
		Template string `json:"template"`
		Height   int    `json:"height"`
	}
	var l layout
	l.Title.Text = s.Title
	if s.XTitle != "" {
		l.XAxis = &axis{}
		l.XAxis.Title.Text = s.XTitle
	}
	if s.YTitle != "" {
		l.YAxis = &axis{}
		l.YAxis.Title.Text = s.YTitle
	}
	l.BarMode = s.BarMode
	l.Template = Template
	l.Height = Height
	b, err := json.Marshal(struct {
		Data   []Trace `json:"data"`
		Layout layout  `json:"layout"`
	}{s.Traces, l})
	if err != nil {
		return nil, fmt.Errorf("marshal figure: %w", err)
	}
	return b, nil
}

// requestWords mark a request as asking for a visualization.
var requestWords = []string{"gráfico", "visualização", "visualizar", "mostrar", "plotar", "distribuição", "comparação", "boxplot", "pizza"}

// Requested reports whether text asks for a chart at all.
func Requested(text string) bool {
	return containsAny(strings.ToLower(text), requestWords)
}

type rule struct {
	words []string
	build func(t *dataset.Table, prefix string) (*Spec, bool, error)
}

// rules run in order; the first whose words match and whose columns exist wins.
var rules = []rule{
	{[]string{"distribuição", "histograma"}, histogram},
	{[]string{"gênero", "genero", "sexo", "feminino", "masculino"}, byGender},
	{[]string{"boxplot", "dispersão"}, boxBySubject},
	{[]string{"pizza", "nível", "nivel"}, pieByLevel},
	{[]string{"turma"}, groupedBy(dataset.ColClass, BarByClass, "Média por Turma", "Turma", "LP", "MAT")},
	{[]string{"série", "serie"}, groupedBy(dataset.ColGrade, BarByGrade, "Média por Série/Ano", "Série/Ano", "LP", "MAT")},
}

// Select walks the rule cascade for text over t. filtered only changes the
// title prefix. It returns nil when no chart applies, and an error when the
// winning rule could not build its chart; callers show no chart either way.
func Select(text string, t *dataset.Table, filtered bool) (*Spec, error) {
	if t.Empty() {
		return nil, nil
	}
	prefix := "VISÃO GERAL"
	if filtered {
		prefix = "DADOS FILTRADOS"
	}
	lower := strings.ToLower(text)
	for _, r := range rules {
		if !containsAny(lower, r.words) {
			continue
		}
		spec, fired, err := r.build(t, prefix)
		if err != nil {
			return nil, err
		}
		if fired {
			return spec, nil
		}
	}
	return fallback(t, prefix)
}

func histogram(t *dataset.Table, prefix string) (*Spec, bool, error) {
	lp, okLP := t.Column("nota_lp")
	mat, okMat := t.Column("nota_mat")
	if !okLP || !okMat {
		return nil, false, nil
	}
	if !lp.Numeric() || !mat.Numeric() {
		return nil, true, fmt.Errorf("histogram: %w", ErrNotNumeric)
	}
	return &Spec{
		Kind:    HistogramOverlay,
		Title:   prefix + " - Distribuição de Notas",
		XTitle:  "Nota",
		YTitle:  "Frequência",
		BarMode: "overlay",
		Traces: []Trace{
			{Type: "histogram", Name: "Língua Portuguesa", X: lp.Floats(), Opacity: Opacity, NBinsX: Bins},
			{Type: "histogram", Name: "Matemática", X: mat.Floats(), Opacity: Opacity, NBinsX: Bins},
		},
	}, true, nil
}

func byGender(t *dataset.Table, prefix string) (*Spec, bool, error) {
	if !t.Has(dataset.ColGender) || !t.Has("nota_lp") {
		return nil, false, nil
	}
	keys, lp, mat, err := groupMeans(t, dataset.ColGender)
	if err != nil {
		return nil, true, fmt.Errorf("gender bars: %w", err)
	}
	labels := make([]string, len(keys))
	for i, k := range keys {
		labels[i] = "Masculino"
		if k == "F" {
			labels[i] = "Feminino"
		}
	}
	return &Spec{
		Kind:    BarByGender,
		Title:   prefix + " - Média de Notas por Gênero",
		YTitle:  "Média",
		BarMode: "group",
		Traces: []Trace{
			{Type: "bar", Name: "Língua Portuguesa", X: labels, Y: lp},
			{Type: "bar", Name: "Matemática", X: labels, Y: mat},
		},
	}, true, nil
}

func scoreColumns(t *dataset.Table) []*dataset.Column {
	var out []*dataset.Column
	for i := 0; i < t.NumColumns(); i++ {
		c := t.ColumnAt(i)
		if strings.HasPrefix(c.Name, "nota_") && !strings.Contains(c.Name, "original") {
			out = append(out, c)
		}
	}
	return out
}

func boxes(cols []*dataset.Column, name func(string) string) ([]Trace, error) {
	if len(cols) > maxBoxes {
		cols = cols[:maxBoxes]
	}
	traces := make([]Trace, 0, len(cols))
	for _, c := range cols {
		if !c.Numeric() {
			return nil, fmt.Errorf("%s: %w", c.Name, ErrNotNumeric)
		}
		traces = append(traces, Trace{Type: "box", Name: name(strings.TrimPrefix(c.Name, "nota_")), Y: c.Floats()})
	}
	return traces, nil
}

func boxBySubject(t *dataset.Table, prefix string) (*Spec, bool, error) {
	cols := scoreColumns(t)
	if len(cols) < 2 {
		return nil, false, nil
	}
	traces, err := boxes(cols, strings.ToUpper)
	if err != nil {
		return nil, true, fmt.Errorf("subject boxes: %w", err)
	}
	return &Spec{
		Kind:   BoxBySubject,
		Title:  prefix + " - Distribuição de Notas por Disciplina (Boxplot)",
		YTitle: "Nota",
		Traces: traces,
	}, true, nil
}

func pieByLevel(t *dataset.Table, prefix string) (*Spec, bool, error) {
	for i := 0; i < t.NumColumns(); i++ {
		c := t.ColumnAt(i)
		lower := strings.ToLower(c.Name)
		if !strings.Contains(lower, "nivel") && !strings.Contains(lower, "classific") {
			continue
		}
		counts := analysis.ValueCounts(c)
		tr := Trace{Type: "pie", Labels: make([]string, len(counts)), Values: make([]int, len(counts))}
		for j, kv := range counts {
			tr.Labels[j] = kv.Value
			tr.Values[j] = kv.Count
		}
		return &Spec{
			Kind:   PieByLevel,
			Title:  fmt.Sprintf("%s - Distribuição de Níveis (%s)", prefix, c.Name),
			Traces: []Trace{tr},
		}, true, nil
	}
	return nil, false, nil
}

func groupedBy(col string, kind Kind, title, xTitle, lpName, matName string) func(*dataset.Table, string) (*Spec, bool, error) {
	return func(t *dataset.Table, prefix string) (*Spec, bool, error) {
		if !t.Has(col) || !t.Has("nota_lp") {
			return nil, false, nil
		}
		keys, lp, mat, err := groupMeans(t, col)
		if err != nil {
			return nil, true, fmt.Errorf("%s bars: %w", col, err)
		}
		return &Spec{
			Kind:    kind,
			Title:   prefix + " - " + title,
			XTitle:  xTitle,
			YTitle:  "Média",
			BarMode: "group",
			Traces: []Trace{
				{Type: "bar", Name: lpName, X: keys, Y: lp},
				{Type: "bar", Name: matName, X: keys, Y: mat},
			},
		}, true, nil
	}
}

func fallback(t *dataset.Table, prefix string) (*Spec, error) {
	cols := scoreColumns(t)
	if len(cols) == 0 {
		return nil, nil
	}
	traces, err := boxes(cols, func(s string) string { return s })
	if err != nil {
		return nil, fmt.Errorf("fallback boxes: %w", err)
	}
	return &Spec{
		Kind:   BoxFallback,
		Title:  prefix + " - Distribuição de Métricas",
		YTitle: "Valor",
		Traces: traces,
	}, nil
}

// groupMeans averages nota_lp and nota_mat per non-null value of key, groups
// sorted by key. A group without numeric scores gets a null mean.
func groupMeans(t *dataset.Table, key string) ([]string, []*float64, []*float64, error) {
	keyCol, ok := t.Column(key)
	if !ok {
		return nil, nil, nil, fmt.Errorf("%s: %w", key, ErrMissingColumn)
	}
	lp, okLP := t.Column("nota_lp")
	mat, okMat := t.Column("nota_mat")
	if !okLP || !okMat {
		return nil, nil, nil, fmt.Errorf("nota_lp/nota_mat: %w", ErrMissingColumn)
	}
	if !lp.Numeric() || !mat.Numeric() {
		return nil, nil, nil, fmt.Errorf("nota_lp/nota_mat: %w", ErrNotNumeric)
	}

	rows := map[string][]int{}
	for i := 0; i < keyCol.Len(); i++ {
		if keyCol.IsNull(i) {
			continue
		}
		k := keyCol.String(i)
		rows[k] = append(rows[k], i)
	}
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sortKeys(keys, keyCol.Numeric())

	lpMeans := make([]*float64, len(keys))
	matMeans := make([]*float64, len(keys))
	for i, k := range keys {
		if v, ok := analysis.Mean(lp, rows[k]); ok {
			lpMeans[i] = &v
		}
		if v, ok := analysis.Mean(mat, rows[k]); ok {
			matMeans[i] = &v
		}
	}
	return keys, lpMeans, matMeans, nil
}

func sortKeys(keys []string, numeric bool) {
	if !numeric {
		sort.Strings(keys)
		return
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.ParseFloat(keys[i], 64)
		b, _ := strconv.ParseFloat(keys[j], 64)
		return a < b
	})
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
