package chart

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/edusight-cli/internal/dataset"
)

func scores() *dataset.Table {
	return dataset.New(
		dataset.NewTextColumn(dataset.ColGender, []string{"M", "F", "F", "M"}),
		dataset.NewTextColumn(dataset.ColClass, []string{"B", "A", "B", "A"}),
		dataset.NewNumericColumn(dataset.ColGrade, []float64{9, 7, 7, 10}),
		dataset.NewNumericColumn("nota_lp", []float64{5, 6, 7, 8}),
		dataset.NewNumericColumn("nota_mat", []float64{7, 8, math.NaN(), 6}),
		dataset.NewNumericColumn("nota_lp_original", []float64{1, 2, 3, 4}),
		dataset.NewTextColumn("nivel_profic_mat", []string{"Básico", "Básico", "Adequado", ""}),
	)
}

func TestRequested(t *testing.T) {
	assert.True(t, Requested("Mostre um GRÁFICO por turma"))
	assert.True(t, Requested("mostre a distribuição"))
	assert.False(t, Requested("Qual a média da turma A?"))
}

func TestHistogramOverlay(t *testing.T) {
	spec, err := Select("mostre a distribuição", scores(), false)
	require.NoError(t, err)
	require.NotNil(t, spec)
	assert.Equal(t, HistogramOverlay, spec.Kind)
	assert.Equal(t, "VISÃO GERAL - Distribuição de Notas", spec.Title)
	assert.Equal(t, "overlay", spec.BarMode)
	require.Len(t, spec.Traces, 2)
	for _, tr := range spec.Traces {
		assert.Equal(t, Bins, tr.NBinsX)
		assert.Equal(t, 20, tr.NBinsX)
		assert.Equal(t, 0.7, tr.Opacity)
	}
	assert.Equal(t, []float64{7, 8, 6}, spec.Traces[1].X, "nulls dropped")
}

func TestHistogramFallsThroughWithoutMat(t *testing.T) {
	tbl := dataset.New(
		dataset.NewNumericColumn("nota_lp", []float64{5, 6}),
		dataset.NewNumericColumn("nota_cie", []float64{4, 7}),
	)
	spec, err := Select("mostre a distribuição", tbl, true)
	require.NoError(t, err)
	require.NotNil(t, spec)
	assert.Equal(t, BoxFallback, spec.Kind)
	assert.Equal(t, "DADOS FILTRADOS - Distribuição de Métricas", spec.Title)
	assert.Equal(t, "lp", spec.Traces[0].Name)
	assert.Equal(t, "cie", spec.Traces[1].Name)
}

func TestNoScoreColumnsMeansNoChart(t *testing.T) {
	tbl := dataset.New(dataset.NewTextColumn(dataset.ColClass, []string{"A"}))
	spec, err := Select("gráfico da distribuição", tbl, false)
	require.NoError(t, err)
	assert.Nil(t, spec)

	spec, err = Select("qualquer", dataset.New(), false)
	require.NoError(t, err)
	assert.Nil(t, spec)
}

func TestGenderBars(t *testing.T) {
	spec, err := Select("compare por gênero", scores(), false)
	require.NoError(t, err)
	require.NotNil(t, spec)
	assert.Equal(t, BarByGender, spec.Kind)
	assert.Equal(t, []string{"Feminino", "Masculino"}, spec.Traces[0].X)
	lp := spec.Traces[0].Y.([]*float64)
	assert.Equal(t, 6.5, *lp[0])
	assert.Equal(t, 6.5, *lp[1])
	mat := spec.Traces[1].Y.([]*float64)
	assert.Equal(t, 8.0, *mat[0], "null skipped in mean")
	assert.Equal(t, 6.5, *mat[1])
}

func TestGenderBarsWithoutMatIsNoChart(t *testing.T) {
	tbl := dataset.New(
		dataset.NewTextColumn(dataset.ColGender, []string{"F"}),
		dataset.NewNumericColumn("nota_lp", []float64{5}),
	)
	spec, err := Select("meninas do sexo feminino", tbl, false)
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Nil(t, spec)
}

func TestBoxBySubjectExcludesOriginal(t *testing.T) {
	spec, err := Select("faça um boxplot", scores(), false)
	require.NoError(t, err)
	require.NotNil(t, spec)
	assert.Equal(t, BoxBySubject, spec.Kind)
	require.Len(t, spec.Traces, 2)
	assert.Equal(t, "LP", spec.Traces[0].Name)
	assert.Equal(t, "MAT", spec.Traces[1].Name)
}

func TestBoxCappedAtSix(t *testing.T) {
	var cols []*dataset.Column
	for _, s := range []string{"lp", "mat", "cie", "his", "geo", "ing", "fil"} {
		cols = append(cols, dataset.NewNumericColumn("nota_"+s, []float64{1, 2}))
	}
	spec, err := Select("dispersão", dataset.New(cols...), false)
	require.NoError(t, err)
	assert.Len(t, spec.Traces, 6)
}

func TestPieByLevel(t *testing.T) {
	spec, err := Select("gráfico de pizza", scores(), true)
	require.NoError(t, err)
	require.NotNil(t, spec)
	assert.Equal(t, PieByLevel, spec.Kind)
	assert.Equal(t, "DADOS FILTRADOS - Distribuição de Níveis (nivel_profic_mat)", spec.Title)
	assert.Equal(t, []string{"Básico", "Adequado"}, spec.Traces[0].Labels)
	assert.Equal(t, []int{2, 1}, spec.Traces[0].Values)
}

func TestClassAndGradeBars(t *testing.T) {
	spec, err := Select("média por turma", scores(), false)
	require.NoError(t, err)
	assert.Equal(t, BarByClass, spec.Kind)
	assert.Equal(t, []string{"A", "B"}, spec.Traces[0].X)
	assert.Equal(t, "LP", spec.Traces[0].Name)

	spec, err = Select("média por série", scores(), false)
	require.NoError(t, err)
	assert.Equal(t, BarByGrade, spec.Kind)
	assert.Equal(t, []string{"7", "9", "10"}, spec.Traces[0].X, "numeric keys sort numerically")
}

func TestRuleOrderFirstMatchWins(t *testing.T) {
	// both histogram and class words: histogram is earlier
	spec, err := Select("distribuição por turma", scores(), false)
	require.NoError(t, err)
	assert.Equal(t, HistogramOverlay, spec.Kind)
}

func TestNonNumericScoreIsNoChart(t *testing.T) {
	tbl := dataset.New(
		dataset.NewTextColumn("nota_lp", []string{"alto"}),
		dataset.NewNumericColumn("nota_mat", []float64{5}),
	)
	spec, err := Select("histograma", tbl, false)
	require.ErrorIs(t, err, ErrNotNumeric)
	assert.Nil(t, spec)
}

func TestFigureJSON(t *testing.T) {
	spec, err := Select("mostre a distribuição", scores(), false)
	require.NoError(t, err)
	b, err := spec.Figure()
	require.NoError(t, err)

	var fig struct {
		Data []struct {
			Type   string    `json:"type"`
			NBinsX int       `json:"nbinsx"`
			X      []float64 `json:"x"`
		} `json:"data"`
		Layout struct {
			Title    struct{ Text string } `json:"title"`
			BarMode  string                `json:"barmode"`
			Template string                `json:"template"`
			Height   int                   `json:"height"`
		} `json:"layout"`
	}
	require.NoError(t, json.Unmarshal(b, &fig))
	require.Len(t, fig.Data, 2)
	assert.Equal(t, "histogram", fig.Data[0].Type)
	assert.Equal(t, 20, fig.Data[0].NBinsX)
	assert.Equal(t, "overlay", fig.Layout.BarMode)
	assert.Equal(t, "plotly_white", fig.Layout.Template)
	assert.Equal(t, 450, fig.Layout.Height)
	assert.Equal(t, "VISÃO GERAL - Distribuição de Notas", fig.Layout.Title.Text)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "histogram-overlay", HistogramOverlay.String())
	assert.Equal(t, "none", None.String())
}
