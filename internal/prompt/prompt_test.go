package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/edusight-cli/internal/dataset"
)

func sampleTable() *dataset.Table {
	return dataset.New(
		dataset.NewNumericColumn(dataset.ColSchoolCode, []float64{100, 100, 200, 200}),
		dataset.NewTextColumn(dataset.ColSchoolName, []string{"EE Silva", "EE Silva", "EE Barbosa", "EE Barbosa"}),
		dataset.NewTextColumn(dataset.ColClass, []string{"A", "B", "A", "A"}),
		dataset.NewNumericColumn("nota_lp", []float64{5, 7, 6, 8}),
		dataset.NewNumericColumn("nota_mat", []float64{7, 9, 5, 7}),
		dataset.NewNumericColumn("nota_cie", []float64{4, 6, 5, 5}),
		dataset.NewTextColumn("nivel_profic_lp", []string{"Básico", "Adequado", "Básico", "Avançado"}),
	)
}

func TestBuildFilteredEmpty(t *testing.T) {
	empty := sampleTable().Head(0)
	out := BuildFiltered(empty, "a.csv", []string{"Turma: Z", "Gênero: Feminino"}, ContextOptions{})
	assert.Equal(t, "=== DADOS FILTRADOS ===\n\nNenhum dado encontrado para os filtros: Turma: Z, Gênero: Feminino\n", out)
	assert.NotContains(t, out, "AMOSTRA")
}

func TestBuildFilteredSections(t *testing.T) {
	tbl := sampleTable()
	sub := tbl.Where(func(i int) bool { return i < 2 })
	out := BuildFiltered(sub, "saresp.csv", []string{"Código da escola: 100"}, ContextOptions{})

	for _, want := range []string{
		"=== ANÁLISE FOCADA (FILTROS APLICADOS) ===",
		"🎯 FILTROS ATIVOS: Código da escola: 100",
		"📄 ARQUIVO: saresp.csv",
		"Tipo: Genérico",
		"Total de alunos: 2\n",
		"📊 LÍNGUA PORTUGUESA:\n  - Média: 6.0\n  - Mínimo: 5.0\n  - Máximo: 7.0",
		"📊 MATEMÁTICA:\n  - Média: 8.0",
		"  - nota_cie: média=5.0, min=4.0, max=6.0",
		"📈 DISTRIBUIÇÃO DE NÍVEIS (% de alunos):\n  nivel_profic_lp:\n    - Básico: 50.0%",
		"🏫 Turmas: A (1 alunos), B (1 alunos)",
		"📋 AMOSTRA DOS DADOS (3 primeiras linhas):",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Total de escolas", "single school is not enumerated")
	assert.True(t, strings.HasSuffix(out, strings.Repeat("=", 70)+"\n\n"))
}

func TestBuildOverview(t *testing.T) {
	assert.Equal(t, "Nenhum dado foi carregado ainda.", BuildOverview(nil, ContextOptions{}))

	sets := []*dataset.Loaded{
		{Name: "b.csv", Table: sampleTable()},
		{Name: "a.csv", Table: sampleTable().Head(0)},
	}
	out := BuildOverview(sets, ContextOptions{PreviewRows: 2})
	require.True(t, strings.HasPrefix(out, "=== VISÃO GERAL DE TODOS OS DADOS ===\n\n"))
	assert.Less(t, strings.Index(out, "b.csv"), strings.Index(out, "a.csv"), "load order kept")
	assert.Contains(t, out, "📄 a.csv: Nenhum aluno encontrado")
	assert.Contains(t, out, "🏢 Total de escolas: 2\n   Exemplos: EE Silva, EE Barbosa")
	assert.Contains(t, out, "(2 primeiras linhas)")
}

func TestBuildOverviewCaps(t *testing.T) {
	const rows = 20
	schools := make([]string, rows)
	classes := make([]string, rows)
	levels := make([]string, rows)
	for i := 0; i < rows; i++ {
		schools[i] = fmt.Sprintf("EE %02d", i%12)
		classes[i] = fmt.Sprintf("T%d", i%7)
		switch {
		case i < 1:
			levels[i] = "Abaixo"
		case i < 3:
			levels[i] = "Básico"
		case i < 6:
			levels[i] = "Adequado"
		case i < 10:
			levels[i] = "Avançado"
		default:
			levels[i] = "Insuficiente"
		}
	}
	cols := []*dataset.Column{
		dataset.NewTextColumn(dataset.ColSchoolName, schools),
		dataset.NewTextColumn(dataset.ColClass, classes),
		dataset.NewTextColumn("nivel_profic_lp", levels),
	}
	for c := 0; c < 8; c++ {
		vals := make([]float64, rows)
		for i := range vals {
			vals[i] = float64(c)
		}
		cols = append(cols, dataset.NewNumericColumn(fmt.Sprintf("nota_x%d", c), vals))
	}
	out := BuildOverview([]*dataset.Loaded{{Name: "rede.csv", Table: dataset.New(cols...)}}, ContextOptions{})

	var metrics []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "  - nota_x") {
			metrics = append(metrics, line)
		}
	}
	require.Len(t, metrics, 5)
	assert.Equal(t, "  - nota_x4: média=4.0, min=4.0, max=4.0", metrics[4])

	assert.Contains(t, out, "  nivel_profic_lp:\n"+
		"    - Insuficiente: 50.0%\n"+
		"    - Avançado: 20.0%\n"+
		"    - Adequado: 15.0%\n\n")
	assert.NotContains(t, out, "    - Básico:")
	assert.NotContains(t, out, "    - Abaixo:")

	assert.Contains(t, out, "🏫 Turmas: T0 (3 alunos), T1 (3 alunos), T2 (3 alunos), T3 (3 alunos), T4 (3 alunos)\n")
	assert.Contains(t, out, "🏢 Total de escolas: 12\n   Exemplos: EE 00, EE 01, EE 02\n")
}

func TestPreviewWideTableKeepsEdges(t *testing.T) {
	cols := make([]*dataset.Column, 12)
	for i := range cols {
		cols[i] = dataset.NewNumericColumn(string(rune('a'+i)), []float64{float64(i), float64(i * 10)})
	}
	out := Preview(dataset.New(cols...), 3)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	header := strings.Fields(lines[0])
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "...", "h", "i", "j", "k", "l"}, header)
	assert.Equal(t, "0", strings.Fields(lines[1])[0])
	assert.Equal(t, "1", strings.Fields(lines[2])[0])
}

func TestPreviewAlignsByDisplayWidth(t *testing.T) {
	tbl := dataset.New(
		dataset.NewTextColumn("escola", []string{"São João", "Ana"}),
		dataset.NewNumericColumn("nota_lp", []float64{5, 10}),
	)
	out := Preview(tbl.Where(func(i int) bool { return i == 1 }), 3)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, len([]rune(lines[0])), len([]rune(lines[1])))
	assert.True(t, strings.HasPrefix(lines[1], "1"), "source row index shown")
}

func TestPersonaLookup(t *testing.T) {
	cases := map[string]Persona{
		"management":                Management,
		"Equipe Gestora":            Management,
		"teachers":                  Teachers,
		"professores":               Teachers,
		"PROFESSORES ESPECIALISTAS": Trainers,
		"trainers":                  Trainers,
	}
	for in, want := range cases {
		got, ok := ParsePersona(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	got, ok := ParsePersona("diretoria")
	assert.False(t, ok)
	assert.Equal(t, Management, got)
	assert.Equal(t, managementInstructions, Persona(42).Instructions())
}

func TestSuggestions(t *testing.T) {
	assert.Equal(t, "Analise os resultados da escola código 100", Management.Suggestions("100")[0])
	assert.Equal(t, "Analise os resultados gerais", Management.Suggestions("")[0])
	for _, p := range Personas {
		assert.Len(t, p.Suggestions(""), 4)
		assert.NotEmpty(t, p.Description())
	}
}

func TestBuildPrompt(t *testing.T) {
	history := []Turn{
		{RoleUser, "primeira"},
		{RoleAssistant, "resposta 1"},
		{RoleUser, "segunda"},
		{RoleAssistant, strings.Repeat("x", 300)},
		{RoleUser, "Qual a média da turma A?"},
	}
	out := Build(Input{Persona: Teachers, Context: "CTX", History: history, Question: "Qual a média da turma A?"})

	assert.True(t, strings.HasPrefix(out, "\n"+teachersInstructions+"\n\nCTX\n\n"))
	assert.NotContains(t, out, "primeira", "only the last four turns are kept")
	assert.Contains(t, out, "=== HISTÓRICO RECENTE ===\nASSISTENTE: resposta 1...\n")
	assert.Contains(t, out, "ASSISTENTE: "+strings.Repeat("x", 200)+"...\n")
	assert.NotContains(t, out, strings.Repeat("x", 201))
	assert.Contains(t, out, "=== FOCO SELECIONADO ===\nProfessores\n")
	assert.Contains(t, out, "=== PERGUNTA DO USUÁRIO ===\nQual a média da turma A?\n")
	assert.Contains(t, out, "1. Analise CUIDADOSAMENTE os dados fornecidos acima\n")
	assert.Contains(t, out, "10. Se pedirem formação: inclua módulos, oficinas práticas, boas práticas\n")
	assert.True(t, strings.HasSuffix(out, "RESPONDA AGORA DE FORMA COMPLETA E ESTRUTURADA:\n"))
	assert.Len(t, Instructions, 10)
}

func TestHistoryEmpty(t *testing.T) {
	assert.Equal(t, "", History(nil))
}
