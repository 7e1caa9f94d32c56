// Package prompt serializes analysis summaries and assembles the request sent
// to the generation service.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/KaramelBytes/edusight-cli/internal/analysis"
	"github.com/KaramelBytes/edusight-cli/internal/dataset"
)

// DefaultPreviewRows is how many leading rows the sample section shows.
const DefaultPreviewRows = 3

const (
	maxOtherMetrics = 5
	maxLevelShares  = 3
	maxGroups       = 5
	maxSchoolNames  = 3
	maxPreviewCols  = 10
	ruleWidth       = 70
)

// ContextOptions tunes the rendered block.
type ContextOptions struct {
	PreviewRows int
}

func (o ContextOptions) previewRows() int {
	if o.PreviewRows <= 0 {
		return DefaultPreviewRows
	}
	return o.PreviewRows
}

// BuildFiltered renders the block for one filtered table. An empty table
// yields a short notice naming the filters.
func BuildFiltered(t *dataset.Table, filename string, filters []string, opt ContextOptions) string {
	if t.Empty() {
		return fmt.Sprintf("=== DADOS FILTRADOS ===\n\nNenhum dado encontrado para os filtros: %s\n", strings.Join(filters, ", "))
	}
	var b strings.Builder
	b.WriteString("=== ANÁLISE FOCADA (FILTROS APLICADOS) ===\n\n")
	fmt.Fprintf(&b, "🎯 FILTROS ATIVOS: %s\n\n", strings.Join(filters, ", "))
	writeDataset(&b, t, analysis.Analyze(t, filename, filters), opt)
	return b.String()
}

// BuildOverview renders every loaded dataset in load order.
func BuildOverview(sets []*dataset.Loaded, opt ContextOptions) string {
	if len(sets) == 0 {
		return "Nenhum dado foi carregado ainda."
	}
	var b strings.Builder
	b.WriteString("=== VISÃO GERAL DE TODOS OS DADOS ===\n\n")
	for _, ds := range sets {
		writeDataset(&b, ds.Table, analysis.Analyze(ds.Table, ds.Name, nil), opt)
	}
	return b.String()
}

func writeDataset(b *strings.Builder, t *dataset.Table, s *analysis.Summary, opt ContextOptions) {
	if s.Rows == 0 {
		fmt.Fprintf(b, "📄 %s: Nenhum aluno encontrado\n\n", s.Filename)
		return
	}
	fmt.Fprintf(b, "📄 ARQUIVO: %s\n", s.Filename)
	fmt.Fprintf(b, "Tipo: %s\n", s.Type)
	fmt.Fprintf(b, "Total de alunos: %d\n\n", s.Rows)

	writeHeadline(b, "LÍNGUA PORTUGUESA", s.LP)
	writeHeadline(b, "MATEMÁTICA", s.MAT)

	var others []analysis.Metric
	for _, m := range s.Metrics {
		if m.Column != "nota_lp" && m.Column != "nota_mat" {
			others = append(others, m)
		}
	}
	if len(others) > 0 {
		b.WriteString("📊 OUTRAS DISCIPLINAS/MÉTRICAS:\n")
		for i, m := range others {
			if i == maxOtherMetrics {
				break
			}
			fmt.Fprintf(b, "  - %s: média=%s, min=%s, max=%s\n", m.Column, num(m.Mean), num(m.Min), num(m.Max))
		}
		b.WriteString("\n")
	}

	if len(s.Levels) > 0 {
		b.WriteString("📈 DISTRIBUIÇÃO DE NÍVEIS (% de alunos):\n")
		for _, d := range s.Levels {
			fmt.Fprintf(b, "  %s:\n", d.Column)
			shares := append([]analysis.Share(nil), d.Shares...)
			sort.SliceStable(shares, func(i, j int) bool { return shares[i].Percent > shares[j].Percent })
			for i, sh := range shares {
				if i == maxLevelShares {
					break
				}
				fmt.Fprintf(b, "    - %s: %s%%\n", sh.Value, num(sh.Percent))
			}
		}
		b.WriteString("\n")
	}

	if len(s.Grades) > 0 {
		fmt.Fprintf(b, "📚 Séries/Anos: %s\n", groups(s.Grades))
	}
	if len(s.Classes) > 0 {
		fmt.Fprintf(b, "🏫 Turmas: %s\n", groups(s.Classes))
	}
	if s.SchoolCount > 1 {
		fmt.Fprintf(b, "🏢 Total de escolas: %d\n", s.SchoolCount)
		names := s.SchoolNames
		if len(names) > maxSchoolNames {
			names = names[:maxSchoolNames]
		}
		fmt.Fprintf(b, "   Exemplos: %s\n", strings.Join(names, ", "))
	}

	n := opt.previewRows()
	fmt.Fprintf(b, "\n📋 AMOSTRA DOS DADOS (%d primeiras linhas):\n", n)
	b.WriteString(Preview(t, n))
	b.WriteString("\n")
	b.WriteString("\n" + strings.Repeat("=", ruleWidth) + "\n\n")
}

func writeHeadline(b *strings.Builder, title string, st *analysis.Stats) {
	if st == nil {
		return
	}
	fmt.Fprintf(b, "📊 %s:\n", title)
	fmt.Fprintf(b, "  - Média: %s\n", num(st.Mean))
	fmt.Fprintf(b, "  - Mínimo: %s\n", num(st.Min))
	fmt.Fprintf(b, "  - Máximo: %s\n\n", num(st.Max))
}

func groups(counts []analysis.Count) string {
	parts := make([]string, 0, maxGroups)
	for i, c := range counts {
		if i == maxGroups {
			break
		}
		parts = append(parts, fmt.Sprintf("%s (%d alunos)", c.Value, c.Count))
	}
	return strings.Join(parts, ", ")
}

// num prints rounded statistics with at least one decimal, e.g. 6.0 or 6.25.
func num(v float64) string {
	s := dataset.FormatNumber(v)
	if !strings.ContainsAny(s, ".eN") {
		s += ".0"
	}
	return s
}

// Preview renders the first n rows as a fixed-width table with the source row
// index on the left. Wide tables keep the first and last five columns.
func Preview(t *dataset.Table, n int) string {
	head := t.Head(n)
	cols := make([]int, 0, head.NumColumns())
	elided := head.NumColumns() > maxPreviewCols
	for i := 0; i < head.NumColumns(); i++ {
		if elided && i >= maxPreviewCols/2 && i < head.NumColumns()-maxPreviewCols/2 {
			continue
		}
		cols = append(cols, i)
	}

	grid := make([][]string, head.Len()+1)
	grid[0] = []string{""}
	for r := 0; r < head.Len(); r++ {
		grid[r+1] = []string{fmt.Sprint(head.RowIndex(r))}
	}
	for k, ci := range cols {
		if elided && k == maxPreviewCols/2 {
			for r := range grid {
				grid[r] = append(grid[r], "...")
			}
		}
		c := head.ColumnAt(ci)
		grid[0] = append(grid[0], c.Name)
		for r := 0; r < head.Len(); r++ {
			v := "NaN"
			if !c.IsNull(r) {
				v = c.String(r)
			}
			grid[r+1] = append(grid[r+1], v)
		}
	}

	widths := make([]int, len(grid[0]))
	for _, row := range grid {
		for j, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[j] {
				widths[j] = w
			}
		}
	}
	var b strings.Builder
	for i, row := range grid {
		if i > 0 {
			b.WriteString("\n")
		}
		for j, cell := range row {
			if j == 0 {
				b.WriteString(runewidth.FillRight(cell, widths[j]))
				continue
			}
			b.WriteString("  ")
			b.WriteString(runewidth.FillLeft(cell, widths[j]))
		}
	}
	return b.String()
}
