package dataset

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical column names recognized by the filter and analysis packages.
const (
	ColSchoolCode = "codigo_escola"
	ColSchoolName = "nome_escola"
	ColGrade      = "serie_ano"
	ColClass      = "turma"
	ColGender     = "sexo"
)

// Rename records one column renamed by Normalize.
type Rename struct {
	From string
	To   string
}

// Fold lower-cases s and strips combining marks, so "Código" becomes "codigo".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// canonicalName maps a raw header to its canonical name, or "" when the header
// is not a known variant.
func canonicalName(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	folded := Fold(lower)
	switch {
	case strings.Contains(folded, "codigo") && strings.Contains(folded, "escola"),
		strings.Contains(folded, "codesc"):
		return ColSchoolCode
	case strings.Contains(folded, "nome") && strings.Contains(folded, "escola"),
		strings.Contains(folded, "nomesc"):
		return ColSchoolName
	}
	switch lower {
	case "serie_ano", "série_ano", "serie", "ano":
		return ColGrade
	case "turma":
		return ColClass
	case "sexo":
		return ColGender
	}
	return ""
}

// Normalize renames known column variants to the canonical vocabulary. A
// canonical name is given to at most one column: the first claimant wins and
// later ones, as well as columns already carrying a taken name, keep theirs.
func Normalize(t *Table) (*Table, []Rename) {
	taken := make(map[string]bool, t.NumColumns())
	for _, name := range t.Columns() {
		taken[name] = true
	}
	var renamed []Rename
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c
		to := canonicalName(c.Name)
		if to == "" || to == c.Name || taken[to] {
			continue
		}
		cp := *c
		cp.Name = to
		cols[i] = &cp
		taken[to] = true
		renamed = append(renamed, Rename{From: c.Name, To: to})
	}
	if len(renamed) == 0 {
		return t, nil
	}
	index := make([]int, len(t.index))
	copy(index, t.index)
	return build(cols, index), renamed
}
