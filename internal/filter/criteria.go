// Package filter infers sub-population constraints from free text and applies
// them to tables.
package filter

import (
	"strconv"
	"strings"

	"github.com/KaramelBytes/edusight-cli/internal/dataset"
)

// Gender codes used by the sexo column.
const (
	Female = "F"
	Male   = "M"
)

// Criteria holds at most one value per dimension. Unset dimensions impose no
// constraint. SchoolCode and SchoolName are never both set by the Extractor.
type Criteria struct {
	SchoolCode *int
	SchoolName string
	Class      string
	Grade      string
	Gender     string
}

// Empty reports whether no dimension is set.
func (c Criteria) Empty() bool {
	return c.SchoolCode == nil && c.SchoolName == "" && c.Class == "" && c.Grade == "" && c.Gender == ""
}

// Keys lists the populated dimensions as canonical column names, in the order
// they are applied.
func (c Criteria) Keys() []string {
	var keys []string
	if c.SchoolCode != nil {
		keys = append(keys, dataset.ColSchoolCode)
	}
	if c.SchoolName != "" {
		keys = append(keys, dataset.ColSchoolName)
	}
	if c.Class != "" {
		keys = append(keys, dataset.ColClass)
	}
	if c.Grade != "" {
		keys = append(keys, dataset.ColGrade)
	}
	if c.Gender != "" {
		keys = append(keys, dataset.ColGender)
	}
	return keys
}

// Value returns the string form of a dimension by canonical column name.
func (c Criteria) Value(key string) (string, bool) {
	switch key {
	case dataset.ColSchoolCode:
		if c.SchoolCode == nil {
			return "", false
		}
		return strconv.Itoa(*c.SchoolCode), true
	case dataset.ColSchoolName:
		return c.SchoolName, c.SchoolName != ""
	case dataset.ColClass:
		return c.Class, c.Class != ""
	case dataset.ColGrade:
		return c.Grade, c.Grade != ""
	case dataset.ColGender:
		return c.Gender, c.Gender != ""
	}
	return "", false
}

// String renders "key=value" pairs in application order, or "{}" when empty.
func (c Criteria) String() string {
	keys := c.Keys()
	if len(keys) == 0 {
		return "{}"
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, _ := c.Value(k)
		parts = append(parts, k+"="+strconv.Quote(v))
	}
	return strings.Join(parts, " ")
}

// Code is a helper for building criteria literals.
func Code(v int) *int { return &v }

// GenderLabel returns the display name for a gender code.
func GenderLabel(code string) string {
	if code == Female {
		return "Feminino"
	}
	return "Masculino"
}
