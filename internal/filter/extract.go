package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Default digit-run bounds for school codes.
const (
	DefaultCodeMinDigits = 3
	DefaultCodeMaxDigits = 6
)

// letters accepted in school names, including Portuguese accented forms.
const (
	nameHead = `A-ZÁÉÍÓÚÂÊÎÔÛÃÕÀÇ`
	nameTail = nameHead + `a-záéíóúâêîôûãõàç`
)

var (
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)da\s+escola\s+([` + nameHead + `][` + nameTail + `\s.]{5,})`),
		regexp.MustCompile(`(?i)(?:na\s+escola|para\s+a\s+escola)\s+([` + nameHead + `][` + nameTail + `\s.]{5,})`),
	}
	classPattern  = regexp.MustCompile(`(?i)(?:da\s+turma|turma)\s+([A-Z0-9]{1,3})\b`)
	gradePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d+)[ºª°]?\s*(?:ano|s[ée]rie)`),
		regexp.MustCompile(`(?:ano|s[ée]rie)\s+(\d+)`),
		regexp.MustCompile(`do\s+(\d+)[ºª°]`),
	}
	femaleWords = []string{"feminino", "femininas", "meninas", "alunas"}
	maleWords   = []string{"masculino", "masculinos", "meninos", "alunos"}
)

// Extractor turns a free-text request into Criteria. Each dimension runs its
// own first-match-wins cascade against the whole text.
type Extractor struct {
	codePatterns []*regexp.Regexp
}

// Option configures an Extractor.
type Option func(*extractorConfig)

type extractorConfig struct {
	minDigits int
	maxDigits int
}

// WithCodeDigits bounds the digit run accepted as a school code. Invalid
// bounds are ignored.
func WithCodeDigits(min, max int) Option {
	return func(c *extractorConfig) {
		if min < 1 || max < min {
			return
		}
		c.minDigits, c.maxDigits = min, max
	}
}

// NewExtractor compiles the code cascade for the configured digit bounds.
func NewExtractor(opts ...Option) *Extractor {
	cfg := extractorConfig{minDigits: DefaultCodeMinDigits, maxDigits: DefaultCodeMaxDigits}
	for _, o := range opts {
		o(&cfg)
	}
	digits := fmt.Sprintf(`(\d{%d,%d})\b`, cfg.minDigits, cfg.maxDigits)
	return &Extractor{codePatterns: []*regexp.Regexp{
		regexp.MustCompile(`(?:c[oó]digo\s+(?:da\s+)?escola|c[oó]digo|escola|c[oó]d\.?)\s+` + digits),
		regexp.MustCompile(`(?:escola\s+de\s+c[oó]digo|com\s+c[oó]digo)\s+` + digits),
	}}
}

var defaultExtractor = NewExtractor()

// Extract runs the default extractor.
func Extract(text string) Criteria { return defaultExtractor.Extract(text) }

// Extract parses text into criteria. Unmatched dimensions stay unset.
func (e *Extractor) Extract(text string) Criteria {
	var c Criteria
	lower := strings.ToLower(text)

	for _, re := range e.codePatterns {
		if m := re.FindStringSubmatch(lower); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				c.SchoolCode = &v
				break
			}
		}
	}

	if c.SchoolCode == nil {
		for _, re := range namePatterns {
			if m := re.FindStringSubmatch(text); m != nil {
				c.SchoolName = strings.TrimSpace(m[1])
				break
			}
		}
	}

	if m := classPattern.FindStringSubmatch(text); m != nil {
		c.Class = strings.ToUpper(m[1])
	}

	for _, re := range gradePatterns {
		if m := re.FindStringSubmatch(lower); m != nil {
			c.Grade = m[1]
			break
		}
	}

	switch {
	case containsAny(lower, femaleWords):
		c.Gender = Female
	case containsAny(lower, maleWords):
		c.Gender = Male
	}
	return c
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
