// Package segment groups normalized rows into contiguous sections bounded by
// recognized title rows.
//
// Section boundaries come from an ordered table of (pattern, canonical name,
// kind) rules with first-match-wins semantics. New institutional document
// layouts are supported by appending rules, not by adding code.
package segment

import (
	"regexp"

	"github.com/eduforma/silabo/score"
)

// Kind classifies what a section's body holds.
type Kind string

const (
	KindCabecera Kind = "cabecera"    // document header block (key/value pairs at the top)
	KindFreeText Kind = "texto"       // narrative free text
	KindTable    Kind = "tabla"       // repeating rows with per-column fields
	KindKeyValue Kind = "clave_valor" // label/value pairs
)

// Rule maps a title pattern to a canonical section name and kind.
// Rules are evaluated in slice order; the first match wins.
type Rule struct {
	Pattern *regexp.Regexp
	Name    string
	Kind    Kind
}

// Section is a contiguous slice of the document opened by a recognized title
// row. Body holds every row between this title and the next one.
type Section struct {
	Name     string        `json:"name"`
	Kind     Kind          `json:"kind"`
	TitleRow int           `json:"title_row"` // index of the opening row, -1 for synthetic sections
	Header   []string      `json:"header"`    // the opening row's cells
	Body     [][]string    `json:"body"`
	Titles   []score.Title `json:"titles,omitempty"` // set on the synthetic all-titles section
}

// FallbackName is the synthetic section emitted when no rule matched.
const FallbackName = "Todos los campos"

// DefaultRules returns the built-in institutional rule table, most specific
// first.
func DefaultRules() []Rule {
	return []Rule{
		rule(`^datos (generales|informativos)`, "DATOS GENERALES", KindCabecera),
		rule(`^periodo acad[eé]mico`, "DATOS GENERALES", KindCabecera),
		rule(`^resultados de aprendizaje`, "RESULTADOS DE APRENDIZAJE", KindTable),
		rule(`^perfil de egreso`, "PERFIL DE EGRESO", KindFreeText),
		rule(`^objetivos? (de la asignatura|generales?|espec[ií]ficos?)`, "OBJETIVOS DE LA ASIGNATURA", KindFreeText),
		rule(`^objetivos?\b`, "OBJETIVOS", KindFreeText),
		// Plural only: "Unidad 1" rows are table content, not boundaries.
		rule(`^unidades( tem[aá]ticas?)?$`, "UNIDADES TEMÁTICAS", KindTable),
		rule(`^contenidos?\b`, "CONTENIDOS", KindTable),
		rule(`^metodolog[ií]a`, "METODOLOGÍA", KindFreeText),
		rule(`^criterios de evaluaci[oó]n`, "CRITERIOS DE EVALUACIÓN", KindKeyValue),
		rule(`^evaluaci[oó]n`, "EVALUACIÓN", KindKeyValue),
		rule(`^bibliograf[ií]a`, "BIBLIOGRAFÍA", KindTable),
	}
}

func rule(pattern, name string, kind Kind) Rule {
	return Rule{
		Pattern: regexp.MustCompile(`(?i)` + pattern),
		Name:    name,
		Kind:    kind,
	}
}

// Split walks rows in order, testing each row's first column against the
// rule table. The first matching rule opens a new section, emitting the
// previous open one together with its accumulated body. Rows matching no
// rule append to the open section; rows before any section are discarded.
func Split(rows [][]string, rules []Rule) []Section {
	var sections []Section
	var open *Section

	for rowIdx, row := range rows {
		if len(row) == 0 {
			continue
		}
		clean := score.CleanText(row[0])

		if matched := matchRule(clean, rules); matched != nil {
			if open != nil {
				sections = append(sections, *open)
			}
			open = &Section{
				Name:     matched.Name,
				Kind:     matched.Kind,
				TitleRow: rowIdx,
				Header:   row,
			}
			continue
		}

		if open != nil {
			open.Body = append(open.Body, row)
		}
		// Pre-section noise is dropped.
	}

	if open != nil {
		sections = append(sections, *open)
	}
	return sections
}

func matchRule(clean string, rules []Rule) *Rule {
	if clean == "" {
		return nil
	}
	for i := range rules {
		if rules[i].Pattern.MatchString(clean) {
			return &rules[i]
		}
	}
	return nil
}

// Fallback builds the synthetic all-titles section used when no rule opened
// anything, so downstream curation always has content to group.
func Fallback(titles []score.Title) Section {
	body := make([][]string, 0, len(titles))
	for _, t := range titles {
		body = append(body, []string{t.Clean})
	}
	return Section{
		Name:     FallbackName,
		Kind:     KindFreeText,
		TitleRow: -1,
		Body:     body,
		Titles:   titles,
	}
}

// SplitOrFallback runs Split and degrades to the synthetic all-titles
// section when the rule table recognized nothing.
func SplitOrFallback(rows [][]string, rules []Rule, titles []score.Title) []Section {
	sections := Split(rows, rules)
	if len(sections) == 0 {
		return []Section{Fallback(titles)}
	}
	return sections
}
