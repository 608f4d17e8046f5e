package segment

import (
	"testing"

	"github.com/eduforma/silabo/score"
)

func TestSplitOpensSectionsInOrder(t *testing.T) {
	rows := [][]string{
		{"ruido antes de la primera sección"},
		{"OBJETIVOS DE LA ASIGNATURA", ""},
		{"Comprender los fundamentos", ""},
		{"Aplicar los conceptos", ""},
		{"CONTENIDOS", ""},
		{"Unidad 1", "Introducción"},
	}

	sections := Split(rows, DefaultRules())

	if len(sections) != 2 {
		t.Fatalf("sections = %d, want 2: %+v", len(sections), sections)
	}

	first := sections[0]
	if first.Name != "OBJETIVOS DE LA ASIGNATURA" || first.Kind != KindFreeText {
		t.Errorf("first section = %q/%q", first.Name, first.Kind)
	}
	if first.TitleRow != 1 {
		t.Errorf("first.TitleRow = %d, want 1", first.TitleRow)
	}
	if len(first.Body) != 2 {
		t.Errorf("first.Body = %v, want the two objective rows", first.Body)
	}

	second := sections[1]
	if second.Name != "CONTENIDOS" || second.Kind != KindTable {
		t.Errorf("second section = %q/%q", second.Name, second.Kind)
	}
	if len(second.Body) != 1 || second.Body[0][0] != "Unidad 1" {
		t.Errorf("second.Body = %v", second.Body)
	}
}

func TestSplitFirstMatchWins(t *testing.T) {
	// "Objetivos de la asignatura" must hit the specific rule, not the
	// generic ^objetivos one.
	rows := [][]string{{"Objetivos de la asignatura:"}}

	sections := Split(rows, DefaultRules())
	if len(sections) != 1 {
		t.Fatalf("sections = %d, want 1", len(sections))
	}
	if sections[0].Name != "OBJETIVOS DE LA ASIGNATURA" {
		t.Fatalf("name = %q, want specific rule's canonical name", sections[0].Name)
	}
}

func TestSplitDiscardsPreSectionRows(t *testing.T) {
	rows := [][]string{
		{"fila sin sección"},
		{"otra fila suelta"},
	}

	if sections := Split(rows, DefaultRules()); len(sections) != 0 {
		t.Fatalf("sections = %v, want none", sections)
	}
}

func TestSplitEmitsTrailingSection(t *testing.T) {
	rows := [][]string{
		{"METODOLOGÍA"},
		{"Clases expositivas y talleres"},
	}

	sections := Split(rows, DefaultRules())
	if len(sections) != 1 {
		t.Fatalf("sections = %d, want 1", len(sections))
	}
	if len(sections[0].Body) != 1 {
		t.Fatalf("body = %v", sections[0].Body)
	}
}

func TestSplitOrFallback(t *testing.T) {
	rows := [][]string{
		{"nada reconocible"},
		{"tampoco esto"},
	}
	titles := []score.Title{
		{Clean: "PERIODO ACADÉMICO", Row: 0, Col: 0},
		{Clean: "asignatura", Row: 1, Col: 0},
	}

	sections := SplitOrFallback(rows, DefaultRules(), titles)
	if len(sections) != 1 {
		t.Fatalf("sections = %d, want the synthetic one", len(sections))
	}
	s := sections[0]
	if s.Name != FallbackName {
		t.Errorf("name = %q, want %q", s.Name, FallbackName)
	}
	if s.TitleRow != -1 {
		t.Errorf("TitleRow = %d, want -1", s.TitleRow)
	}
	if len(s.Titles) != 2 || len(s.Body) != 2 {
		t.Errorf("synthetic section missing titles: %+v", s)
	}
}

func TestTitleRowsAppearInExactlyOneSection(t *testing.T) {
	rows := [][]string{
		{"ruido"},
		{"OBJETIVOS"},
		{"texto"},
		{"CONTENIDOS"},
		{"Unidad 1"},
		{"EVALUACIÓN"},
	}

	sections := Split(rows, DefaultRules())

	owner := make(map[int]int) // row index → number of sections containing it
	for _, s := range sections {
		owner[s.TitleRow]++
		for _, body := range s.Body {
			_ = body
		}
	}
	for rowIdx, count := range owner {
		if count != 1 {
			t.Errorf("row %d owned by %d sections", rowIdx, count)
		}
	}

	// Body rows counted across all sections + title rows + discarded noise
	// must cover the input exactly once.
	total := 0
	for _, s := range sections {
		total += 1 + len(s.Body)
	}
	if total != len(rows)-1 { // one noise row discarded
		t.Errorf("rows accounted = %d, want %d", total, len(rows)-1)
	}
}
