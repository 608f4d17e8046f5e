package score

import (
	"reflect"
	"testing"
)

func TestScanScenarioHeaderRows(t *testing.T) {
	rows := [][]string{
		{"PERIODO ACADÉMICO", "2025-1"},
		{"asignatura", "Álgebra"},
		{"123", "456"},
	}

	e := New(Config{})
	titles := e.Scan(rows)

	if len(titles) != 2 {
		t.Fatalf("titles = %d, want 2: %v", len(titles), titles)
	}
	if titles[0].Clean != "PERIODO ACADÉMICO" {
		t.Errorf("title 0 = %q", titles[0].Clean)
	}
	if titles[1].Clean != "asignatura" {
		t.Errorf("title 1 = %q", titles[1].Clean)
	}
	if titles[0].Role != RoleCabecera {
		t.Errorf("role 0 = %q, want cabecera (keyword match)", titles[0].Role)
	}
	if !titles[0].Flags.Uppercase || !titles[0].Flags.Keyword {
		t.Errorf("flags 0 = %+v", titles[0].Flags)
	}
}

func TestScanIdempotent(t *testing.T) {
	rows := [][]string{
		{"UNIDAD 1", "Introducción"},
		{"OBJETIVOS", ""},
		{"Los estudiantes aprenderán", ""},
		{"CONTENIDOS", "detalle"},
	}

	e := New(Config{})
	first := e.Scan(rows)
	second := e.Scan(rows)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("scan not idempotent:\nfirst  %v\nsecond %v", first, second)
	}
}

func TestScanDeduplicates(t *testing.T) {
	rows := [][]string{
		{"OBJETIVOS", ""},
		{"objetivos", ""},
		{"OBJETIVOS:", ""},
	}

	e := New(Config{})
	titles := e.Scan(rows)

	if len(titles) != 1 {
		t.Fatalf("titles = %d, want 1 after dedup: %v", len(titles), titles)
	}
	if titles[0].Row != 0 {
		t.Errorf("kept row = %d, want first occurrence", titles[0].Row)
	}
}

func TestScanRejectsDatesAndNumbers(t *testing.T) {
	rows := [][]string{
		{"2025-1"},
		{"12/05/2024"},
		{"1.10.24"},
		{"42"},
		{"3,14"},
	}

	e := New(Config{})
	if titles := e.Scan(rows); len(titles) != 0 {
		t.Fatalf("titles = %v, want none", titles)
	}
}

func TestScanColumnLimit(t *testing.T) {
	// Fourth column is never scanned.
	rows := [][]string{
		{"dato", "dato", "dato", "OBJETIVOS DE LA ASIGNATURA"},
	}

	e := New(Config{})
	for _, title := range e.Scan(rows) {
		if title.Col >= 3 {
			t.Fatalf("scanned column %d beyond limit", title.Col)
		}
	}
}

func TestScanMultipleTitlesPerRow(t *testing.T) {
	rows := [][]string{
		{"FACULTAD", "CARRERA"},
	}

	e := New(Config{})
	titles := e.Scan(rows)

	if len(titles) != 2 {
		t.Fatalf("titles = %d, want 2 (both columns qualify)", len(titles))
	}
	if titles[0].Col != 0 || titles[1].Col != 1 {
		t.Fatalf("column order wrong: %v", titles)
	}
	if titles[0].ColLabel != "A" || titles[1].ColLabel != "B" {
		t.Fatalf("labels = %q, %q", titles[0].ColLabel, titles[1].ColLabel)
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  OBJETIVOS  ", "OBJETIVOS"},
		{"OBJETIVOS:", "OBJETIVOS"},
		{"Perfil   de\tegreso.", "Perfil de egreso"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanText(tt.in); got != tt.want {
			t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHasAlphabeticShape(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"OBJETIVOS", true},
		{"Perfil de egreso", true},
		{"ab", false},
		{"12-34", false},
		{"A1B2", false},
	}
	for _, tt := range tests {
		if got := hasAlphabeticShape(tt.in); got != tt.want {
			t.Errorf("hasAlphabeticShape(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsAllUpper(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"PERIODO ACADÉMICO", true},
		{"Álgebra", false},
		{"123", false},
		{"METODOLOGÍA", true},
	}
	for _, tt := range tests {
		if got := isAllUpper(tt.in); got != tt.want {
			t.Errorf("isAllUpper(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
