package normalize

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

// buildDocx wraps body XML into a minimal .docx archive.
func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>` + body + `</w:body>
</w:document>`
	if _, err := f.Write([]byte(doc)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func cell(text string) string {
	return `<w:tc><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:tc>`
}

func para(text string) string {
	return `<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p>`
}

func TestWordTables(t *testing.T) {
	body := `<w:tbl>` +
		`<w:tr>` + cell("PERIODO ACADÉMICO") + cell("2025-1") + `</w:tr>` +
		`<w:tr>` + cell("asignatura") + cell("Álgebra") + `</w:tr>` +
		`</w:tbl>` +
		para("Texto fuera de la tabla")

	n := New(Config{})
	res, err := n.Normalize(buildDocx(t, body), KindWord)
	if err != nil {
		t.Fatal(err)
	}
	if res.Strategy != StrategyTables {
		t.Fatalf("strategy = %q, want tables", res.Strategy)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(res.Rows))
	}
	if res.Rows[0][0] != "PERIODO ACADÉMICO" || res.Rows[0][1] != "2025-1" {
		t.Fatalf("row 0 = %v", res.Rows[0])
	}
	if res.Rows[1][0] != "asignatura" {
		t.Fatalf("row 1 = %v", res.Rows[1])
	}
}

func TestWordMultiParagraphCell(t *testing.T) {
	body := `<w:tbl><w:tr>` +
		`<w:tc><w:p><w:r><w:t>OBJETIVOS</w:t></w:r></w:p><w:p><w:r><w:t>DE LA ASIGNATURA</w:t></w:r></w:p></w:tc>` +
		`</w:tr></w:tbl>`

	n := New(Config{})
	res, err := n.Normalize(buildDocx(t, body), KindWord)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Rows[0][0]; got != "OBJETIVOS DE LA ASIGNATURA" {
		t.Fatalf("cell = %q, want joined paragraphs", got)
	}
}

func TestWordParagraphFallback(t *testing.T) {
	body := para("PROGRAMA ANALÍTICO") + para("") + para("Contenido de la materia")

	n := New(Config{})
	res, err := n.Normalize(buildDocx(t, body), KindWord)
	if err != nil {
		t.Fatal(err)
	}
	if res.Strategy != StrategyParagraphs {
		t.Fatalf("strategy = %q, want paragraphs", res.Strategy)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2 (empty paragraph dropped)", len(res.Rows))
	}
	if len(res.Rows[0]) != 1 || res.Rows[0][0] != "PROGRAMA ANALÍTICO" {
		t.Fatalf("row 0 = %v, want one-cell row", res.Rows[0])
	}
}

func TestWordEmpty(t *testing.T) {
	n := New(Config{})
	_, err := n.Normalize(buildDocx(t, ""), KindWord)
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("err = %v, want ErrEmptyDocument", err)
	}
}

func TestUnsupportedBytes(t *testing.T) {
	n := New(Config{})
	garbage := []byte("this is not a zip container")

	for _, kind := range []Kind{KindSpreadsheet, KindWord} {
		_, err := n.Normalize(garbage, kind)
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("kind %s: err = %v, want ErrUnsupportedFormat", kind, err)
		}
	}
}

func TestSpreadsheet(t *testing.T) {
	f := excelize.NewFile()
	f.SetSheetRow("Sheet1", "A1", &[]any{"PERIODO ACADÉMICO", "2025-1"})
	f.SetSheetRow("Sheet1", "A2", &[]any{"", "  "})
	f.SetSheetRow("Sheet1", "A3", &[]any{"asignatura", "Álgebra"})
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	n := New(Config{})
	res, err := n.Normalize(buf.Bytes(), KindSpreadsheet)
	if err != nil {
		t.Fatal(err)
	}
	if res.Strategy != StrategySheets {
		t.Fatalf("strategy = %q, want sheets", res.Strategy)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2 (blank row dropped)", len(res.Rows))
	}
	if res.Rows[0][0] != "PERIODO ACADÉMICO" {
		t.Fatalf("row 0 = %v", res.Rows[0])
	}
	if res.Rows[1][1] != "Álgebra" {
		t.Fatalf("row 1 = %v", res.Rows[1])
	}
}

func TestSpreadsheetEmpty(t *testing.T) {
	f := excelize.NewFile()
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	n := New(Config{})
	_, err = n.Normalize(buf.Bytes(), KindSpreadsheet)
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("err = %v, want ErrEmptyDocument", err)
	}
}

func TestMaxFileSize(t *testing.T) {
	n := New(Config{MaxFileSize: 10})
	_, err := n.Normalize(make([]byte, 11), KindWord)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"spreadsheet", KindSpreadsheet, true},
		{"xlsx", KindSpreadsheet, true},
		{"Excel", KindSpreadsheet, true},
		{"word", KindWord, true},
		{"DOCX", KindWord, true},
		{"pdf", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("ParseKind(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
		if !tt.ok && err == nil {
			t.Errorf("ParseKind(%q): expected error", tt.in)
		}
	}
}
