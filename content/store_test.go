package content

import (
	"context"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/eduforma/silabo/dbopen"
	"github.com/eduforma/silabo/score"
	"github.com/eduforma/silabo/session"
	"github.com/eduforma/silabo/template"
)

type fixture struct {
	content   *Store
	templates *template.Store
	tpl       *template.Template
	instance  *template.Instance
}

// setup materializes a template with one table section ("Datos generales":
// Asignatura, Docente) and one free-text section ("Descripción"), then
// creates an instance to fill.
func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	db := dbopen.OpenMemory(t,
		dbopen.WithSchema(session.Schema),
		dbopen.WithSchema(template.Schema),
		dbopen.WithSchema(Schema))
	reg := session.NewStore(db)
	templates := template.NewStore(db)

	sess, err := reg.CreateSession(ctx, "programa.xlsx", "spreadsheet", "sheets", 10)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	titles, err := reg.AttachTitles(ctx, sess.ID, []score.Title{
		{Raw: "Asignatura", Clean: "Asignatura", Row: 0, Col: 0, ColLabel: "A", Role: score.RoleCabecera, Score: 5.5},
		{Raw: "Docente", Clean: "Docente", Row: 1, Col: 0, ColLabel: "A", Role: score.RoleFieldLabel, Score: 3.5},
		{Raw: "Descripción", Clean: "Descripción", Row: 4, Col: 0, ColLabel: "A", Role: score.RoleSectionTitle, Score: 6.0},
	})
	if err != nil {
		t.Fatalf("attach titles: %v", err)
	}
	reg.CreateGrouping(ctx, sess.ID, "Datos generales", "", 0, []string{titles[0].ID, titles[1].ID})
	reg.CreateGrouping(ctx, sess.ID, "Descripción", "", 1, []string{titles[2].ID})

	tpl, err := templates.Materialize(ctx, reg, sess.ID, "Programa", "adm_1")
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	ins, err := templates.CreateInstance(ctx, tpl.ID, "Álgebra 2026-1")
	if err != nil {
		t.Fatalf("create instance: %v", err)
	}

	return fixture{content: NewStore(db), templates: templates, tpl: tpl, instance: ins}
}

func section(t *testing.T, tpl *template.Template, name string) *template.TemplateSection {
	t.Helper()
	for i := range tpl.Sections {
		if tpl.Sections[i].Name == name {
			return &tpl.Sections[i]
		}
	}
	t.Fatalf("no section %q", name)
	return nil
}

func TestFreeTextRoundTrip(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	desc := section(t, f.tpl, "Descripción")

	if err := f.content.UpsertFreeText(ctx, f.instance.ID, desc, "Curso introductorio."); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := f.content.ReadContent(ctx, f.tpl, f.instance.ID)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got["Descripción"].Body != "Curso introductorio." {
		t.Errorf("body = %q", got["Descripción"].Body)
	}
	if got["Descripción"].UpdatedAt == 0 {
		t.Errorf("updated_at not set")
	}

	// Second write replaces, never duplicates.
	if err := f.content.UpsertFreeText(ctx, f.instance.ID, desc, "Versión final."); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, _ = f.content.ReadContent(ctx, f.tpl, f.instance.ID)
	if got["Descripción"].Body != "Versión final." {
		t.Errorf("body after rewrite = %q", got["Descripción"].Body)
	}

	var count int
	f.content.DB.QueryRow(`SELECT COUNT(*) FROM section_contents`).Scan(&count)
	if count != 1 {
		t.Errorf("section_contents rows = %d, want 1", count)
	}
}

func TestTableRowOverwriteUnion(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	general := section(t, f.tpl, "Datos generales")

	err := f.content.UpsertTableRow(ctx, f.instance.ID, general, 0,
		map[string]string{"Asignatura": "Álgebra", "Docente": "R. Paredes"})
	if err != nil {
		t.Fatalf("first write: %v", err)
	}

	// Rewriting one field leaves the other intact.
	err = f.content.UpsertTableRow(ctx, f.instance.ID, general, 0,
		map[string]string{"Docente": "M. Vera"})
	if err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, err := f.content.ReadContent(ctx, f.tpl, f.instance.ID)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	rows := got["Datos generales"].Rows
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0]["Asignatura"] != "Álgebra" || rows[0]["Docente"] != "M. Vera" {
		t.Errorf("row = %v", rows[0])
	}
}

func TestTableRowOrdering(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	general := section(t, f.tpl, "Datos generales")

	// Written out of order, read back in row order.
	f.content.UpsertTableRow(ctx, f.instance.ID, general, 2, map[string]string{"Asignatura": "Física"})
	f.content.UpsertTableRow(ctx, f.instance.ID, general, 0, map[string]string{"Asignatura": "Álgebra"})
	f.content.UpsertTableRow(ctx, f.instance.ID, general, 1, map[string]string{"Asignatura": "Química"})

	got, _ := f.content.ReadContent(ctx, f.tpl, f.instance.ID)
	rows := got["Datos generales"].Rows
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	want := []string{"Álgebra", "Química", "Física"}
	for i, w := range want {
		if rows[i]["Asignatura"] != w {
			t.Errorf("row %d = %v, want Asignatura=%q", i, rows[i], w)
		}
	}
}

func TestUnfilledSectionsAppearBlank(t *testing.T) {
	f := setup(t)
	got, err := f.content.ReadContent(context.Background(), f.tpl, f.instance.ID)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("sections = %d, want 2", len(got))
	}
	if sc := got["Descripción"]; sc.Body != "" || sc.Kind != template.SectionText {
		t.Errorf("blank free text = %+v", sc)
	}
	if sc := got["Datos generales"]; len(sc.Rows) != 0 || sc.Kind != template.SectionTable {
		t.Errorf("blank table = %+v", sc)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	f := setup(t)
	general := section(t, f.tpl, "Datos generales")

	err := f.content.UpsertTableRow(context.Background(), f.instance.ID, general, 0,
		map[string]string{"Aula": "B-204"})
	if !errors.Is(err, ErrUnknownField) {
		t.Fatalf("err = %v, want ErrUnknownField", err)
	}

	// Nothing is written when any field is unknown.
	var count int
	f.content.DB.QueryRow(`SELECT COUNT(*) FROM section_contents`).Scan(&count)
	if count != 0 {
		t.Errorf("section_contents rows = %d, want 0", count)
	}
}

func TestKindMismatch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	general := section(t, f.tpl, "Datos generales")
	desc := section(t, f.tpl, "Descripción")

	if err := f.content.UpsertFreeText(ctx, f.instance.ID, general, "x"); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("free text on table err = %v", err)
	}
	if err := f.content.UpsertTableRow(ctx, f.instance.ID, desc, 0, nil); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("row on free text err = %v", err)
	}
}
