package template

import "strings"

// FieldKind is the input widget a template field renders as.
type FieldKind string

const (
	FieldText      FieldKind = "texto"       // single-line text
	FieldMultiline FieldKind = "texto_largo" // multi-line free text
	FieldSelect    FieldKind = "seleccion"   // single-select bound to a lookup catalog
)

// fieldRule is one entry of the ordered classifier table: the first rule
// whose keyword matches decides the field kind. Mirrors the section rule
// table's data-driven design.
type fieldRule struct {
	keywords []string
	kind     FieldKind
	catalog  string // lookup catalog for select fields
}

var fieldRules = []fieldRule{
	{keywords: []string{"descripción", "descripcion", "objetivo", "contenido",
		"metodología", "metodologia", "unidad", "resultado", "perfil", "criterio"},
		kind: FieldMultiline},
	{keywords: []string{"facultad"}, kind: FieldSelect, catalog: "facultades"},
	{keywords: []string{"carrera"}, kind: FieldSelect, catalog: "carreras"},
	{keywords: []string{"asignatura", "materia"}, kind: FieldSelect, catalog: "asignaturas"},
	{keywords: []string{"nivel"}, kind: FieldSelect, catalog: "niveles"},
	{keywords: []string{"paralelo"}, kind: FieldSelect, catalog: "paralelos"},
	{keywords: []string{"modalidad"}, kind: FieldSelect, catalog: "modalidades"},
}

// ClassifyField infers a field's kind (and lookup catalog, for selects) from
// its cleaned title text. Anything no rule claims is single-line text.
func ClassifyField(clean string) (FieldKind, string) {
	lower := strings.ToLower(clean)
	for _, r := range fieldRules {
		for _, k := range r.keywords {
			if strings.Contains(lower, k) {
				return r.kind, r.catalog
			}
		}
	}
	return FieldText, ""
}
