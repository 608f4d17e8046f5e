package template

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/eduforma/silabo/dbopen"
	"github.com/eduforma/silabo/session"
)

// Materialize converts a curated session into a durable template: one
// section per grouping in grouping order, one field per assigned title in
// the title's original row/column order. Everything is created in a single
// transaction so a partially built template is never visible.
//
// Materializing the same session twice fails with ErrAlreadyMaterialized;
// the source session id is the idempotency key.
func (s *Store) Materialize(ctx context.Context, reg *session.Store, sessionID, name, curatorID string) (*Template, error) {
	sess, err := reg.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}

	groupings, err := reg.ListGroupings(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(groupings) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoGroupings, sessionID)
	}

	titles, err := reg.SessionTitles(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]session.DetectedTitle, len(titles))
	for _, t := range titles {
		byID[t.ID] = t
	}

	if name == "" {
		name = "Plantilla " + sess.Filename
	}

	tpl := &Template{
		ID:            s.templateID(),
		Name:          name,
		Kind:          "programa",
		Active:        true,
		CreatedBy:     curatorID,
		SourceSession: sessionID,
		CreatedAt:     time.Now().UnixMilli(),
	}

	err = dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO templates (id, name, description, kind, active, created_by, source_session, created_at)
			VALUES (?, ?, '', ?, 1, ?, ?, ?)`,
			tpl.ID, tpl.Name, tpl.Kind, tpl.CreatedBy, tpl.SourceSession, tpl.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrAlreadyMaterialized, sessionID)
			}
			return fmt.Errorf("insert template: %w", err)
		}

		tpl.Sections = make([]TemplateSection, 0, len(groupings))
		for pos, g := range groupings {
			members := resolveMembers(g, byID)
			sec := TemplateSection{
				ID:         s.sectionID(),
				TemplateID: tpl.ID,
				Name:       g.Name,
				Kind:       sectionKind(members),
				Position:   pos,
				Icon:       g.Icon,
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO template_sections (id, template_id, name, description, kind, position, required, icon)
				VALUES (?, ?, ?, '', ?, ?, 0, ?)`,
				sec.ID, sec.TemplateID, sec.Name, string(sec.Kind), sec.Position, sec.Icon); err != nil {
				return fmt.Errorf("insert section %q: %w", sec.Name, err)
			}

			usedNames := make(map[string]int)
			sec.Fields = make([]TemplateField, 0, len(members))
			for fpos, title := range members {
				kind, catalog := ClassifyField(title.Clean)
				f := TemplateField{
					ID:        s.fieldID(),
					SectionID: sec.ID,
					Name:      uniqueFieldName(title.Clean, usedNames),
					Label:     title.Clean,
					Kind:      kind,
					Catalog:   catalog,
					Position:  fpos,
					Options:   []string{},
				}
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO template_fields (id, section_id, name, label, kind, catalog, position, required, placeholder, options_json)
					VALUES (?, ?, ?, ?, ?, ?, ?, 0, '', '[]')`,
					f.ID, f.SectionID, f.Name, f.Label, string(f.Kind), f.Catalog, f.Position); err != nil {
					return fmt.Errorf("insert field %q: %w", f.Name, err)
				}
				sec.Fields = append(sec.Fields, f)
			}
			tpl.Sections = append(tpl.Sections, sec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tpl, nil
}

// resolveMembers maps a grouping's title ids to detected titles, ordered by
// original scan position (row/column order), dropping unknown ids.
func resolveMembers(g session.Grouping, byID map[string]session.DetectedTitle) []session.DetectedTitle {
	members := make([]session.DetectedTitle, 0, len(g.TitleIDs))
	for _, id := range g.TitleIDs {
		if t, ok := byID[id]; ok {
			members = append(members, t)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].Position < members[j].Position
	})
	return members
}

// sectionKind decides the section shape from its members: a lone narrative
// title becomes a free-text section, anything else is a table of fields.
func sectionKind(members []session.DetectedTitle) SectionKind {
	if len(members) == 1 {
		if kind, _ := ClassifyField(members[0].Clean); kind == FieldMultiline {
			return SectionText
		}
	}
	return SectionTable
}

// uniqueFieldName keeps field names unique within a section by suffixing
// repeats with an ordinal.
func uniqueFieldName(name string, used map[string]int) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	return fmt.Sprintf("%s (%d)", name, n+1)
}
