// Package content persists what authors write into template instances.
// Free-text sections store one body per (instance, section); table sections
// store ordered rows of (field, value) cells. All writes are last-write-wins
// upserts keyed on the natural unique constraints.
package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eduforma/silabo/dbopen"
	"github.com/eduforma/silabo/idgen"
	"github.com/eduforma/silabo/template"
)

var (
	// ErrUnknownField is returned when a write names a field the section
	// does not define.
	ErrUnknownField = errors.New("content: unknown field")

	// ErrKindMismatch is returned when a free-text write targets a table
	// section or a row write targets a free-text section.
	ErrKindMismatch = errors.New("content: section kind mismatch")
)

// SectionContent is the filled state of one section of an instance. Body is
// set for free-text sections, Rows for table sections. Unfilled sections
// read back as a zero SectionContent with the section's kind.
type SectionContent struct {
	SectionID string               `json:"section_id"`
	Kind      template.SectionKind `json:"kind"`
	Body      string               `json:"body,omitempty"`
	Rows      []map[string]string  `json:"rows,omitempty"`
	UpdatedAt int64                `json:"updated_at,omitempty"`
}

// Store is the instance content database handle.
type Store struct {
	DB *sql.DB

	contentID idgen.Generator
	rowID     idgen.Generator
	valueID   idgen.Generator
}

// NewStore wraps an open database (schema already applied).
func NewStore(db *sql.DB) *Store {
	return &Store{
		DB:        db,
		contentID: idgen.Prefixed("cnt_", idgen.Default),
		rowID:     idgen.Prefixed("row_", idgen.Default),
		valueID:   idgen.Prefixed("val_", idgen.Default),
	}
}

// Open opens (or creates) the content database at path.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// UpsertFreeText sets the body of a free-text section, replacing any
// previous body for the same (instance, section).
func (s *Store) UpsertFreeText(ctx context.Context, instanceID string, sec *template.TemplateSection, body string) error {
	if sec.Kind != template.SectionText {
		return fmt.Errorf("%w: section %q is %s, want texto", ErrKindMismatch, sec.Name, sec.Kind)
	}
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO section_contents (id, instance_id, section_id, body, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(instance_id, section_id)
		DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		s.contentID(), instanceID, sec.ID, body, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert free text: %w", err)
	}
	return nil
}

// UpsertTableRow writes one row of a table section. values maps field names
// (as defined by the section) to cell values. Writing the same (instance,
// section, rowOrder) again overwrites the named cells and leaves the rest:
// the stored row is the union of all writes, latest value per field.
func (s *Store) UpsertTableRow(ctx context.Context, instanceID string, sec *template.TemplateSection, rowOrder int, values map[string]string) error {
	if sec.Kind != template.SectionTable {
		return fmt.Errorf("%w: section %q is %s, want tabla", ErrKindMismatch, sec.Name, sec.Kind)
	}

	fieldIDs := make(map[string]string, len(sec.Fields))
	for _, f := range sec.Fields {
		fieldIDs[f.Name] = f.ID
	}
	for name := range values {
		if _, ok := fieldIDs[name]; !ok {
			return fmt.Errorf("%w: %q in section %q", ErrUnknownField, name, sec.Name)
		}
	}

	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		now := time.Now().UnixMilli()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO section_contents (id, instance_id, section_id, body, updated_at)
			VALUES (?, ?, ?, '', ?)
			ON CONFLICT(instance_id, section_id)
			DO UPDATE SET updated_at = excluded.updated_at`,
			s.contentID(), instanceID, sec.ID, now); err != nil {
			return fmt.Errorf("upsert section content: %w", err)
		}
		var contentID string
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM section_contents WHERE instance_id = ? AND section_id = ?`,
			instanceID, sec.ID).Scan(&contentID); err != nil {
			return fmt.Errorf("resolve content id: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO table_rows (id, content_id, row_order) VALUES (?, ?, ?)
			ON CONFLICT(content_id, row_order) DO NOTHING`,
			s.rowID(), contentID, rowOrder); err != nil {
			return fmt.Errorf("upsert row: %w", err)
		}
		var rowID string
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM table_rows WHERE content_id = ? AND row_order = ?`,
			contentID, rowOrder).Scan(&rowID); err != nil {
			return fmt.Errorf("resolve row id: %w", err)
		}

		for name, value := range values {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO field_values (id, row_id, field_id, value) VALUES (?, ?, ?, ?)
				ON CONFLICT(row_id, field_id) DO UPDATE SET value = excluded.value`,
				s.valueID(), rowID, fieldIDs[name], value); err != nil {
				return fmt.Errorf("upsert cell %q: %w", name, err)
			}
		}
		return nil
	})
}

// ReadContent returns the filled state of every section of an instance,
// keyed by section name. Sections nothing was written to appear with an
// empty body and no rows, so callers always see the template's full shape.
func (s *Store) ReadContent(ctx context.Context, tpl *template.Template, instanceID string) (map[string]SectionContent, error) {
	out := make(map[string]SectionContent, len(tpl.Sections))

	for _, sec := range tpl.Sections {
		sc := SectionContent{SectionID: sec.ID, Kind: sec.Kind}

		var contentID string
		err := s.DB.QueryRowContext(ctx,
			`SELECT id, body, updated_at FROM section_contents
			WHERE instance_id = ? AND section_id = ?`, instanceID, sec.ID).
			Scan(&contentID, &sc.Body, &sc.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			out[sec.Name] = sc
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read section %q: %w", sec.Name, err)
		}

		if sec.Kind == template.SectionTable {
			rows, err := s.readRows(ctx, contentID, sec.Fields)
			if err != nil {
				return nil, fmt.Errorf("read rows of %q: %w", sec.Name, err)
			}
			sc.Rows = rows
		}
		out[sec.Name] = sc
	}
	return out, nil
}

func (s *Store) readRows(ctx context.Context, contentID string, fields []template.TemplateField) ([]map[string]string, error) {
	names := make(map[string]string, len(fields))
	for _, f := range fields {
		names[f.ID] = f.Name
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT r.row_order, v.field_id, v.value
		FROM table_rows r
		JOIN field_values v ON v.row_id = r.id
		WHERE r.content_id = ?
		ORDER BY r.row_order`, contentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]string
	byOrder := map[int]map[string]string{}
	var orders []int
	for rows.Next() {
		var order int
		var fieldID, value string
		if err := rows.Scan(&order, &fieldID, &value); err != nil {
			return nil, err
		}
		name, ok := names[fieldID]
		if !ok {
			continue
		}
		if byOrder[order] == nil {
			byOrder[order] = map[string]string{}
			orders = append(orders, order)
		}
		byOrder[order][name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, order := range orders {
		out = append(out, byOrder[order])
	}
	return out, nil
}
