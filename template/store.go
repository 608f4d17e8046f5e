// Package template owns the durable schema built from curated sessions:
// Template → TemplateSection → TemplateField, plus program instances and
// author assignments. Template shapes are data, not columns — instances are
// filled through the content package without migrations.
package template

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eduforma/silabo/dbopen"
	"github.com/eduforma/silabo/idgen"
)

var (
	// ErrNotFound is returned for unknown template/instance/assignment ids.
	ErrNotFound = errors.New("template: not found")

	// ErrAlreadyMaterialized is returned when a session that already
	// produced a template is materialized again.
	ErrAlreadyMaterialized = errors.New("template: session already materialized")

	// ErrNoGroupings is returned when materialization is requested for a
	// session the curator has not grouped yet.
	ErrNoGroupings = errors.New("template: session has no groupings")

	// ErrDuplicateAssignment is returned when an (instance, author, term)
	// assignment already exists.
	ErrDuplicateAssignment = errors.New("template: assignment already exists")

	// ErrInvalidState is returned for an unknown assignment workflow state.
	ErrInvalidState = errors.New("template: invalid assignment state")
)

// Template is a reusable, administrator-defined document schema.
type Template struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Kind          string            `json:"kind"`
	Active        bool              `json:"active"`
	CreatedBy     string            `json:"created_by"`
	SourceSession string            `json:"source_session"`
	CreatedAt     int64             `json:"created_at"`
	Sections      []TemplateSection `json:"sections,omitempty"`
}

// SectionKind distinguishes free-text sections from table sections.
type SectionKind string

const (
	SectionText  SectionKind = "texto"
	SectionTable SectionKind = "tabla"
)

// TemplateSection is one named, ordered part of a template.
type TemplateSection struct {
	ID          string          `json:"id"`
	TemplateID  string          `json:"template_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Kind        SectionKind     `json:"kind"`
	Position    int             `json:"position"`
	Required    bool            `json:"required"`
	Icon        string          `json:"icon"`
	Fields      []TemplateField `json:"fields,omitempty"`
}

// TemplateField is one named input inside a section.
type TemplateField struct {
	ID          string    `json:"id"`
	SectionID   string    `json:"section_id"`
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	Kind        FieldKind `json:"kind"`
	Catalog     string    `json:"catalog,omitempty"`
	Position    int       `json:"position"`
	Required    bool      `json:"required"`
	Placeholder string    `json:"placeholder"`
	Options     []string  `json:"options"`
}

// Instance is one concrete document bound to a template.
type Instance struct {
	ID         string `json:"id"`
	TemplateID string `json:"template_id"`
	Title      string `json:"title"`
	CreatedAt  int64  `json:"created_at"`
}

// Assignment links an instance to an author with a workflow state.
type Assignment struct {
	ID         string `json:"id"`
	InstanceID string `json:"instance_id"`
	AuthorID   string `json:"author_id"`
	Subject    string `json:"subject"`
	Level      string `json:"level"`
	Parallel   string `json:"parallel"`
	Term       string `json:"term"`
	State      string `json:"state"`
	CreatedAt  int64  `json:"created_at"`
}

// AssignmentStates are the allowed workflow states, in progression order.
var AssignmentStates = []string{"pending", "in_progress", "completed", "rejected"}

// Store is the template catalog database handle.
type Store struct {
	DB *sql.DB

	templateID idgen.Generator
	sectionID  idgen.Generator
	fieldID    idgen.Generator
	instanceID idgen.Generator
	assignID   idgen.Generator
}

// NewStore wraps an open database (schema already applied).
func NewStore(db *sql.DB) *Store {
	return &Store{
		DB:         db,
		templateID: idgen.Prefixed("tpl_", idgen.Default),
		sectionID:  idgen.Prefixed("sec_", idgen.Default),
		fieldID:    idgen.Prefixed("fld_", idgen.Default),
		instanceID: idgen.Prefixed("ins_", idgen.Default),
		assignID:   idgen.Prefixed("asg_", idgen.Default),
	}
}

// Open opens (or creates) the template database at path.
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

// ListTemplates returns all templates, without their section trees.
func (s *Store) ListTemplates(ctx context.Context) ([]Template, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, name, description, kind, active, created_by, source_session, created_at
		FROM templates ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	templates := []Template{}
	for rows.Next() {
		var t Template
		var active int
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Kind, &active,
			&t.CreatedBy, &t.SourceSession, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Active = active != 0
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// GetTemplate returns a template with its full section/field tree, ordered.
func (s *Store) GetTemplate(ctx context.Context, id string) (*Template, error) {
	var t Template
	var active int
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, description, kind, active, created_by, source_session, created_at
		FROM templates WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Description, &t.Kind, &active, &t.CreatedBy, &t.SourceSession, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: template %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	t.Active = active != 0

	sections, err := s.templateSections(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Sections = sections
	return &t, nil
}

func (s *Store) templateSections(ctx context.Context, templateID string) ([]TemplateSection, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, template_id, name, description, kind, position, required, icon
		FROM template_sections WHERE template_id = ? ORDER BY position`, templateID)
	if err != nil {
		return nil, fmt.Errorf("template sections: %w", err)
	}
	defer rows.Close()

	sections := []TemplateSection{}
	for rows.Next() {
		var sec TemplateSection
		var required int
		if err := rows.Scan(&sec.ID, &sec.TemplateID, &sec.Name, &sec.Description,
			&sec.Kind, &sec.Position, &required, &sec.Icon); err != nil {
			return nil, err
		}
		sec.Required = required != 0
		sections = append(sections, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sections {
		fields, err := s.sectionFields(ctx, sections[i].ID)
		if err != nil {
			return nil, err
		}
		sections[i].Fields = fields
	}
	return sections, nil
}

func (s *Store) sectionFields(ctx context.Context, sectionID string) ([]TemplateField, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, section_id, name, label, kind, catalog, position, required, placeholder, options_json
		FROM template_fields WHERE section_id = ? ORDER BY position`, sectionID)
	if err != nil {
		return nil, fmt.Errorf("section fields: %w", err)
	}
	defer rows.Close()

	fields := []TemplateField{}
	for rows.Next() {
		var f TemplateField
		var required int
		var optionsJSON string
		if err := rows.Scan(&f.ID, &f.SectionID, &f.Name, &f.Label, &f.Kind,
			&f.Catalog, &f.Position, &required, &f.Placeholder, &optionsJSON); err != nil {
			return nil, err
		}
		f.Required = required != 0
		if err := json.Unmarshal([]byte(optionsJSON), &f.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options for %s: %w", f.ID, err)
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

// SectionByName resolves a template's section by its name.
func (s *Store) SectionByName(ctx context.Context, templateID, name string) (*TemplateSection, error) {
	var sec TemplateSection
	var required int
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, template_id, name, description, kind, position, required, icon
		FROM template_sections WHERE template_id = ? AND name = ?`, templateID, name).
		Scan(&sec.ID, &sec.TemplateID, &sec.Name, &sec.Description, &sec.Kind,
			&sec.Position, &required, &sec.Icon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: section %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	sec.Required = required != 0
	return &sec, nil
}

// CreateInstance binds a new concrete document to a template.
func (s *Store) CreateInstance(ctx context.Context, templateID, title string) (*Instance, error) {
	if _, err := s.GetTemplate(ctx, templateID); err != nil {
		return nil, err
	}
	ins := &Instance{
		ID:         s.instanceID(),
		TemplateID: templateID,
		Title:      title,
		CreatedAt:  time.Now().UnixMilli(),
	}
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO instances (id, template_id, title, created_at) VALUES (?, ?, ?, ?)`,
		ins.ID, ins.TemplateID, ins.Title, ins.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	return ins, nil
}

// GetInstance returns one instance or ErrNotFound.
func (s *Store) GetInstance(ctx context.Context, id string) (*Instance, error) {
	var ins Instance
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, template_id, title, created_at FROM instances WHERE id = ?`, id).
		Scan(&ins.ID, &ins.TemplateID, &ins.Title, &ins.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: instance %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return &ins, nil
}

// AssignInstance links an instance to an author for a term. At most one
// assignment per (instance, author, term).
func (s *Store) AssignInstance(ctx context.Context, a *Assignment) (*Assignment, error) {
	if _, err := s.GetInstance(ctx, a.InstanceID); err != nil {
		return nil, err
	}
	if a.State == "" {
		a.State = "pending"
	}
	if !validState(a.State) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, a.State)
	}
	a.ID = s.assignID()
	a.CreatedAt = time.Now().UnixMilli()

	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO assignments (id, instance_id, author_id, subject, level, parallel, term, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.InstanceID, a.AuthorID, a.Subject, a.Level, a.Parallel, a.Term, a.State, a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: instance %s author %s term %q",
				ErrDuplicateAssignment, a.InstanceID, a.AuthorID, a.Term)
		}
		return nil, fmt.Errorf("assign instance: %w", err)
	}
	return a, nil
}

// SetAssignmentState moves an assignment through the workflow.
func (s *Store) SetAssignmentState(ctx context.Context, id, state string) error {
	if !validState(state) {
		return fmt.Errorf("%w: %q", ErrInvalidState, state)
	}
	res, err := dbopen.Exec(ctx, s.DB,
		`UPDATE assignments SET state = ? WHERE id = ?`, state, id)
	if err != nil {
		return fmt.Errorf("set assignment state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: assignment %s", ErrNotFound, id)
	}
	return nil
}

// ListAssignments returns an instance's assignments.
func (s *Store) ListAssignments(ctx context.Context, instanceID string) ([]Assignment, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, instance_id, author_id, subject, level, parallel, term, state, created_at
		FROM assignments WHERE instance_id = ? ORDER BY created_at, id`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	assignments := []Assignment{}
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.InstanceID, &a.AuthorID, &a.Subject,
			&a.Level, &a.Parallel, &a.Term, &a.State, &a.CreatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func validState(state string) bool {
	for _, s := range AssignmentStates {
		if s == state {
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
