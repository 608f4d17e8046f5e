// Package session is the durable registry of extraction sessions: one row
// per upload, its detected titles, and the curator's tab groupings.
//
// Sessions are file-backed from the start because curation may happen long
// after extraction, in another process, by a different actor.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eduforma/silabo/dbopen"
	"github.com/eduforma/silabo/idgen"
	"github.com/eduforma/silabo/score"
)

// ErrNotFound is returned when a session, title or grouping id is unknown.
var ErrNotFound = errors.New("session: not found")

// Session is one upload's immutable extraction record.
type Session struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Kind      string `json:"kind"`
	Strategy  string `json:"strategy"`
	TotalRows int    `json:"total_rows"`
	CreatedAt int64  `json:"created_at"`
}

// DetectedTitle is a persisted score.Title, addressable for curation.
type DetectedTitle struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Position  int    `json:"position"`
	score.Title
}

// Grouping maps an ordered subset of a session's titles to a named UI tab.
type Grouping struct {
	ID        string   `json:"id"`
	SessionID string   `json:"session_id"`
	Name      string   `json:"name"`
	Icon      string   `json:"icon"`
	Position  int      `json:"position"`
	TitleIDs  []string `json:"title_ids"`
	CreatedAt int64    `json:"created_at"`
}

// Store is the session registry database handle.
type Store struct {
	DB *sql.DB

	sessionID  idgen.Generator
	titleID    idgen.Generator
	groupingID idgen.Generator
}

// NewStore wraps an open database (schema already applied).
func NewStore(db *sql.DB) *Store {
	return &Store{
		DB:         db,
		sessionID:  idgen.Prefixed("ses_", idgen.Default),
		titleID:    idgen.Prefixed("ttl_", idgen.Default),
		groupingID: idgen.Prefixed("grp_", idgen.Default),
	}
}

// Open opens (or creates) the registry database at path and applies the
// schema and silabo pragmas.
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

// CreateSession records a new upload. Sessions are immutable once created.
func (s *Store) CreateSession(ctx context.Context, filename, kind, strategy string, totalRows int) (*Session, error) {
	sess := &Session{
		ID:        s.sessionID(),
		Filename:  filename,
		Kind:      kind,
		Strategy:  strategy,
		TotalRows: totalRows,
		CreatedAt: time.Now().UnixMilli(),
	}
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO sessions (id, filename, kind, strategy, total_rows, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Filename, sess.Kind, sess.Strategy, sess.TotalRows, sess.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// AttachTitles persists the scored titles under a session in one
// transaction, preserving scan order.
func (s *Store) AttachTitles(ctx context.Context, sessionID string, titles []score.Title) ([]DetectedTitle, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	out := make([]DetectedTitle, 0, len(titles))
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO detected_titles
			(id, session_id, position, raw_text, clean_text, row_index, col_index, col_label, role, score, flags_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		out = out[:0]
		for i, t := range titles {
			flagsJSON, err := json.Marshal(t.Flags)
			if err != nil {
				return fmt.Errorf("marshal flags: %w", err)
			}
			dt := DetectedTitle{
				ID:        s.titleID(),
				SessionID: sessionID,
				Position:  i,
				Title:     t,
			}
			if _, err := stmt.ExecContext(ctx, dt.ID, sessionID, i,
				t.Raw, t.Clean, t.Row, t.Col, t.ColLabel, string(t.Role), t.Score, string(flagsJSON)); err != nil {
				return fmt.Errorf("insert title %d: %w", i, err)
			}
			out = append(out, dt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetSession returns one session or ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, filename, kind, strategy, total_rows, created_at FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.Filename, &sess.Kind, &sess.Strategy, &sess.TotalRows, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, filename, kind, strategy, total_rows, created_at
		FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Filename, &sess.Kind, &sess.Strategy,
			&sess.TotalRows, &sess.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// SessionTitles returns a session's titles in scan order.
func (s *Store) SessionTitles(ctx context.Context, sessionID string) ([]DetectedTitle, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, session_id, position, raw_text, clean_text, row_index, col_index, col_label, role, score, flags_json
		FROM detected_titles WHERE session_id = ? ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session titles: %w", err)
	}
	defer rows.Close()

	titles := []DetectedTitle{}
	for rows.Next() {
		var dt DetectedTitle
		var role, flagsJSON string
		if err := rows.Scan(&dt.ID, &dt.SessionID, &dt.Position,
			&dt.Raw, &dt.Clean, &dt.Row, &dt.Col, &dt.ColLabel, &role, &dt.Score, &flagsJSON); err != nil {
			return nil, err
		}
		dt.Role = score.Role(role)
		if err := json.Unmarshal([]byte(flagsJSON), &dt.Flags); err != nil {
			return nil, fmt.Errorf("unmarshal flags for %s: %w", dt.ID, err)
		}
		titles = append(titles, dt)
	}
	return titles, rows.Err()
}

// DeleteSession removes a session; titles and groupings cascade.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := dbopen.Exec(ctx, s.DB, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return nil
}

// CreateGrouping creates a curation tab over a session's titles.
func (s *Store) CreateGrouping(ctx context.Context, sessionID, name, icon string, position int, titleIDs []string) (*Grouping, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	g := &Grouping{
		ID:        s.groupingID(),
		SessionID: sessionID,
		Name:      name,
		Icon:      icon,
		Position:  position,
		TitleIDs:  titleIDs,
		CreatedAt: time.Now().UnixMilli(),
	}
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO groupings (id, session_id, name, icon, position, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			g.ID, g.SessionID, g.Name, g.Icon, g.Position, g.CreatedAt); err != nil {
			return err
		}
		return insertMembership(ctx, tx, g.ID, titleIDs)
	})
	if err != nil {
		return nil, fmt.Errorf("create grouping: %w", err)
	}
	return g, nil
}

// UpdateGrouping renames/reorders a grouping and replaces its title
// membership in one transaction.
func (s *Store) UpdateGrouping(ctx context.Context, g *Grouping) error {
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE groupings SET name = ?, icon = ?, position = ? WHERE id = ?`,
			g.Name, g.Icon, g.Position, g.ID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: grouping %s", ErrNotFound, g.ID)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM grouping_titles WHERE grouping_id = ?`, g.ID); err != nil {
			return err
		}
		return insertMembership(ctx, tx, g.ID, g.TitleIDs)
	})
	if err != nil {
		return err
	}
	return nil
}

// DeleteGrouping removes one grouping and its memberships.
func (s *Store) DeleteGrouping(ctx context.Context, id string) error {
	res, err := dbopen.Exec(ctx, s.DB, `DELETE FROM groupings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete grouping: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: grouping %s", ErrNotFound, id)
	}
	return nil
}

// ListGroupings returns a session's groupings ordered by position, each with
// its ordered title ids.
func (s *Store) ListGroupings(ctx context.Context, sessionID string) ([]Grouping, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, session_id, name, icon, position, created_at
		FROM groupings WHERE session_id = ? ORDER BY position, created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list groupings: %w", err)
	}
	defer rows.Close()

	groupings := []Grouping{}
	for rows.Next() {
		var g Grouping
		if err := rows.Scan(&g.ID, &g.SessionID, &g.Name, &g.Icon, &g.Position, &g.CreatedAt); err != nil {
			return nil, err
		}
		groupings = append(groupings, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range groupings {
		ids, err := s.groupingTitleIDs(ctx, groupings[i].ID)
		if err != nil {
			return nil, err
		}
		groupings[i].TitleIDs = ids
	}
	return groupings, nil
}

func (s *Store) groupingTitleIDs(ctx context.Context, groupingID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT title_id FROM grouping_titles WHERE grouping_id = ? ORDER BY position`, groupingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func insertMembership(ctx context.Context, tx *sql.Tx, groupingID string, titleIDs []string) error {
	for i, titleID := range titleIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO grouping_titles (grouping_id, title_id, position) VALUES (?, ?, ?)`,
			groupingID, titleID, i); err != nil {
			return fmt.Errorf("attach title %s: %w", titleID, err)
		}
	}
	return nil
}
