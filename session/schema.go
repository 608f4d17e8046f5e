package session

// Schema for the extraction session registry. Applied via dbopen.WithSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	filename   TEXT NOT NULL,
	kind       TEXT NOT NULL CHECK(kind IN ('spreadsheet','word')),
	strategy   TEXT NOT NULL DEFAULT '',
	total_rows INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS detected_titles (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	raw_text   TEXT NOT NULL,
	clean_text TEXT NOT NULL,
	row_index  INTEGER NOT NULL,
	col_index  INTEGER NOT NULL,
	col_label  TEXT NOT NULL,
	role       TEXT NOT NULL,
	score      REAL NOT NULL,
	flags_json TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_titles_session ON detected_titles(session_id, position);

CREATE TABLE IF NOT EXISTS groupings (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	icon       TEXT NOT NULL DEFAULT '',
	position   INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_groupings_session ON groupings(session_id, position);

CREATE TABLE IF NOT EXISTS grouping_titles (
	grouping_id TEXT NOT NULL REFERENCES groupings(id) ON DELETE CASCADE,
	title_id    TEXT NOT NULL REFERENCES detected_titles(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	PRIMARY KEY (grouping_id, title_id)
);
`
