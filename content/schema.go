package content

// Schema for instance content. One section_contents row per filled
// (instance, section) pair; table sections hang ordered rows off it, with
// one field_values cell per (row, field). Values live in rows, never in
// columns, so new template shapes need no migration.
const Schema = `
CREATE TABLE IF NOT EXISTS section_contents (
	id          TEXT PRIMARY KEY,
	instance_id TEXT NOT NULL,
	section_id  TEXT NOT NULL,
	body        TEXT NOT NULL DEFAULT '',
	updated_at  INTEGER NOT NULL,
	UNIQUE(instance_id, section_id)
);

CREATE TABLE IF NOT EXISTS table_rows (
	id         TEXT PRIMARY KEY,
	content_id TEXT NOT NULL REFERENCES section_contents(id) ON DELETE CASCADE,
	row_order  INTEGER NOT NULL,
	UNIQUE(content_id, row_order)
);

CREATE TABLE IF NOT EXISTS field_values (
	id       TEXT PRIMARY KEY,
	row_id   TEXT NOT NULL REFERENCES table_rows(id) ON DELETE CASCADE,
	field_id TEXT NOT NULL,
	value    TEXT NOT NULL DEFAULT '',
	UNIQUE(row_id, field_id)
);
`
