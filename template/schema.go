package template

// Schema for templates, their section/field catalog, program instances and
// author assignments. Applied via dbopen.WithSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS templates (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	kind           TEXT NOT NULL DEFAULT 'programa',
	active         INTEGER NOT NULL DEFAULT 1,
	created_by     TEXT NOT NULL DEFAULT '',
	source_session TEXT NOT NULL UNIQUE,
	created_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS template_sections (
	id          TEXT PRIMARY KEY,
	template_id TEXT NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL CHECK(kind IN ('texto','tabla')),
	position    INTEGER NOT NULL,
	required    INTEGER NOT NULL DEFAULT 0,
	icon        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sections_template ON template_sections(template_id, position);

CREATE TABLE IF NOT EXISTS template_fields (
	id           TEXT PRIMARY KEY,
	section_id   TEXT NOT NULL REFERENCES template_sections(id) ON DELETE CASCADE,
	name         TEXT NOT NULL,
	label        TEXT NOT NULL,
	kind         TEXT NOT NULL CHECK(kind IN ('texto','texto_largo','seleccion')),
	catalog      TEXT NOT NULL DEFAULT '',
	position     INTEGER NOT NULL,
	required     INTEGER NOT NULL DEFAULT 0,
	placeholder  TEXT NOT NULL DEFAULT '',
	options_json TEXT NOT NULL DEFAULT '[]',
	UNIQUE(section_id, name)
);
CREATE INDEX IF NOT EXISTS idx_fields_section ON template_fields(section_id, position);

CREATE TABLE IF NOT EXISTS instances (
	id          TEXT PRIMARY KEY,
	template_id TEXT NOT NULL REFERENCES templates(id),
	title       TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS assignments (
	id          TEXT PRIMARY KEY,
	instance_id TEXT NOT NULL REFERENCES instances(id) ON DELETE CASCADE,
	author_id   TEXT NOT NULL,
	subject     TEXT NOT NULL DEFAULT '',
	level       TEXT NOT NULL DEFAULT '',
	parallel    TEXT NOT NULL DEFAULT '',
	term        TEXT NOT NULL DEFAULT '',
	state       TEXT NOT NULL CHECK(state IN ('pending','in_progress','completed','rejected')) DEFAULT 'pending',
	created_at  INTEGER NOT NULL,
	UNIQUE(instance_id, author_id, term)
);
`
