// Package store provides SQLite-backed persistence for the AlignOS tables.
package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS teams (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	description    TEXT,
	parent_team_id TEXT,
	created_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS persons (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL,
	role       TEXT NOT NULL DEFAULT '',
	team_id    TEXT,
	avatar_url TEXT,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_persons_email ON persons(email);

CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	owner_id    TEXT,
	team_id     TEXT,
	status      TEXT NOT NULL DEFAULT 'active',
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	rationale   TEXT,
	status      TEXT NOT NULL DEFAULT 'draft',
	project_id  TEXT,
	created_by  TEXT,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_updated ON decisions(updated_at);

CREATE TABLE IF NOT EXISTS decision_versions (
	id             TEXT PRIMARY KEY,
	decision_id    TEXT NOT NULL REFERENCES decisions(id),
	version        INTEGER NOT NULL,
	content        TEXT NOT NULL,
	change_summary TEXT,
	changed_by     TEXT,
	changed_at     DATETIME NOT NULL,
	UNIQUE(decision_id, version)
);

CREATE TABLE IF NOT EXISTS acknowledgments (
	id              TEXT PRIMARY KEY,
	decision_id     TEXT NOT NULL REFERENCES decisions(id),
	person_id       TEXT NOT NULL REFERENCES persons(id),
	acknowledged_at DATETIME,
	created_at      DATETIME NOT NULL,
	UNIQUE(decision_id, person_id)
);

CREATE TABLE IF NOT EXISTS relationships (
	id                TEXT PRIMARY KEY,
	source_type       TEXT NOT NULL,
	source_id         TEXT NOT NULL,
	target_type       TEXT NOT NULL,
	target_id         TEXT NOT NULL,
	relationship_type TEXT NOT NULL,
	metadata          TEXT,
	created_at        DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_id);
CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_id);

CREATE TABLE IF NOT EXISTS conflicts (
	id                   TEXT PRIMARY KEY,
	type                 TEXT NOT NULL,
	entity_ids           TEXT NOT NULL DEFAULT '[]',
	status               TEXT NOT NULL DEFAULT 'detected',
	description          TEXT NOT NULL,
	suggested_resolution TEXT,
	created_at           DATETIME NOT NULL,
	resolved_at          DATETIME
);

CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	event_type  TEXT NOT NULL,
	metadata    TEXT,
	created_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);

CREATE TABLE IF NOT EXISTS sources (
	id                TEXT PRIMARY KEY,
	type              TEXT NOT NULL,
	raw_content       TEXT NOT NULL,
	processed_content TEXT,
	metadata          TEXT,
	created_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	content    TEXT,
	source_url TEXT,
	type       TEXT NOT NULL DEFAULT 'document',
	created_at DATETIME NOT NULL
);
`

// Table names, also used as changefeed topics.
const (
	TablePersons          = "persons"
	TableTeams            = "teams"
	TableProjects         = "projects"
	TableDecisions        = "decisions"
	TableDecisionVersions = "decision_versions"
	TableAcknowledgments  = "acknowledgments"
	TableRelationships    = "relationships"
	TableConflicts        = "conflicts"
	TableEvents           = "events"
	TableSources          = "sources"
	TableDocuments        = "documents"
)

// Change operations reported to the Notifier.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)
