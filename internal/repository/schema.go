package repository

import "fmt"

// postgresSchema creates the prompts table. %d is the embedding dimensionality.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS prompts (
	id                    UUID PRIMARY KEY,
	owner_name            TEXT NOT NULL,
	prompt                TEXT NOT NULL,
	category              TEXT NOT NULL CHECK (category IN ('reference', 'candidate', 'gallery')),
	status                TEXT NOT NULL CHECK (status IN ('pending', 'completed', 'failed')),
	embedding             vector(%d),
	embedding_prompt_hash TEXT,
	embedding_claimed_at  TIMESTAMPTZ,
	image_filename        TEXT,
	error                 TEXT,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_prompts_category_status ON prompts (category, status);
CREATE INDEX IF NOT EXISTS idx_prompts_owner_name ON prompts (owner_name);
`

// sqliteSchema stores embeddings as little-endian float32 BLOBs and timestamps as RFC3339Nano text.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS prompts (
	id                    TEXT PRIMARY KEY,
	owner_name            TEXT NOT NULL,
	prompt                TEXT NOT NULL,
	category              TEXT NOT NULL CHECK (category IN ('reference', 'candidate', 'gallery')),
	status                TEXT NOT NULL CHECK (status IN ('pending', 'completed', 'failed')),
	embedding             BLOB,
	embedding_prompt_hash TEXT,
	embedding_claimed_at  TEXT,
	image_filename        TEXT,
	error                 TEXT,
	created_at            TEXT NOT NULL,
	updated_at            TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_prompts_category_status ON prompts (category, status);
CREATE INDEX IF NOT EXISTS idx_prompts_owner_name ON prompts (owner_name);
`

func postgresSchemaFor(dimensions int) string {
	return fmt.Sprintf(postgresSchema, dimensions)
}
