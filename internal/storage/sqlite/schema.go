package sqlite

// schema is the embedded SQLite schema, applied idempotently at startup.
const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	date_of_birth TIMESTAMP,
	height_cm INTEGER NOT NULL DEFAULT 0,
	location TEXT NOT NULL DEFAULT '',
	country_of_origin TEXT NOT NULL DEFAULT '',
	latitude REAL NOT NULL DEFAULT 0,
	longitude REAL NOT NULL DEFAULT 0,
	religion TEXT NOT NULL DEFAULT '',
	ethnicity TEXT NOT NULL DEFAULT '',
	secondary_tribe TEXT NOT NULL DEFAULT '',
	body_type TEXT NOT NULL DEFAULT '',
	education_level TEXT NOT NULL DEFAULT '',
	education_institutions TEXT NOT NULL DEFAULT '[]',
	has_children TEXT NOT NULL DEFAULT '',
	wants_children TEXT NOT NULL DEFAULT '',
	relationship_goal TEXT NOT NULL DEFAULT '',
	profession TEXT NOT NULL DEFAULT '',
	bio TEXT NOT NULL DEFAULT '',
	interests TEXT NOT NULL DEFAULT '[]',
	last_active_at TIMESTAMP,
	online BOOLEAN NOT NULL DEFAULT 0,
	hidden BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_profiles_last_active ON profiles(last_active_at DESC);
CREATE INDEX IF NOT EXISTS idx_profiles_location ON profiles(location);

CREATE TABLE IF NOT EXISTS preferences (
	user_id TEXT PRIMARY KEY REFERENCES profiles(id) ON DELETE CASCADE,
	min_age INTEGER NOT NULL DEFAULT 0,
	max_age INTEGER NOT NULL DEFAULT 0,
	min_height_cm INTEGER NOT NULL DEFAULT 0,
	max_height_cm INTEGER NOT NULL DEFAULT 0,
	religions TEXT NOT NULL DEFAULT '[]',
	ethnicities TEXT NOT NULL DEFAULT '[]',
	body_types TEXT NOT NULL DEFAULT '[]',
	education_levels TEXT NOT NULL DEFAULT '[]',
	accepts_children TEXT NOT NULL DEFAULT '',
	wants_children TEXT NOT NULL DEFAULT '',
	location_preference TEXT NOT NULL DEFAULT '',
	matching_priorities TEXT NOT NULL DEFAULT '[]',
	deal_breakers TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS interactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	actor_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	rating REAL NOT NULL,
	is_match BOOLEAN NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_interactions_actor ON interactions(actor_id, target_id);
CREATE INDEX IF NOT EXISTS idx_interactions_target ON interactions(target_id, created_at);
`
