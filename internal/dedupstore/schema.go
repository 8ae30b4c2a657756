// Package dedupstore is the Dedup Store: the durable, Postgres-backed
// record of which items were delivered to which chat and when, plus the
// Subscriber registry the Scheduler reads and writes last_slot_sent on.
package dedupstore

const schema = `
CREATE TABLE IF NOT EXISTS subscribers (
	chat_id TEXT PRIMARY KEY,
	timezone TEXT NOT NULL DEFAULT 'UTC',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMP NOT NULL DEFAULT NOW(),
	last_slot_sent_morning DATE,
	last_slot_sent_noon DATE,
	last_slot_sent_evening DATE,
	last_slot_sent_night DATE,
	crypto_alerts BOOLEAN NOT NULL DEFAULT TRUE,
	market_updates BOOLEAN NOT NULL DEFAULT TRUE,
	weather_info BOOLEAN NOT NULL DEFAULT TRUE,
	world_news BOOLEAN NOT NULL DEFAULT TRUE,
	tech_news BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS delivery_log (
	chat_id TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	category TEXT NOT NULL,
	sent_at TIMESTAMP NOT NULL DEFAULT NOW(),
	PRIMARY KEY (chat_id, fingerprint)
);

CREATE INDEX IF NOT EXISTS idx_delivery_log_sent_at ON delivery_log(sent_at);

CREATE TABLE IF NOT EXISTS user_logs (
	id SERIAL PRIMARY KEY,
	user_id TEXT NOT NULL,
	username TEXT,
	first_name TEXT,
	interaction_time TIMESTAMP NOT NULL DEFAULT NOW(),
	message_type TEXT,
	location TEXT
);

CREATE INDEX IF NOT EXISTS idx_user_logs_user_id ON user_logs(user_id);
`
