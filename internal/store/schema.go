package store

const schema = `
CREATE TABLE IF NOT EXISTS tracking_domains (
	domain     TEXT PRIMARY KEY,
	category   TEXT,
	hit_count  INTEGER NOT NULL DEFAULT 0,
	blocked    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tracking_ips (
	ip        TEXT PRIMARY KEY,
	hit_count INTEGER NOT NULL DEFAULT 0,
	blocked   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS whitelist (
	domain TEXT PRIMARY KEY,
	reason TEXT
);

CREATE TABLE IF NOT EXISTS cookie_traffic (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	domain    TEXT NOT NULL,
	cookie    TEXT NOT NULL,
	blocked   INTEGER NOT NULL,
	timestamp TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_cookie_traffic_timestamp ON cookie_traffic(timestamp);

CREATE TABLE IF NOT EXISTS fingerprint_rotations (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	user_agent      TEXT NOT NULL,
	accept_language TEXT NOT NULL,
	mode            TEXT NOT NULL,
	timestamp       TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_fingerprint_rotations_timestamp ON fingerprint_rotations(timestamp);

CREATE TABLE IF NOT EXISTS request_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	domain     TEXT NOT NULL,
	path       TEXT NOT NULL,
	user_agent TEXT,
	client_ip  TEXT,
	timestamp  TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_request_log_timestamp ON request_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_request_log_domain ON request_log(domain);
`
