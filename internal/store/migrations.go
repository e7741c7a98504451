package store

import "database/sql"

// migrate runs all database migrations
func migrate(db *sql.DB) error {
	migrations := []string{
		// Authentication (singleton row)
		`CREATE TABLE IF NOT EXISTS auth (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			athlete_id INTEGER NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// Workouts (one row per activity, deduplicated across sources)
		`CREATE TABLE IF NOT EXISTS workouts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			source_id TEXT NOT NULL,
			name TEXT NOT NULL,
			sport TEXT NOT NULL,
			start_time TEXT NOT NULL,
			duration_seconds REAL NOT NULL,
			distance_meters REAL,
			avg_power REAL,
			normalized_power REAL,
			avg_heartrate REAL,
			avg_pace REAL,
			elevation_gain REAL,
			perceived_intensity REAL,
			tss REAL NOT NULL DEFAULT 0,
			tss_method TEXT NOT NULL DEFAULT '',
			intensity_factor REAL NOT NULL DEFAULT 0,
			scaling_applied INTEGER NOT NULL DEFAULT 0,
			scaling_factor REAL NOT NULL DEFAULT 1,
			pre_scaling_tss REAL,
			created_at TEXT DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (source, source_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_workouts_start_time ON workouts(start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_workouts_sport ON workouts(sport)`,

		// Daily training load (one row per calendar day)
		`CREATE TABLE IF NOT EXISTS daily_load (
			date TEXT PRIMARY KEY,
			stress REAL NOT NULL,
			ctl REAL NOT NULL,
			atl REAL NOT NULL,
			tsb REAL NOT NULL,
			computed_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// Calibration points (ground truth vs calculated comparisons)
		`CREATE TABLE IF NOT EXISTS calibration_points (
			id TEXT PRIMARY KEY,
			effective_date TEXT NOT NULL,
			extracted REAL NOT NULL,
			calculated REAL NOT NULL,
			source_confidence REAL NOT NULL,
			sport TEXT NOT NULL DEFAULT '',
			band TEXT NOT NULL DEFAULT '',
			method TEXT NOT NULL,
			valid INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_calibration_points_valid ON calibration_points(valid)`,

		// Scaling profile (singleton row; factor maps stored as JSON)
		`CREATE TABLE IF NOT EXISTS scaling_profile (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			global_factor REAL NOT NULL,
			global_confidence REAL NOT NULL,
			global_sample_count INTEGER NOT NULL,
			sport_factors TEXT NOT NULL,
			band_factors TEXT NOT NULL,
			learning_enabled INTEGER NOT NULL,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,

		// Sync State (key-value store for sync tracking)
		`CREATE TABLE IF NOT EXISTS sync_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}

	return nil
}
