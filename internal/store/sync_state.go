package store

import (
	"database/sql"
	"errors"
)

// GetSyncState retrieves a sync state value by key.
// Returns empty string if key doesn't exist.
func (s *Store) GetSyncState(key string) (string, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetSyncState sets a sync state value.
func (s *Store) SetSyncState(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_state (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP`,
		key, value)
	return err
}
