package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// SaveDailyLoad upserts a batch of daily load rows in one transaction.
func (s *Store) SaveDailyLoad(points []DailyLoad) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO daily_load (date, stress, ctl, atl, tsb)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (date) DO UPDATE SET
			stress = excluded.stress,
			ctl = excluded.ctl,
			atl = excluded.atl,
			tsb = excluded.tsb,
			computed_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(p.Date, p.Stress, p.CTL, p.ATL, p.TSB); err != nil {
			return fmt.Errorf("upserting daily load for %s: %w", p.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// GetDailyLoad retrieves the load row for a single date.
func (s *Store) GetDailyLoad(date string) (*DailyLoad, error) {
	var d DailyLoad
	err := s.db.QueryRow(
		`SELECT date, stress, ctl, atl, tsb FROM daily_load WHERE date = ?`,
		date,
	).Scan(&d.Date, &d.Stress, &d.CTL, &d.ATL, &d.TSB)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoDailyLoad
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DailyLoadBetween returns daily load rows for dates in [start, end],
// ordered ascending. Dates use the "2006-01-02" format.
func (s *Store) DailyLoadBetween(start, end string) ([]DailyLoad, error) {
	rows, err := s.db.Query(
		`SELECT date, stress, ctl, atl, tsb FROM daily_load
		WHERE date >= ? AND date <= ? ORDER BY date ASC`,
		start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []DailyLoad
	for rows.Next() {
		var d DailyLoad
		if err := rows.Scan(&d.Date, &d.Stress, &d.CTL, &d.ATL, &d.TSB); err != nil {
			return nil, err
		}
		points = append(points, d)
	}
	return points, rows.Err()
}

// LatestDailyLoad returns the most recent load row, or ErrNoDailyLoad
// when the series is empty.
func (s *Store) LatestDailyLoad() (*DailyLoad, error) {
	var d DailyLoad
	err := s.db.QueryRow(
		`SELECT date, stress, ctl, atl, tsb FROM daily_load
		ORDER BY date DESC LIMIT 1`,
	).Scan(&d.Date, &d.Stress, &d.CTL, &d.ATL, &d.TSB)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoDailyLoad
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DailyLoadBefore returns the load row for the latest date strictly
// before the given date, used as the recurrence baseline for recomputes.
func (s *Store) DailyLoadBefore(date string) (*DailyLoad, error) {
	var d DailyLoad
	err := s.db.QueryRow(
		`SELECT date, stress, ctl, atl, tsb FROM daily_load
		WHERE date < ? ORDER BY date DESC LIMIT 1`,
		date,
	).Scan(&d.Date, &d.Stress, &d.CTL, &d.ATL, &d.TSB)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoDailyLoad
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
