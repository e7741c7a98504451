package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trainload/internal/calibration"
	"trainload/internal/stress"
)

// The method names below satisfy calibration.Store, so a *Store can back
// a calibration.Engine directly.

// Profile loads the scaling profile, falling back to the defaults when
// none has been persisted yet.
func (s *Store) Profile() (stress.Profile, error) {
	var (
		p                   stress.Profile
		sportJSON, bandJSON string
		learningEnabled     int64
	)
	err := s.db.QueryRow(`
		SELECT global_factor, global_confidence, global_sample_count,
			sport_factors, band_factors, learning_enabled
		FROM scaling_profile WHERE id = 1`,
	).Scan(&p.GlobalFactor, &p.GlobalConfidence, &p.GlobalSampleCount,
		&sportJSON, &bandJSON, &learningEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return stress.DefaultProfile(), nil
	}
	if err != nil {
		return stress.Profile{}, err
	}

	p.LearningEnabled = learningEnabled == 1
	if err := json.Unmarshal([]byte(sportJSON), &p.SportFactors); err != nil {
		return stress.Profile{}, fmt.Errorf("parsing sport factors: %w", err)
	}
	if err := json.Unmarshal([]byte(bandJSON), &p.BandFactors); err != nil {
		return stress.Profile{}, fmt.Errorf("parsing band factors: %w", err)
	}
	return p, nil
}

// SaveProfile persists the scaling profile as the singleton row.
func (s *Store) SaveProfile(p stress.Profile) error {
	sportJSON, err := json.Marshal(p.SportFactors)
	if err != nil {
		return fmt.Errorf("encoding sport factors: %w", err)
	}
	bandJSON, err := json.Marshal(p.BandFactors)
	if err != nil {
		return fmt.Errorf("encoding band factors: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO scaling_profile (
			id, global_factor, global_confidence, global_sample_count,
			sport_factors, band_factors, learning_enabled
		) VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			global_factor = excluded.global_factor,
			global_confidence = excluded.global_confidence,
			global_sample_count = excluded.global_sample_count,
			sport_factors = excluded.sport_factors,
			band_factors = excluded.band_factors,
			learning_enabled = excluded.learning_enabled,
			updated_at = CURRENT_TIMESTAMP`,
		p.GlobalFactor, p.GlobalConfidence, p.GlobalSampleCount,
		string(sportJSON), string(bandJSON), boolToInt64(p.LearningEnabled),
	)
	return err
}

// AddPoint stores a new calibration point.
func (s *Store) AddPoint(p calibration.Point) error {
	_, err := s.db.Exec(`
		INSERT INTO calibration_points (
			id, effective_date, extracted, calculated, source_confidence,
			sport, band, method, valid, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.EffectiveDate.Format(time.RFC3339), p.Extracted, p.Calculated,
		p.SourceConfidence, string(p.Sport), string(p.Band), string(p.Method),
		boolToInt64(p.Valid), p.CreatedAt.Format(time.RFC3339),
	)
	return err
}

// ValidPoints returns every calibration point still marked valid.
func (s *Store) ValidPoints() ([]calibration.Point, error) {
	rows, err := s.db.Query(`
		SELECT id, effective_date, extracted, calculated, source_confidence,
			sport, band, method, valid, created_at
		FROM calibration_points WHERE valid = 1
		ORDER BY effective_date ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPoints(rows)
}

// AllPoints returns every calibration point, including invalidated ones.
func (s *Store) AllPoints() ([]calibration.Point, error) {
	rows, err := s.db.Query(`
		SELECT id, effective_date, extracted, calculated, source_confidence,
			sport, band, method, valid, created_at
		FROM calibration_points ORDER BY effective_date ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPoints(rows)
}

// InvalidatePoint soft-deletes an erroneous calibration point. The row
// is kept for auditability; only the valid flag is cleared.
func (s *Store) InvalidatePoint(id string) error {
	result, err := s.db.Exec(
		`UPDATE calibration_points SET valid = 0 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPointNotFound
	}
	return nil
}

func collectPoints(rows *sql.Rows) ([]calibration.Point, error) {
	var points []calibration.Point
	for rows.Next() {
		var p calibration.Point
		var effectiveDate, sport, band, method, createdAt string
		var valid int64

		err := rows.Scan(&p.ID, &effectiveDate, &p.Extracted, &p.Calculated,
			&p.SourceConfidence, &sport, &band, &method, &valid, &createdAt)
		if err != nil {
			return nil, err
		}

		p.EffectiveDate, err = time.Parse(time.RFC3339, effectiveDate)
		if err != nil {
			return nil, fmt.Errorf("parsing effective_date %q: %w", effectiveDate, err)
		}
		p.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
		}
		p.Sport = stress.Sport(sport)
		p.Band = stress.Band(band)
		p.Method = calibration.Method(method)
		p.Valid = valid == 1

		points = append(points, p)
	}
	return points, rows.Err()
}
