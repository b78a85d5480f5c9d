package presets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/marcus/morningshift/internal/db"
	"github.com/marcus/morningshift/internal/workout"
)

// ErrNotInStore is returned when deleting a preset the library does not hold.
var ErrNotInStore = errors.New("preset not in library")

// Store is a preset library kept in SQLite.
type Store struct {
	db *db.DB
}

// NewStore wraps an open database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Save upserts presets, replacing each one's exercise list. origin records
// where the presets were imported from.
func (s *Store) Save(ctx context.Context, list []Preset, origin string) error {
	if err := validate(list); err != nil {
		return err
	}

	tx, err := s.db.SQL().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, p := range list {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO presets (id, name, description, work_seconds, break_seconds, cycles, updated_at, imported_from)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				description = excluded.description,
				work_seconds = excluded.work_seconds,
				break_seconds = excluded.break_seconds,
				cycles = excluded.cycles,
				updated_at = excluded.updated_at,
				imported_from = excluded.imported_from`,
			p.ID, p.Name, p.Description, p.WorkDuration, p.BreakDuration, p.Cycles, now, origin)
		if err != nil {
			return fmt.Errorf("save preset %s: %w", p.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM preset_exercises WHERE preset_id = ?`, p.ID); err != nil {
			return fmt.Errorf("clear exercises %s: %w", p.ID, err)
		}
		for i, ex := range p.Exercises {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO preset_exercises (preset_id, position, name, description) VALUES (?, ?, ?, ?)`,
				p.ID, i, ex.Name, ex.Description); err != nil {
				return fmt.Errorf("save exercise %s/%d: %w", p.ID, i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Delete removes a preset and its exercises.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.SQL().ExecContext(ctx, `DELETE FROM presets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete preset %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete preset %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotInStore, id)
	}
	return nil
}

// Load returns every preset ordered by id.
func (s *Store) Load() ([]Preset, error) {
	return s.LoadContext(context.Background())
}

// LoadContext is Load with a context.
func (s *Store) LoadContext(ctx context.Context) ([]Preset, error) {
	rows, err := s.db.SQL().QueryContext(ctx, `
		SELECT id, name, description, work_seconds, break_seconds, cycles
		FROM presets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query presets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var list []Preset
	index := make(map[string]int)
	for rows.Next() {
		var p Preset
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.WorkDuration, &p.BreakDuration, &p.Cycles); err != nil {
			return nil, fmt.Errorf("scan preset: %w", err)
		}
		index[p.ID] = len(list)
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate presets: %w", err)
	}

	if err := s.loadExercises(ctx, list, index); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) loadExercises(ctx context.Context, list []Preset, index map[string]int) error {
	rows, err := s.db.SQL().QueryContext(ctx, `
		SELECT preset_id, name, description
		FROM preset_exercises ORDER BY preset_id, position`)
	if err != nil {
		return fmt.Errorf("query exercises: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			presetID string
			ex       workout.Exercise
		)
		if err := rows.Scan(&presetID, &ex.Name, &ex.Description); err != nil {
			return fmt.Errorf("scan exercise: %w", err)
		}
		i, ok := index[presetID]
		if !ok {
			continue
		}
		list[i].Exercises = append(list[i].Exercises, ex)
	}
	return rows.Err()
}

// Origin returns where a stored preset was imported from.
func (s *Store) Origin(ctx context.Context, id string) (string, error) {
	var origin string
	err := s.db.SQL().QueryRowContext(ctx, `SELECT imported_from FROM presets WHERE id = ?`, id).Scan(&origin)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotInStore, id)
	}
	if err != nil {
		return "", fmt.Errorf("query origin %s: %w", id, err)
	}
	return origin, nil
}
