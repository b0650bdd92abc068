package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// FindOverrides returns the overrides of p's scope stored under p's parent path.
func (d *DB) FindOverrides(ctx context.Context, p PathFilter) ([]Override, error) {
	scope := p.Scope()
	if scope == "" {
		return nil, fmt.Errorf("find overrides: level %s has no overrides", p.Level)
	}
	b1, b2, b3 := overrideKey(p)
	rows, err := d.sql.QueryContext(ctx, `SELECT scope, b1, b2, b3, value, percentage, updated_at FROM overrides WHERE scope = ? AND b1 = ? AND b2 = ? AND b3 = ? ORDER BY id`, scope, b1, b2, b3)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Override
	for rows.Next() {
		var (
			o         Override
			updatedAt string
		)
		if err := rows.Scan(&o.Scope, &o.B1, &o.B2, &o.B3, &o.Value, &o.Percentage, &updatedAt); err != nil {
			return nil, err
		}
		o.UpdatedAt = parseTimestamp(updatedAt)
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpsertOverride creates or replaces the override for value under p.
func (d *DB) UpsertOverride(ctx context.Context, p PathFilter, value string, percentage float64) (Override, error) {
	scope := p.Scope()
	if scope == "" {
		return Override{}, fmt.Errorf("upsert override: level %s has no overrides", p.Level)
	}
	b1, b2, b3 := overrideKey(p)
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO overrides(scope, b1, b2, b3, value, percentage)
		VALUES(?,?,?,?,?,?)
		ON CONFLICT(scope, b1, b2, b3, value)
		DO UPDATE SET percentage = excluded.percentage, updated_at = CURRENT_TIMESTAMP`,
		scope, b1, b2, b3, value, percentage)
	if err != nil {
		return Override{}, classify(err)
	}

	var (
		o         Override
		updatedAt string
	)
	err = d.sql.QueryRowContext(ctx, `SELECT scope, b1, b2, b3, value, percentage, updated_at FROM overrides WHERE scope = ? AND b1 = ? AND b2 = ? AND b3 = ? AND value = ?`, scope, b1, b2, b3, value).
		Scan(&o.Scope, &o.B1, &o.B2, &o.B3, &o.Value, &o.Percentage, &updatedAt)
	if err == sql.ErrNoRows {
		return Override{}, ErrNotFound
	}
	if err != nil {
		return Override{}, err
	}
	o.UpdatedAt = parseTimestamp(updatedAt)
	return o, nil
}

// DeleteOverrides removes every override of the given scopes, or every
// override when no scope is given.
func (d *DB) DeleteOverrides(ctx context.Context, scopes ...Scope) error {
	if len(scopes) == 0 {
		_, err := d.sql.ExecContext(ctx, "DELETE FROM overrides")
		return err
	}
	for _, s := range scopes {
		if _, err := d.sql.ExecContext(ctx, "DELETE FROM overrides WHERE scope = ?", s); err != nil {
			return err
		}
	}
	return nil
}

// ResetOverrides drops and recreates the overrides table, repairing indexes
// left behind by older schemas.
func (d *DB) ResetOverrides(ctx context.Context) error {
	if _, err := d.sql.ExecContext(ctx, "DROP TABLE IF EXISTS overrides"); err != nil {
		return err
	}
	_, err := d.sql.ExecContext(ctx, overridesSchema)
	return err
}
