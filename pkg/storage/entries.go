package storage

import (
	"context"
	"fmt"
)

// pathWhere builds the WHERE clause matching the parent path of p.
func pathWhere(p PathFilter) (string, []interface{}) {
	where := "WHERE 1=1"
	args := []interface{}{}
	cols := []string{"b1", "b2", "b3"}
	for i, c := range p.Components() {
		where += " AND " + cols[i] + " = ?"
		args = append(args, c)
	}
	return where, args
}

// FindEntries returns the entries under the parent path of p, in import order.
func (d *DB) FindEntries(ctx context.Context, p PathFilter) ([]Entry, error) {
	where, args := pathWhere(p)
	rows, err := d.sql.QueryContext(ctx, "SELECT id, b1, b2, b3, detail FROM entries "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.B1, &e.B2, &e.B3, &e.Detail); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GroupCount counts entries under the parent path of p grouped by the
// column of p.Level. Groups come back in first-appearance order.
func (d *DB) GroupCount(ctx context.Context, p PathFilter) ([]ValueCount, error) {
	col := p.Level.column()
	if col == "" {
		return nil, fmt.Errorf("group count: unsupported level %d", p.Level)
	}
	where, args := pathWhere(p)
	q := "SELECT " + col + ", COUNT(*) FROM entries " + where + " GROUP BY " + col + " ORDER BY MIN(id)"
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ValueCount
	for rows.Next() {
		var vc ValueCount
		if err := rows.Scan(&vc.Value, &vc.Count); err != nil {
			return nil, err
		}
		out = append(out, vc)
	}
	return out, rows.Err()
}

// DistinctValues lists the distinct values of one level across all entries.
func (d *DB) DistinctValues(ctx context.Context, level Level) ([]string, error) {
	col := level.column()
	if col == "" {
		return nil, fmt.Errorf("distinct values: unsupported level %d", level)
	}
	rows, err := d.sql.QueryContext(ctx, "SELECT DISTINCT "+col+" FROM entries")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ReplaceEntries deletes every entry and inserts the given ones in a single
// transaction.
func (d *DB) ReplaceEntries(ctx context.Context, entries []Entry) (err error) {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO entries(b1, b2, b3, detail) VALUES(?,?,?,?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err = stmt.ExecContext(ctx, e.B1, e.B2, e.B3, e.Detail); err != nil {
			err = fmt.Errorf("insert entry %d: %w", i, classify(err))
			return err
		}
	}
	return tx.Commit()
}

// DeleteEntries removes every entry.
func (d *DB) DeleteEntries(ctx context.Context) error {
	_, err := d.sql.ExecContext(ctx, "DELETE FROM entries")
	return err
}

// EntryCountsByB1 returns the number of entries per B1 value.
func (d *DB) EntryCountsByB1(ctx context.Context) ([]ValueCount, error) {
	return d.GroupCount(ctx, PathFilter{Level: LevelB1})
}
