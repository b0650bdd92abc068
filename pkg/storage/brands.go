package storage

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// ListBrands returns every brand ordered by percentage descending. Brands
// with equal percentage keep their insertion order.
func (d *DB) ListBrands(ctx context.Context) ([]Brand, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT id, name, percentage FROM brands ORDER BY percentage DESC, rowid ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	brands := []Brand{}
	for rows.Next() {
		var b Brand
		if err := rows.Scan(&b.ID, &b.Name, &b.Percentage); err != nil {
			return nil, err
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

// CreateBrand inserts a brand under a fresh id.
func (d *DB) CreateBrand(ctx context.Context, name string, percentage float64) (Brand, error) {
	b := Brand{ID: uuid.NewString(), Name: name, Percentage: percentage}
	_, err := d.sql.ExecContext(ctx, "INSERT INTO brands(id, name, percentage) VALUES(?,?,?)", b.ID, b.Name, b.Percentage)
	if err != nil {
		return Brand{}, classify(err)
	}
	return b, nil
}

// GetBrand returns ErrNotFound when no brand has the id.
func (d *DB) GetBrand(ctx context.Context, id string) (Brand, error) {
	var b Brand
	err := d.sql.QueryRowContext(ctx, "SELECT id, name, percentage FROM brands WHERE id = ?", id).Scan(&b.ID, &b.Name, &b.Percentage)
	if err == sql.ErrNoRows {
		return Brand{}, ErrNotFound
	}
	return b, err
}

// UpdateBrand applies the non-nil fields of u and returns the updated brand.
func (d *DB) UpdateBrand(ctx context.Context, id string, u BrandUpdate) (Brand, error) {
	set := "updated_at = CURRENT_TIMESTAMP"
	args := []interface{}{}
	if u.Name != nil {
		set += ", name = ?"
		args = append(args, *u.Name)
	}
	if u.Percentage != nil {
		set += ", percentage = ?"
		args = append(args, *u.Percentage)
	}
	args = append(args, id)

	res, err := d.sql.ExecContext(ctx, "UPDATE brands SET "+set+" WHERE id = ?", args...)
	if err != nil {
		return Brand{}, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Brand{}, err
	}
	if n == 0 {
		return Brand{}, ErrNotFound
	}
	return d.GetBrand(ctx, id)
}

// DeleteBrand returns ErrNotFound when no brand has the id.
func (d *DB) DeleteBrand(ctx context.Context, id string) error {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM brands WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
