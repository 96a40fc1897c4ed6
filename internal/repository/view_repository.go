package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jengzang/dmarcviz/internal/database"
	"github.com/jengzang/dmarcviz/internal/models"
)

// ViewRepository handles database operations for analysis views
type ViewRepository struct {
	db *sql.DB
}

// NewViewRepository creates a new view repository
func NewViewRepository(db *sql.DB) *ViewRepository {
	return &ViewRepository{db: db}
}

const viewColumns = `SELECT id, title, description, report_type, range_begin, range_end,
	range_quantity, range_unit, position, enabled, created_at FROM views`

// List returns the views ordered by position, each with its filter sets.
// With enabledOnly set, disabled views are left out.
func (r *ViewRepository) List(ctx context.Context, enabledOnly bool) ([]models.View, error) {
	query := viewColumns
	if enabledOnly {
		query += " WHERE enabled = 1"
	}
	rows, err := r.db.QueryContext(ctx, query+" ORDER BY position, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query views: %w", err)
	}
	defer rows.Close()

	var views []models.View
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range views {
		views[i].FilterSets, err = r.filterSets(ctx, views[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return views, nil
}

// Get returns one view with its filter sets
func (r *ViewRepository) Get(ctx context.Context, id int64) (*models.View, error) {
	row := r.db.QueryRowContext(ctx, viewColumns+" WHERE id = ?", id)
	v, err := scanView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("view %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	v.FilterSets, err = r.filterSets(ctx, id)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Create stores a view and its filter sets; the new view is appended at the last position
func (r *ViewRepository) Create(ctx context.Context, v *models.View) (int64, error) {
	err := database.Transaction(r.db, func(tx *sql.Tx) error {
		var position int
		if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(position), -1) + 1 FROM views").Scan(&position); err != nil {
			return fmt.Errorf("failed to get next position: %w", err)
		}

		dr := v.DateRange
		res, err := tx.ExecContext(ctx, `INSERT INTO views
			(title, description, report_type, range_begin, range_end, range_quantity, range_unit, position, enabled)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.Title, v.Description, v.ReportType,
			nullableInt(dr.Begin), nullableInt(dr.End), nullableInt(int64(dr.Quantity)), nullable(dr.Unit),
			position, v.Enabled)
		if err != nil {
			return fmt.Errorf("failed to insert view: %w", err)
		}
		v.ID, err = res.LastInsertId()
		if err != nil {
			return err
		}
		v.Position = position

		return insertFilterSets(ctx, tx, v)
	})
	if err != nil {
		return 0, err
	}
	return v.ID, nil
}

// Update replaces the fields and filter sets of view v.ID; the position is kept
func (r *ViewRepository) Update(ctx context.Context, v *models.View) error {
	return database.Transaction(r.db, func(tx *sql.Tx) error {
		dr := v.DateRange
		res, err := tx.ExecContext(ctx, `UPDATE views
			SET title = ?, description = ?, report_type = ?, range_begin = ?, range_end = ?,
			    range_quantity = ?, range_unit = ?, enabled = ?
			WHERE id = ?`,
			v.Title, v.Description, v.ReportType,
			nullableInt(dr.Begin), nullableInt(dr.End), nullableInt(int64(dr.Quantity)), nullable(dr.Unit),
			v.Enabled, v.ID)
		if err != nil {
			return fmt.Errorf("failed to update view: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("view %d: %w", v.ID, ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM filter_sets WHERE view_id = ?", v.ID); err != nil {
			return fmt.Errorf("failed to delete filter sets: %w", err)
		}
		return insertFilterSets(ctx, tx, v)
	})
}

// Reorder sets the position of each listed view to its index in ids.
// Views not listed keep their position.
func (r *ViewRepository) Reorder(ctx context.Context, ids []int64) error {
	return database.Transaction(r.db, func(tx *sql.Tx) error {
		for position, id := range ids {
			res, err := tx.ExecContext(ctx, "UPDATE views SET position = ? WHERE id = ?", position, id)
			if err != nil {
				return fmt.Errorf("failed to move view %d: %w", id, err)
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return fmt.Errorf("view %d: %w", id, ErrNotFound)
			}
		}
		return nil
	})
}

// Delete removes a view; its filter sets are removed by cascade
func (r *ViewRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM views WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete view: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("view %d: %w", id, ErrNotFound)
	}
	return nil
}

func insertFilterSets(ctx context.Context, tx *sql.Tx, v *models.View) error {
	for i := range v.FilterSets {
		fs := &v.FilterSets[i]
		filters, err := json.Marshal(fs.Filters)
		if err != nil {
			return fmt.Errorf("failed to encode filters: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			"INSERT INTO filter_sets (view_id, label, color, filters) VALUES (?, ?, ?, ?)",
			v.ID, fs.Label, fs.Color, string(filters))
		if err != nil {
			return fmt.Errorf("failed to insert filter set: %w", err)
		}
		fs.ID, err = res.LastInsertId()
		if err != nil {
			return err
		}
		fs.ViewID = v.ID
	}
	return nil
}

func (r *ViewRepository) filterSets(ctx context.Context, viewID int64) ([]models.FilterSet, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, view_id, label, color, filters FROM filter_sets WHERE view_id = ? ORDER BY id", viewID)
	if err != nil {
		return nil, fmt.Errorf("failed to query filter sets: %w", err)
	}
	defer rows.Close()

	var sets []models.FilterSet
	for rows.Next() {
		var fs models.FilterSet
		var filters string
		if err := rows.Scan(&fs.ID, &fs.ViewID, &fs.Label, &fs.Color, &filters); err != nil {
			return nil, fmt.Errorf("failed to scan filter set: %w", err)
		}
		if err := json.Unmarshal([]byte(filters), &fs.Filters); err != nil {
			return nil, fmt.Errorf("failed to decode filters of filter set %d: %w", fs.ID, err)
		}
		sets = append(sets, fs)
	}
	return sets, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanView(s scanner) (*models.View, error) {
	var v models.View
	var description, unit sql.NullString
	var begin, end, quantity sql.NullInt64

	err := s.Scan(&v.ID, &v.Title, &description, &v.ReportType, &begin, &end,
		&quantity, &unit, &v.Position, &v.Enabled, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan view: %w", err)
	}

	v.Description = description.String
	v.DateRange = models.DateRangeSpec{
		Begin:    begin.Int64,
		End:      end.Int64,
		Quantity: int(quantity.Int64),
		Unit:     unit.String,
	}
	return &v, nil
}

func nullableInt(n int64) interface{} {
	if n == 0 {
		return nil
	}
	return n
}
