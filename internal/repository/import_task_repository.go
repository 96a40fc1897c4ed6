package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jengzang/dmarcviz/internal/models"
)

// ImportTaskRepository handles database operations for import tasks
type ImportTaskRepository struct {
	db *sql.DB
}

// NewImportTaskRepository creates a new import task repository
func NewImportTaskRepository(db *sql.DB) *ImportTaskRepository {
	return &ImportTaskRepository{db: db}
}

// Create stores a pending task and sets its ID
func (r *ImportTaskRepository) Create(ctx context.Context, task *models.ImportTask) error {
	paths, err := json.Marshal(task.Paths)
	if err != nil {
		return fmt.Errorf("failed to encode paths: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO import_tasks (report_type, paths, status) VALUES (?, ?, ?)`,
		task.ReportType, string(paths), models.TaskStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to create import task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	task.ID = id
	task.Status = models.TaskStatusPending
	return nil
}

const importTaskColumns = `SELECT id, report_type, paths, status, progress_percent,
	total_files, processed_files, imported, skipped, ignored, failed_files,
	error_message, created_at, started_at, completed_at FROM import_tasks`

// GetByID retrieves an import task by ID
func (r *ImportTaskRepository) GetByID(ctx context.Context, id int64) (*models.ImportTask, error) {
	task, err := scanImportTask(r.db.QueryRowContext(ctx, importTaskColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("import task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// List returns tasks newest first, optionally filtered by status
func (r *ImportTaskRepository) List(ctx context.Context, status string, limit, offset int) ([]models.ImportTask, error) {
	query := importTaskColumns
	var args []interface{}

	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query import tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.ImportTask{}
	for rows.Next() {
		task, err := scanImportTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// MarkAsRunning marks a task as running with the number of files to process
func (r *ImportTaskRepository) MarkAsRunning(ctx context.Context, id int64, totalFiles, ignored int) error {
	query := `
		UPDATE import_tasks
		SET status = 'running',
		    total_files = ?,
		    ignored = ?,
		    started_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(ctx, query, totalFiles, ignored, id)
}

// UpdateProgress stores the counters of a running task
func (r *ImportTaskRepository) UpdateProgress(ctx context.Context, task *models.ImportTask) error {
	percent := 0
	if task.TotalFiles > 0 {
		percent = task.ProcessedFiles * 100 / task.TotalFiles
	}

	query := `
		UPDATE import_tasks
		SET processed_files = ?,
		    imported = ?,
		    skipped = ?,
		    failed_files = ?,
		    progress_percent = ?
		WHERE id = ?
	`
	return r.exec(ctx, query, task.ProcessedFiles, task.Imported, task.Skipped, task.FailedFiles, percent, task.ID)
}

// MarkAsCompleted marks a task as completed. message summarises per-file failures, if any.
func (r *ImportTaskRepository) MarkAsCompleted(ctx context.Context, id int64, message string) error {
	query := `
		UPDATE import_tasks
		SET status = 'completed',
		    progress_percent = 100,
		    error_message = ?,
		    completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(ctx, query, nullable(message), id)
}

// MarkAsFailed marks a task as failed with an error message
func (r *ImportTaskRepository) MarkAsFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE import_tasks
		SET status = 'failed',
		    error_message = ?,
		    completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(ctx, query, errorMessage, id)
}

func (r *ImportTaskRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update import task: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("import task %v: %w", args[len(args)-1], ErrNotFound)
	}
	return nil
}

func scanImportTask(s scanner) (*models.ImportTask, error) {
	var task models.ImportTask
	var paths string
	var errorMessage sql.NullString
	var startedAt, completedAt sql.NullTime

	err := s.Scan(&task.ID, &task.ReportType, &paths, &task.Status, &task.ProgressPercent,
		&task.TotalFiles, &task.ProcessedFiles, &task.Imported, &task.Skipped, &task.Ignored,
		&task.FailedFiles, &errorMessage, &task.CreatedAt, &startedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan import task: %w", err)
	}

	if err := json.Unmarshal([]byte(paths), &task.Paths); err != nil {
		return nil, fmt.Errorf("failed to decode paths of import task %d: %w", task.ID, err)
	}
	task.ErrorMessage = errorMessage.String
	if startedAt.Valid {
		task.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return &task, nil
}
