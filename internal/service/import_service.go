package service

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jengzang/dmarcviz/internal/dmarc"
	"github.com/jengzang/dmarcviz/internal/geo"
	"github.com/jengzang/dmarcviz/internal/models"
	"github.com/jengzang/dmarcviz/internal/repository"
)

// ImportResult counts the outcome of an import run
type ImportResult struct {
	TaskID   int64
	Imported int
	Skipped  int     // Already stored
	Ignored  int     // Not an .xml file
	Failed   []error // One per file that could not be parsed or stored
}

// ImportTaskStore persists import task state; *repository.ImportTaskRepository implements it
type ImportTaskStore interface {
	Create(ctx context.Context, task *models.ImportTask) error
	GetByID(ctx context.Context, id int64) (*models.ImportTask, error)
	List(ctx context.Context, status string, limit, offset int) ([]models.ImportTask, error)
	MarkAsRunning(ctx context.Context, id int64, totalFiles, ignored int) error
	UpdateProgress(ctx context.Context, task *models.ImportTask) error
	MarkAsCompleted(ctx context.Context, id int64, message string) error
	MarkAsFailed(ctx context.Context, id int64, errorMessage string) error
}

// ImportService loads DMARC aggregate reports from disk and records each run as a task
type ImportService struct {
	repo     *repository.ReportRepository
	tasks    ImportTaskStore
	resolver *geo.Resolver
}

// NewImportService creates a new import service. resolver may be nil.
func NewImportService(repo *repository.ReportRepository, tasks ImportTaskStore, resolver *geo.Resolver) *ImportService {
	return &ImportService{repo: repo, tasks: tasks, resolver: resolver}
}

// Import reads every .xml file under paths; directories are walked recursively.
// Per-file failures are collected in the result, only setup errors and cancellation fail the run.
func (s *ImportService) Import(ctx context.Context, reportType string, paths ...string) (*ImportResult, error) {
	if reportType != models.ReportTypeIncoming && reportType != models.ReportTypeOutgoing {
		return nil, fmt.Errorf("%w: report type %q", ErrInvalidInput, reportType)
	}

	task := &models.ImportTask{ReportType: reportType, Paths: paths}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	result := &ImportResult{TaskID: task.ID}

	files, ignored, err := collectFiles(ctx, paths)
	if err != nil {
		return result, s.fail(ctx, task.ID, err)
	}
	result.Ignored = ignored
	task.TotalFiles = len(files)

	if err := s.tasks.MarkAsRunning(ctx, task.ID, len(files), ignored); err != nil {
		return result, s.fail(ctx, task.ID, err)
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return result, s.fail(ctx, task.ID, err)
		}

		imported, err := s.ImportFile(ctx, reportType, path)
		switch {
		case err != nil:
			slog.Warn("import failed", "path", path, "error", err)
			result.Failed = append(result.Failed, fmt.Errorf("%s: %w", path, err))
		case imported:
			result.Imported++
		default:
			result.Skipped++
		}

		task.ProcessedFiles++
		task.Imported, task.Skipped, task.FailedFiles = result.Imported, result.Skipped, len(result.Failed)
		if err := s.tasks.UpdateProgress(ctx, task); err != nil {
			return result, s.fail(ctx, task.ID, err)
		}
	}

	var message string
	if len(result.Failed) > 0 {
		message = fmt.Sprintf("%d file(s) failed", len(result.Failed))
	}
	if err := s.tasks.MarkAsCompleted(ctx, task.ID, message); err != nil {
		return result, s.fail(ctx, task.ID, err)
	}

	slog.Info("import finished",
		"task", task.ID,
		"type", reportType,
		"imported", result.Imported,
		"skipped", result.Skipped,
		"ignored", result.Ignored,
		"failed", len(result.Failed),
	)
	return result, nil
}

// fail records err on the task and returns it
func (s *ImportService) fail(ctx context.Context, taskID int64, err error) error {
	if markErr := s.tasks.MarkAsFailed(context.WithoutCancel(ctx), taskID, err.Error()); markErr != nil {
		slog.Error("failed to mark import task as failed", "task", taskID, "error", markErr)
	}
	return err
}

// collectFiles walks paths and returns the .xml files in walk order plus the number of
// other files seen
func collectFiles(ctx context.Context, paths []string) ([]string, int, error) {
	var files []string
	ignored := 0

	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(path), ".xml") {
				slog.Debug("ignoring file", "path", path)
				ignored++
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, ignored, err
		}
	}
	return files, ignored, nil
}

// ImportFile stores one report file. It returns false when the report is already stored.
func (s *ImportService) ImportFile(ctx context.Context, reportType, path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	report, err := dmarc.Parse(f, reportType)
	if err != nil {
		return false, err
	}

	exists, err := s.repo.Exists(ctx, report.ReportID, report.OrgName)
	if err != nil {
		return false, err
	}
	if exists {
		slog.Debug("report already stored", "report_id", report.ReportID, "org", report.OrgName)
		return false, nil
	}

	for i := range report.Records {
		report.Records[i].CountryISOCode = s.resolver.Country(report.Records[i].SourceIP)
	}

	if _, err := s.repo.Create(ctx, report); err != nil {
		return false, fmt.Errorf("failed to store report %s: %w", report.ReportID, err)
	}
	return true, nil
}

// ListTasks returns import tasks newest first
func (s *ImportService) ListTasks(ctx context.Context, filter models.ImportTaskFilter) ([]models.ImportTask, error) {
	switch filter.Status {
	case "", models.TaskStatusPending, models.TaskStatusRunning, models.TaskStatusCompleted, models.TaskStatusFailed:
	default:
		return nil, fmt.Errorf("%w: task status %q", ErrInvalidInput, filter.Status)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fmt.Errorf("%w: offset and limit must not be negative", ErrInvalidInput)
	}
	return s.tasks.List(ctx, filter.Status, filter.Limit, filter.Offset)
}

// GetTask returns one import task
func (s *ImportService) GetTask(ctx context.Context, id int64) (*models.ImportTask, error) {
	return s.tasks.GetByID(ctx, id)
}
