package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jengzang/dmarcviz/internal/colorscale"
	"github.com/jengzang/dmarcviz/internal/models"
	"github.com/jengzang/dmarcviz/internal/repository"
)

const (
	defaultChoiceLimit = 20
	maxChoiceLimit     = 100
)

// ViewService manages saved views and offers stored values for their filters
type ViewService struct {
	repo    *repository.ViewRepository
	reports *repository.ReportRepository
	now     func() time.Time
}

// NewViewService creates a new view service
func NewViewService(repo *repository.ViewRepository, reports *repository.ReportRepository) *ViewService {
	return &ViewService{repo: repo, reports: reports, now: time.Now}
}

// List returns the views in display order, only the enabled ones if enabledOnly is set
func (s *ViewService) List(ctx context.Context, enabledOnly bool) ([]models.View, error) {
	views, err := s.repo.List(ctx, enabledOnly)
	if err != nil {
		return nil, err
	}
	if views == nil {
		views = []models.View{}
	}
	return views, nil
}

// Get returns one view with its filter sets
func (s *ViewService) Get(ctx context.Context, id int64) (*models.View, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and stores a view, returning it with its new ID
func (s *ViewService) Create(ctx context.Context, v *models.View) (*models.View, error) {
	if err := s.validate(v); err != nil {
		return nil, err
	}

	id, err := s.repo.Create(ctx, v)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Update validates v and replaces view id with it
func (s *ViewService) Update(ctx context.Context, id int64, v *models.View) (*models.View, error) {
	if err := s.validate(v); err != nil {
		return nil, err
	}

	v.ID = id
	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Clone copies a view with its filter sets; the copy goes to the last position
func (s *ViewService) Clone(ctx context.Context, id int64) (*models.View, error) {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	v.ID = 0
	for i := range v.FilterSets {
		v.FilterSets[i].ID = 0
		v.FilterSets[i].ViewID = 0
	}
	newID, err := s.repo.Create(ctx, v)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, newID)
}

// Order moves the listed views to the positions of their index; other views keep theirs
func (s *ViewService) Order(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: no views to order", ErrInvalidInput)
	}
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return fmt.Errorf("%w: view %d listed twice", ErrInvalidInput, id)
		}
		seen[id] = true
	}
	return s.repo.Reorder(ctx, ids)
}

// Delete removes a view and its filter sets
func (s *ViewService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Choices returns stored filter values for autocompletion
func (s *ViewService) Choices(ctx context.Context, q models.ChoiceQuery) ([]string, error) {
	if q.ReportType != models.ReportTypeIncoming && q.ReportType != models.ReportTypeOutgoing {
		return nil, fmt.Errorf("%w: report type %q", ErrInvalidInput, q.ReportType)
	}
	switch q.Kind {
	case models.ChoiceReporter, models.ChoiceReportee, models.ChoiceDKIMDomain, models.ChoiceSPFDomain:
	default:
		return nil, fmt.Errorf("%w: choice kind %q", ErrInvalidInput, q.Kind)
	}
	switch {
	case q.Limit < 0:
		return nil, fmt.Errorf("%w: negative limit", ErrInvalidInput)
	case q.Limit == 0:
		q.Limit = defaultChoiceLimit
	case q.Limit > maxChoiceLimit:
		q.Limit = maxChoiceLimit
	}
	return s.reports.Choices(ctx, q)
}

func (s *ViewService) validate(v *models.View) error {
	if v.Title == "" {
		return fmt.Errorf("%w: view title is required", ErrInvalidInput)
	}
	if v.ReportType != models.ReportTypeIncoming && v.ReportType != models.ReportTypeOutgoing {
		return fmt.Errorf("%w: report type %q", ErrInvalidInput, v.ReportType)
	}
	if len(v.FilterSets) == 0 {
		return fmt.Errorf("%w: view needs at least one filter set", ErrInvalidInput)
	}
	if _, _, err := ResolveDateRange(v.DateRange, s.now()); err != nil {
		return err
	}
	for _, fs := range v.FilterSets {
		if fs.Label == "" {
			return fmt.Errorf("%w: filter set label is required", ErrInvalidInput)
		}
		if _, err := colorscale.ParseColor(fs.Color); err != nil {
			return fmt.Errorf("%w: filter set %q: %v", ErrInvalidInput, fs.Label, err)
		}
		if err := checkValues("raw DKIM result", fs.Filters.RawDKIMResults, models.DKIMResultValues); err != nil {
			return fmt.Errorf("filter set %q: %w", fs.Label, err)
		}
		if err := checkValues("raw SPF result", fs.Filters.RawSPFResults, models.SPFResultValues); err != nil {
			return fmt.Errorf("filter set %q: %w", fs.Label, err)
		}
	}
	return nil
}

func checkValues(name string, values, allowed []string) error {
	for _, v := range values {
		if !slices.Contains(allowed, v) {
			return fmt.Errorf("%w: %s %q", ErrInvalidInput, name, v)
		}
	}
	return nil
}
