package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jengzang/dmarcviz/internal/colorscale"
	"github.com/jengzang/dmarcviz/internal/config"
	"github.com/jengzang/dmarcviz/internal/geo"
	"github.com/jengzang/dmarcviz/internal/models"
	"github.com/jengzang/dmarcviz/internal/repository"
	"github.com/jengzang/dmarcviz/internal/series"
	"github.com/jengzang/dmarcviz/internal/stats"
)

// defaultFill is the map color of countries without data
const defaultFill = "white"

// AnalysisService builds the chart, map and table data of views
type AnalysisService struct {
	reports  *repository.ReportRepository
	analysis *repository.AnalysisRepository
	views    *repository.ViewRepository
	mapCfg   config.MapConfig
	workers  int
	now      func() time.Time
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(
	reports *repository.ReportRepository,
	analysis *repository.AnalysisRepository,
	views *repository.ViewRepository,
	mapCfg config.MapConfig,
	workers int,
) *AnalysisService {
	if workers < 1 {
		workers = 1
	}
	return &AnalysisService{
		reports:  reports,
		analysis: analysis,
		views:    views,
		mapCfg:   mapCfg,
		workers:  workers,
		now:      time.Now,
	}
}

// pieOrder fixes the slice order of each overview pie
var pieOrder = map[string][]string{
	"dkim":        {models.ResultPass, models.ResultFail},
	"spf":         {models.ResultPass, models.ResultFail},
	"disposition": {models.DispositionNone, models.DispositionQuarantine, models.DispositionReject},
}

// GetOverview returns the pie data and counters of one report type
func (s *AnalysisService) GetOverview(ctx context.Context, reportType string) (*models.OverviewResponse, error) {
	if reportType != models.ReportTypeIncoming && reportType != models.ReportTypeOutgoing {
		return nil, fmt.Errorf("%w: report type %q", ErrInvalidInput, reportType)
	}

	summary, err := s.reports.GetSummary(ctx, reportType)
	if err != nil {
		return nil, err
	}

	resp := &models.OverviewResponse{
		ReportType:   reportType,
		DomainCount:  summary.DomainCount,
		ReportCount:  summary.ReportCount,
		MessageCount: summary.MessageCount,
	}

	pies := map[string]*models.Pie{
		"dkim":        &resp.DKIM,
		"spf":         &resp.SPF,
		"disposition": &resp.Disposition,
	}
	titles := map[string]string{
		"dkim":        "aligned DKIM",
		"spf":         "aligned SPF",
		"disposition": "DISPOSITION",
	}

	for column, pie := range pies {
		counts, err := s.reports.GetMessageCountBy(ctx, reportType, column)
		if err != nil {
			return nil, err
		}
		*pie = buildPie(titles[column], pieOrder[column], counts)
	}

	return resp, nil
}

// buildPie keeps only labels with data, in the fixed order
func buildPie(title string, order []string, counts map[string]int) models.Pie {
	pie := models.Pie{Title: title, Slices: []models.PieSlice{}, Legend: models.Legend{Items: []models.LegendItem{}}}
	for _, label := range order {
		cnt, ok := counts[label]
		if !ok {
			continue
		}
		color := colorscale.ResultColors[label]
		pie.Slices = append(pie.Slices, models.PieSlice{Label: label, Count: cnt, Color: color})
		pie.Legend.Items = append(pie.Legend.Items, models.LegendItem{Color: color, Name: fmt.Sprintf("%d %s", cnt, label)})
	}
	return pie
}

// GetLineData returns one densified message-per-day series per filter set of a view
func (s *AnalysisService) GetLineData(ctx context.Context, viewID int64) (*models.LineResponse, error) {
	view, err := s.views.Get(ctx, viewID)
	if err != nil {
		return nil, err
	}

	r, ok, err := ResolveDateRange(view.DateRange, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("view %d: %w", viewID, ErrNoDateRange)
	}

	dataSets := make([]models.LineSeries, len(view.FilterSets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, fs := range view.FilterSets {
		i, fs := i, fs
		g.Go(func() error {
			obs, err := s.analysis.GetMessageCountPerDay(gctx, view.ReportType, fs.Filters, r.Begin, r.End)
			if err != nil {
				return err
			}
			points, err := series.Densify(obs, r)
			if err != nil {
				return fmt.Errorf("filter set %q: %w", fs.Label, err)
			}
			dataSets[i] = models.LineSeries{Label: fs.Label, Color: fs.Color, Data: points}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp := &models.LineResponse{
		Begin:    r.Begin,
		End:      r.End,
		DataSets: dataSets,
		Legend:   models.Legend{Items: make([]models.LegendItem, 0, len(dataSets))},
	}
	for _, ds := range dataSets {
		if m := series.Max(ds.Data); m > resp.MaxCount {
			resp.MaxCount = m
		}
		resp.Legend.Items = append(resp.Legend.Items, models.LegendItem{Color: ds.Color, Name: ds.Label})
	}
	return resp, nil
}

// GetMapData returns one choropleth per filter set of a view
func (s *AnalysisService) GetMapData(ctx context.Context, viewID int64) ([]models.MapDataSet, error) {
	view, err := s.views.Get(ctx, viewID)
	if err != nil {
		return nil, err
	}

	r, _, err := ResolveDateRange(view.DateRange, s.now())
	if err != nil {
		return nil, err
	}

	dataSets := make([]models.MapDataSet, len(view.FilterSets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, fs := range view.FilterSets {
		i, fs := i, fs
		g.Go(func() error {
			counts, err := s.analysis.GetMessageCountPerCountry(gctx, view.ReportType, fs.Filters, r.Begin, r.End)
			if err != nil {
				return err
			}
			ds, err := s.buildMapDataSet(fs, counts)
			if err != nil {
				return fmt.Errorf("filter set %q: %w", fs.Label, err)
			}
			dataSets[i] = *ds
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dataSets, nil
}

// buildMapDataSet bins country counts over the domain [1, max] with quantile boundaries
// taken from the counts themselves
func (s *AnalysisService) buildMapDataSet(fs models.FilterSet, counts []models.CountryCount) (*models.MapDataSet, error) {
	values := make([]int, len(counts))
	for i, c := range counts {
		values[i] = c.Count
	}
	sample := stats.Floats(values)
	domainMax := stats.Max(sample)
	const domainMin = 1

	binner, err := colorscale.New(fs.Color, s.mapCfg.Buckets,
		colorscale.WithLightness(s.mapCfg.MinLightness, s.mapCfg.MaxLightness),
		colorscale.WithSample(sample),
	)
	if err != nil {
		return nil, err
	}

	buckets, err := binner.LegendBuckets(domainMin, domainMax)
	if err != nil {
		return nil, err
	}

	ds := &models.MapDataSet{
		Label:   fs.Label,
		Color:   fs.Color,
		Fills:   map[string]string{"defaultFill": defaultFill},
		Data:    make(map[string]models.MapEntry, len(counts)),
		Buckets: buckets,
		Legend:  models.Legend{Items: make([]models.LegendItem, 0, len(buckets))},
	}

	for _, b := range buckets {
		ds.Fills[b.Shade] = b.Shade
	}
	for _, b := range legendBuckets(buckets) {
		ds.Legend.Items = append(ds.Legend.Items, models.LegendItem{
			Color: b.Shade,
			Name:  fmt.Sprintf("%d - %d mails", int(math.Round(b.LowerBound)), int(math.Round(b.UpperBound))),
		})
	}

	for _, c := range counts {
		code, ok := geo.Alpha3(c.CountryISOCode)
		if !ok {
			slog.Debug("skipping unknown country code", "code", c.CountryISOCode, "filter_set", fs.Label)
			continue
		}
		shade, err := binner.ColorFor(domainMin, domainMax, float64(c.Count))
		if err != nil {
			return nil, err
		}
		ds.Data[code] = models.MapEntry{Count: c.Count, FillKey: shade}
	}

	return ds, nil
}

// legendBuckets drops the zero-width buckets no value is ever binned into. A value on a
// shared edge goes to the upper bucket, so only the last bucket may be zero-width and
// still used; in a degenerate domain every value takes the first one.
func legendBuckets(buckets []models.ColorBucket) []models.ColorBucket {
	n := len(buckets)
	if n == 0 {
		return buckets
	}
	if buckets[0].LowerBound == buckets[n-1].UpperBound {
		return buckets[:1]
	}
	out := make([]models.ColorBucket, 0, n)
	for i, b := range buckets {
		if b.LowerBound == b.UpperBound && i < n-1 {
			continue
		}
		out = append(out, b)
	}
	return out
}

// GetTableData returns a page of the records of a view. From/To narrow the view's range.
func (s *AnalysisService) GetTableData(ctx context.Context, viewID int64, filter models.TableFilter) (*models.TablePage, error) {
	view, err := s.views.Get(ctx, viewID)
	if err != nil {
		return nil, err
	}

	r, _, err := ResolveDateRange(view.DateRange, s.now())
	if err != nil {
		return nil, err
	}

	begin, end := r.Begin, r.End
	if filter.From != "" {
		from, err := series.ParseDay(filter.From)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if begin.IsZero() || from.After(begin) {
			begin = from
		}
	}
	if filter.To != "" {
		to, err := series.ParseDay(filter.To)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if end.IsZero() || to.Before(end) {
			end = to
		}
	}
	if filter.Offset < 0 || filter.Limit < 0 {
		return nil, fmt.Errorf("%w: offset and limit must not be negative", ErrInvalidInput)
	}

	sets := make([]models.Filters, len(view.FilterSets))
	for i, fs := range view.FilterSets {
		sets[i] = fs.Filters
	}

	return s.analysis.GetTableRows(ctx, view.ReportType, sets, begin, end, filter.Offset, filter.Limit)
}
