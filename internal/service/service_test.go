package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/dmarcviz/internal/colorscale"
	"github.com/jengzang/dmarcviz/internal/config"
	"github.com/jengzang/dmarcviz/internal/database"
	"github.com/jengzang/dmarcviz/internal/geo"
	"github.com/jengzang/dmarcviz/internal/models"
	"github.com/jengzang/dmarcviz/internal/repository"
	"github.com/jengzang/dmarcviz/internal/series"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func unix(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seed(t *testing.T, db *sql.DB) {
	t.Helper()
	repo := repository.NewReportRepository(db)

	reports := []*models.Report{
		{
			ReportType: models.ReportTypeIncoming, ReportID: "a1", OrgName: "google.com",
			DateRangeBegin: unix(2024, 1, 1), DateRangeEnd: unix(2024, 1, 2), Domain: "example.org",
			Records: []models.Record{
				{SourceIP: "192.0.2.1", CountryISOCode: "AT", Count: 5, Disposition: "none", DKIM: "pass", SPF: "pass",
					AuthResults: []models.AuthResult{
						{Kind: "dkim", Domain: "example.org", Result: "pass"},
						{Kind: "dkim", Domain: "mailer.example", Result: "fail"},
						{Kind: "spf", Domain: "example.org", Result: "pass"},
					}},
				{SourceIP: "198.51.100.1", CountryISOCode: "US", Count: 2, Disposition: "reject", DKIM: "fail", SPF: "fail"},
			},
		},
		{
			ReportType: models.ReportTypeIncoming, ReportID: "a2", OrgName: "yahoo.com",
			DateRangeBegin: unix(2024, 1, 1) + 3600, DateRangeEnd: unix(2024, 1, 2), Domain: "example.org",
			Records: []models.Record{
				{SourceIP: "192.0.2.2", CountryISOCode: "AT", Count: 1, Disposition: "none", DKIM: "pass", SPF: "fail"},
			},
		},
		{
			ReportType: models.ReportTypeIncoming, ReportID: "a3", OrgName: "google.com",
			DateRangeBegin: unix(2024, 1, 3), DateRangeEnd: unix(2024, 1, 4), Domain: "example.net",
			Records: []models.Record{
				{SourceIP: "203.0.113.9", Count: 4, Disposition: "quarantine", DKIM: "fail", SPF: "pass",
					AuthResults: []models.AuthResult{
						{Kind: "dkim", Domain: "example.net", Result: "fail"},
						{Kind: "spf", Domain: "example.net", Result: "softfail"},
					}},
			},
		},
	}
	for _, r := range reports {
		_, err := repo.Create(context.Background(), r)
		require.NoError(t, err)
	}
}

type fixture struct {
	analysis *AnalysisService
	views    *ViewService
	viewID   int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	seed(t, db)

	viewRepo := repository.NewViewRepository(db)
	reports := repository.NewReportRepository(db)
	f := &fixture{
		analysis: NewAnalysisService(
			reports,
			repository.NewAnalysisRepository(db),
			viewRepo,
			config.Default().Map,
			2,
		),
		views: NewViewService(viewRepo, reports),
	}

	v, err := f.views.Create(context.Background(), &models.View{
		Title:      "January",
		ReportType: models.ReportTypeIncoming,
		Enabled:    true,
		DateRange:  models.DateRangeSpec{Begin: unix(2024, 1, 1), End: unix(2024, 1, 4)},
		FilterSets: []models.FilterSet{
			{Label: "all", Color: "#1f77b4"},
			{Label: "dkim fail", Color: "#e41a1c", Filters: models.Filters{DKIMResults: []string{"fail"}}},
		},
	})
	require.NoError(t, err)
	f.viewID = v.ID
	return f
}

func TestResolveDateRange(t *testing.T) {
	now := time.Date(2024, 3, 31, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		spec models.DateRangeSpec
		want models.DateRange
		ok   bool
		err  bool
	}{
		{name: "empty", spec: models.DateRangeSpec{}},
		{
			name: "absolute",
			spec: models.DateRangeSpec{Begin: unix(2024, 1, 1) + 7200, End: unix(2024, 1, 31) + 60},
			want: models.DateRange{Begin: day(2024, 1, 1), End: day(2024, 1, 31)},
			ok:   true,
		},
		{
			name: "days",
			spec: models.DateRangeSpec{Quantity: 7, Unit: models.UnitDay},
			want: models.DateRange{Begin: day(2024, 3, 24), End: day(2024, 3, 31)},
			ok:   true,
		},
		{
			name: "weeks",
			spec: models.DateRangeSpec{Quantity: 2, Unit: models.UnitWeek},
			want: models.DateRange{Begin: day(2024, 3, 17), End: day(2024, 3, 31)},
			ok:   true,
		},
		{
			name: "month",
			spec: models.DateRangeSpec{Quantity: 1, Unit: models.UnitMonth},
			want: models.DateRange{Begin: day(2024, 3, 2), End: day(2024, 3, 31)},
			ok:   true,
		},
		{
			name: "year",
			spec: models.DateRangeSpec{Quantity: 1, Unit: models.UnitYear},
			want: models.DateRange{Begin: day(2023, 3, 31), End: day(2024, 3, 31)},
			ok:   true,
		},
		{name: "half absolute", spec: models.DateRangeSpec{Begin: unix(2024, 1, 1)}, err: true},
		{name: "reversed", spec: models.DateRangeSpec{Begin: unix(2024, 2, 1), End: unix(2024, 1, 1)}, err: true},
		{name: "bad unit", spec: models.DateRangeSpec{Quantity: 1, Unit: "fortnight"}, err: true},
		{name: "zero quantity", spec: models.DateRangeSpec{Unit: models.UnitDay}, err: true},
		{name: "absolute too long", spec: models.DateRangeSpec{Begin: unix(1600, 1, 1), End: unix(2024, 1, 1)}, err: true},
		{name: "years too long", spec: models.DateRangeSpec{Quantity: 401, Unit: models.UnitYear}, err: true},
		{name: "timestamp past year 9999", spec: models.DateRangeSpec{Begin: unix(2024, 1, 1), End: 1 << 62}, err: true},
		{name: "huge quantity", spec: models.DateRangeSpec{Quantity: 1 << 40, Unit: models.UnitWeek}, err: true},
		{
			name: "three centuries",
			spec: models.DateRangeSpec{Quantity: 300, Unit: models.UnitYear},
			want: models.DateRange{Begin: day(1724, 3, 31), End: day(2024, 3, 31)},
			ok:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := ResolveDateRange(tt.spec, now)
			if tt.err {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestAnalysisService_Overview(t *testing.T) {
	f := newFixture(t)

	resp, err := f.analysis.GetOverview(context.Background(), models.ReportTypeIncoming)
	require.NoError(t, err)

	assert.Equal(t, 2, resp.DomainCount)
	assert.Equal(t, 3, resp.ReportCount)
	assert.Equal(t, 12, resp.MessageCount)

	assert.Equal(t, []models.PieSlice{
		{Label: "pass", Count: 6, Color: colorscale.Green},
		{Label: "fail", Count: 6, Color: colorscale.Red},
	}, resp.DKIM.Slices)
	assert.Equal(t, []models.PieSlice{
		{Label: "none", Count: 6, Color: colorscale.Green},
		{Label: "quarantine", Count: 4, Color: colorscale.Orange},
		{Label: "reject", Count: 2, Color: colorscale.Red},
	}, resp.Disposition.Slices)
	assert.Equal(t, "6 none", resp.Disposition.Legend.Items[0].Name)

	_, err = f.analysis.GetOverview(context.Background(), "sideways")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAnalysisService_Overview_Empty(t *testing.T) {
	f := newFixture(t)

	resp, err := f.analysis.GetOverview(context.Background(), models.ReportTypeOutgoing)
	require.NoError(t, err)
	assert.Zero(t, resp.MessageCount)
	assert.Empty(t, resp.SPF.Slices)
	assert.NotNil(t, resp.SPF.Slices)
}

func TestAnalysisService_LineData(t *testing.T) {
	f := newFixture(t)

	resp, err := f.analysis.GetLineData(context.Background(), f.viewID)
	require.NoError(t, err)

	assert.Equal(t, day(2024, 1, 1), resp.Begin)
	assert.Equal(t, day(2024, 1, 4), resp.End)
	assert.Equal(t, 8, resp.MaxCount)
	require.Len(t, resp.DataSets, 2)

	counts := func(ds models.LineSeries) []int {
		out := make([]int, len(ds.Data))
		for i, p := range ds.Data {
			out[i] = p.Count
		}
		return out
	}
	assert.Equal(t, []int{8, 0, 4, 0}, counts(resp.DataSets[0]))
	assert.Equal(t, []int{2, 0, 4, 0}, counts(resp.DataSets[1]))
	assert.Equal(t, day(2024, 1, 2), resp.DataSets[0].Data[1].Date)

	assert.Equal(t, []models.LegendItem{
		{Color: "#1f77b4", Name: "all"},
		{Color: "#e41a1c", Name: "dkim fail"},
	}, resp.Legend.Items)
}

func TestAnalysisService_LineData_LongRange(t *testing.T) {
	f := newFixture(t)

	v, err := f.views.Create(context.Background(), &models.View{
		Title:      "since 1750",
		ReportType: models.ReportTypeIncoming,
		DateRange:  models.DateRangeSpec{Begin: unix(1750, 1, 1), End: unix(2024, 1, 4)},
		FilterSets: []models.FilterSet{{Label: "all", Color: "#000000"}},
	})
	require.NoError(t, err)

	resp, err := f.analysis.GetLineData(context.Background(), v.ID)
	require.NoError(t, err)
	require.Len(t, resp.DataSets, 1)

	data := resp.DataSets[0].Data
	assert.Len(t, data, 100080)
	assert.Equal(t, day(2024, 1, 4), data[len(data)-1].Date)
	assert.Equal(t, 12, series.Total(data))

	_, err = f.views.Create(context.Background(), &models.View{
		Title:      "too long",
		ReportType: models.ReportTypeIncoming,
		DateRange:  models.DateRangeSpec{Begin: unix(1500, 1, 1), End: unix(2024, 1, 4)},
		FilterSets: []models.FilterSet{{Label: "all", Color: "#000000"}},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, series.ErrInvalidRange)
}

func TestAnalysisService_LineData_NoRange(t *testing.T) {
	f := newFixture(t)

	v, err := f.views.Create(context.Background(), &models.View{
		Title:      "all time",
		ReportType: models.ReportTypeIncoming,
		FilterSets: []models.FilterSet{{Label: "all", Color: "#000000"}},
	})
	require.NoError(t, err)

	_, err = f.analysis.GetLineData(context.Background(), v.ID)
	assert.ErrorIs(t, err, ErrNoDateRange)

	// Map and table treat a missing range as all time
	sets, err := f.analysis.GetMapData(context.Background(), v.ID)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Len(t, sets[0].Data, 2)
}

func TestAnalysisService_LineData_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.analysis.GetLineData(context.Background(), 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAnalysisService_MapData(t *testing.T) {
	f := newFixture(t)

	sets, err := f.analysis.GetMapData(context.Background(), f.viewID)
	require.NoError(t, err)
	require.Len(t, sets, 2)

	all := sets[0]
	assert.Equal(t, "all", all.Label)
	require.Len(t, all.Buckets, 4)
	shades := make([]string, len(all.Buckets))
	for i, b := range all.Buckets {
		shades[i] = b.Shade
	}

	// AT: 6 mails, US: 2 mails; the record without a country is left out
	require.Len(t, all.Data, 2)
	assert.Equal(t, models.MapEntry{Count: 6, FillKey: shades[3]}, all.Data["AUT"])
	assert.Equal(t, models.MapEntry{Count: 2, FillKey: shades[1]}, all.Data["USA"])

	assert.Equal(t, "white", all.Fills["defaultFill"])
	for _, s := range shades {
		assert.Equal(t, s, all.Fills[s])
	}

	// Sample {1, 2, 6, 6} gives edges 1, 1.75, 4, 6, 6
	names := make([]string, len(all.Legend.Items))
	for i, item := range all.Legend.Items {
		names[i] = item.Name
	}
	assert.Equal(t, []string{"1 - 2 mails", "2 - 4 mails", "4 - 6 mails", "6 - 6 mails"}, names)

	// Only US has failing DKIM with a country; the domain maximum takes the darkest shade
	fail := sets[1]
	require.Len(t, fail.Data, 1)
	assert.Equal(t, fail.Buckets[3].Shade, fail.Data["USA"].FillKey)
}

func TestBuildMapDataSet_SkipsEmptyLegendBuckets(t *testing.T) {
	svc := &AnalysisService{mapCfg: config.Default().Map}
	counts := []models.CountryCount{
		{CountryISOCode: "AT", Count: 1},
		{CountryISOCode: "DE", Count: 1},
		{CountryISOCode: "FR", Count: 1},
		{CountryISOCode: "GB", Count: 1},
		{CountryISOCode: "IT", Count: 1},
		{CountryISOCode: "US", Count: 100},
	}

	ds, err := svc.buildMapDataSet(models.FilterSet{Label: "all", Color: "#1f77b4"}, counts)
	require.NoError(t, err)
	require.Len(t, ds.Buckets, 4)

	names := make([]string, len(ds.Legend.Items))
	for i, item := range ds.Legend.Items {
		names[i] = item.Name
	}
	assert.Equal(t, []string{"1 - 26 mails", "26 - 100 mails"}, names)
	assert.Equal(t, ds.Buckets[2].Shade, ds.Legend.Items[0].Color)
	assert.Equal(t, ds.Buckets[2].Shade, ds.Data["AUT"].FillKey)
	assert.Equal(t, ds.Buckets[3].Shade, ds.Data["USA"].FillKey)
}

func TestLegendBuckets(t *testing.T) {
	b := func(lo, hi float64) models.ColorBucket { return models.ColorBucket{LowerBound: lo, UpperBound: hi} }

	assert.Empty(t, legendBuckets(nil))
	// Degenerate domain keeps the first bucket
	assert.Equal(t, []models.ColorBucket{b(5, 5)}, legendBuckets([]models.ColorBucket{b(5, 5), b(5, 5), b(5, 5)}))
	// A zero-width last bucket still holds the maximum
	assert.Equal(t,
		[]models.ColorBucket{b(1, 2), b(2, 6), b(6, 6)},
		legendBuckets([]models.ColorBucket{b(1, 1), b(1, 2), b(2, 6), b(6, 6)}),
	)
}

func TestAnalysisService_TableData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	page, err := f.analysis.GetTableData(ctx, f.viewID, models.TableFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Len(t, page.Rows, 4)

	page, err = f.analysis.GetTableData(ctx, f.viewID, models.TableFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Len(t, page.Rows, 1)

	page, err = f.analysis.GetTableData(ctx, f.viewID, models.TableFilter{From: "2024-01-02"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "203.0.113.9", page.Rows[0].SourceIP)

	page, err = f.analysis.GetTableData(ctx, f.viewID, models.TableFilter{To: "2024-01-01"})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)

	_, err = f.analysis.GetTableData(ctx, f.viewID, models.TableFilter{From: "yesterday"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.analysis.GetTableData(ctx, f.viewID, models.TableFilter{Limit: -1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestViewService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	views, err := f.views.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "January", views[0].Title)
	assert.Len(t, views[0].FilterSets, 2)

	invalid := []*models.View{
		{ReportType: "in", FilterSets: []models.FilterSet{{Label: "a", Color: "#fff"}}},
		{Title: "t", ReportType: "both", FilterSets: []models.FilterSet{{Label: "a", Color: "#fff"}}},
		{Title: "t", ReportType: "in"},
		{Title: "t", ReportType: "in", FilterSets: []models.FilterSet{{Label: "a", Color: "not-a-color"}}},
		{Title: "t", ReportType: "in", FilterSets: []models.FilterSet{{Color: "#fff"}}},
		{Title: "t", ReportType: "in", DateRange: models.DateRangeSpec{Quantity: 3, Unit: "decade"},
			FilterSets: []models.FilterSet{{Label: "a", Color: "#fff"}}},
		{Title: "t", ReportType: "in", FilterSets: []models.FilterSet{
			{Label: "a", Color: "#fff", Filters: models.Filters{RawDKIMResults: []string{"softfail"}}}}},
		{Title: "t", ReportType: "in", FilterSets: []models.FilterSet{
			{Label: "a", Color: "#fff", Filters: models.Filters{RawSPFResults: []string{"policy"}}}}},
	}
	for _, v := range invalid {
		_, err := f.views.Create(ctx, v)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}

	require.NoError(t, f.views.Delete(ctx, f.viewID))
	_, err = f.views.Get(ctx, f.viewID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, f.views.Delete(ctx, f.viewID), repository.ErrNotFound)

	views, err = f.views.List(ctx, false)
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestViewService_UpdateCloneOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	updated, err := f.views.Update(ctx, f.viewID, &models.View{
		Title:      "January, SPF",
		ReportType: models.ReportTypeIncoming,
		DateRange:  models.DateRangeSpec{Quantity: 1, Unit: models.UnitMonth},
		FilterSets: []models.FilterSet{
			{Label: "spf softfail", Color: "#984ea3", Filters: models.Filters{RawSPFResults: []string{"softfail"}}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, f.viewID, updated.ID)
	assert.Equal(t, "January, SPF", updated.Title)
	assert.False(t, updated.Enabled)
	assert.Equal(t, models.DateRangeSpec{Quantity: 1, Unit: models.UnitMonth}, updated.DateRange)
	require.Len(t, updated.FilterSets, 1)
	assert.Equal(t, []string{"softfail"}, updated.FilterSets[0].Filters.RawSPFResults)

	_, err = f.views.Update(ctx, 999, &models.View{Title: "x", ReportType: models.ReportTypeIncoming,
		FilterSets: []models.FilterSet{{Label: "a", Color: "#000000"}}})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.views.Update(ctx, f.viewID, &models.View{Title: "x", ReportType: models.ReportTypeIncoming})
	assert.ErrorIs(t, err, ErrInvalidInput)

	clone, err := f.views.Clone(ctx, f.viewID)
	require.NoError(t, err)
	assert.NotEqual(t, f.viewID, clone.ID)
	assert.Equal(t, updated.Title, clone.Title)
	assert.Equal(t, 1, clone.Position)
	require.Len(t, clone.FilterSets, 1)
	assert.NotEqual(t, updated.FilterSets[0].ID, clone.FilterSets[0].ID)
	assert.Equal(t, clone.ID, clone.FilterSets[0].ViewID)
	assert.Equal(t, updated.FilterSets[0].Filters, clone.FilterSets[0].Filters)

	_, err = f.views.Clone(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	third, err := f.views.Create(ctx, &models.View{Title: "third", ReportType: models.ReportTypeOutgoing, Enabled: true,
		FilterSets: []models.FilterSet{{Label: "all", Color: "#000000"}}})
	require.NoError(t, err)

	require.NoError(t, f.views.Order(ctx, []int64{third.ID, clone.ID, f.viewID}))
	views, err := f.views.List(ctx, false)
	require.NoError(t, err)
	ids := make([]int64, len(views))
	for i, v := range views {
		ids[i] = v.ID
	}
	assert.Equal(t, []int64{third.ID, clone.ID, f.viewID}, ids)

	enabled, err := f.views.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, third.ID, enabled[0].ID)

	assert.ErrorIs(t, f.views.Order(ctx, nil), ErrInvalidInput)
	assert.ErrorIs(t, f.views.Order(ctx, []int64{third.ID, third.ID}), ErrInvalidInput)
	// A missing view rolls the whole order back
	assert.ErrorIs(t, f.views.Order(ctx, []int64{f.viewID, 999}), repository.ErrNotFound)
	views, err = f.views.List(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, third.ID, views[0].ID)
}

func TestViewService_Choices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		q    models.ChoiceQuery
		want []string
	}{
		{name: "reporters", q: models.ChoiceQuery{ReportType: "in", Kind: models.ChoiceReporter}, want: []string{"google.com", "yahoo.com"}},
		{name: "reporter by substring", q: models.ChoiceQuery{ReportType: "in", Kind: models.ChoiceReporter, Query: "YAH"}, want: []string{"yahoo.com"}},
		{name: "reportees", q: models.ChoiceQuery{ReportType: "in", Kind: models.ChoiceReportee, Query: ".n"}, want: []string{"example.net"}},
		{name: "dkim domains", q: models.ChoiceQuery{ReportType: "in", Kind: models.ChoiceDKIMDomain}, want: []string{"example.net", "example.org", "mailer.example"}},
		{name: "spf domains", q: models.ChoiceQuery{ReportType: "in", Kind: models.ChoiceSPFDomain, Query: "org"}, want: []string{"example.org"}},
		{name: "limit", q: models.ChoiceQuery{ReportType: "in", Kind: models.ChoiceDKIMDomain, Limit: 1}, want: []string{"example.net"}},
		{name: "wildcards are literal", q: models.ChoiceQuery{ReportType: "in", Kind: models.ChoiceReportee, Query: "%"}, want: []string{}},
		{name: "other report type", q: models.ChoiceQuery{ReportType: "out", Kind: models.ChoiceReporter}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.views.Choices(ctx, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := f.views.Choices(ctx, models.ChoiceQuery{ReportType: "in", Kind: "source_ip"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.views.Choices(ctx, models.ChoiceQuery{Kind: models.ChoiceReporter})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.views.Choices(ctx, models.ChoiceQuery{ReportType: "in", Kind: models.ChoiceReporter, Limit: -1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAnalysisService_RawAuthResultFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.views.Create(ctx, &models.View{
		Title:      "raw",
		ReportType: models.ReportTypeIncoming,
		DateRange:  models.DateRangeSpec{Begin: unix(2024, 1, 1), End: unix(2024, 1, 4)},
		FilterSets: []models.FilterSet{
			{Label: "mailer", Color: "#000000", Filters: models.Filters{RawDKIMDomains: []string{"mailer.example"}}},
			// Domain and result must match the same signature
			{Label: "org fail", Color: "#000000", Filters: models.Filters{
				RawDKIMDomains: []string{"example.org"}, RawDKIMResults: []string{"fail"}}},
			{Label: "dkim fail", Color: "#000000", Filters: models.Filters{RawDKIMResults: []string{"fail"}}},
			{Label: "spf softfail", Color: "#000000", Filters: models.Filters{
				RawSPFDomains: []string{"example.net"}, RawSPFResults: []string{"softfail", "fail"}}},
			{Label: "multiple", Color: "#000000", Filters: models.Filters{MultipleDKIM: true}},
		},
	})
	require.NoError(t, err)

	resp, err := f.analysis.GetLineData(ctx, v.ID)
	require.NoError(t, err)
	totals := make(map[string]int, len(resp.DataSets))
	for _, ds := range resp.DataSets {
		totals[ds.Label] = series.Total(ds.Data)
	}
	assert.Equal(t, map[string]int{
		"mailer":       5,
		"org fail":     0,
		"dkim fail":    9,
		"spf softfail": 4,
		"multiple":     5,
	}, totals)

	page, err := f.analysis.GetTableData(ctx, v.ID, models.TableFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

func TestImportService(t *testing.T) {
	db := newTestDB(t)
	reports := repository.NewReportRepository(db)
	resolver, err := geo.NewResolver(map[string]string{"192.0.2.0/24": "AT"})
	require.NoError(t, err)
	svc := NewImportService(reports, repository.NewImportTaskRepository(db), resolver)

	dir := t.TempDir()
	fixture, err := os.ReadFile(filepath.Join("..", "dmarc", "testdata", "google.xml"))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "google.xml"), fixture, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.xml"), []byte("<feedback>"), 0o644))

	ctx := context.Background()
	result, err := svc.Import(ctx, models.ReportTypeIncoming, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 1, result.Ignored)
	assert.Len(t, result.Failed, 1)

	task, err := svc.GetTask(ctx, result.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)
	assert.Equal(t, []string{dir}, task.Paths)
	assert.Equal(t, 2, task.TotalFiles)
	assert.Equal(t, 2, task.ProcessedFiles)
	assert.Equal(t, 1, task.Imported)
	assert.Equal(t, 1, task.Ignored)
	assert.Equal(t, 1, task.FailedFiles)
	assert.Equal(t, 100, task.ProgressPercent)
	assert.Equal(t, "1 file(s) failed", task.ErrorMessage)
	assert.NotNil(t, task.StartedAt)
	assert.NotNil(t, task.CompletedAt)

	summary, err := reports.GetSummary(ctx, models.ReportTypeIncoming)
	require.NoError(t, err)
	assert.Equal(t, 7, summary.MessageCount)

	page, err := repository.NewAnalysisRepository(db).GetTableRows(ctx, models.ReportTypeIncoming, nil, time.Time{}, time.Time{}, 0, 0)
	require.NoError(t, err)
	countries := map[string]string{}
	for _, row := range page.Rows {
		countries[row.SourceIP] = row.CountryISOCode
	}
	assert.Equal(t, map[string]string{"192.0.2.10": "AT", "198.51.100.3": ""}, countries)

	// A second run skips the stored report
	result, err = svc.Import(ctx, models.ReportTypeIncoming, filepath.Join(dir, "nested"))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 1, result.Skipped)

	_, err = svc.Import(ctx, "sideways", dir)
	assert.ErrorIs(t, err, ErrInvalidInput)

	// A missing path fails the whole run
	result, err = svc.Import(ctx, models.ReportTypeIncoming, filepath.Join(dir, "missing"))
	assert.Error(t, err)
	task, err = svc.GetTask(ctx, result.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, task.Status)
	assert.NotEmpty(t, task.ErrorMessage)

	tasks, err := svc.ListTasks(ctx, models.ImportTaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, result.TaskID, tasks[0].ID, "newest first")

	tasks, err = svc.ListTasks(ctx, models.ImportTaskFilter{Status: models.TaskStatusCompleted, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	_, err = svc.ListTasks(ctx, models.ImportTaskFilter{Status: "exploded"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.GetTask(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestImportService_Canceled(t *testing.T) {
	db := newTestDB(t)
	svc := NewImportService(repository.NewReportRepository(db), repository.NewImportTaskRepository(db), nil)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.xml"), []byte("<feedback/>"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Import(ctx, models.ReportTypeOutgoing, dir)
	assert.ErrorIs(t, err, context.Canceled)

	summary, err := repository.NewReportRepository(db).GetSummary(context.Background(), models.ReportTypeOutgoing)
	require.NoError(t, err)
	assert.Zero(t, summary.ReportCount)
}

// flakyTasks fails one progress step of an otherwise working task store
type flakyTasks struct {
	*repository.ImportTaskRepository
	failRunning  bool
	failProgress bool
}

var errTaskStore = errors.New("task store unavailable")

func (f *flakyTasks) MarkAsRunning(ctx context.Context, id int64, totalFiles, ignored int) error {
	if f.failRunning {
		return errTaskStore
	}
	return f.ImportTaskRepository.MarkAsRunning(ctx, id, totalFiles, ignored)
}

func (f *flakyTasks) UpdateProgress(ctx context.Context, task *models.ImportTask) error {
	if f.failProgress {
		return errTaskStore
	}
	return f.ImportTaskRepository.UpdateProgress(ctx, task)
}

func TestImportService_TaskStoreErrorsFailTask(t *testing.T) {
	dir := t.TempDir()
	fixture, err := os.ReadFile(filepath.Join("..", "dmarc", "testdata", "google.xml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "google.xml"), fixture, 0o644))

	tests := []struct {
		name  string
		tasks func(*repository.ImportTaskRepository) *flakyTasks
	}{
		{name: "mark running", tasks: func(r *repository.ImportTaskRepository) *flakyTasks {
			return &flakyTasks{ImportTaskRepository: r, failRunning: true}
		}},
		{name: "update progress", tasks: func(r *repository.ImportTaskRepository) *flakyTasks {
			return &flakyTasks{ImportTaskRepository: r, failProgress: true}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			repo := repository.NewImportTaskRepository(db)
			svc := NewImportService(repository.NewReportRepository(db), tt.tasks(repo), nil)

			result, err := svc.Import(context.Background(), models.ReportTypeIncoming, dir)
			require.ErrorIs(t, err, errTaskStore)

			task, err := repo.GetByID(context.Background(), result.TaskID)
			require.NoError(t, err)
			assert.Equal(t, models.TaskStatusFailed, task.Status)
			assert.Equal(t, errTaskStore.Error(), task.ErrorMessage)
			assert.NotNil(t, task.CompletedAt)
		})
	}
}
