package analytics_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/propfolio/internal/modules/analytics"
	"github.com/aristath/propfolio/internal/records"
	testingpkg "github.com/aristath/propfolio/internal/testing"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticResolver struct {
	id  string
	err error
}

func (r staticResolver) ResolveUser(ctx context.Context) (string, error) {
	return r.id, r.err
}

func defaultSettings() analytics.Settings {
	return analytics.Settings{
		Benchmark:     decimal.RequireFromString("3.2"),
		ReaderTimeout: time.Second,
	}
}

func newService(src records.Source, userID string, settings analytics.Settings) *analytics.Service {
	repo := analytics.NewRepository(src, zerolog.Nop())
	return analytics.NewService(repo, staticResolver{id: userID}, settings, zerolog.Nop())
}

func TestGetAnalytics_FullPortfolio(t *testing.T) {
	src := testingpkg.NewMockRecordSource()
	testingpkg.NewHistoryFixture().Load(src, user)

	data, err := newService(src, user, defaultSettings()).GetAnalytics(context.Background())
	require.NoError(t, err)
	require.NotNil(t, data)

	assert.Equal(t, 5.0, data.PortfolioROI.Value)
	require.NotNil(t, data.PortfolioROI.Change)
	assert.Equal(t, 0.46, *data.PortfolioROI.Change)
	assert.Equal(t, 12.35, data.AnnualGrowth.Value)
	assert.Equal(t, analytics.MarketComparison{Value: 1.8, Status: analytics.StatusAbove}, data.MarketComparison)

	assert.Equal(t, []analytics.PerformancePoint{
		{Month: "Jan", ROI: 4.1, Benchmark: 3.2},
		{Month: "Feb", ROI: 4, Benchmark: 3.2},
		{Month: "Mar", ROI: 5.13, Benchmark: 3.2},
	}, data.RoiPerformance)

	assert.Equal(t, []analytics.AllocationSlice{{Name: "Villa", Value: 25}, {Name: "Apartment", Value: 75}}, data.AssetAllocation)
	assert.Equal(t, []analytics.AllocationSlice{{Name: "Lisbon", Value: 60}, {Name: "Porto", Value: 40}}, data.GeographicDistribution)
	assert.Equal(t, 4, data.EventsAttended)

	for _, table := range records.Tables() {
		assert.Equal(t, 1, src.Calls(table), "each table is read once: %s", table)
	}
}

func TestGetAnalytics_SynthesizedSeries(t *testing.T) {
	src := testingpkg.NewMockRecordSource()
	testingpkg.NewGrowthOnlyFixture().Load(src, testingpkg.InvestorGrowthOnly)

	data, err := newService(src, testingpkg.InvestorGrowthOnly, defaultSettings()).GetAnalytics(context.Background())
	require.NoError(t, err)
	require.NotNil(t, data)

	require.Len(t, data.RoiPerformance, 12)
	for _, p := range data.RoiPerformance {
		assert.Equal(t, 3.2, p.Benchmark)
		assert.InDelta(t, 4.5, p.ROI, 0.5+1e-9, "default baseline when average ROI is absent")
	}
	assert.Nil(t, data.PortfolioROI.Change)
}

func TestGetAnalytics_NoData(t *testing.T) {
	data, err := newService(testingpkg.NewMockRecordSource(), testingpkg.InvestorEmpty, defaultSettings()).
		GetAnalytics(context.Background())
	require.NoError(t, err)
	require.NotNil(t, data)

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"portfolioROI": {"value": 0, "change": null},
		"annualGrowth": {"value": 0, "change": 0},
		"marketComparison": {"value": 3.2, "status": "below"},
		"roiPerformance": [],
		"assetAllocation": [],
		"geographicDistribution": [],
		"eventsAttended": 0
	}`, string(raw))
}

func TestGetAnalytics_OutOfRangeNumbers(t *testing.T) {
	src := testingpkg.NewMockRecordSource()
	src.SetRows(records.TableRoiStats, user, records.Record{"average_roi": "1e400", "roi_change": "2.5"})
	src.SetRows(records.TableInvestmentStats, user, records.Record{"investment_change_percentage": "-1e400"})
	src.SetRows(records.TableMonthlyRoi, user, records.Record{"month": "Jan", "month_index": 1, "roi_value": "1e400"})

	data, err := newService(src, user, defaultSettings()).GetAnalytics(context.Background())
	require.NoError(t, err)
	require.NotNil(t, data)

	raw, err := json.Marshal(data)
	require.NoError(t, err, "payload must stay encodable")
	assert.JSONEq(t, `{
		"portfolioROI": {"value": 0, "change": null},
		"annualGrowth": {"value": 0, "change": 0},
		"marketComparison": {"value": 3.2, "status": "below"},
		"roiPerformance": [{"month": "Jan", "roi": 0, "benchmark": 3.2}],
		"assetAllocation": [],
		"geographicDistribution": [],
		"eventsAttended": 0
	}`, string(raw))
}

func TestGetAnalytics_Idempotent(t *testing.T) {
	src := testingpkg.NewMockRecordSource()
	testingpkg.NewGrowthOnlyFixture().Load(src, user)
	svc := newService(src, user, defaultSettings())

	first, err := svc.GetAnalytics(context.Background())
	require.NoError(t, err)
	second, err := svc.GetAnalytics(context.Background())
	require.NoError(t, err)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.Equal(t, string(a), string(b))
}

func TestGetAnalytics_NoUser(t *testing.T) {
	src := testingpkg.NewMockRecordSource()

	data, err := newService(src, "", defaultSettings()).GetAnalytics(context.Background())
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Equal(t, 0, src.Calls(records.TableRoiStats), "no reads without a user")
}

func TestGetAnalytics_UserResolutionError(t *testing.T) {
	repo := analytics.NewRepository(testingpkg.NewMockRecordSource(), zerolog.Nop())
	svc := analytics.NewService(repo, staticResolver{err: errors.New("bad uuid")}, defaultSettings(), zerolog.Nop())

	data, err := svc.GetAnalytics(context.Background())
	assert.Nil(t, data)
	assert.ErrorIs(t, err, analytics.ErrUserResolution)
}

func TestGetAnalytics_ReaderFailureIsAbsent(t *testing.T) {
	src := testingpkg.NewMockRecordSource()
	testingpkg.NewHistoryFixture().Load(src, user)
	src.SetError(records.TableMonthlyRoi, errors.New("connection reset"))
	src.SetError(records.TablePropertyInvestments, errors.New("timeout"))

	data, err := newService(src, user, defaultSettings()).GetAnalytics(context.Background())
	require.NoError(t, err)
	require.NotNil(t, data)

	// Monthly ROI failed, so the series falls back to growth points
	require.Len(t, data.RoiPerformance, 1)
	assert.Equal(t, "Jan", data.RoiPerformance[0].Month)
	assert.InDelta(t, 5.0, data.RoiPerformance[0].ROI, 0.5+1e-9)

	assert.NotNil(t, data.AssetAllocation)
	assert.Empty(t, data.AssetAllocation)
	assert.Equal(t, 5.0, data.PortfolioROI.Value)
}

func TestGetAnalytics_UnauthenticatedIsFatal(t *testing.T) {
	src := testingpkg.NewMockRecordSource()
	testingpkg.NewHistoryFixture().Load(src, user)
	src.SetError(records.TableEventCounts, records.ErrUnauthenticated)

	settings := defaultSettings()
	settings.MaxRetries = 3

	data, err := newService(src, user, settings).GetAnalytics(context.Background())
	assert.Nil(t, data)
	assert.ErrorIs(t, err, records.ErrUnauthenticated)
	assert.Equal(t, 1, src.Calls(records.TableEventCounts), "fatal errors are not retried")
}

// deniedS3 rejects every request the way S3 does for a revoked service key
type deniedS3 struct {
	gets atomic.Int32
}

func (d *deniedS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	d.gets.Add(1)
	return nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"}
}

func (d *deniedS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"}
}

func TestGetAnalytics_SourceCredentialFailureIsAbsent(t *testing.T) {
	client := &deniedS3{}
	src := records.NewS3Source(client, "records", "prod", zerolog.Nop())

	settings := defaultSettings()
	settings.MaxRetries = 2

	data, err := newService(src, user, settings).GetAnalytics(context.Background())
	require.NoError(t, err)
	require.NotNil(t, data)

	assert.Equal(t, 0.0, data.PortfolioROI.Value)
	assert.Nil(t, data.PortfolioROI.Change)
	assert.Empty(t, data.RoiPerformance)
	assert.Equal(t, 0, data.EventsAttended)
	assert.Equal(t, int32(len(records.Tables())), client.gets.Load(), "rejected credentials are not retried")
}

func TestGetAnalytics_CancelledContext(t *testing.T) {
	src := testingpkg.NewMockRecordSource()
	testingpkg.NewHistoryFixture().Load(src, user)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data, err := newService(src, user, defaultSettings()).GetAnalytics(ctx)
	assert.Nil(t, data)
	assert.ErrorIs(t, err, context.Canceled)
}

// flakySource fails the first n fetches of one table
type flakySource struct {
	records.Source
	table    records.Table
	failures int32
	calls    atomic.Int32
}

func (f *flakySource) Fetch(ctx context.Context, table records.Table, userID string) ([]records.Record, error) {
	if table == f.table && f.calls.Add(1) <= f.failures {
		return nil, errors.New("transient")
	}
	return f.Source.Fetch(ctx, table, userID)
}

func TestGetAnalytics_Retries(t *testing.T) {
	base := testingpkg.NewMockRecordSource()
	testingpkg.NewHistoryFixture().Load(base, user)

	t.Run("recovers within retry limit", func(t *testing.T) {
		src := &flakySource{Source: base, table: records.TableEventCounts, failures: 2}
		settings := defaultSettings()
		settings.MaxRetries = 2

		data, err := newService(src, user, settings).GetAnalytics(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 4, data.EventsAttended)
		assert.Equal(t, int32(3), src.calls.Load())
	})

	t.Run("no retries by default", func(t *testing.T) {
		src := &flakySource{Source: base, table: records.TableEventCounts, failures: 1}

		data, err := newService(src, user, defaultSettings()).GetAnalytics(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, data.EventsAttended)
		assert.Equal(t, int32(1), src.calls.Load())
	})
}

// slowSource blocks on one table until its context ends
type slowSource struct {
	records.Source
	table records.Table
}

func (s *slowSource) Fetch(ctx context.Context, table records.Table, userID string) ([]records.Record, error) {
	if table == s.table {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.Source.Fetch(ctx, table, userID)
}

func TestGetAnalytics_ReaderTimeoutIsAbsent(t *testing.T) {
	base := testingpkg.NewMockRecordSource()
	testingpkg.NewHistoryFixture().Load(base, user)
	src := &slowSource{Source: base, table: records.TableGeoDistribution}

	settings := defaultSettings()
	settings.ReaderTimeout = 20 * time.Millisecond

	data, err := newService(src, user, settings).GetAnalytics(context.Background())
	require.NoError(t, err, "a reader timeout is not a request cancellation")
	assert.Empty(t, data.GeographicDistribution)
	assert.Equal(t, 4, data.EventsAttended)
}

func TestPlaceholderPerformance(t *testing.T) {
	svc := newService(testingpkg.NewMockRecordSource(), user, defaultSettings())

	series := svc.PlaceholderPerformance(analytics.DefaultPlaceholderMonths)
	assert.Len(t, series, 12)
	assert.Equal(t, "3.2", svc.Benchmark().String())
}
