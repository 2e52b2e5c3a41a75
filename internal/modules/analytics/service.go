// Package analytics assembles the portfolio analytics dashboard payload.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/aristath/propfolio/internal/records"
	"github.com/aristath/propfolio/internal/utils"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ErrUserResolution wraps failures to resolve the caller's identity
var ErrUserResolution = errors.New("failed to resolve user")

// slowAssemblyThreshold is the assembly time that gets logged as a warning
const slowAssemblyThreshold = 2 * time.Second

// UserResolver extracts the user id from a request context.
// It returns an empty id for anonymous callers and an error for malformed identities.
type UserResolver interface {
	ResolveUser(ctx context.Context) (string, error)
}

// Settings tunes the service
type Settings struct {
	Benchmark     decimal.Decimal // Market average ROI
	ReaderTimeout time.Duration   // Per attempt; zero disables
	MaxRetries    int             // Extra attempts per reader after the first
}

// Service assembles AnalyticsData for the current user.
//
// All readers run concurrently. A failing reader is logged and treated as
// absent data; only authentication failures and cancellation abort the call.
type Service struct {
	readers  RecordReader
	users    UserResolver
	settings Settings
	log      zerolog.Logger
}

// NewService creates a new analytics service
func NewService(readers RecordReader, users UserResolver, settings Settings, log zerolog.Logger) *Service {
	return &Service{
		readers:  readers,
		users:    users,
		settings: settings,
		log:      log.With().Str("service", "analytics").Logger(),
	}
}

// Benchmark returns the configured market average ROI
func (s *Service) Benchmark() decimal.Decimal {
	return s.settings.Benchmark
}

// GetAnalytics returns the dashboard payload for the user in ctx, or nil when
// ctx carries no user.
func (s *Service) GetAnalytics(ctx context.Context) (*AnalyticsData, error) {
	userID, err := s.users.ResolveUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserResolution, err)
	}
	if userID == "" {
		s.log.Debug().Msg("No user in context, skipping analytics")
		return nil, nil
	}

	timer := utils.NewTimer("get_analytics", slowAssemblyThreshold, s.log)

	var (
		roi        outcome[*RoiSnapshot]
		investment outcome[*InvestmentSnapshot]
		monthlyRoi outcome[[]MonthlyRoiPoint]
		growth     outcome[[]MonthlyGrowthPoint]
		geo        outcome[[]GeoAllocationEntry]
		events     outcome[*EventsCount]
		properties outcome[[]PropertyRecord]
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		roi = runReader(gctx, s, "roi", userID, s.readers.GetRoiSnapshot)
		return roi.fatal()
	})
	g.Go(func() error {
		investment = runReader(gctx, s, "investment", userID, s.readers.GetInvestmentSnapshot)
		return investment.fatal()
	})
	g.Go(func() error {
		monthlyRoi = runReader(gctx, s, "monthly_roi", userID, s.readers.GetMonthlyRoi)
		return monthlyRoi.fatal()
	})
	g.Go(func() error {
		growth = runReader(gctx, s, "monthly_growth", userID, s.readers.GetMonthlyGrowth)
		return growth.fatal()
	})
	g.Go(func() error {
		geo = runReader(gctx, s, "geo_distribution", userID, s.readers.GetGeoDistribution)
		return geo.fatal()
	})
	g.Go(func() error {
		events = runReader(gctx, s, "events", userID, s.readers.GetEventsCount)
		return events.fatal()
	})
	g.Go(func() error {
		properties = runReader(gctx, s, "property_allocation", userID, s.readers.GetPropertyRecords)
		return properties.fatal()
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analytics aborted for user %s: %w", userID, err)
	}

	metrics := AggregateMetrics(roi.value, investment.value, s.settings.Benchmark)

	averageROI := decimal.NullDecimal{}
	if roi.value != nil {
		averageROI = roi.value.AverageROI
	}
	series, mode := SynthesizePerformance(userID, monthlyRoi.value, growth.value, averageROI, s.settings.Benchmark)

	eventsAttended := 0
	if events.value != nil {
		eventsAttended = events.value.Count
	}

	data := &AnalyticsData{
		PortfolioROI:           metrics.PortfolioROI,
		AnnualGrowth:           metrics.AnnualGrowth,
		MarketComparison:       metrics.MarketComparison,
		RoiPerformance:         series,
		AssetAllocation:        NormalizeAssetAllocation(properties.value),
		GeographicDistribution: NormalizeGeographicDistribution(geo.value),
		EventsAttended:         eventsAttended,
	}

	timer.StopWithContext(map[string]interface{}{
		"user_id":     userID,
		"series_mode": string(mode),
		"assets":      len(data.AssetAllocation),
		"locations":   len(data.GeographicDistribution),
	})

	return data, nil
}

// PlaceholderPerformance returns the zero series shown when a user has no history
func (s *Service) PlaceholderPerformance(months int) []PerformancePoint {
	return PlaceholderSeries(months, s.settings.Benchmark)
}

type outcomeKind int

const (
	outcomeOK outcomeKind = iota
	outcomeAbsent
	outcomeFailed
)

// outcome is the tagged result of one reader
type outcome[T any] struct {
	kind  outcomeKind
	value T
	err   error
	abort bool
}

func (o outcome[T]) fatal() error {
	if o.kind == outcomeFailed && o.abort {
		return o.err
	}
	return nil
}

// runReader calls read with the per-attempt timeout and bounded retries.
// Non-fatal failures come back as outcomeFailed with a zero value.
func runReader[T any](ctx context.Context, s *Service, name, userID string, read func(context.Context, string) (T, error)) outcome[T] {
	op := func() (T, error) {
		attemptCtx := ctx
		if s.settings.ReaderTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, s.settings.ReaderTimeout)
			defer cancel()
		}

		v, err := read(attemptCtx, userID)
		if err != nil && (isFatal(ctx, err) || errors.Is(err, records.ErrSourceCredentials)) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = time.Second
	retries := uint64(0)
	if s.settings.MaxRetries > 0 {
		retries = uint64(s.settings.MaxRetries)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx)

	v, err := backoff.RetryWithData(op, b)
	if err != nil {
		var zero T
		if isFatal(ctx, err) {
			return outcome[T]{kind: outcomeFailed, value: zero, err: fmt.Errorf("%s reader: %w", name, err), abort: true}
		}
		event := s.log.Warn()
		if errors.Is(err, records.ErrSourceCredentials) {
			event = s.log.Error()
		}
		event.
			Err(err).
			Str("reader", name).
			Str("user_id", userID).
			Msg("Reader failed, treating as absent")
		return outcome[T]{kind: outcomeFailed, value: zero, err: err}
	}

	if isAbsent(v) {
		s.log.Debug().Str("reader", name).Str("user_id", userID).Msg("No data")
		return outcome[T]{kind: outcomeAbsent, value: v}
	}
	return outcome[T]{kind: outcomeOK, value: v}
}

// isFatal reports errors that must abort the whole request
func isFatal(ctx context.Context, err error) bool {
	if errors.Is(err, records.ErrUnauthenticated) {
		return true
	}
	return ctx.Err() != nil
}

// isAbsent reports nil pointers and empty slices
func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Slice:
		return rv.IsNil() || (rv.Kind() == reflect.Slice && rv.Len() == 0)
	}
	return false
}
