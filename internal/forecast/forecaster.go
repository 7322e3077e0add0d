package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/castlemilk/pfinance/analytics/internal/analytics"
	"github.com/castlemilk/pfinance/analytics/internal/modelcache"
	"github.com/castlemilk/pfinance/analytics/internal/store"
	"github.com/shopspring/decimal"
)

const (
	weekHorizonDays  = 7
	monthHorizonDays = 30
)

// Result holds projected spend after the last observed expense.
type Result struct {
	UserID         string    `json:"userId"`
	NextWeekTotal  float64   `json:"nextWeekTotal"`
	NextMonthTotal float64   `json:"nextMonthTotal"`
	LastObserved   time.Time `json:"lastObserved"`
}

// Config tunes a Forecaster.
type Config struct {
	MinRecords int
	Loader     modelcache.LoaderConfig
}

// Forecaster serves forecasts from cached per-user models, training on a miss.
type Forecaster struct {
	store      store.Store
	loader     *modelcache.Loader[*Model]
	minRecords int
	logger     *slog.Logger
}

// NewForecaster creates a forecaster reading history from s and caching models in cache.
func NewForecaster(s store.Store, cache modelcache.Cache, cfg Config) *Forecaster {
	logger := cfg.Loader.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Forecaster{
		store:      s,
		loader:     modelcache.NewLoader[*Model](cache, Codec{}, cfg.Loader),
		minRecords: cfg.MinRecords,
		logger:     logger.With("component", "forecast"),
	}
}

// Forecast returns next-week and next-month spend totals for userID.
func (f *Forecaster) Forecast(ctx context.Context, userID string) (*Result, error) {
	model, err := f.loader.Get(ctx, modelcache.ForecastKey(userID), func(ctx context.Context) (*Model, error) {
		return f.train(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		UserID:         userID,
		NextWeekTotal:  clampRound(model.SumDaily(weekHorizonDays)),
		NextMonthTotal: clampRound(model.SumDaily(monthHorizonDays)),
		LastObserved:   model.LastObserved,
	}, nil
}

// Invalidate drops the cached model so the next forecast retrains.
func (f *Forecaster) Invalidate(ctx context.Context, userID string) error {
	return f.loader.Invalidate(ctx, modelcache.ForecastKey(userID))
}

func (f *Forecaster) train(ctx context.Context, userID string) (*Model, error) {
	raw, err := f.store.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	if len(raw) == 0 {
		return nil, analytics.NotFoundError("no expenses found for user %s", userID)
	}

	set, err := analytics.Clean(raw, analytics.CleanOptions{MinRecords: f.minRecords})
	if err != nil {
		return nil, err
	}

	points := make([]Point, set.Len())
	for i, r := range set.Records {
		points[i] = Point{Time: r.Timestamp, Value: r.AmountFloat()}
	}
	model, err := Fit(ctx, points)
	if err != nil {
		return nil, fmt.Errorf("failed to fit forecast model: %w", err)
	}
	f.logger.Debug("fitted forecast model", "user_id", userID, "points", len(points),
		"weekly", model.WeeklyOrder > 0, "yearly", model.YearlyOrder > 0, "daily", model.DailyOrder > 0)
	return model, nil
}

// clampRound floors negative totals at zero and rounds to cents.
func clampRound(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	d := decimal.NewFromFloat(v)
	if d.IsNegative() {
		return 0
	}
	return d.Round(2).InexactFloat64()
}
