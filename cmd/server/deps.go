package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/castlemilk/pfinance/analytics/internal/analytics"
	"github.com/castlemilk/pfinance/analytics/internal/bootstrap"
	"github.com/castlemilk/pfinance/analytics/internal/classify"
	"github.com/castlemilk/pfinance/analytics/internal/config"
	"github.com/castlemilk/pfinance/analytics/internal/forecast"
	"github.com/castlemilk/pfinance/analytics/internal/modelcache"
	"github.com/castlemilk/pfinance/analytics/internal/service"
	"github.com/castlemilk/pfinance/analytics/internal/store"
)

// app owns the backing clients built from config.
type app struct {
	store   store.Store
	cache   modelcache.Cache
	svc     *service.AnalyticsService
	closers []bootstrap.CloseFunc
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newApp(ctx context.Context, c *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}
	s, closeStore, err := bootstrap.OpenStore(ctx, c)
	if err != nil {
		return nil, err
	}
	a.store = s
	a.closers = append(a.closers, closeStore)

	cache, closeCache, err := bootstrap.OpenCache(ctx, c)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.cache = cache
	a.closers = append(a.closers, closeCache)

	loaderCfg := modelcache.LoaderConfig{
		TrainTimeout: c.Forecast.TrainingTimeout,
		MaxAge:       c.Cache.MaxAge,
		Logger:       logger,
	}

	var classifier classify.Classifier
	switch c.Classifier.Strategy {
	case "keywords":
		classifier = classify.DefaultKeywordTable
	default:
		classifier = classify.NewCorpusClassifier(a.store, a.cache, c.Classifier.CorpusLimit, loaderCfg)
	}

	a.svc = service.NewAnalyticsService(service.Options{
		Store: a.store,
		Forecaster: forecast.NewForecaster(a.store, a.cache, forecast.Config{
			MinRecords: c.Pipeline.MinRecords,
			Loader:     loaderCfg,
		}),
		Classifier: classifier,
		Detector: analytics.NewDetector(analytics.ForestConfig{
			Trees:         c.Anomaly.Trees,
			MaxSamples:    c.Anomaly.MaxSamples,
			Contamination: c.Anomaly.Contamination,
			Seed:          c.Anomaly.Seed,
		}, c.Pipeline.MinRecords),
		Budget: analytics.BudgetOptions{
			MinRecords: c.Budget.MinRecords,
			Location:   c.BudgetLocation(),
		},
		MinRecords: c.Pipeline.MinRecords,
		Logger:     logger,
	})
	return a, nil
}
