// Package service exposes the analytics operations over Connect RPC and the
// legacy REST routes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/castlemilk/pfinance/analytics/internal/analytics"
	"github.com/castlemilk/pfinance/analytics/internal/classify"
	"github.com/castlemilk/pfinance/analytics/internal/forecast"
	"github.com/castlemilk/pfinance/analytics/internal/store"
)

const (
	msgAnomalyNotEnough     = "Not enough data for anomaly detection (minimum %d expenses required)"
	msgAnomalyMissingFields = "Missing required fields (amount, date)"
	msgAnomalyAfterCleaning = "Not enough valid data after cleaning"
)

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Invalidator is implemented by classifiers that keep a cached model.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Options wires the collaborators of an AnalyticsService.
type Options struct {
	Store      store.Store
	Forecaster *forecast.Forecaster
	Classifier classify.Classifier
	Detector   *analytics.Detector
	Budget     analytics.BudgetOptions
	// MinRecords is the anomaly detection minimum, reported in empty results.
	MinRecords int
	Logger     *slog.Logger
}

// AnalyticsService is the application context shared by every transport.
type AnalyticsService struct {
	store      store.Store
	forecaster *forecast.Forecaster
	classifier classify.Classifier
	detector   *analytics.Detector
	budget     analytics.BudgetOptions
	minRecords int
	logger     *slog.Logger
}

// NewAnalyticsService creates the service.
func NewAnalyticsService(opts Options) *AnalyticsService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	minRecords := opts.MinRecords
	if minRecords <= 0 {
		minRecords = analytics.DefaultMinRecords
	}
	return &AnalyticsService{
		store:      opts.Store,
		forecaster: opts.Forecaster,
		classifier: opts.Classifier,
		detector:   opts.Detector,
		budget:     opts.Budget,
		minRecords: minRecords,
		logger:     logger,
	}
}

// HealthStatus reports whether the service can reach its store.
type HealthStatus struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Database string `json:"database,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Health pings the store. The returned status is always populated; err is
// non-nil when the store is unreachable.
func (s *AnalyticsService) Health(ctx context.Context) (*HealthStatus, error) {
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		return &HealthStatus{
			Status:  "error",
			Message: "Database connection failed",
			Error:   err.Error(),
		}, err
	}
	return &HealthStatus{
		Status:   "healthy",
		Message:  "ML service is running",
		Database: "connected",
	}, nil
}

// Forecast projects next-week and next-month spend for userID.
func (s *AnalyticsService) Forecast(ctx context.Context, userID string) (*forecast.Result, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	return s.forecaster.Forecast(ctx, userID)
}

// Budget recommends a monthly budget per category for userID.
func (s *AnalyticsService) Budget(ctx context.Context, userID string) (*analytics.BudgetRecommendation, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	raw, err := s.store.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	if len(raw) == 0 {
		return nil, analytics.NotFoundError("no expenses found for user %s", userID)
	}
	return analytics.RecommendBudget(userID, raw, s.budget)
}

// Anomaly flags unusual expenses for userID. Too little or malformed data
// yields an empty report with an explanatory message rather than an error.
func (s *AnalyticsService) Anomaly(ctx context.Context, userID string) (*analytics.AnomalyReport, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	raw, err := s.store.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	empty := func(msg string) *analytics.AnomalyReport {
		return &analytics.AnomalyReport{
			UserID:        userID,
			Anomalies:     []analytics.Anomaly{},
			TotalExpenses: len(raw),
			Message:       msg,
		}
	}
	if len(raw) < s.minRecords {
		return empty(fmt.Sprintf(msgAnomalyNotEnough, s.minRecords)), nil
	}

	report, err := s.detector.Detect(ctx, userID, raw)
	switch analytics.CodeOf(err) {
	case "":
		if err != nil {
			return nil, err
		}
	case analytics.ErrMissingField:
		return empty(msgAnomalyMissingFields), nil
	case analytics.ErrInsufficientData:
		return empty(msgAnomalyAfterCleaning), nil
	default:
		return nil, err
	}
	if report.Anomalies == nil {
		report.Anomalies = []analytics.Anomaly{}
	}
	return report, nil
}

// Classify predicts the category of an expense title.
func (s *AnalyticsService) Classify(ctx context.Context, title string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", analytics.ValidationError("expense title is required")
	}
	return s.classifier.Predict(ctx, title)
}

// InvalidateForecast drops the cached forecast model for userID.
func (s *AnalyticsService) InvalidateForecast(ctx context.Context, userID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	return s.forecaster.Invalidate(ctx, userID)
}

// InvalidateClassifier drops the cached classifier model, if there is one.
func (s *AnalyticsService) InvalidateClassifier(ctx context.Context) error {
	inv, ok := s.classifier.(Invalidator)
	if !ok {
		return nil
	}
	return inv.Invalidate(ctx)
}

func validateUserID(userID string) error {
	if userID == "" {
		return analytics.ValidationError("user id is required")
	}
	if !userIDPattern.MatchString(userID) {
		return analytics.ValidationError("invalid user id %q", userID)
	}
	return nil
}

// isClientError reports whether err is an expected outcome of bad input or
// missing data rather than a server fault.
func isClientError(err error) bool {
	var aerr *analytics.Error
	if !errors.As(err, &aerr) {
		return false
	}
	switch aerr.Code {
	case analytics.ErrValidation, analytics.ErrMissingField, analytics.ErrInsufficientData, analytics.ErrNotFound:
		return true
	}
	return false
}
