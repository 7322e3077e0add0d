package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"github.com/castlemilk/pfinance/analytics/internal/analytics"
	"github.com/castlemilk/pfinance/analytics/internal/forecast"
)

// ServiceName is the fully-qualified Connect service name.
const ServiceName = "analytics.v1.AnalyticsService"

const (
	HealthProcedure             = "/" + ServiceName + "/Health"
	ForecastProcedure           = "/" + ServiceName + "/Forecast"
	BudgetProcedure             = "/" + ServiceName + "/Budget"
	AnomalyProcedure            = "/" + ServiceName + "/Anomaly"
	ClassifyProcedure           = "/" + ServiceName + "/Classify"
	InvalidateForecastProcedure = "/" + ServiceName + "/InvalidateForecast"
)

type HealthRequest struct{}

type UserRequest struct {
	UserID string `json:"userId"`
}

type ClassifyRequest struct {
	Title string `json:"title"`
}

type ClassifyResponse struct {
	Title             string `json:"title"`
	PredictedCategory string `json:"predictedCategory"`
}

type InvalidateForecastResponse struct {
	UserID      string `json:"userId"`
	Invalidated bool   `json:"invalidated"`
}

// jsonCodec carries plain Go structs as JSON. It is registered under both
// names Connect negotiates for application/json.
type jsonCodec struct {
	name string
}

func (c jsonCodec) Name() string { return c.name }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}

// JSONCodecs returns the codecs clients and handlers of this service need.
func JSONCodecs() []connect.Codec {
	return []connect.Codec{
		jsonCodec{name: "json"},
		jsonCodec{name: "json; charset=utf-8"},
	}
}

// NewHandler builds the Connect handler for every AnalyticsService procedure
// and returns the path prefix to mount it on.
func NewHandler(svc *AnalyticsService, opts ...connect.HandlerOption) (string, http.Handler) {
	for _, codec := range JSONCodecs() {
		opts = append(opts, connect.WithCodec(codec))
	}
	h := &connectHandlers{svc: svc}

	mux := http.NewServeMux()
	mux.Handle(HealthProcedure, connect.NewUnaryHandler(HealthProcedure, h.health, opts...))
	mux.Handle(ForecastProcedure, connect.NewUnaryHandler(ForecastProcedure, h.forecast, opts...))
	mux.Handle(BudgetProcedure, connect.NewUnaryHandler(BudgetProcedure, h.budget, opts...))
	mux.Handle(AnomalyProcedure, connect.NewUnaryHandler(AnomalyProcedure, h.anomaly, opts...))
	mux.Handle(ClassifyProcedure, connect.NewUnaryHandler(ClassifyProcedure, h.classify, opts...))
	mux.Handle(InvalidateForecastProcedure, connect.NewUnaryHandler(InvalidateForecastProcedure, h.invalidateForecast, opts...))
	return "/" + ServiceName + "/", mux
}

type connectHandlers struct {
	svc *AnalyticsService
}

func (h *connectHandlers) health(ctx context.Context, req *connect.Request[HealthRequest]) (*connect.Response[HealthStatus], error) {
	status, err := h.svc.Health(ctx)
	if err != nil {
		return nil, connect.NewError(connect.CodeUnavailable, errors.New("database connection failed"))
	}
	return connect.NewResponse(status), nil
}

func (h *connectHandlers) forecast(ctx context.Context, req *connect.Request[UserRequest]) (*connect.Response[forecast.Result], error) {
	result, err := h.svc.Forecast(ctx, req.Msg.UserID)
	if err != nil {
		return nil, toConnectError(h.svc.logger, "forecast", err)
	}
	return connect.NewResponse(result), nil
}

func (h *connectHandlers) budget(ctx context.Context, req *connect.Request[UserRequest]) (*connect.Response[analytics.BudgetRecommendation], error) {
	rec, err := h.svc.Budget(ctx, req.Msg.UserID)
	if err != nil {
		return nil, toConnectError(h.svc.logger, "budget", err)
	}
	return connect.NewResponse(rec), nil
}

func (h *connectHandlers) anomaly(ctx context.Context, req *connect.Request[UserRequest]) (*connect.Response[analytics.AnomalyReport], error) {
	report, err := h.svc.Anomaly(ctx, req.Msg.UserID)
	if err != nil {
		return nil, toConnectError(h.svc.logger, "anomaly", err)
	}
	return connect.NewResponse(report), nil
}

func (h *connectHandlers) classify(ctx context.Context, req *connect.Request[ClassifyRequest]) (*connect.Response[ClassifyResponse], error) {
	category, err := h.svc.Classify(ctx, req.Msg.Title)
	if err != nil {
		return nil, toConnectError(h.svc.logger, "classify", err)
	}
	return connect.NewResponse(&ClassifyResponse{
		Title:             req.Msg.Title,
		PredictedCategory: category,
	}), nil
}

func (h *connectHandlers) invalidateForecast(ctx context.Context, req *connect.Request[UserRequest]) (*connect.Response[InvalidateForecastResponse], error) {
	if err := h.svc.InvalidateForecast(ctx, req.Msg.UserID); err != nil {
		return nil, toConnectError(h.svc.logger, "invalidate forecast", err)
	}
	return connect.NewResponse(&InvalidateForecastResponse{
		UserID:      req.Msg.UserID,
		Invalidated: true,
	}), nil
}

// toConnectError maps analytics errors to Connect codes. Unexpected errors
// are logged and replaced with a generic message.
func toConnectError(logger *slog.Logger, op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return connect.NewError(connect.CodeCanceled, err)
	}

	var aerr *analytics.Error
	if !errors.As(err, &aerr) {
		if errors.Is(err, context.DeadlineExceeded) {
			return connect.NewError(connect.CodeDeadlineExceeded, err)
		}
		logger.Error("request failed", "op", op, "error", err)
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}

	msg := errors.New(aerr.Message)
	switch aerr.Code {
	case analytics.ErrValidation:
		return connect.NewError(connect.CodeInvalidArgument, msg)
	case analytics.ErrMissingField, analytics.ErrInsufficientData:
		return connect.NewError(connect.CodeFailedPrecondition, msg)
	case analytics.ErrNotFound:
		return connect.NewError(connect.CodeNotFound, msg)
	case analytics.ErrModelUnavailable, analytics.ErrUntrainedModel, analytics.ErrTrainingTimeout:
		logger.Warn("model unavailable", "op", op, "error", err)
		return connect.NewError(connect.CodeUnavailable, msg)
	default:
		logger.Error("request failed", "op", op, "error", err)
		return connect.NewError(connect.CodeInternal, fmt.Errorf("internal error"))
	}
}
