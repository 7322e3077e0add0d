package service

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/castlemilk/pfinance/analytics/internal/analytics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Error bodies of the legacy REST routes.
const (
	msgNoExpenses          = "No expenses found for this user."
	msgPredictNotEnough    = "Not enough data for prediction."
	msgBudgetMissingFields = "Missing required fields in data."
	msgBudgetNotEnough     = "Not enough valid data for recommendation."
	msgInvalidClassify     = "Invalid request. Please provide 'expense_title' in JSON format."
	msgInternal            = "internal error"
)

type restPrediction struct {
	NextWeekTotalExpense  float64 `json:"next_week_total_expense"`
	NextMonthTotalExpense float64 `json:"next_month_total_expense"`
}

type restForecastResponse struct {
	UserID     string         `json:"userId"`
	Prediction restPrediction `json:"prediction"`
}

type restBudgetResponse struct {
	UserID                string             `json:"userId"`
	ExpenseRecommendation map[string]float64 `json:"expense_recommendation"`
	Note                  string             `json:"note,omitempty"`
}

type restAnomaly struct {
	ExpenseID    string  `json:"expense_id"`
	Amount       float64 `json:"amount"`
	Date         string  `json:"date"`
	Description  string  `json:"description"`
	Category     string  `json:"category"`
	AnomalyScore float64 `json:"anomaly_score"`
	Reason       string  `json:"reason"`
}

type restAnomalyResponse struct {
	UserID            string        `json:"userId"`
	Anomalies         []restAnomaly `json:"anomalies"`
	TotalExpenses     int           `json:"total_expenses"`
	TotalAnomalies    *int          `json:"total_anomalies,omitempty"`
	AnomalyPercentage *float64      `json:"anomaly_percentage,omitempty"`
	DetectionMethod   string        `json:"detection_method,omitempty"`
	Message           string        `json:"message"`
}

type restClassifyRequest struct {
	ExpenseTitle *string `json:"expense_title"`
}

type restClassifyResponse struct {
	ExpenseTitle      string `json:"expense_title"`
	PredictedCategory string `json:"predicted_category"`
}

type restHandler struct {
	svc    *AnalyticsService
	logger *slog.Logger
}

// NewRESTRouter serves the operations on the legacy ML service paths and
// JSON shapes, for clients that predate the RPC API.
func NewRESTRouter(svc *AnalyticsService) http.Handler {
	h := &restHandler{svc: svc, logger: svc.logger.With("transport", "rest")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/health", h.health)
	r.Get("/predict/{userId}", h.forecast)
	r.Get("/budget/{userId}", h.budget)
	r.Get("/anomaly/{userId}", h.anomaly)
	r.Post("/predict_category", h.classify)
	r.Delete("/predict/{userId}", h.invalidateForecast)
	return r
}

func (h *restHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start),
		)
	})
}

func (h *restHandler) health(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Health(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *restHandler) forecast(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Forecast(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.writeError(w, err, map[analytics.ErrorCode]string{
			analytics.ErrNotFound:         msgNoExpenses,
			analytics.ErrInsufficientData: msgPredictNotEnough,
			analytics.ErrMissingField:     msgPredictNotEnough,
		})
		return
	}
	writeJSON(w, http.StatusOK, restForecastResponse{
		UserID: result.UserID,
		Prediction: restPrediction{
			NextWeekTotalExpense:  result.NextWeekTotal,
			NextMonthTotalExpense: result.NextMonthTotal,
		},
	})
}

func (h *restHandler) budget(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Budget(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.writeError(w, err, map[analytics.ErrorCode]string{
			analytics.ErrNotFound:         msgNoExpenses,
			analytics.ErrMissingField:     msgBudgetMissingFields,
			analytics.ErrInsufficientData: msgBudgetNotEnough,
		})
		return
	}
	writeJSON(w, http.StatusOK, restBudgetResponse{
		UserID:                rec.UserID,
		ExpenseRecommendation: rec.Categories,
		Note:                  rec.Note,
	})
}

func (h *restHandler) anomaly(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Anomaly(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.writeError(w, err, nil)
		return
	}

	resp := restAnomalyResponse{
		UserID:          report.UserID,
		Anomalies:       make([]restAnomaly, 0, len(report.Anomalies)),
		TotalExpenses:   report.TotalExpenses,
		DetectionMethod: report.DetectionMethod,
		Message:         report.Message,
	}
	for _, a := range report.Anomalies {
		resp.Anomalies = append(resp.Anomalies, restAnomaly{
			ExpenseID:    a.ExpenseID,
			Amount:       a.Amount,
			Date:         a.Timestamp.Format("2006-01-02T15:04:05"),
			Description:  a.Description,
			Category:     a.Category,
			AnomalyScore: a.Score,
			Reason:       a.Reason,
		})
	}
	// Empty reports carry only the totals and the message.
	if report.DetectionMethod != "" {
		resp.TotalAnomalies = &report.TotalAnomalies
		resp.AnomalyPercentage = &report.AnomalyPercentage
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *restHandler) classify(w http.ResponseWriter, r *http.Request) {
	var req restClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ExpenseTitle == nil {
		writeMessage(w, http.StatusBadRequest, msgInvalidClassify)
		return
	}

	category, err := h.svc.Classify(r.Context(), *req.ExpenseTitle)
	if err != nil {
		h.writeError(w, err, map[analytics.ErrorCode]string{
			analytics.ErrValidation: msgInvalidClassify,
		})
		return
	}
	writeJSON(w, http.StatusOK, restClassifyResponse{
		ExpenseTitle:      *req.ExpenseTitle,
		PredictedCategory: category,
	})
}

func (h *restHandler) invalidateForecast(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if err := h.svc.InvalidateForecast(r.Context(), userID); err != nil {
		h.writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, InvalidateForecastResponse{UserID: userID, Invalidated: true})
}

// writeError maps err to a status code and writes {"error": msg}. messages
// overrides the body for specific error codes.
func (h *restHandler) writeError(w http.ResponseWriter, err error, messages map[analytics.ErrorCode]string) {
	var aerr *analytics.Error
	if !errors.As(err, &aerr) {
		h.logger.Error("request failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, msgInternal)
		return
	}

	msg := aerr.Message
	if override, ok := messages[aerr.Code]; ok {
		msg = override
	}

	status := http.StatusInternalServerError
	switch aerr.Code {
	case analytics.ErrValidation, analytics.ErrMissingField, analytics.ErrInsufficientData:
		status = http.StatusBadRequest
	case analytics.ErrNotFound:
		status = http.StatusNotFound
	case analytics.ErrModelUnavailable, analytics.ErrUntrainedModel, analytics.ErrTrainingTimeout:
		status = http.StatusServiceUnavailable
	}
	if !isClientError(err) {
		h.logger.Warn("request failed", "code", aerr.Code, "error", err)
	}
	if status == http.StatusInternalServerError {
		msg = msgInternal
	}
	writeMessage(w, status, msg)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
