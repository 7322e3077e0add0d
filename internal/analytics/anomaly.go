package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/castlemilk/pfinance/analytics/internal/store"
	"github.com/google/uuid"
)

// DetectionMethod names the outlier model in reports.
const DetectionMethod = "Isolation Forest"

const (
	highAmountMultiplier = 2.0
	highPercentile       = 90.0
	earliestUsualHour    = 6
	latestUsualHour      = 23
	fallbackReason       = "Pattern deviation detected"
)

// Anomaly is one flagged expense.
type Anomaly struct {
	ID          string    `json:"id"`
	ExpenseID   string    `json:"expenseId"`
	Amount      float64   `json:"amount"`
	Timestamp   time.Time `json:"date"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Score       float64   `json:"anomalyScore"`
	Reason      string    `json:"reason"`
}

// AnomalyReport is the outcome of a detection run. Anomalies are sorted
// ascending by score, most anomalous first.
type AnomalyReport struct {
	UserID            string    `json:"userId"`
	Anomalies         []Anomaly `json:"anomalies"`
	TotalExpenses     int       `json:"totalExpenses"`
	TotalAnomalies    int       `json:"totalAnomalies"`
	AnomalyPercentage float64   `json:"anomalyPercentage"`
	DetectionMethod   string    `json:"detectionMethod,omitempty"`
	Message           string    `json:"message"`
}

// Detector flags unusual expenses with a freshly fitted isolation forest per call.
type Detector struct {
	forest     ForestConfig
	minRecords int
}

// NewDetector creates a detector.
func NewDetector(forest ForestConfig, minRecords int) *Detector {
	return &Detector{forest: forest, minRecords: minRecords}
}

// Detect cleans raw, fits a model over its features and returns the flagged records.
func (d *Detector) Detect(ctx context.Context, userID string, raw []*store.Expense) (*AnomalyReport, error) {
	set, err := Clean(raw, CleanOptions{MinRecords: d.minRecords})
	if err != nil {
		return nil, err
	}

	features := BuildFeatures(set)
	forest := NewIsolationForest(d.forest)
	if err := forest.Fit(ctx, features.Rows); err != nil {
		return nil, fmt.Errorf("failed to fit anomaly model: %w", err)
	}
	scores := forest.DecisionFunction(features.Rows)

	amounts := features.Column(FeatureAmount)
	var anomalies []Anomaly
	for i, score := range scores {
		if score >= 0 {
			continue
		}
		r := set.Records[i]
		anomalies = append(anomalies, Anomaly{
			ID:          uuid.New().String(),
			ExpenseID:   r.ID,
			Amount:      amounts[i],
			Timestamp:   r.Timestamp,
			Description: orDefault(r.Description, "No description"),
			Category:    orDefault(deref(r.Category), "Uncategorized"),
			Score:       score,
			Reason:      explain(amounts[i], r.Timestamp.Hour(), features.MeanAmount, amounts),
		})
	}
	sort.SliceStable(anomalies, func(a, b int) bool {
		return anomalies[a].Score < anomalies[b].Score
	})

	total := set.RawCount
	report := &AnomalyReport{
		UserID:          userID,
		Anomalies:       anomalies,
		TotalExpenses:   total,
		TotalAnomalies:  len(anomalies),
		DetectionMethod: DetectionMethod,
		Message:         fmt.Sprintf("Detected %d anomalies out of %d expenses", len(anomalies), total),
	}
	if total > 0 {
		report.AnomalyPercentage = math.Round(float64(len(anomalies))/float64(total)*100*100) / 100
	}
	return report, nil
}

// explain evaluates every reason rule and joins the ones that fire.
func explain(amount float64, hour int, mean float64, amounts []float64) string {
	var reasons []string

	if mean > 0 && amount > highAmountMultiplier*mean {
		reasons = append(reasons, fmt.Sprintf("Amount is %.1fx higher than average", amount/mean))
	}

	var below int
	for _, a := range amounts {
		if a < amount {
			below++
		}
	}
	if pct := float64(below) / float64(len(amounts)) * 100; pct > highPercentile {
		reasons = append(reasons, fmt.Sprintf("Amount is in top %.1f%% of all expenses", 100-pct))
	}

	if hour < earliestUsualHour || hour > latestUsualHour {
		reasons = append(reasons, "Unusual time of transaction")
	}

	if len(reasons) == 0 {
		return fallbackReason
	}
	return strings.Join(reasons, "; ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
