package analytics

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Feature column indexes.
const (
	FeatureAmount = iota
	FeatureDayOfWeek
	FeatureHour
	FeatureCategory
	FeatureAmountRatio
	numFeatures
)

// FeatureMatrix holds one row of derived features per cleaned record.
type FeatureMatrix struct {
	Rows [][]float64
	// Categories lists category labels in the order their codes were assigned.
	Categories []string
	MeanAmount float64
}

// Column returns a copy of feature column j.
func (m *FeatureMatrix) Column(j int) []float64 {
	col := make([]float64, len(m.Rows))
	for i, row := range m.Rows {
		col[i] = row[j]
	}
	return col
}

// BuildFeatures derives the feature matrix from a cleaned set. Category codes
// are assigned in first-seen order within this set only. Undefined values
// are replaced by the mean of their column.
func BuildFeatures(set *CleanedSet) *FeatureMatrix {
	n := len(set.Records)
	m := &FeatureMatrix{Rows: make([][]float64, n)}
	if n == 0 {
		return m
	}

	amounts := make([]float64, n)
	for i, r := range set.Records {
		amounts[i] = r.AmountFloat()
	}
	m.MeanAmount = stat.Mean(amounts, nil)

	codes := make(map[string]int)
	for i, r := range set.Records {
		row := make([]float64, numFeatures)
		row[FeatureAmount] = amounts[i]
		row[FeatureDayOfWeek] = float64(mondayFirst(r.Timestamp.Weekday()))
		row[FeatureHour] = float64(r.Timestamp.Hour())

		row[FeatureCategory] = math.NaN()
		if r.Category != nil {
			code, ok := codes[*r.Category]
			if !ok {
				code = len(codes)
				codes[*r.Category] = code
				m.Categories = append(m.Categories, *r.Category)
			}
			row[FeatureCategory] = float64(code)
		}

		row[FeatureAmountRatio] = math.NaN()
		if m.MeanAmount != 0 {
			row[FeatureAmountRatio] = amounts[i] / m.MeanAmount
		}
		m.Rows[i] = row
	}

	imputeColumnMeans(m.Rows)
	return m
}

// mondayFirst numbers weekdays Monday=0 through Sunday=6.
func mondayFirst(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// imputeColumnMeans replaces NaN cells with the mean of the defined cells in the
// same column. A column with no defined cells becomes all zero.
func imputeColumnMeans(rows [][]float64) {
	if len(rows) == 0 {
		return
	}
	for j := range rows[0] {
		var sum float64
		var count int
		for _, row := range rows {
			if !math.IsNaN(row[j]) {
				sum += row[j]
				count++
			}
		}
		fill := 0.0
		if count > 0 {
			fill = sum / float64(count)
		}
		for _, row := range rows {
			if math.IsNaN(row[j]) {
				row[j] = fill
			}
		}
	}
}
