// Package forecast fits an additive trend plus seasonality model to a user's
// spending history and projects near-term totals.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
)

const (
	day = 24 * time.Hour

	weeklyPeriodDays = 7.0
	yearlyPeriodDays = 365.25
	dailyPeriodDays  = 1.0

	weeklyOrder = 3
	yearlyOrder = 10
	dailyOrder  = 4

	// Ridge penalties on the scaled problem. The trend is left almost free.
	trendPenalty    = 1e-8
	seasonalPenalty = 1e-3
)

// Point is one observation of the series.
type Point struct {
	Time  time.Time
	Value float64
}

// Model is a fitted additive model:
//
//	y(t) = yScale * (b0 + b1*tau(t) + sum of Fourier terms)
//
// where tau is time scaled to [0, 1] over the training window.
type Model struct {
	Start  time.Time
	TScale float64 // seconds spanned by the training data
	YScale float64

	WeeklyOrder int
	YearlyOrder int
	DailyOrder  int

	Coefficients []float64

	LastObserved time.Time
	TrainedAt    time.Time
}

// Fit estimates a model from at least two points. Seasonal components are
// enabled only when the history is long or dense enough to identify them.
func Fit(ctx context.Context, points []Point) (*Model, error) {
	if len(points) < 2 {
		return nil, errors.New("forecast: need at least two points")
	}
	pts := append([]Point(nil), points...)
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Time.Before(pts[j].Time) })

	first, last := pts[0].Time, pts[len(pts)-1].Time
	span := last.Sub(first)

	m := &Model{
		Start:        first,
		TScale:       span.Seconds(),
		YScale:       0,
		LastObserved: last,
		TrainedAt:    time.Now().UTC(),
	}
	if m.TScale <= 0 {
		m.TScale = 1
	}
	for _, p := range pts {
		m.YScale = math.Max(m.YScale, math.Abs(p.Value))
	}
	if m.YScale == 0 {
		m.YScale = 1
	}

	if span >= 14*day {
		m.WeeklyOrder = weeklyOrder
	}
	if span >= 730*day {
		m.YearlyOrder = yearlyOrder
	}
	if span >= 2*day && minGap(pts) < day {
		m.DailyOrder = dailyOrder
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := m.numParams()
	xtx := mat.NewSymDense(p, nil)
	xty := mat.NewVecDense(p, nil)
	row := make([]float64, p)
	for _, pt := range pts {
		m.features(pt.Time, row)
		y := pt.Value / m.YScale
		for i := 0; i < p; i++ {
			xty.SetVec(i, xty.AtVec(i)+row[i]*y)
			for j := i; j < p; j++ {
				xtx.SetSym(i, j, xtx.At(i, j)+row[i]*row[j])
			}
		}
	}
	for i := 0; i < p; i++ {
		penalty := seasonalPenalty
		if i < 2 {
			penalty = trendPenalty
		}
		xtx.SetSym(i, i, xtx.At(i, i)+penalty)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(xtx); !ok {
		return nil, errors.New("forecast: design matrix is not positive definite")
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, xty); err != nil {
		return nil, fmt.Errorf("forecast: solve: %w", err)
	}

	m.Coefficients = make([]float64, p)
	for i := range m.Coefficients {
		m.Coefficients[i] = beta.AtVec(i)
	}
	return m, nil
}

// Predict returns the model value at t.
func (m *Model) Predict(t time.Time) float64 {
	row := make([]float64, m.numParams())
	m.features(t, row)
	var y float64
	for i, c := range m.Coefficients {
		y += c * row[i]
	}
	return y * m.YScale
}

// SumDaily sums predictions at LastObserved + 1..days days.
func (m *Model) SumDaily(days int) float64 {
	var total float64
	for k := 1; k <= days; k++ {
		total += m.Predict(m.LastObserved.Add(time.Duration(k) * day))
	}
	return total
}

func (m *Model) numParams() int {
	return 2 + 2*(m.WeeklyOrder+m.YearlyOrder+m.DailyOrder)
}

// features fills row with the regressors at t.
func (m *Model) features(t time.Time, row []float64) {
	row[0] = 1
	row[1] = t.Sub(m.Start).Seconds() / m.TScale

	days := float64(t.Unix()) / 86400
	i := 2
	for _, s := range []struct {
		period float64
		order  int
	}{
		{weeklyPeriodDays, m.WeeklyOrder},
		{yearlyPeriodDays, m.YearlyOrder},
		{dailyPeriodDays, m.DailyOrder},
	} {
		for n := 1; n <= s.order; n++ {
			x := 2 * math.Pi * float64(n) * days / s.period
			row[i] = math.Sin(x)
			row[i+1] = math.Cos(x)
			i += 2
		}
	}
}

func minGap(pts []Point) time.Duration {
	gap := time.Duration(math.MaxInt64)
	for i := 1; i < len(pts); i++ {
		if d := pts[i].Time.Sub(pts[i-1].Time); d > 0 && d < gap {
			gap = d
		}
	}
	return gap
}
