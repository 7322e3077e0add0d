package forecast

import (
	"fmt"
	"time"

	"github.com/castlemilk/pfinance/analytics/internal/modelcache"
)

// Codec stores a Model in a cache envelope.
type Codec struct{}

func (Codec) Kind() string { return "forecast.additive" }

func (Codec) Version() int { return 1 }

func (Codec) Encode(m *Model) (map[string]any, error) {
	return map[string]any{
		"start":         m.Start.UTC().Format(time.RFC3339Nano),
		"t_scale":       m.TScale,
		"y_scale":       m.YScale,
		"weekly_order":  m.WeeklyOrder,
		"yearly_order":  m.YearlyOrder,
		"daily_order":   m.DailyOrder,
		"coefficients":  modelcache.Floats(m.Coefficients),
		"last_observed": m.LastObserved.UTC().Format(time.RFC3339Nano),
		"trained_at":    m.TrainedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func (Codec) Decode(payload map[string]any) (*Model, error) {
	var (
		m   Model
		err error
	)
	if m.Start, err = modelcache.PayloadTime(payload, "start"); err != nil {
		return nil, err
	}
	if m.LastObserved, err = modelcache.PayloadTime(payload, "last_observed"); err != nil {
		return nil, err
	}
	if m.TrainedAt, err = modelcache.PayloadTime(payload, "trained_at"); err != nil {
		return nil, err
	}
	if m.TScale, err = modelcache.PayloadFloat(payload, "t_scale"); err != nil {
		return nil, err
	}
	if m.YScale, err = modelcache.PayloadFloat(payload, "y_scale"); err != nil {
		return nil, err
	}
	if m.Coefficients, err = modelcache.PayloadFloats(payload, "coefficients"); err != nil {
		return nil, err
	}

	orders := map[string]*int{
		"weekly_order": &m.WeeklyOrder,
		"yearly_order": &m.YearlyOrder,
		"daily_order":  &m.DailyOrder,
	}
	for key, dst := range orders {
		v, err := modelcache.PayloadFloat(payload, key)
		if err != nil {
			return nil, err
		}
		*dst = int(v)
	}

	if m.TScale <= 0 || m.YScale <= 0 {
		return nil, fmt.Errorf("invalid scaling in artifact")
	}
	if len(m.Coefficients) != m.numParams() {
		return nil, fmt.Errorf("artifact has %d coefficients, want %d", len(m.Coefficients), m.numParams())
	}
	return &m, nil
}
