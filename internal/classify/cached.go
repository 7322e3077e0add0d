package classify

import (
	"context"
	"fmt"

	"github.com/castlemilk/pfinance/analytics/internal/analytics"
	"github.com/castlemilk/pfinance/analytics/internal/modelcache"
	"github.com/castlemilk/pfinance/analytics/internal/store"
)

// Codec stores a NaiveBayes model in a cache envelope.
type Codec struct{}

func (Codec) Kind() string { return "classifier.naive_bayes" }

func (Codec) Version() int { return 1 }

func (Codec) Encode(m *NaiveBayes) (map[string]any, error) {
	data, err := m.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return map[string]any{"model": data}, nil
}

func (Codec) Decode(payload map[string]any) (*NaiveBayes, error) {
	data, err := modelcache.PayloadBytes(payload, "model")
	if err != nil {
		return nil, err
	}
	return UnmarshalNaiveBayes(data)
}

// CorpusClassifier trains a NaiveBayes model from the labeled expenses in a
// store and keeps it in the model cache under a single shared key.
type CorpusClassifier struct {
	store       store.Store
	loader      *modelcache.Loader[*NaiveBayes]
	corpusLimit int
}

// NewCorpusClassifier creates a classifier that reads at most corpusLimit
// examples (0 for all) when it trains.
func NewCorpusClassifier(s store.Store, cache modelcache.Cache, corpusLimit int, cfg modelcache.LoaderConfig) *CorpusClassifier {
	return &CorpusClassifier{
		store:       s,
		loader:      modelcache.NewLoader[*NaiveBayes](cache, Codec{}, cfg),
		corpusLimit: corpusLimit,
	}
}

// Predict classifies text with the cached model, training it first if needed.
func (c *CorpusClassifier) Predict(ctx context.Context, text string) (string, error) {
	model, err := c.loader.Get(ctx, modelcache.ClassifierKey, c.train)
	if err != nil {
		return "", err
	}
	return model.Predict(ctx, text)
}

// Invalidate drops the cached model so the next prediction retrains.
func (c *CorpusClassifier) Invalidate(ctx context.Context) error {
	return c.loader.Invalidate(ctx, modelcache.ClassifierKey)
}

func (c *CorpusClassifier) train(ctx context.Context) (*NaiveBayes, error) {
	labeled, err := c.store.ListLabeledExpenses(ctx, c.corpusLimit)
	if err != nil {
		return nil, analytics.ModelUnavailableError("failed to load training corpus",
			fmt.Errorf("list labeled expenses: %w", err))
	}

	corpus := make([]Example, 0, len(labeled))
	for _, e := range labeled {
		if !e.HasLabel() {
			continue
		}
		corpus = append(corpus, Example{Text: e.Description, Category: NormalizeLabel(*e.Category)})
	}
	return Train(ctx, corpus)
}
