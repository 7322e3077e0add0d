package classify

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/castlemilk/pfinance/analytics/internal/analytics"
	"github.com/castlemilk/pfinance/analytics/internal/modelcache"
	"github.com/castlemilk/pfinance/analytics/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func sampleCorpus() []Example {
	return []Example{
		{Text: "Coffee at Starbucks", Category: "Food"},
		{Text: "coffee and bagel", Category: "Food"},
		{Text: "Lunch with team", Category: "Food"},
		{Text: "dinner pizza", Category: "Food"},
		{Text: "Uber to airport", Category: "Transport"},
		{Text: "taxi ride home", Category: "Transport"},
		{Text: "uber pool", Category: "Transport"},
		{Text: "Monthly rent payment", Category: "Housing"},
		{Text: "rent for March", Category: "Housing"},
		{Text: "apartment rent", Category: "Housing"},
		{Text: "bus ticket", Category: "Transport"},
		{Text: "iced coffee", Category: "Food"},
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "Coffee at Starbucks", want: []string{"coffee", "at", "starbucks"}},
		{in: "UBER-ride #2 to a café", want: []string{"uber", "ride", "to", "café"}},
		{in: "ＵＢＥＲ ride", want: []string{"uber", "ride"}},
		{in: "a b c", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Tokenize(tt.in)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeywordTable_Predict(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		title string
		want  string
	}{
		{title: "Pizza night", want: "Food"},
		{title: "Weekly GROCERIES", want: "Groceries"},
		{title: "fresh vegetables", want: "Vegetable"},
		{title: "Uber to office", want: "Taxi"},
		{title: "petrol refill", want: "Fuel"},
		{title: "House rent", want: "Rent"},
		{title: "electric bill", want: "Electricity"},
		{title: "water bill", want: "Water"},
		{title: "Home wifi", want: "Internet"},
		{title: "birthday present", want: DefaultCategory},
		// First rule wins when several match.
		{title: "food delivery by uber", want: "Food"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got, err := DefaultKeywordTable.Predict(ctx, tt.title)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTrain(t *testing.T) {
	ctx := context.Background()

	m, err := Train(ctx, sampleCorpus())
	require.NoError(t, err)
	assert.Equal(t, []string{"Food", "Housing", "Transport"}, m.Categories())

	tests := []struct {
		text string
		want string
	}{
		{text: "coffee", want: "Food"},
		{text: "uber", want: "Transport"},
		{text: "rent", want: "Housing"},
	}
	for _, tt := range tests {
		got, err := m.Predict(ctx, tt.text)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

func TestTrain_Idempotent(t *testing.T) {
	ctx := context.Background()
	a, err := Train(ctx, sampleCorpus())
	require.NoError(t, err)
	b, err := Train(ctx, sampleCorpus())
	require.NoError(t, err)

	for _, text := range []string{"coffee", "rent", "unknown words here", ""} {
		pa, err := a.Predict(ctx, text)
		require.NoError(t, err)
		pb, err := b.Predict(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, pa, pb, text)
	}
}

func TestTrain_Untrained(t *testing.T) {
	ctx := context.Background()

	_, err := Train(ctx, sampleCorpus()[:9])
	assert.Equal(t, analytics.ErrUntrainedModel, analytics.CodeOf(err))

	single := make([]Example, 12)
	for i := range single {
		single[i] = Example{Text: fmt.Sprintf("item %d", i), Category: "Food"}
	}
	_, err = Train(ctx, single)
	assert.Equal(t, analytics.ErrUntrainedModel, analytics.CodeOf(err))
}

func TestNaiveBayes_MarshalRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, err := Train(ctx, sampleCorpus())
	require.NoError(t, err)

	payload, err := Codec{}.Encode(m)
	require.NoError(t, err)
	blob, err := modelcache.EncodeEnvelope(modelcache.Envelope{Kind: Codec{}.Kind(), Version: 1, Payload: payload})
	require.NoError(t, err)
	env, err := modelcache.DecodeEnvelope(blob)
	require.NoError(t, err)

	restored, err := Codec{}.Decode(env.Payload)
	require.NoError(t, err)
	for _, text := range []string{"coffee", "uber pool", "rent"} {
		want, _ := m.Predict(ctx, text)
		got, err := restored.Predict(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, want, got, text)
	}
}

func labeledExpenses(corpus []Example) []*store.Expense {
	out := make([]*store.Expense, len(corpus))
	for i, ex := range corpus {
		category := ex.Category
		out[i] = &store.Expense{ID: fmt.Sprintf("e%d", i), Description: ex.Text, Category: &category}
	}
	return out
}

func TestCorpusClassifier(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()

	t.Run("trains once and reuses the cached model", func(t *testing.T) {
		mockStore := store.NewMockStore(ctrl)
		mockStore.EXPECT().
			ListLabeledExpenses(gomock.Any(), 500).
			Return(labeledExpenses(sampleCorpus()), nil).
			Times(1)

		c := NewCorpusClassifier(mockStore, modelcache.NewMemoryCache(), 500, modelcache.LoaderConfig{})

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := c.Predict(ctx, "coffee")
				assert.NoError(t, err)
				assert.Equal(t, "Food", got)
			}()
		}
		wg.Wait()

		got, err := c.Predict(ctx, "taxi")
		require.NoError(t, err)
		assert.Equal(t, "Transport", got)
	})

	t.Run("too few examples", func(t *testing.T) {
		mockStore := store.NewMockStore(ctrl)
		mockStore.EXPECT().
			ListLabeledExpenses(gomock.Any(), 0).
			Return(labeledExpenses(sampleCorpus()[:4]), nil)

		c := NewCorpusClassifier(mockStore, modelcache.NewMemoryCache(), 0, modelcache.LoaderConfig{})
		_, err := c.Predict(ctx, "coffee")
		assert.Equal(t, analytics.ErrUntrainedModel, analytics.CodeOf(err))
	})

	t.Run("store failure", func(t *testing.T) {
		mockStore := store.NewMockStore(ctrl)
		mockStore.EXPECT().
			ListLabeledExpenses(gomock.Any(), 0).
			Return(nil, fmt.Errorf("unavailable"))

		c := NewCorpusClassifier(mockStore, modelcache.NewMemoryCache(), 0, modelcache.LoaderConfig{})
		_, err := c.Predict(ctx, "coffee")
		assert.Equal(t, analytics.ErrModelUnavailable, analytics.CodeOf(err))
	})

	t.Run("invalidate forces retraining", func(t *testing.T) {
		mockStore := store.NewMockStore(ctrl)
		mockStore.EXPECT().
			ListLabeledExpenses(gomock.Any(), 0).
			Return(labeledExpenses(sampleCorpus()), nil).
			Times(2)

		c := NewCorpusClassifier(mockStore, modelcache.NewMemoryCache(), 0, modelcache.LoaderConfig{})
		_, err := c.Predict(ctx, "coffee")
		require.NoError(t, err)
		require.NoError(t, c.Invalidate(ctx))
		_, err = c.Predict(ctx, "coffee")
		require.NoError(t, err)
	})
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"food", "Food"},
		{"  FOOD ", "Food"},
		{"eating out", "Eating Out"},
		{"tv subscription", "TV Subscription"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLabel(tt.in))
		})
	}
}

func TestCorpusClassifier_MergesLabelCasing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	corpus := sampleCorpus()
	for i := range corpus {
		if corpus[i].Category == "Food" && i%2 == 0 {
			corpus[i].Category = "food"
		}
	}
	mockStore := store.NewMockStore(ctrl)
	mockStore.EXPECT().ListLabeledExpenses(gomock.Any(), 0).Return(labeledExpenses(corpus), nil)

	c := NewCorpusClassifier(mockStore, modelcache.NewMemoryCache(), 0, modelcache.LoaderConfig{})
	got, err := c.Predict(context.Background(), "coffee")
	require.NoError(t, err)
	assert.Equal(t, "Food", got)
}
