package classify

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/castlemilk/pfinance/analytics/internal/analytics"
	"github.com/jbrukh/bayesian"
)

// MinExamples is the smallest corpus a model is trained from.
const MinExamples = 10

// Example is one labeled description.
type Example struct {
	Text     string
	Category string
}

// NaiveBayes is a multinomial naive Bayes model over TF-IDF weighted terms.
type NaiveBayes struct {
	classifier *bayesian.Classifier
	classes    []bayesian.Class
}

// Train fits a model on corpus. It needs at least MinExamples examples that
// span two or more categories.
func Train(ctx context.Context, corpus []Example) (*NaiveBayes, error) {
	if len(corpus) < MinExamples {
		return nil, analytics.UntrainedModelError(
			"not enough data to train the model: %d labeled examples, at least %d required", len(corpus), MinExamples)
	}

	seen := make(map[string]struct{})
	for _, ex := range corpus {
		seen[ex.Category] = struct{}{}
	}
	if len(seen) < 2 {
		return nil, analytics.UntrainedModelError("need at least two categories, have %d", len(seen))
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	// Sorted classes make ties resolve to the alphabetically first label.
	sort.Strings(names)
	classes := make([]bayesian.Class, len(names))
	for i, name := range names {
		classes[i] = bayesian.Class(name)
	}

	classifier := bayesian.NewClassifierTfIdf(classes...)
	for i, ex := range corpus {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		tokens := Tokenize(ex.Text)
		if len(tokens) == 0 {
			continue
		}
		classifier.Learn(tokens, bayesian.Class(ex.Category))
	}
	classifier.ConvertTermsFreqToTfIdf()

	return &NaiveBayes{classifier: classifier, classes: classes}, nil
}

// Predict returns the most probable category for text.
func (m *NaiveBayes) Predict(ctx context.Context, text string) (string, error) {
	_, best, _ := m.classifier.LogScores(Tokenize(text))
	return string(m.classes[best]), nil
}

// Categories lists the labels the model can predict.
func (m *NaiveBayes) Categories() []string {
	out := make([]string, len(m.classes))
	for i, c := range m.classes {
		out[i] = string(c)
	}
	return out
}

// MarshalBinary serializes the model.
func (m *NaiveBayes) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.classifier.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize classifier: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalNaiveBayes restores a model written by MarshalBinary.
func UnmarshalNaiveBayes(data []byte) (*NaiveBayes, error) {
	classifier, err := bayesian.NewClassifierFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to load classifier: %w", err)
	}
	if len(classifier.Classes) < 2 {
		return nil, fmt.Errorf("classifier has %d classes", len(classifier.Classes))
	}
	return &NaiveBayes{classifier: classifier, classes: classifier.Classes}, nil
}
