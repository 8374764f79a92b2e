// Package pipeline chains feature engineering, preprocessing and the
// classifier into one fitted model.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"sberauto/predictor/features"
	"sberauto/predictor/gbm"
	"sberauto/predictor/models"
	"sberauto/predictor/preprocess"
)

// ErrNotFitted is returned when predicting before Fit or without a loaded
// model.
var ErrNotFitted = errors.New("pipeline is not fitted")

// Prediction is the outcome for one session.
type Prediction struct {
	Label       int
	Probability float64
}

// Pipeline is the complete fitted model. FirstMonths is the per-client
// first visit month seen during training, needed to rebuild first_month
// and month_duration for a single record.
type Pipeline struct {
	Preprocessor *preprocess.ColumnTransformer `json:"preprocessor"`
	Classifier   *gbm.Booster                  `json:"classifier"`
	FirstMonths  features.FirstMonths          `json:"first_months"`

	history features.History
}

// New returns an unfitted pipeline around a configured classifier.
func New(cfg gbm.Config) *Pipeline {
	return &Pipeline{Classifier: gbm.New(cfg)}
}

// WithHistory replaces the first-month source used at prediction time.
func (p *Pipeline) WithHistory(h features.History) *Pipeline {
	p.history = h
	return p
}

func (p *Pipeline) History() features.History {
	if p.history != nil {
		return p.history
	}
	return p.FirstMonths
}

// Fit engineers features over the whole table, fits the preprocessing and
// then the classifier. Classifier verbosity is always turned off.
func (p *Pipeline) Fit(records []models.SessionRecord, y []int, log *zap.Logger) error {
	if p.Classifier == nil {
		return errors.New("pipeline has no classifier")
	}
	if len(records) != len(y) {
		return fmt.Errorf("got %d records but %d targets", len(records), len(y))
	}

	rows, firstMonths := features.Transform(records)
	ct, err := preprocess.Fit(rows)
	if err != nil {
		return fmt.Errorf("failed to fit preprocessing: %w", err)
	}
	m, err := ct.TransformAll(rows)
	if err != nil {
		return fmt.Errorf("failed to encode training rows: %w", err)
	}

	p.Classifier.Config.Verbose = false
	if err := p.Classifier.Fit(m, y, log); err != nil {
		return fmt.Errorf("failed to fit classifier: %w", err)
	}

	p.Preprocessor = ct
	p.FirstMonths = firstMonths
	return nil
}

// Validate checks that a decoded pipeline is consistent end to end: the
// preprocessing matches the row schema and the classifier was trained on
// the layout the preprocessing produces.
func (p *Pipeline) Validate() error {
	if p.Preprocessor == nil || p.Classifier == nil {
		return ErrNotFitted
	}
	if err := p.Preprocessor.Validate(); err != nil {
		return fmt.Errorf("preprocessor: %w", err)
	}
	if err := p.Classifier.Validate(); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	if bw, dw := p.Preprocessor.BinaryWidth(), p.Preprocessor.DenseWidth(); bw != p.Classifier.BinaryWidth || dw != p.Classifier.DenseWidth {
		return fmt.Errorf("classifier layout %d/%d does not match preprocessor layout %d/%d",
			p.Classifier.BinaryWidth, p.Classifier.DenseWidth, bw, dw)
	}
	return nil
}

func (p *Pipeline) encode(ctx context.Context, rec models.SessionRecord) (gbm.Row, error) {
	if p.Preprocessor == nil || p.Classifier == nil || !p.Classifier.Fitted() {
		return gbm.Row{}, ErrNotFitted
	}
	row, err := features.TransformOne(ctx, rec, p.History())
	if err != nil {
		return gbm.Row{}, err
	}
	return p.Preprocessor.Transform(row)
}

// Predict runs one record through the full pipeline.
func (p *Pipeline) Predict(ctx context.Context, rec models.SessionRecord) (Prediction, error) {
	encoded, err := p.encode(ctx, rec)
	if err != nil {
		return Prediction{}, err
	}
	proba, err := p.Classifier.PredictProba(encoded)
	if err != nil {
		return Prediction{}, fmt.Errorf("classifier failed: %w", err)
	}
	label := 0
	if proba > 0.5 {
		label = 1
	}
	return Prediction{Label: label, Probability: proba}, nil
}
