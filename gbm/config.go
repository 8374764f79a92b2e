package gbm

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Config is the booster's hyperparameter set. It is prepared ahead of
// training and loaded from a JSON file; JSON keys follow the names data
// scientists already use for XGBoost.
type Config struct {
	NEstimators    int     `json:"n_estimators"`
	MaxDepth       int     `json:"max_depth"`
	LearningRate   float64 `json:"learning_rate"`
	MinChildWeight float64 `json:"min_child_weight"`
	RegLambda      float64 `json:"reg_lambda"`
	Gamma          float64 `json:"gamma"`
	MaxBin         int     `json:"max_bin"`
	BaseScore      float64 `json:"base_score"`
	Verbose        bool    `json:"verbose"`
}

func DefaultConfig() Config {
	return Config{
		NEstimators:    100,
		MaxDepth:       6,
		LearningRate:   0.3,
		MinChildWeight: 1,
		RegLambda:      1,
		Gamma:          0,
		MaxBin:         256,
		BaseScore:      0.5,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.NEstimators < 1 {
		errs = append(errs, fmt.Errorf("n_estimators must be positive, got %d", c.NEstimators))
	}
	if c.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth))
	}
	if c.LearningRate <= 0 {
		errs = append(errs, fmt.Errorf("learning_rate must be positive, got %g", c.LearningRate))
	}
	if c.MinChildWeight < 0 {
		errs = append(errs, fmt.Errorf("min_child_weight must not be negative, got %g", c.MinChildWeight))
	}
	if c.RegLambda < 0 {
		errs = append(errs, fmt.Errorf("reg_lambda must not be negative, got %g", c.RegLambda))
	}
	if c.Gamma < 0 {
		errs = append(errs, fmt.Errorf("gamma must not be negative, got %g", c.Gamma))
	}
	if c.MaxBin < 2 || c.MaxBin > 65535 {
		errs = append(errs, fmt.Errorf("max_bin must be within [2, 65535], got %d", c.MaxBin))
	}
	if c.BaseScore <= 0 || c.BaseScore >= 1 {
		errs = append(errs, fmt.Errorf("base_score must be within (0, 1), got %g", c.BaseScore))
	}
	return errors.Join(errs...)
}

// LoadConfig reads a JSON config from path. Keys that are absent keep their
// default values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read classifier config: %w", err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode classifier config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid classifier config: %w", err)
	}
	return cfg, nil
}
