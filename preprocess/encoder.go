// Package preprocess holds the fitted column transforms that turn engineered
// rows into the classifier's input layout.
package preprocess

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/samber/lo"
)

// CategoricalEncoder imputes a missing value with the most frequent
// training category and one-hot encodes the result. Categories not seen in
// training encode to all zeros.
type CategoricalEncoder struct {
	Fill       string   `json:"fill"`
	Categories []string `json:"categories"`

	index map[string]int
}

// FitCategorical learns the fill value and the sorted category list from a
// column. Ties for the most frequent value go to the smallest string.
func FitCategorical(column []*string) CategoricalEncoder {
	counts := make(map[string]int)
	for _, v := range column {
		if v != nil {
			counts[*v]++
		}
	}

	categories := lo.Keys(counts)
	sort.Strings(categories)

	var fill string
	best := 0
	for _, c := range categories {
		if counts[c] > best {
			fill, best = c, counts[c]
		}
	}

	e := CategoricalEncoder{Fill: fill, Categories: categories}
	e.buildIndex()
	return e
}

func (e *CategoricalEncoder) buildIndex() {
	e.index = make(map[string]int, len(e.Categories))
	for i, c := range e.Categories {
		e.index[c] = i
	}
}

func (e *CategoricalEncoder) UnmarshalJSON(data []byte) error {
	type plain CategoricalEncoder
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = CategoricalEncoder(p)
	e.buildIndex()
	return nil
}

// Width is the number of one-hot columns this encoder produces.
func (e *CategoricalEncoder) Width() int {
	return len(e.Categories)
}

// Encode returns the position of the hot column, or false for an unknown
// category.
func (e *CategoricalEncoder) Encode(v *string) (int, bool) {
	if len(e.Categories) == 0 {
		return 0, false
	}
	value := e.Fill
	if v != nil {
		value = *v
	}
	i, ok := e.index[value]
	return i, ok
}

// NumericScaler imputes missing values with the training median and then
// standardizes with the training mean and standard deviation.
type NumericScaler struct {
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	Scale  float64 `json:"scale"`
}

// FitNumeric learns imputation and scaling parameters from a column. NaN is
// missing. Scaling statistics are computed after imputation.
func FitNumeric(column []float64) NumericScaler {
	observed := lo.Filter(column, func(v float64, _ int) bool { return !math.IsNaN(v) })
	if len(observed) == 0 {
		return NumericScaler{Scale: 1}
	}
	sort.Float64s(observed)

	var median float64
	n := len(observed)
	if n%2 == 1 {
		median = observed[n/2]
	} else {
		median = (observed[n/2-1] + observed[n/2]) / 2
	}

	s := NumericScaler{Median: median}
	var sum float64
	for _, v := range column {
		sum += s.impute(v)
	}
	s.Mean = sum / float64(len(column))

	var sq float64
	for _, v := range column {
		d := s.impute(v) - s.Mean
		sq += d * d
	}
	s.Scale = math.Sqrt(sq / float64(len(column)))
	if s.Scale == 0 {
		s.Scale = 1
	}
	return s
}

func (s NumericScaler) impute(v float64) float64 {
	if math.IsNaN(v) {
		return s.Median
	}
	return v
}

func (s NumericScaler) Transform(v float64) float64 {
	return (s.impute(v) - s.Mean) / s.Scale
}
