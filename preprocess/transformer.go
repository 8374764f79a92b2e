package preprocess

import (
	"errors"
	"fmt"
	"math"

	"sberauto/predictor/features"
	"sberauto/predictor/gbm"
)

// ColumnTransformer applies one encoder per categorical column and one
// scaler per numeric column and lays the results out as a gbm.Row: the
// one-hot blocks first, in schema order, then the scaled numeric values.
type ColumnTransformer struct {
	Categorical []CategoricalEncoder `json:"categorical"`
	Numeric     []NumericScaler      `json:"numeric"`
}

// Fit learns every column transform from the training rows.
func Fit(rows []features.Row) (*ColumnTransformer, error) {
	if len(rows) == 0 {
		return nil, errors.New("cannot fit preprocessing on zero rows")
	}

	ct := &ColumnTransformer{
		Categorical: make([]CategoricalEncoder, len(features.CategoricalColumns)),
		Numeric:     make([]NumericScaler, len(features.NumericColumns)),
	}

	catColumn := make([]*string, len(rows))
	for c := range features.CategoricalColumns {
		for i, r := range rows {
			catColumn[i] = r.Categorical[c]
		}
		ct.Categorical[c] = FitCategorical(catColumn)
	}

	numColumn := make([]float64, len(rows))
	for c := range features.NumericColumns {
		for i, r := range rows {
			numColumn[i] = r.Numeric[c]
		}
		ct.Numeric[c] = FitNumeric(numColumn)
	}
	return ct, nil
}

// BinaryWidth is the total number of one-hot columns.
func (ct *ColumnTransformer) BinaryWidth() int {
	w := 0
	for i := range ct.Categorical {
		w += ct.Categorical[i].Width()
	}
	return w
}

func (ct *ColumnTransformer) DenseWidth() int {
	return len(ct.Numeric)
}

// Validate checks a decoded transformer against the engineered row schema.
func (ct *ColumnTransformer) Validate() error {
	if len(ct.Categorical) != len(features.CategoricalColumns) {
		return fmt.Errorf("expected %d categorical encoders, got %d", len(features.CategoricalColumns), len(ct.Categorical))
	}
	if len(ct.Numeric) != len(features.NumericColumns) {
		return fmt.Errorf("expected %d numeric scalers, got %d", len(features.NumericColumns), len(ct.Numeric))
	}
	for i, s := range ct.Numeric {
		if s.Scale == 0 || math.IsNaN(s.Scale) || math.IsInf(s.Scale, 0) {
			return fmt.Errorf("numeric column %s: invalid scale %v", features.NumericColumns[i], s.Scale)
		}
	}
	return nil
}

// Transform encodes one row.
func (ct *ColumnTransformer) Transform(r features.Row) (gbm.Row, error) {
	if len(r.Categorical) != len(ct.Categorical) || len(r.Numeric) != len(ct.Numeric) {
		return gbm.Row{}, fmt.Errorf("row has %d categorical and %d numeric values, transformer expects %d and %d",
			len(r.Categorical), len(r.Numeric), len(ct.Categorical), len(ct.Numeric))
	}

	out := gbm.Row{
		Binary: make([]int, 0, len(ct.Categorical)),
		Dense:  make([]float64, len(ct.Numeric)),
	}
	offset := 0
	for c := range ct.Categorical {
		enc := &ct.Categorical[c]
		if i, ok := enc.Encode(r.Categorical[c]); ok {
			out.Binary = append(out.Binary, offset+i)
		}
		offset += enc.Width()
	}
	for c, s := range ct.Numeric {
		out.Dense[c] = s.Transform(r.Numeric[c])
	}
	return out, nil
}

// TransformAll encodes a batch into a matrix.
func (ct *ColumnTransformer) TransformAll(rows []features.Row) (gbm.Matrix, error) {
	m := gbm.Matrix{
		BinaryWidth: ct.BinaryWidth(),
		DenseWidth:  ct.DenseWidth(),
		Rows:        make([]gbm.Row, len(rows)),
	}
	for i, r := range rows {
		encoded, err := ct.Transform(r)
		if err != nil {
			return gbm.Matrix{}, fmt.Errorf("row %d: %w", i, err)
		}
		m.Rows[i] = encoded
	}
	return m, nil
}
