package gbm

import (
	"fmt"
	"sort"
)

// Row is one encoded sample. Binary holds the ascending indices of binary
// features that are set; every other binary feature is 0. Dense holds the
// continuous features.
type Row struct {
	Binary []int
	Dense  []float64
}

// Matrix is a batch of rows sharing one layout. Feature f addresses
// Binary when f < BinaryWidth and Dense[f-BinaryWidth] otherwise.
type Matrix struct {
	BinaryWidth int
	DenseWidth  int
	Rows        []Row
}

func (m Matrix) Validate() error {
	for i, r := range m.Rows {
		if err := checkRow(r, m.BinaryWidth, m.DenseWidth); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

func checkRow(r Row, binaryWidth, denseWidth int) error {
	if len(r.Dense) != denseWidth {
		return fmt.Errorf("expected %d dense values, got %d", denseWidth, len(r.Dense))
	}
	for i, idx := range r.Binary {
		if idx < 0 || idx >= binaryWidth {
			return fmt.Errorf("binary index %d out of range [0, %d)", idx, binaryWidth)
		}
		if i > 0 && r.Binary[i-1] >= idx {
			return fmt.Errorf("binary indices must be strictly ascending")
		}
	}
	return nil
}

func (r Row) value(f, binaryWidth int) float64 {
	if f >= binaryWidth {
		return r.Dense[f-binaryWidth]
	}
	i := sort.SearchInts(r.Binary, f)
	if i < len(r.Binary) && r.Binary[i] == f {
		return 1
	}
	return 0
}
