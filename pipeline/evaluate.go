package pipeline

import (
	"context"
	"fmt"
	"sort"

	"sberauto/predictor/models"
)

// Report summarizes how the fitted pipeline does on a labeled table.
type Report struct {
	Rows      int
	Positives int
	Accuracy  float64
	ROCAUC    float64
}

// Evaluate scores every record one at a time, the same way the service does.
func (p *Pipeline) Evaluate(ctx context.Context, records []models.SessionRecord, y []int) (Report, error) {
	if len(records) != len(y) {
		return Report{}, fmt.Errorf("got %d records but %d targets", len(records), len(y))
	}
	if len(records) == 0 {
		return Report{}, nil
	}

	probas := make([]float64, len(records))
	correct := 0
	positives := 0
	for i, rec := range records {
		pred, err := p.Predict(ctx, rec)
		if err != nil {
			return Report{}, fmt.Errorf("record %s: %w", rec.SessionID, err)
		}
		probas[i] = pred.Probability
		if pred.Label == y[i] {
			correct++
		}
		positives += y[i]
	}

	return Report{
		Rows:      len(records),
		Positives: positives,
		Accuracy:  float64(correct) / float64(len(records)),
		ROCAUC:    rocAUC(probas, y),
	}, nil
}

// rocAUC computes the area under the ROC curve via the rank statistic,
// averaging ranks over tied scores. It is 0.5 when one class is absent.
func rocAUC(scores []float64, y []int) float64 {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	ranks := make([]float64, len(scores))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && scores[idx[j+1]] == scores[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	var pos, neg, rankSum float64
	for i, v := range y {
		if v == 1 {
			pos++
			rankSum += ranks[i]
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}
	return (rankSum - pos*(pos+1)/2) / (pos * neg)
}
