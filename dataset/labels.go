package dataset

import (
	"github.com/samber/lo"

	"sberauto/predictor/models"
)

// TargetEvents are the event actions that count as conversion intent.
var TargetEvents = []string{
	"sub_car_claim_click",
	"sub_car_claim_submit_click",
	"sub_open_dialog_click",
	"sub_custom_question_submit_click",
	"sub_call_number_click",
	"sub_callback_submit_click",
	"sub_submit_success",
	"sub_car_request_submit_click",
}

var targetSet = lo.SliceToMap(TargetEvents, func(e string) (string, struct{}) {
	return e, struct{}{}
})

// IsTarget reports whether action is one of TargetEvents.
func IsTarget(action string) bool {
	_, ok := targetSet[action]
	return ok
}

// Labels maps session id to its binary target. Only sessions that were seen
// in the hits data have an entry.
type Labels map[string]int

// Add folds one hit into the labels.
func (l Labels) Add(h models.Hit) {
	if IsTarget(h.EventAction) {
		l[h.SessionID] = 1
		return
	}
	if _, ok := l[h.SessionID]; !ok {
		l[h.SessionID] = 0
	}
}

// Positives returns the number of sessions labeled 1.
func (l Labels) Positives() int {
	return lo.CountBy(lo.Values(l), func(v int) bool { return v == 1 })
}

// CreateLabels groups hits by session and marks a session 1 if any of its
// hits is a target event.
func CreateLabels(hits []models.Hit) Labels {
	labels := make(Labels)
	for _, h := range hits {
		labels.Add(h)
	}
	return labels
}

// Join keeps the sessions that have a label, in their original order, and
// returns the matching targets.
func Join(sessions []models.SessionRecord, labels Labels) ([]models.SessionRecord, []int) {
	joined := make([]models.SessionRecord, 0, len(labels))
	targets := make([]int, 0, len(labels))
	for _, s := range sessions {
		y, ok := labels[s.SessionID]
		if !ok {
			continue
		}
		joined = append(joined, s)
		targets = append(targets, y)
	}
	return joined, targets
}
