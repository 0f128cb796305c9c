package detections

import (
	"fmt"
	"math"
	"slices"

	"github.com/Tutortoise/dog-breed-detector/models"
)

// Top1 pairs scores with labels by index and returns the highest score as a
// percentage. Ties go to the lowest index. NaN scores never win.
func Top1(labels LabelSet, scores []float32) (models.Prediction, error) {
	if err := checkScores(labels, scores); err != nil {
		return models.Prediction{}, err
	}

	best := -1
	for i, s := range scores {
		if isNaN(s) {
			continue
		}
		if best < 0 || s > scores[best] {
			best = i
		}
	}
	if best < 0 {
		return models.Prediction{}, &models.InferenceError{Message: "score vector holds only NaN values"}
	}
	return prediction(labels, best, scores[best]), nil
}

// Rank returns the k highest scores, best first. The sort is stable, so the
// first element always equals Top1. k <= 0 returns every label.
func Rank(labels LabelSet, scores []float32, k int) ([]models.Prediction, error) {
	if _, err := Top1(labels, scores); err != nil {
		return nil, err
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return compareScores(scores[b], scores[a])
	})

	if k <= 0 || k > len(order) {
		k = len(order)
	}
	out := make([]models.Prediction, k)
	for i, idx := range order[:k] {
		out[i] = prediction(labels, idx, scores[idx])
	}
	return out, nil
}

func checkScores(labels LabelSet, scores []float32) error {
	if len(scores) == 0 {
		return &models.InferenceError{Message: "empty score vector"}
	}
	if len(scores) != labels.Len() {
		return &models.InferenceError{
			Message: fmt.Sprintf("score vector has %d entries, label set has %d", len(scores), labels.Len()),
		}
	}
	return nil
}

func prediction(labels LabelSet, i int, score float32) models.Prediction {
	return models.Prediction{
		Label:      labels.At(i),
		Confidence: score * PercentScale,
		Index:      i,
	}
}

// compareScores orders NaN below every number.
func compareScores(a, b float32) int {
	switch an, bn := isNaN(a), isNaN(b); {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func isNaN(f float32) bool {
	return math.IsNaN(float64(f))
}
