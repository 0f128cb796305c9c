package detections

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tutortoise/dog-breed-detector/models"
)

var abcd = NewLabelSet([]string{"a", "b", "c", "d"})

func TestTop1FirstMaximumWins(t *testing.T) {
	p, err := Top1(abcd, []float32{0.1, 0.9, 0.9, 0.2})
	require.NoError(t, err)
	assert.Equal(t, "b", p.Label)
	assert.Equal(t, 1, p.Index)
	assert.InDelta(t, 90.0, p.Confidence, 1e-4)
}

func TestTop1Unclamped(t *testing.T) {
	p, err := Top1(abcd, []float32{-3, -2, -0.5, -1})
	require.NoError(t, err)
	assert.Equal(t, "c", p.Label)
	assert.InDelta(t, -50.0, p.Confidence, 1e-4)

	p, err = Top1(abcd, []float32{0, 7.5, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, "b", p.Label)
	assert.InDelta(t, 750.0, p.Confidence, 1e-3)
}

func TestTop1SkipsNaN(t *testing.T) {
	nan := float32(math.NaN())
	p, err := Top1(abcd, []float32{nan, 0.2, nan, 0.1})
	require.NoError(t, err)
	assert.Equal(t, "b", p.Label)

	_, err = Top1(abcd, []float32{nan, nan, nan, nan})
	var inferenceErr *models.InferenceError
	assert.True(t, errors.As(err, &inferenceErr))
}

func TestTop1LengthMismatch(t *testing.T) {
	for _, scores := range [][]float32{{0.5, 0.5}, {1, 2, 3, 4, 5}, nil} {
		_, err := Top1(abcd, scores)
		var inferenceErr *models.InferenceError
		assert.True(t, errors.As(err, &inferenceErr), "scores %v", scores)
	}
}

func TestRank(t *testing.T) {
	scores := []float32{0.1, 0.9, 0.9, 0.2}

	ranked, err := Rank(abcd, scores, 3)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"b", "c", "d"}, []string{ranked[0].Label, ranked[1].Label, ranked[2].Label})

	top, err := Top1(abcd, scores)
	require.NoError(t, err)
	assert.Equal(t, top, ranked[0])

	all, err := Rank(abcd, scores, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "a", all[3].Label)

	all, err = Rank(abcd, scores, 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestRankNaNLast(t *testing.T) {
	nan := float32(math.NaN())
	ranked, err := Rank(abcd, []float32{nan, 0.3, 0.4, nan}, 0)
	require.NoError(t, err)
	assert.Equal(t, "c", ranked[0].Label)
	assert.Equal(t, "b", ranked[1].Label)
	assert.Equal(t, "a", ranked[2].Label)
	assert.Equal(t, "d", ranked[3].Label)
}

func TestRankLengthMismatch(t *testing.T) {
	_, err := Rank(abcd, []float32{1}, 1)
	var inferenceErr *models.InferenceError
	assert.True(t, errors.As(err, &inferenceErr))
}
