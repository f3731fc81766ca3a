package sampler

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func greedyOpts() Options {
	return Options{Temperature: 0, RepeatPenalty: 1}
}

func TestSampleEmptyLogits(t *testing.T) {
	_, err := Sample(nil, nil, greedyOpts(), rand.New(rand.NewSource(1)))
	require.ErrorIs(t, err, ErrEmptyLogits)
}

func TestSampleTemperatureZeroIsArgmax(t *testing.T) {
	logits := []float32{0.1, 5.0, -3.0, 2.0, 4.9}
	id, err := Sample(logits, nil, greedyOpts(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.EqualValues(t, 1, id)
}

func TestTopKEqualsVocabIsIdentity(t *testing.T) {
	// With K >= len(logits) the call must behave exactly as an unrestricted
	// softmax draw: every index remains reachable.
	rng := rand.New(rand.NewSource(7))
	logits := []float32{1, 1, 1, 1, 1}
	seen := make(map[uint32]bool)
	for i := 0; i < 200; i++ {
		cp := append([]float32(nil), logits...)
		opts := Options{Temperature: 1, TopK: len(logits), RepeatPenalty: 1}
		id, err := Sample(cp, nil, opts, rng)
		require.NoError(t, err)
		seen[id] = true
	}
	assert.Len(t, seen, len(logits), "uniform logits with K=V must eventually sample every index")
}

func TestTopKOneAlwaysArgmax(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	logits := []float32{3, 1, 9, 2, 8}
	for i := 0; i < 20; i++ {
		cp := append([]float32(nil), logits...)
		opts := Options{Temperature: 1, TopK: 1, RepeatPenalty: 1}
		id, err := Sample(cp, nil, opts, rng)
		require.NoError(t, err)
		assert.EqualValues(t, 2, id, "top_k=1 must always pick the single largest logit")
	}
}

func TestRepetitionPenaltyDemotesRecentToken(t *testing.T) {
	logits := []float32{5, 5, 5}
	history := []uint32{0}
	opts := Options{Temperature: 0, RepeatPenalty: 2, RepeatLastN: 1}
	id, err := Sample(logits, history, opts, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.NotEqualValues(t, 0, id, "penalized token must no longer win the argmax tie")
}

func TestRepetitionPenaltyDisabledAtOne(t *testing.T) {
	logits := []float32{5, 5, 5}
	history := []uint32{0}
	opts := Options{Temperature: 0, RepeatPenalty: 1, RepeatLastN: 1}
	id, err := Sample(logits, history, opts, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.EqualValues(t, 0, id, "penalty of 1 must be a no-op, leaving the tie-break at index 0")
}

func TestApplyTopKKeepsExactlyKSurvivors(t *testing.T) {
	logits := []float32{4, 1, 9, 2, 8, 0, 7}
	applyTopK(logits, 3)
	survivors := 0
	for _, v := range logits {
		if !mathIsInf(v) {
			survivors++
		}
	}
	assert.Equal(t, 3, survivors)
	assert.False(t, mathIsInf(logits[2]), "index of largest value must survive")
	assert.False(t, mathIsInf(logits[4]), "index of second largest value must survive")
	assert.False(t, mathIsInf(logits[6]), "index of third largest value must survive")
}

func mathIsInf(v float32) bool {
	return v < -1e30
}

func TestStableSoftmaxSumsToOne(t *testing.T) {
	logits := []float32{10, 10, 10, 10}
	sum := stableSoftmaxInPlace(logits)
	var total float32
	for _, v := range logits {
		total += v
	}
	assert.InDelta(t, sum, total, 1e-4)
	for _, v := range logits {
		assert.InDelta(t, float32(1), v/sum*4, 1e-3, "uniform logits must softmax to a uniform distribution")
	}
}
