// Package sampler turns a row of single-precision logits into a token id.
// It is the one host-synchronous numeric stage in the pipeline: no device
// dispatch crosses this package's boundary, only plain Go over the slice
// the model driver read back from the accelerator.
package sampler

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/m96-chan/0xBitNet-sub000/util/slicex"
)

// ErrEmptyLogits is returned when Sample is called with a zero-length
// logits slice, which carries no candidate token.
var ErrEmptyLogits = errors.New("sampler: empty logits")

// Options configures one Sample call. Zero-value Options is NOT a usable
// default — Temperature must be set explicitly (0 means argmax, 1 means
// unscaled), and TopK <= 0 is treated as "no restriction" (K = V).
type Options struct {
	Temperature   float32
	TopK          int
	RepeatPenalty float32 // 1 disables the penalty
	RepeatLastN   int
}

// Sample applies repetition penalty, temperature scaling, top-K, and an
// inverse-CDF multinomial draw to logits (mutated in place as scratch
// space), consulting history for the repetition window. rng supplies the
// draw's randomness; callers wanting reproducible output pass a seeded
// *rand.Rand.
func Sample(logits []float32, history []uint32, opts Options, rng *rand.Rand) (uint32, error) {
	if len(logits) == 0 {
		return 0, ErrEmptyLogits
	}

	applyRepetitionPenalty(logits, history, opts.RepeatLastN, opts.RepeatPenalty)

	if opts.Temperature == 0 {
		return uint32(argmax(logits)), nil
	}
	if opts.Temperature != 1 {
		scaleByTemperature(logits, opts.Temperature)
	}

	k := opts.TopK
	if k <= 0 || k >= len(logits) {
		k = len(logits)
	} else {
		applyTopK(logits, k)
	}

	sum := stableSoftmaxInPlace(logits)
	return drawFromCumulative(logits, sum, rng), nil
}

// applyRepetitionPenalty divides down (or multiplies up, for non-positive
// logits) each id appearing in the trailing repeatLastN of history. A
// penalty of 1 or a non-positive window is a no-op.
func applyRepetitionPenalty(logits []float32, history []uint32, repeatLastN int, penalty float32) {
	if penalty == 1 || repeatLastN <= 0 || len(history) == 0 {
		return
	}
	start := len(history) - repeatLastN
	if start < 0 {
		start = 0
	}
	seen := make(map[uint32]bool, len(history)-start)
	for _, id := range history[start:] {
		if int(id) >= len(logits) || seen[id] {
			continue
		}
		seen[id] = true
		if logits[id] > 0 {
			logits[id] /= penalty
		} else {
			logits[id] *= penalty
		}
	}
}

func scaleByTemperature(logits []float32, temperature float32) {
	for i := range logits {
		logits[i] /= temperature
	}
}

func argmax(logits []float32) int {
	return floats.MaxIdx(toFloat64(logits))
}

// toFloat64 widens logits into a scratch buffer, since gonum/floats only
// operates over []float64 and the sampling hot path otherwise stays in
// float32 throughout.
func toFloat64(logits []float32) []float64 {
	out := make([]float64, len(logits))
	for i, v := range logits {
		out[i] = float64(v)
	}
	return out
}

// applyTopK keeps the k largest logits and sets every other entry to
// negative infinity, using a k-element min-heap over indices so the scan
// past the first k elements costs O(log k) per candidate rather than a
// full sort.
func applyTopK(logits []float32, k int) {
	h := newMinHeap(k)
	for i := 0; i < k; i++ {
		h.push(i, logits[i])
	}
	for i := k; i < len(logits); i++ {
		if logits[i] > logits[h.rootValue()] {
			h.replaceRoot(i, logits[i])
		}
	}
	threshold := logits[h.rootValue()]
	for i := range logits {
		if logits[i] < threshold {
			logits[i] = float32(math.Inf(-1))
		}
	}
}

// minHeap is a fixed-capacity binary min-heap keyed on logit value,
// storing the owning index alongside so the caller can recover which
// token a surviving slot belongs to.
type minHeap struct {
	idx []int
	val []float32
}

func newMinHeap(capacity int) *minHeap {
	return &minHeap{idx: make([]int, 0, capacity), val: make([]float32, 0, capacity)}
}

func (h *minHeap) push(i int, v float32) {
	h.idx = append(h.idx, i)
	h.val = append(h.val, v)
	h.siftUp(len(h.val) - 1)
}

func (h *minHeap) rootValue() int { return h.idx[0] }

func (h *minHeap) replaceRoot(i int, v float32) {
	h.idx[0] = i
	h.val[0] = v
	h.siftDown(0)
}

func (h *minHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.val[parent] <= h.val[i] {
			return
		}
		h.swap(parent, i)
		i = parent
	}
}

func (h *minHeap) siftDown(i int) {
	n := len(h.val)
	for {
		left, right := 2*i+1, 2*i+2
		smallest := i
		if left < n && h.val[left] < h.val[smallest] {
			smallest = left
		}
		if right < n && h.val[right] < h.val[smallest] {
			smallest = right
		}
		if smallest == i {
			return
		}
		h.swap(smallest, i)
		i = smallest
	}
}

func (h *minHeap) swap(a, b int) {
	h.idx[a], h.idx[b] = h.idx[b], h.idx[a]
	h.val[a], h.val[b] = h.val[b], h.val[a]
}

// stableSoftmaxInPlace replaces logits with their softmax weights
// (unnormalized by count, normalized by the returned sum) after
// subtracting the row max for numerical stability. The sum is accumulated
// via gonum/floats.Sum rather than a hand-rolled running total.
func stableSoftmaxInPlace(logits []float32) float32 {
	m := logits[argmax(logits)]
	widened := make([]float64, len(logits))
	for i, v := range logits {
		e := float32(math.Exp(float64(v - m)))
		logits[i] = e
		widened[i] = float64(e)
	}
	return float32(floats.Sum(widened))
}

// drawFromCumulative draws u uniform in [0, sum), turns weights into its
// own running-total prefix sum in place, and binary-searches it for the
// draw's landing index rather than scanning linearly.
func drawFromCumulative(weights []float32, sum float32, rng *rand.Rand) uint32 {
	u := rng.Float32() * sum

	var running float32
	for i, w := range weights {
		running += w
		weights[i] = running
	}

	idx := slicex.UpperBound(weights, u)
	if idx >= len(weights) {
		idx = len(weights) - 1
	}
	return uint32(idx)
}
