// Package generate drives the prefill/decode loop: encode a prompt,
// forward it through the model once, then forward one new token at a
// time, sampling and decoding as it goes, until a stop token or the
// caller's context is cancelled.
package generate

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"

	bitnet "github.com/m96-chan/0xBitNet-sub000"
	"github.com/m96-chan/0xBitNet-sub000/nn"
	"github.com/m96-chan/0xBitNet-sub000/sampler"
)

// Options bundles the knobs a single generation run honors, matching
// spec.md §4.11's {max_tokens, temperature, top_k, repeat_penalty,
// repeat_last_n} contract. The stop signal itself is modeled as the
// context.Context passed to Generate, not a field here.
type Options struct {
	MaxTokens     int
	Temperature   float32
	TopK          int
	RepeatPenalty float32
	RepeatLastN   int
}

// Token is one item of a Generate stream: either a decoded text fragment
// or a terminal error. The channel closes after the first Err, or after
// a clean stop.
type Token struct {
	Text string
	Err  error
}

// Controller owns the compiled model, its KV caches, and the tokenizer
// collaborator needed to turn prompts into ids and ids back into text.
type Controller struct {
	Model     *nn.Model
	Caches    *bitnet.KVCacheSet
	Tokenizer Tokenizer
	Rng       *rand.Rand
}

// NewController wires a model, its cache set, and a tokenizer together.
// rng may be nil, in which case a fresh source seeded with 1 is used, so
// runs without an explicit rng all draw the same sequence.
func NewController(model *nn.Model, caches *bitnet.KVCacheSet, tok Tokenizer, rng *rand.Rand) *Controller {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Controller{Model: model, Caches: caches, Tokenizer: tok, Rng: rng}
}

// Generate tokenizes prompt, runs prefill, then streams decoded text
// fragments on the returned channel until max_tokens, a stop token, or
// ctx cancellation ends the run.
func (c *Controller) Generate(ctx context.Context, prompt string, opts Options) <-chan Token {
	out := make(chan Token)
	go func() {
		defer close(out)
		ids, err := c.Tokenizer.EncodeText(prompt)
		if err != nil {
			out <- Token{Err: fmt.Errorf("generate: encode prompt: %w", err)}
			return
		}
		c.run(ctx, ids, opts, out)
	}()
	return out
}

// GenerateChat renders messages through the tokenizer's chat template
// before running the same prefill/decode loop as Generate.
func (c *Controller) GenerateChat(ctx context.Context, messages []Message, opts Options) <-chan Token {
	out := make(chan Token)
	go func() {
		defer close(out)
		ids, err := c.Tokenizer.EncodeChat(messages)
		if err != nil {
			out <- Token{Err: fmt.Errorf("generate: encode chat: %w", err)}
			return
		}
		c.run(ctx, ids, opts, out)
	}()
	return out
}

func (c *Controller) run(ctx context.Context, promptIDs []uint32, opts Options, out chan<- Token) {
	c.Caches.Reset()

	history := append([]uint32(nil), promptIDs...)

	logits, err := c.forward(ctx, promptIDs)
	if err != nil {
		out <- Token{Err: fmt.Errorf("generate: prefill: %w", err)}
		return
	}

	eot, hasEOT := c.Tokenizer.EndOfTurn()
	eos := c.Tokenizer.EOS()

	for emitted := 0; emitted < opts.MaxTokens; emitted++ {
		if err := ctx.Err(); err != nil {
			out <- Token{Err: fmt.Errorf("generate: %w: %w", bitnet.ErrCancelled, err)}
			return
		}

		sampleOpts := sampler.Options{
			Temperature:   opts.Temperature,
			TopK:          opts.TopK,
			RepeatPenalty: opts.RepeatPenalty,
			RepeatLastN:   opts.RepeatLastN,
		}
		id, err := sampler.Sample(logits, history, sampleOpts, c.Rng)
		if err != nil {
			out <- Token{Err: fmt.Errorf("generate: sample: %w", err)}
			return
		}

		if id == eos || (hasEOT && id == eot) {
			return
		}

		text, err := c.Tokenizer.Decode(id)
		if err != nil {
			out <- Token{Err: fmt.Errorf("generate: decode token %d: %w", id, err)}
			return
		}
		out <- Token{Text: text}
		history = append(history, id)

		if emitted == opts.MaxTokens-1 {
			return
		}

		logits, err = c.forward(ctx, []uint32{id})
		if err != nil {
			out <- Token{Err: fmt.Errorf("generate: decode step: %w", err)}
			return
		}
	}
}

// forward runs one model step, submits it, and reads the resulting
// logits back into a fresh host slice.
func (c *Controller) forward(ctx context.Context, tokenIDs []uint32) ([]float32, error) {
	enc := c.Model.Dev.NewCommandEncoder()
	logitsBuf, err := c.Model.Forward(ctx, enc, tokenIDs)
	if err != nil {
		return nil, err
	}
	if err := enc.Submit(ctx); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	defer c.Model.Pool.Release(logitsBuf)

	raw := make([]byte, c.Model.Config.VocabSize*4)
	if err := logitsBuf.Read(ctx, raw); err != nil {
		return nil, fmt.Errorf("read logits: %w", err)
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}
