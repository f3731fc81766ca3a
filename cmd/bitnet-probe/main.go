// Command bitnet-probe inspects a GGUF checkpoint's resolved model
// configuration without running inference, for checking a converted file
// before pointing a real generation run at it.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	bitnet "github.com/m96-chan/0xBitNet-sub000"
	"github.com/m96-chan/0xBitNet-sub000/util/signalx"
)

func main() {
	modelPath := flag.String("model", "", "path to a GGUF checkpoint")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	logger := logrus.New()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	bitnet.SetLogger(logger)

	if *modelPath == "" {
		fmt.Fprintln(os.Stderr, "bitnet-probe: -model is required")
		os.Exit(2)
	}

	// Registered purely so a Ctrl-C during a large metadata parse produces a
	// clean exit instead of an abrupt kill; ParseGGUFFile itself has no
	// cancellable phase here, this context exists for callers that wrap
	// probe with a longer-lived run.
	_ = signalx.Handler()

	if err := run(*modelPath, logger); err != nil {
		logger.WithError(err).Error("probe failed")
		os.Exit(1)
	}
}

func run(path string, logger *logrus.Logger) error {
	gf, err := bitnet.ParseGGUFFile(path)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	mc, err := gf.ResolveModelConfig()
	if err != nil {
		return fmt.Errorf("resolve model config: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"hidden_size":        mc.HiddenSize,
		"intermediate_size":  mc.IntermediateSize,
		"num_hidden_layers":  mc.NumHiddenLayers,
		"num_attention_heads": mc.NumAttentionHeads,
		"num_kv_heads":       mc.NumKeyValueHeads,
		"vocab_size":         mc.VocabSize,
		"ffn_kind":           mc.FFN,
		"head_kind":          mc.Head,
	}).Info("resolved model config")

	fmt.Printf("hidden_size=%d intermediate_size=%d layers=%d heads=%d/%d vocab=%d ffn=%v head=%v\n",
		mc.HiddenSize, mc.IntermediateSize, mc.NumHiddenLayers,
		mc.NumAttentionHeads, mc.NumKeyValueHeads, mc.VocabSize, mc.FFN, mc.Head)
	return nil
}
