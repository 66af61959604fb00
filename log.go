package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger is replaced by initLogger at startup; tests keep the no-op logger.
var logger = zap.NewNop()

func initLogger(verbose bool) error {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = []string{"stderr"}
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := config.Build()
	if err != nil {
		return err
	}
	logger = l
	return nil
}

func zapCombo(key string, combo []ModifierID) zap.Field {
	ids := make([]int, len(combo))
	for i, id := range combo {
		ids[i] = int(id)
	}
	return zap.Ints(key, ids)
}
