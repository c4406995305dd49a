package logging

import (
	"go.uber.org/zap"
)

var Logger *zap.SugaredLogger

// Init builds the process logger. Debug mode switches to the development
// config with debug-level output; otherwise info and above on the console.
func Init(debug bool) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Encoding = "console"
	logger, err := cfg.Build()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	Logger = logger.Sugar()
}

// L returns the process logger, initializing a default one if Init was
// never called (keeps library packages usable from tests).
func L() *zap.SugaredLogger {
	if Logger == nil {
		Init(false)
	}
	return Logger
}
