package logging

import (
	"sync"

	"github.com/RafaelMassi/CorridaPass/internal/pkg/env"
	"go.uber.org/zap"
)

var (
	logger *zap.Logger
	once   sync.Once
)

// L returns the process-wide structured logger. Development config in dev,
// JSON production config otherwise.
func L() *zap.Logger {
	once.Do(func() {
		var err error
		if env.IsDev() {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// Sync flushes buffered log entries; call on shutdown.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
