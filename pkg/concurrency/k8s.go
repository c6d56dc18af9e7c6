package concurrency

import (
	"runtime"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
)

// InitializeForKubernetes aligns GOMAXPROCS with the container CPU quota.
// The returned func restores the previous setting.
func InitializeForKubernetes(logger *zap.Logger) func() {
	if logger == nil {
		logger = zap.NewNop()
	}
	undo, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Debugf))
	if err != nil {
		logger.Warn("Could not apply CPU quota to GOMAXPROCS", zap.Error(err))
		return func() {}
	}
	logger.Debug("GOMAXPROCS set", zap.Int("procs", runtime.GOMAXPROCS(0)))
	return undo
}
