// Package logger provides module-tagged structured loggers built on zap.
package logger

import (
	"sync"

	"go.uber.org/zap"
)

// Module names used across the gateway and parser daemon.
const (
	ModuleProxy  = "proxy"
	ModuleCache  = "cache"
	ModuleHealth = "health"
	ModuleSync   = "sync"
	ModuleParser = "parser"
	ModuleStream = "stream"
	ModuleConfig = "config"
	ModuleDB     = "db"
)

var (
	mu      sync.Mutex
	base    *zap.Logger
	cached  = map[string]*zap.SugaredLogger{}
)

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	base = l
}

// SetBase swaps the underlying zap logger, e.g. to a development logger in tests.
func SetBase(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	cached = map[string]*zap.SugaredLogger{}
}

// NewModuleLogger returns a cached logger tagged with the given module name.
func NewModuleLogger(module string) *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := cached[module]; ok {
		return l
	}
	l := base.With(zap.String("module", module)).Sugar()
	cached[module] = l
	return l
}
