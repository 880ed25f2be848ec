package core

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ebogdum/projlock/config"
	corelog "github.com/ebogdum/projlock/core/log"
	"github.com/ebogdum/projlock/locks"
)

// lockDirName is the lock directory inside the project build directory
const lockDirName = "locks"

// ObserverFactory builds the wait observer for one contended lock from the
// lock name and the rendered waiting message.
type ObserverFactory func(name, message string) locks.WaitFunc

// Engine represents one project's lock context. It owns the lock registry
// for the project's build directory and applies the configured timeouts.
type Engine struct {
	cfg        config.AppConfig
	registry   *locks.Registry
	translator Translator
	observer   ObserverFactory
	logger     *zap.Logger
}

// NewEngine creates a new engine for the configured project. A nil
// translator uses DefaultCatalog and a nil observer logs waits through logger.
func NewEngine(
	cfg config.AppConfig,
	translator Translator,
	observer ObserverFactory,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if translator == nil {
		translator = DefaultCatalog
	}

	e := &Engine{
		cfg:        cfg,
		translator: translator,
		logger:     logger,
	}
	e.registry = locks.NewRegistry(e.LockPath(), cfg.Lock.PollInterval, logger)

	if observer == nil {
		observer = e.logObserver
	}
	e.observer = observer

	return e
}

// BuildPath returns the project build directory.
func (e *Engine) BuildPath() string {
	if filepath.IsAbs(e.cfg.Project.BuildDir) {
		return filepath.Clean(e.cfg.Project.BuildDir)
	}
	return filepath.Join(e.cfg.Project.Dir, e.cfg.Project.BuildDir)
}

// LockPath returns the directory holding the lock files.
func (e *Engine) LockPath() string {
	return filepath.Join(e.BuildPath(), lockDirName)
}

// Registry returns the engine's lock registry.
func (e *Engine) Registry() *locks.Registry {
	return e.registry
}

func (e *Engine) logObserver(name, message string) locks.WaitFunc {
	l, err := e.registry.Resolve(name)
	path := ""
	if err == nil {
		path = corelog.SanitizePath(l.Path(), corelog.ModeFromEnv())
	}

	return corelog.WaitObserver(e.logger, message, []zap.Field{
		zap.String("lock", name),
		zap.String("path", path),
	}, e.cfg.Lock.WaitProgressInterval)
}
