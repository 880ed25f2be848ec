package locks

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry hands out one FileLock per name for a single lock directory.
// Entries are created on first use and never evicted.
type Registry struct {
	dir          string
	pollInterval time.Duration
	logger       *zap.Logger

	mu    sync.Mutex
	locks map[string]*FileLock
}

// NewRegistry creates a registry rooted at dir. A nil logger disables logging.
func NewRegistry(dir string, pollInterval time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return &Registry{
		dir:          dir,
		pollInterval: pollInterval,
		logger:       logger,
		locks:        make(map[string]*FileLock),
	}
}

// Dir returns the lock directory.
func (r *Registry) Dir() string { return r.dir }

// Resolve returns the handle for name, creating it on first use.
func (r *Registry) Resolve(name string) (*FileLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, exists := r.locks[name]; exists {
		return l, nil
	}

	l, err := NewFileLock(r.dir, name, r.pollInterval)
	if err != nil {
		return nil, err
	}

	r.locks[name] = l
	return l, nil
}

// Names lists every name resolved so far, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.locks))
	for name := range r.locks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
