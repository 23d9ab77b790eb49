package converter

import (
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Report collects recoverable problems found during a conversion.
type Report struct {
	mu       sync.Mutex
	err      error
	warnings []string
}

// Add records a recoverable error.
func (r *Report) Add(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = multierr.Append(r.err, err)
}

// Warn records a problem that is not an error by itself, such as a skin without weights.
func (r *Report) Warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, msg)
}

// Err returns all recorded errors combined, or nil.
func (r *Report) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Report) Errors() []error {
	return multierr.Errors(r.Err())
}

func (r *Report) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.warnings...)
}

func (r *Report) Empty() bool {
	return r.Err() == nil && len(r.Warnings()) == 0
}

func (r *Report) Log(logger *zap.Logger) {
	for _, err := range r.Errors() {
		logger.Warn("skipped", zap.Error(err))
	}
	for _, w := range r.Warnings() {
		logger.Warn(w)
	}
}
