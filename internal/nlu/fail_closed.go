package nlu

import (
	"context"
	"time"

	"github.com/nestiq/lead-engine/pkg/logging"
)

// FailClosed wraps an extractor with a per-call timeout and converts every
// failure into an empty result. The dialogue engine never sees a raw
// collaborator error; its deterministic fallback extractor fills the gap.
type FailClosed struct {
	inner   Extractor
	timeout time.Duration
	logger  *logging.Logger

	// onFailure, if set, observes each swallowed failure (metrics hook).
	onFailure func(err error)
}

// NewFailClosed wraps inner with the given per-call timeout.
func NewFailClosed(inner Extractor, timeout time.Duration, logger *logging.Logger) *FailClosed {
	if logger == nil {
		logger = logging.Default()
	}
	return &FailClosed{inner: inner, timeout: timeout, logger: logger}
}

// OnFailure registers a callback invoked with each swallowed error.
func (f *FailClosed) OnFailure(fn func(err error)) {
	f.onFailure = fn
}

// Extract calls the inner extractor, bounding it by the timeout. Timeouts
// and errors return an empty map and a nil error.
func (f *FailClosed) Extract(ctx context.Context, text, language string, slotNames []string) (map[string]Extraction, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	done := make(chan struct{})
	var (
		result map[string]Extraction
		err    error
	)
	go func() {
		result, err = f.inner.Extract(callCtx, text, language, slotNames)
		close(done)
	}()

	select {
	case <-callCtx.Done():
		f.logger.Warn("nlu: extraction timed out, falling back", "timeout", f.timeout)
		if f.onFailure != nil {
			f.onFailure(ErrTimeout)
		}
		return map[string]Extraction{}, nil
	case <-done:
	}

	if err != nil {
		f.logger.Warn("nlu: extraction failed, falling back", "error", err)
		if f.onFailure != nil {
			f.onFailure(err)
		}
		return map[string]Extraction{}, nil
	}
	if result == nil {
		result = map[string]Extraction{}
	}
	return result, nil
}
