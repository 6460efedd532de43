package metrics

import (
	"log/slog"
	"time"
)

// Recorder is the integration seam between the HTTP layer and the Store.
// The HTTP layer calls Record exactly once per completed request. Any
// failure while recording is logged and swallowed so that metrics
// collection can never break the request path it observes.
type Recorder struct {
	store  *Store
	logger *slog.Logger
}

// NewRecorder creates a recorder writing into the given store.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// Record builds a request metric and hands it to the store. Callers pass 0
// for byte counts they cannot determine (streamed or absent bodies).
func (r *Recorder) Record(method, path string, status int, elapsed time.Duration, bytesSent, bytesReceived int64) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("failed to record request metrics", "panic", rec)
		}
	}()

	r.store.RecordRequest(RequestMetric{
		Method:        method,
		Path:          path,
		StatusCode:    status,
		ResponseTime:  elapsed.Seconds(),
		BytesSent:     bytesSent,
		BytesReceived: bytesReceived,
	})
}
