package capture

import (
	"bytes"
	"net/http"

	"github.com/l0p7/cacher/internal/runtime/cache"
)

// Recorder decorates an http.ResponseWriter. Everything the handler writes
// reaches the client immediately and is also buffered so the complete
// response can be stored once the handler returns.
type Recorder struct {
	w      http.ResponseWriter
	limit  int
	buf    bytes.Buffer
	status int
	header http.Header

	wroteHeader bool
	overflowed  bool
	err         error
}

// New wraps w. A positive limit caps the buffered body; a response larger than
// that is still delivered but marked as overflowed.
func New(w http.ResponseWriter, limit int) *Recorder {
	return &Recorder{w: w, limit: limit}
}

// Header returns the wrapped writer's header map so handlers mutate the real
// response.
func (r *Recorder) Header() http.Header {
	return r.w.Header()
}

// WriteHeader snapshots the headers the client is about to receive.
// Informational responses (1xx other than 101) go straight to the client and
// leave the final status open.
func (r *Recorder) WriteHeader(statusCode int) {
	if r.wroteHeader {
		return
	}
	if statusCode >= 100 && statusCode <= 199 && statusCode != http.StatusSwitchingProtocols {
		r.w.WriteHeader(statusCode)
		return
	}
	r.wroteHeader = true
	r.status = statusCode
	r.header = r.w.Header().Clone()
	r.w.WriteHeader(statusCode)
}

func (r *Recorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.w.Write(p)
	if err != nil && r.err == nil {
		r.err = err
	}
	r.buffer(p[:n])
	return n, err
}

func (r *Recorder) buffer(p []byte) {
	if r.overflowed || len(p) == 0 {
		return
	}
	if r.limit > 0 && r.buf.Len()+len(p) > r.limit {
		r.overflowed = true
		r.buf.Reset()
		return
	}
	r.buf.Write(p)
}

// End writes a final chunk, if any, and assembles the entry.
func (r *Recorder) End(p []byte) (cache.Entry, error) {
	if len(p) > 0 {
		if _, err := r.Write(p); err != nil {
			return cache.Entry{}, err
		}
	}
	return r.Entry(), nil
}

// Entry assembles what has been captured so far. A handler that never wrote
// anything produced an empty 200.
func (r *Recorder) Entry() cache.Entry {
	status := r.status
	header := r.header
	if !r.wroteHeader {
		status = http.StatusOK
		header = r.w.Header()
	}
	return cache.NewEntry(status, header, r.buf.Bytes())
}

// StatusCode reports the status sent so far, 200 if none was sent explicitly.
func (r *Recorder) StatusCode() int {
	if !r.wroteHeader {
		return http.StatusOK
	}
	return r.status
}

// Overflowed reports whether the body exceeded the buffer limit.
func (r *Recorder) Overflowed() bool { return r.overflowed }

// Err returns the first error the client connection reported. The captured
// body is incomplete when it is non-nil.
func (r *Recorder) Err() error { return r.err }

// Storable reports whether the capture holds a complete response.
func (r *Recorder) Storable() bool {
	return !r.overflowed && r.err == nil
}

func (r *Recorder) Flush() {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	if f, ok := r.w.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (r *Recorder) Unwrap() http.ResponseWriter { return r.w }
