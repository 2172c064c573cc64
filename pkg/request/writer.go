package request

import (
	"errors"
	"net/http"
)

// ErrInternalServer is the message returned when a handler panics.
var ErrInternalServer = errors.New("internal server error")

// ClientWriter wraps a http.ResponseWriter and records the status code
// written to it.
type ClientWriter struct {
	http.ResponseWriter
	statusCode int
}

// NewClientWriter creates a new ClientWriter.
func NewClientWriter(w http.ResponseWriter) *ClientWriter {
	return &ClientWriter{
		ResponseWriter: w,
	}
}

func (w *ClientWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *ClientWriter) Write(b []byte) (int, error) {
	if w.statusCode == 0 {
		// Writing a body without an explicit header implies a 200.
		w.statusCode = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// StatusCode returns the status code written to the writer, or 200 if
// nothing has been written yet.
func (w *ClientWriter) StatusCode() int {
	if w.statusCode == 0 {
		return http.StatusOK
	}
	return w.statusCode
}
