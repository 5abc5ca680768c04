package idp

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
)

// TransportError is returned by Transport when the underlying round trip fails.
type TransportError struct {
	Err     error
	Timeout bool
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return "transport timeout: " + e.Err.Error()
	}
	return "transport failure: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transport wraps a RoundTripper and remembers the last transport failure,
// flagging whether it was a timeout. Some callers (the oauth2 token sources)
// flatten transport errors into text, so the flag is read back from here.
type Transport struct {
	Base http.RoundTripper

	mu      sync.Mutex
	failure *TransportError
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err == nil {
		return resp, nil
	}

	terr := &TransportError{Err: err, Timeout: isTimeout(req.Context(), err)}
	t.mu.Lock()
	t.failure = terr
	t.mu.Unlock()
	return nil, terr
}

// Failure returns the last recorded transport failure, or nil.
func (t *Transport) Failure() *TransportError {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failure
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
