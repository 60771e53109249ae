package apiclient

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const HeaderRequestID = "X-Request-ID"

// loggingTransport tags every outbound request with a request ID and logs it at
// debug level. Authorization headers are never logged.
type loggingTransport struct {
	next http.RoundTripper
}

func (t loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	id := r.Header.Get(HeaderRequestID)
	if id == "" {
		id = uuid.NewString()
		r = r.Clone(r.Context())
		r.Header.Set(HeaderRequestID, id)
	}

	start := time.Now()
	resp, err := t.next.RoundTrip(r)
	event := log.Debug().
		Str("request_id", id).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Dur("elapsed", time.Since(start))
	if err != nil {
		event.Err(err).Msg("api request failed")
		return nil, err
	}
	event.Int("status", resp.StatusCode).Msg("api request")
	return resp, nil
}

func newTransport(base http.RoundTripper, tracing bool) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if tracing {
		base = otelhttp.NewTransport(base)
	}
	return loggingTransport{next: base}
}
