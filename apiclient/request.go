package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request describes a call independently of any *http.Request. Each send builds a
// fresh *http.Request from it, so a Request is never mutated by the client and can
// be reused or logged safely.
type Request struct {
	Method string
	Path   string // relative to the API base URL, e.g. "issues/"
	Query  url.Values
	Body   any // JSON-encoded when non-nil
}

// pendingRequest threads retry state through a single call. attempt is 0 for the
// first send and 1 for the one resend allowed after a token refresh.
type pendingRequest struct {
	req     *Request
	body    []byte
	attempt int
	// bearer overrides the stored access token on a resend with the token the
	// refresh just returned
	bearer string
}

func newPendingRequest(req *Request) (pendingRequest, error) {
	p := pendingRequest{req: req}
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return p, fmt.Errorf("[Request] encode body for %s %s: %w", req.Method, req.Path, err)
		}
		p.body = b
	}
	return p, nil
}

// retried returns the resend of p carrying the refreshed access token
func (p pendingRequest) retried(accessToken string) pendingRequest {
	p.attempt = 1
	p.bearer = accessToken
	return p
}

func (p pendingRequest) build(ctx context.Context, base *url.URL) (*http.Request, error) {
	ref, err := url.Parse(strings.TrimPrefix(p.req.Path, "/"))
	if err != nil {
		return nil, fmt.Errorf("[Request] invalid path %q: %w", p.req.Path, err)
	}
	u := base.ResolveReference(ref)
	if len(p.req.Query) > 0 {
		u.RawQuery = p.req.Query.Encode()
	}

	var body io.Reader
	if p.body != nil {
		body = bytes.NewReader(p.body)
	}
	method := p.req.Method
	if method == "" {
		method = http.MethodGet
	}

	r, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("[Request] build %s %s: %w", method, p.req.Path, err)
	}
	r.Header.Set("Accept", "application/json")
	if p.body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	return r, nil
}
