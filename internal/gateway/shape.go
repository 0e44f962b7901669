package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/shurcooL/githubv4"
)

// responseShape is what a GraphQL response carried next to the error list
// the client hands back. The client's error type drops "path", so it is
// read here from the raw body.
type responseShape struct {
	hasData    bool
	errors     int
	pathErrors int
}

// fieldErrorsOnly reports whether the response had data and every error
// points at a field. Anything else is a document-level rejection.
func (s *responseShape) fieldErrorsOnly() bool {
	return s.hasData && s.errors > 0 && s.pathErrors == s.errors
}

type shapeKey struct{}

func withResponseShape(ctx context.Context) (context.Context, *responseShape) {
	shape := &responseShape{}
	return context.WithValue(ctx, shapeKey{}, shape), shape
}

// shapeTransport records the responseShape of requests whose context asks
// for it. Other requests pass through untouched.
type shapeTransport struct {
	base http.RoundTripper
}

func (t shapeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	shape, ok := req.Context().Value(shapeKey{}).(*responseShape)
	if !ok || resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Path []any `json:"path"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &envelope) != nil {
		// the client reports the decode error itself
		return resp, nil
	}
	shape.hasData = len(envelope.Data) > 0 && !bytes.Equal(envelope.Data, []byte("null"))
	shape.errors = len(envelope.Errors)
	for _, e := range envelope.Errors {
		if len(e.Path) > 0 {
			shape.pathErrors++
		}
	}
	return resp, nil
}

// newGraphQLClient wraps httpClient's transport with shapeTransport and
// points a githubv4 client at url.
func newGraphQLClient(url string, httpClient *http.Client) *githubv4.Client {
	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *httpClient
	wrapped.Transport = shapeTransport{base: base}
	return githubv4.NewEnterpriseClient(url, &wrapped)
}
