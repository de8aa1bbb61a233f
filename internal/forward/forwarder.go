// Package forward pushes newly committed readings to a downstream endpoint.
//
// Forwarding is strictly best effort: the batch is offered once after the
// storage transaction commits, the outcome is reported as a boolean, and a
// failure never rolls back or retries anything.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mapadevsports/uwbv2/internal/db"
	"github.com/mapadevsports/uwbv2/internal/httputil"
	"github.com/mapadevsports/uwbv2/internal/monitoring"
)

// DefaultTimeout bounds one forwarding attempt.
const DefaultTimeout = 3 * time.Second

// Forwarder offers committed readings downstream and reports success.
type Forwarder interface {
	Forward(ctx context.Context, readings []*db.Reading) bool
}

// batchEnvelope is the wire shape of one forwarded batch.
type batchEnvelope struct {
	BatchID  string        `json:"batch_id"`
	Readings []*db.Reading `json:"readings"`
}

// HTTPForwarder posts reading batches as JSON to a fixed URL.
type HTTPForwarder struct {
	client  httputil.HTTPClient
	url     string
	timeout time.Duration
}

// NewHTTPForwarder creates a forwarder posting to url. A nil client defaults
// to a standard client; a non-positive timeout defaults to DefaultTimeout.
func NewHTTPForwarder(client httputil.HTTPClient, url string, timeout time.Duration) *HTTPForwarder {
	if client == nil {
		client = httputil.NewStandardClient(nil)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPForwarder{client: client, url: url, timeout: timeout}
}

// Forward posts the batch and reports whether the endpoint accepted it.
// Errors are logged, never returned: committed storage stays committed no
// matter what happens here.
func (f *HTTPForwarder) Forward(ctx context.Context, readings []*db.Reading) bool {
	if len(readings) == 0 {
		return false
	}

	env := batchEnvelope{BatchID: uuid.NewString(), Readings: readings}
	body, err := json.Marshal(env)
	if err != nil {
		monitoring.Logf("forward: marshal batch %s: %v", env.BatchID, err)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		monitoring.Logf("forward: build request for batch %s: %v", env.BatchID, err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		monitoring.Logf("forward: batch %s (%d readings) failed: %v", env.BatchID, len(readings), err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		monitoring.Logf("forward: batch %s rejected with status %d", env.BatchID, resp.StatusCode)
		return false
	}
	return true
}

// Disabled is a Forwarder for deployments without a downstream endpoint. It
// always reports false without attempting anything.
type Disabled struct{}

// Forward reports false.
func (Disabled) Forward(context.Context, []*db.Reading) bool { return false }
