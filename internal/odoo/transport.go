package odoo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Odoo exposes its XML-RPC API on two endpoints: "common" for authentication
// and version probes, "object" for model calls via execute_kw.
const (
	endpointCommon = "common"
	endpointObject = "object"
)

// maxResponseBytes caps how much of a remote response is read, protecting
// against a misbehaving server streaming unbounded data.
const maxResponseBytes = 16 << 20 // 16MB

// Transport issues one XML-RPC call and returns the decoded result. Remote
// faults are returned as *Fault errors. Implementations must be safe for
// concurrent use.
type Transport interface {
	Call(ctx context.Context, endpoint, method string, params []interface{}) (interface{}, error)
}

type httpTransport struct {
	base   string
	client *http.Client
}

func newHTTPTransport(rawURL string, timeout time.Duration) *httpTransport {
	return &httpTransport{
		base:   strings.TrimRight(rawURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

func (t *httpTransport) Call(ctx context.Context, endpoint, method string, params []interface{}) (interface{}, error) {
	body, err := marshalMethodCall(method, params)
	if err != nil {
		return nil, fmt.Errorf("xmlrpc: encode %s: %w", method, err)
	}

	url := t.base + "/xmlrpc/2/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("xmlrpc: build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("xmlrpc: call %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("xmlrpc: unexpected status %d from %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("xmlrpc: read response: %w", err)
	}
	return parseMethodResponse(data)
}
