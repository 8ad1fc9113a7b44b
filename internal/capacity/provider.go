// Package capacity exposes the remote seat-availability check.  Reads
// are racy by design: exhaustion is detected reactively on sync and
// interrupt, never prevented proactively, because the remote service is
// the real source of truth for inventory.
package capacity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Provider answers how many seats remain available for an object.  Zero
// means exhausted; any positive value means available.
type Provider interface {
	Available(ctx context.Context, objectID uint64) (int, error)
}

// ObjectResolver translates local object ids into remote UUIDs.
type ObjectResolver interface {
	GetOrCreateUUID(ctx context.Context, objectID uint64) (string, error)
}

// HTTPProvider queries the remote inventory service's capacity endpoint.
type HTTPProvider struct {
	httpClient *http.Client
	baseURL    string
	token      string
	objects    ObjectResolver
}

// NewHTTPProvider builds a provider against the given base URL and
// bearer token, resolving object ids through objects.
func NewHTTPProvider(baseURL, token string, objects ObjectResolver) *HTTPProvider {
	return &HTTPProvider{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		token:      token,
		objects:    objects,
	}
}

// WithHTTPClient replaces the underlying HTTP client and returns the
// provider for chaining.
func (p *HTTPProvider) WithHTTPClient(hc *http.Client) *HTTPProvider {
	p.httpClient = hc
	return p
}

// Available implements Provider.
func (p *HTTPProvider) Available(ctx context.Context, objectID uint64) (int, error) {
	objectUUID, err := p.objects.GetOrCreateUUID(ctx, objectID)
	if err != nil {
		return 0, err
	}
	url := fmt.Sprintf("%s/v1/events/%s/capacity", p.baseURL, objectUUID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.Printf("capacity: check failed for object %d: %v", objectID, err)
		return 0, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode != http.StatusOK {
		log.Printf("capacity: check returned status %d body=%q", resp.StatusCode, body)
		return 0, fmt.Errorf("capacity check: unexpected status %d", resp.StatusCode)
	}
	var out struct {
		Available int `json:"available"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("capacity check: malformed response: %w", err)
	}
	return out.Available, nil
}
