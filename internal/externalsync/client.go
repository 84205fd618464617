package externalsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jmylchreest/transcodarr/pkg/httpclient"
)

// apiClient wraps pkg/httpclient.Client with the per-connection base URL
// and API key header every catalog/scene-library request needs. test and
// pull share this one client per connection, matching the original
// implementation's single ExternalConnectionManager session per request.
type apiClient struct {
	http    *httpclient.Client
	baseURL string
	apiKey  string
}

// newClient builds an apiClient with the given timeout, decompression
// (gzip/deflate/brotli, handled transparently by pkg/httpclient) enabled.
func newClient(baseURL, apiKey string, cfg httpclient.Config) *apiClient {
	cfg.EnableDecompression = true
	return &apiClient{
		http:    httpclient.New(cfg),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// get performs a GET against baseURL+path (Radarr/Sonarr callers pass paths
// that already start with /api/v3; Stash's GraphQL endpoint is queried
// directly by graphQL instead) and decodes the JSON response into out.
func (c *apiClient) get(ctx context.Context, path string, out any) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return resp, fmt.Errorf("invalid API key")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return resp, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if out != nil {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp, fmt.Errorf("reading response body: %w", err)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return resp, fmt.Errorf("decoding response from %s: %w", path, err)
		}
	}

	return resp, nil
}

// graphQL issues a POST with a GraphQL query/variables body and decodes
// the "data" field into out, grounded on the Stash session's _graphql
// helper.
func (c *apiClient) graphQL(ctx context.Context, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return fmt.Errorf("encoding graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("building graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("ApiKey", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling graphql endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status %d from graphql endpoint", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading graphql response: %w", err)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decoding graphql envelope: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decoding graphql data: %w", err)
		}
	}
	return nil
}
