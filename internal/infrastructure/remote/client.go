package remote

import (
	"context"
	"fmt"
	"strings"

	"remoteinfer/internal/utils/platformerrors"

	"resty.dev/v3"
)

// apiClient carries the pieces every remote call needs: the shared resty
// client, the resolved bearer token, and the base URL.
type apiClient struct {
	client  *resty.Client
	baseURL string
	apiKey  string
	name    string
}

func newAPIClient(client *resty.Client, name, baseURL, apiKey string) apiClient {
	return apiClient{
		client:  client,
		baseURL: normalizeBaseURL(baseURL),
		apiKey:  apiKey,
		name:    name,
	}
}

func (c *apiClient) prepareRequest(ctx context.Context) *resty.Request {
	req := c.client.R().SetContext(ctx)
	req.SetHeader("Content-Type", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		req.SetHeader("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}
	return req
}

func (c *apiClient) endpoint(path string) string {
	if path == "" {
		return c.baseURL
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if c.baseURL == "" {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return c.baseURL + path
	}
	return c.baseURL + "/" + path
}

// errorFromResponse surfaces a non-2xx response as a transport error carrying
// the raw body text for diagnosis.
func (c *apiClient) errorFromResponse(resp *resty.Response, message string) error {
	body := ""
	if resp != nil {
		body = strings.TrimSpace(resp.String())
	}
	status := statusCode(resp)
	if body == "" {
		return platformerrors.NewErrorWithContext(platformerrors.LayerInfrastructure, platformerrors.ErrorTypeTransport, fmt.Sprintf("%s: status %d", message, status), nil, map[string]any{"client": c.name})
	}
	return platformerrors.NewErrorWithContext(platformerrors.LayerInfrastructure, platformerrors.ErrorTypeTransport, fmt.Sprintf("%s: status %d: %s", message, status, body), nil, map[string]any{"client": c.name})
}

func normalizeBaseURL(base string) string {
	trimmed := strings.TrimSpace(base)
	trimmed = strings.TrimRight(trimmed, "/")
	return trimmed
}

func statusCode(resp *resty.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode()
}
