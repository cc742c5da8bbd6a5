package remote

import (
	"context"
	"strconv"

	"resty.dev/v3"
)

// BatchClient drives the remote batch-job surface: create, get, list. It
// never retries; polling is the caller's responsibility.
type BatchClient struct {
	apiClient
}

// NewBatchClient builds a batch client on a shared resty client.
func NewBatchClient(client *resty.Client, baseURL, apiKey string) *BatchClient {
	return &BatchClient{apiClient: newAPIClient(client, "BatchClient", baseURL, apiKey)}
}

// Create submits a job referencing an uploaded input document and returns
// the assigned job id.
func (c *BatchClient) Create(ctx context.Context, inputFileID, endpoint, completionWindow string) (string, error) {
	var respBody BatchJob
	resp, err := c.prepareRequest(ctx).
		SetBody(batchCreateRequest{
			InputFileID:      inputFileID,
			Endpoint:         endpoint,
			CompletionWindow: completionWindow,
		}).
		SetResult(&respBody).
		Post(c.endpoint("/batches"))
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", c.errorFromResponse(resp, "failed to create batch")
	}
	return respBody.ID, nil
}

// Get fetches the current state of one batch job.
func (c *BatchClient) Get(ctx context.Context, batchID string) (*BatchJob, error) {
	var respBody BatchJob
	resp, err := c.prepareRequest(ctx).
		SetResult(&respBody).
		Get(c.endpoint("/batches/" + batchID))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, c.errorFromResponse(resp, "failed to get batch status")
	}
	return &respBody, nil
}

// List pages through batch jobs with the service's opaque cursor.
func (c *BatchClient) List(ctx context.Context, after string, limit int) (*BatchList, error) {
	req := c.prepareRequest(ctx)
	if after != "" {
		req.SetQueryParam("after", after)
	}
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}

	var respBody BatchList
	resp, err := req.
		SetResult(&respBody).
		Get(c.endpoint("/batches"))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, c.errorFromResponse(resp, "failed to list batches")
	}
	return &respBody, nil
}
