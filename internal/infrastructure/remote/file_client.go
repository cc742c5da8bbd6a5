package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"remoteinfer/internal/utils/platformerrors"

	"resty.dev/v3"
)

const uploadFilename = "batch_requests.jsonl"

// FileClient drives the remote file store: upload, list, get, delete,
// download. Every non-2xx response is fatal; nothing in this client retries.
type FileClient struct {
	apiClient
}

// NewFileClient builds a file store client on a shared resty client.
func NewFileClient(client *resty.Client, baseURL, apiKey string) *FileClient {
	return &FileClient{apiClient: newAPIClient(client, "FileClient", baseURL, apiKey)}
}

// Upload serializes records as newline-delimited JSON to a temporary
// artifact, transmits it as multipart form data with the declared purpose,
// and returns the assigned file id. The temporary artifact is deleted
// whether or not the transfer succeeds.
func (c *FileClient) Upload(ctx context.Context, records []any, purpose string) (string, error) {
	tmp, err := os.CreateTemp("", "upload-*.jsonl")
	if err != nil {
		return "", platformerrors.AsError(platformerrors.LayerInfrastructure, err, "create temporary upload file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	writer := bufio.NewWriter(tmp)
	encoder := json.NewEncoder(writer)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			tmp.Close()
			return "", platformerrors.AsError(platformerrors.LayerInfrastructure, err, "encode upload record")
		}
	}
	if err := writer.Flush(); err != nil {
		tmp.Close()
		return "", platformerrors.AsError(platformerrors.LayerInfrastructure, err, "flush upload file")
	}
	if err := tmp.Close(); err != nil {
		return "", platformerrors.AsError(platformerrors.LayerInfrastructure, err, "close upload file")
	}

	artifact, err := os.Open(tmpPath)
	if err != nil {
		return "", platformerrors.AsError(platformerrors.LayerInfrastructure, err, "open upload file")
	}
	defer artifact.Close()

	var respBody fileUploadResponse
	resp, err := c.prepareUpload(ctx).
		SetFileReader("file", uploadFilename, artifact).
		SetFormData(map[string]string{"purpose": purpose}).
		SetResult(&respBody).
		Post(c.endpoint("/files"))
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", c.errorFromResponse(resp, "failed to upload file")
	}
	return respBody.ID, nil
}

// List returns stored-file metadata. HasMore is approximated as "result
// count equals the requested limit" when a limit was given.
func (c *FileClient) List(ctx context.Context, params ListFilesParams) (*FileList, error) {
	order := params.Order
	if order == "" {
		order = "desc"
	}
	query := map[string]string{"order": order}
	if params.Purpose != "" {
		query["purpose"] = params.Purpose
	}
	if params.Limit > 0 {
		query["limit"] = strconv.Itoa(params.Limit)
	}
	if params.After != "" {
		query["after"] = params.After
	}

	var respBody FileList
	resp, err := c.prepareRequest(ctx).
		SetQueryParams(query).
		SetResult(&respBody).
		Get(c.endpoint("/files"))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, c.errorFromResponse(resp, "failed to list files")
	}

	respBody.HasMore = params.Limit > 0 && len(respBody.Files) == params.Limit
	return &respBody, nil
}

// Get fetches metadata for one stored file.
func (c *FileClient) Get(ctx context.Context, fileID string) (*StoredFile, error) {
	var respBody StoredFile
	resp, err := c.prepareRequest(ctx).
		SetResult(&respBody).
		Get(c.endpoint("/files/" + fileID))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, c.errorFromResponse(resp, "failed to get file")
	}
	return &respBody, nil
}

// Delete removes a stored file and reports whether the service confirmed
// the deletion.
func (c *FileClient) Delete(ctx context.Context, fileID string) (bool, error) {
	var respBody fileDeleteResponse
	resp, err := c.prepareRequest(ctx).
		SetResult(&respBody).
		Delete(c.endpoint("/files/" + fileID))
	if err != nil {
		return false, err
	}
	if resp.IsError() {
		return false, c.errorFromResponse(resp, "failed to delete file")
	}
	return respBody.Deleted, nil
}

// Download returns a stored file's raw text content.
func (c *FileClient) Download(ctx context.Context, fileID string) (string, error) {
	resp, err := c.prepareRequest(ctx).
		Get(c.endpoint(fmt.Sprintf("/files/%s/content", fileID)))
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", c.errorFromResponse(resp, "failed to download file")
	}
	return resp.String(), nil
}

// prepareUpload is prepareRequest without the JSON content type; resty sets
// the multipart boundary header itself.
func (c *FileClient) prepareUpload(ctx context.Context) *resty.Request {
	req := c.client.R().SetContext(ctx)
	if strings.TrimSpace(c.apiKey) != "" {
		req.SetHeader("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}
	return req
}

// ListFilesParams filters a file listing.
type ListFilesParams struct {
	Purpose string
	Limit   int
	// Order is "asc" or "desc"; desc when unset.
	Order string
	After string
}
