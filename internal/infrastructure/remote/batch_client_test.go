package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"remoteinfer/internal/utils/httpclients"
	"remoteinfer/internal/utils/platformerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBatchClient(baseURL string) *BatchClient {
	client := httpclients.NewClient("BatchClientTest", httpclients.Options{Timeout: 5 * time.Second})
	return NewBatchClient(client, baseURL, "sk-test-key")
}

func TestBatchGetParsesJob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/batches/batch-7", r.URL.Path)
		writeJSON(w, `{
			"id": "batch-7",
			"endpoint": "/v1/chat/completions",
			"status": "in_progress",
			"input_file_id": "file-in",
			"completion_window": "24h",
			"request_counts": {"total": 10, "completed": 4, "failed": 1},
			"created_at": 1700000000,
			"in_progress_at": 1700000060,
			"metadata": {"job": "nightly"}
		}`)
	}))
	defer server.Close()

	job, err := newTestBatchClient(server.URL).Get(context.Background(), "batch-7")
	require.NoError(t, err)

	assert.Equal(t, "batch-7", job.ID)
	assert.Equal(t, BatchStatusInProgress, job.Status)
	assert.Equal(t, "file-in", job.InputFileID)
	assert.Equal(t, 10, job.RequestCounts.Total)
	assert.Equal(t, 4, job.RequestCounts.Completed)
	assert.Equal(t, 1, job.RequestCounts.Failed)
	assert.Equal(t, int64(1700000000), job.CreatedAt)
	assert.Equal(t, "nightly", job.Metadata["job"])
	assert.False(t, job.Status.Terminal())
}

func TestBatchListForwardsCursor(t *testing.T) {
	var gotQuery map[string][]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/batches", r.URL.Path)
		gotQuery = r.URL.Query()
		writeJSON(w, `{
			"data": [{"id":"batch-8","status":"completed"},{"id":"batch-9","status":"failed"}],
			"first_id": "batch-8",
			"last_id": "batch-9",
			"has_more": true
		}`)
	}))
	defer server.Close()

	list, err := newTestBatchClient(server.URL).List(context.Background(), "batch-7", 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"batch-7"}, gotQuery["after"])
	assert.Equal(t, []string{"2"}, gotQuery["limit"])

	require.Len(t, list.Data, 2)
	assert.Equal(t, "batch-8", list.FirstID)
	assert.Equal(t, "batch-9", list.LastID)
	assert.True(t, list.HasMore)
}

func TestBatchCreateSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"error":"input file is empty"}`)
	}))
	defer server.Close()

	_, err := newTestBatchClient(server.URL).Create(context.Background(), "file-in", "/v1/chat/completions", "24h")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeTransport))
	assert.Contains(t, err.Error(), "input file is empty")
}

func TestBatchStatusTerminal(t *testing.T) {
	assert.False(t, BatchStatusValidating.Terminal())
	assert.False(t, BatchStatusInProgress.Terminal())
	assert.True(t, BatchStatusCompleted.Terminal())
	assert.True(t, BatchStatusFailed.Terminal())
	assert.True(t, BatchStatusExpired.Terminal())
	assert.True(t, BatchStatusCancelled.Terminal())
}
