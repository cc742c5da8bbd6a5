package remote

import (
	"github.com/sashabaranov/go-openai"
)

// ===============================================
// Chat Types
// ===============================================

// ChatRequest is the chat-completion request body. The sampling fields are
// serialized unconditionally, zero values included: a temperature of 0 means
// greedy decoding and must reach the service rather than fall back to its
// default. Only stop, seed, logit_bias, and response_format are conditional.
type ChatRequest struct {
	Model               string                               `json:"model"`
	Messages            []openai.ChatCompletionMessage       `json:"messages"`
	MaxCompletionTokens int                                  `json:"max_completion_tokens"`
	Temperature         float32                              `json:"temperature"`
	TopP                float32                              `json:"top_p"`
	FrequencyPenalty    float32                              `json:"frequency_penalty"`
	PresencePenalty     float32                              `json:"presence_penalty"`
	N                   int                                  `json:"n"`
	Seed                *int                                 `json:"seed,omitempty"`
	LogitBias           map[string]int                       `json:"logit_bias,omitempty"`
	Stop                []string                             `json:"stop,omitempty"`
	ResponseFormat      *openai.ChatCompletionResponseFormat `json:"response_format,omitempty"`
}

// ===============================================
// Batch Types
// ===============================================

// BatchStatus is the lifecycle state of a batch job. Transitions are driven
// entirely by the remote service; this client only observes them.
type BatchStatus string

const (
	BatchStatusValidating BatchStatus = "validating"
	BatchStatusInProgress BatchStatus = "in_progress"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
	BatchStatusExpired    BatchStatus = "expired"
	BatchStatusCancelled  BatchStatus = "cancelled"
)

// Terminal reports whether the status is a terminal success/failure state.
func (s BatchStatus) Terminal() bool {
	switch s {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusExpired, BatchStatusCancelled:
		return true
	}
	return false
}

// RequestCounts tracks per-job request progress.
type RequestCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// BatchJob is the remote service's view of a batch, including lifecycle
// timestamps. Output and error file ids are populated only once the job
// reaches a terminal state.
type BatchJob struct {
	ID               string            `json:"id"`
	Endpoint         string            `json:"endpoint"`
	Status           BatchStatus       `json:"status"`
	InputFileID      string            `json:"input_file_id"`
	CompletionWindow string            `json:"completion_window"`
	OutputFileID     string            `json:"output_file_id,omitempty"`
	ErrorFileID      string            `json:"error_file_id,omitempty"`
	Error            string            `json:"error,omitempty"`
	RequestCounts    RequestCounts     `json:"request_counts"`
	CreatedAt        int64             `json:"created_at,omitempty"`
	InProgressAt     int64             `json:"in_progress_at,omitempty"`
	ExpiresAt        int64             `json:"expires_at,omitempty"`
	FinalizingAt     int64             `json:"finalizing_at,omitempty"`
	CompletedAt      int64             `json:"completed_at,omitempty"`
	FailedAt         int64             `json:"failed_at,omitempty"`
	ExpiredAt        int64             `json:"expired_at,omitempty"`
	CancellingAt     int64             `json:"cancelling_at,omitempty"`
	CancelledAt      int64             `json:"cancelled_at,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// BatchList is the paginated response from GET /batches.
type BatchList struct {
	Data    []BatchJob `json:"data"`
	FirstID string     `json:"first_id,omitempty"`
	LastID  string     `json:"last_id,omitempty"`
	HasMore bool       `json:"has_more"`
}

// batchCreateRequest is the body of POST /batches.
type batchCreateRequest struct {
	InputFileID      string `json:"input_file_id"`
	Endpoint         string `json:"endpoint"`
	CompletionWindow string `json:"completion_window"`
}

// BatchRequestItem is one line of a batch-input document.
type BatchRequestItem struct {
	CustomID string      `json:"custom_id"`
	Method   string      `json:"method"`
	URL      string      `json:"url"`
	Body     ChatRequest `json:"body"`
}

// batchResultLine is one line of a downloaded batch-output document.
type batchResultLine struct {
	CustomID string          `json:"custom_id"`
	Error    any             `json:"error,omitempty"`
	Response batchResultBody `json:"response"`
}

type batchResultBody struct {
	StatusCode int                           `json:"status_code,omitempty"`
	Body       openai.ChatCompletionResponse `json:"body"`
}

// ===============================================
// File Types
// ===============================================

// StoredFile is the metadata record for a file held by the remote store.
type StoredFile struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Bytes     int64  `json:"bytes"`
	CreatedAt int64  `json:"created_at"`
	Purpose   string `json:"purpose"`
}

// FileList is the response from listing stored files. HasMore is a
// heuristic: true when the result count equals the requested limit.
type FileList struct {
	Files   []StoredFile `json:"data"`
	HasMore bool         `json:"has_more"`
}

// fileDeleteResponse is the body of DELETE /files/{id}.
type fileDeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// fileUploadResponse carries the assigned identifier after an upload.
type fileUploadResponse struct {
	ID string `json:"id"`
}
