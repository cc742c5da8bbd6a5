package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"remoteinfer/internal/config"
	"remoteinfer/internal/domain/conversation"
	"remoteinfer/internal/domain/generation"
	"remoteinfer/internal/infrastructure/logger"
	"remoteinfer/internal/infrastructure/media"
	"remoteinfer/internal/infrastructure/persistence"
	"remoteinfer/internal/utils/httpclients"
	"remoteinfer/internal/utils/platformerrors"

	"golang.org/x/sync/errgroup"
)

const (
	batchPurpose      = "batch"
	batchEndpointPath = "/v1/chat/completions"
	customIDPrefix    = "request-"
)

// ConversationStore reads and writes conversation sets at a location.
type ConversationStore interface {
	ReadConversations(path string) ([]conversation.Conversation, error)
	WriteConversations(path string, conversations []conversation.Conversation) error
}

// ScratchSink receives each successfully decoded conversation as soon as it
// completes, so partial progress survives an aborted run. Sink failures are
// logged, never fatal.
type ScratchSink interface {
	AppendConversation(outputPath string, conv conversation.Conversation) error
}

// Engine drives inference against a remote OpenAI-compatible service, in
// online mode (bounded concurrent dispatch with retry) and batch mode
// (upload, submit, poll, retrieve).
type Engine struct {
	endpoint   config.RemoteEndpoint
	envLookup  config.EnvLookup
	store      ConversationStore
	scratch    ScratchSink
	outputPath string

	encoder *Encoder
	chat    *ChatClient
	files   *FileClient
	batches *BatchClient
}

// Option customizes engine construction.
type Option func(*Engine)

// WithStore replaces the default JSONL conversation store.
func WithStore(store ConversationStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithScratchSink replaces the partial-progress sink; nil disables
// checkpointing entirely.
func WithScratchSink(sink ScratchSink) Option {
	return func(e *Engine) { e.scratch = sink }
}

// WithOutputPath enables persistence: scratch checkpoints during a run and
// the full result set after it.
func WithOutputPath(path string) Option {
	return func(e *Engine) { e.outputPath = path }
}

// WithEnvLookup replaces the environment reader used for credential
// resolution.
func WithEnvLookup(lookup config.EnvLookup) Option {
	return func(e *Engine) { e.envLookup = lookup }
}

// NewEngine builds an engine for one remote endpoint. The transport's
// connection pool is capped at the endpoint's worker count so queued request
// units do not open unbounded sockets.
func NewEngine(endpoint config.RemoteEndpoint, opts ...Option) (*Engine, error) {
	if err := endpoint.Validate(); err != nil {
		return nil, platformerrors.NewError(platformerrors.LayerDomain, platformerrors.ErrorTypeConfiguration, "invalid remote endpoint", err)
	}

	store := persistence.NewJSONLStore()
	engine := &Engine{
		endpoint: endpoint,
		store:    store,
		scratch:  store,
	}
	for _, opt := range opts {
		opt(engine)
	}

	client := httpclients.NewClient("RemoteInference", httpclients.Options{
		Timeout:  endpoint.ConnectionTimeout,
		MaxConns: endpoint.NumWorkers,
	})
	apiKey := endpoint.Credential.Resolve(engine.envLookup)

	engine.encoder = NewEncoder(media.NewFileLoader(client))
	engine.chat = NewChatClient(client, endpoint.APIURL, apiKey)
	engine.files = NewFileClient(client, endpoint.APIURL, apiKey)
	engine.batches = NewBatchClient(client, endpoint.APIURL, apiKey)

	return engine, nil
}

// Encoder exposes the engine's message encoder.
func (e *Engine) Encoder() *Encoder {
	return e.encoder
}

// Files exposes the file store client.
func (e *Engine) Files() *FileClient {
	return e.files
}

// SupportedParams lists the generation parameter names this engine forwards
// to the remote service.
func SupportedParams() []string {
	return []string{
		"frequency_penalty",
		"guided_decoding",
		"logit_bias",
		"max_new_tokens",
		"presence_penalty",
		"seed",
		"stop_strings",
		"temperature",
		"top_p",
	}
}

// ===============================================
// Online inference
// ===============================================

// RunOnline dispatches one request per conversation under the configured
// worker limit and returns decoded results in input order. The run is
// all-or-nothing: the first unit to exhaust its retries cancels the rest.
func (e *Engine) RunOnline(ctx context.Context, conversations []conversation.Conversation, settings generation.Settings) ([]conversation.Conversation, error) {
	log := logger.GetLogger()
	log.Info().
		Int("conversations", len(conversations)).
		Int("num_workers", e.endpoint.NumWorkers).
		Str("model", settings.Model).
		Msg("starting online inference")

	results := make([]conversation.Conversation, len(conversations))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.endpoint.NumWorkers)

	for i, conv := range conversations {
		i, conv := i, conv
		group.Go(func() error {
			result, err := e.queryAPI(groupCtx, conv, settings)
			if err != nil {
				return err
			}
			// Each unit owns its own slot; completions never race.
			results[i] = result
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	if e.outputPath != "" && e.store != nil {
		if err := e.store.WriteConversations(e.outputPath, results); err != nil {
			return nil, err
		}
	}

	log.Info().Int("conversations", len(results)).Msg("online inference complete")
	return results, nil
}

// RunFromFile reads conversations from a JSONL input path, runs the online
// path, and returns the results (also persisted when an output path is set).
func (e *Engine) RunFromFile(ctx context.Context, inputPath string, settings generation.Settings) ([]conversation.Conversation, error) {
	if e.store == nil {
		return nil, platformerrors.NewError(platformerrors.LayerDomain, platformerrors.ErrorTypeConfiguration, "no conversation store configured", nil)
	}
	conversations, err := e.store.ReadConversations(inputPath)
	if err != nil {
		return nil, err
	}
	return e.RunOnline(ctx, conversations, settings)
}

// queryAPI runs one request unit: encode once, then attempt the call up to
// MaxRetries+1 times, sleeping the politeness interval after every attempt,
// success included.
func (e *Engine) queryAPI(ctx context.Context, conv conversation.Conversation, settings generation.Settings) (conversation.Conversation, error) {
	log := logger.GetLogger()

	request, err := e.encoder.BuildRequest(ctx, conv, settings)
	if err != nil {
		return conversation.Conversation{}, err
	}

	attempts := e.endpoint.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		response, err := e.chat.CreateChatCompletion(ctx, request)
		if err != nil {
			if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeTransport) {
				return conversation.Conversation{}, err
			}
			log.Warn().
				Err(err).
				Str("conversation_id", conv.ID).
				Int("attempt", attempt).
				Int("max_attempts", attempts).
				Msg("request attempt failed")
			if err := e.politenessSleep(ctx); err != nil {
				return conversation.Conversation{}, err
			}
			continue
		}

		result, err := e.encoder.DecodeResponse(response, conv)
		if err != nil {
			return conversation.Conversation{}, err
		}

		if e.scratch != nil && e.outputPath != "" {
			// Fire-and-forget checkpoint; a sink failure must not fail
			// the unit.
			if err := e.scratch.AppendConversation(e.outputPath, result); err != nil {
				log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("scratch checkpoint failed")
			}
		}

		if err := e.politenessSleep(ctx); err != nil {
			return conversation.Conversation{}, err
		}
		return result, nil
	}

	return conversation.Conversation{}, platformerrors.NewErrorWithContext(
		platformerrors.LayerDomain,
		platformerrors.ErrorTypeRetryExhausted,
		fmt.Sprintf("failed to query API after %d attempts", attempts),
		nil,
		map[string]any{"conversation_id": conv.ID},
	)
}

func (e *Engine) politenessSleep(ctx context.Context) error {
	if e.endpoint.PolitenessInterval <= 0 {
		return nil
	}
	timer := time.NewTimer(e.endpoint.PolitenessInterval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ===============================================
// Batch inference
// ===============================================

// CreateBatch encodes every conversation in grouped mode, uploads the
// resulting JSONL document, and submits a job referencing it. The returned
// job id is the caller's handle for polling and retrieval.
func (e *Engine) CreateBatch(ctx context.Context, conversations []conversation.Conversation, settings generation.Settings) (string, error) {
	records := make([]any, 0, len(conversations))
	for i, conv := range conversations {
		body, err := e.encoder.BuildBatchRequest(ctx, conv, settings)
		if err != nil {
			return "", err
		}
		records = append(records, BatchRequestItem{
			CustomID: customIDPrefix + strconv.Itoa(i),
			Method:   http.MethodPost,
			URL:      batchEndpointPath,
			Body:     body,
		})
	}

	fileID, err := e.files.Upload(ctx, records, batchPurpose)
	if err != nil {
		return "", err
	}

	jobID, err := e.batches.Create(ctx, fileID, batchEndpointPath, e.endpoint.CompletionWindow)
	if err != nil {
		return "", err
	}

	log := logger.GetLogger()
	log.Info().
		Str("batch_id", jobID).
		Str("input_file_id", fileID).
		Int("requests", len(conversations)).
		Msg("batch created")
	return jobID, nil
}

// GetBatchStatus fetches the current state of a batch job. Polling is
// caller-driven; this call never waits.
func (e *Engine) GetBatchStatus(ctx context.Context, batchID string) (*BatchJob, error) {
	return e.batches.Get(ctx, batchID)
}

// ListBatches pages through batch jobs.
func (e *Engine) ListBatches(ctx context.Context, after string, limit int) (*BatchList, error) {
	return e.batches.List(ctx, after, limit)
}

// GetBatchResults downloads a completed job's output document and maps each
// line back to its original conversation via the request-<index> custom id.
// A job that is not completed, has failed requests, or produced any per-line
// error yields no partial results.
func (e *Engine) GetBatchResults(ctx context.Context, batchID string, originals []conversation.Conversation) ([]conversation.Conversation, error) {
	job, err := e.batches.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}

	if job.Status != BatchStatusCompleted {
		return nil, platformerrors.NewErrorWithContext(
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeJobNotReady,
			fmt.Sprintf("batch is not completed, status: %s", job.Status),
			nil,
			map[string]any{"batch_id": batchID},
		)
	}

	if job.RequestCounts.Failed > 0 && job.ErrorFileID != "" {
		errorContent, err := e.files.Download(ctx, job.ErrorFileID)
		if err != nil {
			return nil, err
		}
		return nil, platformerrors.NewErrorWithContext(
			platformerrors.LayerDomain,
			platformerrors.ErrorTypeJobFailed,
			fmt.Sprintf("batch has failed requests: %s", errorContent),
			nil,
			map[string]any{"batch_id": batchID, "failed_requests": job.RequestCounts.Failed},
		)
	}

	if job.OutputFileID == "" {
		return nil, platformerrors.NewError(platformerrors.LayerDomain, platformerrors.ErrorTypeJobFailed, "completed batch has no output file", nil)
	}

	content, err := e.files.Download(ctx, job.OutputFileID)
	if err != nil {
		return nil, err
	}

	return e.decodeBatchResults(content, originals)
}

// decodeBatchResults parses a downloaded output document and places each
// decoded conversation at the index parsed from its custom id, so a service
// that reorders its output document still maps correctly.
func (e *Engine) decodeBatchResults(content string, originals []conversation.Conversation) ([]conversation.Conversation, error) {
	results := make([]conversation.Conversation, len(originals))
	filled := make([]bool, len(originals))

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var record batchResultLine
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, platformerrors.NewError(platformerrors.LayerDomain, platformerrors.ErrorTypeTranslation, "malformed batch result line", err)
		}
		if record.Error != nil {
			return nil, platformerrors.NewError(platformerrors.LayerDomain, platformerrors.ErrorTypeJobFailed, fmt.Sprintf("batch request failed: %v", record.Error), nil)
		}

		idx, err := requestIndex(record.CustomID)
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(originals) {
			return nil, platformerrors.NewError(platformerrors.LayerDomain, platformerrors.ErrorTypeTranslation, fmt.Sprintf("result custom_id %q is out of range for %d submitted requests", record.CustomID, len(originals)), nil)
		}
		if filled[idx] {
			return nil, platformerrors.NewError(platformerrors.LayerDomain, platformerrors.ErrorTypeTranslation, fmt.Sprintf("duplicate result for custom_id %q", record.CustomID), nil)
		}

		decoded, err := e.encoder.DecodeResponse(&record.Response.Body, originals[idx])
		if err != nil {
			return nil, err
		}
		results[idx] = decoded
		filled[idx] = true
	}

	for i, ok := range filled {
		if !ok {
			return nil, platformerrors.NewError(platformerrors.LayerDomain, platformerrors.ErrorTypeTranslation, fmt.Sprintf("no result for submitted request %d", i), nil)
		}
	}
	return results, nil
}

// requestIndex extracts the numeric index from a request-<n> custom id.
func requestIndex(customID string) (int, error) {
	suffix, found := strings.CutPrefix(customID, customIDPrefix)
	if !found {
		return 0, platformerrors.NewError(platformerrors.LayerDomain, platformerrors.ErrorTypeTranslation, fmt.Sprintf("malformed result custom_id %q", customID), nil)
	}
	idx, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, platformerrors.NewError(platformerrors.LayerDomain, platformerrors.ErrorTypeTranslation, fmt.Sprintf("malformed result custom_id %q", customID), err)
	}
	return idx, nil
}
