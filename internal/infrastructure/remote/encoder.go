package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"remoteinfer/internal/domain/conversation"
	"remoteinfer/internal/domain/generation"
	"remoteinfer/internal/infrastructure/media"
	"remoteinfer/internal/utils/platformerrors"

	"github.com/sashabaranov/go-openai"
)

// genericSchemaName labels schemas supplied without a declared name.
const genericSchemaName = "Response"

// Encoder translates conversations to chat-completion request bodies and
// back. It is stateless apart from the image loader used to materialize
// image-by-bytes content.
type Encoder struct {
	loader media.Loader
}

// NewEncoder builds an encoder. The loader may be nil when conversations
// never carry image content.
func NewEncoder(loader media.Loader) *Encoder {
	return &Encoder{loader: loader}
}

// BuildRequest encodes a conversation into a chat-completion request body.
// Each message becomes its own wire turn with a single-element content list;
// this is the shape used for synchronous per-request calls.
func (e *Encoder) BuildRequest(ctx context.Context, conv conversation.Conversation, settings generation.Settings) (ChatRequest, error) {
	return e.buildRequest(ctx, conv, settings, false)
}

// BuildBatchRequest encodes a conversation for a batch-input document,
// merging adjacent same-role turns into one wire turn.
func (e *Encoder) BuildBatchRequest(ctx context.Context, conv conversation.Conversation, settings generation.Settings) (ChatRequest, error) {
	return e.buildRequest(ctx, conv, settings, true)
}

func (e *Encoder) buildRequest(ctx context.Context, conv conversation.Conversation, settings generation.Settings, groupTurns bool) (ChatRequest, error) {
	if err := conv.Validate(); err != nil {
		return ChatRequest{}, platformerrors.NewError(platformerrors.LayerDomain, platformerrors.ErrorTypeTranslation, "invalid conversation", err)
	}

	messages, err := e.EncodeMessages(ctx, conv.Messages, groupTurns)
	if err != nil {
		return ChatRequest{}, err
	}

	request := ChatRequest{
		Model:               settings.Model,
		Messages:            messages,
		MaxCompletionTokens: settings.MaxNewTokens,
		Temperature:         settings.Temperature,
		TopP:                settings.TopP,
		FrequencyPenalty:    settings.FrequencyPenalty,
		PresencePenalty:     settings.PresencePenalty,
		// One completion per prompt.
		N:         1,
		Seed:      settings.Seed,
		LogitBias: settings.LogitBias,
	}

	if len(settings.StopStrings) > 0 {
		request.Stop = settings.StopStrings
	}

	if settings.GuidedDecoding != nil {
		format, err := resolveResponseFormat(settings.GuidedDecoding)
		if err != nil {
			return ChatRequest{}, err
		}
		request.ResponseFormat = format
	}

	return request, nil
}

// EncodeMessages converts domain messages to wire turns. With groupTurns set,
// consecutive messages sharing a role merge into one turn in a single
// left-to-right scan; a merged group of exactly one plain-text message is
// emitted with a bare string content field.
func (e *Encoder) EncodeMessages(ctx context.Context, messages []conversation.Message, groupTurns bool) ([]openai.ChatCompletionMessage, error) {
	numMessages := len(messages)
	result := make([]openai.ChatCompletionMessage, 0, numMessages)
	idx := 0
	for idx < numMessages {
		endIdx := idx + 1
		if groupTurns {
			for endIdx < numMessages && messages[idx].Role == messages[endIdx].Role {
				endIdx++
			}
		}

		turn := openai.ChatCompletionMessage{Role: string(messages[idx].Role)}
		if groupTurns && endIdx-idx == 1 && messages[idx].IsText() {
			turn.Content = messages[idx].Content
		} else {
			parts := make([]openai.ChatMessagePart, 0, endIdx-idx)
			for ; idx < endIdx; idx++ {
				part, err := e.contentPart(ctx, messages[idx])
				if err != nil {
					return nil, err
				}
				parts = append(parts, part)
			}
			turn.MultiContent = parts
		}

		idx = endIdx
		result = append(result, turn)
	}

	return result, nil
}

// contentPart builds the content unit for one message. Image bytes are
// encoded as a base64 data URI; image URLs pass through untouched.
func (e *Encoder) contentPart(ctx context.Context, msg conversation.Message) (openai.ChatMessagePart, error) {
	switch msg.Type {
	case conversation.ContentTypeText:
		return openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: msg.Content,
		}, nil

	case conversation.ContentTypeImageURL:
		return openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: msg.Content},
		}, nil

	case conversation.ContentTypeImageBytes:
		data := msg.Binary
		if len(data) == 0 {
			if e.loader == nil {
				return openai.ChatMessagePart{}, platformerrors.NewError(platformerrors.LayerDomain, platformerrors.ErrorTypeConfiguration, "image message has no bytes and no image loader is configured", nil)
			}
			loaded, err := e.loader.LoadBytes(ctx, msg.Content)
			if err != nil {
				return openai.ChatMessagePart{}, platformerrors.AsError(platformerrors.LayerDomain, err, "load image bytes")
			}
			data = loaded
		}
		return openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: media.DataURI(data)},
		}, nil

	default:
		return openai.ChatMessagePart{}, platformerrors.NewError(platformerrors.LayerDomain, platformerrors.ErrorTypeTranslation, fmt.Sprintf("unsupported message type: %s", msg.Type), nil)
	}
}

// DecodeResponse appends the first completion's message to a copy of the
// original conversation. A response without choices is a decode error.
func (e *Encoder) DecodeResponse(response *openai.ChatCompletionResponse, original conversation.Conversation) (conversation.Conversation, error) {
	if response == nil || len(response.Choices) == 0 {
		return conversation.Conversation{}, platformerrors.NewError(platformerrors.LayerDomain, platformerrors.ErrorTypeTranslation, "response has no completion choices", nil)
	}
	message := response.Choices[0].Message
	return original.WithReply(conversation.Role(message.Role), message.Content), nil
}

// resolveResponseFormat turns a guided-decoding setting into the
// response_format constraint. Supported schema sources: a SchemaProvider, a
// raw JSON-schema mapping, or a JSON-schema string.
func resolveResponseFormat(guided *generation.GuidedDecoding) (*openai.ChatCompletionResponseFormat, error) {
	if guided.Empty() {
		return nil, platformerrors.NewError(platformerrors.LayerDomain, platformerrors.ErrorTypeConfiguration, "structured output requested without a JSON schema; a schema is the only supported mechanism", nil)
	}

	var (
		name   string
		schema json.RawMessage
	)

	switch source := guided.Schema.(type) {
	case generation.SchemaProvider:
		exported, err := source.JSONSchema()
		if err != nil {
			return nil, platformerrors.AsError(platformerrors.LayerDomain, err, "export JSON schema")
		}
		name = source.SchemaName()
		schema = exported

	case map[string]any:
		encoded, err := json.Marshal(source)
		if err != nil {
			return nil, platformerrors.AsError(platformerrors.LayerDomain, err, "encode JSON schema mapping")
		}
		name = genericSchemaName
		schema = encoded

	case string:
		if !json.Valid([]byte(source)) {
			return nil, platformerrors.NewError(platformerrors.LayerDomain, platformerrors.ErrorTypeConfiguration, "schema string is not valid JSON", nil)
		}
		name = genericSchemaName
		schema = json.RawMessage(source)

	default:
		return nil, platformerrors.NewError(platformerrors.LayerDomain, platformerrors.ErrorTypeConfiguration, fmt.Sprintf("unsupported JSON schema type %T; provide a schema object, a mapping, or a JSON string", source), nil)
	}

	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   name,
			Schema: schema,
		},
	}, nil
}
