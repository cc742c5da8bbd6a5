package remote

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"remoteinfer/internal/domain/conversation"
	"remoteinfer/internal/domain/generation"
	"remoteinfer/internal/utils/platformerrors"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textMessage(role conversation.Role, content string) conversation.Message {
	return conversation.Message{Role: role, Type: conversation.ContentTypeText, Content: content}
}

func marshalToMap(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	return parsed
}

func TestBuildRequestFields(t *testing.T) {
	encoder := NewEncoder(nil)
	seed := 42
	conv := conversation.New(textMessage(conversation.RoleUser, "hello"))
	settings := generation.Settings{
		Model:            "gpt-4o",
		MaxNewTokens:     256,
		Temperature:      0.7,
		TopP:             0.9,
		FrequencyPenalty: 0.1,
		PresencePenalty:  0.2,
		Seed:             &seed,
		LogitBias:        map[string]int{"50256": -100},
	}

	request, err := encoder.BuildRequest(context.Background(), conv, settings)
	require.NoError(t, err)

	parsed := marshalToMap(t, request)
	assert.Equal(t, "gpt-4o", parsed["model"])
	assert.Equal(t, float64(256), parsed["max_completion_tokens"])
	assert.Equal(t, 0.7, parsed["temperature"])
	assert.Equal(t, 0.9, parsed["top_p"])
	assert.Equal(t, float64(1), parsed["n"])
	assert.Equal(t, float64(42), parsed["seed"])
	assert.NotContains(t, parsed, "stop")
	assert.NotContains(t, parsed, "response_format")
}

func TestBuildRequestZeroSamplingFieldsStayOnWire(t *testing.T) {
	encoder := NewEncoder(nil)
	conv := conversation.New(textMessage(conversation.RoleUser, "hello"))

	// Greedy decoding: every sampling field legitimately zero.
	request, err := encoder.BuildRequest(context.Background(), conv, generation.Settings{Model: "gpt-4o"})
	require.NoError(t, err)

	parsed := marshalToMap(t, request)
	for _, key := range []string{"temperature", "top_p", "frequency_penalty", "presence_penalty", "max_completion_tokens"} {
		require.Contains(t, parsed, key)
		assert.Equal(t, float64(0), parsed[key], key)
	}
	assert.Equal(t, float64(1), parsed["n"])
	assert.NotContains(t, parsed, "seed")
	assert.NotContains(t, parsed, "logit_bias")
}

func TestBuildRequestRejectsInvalidConversation(t *testing.T) {
	encoder := NewEncoder(nil)
	conv := conversation.New(conversation.Message{Role: "narrator", Type: conversation.ContentTypeText, Content: "x"})

	_, err := encoder.BuildRequest(context.Background(), conv, generation.Settings{Model: "gpt-4o"})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeTranslation))
}

func TestBuildRequestStopIncludedOnlyWhenSet(t *testing.T) {
	encoder := NewEncoder(nil)
	conv := conversation.New(textMessage(conversation.RoleUser, "hi"))

	request, err := encoder.BuildRequest(context.Background(), conv, generation.Settings{
		Model:       "gpt-4o",
		StopStrings: []string{"END"},
	})
	require.NoError(t, err)

	parsed := marshalToMap(t, request)
	assert.Equal(t, []any{"END"}, parsed["stop"])
}

func TestEncodeMessagesUngrouped(t *testing.T) {
	encoder := NewEncoder(nil)
	messages := []conversation.Message{
		textMessage(conversation.RoleUser, "first"),
		textMessage(conversation.RoleUser, "second"),
	}

	turns, err := encoder.EncodeMessages(context.Background(), messages, false)
	require.NoError(t, err)
	require.Len(t, turns, 2)

	// Each message is its own wire turn with a single-element content list.
	for i, turn := range turns {
		parsed := marshalToMap(t, turn)
		content, ok := parsed["content"].([]any)
		require.True(t, ok, "turn %d content should be a list", i)
		require.Len(t, content, 1)
	}
}

func TestEncodeMessagesGroupsAdjacentSameRoleTurns(t *testing.T) {
	encoder := NewEncoder(nil)
	messages := []conversation.Message{
		textMessage(conversation.RoleUser, "part one"),
		textMessage(conversation.RoleUser, "part two"),
		textMessage(conversation.RoleAssistant, "reply"),
	}

	turns, err := encoder.EncodeMessages(context.Background(), messages, true)
	require.NoError(t, err)
	require.Len(t, turns, 2)

	merged := marshalToMap(t, turns[0])
	assert.Equal(t, "user", merged["role"])
	content, ok := merged["content"].([]any)
	require.True(t, ok, "merged turn content should be a list")
	assert.Len(t, content, 2)

	// A group of exactly one plain-text message collapses to a bare string.
	single := marshalToMap(t, turns[1])
	assert.Equal(t, "reply", single["content"])
}

func TestEncodeMessagesSingleTextIsBareString(t *testing.T) {
	encoder := NewEncoder(nil)
	turns, err := encoder.EncodeMessages(context.Background(), []conversation.Message{
		textMessage(conversation.RoleUser, "hello"),
	}, true)
	require.NoError(t, err)
	require.Len(t, turns, 1)

	parsed := marshalToMap(t, turns[0])
	assert.Equal(t, "hello", parsed["content"])
}

func TestContentPartImageURLPassthrough(t *testing.T) {
	encoder := NewEncoder(nil)
	turns, err := encoder.EncodeMessages(context.Background(), []conversation.Message{
		{Role: conversation.RoleUser, Type: conversation.ContentTypeImageURL, Content: "https://example.com/cat.png"},
	}, false)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Len(t, turns[0].MultiContent, 1)

	part := turns[0].MultiContent[0]
	assert.Equal(t, openai.ChatMessagePartTypeImageURL, part.Type)
	assert.Equal(t, "https://example.com/cat.png", part.ImageURL.URL)
}

func TestContentPartImageBytesBecomeDataURI(t *testing.T) {
	encoder := NewEncoder(nil)
	// Minimal PNG header so mime sniffing resolves to image/png.
	pngBytes := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	turns, err := encoder.EncodeMessages(context.Background(), []conversation.Message{
		{Role: conversation.RoleUser, Type: conversation.ContentTypeImageBytes, Binary: pngBytes},
	}, false)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Len(t, turns[0].MultiContent, 1)

	url := turns[0].MultiContent[0].ImageURL.URL
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"), "got %q", url)
}

func TestEncodeMessagesUnsupportedTypeFails(t *testing.T) {
	encoder := NewEncoder(nil)
	_, err := encoder.EncodeMessages(context.Background(), []conversation.Message{
		{Role: conversation.RoleUser, Type: "audio", Content: "x"},
	}, false)
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeTranslation))
}

func TestResolveResponseFormat(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"answer": map[string]any{"type": "string"},
		},
	}
	schemaJSON, err := json.Marshal(schema)
	require.NoError(t, err)

	tests := []struct {
		name     string
		schema   any
		wantName string
		wantErr  bool
	}{
		{name: "raw mapping", schema: schema, wantName: "Response"},
		{name: "JSON string", schema: string(schemaJSON), wantName: "Response"},
		{name: "schema provider", schema: namedSchema{}, wantName: "WeatherReport"},
		{name: "unsupported type", schema: 42, wantErr: true},
		{name: "invalid JSON string", schema: "{not json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, err := resolveResponseFormat(&generation.GuidedDecoding{Schema: tt.schema})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONSchema, format.Type)
			assert.Equal(t, tt.wantName, format.JSONSchema.Name)
		})
	}
}

func TestResolveResponseFormatMappingAndStringAgree(t *testing.T) {
	schema := map[string]any{"type": "object"}
	schemaJSON, err := json.Marshal(schema)
	require.NoError(t, err)

	fromMap, err := resolveResponseFormat(&generation.GuidedDecoding{Schema: schema})
	require.NoError(t, err)
	fromString, err := resolveResponseFormat(&generation.GuidedDecoding{Schema: string(schemaJSON)})
	require.NoError(t, err)

	mapJSON, err := fromMap.JSONSchema.Schema.MarshalJSON()
	require.NoError(t, err)
	stringJSON, err := fromString.JSONSchema.Schema.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(mapJSON), string(stringJSON))
}

func TestResolveResponseFormatEmptySchemaFails(t *testing.T) {
	_, err := resolveResponseFormat(&generation.GuidedDecoding{})
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeConfiguration))
}

func TestDecodeResponseRoundTrip(t *testing.T) {
	encoder := NewEncoder(nil)
	original := conversation.New(textMessage(conversation.RoleUser, "what is 2+2?"))
	original.Metadata = map[string]string{"source": "unit"}

	response := &openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: "assistant", Content: "4"}},
		},
	}

	result, err := encoder.DecodeResponse(response, original)
	require.NoError(t, err)

	require.Len(t, result.Messages, 2)
	appended := result.Messages[1]
	assert.Equal(t, conversation.RoleAssistant, appended.Role)
	assert.Equal(t, conversation.ContentTypeText, appended.Type)
	assert.Equal(t, "4", appended.Content)

	assert.Equal(t, original.ID, result.ID)
	assert.Equal(t, original.Metadata, result.Metadata)
	// The original is untouched.
	assert.Len(t, original.Messages, 1)
}

func TestDecodeResponseWithoutChoicesFails(t *testing.T) {
	encoder := NewEncoder(nil)
	_, err := encoder.DecodeResponse(&openai.ChatCompletionResponse{}, conversation.New())
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeTranslation))
}

// namedSchema is a fixed schema provider used across encoder tests.
type namedSchema struct{}

func (namedSchema) SchemaName() string { return "WeatherReport" }

func (namedSchema) JSONSchema() (json.RawMessage, error) {
	return json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}}}`), nil
}
