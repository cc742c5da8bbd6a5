package remote

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"resty.dev/v3"
)

// ChatClient issues synchronous chat-completion calls. The configured base
// URL is the chat-completions endpoint itself.
type ChatClient struct {
	apiClient
}

// NewChatClient builds a chat client on a shared resty client.
func NewChatClient(client *resty.Client, baseURL, apiKey string) *ChatClient {
	return &ChatClient{apiClient: newAPIClient(client, "ChatClient", baseURL, apiKey)}
}

// CreateChatCompletion posts one request body and returns the parsed
// completion. A non-2xx status is returned as a transport error carrying the
// response body; the caller decides whether to retry.
func (c *ChatClient) CreateChatCompletion(ctx context.Context, request ChatRequest) (*openai.ChatCompletionResponse, error) {
	var respBody openai.ChatCompletionResponse
	resp, err := c.prepareRequest(ctx).
		SetBody(request).
		SetResult(&respBody).
		Post(c.endpoint(""))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, c.errorFromResponse(resp, "chat completion request failed")
	}
	return &respBody, nil
}
