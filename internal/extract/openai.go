// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// systemRole frames every chat completion. The extraction instructions
// themselves live in the user prompt.
const systemRole = "You are a precise data extraction engine. You respond with valid JSON only."

// OpenAIConfig selects the OpenAI-compatible endpoint and model.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIProvider implements [Provider] on any OpenAI-compatible chat
// completion API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

/*
NewOpenAIProvider creates the provider. A BaseURL override points the same
client at self-hosted OpenAI-compatible servers.
*/
func NewOpenAIProvider(config OpenAIConfig, logger *slog.Logger) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  config.Model,
		logger: logger,
	}
}

/*
GenerateStructured runs one chat completion and returns the reply text with
the token usage the API reported.
*/
func (provider *OpenAIProvider) GenerateStructured(context context.Context, prompt string, config GenerationConfig) (string, int, error) {
	request := openai.ChatCompletionRequest{
		Model: provider.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemRole},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: config.Temperature,
		TopP:        config.TopP,
	}
	if config.MaxOutputTokens > 0 {
		request.MaxTokens = config.MaxOutputTokens
	}
	// The chat API has no top_k knob; that option only reaches providers
	// that expose one.
	if config.ResponseMIMEType == MIMEApplicationJSON {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	response, err := provider.client.CreateChatCompletion(context, request)
	if err != nil {
		return "", 0, provider.classify(err)
	}
	if len(response.Choices) == 0 {
		return "", 0, NewError(KindUnknown, "provider returned no choices", nil)
	}

	provider.logger.Debug("openai completion finished",
		slog.String("model", provider.model),
		slog.String("finish_reason", string(response.Choices[0].FinishReason)),
		slog.Int("total_tokens", response.Usage.TotalTokens))
	return response.Choices[0].Message.Content, response.Usage.TotalTokens, nil
}

// classify maps API-level and transport-level failures onto the taxonomy.
func (provider *OpenAIProvider) classify(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return NewError(KindQuotaExhausted, "provider rejected the call over quota", err)
		case apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return NewError(KindUnavailable, "provider reported an internal failure", err)
		}
		return NewError(KindUnknown, fmt.Sprintf("provider error with status %d", apiErr.HTTPStatusCode), err)
	}
	return ClassifyTransport(err)
}
