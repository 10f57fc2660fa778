// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Gemini endpoint layout.
const (
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com"
	geminiAPIVersion     = "v1beta"
	geminiKeyHeader      = "x-goog-api-key"
)

// GeminiConfig selects the Gemini endpoint and model.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GeminiProvider implements [Provider] against the Gemini generateContent
// API.
type GeminiProvider struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	logger     *slog.Logger
}

/*
NewGeminiProvider creates the provider.

Description:
  The HTTP client carries no timeout of its own; every call runs under the
  caller's context deadline so one knob governs the whole attempt.
*/
func NewGeminiProvider(config GeminiConfig, logger *slog.Logger) *GeminiProvider {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	return &GeminiProvider{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		apiKey:     config.APIKey,
		model:      config.Model,
		logger:     logger,
	}
}

// # Wire Types

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float32 `json:"temperature,omitempty"`
	TopP             float32 `json:"topP,omitempty"`
	TopK             int     `json:"topK,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata geminiUsage       `json:"usageMetadata"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiUsage struct {
	TotalTokenCount int `json:"totalTokenCount"`
}

/*
GenerateStructured runs one generateContent call and returns the first
candidate's text with the reported token usage.
*/
func (provider *GeminiProvider) GenerateStructured(context context.Context, prompt string, config GenerationConfig) (string, int, error) {
	payload := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      config.Temperature,
			TopP:             config.TopP,
			TopK:             config.TopK,
			MaxOutputTokens:  config.MaxOutputTokens,
			ResponseMIMEType: config.ResponseMIMEType,
		},
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", 0, NewError(KindUnknown, "request encoding failed", err)
	}

	endpoint := fmt.Sprintf("%s/%s/models/%s:generateContent", provider.baseURL, geminiAPIVersion, provider.model)
	request, err := http.NewRequestWithContext(context, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", 0, NewError(KindUnknown, "request construction failed", err)
	}
	request.Header.Set("Content-Type", MIMEApplicationJSON)
	request.Header.Set(geminiKeyHeader, provider.apiKey)

	started := time.Now()
	response, err := provider.httpClient.Do(request)
	if err != nil {
		return "", 0, ClassifyTransport(err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", 0, NewError(KindUnknown, "response read failed", err)
	}

	if response.StatusCode != http.StatusOK {
		return "", 0, provider.classifyStatus(response.StatusCode, body)
	}

	var decoded geminiResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", 0, NewError(KindUnknown, "response decoding failed", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", 0, NewError(KindUnknown, "provider returned no candidates", nil)
	}

	provider.logger.Debug("gemini generation finished",
		slog.String("model", provider.model),
		slog.String("finish_reason", decoded.Candidates[0].FinishReason),
		slog.Int("total_tokens", decoded.UsageMetadata.TotalTokenCount),
		slog.Duration("elapsed", time.Since(started)))

	var text string
	for _, part := range decoded.Candidates[0].Content.Parts {
		text += part.Text
	}
	return text, decoded.UsageMetadata.TotalTokenCount, nil
}

// classifyStatus maps non-200 replies onto the taxonomy.
func (provider *GeminiProvider) classifyStatus(statusCode int, body []byte) *Error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewError(KindQuotaExhausted, "provider rejected the call over quota", nil)
	case statusCode >= http.StatusInternalServerError:
		return NewError(KindUnavailable, "provider reported an internal failure", nil)
	}
	return NewError(KindUnknown, fmt.Sprintf("provider error with status %d: %s", statusCode, truncateForLog(string(body), 200)), nil)
}
