package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tsawhneybuilds/exploprd/internal/util"
)

const (
	defaultChatModel  = "gpt-4.1-mini"
	defaultEmbedModel = "text-embedding-3-small"
)

// OpenAIClient calls the OpenAI REST API directly.
type OpenAIClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (o *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if o.apiKey == "" {
		return nil, fmt.Errorf("%w: openai api key missing", util.ErrEmbedding)
	}
	payload, _ := json.Marshal(map[string]any{"model": defaultEmbedModel, "input": text})
	body, err := o.post(ctx, "/embeddings", payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrEmbedding, err)
	}
	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode embedding response: %v", util.ErrEmbedding, err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", util.ErrEmbedding)
	}
	return parsed.Data[0].Embedding, nil
}

func (o *OpenAIClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("%w: openai api key missing", util.ErrGeneration)
	}
	model := req.Model
	if model == "" {
		model = defaultChatModel
	}
	body := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}
	payload, _ := json.Marshal(body)
	raw, err := o.post(ctx, "/chat/completions", payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", util.ErrGeneration, err)
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode chat response: %v", util.ErrGeneration, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", util.ErrGeneration)
	}
	return parsed.Choices[0].Message.Content, nil
}

func (o *OpenAIClient) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, string(body))
	}
	return body, nil
}
