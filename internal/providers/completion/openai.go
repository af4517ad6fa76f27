package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OpenAIOptions configures a client for any OpenAI-compatible chat API.
// DeepSeek and xAI expose the same wire format, so one client serves all
// three with a different BaseURL.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	Provider   string
	HTTPClient *http.Client
}

type OpenAICompleter struct {
	apiKey   string
	baseURL  string
	provider string
	client   *http.Client
}

// No Timeout on the default client: streamed completions stay open well past
// any sane fixed deadline. Cancellation comes from the request context.
func NewOpenAICompleter(opts OpenAIOptions) (*OpenAICompleter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	provider := opts.Provider
	if provider == "" {
		provider = "openai"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &OpenAICompleter{
		apiKey:   strings.TrimSpace(opts.APIKey),
		baseURL:  baseURL,
		provider: provider,
		client:   client,
	}, nil
}

type openAIChatRequest struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	Temperature      *float64  `json:"temperature,omitempty"`
	MaxTokens        *int      `json:"max_tokens,omitempty"`
	FrequencyPenalty *float64  `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64  `json:"presence_penalty,omitempty"`
	Stream           bool      `json:"stream,omitempty"`
}

func (o *OpenAICompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	payload := openAIChatRequest{
		Model:            req.Model,
		Messages:         req.Messages,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		Stream:           req.Stream,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/chat/completions", o.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", o.provider, err)
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, upstreamError(o.provider, resp.StatusCode, body)
	}
	if req.Stream {
		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "text/event-stream"
		}
		return &Response{ContentType: contentType, Body: resp.Body}, nil
	}
	defer func() { _ = resp.Body.Close() }()

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", o.provider, err)
	}
	if len(out.Choices) == 0 {
		return nil, upstreamError(o.provider, resp.StatusCode, []byte("no choices"))
	}
	return &Response{Text: out.Choices[0].Message.Content}, nil
}

var _ Completer = (*OpenAICompleter)(nil)
