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

	"server/internal/domain"
)

const (
	anthropicVersion          = "2023-06-01"
	anthropicDefaultMaxTokens = 4096
)

// AnthropicOptions configures the Claude messages API client.
type AnthropicOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

type AnthropicCompleter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewAnthropicCompleter(opts AnthropicOptions) (*AnthropicCompleter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &AnthropicCompleter{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: baseURL,
		client:  client,
	}, nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Complete translates the neutral request into the messages API shape. The
// messages API has no system role; system turns lift into the top-level
// field. Frequency and presence penalties have no Claude equivalent and are
// dropped.
func (a *AnthropicCompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	payload := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   anthropicDefaultMaxTokens,
		Temperature: req.Temperature,
		Stream:      req.Stream,
	}
	if req.MaxTokens != nil {
		payload.MaxTokens = *req.MaxTokens
	}

	var system []string
	for _, m := range req.Messages {
		text, err := flattenContent(m.Content)
		if err != nil {
			return nil, err
		}
		if m.Role == "system" {
			system = append(system, text)
			continue
		}
		payload.Messages = append(payload.Messages, anthropicMessage{Role: m.Role, Content: text})
	}
	payload.System = strings.Join(system, "\n\n")

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1/messages", a.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call anthropic: %w", err)
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, upstreamError("anthropic", resp.StatusCode, body)
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
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode anthropic response: %w", err)
	}
	var texts []string
	for _, c := range out.Content {
		if c.Type == "text" && c.Text != "" {
			texts = append(texts, c.Text)
		}
	}
	return &Response{Text: strings.Join(texts, "\n")}, nil
}

// flattenContent reduces a content union to its text. Parts arrays keep only
// the text parts, joined in order.
func flattenContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", domain.Invalidf("unsupported message content shape")
	}
	var texts []string
	for _, p := range parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n"), nil
}

var _ Completer = (*AnthropicCompleter)(nil)
