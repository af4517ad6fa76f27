package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// GoogleOptions configures the Gemini generateContent client.
type GoogleOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

type GoogleCompleter struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewGoogleCompleter(opts GoogleOptions) (*GoogleCompleter, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &GoogleCompleter{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: baseURL,
		client:  client,
	}, nil
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

// Complete translates the neutral request into Gemini's content shape. The
// assistant role maps to "model"; system turns lift into systemInstruction.
func (g *GoogleCompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	payload := geminiRequest{}
	if req.Temperature != nil || req.MaxTokens != nil {
		payload.GenerationConfig = &geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		}
	}
	var system []geminiPart
	for _, m := range req.Messages {
		text, err := flattenContent(m.Content)
		if err != nil {
			return nil, err
		}
		switch m.Role {
		case "system":
			system = append(system, geminiPart{Text: text})
		case "assistant":
			payload.Contents = append(payload.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: text}}})
		default:
			payload.Contents = append(payload.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: text}}})
		}
	}
	if len(system) > 0 {
		payload.SystemInstruction = &geminiContent{Parts: system}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(req.Model, req.Stream), &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call google: %w", err)
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, upstreamError("google", resp.StatusCode, body)
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
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode google response: %w", err)
	}
	var texts []string
	for _, cand := range out.Candidates {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				texts = append(texts, p.Text)
			}
		}
	}
	return &Response{Text: strings.Join(texts, "\n")}, nil
}

func (g *GoogleCompleter) endpoint(model string, stream bool) string {
	method := "generateContent"
	suffix := ""
	if stream {
		method = "streamGenerateContent"
		suffix = "?alt=sse"
	}
	return fmt.Sprintf("%s/models/%s:%s%s", g.baseURL, url.PathEscape(model), method, suffix)
}

var _ Completer = (*GoogleCompleter)(nil)
