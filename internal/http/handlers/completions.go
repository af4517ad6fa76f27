package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/providers/completion"
)

type completionRequest struct {
	Model            string               `json:"model"`
	Messages         []completion.Message `json:"messages"`
	Temperature      *float64             `json:"temperature"`
	MaxTokens        *int                 `json:"maxTokens"`
	FrequencyPenalty *float64             `json:"frequencyPenalty"`
	PresencePenalty  *float64             `json:"presencePenalty"`
	Stream           bool                 `json:"stream"`
}

// CompletionsCreate proxies a completion call to the named provider. With
// stream set the upstream body passes through unchanged; otherwise the
// assistant's reply comes back as a single message. Nothing is persisted
// here; clients save the reply through the chat endpoints.
func (a *App) CompletionsCreate(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	completer, ok := a.Providers.Lookup(provider)
	if !ok {
		a.error(w, http.StatusForbidden, "provider not available")
		return
	}

	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Model == "" || len(req.Messages) == 0 {
		a.error(w, http.StatusBadRequest, "model and messages are required")
		return
	}

	resp, err := completer.Complete(r.Context(), completion.Request{
		Model:            req.Model,
		Messages:         req.Messages,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		Stream:           req.Stream,
	})
	if err != nil {
		a.domainError(w, r, err)
		return
	}

	if resp.Body == nil {
		a.json(w, http.StatusOK, map[string]string{"role": "assistant", "content": resp.Text})
		return
	}
	defer func() { _ = resp.Body.Close() }()

	w.Header().Set("Content-Type", resp.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF {
				a.Logger.Warn().Err(err).Str("provider", provider).Msg("stream interrupted")
			}
			return
		}
	}
}
