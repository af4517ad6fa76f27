// Package completion proxies chat completion requests to the upstream model
// vendors. The server forwards the vendor's response body, streaming or not,
// without buffering or re-encoding it.
package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"server/internal/domain"
)

// Message is one turn of the conversation in the vendor-neutral wire shape.
// Content is either a JSON string or an array of content parts.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Request carries the sampling parameters alongside the conversation.
// Pointer fields are omitted from the upstream call when nil so vendor
// defaults apply.
type Request struct {
	Model            string
	Messages         []Message
	Temperature      *float64
	MaxTokens        *int
	FrequencyPenalty *float64
	PresencePenalty  *float64
	Stream           bool
}

// Response is the outcome of one completion call. Non-streaming calls set
// Text, the assistant's reply, with Body nil. Streaming calls hand the
// upstream body over for pass-through copying; the caller owns Body and must
// close it.
type Response struct {
	Text        string
	ContentType string
	Body        io.ReadCloser
}

// Completer issues one completion call against a single vendor.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Registry maps provider names to their configured clients. Providers whose
// credentials are absent are simply never registered.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Completer
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Completer)}
}

func (r *Registry) Register(name string, c Completer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[strings.ToLower(name)] = c
}

// Lookup returns the client for a provider name, or false when the provider
// is unknown or not configured.
func (r *Registry) Lookup(name string) (Completer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.providers[strings.ToLower(name)]
	return c, ok
}

// Names lists the registered providers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

func upstreamError(provider string, status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 512 {
		detail = detail[:512]
	}
	return fmt.Errorf("%w: %s returned %d: %s", domain.ErrProviderFailure, provider, status, detail)
}
