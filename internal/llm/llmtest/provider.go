// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"cvone/interview/internal/models"
)

// Reply is one scripted provider answer
type Reply struct {
	Content    string
	TokensUsed int
	Err        error
}

// Provider answers per operation: queued replies are consumed first, then
// the Default for that operation (if any) is returned forever.
type Provider struct {
	mu       sync.Mutex
	queues   map[string][]Reply
	defaults map[string]Reply
	handler  func(req *models.GenerationRequest) (Reply, bool)
	calls    []models.GenerationRequest
}

func New() *Provider {
	return &Provider{
		queues:   make(map[string][]Reply),
		defaults: make(map[string]Reply),
	}
}

// Enqueue adds a one-shot reply for operation
func (p *Provider) Enqueue(operation string, reply Reply) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queues[operation] = append(p.queues[operation], reply)
	return p
}

// Default sets the reply returned once the queue for operation is empty
func (p *Provider) Default(operation string, reply Reply) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaults[operation] = reply
	return p
}

// Handle installs a dynamic responder consulted before queues and defaults
func (p *Provider) Handle(fn func(req *models.GenerationRequest) (Reply, bool)) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = fn
	return p
}

func (p *Provider) GenerateContent(ctx context.Context, req *models.GenerationRequest) (*models.GenerationResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.calls = append(p.calls, *req)
	reply, ok := p.next(req)
	p.mu.Unlock()

	if !ok {
		return nil, errors.New("llmtest: unexpected call for operation " + req.Operation)
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &models.GenerationResponse{
		Content:    reply.Content,
		RequestID:  req.RequestID,
		TokensUsed: reply.TokensUsed,
		Metadata:   models.GenerationMetadata{Provider: "llmtest", Model: "scripted"},
	}, nil
}

func (p *Provider) next(req *models.GenerationRequest) (Reply, bool) {
	if p.handler != nil {
		if reply, ok := p.handler(req); ok {
			return reply, true
		}
	}
	if queue := p.queues[req.Operation]; len(queue) > 0 {
		p.queues[req.Operation] = queue[1:]
		return queue[0], true
	}
	reply, ok := p.defaults[req.Operation]
	return reply, ok
}

func (p *Provider) GetProviderName() string { return "llmtest" }

// Calls returns the number of calls made for operation ("" counts all)
func (p *Provider) Calls(operation string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if operation == "" {
		return len(p.calls)
	}
	n := 0
	for _, c := range p.calls {
		if c.Operation == operation {
			n++
		}
	}
	return n
}

// LastPrompt returns the most recent prompt sent for operation
func (p *Provider) LastPrompt(operation string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.calls) - 1; i >= 0; i-- {
		if p.calls[i].Operation == operation {
			return p.calls[i].Prompt
		}
	}
	return ""
}

// PromptContains reports whether any prompt for operation contains substr
func (p *Provider) PromptContains(operation, substr string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.calls {
		if c.Operation == operation && strings.Contains(c.Prompt, substr) {
			return true
		}
	}
	return false
}
