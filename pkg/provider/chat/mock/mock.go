// Package mock provides a test double for the chat.Provider interface.
//
// Use Provider in unit tests to verify what the agent loop sends and to feed
// controlled responses without a live backend. Responses can be scripted per
// call; the last entry repeats once the script is exhausted.
//
// Example:
//
//	p := &mock.Provider{
//	    Responses: []*chat.GenerateResponse{{Content: "hello"}},
//	}
//	resp, err := p.Generate(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/butler/pkg/provider/chat"
)

// GenerateCall records a single invocation of Generate.
type GenerateCall struct {
	// Ctx is the context passed to Generate.
	Ctx context.Context
	// Req is the GenerateRequest passed to Generate.
	Req chat.GenerateRequest
}

// Provider is a mock implementation of chat.Provider.
// Zero values cause Generate to return an empty response and nil error.
type Provider struct {
	mu sync.Mutex

	// Responses is the per-call response script. Call n returns Responses[n];
	// once exhausted the last entry repeats.
	Responses []*chat.GenerateResponse

	// Errs is the per-call error script, aligned with Responses. A nil entry
	// (or running past the end) means no error.
	Errs []error

	// Calls records every invocation of Generate in order.
	Calls []GenerateCall
}

// Generate records the call and returns the next scripted response and error.
func (p *Provider) Generate(ctx context.Context, req chat.GenerateRequest) (*chat.GenerateResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.Calls)
	msgs := make([]chat.Message, len(req.Messages))
	copy(msgs, req.Messages)
	recorded := req
	recorded.Messages = msgs
	p.Calls = append(p.Calls, GenerateCall{Ctx: ctx, Req: recorded})

	var err error
	if n < len(p.Errs) {
		err = p.Errs[n]
	}
	if err != nil {
		return nil, err
	}

	switch {
	case len(p.Responses) == 0:
		return &chat.GenerateResponse{}, nil
	case n < len(p.Responses):
		return p.Responses[n], nil
	default:
		return p.Responses[len(p.Responses)-1], nil
	}
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Ensure Provider implements chat.Provider at compile time.
var _ chat.Provider = (*Provider)(nil)
