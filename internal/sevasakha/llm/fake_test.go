package llm

import (
	"context"
	"sync"
)

// recordingProvider captures requests and returns a canned answer.
type recordingProvider struct {
	mu       sync.Mutex
	requests []CompletionRequest
	answer   string
	err      error
}

func (r *recordingProvider) Complete(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	return &CompletionResponse{Content: r.answer}, nil
}
