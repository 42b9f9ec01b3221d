package pipeline

import (
	"context"
	"net/http"
)

// FallbackHandler answers every request with the same pre-configured
// response. It ends each dispatch chain.
type FallbackHandler struct {
	response Response
}

// NewFallbackHandler returns a handler that always answers with response.
func NewFallbackHandler(response Response) *FallbackHandler {
	return &FallbackHandler{response: response}
}

// Handle returns the configured response. Responses implementing Cloner are
// cloned first, so middleware editing the result on one dispatch do not
// change what the next dispatch sees.
func (h *FallbackHandler) Handle(ctx context.Context, r *http.Request) (Response, error) {
	if c, ok := h.response.(Cloner); ok {
		return c.Clone(), nil
	}
	return h.response, nil
}
