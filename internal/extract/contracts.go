package extract

import "context"

// Request is one chat-completion request as the extractor sees it. The
// transport translates it into whatever the provider wire format needs.
type Request struct {
	Prompt    string
	Schema    map[string]any // structured-output constraint; nil disables it
	MaxTokens int
}

// Transport is the LLM collaborator the extractor depends on.
type Transport interface {
	// Complete sends the request and returns the full text completion.
	Complete(ctx context.Context, req Request) (string, error)
	// Stream sends the request with streaming enabled, invoking fn for each
	// text delta in arrival order. A non-nil fn error aborts the stream.
	Stream(ctx context.Context, req Request, fn func(delta string) error) error
}

// BlobTransport is implemented by transports that can answer a prompt based
// on an uploaded blob, used for texts too large to inline.
type BlobTransport interface {
	CompleteWithBlob(ctx context.Context, req Request, name string, blob []byte) (string, error)
}
