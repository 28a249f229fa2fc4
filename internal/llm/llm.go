// Package llm provides the adapters for the external text and multimodal
// models. Callers treat empty output as an error and add no retries.
package llm

import "context"

// Client is the model interface consumed by the worker and the synchronous
// route handlers. Tests inject fakes.
type Client interface {
	// Chat sends a text-only conversation and returns the model's reply.
	Chat(ctx context.Context, system, user string) (string, error)

	// ChatWithImage sends a conversation with one attached image, read
	// from imagePath and inlined as a data URL.
	ChatWithImage(ctx context.Context, system, user, imagePath string) (string, error)
}
