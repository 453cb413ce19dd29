// Package completion talks to the external language model that writes
// assistant replies and describes uploaded images.
package completion

import (
	"context"
	"errors"
)

// ErrEmptyReply is returned when the model answered without usable content.
var ErrEmptyReply = errors.New("completion returned no content")

// Message is one turn of conversation context.
type Message struct {
	Role    string
	Content string
}

// Image is an inline image payload.
type Image struct {
	Data     []byte
	MIMEType string
}

// Client maps conversation context to a single reply.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	DescribeImage(ctx context.Context, image Image, question string) (string, error)
}
