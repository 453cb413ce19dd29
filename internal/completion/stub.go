package completion

import (
	"context"
	"fmt"
)

// StubClient answers locally without calling a model. Used when no API key
// is configured so the rest of the app can be exercised in development.
type StubClient struct{}

// Complete echoes the most recent user turn.
func (StubClient) Complete(_ context.Context, messages []Message) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return fmt.Sprintf("(stub) You said: %s", messages[i].Content), nil
		}
	}
	return "", ErrEmptyReply
}

// DescribeImage reports the image size and the question that was asked.
func (StubClient) DescribeImage(_ context.Context, image Image, question string) (string, error) {
	if len(image.Data) == 0 {
		return "", ErrEmptyReply
	}
	return fmt.Sprintf("(stub) Received a %d byte %s image. Question: %s", len(image.Data), image.MIMEType, question), nil
}
