package completion

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/fenggwsx/NovaMind/internal/config"
)

// OpenAIClient calls any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	visionModel string
	temperature float32
	maxTokens   int
}

// NewOpenAIClient builds a client from the completion configuration.
func NewOpenAIClient(cfg config.CompletionConfig) *OpenAIClient {
	openAIConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		openAIConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		openAIConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = cfg.Model
	}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(openAIConfig),
		model:       cfg.Model,
		visionModel: visionModel,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Complete sends the ordered conversation and returns the assistant reply.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("no messages to complete")
	}
	chat := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chat = append(chat, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return c.create(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chat,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
}

// DescribeImage asks the vision model a question about an inline image.
func (c *OpenAIClient) DescribeImage(ctx context.Context, image Image, question string) (string, error) {
	if len(image.Data) == 0 {
		return "", errors.New("empty image")
	}
	mimeType := image.MIMEType
	if mimeType == "" {
		mimeType = http.DetectContentType(image.Data)
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image.Data)

	return c.create(ctx, openai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: question},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURL,
					Detail: openai.ImageURLDetailAuto,
				}},
			},
		}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
}

func (c *OpenAIClient) create(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyReply
	}
	return content, nil
}
