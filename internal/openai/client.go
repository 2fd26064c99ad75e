// Package openai implements the OpenAI generative backends: chat-completion
// summarization and DALL-E image generation.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/edgard/signalbot/internal/config"
	"github.com/edgard/signalbot/internal/summary"
)

// Client wraps the OpenAI API for the summary and imagine capabilities.
type Client struct {
	api        *openai.Client
	logger     *slog.Logger
	chatModel  string
	imageModel string
	promptFile string
}

// NewClient creates an OpenAI client. promptFile names an optional file
// whose contents prefix the summary prompt when no question was asked.
func NewClient(cfg config.OpenAIConfig, promptFile string, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai API key is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		api:        openai.NewClient(cfg.APIKey),
		logger:     logger.With("component", "openai_client"),
		chatModel:  cfg.ChatModel,
		imageModel: cfg.ImageModel,
		promptFile: promptFile,
	}, nil
}

// Summarize generates a summary of the transcript, optionally answering a
// question about it.
func (c *Client) Summarize(ctx context.Context, transcript string, question string) (string, error) {
	prompt := summary.Prompt(transcript, question, c.promptPrefix())

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "OpenAI summarization failed", "error", err)
		return "", fmt.Errorf("openai summarization failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no completion choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// GenerateImage produces one PNG image for the prompt and returns the
// provider's revised prompt alongside the image data.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	resp, err := c.api.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          c.imageModel,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		Quality:        openai.CreateImageQualityStandard,
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "DALL-E generation failed", "error", err)
		return nil, "", fmt.Errorf("image generation failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, "", fmt.Errorf("no images generated: the provider likely rejected the prompt %q", prompt)
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image data: %w", err)
	}

	return data, resp.Data[0].RevisedPrompt, nil
}

// promptPrefix reads the summary prompt prefix file. The file is optional
// and re-read on every request so it can be edited without a restart.
func (c *Client) promptPrefix() string {
	if c.promptFile == "" {
		return ""
	}
	data, err := os.ReadFile(c.promptFile)
	if err != nil {
		return ""
	}
	return string(data)
}
