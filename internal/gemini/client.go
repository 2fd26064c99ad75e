// Package gemini implements the Google generative backends: Gemini text
// summarization and Imagen image generation via the genai SDK. Both the
// Gemini API key backend and the Vertex project/location backend are
// supported.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/signalbot/internal/config"
	"github.com/edgard/signalbot/internal/summary"
)

// Client wraps a genai client configured for this bot.
type Client struct {
	genaiClient *genai.Client
	logger      *slog.Logger

	textModel     string
	imageModel    string
	maxRetries    int
	retryDelay    time.Duration
	promptFile    string
	contentConfig *genai.GenerateContentConfig
}

// NewClient creates a Gemini client. When an API key is configured it uses
// the Gemini API backend; otherwise it targets Vertex AI with the
// configured project and location. promptFile names an optional file whose
// contents prefix the summary prompt when no question was asked.
func NewClient(ctx context.Context, cfg config.GeminiConfig, promptFile string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	clientCfg := &genai.ClientConfig{}
	if cfg.APIKey != "" {
		clientCfg.APIKey = cfg.APIKey
		clientCfg.Backend = genai.BackendGeminiAPI
	} else {
		if cfg.ProjectID == "" || cfg.Location == "" {
			return nil, fmt.Errorf("gemini requires either api_key or project_id+location")
		}
		clientCfg.Project = cfg.ProjectID
		clientCfg.Location = cfg.Location
		clientCfg.Backend = genai.BackendVertexAI
	}

	gi, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	contentConfig := &genai.GenerateContentConfig{
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
		},
	}

	log := logger.With("component", "gemini_client")
	log.Info("Gemini client initialized", "text_model", cfg.TextModel, "image_model", cfg.ImageModel)

	return &Client{
		genaiClient:   gi,
		logger:        log,
		textModel:     cfg.TextModel,
		imageModel:    cfg.ImageModel,
		maxRetries:    cfg.MaxRetries,
		retryDelay:    time.Duration(cfg.RetryDelaySeconds) * time.Second,
		promptFile:    promptFile,
		contentConfig: contentConfig,
	}, nil
}

// Summarize generates a summary of the transcript, optionally answering a
// question about it. Safety-filtered output is returned as an "ERROR:"
// prefixed string with a nil error: callers treat it as a valid reply.
func (c *Client) Summarize(ctx context.Context, transcript string, question string) (string, error) {
	prompt := summary.Prompt(transcript, question, c.promptPrefix())
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := c.generateContentWithRetries(ctx, c.textModel, contents, c.contentConfig)
	if err != nil {
		return "", fmt.Errorf("gemini summarization failed: %w", err)
	}

	if blocked, reason := safetyBlock(resp); blocked {
		c.logger.WarnContext(ctx, "Summary flagged as unsafe", "reason", reason)
		return fmt.Sprintf("ERROR: the response was flagged as unsafe: %s", reason), nil
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini returned empty summary")
	}
	return text, nil
}

// GenerateImage produces one PNG image for the prompt. Imagen does not
// revise prompts, so the second return value is always empty.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	cfg := &genai.GenerateImagesConfig{
		NumberOfImages:    1,
		AspectRatio:       "1:1",
		SafetyFilterLevel: genai.SafetyFilterLevelBlockOnlyHigh,
		PersonGeneration:  genai.PersonGenerationAllowAdult,
	}

	resp, err := c.genaiClient.Models.GenerateImages(ctx, c.imageModel, prompt, cfg)
	if err != nil {
		c.logger.ErrorContext(ctx, "Imagen generation failed", "error", err)
		return nil, "", fmt.Errorf("image generation failed: %w", err)
	}

	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, "", fmt.Errorf("no images generated: the provider likely rejected the prompt %q", prompt)
	}

	return resp.GeneratedImages[0].Image.ImageBytes, "", nil
}

func (c *Client) generateContentWithRetries(ctx context.Context, modelName string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	var err error

	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.genaiClient.Models.GenerateContent(ctx, modelName, contents, cfg)
		if err == nil {
			return resp, nil
		}

		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503) {
			if i < c.maxRetries {
				c.logger.WarnContext(ctx, "Gemini API call failed, retrying",
					"attempt", i+1, "code", apiErr.Code, "delay", c.retryDelay)
				time.Sleep(c.retryDelay)
				continue
			}
			return nil, fmt.Errorf("gemini API call failed after %d retries (code %d): %w", c.maxRetries, apiErr.Code, err)
		}

		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	return nil, err
}

// safetyBlock reports whether the response was blocked by the safety
// filter, either at the prompt or in the generated candidate, and names
// the category that tripped it.
func safetyBlock(resp *genai.GenerateContentResponse) (bool, string) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		if resp.PromptFeedback.BlockReasonMessage != "" {
			return true, resp.PromptFeedback.BlockReasonMessage
		}
		return true, fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		for _, rating := range resp.Candidates[0].SafetyRatings {
			if rating != nil && rating.Blocked {
				return true, fmt.Sprintf("%v", rating.Category)
			}
		}
		return true, "SAFETY"
	}

	return false, ""
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
