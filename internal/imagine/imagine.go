// Package imagine turns image-generation backend output into files on
// disk that can be attached to replies.
package imagine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Backend is the external image-generation capability. The revised prompt
// may be empty when the provider does not rewrite prompts.
type Backend interface {
	GenerateImage(ctx context.Context, prompt string) (data []byte, revisedPrompt string, err error)
}

// Generator writes generated images into the configured output directory.
type Generator struct {
	backend   Backend
	outputDir string
	logger    *slog.Logger
}

// NewGenerator creates a Generator and ensures the output directory exists.
func NewGenerator(backend Backend, outputDir string, logger *slog.Logger) (*Generator, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image output directory %s: %w", outputDir, err)
	}
	return &Generator{
		backend:   backend,
		outputDir: outputDir,
		logger:    logger.With("component", "imagine"),
	}, nil
}

// Generate produces one image for the prompt and saves it as
// <outputdir>/<requestor>-<timestamp>.png. It returns the saved file path
// and the prompt the provider actually used.
func (g *Generator) Generate(ctx context.Context, prompt, requestor string) (string, string, error) {
	data, revisedPrompt, err := g.backend.GenerateImage(ctx, prompt)
	if err != nil {
		return "", "", err
	}
	if revisedPrompt == "" {
		revisedPrompt = prompt
	}

	filename := fmt.Sprintf("%s-%s.png", sanitizeRequestor(requestor), time.Now().Format("20060102-150405"))
	path := filepath.Join(g.outputDir, filename)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to save image to %s: %w", path, err)
	}

	g.logger.InfoContext(ctx, "Image saved", "path", path, "requestor", requestor)
	return path, revisedPrompt, nil
}

// sanitizeRequestor keeps the source name usable as a file name component.
func sanitizeRequestor(requestor string) string {
	if requestor == "" {
		return "unknown"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_", " ", "_")
	return replacer.Replace(requestor)
}
