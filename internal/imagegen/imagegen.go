// Package imagegen watches the shared image-request slot and renders
// requests in the background, so the voice loop never blocks on image
// generation.
package imagegen

import (
	"context"
	"encoding/base64"
	"fmt"
	log "log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"golang.org/x/sync/errgroup"

	"aria/internal/status"
)

// variantsPerPrompt images are rendered concurrently for each request.
const variantsPerPrompt = 4

const pollInterval = time.Second

// Generator renders one PNG for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// OpenAIGenerator renders images through the images endpoint.
type OpenAIGenerator struct {
	client openai.Client
	model  openai.ImageModel
}

func NewOpenAIGenerator(client openai.Client) *OpenAIGenerator {
	return &OpenAIGenerator{client: client, model: openai.ImageModelDallE3}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          g.model,
		N:              openai.Int(1),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
		Size:           openai.ImageGenerateParamsSize1024x1024,
	})
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("generate image: empty response")
	}
	png, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return png, nil
}

// Service polls the status channel for pending requests and saves the
// rendered variants under dir. The first finished variant is opened in
// the system viewer.
type Service struct {
	gen  Generator
	ch   *status.Channel
	dir  string
	open func(path string) error
}

func NewService(gen Generator, ch *status.Channel, dir string) *Service {
	return &Service{
		gen: gen,
		ch:  ch,
		dir: dir,
		open: func(path string) error {
			return exec.Command("xdg-open", path).Start()
		},
	}
}

// Run blocks until ctx is cancelled, handling one request at a time.
// The request slot is reset before generation starts so a prompt is
// never rendered twice.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		prompt, pending := status.DecodeImageRequest(s.ch.ImageRequest())
		if !pending || strings.TrimSpace(prompt) == "" {
			continue
		}
		s.ch.SetImageRequest(status.NoImageRequest)

		if err := s.Handle(ctx, prompt); err != nil {
			log.Error("Image generation failed", "prompt", prompt, "err", err)
		}
	}
}

// Handle renders all variants for one prompt concurrently. A single
// failed variant does not fail the batch unless every variant failed.
func (s *Service) Handle(ctx context.Context, prompt string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("image dir: %w", err)
	}

	log.Info("Generating images", "prompt", prompt, "variants", variantsPerPrompt)

	paths := make([]string, variantsPerPrompt)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < variantsPerPrompt; i++ {
		g.Go(func() error {
			png, err := s.gen.Generate(gctx, prompt)
			if err != nil {
				log.Warn("Image variant failed", "variant", i, "err", err)
				return nil
			}
			path := filepath.Join(s.dir, slugify(prompt)+"-"+uuid.NewString()[:8]+".png")
			if err := os.WriteFile(path, png, 0o644); err != nil {
				return fmt.Errorf("save image: %w", err)
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var saved []string
	for _, p := range paths {
		if p != "" {
			saved = append(saved, p)
		}
	}
	if len(saved) == 0 {
		return fmt.Errorf("all %d variants failed", variantsPerPrompt)
	}

	log.Info("Images saved", "count", len(saved), "dir", s.dir)
	if err := s.open(saved[0]); err != nil {
		log.Warn("Could not open image viewer", "err", err)
	}
	return nil
}

func slugify(prompt string) string {
	fields := strings.Fields(strings.ToLower(prompt))
	if len(fields) > 5 {
		fields = fields[:5]
	}
	slug := strings.Join(fields, "-")
	slug = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' {
			return r
		}
		return -1
	}, slug)
	if slug == "" {
		slug = "image"
	}
	return slug
}
