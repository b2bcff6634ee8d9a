package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
	"poster-generator-backend/internal/imagecodec"
	"poster-generator-backend/internal/models"
)

const DefaultModel = "gemini-2.5-flash-image-preview"

const instructionTemplate = "Create a poster based on the provided image and the following instructions. The output MUST be an image. Instructions: %s"

// ContentGenerator is the slice of the genai SDK the client depends on.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Client struct {
	models ContentGenerator
	model  string
	log    zerolog.Logger
}

// Output is a successful generation: the persisted metadata plus the image
// part that still has to be uploaded.
type Output struct {
	Result models.GenerationResult
	Image  imagecodec.InlinePart
}

// GenerationError wraps every failure of the generation call, including a
// model that answered with text instead of an image.
type GenerationError struct {
	Refusal string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Refusal != "" {
		return fmt.Sprintf("Failed to generate poster: AI returned text instead of an image: \"%s\"", e.Refusal)
	}
	return fmt.Sprintf("Failed to generate poster: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// IsRefusal reports whether err is a text-only model answer.
func IsRefusal(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr) && genErr.Refusal != ""
}

func NewClient(ctx context.Context, apiKey, model string, log zerolog.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return NewClientWithGenerator(client.Models, model, log), nil
}

func NewClientWithGenerator(models ContentGenerator, model string, log zerolog.Logger) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		models: models,
		model:  model,
		log:    log.With().Str("component", "gemini").Logger(),
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Generate sends one image+instruction request asking for image and text
// modalities. It returns the first image part of the answer. A text-only
// answer is a *GenerationError carrying the text; an answer with neither
// yields (nil, nil). The call is never retried.
func (c *Client) Generate(ctx context.Context, part imagecodec.InlinePart, prompt string) (*Output, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(part.Data, part.MIMEType),
			genai.NewPartFromText(fmt.Sprintf(instructionTemplate, prompt)),
		}, genai.RoleUser),
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage), string(genai.ModalityText)},
	})
	if err != nil {
		c.log.Error().Err(err).Msg("generate content failed")
		return nil, &GenerationError{Err: err}
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, nil
	}
	candidate := resp.Candidates[0]

	var text strings.Builder
	for _, p := range candidate.Content.Parts {
		if p == nil {
			continue
		}
		if p.InlineData != nil && strings.HasPrefix(p.InlineData.MIMEType, "image/") {
			c.log.Debug().
				Str("mime_type", p.InlineData.MIMEType).
				Int("bytes", len(p.InlineData.Data)).
				Str("finish_reason", string(candidate.FinishReason)).
				Msg("image part received")
			return &Output{
				Result: models.GenerationResult{
					UsageMetadata: usageFrom(resp.UsageMetadata),
					FinishReason:  string(candidate.FinishReason),
					Model:         c.model,
				},
				Image: imagecodec.InlinePart{
					MIMEType: p.InlineData.MIMEType,
					Data:     p.InlineData.Data,
				},
			}, nil
		}
		if p.Text != "" && !p.Thought {
			text.WriteString(p.Text)
		}
	}

	// Whitespace-only text counts as no answer; real text is kept as sent.
	if refusal := text.String(); strings.TrimSpace(refusal) != "" {
		c.log.Warn().Str("text", refusal).Msg("model returned text instead of an image")
		return nil, &GenerationError{Refusal: refusal}
	}

	return nil, nil
}

func usageFrom(u *genai.GenerateContentResponseUsageMetadata) *models.UsageMetadata {
	if u == nil {
		return nil
	}
	return &models.UsageMetadata{
		PromptTokenCount:     int32Ptr(u.PromptTokenCount),
		CandidatesTokenCount: int32Ptr(u.CandidatesTokenCount),
		TotalTokenCount:      int32Ptr(u.TotalTokenCount),
	}
}

func int32Ptr(v int32) *int32 {
	return &v
}
