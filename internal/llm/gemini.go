package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini is an alternative backend over the Google GenAI SDK.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini backend. Returns nil (generation disabled)
// when the client cannot be constructed.
func NewGemini(ctx context.Context, project, location, model string) *Gemini {
	if project == "" {
		return nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  project,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil
	}
	return &Gemini{client: client, model: model}
}

// Enabled returns true if the backend is ready to serve calls.
func (g *Gemini) Enabled() bool {
	return g != nil && g.client != nil
}

// Complete sends a prompt to Gemini and returns the response text.
func (g *Gemini) Complete(ctx context.Context, system, user string, opts Options) (string, error) {
	if !g.Enabled() {
		return "", fmt.Errorf("gemini client not configured")
	}

	temp := float32(opts.Temperature)
	maxTokens := int32(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 500
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: maxTokens,
		SystemInstruction: &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: system}},
		},
	}

	contents := []*genai.Content{
		{Role: genai.RoleUser, Parts: []*genai.Part{{Text: user}}},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini call: %w", err)
	}

	txt := extractText(resp)
	if txt == "" {
		return "", fmt.Errorf("empty response")
	}
	return txt, nil
}

func extractText(res *genai.GenerateContentResponse) string {
	if res == nil || len(res.Candidates) == 0 {
		return ""
	}
	for _, c := range res.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}

var _ Completer = &Gemini{}
