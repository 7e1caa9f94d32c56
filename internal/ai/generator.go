package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// TextGenerator turns any Runtime into a single-prompt text generator.
type TextGenerator struct {
	Runtime     Runtime
	Model       string
	MaxTokens   int
	Temperature float64
	// OnDelta, when set and the runtime can stream, receives partial output.
	OnDelta func(string)
}

// Generate sends prompt as one user message and returns the first choice.
func (g TextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.Runtime == nil {
		return "", errors.New("no runtime configured")
	}
	req := GenerateRequest{
		Model:       g.Model,
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		MaxTokens:   g.MaxTokens,
		Temperature: g.Temperature,
	}
	if sr, ok := g.Runtime.(StreamRuntime); ok && g.OnDelta != nil {
		var b strings.Builder
		err := sr.GenerateStream(ctx, req, func(delta string) {
			b.WriteString(delta)
			g.OnDelta(delta)
		})
		if err != nil {
			return "", fmt.Errorf("streaming generation failed: %w", err)
		}
		return strings.TrimSpace(b.String()), nil
	}
	resp, err := g.Runtime.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("empty response from provider")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
