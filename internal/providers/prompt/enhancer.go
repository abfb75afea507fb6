// Package prompt enriches raw user prompts into more detailed ones before
// image synthesis. Enhancement is best-effort: a remote failure degrades to
// a static rewrite rather than surfacing an error to the caller.
package prompt

import (
	"context"
	"strings"
)

// FallbackSuffix is appended by the static enhancer when the remote model
// is unavailable.
const FallbackSuffix = ", masterpiece, highly detailed, 8k, cinematic lighting, ultra-realistic textures"

// Enhancer rewrites a prompt into a richer variant.
type Enhancer interface {
	Name() string
	Enhance(ctx context.Context, prompt string) (string, error)
}

// StaticEnhancer appends a fixed quality suffix. It never fails and is the
// fallback of last resort.
type StaticEnhancer struct{}

func (StaticEnhancer) Name() string { return "static" }

func (StaticEnhancer) Enhance(_ context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if strings.HasSuffix(prompt, FallbackSuffix) {
		return prompt, nil
	}
	return prompt + FallbackSuffix, nil
}

// Service wraps a primary enhancer with the static fallback so callers
// always receive a usable prompt.
type Service struct {
	primary  Enhancer
	fallback Enhancer
}

// NewService builds a Service. A nil primary means fallback-only operation.
func NewService(primary Enhancer) *Service {
	return &Service{primary: primary, fallback: StaticEnhancer{}}
}

// Enhance returns the enriched prompt and the name of the enhancer that
// produced it.
func (s *Service) Enhance(ctx context.Context, prompt string) (string, string) {
	if s.primary != nil {
		enhanced, err := s.primary.Enhance(ctx, prompt)
		if err == nil && strings.TrimSpace(enhanced) != "" {
			return strings.TrimSpace(enhanced), s.primary.Name()
		}
	}
	enhanced, _ := s.fallback.Enhance(ctx, prompt)
	return enhanced, s.fallback.Name()
}
