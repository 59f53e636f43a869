// Package usecase contains application business logic services.
package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/oceralabs/ocera/internal/adapter/observability"
	"github.com/oceralabs/ocera/internal/domain"
)

// Defaults applied to optional request fields.
const (
	DefaultSubreddit = "general"
	DefaultCategory  = "general"
	DefaultTone      = "professional"
)

// AIService serves the two AI-proxy operations: content optimization and
// subreddit suggestion. One service, one generator client; the drifted
// per-endpoint copies of the old implementation are consolidated here.
type AIService struct {
	Gen              domain.TextGenerator
	MaxContentLength int
	MinSuggestions   int
	MaxSuggestions   int
}

// NewAIService constructs an AIService with the given generator and bounds.
func NewAIService(gen domain.TextGenerator, maxContentLength, minSuggestions, maxSuggestions int) AIService {
	return AIService{Gen: gen, MaxContentLength: maxContentLength, MinSuggestions: minSuggestions, MaxSuggestions: maxSuggestions}
}

// ValidateOptimization trims and defaults the request fields, rejecting empty
// or oversized content before any network cost is incurred.
func (s AIService) ValidateOptimization(req domain.OptimizationRequest) (domain.OptimizationRequest, error) {
	content, err := s.validateContent(req.Content)
	if err != nil {
		return domain.OptimizationRequest{}, err
	}
	return domain.OptimizationRequest{
		Content:   content,
		Subreddit: defaultString(req.Subreddit, DefaultSubreddit),
		Tone:      defaultString(req.Tone, DefaultTone),
	}, nil
}

// ValidateSuggestion mirrors ValidateOptimization for the suggester input.
func (s AIService) ValidateSuggestion(req domain.SuggestionRequest) (domain.SuggestionRequest, error) {
	content, err := s.validateContent(req.Content)
	if err != nil {
		return domain.SuggestionRequest{}, err
	}
	return domain.SuggestionRequest{
		Content:  content,
		Category: defaultString(req.Category, DefaultCategory),
	}, nil
}

func (s AIService) validateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", fmt.Errorf("%w: content is required and must be a non-empty string", domain.ErrInvalidArgument)
	}
	if len(content) > s.MaxContentLength {
		return "", fmt.Errorf("%w: content exceeds maximum length of %d characters", domain.ErrInvalidArgument, s.MaxContentLength)
	}
	return trimmed, nil
}

func defaultString(s, def string) string {
	if t := strings.TrimSpace(s); t != "" {
		return t
	}
	return def
}

// Optimize validates the request, performs one retried generation call, and
// normalizes whatever comes back. Degraded model output never fails the
// request; only validation and exhausted upstream errors propagate.
func (s AIService) Optimize(ctx context.Context, req domain.OptimizationRequest) (domain.OptimizationResult, error) {
	vreq, err := s.ValidateOptimization(req)
	if err != nil {
		return domain.OptimizationResult{}, err
	}
	gen, err := s.Gen.Generate(ctx, optimizePrompt(vreq))
	if err != nil {
		return domain.OptimizationResult{}, fmt.Errorf("op=ai.Optimize: %w", err)
	}
	res := NormalizeOptimization(gen, vreq)
	if res.Fallback {
		observability.AIFallbacksTotal.WithLabelValues("optimize", fallbackReason(gen)).Inc()
	}
	return res, nil
}

// SuggestSubreddits validates the request, calls the generator, and returns a
// clamped suggestion list, falling back to the static catalog on any degraded
// output.
func (s AIService) SuggestSubreddits(ctx context.Context, req domain.SuggestionRequest) (domain.SuggestionResult, error) {
	vreq, err := s.ValidateSuggestion(req)
	if err != nil {
		return domain.SuggestionResult{}, err
	}
	gen, err := s.Gen.Generate(ctx, suggestPrompt(vreq, s.MinSuggestions, s.MaxSuggestions))
	if err != nil {
		return domain.SuggestionResult{}, fmt.Errorf("op=ai.SuggestSubreddits: %w", err)
	}
	res := NormalizeSuggestions(gen, vreq.Category, s.MinSuggestions, s.MaxSuggestions)
	if res.Fallback {
		observability.AIFallbacksTotal.WithLabelValues("suggest_subreddits", fallbackReason(gen)).Inc()
	}
	return res, nil
}

func fallbackReason(gen domain.Generation) string {
	switch {
	case gen.SafetyBlocked:
		return "safety_blocked"
	case strings.TrimSpace(gen.Text) == "":
		return "empty_output"
	default:
		return "unparseable"
	}
}

func optimizePrompt(req domain.OptimizationRequest) string {
	var b strings.Builder
	b.WriteString("You adapt posts for specific subreddits while keeping the core message intact.\n")
	b.WriteString("Respond with a JSON object: {\"optimizedContent\": string, \"optimizedTitle\": string, \"tips\": [string]}.\n\n")
	fmt.Fprintf(&b, "Optimize this content for r/%s with a %s tone:\n\n%s\n", req.Subreddit, req.Tone, req.Content)
	return b.String()
}

func suggestPrompt(req domain.SuggestionRequest, minCount, maxCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Suggest %d-%d subreddits where the content below would be well received.\n", minCount, maxCount)
	b.WriteString("Respond with a JSON array of objects: {\"name\", \"description\", \"subscribers\", \"engagement\"}.\n\n")
	fmt.Fprintf(&b, "Category: %s\nContent: %s\n", req.Category, req.Content)
	return b.String()
}
