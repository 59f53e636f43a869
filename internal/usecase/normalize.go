package usecase

import (
	"encoding/json"
	"strings"

	"github.com/oceralabs/ocera/internal/domain"
)

// Normalization never fails: every input, however malformed, produces a valid
// DTO. Both functions are pure so repeated calls on the same payload yield
// identical results.

var stockOptimizeTips = []string{
	"Content optimized for better engagement",
	"Tone adjusted for target audience",
	"Structure improved for readability",
}

var fallbackOptimizeTips = []string{
	"AI optimization temporarily unavailable",
	"Using original content as fallback",
	"Please try again later for AI enhancements",
}

// NormalizeOptimization converts a raw generation into an OptimizationResult.
// The result content is never empty: safety suppression, missing output, and
// empty parses all degrade to the original request content.
func NormalizeOptimization(gen domain.Generation, req domain.OptimizationRequest) domain.OptimizationResult {
	res := domain.OptimizationResult{
		OriginalContent: req.Content,
		Subreddit:       req.Subreddit,
		Tone:            req.Tone,
	}

	if gen.SafetyBlocked || strings.TrimSpace(gen.Text) == "" {
		res.OptimizedContent = req.Content
		res.OptimizedTitle = "Optimized Post"
		res.Tips = append([]string(nil), fallbackOptimizeTips...)
		res.Fallback = true
		return res
	}

	res.OptimizedContent = gen.Text
	var parsed struct {
		OptimizedContent string   `json:"optimizedContent"`
		OptimizedTitle   string   `json:"optimizedTitle"`
		Tips             []string `json:"tips"`
	}
	if obj := extractJSONObject(gen.Text); obj != "" && json.Unmarshal([]byte(obj), &parsed) == nil && parsed.OptimizedContent != "" {
		res.OptimizedContent = parsed.OptimizedContent
		res.OptimizedTitle = parsed.OptimizedTitle
		res.Tips = parsed.Tips
		if res.Tips == nil {
			res.Tips = []string{}
		}
	} else {
		// Plain-text model output: the raw text is the optimized content.
		res.Tips = append([]string(nil), stockOptimizeTips...)
	}

	if strings.TrimSpace(res.OptimizedContent) == "" {
		res.OptimizedContent = req.Content
		res.Tips = append([]string{"Using original content due to processing issues"}, res.Tips...)
	}
	return res
}

// NormalizeSuggestions converts a raw generation into a SuggestionResult whose
// count is clamped to [minCount, maxCount], padding from the fallback catalog
// when short and truncating when long.
func NormalizeSuggestions(gen domain.Generation, category string, minCount, maxCount int) domain.SuggestionResult {
	res := domain.SuggestionResult{Category: category}

	switch {
	case gen.SafetyBlocked:
		res.Suggestions = FallbackSuggestions(category)
		res.Fallback = true
		res.Reason = "content blocked by safety filters"
	case strings.TrimSpace(gen.Text) == "":
		res.Suggestions = FallbackSuggestions(category)
		res.Fallback = true
		res.Reason = "no model output received"
	default:
		suggestions, ok := parseSuggestions(gen.Text)
		if !ok || len(suggestions) == 0 {
			res.Suggestions = FallbackSuggestions(category)
			res.Fallback = true
			res.Reason = "model output was not parseable"
		} else {
			res.Suggestions = suggestions
		}
	}

	res.Suggestions = clampSuggestions(res.Suggestions, category, minCount, maxCount)
	res.Count = len(res.Suggestions)
	return res
}

func parseSuggestions(text string) ([]domain.SubredditSuggestion, bool) {
	arr := extractJSONArray(text)
	if arr == "" {
		return nil, false
	}
	var raw []domain.SubredditSuggestion
	if err := json.Unmarshal([]byte(arr), &raw); err != nil {
		return nil, false
	}
	out := make([]domain.SubredditSuggestion, 0, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		if s.Description == "" {
			s.Description = "No description available"
		}
		if s.Subscribers == "" {
			s.Subscribers = "Unknown"
		}
		if s.Engagement == "" {
			s.Engagement = "medium"
		}
		out = append(out, s)
	}
	return out, true
}

func clampSuggestions(list []domain.SubredditSuggestion, category string, minCount, maxCount int) []domain.SubredditSuggestion {
	if len(list) > maxCount {
		return list[:maxCount]
	}
	if len(list) >= minCount {
		return list
	}
	seen := make(map[string]bool, len(list))
	for _, s := range list {
		seen[strings.ToLower(s.Name)] = true
	}
	for _, s := range FallbackSuggestions(category) {
		if len(list) >= minCount {
			break
		}
		if seen[strings.ToLower(s.Name)] {
			continue
		}
		list = append(list, s)
		seen[strings.ToLower(s.Name)] = true
	}
	// The generic list backstops exotic min bounds the per-category catalog
	// cannot satisfy on its own.
	for _, s := range genericFallback {
		if len(list) >= minCount {
			break
		}
		if seen[strings.ToLower(s.Name)] {
			continue
		}
		list = append(list, s)
		seen[strings.ToLower(s.Name)] = true
	}
	return list
}

// extractJSONObject strips markdown fences and returns the first balanced
// {...} block, or "" when none exists.
func extractJSONObject(text string) string {
	return extractBalanced(stripFences(text), '{', '}')
}

// extractJSONArray strips markdown fences and returns the first balanced
// [...] block, or "" when none exists.
func extractJSONArray(text string) string {
	return extractBalanced(stripFences(text), '[', ']')
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func extractBalanced(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
