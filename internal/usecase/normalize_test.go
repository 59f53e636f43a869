package usecase

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceralabs/ocera/internal/domain"
)

func TestNormalizeOptimization_EmptyGenerationFallsBack(t *testing.T) {
	req := domain.OptimizationRequest{Content: "original post", Subreddit: "golang", Tone: "casual"}
	res := NormalizeOptimization(domain.Generation{}, req)

	assert.Equal(t, "original post", res.OptimizedContent)
	assert.Equal(t, "original post", res.OriginalContent)
	assert.True(t, res.Fallback)
	assert.NotEmpty(t, res.Tips)
	assert.NotEmpty(t, res.OptimizedContent)
}

func TestNormalizeOptimization_SafetyBlockedFallsBack(t *testing.T) {
	req := domain.OptimizationRequest{Content: "original", Subreddit: "general", Tone: "professional"}
	res := NormalizeOptimization(domain.Generation{SafetyBlocked: true}, req)

	assert.True(t, res.Fallback)
	assert.Equal(t, "original", res.OptimizedContent)
}

func TestNormalizeOptimization_PlainTextIsNotFallback(t *testing.T) {
	req := domain.OptimizationRequest{Content: "original", Subreddit: "general", Tone: "professional"}
	res := NormalizeOptimization(domain.Generation{Text: "a rewritten version of the post"}, req)

	assert.Equal(t, "a rewritten version of the post", res.OptimizedContent)
	assert.False(t, res.Fallback)
	assert.Equal(t, stockOptimizeTips, res.Tips)
}

func TestNormalizeOptimization_FencedJSON(t *testing.T) {
	req := domain.OptimizationRequest{Content: "orig", Subreddit: "webdev", Tone: "casual"}
	text := "```json\n{\"optimizedContent\":\"new body\",\"optimizedTitle\":\"New Title\",\"tips\":[\"a\",\"b\"]}\n```"
	res := NormalizeOptimization(domain.Generation{Text: text}, req)

	assert.Equal(t, "new body", res.OptimizedContent)
	assert.Equal(t, "New Title", res.OptimizedTitle)
	assert.Equal(t, []string{"a", "b"}, res.Tips)
}

func TestNormalizeOptimization_JSONWithEmptyContentRecovers(t *testing.T) {
	req := domain.OptimizationRequest{Content: "orig", Subreddit: "general", Tone: "professional"}
	res := NormalizeOptimization(domain.Generation{Text: `{"optimizedContent":"","tips":[]}`}, req)

	// Parse rejects empty optimizedContent, so the raw text survives, and the
	// raw text here is JSON noise rather than prose. Content must still be
	// non-empty.
	assert.NotEmpty(t, res.OptimizedContent)
}

func TestNormalizeOptimization_Idempotent(t *testing.T) {
	req := domain.OptimizationRequest{Content: "same input", Subreddit: "golang", Tone: "casual"}
	inputs := []domain.Generation{
		{},
		{SafetyBlocked: true},
		{Text: "plain output"},
		{Text: `{"optimizedContent":"structured","optimizedTitle":"T","tips":["x"]}`},
	}
	for i, gen := range inputs {
		t.Run(fmt.Sprintf("input_%d", i), func(t *testing.T) {
			first := NormalizeOptimization(gen, req)
			second := NormalizeOptimization(gen, req)
			assert.Equal(t, first, second)
		})
	}
}

func TestNormalizeSuggestions_EmptyFallsBackToCatalog(t *testing.T) {
	res := NormalizeSuggestions(domain.Generation{}, "technology", 3, 10)

	assert.True(t, res.Fallback)
	assert.Equal(t, "no model output received", res.Reason)
	assert.Equal(t, "technology", res.Category)
	require.Len(t, res.Suggestions, 3)
	assert.Equal(t, "technology", res.Suggestions[0].Name)
	assert.Equal(t, 3, res.Count)
}

func TestNormalizeSuggestions_UnparseableFallsBack(t *testing.T) {
	res := NormalizeSuggestions(domain.Generation{Text: "sorry, I cannot help with that"}, "business", 3, 10)

	assert.True(t, res.Fallback)
	assert.Equal(t, "model output was not parseable", res.Reason)
	assert.Equal(t, "entrepreneur", res.Suggestions[0].Name)
}

func TestNormalizeSuggestions_TruncatesAboveMax(t *testing.T) {
	text := `[`
	for i := 0; i < 15; i++ {
		if i > 0 {
			text += ","
		}
		text += fmt.Sprintf(`{"name":"sub%d","description":"d","subscribers":"1K","engagement":"low"}`, i)
	}
	text += `]`

	res := NormalizeSuggestions(domain.Generation{Text: text}, "general", 3, 10)
	assert.Len(t, res.Suggestions, 10)
	assert.Equal(t, 10, res.Count)
	assert.False(t, res.Fallback)
}

func TestNormalizeSuggestions_PadsBelowMin(t *testing.T) {
	text := `[{"name":"golang","description":"Go","subscribers":"250K+","engagement":"high"}]`
	res := NormalizeSuggestions(domain.Generation{Text: text}, "technology", 3, 10)

	require.Len(t, res.Suggestions, 3)
	assert.Equal(t, "golang", res.Suggestions[0].Name)
	// Padding comes from the catalog without duplicating names.
	seen := map[string]bool{}
	for _, s := range res.Suggestions {
		assert.False(t, seen[s.Name], "duplicate suggestion %q", s.Name)
		seen[s.Name] = true
	}
}

func TestNormalizeSuggestions_DefaultsMissingFields(t *testing.T) {
	text := `[{"name":"golang"},{"name":""},{"name":"webdev","engagement":"high"}]`
	res := NormalizeSuggestions(domain.Generation{Text: text}, "technology", 2, 10)

	require.GreaterOrEqual(t, len(res.Suggestions), 2)
	assert.Equal(t, "golang", res.Suggestions[0].Name)
	assert.Equal(t, "No description available", res.Suggestions[0].Description)
	assert.Equal(t, "Unknown", res.Suggestions[0].Subscribers)
	assert.Equal(t, "medium", res.Suggestions[0].Engagement)
	assert.Equal(t, "webdev", res.Suggestions[1].Name)
	assert.Equal(t, "high", res.Suggestions[1].Engagement)
}

func TestNormalizeSuggestions_Idempotent(t *testing.T) {
	gen := domain.Generation{Text: `[{"name":"golang","description":"Go","subscribers":"250K+","engagement":"high"}]`}
	first := NormalizeSuggestions(gen, "technology", 3, 10)
	second := NormalizeSuggestions(gen, "technology", 3, 10)
	assert.Equal(t, first, second)
}

func TestFallbackSuggestions(t *testing.T) {
	tests := []struct {
		category string
		first    string
	}{
		{"technology", "technology"},
		{"Technology", "technology"},
		{"  BUSINESS ", "entrepreneur"},
		{"gaming", "gaming"},
		{"unknown-category", "general"},
		{"", "general"},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			got := FallbackSuggestions(tt.category)
			require.NotEmpty(t, got)
			assert.Equal(t, tt.first, got[0].Name)
		})
	}
}

func TestFallbackSuggestions_ReturnsCopy(t *testing.T) {
	a := FallbackSuggestions("technology")
	a[0].Name = "mutated"
	b := FallbackSuggestions("technology")
	assert.Equal(t, "technology", b[0].Name)
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"leading prose", `Here you go: {"a":{"b":2}} done`, `{"a":{"b":2}}`},
		{"brace inside string", `{"a":"}{"}`, `{"a":"}{"}`},
		{"no object", "nothing here", ""},
		{"unbalanced", `{"a":1`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSONObject(tt.in))
		})
	}
}

func TestExtractJSONArray(t *testing.T) {
	assert.Equal(t, `[{"a":1},{"b":2}]`, extractJSONArray("prefix [{\"a\":1},{\"b\":2}] suffix"))
	assert.Equal(t, "", extractJSONArray("no array"))
}
