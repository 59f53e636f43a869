package usecase

import (
	"strings"

	"github.com/oceralabs/ocera/internal/domain"
)

// fallbackCatalog maps a lowercase category to a fixed, ordered suggestion
// list. Served whenever the remote call cannot produce a usable result, so it
// must stay computable offline.
var fallbackCatalog = map[string][]domain.SubredditSuggestion{
	"technology": {
		{Name: "technology", Description: "General technology discussions", Subscribers: "8M+", Engagement: "high"},
		{Name: "programming", Description: "Programming and development", Subscribers: "4M+", Engagement: "high"},
		{Name: "webdev", Description: "Web development community", Subscribers: "800K+", Engagement: "medium"},
	},
	"business": {
		{Name: "entrepreneur", Description: "Entrepreneurship discussions", Subscribers: "1M+", Engagement: "high"},
		{Name: "business", Description: "General business topics", Subscribers: "2M+", Engagement: "medium"},
		{Name: "startups", Description: "Startup community", Subscribers: "1.5M+", Engagement: "high"},
	},
	"gaming": {
		{Name: "gaming", Description: "General gaming community", Subscribers: "30M+", Engagement: "high"},
		{Name: "pcgaming", Description: "PC gaming discussions", Subscribers: "2M+", Engagement: "high"},
		{Name: "gamedev", Description: "Game development", Subscribers: "200K+", Engagement: "medium"},
	},
}

var genericFallback = []domain.SubredditSuggestion{
	{Name: "general", Description: "General discussion community", Subscribers: "1M+", Engagement: "medium"},
	{Name: "discussion", Description: "Open discussion forum", Subscribers: "500K+", Engagement: "medium"},
	{Name: "askreddit", Description: "Ask questions to the Reddit community", Subscribers: "35M+", Engagement: "high"},
}

// FallbackSuggestions returns the catalog entries for a category
// (case-insensitive), or the generic default list for unknown categories.
// The returned slice is a copy; callers may mutate it.
func FallbackSuggestions(category string) []domain.SubredditSuggestion {
	list, ok := fallbackCatalog[strings.ToLower(strings.TrimSpace(category))]
	if !ok {
		list = genericFallback
	}
	out := make([]domain.SubredditSuggestion, len(list))
	copy(out, list)
	return out
}
