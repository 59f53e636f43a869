// Package domain defines the core entities, error taxonomy, and ports of the
// Ocera backend. Adapters depend on this package, never the other way around.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels). Handlers map these to HTTP statuses.
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrRateLimited         = errors.New("rate limited")
	ErrUpstreamClient      = errors.New("upstream client error")
	ErrUpstreamTimeout     = errors.New("upstream timeout")
	ErrUpstreamRateLimit   = errors.New("upstream rate limit")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrNotConfigured       = errors.New("not configured")
	ErrInternal            = errors.New("internal error")
)

// Subscription plans.
const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

// Subscription statuses mirrored from the payment providers.
const (
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
	SubscriptionExpired  = "expired"
)

// User is the durable per-account row: subscription state plus the Reddit
// connection. Tokens are stored server-side only and never serialized out.
type User struct {
	ID                    string
	Email                 string
	Plan                  string
	SubscriptionStatus    string
	SubscriptionID        string
	SubscriptionExpiresAt *time.Time
	RedditConnected       bool
	RedditUsername        string
	RedditAccessToken     string
	RedditRefreshToken    string
	RedditTokenExpiresAt  *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Premium reports whether the user currently has an active paid plan.
func (u User) Premium(now time.Time) bool {
	if u.Plan != PlanPremium || u.SubscriptionStatus != SubscriptionActive {
		return false
	}
	return u.SubscriptionExpiresAt == nil || u.SubscriptionExpiresAt.After(now)
}

// OptimizationRequest is the input DTO for content optimization.
// Invariants: Content non-empty after trimming; length bounded by config.
type OptimizationRequest struct {
	Content   string
	Subreddit string
	Tone      string
}

// OptimizationResult is always usable: OptimizedContent is never empty, it
// degrades to the original input when the remote call fails or returns junk.
type OptimizationResult struct {
	OptimizedContent string   `json:"optimizedContent"`
	OptimizedTitle   string   `json:"optimizedTitle,omitempty"`
	OriginalContent  string   `json:"originalContent"`
	Subreddit        string   `json:"subreddit"`
	Tone             string   `json:"tone"`
	Tips             []string `json:"tips"`
	Fallback         bool     `json:"fallback,omitempty"`
}

// SuggestionRequest is the input DTO for subreddit suggestion.
type SuggestionRequest struct {
	Content  string
	Category string
}

// SubredditSuggestion is one entry of a suggestion list.
type SubredditSuggestion struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Subscribers string `json:"subscribers"`
	Engagement  string `json:"engagement"`
}

// SuggestionResult holds between MinSuggestions and MaxSuggestions entries
// after clamping; Fallback marks results served from the static catalog.
type SuggestionResult struct {
	Suggestions []SubredditSuggestion `json:"suggestions"`
	Category    string                `json:"category"`
	Count       int                   `json:"count"`
	Fallback    bool                  `json:"fallback,omitempty"`
	Reason      string                `json:"reason,omitempty"`
}

// Generation is the decoded output of one text-generation call.
// SafetyBlocked means the provider suppressed the candidate; callers must
// degrade to a fallback rather than fail the request.
type Generation struct {
	Text          string
	SafetyBlocked bool
}

// TextGenerator is the port to the generative-language API.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (Generation, error)
}

// RedditToken is the result of an OAuth2 authorization-code exchange.
type RedditToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
}

// RedditIdentity is the authenticated Reddit account (/api/v1/me).
type RedditIdentity struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	LinkKarma    int     `json:"link_karma"`
	CommentKarma int     `json:"comment_karma"`
	CreatedUTC   float64 `json:"created_utc"`
}

// RedditPost is the flattened shape of a listing child; the raw Reddit
// envelope never leaves the reddit adapter.
type RedditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Score       int     `json:"score"`
	UpvoteRatio float64 `json:"upvote_ratio"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	Selftext    string  `json:"selftext"`
	IsSelf      bool    `json:"is_self"`
	Thumbnail   string  `json:"thumbnail"`
	Domain      string  `json:"domain"`
	Stickied    bool    `json:"stickied"`
	Over18      bool    `json:"over_18"`
}

// RedditListing is a page of posts with pagination cursors.
type RedditListing struct {
	Posts  []RedditPost `json:"posts"`
	After  string       `json:"after,omitempty"`
	Before string       `json:"before,omitempty"`
}

// SubredditInfo is the flattened /r/{name}/about payload.
type SubredditInfo struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Subscribers int    `json:"subscribers"`
	Over18      bool   `json:"over_18"`
	URL         string `json:"url"`
}

// RedditMessage is one inbox item.
type RedditMessage struct {
	ID         string  `json:"id"`
	Author     string  `json:"author"`
	Subject    string  `json:"subject"`
	Body       string  `json:"body"`
	CreatedUTC float64 `json:"created_utc"`
	New        bool    `json:"new"`
}

// SubmitRequest creates a new Reddit post.
type SubmitRequest struct {
	Subreddit string
	Title     string
	Kind      string // self | link
	Text      string
	URL       string
}

// RedditClient is the port to the Reddit REST API, both the OAuth token
// endpoints (www.reddit.com) and the authenticated API (oauth.reddit.com).
type RedditClient interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (RedditToken, error)
	Identity(ctx context.Context, accessToken string) (RedditIdentity, error)

	UserPosts(ctx context.Context, accessToken, username, sort string, limit int) (RedditListing, error)
	SubredditPosts(ctx context.Context, accessToken, subreddit, sort string, limit int) (RedditListing, error)
	HotPosts(ctx context.Context, accessToken string, limit int) (RedditListing, error)
	RisingPosts(ctx context.Context, accessToken string, limit int) (RedditListing, error)
	PostDetails(ctx context.Context, accessToken, postID string) (RedditPost, error)
	Comments(ctx context.Context, accessToken, postID string, limit int) ([]map[string]any, error)
	Submit(ctx context.Context, accessToken string, req SubmitRequest) (string, error)
	EditPost(ctx context.Context, accessToken, fullname, text string) error
	DeletePost(ctx context.Context, accessToken, fullname string) error
	Vote(ctx context.Context, accessToken, fullname string, direction int) error
	SubredditInfo(ctx context.Context, accessToken, subreddit string) (SubredditInfo, error)
	Subscribe(ctx context.Context, accessToken, subreddit string, subscribe bool) error
	SearchSubreddits(ctx context.Context, accessToken, query string, limit int) ([]SubredditInfo, error)
	Messages(ctx context.Context, accessToken, box string, limit int) ([]RedditMessage, error)
}

// CheckoutRequest asks a payment provider to start a checkout session.
type CheckoutRequest struct {
	UserID string
	Email  string
	Plan   string
}

// CheckoutSession is the provider-hosted payment page.
type CheckoutSession struct {
	CheckoutURL string `json:"checkoutUrl"`
	Reference   string `json:"reference,omitempty"`
}

// Webhook event kinds normalized across providers.
const (
	WebhookSubscriptionActivated   = "subscription_activated"
	WebhookSubscriptionDeactivated = "subscription_deactivated"
	WebhookIgnored                 = "ignored"
)

// WebhookEvent is a provider webhook decoded into provider-neutral terms.
type WebhookEvent struct {
	Kind           string
	UserID         string
	Plan           string
	SubscriptionID string
}

// PaymentProvider is the port to a checkout/webhook payment backend.
type PaymentProvider interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	VerifySignature(body []byte, signature string) bool
	ParseWebhook(body []byte) (WebhookEvent, error)
}

// RedditConnection is the persisted outcome of a successful OAuth exchange.
type RedditConnection struct {
	Username     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// SubscriptionUpdate is the persisted outcome of a billing webhook.
type SubscriptionUpdate struct {
	Plan           string
	Status         string
	SubscriptionID string
	ExpiresAt      *time.Time
}

// UserRepository persists users keyed by the identity provider's subject id.
// Writes are last-write-wins upserts; no cross-row invariants exist.
type UserRepository interface {
	Get(ctx context.Context, id string) (User, error)
	Ensure(ctx context.Context, id, email string) (User, error)
	SaveRedditConnection(ctx context.Context, id string, conn RedditConnection) error
	ClearRedditConnection(ctx context.Context, id string) error
	UpdateSubscription(ctx context.Context, id string, sub SubscriptionUpdate) error
}

// StateStore issues and consumes single-use anti-forgery state tokens for the
// OAuth connect flow. Consume must be one-shot: a second call with the same
// token fails.
type StateStore interface {
	Issue(ctx context.Context, userID string, ttl time.Duration) (string, error)
	Consume(ctx context.Context, state string) (string, error)
}
