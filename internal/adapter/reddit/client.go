// Package reddit implements domain.RedditClient against the Reddit REST API.
// Token endpoints live on the auth host (www.reddit.com); everything else goes
// through the OAuth API host (oauth.reddit.com).
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oceralabs/ocera/internal/adapter/observability"
	"github.com/oceralabs/ocera/internal/config"
	"github.com/oceralabs/ocera/internal/domain"
)

// Client is a thin typed wrapper over the Reddit API. It holds application
// credentials only; user access tokens arrive per call.
type Client struct {
	cfg config.Config
	hc  *http.Client
}

// New constructs a Client with a 30s per-request timeout.
func New(cfg config.Config) *Client {
	return &Client{cfg: cfg, hc: &http.Client{Timeout: 30 * time.Second}}
}

// AuthorizeURL builds the user-facing authorization URL with a permanent
// token grant and the scopes the proxy needs.
func (c *Client) AuthorizeURL(state string) string {
	q := url.Values{
		"client_id":     {c.cfg.RedditClientID},
		"response_type": {"code"},
		"state":         {state},
		"redirect_uri":  {c.cfg.RedditRedirectURL},
		"duration":      {"permanent"},
		"scope":         {"identity read submit edit vote subscribe mysubreddits privatemessages history"},
	}
	return c.cfg.RedditAuthBaseURL + "/api/v1/authorize?" + q.Encode()
}

// ExchangeCode trades an authorization code for tokens using HTTP Basic
// application credentials.
func (c *Client) ExchangeCode(ctx context.Context, code string) (domain.RedditToken, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.cfg.RedditRedirectURL},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.RedditAuthBaseURL+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return domain.RedditToken{}, fmt.Errorf("op=reddit.ExchangeCode: %w", err)
	}
	req.SetBasicAuth(c.cfg.RedditClientID, c.cfg.RedditClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.RedditUserAgent)

	body, err := c.roundTrip(req, "exchange_code")
	if err != nil {
		return domain.RedditToken{}, err
	}

	var tr struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		Scope        string `json:"scope"`
		Error        string `json:"error"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return domain.RedditToken{}, fmt.Errorf("op=reddit.ExchangeCode: decode: %w", err)
	}
	// Reddit reports grant failures as 200 with an error field.
	if tr.Error != "" || tr.AccessToken == "" {
		return domain.RedditToken{}, fmt.Errorf("%w: token exchange rejected: %s", domain.ErrUpstreamClient, tr.Error)
	}
	return domain.RedditToken{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
		Scope:        tr.Scope,
	}, nil
}

// Identity fetches the authenticated account.
func (c *Client) Identity(ctx context.Context, accessToken string) (domain.RedditIdentity, error) {
	var id domain.RedditIdentity
	if err := c.getJSON(ctx, accessToken, "/api/v1/me", nil, "identity", &id); err != nil {
		return domain.RedditIdentity{}, err
	}
	return id, nil
}

// listingEnvelope is Reddit's kind/data wrapper around listings.
type listingEnvelope struct {
	Data struct {
		After    string `json:"after"`
		Before   string `json:"before"`
		Children []struct {
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (e listingEnvelope) posts() []domain.RedditPost {
	out := make([]domain.RedditPost, 0, len(e.Data.Children))
	for _, ch := range e.Data.Children {
		var p domain.RedditPost
		if err := json.Unmarshal(ch.Data, &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (c *Client) listing(ctx context.Context, accessToken, path string, params url.Values, op string) (domain.RedditListing, error) {
	var env listingEnvelope
	if err := c.getJSON(ctx, accessToken, path, params, op, &env); err != nil {
		return domain.RedditListing{}, err
	}
	return domain.RedditListing{
		Posts:  env.posts(),
		After:  env.Data.After,
		Before: env.Data.Before,
	}, nil
}

// UserPosts lists a user's submissions.
func (c *Client) UserPosts(ctx context.Context, accessToken, username, sort string, limit int) (domain.RedditListing, error) {
	path := fmt.Sprintf("/user/%s/submitted", url.PathEscape(username))
	return c.listing(ctx, accessToken, path, url.Values{
		"sort":  {sort},
		"limit": {strconv.Itoa(limit)},
	}, "user_posts")
}

// SubredditPosts lists a subreddit by sort order.
func (c *Client) SubredditPosts(ctx context.Context, accessToken, subreddit, sort string, limit int) (domain.RedditListing, error) {
	path := fmt.Sprintf("/r/%s/%s", url.PathEscape(subreddit), url.PathEscape(sort))
	return c.listing(ctx, accessToken, path, url.Values{"limit": {strconv.Itoa(limit)}}, "subreddit_posts")
}

// HotPosts lists the front-page hot feed for the token's account.
func (c *Client) HotPosts(ctx context.Context, accessToken string, limit int) (domain.RedditListing, error) {
	return c.listing(ctx, accessToken, "/hot", url.Values{"limit": {strconv.Itoa(limit)}}, "hot_posts")
}

// RisingPosts lists the rising feed.
func (c *Client) RisingPosts(ctx context.Context, accessToken string, limit int) (domain.RedditListing, error) {
	return c.listing(ctx, accessToken, "/rising", url.Values{"limit": {strconv.Itoa(limit)}}, "rising_posts")
}

// PostDetails fetches a single post by id36.
func (c *Client) PostDetails(ctx context.Context, accessToken, postID string) (domain.RedditPost, error) {
	var env listingEnvelope
	err := c.getJSON(ctx, accessToken, "/by_id/t3_"+url.PathEscape(postID), nil, "post_details", &env)
	if err != nil {
		return domain.RedditPost{}, err
	}
	posts := env.posts()
	if len(posts) == 0 {
		return domain.RedditPost{}, fmt.Errorf("%w: post %s", domain.ErrNotFound, postID)
	}
	return posts[0], nil
}

// Comments fetches the comment tree of a post. The tree shape is irregular so
// it passes through as raw maps.
func (c *Client) Comments(ctx context.Context, accessToken, postID string, limit int) ([]map[string]any, error) {
	req, err := c.apiRequest(ctx, accessToken, http.MethodGet,
		"/comments/"+url.PathEscape(postID)+"?limit="+strconv.Itoa(limit), nil)
	if err != nil {
		return nil, err
	}
	body, err := c.roundTrip(req, "comments")
	if err != nil {
		return nil, err
	}
	// The endpoint returns [postListing, commentListing].
	var pages []struct {
		Data struct {
			Children []struct {
				Data map[string]any `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &pages); err != nil {
		return nil, fmt.Errorf("op=reddit.Comments: decode: %w", err)
	}
	if len(pages) < 2 {
		return []map[string]any{}, nil
	}
	out := make([]map[string]any, 0, len(pages[1].Data.Children))
	for _, ch := range pages[1].Data.Children {
		out = append(out, ch.Data)
	}
	return out, nil
}

// Submit creates a post and returns its fullname.
func (c *Client) Submit(ctx context.Context, accessToken string, req domain.SubmitRequest) (string, error) {
	form := url.Values{
		"sr":       {req.Subreddit},
		"title":    {req.Title},
		"kind":     {req.Kind},
		"api_type": {"json"},
	}
	if req.Kind == "link" {
		form.Set("url", req.URL)
	} else {
		form.Set("text", req.Text)
	}
	body, err := c.postForm(ctx, accessToken, "/api/submit", form, "submit")
	if err != nil {
		return "", err
	}
	var sr struct {
		JSON struct {
			Errors [][]any `json:"errors"`
			Data   struct {
				Name string `json:"name"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("op=reddit.Submit: decode: %w", err)
	}
	if len(sr.JSON.Errors) > 0 {
		return "", fmt.Errorf("%w: submit rejected: %v", domain.ErrUpstreamClient, sr.JSON.Errors[0])
	}
	return sr.JSON.Data.Name, nil
}

// EditPost replaces the selftext of an existing post.
func (c *Client) EditPost(ctx context.Context, accessToken, fullname, text string) error {
	form := url.Values{
		"thing_id": {fullname},
		"text":     {text},
		"api_type": {"json"},
	}
	_, err := c.postForm(ctx, accessToken, "/api/editusertext", form, "edit_post")
	return err
}

// DeletePost removes a post by fullname.
func (c *Client) DeletePost(ctx context.Context, accessToken, fullname string) error {
	_, err := c.postForm(ctx, accessToken, "/api/del", url.Values{"id": {fullname}}, "delete_post")
	return err
}

// Vote casts a vote: 1 up, -1 down, 0 clears.
func (c *Client) Vote(ctx context.Context, accessToken, fullname string, direction int) error {
	form := url.Values{
		"id":  {fullname},
		"dir": {strconv.Itoa(direction)},
	}
	_, err := c.postForm(ctx, accessToken, "/api/vote", form, "vote")
	return err
}

// SubredditInfo fetches /r/{name}/about.
func (c *Client) SubredditInfo(ctx context.Context, accessToken, subreddit string) (domain.SubredditInfo, error) {
	var env struct {
		Data struct {
			DisplayName string `json:"display_name"`
			Title       string `json:"title"`
			Description string `json:"public_description"`
			Subscribers int    `json:"subscribers"`
			Over18      bool   `json:"over18"`
			URL         string `json:"url"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/r/%s/about", url.PathEscape(subreddit))
	if err := c.getJSON(ctx, accessToken, path, nil, "subreddit_info", &env); err != nil {
		return domain.SubredditInfo{}, err
	}
	return domain.SubredditInfo{
		Name:        env.Data.DisplayName,
		Title:       env.Data.Title,
		Description: env.Data.Description,
		Subscribers: env.Data.Subscribers,
		Over18:      env.Data.Over18,
		URL:         env.Data.URL,
	}, nil
}

// Subscribe joins or leaves a subreddit.
func (c *Client) Subscribe(ctx context.Context, accessToken, subreddit string, subscribe bool) error {
	action := "sub"
	if !subscribe {
		action = "unsub"
	}
	form := url.Values{
		"action":  {action},
		"sr_name": {subreddit},
	}
	_, err := c.postForm(ctx, accessToken, "/api/subscribe", form, "subscribe")
	return err
}

// SearchSubreddits searches communities by name and topic.
func (c *Client) SearchSubreddits(ctx context.Context, accessToken, query string, limit int) ([]domain.SubredditInfo, error) {
	var env struct {
		Data struct {
			Children []struct {
				Data struct {
					DisplayName string `json:"display_name"`
					Title       string `json:"title"`
					Description string `json:"public_description"`
					Subscribers int    `json:"subscribers"`
					Over18      bool   `json:"over18"`
					URL         string `json:"url"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	params := url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(limit)},
	}
	if err := c.getJSON(ctx, accessToken, "/subreddits/search", params, "search_subreddits", &env); err != nil {
		return nil, err
	}
	out := make([]domain.SubredditInfo, 0, len(env.Data.Children))
	for _, ch := range env.Data.Children {
		out = append(out, domain.SubredditInfo{
			Name:        ch.Data.DisplayName,
			Title:       ch.Data.Title,
			Description: ch.Data.Description,
			Subscribers: ch.Data.Subscribers,
			Over18:      ch.Data.Over18,
			URL:         ch.Data.URL,
		})
	}
	return out, nil
}

// Messages lists an inbox box (inbox, unread, sent).
func (c *Client) Messages(ctx context.Context, accessToken, box string, limit int) ([]domain.RedditMessage, error) {
	var env struct {
		Data struct {
			Children []struct {
				Data domain.RedditMessage `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	path := "/message/" + url.PathEscape(box)
	if err := c.getJSON(ctx, accessToken, path, url.Values{"limit": {strconv.Itoa(limit)}}, "messages", &env); err != nil {
		return nil, err
	}
	out := make([]domain.RedditMessage, 0, len(env.Data.Children))
	for _, ch := range env.Data.Children {
		out = append(out, ch.Data)
	}
	return out, nil
}

func (c *Client) apiRequest(ctx context.Context, accessToken, method, pathAndQuery string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.RedditBaseURL+pathAndQuery, body)
	if err != nil {
		return nil, fmt.Errorf("op=reddit.request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", c.cfg.RedditUserAgent)
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, accessToken, path string, params url.Values, op string, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("raw_json", "1")
	req, err := c.apiRequest(ctx, accessToken, http.MethodGet, path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	body, err := c.roundTrip(req, op)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("op=reddit.%s: decode: %w", op, err)
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, accessToken, path string, form url.Values, op string) ([]byte, error) {
	req, err := c.apiRequest(ctx, accessToken, http.MethodPost, path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.roundTrip(req, op)
}

// roundTrip executes one request, records upstream metrics, and maps non-2xx
// statuses onto the domain taxonomy.
func (c *Client) roundTrip(req *http.Request, op string) ([]byte, error) {
	start := time.Now()
	resp, err := c.hc.Do(req)
	observability.UpstreamRequestsTotal.WithLabelValues("reddit", op).Inc()
	observability.UpstreamRequestDuration.WithLabelValues("reddit", op).Observe(time.Since(start).Seconds())
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, fmt.Errorf("%w: reddit %s: %v", domain.ErrUpstreamTimeout, op, err)
		}
		return nil, fmt.Errorf("%w: reddit %s: %v", domain.ErrUpstreamUnavailable, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reddit %s: %v", domain.ErrUpstreamUnavailable, op, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	snippet := string(body)
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}
	slog.Warn("reddit non-2xx",
		slog.String("op", op),
		slog.Int("status", resp.StatusCode),
		slog.String("body", snippet))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: reddit %s: status %d", domain.ErrForbidden, op, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: reddit %s", domain.ErrNotFound, op)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: reddit %s", domain.ErrUpstreamRateLimit, op)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: reddit %s: status %d", domain.ErrUpstreamUnavailable, op, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: reddit %s: status %d", domain.ErrUpstreamClient, op, resp.StatusCode)
	}
}
