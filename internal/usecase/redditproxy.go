package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oceralabs/ocera/internal/domain"
)

// Proxy action names. The proxy endpoint dispatches on these so the frontend
// needs a single route and never holds Reddit tokens.
const (
	ActionUserPosts        = "user_posts"
	ActionSubredditPosts   = "subreddit_posts"
	ActionHotPosts         = "hot_posts"
	ActionRisingPosts      = "rising_posts"
	ActionPostDetails      = "post_details"
	ActionComments         = "comments"
	ActionSubmit           = "submit"
	ActionEditPost         = "edit_post"
	ActionDeletePost       = "delete_post"
	ActionVote             = "vote"
	ActionSubredditInfo    = "subreddit_info"
	ActionSubscribe        = "subscribe"
	ActionSearchSubreddits = "search_subreddits"
	ActionMessages         = "messages"
	ActionIdentity         = "me"
)

// ProxyRequest is the typed body of a proxy call. Which fields matter depends
// on Action; unused fields are ignored.
type ProxyRequest struct {
	Action    string `json:"action"`
	Username  string `json:"username,omitempty"`
	Subreddit string `json:"subreddit,omitempty"`
	Sort      string `json:"sort,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	PostID    string `json:"postId,omitempty"`
	Fullname  string `json:"fullname,omitempty"`
	Direction int    `json:"direction,omitempty"`
	Query     string `json:"query,omitempty"`
	Box       string `json:"box,omitempty"`
	Title     string `json:"title,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Text      string `json:"text,omitempty"`
	URL       string `json:"url,omitempty"`
	Subscribe bool   `json:"subscribe,omitempty"`
}

// Listing bounds enforced before any upstream call.
const (
	defaultListingLimit = 25
	maxListingLimit     = 100
)

// ProxyService executes Reddit API calls on behalf of a connected user.
type ProxyService struct {
	Reddit domain.RedditClient
	Users  domain.UserRepository
	Now    func() time.Time
}

// NewProxyService wires the proxy. now is replaceable for tests; nil means
// time.Now.
func NewProxyService(reddit domain.RedditClient, users domain.UserRepository, now func() time.Time) ProxyService {
	if now == nil {
		now = time.Now
	}
	return ProxyService{Reddit: reddit, Users: users, Now: now}
}

// Execute loads the caller's Reddit connection and dispatches the action.
// Unknown actions and missing required fields are ErrInvalidArgument; a
// missing or expired connection is ErrForbidden.
func (s ProxyService) Execute(ctx context.Context, userID string, req ProxyRequest) (any, error) {
	user, err := s.Users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("op=proxy.Execute: %w", err)
	}
	if !user.RedditConnected || user.RedditAccessToken == "" {
		return nil, fmt.Errorf("%w: reddit account not connected", domain.ErrForbidden)
	}
	if user.RedditTokenExpiresAt != nil && !user.RedditTokenExpiresAt.After(s.Now()) {
		return nil, fmt.Errorf("%w: reddit token expired, reconnect your account", domain.ErrForbidden)
	}
	token := user.RedditAccessToken

	limit := req.Limit
	if limit <= 0 {
		limit = defaultListingLimit
	}
	if limit > maxListingLimit {
		limit = maxListingLimit
	}
	sort := strings.TrimSpace(req.Sort)
	if sort == "" {
		sort = "new"
	}

	switch req.Action {
	case ActionIdentity:
		return s.Reddit.Identity(ctx, token)
	case ActionUserPosts:
		username := req.Username
		if username == "" {
			username = user.RedditUsername
		}
		if username == "" {
			return nil, fmt.Errorf("%w: username is required", domain.ErrInvalidArgument)
		}
		return s.Reddit.UserPosts(ctx, token, username, sort, limit)
	case ActionSubredditPosts:
		if req.Subreddit == "" {
			return nil, fmt.Errorf("%w: subreddit is required", domain.ErrInvalidArgument)
		}
		return s.Reddit.SubredditPosts(ctx, token, req.Subreddit, sort, limit)
	case ActionHotPosts:
		return s.Reddit.HotPosts(ctx, token, limit)
	case ActionRisingPosts:
		return s.Reddit.RisingPosts(ctx, token, limit)
	case ActionPostDetails:
		if req.PostID == "" {
			return nil, fmt.Errorf("%w: postId is required", domain.ErrInvalidArgument)
		}
		return s.Reddit.PostDetails(ctx, token, req.PostID)
	case ActionComments:
		if req.PostID == "" {
			return nil, fmt.Errorf("%w: postId is required", domain.ErrInvalidArgument)
		}
		return s.Reddit.Comments(ctx, token, req.PostID, limit)
	case ActionSubmit:
		return s.submit(ctx, token, req)
	case ActionEditPost:
		if req.Fullname == "" || strings.TrimSpace(req.Text) == "" {
			return nil, fmt.Errorf("%w: fullname and text are required", domain.ErrInvalidArgument)
		}
		return okResult{}, s.Reddit.EditPost(ctx, token, req.Fullname, req.Text)
	case ActionDeletePost:
		if req.Fullname == "" {
			return nil, fmt.Errorf("%w: fullname is required", domain.ErrInvalidArgument)
		}
		return okResult{}, s.Reddit.DeletePost(ctx, token, req.Fullname)
	case ActionVote:
		if req.Fullname == "" {
			return nil, fmt.Errorf("%w: fullname is required", domain.ErrInvalidArgument)
		}
		if req.Direction < -1 || req.Direction > 1 {
			return nil, fmt.Errorf("%w: direction must be -1, 0, or 1", domain.ErrInvalidArgument)
		}
		return okResult{}, s.Reddit.Vote(ctx, token, req.Fullname, req.Direction)
	case ActionSubredditInfo:
		if req.Subreddit == "" {
			return nil, fmt.Errorf("%w: subreddit is required", domain.ErrInvalidArgument)
		}
		return s.Reddit.SubredditInfo(ctx, token, req.Subreddit)
	case ActionSubscribe:
		if req.Subreddit == "" {
			return nil, fmt.Errorf("%w: subreddit is required", domain.ErrInvalidArgument)
		}
		return okResult{}, s.Reddit.Subscribe(ctx, token, req.Subreddit, req.Subscribe)
	case ActionSearchSubreddits:
		if strings.TrimSpace(req.Query) == "" {
			return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidArgument)
		}
		return s.Reddit.SearchSubreddits(ctx, token, req.Query, limit)
	case ActionMessages:
		box := req.Box
		if box == "" {
			box = "inbox"
		}
		return s.Reddit.Messages(ctx, token, box, limit)
	default:
		return nil, fmt.Errorf("%w: unknown action %q", domain.ErrInvalidArgument, req.Action)
	}
}

func (s ProxyService) submit(ctx context.Context, token string, req ProxyRequest) (any, error) {
	kind := req.Kind
	if kind == "" {
		kind = "self"
	}
	if kind != "self" && kind != "link" {
		return nil, fmt.Errorf("%w: kind must be self or link", domain.ErrInvalidArgument)
	}
	if req.Subreddit == "" || strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: subreddit and title are required", domain.ErrInvalidArgument)
	}
	if kind == "link" && req.URL == "" {
		return nil, fmt.Errorf("%w: url is required for link posts", domain.ErrInvalidArgument)
	}
	name, err := s.Reddit.Submit(ctx, token, domain.SubmitRequest{
		Subreddit: req.Subreddit,
		Title:     strings.TrimSpace(req.Title),
		Kind:      kind,
		Text:      req.Text,
		URL:       req.URL,
	})
	if err != nil {
		return nil, err
	}
	return submitResult{Name: name}, nil
}

type okResult struct {
	// Serialized as {"ok":true} so mutating actions have a stable body.
}

func (okResult) MarshalJSON() ([]byte, error) { return []byte(`{"ok":true}`), nil }

type submitResult struct {
	Name string `json:"name"`
}
