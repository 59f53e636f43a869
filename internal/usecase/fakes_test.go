package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oceralabs/ocera/internal/domain"
)

// fakeUserRepo is an in-memory UserRepository for service tests.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
	err   error
}

func newFakeUserRepo(users ...domain.User) *fakeUserRepo {
	m := make(map[string]domain.User, len(users))
	for _, u := range users {
		m[u.ID] = u
	}
	return &fakeUserRepo{users: m}
}

func (f *fakeUserRepo) Get(_ context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.User{}, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	return u, nil
}

func (f *fakeUserRepo) Ensure(_ context.Context, id, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.User{}, f.err
	}
	u, ok := f.users[id]
	if !ok {
		u = domain.User{ID: id, Email: email, Plan: domain.PlanFree}
		f.users[id] = u
	}
	return u, nil
}

func (f *fakeUserRepo) SaveRedditConnection(_ context.Context, id string, conn domain.RedditConnection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	u := f.users[id]
	u.ID = id
	u.RedditConnected = true
	u.RedditUsername = conn.Username
	u.RedditAccessToken = conn.AccessToken
	u.RedditRefreshToken = conn.RefreshToken
	u.RedditTokenExpiresAt = &conn.ExpiresAt
	f.users[id] = u
	return nil
}

func (f *fakeUserRepo) ClearRedditConnection(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	u := f.users[id]
	u.RedditConnected = false
	u.RedditUsername = ""
	u.RedditAccessToken = ""
	u.RedditRefreshToken = ""
	u.RedditTokenExpiresAt = nil
	f.users[id] = u
	return nil
}

func (f *fakeUserRepo) UpdateSubscription(_ context.Context, id string, sub domain.SubscriptionUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	u := f.users[id]
	u.ID = id
	u.Plan = sub.Plan
	u.SubscriptionStatus = sub.Status
	u.SubscriptionID = sub.SubscriptionID
	u.SubscriptionExpiresAt = sub.ExpiresAt
	f.users[id] = u
	return nil
}

// fakeStateStore is an in-memory one-shot StateStore.
type fakeStateStore struct {
	mu     sync.Mutex
	states map[string]string
	next   string
	err    error
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: map[string]string{}, next: "state-token-1"}
}

func (f *fakeStateStore) Issue(_ context.Context, userID string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.states[f.next] = userID
	return f.next, nil
}

func (f *fakeStateStore) Consume(_ context.Context, state string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	userID, ok := f.states[state]
	if !ok {
		return "", fmt.Errorf("%w: state", domain.ErrNotFound)
	}
	delete(f.states, state)
	return userID, nil
}

// fakeRedditClient records calls; each method returns canned data.
type fakeRedditClient struct {
	exchangeErr error
	identityErr error
	lastCall    string
	lastLimit   int
	lastSort    string
	submitted   domain.SubmitRequest
	voted       struct {
		fullname  string
		direction int
	}
}

func (f *fakeRedditClient) AuthorizeURL(state string) string {
	return "https://www.reddit.com/api/v1/authorize?state=" + state
}

func (f *fakeRedditClient) ExchangeCode(_ context.Context, code string) (domain.RedditToken, error) {
	f.lastCall = "exchange:" + code
	if f.exchangeErr != nil {
		return domain.RedditToken{}, f.exchangeErr
	}
	return domain.RedditToken{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour),
		Scope:        "identity read submit",
	}, nil
}

func (f *fakeRedditClient) Identity(_ context.Context, _ string) (domain.RedditIdentity, error) {
	f.lastCall = "identity"
	if f.identityErr != nil {
		return domain.RedditIdentity{}, f.identityErr
	}
	return domain.RedditIdentity{ID: "abc", Name: "testuser"}, nil
}

func (f *fakeRedditClient) UserPosts(_ context.Context, _, username, sort string, limit int) (domain.RedditListing, error) {
	f.lastCall = "user_posts:" + username
	f.lastSort = sort
	f.lastLimit = limit
	return domain.RedditListing{Posts: []domain.RedditPost{{ID: "p1", Author: username}}}, nil
}

func (f *fakeRedditClient) SubredditPosts(_ context.Context, _, subreddit, sort string, limit int) (domain.RedditListing, error) {
	f.lastCall = "subreddit_posts:" + subreddit
	f.lastSort = sort
	f.lastLimit = limit
	return domain.RedditListing{}, nil
}

func (f *fakeRedditClient) HotPosts(_ context.Context, _ string, limit int) (domain.RedditListing, error) {
	f.lastCall = "hot_posts"
	f.lastLimit = limit
	return domain.RedditListing{}, nil
}

func (f *fakeRedditClient) RisingPosts(_ context.Context, _ string, limit int) (domain.RedditListing, error) {
	f.lastCall = "rising_posts"
	f.lastLimit = limit
	return domain.RedditListing{}, nil
}

func (f *fakeRedditClient) PostDetails(_ context.Context, _, postID string) (domain.RedditPost, error) {
	f.lastCall = "post_details:" + postID
	return domain.RedditPost{ID: postID}, nil
}

func (f *fakeRedditClient) Comments(_ context.Context, _, postID string, limit int) ([]map[string]any, error) {
	f.lastCall = "comments:" + postID
	f.lastLimit = limit
	return []map[string]any{{"id": "c1"}}, nil
}

func (f *fakeRedditClient) Submit(_ context.Context, _ string, req domain.SubmitRequest) (string, error) {
	f.lastCall = "submit"
	f.submitted = req
	return "t3_newpost", nil
}

func (f *fakeRedditClient) EditPost(_ context.Context, _, fullname, _ string) error {
	f.lastCall = "edit_post:" + fullname
	return nil
}

func (f *fakeRedditClient) DeletePost(_ context.Context, _, fullname string) error {
	f.lastCall = "delete_post:" + fullname
	return nil
}

func (f *fakeRedditClient) Vote(_ context.Context, _, fullname string, direction int) error {
	f.lastCall = "vote"
	f.voted.fullname = fullname
	f.voted.direction = direction
	return nil
}

func (f *fakeRedditClient) SubredditInfo(_ context.Context, _, subreddit string) (domain.SubredditInfo, error) {
	f.lastCall = "subreddit_info:" + subreddit
	return domain.SubredditInfo{Name: subreddit}, nil
}

func (f *fakeRedditClient) Subscribe(_ context.Context, _, subreddit string, _ bool) error {
	f.lastCall = "subscribe:" + subreddit
	return nil
}

func (f *fakeRedditClient) SearchSubreddits(_ context.Context, _, query string, limit int) ([]domain.SubredditInfo, error) {
	f.lastCall = "search_subreddits:" + query
	f.lastLimit = limit
	return []domain.SubredditInfo{{Name: "golang"}}, nil
}

func (f *fakeRedditClient) Messages(_ context.Context, _, box string, limit int) ([]domain.RedditMessage, error) {
	f.lastCall = "messages:" + box
	f.lastLimit = limit
	return nil, nil
}

// fakeProvider is a scripted PaymentProvider.
type fakeProvider struct {
	name        string
	session     domain.CheckoutSession
	checkoutErr error
	validSig    string
	event       domain.WebhookEvent
	parseErr    error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) CreateCheckout(_ context.Context, _ domain.CheckoutRequest) (domain.CheckoutSession, error) {
	if f.checkoutErr != nil {
		return domain.CheckoutSession{}, f.checkoutErr
	}
	return f.session, nil
}

func (f *fakeProvider) VerifySignature(_ []byte, signature string) bool {
	return signature == f.validSig
}

func (f *fakeProvider) ParseWebhook(_ []byte) (domain.WebhookEvent, error) {
	if f.parseErr != nil {
		return domain.WebhookEvent{}, f.parseErr
	}
	return f.event, nil
}
