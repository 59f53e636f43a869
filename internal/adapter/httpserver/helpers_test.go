package httpserver_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/oceralabs/ocera/internal/adapter/httpserver"
	"github.com/oceralabs/ocera/internal/app"
	"github.com/oceralabs/ocera/internal/config"
	"github.com/oceralabs/ocera/internal/domain"
	"github.com/oceralabs/ocera/internal/usecase"
)

const testJWTSecret = "test-secret-0123456789"

func testToken(t *testing.T, sub string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": sub + "@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func testConfig() config.Config {
	return config.Config{
		AppEnv:           "test",
		AuthJWTSecret:    testJWTSecret,
		MaxContentLength: 8000,
		MinSuggestions:   3,
		MaxSuggestions:   10,
		AITimeout:        2 * time.Second,
		RateLimitPerMin:  1000,
		CORSAllowOrigins: "*",
		OAuthStateTTL:    10 * time.Minute,
	}
}

// memUsers is an in-memory domain.UserRepository.
type memUsers struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMemUsers(users ...domain.User) *memUsers {
	m := make(map[string]domain.User, len(users))
	for _, u := range users {
		m[u.ID] = u
	}
	return &memUsers{users: m}
}

func (f *memUsers) Get(_ context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	return u, nil
}

func (f *memUsers) Ensure(_ context.Context, id, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		u = domain.User{ID: id, Email: email, Plan: domain.PlanFree}
		f.users[id] = u
	}
	return u, nil
}

func (f *memUsers) SaveRedditConnection(_ context.Context, id string, conn domain.RedditConnection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
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

func (f *memUsers) ClearRedditConnection(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[id]
	u.RedditConnected = false
	u.RedditUsername = ""
	u.RedditAccessToken = ""
	u.RedditRefreshToken = ""
	u.RedditTokenExpiresAt = nil
	f.users[id] = u
	return nil
}

func (f *memUsers) UpdateSubscription(_ context.Context, id string, sub domain.SubscriptionUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[id]
	u.ID = id
	u.Plan = sub.Plan
	u.SubscriptionStatus = sub.Status
	u.SubscriptionID = sub.SubscriptionID
	u.SubscriptionExpiresAt = sub.ExpiresAt
	f.users[id] = u
	return nil
}

// stubGen is a scripted domain.TextGenerator.
type stubGen struct {
	gen domain.Generation
	err error
}

func (s *stubGen) Generate(context.Context, string) (domain.Generation, error) {
	return s.gen, s.err
}

// memStates is an in-memory one-shot state store.
type memStates struct {
	mu     sync.Mutex
	states map[string]string
	seq    int
}

func newMemStates() *memStates { return &memStates{states: map[string]string{}} }

func (f *memStates) Issue(_ context.Context, userID string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	state := fmt.Sprintf("state-%d", f.seq)
	f.states[state] = userID
	return state, nil
}

func (f *memStates) Consume(_ context.Context, state string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.states[state]
	if !ok {
		return "", fmt.Errorf("%w: state", domain.ErrNotFound)
	}
	delete(f.states, state)
	return userID, nil
}

// stubReddit embeds the interface so tests override only what they use.
type stubReddit struct {
	domain.RedditClient
}

func (stubReddit) AuthorizeURL(state string) string {
	return "https://www.reddit.com/api/v1/authorize?state=" + state
}

func (stubReddit) ExchangeCode(context.Context, string) (domain.RedditToken, error) {
	return domain.RedditToken{AccessToken: "at", RefreshToken: "rt", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (stubReddit) Identity(context.Context, string) (domain.RedditIdentity, error) {
	return domain.RedditIdentity{ID: "rid", Name: "redditor"}, nil
}

func (stubReddit) HotPosts(context.Context, string, int) (domain.RedditListing, error) {
	return domain.RedditListing{Posts: []domain.RedditPost{{ID: "p1", Title: "hot"}}}, nil
}

// allowAll is a QuotaChecker that never limits.
type allowAll struct{}

func (allowAll) Allow(context.Context, domain.User) error { return nil }

// denyAll is a QuotaChecker that always limits.
type denyAll struct{}

func (denyAll) Allow(context.Context, domain.User) error {
	return fmt.Errorf("%w: daily AI quota exhausted", domain.ErrRateLimited)
}

type fixture struct {
	handler http.Handler
	users   *memUsers
	gen     *stubGen
	states  *memStates
}

func newFixture(t *testing.T, mutate func(*httpserver.Server)) *fixture {
	t.Helper()
	cfg := testConfig()
	users := newMemUsers()
	gen := &stubGen{gen: domain.Generation{Text: "plain output"}}
	states := newMemStates()
	reddit := stubReddit{}

	srv := &httpserver.Server{
		Cfg:     cfg,
		AI:      usecase.NewAIService(gen, cfg.MaxContentLength, cfg.MinSuggestions, cfg.MaxSuggestions),
		Proxy:   usecase.NewProxyService(reddit, users, nil),
		Connect: usecase.NewConnectService(reddit, users, states, cfg.OAuthStateTTL, true),
		Users:   users,
		Quota:   allowAll{},
	}
	if mutate != nil {
		mutate(srv)
	}
	return &fixture{
		handler: app.BuildRouter(cfg, srv),
		users:   users,
		gen:     gen,
		states:  states,
	}
}
