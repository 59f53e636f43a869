package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oceralabs/ocera/internal/domain"
)

// ConnectService drives the Reddit account linking flow: issue an anti-forgery
// state, exchange the authorization code, and persist the resulting tokens.
type ConnectService struct {
	Reddit   domain.RedditClient
	Users    domain.UserRepository
	States   domain.StateStore
	StateTTL time.Duration
	Enabled  bool
}

// NewConnectService wires the connect flow. enabled is false when the Reddit
// OAuth application is not configured; every operation then fails fast.
func NewConnectService(reddit domain.RedditClient, users domain.UserRepository, states domain.StateStore, stateTTL time.Duration, enabled bool) ConnectService {
	return ConnectService{Reddit: reddit, Users: users, States: states, StateTTL: stateTTL, Enabled: enabled}
}

// ConnectStatus summarizes the user's Reddit link for the status endpoint.
type ConnectStatus struct {
	Connected bool   `json:"connected"`
	Username  string `json:"username,omitempty"`
}

// Initiate issues a single-use state token bound to the user and returns the
// Reddit authorization URL to redirect the browser to.
func (s ConnectService) Initiate(ctx context.Context, userID string) (string, error) {
	if !s.Enabled {
		return "", fmt.Errorf("%w: reddit oauth application not configured", domain.ErrNotConfigured)
	}
	state, err := s.States.Issue(ctx, userID, s.StateTTL)
	if err != nil {
		return "", fmt.Errorf("op=connect.Initiate: %w", err)
	}
	return s.Reddit.AuthorizeURL(state), nil
}

// Complete consumes the state token, exchanges the authorization code for
// tokens, resolves the Reddit identity, and persists the connection. The state
// is one-shot: replaying a callback fails regardless of the code's validity.
func (s ConnectService) Complete(ctx context.Context, state, code string) (ConnectStatus, error) {
	if !s.Enabled {
		return ConnectStatus{}, fmt.Errorf("%w: reddit oauth application not configured", domain.ErrNotConfigured)
	}
	if state == "" || code == "" {
		return ConnectStatus{}, fmt.Errorf("%w: state and code are required", domain.ErrInvalidArgument)
	}
	userID, err := s.States.Consume(ctx, state)
	if err != nil {
		return ConnectStatus{}, fmt.Errorf("%w: state token invalid or expired", domain.ErrInvalidArgument)
	}

	token, err := s.Reddit.ExchangeCode(ctx, code)
	if err != nil {
		return ConnectStatus{}, fmt.Errorf("op=connect.Complete: %w", err)
	}
	identity, err := s.Reddit.Identity(ctx, token.AccessToken)
	if err != nil {
		return ConnectStatus{}, fmt.Errorf("op=connect.Complete: %w", err)
	}

	conn := domain.RedditConnection{
		Username:     identity.Name,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiresAt,
	}
	if err := s.Users.SaveRedditConnection(ctx, userID, conn); err != nil {
		return ConnectStatus{}, fmt.Errorf("op=connect.Complete: %w", err)
	}
	slog.Info("reddit account connected",
		slog.String("user_id", userID),
		slog.String("reddit_username", identity.Name))
	return ConnectStatus{Connected: true, Username: identity.Name}, nil
}

// Disconnect removes the stored Reddit connection. Disconnecting an
// unconnected account is a no-op, not an error.
func (s ConnectService) Disconnect(ctx context.Context, userID string) error {
	if err := s.Users.ClearRedditConnection(ctx, userID); err != nil {
		return fmt.Errorf("op=connect.Disconnect: %w", err)
	}
	slog.Info("reddit account disconnected", slog.String("user_id", userID))
	return nil
}

// Status reports whether the user has a linked Reddit account.
func (s ConnectService) Status(ctx context.Context, userID string) (ConnectStatus, error) {
	u, err := s.Users.Get(ctx, userID)
	if err != nil {
		return ConnectStatus{}, fmt.Errorf("op=connect.Status: %w", err)
	}
	return ConnectStatus{Connected: u.RedditConnected, Username: u.RedditUsername}, nil
}
