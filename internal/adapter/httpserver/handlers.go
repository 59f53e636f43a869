package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/oceralabs/ocera/internal/config"
	"github.com/oceralabs/ocera/internal/domain"
	"github.com/oceralabs/ocera/internal/usecase"
)

// maxBodyBytes bounds JSON request bodies; the largest legal payload is an
// optimization request at MAX_CONTENT_LENGTH plus envelope overhead.
const maxBodyBytes = 1 << 20

// QuotaChecker gates free-plan AI usage.
type QuotaChecker interface {
	Allow(ctx context.Context, user domain.User) error
}

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	AI         usecase.AIService
	Proxy      usecase.ProxyService
	Connect    usecase.ConnectService
	Billing    usecase.BillingService
	Users      domain.UserRepository
	Quota      QuotaChecker
	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// decodeJSON reads a bounded JSON body into dst and runs struct validation.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrInvalidArgument, err)
	}
	if err := getValidator().Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

// requireUser loads the authenticated user's row. RequireAuth already ensured
// it exists.
func (s *Server) requireUser(r *http.Request) (domain.User, error) {
	principal, ok := UserFrom(r.Context())
	if !ok {
		return domain.User{}, fmt.Errorf("%w: no authenticated user", domain.ErrUnauthorized)
	}
	return s.Users.Get(r.Context(), principal.ID)
}

type optimizeBody struct {
	Content   string `json:"content" validate:"required"`
	Subreddit string `json:"subreddit"`
	Tone      string `json:"tone"`
}

// OptimizeHandler rewrites content for a target subreddit and tone.
func (s *Server) OptimizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.requireUser(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := s.Quota.Allow(r.Context(), user); err != nil {
			writeError(w, r, err, nil)
			return
		}
		var body optimizeBody
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, r, err, nil)
			return
		}
		res, err := s.AI.Optimize(r.Context(), domain.OptimizationRequest{
			Content:   body.Content,
			Subreddit: body.Subreddit,
			Tone:      body.Tone,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if res.Fallback {
			LoggerFrom(r).Warn("optimization served from fallback", "subreddit", res.Subreddit)
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type suggestBody struct {
	Content  string `json:"content" validate:"required"`
	Category string `json:"category"`
}

// SuggestHandler recommends subreddits for a piece of content.
func (s *Server) SuggestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.requireUser(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := s.Quota.Allow(r.Context(), user); err != nil {
			writeError(w, r, err, nil)
			return
		}
		var body suggestBody
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, r, err, nil)
			return
		}
		res, err := s.AI.SuggestSubreddits(r.Context(), domain.SuggestionRequest{
			Content:  body.Content,
			Category: body.Category,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// RedditProxyHandler dispatches one Reddit API action for the caller.
func (s *Server) RedditProxyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := UserFrom(r.Context())
		if !ok {
			writeError(w, r, fmt.Errorf("%w: no authenticated user", domain.ErrUnauthorized), nil)
			return
		}
		var body usecase.ProxyRequest
		if err := decodeJSON(w, r, &body); err != nil {
			writeError(w, r, err, nil)
			return
		}
		out, err := s.Proxy.Execute(r.Context(), principal.ID, body)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// RedditConnectHandler starts the OAuth flow and returns the authorize URL.
func (s *Server) RedditConnectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := UserFrom(r.Context())
		if !ok {
			writeError(w, r, fmt.Errorf("%w: no authenticated user", domain.ErrUnauthorized), nil)
			return
		}
		authURL, err := s.Connect.Initiate(r.Context(), principal.ID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"authUrl": authURL})
	}
}

// RedditCallbackHandler completes the OAuth flow. Reddit redirects the browser
// here; the state token carries the user binding so no bearer token exists.
func (s *Server) RedditCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if errParam := q.Get("error"); errParam != "" {
			writeError(w, r, fmt.Errorf("%w: reddit authorization denied: %s", domain.ErrInvalidArgument, errParam), nil)
			return
		}
		status, err := s.Connect.Complete(r.Context(), q.Get("state"), q.Get("code"))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// RedditDisconnectHandler unlinks the caller's Reddit account.
func (s *Server) RedditDisconnectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := UserFrom(r.Context())
		if !ok {
			writeError(w, r, fmt.Errorf("%w: no authenticated user", domain.ErrUnauthorized), nil)
			return
		}
		if err := s.Connect.Disconnect(r.Context(), principal.ID); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, usecase.ConnectStatus{Connected: false})
	}
}

// RedditStatusHandler reports whether the caller has a linked Reddit account.
func (s *Server) RedditStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := UserFrom(r.Context())
		if !ok {
			writeError(w, r, fmt.Errorf("%w: no authenticated user", domain.ErrUnauthorized), nil)
			return
		}
		status, err := s.Connect.Status(r.Context(), principal.ID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// CheckoutHandler creates a hosted checkout session for the premium plan.
func (s *Server) CheckoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.requireUser(r)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		session, err := s.Billing.CreateCheckout(r.Context(), user.ID, user.Email)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

// webhookSignatureHeaders maps a provider to its signature header.
var webhookSignatureHeaders = map[string]string{
	"paystack":     "X-Paystack-Signature",
	"lemonsqueezy": "X-Signature",
}

// WebhookHandler verifies and applies one payment provider webhook. Providers
// authenticate with body signatures, not bearer tokens.
func (s *Server) WebhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		header, ok := webhookSignatureHeaders[provider]
		if !ok {
			writeError(w, r, fmt.Errorf("%w: unknown payment provider %q", domain.ErrNotFound, provider), nil)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: reading webhook body: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		if err := s.Billing.HandleWebhook(r.Context(), provider, body, r.Header.Get(header)); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	}
}

// HealthzHandler is a liveness probe.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler is a readiness probe checking the backing stores.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]func(context.Context) error{
			"db":    s.DBCheck,
			"redis": s.RedisCheck,
		}
		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if check == nil {
				status[name] = "skipped"
				continue
			}
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				healthy = false
			} else {
				status[name] = "ok"
			}
		}
		if !healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}
