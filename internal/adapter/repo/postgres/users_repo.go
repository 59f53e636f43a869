package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/oceralabs/ocera/internal/domain"
)

// PgxPool is the subset of pgxpool.Pool the repository needs; narrowed so
// tests can substitute a fake.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UsersRepo persists users in the users table.
type UsersRepo struct {
	pool   PgxPool
	tracer trace.Tracer
}

// NewUsersRepo constructs a UsersRepo.
func NewUsersRepo(pool PgxPool) *UsersRepo {
	return &UsersRepo{pool: pool, tracer: otel.Tracer("repo.users")}
}

const userColumns = `id, email, plan, subscription_status, subscription_id, subscription_expires_at,
	reddit_connected, reddit_username, reddit_access_token, reddit_refresh_token, reddit_token_expires_at,
	created_at, updated_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Plan, &u.SubscriptionStatus, &u.SubscriptionID, &u.SubscriptionExpiresAt,
		&u.RedditConnected, &u.RedditUsername, &u.RedditAccessToken, &u.RedditRefreshToken, &u.RedditTokenExpiresAt,
		&u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

// Get fetches a user by id.
func (r *UsersRepo) Get(ctx context.Context, id string) (domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "users.Get")
	defer span.End()

	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
		}
		return domain.User{}, fmt.Errorf("op=users.Get: %w", err)
	}
	return u, nil
}

// Ensure returns the user row, creating a free-plan row on first sight of an
// authenticated subject.
func (r *UsersRepo) Ensure(ctx context.Context, id, email string) (domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "users.Ensure")
	defer span.End()

	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, plan, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, updated_at = EXCLUDED.updated_at
		RETURNING `+userColumns,
		id, email, domain.PlanFree, now)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("op=users.Ensure: %w", err)
	}
	return u, nil
}

// SaveRedditConnection stores the OAuth tokens and marks the account linked.
func (r *UsersRepo) SaveRedditConnection(ctx context.Context, id string, conn domain.RedditConnection) error {
	ctx, span := r.tracer.Start(ctx, "users.SaveRedditConnection")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET
			reddit_connected = TRUE,
			reddit_username = $2,
			reddit_access_token = $3,
			reddit_refresh_token = $4,
			reddit_token_expires_at = $5,
			updated_at = NOW()
		WHERE id = $1`,
		id, conn.Username, conn.AccessToken, conn.RefreshToken, conn.ExpiresAt)
	if err != nil {
		return fmt.Errorf("op=users.SaveRedditConnection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	return nil
}

// ClearRedditConnection removes the stored tokens. Clearing an unknown or
// unlinked user is a no-op.
func (r *UsersRepo) ClearRedditConnection(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "users.ClearRedditConnection")
	defer span.End()

	_, err := r.pool.Exec(ctx, `
		UPDATE users SET
			reddit_connected = FALSE,
			reddit_username = '',
			reddit_access_token = '',
			reddit_refresh_token = '',
			reddit_token_expires_at = NULL,
			updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("op=users.ClearRedditConnection: %w", err)
	}
	return nil
}

// UpdateSubscription applies a billing webhook outcome.
func (r *UsersRepo) UpdateSubscription(ctx context.Context, id string, sub domain.SubscriptionUpdate) error {
	ctx, span := r.tracer.Start(ctx, "users.UpdateSubscription")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET
			plan = $2,
			subscription_status = $3,
			subscription_id = $4,
			subscription_expires_at = $5,
			updated_at = NOW()
		WHERE id = $1`,
		id, sub.Plan, sub.Status, sub.SubscriptionID, sub.ExpiresAt)
	if err != nil {
		return fmt.Errorf("op=users.UpdateSubscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	return nil
}
