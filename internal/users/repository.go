package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// ResetUsageIfStale zeroes usage_count when last_reset is older than
	// window. Returns true if a reset was performed.
	ResetUsageIfStale(ctx context.Context, id uuid.UUID, window time.Duration) (bool, error)
	IncrementUsage(ctx context.Context, id uuid.UUID) error
	SetTier(ctx context.Context, email string, tier Tier, subscriptionID string) error
}

const userColumns = `id, username, email, password_hash, tier, usage_count, last_reset, subscription_id, created_at, updated_at`

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, tier, usage_count, last_reset, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash,
		user.Tier, user.UsageCount, user.LastReset, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id), "querying user by id")
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, email), "querying user by email")
}

func (r *postgresRepository) scanOne(row pgx.Row, op string) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Tier, &user.UsageCount, &user.LastReset, &user.SubscriptionID,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (r *postgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking email existence: %w", err)
	}
	return exists, nil
}

func (r *postgresRepository) ResetUsageIfStale(ctx context.Context, id uuid.UUID, window time.Duration) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET usage_count = 0,
		     last_reset = NOW(),
		     updated_at = NOW()
		 WHERE id = $1 AND last_reset <= NOW() - make_interval(secs => $2)`,
		id, window.Seconds())
	if err != nil {
		return false, fmt.Errorf("resetting usage: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *postgresRepository) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET usage_count = usage_count + 1,
		     updated_at = NOW()
		 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("incrementing usage: %w", err)
	}
	return nil
}

func (r *postgresRepository) SetTier(ctx context.Context, email string, tier Tier, subscriptionID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET tier = $2,
		     subscription_id = $3,
		     updated_at = NOW()
		 WHERE email = $1`, email, tier, subscriptionID)
	if err != nil {
		return fmt.Errorf("setting tier: %w", err)
	}
	return nil
}
