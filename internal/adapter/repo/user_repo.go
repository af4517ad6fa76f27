package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

const userColumns = `id, name, email, image, is_pro, pro_usage_today, pro_usage_month, elite_usage_month, last_reset_date, stripe_customer_id, created_at, updated_at`

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL.
type UserRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(pool *pgxpool.Pool) *UserRepositoryPG {
	return &UserRepositoryPG{pool: pool}
}

// EnsureUser inserts the row with default counters if it does not exist yet.
// An existing row is never touched, so counters survive repeat logins.
func (r *UserRepositoryPG) EnsureUser(ctx context.Context, id string) (*domain.User, error) {
	_, err := r.pool.Exec(ctx, `
INSERT INTO users (id, email, pro_usage_month, elite_usage_month)
VALUES ($1, '', $2, $3)
ON CONFLICT (id) DO NOTHING
`, id, domain.DefaultProUsageMonth, domain.DefaultEliteUsageMonth)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// GetByID fetches a user by their external identifier.
func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// ResetDailyUsage zeroes the daily pro counter when the stored reset date is
// not today. The conditional predicate makes concurrent resets collapse into
// one.
func (r *UserRepositoryPG) ResetDailyUsage(ctx context.Context, id, today string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE users
SET pro_usage_today = 0, last_reset_date = $2, updated_at = now()
WHERE id = $1 AND last_reset_date <> $2
`, id, today)
	return err
}

// SetSubscribed marks the user as a subscriber and records the Stripe
// customer for billing-portal redirection. Setting the flag twice is a no-op.
func (r *UserRepositoryPG) SetSubscribed(ctx context.Context, id, stripeCustomerID string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET is_pro = true, stripe_customer_id = $2, updated_at = now()
WHERE id = $1
`, id, stripeCustomerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ResetAllDaily zeroes every user's daily pro counter.
func (r *UserRepositoryPG) ResetAllDaily(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET pro_usage_today = 0, updated_at = now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ResetAllMonthly restores every user's monthly allowances to their defaults.
func (r *UserRepositoryPG) ResetAllMonthly(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET pro_usage_month = $1, elite_usage_month = $2, updated_at = now()
`, domain.DefaultProUsageMonth, domain.DefaultEliteUsageMonth)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Image,
		&u.IsPro,
		&u.ProUsageToday,
		&u.ProUsageMonth,
		&u.EliteUsageMonth,
		&u.LastResetDate,
		&u.StripeCustomerID,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

var _ domain.UserRepository = (*UserRepositoryPG)(nil)
